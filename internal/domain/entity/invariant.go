package entity

import (
	"strings"

	"github.com/oksasatya/minha-cantina/internal/domain/apperr"
)

// present reports whether s carries something other than whitespace.
// Every factory and mutator goes through it so blank means the same thing everywhere.
func present(s string) bool {
	return strings.TrimSpace(s) != ""
}

func requirePresent(value, field, message string) error {
	if !present(value) {
		return apperr.NewValidation(field, message)
	}
	return nil
}
