// Package apperr holds the closed error taxonomy shared by the domain,
// application and transport layers. Transport code switches on Kind instead
// of inspecting concrete error types.
package apperr

import (
	"errors"
	"fmt"
)

// Kind is the closed set of failure outcomes.
type Kind int

const (
	// Unknown is returned by KindOf for errors outside the taxonomy.
	Unknown Kind = iota
	Validation
	Duplicate
	NotFound
	Unexpected
)

func (k Kind) String() string {
	switch k {
	case Validation:
		return "validation"
	case Duplicate:
		return "duplicate"
	case NotFound:
		return "not_found"
	case Unexpected:
		return "unexpected"
	default:
		return "unknown"
	}
}

// Entity names the aggregate an error refers to.
type Entity string

const (
	EntityUser     Entity = "user"
	EntityCategory Entity = "category"
	EntityProduct  Entity = "product"
)

// GenericMessage is the only text an Unexpected error ever shows to callers.
const GenericMessage = "ocorreu um erro inesperado"

// Error is the tagged-variant error value.
// Message is safe to show to callers; Err keeps low-level detail for logs only.
type Error struct {
	Kind    Kind
	Entity  Entity
	Field   string
	Message string
	Err     error
}

func (e *Error) Error() string {
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches another *Error of the same Kind and Entity, so callers can write
// errors.Is(err, &apperr.Error{Kind: apperr.Duplicate, Entity: apperr.EntityCategory}).
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	if t.Kind != e.Kind {
		return false
	}
	return t.Entity == "" || t.Entity == e.Entity
}

// Detail renders the message plus the wrapped cause, for diagnostics.
func (e *Error) Detail() string {
	if e.Err == nil {
		return e.Message
	}
	return fmt.Sprintf("%s: %v", e.Message, e.Err)
}

func NewValidation(field, message string) *Error {
	return &Error{Kind: Validation, Field: field, Message: message}
}

func NewDuplicate(entity Entity) *Error {
	return &Error{Kind: Duplicate, Entity: entity, Message: duplicateMessages[entity]}
}

func NewNotFound(entity Entity) *Error {
	return &Error{Kind: NotFound, Entity: entity, Message: notFoundMessages[entity]}
}

func NewUnexpected(entity Entity, err error) *Error {
	return &Error{Kind: Unexpected, Entity: entity, Message: GenericMessage, Err: err}
}

var duplicateMessages = map[Entity]string{
	EntityUser:     "usuário já existe",
	EntityCategory: "essa categoria já existe",
	EntityProduct:  "esse produto já existe",
}

var notFoundMessages = map[Entity]string{
	EntityUser:     "usuário não encontrado",
	EntityCategory: "categoria não encontrada",
	EntityProduct:  "produto não encontrado",
}

// KindOf reports the taxonomy kind of err, or Unknown.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return Unknown
}

// As is a shorthand for errors.As with *Error.
func As(err error) (*Error, bool) {
	var e *Error
	ok := errors.As(err, &e)
	return e, ok
}
