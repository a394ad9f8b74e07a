package helpers

import (
	"fmt"
	"strings"

	"golang.org/x/crypto/bcrypt"
)

// CredentialScheme decides how user credentials are stored and compared.
// "plain" keeps the historical behaviour of this system: the credential is
// stored as typed and compared by exact equality. It is a known weakness;
// "bcrypt" is available for new deployments.
type CredentialScheme string

const (
	CredentialPlain  CredentialScheme = "plain"
	CredentialBcrypt CredentialScheme = "bcrypt"
)

// ParseCredentialScheme accepts "plain" or "bcrypt" (case-insensitive).
func ParseCredentialScheme(s string) (CredentialScheme, error) {
	switch CredentialScheme(strings.ToLower(strings.TrimSpace(s))) {
	case CredentialPlain, "":
		return CredentialPlain, nil
	case CredentialBcrypt:
		return CredentialBcrypt, nil
	default:
		return "", fmt.Errorf("unknown credential scheme %q", s)
	}
}

// Hashes reports whether Seal transforms the credential.
func (s CredentialScheme) Hashes() bool {
	return s == CredentialBcrypt
}

// Seal turns a typed credential into its stored form.
func (s CredentialScheme) Seal(plain string) (string, error) {
	if s.Hashes() {
		return HashPassword(plain)
	}
	return plain, nil
}

// Matches compares a stored credential with a candidate typed at login.
func (s CredentialScheme) Matches(stored, candidate string) bool {
	if s.Hashes() {
		return CompareHashAndPassword(stored, candidate)
	}
	return stored == candidate
}

// HashPassword hashes the plain text password using bcrypt
func HashPassword(plain string) (string, error) {
	b, err := bcrypt.GenerateFromPassword([]byte(plain), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// CompareHashAndPassword compares a bcrypt hash with a plain password
func CompareHashAndPassword(hash string, plain string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(plain)) == nil
}
