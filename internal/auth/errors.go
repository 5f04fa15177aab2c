package auth

import "fmt"

// Kind clasifica por qué falló la autenticación. Al cliente siempre se le responde
// el mismo 401 genérico; el Kind queda para logs y métricas.
type Kind string

const (
	MissingToken     Kind = "missing_token"
	MalformedToken   Kind = "malformed_token"
	ExpiredToken     Kind = "expired_token"
	SignatureInvalid Kind = "signature_invalid"
	Revoked          Kind = "revoked"
	NotFound         Kind = "not_found"
)

// Error es la falla de autenticación tipada.
type Error struct {
	Kind Kind
	Err  error // causa (puede ser nil)
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("auth: %s: %v", e.Kind, e.Err)
	}
	return "auth: " + string(e.Kind)
}

func (e *Error) Unwrap() error { return e.Err }

func fail(kind Kind, cause error) *Error {
	return &Error{Kind: kind, Err: cause}
}
