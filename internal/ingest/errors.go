package ingest

import "fmt"

// ValidationError es la primera restricción violada por un item (o por el envelope).
// Message es el texto que ve el cliente.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return "validation: " + e.Message
	}
	return fmt.Sprintf("validation: %s: %s", e.Field, e.Message)
}

func invalid(field, msg string) *ValidationError {
	return &ValidationError{Field: field, Message: msg}
}

// PersistenceError envuelve una falla inesperada del store.
type PersistenceError struct {
	Err error
}

func (e *PersistenceError) Error() string { return "persistence: " + e.Err.Error() }
func (e *PersistenceError) Unwrap() error { return e.Err }

// Mensajes al cliente para fallas de persistencia. Nunca exponen la causa.
const (
	MsgPersistSingle = "Erro ao processar notificação"
	MsgPersistItem   = "Erro ao salvar notificação"
)
