package repository

import "errors"

var (
	// ErrNotFound indica que el recurso solicitado no existe.
	ErrNotFound = errors.New("not found")

	// ErrConflict indica un conflicto (ej: duplicado, constraint violation).
	ErrConflict = errors.New("conflict")

	// ErrTerminalState indica que el item de la inbox ya fue procesado o descartado.
	ErrTerminalState = errors.New("inbox item already in terminal state")

	// ErrInvalidInput indica que los datos de entrada son inválidos.
	ErrInvalidInput = errors.New("invalid input")
)

// IsNotFound verifica si el error es ErrNotFound.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsTerminalState verifica si el error es ErrTerminalState.
func IsTerminalState(err error) bool {
	return errors.Is(err, ErrTerminalState)
}
