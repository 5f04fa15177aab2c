// Package errors define el error HTTP estándar del servicio y cómo se serializa.
package errors

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
)

// AppError es el error que llega a la capa HTTP.
// Message es lo único que ve el cliente; Err queda para logs.
type AppError struct {
	Code       string
	Message    string
	HTTPStatus int
	// RetryAfter en segundos; solo para 429.
	RetryAfter int
	Err        error
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error { return e.Err }

func New(status int, code, message string) *AppError {
	return &AppError{Code: code, Message: message, HTTPStatus: status}
}

// WithMessage devuelve una COPIA con otro mensaje (ej: el de una validación).
func (e *AppError) WithMessage(msg string) *AppError {
	cp := *e
	cp.Message = msg
	return &cp
}

// WithCause devuelve una COPIA con la causa original.
func (e *AppError) WithCause(err error) *AppError {
	cp := *e
	cp.Err = err
	return &cp
}

// WithRetryAfter devuelve una COPIA con retryAfter en segundos.
func (e *AppError) WithRetryAfter(seconds int) *AppError {
	cp := *e
	cp.RetryAfter = seconds
	return &cp
}

// FromError convierte cualquier error en AppError; lo desconocido es 500.
func FromError(err error) *AppError {
	if appErr, ok := err.(*AppError); ok {
		return appErr
	}
	return ErrInternal.WithCause(err)
}

type errorResponse struct {
	Error      string `json:"error"`
	RetryAfter int    `json:"retryAfter,omitempty"`
}

// WriteError escribe {error} o {error, retryAfter} con el status del AppError.
func WriteError(w http.ResponseWriter, err error) {
	appErr := FromError(err)

	if appErr.RetryAfter > 0 {
		w.Header().Set("Retry-After", strconv.Itoa(appErr.RetryAfter))
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(appErr.HTTPStatus)
	_ = json.NewEncoder(w).Encode(errorResponse{Error: appErr.Message, RetryAfter: appErr.RetryAfter})
}

var (
	ErrInvalidJSON      = New(http.StatusBadRequest, "INVALID_JSON", "JSON inválido")
	ErrValidation       = New(http.StatusBadRequest, "VALIDATION", "Dados inválidos")
	ErrBodyTooLarge     = New(http.StatusRequestEntityTooLarge, "BODY_TOO_LARGE", "Payload muito grande")
	ErrTokenMissing     = New(http.StatusUnauthorized, "TOKEN_MISSING", "Token não fornecido")
	ErrTokenInvalid     = New(http.StatusUnauthorized, "TOKEN_INVALID", "Token inválido ou expirado")
	ErrRateLimited      = New(http.StatusTooManyRequests, "RATE_LIMITED", "Limite de requisições excedido")
	ErrInternal         = New(http.StatusInternalServerError, "INTERNAL", "Erro interno do servidor")
	ErrIngestFailed     = New(http.StatusInternalServerError, "INGEST_FAILED", "Erro ao processar notificação")
	ErrNotFound         = New(http.StatusNotFound, "NOT_FOUND", "Recurso não encontrado")
	ErrMethodNotAllowed = New(http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "Método não permitido")
	ErrUnavailable      = New(http.StatusServiceUnavailable, "UNAVAILABLE", "Serviço indisponível")
)
