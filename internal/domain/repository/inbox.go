package repository

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// InboxStatus es el estado de un item de la caixa de entrada.
type InboxStatus string

const (
	InboxPending   InboxStatus = "pending"
	InboxProcessed InboxStatus = "processed"
	InboxDiscarded InboxStatus = "discarded"
)

// Terminal indica si el estado ya no admite transiciones.
func (s InboxStatus) Terminal() bool {
	return s == InboxProcessed || s == InboxDiscarded
}

// Valid retorna true si el estado es conocido.
func (s InboxStatus) Valid() bool {
	switch s {
	case InboxPending, InboxProcessed, InboxDiscarded:
		return true
	}
	return false
}

// InboxItem es una notificación capturada por el companion app, a la espera de conciliación.
type InboxItem struct {
	ID          string
	PrincipalID string

	SourceApp     string
	SourceAppName *string
	DeviceID      *string

	OriginalTitle         *string
	OriginalText          string
	NotificationTimestamp time.Time

	ParsedName            *string
	ParsedAmount          *decimal.Decimal
	ParsedDate            *time.Time
	ParsedCardLastDigits  *string
	ParsedTransactionType *string

	Status        InboxStatus
	LancamentoID  *string
	ProcessedAt   *time.Time
	DiscardedAt   *time.Time
	DiscardReason *string
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// MarkProcessed pasa el item a processed vinculándolo a un lançamento.
// Solo válido desde pending.
func (it *InboxItem) MarkProcessed(lancamentoID string, at time.Time) error {
	if it.Status.Terminal() {
		return ErrTerminalState
	}
	if lancamentoID == "" {
		return ErrInvalidInput
	}
	it.Status = InboxProcessed
	it.LancamentoID = &lancamentoID
	it.ProcessedAt = &at
	it.UpdatedAt = at
	return nil
}

// MarkDiscarded pasa el item a discarded con un motivo opcional.
// Solo válido desde pending.
func (it *InboxItem) MarkDiscarded(reason string, at time.Time) error {
	if it.Status.Terminal() {
		return ErrTerminalState
	}
	it.Status = InboxDiscarded
	it.DiscardedAt = &at
	if reason != "" {
		it.DiscardReason = &reason
	}
	it.UpdatedAt = at
	return nil
}

// InboxRepository define operaciones sobre la caixa de entrada.
type InboxRepository interface {
	// Insert persiste un item nuevo. Cada insert es atómico por sí mismo.
	Insert(ctx context.Context, it *InboxItem) error

	// Get busca un item por ID. Retorna ErrNotFound si no existe.
	Get(ctx context.Context, id string) (*InboxItem, error)

	// ListPending lista items pending de un principal, más antiguos primero.
	// limit <= 0 significa sin límite.
	ListPending(ctx context.Context, principalID string, limit int) ([]InboxItem, error)

	// MarkProcessed es la transición pending → processed (update condicional).
	// Retorna ErrNotFound si no existe y ErrTerminalState si ya no está pending.
	MarkProcessed(ctx context.Context, id, lancamentoID string, at time.Time) error

	// MarkDiscarded es la transición pending → discarded (update condicional).
	// Retorna ErrNotFound si no existe y ErrTerminalState si ya no está pending.
	MarkDiscarded(ctx context.Context, id, reason string, at time.Time) error
}

// Store agrupa los repositorios de un backend concreto.
type Store interface {
	Credentials() CredentialRepository
	Inbox() InboxRepository
	Ping(ctx context.Context) error
	Close() error
}
