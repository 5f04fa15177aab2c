// Package ingest valida y persiste las notificaciones enviadas por el companion app.
package ingest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/dropDatabas3/caixa/internal/domain/repository"
	"github.com/dropDatabas3/caixa/internal/observability/logger"
)

// ItemStore es lo único que el processor necesita del repositorio de inbox.
type ItemStore interface {
	Insert(ctx context.Context, it *repository.InboxItem) error
}

// Owner es el dueño de los items: el principal autenticado y el device del token.
type Owner struct {
	PrincipalID string
	DeviceID    string
}

// Receipt es el resultado de un submit exitoso.
type Receipt struct {
	ID        string
	ClientID  string
	Duplicate bool
}

// ItemResult es el resultado de un item dentro de un batch.
type ItemResult struct {
	ClientID string `json:"clientId,omitempty"`
	ServerID string `json:"serverId,omitempty"`
	Success  bool   `json:"success"`
	Error    string `json:"error,omitempty"`
}

// BatchOutcome agrega los resultados de un batch, en el orden de entrada.
type BatchOutcome struct {
	Total   int
	Success int
	Failed  int
	Results []ItemResult
}

// Summary es el mensaje humano del batch.
func (o BatchOutcome) Summary() string {
	msg := fmt.Sprintf("%d notificações processadas", o.Success)
	if o.Failed > 0 {
		msg += fmt.Sprintf(", %d falharam", o.Failed)
	}
	return msg
}

type Processor struct {
	items ItemStore
	dedup Deduplicator
	now   func() time.Time
	newID func() string
}

func NewProcessor(items ItemStore) *Processor {
	return &Processor{
		items: items,
		now:   time.Now,
		newID: func() string { return uuid.NewString() },
	}
}

// WithDeduplicator activa la deduplicación. Sin esto cada envío genera una fila.
func (p *Processor) WithDeduplicator(d Deduplicator) *Processor {
	p.dedup = d
	return p
}

// WithClock reemplaza el reloj (tests).
func (p *Processor) WithClock(now func() time.Time) *Processor {
	p.now = now
	return p
}

// Submit procesa un único item. Devuelve *ValidationError o *PersistenceError;
// en ambos casos no queda nada escrito.
func (p *Processor) Submit(ctx context.Context, owner Owner, payload *ItemPayload) (Receipt, error) {
	it, err := payload.Validate(false)
	if err != nil {
		return Receipt{}, err
	}
	return p.persist(ctx, owner, it)
}

// SubmitBatch procesa los items en orden y de forma independiente: la falla de uno
// queda en su resultado y se sigue con el siguiente. Nunca devuelve error.
func (p *Processor) SubmitBatch(ctx context.Context, owner Owner, raws []json.RawMessage) BatchOutcome {
	out := BatchOutcome{Total: len(raws), Results: make([]ItemResult, 0, len(raws))}
	log := logger.From(ctx)

	for i, raw := range raws {
		res := p.submitOne(ctx, owner, raw)
		if res.Success {
			out.Success++
		} else {
			out.Failed++
			log.Debug("batch item rejected",
				logger.ItemIndex(i), logger.ClientItemID(res.ClientID), logger.String("reason", res.Error))
		}
		out.Results = append(out.Results, res)
	}
	return out
}

func (p *Processor) submitOne(ctx context.Context, owner Owner, raw json.RawMessage) ItemResult {
	payload, err := DecodeItem(raw)
	if err != nil {
		return ItemResult{ClientID: clientIDOf(raw), Error: clientMessage(err)}
	}
	var res ItemResult
	if payload.ClientID != nil {
		res.ClientID = *payload.ClientID
	}
	it, err := payload.Validate(true)
	if err != nil {
		res.Error = clientMessage(err)
		return res
	}
	rc, err := p.persist(ctx, owner, it)
	if err != nil {
		res.Error = clientMessage(err)
		return res
	}
	res.ServerID = rc.ID
	res.Success = true
	return res
}

func (p *Processor) persist(ctx context.Context, owner Owner, it *Item) (Receipt, error) {
	if it.DeviceID == nil && owner.DeviceID != "" {
		d := owner.DeviceID
		it.DeviceID = &d
	}

	var key NaturalKey
	if p.dedup != nil {
		key = KeyFor(owner.PrincipalID, it)
		existing, err := p.dedup.Lookup(ctx, key)
		if err != nil {
			logger.From(ctx).Warn("dedup lookup failed", logger.Err(err))
		} else if existing != "" {
			return Receipt{ID: existing, ClientID: it.ClientID, Duplicate: true}, nil
		}
	}

	now := p.now().UTC()
	row := &repository.InboxItem{
		ID:                    p.newID(),
		PrincipalID:           owner.PrincipalID,
		SourceApp:             it.SourceApp,
		SourceAppName:         it.SourceAppName,
		DeviceID:              it.DeviceID,
		OriginalTitle:         it.OriginalTitle,
		OriginalText:          it.OriginalText,
		NotificationTimestamp: it.NotificationTimestamp,
		ParsedName:            it.ParsedName,
		ParsedAmount:          it.ParsedAmount,
		ParsedDate:            it.ParsedDate,
		ParsedCardLastDigits:  it.ParsedCardLastDigits,
		ParsedTransactionType: it.ParsedTransactionType,
		Status:                repository.InboxPending,
		CreatedAt:             now,
		UpdatedAt:             now,
	}
	if err := p.items.Insert(ctx, row); err != nil {
		logger.From(ctx).Error("inbox insert failed",
			logger.PrincipalID(owner.PrincipalID), logger.ClientItemID(it.ClientID), logger.Err(err))
		return Receipt{}, &PersistenceError{Err: err}
	}

	if p.dedup != nil {
		if err := p.dedup.Remember(ctx, key, row.ID); err != nil {
			logger.From(ctx).Warn("dedup remember failed", logger.Err(err))
		}
	}
	return Receipt{ID: row.ID, ClientID: it.ClientID}, nil
}

func clientMessage(err error) string {
	var ve *ValidationError
	if errors.As(err, &ve) {
		return ve.Message
	}
	return MsgPersistItem
}

// clientIDOf intenta rescatar el clientId de un item que no decodifica,
// para que el cliente pueda correlacionar el error.
func clientIDOf(raw json.RawMessage) string {
	var probe struct {
		ClientID json.RawMessage `json:"clientId"`
	}
	if json.Unmarshal(raw, &probe) != nil {
		return ""
	}
	var s string
	if json.Unmarshal(probe.ClientID, &s) != nil {
		return ""
	}
	return s
}
