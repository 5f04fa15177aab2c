// Package handlers contiene los endpoints HTTP de ingesta y salud.
package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	httperrors "github.com/dropDatabas3/caixa/internal/http/errors"
	"github.com/dropDatabas3/caixa/internal/http/helpers"
	mw "github.com/dropDatabas3/caixa/internal/http/middlewares"
	"github.com/dropDatabas3/caixa/internal/ingest"
	"github.com/dropDatabas3/caixa/internal/metrics"
	"github.com/dropDatabas3/caixa/internal/observability/logger"
	"github.com/dropDatabas3/caixa/internal/rate"
)

const MsgReceived = "Notificação recebida"

// Ingestor es lo que los handlers usan de ingest.Processor.
type Ingestor interface {
	Submit(ctx context.Context, owner ingest.Owner, payload *ingest.ItemPayload) (ingest.Receipt, error)
	SubmitBatch(ctx context.Context, owner ingest.Owner, raws []json.RawMessage) ingest.BatchOutcome
}

type Inbox struct {
	ingest        Ingestor
	maxBodyBytes  int64
	maxBatchItems int
}

func NewInbox(in Ingestor, maxBodyBytes int64, maxBatchItems int) *Inbox {
	return &Inbox{ingest: in, maxBodyBytes: maxBodyBytes, maxBatchItems: maxBatchItems}
}

type singleResponse struct {
	ID       string `json:"id"`
	ClientID string `json:"clientId,omitempty"`
	Message  string `json:"message"`
}

type batchResponse struct {
	Message string              `json:"message"`
	Total   int                 `json:"total"`
	Success int                 `json:"success"`
	Failed  int                 `json:"failed"`
	Results []ingest.ItemResult `json:"results"`
}

// Single atiende POST /inbox.
func (h *Inbox) Single(w http.ResponseWriter, r *http.Request) {
	owner, ok := ownerFrom(r)
	if !ok {
		httperrors.WriteError(w, httperrors.ErrTokenMissing)
		return
	}
	body, err := helpers.ReadBody(w, r, h.maxBodyBytes)
	if err != nil {
		httperrors.WriteError(w, err)
		return
	}

	payload, err := ingest.DecodeItem(body)
	if err == nil {
		var rc ingest.Receipt
		rc, err = h.ingest.Submit(r.Context(), owner, payload)
		if err == nil {
			metrics.RecordIngestItem(string(rate.ClassSingle), metrics.ItemStored)
			logger.From(r.Context()).Debug("inbox item stored",
				logger.Endpoint(string(rate.ClassSingle)), logger.ID(rc.ID), logger.ClientItemID(rc.ClientID))
			helpers.WriteJSON(w, http.StatusCreated, singleResponse{ID: rc.ID, ClientID: rc.ClientID, Message: MsgReceived})
			return
		}
	}

	var ve *ingest.ValidationError
	if errors.As(err, &ve) {
		metrics.RecordIngestItem(string(rate.ClassSingle), metrics.ItemInvalid)
		logger.From(r.Context()).Info("inbox item rejected", logger.String("field", ve.Field), logger.String("reason", ve.Message))
		httperrors.WriteError(w, httperrors.ErrValidation.WithMessage(ve.Message).WithCause(ve))
		return
	}
	metrics.RecordIngestItem(string(rate.ClassSingle), metrics.ItemFailed)
	httperrors.WriteError(w, httperrors.ErrIngestFailed.WithMessage(ingest.MsgPersistSingle).WithCause(err))
}

// Batch atiende POST /inbox/batch. Con el envelope válido responde 201 aunque fallen todos los items.
func (h *Inbox) Batch(w http.ResponseWriter, r *http.Request) {
	owner, ok := ownerFrom(r)
	if !ok {
		httperrors.WriteError(w, httperrors.ErrTokenMissing)
		return
	}
	body, err := helpers.ReadBody(w, r, h.maxBodyBytes)
	if err != nil {
		httperrors.WriteError(w, err)
		return
	}
	items, err := h.decodeEnvelope(body)
	if err != nil {
		logger.From(r.Context()).Info("batch envelope rejected", logger.Err(err))
		httperrors.WriteError(w, err)
		return
	}

	metrics.ObserveBatchSize(len(items))
	out := h.ingest.SubmitBatch(r.Context(), owner, items)
	for _, res := range out.Results {
		switch {
		case res.Success:
			metrics.RecordIngestItem(string(rate.ClassBatch), metrics.ItemStored)
		case res.Error == ingest.MsgPersistItem:
			metrics.RecordIngestItem(string(rate.ClassBatch), metrics.ItemFailed)
		default:
			metrics.RecordIngestItem(string(rate.ClassBatch), metrics.ItemInvalid)
		}
	}
	logger.From(r.Context()).Info("batch processed",
		logger.Count(out.Total), logger.Int("success", out.Success), logger.Int("failed", out.Failed))

	helpers.WriteJSON(w, http.StatusCreated, batchResponse{
		Message: out.Summary(),
		Total:   out.Total,
		Success: out.Success,
		Failed:  out.Failed,
		Results: out.Results,
	})
}

// decodeEnvelope valida {"items": [...]} sin mirar el contenido de cada item.
func (h *Inbox) decodeEnvelope(body []byte) ([]json.RawMessage, error) {
	var env struct {
		Items json.RawMessage `json:"items"`
	}
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, httperrors.ErrInvalidJSON.WithCause(err)
	}
	if len(env.Items) == 0 || string(env.Items) == "null" {
		return nil, httperrors.ErrValidation.WithMessage("items é obrigatório")
	}
	var items []json.RawMessage
	if err := json.Unmarshal(env.Items, &items); err != nil {
		return nil, httperrors.ErrValidation.WithMessage("items deve ser uma lista")
	}
	if len(items) == 0 {
		return nil, httperrors.ErrValidation.WithMessage("items não pode ser vazio")
	}
	if h.maxBatchItems > 0 && len(items) > h.maxBatchItems {
		return nil, httperrors.ErrValidation.WithMessage(fmt.Sprintf("Máximo de %d itens por lote", h.maxBatchItems))
	}
	return items, nil
}

func ownerFrom(r *http.Request) (ingest.Owner, bool) {
	p, ok := mw.GetPrincipal(r.Context())
	if !ok {
		return ingest.Owner{}, false
	}
	return ingest.Owner{PrincipalID: p.PrincipalID, DeviceID: p.DeviceID}, true
}
