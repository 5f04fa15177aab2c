package ingest

import (
	"bytes"
	"encoding/json"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// ItemPayload es el item tal como llega por la red.
// Los campos con formato alternativo (fecha/número) se guardan crudos y se
// interpretan en Validate.
type ItemPayload struct {
	ClientID              *string         `json:"clientId,omitempty"`
	SourceApp             string          `json:"sourceApp"`
	SourceAppName         *string         `json:"sourceAppName,omitempty"`
	DeviceID              *string         `json:"deviceId,omitempty"`
	OriginalTitle         *string         `json:"originalTitle,omitempty"`
	OriginalText          string          `json:"originalText"`
	NotificationTimestamp json.RawMessage `json:"notificationTimestamp"`
	ParsedName            *string         `json:"parsedName,omitempty"`
	ParsedAmount          json.RawMessage `json:"parsedAmount,omitempty"`
	ParsedDate            json.RawMessage `json:"parsedDate,omitempty"`
	ParsedCardLastDigits  *string         `json:"parsedCardLastDigits,omitempty"`
	ParsedTransactionType *string         `json:"parsedTransactionType,omitempty"`
}

// DecodeItem interpreta un item. Un tipo incorrecto en un campo se reporta como
// ValidationError de ese campo; JSON roto como ValidationError sin campo.
func DecodeItem(raw []byte) (*ItemPayload, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return nil, invalid("", "Item deve ser um objeto")
	}
	var p ItemPayload
	if err := json.Unmarshal(trimmed, &p); err != nil {
		var te *json.UnmarshalTypeError
		if errors.As(err, &te) && te.Field != "" {
			return nil, invalid(te.Field, te.Field+" deve ser texto")
		}
		return nil, &ValidationError{Message: "JSON inválido"}
	}
	return &p, nil
}

// Item es un payload ya validado y normalizado.
type Item struct {
	ClientID              string
	SourceApp             string
	SourceAppName         *string
	DeviceID              *string
	OriginalTitle         *string
	OriginalText          string
	NotificationTimestamp time.Time
	ParsedName            *string
	ParsedAmount          *decimal.Decimal
	ParsedDate            *time.Time
	ParsedCardLastDigits  *string
	ParsedTransactionType *string
}

// Validate chequea las restricciones en orden y devuelve la primera violada.
// requireClientID se usa en batch, donde cada item necesita su correlación.
func (p *ItemPayload) Validate(requireClientID bool) (*Item, error) {
	if strings.TrimSpace(p.SourceApp) == "" {
		return nil, invalid("sourceApp", "sourceApp é obrigatório")
	}
	if strings.TrimSpace(p.OriginalText) == "" {
		return nil, invalid("originalText", "originalText é obrigatório")
	}
	if isAbsent(p.NotificationTimestamp) {
		return nil, invalid("notificationTimestamp", "notificationTimestamp é obrigatório")
	}
	ts, ok := parseTimestamp(p.NotificationTimestamp, false)
	if !ok {
		return nil, invalid("notificationTimestamp", "notificationTimestamp deve ser uma data válida")
	}

	it := &Item{
		SourceApp:             p.SourceApp,
		SourceAppName:         p.SourceAppName,
		DeviceID:              nonEmpty(p.DeviceID),
		OriginalTitle:         p.OriginalTitle,
		OriginalText:          p.OriginalText,
		NotificationTimestamp: ts,
		ParsedName:            p.ParsedName,
		ParsedCardLastDigits:  p.ParsedCardLastDigits,
		ParsedTransactionType: p.ParsedTransactionType,
	}

	if !isAbsent(p.ParsedAmount) {
		amt, err := parseAmount(p.ParsedAmount)
		if err != nil {
			return nil, err
		}
		it.ParsedAmount = &amt
	}
	if !isAbsent(p.ParsedDate) {
		d, ok := parseTimestamp(p.ParsedDate, true)
		if !ok {
			return nil, invalid("parsedDate", "parsedDate deve ser uma data válida")
		}
		it.ParsedDate = &d
	}

	if p.ClientID != nil {
		it.ClientID = *p.ClientID
	}
	if requireClientID && strings.TrimSpace(it.ClientID) == "" {
		return nil, invalid("clientId", "clientId é obrigatório")
	}
	return it, nil
}

var maxAmount = decimal.New(1, 12)

func parseAmount(raw json.RawMessage) (decimal.Decimal, error) {
	s := string(bytes.TrimSpace(raw))
	if s == "" || s[0] == '"' || s == "true" || s == "false" || s[0] == '{' || s[0] == '[' {
		return decimal.Decimal{}, invalid("parsedAmount", "parsedAmount deve ser um número")
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Decimal{}, invalid("parsedAmount", "parsedAmount deve ser um número")
	}
	if d.IsNegative() {
		return decimal.Decimal{}, invalid("parsedAmount", "parsedAmount não pode ser negativo")
	}
	// cabe en NUMERIC(14,2): hasta 12 dígitos enteros y 2 decimales.
	// El exponente va primero: Cmp reescala al exponente menor.
	if exp := d.Exponent(); exp < -2 || exp > 12 || d.GreaterThanOrEqual(maxAmount) {
		return decimal.Decimal{}, invalid("parsedAmount", "parsedAmount fora do intervalo permitido")
	}
	return d, nil
}

// parseTimestamp acepta RFC 3339 o epoch en milisegundos. dateOnly habilita "2006-01-02".
func parseTimestamp(raw json.RawMessage, dateOnly bool) (time.Time, bool) {
	s := string(bytes.TrimSpace(raw))
	if s == "" {
		return time.Time{}, false
	}
	if s[0] == '"' {
		var str string
		if err := json.Unmarshal(raw, &str); err != nil {
			return time.Time{}, false
		}
		str = strings.TrimSpace(str)
		if t, err := time.Parse(time.RFC3339Nano, str); err == nil {
			return t.UTC(), true
		}
		if dateOnly {
			if t, err := time.Parse(time.DateOnly, str); err == nil {
				return t, true
			}
		}
		return time.Time{}, false
	}
	ms, err := strconv.ParseInt(s, 10, 64)
	if err != nil || ms < 0 {
		return time.Time{}, false
	}
	return time.UnixMilli(ms).UTC(), true
}

func isAbsent(raw json.RawMessage) bool {
	s := bytes.TrimSpace(raw)
	return len(s) == 0 || string(s) == "null"
}

func nonEmpty(s *string) *string {
	if s == nil || *s == "" {
		return nil
	}
	return s
}
