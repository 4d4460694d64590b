// Package gateway - адаптер внешнего платёжного процессора.
package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/google/uuid"

	"github.com/ignatzorin/creator-settlement/internal/domain/valueobject"
)

// Типы событий вебхука (в нотации Stripe, мок-провайдер использует те же).
const (
	EventPaymentSucceeded = "payment_intent.succeeded"
	EventPaymentFailed    = "payment_intent.payment_failed"
	EventPaymentCanceled  = "payment_intent.canceled"
)

// ErrInvalidSignature - подпись вебхука не совпала или устарела.
var ErrInvalidSignature = errors.New("gateway: invalid webhook signature")

// ErrIntentNotFound - шлюз не знает такого намерения.
var ErrIntentNotFound = errors.New("gateway: payment intent not found")

// IntentRequest - запрос на создание платёжного намерения.
type IntentRequest struct {
	OrderID        uuid.UUID
	Amount         float64
	Currency       string
	IdempotencyKey string
	Metadata       map[string]string
}

// Intent - платёжное намерение на стороне шлюза.
type Intent struct {
	ID           string
	ClientSecret string
	Status       string
	Raw          json.RawMessage
}

// RefundRequest - запрос на возврат. Amount == nil означает полный возврат.
type RefundRequest struct {
	PaymentIntentID string
	Amount          *float64
	IdempotencyKey  string
}

// Refund - результат возврата.
type Refund struct {
	ID     string
	Status string
	Raw    json.RawMessage
}

// Event - проверенное событие вебхука.
type Event struct {
	ID              string
	Type            string
	PaymentIntentID string
	Payload         json.RawMessage
}

// Outcome возвращает исход платежа для известных типов событий.
func (e *Event) Outcome() (valueobject.PaymentOutcome, bool) {
	switch e.Type {
	case EventPaymentSucceeded:
		return valueobject.OutcomeSucceeded, true
	case EventPaymentFailed:
		return valueobject.OutcomeFailed, true
	case EventPaymentCanceled:
		return valueobject.OutcomeCanceled, true
	}
	return "", false
}

// Provider - контракт платёжного шлюза.
type Provider interface {
	Name() string
	CreateIntent(ctx context.Context, req IntentRequest) (*Intent, error)
	RetrieveIntent(ctx context.Context, intentID string) (*Intent, error)
	Refund(ctx context.Context, req RefundRequest) (*Refund, error)
	// ParseWebhook проверяет подпись до разбора тела.
	ParseWebhook(headers http.Header, body []byte) (*Event, error)
}

// envelope - общая оболочка события: id, type и вложенный объект.
type envelope struct {
	ID   string `json:"id"`
	Type string `json:"type"`
	Data struct {
		Object struct {
			ID string `json:"id"`
		} `json:"object"`
	} `json:"data"`
}

func parseEnvelope(body []byte) (*Event, error) {
	var env envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, errors.Join(ErrInvalidSignature, err)
	}
	if env.ID == "" || env.Type == "" {
		return nil, errors.Join(ErrInvalidSignature, errors.New("event id and type are required"))
	}
	return &Event{
		ID:              env.ID,
		Type:            env.Type,
		PaymentIntentID: env.Data.Object.ID,
		Payload:         append(json.RawMessage(nil), body...),
	}, nil
}
