package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/stripe/stripe-go/v79"
	"github.com/stripe/stripe-go/v79/client"
	"github.com/stripe/stripe-go/v79/webhook"

	"github.com/ignatzorin/creator-settlement/internal/domain/valueobject"
)

// StripeSignatureHeader - заголовок подписи вебхуков Stripe.
const StripeSignatureHeader = "Stripe-Signature"

// StripeProvider - боевой адаптер поверх stripe-go.
type StripeProvider struct {
	api           *client.API
	webhookSecret string
}

// NewStripeProvider создаёт адаптер Stripe.
func NewStripeProvider(secretKey, webhookSecret string) *StripeProvider {
	api := &client.API{}
	api.Init(secretKey, nil)
	return &StripeProvider{api: api, webhookSecret: webhookSecret}
}

func (p *StripeProvider) Name() string { return "stripe" }

func (p *StripeProvider) CreateIntent(ctx context.Context, req IntentRequest) (*Intent, error) {
	params := &stripe.PaymentIntentParams{
		Amount:   stripe.Int64(valueobject.MinorUnits(req.Amount)),
		Currency: stripe.String(strings.ToLower(req.Currency)),
		AutomaticPaymentMethods: &stripe.PaymentIntentAutomaticPaymentMethodsParams{
			Enabled: stripe.Bool(true),
		},
	}
	params.Context = ctx
	params.AddMetadata("order_id", req.OrderID.String())
	for k, v := range req.Metadata {
		params.AddMetadata(k, v)
	}
	if req.IdempotencyKey != "" {
		params.SetIdempotencyKey(req.IdempotencyKey)
	}

	pi, err := p.api.PaymentIntents.New(params)
	if err != nil {
		return nil, wrapStripeError("create intent", err)
	}
	return intentFromStripe(pi), nil
}

func (p *StripeProvider) RetrieveIntent(ctx context.Context, intentID string) (*Intent, error) {
	params := &stripe.PaymentIntentParams{}
	params.Context = ctx

	pi, err := p.api.PaymentIntents.Get(intentID, params)
	if err != nil {
		return nil, wrapStripeError("retrieve intent", err)
	}
	return intentFromStripe(pi), nil
}

func (p *StripeProvider) Refund(ctx context.Context, req RefundRequest) (*Refund, error) {
	params := &stripe.RefundParams{
		PaymentIntent: stripe.String(req.PaymentIntentID),
	}
	if req.Amount != nil {
		params.Amount = stripe.Int64(valueobject.MinorUnits(*req.Amount))
	}
	params.Context = ctx
	if req.IdempotencyKey != "" {
		params.SetIdempotencyKey(req.IdempotencyKey)
	}

	r, err := p.api.Refunds.New(params)
	if err != nil {
		return nil, wrapStripeError("refund", err)
	}
	raw, _ := json.Marshal(r)
	return &Refund{ID: r.ID, Status: string(r.Status), Raw: raw}, nil
}

func (p *StripeProvider) ParseWebhook(headers http.Header, body []byte) (*Event, error) {
	event, err := webhook.ConstructEventWithOptions(body, headers.Get(StripeSignatureHeader), p.webhookSecret,
		webhook.ConstructEventOptions{IgnoreAPIVersionMismatch: true})
	if err != nil {
		return nil, errors.Join(ErrInvalidSignature, err)
	}

	out := &Event{
		ID:      event.ID,
		Type:    string(event.Type),
		Payload: append(json.RawMessage(nil), body...),
	}
	if event.Data != nil {
		var obj struct {
			ID string `json:"id"`
		}
		if err := json.Unmarshal(event.Data.Raw, &obj); err == nil {
			out.PaymentIntentID = obj.ID
		}
	}
	return out, nil
}

func intentFromStripe(pi *stripe.PaymentIntent) *Intent {
	raw, _ := json.Marshal(pi)
	return &Intent{
		ID:           pi.ID,
		ClientSecret: pi.ClientSecret,
		Status:       string(pi.Status),
		Raw:          raw,
	}
}

func wrapStripeError(op string, err error) error {
	var stripeErr *stripe.Error
	if errors.As(err, &stripeErr) {
		if stripeErr.HTTPStatusCode == http.StatusNotFound {
			return fmt.Errorf("stripe %s: %w: %s", op, ErrIntentNotFound, stripeErr.Msg)
		}
		return fmt.Errorf("stripe %s: %s (%s): %w", op, stripeErr.Msg, stripeErr.Code, err)
	}
	return fmt.Errorf("stripe %s: %w", op, err)
}

var (
	_ Provider = (*StripeProvider)(nil)
	_ Provider = (*MockProvider)(nil)
)
