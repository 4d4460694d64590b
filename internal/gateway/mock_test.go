package gateway

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ignatzorin/creator-settlement/internal/domain/valueobject"
)

const testSecret = "whsec_test"

func signedHeaders(t *testing.T, ts time.Time, body []byte) http.Header {
	t.Helper()
	h := http.Header{}
	h.Set(MockSignatureHeader, MockSignatureHeaderValue([]byte(testSecret), ts.Unix(), body))
	return h
}

func TestMockProvider_ParseWebhook_Valid(t *testing.T) {
	p := NewMockProvider(testSecret)
	body := MockEventBody("evt_1", EventPaymentSucceeded, "pi_123")

	event, err := p.ParseWebhook(signedHeaders(t, time.Now(), body), body)
	require.NoError(t, err)
	assert.Equal(t, "evt_1", event.ID)
	assert.Equal(t, EventPaymentSucceeded, event.Type)
	assert.Equal(t, "pi_123", event.PaymentIntentID)

	outcome, ok := event.Outcome()
	require.True(t, ok)
	assert.Equal(t, valueobject.OutcomeSucceeded, outcome)
}

func TestMockProvider_ParseWebhook_Rejects(t *testing.T) {
	p := NewMockProvider(testSecret)
	body := MockEventBody("evt_1", EventPaymentSucceeded, "pi_123")

	tests := []struct {
		name    string
		headers http.Header
		body    []byte
	}{
		{name: "no header", headers: http.Header{}, body: body},
		{name: "tampered body", headers: signedHeaders(t, time.Now(), body), body: MockEventBody("evt_1", EventPaymentSucceeded, "pi_other")},
		{name: "stale timestamp", headers: signedHeaders(t, time.Now().Add(-10*time.Minute), body), body: body},
		{name: "garbage header", headers: http.Header{MockSignatureHeader: {"t=abc,v1=zz"}}, body: body},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := p.ParseWebhook(tt.headers, tt.body)
			assert.ErrorIs(t, err, ErrInvalidSignature)
		})
	}
}

func TestMockProvider_ParseWebhook_WrongSecret(t *testing.T) {
	p := NewMockProvider("another")
	body := MockEventBody("evt_1", EventPaymentFailed, "pi_1")

	_, err := p.ParseWebhook(signedHeaders(t, time.Now(), body), body)
	assert.ErrorIs(t, err, ErrInvalidSignature)
}

func TestMockProvider_CreateIntent_Idempotent(t *testing.T) {
	p := NewMockProvider(testSecret)
	req := IntentRequest{OrderID: uuid.New(), Amount: 105, Currency: "usd", IdempotencyKey: "order-1-attempt-1"}

	first, err := p.CreateIntent(context.Background(), req)
	require.NoError(t, err)
	second, err := p.CreateIntent(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, first.ClientSecret, second.ClientSecret)

	req.IdempotencyKey = "order-1-attempt-2"
	third, err := p.CreateIntent(context.Background(), req)
	require.NoError(t, err)
	assert.NotEqual(t, first.ID, third.ID)

	got, err := p.RetrieveIntent(context.Background(), first.ID)
	require.NoError(t, err)
	assert.Equal(t, first.ClientSecret, got.ClientSecret)
}

func TestMockProvider_Refund(t *testing.T) {
	p := NewMockProvider(testSecret)

	_, err := p.Refund(context.Background(), RefundRequest{PaymentIntentID: "pi_missing"})
	assert.ErrorIs(t, err, ErrIntentNotFound)

	intent, err := p.CreateIntent(context.Background(), IntentRequest{OrderID: uuid.New(), Amount: 10, Currency: "usd"})
	require.NoError(t, err)
	r, err := p.Refund(context.Background(), RefundRequest{PaymentIntentID: intent.ID})
	require.NoError(t, err)
	assert.Equal(t, "succeeded", r.Status)
	assert.Len(t, p.Refunds(), 1)
}

func TestEvent_Outcome_Unknown(t *testing.T) {
	e := &Event{Type: "charge.dispute.created"}
	_, ok := e.Outcome()
	assert.False(t, ok)
}
