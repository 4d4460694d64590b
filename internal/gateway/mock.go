package gateway

import (
	"context"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"
)

// MockSignatureHeader - заголовок подписи мок-провайдера.
const MockSignatureHeader = "X-Mock-Signature"

// MockProvider - локальный шлюз для разработки и тестов.
// Вебхуки подписываются HMAC-SHA256 от "t.body", заголовок "t=<unix>,v1=<hex>".
type MockProvider struct {
	secret    []byte
	tolerance time.Duration
	now       func() time.Time

	mu        sync.Mutex
	intents   map[string]*Intent
	byIdemKey map[string]string
	refunds   []RefundRequest
}

// NewMockProvider создаёт мок-провайдер с общим секретом.
func NewMockProvider(secret string) *MockProvider {
	return &MockProvider{
		secret:    []byte(secret),
		tolerance: 5 * time.Minute,
		now:       time.Now,
		intents:   map[string]*Intent{},
		byIdemKey: map[string]string{},
	}
}

func (p *MockProvider) Name() string { return "mock" }

// CreateIntent возвращает одно и то же намерение для одного ключа идемпотентности.
func (p *MockProvider) CreateIntent(ctx context.Context, req IntentRequest) (*Intent, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	p.mu.Lock()
	defer p.mu.Unlock()

	if id, ok := p.byIdemKey[req.IdempotencyKey]; ok && req.IdempotencyKey != "" {
		intent := *p.intents[id]
		return &intent, nil
	}

	id := "pi_mock_" + randomHex(12)
	raw, _ := json.Marshal(map[string]any{
		"id":       id,
		"amount":   req.Amount,
		"currency": req.Currency,
		"metadata": req.Metadata,
	})
	intent := &Intent{
		ID:           id,
		ClientSecret: id + "_secret_" + randomHex(8),
		Status:       "requires_payment_method",
		Raw:          raw,
	}
	p.intents[id] = intent
	if req.IdempotencyKey != "" {
		p.byIdemKey[req.IdempotencyKey] = id
	}
	out := *intent
	return &out, nil
}

func (p *MockProvider) RetrieveIntent(ctx context.Context, intentID string) (*Intent, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	p.mu.Lock()
	defer p.mu.Unlock()

	intent, ok := p.intents[intentID]
	if !ok {
		return nil, ErrIntentNotFound
	}
	out := *intent
	return &out, nil
}

func (p *MockProvider) Refund(ctx context.Context, req RefundRequest) (*Refund, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	p.mu.Lock()
	defer p.mu.Unlock()

	if _, ok := p.intents[req.PaymentIntentID]; !ok {
		return nil, ErrIntentNotFound
	}
	p.refunds = append(p.refunds, req)
	id := "re_mock_" + randomHex(12)
	raw, _ := json.Marshal(map[string]any{"id": id, "payment_intent": req.PaymentIntentID, "amount": req.Amount})
	return &Refund{ID: id, Status: "succeeded", Raw: raw}, nil
}

// Refunds возвращает принятые возвраты.
func (p *MockProvider) Refunds() []RefundRequest {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]RefundRequest(nil), p.refunds...)
}

func (p *MockProvider) ParseWebhook(headers http.Header, body []byte) (*Event, error) {
	if err := p.verify(headers.Get(MockSignatureHeader), body); err != nil {
		return nil, err
	}
	return parseEnvelope(body)
}

func (p *MockProvider) verify(header string, body []byte) error {
	var (
		ts  int64
		sig string
	)
	for _, part := range strings.Split(header, ",") {
		k, v, ok := strings.Cut(strings.TrimSpace(part), "=")
		if !ok {
			continue
		}
		switch k {
		case "t":
			n, err := strconv.ParseInt(v, 10, 64)
			if err != nil {
				return ErrInvalidSignature
			}
			ts = n
		case "v1":
			sig = v
		}
	}
	if ts == 0 || sig == "" {
		return ErrInvalidSignature
	}

	if age := p.now().Sub(time.Unix(ts, 0)); age > p.tolerance || age < -p.tolerance {
		return fmt.Errorf("%w: timestamp outside tolerance", ErrInvalidSignature)
	}

	expected := ComputeMockSignature(p.secret, ts, body)
	if !hmac.Equal([]byte(expected), []byte(sig)) {
		return ErrInvalidSignature
	}
	return nil
}

// ComputeMockSignature считает hex(HMAC-SHA256(secret, "t.body")).
func ComputeMockSignature(secret []byte, ts int64, body []byte) string {
	m := hmac.New(sha256.New, secret)
	m.Write([]byte(strconv.FormatInt(ts, 10)))
	m.Write([]byte("."))
	m.Write(body)
	return hex.EncodeToString(m.Sum(nil))
}

// MockSignatureHeaderValue собирает значение заголовка подписи.
func MockSignatureHeaderValue(secret []byte, ts int64, body []byte) string {
	return fmt.Sprintf("t=%d,v1=%s", ts, ComputeMockSignature(secret, ts, body))
}

// MockEventBody собирает тело события в формате шлюза.
func MockEventBody(eventID, eventType, intentID string) []byte {
	body, _ := json.Marshal(map[string]any{
		"id":   eventID,
		"type": eventType,
		"data": map[string]any{
			"object": map[string]any{"id": intentID},
		},
	})
	return body
}

func randomHex(n int) string {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		panic(err)
	}
	return hex.EncodeToString(b)
}
