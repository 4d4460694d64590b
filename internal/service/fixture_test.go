package service

import (
	"bytes"
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/ignatzorin/creator-settlement/internal/domain/valueobject"
	"github.com/ignatzorin/creator-settlement/internal/events"
	"github.com/ignatzorin/creator-settlement/internal/gateway"
	"github.com/ignatzorin/creator-settlement/internal/models"
	"github.com/ignatzorin/creator-settlement/internal/repository/memstore"
	"github.com/ignatzorin/creator-settlement/internal/secure"
)

const webhookSecret = "test-webhook-secret"

type fixture struct {
	store *memstore.Store
	gw    *gateway.MockProvider

	orders      *OrderService
	escrow      *EscrowService
	payments    *PaymentService
	webhooks    *WebhookService
	withdrawals *WithdrawalService
	submissions *SubmissionService

	brand   Actor
	creator Actor
	admin   Actor

	campaignID uuid.UUID
	agreement  models.Agreement
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	return newFixtureWithProvider(t, gateway.NewMockProvider(webhookSecret))
}

func newFixtureWithProvider(t *testing.T, provider gateway.Provider) *fixture {
	t.Helper()

	store := memstore.New()
	var dispatcher *events.Dispatcher
	cache := NewCacheService()
	t.Cleanup(cache.Close)

	sealer, err := secure.NewSealer(bytes.Repeat([]byte{7}, 32))
	require.NoError(t, err)

	orders := NewOrderService(store, dispatcher, OrderConfig{GatewayFeeRate: 0.05, DefaultCurrency: "usd", StoreTimeout: time.Second})
	escrow := NewEscrowService(store, dispatcher, EscrowConfig{PlatformFeeRate: 0.15, StoreTimeout: time.Second})
	payments := NewPaymentService(store, provider, orders, escrow, cache, dispatcher, PaymentConfig{
		Timeouts:       Timeouts{Store: time.Second, Gateway: time.Second},
		StatusCacheTTL: time.Minute,
	})

	f := &fixture{
		store:       store,
		orders:      orders,
		escrow:      escrow,
		payments:    payments,
		webhooks:    NewWebhookService(store, provider, orders, escrow, payments, dispatcher, time.Second),
		withdrawals: NewWithdrawalService(store, sealer, dispatcher, WithdrawalConfig{MinAmount: 100, BankFee: 17, StoreTimeout: time.Second}),
		submissions: NewSubmissionService(store, escrow, nil, dispatcher, time.Second),
		brand:       Actor{ID: uuid.New(), Role: models.RoleBrand},
		creator:     Actor{ID: uuid.New(), Role: models.RoleCreator},
		admin:       Actor{ID: uuid.New(), Role: models.RoleAdmin},
		campaignID:  uuid.New(),
	}
	if mp, ok := provider.(*gateway.MockProvider); ok {
		f.gw = mp
	}

	f.agreement = models.Agreement{
		ID:         uuid.New(),
		CampaignID: f.campaignID,
		BrandID:    f.brand.ID,
		CreatorID:  f.creator.ID,
		Status:     valueobject.AgreementStatusAccepted,
	}
	store.AddAgreement(f.agreement)
	return f
}

func (f *fixture) createOrder(t *testing.T, amount float64) *models.Order {
	t.Helper()
	o, err := f.orders.CreateOrder(context.Background(), f.brand, CreateOrderInput{AgreementID: f.agreement.ID, Amount: amount})
	require.NoError(t, err)
	return o
}

func (f *fixture) checkout(t *testing.T, order *models.Order) *CheckoutResult {
	t.Helper()
	res, err := f.payments.Checkout(context.Background(), f.brand, order.ID)
	require.NoError(t, err)
	return res
}

func (f *fixture) deliver(eventID, eventType, intentID string) (*WebhookResult, error) {
	body := gateway.MockEventBody(eventID, eventType, intentID)
	headers := http.Header{}
	headers.Set(gateway.MockSignatureHeader, gateway.MockSignatureHeaderValue([]byte(webhookSecret), time.Now().Unix(), body))
	return f.webhooks.Handle(context.Background(), headers, body)
}

// paidOrder проводит заказ до PAID с открытым эскроу.
func (f *fixture) paidOrder(t *testing.T, amount float64) (*models.Order, *CheckoutResult) {
	t.Helper()
	order := f.createOrder(t, amount)
	res := f.checkout(t, order)
	_, err := f.deliver("evt_paid_"+order.ID.String(), gateway.EventPaymentSucceeded, res.PaymentIntentID)
	require.NoError(t, err)
	return order, res
}

func (f *fixture) addSubmission(t *testing.T) models.Submission {
	t.Helper()
	sub := models.Submission{
		ID:             uuid.New(),
		CampaignID:     f.campaignID,
		CreatorID:      f.creator.ID,
		WatermarkedURL: "https://cdn.example/wm.mp4",
		OriginalURL:    "https://cdn.example/original.mp4",
		CreatedAt:      time.Now().UTC(),
	}
	f.store.AddSubmission(sub)
	return sub
}

func (f *fixture) balance(t *testing.T) *models.CreatorBalance {
	t.Helper()
	b, err := f.store.GetBalance(context.Background(), f.creator.ID)
	require.NoError(t, err)
	return b
}

// requireConserved: available + pending + withdrawn <= earned.
func requireConserved(t *testing.T, b *models.CreatorBalance) {
	t.Helper()
	sum := valueobject.Add(valueobject.Add(b.Available, b.PendingWithdrawal), b.TotalWithdrawn)
	require.LessOrEqual(t, sum, b.TotalEarned)
	require.GreaterOrEqual(t, b.Available, 0.0)
	require.GreaterOrEqual(t, b.PendingWithdrawal, 0.0)
}
