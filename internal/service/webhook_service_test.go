package service

import (
	"context"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ignatzorin/creator-settlement/internal/domain/valueobject"
	"github.com/ignatzorin/creator-settlement/internal/gateway"
	"github.com/ignatzorin/creator-settlement/internal/models"
	"github.com/ignatzorin/creator-settlement/internal/pkg/apperror"
)

func TestWebhook_SucceededOpensEscrowForAmount(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	order := f.createOrder(t, 1000)
	res := f.checkout(t, order)

	out, err := f.deliver("evt_1", gateway.EventPaymentSucceeded, res.PaymentIntentID)
	require.NoError(t, err)
	assert.Equal(t, WebhookProcessed, out.Result)

	got, err := f.orders.GetOrder(ctx, f.brand, order.ID)
	require.NoError(t, err)
	assert.Equal(t, valueobject.OrderStatusPaid, got.Status)

	rec, err := f.store.GetPaymentByIntent(ctx, res.PaymentIntentID)
	require.NoError(t, err)
	assert.Equal(t, valueobject.PaymentStatusCaptured, rec.Status)

	escrow, err := f.escrow.GetEscrow(ctx, f.creator, f.agreement.ID)
	require.NoError(t, err)
	assert.Equal(t, 1000.0, escrow.Amount)
	assert.Equal(t, valueobject.EscrowStatusActive, escrow.Status)

	marker, err := f.store.GetWebhookEvent(ctx, "evt_1")
	require.NoError(t, err)
	assert.Equal(t, valueobject.WebhookStatusProcessed, marker.Status)

	// кредит креатору только при выплате
	assert.Zero(t, f.balance(t).Available)
}

func TestWebhook_ReplayIsNoop(t *testing.T) {
	f := newFixture(t)
	order := f.createOrder(t, 1000)
	res := f.checkout(t, order)

	_, err := f.deliver("evt_1", gateway.EventPaymentSucceeded, res.PaymentIntentID)
	require.NoError(t, err)
	out, err := f.deliver("evt_1", gateway.EventPaymentSucceeded, res.PaymentIntentID)
	require.NoError(t, err)
	assert.Equal(t, WebhookDuplicate, out.Result)

	// другое событие с тем же исходом тоже ничего не дублирует
	_, err = f.deliver("evt_2", gateway.EventPaymentSucceeded, res.PaymentIntentID)
	require.NoError(t, err)

	assert.Equal(t, 1, f.store.EscrowCount(f.agreement.ID))
	list, err := f.orders.ListOrderEvents(context.Background(), f.brand, order.ID)
	require.NoError(t, err)
	assert.Len(t, list, 2)
}

func TestWebhook_ConcurrentReplay(t *testing.T) {
	f := newFixture(t)
	order := f.createOrder(t, 1000)
	res := f.checkout(t, order)

	const workers = 16
	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		results = map[string]int{}
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			out, err := f.deliver("evt_same", gateway.EventPaymentSucceeded, res.PaymentIntentID)
			if !assert.NoError(t, err) {
				return
			}
			mu.Lock()
			results[out.Result]++
			mu.Unlock()
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, results[WebhookProcessed])
	assert.Equal(t, workers-1, results[WebhookDuplicate])
	assert.Equal(t, 1, f.store.EscrowCount(f.agreement.ID))

	got, err := f.orders.GetOrder(context.Background(), f.admin, order.ID)
	require.NoError(t, err)
	assert.Equal(t, valueobject.OrderStatusPaid, got.Status)
}

func TestWebhook_InvalidSignature(t *testing.T) {
	f := newFixture(t)
	body := gateway.MockEventBody("evt_1", gateway.EventPaymentSucceeded, "pi_1")
	headers := http.Header{}
	headers.Set(gateway.MockSignatureHeader, gateway.MockSignatureHeaderValue([]byte("wrong"), time.Now().Unix(), body))

	_, err := f.webhooks.Handle(context.Background(), headers, body)
	assert.Equal(t, apperror.ErrCodeAuthenticity, apperror.CodeOf(err))

	_, err = f.store.GetWebhookEvent(context.Background(), "evt_1")
	assert.Error(t, err, "marker must not be created for unauthenticated events")
}

func TestWebhook_FailedThenLateSucceeded(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	order := f.createOrder(t, 1000)
	res := f.checkout(t, order)

	_, err := f.deliver("evt_fail", gateway.EventPaymentFailed, res.PaymentIntentID)
	require.NoError(t, err)

	got, err := f.orders.GetOrder(ctx, f.brand, order.ID)
	require.NoError(t, err)
	assert.Equal(t, valueobject.OrderStatusFailed, got.Status)

	// противоречащий исход не меняет терминальный заказ
	out, err := f.deliver("evt_late", gateway.EventPaymentSucceeded, res.PaymentIntentID)
	require.NoError(t, err)
	assert.Equal(t, WebhookProcessed, out.Result)

	got, err = f.orders.GetOrder(ctx, f.brand, order.ID)
	require.NoError(t, err)
	assert.Equal(t, valueobject.OrderStatusFailed, got.Status)
	rec, err := f.store.GetPaymentByIntent(ctx, res.PaymentIntentID)
	require.NoError(t, err)
	assert.Equal(t, valueobject.PaymentStatusFailed, rec.Status)
	assert.Zero(t, f.store.EscrowCount(f.agreement.ID))
}

func TestWebhook_Canceled(t *testing.T) {
	f := newFixture(t)
	order := f.createOrder(t, 500)
	res := f.checkout(t, order)

	_, err := f.deliver("evt_c", gateway.EventPaymentCanceled, res.PaymentIntentID)
	require.NoError(t, err)

	got, err := f.orders.GetOrder(context.Background(), f.brand, order.ID)
	require.NoError(t, err)
	assert.Equal(t, valueobject.OrderStatusCancelled, got.Status)
}

func TestWebhook_SucceededAfterUserCancel(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	order := f.createOrder(t, 500)
	res := f.checkout(t, order)

	_, err := f.orders.CancelOrder(ctx, f.brand, order.ID)
	require.NoError(t, err)

	out, err := f.deliver("evt_s", gateway.EventPaymentSucceeded, res.PaymentIntentID)
	require.NoError(t, err)
	assert.Equal(t, WebhookProcessed, out.Result)

	got, err := f.orders.GetOrder(ctx, f.brand, order.ID)
	require.NoError(t, err)
	assert.Equal(t, valueobject.OrderStatusCancelled, got.Status)
	assert.Zero(t, f.store.EscrowCount(f.agreement.ID))

	rec, err := f.store.GetPaymentByIntent(ctx, res.PaymentIntentID)
	require.NoError(t, err)
	assert.Equal(t, valueobject.PaymentStatusCaptured, rec.Status)
}

func TestWebhook_FailedMarkerIsRetriedInFull(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	order := f.createOrder(t, 1000)

	// намерение есть у шлюза, но запись платежа ещё не сохранена
	intent, err := f.gw.CreateIntent(ctx, gateway.IntentRequest{OrderID: order.ID, Amount: order.TotalCharged, Currency: "usd"})
	require.NoError(t, err)

	_, err = f.deliver("evt_early", gateway.EventPaymentSucceeded, intent.ID)
	require.Error(t, err)

	marker, err := f.store.GetWebhookEvent(ctx, "evt_early")
	require.NoError(t, err)
	assert.Equal(t, valueobject.WebhookStatusFailed, marker.Status)
	require.NotNil(t, marker.Error)
	assert.Zero(t, f.store.EscrowCount(f.agreement.ID))

	now := time.Now().UTC()
	require.NoError(t, f.store.CreatePaymentRecord(ctx, &models.PaymentRecord{
		ID:              uuid.New(),
		OrderID:         order.ID,
		PaymentIntentID: intent.ID,
		Provider:        "mock",
		Status:          valueobject.PaymentStatusPending,
		Amount:          order.TotalCharged,
		Fee:             order.GatewayFee,
		Currency:        order.Currency,
		CreatedAt:       now,
		UpdatedAt:       now,
	}))

	out, err := f.deliver("evt_early", gateway.EventPaymentSucceeded, intent.ID)
	require.NoError(t, err)
	assert.Equal(t, WebhookProcessed, out.Result)

	marker, err = f.store.GetWebhookEvent(ctx, "evt_early")
	require.NoError(t, err)
	assert.Equal(t, valueobject.WebhookStatusProcessed, marker.Status)
	assert.Equal(t, 1, f.store.EscrowCount(f.agreement.ID))
}

func TestWebhook_UnknownTypeIsRecorded(t *testing.T) {
	f := newFixture(t)

	out, err := f.deliver("evt_x", "charge.dispute.created", "pi_whatever")
	require.NoError(t, err)
	assert.Equal(t, WebhookIgnored, out.Result)

	marker, err := f.store.GetWebhookEvent(context.Background(), "evt_x")
	require.NoError(t, err)
	assert.Equal(t, valueobject.WebhookStatusProcessed, marker.Status)
}
