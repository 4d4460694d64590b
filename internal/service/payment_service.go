package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/ignatzorin/creator-settlement/internal/domain/valueobject"
	"github.com/ignatzorin/creator-settlement/internal/events"
	"github.com/ignatzorin/creator-settlement/internal/gateway"
	"github.com/ignatzorin/creator-settlement/internal/logger"
	"github.com/ignatzorin/creator-settlement/internal/metrics"
	"github.com/ignatzorin/creator-settlement/internal/models"
	"github.com/ignatzorin/creator-settlement/internal/pkg/apperror"
	"github.com/ignatzorin/creator-settlement/internal/repository"
	"github.com/ignatzorin/creator-settlement/internal/repository/common"
)

// PaymentConfig - таймауты и кэш статусов.
type PaymentConfig struct {
	Timeouts       Timeouts
	StatusCacheTTL time.Duration
}

// PaymentService - оплата заказов и возвраты через шлюз.
type PaymentService struct {
	store    repository.Store
	provider gateway.Provider
	orders   *OrderService
	escrow   *EscrowService
	cache    *CacheService
	events   *events.Dispatcher
	cfg      PaymentConfig
}

func NewPaymentService(
	store repository.Store,
	provider gateway.Provider,
	orders *OrderService,
	escrow *EscrowService,
	cache *CacheService,
	dispatcher *events.Dispatcher,
	cfg PaymentConfig,
) *PaymentService {
	return &PaymentService{
		store:    store,
		provider: provider,
		orders:   orders,
		escrow:   escrow,
		cache:    cache,
		events:   dispatcher,
		cfg:      cfg,
	}
}

// CheckoutResult - данные для оплаты на клиенте.
type CheckoutResult struct {
	OrderID         uuid.UUID `json:"order_id"`
	PaymentIntentID string    `json:"payment_intent_id"`
	ClientSecret    string    `json:"client_secret"`
	Amount          float64   `json:"amount"`
	GatewayFee      float64   `json:"gateway_fee"`
	TotalCharged    float64   `json:"total_charged"`
	Currency        string    `json:"currency"`
	Provider        string    `json:"provider"`
}

// Checkout создаёт платёжное намерение на сумму заказа с комиссией шлюза.
// Если незавершённая оплата уже есть, возвращает её client secret.
func (s *PaymentService) Checkout(ctx context.Context, actor Actor, orderID uuid.UUID) (*CheckoutResult, error) {
	order, pending, attempts, err := s.loadCheckout(ctx, actor, orderID)
	if err != nil {
		return nil, err
	}

	if pending != nil {
		intent, err := s.retrieveIntent(ctx, pending.PaymentIntentID)
		if err != nil {
			return nil, err
		}
		return checkoutResult(order, intent.ID, intent.ClientSecret, s.provider.Name()), nil
	}

	intent, err := s.createIntent(ctx, order, attempts+1)
	if err != nil {
		return nil, err
	}

	storeCtx, cancel := withTimeout(ctx, s.cfg.Timeouts.Store)
	defer cancel()

	now := time.Now().UTC()
	rec := &models.PaymentRecord{
		ID:              uuid.New(),
		OrderID:         order.ID,
		PaymentIntentID: intent.ID,
		Provider:        s.provider.Name(),
		Status:          valueobject.PaymentStatusPending,
		Amount:          order.TotalCharged,
		Fee:             order.GatewayFee,
		Currency:        order.Currency,
		GatewayPayload:  intent.Raw,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if err := s.store.CreatePaymentRecord(storeCtx, rec); err != nil {
		if !errors.Is(err, common.ErrAlreadyExists) {
			return nil, storeErr(err, nil)
		}
		// параллельный checkout с тем же ключом идемпотентности получил то же намерение
		existing, getErr := s.store.GetPendingPayment(storeCtx, order.ID)
		if getErr != nil || existing.PaymentIntentID != intent.ID {
			return nil, apperror.Conflict("оплата заказа уже начата, повторите запрос")
		}
	}

	logger.Log.WithFields(logrus.Fields{
		"order_id":  order.ID,
		"intent_id": intent.ID,
		"amount":    order.TotalCharged,
		"provider":  s.provider.Name(),
	}).Info("payment intent created")

	return checkoutResult(order, intent.ID, intent.ClientSecret, s.provider.Name()), nil
}

func (s *PaymentService) loadCheckout(ctx context.Context, actor Actor, orderID uuid.UUID) (*models.Order, *models.PaymentRecord, int, error) {
	ctx, cancel := withTimeout(ctx, s.cfg.Timeouts.Store)
	defer cancel()

	order, err := s.store.GetOrder(ctx, orderID)
	if err != nil {
		return nil, nil, 0, storeErr(err, apperror.ErrOrderNotFound)
	}
	if order.BrandID != actor.ID {
		return nil, nil, 0, apperror.ErrOrderNotFound
	}
	if order.Status != valueobject.OrderStatusPendingPayment {
		return nil, nil, 0, apperror.NotFound("заказ не найден или уже оплачен")
	}

	pending, err := s.store.GetPendingPayment(ctx, order.ID)
	switch {
	case err == nil:
		return order, pending, 0, nil
	case !errors.Is(err, common.ErrNotFound):
		return nil, nil, 0, storeErr(err, nil)
	}

	attempts, err := s.store.CountPayments(ctx, order.ID)
	if err != nil {
		return nil, nil, 0, storeErr(err, nil)
	}
	return order, nil, attempts, nil
}

func (s *PaymentService) createIntent(ctx context.Context, order *models.Order, attempt int) (*gateway.Intent, error) {
	ctx, cancel := withTimeout(ctx, s.cfg.Timeouts.Gateway)
	defer cancel()

	start := time.Now()
	intent, err := s.provider.CreateIntent(ctx, gateway.IntentRequest{
		OrderID:        order.ID,
		Amount:         order.TotalCharged,
		Currency:       order.Currency,
		IdempotencyKey: fmt.Sprintf("order-%s-attempt-%d", order.ID, attempt),
		Metadata: map[string]string{
			"agreement_id": order.AgreementID.String(),
			"creator_id":   order.CreatorID.String(),
		},
	})
	observeGateway(s.provider.Name(), "create_intent", start, err)
	if err != nil {
		logger.Log.WithError(err).WithField("order_id", order.ID).Error("gateway: create intent failed")
		return nil, apperror.Gateway(err)
	}
	return intent, nil
}

func (s *PaymentService) retrieveIntent(ctx context.Context, intentID string) (*gateway.Intent, error) {
	ctx, cancel := withTimeout(ctx, s.cfg.Timeouts.Gateway)
	defer cancel()

	start := time.Now()
	intent, err := s.provider.RetrieveIntent(ctx, intentID)
	observeGateway(s.provider.Name(), "retrieve_intent", start, err)
	if err != nil {
		return nil, apperror.Gateway(err)
	}
	return intent, nil
}

func checkoutResult(order *models.Order, intentID, secret, provider string) *CheckoutResult {
	return &CheckoutResult{
		OrderID:         order.ID,
		PaymentIntentID: intentID,
		ClientSecret:    secret,
		Amount:          order.Amount,
		GatewayFee:      order.GatewayFee,
		TotalCharged:    order.TotalCharged,
		Currency:        order.Currency,
		Provider:        provider,
	}
}

type cachedStatus struct {
	view      models.PaymentStatusView
	brandID   uuid.UUID
	creatorID uuid.UUID
}

// Status возвращает статус платежа для опроса клиентом. Ответ может отставать на TTL кэша.
func (s *PaymentService) Status(ctx context.Context, actor Actor, intentID string) (*models.PaymentStatusView, error) {
	key := PaymentStatusCacheKey(intentID)
	if v, ok := s.cache.Get(key); ok {
		cached := v.(cachedStatus)
		if !actor.IsAdmin() && cached.brandID != actor.ID && cached.creatorID != actor.ID {
			return nil, apperror.ErrPaymentNotFound
		}
		view := cached.view
		return &view, nil
	}

	ctx, cancel := withTimeout(ctx, s.cfg.Timeouts.Store)
	defer cancel()

	rec, err := s.store.GetPaymentByIntent(ctx, intentID)
	if err != nil {
		return nil, storeErr(err, apperror.ErrPaymentNotFound)
	}
	order, err := s.store.GetOrder(ctx, rec.OrderID)
	if err != nil {
		return nil, storeErr(err, apperror.ErrOrderNotFound)
	}

	entry := cachedStatus{
		view: models.PaymentStatusView{
			PaymentIntentID: rec.PaymentIntentID,
			PaymentStatus:   rec.Status,
			OrderID:         order.ID,
			OrderStatus:     order.Status,
			Amount:          rec.Amount,
			Currency:        rec.Currency,
		},
		brandID:   order.BrandID,
		creatorID: order.CreatorID,
	}
	s.cache.Set(key, entry, s.cfg.StatusCacheTTL)

	if !actor.IsAdmin() && !order.IsParticipant(actor.ID) {
		return nil, apperror.ErrPaymentNotFound
	}
	return &entry.view, nil
}

// InvalidateStatus сбрасывает кэш статуса после изменения платежа.
func (s *PaymentService) InvalidateStatus(intentID string) {
	s.cache.Delete(PaymentStatusCacheKey(intentID))
}

// RefundResult - итог возврата.
type RefundResult struct {
	PaymentIntentID string                    `json:"payment_intent_id"`
	RefundID        string                    `json:"refund_id"`
	RefundStatus    string                    `json:"refund_status"`
	PaymentStatus   valueobject.PaymentStatus `json:"payment_status"`
	OrderID         uuid.UUID                 `json:"order_id"`
	OrderStatus     valueobject.OrderStatus   `json:"order_status"`
}

// Refund возвращает списанный платёж. Заказ переходит в REFUNDED, эскроу - в refunded.
func (s *PaymentService) Refund(ctx context.Context, actor Actor, intentID string, amount *float64) (*RefundResult, error) {
	if !actor.IsAdmin() {
		return nil, apperror.Forbidden("возврат доступен только администратору")
	}

	rec, err := s.loadCaptured(ctx, intentID)
	if err != nil {
		return nil, err
	}
	if amount != nil {
		if *amount <= 0 || *amount > rec.Amount {
			return nil, apperror.Validation("сумма возврата должна быть больше нуля и не больше суммы платежа")
		}
		*amount = valueobject.Round2(*amount)
	}

	gwCtx, gwCancel := withTimeout(ctx, s.cfg.Timeouts.Gateway)
	start := time.Now()
	refund, err := s.provider.Refund(gwCtx, gateway.RefundRequest{
		PaymentIntentID: intentID,
		Amount:          amount,
		IdempotencyKey:  "refund-" + intentID,
	})
	gwCancel()
	observeGateway(s.provider.Name(), "refund", start, err)
	if err != nil {
		logger.Log.WithError(err).WithField("intent_id", intentID).Error("gateway: refund failed")
		return nil, apperror.Gateway(err)
	}

	// Частичный возврат закрывает заказ и эскроу целиком, остаток сверяется вручную.
	storeCtx, cancel := withTimeout(ctx, s.cfg.Timeouts.Store)
	defer cancel()

	var (
		order        *models.Order
		orderChanged bool
		escrow       *models.EscrowRecord
		escrowMoved  bool
	)
	err = s.store.WithinTx(storeCtx, func(tx repository.Ledger) error {
		ok, err := tx.UpdatePaymentStatus(storeCtx, intentID, valueobject.PaymentStatusCaptured, valueobject.PaymentStatusRefunded, refund.Raw)
		if err != nil {
			return err
		}
		if !ok {
			return apperror.Conflict("платёж уже возвращён")
		}
		order, orderChanged, err = s.orders.markRefunded(storeCtx, tx, rec.OrderID, actor.ID)
		if err != nil {
			return err
		}
		escrow, escrowMoved, err = s.escrow.refundInTx(storeCtx, tx, order.AgreementID)
		return err
	})
	if err != nil {
		if apperror.IsConflict(err) {
			return nil, err
		}
		// шлюз деньги вернул, а запись не обновилась
		logger.Inconsistency(logrus.Fields{
			"intent_id": intentID,
			"order_id":  rec.OrderID,
			"refund_id": refund.ID,
			"error":     err.Error(),
		}, "gateway refund succeeded but ledger update failed")
		metrics.Inconsistencies.Inc()
		return nil, storeErr(err, nil)
	}
	s.InvalidateStatus(intentID)

	if orderChanged {
		s.events.Emit(events.New(events.OrderRefunded, order.ID.String(), order, order.BrandID, order.CreatorID))
	}
	if escrowMoved {
		s.events.Emit(events.New(events.EscrowRefunded, escrow.AgreementID.String(), escrow, escrow.BrandID, escrow.CreatorID))
	}

	return &RefundResult{
		PaymentIntentID: intentID,
		RefundID:        refund.ID,
		RefundStatus:    refund.Status,
		PaymentStatus:   valueobject.PaymentStatusRefunded,
		OrderID:         order.ID,
		OrderStatus:     order.Status,
	}, nil
}

func (s *PaymentService) loadCaptured(ctx context.Context, intentID string) (*models.PaymentRecord, error) {
	ctx, cancel := withTimeout(ctx, s.cfg.Timeouts.Store)
	defer cancel()

	rec, err := s.store.GetPaymentByIntent(ctx, intentID)
	if err != nil {
		return nil, storeErr(err, apperror.ErrPaymentNotFound)
	}
	if rec.Status != valueobject.PaymentStatusCaptured {
		return nil, apperror.Conflict("вернуть можно только списанный платёж, текущий статус " + string(rec.Status))
	}
	return rec, nil
}

func observeGateway(provider, op string, start time.Time, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	metrics.GatewayLatency.WithLabelValues(provider, op, result).Observe(time.Since(start).Seconds())
}
