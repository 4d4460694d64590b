package service

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/ignatzorin/creator-settlement/internal/domain/valueobject"
	"github.com/ignatzorin/creator-settlement/internal/events"
	"github.com/ignatzorin/creator-settlement/internal/gateway"
	"github.com/ignatzorin/creator-settlement/internal/logger"
	"github.com/ignatzorin/creator-settlement/internal/metrics"
	"github.com/ignatzorin/creator-settlement/internal/models"
	"github.com/ignatzorin/creator-settlement/internal/pkg/apperror"
	"github.com/ignatzorin/creator-settlement/internal/repository"
)

// Итог обработки вебхука.
const (
	WebhookProcessed = "processed"
	WebhookDuplicate = "duplicate"
	WebhookIgnored   = "ignored"
)

// WebhookResult - ответ на доставку события.
type WebhookResult struct {
	EventID string `json:"event_id"`
	Result  string `json:"result"`
}

// WebhookService применяет события шлюза ровно один раз по id события.
type WebhookService struct {
	store        repository.Store
	provider     gateway.Provider
	orders       *OrderService
	escrow       *EscrowService
	payments     *PaymentService
	events       *events.Dispatcher
	storeTimeout time.Duration
	now          func() time.Time
}

func NewWebhookService(
	store repository.Store,
	provider gateway.Provider,
	orders *OrderService,
	escrow *EscrowService,
	payments *PaymentService,
	dispatcher *events.Dispatcher,
	storeTimeout time.Duration,
) *WebhookService {
	return &WebhookService{
		store:        store,
		provider:     provider,
		orders:       orders,
		escrow:       escrow,
		payments:     payments,
		events:       dispatcher,
		storeTimeout: storeTimeout,
		now:          func() time.Time { return time.Now().UTC() },
	}
}

// Handle проверяет подпись и применяет событие одной единицей работы:
// маркер дедупликации, эффекты и отметка PROCESSED фиксируются одним коммитом.
// При ошибке маркер сохраняется в FAILED, а ошибка возвращается, чтобы шлюз повторил доставку.
func (s *WebhookService) Handle(ctx context.Context, headers http.Header, body []byte) (*WebhookResult, error) {
	event, err := s.provider.ParseWebhook(headers, body)
	if err != nil {
		metrics.WebhookEvents.WithLabelValues("unknown", "invalid_signature").Inc()
		logger.Log.WithError(err).Warn("webhook: signature verification failed")
		return nil, apperror.Authenticity(err)
	}

	log := logger.Log.WithFields(logrus.Fields{
		"event_id":   event.ID,
		"event_type": event.Type,
		"intent_id":  event.PaymentIntentID,
	})
	marker := &models.WebhookEvent{
		EventID:   event.ID,
		Provider:  s.provider.Name(),
		EventType: event.Type,
		Payload:   event.Payload,
	}

	txCtx, cancel := withTimeout(ctx, s.storeTimeout)
	defer cancel()

	var (
		duplicate bool
		ignored   bool
		effects   []events.Event
	)
	err = s.store.WithinTx(txCtx, func(tx repository.Ledger) error {
		duplicate, ignored, effects = false, false, nil

		status, err := tx.ClaimWebhookEvent(txCtx, marker)
		if err != nil {
			return err
		}
		if status == valueobject.WebhookStatusProcessed {
			duplicate = true
			return nil
		}

		effects, ignored, err = s.dispatch(txCtx, tx, event)
		if err != nil {
			return err
		}
		return tx.MarkWebhookProcessed(txCtx, event.ID, s.now())
	})
	if err != nil {
		s.markFailed(ctx, marker, err, log)
		metrics.WebhookEvents.WithLabelValues(event.Type, "failed").Inc()
		return nil, storeErr(err, nil)
	}

	result := WebhookProcessed
	switch {
	case duplicate:
		result = WebhookDuplicate
		log.Debug("webhook: duplicate delivery, already processed")
	case ignored:
		result = WebhookIgnored
		log.Info("webhook: event type not handled, recorded as processed")
	default:
		log.Info("webhook: processed")
	}
	metrics.WebhookEvents.WithLabelValues(event.Type, result).Inc()

	if event.PaymentIntentID != "" && !duplicate {
		s.payments.InvalidateStatus(event.PaymentIntentID)
	}
	for _, e := range effects {
		s.events.Emit(e)
	}
	return &WebhookResult{EventID: event.ID, Result: result}, nil
}

// dispatch применяет эффекты события. Каждый эффект идемпотентен сам по себе.
func (s *WebhookService) dispatch(ctx context.Context, tx repository.Ledger, event *gateway.Event) ([]events.Event, bool, error) {
	outcome, ok := event.Outcome()
	if !ok {
		return nil, true, nil
	}
	if event.PaymentIntentID == "" {
		return nil, false, errors.New("webhook: event has no payment intent id")
	}

	rec, err := tx.GetPaymentByIntent(ctx, event.PaymentIntentID)
	if err != nil {
		// запись могла ещё не закоммититься; повтор доставки это исправит
		return nil, false, storeErr(err, apperror.ErrPaymentNotFound)
	}

	target := outcome.PaymentStatus()
	switch {
	case rec.Status == target:
	case rec.Status == valueobject.PaymentStatusPending:
		if _, err := tx.UpdatePaymentStatus(ctx, rec.PaymentIntentID, valueobject.PaymentStatusPending, target, event.Payload); err != nil {
			return nil, false, err
		}
	default:
		logger.Log.WithFields(logrus.Fields{
			"intent_id": rec.PaymentIntentID,
			"status":    rec.Status,
			"outcome":   outcome,
			"event_id":  event.ID,
		}).Warn("webhook: outcome conflicts with terminal payment status, ignored")
	}

	order, changed, err := s.orders.applyPaymentOutcome(ctx, tx, rec.OrderID, outcome, event.ID)
	if err != nil {
		return nil, false, err
	}

	var out []events.Event
	if changed {
		out = append(out, events.New(orderEventType(order.Status), order.ID.String(), order, order.BrandID, order.CreatorID))
	}

	if outcome != valueobject.OutcomeSucceeded {
		return out, false, nil
	}
	if order.Status != valueobject.OrderStatusPaid {
		// деньги списаны, а заказ отменён или провален: эскроу не открываем
		metrics.Inconsistencies.Inc()
		logger.Inconsistency(logrus.Fields{
			"order_id":     order.ID,
			"order_status": order.Status,
			"intent_id":    rec.PaymentIntentID,
			"agreement_id": order.AgreementID,
			"amount":       rec.Amount,
		}, "payment captured for order that is not payable, manual refund required")
		return out, false, nil
	}

	escrow, opened, err := s.escrow.openInTx(ctx, tx, order)
	if err != nil {
		return nil, false, err
	}
	if opened {
		out = append(out, events.New(events.EscrowOpened, escrow.AgreementID.String(), escrow, escrow.BrandID, escrow.CreatorID))
	}
	return out, false, nil
}

func (s *WebhookService) markFailed(ctx context.Context, marker *models.WebhookEvent, cause error, log *logrus.Entry) {
	ctx, cancel := withTimeout(context.WithoutCancel(ctx), s.storeTimeout)
	defer cancel()

	if err := s.store.MarkWebhookFailed(ctx, marker, cause.Error()); err != nil {
		log.WithError(err).Error("webhook: failed to record FAILED marker")
	}
	log.WithError(cause).Error("webhook: processing failed, provider will retry")
}
