package service

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/ignatzorin/creator-settlement/internal/domain/valueobject"
	"github.com/ignatzorin/creator-settlement/internal/events"
	"github.com/ignatzorin/creator-settlement/internal/logger"
	"github.com/ignatzorin/creator-settlement/internal/models"
	"github.com/ignatzorin/creator-settlement/internal/pkg/apperror"
	"github.com/ignatzorin/creator-settlement/internal/repository"
	"github.com/ignatzorin/creator-settlement/internal/repository/common"
	"github.com/ignatzorin/creator-settlement/internal/validation"
)

// OrderConfig - параметры расчёта заказа.
type OrderConfig struct {
	GatewayFeeRate  float64
	DefaultCurrency string
	StoreTimeout    time.Duration
}

// OrderService - машина состояний заказа.
type OrderService struct {
	store  repository.Store
	events *events.Dispatcher
	cfg    OrderConfig
	now    func() time.Time
}

func NewOrderService(store repository.Store, dispatcher *events.Dispatcher, cfg OrderConfig) *OrderService {
	if cfg.DefaultCurrency == "" {
		cfg.DefaultCurrency = "usd"
	}
	return &OrderService{
		store:  store,
		events: dispatcher,
		cfg:    cfg,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// CreateOrderInput - данные для создания заказа.
type CreateOrderInput struct {
	AgreementID uuid.UUID
	Amount      float64
	Currency    string
}

// CreateOrder создаёт заказ по принятому соглашению.
func (s *OrderService) CreateOrder(ctx context.Context, actor Actor, in CreateOrderInput) (*models.Order, error) {
	charge, err := valueobject.NewCharge(in.Amount, s.cfg.GatewayFeeRate)
	if err != nil {
		return nil, err
	}
	currency, err := validation.NormalizeCurrency(in.Currency, s.cfg.DefaultCurrency)
	if err != nil {
		return nil, apperror.Validation(err.Error())
	}

	ctx, cancel := withTimeout(ctx, s.cfg.StoreTimeout)
	defer cancel()

	var order *models.Order
	err = s.store.WithinTx(ctx, func(tx repository.Ledger) error {
		agreement, err := tx.GetAgreement(ctx, in.AgreementID)
		if err != nil {
			return storeErr(err, apperror.ErrAgreementNotFound)
		}
		if agreement.BrandID != actor.ID {
			return apperror.Forbidden("заказ может создать только бренд соглашения")
		}
		if agreement.Status != valueobject.AgreementStatusAccepted {
			return apperror.Conflict("соглашение не в статусе accepted")
		}

		now := s.now()
		o := &models.Order{
			ID:           uuid.New(),
			AgreementID:  agreement.ID,
			CampaignID:   agreement.CampaignID,
			BrandID:      agreement.BrandID,
			CreatorID:    agreement.CreatorID,
			Amount:       charge.Amount,
			GatewayFee:   charge.GatewayFee,
			TotalCharged: charge.TotalCharged,
			Currency:     currency,
			Status:       valueobject.OrderStatusPendingPayment,
			CreatedAt:    now,
			UpdatedAt:    now,
		}
		if err := tx.CreateOrder(ctx, o); err != nil {
			if errors.Is(err, common.ErrAlreadyExists) {
				return apperror.Conflict("по этому соглашению уже создан заказ")
			}
			return err
		}
		if err := tx.AddOrderEvent(ctx, newOrderEvent(o.ID, nil, o.Status, &actor.ID, "order created", now)); err != nil {
			return err
		}
		order = o
		return nil
	})
	if err != nil {
		return nil, storeErr(err, nil)
	}

	s.events.Emit(events.New(events.OrderCreated, order.ID.String(), order, order.BrandID, order.CreatorID))
	return order, nil
}

// CancelOrder отменяет заказ, пока он ждёт оплаты.
func (s *OrderService) CancelOrder(ctx context.Context, actor Actor, orderID uuid.UUID) (*models.Order, error) {
	ctx, cancel := withTimeout(ctx, s.cfg.StoreTimeout)
	defer cancel()

	var order *models.Order
	err := s.store.WithinTx(ctx, func(tx repository.Ledger) error {
		o, err := tx.GetOrder(ctx, orderID)
		if err != nil {
			return storeErr(err, apperror.ErrOrderNotFound)
		}
		if !actor.IsAdmin() && o.BrandID != actor.ID {
			return apperror.Forbidden("отменить заказ может только бренд")
		}
		if !o.Status.CanTransitionTo(valueobject.OrderStatusCancelled) {
			return apperror.Conflict("заказ в статусе " + string(o.Status) + " нельзя отменить")
		}

		ok, err := tx.UpdateOrderStatus(ctx, o.ID, valueobject.OrderStatusPendingPayment, valueobject.OrderStatusCancelled)
		if err != nil {
			return err
		}
		if !ok {
			return apperror.Conflict("статус заказа уже изменился")
		}

		now := s.now()
		if err := tx.AddOrderEvent(ctx, newOrderEvent(o.ID, &o.Status, valueobject.OrderStatusCancelled, &actor.ID, "cancelled by user", now)); err != nil {
			return err
		}
		o.Status = valueobject.OrderStatusCancelled
		o.UpdatedAt = now
		order = o
		return nil
	})
	if err != nil {
		return nil, storeErr(err, nil)
	}

	s.events.Emit(events.New(events.OrderCancelled, order.ID.String(), order, order.BrandID, order.CreatorID))
	return order, nil
}

// GetOrder возвращает заказ участнику или администратору.
func (s *OrderService) GetOrder(ctx context.Context, actor Actor, orderID uuid.UUID) (*models.Order, error) {
	ctx, cancel := withTimeout(ctx, s.cfg.StoreTimeout)
	defer cancel()

	o, err := s.store.GetOrder(ctx, orderID)
	if err != nil {
		return nil, storeErr(err, apperror.ErrOrderNotFound)
	}
	if !actor.IsAdmin() && !o.IsParticipant(actor.ID) {
		// чужой заказ неотличим от несуществующего
		return nil, apperror.ErrOrderNotFound
	}
	return o, nil
}

// ListOrders возвращает заказы вызывающего, администратору - все.
func (s *OrderService) ListOrders(ctx context.Context, actor Actor, status string, limit, offset int) ([]models.Order, error) {
	filter := models.OrderFilter{Limit: limit, Offset: offset}
	if !actor.IsAdmin() {
		filter.ParticipantID = actor.ID
	}
	if status != "" {
		st, err := valueobject.NewOrderStatus(status)
		if err != nil {
			return nil, apperror.Validation("неизвестный статус заказа")
		}
		filter.Status = &st
	}

	ctx, cancel := withTimeout(ctx, s.cfg.StoreTimeout)
	defer cancel()

	orders, err := s.store.ListOrders(ctx, filter)
	if err != nil {
		return nil, storeErr(err, nil)
	}
	return orders, nil
}

// ListOrderEvents возвращает журнал переходов заказа.
func (s *OrderService) ListOrderEvents(ctx context.Context, actor Actor, orderID uuid.UUID) ([]models.OrderEvent, error) {
	if _, err := s.GetOrder(ctx, actor, orderID); err != nil {
		return nil, err
	}

	ctx, cancel := withTimeout(ctx, s.cfg.StoreTimeout)
	defer cancel()

	list, err := s.store.ListOrderEvents(ctx, orderID)
	if err != nil {
		return nil, storeErr(err, nil)
	}
	return list, nil
}

// applyPaymentOutcome переводит заказ по исходу платежа внутри единицы работы вебхука.
// Уже терминальный заказ не меняется. Возвращает актуальный заказ и признак перехода.
func (s *OrderService) applyPaymentOutcome(ctx context.Context, tx repository.Ledger, orderID uuid.UUID, outcome valueobject.PaymentOutcome, eventID string) (*models.Order, bool, error) {
	o, err := tx.GetOrder(ctx, orderID)
	if err != nil {
		return nil, false, err
	}
	target := outcome.OrderStatus()
	log := logger.Log.WithFields(logrus.Fields{
		"order_id": o.ID,
		"status":   o.Status,
		"outcome":  outcome,
		"event_id": eventID,
	})

	if o.Status == target {
		return o, false, nil
	}
	if o.Status != valueobject.OrderStatusPendingPayment {
		log.Warn("payment outcome conflicts with terminal order status, ignored")
		return o, false, nil
	}

	ok, err := tx.UpdateOrderStatus(ctx, o.ID, valueobject.OrderStatusPendingPayment, target)
	if err != nil {
		return nil, false, err
	}
	if !ok {
		// заказ успели отменить
		current, err := tx.GetOrder(ctx, orderID)
		if err != nil {
			return nil, false, err
		}
		log.WithField("current_status", current.Status).Warn("order changed concurrently, payment outcome ignored")
		return current, false, nil
	}

	now := s.now()
	if err := tx.AddOrderEvent(ctx, newOrderEvent(o.ID, &o.Status, target, nil, "webhook "+eventID, now)); err != nil {
		return nil, false, err
	}
	o.Status = target
	o.UpdatedAt = now
	return o, true, nil
}

// markRefunded переводит оплаченный заказ в REFUNDED. Для других статусов ничего не делает.
func (s *OrderService) markRefunded(ctx context.Context, tx repository.Ledger, orderID uuid.UUID, actorID uuid.UUID) (*models.Order, bool, error) {
	o, err := tx.GetOrder(ctx, orderID)
	if err != nil {
		return nil, false, err
	}
	if o.Status != valueobject.OrderStatusPaid {
		return o, false, nil
	}

	ok, err := tx.UpdateOrderStatus(ctx, o.ID, valueobject.OrderStatusPaid, valueobject.OrderStatusRefunded)
	if err != nil || !ok {
		return o, false, err
	}

	now := s.now()
	if err := tx.AddOrderEvent(ctx, newOrderEvent(o.ID, &o.Status, valueobject.OrderStatusRefunded, &actorID, "refund", now)); err != nil {
		return nil, false, err
	}
	o.Status = valueobject.OrderStatusRefunded
	o.UpdatedAt = now
	return o, true, nil
}

func orderEventType(status valueobject.OrderStatus) string {
	switch status {
	case valueobject.OrderStatusPaid:
		return events.OrderPaid
	case valueobject.OrderStatusFailed:
		return events.OrderFailed
	case valueobject.OrderStatusCancelled:
		return events.OrderCancelled
	case valueobject.OrderStatusRefunded:
		return events.OrderRefunded
	}
	return ""
}
