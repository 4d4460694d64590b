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
	"github.com/ignatzorin/creator-settlement/internal/metrics"
	"github.com/ignatzorin/creator-settlement/internal/models"
	"github.com/ignatzorin/creator-settlement/internal/pkg/apperror"
	"github.com/ignatzorin/creator-settlement/internal/repository"
	"github.com/ignatzorin/creator-settlement/internal/repository/common"
)

// EscrowConfig - параметры выплаты из эскроу.
type EscrowConfig struct {
	// PlatformFeeRate применяется в момент выплаты и фиксируется в записи эскроу.
	PlatformFeeRate float64
	StoreTimeout    time.Duration
}

// EscrowService - удержание средств и начисления креаторам.
type EscrowService struct {
	store  repository.Store
	events *events.Dispatcher
	cfg    EscrowConfig
	now    func() time.Time
}

func NewEscrowService(store repository.Store, dispatcher *events.Dispatcher, cfg EscrowConfig) *EscrowService {
	return &EscrowService{
		store:  store,
		events: dispatcher,
		cfg:    cfg,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// GetEscrow возвращает эскроу соглашения сторонам и администратору.
func (s *EscrowService) GetEscrow(ctx context.Context, actor Actor, agreementID uuid.UUID) (*models.EscrowRecord, error) {
	ctx, cancel := withTimeout(ctx, s.cfg.StoreTimeout)
	defer cancel()

	e, err := s.store.GetEscrowByAgreement(ctx, agreementID)
	if err != nil {
		return nil, storeErr(err, apperror.ErrEscrowNotFound)
	}
	if !actor.IsAdmin() && e.BrandID != actor.ID && e.CreatorID != actor.ID {
		return nil, apperror.ErrEscrowNotFound
	}
	return e, nil
}

// ReleaseEscrow выплачивает эскроу соглашения креатору отдельной единицей работы.
func (s *EscrowService) ReleaseEscrow(ctx context.Context, agreementID uuid.UUID) (*models.EscrowRecord, error) {
	ctx, cancel := withTimeout(ctx, s.cfg.StoreTimeout)
	defer cancel()

	var (
		escrow   *models.EscrowRecord
		released bool
	)
	err := s.store.WithinTx(ctx, func(tx repository.Ledger) error {
		var err error
		escrow, released, err = s.releaseInTx(ctx, tx, agreementID)
		return err
	})
	if err != nil {
		return nil, storeErr(err, apperror.ErrEscrowNotFound)
	}
	if released {
		s.emitReleased(escrow)
	}
	return escrow, nil
}

// openInTx открывает эскроу на сумму заказа. Повторный вызов по тому же соглашению ничего не меняет.
func (s *EscrowService) openInTx(ctx context.Context, tx repository.Ledger, order *models.Order) (*models.EscrowRecord, bool, error) {
	e := &models.EscrowRecord{
		ID:          uuid.New(),
		AgreementID: order.AgreementID,
		OrderID:     order.ID,
		BrandID:     order.BrandID,
		CreatorID:   order.CreatorID,
		Amount:      order.Amount,
		Status:      valueobject.EscrowStatusActive,
		CreatedAt:   s.now(),
	}
	created, err := tx.CreateEscrow(ctx, e)
	if err != nil {
		return nil, false, err
	}
	if created {
		metrics.EscrowTransitions.WithLabelValues(string(valueobject.EscrowStatusActive)).Inc()
		return e, true, nil
	}

	existing, err := tx.GetEscrowByAgreement(ctx, order.AgreementID)
	if err != nil {
		return nil, false, err
	}
	if existing.OrderID != order.ID {
		return nil, false, inconsistency(logrus.Fields{
			"agreement_id":      order.AgreementID,
			"order_id":          order.ID,
			"existing_order_id": existing.OrderID,
		}, "escrow for agreement belongs to another order")
	}
	return existing, false, nil
}

// releaseInTx переводит эскроу active → released и начисляет креатору net.
// Уже выплаченное эскроу - no-op (released=false).
func (s *EscrowService) releaseInTx(ctx context.Context, tx repository.Ledger, agreementID uuid.UUID) (*models.EscrowRecord, bool, error) {
	e, err := tx.GetEscrowByAgreement(ctx, agreementID)
	if err != nil {
		return nil, false, storeErr(err, apperror.ErrEscrowNotFound)
	}
	switch e.Status {
	case valueobject.EscrowStatusReleased:
		return e, false, nil
	case valueobject.EscrowStatusRefunded:
		return nil, false, apperror.Conflict("эскроу уже возвращено бренду")
	}

	payout := valueobject.NewPayout(e.Amount, s.cfg.PlatformFeeRate)
	now := s.now()
	ok, err := tx.ReleaseEscrow(ctx, models.EscrowRelease{
		EscrowID:        e.ID,
		PlatformFeeRate: s.cfg.PlatformFeeRate,
		PlatformFee:     payout.PlatformFee,
		NetAmount:       payout.Net,
	}, now)
	if err != nil {
		return nil, false, err
	}
	if !ok {
		// параллельная выплата успела раньше
		return e, false, nil
	}

	if err := tx.CreditEarnings(ctx, e.CreatorID, payout.Net); err != nil {
		return nil, false, err
	}
	if err := tx.AddBalanceTransaction(ctx, &models.BalanceTransaction{
		ID:          uuid.New(),
		CreatorID:   e.CreatorID,
		Type:        models.BalanceTxEscrowRelease,
		Amount:      payout.Net,
		OrderID:     &e.OrderID,
		EscrowID:    &e.ID,
		Description: "escrow released",
		CreatedAt:   now,
	}); err != nil {
		return nil, false, err
	}

	rate, fee, net := s.cfg.PlatformFeeRate, payout.PlatformFee, payout.Net
	e.Status = valueobject.EscrowStatusReleased
	e.PlatformFeeRate = &rate
	e.PlatformFee = &fee
	e.NetAmount = &net
	e.ReleasedAt = &now
	return e, true, nil
}

// refundInTx возвращает удержанные средства бренду.
// После выплаты креатору баланс не трогается: пишется сторнирующая запись журнала.
func (s *EscrowService) refundInTx(ctx context.Context, tx repository.Ledger, agreementID uuid.UUID) (*models.EscrowRecord, bool, error) {
	e, err := tx.GetEscrowByAgreement(ctx, agreementID)
	if errors.Is(err, common.ErrNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}

	now := s.now()
	switch e.Status {
	case valueobject.EscrowStatusRefunded:
		return e, false, nil
	case valueobject.EscrowStatusReleased:
		net := e.Amount
		if e.NetAmount != nil {
			net = *e.NetAmount
		}
		if err := tx.AddBalanceTransaction(ctx, &models.BalanceTransaction{
			ID:          uuid.New(),
			CreatorID:   e.CreatorID,
			Type:        models.BalanceTxEscrowReversal,
			Amount:      -net,
			OrderID:     &e.OrderID,
			EscrowID:    &e.ID,
			Description: "refund after release, manual reconciliation required",
			CreatedAt:   now,
		}); err != nil {
			return nil, false, err
		}
		logger.Log.WithFields(logrus.Fields{
			"agreement_id": e.AgreementID,
			"escrow_id":    e.ID,
			"creator_id":   e.CreatorID,
			"amount":       net,
		}).Warn("refund after escrow release: reversal entry recorded, creator balance unchanged")
		return e, false, nil
	}

	ok, err := tx.RefundEscrow(ctx, e.ID, now)
	if err != nil || !ok {
		return e, false, err
	}
	metrics.EscrowTransitions.WithLabelValues(string(valueobject.EscrowStatusRefunded)).Inc()
	e.Status = valueobject.EscrowStatusRefunded
	e.RefundedAt = &now
	return e, true, nil
}

// RefundEscrow - возврат удержания по соглашению (спор или отмена до выплаты).
func (s *EscrowService) RefundEscrow(ctx context.Context, agreementID uuid.UUID) (*models.EscrowRecord, error) {
	ctx, cancel := withTimeout(ctx, s.cfg.StoreTimeout)
	defer cancel()

	var (
		escrow   *models.EscrowRecord
		refunded bool
	)
	err := s.store.WithinTx(ctx, func(tx repository.Ledger) error {
		var err error
		escrow, refunded, err = s.refundInTx(ctx, tx, agreementID)
		if err == nil && escrow == nil {
			return apperror.ErrEscrowNotFound
		}
		return err
	})
	if err != nil {
		return nil, storeErr(err, apperror.ErrEscrowNotFound)
	}
	if refunded {
		s.events.Emit(events.New(events.EscrowRefunded, escrow.AgreementID.String(), escrow, escrow.BrandID, escrow.CreatorID))
	}
	return escrow, nil
}

func (s *EscrowService) emitReleased(e *models.EscrowRecord) {
	metrics.EscrowTransitions.WithLabelValues(string(valueobject.EscrowStatusReleased)).Inc()
	s.events.Emit(events.New(events.EscrowReleased, e.AgreementID.String(), e, e.BrandID, e.CreatorID))
}
