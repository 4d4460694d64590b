package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
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
	"github.com/ignatzorin/creator-settlement/internal/secure"
	"github.com/ignatzorin/creator-settlement/internal/validation"
)

// WithdrawalConfig - правила вывода.
type WithdrawalConfig struct {
	MinAmount    float64
	BankFee      float64
	StoreTimeout time.Duration
}

// WithdrawalService - заявки креаторов на вывод средств.
type WithdrawalService struct {
	store  repository.Store
	sealer *secure.Sealer
	events *events.Dispatcher
	cfg    WithdrawalConfig
	now    func() time.Time
}

func NewWithdrawalService(store repository.Store, sealer *secure.Sealer, dispatcher *events.Dispatcher, cfg WithdrawalConfig) *WithdrawalService {
	return &WithdrawalService{
		store:  store,
		sealer: sealer,
		events: dispatcher,
		cfg:    cfg,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// WithdrawalInput - заявка креатора.
type WithdrawalInput struct {
	Amount      float64
	BankDetails models.BankDetails
}

// RequestWithdrawal резервирует сумму на балансе и создаёт заявку в PENDING.
func (s *WithdrawalService) RequestWithdrawal(ctx context.Context, actor Actor, in WithdrawalInput) (*models.WithdrawalRequest, error) {
	if actor.Role != models.RoleCreator {
		return nil, apperror.Forbidden("вывод средств доступен только креатору")
	}
	amount := valueobject.Round2(in.Amount)
	if amount <= 0 || amount < s.cfg.MinAmount {
		return nil, apperror.Validation(fmt.Sprintf("минимальная сумма вывода %.2f", s.cfg.MinAmount))
	}
	net := valueobject.Sub(amount, s.cfg.BankFee)
	if net <= 0 {
		return nil, apperror.Validation("сумма вывода не покрывает комиссию банка")
	}
	details, err := validation.NormalizeBankDetails(in.BankDetails)
	if err != nil {
		return nil, apperror.Validation(err.Error())
	}
	sealed, err := s.sealer.SealBankDetails(details)
	if err != nil {
		return nil, apperror.Internal(err)
	}

	ctx, cancel := withTimeout(ctx, s.cfg.StoreTimeout)
	defer cancel()

	now := s.now()
	req := &models.WithdrawalRequest{
		ID:                uuid.New(),
		CreatorID:         actor.ID,
		RequestedAmount:   amount,
		BankFee:           s.cfg.BankFee,
		NetAmount:         net,
		BankDetailsSealed: sealed,
		BankAccountMask:   details.Masked(),
		BankName:          details.BankName,
		Status:            valueobject.WithdrawalStatusPending,
		CreatedAt:         now,
		UpdatedAt:         now,
	}
	err = s.store.WithinTx(ctx, func(tx repository.Ledger) error {
		if _, err := tx.GetOpenWithdrawal(ctx, actor.ID); err == nil {
			return apperror.ErrWithdrawalInProgress
		} else if !errors.Is(err, common.ErrNotFound) {
			return err
		}

		ok, err := tx.ReserveWithdrawal(ctx, actor.ID, amount)
		if err != nil {
			return err
		}
		if !ok {
			return apperror.ErrInsufficientBalance
		}

		if err := tx.CreateWithdrawal(ctx, req); err != nil {
			if errors.Is(err, common.ErrAlreadyExists) {
				return apperror.ErrWithdrawalInProgress
			}
			return err
		}
		return tx.AddBalanceTransaction(ctx, balanceEntry(req, models.BalanceTxWithdrawalReserve, -amount, "withdrawal reserved", now))
	})
	if err != nil {
		return nil, storeErr(err, nil)
	}

	metrics.WithdrawalTransitions.WithLabelValues(string(req.Status)).Inc()
	s.events.Emit(events.New(events.WithdrawalRequested, req.ID.String(), req, req.CreatorID))
	return req, nil
}

// Approve переводит заявку PENDING → APPROVED. Резерв не меняется.
func (s *WithdrawalService) Approve(ctx context.Context, actor Actor, id uuid.UUID) (*models.WithdrawalRequest, error) {
	return s.transition(ctx, actor, id, valueobject.WithdrawalStatusApproved, transitionOpts{
		from: []valueobject.WithdrawalStatus{valueobject.WithdrawalStatusPending},
	})
}

// Reject отклоняет заявку и возвращает резерв в available.
func (s *WithdrawalService) Reject(ctx context.Context, actor Actor, id uuid.UUID, reason string) (*models.WithdrawalRequest, error) {
	reason = strings.TrimSpace(reason)
	if err := validation.ValidateReason(reason); err != nil {
		return nil, apperror.Validation(err.Error())
	}
	return s.transition(ctx, actor, id, valueobject.WithdrawalStatusRejected, transitionOpts{
		from:   []valueobject.WithdrawalStatus{valueobject.WithdrawalStatusPending},
		reason: &reason,
		balance: func(ctx context.Context, tx repository.Ledger, w *models.WithdrawalRequest, now time.Time) error {
			ok, err := tx.RestoreReservation(ctx, w.CreatorID, w.RequestedAmount)
			if err != nil {
				return err
			}
			if !ok {
				return inconsistency(withdrawalFields(w), "pending withdrawal balance below reserved amount on reject")
			}
			return tx.AddBalanceTransaction(ctx, balanceEntry(w, models.BalanceTxWithdrawalRestore, w.RequestedAmount, "withdrawal rejected", now))
		},
	})
}

// Process отмечает, что банковский перевод запущен.
func (s *WithdrawalService) Process(ctx context.Context, actor Actor, id uuid.UUID) (*models.WithdrawalRequest, error) {
	return s.transition(ctx, actor, id, valueobject.WithdrawalStatusProcessing, transitionOpts{
		from: []valueobject.WithdrawalStatus{valueobject.WithdrawalStatusApproved},
	})
}

// Complete списывает резерв в totalWithdrawn и закрывает заявку.
func (s *WithdrawalService) Complete(ctx context.Context, actor Actor, id uuid.UUID, receiptURL string) (*models.WithdrawalRequest, error) {
	receiptURL = strings.TrimSpace(receiptURL)
	if err := validation.ValidateReceiptURL(receiptURL); err != nil {
		return nil, apperror.Validation(err.Error())
	}
	return s.transition(ctx, actor, id, valueobject.WithdrawalStatusCompleted, transitionOpts{
		from:    []valueobject.WithdrawalStatus{valueobject.WithdrawalStatusApproved, valueobject.WithdrawalStatusProcessing},
		receipt: &receiptURL,
		balance: func(ctx context.Context, tx repository.Ledger, w *models.WithdrawalRequest, now time.Time) error {
			ok, err := tx.SettleWithdrawal(ctx, w.CreatorID, w.RequestedAmount)
			if err != nil {
				return err
			}
			if !ok {
				return inconsistency(withdrawalFields(w), "pending withdrawal balance below reserved amount on complete")
			}
			return tx.AddBalanceTransaction(ctx, balanceEntry(w, models.BalanceTxWithdrawalComplete, -w.RequestedAmount, "withdrawal completed", now))
		},
	})
}

type transitionOpts struct {
	from    []valueobject.WithdrawalStatus
	reason  *string
	receipt *string
	balance func(ctx context.Context, tx repository.Ledger, w *models.WithdrawalRequest, now time.Time) error
}

func (s *WithdrawalService) transition(ctx context.Context, actor Actor, id uuid.UUID, to valueobject.WithdrawalStatus, opts transitionOpts) (*models.WithdrawalRequest, error) {
	if !actor.IsAdmin() {
		return nil, apperror.ErrForbidden
	}

	ctx, cancel := withTimeout(ctx, s.cfg.StoreTimeout)
	defer cancel()

	var result *models.WithdrawalRequest
	err := s.store.WithinTx(ctx, func(tx repository.Ledger) error {
		w, err := tx.GetWithdrawal(ctx, id)
		if err != nil {
			return storeErr(err, apperror.ErrWithdrawalNotFound)
		}
		if !statusIn(w.Status, opts.from) {
			return apperror.Conflict(fmt.Sprintf("заявку в статусе %s нельзя перевести в %s", w.Status, to))
		}

		now := s.now()
		ok, err := tx.TransitionWithdrawal(ctx, models.WithdrawalTransition{
			ID:          w.ID,
			From:        w.Status,
			To:          to,
			ProcessorID: actor.ID,
			Reason:      opts.reason,
			ReceiptURL:  opts.receipt,
			At:          now,
		})
		if err != nil {
			return err
		}
		if !ok {
			return apperror.Conflict("статус заявки уже изменился")
		}
		if opts.balance != nil {
			if err := opts.balance(ctx, tx, w, now); err != nil {
				return err
			}
		}

		updated, err := tx.GetWithdrawal(ctx, id)
		if err != nil {
			return err
		}
		result = updated
		return nil
	})
	if err != nil {
		return nil, storeErr(err, apperror.ErrWithdrawalNotFound)
	}

	metrics.WithdrawalTransitions.WithLabelValues(string(to)).Inc()
	logger.Log.WithFields(withdrawalFields(result)).WithField("processor_id", actor.ID).Info("withdrawal status changed")
	s.events.Emit(events.New(withdrawalEventType(to), result.ID.String(), result, result.CreatorID))
	return result, nil
}

// GetBalance возвращает снимок баланса креатора.
func (s *WithdrawalService) GetBalance(ctx context.Context, actor Actor) (*models.CreatorBalance, error) {
	ctx, cancel := withTimeout(ctx, s.cfg.StoreTimeout)
	defer cancel()

	b, err := s.store.GetBalance(ctx, actor.ID)
	if err != nil {
		return nil, storeErr(err, nil)
	}
	return b, nil
}

// ListTransactions возвращает журнал баланса креатора.
func (s *WithdrawalService) ListTransactions(ctx context.Context, actor Actor, limit, offset int) ([]models.BalanceTransaction, error) {
	ctx, cancel := withTimeout(ctx, s.cfg.StoreTimeout)
	defer cancel()

	list, err := s.store.ListBalanceTransactions(ctx, actor.ID, limit, offset)
	if err != nil {
		return nil, storeErr(err, nil)
	}
	return list, nil
}

// ListWithdrawals: креатор видит свои заявки, администратор - все.
func (s *WithdrawalService) ListWithdrawals(ctx context.Context, actor Actor, status string, limit, offset int) ([]models.WithdrawalRequest, error) {
	filter := models.WithdrawalFilter{Limit: limit, Offset: offset}
	if !actor.IsAdmin() {
		filter.CreatorID = actor.ID
	}
	if status != "" {
		st, err := valueobject.NewWithdrawalStatus(status)
		if err != nil {
			return nil, apperror.Validation("неизвестный статус заявки")
		}
		filter.Status = &st
	}

	ctx, cancel := withTimeout(ctx, s.cfg.StoreTimeout)
	defer cancel()

	list, err := s.store.ListWithdrawals(ctx, filter)
	if err != nil {
		return nil, storeErr(err, nil)
	}
	return list, nil
}

// GetWithdrawal возвращает заявку. Реквизиты расшифровываются только для администратора.
func (s *WithdrawalService) GetWithdrawal(ctx context.Context, actor Actor, id uuid.UUID) (*models.WithdrawalView, error) {
	ctx, cancel := withTimeout(ctx, s.cfg.StoreTimeout)
	defer cancel()

	w, err := s.store.GetWithdrawal(ctx, id)
	if err != nil {
		return nil, storeErr(err, apperror.ErrWithdrawalNotFound)
	}
	if !actor.IsAdmin() && w.CreatorID != actor.ID {
		return nil, apperror.ErrWithdrawalNotFound
	}

	view := &models.WithdrawalView{WithdrawalRequest: *w}
	if actor.IsAdmin() {
		details, err := s.sealer.OpenBankDetails(w.BankDetailsSealed)
		if err != nil {
			return nil, inconsistency(withdrawalFields(w), "cannot decrypt bank details")
		}
		view.BankDetails = details
	}
	return view, nil
}

func balanceEntry(w *models.WithdrawalRequest, kind string, amount float64, description string, at time.Time) *models.BalanceTransaction {
	return &models.BalanceTransaction{
		ID:           uuid.New(),
		CreatorID:    w.CreatorID,
		Type:         kind,
		Amount:       amount,
		WithdrawalID: ptr(w.ID),
		Description:  description,
		CreatedAt:    at,
	}
}

func withdrawalFields(w *models.WithdrawalRequest) logrus.Fields {
	return logrus.Fields{
		"withdrawal_id": w.ID,
		"creator_id":    w.CreatorID,
		"amount":        w.RequestedAmount,
		"status":        w.Status,
	}
}

func statusIn(s valueobject.WithdrawalStatus, list []valueobject.WithdrawalStatus) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

func withdrawalEventType(to valueobject.WithdrawalStatus) string {
	switch to {
	case valueobject.WithdrawalStatusApproved:
		return events.WithdrawalApproved
	case valueobject.WithdrawalStatusRejected:
		return events.WithdrawalRejected
	case valueobject.WithdrawalStatusProcessing:
		return events.WithdrawalProcessing
	case valueobject.WithdrawalStatusCompleted:
		return events.WithdrawalCompleted
	}
	return events.WithdrawalRequested
}
