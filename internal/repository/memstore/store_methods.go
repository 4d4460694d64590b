package memstore

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/ignatzorin/creator-settlement/internal/domain/valueobject"
	"github.com/ignatzorin/creator-settlement/internal/models"
)

// Методы Store вне транзакции: каждый вызов - отдельная атомарная операция.

func (s *Store) GetAgreement(ctx context.Context, id uuid.UUID) (*models.Agreement, error) {
	var out *models.Agreement
	err := s.do(ctx, func(l *ledger) error {
		var err error
		out, err = l.GetAgreement(ctx, id)
		return err
	})
	return out, err
}

func (s *Store) CreateOrder(ctx context.Context, o *models.Order) error {
	return s.do(ctx, func(l *ledger) error {
		return l.CreateOrder(ctx, o)
	})
}

func (s *Store) GetOrder(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	var out *models.Order
	err := s.do(ctx, func(l *ledger) error {
		var err error
		out, err = l.GetOrder(ctx, id)
		return err
	})
	return out, err
}

func (s *Store) ListOrders(ctx context.Context, f models.OrderFilter) ([]models.Order, error) {
	var out []models.Order
	err := s.do(ctx, func(l *ledger) error {
		var err error
		out, err = l.ListOrders(ctx, f)
		return err
	})
	return out, err
}

func (s *Store) FindPaidOrder(ctx context.Context, campaignID, creatorID uuid.UUID) (*models.Order, error) {
	var out *models.Order
	err := s.do(ctx, func(l *ledger) error {
		var err error
		out, err = l.FindPaidOrder(ctx, campaignID, creatorID)
		return err
	})
	return out, err
}

func (s *Store) UpdateOrderStatus(ctx context.Context, id uuid.UUID, from, to valueobject.OrderStatus) (bool, error) {
	var out bool
	err := s.do(ctx, func(l *ledger) error {
		var err error
		out, err = l.UpdateOrderStatus(ctx, id, from, to)
		return err
	})
	return out, err
}

func (s *Store) AddOrderEvent(ctx context.Context, e *models.OrderEvent) error {
	return s.do(ctx, func(l *ledger) error {
		return l.AddOrderEvent(ctx, e)
	})
}

func (s *Store) ListOrderEvents(ctx context.Context, orderID uuid.UUID) ([]models.OrderEvent, error) {
	var out []models.OrderEvent
	err := s.do(ctx, func(l *ledger) error {
		var err error
		out, err = l.ListOrderEvents(ctx, orderID)
		return err
	})
	return out, err
}

func (s *Store) CreatePaymentRecord(ctx context.Context, p *models.PaymentRecord) error {
	return s.do(ctx, func(l *ledger) error {
		return l.CreatePaymentRecord(ctx, p)
	})
}

func (s *Store) GetPaymentByIntent(ctx context.Context, intentID string) (*models.PaymentRecord, error) {
	var out *models.PaymentRecord
	err := s.do(ctx, func(l *ledger) error {
		var err error
		out, err = l.GetPaymentByIntent(ctx, intentID)
		return err
	})
	return out, err
}

func (s *Store) GetPendingPayment(ctx context.Context, orderID uuid.UUID) (*models.PaymentRecord, error) {
	var out *models.PaymentRecord
	err := s.do(ctx, func(l *ledger) error {
		var err error
		out, err = l.GetPendingPayment(ctx, orderID)
		return err
	})
	return out, err
}

func (s *Store) CountPayments(ctx context.Context, orderID uuid.UUID) (int, error) {
	var out int
	err := s.do(ctx, func(l *ledger) error {
		var err error
		out, err = l.CountPayments(ctx, orderID)
		return err
	})
	return out, err
}

func (s *Store) UpdatePaymentStatus(ctx context.Context, intentID string, from, to valueobject.PaymentStatus, payload json.RawMessage) (bool, error) {
	var out bool
	err := s.do(ctx, func(l *ledger) error {
		var err error
		out, err = l.UpdatePaymentStatus(ctx, intentID, from, to, payload)
		return err
	})
	return out, err
}

func (s *Store) ClaimWebhookEvent(ctx context.Context, e *models.WebhookEvent) (valueobject.WebhookStatus, error) {
	var out valueobject.WebhookStatus
	err := s.do(ctx, func(l *ledger) error {
		var err error
		out, err = l.ClaimWebhookEvent(ctx, e)
		return err
	})
	return out, err
}

func (s *Store) MarkWebhookProcessed(ctx context.Context, eventID string, at time.Time) error {
	return s.do(ctx, func(l *ledger) error {
		return l.MarkWebhookProcessed(ctx, eventID, at)
	})
}

func (s *Store) MarkWebhookFailed(ctx context.Context, e *models.WebhookEvent, reason string) error {
	return s.do(ctx, func(l *ledger) error {
		return l.MarkWebhookFailed(ctx, e, reason)
	})
}

func (s *Store) GetWebhookEvent(ctx context.Context, eventID string) (*models.WebhookEvent, error) {
	var out *models.WebhookEvent
	err := s.do(ctx, func(l *ledger) error {
		var err error
		out, err = l.GetWebhookEvent(ctx, eventID)
		return err
	})
	return out, err
}

func (s *Store) CreateEscrow(ctx context.Context, e *models.EscrowRecord) (bool, error) {
	var out bool
	err := s.do(ctx, func(l *ledger) error {
		var err error
		out, err = l.CreateEscrow(ctx, e)
		return err
	})
	return out, err
}

func (s *Store) GetEscrowByAgreement(ctx context.Context, agreementID uuid.UUID) (*models.EscrowRecord, error) {
	var out *models.EscrowRecord
	err := s.do(ctx, func(l *ledger) error {
		var err error
		out, err = l.GetEscrowByAgreement(ctx, agreementID)
		return err
	})
	return out, err
}

func (s *Store) ReleaseEscrow(ctx context.Context, rel models.EscrowRelease, at time.Time) (bool, error) {
	var out bool
	err := s.do(ctx, func(l *ledger) error {
		var err error
		out, err = l.ReleaseEscrow(ctx, rel, at)
		return err
	})
	return out, err
}

func (s *Store) RefundEscrow(ctx context.Context, escrowID uuid.UUID, at time.Time) (bool, error) {
	var out bool
	err := s.do(ctx, func(l *ledger) error {
		var err error
		out, err = l.RefundEscrow(ctx, escrowID, at)
		return err
	})
	return out, err
}

func (s *Store) GetBalance(ctx context.Context, creatorID uuid.UUID) (*models.CreatorBalance, error) {
	var out *models.CreatorBalance
	err := s.do(ctx, func(l *ledger) error {
		var err error
		out, err = l.GetBalance(ctx, creatorID)
		return err
	})
	return out, err
}

func (s *Store) CreditEarnings(ctx context.Context, creatorID uuid.UUID, amount float64) error {
	return s.do(ctx, func(l *ledger) error {
		return l.CreditEarnings(ctx, creatorID, amount)
	})
}

func (s *Store) ReserveWithdrawal(ctx context.Context, creatorID uuid.UUID, amount float64) (bool, error) {
	var out bool
	err := s.do(ctx, func(l *ledger) error {
		var err error
		out, err = l.ReserveWithdrawal(ctx, creatorID, amount)
		return err
	})
	return out, err
}

func (s *Store) RestoreReservation(ctx context.Context, creatorID uuid.UUID, amount float64) (bool, error) {
	var out bool
	err := s.do(ctx, func(l *ledger) error {
		var err error
		out, err = l.RestoreReservation(ctx, creatorID, amount)
		return err
	})
	return out, err
}

func (s *Store) SettleWithdrawal(ctx context.Context, creatorID uuid.UUID, amount float64) (bool, error) {
	var out bool
	err := s.do(ctx, func(l *ledger) error {
		var err error
		out, err = l.SettleWithdrawal(ctx, creatorID, amount)
		return err
	})
	return out, err
}

func (s *Store) AddBalanceTransaction(ctx context.Context, t *models.BalanceTransaction) error {
	return s.do(ctx, func(l *ledger) error {
		return l.AddBalanceTransaction(ctx, t)
	})
}

func (s *Store) ListBalanceTransactions(ctx context.Context, creatorID uuid.UUID, limit, offset int) ([]models.BalanceTransaction, error) {
	var out []models.BalanceTransaction
	err := s.do(ctx, func(l *ledger) error {
		var err error
		out, err = l.ListBalanceTransactions(ctx, creatorID, limit, offset)
		return err
	})
	return out, err
}

func (s *Store) CreateWithdrawal(ctx context.Context, w *models.WithdrawalRequest) error {
	return s.do(ctx, func(l *ledger) error {
		return l.CreateWithdrawal(ctx, w)
	})
}

func (s *Store) GetWithdrawal(ctx context.Context, id uuid.UUID) (*models.WithdrawalRequest, error) {
	var out *models.WithdrawalRequest
	err := s.do(ctx, func(l *ledger) error {
		var err error
		out, err = l.GetWithdrawal(ctx, id)
		return err
	})
	return out, err
}

func (s *Store) GetOpenWithdrawal(ctx context.Context, creatorID uuid.UUID) (*models.WithdrawalRequest, error) {
	var out *models.WithdrawalRequest
	err := s.do(ctx, func(l *ledger) error {
		var err error
		out, err = l.GetOpenWithdrawal(ctx, creatorID)
		return err
	})
	return out, err
}

func (s *Store) ListWithdrawals(ctx context.Context, f models.WithdrawalFilter) ([]models.WithdrawalRequest, error) {
	var out []models.WithdrawalRequest
	err := s.do(ctx, func(l *ledger) error {
		var err error
		out, err = l.ListWithdrawals(ctx, f)
		return err
	})
	return out, err
}

func (s *Store) TransitionWithdrawal(ctx context.Context, t models.WithdrawalTransition) (bool, error) {
	var out bool
	err := s.do(ctx, func(l *ledger) error {
		var err error
		out, err = l.TransitionWithdrawal(ctx, t)
		return err
	})
	return out, err
}

func (s *Store) GetSubmission(ctx context.Context, id uuid.UUID) (*models.Submission, error) {
	var out *models.Submission
	err := s.do(ctx, func(l *ledger) error {
		var err error
		out, err = l.GetSubmission(ctx, id)
		return err
	})
	return out, err
}

func (s *Store) ApproveSubmission(ctx context.Context, id uuid.UUID, at time.Time) (bool, error) {
	var out bool
	err := s.do(ctx, func(l *ledger) error {
		var err error
		out, err = l.ApproveSubmission(ctx, id, at)
		return err
	})
	return out, err
}
