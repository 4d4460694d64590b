package repository

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/ignatzorin/creator-settlement/internal/domain/valueobject"
	"github.com/ignatzorin/creator-settlement/internal/models"
)

// Все методы с результатом (bool, error) - условные обновления:
// false означает, что охранное условие не выполнилось и ничего не изменилось.

// OrderStore - заказы, соглашения и журнал переходов.
type OrderStore interface {
	GetAgreement(ctx context.Context, id uuid.UUID) (*models.Agreement, error)
	CreateOrder(ctx context.Context, order *models.Order) error
	GetOrder(ctx context.Context, id uuid.UUID) (*models.Order, error)
	ListOrders(ctx context.Context, filter models.OrderFilter) ([]models.Order, error)
	// FindPaidOrder возвращает оплаченный заказ по паре (кампания, креатор) или ErrNotFound.
	FindPaidOrder(ctx context.Context, campaignID, creatorID uuid.UUID) (*models.Order, error)
	UpdateOrderStatus(ctx context.Context, id uuid.UUID, from, to valueobject.OrderStatus) (bool, error)
	AddOrderEvent(ctx context.Context, event *models.OrderEvent) error
	ListOrderEvents(ctx context.Context, orderID uuid.UUID) ([]models.OrderEvent, error)
}

// PaymentStore - платёжные записи и маркеры вебхуков.
type PaymentStore interface {
	CreatePaymentRecord(ctx context.Context, rec *models.PaymentRecord) error
	GetPaymentByIntent(ctx context.Context, intentID string) (*models.PaymentRecord, error)
	GetPendingPayment(ctx context.Context, orderID uuid.UUID) (*models.PaymentRecord, error)
	CountPayments(ctx context.Context, orderID uuid.UUID) (int, error)
	UpdatePaymentStatus(ctx context.Context, intentID string, from, to valueobject.PaymentStatus, payload json.RawMessage) (bool, error)

	// ClaimWebhookEvent создаёт маркер PENDING или блокирует существующий до конца транзакции.
	// Возвращает статус маркера на момент захвата.
	ClaimWebhookEvent(ctx context.Context, event *models.WebhookEvent) (valueobject.WebhookStatus, error)
	MarkWebhookProcessed(ctx context.Context, eventID string, at time.Time) error
	// MarkWebhookFailed вызывается вне транзакции обработки и создаёт маркер, если его откатили.
	MarkWebhookFailed(ctx context.Context, event *models.WebhookEvent, reason string) error
	GetWebhookEvent(ctx context.Context, eventID string) (*models.WebhookEvent, error)
}

// EscrowStore - эскроу, балансы креаторов и журнал баланса.
type EscrowStore interface {
	// CreateEscrow идемпотентна: повторная вставка по тому же соглашению возвращает false.
	CreateEscrow(ctx context.Context, escrow *models.EscrowRecord) (bool, error)
	GetEscrowByAgreement(ctx context.Context, agreementID uuid.UUID) (*models.EscrowRecord, error)
	ReleaseEscrow(ctx context.Context, release models.EscrowRelease, at time.Time) (bool, error)
	RefundEscrow(ctx context.Context, escrowID uuid.UUID, at time.Time) (bool, error)

	GetBalance(ctx context.Context, creatorID uuid.UUID) (*models.CreatorBalance, error)
	CreditEarnings(ctx context.Context, creatorID uuid.UUID, amount float64) error
	// ReserveWithdrawal: available -= amount, pending += amount, если available >= amount.
	ReserveWithdrawal(ctx context.Context, creatorID uuid.UUID, amount float64) (bool, error)
	// RestoreReservation: available += amount, pending -= amount, если pending >= amount.
	RestoreReservation(ctx context.Context, creatorID uuid.UUID, amount float64) (bool, error)
	// SettleWithdrawal: pending -= amount, withdrawn += amount, если pending >= amount.
	SettleWithdrawal(ctx context.Context, creatorID uuid.UUID, amount float64) (bool, error)
	AddBalanceTransaction(ctx context.Context, tx *models.BalanceTransaction) error
	ListBalanceTransactions(ctx context.Context, creatorID uuid.UUID, limit, offset int) ([]models.BalanceTransaction, error)
}

// WithdrawalStore - заявки на вывод.
type WithdrawalStore interface {
	CreateWithdrawal(ctx context.Context, req *models.WithdrawalRequest) error
	GetWithdrawal(ctx context.Context, id uuid.UUID) (*models.WithdrawalRequest, error)
	GetOpenWithdrawal(ctx context.Context, creatorID uuid.UUID) (*models.WithdrawalRequest, error)
	ListWithdrawals(ctx context.Context, filter models.WithdrawalFilter) ([]models.WithdrawalRequest, error)
	TransitionWithdrawal(ctx context.Context, t models.WithdrawalTransition) (bool, error)
}

// SubmissionStore - работы креаторов.
type SubmissionStore interface {
	GetSubmission(ctx context.Context, id uuid.UUID) (*models.Submission, error)
	// ApproveSubmission снимает водяной знак, если работа ещё не одобрена.
	ApproveSubmission(ctx context.Context, id uuid.UUID, at time.Time) (bool, error)
}

// Ledger - полный набор операций хранилища расчётов.
type Ledger interface {
	OrderStore
	PaymentStore
	EscrowStore
	WithdrawalStore
	SubmissionStore
}

// Store - хранилище с единицей работы. Всё, что делает fn, фиксируется одним коммитом
// или откатывается целиком.
type Store interface {
	Ledger
	WithinTx(ctx context.Context, fn func(tx Ledger) error) error
}
