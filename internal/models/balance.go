package models

import (
	"time"

	"github.com/google/uuid"
)

// Типы записей журнала баланса
const (
	BalanceTxEscrowRelease      = "escrow_release"
	BalanceTxEscrowReversal     = "escrow_reversal"
	BalanceTxWithdrawalReserve  = "withdrawal_reserve"
	BalanceTxWithdrawalRestore  = "withdrawal_restore"
	BalanceTxWithdrawalComplete = "withdrawal_complete"
)

// CreatorBalance - баланс креатора.
type CreatorBalance struct {
	CreatorID         uuid.UUID `db:"creator_id" json:"creator_id"`
	Available         float64   `db:"available" json:"available"`
	PendingWithdrawal float64   `db:"pending_withdrawal" json:"pending_withdrawal"`
	TotalEarned       float64   `db:"total_earned" json:"total_earned"`
	TotalWithdrawn    float64   `db:"total_withdrawn" json:"total_withdrawn"`
	UpdatedAt         time.Time `db:"updated_at" json:"updated_at"`
}

// BalanceTransaction - запись журнала изменений баланса.
type BalanceTransaction struct {
	ID           uuid.UUID  `db:"id" json:"id"`
	CreatorID    uuid.UUID  `db:"creator_id" json:"creator_id"`
	Type         string     `db:"type" json:"type"`
	Amount       float64    `db:"amount" json:"amount"`
	OrderID      *uuid.UUID `db:"order_id" json:"order_id,omitempty"`
	EscrowID     *uuid.UUID `db:"escrow_id" json:"escrow_id,omitempty"`
	WithdrawalID *uuid.UUID `db:"withdrawal_id" json:"withdrawal_id,omitempty"`
	Description  string     `db:"description" json:"description"`
	CreatedAt    time.Time  `db:"created_at" json:"created_at"`
}
