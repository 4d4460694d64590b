package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/ignatzorin/creator-settlement/internal/domain/valueobject"
	"github.com/ignatzorin/creator-settlement/internal/models"
	"github.com/ignatzorin/creator-settlement/internal/repository/common"
)

const escrowColumns = `id, agreement_id, order_id, brand_id, creator_id, amount, status,
	platform_fee_rate, platform_fee, net_amount, created_at, released_at, refunded_at`

// CreateEscrow открывает эскроу. Если по соглашению эскроу уже есть, ничего не меняет.
func (r *LedgerRepository) CreateEscrow(ctx context.Context, e *models.EscrowRecord) (bool, error) {
	return common.ExecAffected(ctx, r.q, "escrow repository: create", `
		INSERT INTO escrow_records (id, agreement_id, order_id, brand_id, creator_id, amount, status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (agreement_id) DO NOTHING`,
		e.ID, e.AgreementID, e.OrderID, e.BrandID, e.CreatorID, e.Amount, e.Status, e.CreatedAt)
}

// GetEscrowByAgreement возвращает эскроу по соглашению.
func (r *LedgerRepository) GetEscrowByAgreement(ctx context.Context, agreementID uuid.UUID) (*models.EscrowRecord, error) {
	return common.GetOne[models.EscrowRecord](ctx, r.q, "escrow",
		`SELECT `+escrowColumns+` FROM escrow_records WHERE agreement_id = $1`, agreementID)
}

// ReleaseEscrow закрывает активное эскроу. Второй вызов видит ноль строк.
func (r *LedgerRepository) ReleaseEscrow(ctx context.Context, rel models.EscrowRelease, at time.Time) (bool, error) {
	return common.ExecAffected(ctx, r.q, "escrow repository: release", `
		UPDATE escrow_records
		SET status = $2, platform_fee_rate = $3, platform_fee = $4, net_amount = $5, released_at = $6
		WHERE id = $1 AND status = $7`,
		rel.EscrowID, valueobject.EscrowStatusReleased, rel.PlatformFeeRate, rel.PlatformFee, rel.NetAmount, at,
		valueobject.EscrowStatusActive)
}

// RefundEscrow возвращает активное эскроу бренду. Баланс креатора не трогает.
func (r *LedgerRepository) RefundEscrow(ctx context.Context, escrowID uuid.UUID, at time.Time) (bool, error) {
	return common.ExecAffected(ctx, r.q, "escrow repository: refund", `
		UPDATE escrow_records SET status = $2, refunded_at = $3
		WHERE id = $1 AND status = $4`,
		escrowID, valueobject.EscrowStatusRefunded, at, valueobject.EscrowStatusActive)
}

// GetBalance возвращает баланс креатора. Отсутствие строки - нулевой баланс.
func (r *LedgerRepository) GetBalance(ctx context.Context, creatorID uuid.UUID) (*models.CreatorBalance, error) {
	b, err := common.GetOne[models.CreatorBalance](ctx, r.q, "balance", `
		SELECT creator_id, available, pending_withdrawal, total_earned, total_withdrawn, updated_at
		FROM creator_balances WHERE creator_id = $1`, creatorID)
	if errors.Is(err, common.ErrNotFound) {
		return &models.CreatorBalance{CreatorID: creatorID}, nil
	}
	return b, err
}

// CreditEarnings зачисляет заработок одним выражением.
func (r *LedgerRepository) CreditEarnings(ctx context.Context, creatorID uuid.UUID, amount float64) error {
	_, err := r.q.ExecContext(ctx, `
		INSERT INTO creator_balances (creator_id, available, total_earned, updated_at)
		VALUES ($1, $2, $2, NOW())
		ON CONFLICT (creator_id) DO UPDATE
		SET available = creator_balances.available + EXCLUDED.available,
		    total_earned = creator_balances.total_earned + EXCLUDED.total_earned,
		    updated_at = NOW()`,
		creatorID, amount)
	if err != nil {
		return fmt.Errorf("balance repository: credit: %w", err)
	}
	return nil
}

// ReserveWithdrawal переносит сумму из доступных средств в резерв.
func (r *LedgerRepository) ReserveWithdrawal(ctx context.Context, creatorID uuid.UUID, amount float64) (bool, error) {
	return common.ExecAffected(ctx, r.q, "balance repository: reserve", `
		UPDATE creator_balances
		SET available = available - $2, pending_withdrawal = pending_withdrawal + $2, updated_at = NOW()
		WHERE creator_id = $1 AND available >= $2`,
		creatorID, amount)
}

// RestoreReservation возвращает резерв в доступные средства.
func (r *LedgerRepository) RestoreReservation(ctx context.Context, creatorID uuid.UUID, amount float64) (bool, error) {
	return common.ExecAffected(ctx, r.q, "balance repository: restore", `
		UPDATE creator_balances
		SET available = available + $2, pending_withdrawal = pending_withdrawal - $2, updated_at = NOW()
		WHERE creator_id = $1 AND pending_withdrawal >= $2`,
		creatorID, amount)
}

// SettleWithdrawal списывает резерв как выведенные средства.
func (r *LedgerRepository) SettleWithdrawal(ctx context.Context, creatorID uuid.UUID, amount float64) (bool, error) {
	return common.ExecAffected(ctx, r.q, "balance repository: settle", `
		UPDATE creator_balances
		SET pending_withdrawal = pending_withdrawal - $2, total_withdrawn = total_withdrawn + $2, updated_at = NOW()
		WHERE creator_id = $1 AND pending_withdrawal >= $2`,
		creatorID, amount)
}

// AddBalanceTransaction пишет запись в журнал баланса.
func (r *LedgerRepository) AddBalanceTransaction(ctx context.Context, t *models.BalanceTransaction) error {
	_, err := r.q.ExecContext(ctx, `
		INSERT INTO balance_transactions (id, creator_id, type, amount, order_id, escrow_id, withdrawal_id, description, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		t.ID, t.CreatorID, t.Type, t.Amount, t.OrderID, t.EscrowID, t.WithdrawalID, t.Description, t.CreatedAt)
	if err != nil {
		return fmt.Errorf("balance repository: add transaction: %w", err)
	}
	return nil
}

// ListBalanceTransactions возвращает журнал креатора, новые сверху.
func (r *LedgerRepository) ListBalanceTransactions(ctx context.Context, creatorID uuid.UUID, limit, offset int) ([]models.BalanceTransaction, error) {
	limit, offset = common.Page(limit, offset, models.DefaultPageLimit, models.MaxPageLimit)
	txs := []models.BalanceTransaction{}
	err := sqlx.SelectContext(ctx, r.q, &txs, `
		SELECT id, creator_id, type, amount, order_id, escrow_id, withdrawal_id, description, created_at
		FROM balance_transactions WHERE creator_id = $1
		ORDER BY created_at DESC LIMIT $2 OFFSET $3`,
		creatorID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("balance repository: list transactions: %w", err)
	}
	return txs, nil
}
