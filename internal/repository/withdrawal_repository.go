package repository

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/ignatzorin/creator-settlement/internal/models"
	"github.com/ignatzorin/creator-settlement/internal/repository/common"
)

const withdrawalColumns = `id, creator_id, requested_amount, bank_fee, net_amount, bank_details_sealed,
	bank_account_mask, bank_name, status, processor_id, rejection_reason, receipt_url,
	created_at, updated_at, processed_at, completed_at`

const openWithdrawalStatuses = `('PENDING', 'APPROVED', 'PROCESSING')`

// CreateWithdrawal сохраняет заявку. Вторая открытая заявка креатора даёт ErrAlreadyExists.
func (r *LedgerRepository) CreateWithdrawal(ctx context.Context, w *models.WithdrawalRequest) error {
	_, err := r.q.ExecContext(ctx, `
		INSERT INTO withdrawal_requests (id, creator_id, requested_amount, bank_fee, net_amount,
			bank_details_sealed, bank_account_mask, bank_name, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		w.ID, w.CreatorID, w.RequestedAmount, w.BankFee, w.NetAmount,
		w.BankDetailsSealed, w.BankAccountMask, w.BankName, w.Status, w.CreatedAt, w.UpdatedAt)
	if common.IsUniqueViolation(err, "withdrawal_requests_one_open") {
		return common.ErrAlreadyExists
	}
	if err != nil {
		return fmt.Errorf("withdrawal repository: create: %w", err)
	}
	return nil
}

// GetWithdrawal возвращает заявку по ID.
func (r *LedgerRepository) GetWithdrawal(ctx context.Context, id uuid.UUID) (*models.WithdrawalRequest, error) {
	return common.GetOne[models.WithdrawalRequest](ctx, r.q, "withdrawal",
		`SELECT `+withdrawalColumns+` FROM withdrawal_requests WHERE id = $1`, id)
}

// GetOpenWithdrawal возвращает незавершённую заявку креатора.
func (r *LedgerRepository) GetOpenWithdrawal(ctx context.Context, creatorID uuid.UUID) (*models.WithdrawalRequest, error) {
	return common.GetOne[models.WithdrawalRequest](ctx, r.q, "open withdrawal", `
		SELECT `+withdrawalColumns+` FROM withdrawal_requests
		WHERE creator_id = $1 AND status IN `+openWithdrawalStatuses+`
		LIMIT 1`, creatorID)
}

// ListWithdrawals возвращает заявки по фильтру.
func (r *LedgerRepository) ListWithdrawals(ctx context.Context, f models.WithdrawalFilter) ([]models.WithdrawalRequest, error) {
	var (
		where []string
		args  []any
	)
	if f.CreatorID != uuid.Nil {
		args = append(args, f.CreatorID)
		where = append(where, fmt.Sprintf("creator_id = $%d", len(args)))
	}
	if f.Status != nil {
		args = append(args, *f.Status)
		where = append(where, fmt.Sprintf("status = $%d", len(args)))
	}

	query := `SELECT ` + withdrawalColumns + ` FROM withdrawal_requests`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	limit, offset := common.Page(f.Limit, f.Offset, models.DefaultPageLimit, models.MaxPageLimit)
	args = append(args, limit, offset)
	query += fmt.Sprintf(" ORDER BY created_at DESC LIMIT $%d OFFSET $%d", len(args)-1, len(args))

	list := []models.WithdrawalRequest{}
	if err := sqlx.SelectContext(ctx, r.q, &list, query, args...); err != nil {
		return nil, fmt.Errorf("withdrawal repository: list: %w", err)
	}
	return list, nil
}

// TransitionWithdrawal переводит заявку из t.From в t.To, только если она всё ещё в t.From.
func (r *LedgerRepository) TransitionWithdrawal(ctx context.Context, t models.WithdrawalTransition) (bool, error) {
	if !t.From.CanTransitionTo(t.To) {
		return false, fmt.Errorf("withdrawal repository: illegal transition %s -> %s", t.From, t.To)
	}
	return common.ExecAffected(ctx, r.q, "withdrawal repository: transition", `
		UPDATE withdrawal_requests
		SET status = $3::text,
		    processor_id = $4,
		    rejection_reason = COALESCE($5, rejection_reason),
		    receipt_url = COALESCE($6, receipt_url),
		    updated_at = $7,
		    processed_at = CASE WHEN $3::text IN ('APPROVED', 'REJECTED') THEN $7 ELSE processed_at END,
		    completed_at = CASE WHEN $3::text = 'COMPLETED' THEN $7 ELSE completed_at END
		WHERE id = $1 AND status = $2`,
		t.ID, t.From, t.To, t.ProcessorID, t.Reason, t.ReceiptURL, t.At)
}
