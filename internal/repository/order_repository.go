package repository

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/ignatzorin/creator-settlement/internal/domain/valueobject"
	"github.com/ignatzorin/creator-settlement/internal/models"
	"github.com/ignatzorin/creator-settlement/internal/repository/common"
)

const orderColumns = `id, agreement_id, campaign_id, brand_id, creator_id, amount, gateway_fee,
	total_charged, currency, status, created_at, updated_at`

// GetAgreement возвращает соглашение.
func (r *LedgerRepository) GetAgreement(ctx context.Context, id uuid.UUID) (*models.Agreement, error) {
	return common.GetOne[models.Agreement](ctx, r.q, "agreement",
		`SELECT id, campaign_id, brand_id, creator_id, status, created_at FROM agreements WHERE id = $1`, id)
}

// CreateOrder сохраняет заказ. Второй заказ по тому же соглашению даёт ErrAlreadyExists.
func (r *LedgerRepository) CreateOrder(ctx context.Context, o *models.Order) error {
	_, err := r.q.ExecContext(ctx, `
		INSERT INTO orders (`+orderColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
		o.ID, o.AgreementID, o.CampaignID, o.BrandID, o.CreatorID, o.Amount, o.GatewayFee,
		o.TotalCharged, o.Currency, o.Status, o.CreatedAt, o.UpdatedAt,
	)
	if common.IsUniqueViolation(err, "orders_agreement_unique") {
		return common.ErrAlreadyExists
	}
	if err != nil {
		return fmt.Errorf("order repository: create: %w", err)
	}
	return nil
}

// GetOrder возвращает заказ по ID.
func (r *LedgerRepository) GetOrder(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	return common.GetOne[models.Order](ctx, r.q, "order",
		`SELECT `+orderColumns+` FROM orders WHERE id = $1`, id)
}

// ListOrders возвращает заказы участника или все заказы.
func (r *LedgerRepository) ListOrders(ctx context.Context, f models.OrderFilter) ([]models.Order, error) {
	var (
		where []string
		args  []any
	)
	if f.ParticipantID != uuid.Nil {
		args = append(args, f.ParticipantID)
		where = append(where, fmt.Sprintf("(brand_id = $%d OR creator_id = $%d)", len(args), len(args)))
	}
	if f.Status != nil {
		args = append(args, *f.Status)
		where = append(where, fmt.Sprintf("status = $%d", len(args)))
	}

	query := `SELECT ` + orderColumns + ` FROM orders`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	limit, offset := common.Page(f.Limit, f.Offset, models.DefaultPageLimit, models.MaxPageLimit)
	args = append(args, limit, offset)
	query += fmt.Sprintf(" ORDER BY created_at DESC LIMIT $%d OFFSET $%d", len(args)-1, len(args))

	orders := []models.Order{}
	if err := sqlx.SelectContext(ctx, r.q, &orders, query, args...); err != nil {
		return nil, fmt.Errorf("order repository: list: %w", err)
	}
	return orders, nil
}

// FindPaidOrder возвращает оплаченный заказ по паре (кампания, креатор).
func (r *LedgerRepository) FindPaidOrder(ctx context.Context, campaignID, creatorID uuid.UUID) (*models.Order, error) {
	return common.GetOne[models.Order](ctx, r.q, "paid order", `
		SELECT `+orderColumns+` FROM orders
		WHERE campaign_id = $1 AND creator_id = $2 AND status = $3
		ORDER BY created_at DESC
		LIMIT 1`,
		campaignID, creatorID, valueobject.OrderStatusPaid)
}

// UpdateOrderStatus переводит заказ из from в to, только если он всё ещё в from.
func (r *LedgerRepository) UpdateOrderStatus(ctx context.Context, id uuid.UUID, from, to valueobject.OrderStatus) (bool, error) {
	if !from.CanTransitionTo(to) {
		return false, fmt.Errorf("order repository: illegal transition %s -> %s", from, to)
	}
	return common.ExecAffected(ctx, r.q, "order repository: update status", `
		UPDATE orders SET status = $3, updated_at = NOW()
		WHERE id = $1 AND status = $2`,
		id, from, to)
}

// AddOrderEvent пишет переход в журнал заказа.
func (r *LedgerRepository) AddOrderEvent(ctx context.Context, e *models.OrderEvent) error {
	_, err := r.q.ExecContext(ctx, `
		INSERT INTO order_events (id, order_id, from_status, to_status, actor_id, reason, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		e.ID, e.OrderID, e.FromStatus, e.ToStatus, e.ActorID, e.Reason, e.CreatedAt)
	if err != nil {
		return fmt.Errorf("order repository: add event: %w", err)
	}
	return nil
}

// ListOrderEvents возвращает журнал заказа по времени.
func (r *LedgerRepository) ListOrderEvents(ctx context.Context, orderID uuid.UUID) ([]models.OrderEvent, error) {
	events := []models.OrderEvent{}
	err := sqlx.SelectContext(ctx, r.q, &events, `
		SELECT id, order_id, from_status, to_status, actor_id, reason, created_at
		FROM order_events WHERE order_id = $1 ORDER BY created_at`, orderID)
	if err != nil {
		return nil, fmt.Errorf("order repository: list events: %w", err)
	}
	return events, nil
}
