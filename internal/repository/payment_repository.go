package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/ignatzorin/creator-settlement/internal/domain/valueobject"
	"github.com/ignatzorin/creator-settlement/internal/models"
	"github.com/ignatzorin/creator-settlement/internal/repository/common"
)

const paymentColumns = `id, order_id, payment_intent_id, provider, status, amount, fee, currency,
	gateway_payload, created_at, updated_at`

const webhookColumns = `event_id, provider, event_type, status, payload, error, attempts, created_at, processed_at`

// jsonArg готовит payload для JSONB: пустой становится NULL, остальное уходит строкой
// (lib/pq кодирует []byte как bytea).
func jsonArg(raw json.RawMessage) any {
	if len(raw) == 0 {
		return nil
	}
	return string(raw)
}

// CreatePaymentRecord сохраняет попытку оплаты.
// Вторая незавершённая оплата того же заказа даёт ErrAlreadyExists.
func (r *LedgerRepository) CreatePaymentRecord(ctx context.Context, p *models.PaymentRecord) error {
	_, err := r.q.ExecContext(ctx, `
		INSERT INTO payment_records (`+paymentColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, COALESCE($9::jsonb, '{}'::jsonb), $10, $11)`,
		p.ID, p.OrderID, p.PaymentIntentID, p.Provider, p.Status, p.Amount, p.Fee, p.Currency,
		jsonArg(p.GatewayPayload), p.CreatedAt, p.UpdatedAt,
	)
	if common.IsUniqueViolation(err, "") {
		return common.ErrAlreadyExists
	}
	if err != nil {
		return fmt.Errorf("payment repository: create: %w", err)
	}
	return nil
}

// GetPaymentByIntent возвращает запись по ID платёжного намерения.
func (r *LedgerRepository) GetPaymentByIntent(ctx context.Context, intentID string) (*models.PaymentRecord, error) {
	return common.GetOne[models.PaymentRecord](ctx, r.q, "payment",
		`SELECT `+paymentColumns+` FROM payment_records WHERE payment_intent_id = $1`, intentID)
}

// GetPendingPayment возвращает незавершённую оплату заказа.
func (r *LedgerRepository) GetPendingPayment(ctx context.Context, orderID uuid.UUID) (*models.PaymentRecord, error) {
	return common.GetOne[models.PaymentRecord](ctx, r.q, "pending payment",
		`SELECT `+paymentColumns+` FROM payment_records WHERE order_id = $1 AND status = $2`,
		orderID, valueobject.PaymentStatusPending)
}

// CountPayments считает все попытки оплаты заказа.
func (r *LedgerRepository) CountPayments(ctx context.Context, orderID uuid.UUID) (int, error) {
	var n int
	if err := sqlx.GetContext(ctx, r.q, &n, `SELECT COUNT(*) FROM payment_records WHERE order_id = $1`, orderID); err != nil {
		return 0, fmt.Errorf("payment repository: count: %w", err)
	}
	return n, nil
}

// UpdatePaymentStatus переводит запись из from в to и при наличии заменяет payload шлюза.
func (r *LedgerRepository) UpdatePaymentStatus(ctx context.Context, intentID string, from, to valueobject.PaymentStatus, payload json.RawMessage) (bool, error) {
	return common.ExecAffected(ctx, r.q, "payment repository: update status", `
		UPDATE payment_records
		SET status = $3, gateway_payload = COALESCE($4::jsonb, gateway_payload), updated_at = NOW()
		WHERE payment_intent_id = $1 AND status = $2`,
		intentID, from, to, jsonArg(payload))
}

// ClaimWebhookEvent вставляет маркер PENDING и берёт на него блокировку строки.
// Параллельная доставка того же события ждёт коммита первой и видит итоговый статус.
func (r *LedgerRepository) ClaimWebhookEvent(ctx context.Context, e *models.WebhookEvent) (valueobject.WebhookStatus, error) {
	_, err := r.q.ExecContext(ctx, `
		INSERT INTO webhook_events (event_id, provider, event_type, status, payload)
		VALUES ($1, $2, $3, $4, COALESCE($5::jsonb, '{}'::jsonb))
		ON CONFLICT (event_id) DO NOTHING`,
		e.EventID, e.Provider, e.EventType, valueobject.WebhookStatusPending, jsonArg(e.Payload))
	if err != nil {
		return "", fmt.Errorf("webhook repository: insert marker: %w", err)
	}

	var status valueobject.WebhookStatus
	if err := sqlx.GetContext(ctx, r.q, &status,
		`SELECT status FROM webhook_events WHERE event_id = $1 FOR UPDATE`, e.EventID); err != nil {
		return "", fmt.Errorf("webhook repository: lock marker: %w", err)
	}
	return status, nil
}

// MarkWebhookProcessed закрывает маркер.
func (r *LedgerRepository) MarkWebhookProcessed(ctx context.Context, eventID string, at time.Time) error {
	_, err := r.q.ExecContext(ctx, `
		UPDATE webhook_events SET status = $2, processed_at = $3, error = NULL
		WHERE event_id = $1`,
		eventID, valueobject.WebhookStatusProcessed, at)
	if err != nil {
		return fmt.Errorf("webhook repository: mark processed: %w", err)
	}
	return nil
}

// MarkWebhookFailed фиксирует ошибку обработки. Обработанный маркер не понижается.
func (r *LedgerRepository) MarkWebhookFailed(ctx context.Context, e *models.WebhookEvent, reason string) error {
	_, err := r.q.ExecContext(ctx, `
		INSERT INTO webhook_events (event_id, provider, event_type, status, payload, error)
		VALUES ($1, $2, $3, $4, COALESCE($5::jsonb, '{}'::jsonb), $6)
		ON CONFLICT (event_id) DO UPDATE
		SET status = EXCLUDED.status, error = EXCLUDED.error, attempts = webhook_events.attempts + 1
		WHERE webhook_events.status <> 'PROCESSED'`,
		e.EventID, e.Provider, e.EventType, valueobject.WebhookStatusFailed, jsonArg(e.Payload), reason)
	if err != nil {
		return fmt.Errorf("webhook repository: mark failed: %w", err)
	}
	return nil
}

// GetWebhookEvent возвращает маркер события.
func (r *LedgerRepository) GetWebhookEvent(ctx context.Context, eventID string) (*models.WebhookEvent, error) {
	return common.GetOne[models.WebhookEvent](ctx, r.q, "webhook event",
		`SELECT `+webhookColumns+` FROM webhook_events WHERE event_id = $1`, eventID)
}
