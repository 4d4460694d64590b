package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/ignatzorin/creator-settlement/internal/domain/valueobject"
)

// PaymentRecord - попытка оплаты заказа через платёжный шлюз.
type PaymentRecord struct {
	ID              uuid.UUID                 `db:"id" json:"id"`
	OrderID         uuid.UUID                 `db:"order_id" json:"order_id"`
	PaymentIntentID string                    `db:"payment_intent_id" json:"payment_intent_id"`
	Provider        string                    `db:"provider" json:"provider"`
	Status          valueobject.PaymentStatus `db:"status" json:"status"`
	Amount          float64                   `db:"amount" json:"amount"`
	Fee             float64                   `db:"fee" json:"fee"`
	Currency        string                    `db:"currency" json:"currency"`
	GatewayPayload  json.RawMessage           `db:"gateway_payload" json:"-"`
	CreatedAt       time.Time                 `db:"created_at" json:"created_at"`
	UpdatedAt       time.Time                 `db:"updated_at" json:"updated_at"`
}

// PaymentStatusView - ответ на опрос статуса платежа.
type PaymentStatusView struct {
	PaymentIntentID string                    `json:"payment_intent_id"`
	PaymentStatus   valueobject.PaymentStatus `json:"payment_status"`
	OrderID         uuid.UUID                 `json:"order_id"`
	OrderStatus     valueobject.OrderStatus   `json:"order_status"`
	Amount          float64                   `json:"amount"`
	Currency        string                    `json:"currency"`
}

// WebhookEvent - маркер идемпотентности входящего события шлюза.
type WebhookEvent struct {
	EventID     string                    `db:"event_id" json:"event_id"`
	Provider    string                    `db:"provider" json:"provider"`
	EventType   string                    `db:"event_type" json:"event_type"`
	Status      valueobject.WebhookStatus `db:"status" json:"status"`
	Payload     json.RawMessage           `db:"payload" json:"-"`
	Error       *string                   `db:"error" json:"error,omitempty"`
	Attempts    int                       `db:"attempts" json:"attempts"`
	CreatedAt   time.Time                 `db:"created_at" json:"created_at"`
	ProcessedAt *time.Time                `db:"processed_at" json:"processed_at,omitempty"`
}

// EscrowRecord - удержанные средства по соглашению.
type EscrowRecord struct {
	ID              uuid.UUID                `db:"id" json:"id"`
	AgreementID     uuid.UUID                `db:"agreement_id" json:"agreement_id"`
	OrderID         uuid.UUID                `db:"order_id" json:"order_id"`
	BrandID         uuid.UUID                `db:"brand_id" json:"brand_id"`
	CreatorID       uuid.UUID                `db:"creator_id" json:"creator_id"`
	Amount          float64                  `db:"amount" json:"amount"`
	Status          valueobject.EscrowStatus `db:"status" json:"status"`
	PlatformFeeRate *float64                 `db:"platform_fee_rate" json:"platform_fee_rate,omitempty"`
	PlatformFee     *float64                 `db:"platform_fee" json:"platform_fee,omitempty"`
	NetAmount       *float64                 `db:"net_amount" json:"net_amount,omitempty"`
	CreatedAt       time.Time                `db:"created_at" json:"created_at"`
	ReleasedAt      *time.Time               `db:"released_at" json:"released_at,omitempty"`
	RefundedAt      *time.Time               `db:"refunded_at" json:"refunded_at,omitempty"`
}

// EscrowRelease - параметры выплаты из эскроу.
type EscrowRelease struct {
	EscrowID        uuid.UUID
	PlatformFeeRate float64
	PlatformFee     float64
	NetAmount       float64
}
