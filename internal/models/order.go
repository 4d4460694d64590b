package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/ignatzorin/creator-settlement/internal/domain/valueobject"
)

// Agreement - принятая договорённость бренда и креатора (внешняя сущность).
type Agreement struct {
	ID         uuid.UUID `db:"id" json:"id"`
	CampaignID uuid.UUID `db:"campaign_id" json:"campaign_id"`
	BrandID    uuid.UUID `db:"brand_id" json:"brand_id"`
	CreatorID  uuid.UUID `db:"creator_id" json:"creator_id"`
	Status     string    `db:"status" json:"status"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
}

// Order - заказ на оплату работы креатора.
type Order struct {
	ID           uuid.UUID               `db:"id" json:"id"`
	AgreementID  uuid.UUID               `db:"agreement_id" json:"agreement_id"`
	CampaignID   uuid.UUID               `db:"campaign_id" json:"campaign_id"`
	BrandID      uuid.UUID               `db:"brand_id" json:"brand_id"`
	CreatorID    uuid.UUID               `db:"creator_id" json:"creator_id"`
	Amount       float64                 `db:"amount" json:"amount"`
	GatewayFee   float64                 `db:"gateway_fee" json:"gateway_fee"`
	TotalCharged float64                 `db:"total_charged" json:"total_charged"`
	Currency     string                  `db:"currency" json:"currency"`
	Status       valueobject.OrderStatus `db:"status" json:"status"`
	CreatedAt    time.Time               `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time               `db:"updated_at" json:"updated_at"`
}

// IsParticipant проверяет, что пользователь - сторона заказа.
func (o *Order) IsParticipant(userID uuid.UUID) bool {
	return o.BrandID == userID || o.CreatorID == userID
}

// OrderFilter задаёт выборку заказов.
type OrderFilter struct {
	// ParticipantID - бренд или креатор; uuid.Nil означает все заказы.
	ParticipantID uuid.UUID
	Status        *valueobject.OrderStatus
	Limit         int
	Offset        int
}

// OrderEvent - запись журнала переходов заказа.
type OrderEvent struct {
	ID         uuid.UUID               `db:"id" json:"id"`
	OrderID    uuid.UUID               `db:"order_id" json:"order_id"`
	FromStatus *string                 `db:"from_status" json:"from_status,omitempty"`
	ToStatus   valueobject.OrderStatus `db:"to_status" json:"to_status"`
	ActorID    *uuid.UUID              `db:"actor_id" json:"actor_id,omitempty"`
	Reason     string                  `db:"reason" json:"reason"`
	CreatedAt  time.Time               `db:"created_at" json:"created_at"`
}
