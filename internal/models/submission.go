package models

import (
	"time"

	"github.com/google/uuid"
)

// Submission - работа креатора по кампании (внешняя сущность).
// BrandID подтягивается из кампании.
type Submission struct {
	ID               uuid.UUID  `db:"id" json:"id"`
	CampaignID       uuid.UUID  `db:"campaign_id" json:"campaign_id"`
	CreatorID        uuid.UUID  `db:"creator_id" json:"creator_id"`
	BrandID          uuid.UUID  `db:"brand_id" json:"brand_id"`
	WatermarkedURL   string     `db:"watermarked_url" json:"-"`
	OriginalURL      string     `db:"original_url" json:"-"`
	WatermarkRemoved bool       `db:"watermark_removed" json:"watermark_removed"`
	Status           string     `db:"status" json:"status"`
	ApprovedAt       *time.Time `db:"approved_at" json:"approved_at,omitempty"`
	CreatedAt        time.Time  `db:"created_at" json:"created_at"`
}

// VideoAccess - ответ гейта доступа к видео.
type VideoAccess struct {
	SubmissionID uuid.UUID `json:"submission_id"`
	URL          string    `json:"url"`
	Variant      string    `json:"variant"`
	AccessLevel  string    `json:"access_level"`
}

// SubmissionApproval - результат одобрения работы брендом.
type SubmissionApproval struct {
	Submission  *Submission   `json:"submission"`
	OriginalURL string        `json:"original_url"`
	Escrow      *EscrowRecord `json:"escrow,omitempty"`
}
