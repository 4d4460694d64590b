package repository

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/ignatzorin/creator-settlement/internal/domain/valueobject"
	"github.com/ignatzorin/creator-settlement/internal/models"
	"github.com/ignatzorin/creator-settlement/internal/repository/common"
)

// GetSubmission возвращает работу вместе с брендом-владельцем кампании.
func (r *LedgerRepository) GetSubmission(ctx context.Context, id uuid.UUID) (*models.Submission, error) {
	return common.GetOne[models.Submission](ctx, r.q, "submission", `
		SELECT s.id, s.campaign_id, s.creator_id, c.brand_id, s.watermarked_url, s.original_url,
		       s.watermark_removed, s.status, s.approved_at, s.created_at
		FROM submissions s
		JOIN campaigns c ON c.id = s.campaign_id
		WHERE s.id = $1`, id)
}

// ApproveSubmission - одноразовый переход: одобрить и снять водяной знак.
func (r *LedgerRepository) ApproveSubmission(ctx context.Context, id uuid.UUID, at time.Time) (bool, error) {
	return common.ExecAffected(ctx, r.q, "submission repository: approve", `
		UPDATE submissions SET status = $2, watermark_removed = TRUE, approved_at = $3
		WHERE id = $1 AND status <> $2 AND watermark_removed = FALSE`,
		id, valueobject.SubmissionStatusApproved, at)
}
