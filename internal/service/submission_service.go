package service

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/ignatzorin/creator-settlement/internal/domain/access"
	"github.com/ignatzorin/creator-settlement/internal/domain/valueobject"
	"github.com/ignatzorin/creator-settlement/internal/events"
	"github.com/ignatzorin/creator-settlement/internal/logger"
	"github.com/ignatzorin/creator-settlement/internal/models"
	"github.com/ignatzorin/creator-settlement/internal/pkg/apperror"
	"github.com/ignatzorin/creator-settlement/internal/repository"
	"github.com/ignatzorin/creator-settlement/internal/repository/common"
	"github.com/ignatzorin/creator-settlement/internal/storage"
)

// SubmissionService - гейт доступа к видео и одобрение работ.
type SubmissionService struct {
	store        repository.Store
	escrow       *EscrowService
	signer       storage.URLSigner
	events       *events.Dispatcher
	storeTimeout time.Duration
	now          func() time.Time
}

func NewSubmissionService(store repository.Store, escrow *EscrowService, signer storage.URLSigner, dispatcher *events.Dispatcher, storeTimeout time.Duration) *SubmissionService {
	if signer == nil {
		signer = storage.PassthroughSigner{}
	}
	return &SubmissionService{
		store:        store,
		escrow:       escrow,
		signer:       signer,
		events:       dispatcher,
		storeTimeout: storeTimeout,
		now:          func() time.Time { return time.Now().UTC() },
	}
}

// VideoURL возвращает вариант видео, разрешённый вызывающему.
func (s *SubmissionService) VideoURL(ctx context.Context, actor Actor, submissionID uuid.UUID) (*models.VideoAccess, error) {
	storeCtx, cancel := withTimeout(ctx, s.storeTimeout)
	defer cancel()

	sub, err := s.store.GetSubmission(storeCtx, submissionID)
	if err != nil {
		return nil, storeErr(err, apperror.ErrSubmissionNotFound)
	}

	decision, err := access.Decide(actor.Role, relationTo(actor, sub), sub.WatermarkRemoved)
	if err != nil {
		return nil, err
	}

	ref := sub.WatermarkedURL
	if decision.Variant == access.VariantOriginal {
		ref = sub.OriginalURL
	}
	url, err := s.signer.SignURL(ctx, ref)
	if err != nil {
		return nil, apperror.Internal(err)
	}

	return &models.VideoAccess{
		SubmissionID: sub.ID,
		URL:          url,
		Variant:      string(decision.Variant),
		AccessLevel:  string(decision.Level),
	}, nil
}

// Approve одобряет работу, снимает водяной знак и выплачивает эскроу креатору.
// Требуется оплаченный заказ по той же паре (кампания, креатор).
func (s *SubmissionService) Approve(ctx context.Context, actor Actor, submissionID uuid.UUID) (*models.SubmissionApproval, error) {
	storeCtx, cancel := withTimeout(ctx, s.storeTimeout)
	defer cancel()

	var (
		sub      *models.Submission
		escrow   *models.EscrowRecord
		released bool
	)
	err := s.store.WithinTx(storeCtx, func(tx repository.Ledger) error {
		var err error
		sub, err = tx.GetSubmission(storeCtx, submissionID)
		if err != nil {
			return storeErr(err, apperror.ErrSubmissionNotFound)
		}
		if actor.Role != models.RoleBrand || sub.BrandID != actor.ID {
			return apperror.Forbidden("одобрить работу может только бренд кампании")
		}
		if sub.Status == valueobject.SubmissionStatusApproved || sub.WatermarkRemoved {
			return apperror.Conflict("работа уже одобрена")
		}

		order, err := tx.FindPaidOrder(storeCtx, sub.CampaignID, sub.CreatorID)
		if errors.Is(err, common.ErrNotFound) {
			return apperror.ErrPaymentRequired
		}
		if err != nil {
			return err
		}

		now := s.now()
		ok, err := tx.ApproveSubmission(storeCtx, sub.ID, now)
		if err != nil {
			return err
		}
		if !ok {
			return apperror.Conflict("работа уже одобрена")
		}
		sub.Status = valueobject.SubmissionStatusApproved
		sub.WatermarkRemoved = true
		sub.ApprovedAt = &now

		escrow, released, err = s.escrow.releaseInTx(storeCtx, tx, order.AgreementID)
		if apperror.IsNotFound(err) {
			return inconsistency(logrus.Fields{
				"order_id":     order.ID,
				"agreement_id": order.AgreementID,
				"creator_id":   order.CreatorID,
				"amount":       order.Amount,
			}, "paid order has no escrow record")
		}
		return err
	})
	if err != nil {
		return nil, storeErr(err, apperror.ErrSubmissionNotFound)
	}

	logger.Log.WithFields(logrus.Fields{
		"submission_id": sub.ID,
		"brand_id":      actor.ID,
		"released":      released,
	}).Info("submission approved")

	if released {
		s.escrow.emitReleased(escrow)
	}
	s.events.Emit(events.New(events.SubmissionApproved, sub.ID.String(), sub, sub.CreatorID, sub.BrandID))

	url, err := s.signer.SignURL(ctx, sub.OriginalURL)
	if err != nil {
		return nil, apperror.Internal(err)
	}
	return &models.SubmissionApproval{Submission: sub, OriginalURL: url, Escrow: escrow}, nil
}

func relationTo(actor Actor, sub *models.Submission) access.Relation {
	switch actor.ID {
	case sub.CreatorID:
		return access.RelationCreator
	case sub.BrandID:
		return access.RelationCampaignOwner
	}
	return access.RelationNone
}
