package service

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/ignatzorin/creator-settlement/internal/domain/valueobject"
	"github.com/ignatzorin/creator-settlement/internal/logger"
	"github.com/ignatzorin/creator-settlement/internal/metrics"
	"github.com/ignatzorin/creator-settlement/internal/models"
	"github.com/ignatzorin/creator-settlement/internal/pkg/apperror"
	"github.com/ignatzorin/creator-settlement/internal/repository/common"
)

// Actor - аутентифицированный вызывающий.
type Actor struct {
	ID   uuid.UUID
	Role string
}

func (a Actor) IsAdmin() bool { return a.Role == models.RoleAdmin }

// Timeouts - границы ожидания внешних вызовов.
type Timeouts struct {
	Store   time.Duration
	Gateway time.Duration
}

// DefaultTimeouts: 5s на хранилище, 10s на шлюз.
var DefaultTimeouts = Timeouts{Store: 5 * time.Second, Gateway: 10 * time.Second}

func withTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, d)
}

// storeErr переводит ошибку хранилища в AppError.
func storeErr(err error, notFound *apperror.AppError) error {
	if err == nil {
		return nil
	}
	var appErr *apperror.AppError
	if errors.As(err, &appErr) {
		return appErr
	}
	if errors.Is(err, common.ErrNotFound) && notFound != nil {
		return notFound
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return apperror.Wrap(err, apperror.ErrCodeGatewayTimeout, "хранилище не ответило вовремя")
	}
	return apperror.Internal(err)
}

// inconsistency логирует нарушение инварианта и возвращает ошибку для вызывающего.
func inconsistency(fields logrus.Fields, msg string) error {
	metrics.Inconsistencies.Inc()
	logger.Inconsistency(fields, msg)
	return apperror.Inconsistency(msg)
}

func newOrderEvent(orderID uuid.UUID, from *valueobject.OrderStatus, to valueobject.OrderStatus, actorID *uuid.UUID, reason string, at time.Time) *models.OrderEvent {
	e := &models.OrderEvent{
		ID:        uuid.New(),
		OrderID:   orderID,
		ToStatus:  to,
		ActorID:   actorID,
		Reason:    reason,
		CreatedAt: at,
	}
	if from != nil {
		s := string(*from)
		e.FromStatus = &s
	}
	return e
}

func ptr[T any](v T) *T { return &v }
