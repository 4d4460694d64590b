// Package events рассылает события расчётного контура после коммита.
package events

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/ignatzorin/creator-settlement/internal/goroutine"
	"github.com/ignatzorin/creator-settlement/internal/logger"
)

// Типы событий.
const (
	OrderCreated   = "order.created"
	OrderPaid      = "order.paid"
	OrderFailed    = "order.failed"
	OrderCancelled = "order.cancelled"
	OrderRefunded  = "order.refunded"

	EscrowOpened   = "escrow.opened"
	EscrowReleased = "escrow.released"
	EscrowRefunded = "escrow.refunded"

	WithdrawalRequested  = "withdrawal.requested"
	WithdrawalApproved   = "withdrawal.approved"
	WithdrawalRejected   = "withdrawal.rejected"
	WithdrawalProcessing = "withdrawal.processing"
	WithdrawalCompleted  = "withdrawal.completed"

	SubmissionApproved = "submission.approved"
)

// Event - событие для брокера и WebSocket-клиентов.
type Event struct {
	ID         uuid.UUID   `json:"id"`
	Type       string      `json:"type"`
	Key        string      `json:"key"`
	OccurredAt time.Time   `json:"occurred_at"`
	Data       any         `json:"data"`
	Recipients []uuid.UUID `json:"-"`
}

// New создаёт событие. key определяет партицию в брокере.
func New(eventType, key string, data any, recipients ...uuid.UUID) Event {
	return Event{
		ID:         uuid.New(),
		Type:       eventType,
		Key:        key,
		OccurredAt: time.Now().UTC(),
		Data:       data,
		Recipients: recipients,
	}
}

// Publisher пишет событие во внешний брокер.
type Publisher interface {
	Publish(ctx context.Context, eventType string, payload []byte, partitionKey string) error
	Close() error
}

// Notifier доставляет событие пользователю онлайн.
type Notifier interface {
	BroadcastToUser(userID uuid.UUID, event string, data any) error
}

// LogPublisher пишет события в лог, когда брокер не настроен.
type LogPublisher struct{}

func (LogPublisher) Publish(_ context.Context, eventType string, payload []byte, partitionKey string) error {
	logger.Log.WithFields(logrus.Fields{
		"event": eventType,
		"key":   partitionKey,
		"bytes": len(payload),
	}).Debug("event published")
	return nil
}

func (LogPublisher) Close() error { return nil }

// Dispatcher асинхронно отправляет события в брокер и пользователям.
// Ошибки доставки только логируются. Нулевой *Dispatcher ничего не делает.
type Dispatcher struct {
	publisher Publisher
	notifier  Notifier
	timeout   time.Duration
	inflight  sync.WaitGroup
}

// NewDispatcher создаёт диспетчер. notifier может быть nil.
func NewDispatcher(publisher Publisher, notifier Notifier) *Dispatcher {
	if publisher == nil {
		publisher = LogPublisher{}
	}
	return &Dispatcher{publisher: publisher, notifier: notifier, timeout: 5 * time.Second}
}

// Emit ставит событие в отправку и сразу возвращается.
func (d *Dispatcher) Emit(e Event) {
	if d == nil {
		return
	}
	d.inflight.Add(1)
	goroutine.Go("event-delivery", func() {
		defer d.inflight.Done()
		d.deliver(e)
	})
}

// Drain ждёт завершения отправок, начатых до вызова, но не дольше ctx.
func (d *Dispatcher) Drain(ctx context.Context) error {
	if d == nil {
		return nil
	}
	done := make(chan struct{})
	go func() {
		d.inflight.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (d *Dispatcher) deliver(e Event) {
	log := logger.Log.WithFields(logrus.Fields{"event": e.Type, "event_id": e.ID, "key": e.Key})

	payload, err := json.Marshal(e)
	if err != nil {
		log.WithError(err).Error("events: marshal")
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), d.timeout)
	defer cancel()
	if err := d.publisher.Publish(ctx, e.Type, payload, e.Key); err != nil {
		log.WithError(err).Warn("events: publish failed")
	}

	if d.notifier == nil {
		return
	}
	for _, userID := range e.Recipients {
		if err := d.notifier.BroadcastToUser(userID, e.Type, e.Data); err != nil {
			log.WithError(err).WithField("user_id", userID).Warn("events: notify failed")
		}
	}
}
