package events

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type capturePublisher struct {
	mu   sync.Mutex
	msgs map[string][]byte
	keys map[string]string
}

func (p *capturePublisher) Publish(_ context.Context, eventType string, payload []byte, key string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.msgs[eventType] = payload
	p.keys[eventType] = key
	return nil
}

func (p *capturePublisher) Close() error { return nil }

type captureNotifier struct {
	mu    sync.Mutex
	users []uuid.UUID
	done  chan struct{}
}

func (n *captureNotifier) BroadcastToUser(userID uuid.UUID, _ string, _ any) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.users = append(n.users, userID)
	if len(n.users) == 2 {
		close(n.done)
	}
	return nil
}

func TestDispatcher_Emit(t *testing.T) {
	pub := &capturePublisher{msgs: map[string][]byte{}, keys: map[string]string{}}
	notifier := &captureNotifier{done: make(chan struct{})}
	d := NewDispatcher(pub, notifier)

	brand, creator := uuid.New(), uuid.New()
	d.Emit(New(OrderPaid, "order-1", map[string]string{"order_id": "order-1"}, brand, creator))

	select {
	case <-notifier.done:
	case <-time.After(2 * time.Second):
		t.Fatal("event was not delivered")
	}

	pub.mu.Lock()
	defer pub.mu.Unlock()
	require.Contains(t, pub.msgs, OrderPaid)
	assert.Equal(t, "order-1", pub.keys[OrderPaid])

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(pub.msgs[OrderPaid], &decoded))
	assert.Equal(t, OrderPaid, decoded["type"])
	assert.NotContains(t, decoded, "Recipients")

	notifier.mu.Lock()
	defer notifier.mu.Unlock()
	assert.ElementsMatch(t, []uuid.UUID{brand, creator}, notifier.users)
}

type gatedPublisher struct {
	release chan struct{}
	mu      sync.Mutex
	count   int
}

func (p *gatedPublisher) Publish(_ context.Context, _ string, _ []byte, _ string) error {
	<-p.release
	p.mu.Lock()
	p.count++
	p.mu.Unlock()
	return nil
}

func (p *gatedPublisher) Close() error { return nil }

func TestDispatcher_DrainWaitsForInflight(t *testing.T) {
	pub := &gatedPublisher{release: make(chan struct{})}
	d := NewDispatcher(pub, nil)

	for i := 0; i < 3; i++ {
		d.Emit(New(WithdrawalApproved, "w-1", nil))
	}

	short, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, d.Drain(short), context.DeadlineExceeded)

	close(pub.release)
	ctx, cancel2 := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel2()
	require.NoError(t, d.Drain(ctx))

	pub.mu.Lock()
	defer pub.mu.Unlock()
	assert.Equal(t, 3, pub.count)
}

func TestDispatcher_NilIsNoop(t *testing.T) {
	var d *Dispatcher
	assert.NotPanics(t, func() { d.Emit(New(OrderCreated, "k", nil)) })
	assert.NoError(t, d.Drain(context.Background()))
}

func TestNewKafkaPublisher_Validation(t *testing.T) {
	_, err := NewKafkaPublisher(nil, "topic")
	assert.Error(t, err)
	_, err = NewKafkaPublisher([]string{"localhost:9092"}, "")
	assert.Error(t, err)
}
