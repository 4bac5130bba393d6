package outbox

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Store persists outbox messages.
type Store interface {
	Insert(ctx context.Context, msg Message) error
	// Lease returns up to limit pending messages due at now and pushes their
	// next attempt to now+lease so concurrent relays skip them.
	Lease(ctx context.Context, now time.Time, lease time.Duration, limit int) ([]Message, error)
	MarkProcessed(ctx context.Context, id string, at time.Time) error
	// MarkFailed records a failed attempt. The message turns dead when dead is true.
	MarkFailed(ctx context.Context, id string, attempts int, next time.Time, lastErr string, dead bool) error
	List(ctx context.Context, status Status, limit int) ([]Message, error)
}

// Queue serializes payloads into the store.
type Queue struct {
	store       Store
	idGenerator func() string
	now         func() time.Time
}

func NewQueue(store Store) *Queue {
	return &Queue{
		store:       store,
		idGenerator: uuid.NewString,
		now:         time.Now,
	}
}

func (q *Queue) WithClock(now func() time.Time) *Queue {
	q.now = now
	return q
}

// Enqueue stores payload as JSON under topic, due immediately. Inside a
// db unit of work the message commits or rolls back with it.
func (q *Queue) Enqueue(ctx context.Context, topic string, payload any) error {
	if topic == "" {
		return fmt.Errorf("outbox: missing topic")
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("outbox: encode payload: %w", err)
	}
	now := q.now().UTC()
	msg := Message{
		ID:            q.idGenerator(),
		Topic:         topic,
		Payload:       body,
		Status:        StatusPending,
		NextAttemptAt: now,
		CreatedAt:     now,
	}
	if err := q.store.Insert(ctx, msg); err != nil {
		return fmt.Errorf("outbox: insert: %w", err)
	}
	return nil
}
