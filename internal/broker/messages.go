package broker

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/fastqueue/fastqueue/internal/filter"
)

// MessageBroker implements publish fan-out, lease, ack, and nack — the
// visibility-timeout state machine (C5).
type MessageBroker struct {
	store Store
}

// NewMessageBroker wires a MessageBroker against its store.
func NewMessageBroker(s Store) *MessageBroker {
	return &MessageBroker{store: s}
}

const defaultLeaseLimit = 10

// Publish fans a message out to every queue subscribed to topicID whose
// filter admits attrs. Either every admitting queue receives the message or
// none do (§4.5.1, §8 property 4). An empty admitted set is a successful
// result with an empty list, not an error.
func (b *MessageBroker) Publish(ctx context.Context, topicID string, data json.RawMessage, attrs map[string]string) ([]*Message, error) {
	if _, err := b.store.GetTopic(ctx, topicID); err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, notFoundf("topic %q not found", topicID)
		}
		return nil, err
	}

	queues, err := b.store.ListQueuesByTopic(ctx, topicID)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	inserts := make([]MessageInsert, 0, len(queues))
	for _, q := range queues {
		if !filter.Admit(q.MessageFilters, attrs) {
			continue
		}
		delaySeconds := 0
		if q.DeliveryDelaySeconds != nil {
			delaySeconds = *q.DeliveryDelaySeconds
		}
		inserts = append(inserts, MessageInsert{
			ID:          uuid.New().String(),
			QueueID:     q.ID,
			Data:        data,
			Attributes:  attrs,
			ExpiredAt:   now.Add(time.Duration(q.MessageRetentionSeconds) * time.Second),
			ScheduledAt: now.Add(time.Duration(delaySeconds) * time.Second),
		})
	}
	if len(inserts) == 0 {
		return []*Message{}, nil
	}

	return b.store.InsertMessages(ctx, inserts)
}

// Lease resolves queueID and selects up to limit consumable messages,
// advancing their visibility window atomically (§4.5.3). limit<=0 falls
// back to a default.
func (b *MessageBroker) Lease(ctx context.Context, queueID string, limit int) ([]*Message, error) {
	if limit <= 0 {
		limit = defaultLeaseLimit
	}
	q, err := b.store.GetQueue(ctx, queueID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, notFoundf("queue %q not found", queueID)
		}
		return nil, err
	}
	return b.store.Lease(ctx, q, limit)
}

// Ack deletes a message by id and returns the queue it belonged to. Missing
// id is a no-op (§8 property 6), returning an empty queue id.
func (b *MessageBroker) Ack(ctx context.Context, id string) (string, error) {
	return b.store.Ack(ctx, id)
}

// Nack resets a message's visibility window to now without touching
// delivery_attempts, and returns the queue it belongs to. Missing id is a
// no-op, returning an empty queue id.
func (b *MessageBroker) Nack(ctx context.Context, id string) (string, error) {
	return b.store.Nack(ctx, id)
}
