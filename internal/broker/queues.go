package broker

import (
	"context"
	"errors"
)

// QueueManager owns queue lifecycle, statistics, purge, and redrive (C4).
type QueueManager struct {
	store  Store
	limits QueueLimits
}

// NewQueueManager wires a QueueManager against its store, using the default
// clamp ranges. Use NewQueueManagerWithLimits to override them.
func NewQueueManager(s Store) *QueueManager {
	return &QueueManager{store: s, limits: DefaultQueueLimits()}
}

// NewQueueManagerWithLimits wires a QueueManager against its store and an
// operator-supplied set of clamp ranges.
func NewQueueManagerWithLimits(s Store, limits QueueLimits) *QueueManager {
	return &QueueManager{store: s, limits: limits}
}

// Create validates p and inserts a new queue. If p.TopicID or p.DeadQueueID
// is set, the referent must already exist.
func (m *QueueManager) Create(ctx context.Context, p QueueParams) (*Queue, error) {
	if err := p.validate(m.limits); err != nil {
		return nil, err
	}
	if err := m.checkReferents(ctx, p); err != nil {
		return nil, err
	}

	q, err := m.store.CreateQueue(ctx, p)
	if errors.Is(err, ErrAlreadyExists) {
		return nil, alreadyExistsf("queue %q already exists", p.ID)
	}
	if err != nil {
		return nil, err
	}
	return q, nil
}

// Get looks up a queue by id.
func (m *QueueManager) Get(ctx context.Context, id string) (*Queue, error) {
	q, err := m.store.GetQueue(ctx, id)
	if errors.Is(err, ErrNotFound) {
		return nil, notFoundf("queue %q not found", id)
	}
	if err != nil {
		return nil, err
	}
	return q, nil
}

// List returns queues in id order.
func (m *QueueManager) List(ctx context.Context, offset, limit int) ([]*Queue, error) {
	return m.store.ListQueues(ctx, offset, limit)
}

// Update validates p, checks referential existence, and overwrites id's
// mutable fields. id must already exist.
func (m *QueueManager) Update(ctx context.Context, p QueueParams) (*Queue, error) {
	if err := p.validate(m.limits); err != nil {
		return nil, err
	}
	if err := m.checkReferents(ctx, p); err != nil {
		return nil, err
	}

	q, err := m.store.UpdateQueue(ctx, p)
	if errors.Is(err, ErrNotFound) {
		return nil, notFoundf("queue %q not found", p.ID)
	}
	if err != nil {
		return nil, err
	}
	return q, nil
}

// Delete removes a queue. Its messages cascade; queues that named it as a
// dead queue have dead_queue_id nulled by the store's foreign key.
func (m *QueueManager) Delete(ctx context.Context, id string) error {
	err := m.store.DeleteQueue(ctx, id)
	if errors.Is(err, ErrNotFound) {
		return notFoundf("queue %q not found", id)
	}
	return err
}

// Stats returns the consumable-message count and oldest-unacked age for id.
func (m *QueueManager) Stats(ctx context.Context, id string) (*QueueStats, error) {
	q, err := m.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	return m.store.Stats(ctx, q)
}

// Purge deletes every message on id.
func (m *QueueManager) Purge(ctx context.Context, id string) error {
	if _, err := m.Get(ctx, id); err != nil {
		return err
	}
	return m.store.PurgeQueue(ctx, id)
}

// Redrive bulk-moves every currently-consumable message from id to
// destinationID, resetting delivery_attempts and recomputing expired_at/
// scheduled_at off the destination's own retention/delay (§4.4, §8
// property 7). Both queues must already exist.
func (m *QueueManager) Redrive(ctx context.Context, id, destinationID string) (int64, error) {
	source, err := m.Get(ctx, id)
	if err != nil {
		return 0, err
	}
	destination, err := m.Get(ctx, destinationID)
	if err != nil {
		return 0, err
	}
	return m.store.Redrive(ctx, source, destination)
}

// checkReferents verifies that p.TopicID and p.DeadQueueID, when set, name
// queues/topics that actually exist. Numeric and charset validation is
// QueueParams.validate()'s job; this is the one check that needs a store
// round trip, which is why it lives in the manager rather than on the
// params type itself.
func (m *QueueManager) checkReferents(ctx context.Context, p QueueParams) error {
	if p.TopicID != nil {
		if _, err := m.store.GetTopic(ctx, *p.TopicID); err != nil {
			if errors.Is(err, ErrNotFound) {
				return notFoundf("topic %q not found", *p.TopicID)
			}
			return err
		}
	}
	if p.DeadQueueID != nil {
		if _, err := m.store.GetQueue(ctx, *p.DeadQueueID); err != nil {
			if errors.Is(err, ErrNotFound) {
				return notFoundf("dead queue %q not found", *p.DeadQueueID)
			}
			return err
		}
	}
	return nil
}
