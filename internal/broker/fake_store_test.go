package broker

import (
	"context"
	"sort"
	"time"
)

// fakeStore is an in-memory broker.Store used to exercise the managers
// without a live Postgres instance. It reproduces just enough of the real
// store's semantics (consumable predicate, skip-locked-style exclusivity,
// fan-out atomicity) to validate the manager layer's logic.
type fakeStore struct {
	topics   map[string]*Topic
	queues   map[string]*Queue
	messages map[string]*Message
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		topics:   make(map[string]*Topic),
		queues:   make(map[string]*Queue),
		messages: make(map[string]*Message),
	}
}

func (s *fakeStore) CreateTopic(ctx context.Context, id string) (*Topic, error) {
	if _, ok := s.topics[id]; ok {
		return nil, ErrAlreadyExists
	}
	t := &Topic{ID: id, CreatedAt: time.Now().UTC()}
	s.topics[id] = t
	return t, nil
}

func (s *fakeStore) GetTopic(ctx context.Context, id string) (*Topic, error) {
	t, ok := s.topics[id]
	if !ok {
		return nil, ErrNotFound
	}
	return t, nil
}

func (s *fakeStore) ListTopics(ctx context.Context, offset, limit int) ([]*Topic, error) {
	var ids []string
	for id := range s.topics {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return paginateTopics(s.topics, ids, offset, limit), nil
}

func paginateTopics(m map[string]*Topic, ids []string, offset, limit int) []*Topic {
	if offset >= len(ids) {
		return []*Topic{}
	}
	end := offset + limit
	if end > len(ids) {
		end = len(ids)
	}
	out := make([]*Topic, 0, end-offset)
	for _, id := range ids[offset:end] {
		out = append(out, m[id])
	}
	return out
}

func (s *fakeStore) DeleteTopic(ctx context.Context, id string) error {
	if _, ok := s.topics[id]; !ok {
		return ErrNotFound
	}
	delete(s.topics, id)
	for _, q := range s.queues {
		if q.TopicID != nil && *q.TopicID == id {
			q.TopicID = nil
		}
	}
	return nil
}

func (s *fakeStore) CreateQueue(ctx context.Context, p QueueParams) (*Queue, error) {
	if _, ok := s.queues[p.ID]; ok {
		return nil, ErrAlreadyExists
	}
	now := time.Now().UTC()
	q := &Queue{
		ID:                      p.ID,
		TopicID:                 p.TopicID,
		DeadQueueID:             p.DeadQueueID,
		AckDeadlineSeconds:      p.AckDeadlineSeconds,
		MessageRetentionSeconds: p.MessageRetentionSeconds,
		MessageFilters:          p.MessageFilters,
		MessageMaxDeliveries:    p.MessageMaxDeliveries,
		DeliveryDelaySeconds:    p.DeliveryDelaySeconds,
		CreatedAt:               now,
		UpdatedAt:               now,
	}
	s.queues[p.ID] = q
	return q, nil
}

func (s *fakeStore) GetQueue(ctx context.Context, id string) (*Queue, error) {
	q, ok := s.queues[id]
	if !ok {
		return nil, ErrNotFound
	}
	return q, nil
}

func (s *fakeStore) ListQueues(ctx context.Context, offset, limit int) ([]*Queue, error) {
	var ids []string
	for id := range s.queues {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	if offset >= len(ids) {
		return []*Queue{}, nil
	}
	end := offset + limit
	if end > len(ids) {
		end = len(ids)
	}
	out := make([]*Queue, 0, end-offset)
	for _, id := range ids[offset:end] {
		out = append(out, s.queues[id])
	}
	return out, nil
}

func (s *fakeStore) ListQueuesByTopic(ctx context.Context, topicID string) ([]*Queue, error) {
	var ids []string
	for id, q := range s.queues {
		if q.TopicID != nil && *q.TopicID == topicID {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	out := make([]*Queue, 0, len(ids))
	for _, id := range ids {
		out = append(out, s.queues[id])
	}
	return out, nil
}

func (s *fakeStore) UpdateQueue(ctx context.Context, p QueueParams) (*Queue, error) {
	existing, ok := s.queues[p.ID]
	if !ok {
		return nil, ErrNotFound
	}
	existing.TopicID = p.TopicID
	existing.DeadQueueID = p.DeadQueueID
	existing.AckDeadlineSeconds = p.AckDeadlineSeconds
	existing.MessageRetentionSeconds = p.MessageRetentionSeconds
	existing.MessageFilters = p.MessageFilters
	existing.MessageMaxDeliveries = p.MessageMaxDeliveries
	existing.DeliveryDelaySeconds = p.DeliveryDelaySeconds
	existing.UpdatedAt = time.Now().UTC()
	return existing, nil
}

func (s *fakeStore) DeleteQueue(ctx context.Context, id string) error {
	if _, ok := s.queues[id]; !ok {
		return ErrNotFound
	}
	delete(s.queues, id)
	for mid, m := range s.messages {
		if m.QueueID == id {
			delete(s.messages, mid)
		}
	}
	for _, q := range s.queues {
		if q.DeadQueueID != nil && *q.DeadQueueID == id {
			q.DeadQueueID = nil
		}
	}
	return nil
}

func (s *fakeStore) PurgeQueue(ctx context.Context, queueID string) error {
	for mid, m := range s.messages {
		if m.QueueID == queueID {
			delete(s.messages, mid)
		}
	}
	return nil
}

func (s *fakeStore) consumable(q *Queue, m *Message, now time.Time) bool {
	if m.QueueID != q.ID {
		return false
	}
	if m.ExpiredAt.Before(now) {
		return false
	}
	if m.ScheduledAt.After(now) {
		return false
	}
	if q.DeadQueueID != nil && q.MessageMaxDeliveries != nil {
		if m.DeliveryAttempts >= *q.MessageMaxDeliveries {
			return false
		}
	}
	return true
}

func (s *fakeStore) Stats(ctx context.Context, q *Queue) (*QueueStats, error) {
	now := time.Now().UTC()
	stats := &QueueStats{}
	var oldest time.Time
	for _, m := range s.messages {
		if s.consumable(q, m, now) {
			stats.NumUndeliveredMessages++
			if oldest.IsZero() || m.CreatedAt.Before(oldest) {
				oldest = m.CreatedAt
			}
		}
	}
	if !oldest.IsZero() {
		stats.OldestUnackedMessageAgeSecond = int64(now.Sub(oldest).Seconds())
	}
	return stats, nil
}

func (s *fakeStore) InsertMessages(ctx context.Context, inserts []MessageInsert) ([]*Message, error) {
	if len(inserts) == 0 {
		return nil, nil
	}
	now := time.Now().UTC()
	out := make([]*Message, 0, len(inserts))
	for _, ins := range inserts {
		m := &Message{
			ID:          ins.ID,
			QueueID:     ins.QueueID,
			Data:        ins.Data,
			Attributes:  ins.Attributes,
			ExpiredAt:   ins.ExpiredAt,
			ScheduledAt: ins.ScheduledAt,
			CreatedAt:   now,
			UpdatedAt:   now,
		}
		s.messages[m.ID] = m
		out = append(out, m)
	}
	return out, nil
}

func (s *fakeStore) Lease(ctx context.Context, q *Queue, limit int) ([]*Message, error) {
	now := time.Now().UTC()
	var ids []string
	for id, m := range s.messages {
		if s.consumable(q, m, now) {
			ids = append(ids, id)
		}
	}
	sort.Slice(ids, func(i, j int) bool {
		return s.messages[ids[i]].ScheduledAt.Before(s.messages[ids[j]].ScheduledAt)
	})
	if len(ids) > limit {
		ids = ids[:limit]
	}
	newScheduledAt := now.Add(time.Duration(q.AckDeadlineSeconds) * time.Second)
	out := make([]*Message, 0, len(ids))
	for _, id := range ids {
		m := s.messages[id]
		m.DeliveryAttempts++
		m.ScheduledAt = newScheduledAt
		m.UpdatedAt = now
		out = append(out, m)
	}
	return out, nil
}

func (s *fakeStore) Ack(ctx context.Context, id string) (string, error) {
	m, ok := s.messages[id]
	if !ok {
		return "", nil
	}
	delete(s.messages, id)
	return m.QueueID, nil
}

func (s *fakeStore) Nack(ctx context.Context, id string) (string, error) {
	m, ok := s.messages[id]
	if !ok {
		return "", nil
	}
	m.ScheduledAt = time.Now().UTC()
	return m.QueueID, nil
}

func (s *fakeStore) Redrive(ctx context.Context, source, destination *Queue) (int64, error) {
	now := time.Now().UTC()
	var moved int64
	for _, m := range s.messages {
		if !s.consumable(source, m, now) {
			continue
		}
		m.QueueID = destination.ID
		m.DeliveryAttempts = 0
		m.ExpiredAt = now.Add(time.Duration(destination.MessageRetentionSeconds) * time.Second)
		delay := 0
		if destination.DeliveryDelaySeconds != nil {
			delay = *destination.DeliveryDelaySeconds
		}
		m.ScheduledAt = now.Add(time.Duration(delay) * time.Second)
		m.UpdatedAt = now
		moved++
	}
	return moved, nil
}
