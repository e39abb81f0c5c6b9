package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/fastqueue/fastqueue/internal/broker"
	"github.com/fastqueue/fastqueue/internal/filter"
)

// marshalFilters encodes f as its JSONB representation. filter.Filters has a
// value-receiver MarshalJSON that already renders a nil map as "null", so
// this just gives call sites a one-line spot to wrap the error.
func marshalFilters(f filter.Filters) ([]byte, error) {
	return f.MarshalJSON()
}

func scanQueue(row interface {
	Scan(dest ...any) error
}) (*broker.Queue, error) {
	var q broker.Queue
	var filtersRaw []byte
	err := row.Scan(
		&q.ID, &q.TopicID, &q.DeadQueueID, &q.AckDeadlineSeconds, &q.MessageRetentionSeconds,
		&filtersRaw, &q.MessageMaxDeliveries, &q.DeliveryDelaySeconds, &q.CreatedAt, &q.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if len(filtersRaw) > 0 {
		if err := json.Unmarshal(filtersRaw, &q.MessageFilters); err != nil {
			return nil, fmt.Errorf("unmarshal message_filters: %w", err)
		}
	}
	return &q, nil
}

const queueColumns = `id, topic_id, dead_queue_id, ack_deadline_seconds, message_retention_seconds,
	message_filters, message_max_deliveries, delivery_delay_seconds, created_at, updated_at`

// CreateQueue inserts a new queue. It does not validate referential
// existence of topic_id/dead_queue_id — the broker's Queue Manager does
// that before calling in, since the error taxonomy (NOT_FOUND vs
// ALREADY_EXISTS) differs by failure.
func (s *Store) CreateQueue(ctx context.Context, p broker.QueueParams) (*broker.Queue, error) {
	now := time.Now().UTC()
	filtersRaw, err := marshalFilters(p.MessageFilters)
	if err != nil {
		return nil, fmt.Errorf("marshal message_filters: %w", err)
	}

	_, err = s.pool.Exec(ctx, `
		INSERT INTO queues (id, topic_id, dead_queue_id, ack_deadline_seconds, message_retention_seconds,
			message_filters, message_max_deliveries, delivery_delay_seconds, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $9)
	`, p.ID, p.TopicID, p.DeadQueueID, p.AckDeadlineSeconds, p.MessageRetentionSeconds,
		filtersRaw, p.MessageMaxDeliveries, p.DeliveryDelaySeconds, now)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return nil, broker.ErrAlreadyExists
		}
		return nil, fmt.Errorf("insert queue: %w", err)
	}

	return &broker.Queue{
		ID: p.ID, TopicID: p.TopicID, DeadQueueID: p.DeadQueueID,
		AckDeadlineSeconds: p.AckDeadlineSeconds, MessageRetentionSeconds: p.MessageRetentionSeconds,
		MessageFilters: p.MessageFilters, MessageMaxDeliveries: p.MessageMaxDeliveries,
		DeliveryDelaySeconds: p.DeliveryDelaySeconds, CreatedAt: now, UpdatedAt: now,
	}, nil
}

// GetQueue looks up a queue by id.
func (s *Store) GetQueue(ctx context.Context, id string) (*broker.Queue, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+queueColumns+` FROM queues WHERE id = $1`, id)
	q, err := scanQueue(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, broker.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get queue: %w", err)
	}
	return q, nil
}

// ListQueues returns queues in stable id order.
func (s *Store) ListQueues(ctx context.Context, offset, limit int) ([]*broker.Queue, error) {
	rows, err := s.pool.Query(ctx, `SELECT `+queueColumns+` FROM queues ORDER BY id ASC OFFSET $1 LIMIT $2`, offset, limit)
	if err != nil {
		return nil, fmt.Errorf("list queues: %w", err)
	}
	defer rows.Close()

	out := make([]*broker.Queue, 0)
	for rows.Next() {
		q, err := scanQueue(rows)
		if err != nil {
			return nil, fmt.Errorf("scan queue: %w", err)
		}
		out = append(out, q)
	}
	return out, rows.Err()
}

// ListQueuesByTopic returns every queue subscribing to topicID, in
// ascending id order, for publish-time fan-out.
func (s *Store) ListQueuesByTopic(ctx context.Context, topicID string) ([]*broker.Queue, error) {
	rows, err := s.pool.Query(ctx, `SELECT `+queueColumns+` FROM queues WHERE topic_id = $1 ORDER BY id ASC`, topicID)
	if err != nil {
		return nil, fmt.Errorf("list queues by topic: %w", err)
	}
	defer rows.Close()

	out := make([]*broker.Queue, 0)
	for rows.Next() {
		q, err := scanQueue(rows)
		if err != nil {
			return nil, fmt.Errorf("scan queue: %w", err)
		}
		out = append(out, q)
	}
	return out, rows.Err()
}

// UpdateQueue overwrites the mutable fields of an existing queue, preserving
// created_at and bumping updated_at.
func (s *Store) UpdateQueue(ctx context.Context, p broker.QueueParams) (*broker.Queue, error) {
	now := time.Now().UTC()
	filtersRaw, err := marshalFilters(p.MessageFilters)
	if err != nil {
		return nil, fmt.Errorf("marshal message_filters: %w", err)
	}

	ct, err := s.pool.Exec(ctx, `
		UPDATE queues SET
			topic_id = $2, dead_queue_id = $3, ack_deadline_seconds = $4, message_retention_seconds = $5,
			message_filters = $6, message_max_deliveries = $7, delivery_delay_seconds = $8, updated_at = $9
		WHERE id = $1
	`, p.ID, p.TopicID, p.DeadQueueID, p.AckDeadlineSeconds, p.MessageRetentionSeconds,
		filtersRaw, p.MessageMaxDeliveries, p.DeliveryDelaySeconds, now)
	if err != nil {
		return nil, fmt.Errorf("update queue: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return nil, broker.ErrNotFound
	}

	return s.GetQueue(ctx, p.ID)
}

// DeleteQueue removes a queue; messages cascade via the FK, and inbound
// dead_queue_id references are nulled by the FK's ON DELETE SET NULL.
func (s *Store) DeleteQueue(ctx context.Context, id string) error {
	ct, err := s.pool.Exec(ctx, `DELETE FROM queues WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete queue: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return broker.ErrNotFound
	}
	return nil
}

// PurgeQueue deletes every message belonging to queueID.
func (s *Store) PurgeQueue(ctx context.Context, queueID string) error {
	_, err := s.pool.Exec(ctx, `DELETE FROM messages WHERE queue_id = $1`, queueID)
	if err != nil {
		return fmt.Errorf("purge queue: %w", err)
	}
	return nil
}

// Stats computes the consumable-message count and the age of the oldest
// consumable message for a queue, honoring the paired dead-queue/
// max-deliveries enforcement in the consumable predicate.
func (s *Store) Stats(ctx context.Context, q *broker.Queue) (*broker.QueueStats, error) {
	now := time.Now().UTC()
	query, args := consumablePredicateQuery(
		`SELECT COUNT(*), COALESCE(EXTRACT(EPOCH FROM ($1 - MIN(created_at))), 0) FROM messages`,
		q, now,
	)

	var count int64
	var ageSeconds float64
	if err := s.pool.QueryRow(ctx, query, args...).Scan(&count, &ageSeconds); err != nil {
		return nil, fmt.Errorf("queue stats: %w", err)
	}
	if count == 0 {
		ageSeconds = 0
	}
	if ageSeconds < 0 {
		ageSeconds = 0
	}
	return &broker.QueueStats{
		NumUndeliveredMessages:        count,
		OldestUnackedMessageAgeSecond: int64(ageSeconds),
	}, nil
}
