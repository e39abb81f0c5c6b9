package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/fastqueue/fastqueue/internal/broker"
)

// consumablePredicateQuery appends the consumable-predicate WHERE clause
// (§4.5.2: time window plus paired dead-queue/max-deliveries enforcement) to
// selectClause, binding $1 to now and $2 to q.ID. Callers that need more
// placeholders continue numbering from the returned args slice.
func consumablePredicateQuery(selectClause string, q *broker.Queue, now time.Time) (string, []any) {
	query := selectClause + ` WHERE queue_id = $2 AND expired_at >= $1 AND scheduled_at <= $1`
	args := []any{now, q.ID}
	if q.DeadQueueID != nil && q.MessageMaxDeliveries != nil {
		query += fmt.Sprintf(" AND delivery_attempts < $%d", len(args)+1)
		args = append(args, *q.MessageMaxDeliveries)
	}
	return query, args
}

const messageColumns = `id, queue_id, data, attributes, delivery_attempts, expired_at, scheduled_at, created_at, updated_at`

func scanMessage(row interface {
	Scan(dest ...any) error
}) (*broker.Message, error) {
	var m broker.Message
	var attrsRaw []byte
	err := row.Scan(&m.ID, &m.QueueID, &m.Data, &attrsRaw, &m.DeliveryAttempts, &m.ExpiredAt, &m.ScheduledAt, &m.CreatedAt, &m.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if len(attrsRaw) > 0 {
		if err := json.Unmarshal(attrsRaw, &m.Attributes); err != nil {
			return nil, fmt.Errorf("unmarshal attributes: %w", err)
		}
	}
	return &m, nil
}

// InsertMessages writes every insert in a single transaction: either all
// rows land or none do, satisfying fan-out atomicity (§8 property 4).
func (s *Store) InsertMessages(ctx context.Context, inserts []broker.MessageInsert) ([]*broker.Message, error) {
	if len(inserts) == 0 {
		return nil, nil
	}
	now := time.Now().UTC()

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	out := make([]*broker.Message, 0, len(inserts))
	for _, in := range inserts {
		var attrsRaw []byte
		if in.Attributes != nil {
			attrsRaw, err = json.Marshal(in.Attributes)
			if err != nil {
				return nil, fmt.Errorf("marshal attributes: %w", err)
			}
		}
		_, err = tx.Exec(ctx, `
			INSERT INTO messages (id, queue_id, data, attributes, delivery_attempts, expired_at, scheduled_at, created_at, updated_at)
			VALUES ($1, $2, $3, $4, 0, $5, $6, $7, $7)
		`, in.ID, in.QueueID, in.Data, attrsRaw, in.ExpiredAt, in.ScheduledAt, now)
		if err != nil {
			return nil, fmt.Errorf("insert message into queue %s: %w", in.QueueID, err)
		}
		out = append(out, &broker.Message{
			ID: in.ID, QueueID: in.QueueID, Data: in.Data, Attributes: in.Attributes,
			ExpiredAt: in.ExpiredAt, ScheduledAt: in.ScheduledAt, CreatedAt: now, UpdatedAt: now,
		})
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit insert messages: %w", err)
	}
	return out, nil
}

// Lease atomically selects up to limit consumable rows on q, skipping any
// locked by a concurrent lease, and advances their visibility window in the
// same statement. The CTE's FOR UPDATE SKIP LOCKED is the cornerstone of
// visibility exclusivity (§8 property 2): two concurrent Lease calls never
// return the same row.
func (s *Store) Lease(ctx context.Context, q *broker.Queue, limit int) ([]*broker.Message, error) {
	now := time.Now().UTC()
	candidateSQL, args := consumablePredicateQuery(`SELECT id FROM messages`, q, now)
	candidateSQL += fmt.Sprintf(" ORDER BY scheduled_at ASC FOR UPDATE SKIP LOCKED LIMIT $%d", len(args)+1)
	args = append(args, limit)

	newScheduledAt := now.Add(time.Duration(q.AckDeadlineSeconds) * time.Second)
	args = append(args, newScheduledAt)
	scheduledAtIdx := len(args)

	query := fmt.Sprintf(`
		WITH candidates AS (%s)
		UPDATE messages SET delivery_attempts = delivery_attempts + 1, scheduled_at = $%d, updated_at = $1
		FROM candidates WHERE messages.id = candidates.id
		RETURNING messages.%s
	`, candidateSQL, scheduledAtIdx, messageColumns)

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("lease: %w", err)
	}
	defer rows.Close()

	out := make([]*broker.Message, 0, limit)
	for rows.Next() {
		m, err := scanMessage(rows)
		if err != nil {
			return nil, fmt.Errorf("scan leased message: %w", err)
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

// Ack deletes a message by id. A missing row is a silent no-op: two acks of
// the same id produce the same post-state as one (§8 property 6).
func (s *Store) Ack(ctx context.Context, id string) (string, error) {
	var queueID string
	err := s.pool.QueryRow(ctx, `DELETE FROM messages WHERE id = $1 RETURNING queue_id`, id).Scan(&queueID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", nil
		}
		return "", fmt.Errorf("ack: %w", err)
	}
	return queueID, nil
}

// Nack resets a message's visibility window to now without touching
// delivery_attempts. A missing row is a silent no-op.
func (s *Store) Nack(ctx context.Context, id string) (string, error) {
	now := time.Now().UTC()
	var queueID string
	err := s.pool.QueryRow(ctx, `UPDATE messages SET scheduled_at = $2, updated_at = $2 WHERE id = $1 RETURNING queue_id`, id, now).Scan(&queueID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", nil
		}
		return "", fmt.Errorf("nack: %w", err)
	}
	return queueID, nil
}

// Redrive bulk-moves every currently-consumable message on source to
// destination, resetting delivery_attempts and recomputing expired_at/
// scheduled_at off destination's own retention/delay. Like the cleanup
// scheduler's expire/migrate, this is a plain UPDATE rather than a
// skip-locked lease: redrive is an administrative operation, not a
// concurrent consumer, so it intentionally does not coordinate with
// in-flight leases beyond what the predicate itself excludes.
func (s *Store) Redrive(ctx context.Context, source, destination *broker.Queue) (int64, error) {
	now := time.Now().UTC()
	whereSQL, args := consumablePredicateQuery("", source, now)

	delaySeconds := 0
	if destination.DeliveryDelaySeconds != nil {
		delaySeconds = *destination.DeliveryDelaySeconds
	}
	newExpiredAt := now.Add(time.Duration(destination.MessageRetentionSeconds) * time.Second)
	newScheduledAt := now.Add(time.Duration(delaySeconds) * time.Second)

	destIdx := len(args) + 1
	expiredIdx := len(args) + 2
	scheduledIdx := len(args) + 3
	query := fmt.Sprintf(`
		UPDATE messages SET queue_id = $%d, delivery_attempts = 0, expired_at = $%d, scheduled_at = $%d, updated_at = $1
		%s
	`, destIdx, expiredIdx, scheduledIdx, whereSQL)
	args = append(args, destination.ID, newExpiredAt, newScheduledAt)

	ct, err := s.pool.Exec(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("redrive: %w", err)
	}
	return ct.RowsAffected(), nil
}

// CleanupQueue runs one tick of the cleanup scheduler's per-queue work
// (§4.6) in a single transaction: expire everything past its retention
// window, then — only when q has both a dead queue and a max-deliveries
// limit configured — migrate over-delivered rows onto deadQueue with
// counters reset. Both steps are plain updates, not skip-locked: a row
// that is concurrently leased either gets caught here (the lease's own
// update then affects zero rows) or survives to be freed by the visibility
// timeout on the next tick.
func (s *Store) CleanupQueue(ctx context.Context, q, deadQueue *broker.Queue) (expired, migrated int64, err error) {
	now := time.Now().UTC()

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return 0, 0, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	ct, err := tx.Exec(ctx, `DELETE FROM messages WHERE queue_id = $1 AND expired_at <= $2`, q.ID, now)
	if err != nil {
		return 0, 0, fmt.Errorf("expire queue %s: %w", q.ID, err)
	}
	expired = ct.RowsAffected()

	if deadQueue != nil && q.MessageMaxDeliveries != nil {
		delaySeconds := 0
		if deadQueue.DeliveryDelaySeconds != nil {
			delaySeconds = *deadQueue.DeliveryDelaySeconds
		}
		newExpiredAt := now.Add(time.Duration(deadQueue.MessageRetentionSeconds) * time.Second)
		newScheduledAt := now.Add(time.Duration(delaySeconds) * time.Second)

		ct, err = tx.Exec(ctx, `
			UPDATE messages SET queue_id = $1, delivery_attempts = 0, expired_at = $2, scheduled_at = $3, updated_at = $4
			WHERE queue_id = $5 AND delivery_attempts >= $6
		`, deadQueue.ID, newExpiredAt, newScheduledAt, now, q.ID, *q.MessageMaxDeliveries)
		if err != nil {
			return 0, 0, fmt.Errorf("migrate dead letters for queue %s: %w", q.ID, err)
		}
		migrated = ct.RowsAffected()
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, 0, fmt.Errorf("commit cleanup for queue %s: %w", q.ID, err)
	}
	return expired, migrated, nil
}
