package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/fastqueue/fastqueue/internal/broker"
)

// CreateTopic inserts a new topic. Returns broker.ErrAlreadyExists on id collision.
func (s *Store) CreateTopic(ctx context.Context, id string) (*broker.Topic, error) {
	now := time.Now().UTC()
	_, err := s.pool.Exec(ctx, `INSERT INTO topics (id, created_at) VALUES ($1, $2)`, id, now)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return nil, broker.ErrAlreadyExists
		}
		return nil, fmt.Errorf("insert topic: %w", err)
	}
	return &broker.Topic{ID: id, CreatedAt: now}, nil
}

// GetTopic looks up a topic by id.
func (s *Store) GetTopic(ctx context.Context, id string) (*broker.Topic, error) {
	var t broker.Topic
	err := s.pool.QueryRow(ctx, `SELECT id, created_at FROM topics WHERE id = $1`, id).Scan(&t.ID, &t.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, broker.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get topic: %w", err)
	}
	return &t, nil
}

// ListTopics returns topics in stable id order.
func (s *Store) ListTopics(ctx context.Context, offset, limit int) ([]*broker.Topic, error) {
	rows, err := s.pool.Query(ctx, `SELECT id, created_at FROM topics ORDER BY id ASC OFFSET $1 LIMIT $2`, offset, limit)
	if err != nil {
		return nil, fmt.Errorf("list topics: %w", err)
	}
	defer rows.Close()

	out := make([]*broker.Topic, 0)
	for rows.Next() {
		var t broker.Topic
		if err := rows.Scan(&t.ID, &t.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan topic: %w", err)
		}
		out = append(out, &t)
	}
	return out, rows.Err()
}

// DeleteTopic removes a topic and, in the same transaction, nulls the
// topic_id of every queue that subscribed to it.
func (s *Store) DeleteTopic(ctx context.Context, id string) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	ct, err := tx.Exec(ctx, `DELETE FROM topics WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete topic: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return broker.ErrNotFound
	}

	if _, err := tx.Exec(ctx, `UPDATE queues SET topic_id = NULL, updated_at = $2 WHERE topic_id = $1`, id, time.Now().UTC()); err != nil {
		return fmt.Errorf("detach queues from topic: %w", err)
	}

	return tx.Commit(ctx)
}
