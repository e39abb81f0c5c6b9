// Package store implements the durable persistence layer for topics,
// queues, and messages on top of PostgreSQL, including the atomic
// select-for-update-skip-locked lease primitive the broker's visibility
// timeout depends on.
package store

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Store is a PostgreSQL-backed implementation of the durable store (C1).
// Mutating operations made of more than one statement run inside an
// explicit transaction so that commit/rollback is atomic across the group;
// single-statement bulk operations (purge, redrive) rely on the statement's
// own atomicity.
type Store struct {
	pool *pgxpool.Pool
}

// New opens a connection pool against dsn, verifies connectivity, and
// ensures the schema exists.
func New(ctx context.Context, dsn string) (*Store, error) {
	if dsn == "" {
		return nil, fmt.Errorf("database dsn is required")
	}

	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("create postgres pool: %w", err)
	}

	s := &Store{pool: pool}

	if err := s.Ping(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	if err := s.ensureSchema(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return s, nil
}

// Close releases all pooled connections.
func (s *Store) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

// Ping verifies database connectivity.
func (s *Store) Ping(ctx context.Context) error {
	if s.pool == nil {
		return fmt.Errorf("postgres not initialized")
	}
	return s.pool.Ping(ctx)
}

func (s *Store) ensureSchema(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS topics (
			id TEXT PRIMARY KEY,
			created_at TIMESTAMPTZ NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS queues (
			id TEXT PRIMARY KEY,
			topic_id TEXT REFERENCES topics(id) ON DELETE SET NULL,
			dead_queue_id TEXT REFERENCES queues(id) ON DELETE SET NULL,
			ack_deadline_seconds INTEGER NOT NULL,
			message_retention_seconds INTEGER NOT NULL,
			message_filters JSONB,
			message_max_deliveries INTEGER,
			delivery_delay_seconds INTEGER,
			created_at TIMESTAMPTZ NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS queues_topic_id_idx ON queues(topic_id)`,
		`CREATE INDEX IF NOT EXISTS queues_dead_queue_id_idx ON queues(dead_queue_id)`,
		`CREATE TABLE IF NOT EXISTS messages (
			id UUID PRIMARY KEY,
			queue_id TEXT NOT NULL REFERENCES queues(id) ON DELETE CASCADE,
			data JSONB NOT NULL,
			attributes JSONB,
			delivery_attempts INTEGER NOT NULL DEFAULT 0,
			expired_at TIMESTAMPTZ NOT NULL,
			scheduled_at TIMESTAMPTZ NOT NULL,
			created_at TIMESTAMPTZ NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS messages_consume_idx ON messages(queue_id, scheduled_at, expired_at)`,
		`CREATE INDEX IF NOT EXISTS messages_expired_at_idx ON messages(expired_at)`,
	}

	for _, stmt := range stmts {
		if _, err := s.pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("ensure schema: %w", err)
		}
	}
	return nil
}
