// Package cleanup implements the periodic tick that expires retired
// messages and migrates over-delivered ones onto their dead queue (C6). It
// runs independently of request handling and, unlike the request path, may
// span multiple processes — a Redis lock keeps at most one instance ticking
// per deployment.
package cleanup

import (
	"context"
	"fmt"

	"github.com/robfig/cron/v3"

	"github.com/fastqueue/fastqueue/internal/broker"
	"github.com/fastqueue/fastqueue/internal/logging"
	"github.com/fastqueue/fastqueue/internal/metrics"
)

// Store is the subset of persistence the scheduler needs: the full queue
// list to iterate, and the transactional per-queue cleanup primitive.
type Store interface {
	ListQueues(ctx context.Context, offset, limit int) ([]*broker.Queue, error)
	GetQueue(ctx context.Context, id string) (*broker.Queue, error)
	CleanupQueue(ctx context.Context, q, deadQueue *broker.Queue) (expired, migrated int64, err error)
}

// Lock is a distributed mutual-exclusion primitive so only one process runs
// a tick at a time across replicas. Acquire returns (false, nil) without
// error when another process currently holds the lock; that is the normal,
// expected outcome on every replica but one.
type Lock interface {
	Acquire(ctx context.Context) (bool, error)
	Release(ctx context.Context) error
}

// Scheduler runs the cleanup tick on a fixed interval.
type Scheduler struct {
	store    Store
	lock     Lock
	pageSize int
	cron     *cron.Cron
}

// New wires a Scheduler. lock may be nil, in which case every tick runs
// unlocked — acceptable only for a single-process deployment, and the
// caller is expected to have logged a warning at startup in that case.
func New(s Store, lock Lock) *Scheduler {
	return &Scheduler{
		store:    s,
		lock:     lock,
		pageSize: 500,
		cron:     cron.New(),
	}
}

// Start schedules the tick to run every intervalSeconds and starts the
// cron loop in the background. It returns once registration succeeds; the
// cron library itself owns the ticking goroutine.
func (s *Scheduler) Start(ctx context.Context, intervalSeconds int) error {
	spec := fmt.Sprintf("@every %ds", intervalSeconds)
	_, err := s.cron.AddFunc(spec, func() {
		s.tick(ctx)
	})
	if err != nil {
		return fmt.Errorf("schedule cleanup tick: %w", err)
	}
	s.cron.Start()
	logging.Op().Info("cleanup scheduler started", "interval_seconds", intervalSeconds)
	return nil
}

// Stop halts the cron loop and waits for any in-flight tick to finish.
func (s *Scheduler) Stop() {
	c := s.cron.Stop()
	<-c.Done()
}

// Tick runs one cleanup pass immediately, outside the cron schedule. Used by
// tests and by operators who want to force a pass without waiting for the
// next interval.
func (s *Scheduler) Tick(ctx context.Context) {
	s.tick(ctx)
}

func (s *Scheduler) tick(ctx context.Context) {
	if s.lock != nil {
		acquired, err := s.lock.Acquire(ctx)
		if err != nil {
			logging.Op().Warn("cleanup lock acquire failed", "error", err)
			return
		}
		if !acquired {
			return
		}
		defer func() {
			if err := s.lock.Release(ctx); err != nil {
				logging.Op().Warn("cleanup lock release failed", "error", err)
			}
		}()
	}

	offset := 0
	for {
		queues, err := s.store.ListQueues(ctx, offset, s.pageSize)
		if err != nil {
			logging.Op().Error("cleanup: list queues failed", "error", err)
			return
		}
		if len(queues) == 0 {
			break
		}

		for _, q := range queues {
			s.cleanupOne(ctx, q)
		}

		if len(queues) < s.pageSize {
			break
		}
		offset += s.pageSize
	}
}

// cleanupOne runs one queue's expire+migrate step. A single queue's failure
// is logged and does not abort the tick for the others (§7's propagation
// policy).
func (s *Scheduler) cleanupOne(ctx context.Context, q *broker.Queue) {
	var deadQueue *broker.Queue
	if q.DeadQueueID != nil && q.MessageMaxDeliveries != nil {
		dq, err := s.store.GetQueue(ctx, *q.DeadQueueID)
		if err != nil {
			logging.Op().Error("cleanup: resolve dead queue failed", "queue_id", q.ID, "dead_queue_id", *q.DeadQueueID, "error", err)
			return
		}
		deadQueue = dq
	}

	expired, migrated, err := s.store.CleanupQueue(ctx, q, deadQueue)
	if err != nil {
		logging.Op().Error("cleanup: queue tick failed", "queue_id", q.ID, "error", err)
		return
	}
	metrics.RecordExpired(q.ID, expired)
	if deadQueue != nil {
		metrics.RecordDeadLettered(q.ID, deadQueue.ID, migrated)
	}
	if expired > 0 || migrated > 0 {
		logging.Op().Info("cleanup: queue tick", "queue_id", q.ID, "expired", expired, "migrated", migrated)
	}
}
