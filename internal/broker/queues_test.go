package broker

import (
	"context"
	"testing"
)

func validQueueParams(id string) QueueParams {
	return QueueParams{
		ID:                      id,
		AckDeadlineSeconds:      30,
		MessageRetentionSeconds: 600,
	}
}

func TestQueueManagerCreateAndGet(t *testing.T) {
	m := NewQueueManager(newFakeStore())
	ctx := context.Background()

	q, err := m.Create(ctx, validQueueParams("orders-default"))
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if q.ID != "orders-default" {
		t.Fatalf("expected id orders-default, got %q", q.ID)
	}

	got, err := m.Get(ctx, "orders-default")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.AckDeadlineSeconds != 30 {
		t.Fatalf("expected ack_deadline_seconds 30, got %d", got.AckDeadlineSeconds)
	}
}

func TestQueueManagerCreateRejectsOutOfRangeAckDeadline(t *testing.T) {
	m := NewQueueManager(newFakeStore())
	p := validQueueParams("q1")
	p.AckDeadlineSeconds = 0
	_, err := m.Create(context.Background(), p)
	if !IsInvalid(err) {
		t.Fatalf("expected INVALID, got %v", err)
	}
}

func TestQueueManagerCreateRejectsSelfReferenceDeadQueue(t *testing.T) {
	m := NewQueueManager(newFakeStore())
	p := validQueueParams("q1")
	p.DeadQueueID = &p.ID
	maxDeliveries := 5
	p.MessageMaxDeliveries = &maxDeliveries
	_, err := m.Create(context.Background(), p)
	if !IsInvalid(err) {
		t.Fatalf("expected INVALID for self-referencing dead queue, got %v", err)
	}
}

func TestQueueManagerCreateRequiresDeadQueuePairedWithMaxDeliveries(t *testing.T) {
	m := NewQueueManager(newFakeStore())
	p := validQueueParams("q1")
	deadID := "q2"
	p.DeadQueueID = &deadID
	_, err := m.Create(context.Background(), p)
	if !IsInvalid(err) {
		t.Fatalf("expected INVALID when dead_queue_id set without message_max_deliveries, got %v", err)
	}
}

func TestQueueManagerCreateRejectsMissingTopicReferent(t *testing.T) {
	m := NewQueueManager(newFakeStore())
	p := validQueueParams("q1")
	topicID := "no-such-topic"
	p.TopicID = &topicID
	_, err := m.Create(context.Background(), p)
	if !IsNotFound(err) {
		t.Fatalf("expected NOT_FOUND for missing topic, got %v", err)
	}
}

func TestQueueManagerCreateRejectsMissingDeadQueueReferent(t *testing.T) {
	m := NewQueueManager(newFakeStore())
	p := validQueueParams("q1")
	deadID := "no-such-dead-queue"
	p.DeadQueueID = &deadID
	maxDeliveries := 5
	p.MessageMaxDeliveries = &maxDeliveries
	_, err := m.Create(context.Background(), p)
	if !IsNotFound(err) {
		t.Fatalf("expected NOT_FOUND for missing dead queue, got %v", err)
	}
}

func TestQueueManagerCreateAcceptsValidDeadQueueChain(t *testing.T) {
	store := newFakeStore()
	m := NewQueueManager(store)
	ctx := context.Background()

	if _, err := m.Create(ctx, validQueueParams("dlq")); err != nil {
		t.Fatalf("create dead queue: %v", err)
	}

	p := validQueueParams("main")
	deadID := "dlq"
	maxDeliveries := 5
	p.DeadQueueID = &deadID
	p.MessageMaxDeliveries = &maxDeliveries
	if _, err := m.Create(ctx, p); err != nil {
		t.Fatalf("create main queue with dead queue chain: %v", err)
	}
}

func TestQueueManagerDeleteMissingIsNotFound(t *testing.T) {
	m := NewQueueManager(newFakeStore())
	err := m.Delete(context.Background(), "missing")
	if !IsNotFound(err) {
		t.Fatalf("expected NOT_FOUND, got %v", err)
	}
}

func TestQueueManagerUpdateMissingIsNotFound(t *testing.T) {
	m := NewQueueManager(newFakeStore())
	_, err := m.Update(context.Background(), validQueueParams("missing"))
	if !IsNotFound(err) {
		t.Fatalf("expected NOT_FOUND, got %v", err)
	}
}

func TestQueueManagerDeleteNullsReferencingDeadQueueID(t *testing.T) {
	store := newFakeStore()
	m := NewQueueManager(store)
	ctx := context.Background()

	if _, err := m.Create(ctx, validQueueParams("dlq")); err != nil {
		t.Fatalf("create dead queue: %v", err)
	}
	p := validQueueParams("main")
	deadID := "dlq"
	maxDeliveries := 5
	p.DeadQueueID = &deadID
	p.MessageMaxDeliveries = &maxDeliveries
	if _, err := m.Create(ctx, p); err != nil {
		t.Fatalf("create main queue: %v", err)
	}

	if err := m.Delete(ctx, "dlq"); err != nil {
		t.Fatalf("delete dead queue: %v", err)
	}

	got, err := m.Get(ctx, "main")
	if err != nil {
		t.Fatalf("get main queue: %v", err)
	}
	if got.DeadQueueID != nil {
		t.Fatal("expected dead_queue_id to be nulled after dead queue deletion")
	}
}
