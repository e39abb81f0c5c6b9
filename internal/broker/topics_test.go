package broker

import (
	"context"
	"errors"
	"testing"
)

func TestTopicManagerCreateAndGet(t *testing.T) {
	m := NewTopicManager(newFakeStore())
	ctx := context.Background()

	topic, err := m.Create(ctx, "orders")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if topic.ID != "orders" {
		t.Fatalf("expected id orders, got %q", topic.ID)
	}

	got, err := m.Get(ctx, "orders")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.ID != topic.ID {
		t.Fatalf("expected %q, got %q", topic.ID, got.ID)
	}
}

func TestTopicManagerCreateRejectsInvalidID(t *testing.T) {
	m := NewTopicManager(newFakeStore())
	_, err := m.Create(context.Background(), "has a space")
	if !IsInvalid(err) {
		t.Fatalf("expected INVALID, got %v", err)
	}
}

func TestTopicManagerCreateDuplicateIsAlreadyExists(t *testing.T) {
	m := NewTopicManager(newFakeStore())
	ctx := context.Background()
	if _, err := m.Create(ctx, "orders"); err != nil {
		t.Fatalf("create: %v", err)
	}
	_, err := m.Create(ctx, "orders")
	if !IsAlreadyExists(err) {
		t.Fatalf("expected ALREADY_EXISTS, got %v", err)
	}
}

func TestTopicManagerGetMissingIsNotFound(t *testing.T) {
	m := NewTopicManager(newFakeStore())
	_, err := m.Get(context.Background(), "missing")
	if !IsNotFound(err) {
		t.Fatalf("expected NOT_FOUND, got %v", err)
	}
}

func TestTopicManagerDeleteDetachesQueues(t *testing.T) {
	store := newFakeStore()
	topics := NewTopicManager(store)
	queues := NewQueueManager(store)
	ctx := context.Background()

	if _, err := topics.Create(ctx, "orders"); err != nil {
		t.Fatalf("create topic: %v", err)
	}
	topicID := "orders"
	q, err := queues.Create(ctx, QueueParams{
		ID: "orders-default", TopicID: &topicID,
		AckDeadlineSeconds: 30, MessageRetentionSeconds: 600,
	})
	if err != nil {
		t.Fatalf("create queue: %v", err)
	}

	if err := topics.Delete(ctx, "orders"); err != nil {
		t.Fatalf("delete topic: %v", err)
	}

	got, err := queues.Get(ctx, q.ID)
	if err != nil {
		t.Fatalf("get queue after topic delete: %v", err)
	}
	if got.TopicID != nil {
		t.Fatal("expected queue's topic_id to be detached, not cascaded")
	}
}

func TestTopicManagerDeleteMissingIsNotFound(t *testing.T) {
	m := NewTopicManager(newFakeStore())
	err := m.Delete(context.Background(), "missing")
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected NOT_FOUND, got %v", err)
	}
}
