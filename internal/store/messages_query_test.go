package store

import (
	"strings"
	"testing"
	"time"

	"github.com/fastqueue/fastqueue/internal/broker"
)

func TestConsumablePredicateQueryWithoutDeadQueue(t *testing.T) {
	q := &broker.Queue{ID: "orders-a"}
	now := time.Now().UTC()

	query, args := consumablePredicateQuery("SELECT id FROM messages", q, now)

	if !strings.Contains(query, "queue_id = $2") {
		t.Fatalf("expected queue_id placeholder, got %q", query)
	}
	if strings.Contains(query, "delivery_attempts") {
		t.Fatalf("expected no delivery_attempts clause without a paired dead queue, got %q", query)
	}
	if len(args) != 2 {
		t.Fatalf("expected 2 args, got %d: %v", len(args), args)
	}
	if args[0] != now {
		t.Fatalf("expected args[0] to be now, got %v", args[0])
	}
	if args[1] != "orders-a" {
		t.Fatalf("expected args[1] to be queue id, got %v", args[1])
	}
}

func TestConsumablePredicateQueryWithDeadQueueAddsDeliveryAttemptsClause(t *testing.T) {
	deadQueueID := "orders-dlq"
	maxDeliveries := 5
	q := &broker.Queue{ID: "orders-a", DeadQueueID: &deadQueueID, MessageMaxDeliveries: &maxDeliveries}
	now := time.Now().UTC()

	query, args := consumablePredicateQuery("SELECT id FROM messages", q, now)

	if !strings.Contains(query, "delivery_attempts < $3") {
		t.Fatalf("expected delivery_attempts clause bound to $3, got %q", query)
	}
	if len(args) != 3 {
		t.Fatalf("expected 3 args, got %d: %v", len(args), args)
	}
	if args[2] != maxDeliveries {
		t.Fatalf("expected args[2] to be max deliveries, got %v", args[2])
	}
}

func TestConsumablePredicateQueryOmitsDeliveryAttemptsWhenOnlyOneFieldSet(t *testing.T) {
	maxDeliveries := 5
	q := &broker.Queue{ID: "orders-a", MessageMaxDeliveries: &maxDeliveries}
	now := time.Now().UTC()

	query, args := consumablePredicateQuery("SELECT id FROM messages", q, now)

	if strings.Contains(query, "delivery_attempts") {
		t.Fatalf("expected no delivery_attempts clause when dead_queue_id is unset, got %q", query)
	}
	if len(args) != 2 {
		t.Fatalf("expected 2 args, got %d", len(args))
	}
}
