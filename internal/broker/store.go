package broker

import (
	"context"
	"encoding/json"
	"time"
)

// MessageInsert is a single fully-computed row destined for one queue. The
// publish path fills in ExpiredAt/ScheduledAt from the destination queue's
// own retention/delay before handing these to the store, since both the
// admission decision (filter.Admit) and the retention math are domain
// concerns the store has no business making.
type MessageInsert struct {
	ID          string
	QueueID     string
	Data        json.RawMessage
	Attributes  map[string]string
	ExpiredAt   time.Time
	ScheduledAt time.Time
}

// Store is the subset of *store.Store the broker depends on. Declaring it
// here (rather than importing the concrete type at every call site) keeps
// the broker package the place that owns the domain-level contract; tests
// can satisfy it with a fake.
type Store interface {
	CreateTopic(ctx context.Context, id string) (*Topic, error)
	GetTopic(ctx context.Context, id string) (*Topic, error)
	ListTopics(ctx context.Context, offset, limit int) ([]*Topic, error)
	DeleteTopic(ctx context.Context, id string) error

	CreateQueue(ctx context.Context, p QueueParams) (*Queue, error)
	GetQueue(ctx context.Context, id string) (*Queue, error)
	ListQueues(ctx context.Context, offset, limit int) ([]*Queue, error)
	ListQueuesByTopic(ctx context.Context, topicID string) ([]*Queue, error)
	UpdateQueue(ctx context.Context, p QueueParams) (*Queue, error)
	DeleteQueue(ctx context.Context, id string) error
	PurgeQueue(ctx context.Context, queueID string) error
	Stats(ctx context.Context, q *Queue) (*QueueStats, error)

	InsertMessages(ctx context.Context, inserts []MessageInsert) ([]*Message, error)
	Lease(ctx context.Context, q *Queue, limit int) ([]*Message, error)
	Ack(ctx context.Context, id string) (string, error)
	Nack(ctx context.Context, id string) (string, error)
	Redrive(ctx context.Context, source, destination *Queue) (int64, error)
}
