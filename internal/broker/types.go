package broker

import (
	"encoding/json"
	"regexp"
	"time"

	"github.com/fastqueue/fastqueue/internal/filter"
)

var idPattern = regexp.MustCompile(`^[A-Za-z0-9._-]{1,128}$`)

// ValidID reports whether id satisfies the identity charset/length rule
// shared by topic, queue, and dead/destination-queue identifiers.
func ValidID(id string) bool {
	return idPattern.MatchString(id)
}

// Topic is a named publish point that fans out to subscribing queues.
type Topic struct {
	ID        string    `json:"id"`
	CreatedAt time.Time `json:"created_at"`
}

// Queue is a durable, time-ordered collection of messages with a lease protocol.
type Queue struct {
	ID                      string         `json:"id"`
	TopicID                 *string        `json:"topic_id"`
	DeadQueueID             *string        `json:"dead_queue_id"`
	AckDeadlineSeconds      int            `json:"ack_deadline_seconds"`
	MessageRetentionSeconds int            `json:"message_retention_seconds"`
	MessageFilters          filter.Filters `json:"message_filters,omitempty"`
	MessageMaxDeliveries    *int           `json:"message_max_deliveries"`
	DeliveryDelaySeconds    *int           `json:"delivery_delay_seconds"`
	CreatedAt               time.Time      `json:"created_at"`
	UpdatedAt               time.Time      `json:"updated_at"`
}

// QueueParams carries the caller-supplied, validated fields for create/update.
type QueueParams struct {
	ID                      string
	TopicID                 *string
	DeadQueueID             *string
	AckDeadlineSeconds      int
	MessageRetentionSeconds int
	MessageFilters          filter.Filters
	MessageMaxDeliveries    *int
	DeliveryDelaySeconds    *int
}

// QueueLimits holds the min/max clamps the Queue Manager enforces on queue
// parameters. It is operator-configurable (see internal/config) and carried
// by the manager rather than hardcoded, so a deployment can narrow or widen
// the accepted ranges without a code change.
type QueueLimits struct {
	MinAckDeadlineSeconds      int
	MaxAckDeadlineSeconds      int
	MinMessageRetentionSeconds int
	MaxMessageRetentionSeconds int
	MinMessageMaxDeliveries    int
	MaxMessageMaxDeliveries    int
	MinDeliveryDelaySeconds    int
	MaxDeliveryDelaySeconds    int
}

// DefaultQueueLimits returns the clamp ranges spec.md documents as defaults.
func DefaultQueueLimits() QueueLimits {
	return QueueLimits{
		MinAckDeadlineSeconds:      1,
		MaxAckDeadlineSeconds:      600,
		MinMessageRetentionSeconds: 600,
		MaxMessageRetentionSeconds: 1209600,
		MinMessageMaxDeliveries:    1,
		MaxMessageMaxDeliveries:    1000,
		MinDeliveryDelaySeconds:    1,
		MaxDeliveryDelaySeconds:    900,
	}
}

// validate checks numeric ranges against limits, id charset, and the
// dead-queue/max-deliveries co-requirement. It does not check referential
// existence of topic_id or dead_queue_id — that requires a store round trip
// and is the Queue Manager's job.
func (p QueueParams) validate(limits QueueLimits) error {
	if !ValidID(p.ID) {
		return invalidf("invalid queue id: %q", p.ID)
	}
	if p.AckDeadlineSeconds < limits.MinAckDeadlineSeconds || p.AckDeadlineSeconds > limits.MaxAckDeadlineSeconds {
		return invalidf("ack_deadline_seconds must be in [%d,%d]", limits.MinAckDeadlineSeconds, limits.MaxAckDeadlineSeconds)
	}
	if p.MessageRetentionSeconds < limits.MinMessageRetentionSeconds || p.MessageRetentionSeconds > limits.MaxMessageRetentionSeconds {
		return invalidf("message_retention_seconds must be in [%d,%d]", limits.MinMessageRetentionSeconds, limits.MaxMessageRetentionSeconds)
	}
	if p.MessageMaxDeliveries != nil {
		if *p.MessageMaxDeliveries < limits.MinMessageMaxDeliveries || *p.MessageMaxDeliveries > limits.MaxMessageMaxDeliveries {
			return invalidf("message_max_deliveries must be in [%d,%d]", limits.MinMessageMaxDeliveries, limits.MaxMessageMaxDeliveries)
		}
	}
	if p.DeliveryDelaySeconds != nil {
		if *p.DeliveryDelaySeconds < limits.MinDeliveryDelaySeconds || *p.DeliveryDelaySeconds > limits.MaxDeliveryDelaySeconds {
			return invalidf("delivery_delay_seconds must be in [%d,%d]", limits.MinDeliveryDelaySeconds, limits.MaxDeliveryDelaySeconds)
		}
	}
	if (p.DeadQueueID != nil) != (p.MessageMaxDeliveries != nil) {
		return invalidf("dead_queue_id and message_max_deliveries must be set together")
	}
	if p.TopicID != nil && !ValidID(*p.TopicID) {
		return invalidf("invalid topic id: %q", *p.TopicID)
	}
	if p.DeadQueueID != nil {
		if !ValidID(*p.DeadQueueID) {
			return invalidf("invalid dead_queue_id: %q", *p.DeadQueueID)
		}
		if *p.DeadQueueID == p.ID {
			return invalidf("a queue may not be its own dead queue")
		}
	}
	return nil
}

// Message is a single payload leased out of a Queue.
type Message struct {
	ID                string            `json:"id"`
	QueueID           string            `json:"queue_id"`
	Data              json.RawMessage   `json:"data"`
	Attributes        map[string]string `json:"attributes,omitempty"`
	DeliveryAttempts  int               `json:"delivery_attempts"`
	ExpiredAt         time.Time         `json:"expired_at"`
	ScheduledAt       time.Time         `json:"scheduled_at"`
	CreatedAt         time.Time         `json:"created_at"`
	UpdatedAt         time.Time         `json:"updated_at"`
}

// QueueStats is the result of the stats operation (C4).
type QueueStats struct {
	NumUndeliveredMessages        int64 `json:"num_undelivered_messages"`
	OldestUnackedMessageAgeSecond int64 `json:"oldest_unacked_message_age_seconds"`
}
