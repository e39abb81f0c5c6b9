package broker

import (
	"context"
	"errors"
)

// TopicManager owns topic lifecycle (C3).
type TopicManager struct {
	store Store
}

// NewTopicManager wires a TopicManager against its store.
func NewTopicManager(s Store) *TopicManager {
	return &TopicManager{store: s}
}

// Create registers a new topic. The id must satisfy ValidID and must not
// already exist.
func (m *TopicManager) Create(ctx context.Context, id string) (*Topic, error) {
	if !ValidID(id) {
		return nil, invalidf("invalid topic id: %q", id)
	}
	t, err := m.store.CreateTopic(ctx, id)
	if errors.Is(err, ErrAlreadyExists) {
		return nil, alreadyExistsf("topic %q already exists", id)
	}
	if err != nil {
		return nil, err
	}
	return t, nil
}

// Get looks up a topic by id.
func (m *TopicManager) Get(ctx context.Context, id string) (*Topic, error) {
	t, err := m.store.GetTopic(ctx, id)
	if errors.Is(err, ErrNotFound) {
		return nil, notFoundf("topic %q not found", id)
	}
	if err != nil {
		return nil, err
	}
	return t, nil
}

// List returns topics in id order.
func (m *TopicManager) List(ctx context.Context, offset, limit int) ([]*Topic, error) {
	return m.store.ListTopics(ctx, offset, limit)
}

// Delete removes a topic. Subscribing queues are detached (topic_id set to
// null), not deleted, per §4.3's atomicity requirement.
func (m *TopicManager) Delete(ctx context.Context, id string) error {
	err := m.store.DeleteTopic(ctx, id)
	if errors.Is(err, ErrNotFound) {
		return notFoundf("topic %q not found", id)
	}
	return err
}
