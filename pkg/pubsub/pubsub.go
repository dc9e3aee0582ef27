package pubsub

import (
	"context"
	"encoding/json"
)

// Topics published by the lineage server.
const (
	TopicGraph = "graph"
	TopicDiff  = "diff"
)

// Event is one pub/sub event
type Event struct {
	Topic   string          `json:"topic"`
	Type    string          `json:"type"`    // e.g. "loading", "rebuilt", "modified"
	Data    json.RawMessage `json:"data"`    // Event payload
	Version int             `json:"version"` // Version number for ordering
}

// Subscription represents a client subscription to a topic
type Subscription interface {
	// Topic returns the subscription topic
	Topic() string

	// Events returns a channel for receiving events
	Events() <-chan Event

	// Close closes the subscription
	Close() error
}

// Publisher manages pub/sub subscriptions and event publishing
type Publisher interface {
	// Subscribe creates a new subscription to a topic.
	// Context cancellation will close the subscription.
	Subscribe(ctx context.Context, topic string) (Subscription, error)

	// Publish sends an event to all subscribers of a topic
	Publish(topic string, eventType string, data interface{}) error

	// Close shuts down the publisher and all subscriptions
	Close() error
}

// GraphStatus is the payload published on the graph topic whenever the
// lineage map is (re)built.
type GraphStatus struct {
	State     string `json:"state"` // loading, ready, error
	Message   string `json:"message"`
	Resources int    `json:"resources"`
}

// DiffStatus is the payload published on the diff topic after a state
// diff completes.
type DiffStatus struct {
	Project  string   `json:"project"`
	Selector string   `json:"selector"`
	Modified []string `json:"modified"`
}
