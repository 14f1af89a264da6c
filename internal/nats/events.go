package nats

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go/jetstream"

	"github.com/capitalize-ai/faqbot/internal/model"
)

const (
	// StreamName is the name of the FAQ events stream.
	StreamName = "FAQ_EVENTS"

	// SubjectPrefix is the prefix for all FAQ event subjects.
	SubjectPrefix = "faq"
)

// RouteSubject returns the subject a routing decision is published on.
func RouteSubject(route model.Route) string {
	return fmt.Sprintf("%s.route.%s", SubjectPrefix, route)
}

// FeedbackSubject returns the subject feedback is published on.
func FeedbackSubject() string {
	return SubjectPrefix + ".feedback"
}

// Publisher is the subset of jetstream.JetStream used for publishing.
type Publisher interface {
	Publish(ctx context.Context, subject string, data []byte, opts ...jetstream.PublishOpt) (*jetstream.PubAck, error)
}

// EventPublisher streams routing decisions and feedback to JetStream so
// analytics consumers can follow them.
type EventPublisher struct {
	js Publisher
}

// NewEventPublisher creates a publisher.
func NewEventPublisher(js Publisher) *EventPublisher {
	return &EventPublisher{js: js}
}

// EnsureStream ensures the events stream exists with proper configuration.
func EnsureStream(ctx context.Context, js jetstream.JetStream) error {
	// Check if stream exists
	_, err := js.Stream(ctx, StreamName)
	if err == nil {
		return nil
	}

	_, err = js.CreateStream(ctx, jetstream.StreamConfig{
		Name:        StreamName,
		Subjects:    []string{SubjectPrefix + ".>"},
		Retention:   jetstream.LimitsPolicy,
		MaxAge:      90 * 24 * time.Hour,
		MaxBytes:    10 * 1024 * 1024 * 1024, // 10GB
		Storage:     jetstream.FileStorage,
		Replicas:    1,
		Compression: jetstream.S2Compression,
		Description: "FAQ routing decisions and feedback",
	})
	if err != nil {
		return fmt.Errorf("failed to create stream: %w", err)
	}

	return nil
}

// SaveQuery publishes a routing decision. The record id is used as the
// JetStream message id so redeliveries are de-duplicated.
func (p *EventPublisher) SaveQuery(ctx context.Context, entry model.QueryLogEntry) error {
	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("failed to marshal decision: %w", err)
	}

	if _, err := p.js.Publish(ctx, RouteSubject(entry.Route), data, jetstream.WithMsgID(entry.ID)); err != nil {
		return fmt.Errorf("failed to publish decision: %w", err)
	}
	return nil
}

// SaveFeedback publishes a feedback event.
func (p *EventPublisher) SaveFeedback(ctx context.Context, feedback model.Feedback) error {
	data, err := json.Marshal(feedback)
	if err != nil {
		return fmt.Errorf("failed to marshal feedback: %w", err)
	}

	if _, err := p.js.Publish(ctx, FeedbackSubject(), data); err != nil {
		return fmt.Errorf("failed to publish feedback: %w", err)
	}
	return nil
}
