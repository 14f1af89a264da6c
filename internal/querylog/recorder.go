// Package querylog records routing decisions and user feedback.
//
// Records are handed to an in-process watermill channel and written by a
// background subscriber, so logging never delays or fails a response.
package querylog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/capitalize-ai/faqbot/internal/model"
	"github.com/capitalize-ai/faqbot/pkg/logger"
	"github.com/capitalize-ai/faqbot/pkg/metrics"
)

const (
	topic = "querylog.events"

	kindMetadata = "kind"
	kindQuery    = "query"
	kindFeedback = "feedback"

	sinkTimeout = 10 * time.Second
)

// Recorder is the logging contract used by the routing engine and handlers.
type Recorder interface {
	// LogQuery returns the id assigned to the record, or "" if it could not
	// be queued.
	LogQuery(ctx context.Context, entry model.QueryLogEntry) string
	SaveFeedback(ctx context.Context, feedback model.Feedback)
}

// Sink persists records.
type Sink interface {
	SaveQuery(ctx context.Context, entry model.QueryLogEntry) error
	SaveFeedback(ctx context.Context, feedback model.Feedback) error
}

// Dispatcher implements Recorder on a gochannel pub/sub.
type Dispatcher struct {
	pubSub *gochannel.GoChannel
	sink   Sink
	logger *logger.Logger
	now    func() time.Time

	inflight sync.WaitGroup
}

// NewDispatcher creates a dispatcher. Call Start before logging.
func NewDispatcher(sink Sink, log *logger.Logger) *Dispatcher {
	return &Dispatcher{
		pubSub: gochannel.NewGoChannel(
			gochannel.Config{OutputChannelBuffer: 1024},
			NewWatermillLogger(log),
		),
		sink:   sink,
		logger: log.Named("querylog"),
		now:    time.Now,
	}
}

// Start subscribes the background writer.
func (d *Dispatcher) Start(ctx context.Context) error {
	messages, err := d.pubSub.Subscribe(ctx, topic)
	if err != nil {
		return fmt.Errorf("subscribe %s: %w", topic, err)
	}

	go func() {
		for msg := range messages {
			d.process(msg)
		}
	}()
	return nil
}

// LogQuery assigns an id and timestamp and queues the record.
func (d *Dispatcher) LogQuery(ctx context.Context, entry model.QueryLogEntry) string {
	id, err := uuid.NewV7()
	if err != nil {
		d.logger.Error("failed to generate query log id", zap.Error(err))
		return ""
	}
	entry.ID = id.String()
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = d.now()
	}

	if err := d.publish(kindQuery, entry); err != nil {
		metrics.QueryLogDropped.WithLabelValues("publish").Inc()
		d.logger.Error("failed to queue query log", zap.String("query_log_id", entry.ID), zap.Error(err))
		return ""
	}
	return entry.ID
}

// SaveFeedback queues a feedback update.
func (d *Dispatcher) SaveFeedback(ctx context.Context, feedback model.Feedback) {
	if err := d.publish(kindFeedback, feedback); err != nil {
		metrics.QueryLogDropped.WithLabelValues("publish").Inc()
		d.logger.Error("failed to queue feedback", zap.String("query_log_id", feedback.QueryLogID), zap.Error(err))
	}
}

// Close waits for queued records up to ctx's deadline and shuts the channel.
func (d *Dispatcher) Close(ctx context.Context) error {
	drained := make(chan struct{})
	go func() {
		d.inflight.Wait()
		close(drained)
	}()

	var err error
	select {
	case <-drained:
	case <-ctx.Done():
		err = ctx.Err()
	}
	return errors.Join(err, d.pubSub.Close())
}

func (d *Dispatcher) publish(kind string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", kind, err)
	}

	msg := message.NewMessage(watermill.NewUUID(), data)
	msg.Metadata.Set(kindMetadata, kind)

	d.inflight.Add(1)
	if err := d.pubSub.Publish(topic, msg); err != nil {
		d.inflight.Done()
		return err
	}
	return nil
}

func (d *Dispatcher) process(msg *message.Message) {
	defer d.inflight.Done()
	// Persistence is best effort: every message is acked, failures are counted.
	defer msg.Ack()

	ctx, cancel := context.WithTimeout(context.Background(), sinkTimeout)
	defer cancel()

	kind := msg.Metadata.Get(kindMetadata)
	var err error
	switch kind {
	case kindQuery:
		var entry model.QueryLogEntry
		if err = json.Unmarshal(msg.Payload, &entry); err == nil {
			err = d.sink.SaveQuery(ctx, entry)
		}
	case kindFeedback:
		var feedback model.Feedback
		if err = json.Unmarshal(msg.Payload, &feedback); err == nil {
			err = d.sink.SaveFeedback(ctx, feedback)
		}
	default:
		err = fmt.Errorf("unknown record kind %q", kind)
	}

	if err != nil {
		metrics.QueryLogDropped.WithLabelValues(kind).Inc()
		d.logger.Error("failed to persist record",
			zap.String("kind", kind),
			zap.String("message_uuid", msg.UUID),
			zap.Error(err),
		)
	}
}
