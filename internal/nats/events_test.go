package nats

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/nats-io/nats.go/jetstream"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/capitalize-ai/faqbot/internal/model"
)

type published struct {
	subject string
	data    []byte
	opts    int
}

type fakePublisher struct {
	msgs []published
	err  error
}

func (f *fakePublisher) Publish(_ context.Context, subject string, data []byte, opts ...jetstream.PublishOpt) (*jetstream.PubAck, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.msgs = append(f.msgs, published{subject: subject, data: data, opts: len(opts)})
	return &jetstream.PubAck{Stream: StreamName, Sequence: uint64(len(f.msgs))}, nil
}

func TestSubjects(t *testing.T) {
	assert.Equal(t, "faq.route.direct_fallback", RouteSubject(model.RouteDirectFallback))
	assert.Equal(t, "faq.feedback", FeedbackSubject())
}

func TestEventPublisherSaveQuery(t *testing.T) {
	js := &fakePublisher{}
	p := NewEventPublisher(js)

	err := p.SaveQuery(context.Background(), model.QueryLogEntry{ID: "id-1", QueryText: "q", Route: model.RouteDirect})
	require.NoError(t, err)
	require.Len(t, js.msgs, 1)
	assert.Equal(t, "faq.route.direct", js.msgs[0].subject)
	assert.Equal(t, 1, js.msgs[0].opts)

	var decoded model.QueryLogEntry
	require.NoError(t, json.Unmarshal(js.msgs[0].data, &decoded))
	assert.Equal(t, "id-1", decoded.ID)
}

func TestEventPublisherErrors(t *testing.T) {
	p := NewEventPublisher(&fakePublisher{err: errors.New("no responders")})

	assert.ErrorContains(t, p.SaveQuery(context.Background(), model.QueryLogEntry{Route: model.RouteError}), "no responders")
	assert.ErrorContains(t, p.SaveFeedback(context.Background(), model.Feedback{QueryLogID: "x"}), "no responders")
}
