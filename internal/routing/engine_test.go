package routing

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/capitalize-ai/faqbot/internal/conversation"
	"github.com/capitalize-ai/faqbot/internal/embedding"
	"github.com/capitalize-ai/faqbot/internal/model"
	"github.com/capitalize-ai/faqbot/internal/synth"
	"github.com/capitalize-ai/faqbot/pkg/logger"
)

type fakeEmbedder struct {
	err    error
	panics bool
	texts  []string
}

func (f *fakeEmbedder) Generate(_ context.Context, text string) ([]float32, error) {
	if f.panics {
		panic("embedder exploded")
	}
	f.texts = append(f.texts, text)
	if f.err != nil {
		return nil, f.err
	}
	return []float32{1, 0, 0}, nil
}

func (f *fakeEmbedder) Ready() bool { return f.err == nil }

type fakeGateway struct {
	candidates []model.SearchCandidate
	threshold  float64
	limit      int
}

func (f *fakeGateway) SearchByVector(_ context.Context, _ []float32, threshold float64, limit int) []model.SearchCandidate {
	f.threshold, f.limit = threshold, limit
	var out []model.SearchCandidate
	for _, c := range f.candidates {
		if c.Similarity >= threshold && len(out) < limit {
			out = append(out, c)
		}
	}
	return out
}

type fakeSynth struct {
	text  string
	ok    bool
	calls []synth.Request
}

func (f *fakeSynth) Synthesize(_ context.Context, req synth.Request) (string, bool) {
	f.calls = append(f.calls, req)
	return f.text, f.ok
}

type fakeRecorder struct {
	mu      sync.Mutex
	entries []model.QueryLogEntry
}

func (f *fakeRecorder) LogQuery(_ context.Context, entry model.QueryLogEntry) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.entries = append(f.entries, entry)
	return "0190a5f4-7c1e-7000-8000-000000000001"
}

func (f *fakeRecorder) SaveFeedback(context.Context, model.Feedback) {}

type failingStore struct {
	conversation.Store
}

func (failingStore) AddMessage(context.Context, string, model.Role, string) error {
	return errors.New("store unavailable")
}

func (failingStore) AppendTurn(context.Context, string, string, string) error {
	return errors.New("store unavailable")
}

// turnStore records how the engine writes history.
type turnStore struct {
	conversation.Store
	mu        sync.Mutex
	turns     [][2]string
	singleAdd int
}

func (s *turnStore) AddMessage(ctx context.Context, id string, role model.Role, content string) error {
	s.mu.Lock()
	s.singleAdd++
	s.mu.Unlock()
	return s.Store.AddMessage(ctx, id, role, content)
}

func (s *turnStore) AppendTurn(ctx context.Context, id, user, assistant string) error {
	s.mu.Lock()
	s.turns = append(s.turns, [2]string{user, assistant})
	s.mu.Unlock()
	return s.Store.AppendTurn(ctx, id, user, assistant)
}

type harness struct {
	engine   *Engine
	embedder *fakeEmbedder
	gateway  *fakeGateway
	synth    *fakeSynth
	recorder *fakeRecorder
	store    *conversation.MemoryStore
}

func newHarness(candidates ...model.SearchCandidate) *harness {
	h := &harness{
		embedder: &fakeEmbedder{},
		gateway:  &fakeGateway{candidates: candidates},
		synth:    &fakeSynth{},
		recorder: &fakeRecorder{},
		store:    conversation.NewMemoryStore(conversation.Options{}, logger.NewNop()),
	}
	h.engine = NewEngine(Deps{
		Embedder:    h.embedder,
		Search:      h.gateway,
		Synthesizer: h.synth,
		Sessions:    h.store,
		Recorder:    h.recorder,
	}, DefaultConfig(), logger.NewNop())
	return h
}

func shippingFAQ(sim float64) model.SearchCandidate {
	return model.SearchCandidate{
		ID:         7,
		Question:   "Do you ship internationally?",
		Answer:     "We ship to Canada and Mexico.",
		Category:   "shipping",
		Similarity: sim,
	}
}

func TestScenarioDirect(t *testing.T) {
	h := newHarness(shippingFAQ(0.92))

	d, err := h.engine.ProcessQuery(context.Background(), "", "Do you ship internationally?")
	require.NoError(t, err)

	assert.Equal(t, model.RouteDirect, d.Route)
	assert.Equal(t, 92, d.Confidence)
	assert.Equal(t, "We ship to Canada and Mexico.", d.Answer)
	assert.False(t, d.LLMUsed)
	assert.False(t, d.ContextUsed)
	assert.Empty(t, h.synth.calls)
	require.NotNil(t, d.TopCandidate)
	assert.Equal(t, "shipping", d.TopCandidate.Category)
	assert.NotEmpty(t, d.SessionID)
	assert.NotEmpty(t, d.QueryLogID)
}

func seedShippingExchange(t *testing.T, h *harness) string {
	t.Helper()
	ctx := context.Background()
	id := h.store.CreateSession(ctx)
	require.NoError(t, h.store.AddMessage(ctx, id, model.RoleUser, "When will my package arrive?"))
	require.NoError(t, h.store.AddMessage(ctx, id, model.RoleAssistant, "Orders ship within 2 days and usually arrive in a week."))
	return id
}

func TestScenarioSynthesisWithContext(t *testing.T) {
	h := newHarness(
		model.SearchCandidate{ID: 3, Question: "How do I track my order?", Answer: "Use the tracking link.", Category: "shipping", Similarity: 0.6},
		model.SearchCandidate{ID: 4, Question: "What if my package is lost?", Answer: "Contact us for a replacement.", Category: "shipping", Similarity: 0.45},
	)
	h.synth.text, h.synth.ok = "You can track your package with the link in your email.", true
	sessionID := seedShippingExchange(t, h)

	d, err := h.engine.ProcessQuery(context.Background(), sessionID, "What about a late delivery?")
	require.NoError(t, err)

	assert.Equal(t, model.RouteLLMSynthesis, d.Route)
	assert.True(t, d.ContextUsed)
	assert.True(t, d.LLMUsed)
	assert.Contains(t, d.RewrittenQuery, "(regarding shipping and delivery)")
	assert.Equal(t, 60, d.Confidence)
	assert.Equal(t, "You can track your package with the link in your email.", d.Answer)

	// Search runs on the rewritten query, synthesis sees the raw one.
	assert.Equal(t, []string{d.RewrittenQuery}, h.embedder.texts)
	require.Len(t, h.synth.calls, 1)
	req := h.synth.calls[0]
	assert.Equal(t, "What about a late delivery?", req.Query)
	assert.Len(t, req.FAQs, 2)
	assert.Equal(t, []string{
		"User: When will my package arrive?",
		"Assistant: Orders ship within 2 days and usually arrive in a week.",
	}, req.History)
}

func TestScenarioSynthesisFailsOverToTopAnswer(t *testing.T) {
	h := newHarness(model.SearchCandidate{ID: 3, Question: "How do I track my order?", Answer: "Use the tracking link.", Category: "shipping", Similarity: 0.6})
	sessionID := seedShippingExchange(t, h)

	d, err := h.engine.ProcessQuery(context.Background(), sessionID, "What about a late delivery?")
	require.NoError(t, err)

	assert.Equal(t, model.RouteDirectFallback, d.Route)
	assert.False(t, d.LLMUsed)
	assert.Equal(t, "Use the tracking link.", d.Answer)
	assert.Equal(t, 60, d.Confidence)
	assert.True(t, d.ContextUsed)
}

func TestScenarioNoMatch(t *testing.T) {
	h := newHarness(model.SearchCandidate{ID: 1, Answer: "irrelevant", Similarity: 0.05})

	d, err := h.engine.ProcessQuery(context.Background(), "", "asdkjasd")
	require.NoError(t, err)

	assert.Equal(t, model.RouteFallback, d.Route)
	assert.Equal(t, 0, d.Confidence)
	assert.Equal(t, FallbackAnswer, d.Answer)
	assert.Nil(t, d.TopCandidate)
	assert.Empty(t, h.synth.calls)

	require.Len(t, h.recorder.entries, 1)
	assert.Nil(t, h.recorder.entries[0].TopFAQID)
}

func TestScenarioEmbedderFailure(t *testing.T) {
	h := newHarness(shippingFAQ(0.92))
	h.embedder.err = embedding.ErrModelNotReady

	d, err := h.engine.ProcessQuery(context.Background(), "", "Do you ship internationally?")
	require.NoError(t, err)

	assert.Equal(t, model.RouteError, d.Route)
	assert.Equal(t, 0, d.Confidence)
	assert.Equal(t, ErrorMessage, d.Message)
	assert.NotContains(t, d.Message, "not ready")
	assert.Empty(t, d.Answer)
}

func TestPanicBecomesErrorRoute(t *testing.T) {
	h := newHarness(shippingFAQ(0.92))
	h.embedder.panics = true

	d, err := h.engine.ProcessQuery(context.Background(), "", "Do you ship internationally?")
	require.NoError(t, err)
	assert.Equal(t, model.RouteError, d.Route)

	msgs := h.store.GetRecentContext(context.Background(), d.SessionID, 10)
	require.Len(t, msgs, 2)
	assert.Equal(t, ErrorMessage, msgs[1].Content)
}

func TestThresholdTiers(t *testing.T) {
	cases := []struct {
		sim   float64
		route model.Route
	}{
		{0.41, model.RouteFallback},
		{0.4999, model.RouteFallback},
		{0.5, model.RouteDirectFallback},
		{0.7999, model.RouteDirectFallback},
		{0.8, model.RouteDirect},
		{1.0, model.RouteDirect},
	}
	for _, tc := range cases {
		h := newHarness(shippingFAQ(tc.sim))
		d, err := h.engine.ProcessQuery(context.Background(), "", "Do you ship internationally?")
		require.NoError(t, err)
		assert.Equal(t, tc.route, d.Route, "similarity %.4f", tc.sim)
		assert.Equal(t, tc.route.AttemptedSynthesis(), len(h.synth.calls) == 1, "similarity %.4f", tc.sim)
	}
}

func TestConfidenceByRoute(t *testing.T) {
	h := newHarness(shippingFAQ(0.456))
	d, err := h.engine.ProcessQuery(context.Background(), "", "Do you ship internationally?")
	require.NoError(t, err)
	assert.Equal(t, model.RouteFallback, d.Route)
	assert.Equal(t, 0, d.Confidence)
	require.NotNil(t, d.TopCandidate)

	h = newHarness(shippingFAQ(0.656))
	d, err = h.engine.ProcessQuery(context.Background(), "", "Do you ship internationally?")
	require.NoError(t, err)
	assert.Equal(t, 66, d.Confidence)

	assert.Equal(t, 0, Confidence(0))
	assert.Equal(t, 100, Confidence(1))
}

func TestSynthesisNeverBlank(t *testing.T) {
	for _, sim := range []float64{0.5, 0.55, 0.65, 0.79} {
		h := newHarness(shippingFAQ(sim))
		d, err := h.engine.ProcessQuery(context.Background(), "", "Do you ship internationally?")
		require.NoError(t, err)
		assert.Equal(t, model.RouteDirectFallback, d.Route)
		assert.Equal(t, "We ship to Canada and Mexico.", d.Answer)
	}
}

func TestSearchParameters(t *testing.T) {
	h := newHarness(shippingFAQ(0.92))
	_, err := h.engine.ProcessQuery(context.Background(), "", "Do you ship internationally?")
	require.NoError(t, err)
	assert.Equal(t, 0.4, h.gateway.threshold)
	assert.Equal(t, 3, h.gateway.limit)
}

func TestInputValidation(t *testing.T) {
	h := newHarness(shippingFAQ(0.92))

	_, err := h.engine.ProcessQuery(context.Background(), "", "   ")
	assert.ErrorIs(t, err, ErrEmptyQuery)

	long := make([]rune, MaxQueryLength+1)
	for i := range long {
		long[i] = 'a'
	}
	_, err = h.engine.ProcessQuery(context.Background(), "", string(long))
	assert.ErrorIs(t, err, ErrQueryTooLong)

	assert.Empty(t, h.embedder.texts)
	assert.Empty(t, h.recorder.entries)
}

func TestSideEffects(t *testing.T) {
	h := newHarness(shippingFAQ(0.6))
	sessionID := seedShippingExchange(t, h)

	d, err := h.engine.ProcessQuery(context.Background(), sessionID, "What about a late delivery?")
	require.NoError(t, err)

	require.Len(t, h.recorder.entries, 1)
	entry := h.recorder.entries[0]
	assert.Equal(t, "What about a late delivery?", entry.QueryText)
	assert.Equal(t, d.RewrittenQuery, entry.RewrittenQuery)
	assert.Equal(t, model.RouteDirectFallback, entry.Route)
	require.NotNil(t, entry.TopFAQID)
	assert.Equal(t, int64(7), *entry.TopFAQID)
	require.NotNil(t, entry.Similarity)
	assert.Equal(t, 0.6, *entry.Similarity)
	assert.Equal(t, "shipping", entry.MatchedCategory)
	assert.True(t, entry.ContextUsed)
	assert.Equal(t, sessionID, entry.SessionID)

	msgs := h.store.GetRecentContext(context.Background(), sessionID, 10)
	require.Len(t, msgs, 4)
	assert.Equal(t, model.RoleUser, msgs[2].Role)
	assert.Equal(t, "What about a late delivery?", msgs[2].Content)
	assert.Equal(t, model.RoleAssistant, msgs[3].Role)
	assert.Equal(t, "We ship to Canada and Mexico.", msgs[3].Content)
}

func TestStoreFailuresDoNotAffectResponse(t *testing.T) {
	h := newHarness(shippingFAQ(0.92))
	h.engine.sessions = failingStore{Store: h.store}

	d, err := h.engine.ProcessQuery(context.Background(), "", "Do you ship internationally?")
	require.NoError(t, err)
	assert.Equal(t, model.RouteDirect, d.Route)
	assert.Len(t, h.recorder.entries, 1)
}

func TestTurnIsAppendedAtomically(t *testing.T) {
	h := newHarness(shippingFAQ(0.92))
	store := &turnStore{Store: h.store}
	h.engine.sessions = store
	ctx := context.Background()

	sessionID := h.store.CreateSession(ctx)
	_, err := h.engine.ProcessQuery(ctx, sessionID, "Question A about returns")
	require.NoError(t, err)
	_, err = h.engine.ProcessQuery(ctx, sessionID, "Question B about billing")
	require.NoError(t, err)

	assert.Zero(t, store.singleAdd)
	require.Len(t, store.turns, 2)
	assert.Equal(t, [2]string{"Question A about returns", "We ship to Canada and Mexico."}, store.turns[0])

	msgs := h.store.GetRecentContext(ctx, sessionID, 10)
	require.Len(t, msgs, 4)
	for i, m := range msgs {
		if i%2 == 0 {
			assert.Equal(t, model.RoleUser, m.Role)
		} else {
			assert.Equal(t, model.RoleAssistant, m.Role)
		}
	}
	assert.Equal(t, "Question B about billing", msgs[2].Content)
}

func TestConfigValidate(t *testing.T) {
	assert.NoError(t, DefaultConfig().Validate())

	cfg := DefaultConfig()
	cfg.SynthThreshold = 0.9
	assert.Error(t, cfg.Validate())

	cfg = DefaultConfig()
	cfg.SearchLimit = 0
	assert.Error(t, cfg.Validate())
}
