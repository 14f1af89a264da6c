// Package routing decides how each chat query is answered.
//
// A query is embedded, matched against the FAQ corpus and routed to one of
// three tiers by its best similarity: direct (stored answer), synthesis (an
// LLM combines the closest answers) or fallback (a fixed deflection). Any
// upstream failure turns into the error route instead of an error return.
package routing

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"
	"unicode/utf8"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"

	"github.com/capitalize-ai/faqbot/internal/conversation"
	"github.com/capitalize-ai/faqbot/internal/embedding"
	"github.com/capitalize-ai/faqbot/internal/model"
	"github.com/capitalize-ai/faqbot/internal/querylog"
	"github.com/capitalize-ai/faqbot/internal/rewriter"
	"github.com/capitalize-ai/faqbot/internal/search"
	"github.com/capitalize-ai/faqbot/internal/synth"
	"github.com/capitalize-ai/faqbot/pkg/logger"
	"github.com/capitalize-ai/faqbot/pkg/metrics"
	"github.com/capitalize-ai/faqbot/pkg/tracing"
)

const (
	// FallbackAnswer is returned when no FAQ is close enough.
	FallbackAnswer = "I'm not sure about that specific question. You can contact our support team at support@example.com or try rephrasing your question."
	// ErrorMessage is returned on the error route. Internal details never reach the caller.
	ErrorMessage = "Search is starting up, please try again in a moment."

	// MaxQueryLength is the longest accepted query, in characters.
	MaxQueryLength = 500
)

var (
	// ErrEmptyQuery is returned for a blank query.
	ErrEmptyQuery = errors.New("query is required")
	// ErrQueryTooLong is returned for queries over MaxQueryLength characters.
	ErrQueryTooLong = fmt.Errorf("query exceeds %d characters", MaxQueryLength)
)

// Config holds the routing thresholds.
type Config struct {
	DirectThreshold  float64
	SynthThreshold   float64
	ContextThreshold float64
	SearchLimit      int
	HistoryWindow    int
}

// DefaultConfig returns the production thresholds.
func DefaultConfig() Config {
	return Config{
		DirectThreshold:  0.8,
		SynthThreshold:   0.5,
		ContextThreshold: 0.4,
		SearchLimit:      3,
		HistoryWindow:    conversation.DefaultContextWindow,
	}
}

// Validate checks that the thresholds are ordered and within [0,1].
func (c Config) Validate() error {
	if c.ContextThreshold < 0 || c.DirectThreshold > 1 {
		return fmt.Errorf("thresholds must be within [0,1]")
	}
	if !(c.ContextThreshold <= c.SynthThreshold && c.SynthThreshold <= c.DirectThreshold) {
		return fmt.Errorf("thresholds must satisfy context <= synth <= direct, got %.2f, %.2f, %.2f",
			c.ContextThreshold, c.SynthThreshold, c.DirectThreshold)
	}
	if c.SearchLimit <= 0 {
		return fmt.Errorf("search limit must be positive")
	}
	return nil
}

// Deps are the collaborators of an Engine.
type Deps struct {
	Embedder    embedding.Embedder
	Search      search.Gateway
	Synthesizer synth.Synthesizer
	Rewriter    *rewriter.Rewriter
	Sessions    conversation.Store
	Recorder    querylog.Recorder
}

// Engine routes chat queries.
type Engine struct {
	embedder embedding.Embedder
	search   search.Gateway
	synth    synth.Synthesizer
	rewriter *rewriter.Rewriter
	sessions conversation.Store
	recorder querylog.Recorder

	cfg    Config
	now    func() time.Time
	logger *logger.Logger
}

// NewEngine creates a routing engine.
func NewEngine(deps Deps, cfg Config, log *logger.Logger) *Engine {
	rw := deps.Rewriter
	if rw == nil {
		rw = rewriter.NewDefault()
	}
	return &Engine{
		embedder: deps.Embedder,
		search:   deps.Search,
		synth:    deps.Synthesizer,
		rewriter: rw,
		sessions: deps.Sessions,
		recorder: deps.Recorder,
		cfg:      cfg,
		now:      time.Now,
		logger:   log.Named("routing"),
	}
}

// outcome is the result of the decision step, before side effects.
type outcome struct {
	decision *model.RouteDecision
	top      *model.SearchCandidate
	err      error
}

// ProcessQuery answers one query within a session. An empty sessionID opens a
// new session. Only ErrEmptyQuery and ErrQueryTooLong are returned; every
// other failure is reported through the error route.
func (e *Engine) ProcessQuery(ctx context.Context, sessionID, rawQuery string) (*model.RouteDecision, error) {
	query := strings.TrimSpace(rawQuery)
	if query == "" {
		return nil, ErrEmptyQuery
	}
	if utf8.RuneCountInString(query) > MaxQueryLength {
		return nil, ErrQueryTooLong
	}

	ctx, span := tracing.Tracer("routing").Start(ctx, "routing.ProcessQuery")
	defer span.End()

	if sessionID == "" {
		sessionID = e.sessions.CreateSession(ctx)
	}
	log := e.logger.With(zap.String("session_id", sessionID))

	history := e.sessions.GetRecentContext(ctx, sessionID, e.cfg.HistoryWindow)
	rewritten := e.rewriter.RewriteWithContext(query, history)
	contextUsed := rewritten != query
	if contextUsed {
		metrics.ContextRewritesTotal.Inc()
	}

	start := e.now()
	out := e.decideSafely(ctx, query, rewritten, history)
	elapsed := e.now().Sub(start)

	decision := out.decision
	decision.SessionID = sessionID
	decision.ContextUsed = contextUsed
	decision.ResponseTimeMs = elapsed.Milliseconds()
	if contextUsed {
		decision.RewrittenQuery = rewritten
	}

	span.SetAttributes(
		attribute.String("route", string(decision.Route)),
		attribute.Bool("context_used", contextUsed),
	)
	if out.err != nil {
		span.RecordError(out.err)
		span.SetStatus(codes.Error, "routing failed")
		log.Error("routing failed", zap.Error(out.err))
	}
	metrics.RecordRoute(string(decision.Route), elapsed.Seconds())

	decision.QueryLogID = e.recorder.LogQuery(ctx, e.logEntry(query, decision, out.top))
	e.appendTurn(ctx, log, sessionID, query, decision)

	log.Info("query routed",
		zap.String("route", string(decision.Route)),
		zap.Int("confidence", decision.Confidence),
		zap.Bool("llm_used", decision.LLMUsed),
		zap.Bool("context_used", contextUsed),
		zap.Int64("response_time_ms", decision.ResponseTimeMs),
	)
	return decision, nil
}

// decideSafely converts a panic in any collaborator into the error route.
func (e *Engine) decideSafely(ctx context.Context, query, rewritten string, history []model.Message) (out outcome) {
	defer func() {
		if r := recover(); r != nil {
			out = outcome{decision: errorDecision(), err: fmt.Errorf("panic during routing: %v", r)}
		}
	}()
	return e.decide(ctx, query, rewritten, history)
}

func (e *Engine) decide(ctx context.Context, query, rewritten string, history []model.Message) outcome {
	tracer := tracing.Tracer("routing")

	embedCtx, span := tracer.Start(ctx, "routing.embed")
	vector, err := e.embedder.Generate(embedCtx, rewritten)
	span.End()
	if err != nil {
		return outcome{decision: errorDecision(), err: fmt.Errorf("embed query: %w", err)}
	}

	searchCtx, span := tracer.Start(ctx, "routing.search")
	candidates := e.search.SearchByVector(searchCtx, vector, e.cfg.ContextThreshold, e.cfg.SearchLimit)
	span.SetAttributes(attribute.Int("search.candidates", len(candidates)))
	span.End()
	if len(candidates) == 0 {
		return outcome{decision: fallbackDecision()}
	}

	top := candidates[0]
	switch e.tierOf(top.Similarity) {
	case model.RouteDirect:
		return outcome{decision: answerDecision(model.RouteDirect, top, top.Answer), top: &top}

	case model.RouteLLMSynthesis:
		text, ok := e.synth.Synthesize(ctx, synth.Request{
			Query:   query,
			FAQs:    e.contextCandidates(candidates),
			History: historyLines(history),
		})
		if !ok {
			return outcome{decision: answerDecision(model.RouteDirectFallback, top, top.Answer), top: &top}
		}
		d := answerDecision(model.RouteLLMSynthesis, top, text)
		d.LLMUsed = true
		return outcome{decision: d, top: &top}

	default:
		d := fallbackDecision()
		d.TopCandidate = topOf(top)
		return outcome{decision: d, top: &top}
	}
}

// tierOf maps a similarity to the tier it falls in. The medium tier is
// reported as RouteLLMSynthesis whether or not synthesis later succeeds.
func (e *Engine) tierOf(similarity float64) model.Route {
	switch {
	case similarity >= e.cfg.DirectThreshold:
		return model.RouteDirect
	case similarity >= e.cfg.SynthThreshold:
		return model.RouteLLMSynthesis
	default:
		return model.RouteFallback
	}
}

func (e *Engine) contextCandidates(candidates []model.SearchCandidate) []model.SearchCandidate {
	out := make([]model.SearchCandidate, 0, len(candidates))
	for _, c := range candidates {
		if c.Similarity >= e.cfg.ContextThreshold {
			out = append(out, c)
		}
	}
	return out
}

func (e *Engine) logEntry(query string, d *model.RouteDecision, top *model.SearchCandidate) model.QueryLogEntry {
	entry := model.QueryLogEntry{
		SessionID:      d.SessionID,
		QueryText:      query,
		RewrittenQuery: d.RewrittenQuery,
		Route:          d.Route,
		ResponseTimeMs: d.ResponseTimeMs,
		LLMUsed:        d.LLMUsed,
		ContextUsed:    d.ContextUsed,
	}
	if top != nil {
		id, sim := top.ID, top.Similarity
		entry.TopFAQID = &id
		entry.Similarity = &sim
		entry.MatchedCategory = top.Category
	}
	return entry
}

// appendTurn records the user query and the reply as one turn. Failures are logged only.
func (e *Engine) appendTurn(ctx context.Context, log *logger.Logger, sessionID, query string, d *model.RouteDecision) {
	reply := d.Answer
	if reply == "" {
		reply = d.Message
	}

	if err := e.sessions.AppendTurn(ctx, sessionID, query, reply); err != nil {
		log.Warn("failed to store conversation turn", zap.Error(err))
	}
}

func answerDecision(route model.Route, top model.SearchCandidate, answer string) *model.RouteDecision {
	return &model.RouteDecision{
		Route:        route,
		Answer:       answer,
		Confidence:   Confidence(top.Similarity),
		Similarity:   top.Similarity,
		TopCandidate: topOf(top),
	}
}

func fallbackDecision() *model.RouteDecision {
	return &model.RouteDecision{Route: model.RouteFallback, Answer: FallbackAnswer}
}

func errorDecision() *model.RouteDecision {
	return &model.RouteDecision{Route: model.RouteError, Message: ErrorMessage}
}

func topOf(c model.SearchCandidate) *model.TopCandidate {
	return &model.TopCandidate{ID: c.ID, Question: c.Question, Category: c.Category}
}

// Confidence converts a similarity in [0,1] to a percentage.
func Confidence(similarity float64) int {
	return int(math.Round(similarity * 100))
}

func historyLines(history []model.Message) []string {
	lines := make([]string, 0, len(history))
	for _, m := range history {
		switch m.Role {
		case model.RoleUser:
			lines = append(lines, "User: "+m.Content)
		case model.RoleAssistant:
			lines = append(lines, "Assistant: "+m.Content)
		}
	}
	return lines
}
