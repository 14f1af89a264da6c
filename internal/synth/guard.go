// Package synth turns several FAQ answers into one reply through an LLM and
// shields the rest of the system from that dependency.
//
// Guard wraps a Backend with input screening, context truncation, a circuit
// breaker, a daily usage cap, a per-minute rate limit, a timeout and output
// validation. Every failure mode collapses to ("", false).
package synth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/capitalize-ai/faqbot/internal/model"
	"github.com/capitalize-ai/faqbot/pkg/logger"
	"github.com/capitalize-ai/faqbot/pkg/metrics"
	"github.com/capitalize-ai/faqbot/pkg/tracing"
)

// Outcome labels for metrics and logs.
const (
	OutcomeSuccess        = "success"
	OutcomeInjection      = "blocked_injection"
	OutcomeNoContext      = "no_context"
	OutcomeCircuitOpen    = "circuit_open"
	OutcomeDailyCap       = "daily_cap"
	OutcomeRateLimited    = "rate_limited"
	OutcomeFailure        = "failure"
	OutcomeRejectedOutput = "rejected_output"
	OutcomeDisabled       = "disabled"
)

var errEmptyText = errors.New("synthesizer returned empty text")

// Request is the input to a synthesis call.
type Request struct {
	Query string
	// FAQs are ordered by descending similarity.
	FAQs []model.SearchCandidate
	// History holds lines such as "User: ..." and "Assistant: ...".
	History []string
}

// Synthesizer returns synthesized text, or false when no text is available.
type Synthesizer interface {
	Synthesize(ctx context.Context, req Request) (string, bool)
}

// Backend performs the actual text generation.
type Backend interface {
	Generate(ctx context.Context, req Request) (string, error)
}

// Config configures a Guard.
type Config struct {
	FailureThreshold int
	Cooldown         time.Duration
	DailyCap         int
	Timeout          time.Duration
	RatePerMinute    int
	MaxQueryChars    int
	MaxContextChars  int
	MaxOutputChars   int

	// Now overrides the clock for the breaker, the daily cap and the limiter.
	Now func() time.Time
}

// DefaultConfig returns the production limits.
func DefaultConfig() Config {
	return Config{
		FailureThreshold: 5,
		Cooldown:         5 * time.Minute,
		DailyCap:         500,
		Timeout:          30 * time.Second,
		RatePerMinute:    60,
		MaxQueryChars:    500,
		MaxContextChars:  4000,
		MaxOutputChars:   2000,
	}
}

// Guard implements Synthesizer around a Backend.
type Guard struct {
	backend Backend
	cfg     Config
	now     func() time.Time
	breaker *CircuitBreaker
	daily   *DailyCounter
	limiter *rate.Limiter
	logger  *logger.Logger
}

// NewGuard creates a Guard.
func NewGuard(backend Backend, cfg Config, log *logger.Logger) *Guard {
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}

	limiter := rate.NewLimiter(rate.Inf, 0)
	if cfg.RatePerMinute > 0 {
		limiter = rate.NewLimiter(rate.Every(time.Minute/time.Duration(cfg.RatePerMinute)), cfg.RatePerMinute)
	}

	return &Guard{
		backend: backend,
		cfg:     cfg,
		now:     cfg.Now,
		breaker: NewCircuitBreaker(cfg.FailureThreshold, cfg.Cooldown, cfg.Now),
		daily:   NewDailyCounter(cfg.DailyCap, cfg.Now),
		limiter: limiter,
		logger:  log.Named("synth"),
	}
}

// Breaker exposes the circuit breaker for health reporting.
func (g *Guard) Breaker() *CircuitBreaker {
	return g.breaker
}

// DailyUsage returns the number of successful calls today.
func (g *Guard) DailyUsage() int {
	return g.daily.Count()
}

// Synthesize applies every guard and calls the backend at most once.
func (g *Guard) Synthesize(ctx context.Context, req Request) (string, bool) {
	ctx, span := tracing.Tracer("synth").Start(ctx, "synth.Synthesize")
	defer span.End()

	text, outcome := g.synthesize(ctx, req)

	span.SetAttributes(attribute.String("synth.outcome", outcome))
	metrics.RecordSynth(outcome)
	if outcome != OutcomeSuccess {
		g.logger.Info("synthesis skipped", zap.String("outcome", outcome))
		return "", false
	}
	return text, true
}

func (g *Guard) synthesize(ctx context.Context, req Request) (string, string) {
	if IsInjection(req.Query) {
		return "", OutcomeInjection
	}

	req.Query = truncate(req.Query, g.cfg.MaxQueryChars)
	req.FAQs = fitContext(req.FAQs, g.cfg.MaxContextChars)
	if len(req.FAQs) == 0 {
		return "", OutcomeNoContext
	}

	if !g.breaker.Allow() {
		return "", OutcomeCircuitOpen
	}
	if !g.daily.Reserve() {
		g.breaker.Release()
		return "", OutcomeDailyCap
	}
	// Being rate limited is not a backend failure.
	if !g.limiter.AllowN(g.now(), 1) {
		g.daily.Release()
		g.breaker.Release()
		return "", OutcomeRateLimited
	}

	text, err := g.call(ctx, req)
	if err != nil {
		g.daily.Release()
		g.breaker.RecordFailure()
		metrics.SetBreakerOpen(g.breaker.State() == StateOpen)
		g.logger.Warn("synthesis call failed",
			zap.Error(err),
			zap.Int("consecutive_failures", g.breaker.Failures()),
		)
		return "", OutcomeFailure
	}
	g.breaker.RecordSuccess()
	metrics.SetBreakerOpen(false)

	if g.cfg.MaxOutputChars > 0 && utf8.RuneCountInString(text) > g.cfg.MaxOutputChars {
		return "", OutcomeRejectedOutput
	}
	if IsUnsafeOutput(text) {
		return "", OutcomeRejectedOutput
	}
	return text, OutcomeSuccess
}

type callResult struct {
	text string
	err  error
}

// call runs the backend under the timeout. A panicking backend counts as a
// failure, as does one that ignores cancellation past the deadline.
func (g *Guard) call(ctx context.Context, req Request) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, g.cfg.Timeout)
	defer cancel()

	start := time.Now()
	done := make(chan callResult, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- callResult{err: fmt.Errorf("synthesizer panic: %v", r)}
			}
		}()
		text, err := g.backend.Generate(ctx, req)
		done <- callResult{text: text, err: err}
	}()

	select {
	case res := <-done:
		metrics.SynthDuration.Observe(time.Since(start).Seconds())
		if res.err != nil {
			return "", res.err
		}
		text := strings.TrimSpace(res.text)
		if text == "" {
			return "", errEmptyText
		}
		return text, nil
	case <-ctx.Done():
		return "", fmt.Errorf("synthesizer timeout: %w", ctx.Err())
	}
}

// Disabled is used when no LLM provider is configured. Every medium
// confidence query then falls back to the top stored answer.
type Disabled struct{}

// Synthesize always reports no text.
func (Disabled) Synthesize(context.Context, Request) (string, bool) {
	metrics.RecordSynth(OutcomeDisabled)
	return "", false
}
