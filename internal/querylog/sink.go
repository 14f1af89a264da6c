package querylog

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/capitalize-ai/faqbot/internal/model"
	"github.com/capitalize-ai/faqbot/pkg/logger"
)

// MultiSink writes each record to every sink and joins their errors.
type MultiSink []Sink

func (m MultiSink) SaveQuery(ctx context.Context, entry model.QueryLogEntry) error {
	var errs []error
	for _, s := range m {
		errs = append(errs, s.SaveQuery(ctx, entry))
	}
	return errors.Join(errs...)
}

func (m MultiSink) SaveFeedback(ctx context.Context, feedback model.Feedback) error {
	var errs []error
	for _, s := range m {
		errs = append(errs, s.SaveFeedback(ctx, feedback))
	}
	return errors.Join(errs...)
}

// LogSink writes records to the application log. Used when no database is
// configured.
type LogSink struct {
	logger *logger.Logger
}

// NewLogSink creates a LogSink.
func NewLogSink(log *logger.Logger) *LogSink {
	return &LogSink{logger: log.Named("querylog")}
}

func (s *LogSink) SaveQuery(_ context.Context, entry model.QueryLogEntry) error {
	fields := []zap.Field{
		zap.String("query_log_id", entry.ID),
		zap.String("session_id", entry.SessionID),
		zap.String("route", string(entry.Route)),
		zap.Int64("response_time_ms", entry.ResponseTimeMs),
		zap.Bool("llm_used", entry.LLMUsed),
		zap.Bool("context_used", entry.ContextUsed),
	}
	if entry.TopFAQID != nil {
		fields = append(fields, zap.Int64("top_faq_id", *entry.TopFAQID))
	}
	if entry.Similarity != nil {
		fields = append(fields, zap.Float64("similarity", *entry.Similarity))
	}
	s.logger.Info("query logged", fields...)
	return nil
}

func (s *LogSink) SaveFeedback(_ context.Context, feedback model.Feedback) error {
	s.logger.Info("feedback logged",
		zap.String("query_log_id", feedback.QueryLogID),
		zap.Any("helpful", feedback.Helpful),
		zap.String("feedback_type", string(feedback.Type)),
	)
	return nil
}
