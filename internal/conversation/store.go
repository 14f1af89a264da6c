// Package conversation keeps short-lived per-session message history.
//
// Sessions live in an expiring in-memory map. Each session carries its own
// mutex so concurrent turns on one session are serialized while different
// sessions proceed independently. When a Backend is configured, snapshots are
// written to it asynchronously and sessions missing from memory are
// rehydrated from it on first access.
package conversation

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/patrickmn/go-cache"
	"go.uber.org/zap"

	"github.com/capitalize-ai/faqbot/internal/model"
	"github.com/capitalize-ai/faqbot/pkg/logger"
	"github.com/capitalize-ai/faqbot/pkg/metrics"
)

// DefaultContextWindow is the number of messages returned by GetRecentContext
// when the caller passes a non-positive count.
const DefaultContextWindow = 4

var (
	// ErrInvalidRole is returned when appending a message with an unknown role.
	ErrInvalidRole = errors.New("invalid message role")
	// ErrEmptySessionID is returned when appending to a session without an id.
	ErrEmptySessionID = errors.New("session id is required")
)

// Mode reports whether sessions survive a process restart.
type Mode string

const (
	ModeMemory  Mode = "memory"
	ModeDurable Mode = "durable"
)

// Store is the conversation history contract consumed by the routing engine.
type Store interface {
	CreateSession(ctx context.Context) string
	GetRecentContext(ctx context.Context, sessionID string, count int) []model.Message
	AddMessage(ctx context.Context, sessionID string, role model.Role, content string) error
	AppendTurn(ctx context.Context, sessionID, userContent, assistantContent string) error
	GetSession(ctx context.Context, sessionID string) (*model.Session, bool)
	Mode() Mode
}

// Options configures a MemoryStore.
type Options struct {
	MaxMessages   int
	IdleTimeout   time.Duration
	SweepInterval time.Duration

	// Backend is optional. Without it the store runs in memory-only mode.
	Backend Backend
	// QueueSize bounds pending durable writes.
	QueueSize int
	// Now overrides the clock used for message and session timestamps.
	Now func() time.Time
}

type entry struct {
	mu      sync.Mutex
	session *model.Session
}

// MemoryStore implements Store on top of go-cache.
type MemoryStore struct {
	cache       *cache.Cache
	maxMessages int
	now         func() time.Time
	backend     Backend
	writer      *persistWriter
	logger      *logger.Logger
}

// NewMemoryStore creates a session store. Idle sessions expire after
// IdleTimeout and are reclaimed by a janitor running every SweepInterval.
func NewMemoryStore(opts Options, log *logger.Logger) *MemoryStore {
	if opts.MaxMessages <= 0 {
		opts.MaxMessages = 10
	}
	if opts.IdleTimeout <= 0 {
		opts.IdleTimeout = 60 * time.Minute
	}
	if opts.SweepInterval <= 0 {
		opts.SweepInterval = 30 * time.Minute
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	s := &MemoryStore{
		cache:       cache.New(opts.IdleTimeout, opts.SweepInterval),
		maxMessages: opts.MaxMessages,
		now:         opts.Now,
		backend:     opts.Backend,
		logger:      log,
	}
	s.cache.OnEvicted(func(string, interface{}) {
		metrics.SessionsActive.Set(float64(s.cache.ItemCount()))
	})

	if s.backend != nil {
		s.writer = newPersistWriter(s.backend, opts.QueueSize, log)
	}
	metrics.SetSessionStoreDegraded(s.backend == nil)

	return s
}

// Mode reports ModeDurable when a backend is configured.
func (s *MemoryStore) Mode() Mode {
	if s.backend != nil {
		return ModeDurable
	}
	return ModeMemory
}

// CreateSession opens an empty session and returns its id.
func (s *MemoryStore) CreateSession(ctx context.Context) string {
	now := s.now()
	sess := &model.Session{
		ID:           uuid.NewString(),
		Messages:     []model.Message{},
		CreatedAt:    now,
		LastActiveAt: now,
	}

	e := &entry{session: sess}
	e.mu.Lock()
	s.cache.Set(sess.ID, e, cache.DefaultExpiration)
	s.persist(sess)
	e.mu.Unlock()

	metrics.SessionsActive.Set(float64(s.cache.ItemCount()))
	return sess.ID
}

// GetRecentContext returns up to count of the most recent messages, oldest
// first. Unknown sessions yield an empty slice.
func (s *MemoryStore) GetRecentContext(ctx context.Context, sessionID string, count int) []model.Message {
	if sessionID == "" {
		return []model.Message{}
	}
	if count <= 0 {
		count = DefaultContextWindow
	}

	e := s.lookup(ctx, sessionID, false)
	if e == nil {
		return []model.Message{}
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	msgs := e.session.Messages
	if len(msgs) > count {
		msgs = msgs[len(msgs)-count:]
	}
	out := make([]model.Message, len(msgs))
	copy(out, msgs)
	return out
}

// GetSession returns a copy of the session, if it is known.
func (s *MemoryStore) GetSession(ctx context.Context, sessionID string) (*model.Session, bool) {
	if sessionID == "" {
		return nil, false
	}
	e := s.lookup(ctx, sessionID, false)
	if e == nil {
		return nil, false
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	return e.session.Clone(), true
}

// AddMessage appends a message, creating the session if it is unknown or has
// expired. The history is trimmed to the newest MaxMessages entries.
func (s *MemoryStore) AddMessage(ctx context.Context, sessionID string, role model.Role, content string) error {
	if !role.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidRole, role)
	}
	return s.appendMessages(ctx, sessionID, model.Message{Role: role, Content: content})
}

// AppendTurn appends a user message and the assistant reply under one lock,
// so concurrent turns on the same session never interleave.
func (s *MemoryStore) AppendTurn(ctx context.Context, sessionID, userContent, assistantContent string) error {
	return s.appendMessages(ctx, sessionID,
		model.Message{Role: model.RoleUser, Content: userContent},
		model.Message{Role: model.RoleAssistant, Content: assistantContent},
	)
}

func (s *MemoryStore) appendMessages(ctx context.Context, sessionID string, add ...model.Message) error {
	if sessionID == "" {
		return ErrEmptySessionID
	}

	e := s.lookup(ctx, sessionID, true)

	e.mu.Lock()
	defer e.mu.Unlock()

	now := s.now()
	msgs := e.session.Messages
	for _, m := range add {
		m.Timestamp = now
		msgs = append(msgs, m)
	}
	if n := len(msgs); n > s.maxMessages {
		trimmed := make([]model.Message, s.maxMessages)
		copy(trimmed, msgs[n-s.maxMessages:])
		msgs = trimmed
	}
	e.session.Messages = msgs
	e.session.LastActiveAt = now

	// Set refreshes the idle expiration.
	s.cache.Set(sessionID, e, cache.DefaultExpiration)
	s.persist(e.session)

	return nil
}

// Close flushes pending durable writes.
func (s *MemoryStore) Close(ctx context.Context) error {
	if s.writer == nil {
		return nil
	}
	return s.writer.close(ctx)
}

// lookup returns the entry for id. On a miss it tries the backend, and when
// create is set falls back to a fresh empty session.
func (s *MemoryStore) lookup(ctx context.Context, id string, create bool) *entry {
	if v, ok := s.cache.Get(id); ok {
		return v.(*entry)
	}

	var sess *model.Session
	if s.backend != nil {
		loaded, err := s.backend.Load(ctx, id)
		switch {
		case err == nil:
			sess = loaded
		case errors.Is(err, ErrSessionNotFound):
		default:
			s.logger.Warn("failed to load session from backend",
				zap.String("session_id", id),
				zap.Error(err),
			)
		}
	}

	if sess == nil {
		if !create {
			return nil
		}
		now := s.now()
		sess = &model.Session{
			ID:           id,
			Messages:     []model.Message{},
			CreatedAt:    now,
			LastActiveAt: now,
		}
	}

	e := &entry{session: sess}
	if err := s.cache.Add(id, e, cache.DefaultExpiration); err != nil {
		// Lost the race to another request for the same session.
		if v, ok := s.cache.Get(id); ok {
			return v.(*entry)
		}
		s.cache.Set(id, e, cache.DefaultExpiration)
	}
	metrics.SessionsActive.Set(float64(s.cache.ItemCount()))
	return e
}

// persist must be called with the session's lock held so snapshots of one
// session are queued in the order they were taken.
func (s *MemoryStore) persist(sess *model.Session) {
	if s.writer == nil {
		return
	}
	s.writer.enqueue(sess.Clone())
}
