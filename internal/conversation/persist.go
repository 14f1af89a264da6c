package conversation

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/capitalize-ai/faqbot/internal/model"
	"github.com/capitalize-ai/faqbot/pkg/logger"
	"github.com/capitalize-ai/faqbot/pkg/metrics"
)

const (
	defaultQueueSize   = 256
	persistSaveTimeout = 5 * time.Second
)

// persistWriter is a single goroutine draining session snapshots to the
// backend in FIFO order. Enqueue never blocks; a full queue drops the write.
type persistWriter struct {
	backend Backend
	queue   chan *model.Session
	done    chan struct{}
	logger  *logger.Logger

	mu     sync.RWMutex
	closed bool
}

func newPersistWriter(backend Backend, size int, log *logger.Logger) *persistWriter {
	if size <= 0 {
		size = defaultQueueSize
	}
	w := &persistWriter{
		backend: backend,
		queue:   make(chan *model.Session, size),
		done:    make(chan struct{}),
		logger:  log,
	}
	go w.run()
	return w
}

func (w *persistWriter) run() {
	defer close(w.done)
	for sess := range w.queue {
		ctx, cancel := context.WithTimeout(context.Background(), persistSaveTimeout)
		err := w.backend.Save(ctx, sess)
		cancel()
		if err != nil {
			metrics.SessionPersistDropped.Inc()
			w.logger.Warn("failed to persist session",
				zap.String("session_id", sess.ID),
				zap.Error(err),
			)
		}
	}
}

func (w *persistWriter) enqueue(sess *model.Session) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	if w.closed {
		return
	}

	select {
	case w.queue <- sess:
	default:
		metrics.SessionPersistDropped.Inc()
		w.logger.Warn("session persist queue full, dropping snapshot",
			zap.String("session_id", sess.ID),
		)
	}
}

// close stops accepting writes and waits for the queue to drain.
func (w *persistWriter) close(ctx context.Context) error {
	w.mu.Lock()
	if !w.closed {
		w.closed = true
		close(w.queue)
	}
	w.mu.Unlock()

	select {
	case <-w.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
