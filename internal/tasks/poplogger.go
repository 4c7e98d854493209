package tasks

import (
	"context"
	"fmt"
	"sync"

	"github.com/charmbracelet/log"

	"github.com/regio-cloud/regioplayer/internal/models"
	"github.com/regio-cloud/regioplayer/internal/repositories"
	"github.com/regio-cloud/regioplayer/internal/services"
	"github.com/regio-cloud/regioplayer/internal/shared"
)

// ProofOfPlayLogger records playback events durably and uploads them in
// batches.
//
// The mutex guards the queue between the scheduler's append path and the
// flush path's read-all-then-clear, so a flush can never drop an entry
// appended while its upload was in flight.
type ProofOfPlayLogger struct {
	backend services.Backend
	screens *repositories.ScreenRepository
	queue   *repositories.PlayLogRepository
	logger  *log.Logger

	mu sync.Mutex
}

// NewProofOfPlayLogger creates a logger over the durable queue.
func NewProofOfPlayLogger(backend services.Backend, screens *repositories.ScreenRepository, queue *repositories.PlayLogRepository, logger *log.Logger) *ProofOfPlayLogger {
	return &ProofOfPlayLogger{
		backend: backend,
		screens: screens,
		queue:   queue,
		logger:  logger,
	}
}

// RecordEvent appends an entry to the durable queue. The entry has been
// committed to storage when this returns, so it survives a process crash.
func (l *ProofOfPlayLogger) RecordEvent(entry models.PlaybackLogEntry) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.queue.Append(entry)
}

// Flush submits the entire queue as a single batch and clears exactly the
// submitted entries on confirmed success. Any failure leaves the queue
// completely intact for a later retry. An empty or unreadable queue is
// nothing to send, not an error.
func (l *ProofOfPlayLogger) Flush(ctx context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	entries, maxID, err := l.queue.All()
	if err != nil {
		l.logger.Warn("playback log queue unreadable, skipping flush", "error", err)
		return nil
	}
	if len(entries) == 0 {
		return nil
	}

	screen, err := l.screens.Get()
	if err != nil {
		return fmt.Errorf("failed to load screen for log upload: %w", err)
	}
	if screen == nil {
		return fmt.Errorf("%w: cannot upload playback logs", shared.ErrNotRegistered)
	}

	if err := l.backend.SubmitLogs(ctx, screen.UniqueKey, entries); err != nil {
		return fmt.Errorf("log batch upload failed, keeping %d entries: %w", len(entries), err)
	}

	if err := l.queue.ClearThrough(maxID); err != nil {
		// Entries will be re-sent next flush; the backend tolerates
		// duplicates in at-least-once delivery.
		return fmt.Errorf("failed to clear uploaded entries: %w", err)
	}

	l.logger.Debug("playback logs flushed", "count", len(entries))
	return nil
}

// Pending returns the number of queued entries.
func (l *ProofOfPlayLogger) Pending() (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.queue.Count()
}
