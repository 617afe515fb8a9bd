package chat

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// MessageSink receives every message after it has been stored in a room.
// Offer must not block.
type MessageSink interface {
	Offer(msg Message) bool
}

// MessageSaver persists a single message.
type MessageSaver interface {
	SaveMessage(ctx context.Context, msg Message) error
}

// Archive copies stored messages to a MessageSaver from a background worker
// so the hub loop never waits on the database.
type Archive struct {
	saver   MessageSaver
	queue   chan Message
	timeout time.Duration
	logger  *slog.Logger

	mu     sync.Mutex
	closed bool
	done   chan struct{}
}

// NewArchive creates an archive with room for size pending messages.
func NewArchive(saver MessageSaver, size int, logger *slog.Logger) *Archive {
	if size <= 0 {
		size = 1024
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Archive{
		saver:   saver,
		queue:   make(chan Message, size),
		timeout: 5 * time.Second,
		logger:  logger,
		done:    make(chan struct{}),
	}
}

// Run saves queued messages until Close is called and the queue is drained.
func (a *Archive) Run() {
	defer close(a.done)

	for msg := range a.queue {
		ctx, cancel := context.WithTimeout(context.Background(), a.timeout)
		if err := a.saver.SaveMessage(ctx, msg); err != nil {
			a.logger.Error("archive message", "id", msg.ID, "room", msg.Room, "error", err)
		}
		cancel()
	}
}

// Offer queues msg. It reports false when the archive is full or closed.
func (a *Archive) Offer(msg Message) bool {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.closed {
		return false
	}
	select {
	case a.queue <- msg:
		return true
	default:
		a.logger.Warn("archive queue full, dropping message", "id", msg.ID, "room", msg.Room)
		return false
	}
}

// Close stops accepting messages and waits for the worker to drain the queue.
func (a *Archive) Close(ctx context.Context) error {
	a.mu.Lock()
	if !a.closed {
		a.closed = true
		close(a.queue)
	}
	a.mu.Unlock()

	select {
	case <-a.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
