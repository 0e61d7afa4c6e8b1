package infrastructure

import (
	"context"
	"log/slog"
	"sync"

	"github.com/sglre6355/covenbot/internal/modules/relay/application/ports"
)

const (
	// DefaultEventBufferSize is the default buffer size of the event queue.
	DefaultEventBufferSize = 100

	// DefaultEventWorkers is the default number of queue consumers.
	DefaultEventWorkers = 4
)

// Compile-time check that ChannelEventQueue implements ports.EventPublisher.
var _ ports.EventPublisher = (*ChannelEventQueue)(nil)

// EnvelopeHandler consumes one envelope.
type EnvelopeHandler func(ctx context.Context, env ports.Envelope)

// ChannelEventQueue is a bounded channel consumed by a fixed pool of workers.
// Envelopes are handled independently, so a slow event only holds its own worker.
type ChannelEventQueue struct {
	envelopes chan ports.Envelope
	handler   EnvelopeHandler

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
	closed bool
	mu     sync.RWMutex
}

// NewChannelEventQueue creates a queue and starts its workers.
func NewChannelEventQueue(bufferSize, workers int, handler EnvelopeHandler) *ChannelEventQueue {
	if bufferSize <= 0 {
		bufferSize = DefaultEventBufferSize
	}
	if workers <= 0 {
		workers = DefaultEventWorkers
	}

	ctx, cancel := context.WithCancel(context.Background())

	q := &ChannelEventQueue{
		envelopes: make(chan ports.Envelope, bufferSize),
		handler:   handler,
		ctx:       ctx,
		cancel:    cancel,
	}

	q.wg.Add(workers)
	for i := 0; i < workers; i++ {
		go q.work(i)
	}

	return q
}

func (q *ChannelEventQueue) work(id int) {
	defer q.wg.Done()
	for env := range q.envelopes {
		q.handle(id, env)
	}
}

func (q *ChannelEventQueue) handle(worker int, env ports.Envelope) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("recovered from panic in event worker",
				"worker", worker,
				"type", env.Event.Kind(),
				"panic", r,
			)
		}
	}()
	q.handler(q.ctx, env)
}

// Publish enqueues env without blocking. It fails with ErrQueueFull when the
// buffer is full and with ErrQueueClosed after Close.
func (q *ChannelEventQueue) Publish(_ context.Context, env ports.Envelope) error {
	q.mu.RLock()
	defer q.mu.RUnlock()

	if q.closed {
		slog.Warn("attempted to publish to closed event queue", "type", env.Event.Kind())
		return ports.ErrQueueClosed
	}

	select {
	case q.envelopes <- env:
		slog.Debug("published event", "type", env.Event.Kind())
		return nil
	default:
		slog.Warn("event buffer full, rejecting event", "type", env.Event.Kind())
		return ports.ErrQueueFull
	}
}

// Len returns the number of buffered envelopes.
func (q *ChannelEventQueue) Len() int {
	return len(q.envelopes)
}

// Close stops accepting envelopes, waits for buffered ones to be handled and
// stops the workers.
func (q *ChannelEventQueue) Close() {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return
	}
	q.closed = true
	close(q.envelopes)
	q.mu.Unlock()

	// Wait for workers to drain the buffer
	q.wg.Wait()
	q.cancel()

	slog.Debug("channel event queue closed")
}
