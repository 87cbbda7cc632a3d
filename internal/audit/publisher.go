package audit

import (
	"context"
	"errors"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
)

// ErrBufferFull is returned by Emit in async mode when the inbox is at
// capacity. The event is dropped; the trail is advisory.
var ErrBufferFull = errors.New("audit buffer full")

// Sink receives every event after it is persisted, typically a Kafka
// producer. Sink failures are logged and swallowed; the store copy is the
// one that must land.
type Sink interface {
	Publish(ctx context.Context, key string, payload any) error
}

// Publisher captures lifecycle events. It persists through the Store,
// synchronously by default or via a buffered channel when constructed with
// WithAsyncBuffer, so tests can swap sinks easily.
type Publisher struct {
	store  Store
	sink   Sink
	logger *slog.Logger

	inbox chan Event
	done  chan struct{}
	once  sync.Once
}

type PublisherOption func(*Publisher)

// WithAsyncBuffer makes Emit enqueue onto a buffer of the given size, drained
// by a background goroutine. A full buffer drops the event with ErrBufferFull
// instead of blocking the request.
func WithAsyncBuffer(size int) PublisherOption {
	return func(p *Publisher) {
		p.inbox = make(chan Event, size)
	}
}

// WithSink streams every persisted event to the given sink.
func WithSink(sink Sink) PublisherOption {
	return func(p *Publisher) {
		p.sink = sink
	}
}

func WithLogger(logger *slog.Logger) PublisherOption {
	return func(p *Publisher) {
		p.logger = logger
	}
}

func NewPublisher(store Store, opts ...PublisherOption) *Publisher {
	p := &Publisher{store: store, done: make(chan struct{})}
	for _, opt := range opts {
		opt(p)
	}
	if p.inbox != nil {
		go p.drain()
	}
	return p
}

// Emit records one event. ID and Timestamp are assigned when unset so
// callers stay oblivious to trail bookkeeping.
func (p *Publisher) Emit(ctx context.Context, event Event) error {
	if event.ID == uuid.Nil {
		event.ID = uuid.New()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	if p.inbox == nil {
		return p.deliver(ctx, event)
	}

	if err := ctx.Err(); err != nil {
		return err
	}
	select {
	case p.inbox <- event:
		return nil
	default:
		return ErrBufferFull
	}
}

// ListByConnection returns one connection's trail, oldest first.
func (p *Publisher) ListByConnection(ctx context.Context, connectionID int64) ([]Event, error) {
	return p.store.ListByConnection(ctx, connectionID)
}

// Close drains everything already enqueued and stops the background
// goroutine. Safe on a sync publisher and safe to call twice.
func (p *Publisher) Close() {
	p.once.Do(func() {
		if p.inbox == nil {
			return
		}
		close(p.inbox)
		<-p.done
	})
}

func (p *Publisher) drain() {
	defer close(p.done)
	for event := range p.inbox {
		// Off the request path now; a finished request must not cancel
		// persistence, so deliveries run on a fresh context.
		if err := p.deliver(context.Background(), event); err != nil {
			p.logWarn("audit delivery failed", "action", string(event.Action), "error", err)
		}
	}
}

func (p *Publisher) deliver(ctx context.Context, event Event) error {
	if err := p.store.Append(ctx, event); err != nil {
		return err
	}
	if p.sink != nil {
		if err := p.sink.Publish(ctx, strconv.FormatInt(event.ConnectionID, 10), event); err != nil {
			p.logWarn("audit sink publish failed", "action", string(event.Action), "error", err)
		}
	}
	return nil
}

func (p *Publisher) logWarn(msg string, args ...any) {
	if p.logger != nil {
		p.logger.Warn(msg, args...)
	}
}
