// Package notify carries transient user notifications from screens to
// whoever presents them. Screens publish; the bus dispatches to every
// subscriber on a single consumer goroutine.
package notify

import (
	"context"
	"sync"

	"github.com/rs/zerolog/log"
)

// Handler processes a notification. Implementations must be safe for
// concurrent calls from different goroutines.
type Handler interface {
	HandleNotification(ctx context.Context, n Notification) error
}

// HandlerFunc adapts a plain function to the Handler interface.
type HandlerFunc func(ctx context.Context, n Notification) error

func (f HandlerFunc) HandleNotification(ctx context.Context, n Notification) error {
	return f(ctx, n)
}

// Publisher is the side screens depend on.
type Publisher interface {
	Publish(ctx context.Context, n Notification)
}

// Bus is an in-process notification bus. Notifications are queued on a
// buffered channel and dispatched in order.
type Bus struct {
	mu          sync.RWMutex
	subscribers []namedHandler
	events      chan Notification
	done        chan struct{}
	stopped     bool
}

type namedHandler struct {
	name    string
	handler Handler
}

// NewBus creates a Bus with the given buffer size.
func NewBus(bufSize int) *Bus {
	if bufSize < 1 {
		bufSize = 256
	}
	return &Bus{
		events: make(chan Notification, bufSize),
		done:   make(chan struct{}),
	}
}

// Subscribe registers a named handler.
func (b *Bus) Subscribe(name string, h Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subscribers = append(b.subscribers, namedHandler{name: name, handler: h})
}

// Publish queues a notification. Non-blocking: if the buffer is full, or
// the bus is stopped, the notification is dropped with a warning.
func (b *Bus) Publish(_ context.Context, n Notification) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.stopped {
		return
	}
	select {
	case b.events <- n:
	default:
		log.Warn().Str("kind", string(n.Kind)).Str("id", n.ID).Msg("notify: buffer full, dropping notification")
	}
}

// Start runs the consumer goroutine until ctx is cancelled or Stop is
// called. Queued notifications are drained before it exits.
func (b *Bus) Start(ctx context.Context) {
	go func() {
		defer close(b.done)
		for {
			select {
			case n, ok := <-b.events:
				if !ok {
					return
				}
				b.dispatch(ctx, n)
			case <-ctx.Done():
				for {
					select {
					case n, ok := <-b.events:
						if !ok {
							return
						}
						b.dispatch(ctx, n)
					default:
						return
					}
				}
			}
		}
	}()
}

// Stop closes the queue and waits for the consumer goroutine to finish.
func (b *Bus) Stop() {
	b.mu.Lock()
	if !b.stopped {
		b.stopped = true
		close(b.events)
	}
	b.mu.Unlock()
	<-b.done
}

func (b *Bus) dispatch(ctx context.Context, n Notification) {
	b.mu.RLock()
	subs := b.subscribers
	b.mu.RUnlock()

	for _, s := range subs {
		if err := s.handler.HandleNotification(ctx, n); err != nil {
			log.Error().Err(err).Str("handler", s.name).Str("kind", string(n.Kind)).Msg("notify: handler error")
		}
	}
}
