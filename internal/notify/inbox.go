package notify

import (
	"context"
	"sync"
)

// Inbox routes notifications to per-session listeners. Notifications for a
// session without listeners are discarded.
type Inbox struct {
	mu        sync.Mutex
	listeners map[string]map[int]chan Notification
	next      int
	bufSize   int
}

// NewInbox creates an inbox whose listener channels hold bufSize entries.
func NewInbox(bufSize int) *Inbox {
	if bufSize < 1 {
		bufSize = 32
	}
	return &Inbox{listeners: make(map[string]map[int]chan Notification), bufSize: bufSize}
}

// Listen registers a listener for session. The returned cancel func
// unregisters it and closes the channel.
func (in *Inbox) Listen(session string) (<-chan Notification, func()) {
	ch := make(chan Notification, in.bufSize)
	in.mu.Lock()
	id := in.next
	in.next++
	if in.listeners[session] == nil {
		in.listeners[session] = make(map[int]chan Notification)
	}
	in.listeners[session][id] = ch
	in.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			in.mu.Lock()
			delete(in.listeners[session], id)
			if len(in.listeners[session]) == 0 {
				delete(in.listeners, session)
			}
			in.mu.Unlock()
			close(ch)
		})
	}
}

// HandleNotification delivers n to the listeners of n.Session. Slow
// listeners miss notifications rather than blocking the bus.
func (in *Inbox) HandleNotification(_ context.Context, n Notification) error {
	in.mu.Lock()
	defer in.mu.Unlock()
	for _, ch := range in.listeners[n.Session] {
		select {
		case ch <- n:
		default:
		}
	}
	return nil
}
