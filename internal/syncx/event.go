// Package syncx holds small synchronization primitives.
package syncx

import (
	"context"
	"sync"
	"time"
)

// Event is a one-shot signal. Waiters block until Set is called or their
// wait is bounded out. The zero value is not usable; call NewEvent.
type Event struct {
	once sync.Once
	done chan struct{}
}

// NewEvent returns an unsignalled event.
func NewEvent() *Event {
	return &Event{done: make(chan struct{})}
}

// Set signals the event. Later calls are no-ops.
func (e *Event) Set() {
	e.once.Do(func() { close(e.done) })
}

// IsSet reports whether the event has been signalled.
func (e *Event) IsSet() bool {
	select {
	case <-e.done:
		return true
	default:
		return false
	}
}

// Done returns a channel closed once the event is signalled.
func (e *Event) Done() <-chan struct{} {
	return e.done
}

// WaitTimeout waits up to d and reports true if the event was signalled
// and false if the wait timed out. A non-positive d only polls.
func (e *Event) WaitTimeout(d time.Duration) bool {
	if d <= 0 {
		return e.IsSet()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-e.done:
		return true
	case <-timer.C:
		return false
	}
}

// Wait blocks until the event is signalled or ctx is done.
func (e *Event) Wait(ctx context.Context) error {
	select {
	case <-e.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
