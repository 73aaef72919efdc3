package progress

import (
	"context"
	"sync"
)

// Channel is a Sink that delivers events on a channel, closing it after
// the terminal event. Sends block until the consumer receives or ctx is
// done; events sent after ctx is done are dropped.
type Channel struct {
	ctx    context.Context
	ch     chan Event
	mu     sync.Mutex
	closed bool
}

// NewChannel creates a Channel with the given buffer size.
func NewChannel(ctx context.Context, buffer int) *Channel {
	return &Channel{ctx: ctx, ch: make(chan Event, max(buffer, 0))}
}

// Events returns the receive side.
func (c *Channel) Events() <-chan Event { return c.ch }

// Emit implements Sink.
func (c *Channel) Emit(e Event) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	select {
	case c.ch <- e:
	case <-c.ctx.Done():
	}
	if e.Terminal() {
		c.closed = true
		close(c.ch)
	}
}

// Recorder is a Sink that keeps every event in memory.
type Recorder struct {
	mu     sync.Mutex
	events []Event
}

// Emit implements Sink.
func (r *Recorder) Emit(e Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
}

// Events returns a copy of the recorded events.
func (r *Recorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Event, len(r.events))
	copy(out, r.events)
	return out
}

// Types returns the recorded event types in order.
func (r *Recorder) Types() []Type {
	events := r.Events()
	out := make([]Type, len(events))
	for i, e := range events {
		out[i] = e.Type
	}
	return out
}
