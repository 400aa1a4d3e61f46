package indexsync

import (
	"context"
	"sync"
)

// Outbox queues sync events during a transaction so they are dispatched
// only after the relational commit. Events enqueued and never flushed
// (rolled-back transactions) are discarded.
type Outbox struct {
	mu     sync.Mutex
	events []Event
	prop   *Propagator
}

// NewOutbox returns an outbox dispatching through prop.
func NewOutbox(prop *Propagator) *Outbox {
	return &Outbox{prop: prop}
}

// Enqueue adds an event to the pending queue.
func (o *Outbox) Enqueue(ev Event) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.events = append(o.events, ev)
}

// Flush dispatches every pending event in order and clears the queue.
// The first dispatch error is returned; remaining events stay queued.
func (o *Outbox) Flush(ctx context.Context) error {
	o.mu.Lock()
	pending := o.events
	o.events = nil
	o.mu.Unlock()

	for i, ev := range pending {
		if err := o.prop.Handle(ctx, ev); err != nil {
			o.mu.Lock()
			o.events = append(pending[i+1:], o.events...)
			o.mu.Unlock()
			return err
		}
	}
	return nil
}

// Handle enqueues the event for a later Flush. It never fails, so
// lifecycle operations inside a transaction cannot be aborted by sync.
func (o *Outbox) Handle(_ context.Context, ev Event) error {
	o.Enqueue(ev)
	return nil
}

// Discard drops all pending events.
func (o *Outbox) Discard() {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.events = nil
}
