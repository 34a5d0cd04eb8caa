package testutil

import (
	"context"
	"sync"

	"budgetbook/internal/events"
)

// RecordingPublisher collects published events for assertions.
type RecordingPublisher struct {
	mu     sync.Mutex
	events []events.Event
	Err    error
}

// Publish records ev and returns p.Err.
func (p *RecordingPublisher) Publish(_ context.Context, ev events.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, ev)
	return p.Err
}

// Events returns a copy of everything published so far.
func (p *RecordingPublisher) Events() []events.Event {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]events.Event(nil), p.events...)
}

// Types returns the type of every published event, in order.
func (p *RecordingPublisher) Types() []events.Type {
	p.mu.Lock()
	defer p.mu.Unlock()
	types := make([]events.Type, len(p.events))
	for i, ev := range p.events {
		types[i] = ev.Type
	}
	return types
}
