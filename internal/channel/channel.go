// Package channel defines the broadcast transport the relay publishes on.
//
// Semantics are deliberately weak: fan-out, best effort, at most once, no
// ordering across publishers, no acknowledgment. Envelopes may be delivered
// back to their own publisher; receivers filter by sender id.
package channel

import (
	"sync"

	"lootstash.gg/internal/protocol"
)

type Channel interface {
	// Publish broadcasts one envelope. Fire-and-forget: a nil error means
	// the envelope left this client, not that anyone applied it.
	Publish(env protocol.Envelope) error
	// Subscribe registers a handler for every received envelope and
	// returns a cancel func. Handlers run on the delivering goroutine.
	Subscribe(fn func(protocol.Envelope)) (cancel func())
}

// Bus is an in-process Channel used by tests and single-process setups.
// It delivers to every subscriber, including one owned by the publisher.
type Bus struct {
	mu     sync.Mutex
	nextID int
	subs   map[int]func(protocol.Envelope)
}

func NewBus() *Bus {
	return &Bus{subs: make(map[int]func(protocol.Envelope))}
}

func (b *Bus) Publish(env protocol.Envelope) error {
	b.mu.Lock()
	fns := make([]func(protocol.Envelope), 0, len(b.subs))
	for _, fn := range b.subs {
		fns = append(fns, fn)
	}
	b.mu.Unlock()
	for _, fn := range fns {
		fn(env)
	}
	return nil
}

func (b *Bus) Subscribe(fn func(protocol.Envelope)) func() {
	b.mu.Lock()
	id := b.nextID
	b.nextID++
	b.subs[id] = fn
	b.mu.Unlock()
	return func() {
		b.mu.Lock()
		delete(b.subs, id)
		b.mu.Unlock()
	}
}
