// Package events provides the in-process mutation event fan-out: a bounded
// publish channel per subscriber with subscribe-from-now semantics. There is
// no persistent event log; delivery is at-least-once to subscribers
// connected at publish time.
package events

import (
	"sync"
	"time"

	"github.com/theQuarky/leafmind/pkg/core"
)

// UpdateType classifies a mutation event.
type UpdateType string

const (
	ConceptModified  UpdateType = "concept_modified"
	ConceptAccessed  UpdateType = "concept_accessed"
	AssociationAdded UpdateType = "association_added"
)

// MemoryUpdate is one mutation event.
type MemoryUpdate struct {
	Type        UpdateType         `msgpack:"type"`
	ConceptID   core.ConceptID     `msgpack:"concept_id"`
	Concept     *core.Concept      `msgpack:"concept,omitempty"`
	Association *core.SynapticEdge `msgpack:"association,omitempty"`
	Timestamp   time.Time          `msgpack:"timestamp"`
}

// subscriberBuffer is the per-subscriber channel capacity.
const subscriberBuffer = 64

// Broadcaster fans mutation events out to subscribers.
type Broadcaster struct {
	mu     sync.RWMutex
	subs   map[int]chan MemoryUpdate
	nextID int
	closed bool
}

// NewBroadcaster creates an empty broadcaster.
func NewBroadcaster() *Broadcaster {
	return &Broadcaster{subs: make(map[int]chan MemoryUpdate)}
}

// Subscribe registers a new subscriber starting from the next published
// event. The returned cancel function removes the subscription and closes
// its channel.
func (b *Broadcaster) Subscribe() (<-chan MemoryUpdate, func()) {
	b.mu.Lock()
	defer b.mu.Unlock()

	ch := make(chan MemoryUpdate, subscriberBuffer)
	if b.closed {
		close(ch)
		return ch, func() {}
	}

	id := b.nextID
	b.nextID++
	b.subs[id] = ch

	cancel := func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		if sub, ok := b.subs[id]; ok {
			delete(b.subs, id)
			close(sub)
		}
	}

	return ch, cancel
}

// Publish delivers the event to every current subscriber. A subscriber
// with a full buffer receives the event from a detached goroutine so slow
// consumers never stall the core.
func (b *Broadcaster) Publish(update MemoryUpdate) {
	if update.Timestamp.IsZero() {
		update.Timestamp = time.Now()
	}

	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return
	}

	for _, ch := range b.subs {
		select {
		case ch <- update:
		default:
			go func(ch chan MemoryUpdate) {
				defer func() {
					// Subscriber cancelled while the send was in
					// flight; the event is dropped with the channel.
					_ = recover()
				}()
				ch <- update
			}(ch)
		}
	}
}

// SubscriberCount returns the number of active subscribers.
func (b *Broadcaster) SubscriberCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}

// Close shuts the broadcaster down and closes every subscriber channel.
func (b *Broadcaster) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return
	}
	b.closed = true
	for id, ch := range b.subs {
		delete(b.subs, id)
		close(ch)
	}
}
