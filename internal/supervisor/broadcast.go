package supervisor

import (
	"sync"

	"github.com/servinel/daemon/internal/logbuf"
)

// subscriberCapacity bounds each subscriber's backlog. A subscriber that
// falls behind misses entries rather than blocking the publisher.
const subscriberCapacity = 1024

// Broadcaster fans one running service's log entries out to any number
// of subscribers. Every service gets its own Broadcaster, held in the
// supervisor table next to the child handle, so a noisy service can
// never fill the backlog of a subscriber following a quiet one.
type Broadcaster struct {
	mu     sync.Mutex
	subs   map[int]chan logbuf.LogEntry
	next   int
	closed bool
}

func newBroadcaster() *Broadcaster {
	return &Broadcaster{subs: make(map[int]chan logbuf.LogEntry)}
}

// Subscribe registers a new listener and returns its channel plus a
// cancel function that must be called when the listener is done. The
// channel is closed once the service's output is fully drained.
func (b *Broadcaster) Subscribe() (<-chan logbuf.LogEntry, func()) {
	b.mu.Lock()
	defer b.mu.Unlock()

	ch := make(chan logbuf.LogEntry, subscriberCapacity)
	if b.closed {
		close(ch)
		return ch, func() {}
	}

	id := b.next
	b.next++
	b.subs[id] = ch

	cancel := func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		if c, ok := b.subs[id]; ok {
			delete(b.subs, id)
			close(c)
		}
	}
	return ch, cancel
}

// Publish delivers one entry to every current subscriber, dropping it
// for any subscriber whose buffer is already full.
func (b *Broadcaster) Publish(entry logbuf.LogEntry) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, ch := range b.subs {
		select {
		case ch <- entry:
		default:
		}
	}
}

// Close ends every subscription; later Subscribe calls get an
// already-closed channel. Called after both output pumps have drained,
// so no Publish can follow.
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
