package fleet

import (
	"sync"

	"github.com/screenfleet/screenfleet/internal/api/http/dto"
)

const subscriberBuffer = 8

// Broadcaster fans registry snapshots out to subscribers. Publishing never
// blocks: a subscriber that cannot keep up misses intermediate snapshots
// and catches up on the next one, which is fine since every snapshot is the
// full state.
type Broadcaster struct {
	mu   sync.Mutex
	subs map[chan map[string]dto.AgentView]struct{}
}

func NewBroadcaster() *Broadcaster {
	return &Broadcaster{subs: make(map[chan map[string]dto.AgentView]struct{})}
}

// Subscribe registers a new subscriber. The returned cancel func must be
// called when done; it closes the channel.
func (b *Broadcaster) Subscribe() (<-chan map[string]dto.AgentView, func()) {
	ch := make(chan map[string]dto.AgentView, subscriberBuffer)

	b.mu.Lock()
	b.subs[ch] = struct{}{}
	b.mu.Unlock()

	cancel := func() {
		b.mu.Lock()
		if _, ok := b.subs[ch]; ok {
			delete(b.subs, ch)
			close(ch)
		}
		b.mu.Unlock()
	}
	return ch, cancel
}

// Publish delivers a snapshot to every subscriber that has room.
func (b *Broadcaster) Publish(snapshot map[string]dto.AgentView) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for ch := range b.subs {
		select {
		case ch <- snapshot:
		default:
		}
	}
}

// Subscribers reports the current subscriber count.
func (b *Broadcaster) Subscribers() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs)
}
