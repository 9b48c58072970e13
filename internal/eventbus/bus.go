// Package eventbus fans schedule snapshots out to in-process consumers
// (UI feed, reminder layer) without coupling them to the engine.
package eventbus

import (
	"sync"
	"sync/atomic"

	"github.com/tempohq/tempo/internal/domain"
)

// Bus delivers every emitted ScheduleSnapshot to all subscribers.
//
// Contract:
//   - Publish MUST be non-blocking.
//   - Subscribers get bounded buffers; a slow subscriber drops snapshots
//     rather than stalling the engine (it can always pull the latest via
//     the snapshot endpoint).
type Bus interface {
	Publish(s domain.ScheduleSnapshot)
	Subscribe(buffer int) (ch <-chan domain.ScheduleSnapshot, unsubscribe func())
}

// New returns a simple in-memory fanout bus. It owns no background
// goroutines.
func New() Bus {
	return &memBus{subs: map[uint64]chan domain.ScheduleSnapshot{}}
}

type memBus struct {
	mu   sync.RWMutex
	subs map[uint64]chan domain.ScheduleSnapshot
	seq  atomic.Uint64
}

func (b *memBus) Publish(s domain.ScheduleSnapshot) {
	// Snapshot subscribers so Publish doesn't hold locks while sending.
	b.mu.RLock()
	chs := make([]chan domain.ScheduleSnapshot, 0, len(b.subs))
	for _, ch := range b.subs {
		chs = append(chs, ch)
	}
	b.mu.RUnlock()

	for _, ch := range chs {
		// Non-blocking delivery; drop on a full buffer. If a subscriber
		// unsubscribes concurrently and the channel closes, recover from
		// the send panic.
		func() {
			defer func() { _ = recover() }()
			select {
			case ch <- s:
			default:
			}
		}()
	}
}

func (b *memBus) Subscribe(buffer int) (<-chan domain.ScheduleSnapshot, func()) {
	if buffer <= 0 {
		buffer = 8
	}
	ch := make(chan domain.ScheduleSnapshot, buffer)
	id := b.seq.Add(1)

	b.mu.Lock()
	b.subs[id] = ch
	b.mu.Unlock()

	var once sync.Once
	unsub := func() {
		once.Do(func() {
			b.mu.Lock()
			delete(b.subs, id)
			b.mu.Unlock()
			// Closing is safe because Publish recovers from send panics.
			close(ch)
		})
	}
	return ch, unsub
}
