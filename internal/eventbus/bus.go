// Package eventbus is an in-process fanout for small lifecycle signals
// (growth detected, fetch failed, sweep completed, notification sent).
package eventbus

import (
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

const (
	TypeGrowth         = "tracker.growth"
	TypeFetchFailed    = "tracker.fetch_failed"
	TypeSweepCompleted = "sweep.completed"
	TypeNotifierQueued = "notifier.queued"
	TypeNotifierSent   = "notifier.sent"
	TypeNotifierFailed = "notifier.failed"
	TypeNotifierDrop   = "notifier.dropped"
)

type Event struct {
	Type string
	Time time.Time
	Data any
}

// Bus delivers events to subscribers without blocking the publisher.
// A subscriber whose buffer is full misses the event.
type Bus interface {
	Publish(e Event)
	// Subscribe receives events whose type starts with one of prefixes,
	// or every event when none are given.
	Subscribe(buffer int, prefixes ...string) (<-chan Event, func())
}

func New() *MemBus {
	return &MemBus{subs: map[uint64]*subscriber{}}
}

type subscriber struct {
	ch       chan Event
	prefixes []string
}

func (s *subscriber) wants(typ string) bool {
	if len(s.prefixes) == 0 {
		return true
	}
	for _, p := range s.prefixes {
		if strings.HasPrefix(typ, p) {
			return true
		}
	}
	return false
}

// MemBus is the in-memory Bus. It starts no goroutines.
type MemBus struct {
	mu      sync.RWMutex
	subs    map[uint64]*subscriber
	nextID  uint64
	dropped atomic.Uint64
}

var _ Bus = (*MemBus)(nil)

func (b *MemBus) Publish(e Event) {
	if e.Time.IsZero() {
		e.Time = time.Now()
	}
	// Unsubscribe closes channels under the write lock, so sending under
	// the read lock never hits a closed channel.
	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, s := range b.subs {
		if !s.wants(e.Type) {
			continue
		}
		select {
		case s.ch <- e:
		default:
			b.dropped.Add(1)
		}
	}
}

func (b *MemBus) Subscribe(buffer int, prefixes ...string) (<-chan Event, func()) {
	if buffer <= 0 {
		buffer = 16
	}
	s := &subscriber{ch: make(chan Event, buffer), prefixes: append([]string(nil), prefixes...)}

	b.mu.Lock()
	b.nextID++
	id := b.nextID
	b.subs[id] = s
	b.mu.Unlock()

	var once sync.Once
	return s.ch, func() {
		once.Do(func() {
			b.mu.Lock()
			delete(b.subs, id)
			close(s.ch)
			b.mu.Unlock()
		})
	}
}

// Dropped counts deliveries skipped because a subscriber was full.
func (b *MemBus) Dropped() uint64 { return b.dropped.Load() }
