package usecase

import (
	"sync"

	"github.com/eliteGoblin/focusd/focuslock/internal/domain"
)

// StatusFeed publishes the latest LockStatus to any number of subscribers.
// Slow subscribers only ever see the most recent value.
type StatusFeed struct {
	mu      sync.Mutex
	current domain.LockStatus
	subs    map[int]chan domain.LockStatus
	nextID  int
}

// NewStatusFeed creates a feed starting in the unlocked state.
func NewStatusFeed() *StatusFeed {
	return &StatusFeed{
		current: domain.LockStatus{State: domain.StateUnlocked},
		subs:    make(map[int]chan domain.LockStatus),
	}
}

// Status returns the latest published status.
func (f *StatusFeed) Status() domain.LockStatus {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.current
}

// Subscribe returns a channel receiving the current status immediately and
// every later change, plus a func that ends the subscription.
func (f *StatusFeed) Subscribe() (<-chan domain.LockStatus, func()) {
	f.mu.Lock()
	defer f.mu.Unlock()

	id := f.nextID
	f.nextID++
	ch := make(chan domain.LockStatus, 1)
	ch <- f.current
	f.subs[id] = ch

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			f.mu.Lock()
			defer f.mu.Unlock()
			delete(f.subs, id)
			close(ch)
		})
	}
}

func (f *StatusFeed) publish(status domain.LockStatus) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.current = status
	f.broadcast()
}

// setWatchdogReady updates only the readiness bit; no-op if unchanged.
func (f *StatusFeed) setWatchdogReady(ready bool) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.current.WatchdogReady == ready {
		return false
	}
	f.current.WatchdogReady = ready
	f.broadcast()
	return true
}

// broadcast must be called with f.mu held.
func (f *StatusFeed) broadcast() {
	for _, ch := range f.subs {
		select {
		case <-ch:
		default:
		}
		ch <- f.current
	}
}
