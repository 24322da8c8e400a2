package formstate

import (
	"context"
	"sync"
)

// ResetInfo is the payload of the reset notification.
type ResetInfo struct {
	// Keys lists the store entries the reset removed.
	Keys []string
}

// Listener receives host notifications. Either callback may be nil.
type Listener struct {
	// OnRestore fires once per load pass, only when a field changed.
	OnRestore func(ctx context.Context, r Restoration)
	// OnReset fires after a reset erased the stored record.
	OnReset func(ctx context.Context, info ResetInfo)
}

// WithListener registers a listener before the first load pass runs.
func WithListener(l Listener) Option {
	return func(cfg *config) {
		cfg.listeners = append(cfg.listeners, l)
	}
}

// Subscription is the handle returned by Subscribe.
type Subscription struct {
	set  *listenerSet
	id   uint64
	once sync.Once
}

// Unsubscribe stops further notifications. It is safe to call more than once.
func (s *Subscription) Unsubscribe() {
	if s == nil || s.set == nil {
		return
	}
	s.once.Do(func() { s.set.remove(s.id) })
}

type listenerEntry struct {
	id       uint64
	listener Listener
}

type listenerSet struct {
	mu      sync.RWMutex
	next    uint64
	entries []listenerEntry
}

func (ls *listenerSet) add(l Listener) *Subscription {
	ls.mu.Lock()
	defer ls.mu.Unlock()
	ls.next++
	ls.entries = append(ls.entries, listenerEntry{id: ls.next, listener: l})
	return &Subscription{set: ls, id: ls.next}
}

func (ls *listenerSet) remove(id uint64) {
	ls.mu.Lock()
	defer ls.mu.Unlock()
	for i, entry := range ls.entries {
		if entry.id == id {
			ls.entries = append(ls.entries[:i:i], ls.entries[i+1:]...)
			return
		}
	}
}

func (ls *listenerSet) snapshot() []Listener {
	ls.mu.RLock()
	defer ls.mu.RUnlock()
	out := make([]Listener, len(ls.entries))
	for i, entry := range ls.entries {
		out[i] = entry.listener
	}
	return out
}

func (ls *listenerSet) restored(ctx context.Context, r Restoration) {
	for _, l := range ls.snapshot() {
		if l.OnRestore != nil {
			l.OnRestore(ctx, r)
		}
	}
}

func (ls *listenerSet) reset(ctx context.Context, info ResetInfo) {
	for _, l := range ls.snapshot() {
		if l.OnReset != nil {
			l.OnReset(ctx, info)
		}
	}
}

// Subscribe registers a listener after construction. Listeners added after
// Init miss the initial load pass.
func (s *Saver) Subscribe(l Listener) *Subscription {
	return s.listeners.add(l)
}
