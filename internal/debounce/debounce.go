// Package debounce coalesces bursts of writes. Each key keeps at most one
// pending function; scheduling again within the delay replaces it and
// restarts the clock, so only the newest write runs.
package debounce

import (
	"sync"
	"time"
)

type entry struct {
	timer *time.Timer
	fn    func()
}

type Group struct {
	mu      sync.Mutex
	delay   time.Duration
	pending map[string]*entry
	closed  bool
}

func New(delay time.Duration) *Group {
	return &Group{delay: delay, pending: make(map[string]*entry)}
}

// Call schedules fn under key, replacing any pending call for the same key.
// After Close, fn runs synchronously instead.
func (g *Group) Call(key string, fn func()) {
	g.mu.Lock()
	if g.closed {
		g.mu.Unlock()
		fn()
		return
	}
	if old, ok := g.pending[key]; ok {
		old.timer.Stop()
	}
	e := &entry{fn: fn}
	e.timer = time.AfterFunc(g.delay, func() { g.fire(key, e) })
	g.pending[key] = e
	g.mu.Unlock()
}

func (g *Group) fire(key string, e *entry) {
	g.mu.Lock()
	cur, ok := g.pending[key]
	if !ok || cur != e {
		// Superseded between the timer firing and us getting the lock.
		g.mu.Unlock()
		return
	}
	delete(g.pending, key)
	g.mu.Unlock()
	e.fn()
}

// Cancel drops the pending call for key, if any.
func (g *Group) Cancel(key string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	e, ok := g.pending[key]
	if !ok {
		return false
	}
	e.timer.Stop()
	delete(g.pending, key)
	return true
}

// FlushKey runs the pending call for key immediately.
func (g *Group) FlushKey(key string) bool {
	g.mu.Lock()
	e, ok := g.pending[key]
	if ok {
		e.timer.Stop()
		delete(g.pending, key)
	}
	g.mu.Unlock()
	if !ok {
		return false
	}
	e.fn()
	return true
}

// Flush runs every pending call immediately.
func (g *Group) Flush() {
	g.mu.Lock()
	entries := make([]*entry, 0, len(g.pending))
	for key, e := range g.pending {
		e.timer.Stop()
		delete(g.pending, key)
		entries = append(entries, e)
	}
	g.mu.Unlock()
	for _, e := range entries {
		e.fn()
	}
}

// Len reports how many keys have a pending call.
func (g *Group) Len() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.pending)
}

// Close flushes what is pending and makes future Calls synchronous.
func (g *Group) Close() {
	g.mu.Lock()
	g.closed = true
	g.mu.Unlock()
	g.Flush()
}
