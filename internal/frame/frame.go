// Package frame provides the scheduling primitives used by the editor
// core: animation-frame callbacks, timers and a clock.
//
// Callbacks of one Scheduler never run concurrently with each other.
// Code driven by a Scheduler can therefore keep plain, unlocked state
// as long as it is only touched from scheduled callbacks and from the
// goroutine that drives the scheduler.
package frame

import "time"

// DefaultFrameInterval is the frame period of Loop.
const DefaultFrameInterval = 16 * time.Millisecond

// Handle cancels a scheduled callback. Cancel is idempotent and a
// no-op once the callback has run.
type Handle interface {
	Cancel()
}

type Scheduler interface {
	Now() time.Time
	// RequestFrame runs fn on the next frame.
	RequestFrame(fn func()) Handle
	// AfterFunc runs fn once d has elapsed. d <= 0 means the next tick.
	AfterFunc(d time.Duration, fn func()) Handle
}

// Group tracks handles so they can be cancelled together, for example
// when the owner is torn down.
type Group struct {
	handles map[*groupHandle]struct{}
}

type groupHandle struct {
	g     *Group
	inner Handle
}

func (h *groupHandle) Cancel() {
	h.inner.Cancel()
	delete(h.g.handles, h)
}

// Track registers h in the group and returns a handle that also
// unregisters itself when cancelled.
func (g *Group) Track(h Handle) Handle {
	if g.handles == nil {
		g.handles = make(map[*groupHandle]struct{})
	}
	gh := &groupHandle{g: g, inner: h}
	g.handles[gh] = struct{}{}
	return gh
}

// Forget removes a handle whose callback already ran.
func (g *Group) Forget(h Handle) {
	if gh, ok := h.(*groupHandle); ok {
		delete(g.handles, gh)
	}
}

// CancelAll cancels every tracked handle.
func (g *Group) CancelAll() {
	for h := range g.handles {
		h.inner.Cancel()
	}
	g.handles = nil
}

func (g *Group) Len() int {
	return len(g.handles)
}
