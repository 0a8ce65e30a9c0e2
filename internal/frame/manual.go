package frame

import (
	"sort"
	"time"
)

// Manual is a Scheduler driven by hand. Nothing runs until the test
// calls Frame or Advance.
type Manual struct {
	now    time.Time
	seq    int
	frames []*manualTask
	timers []*manualTask
}

type manualTask struct {
	fn        func()
	at        time.Time
	seq       int
	cancelled bool
}

func (t *manualTask) Cancel() { t.cancelled = true }

func NewManual(start time.Time) *Manual {
	return &Manual{now: start}
}

func (m *Manual) Now() time.Time {
	return m.now
}

func (m *Manual) RequestFrame(fn func()) Handle {
	m.seq++
	t := &manualTask{fn: fn, seq: m.seq}
	m.frames = append(m.frames, t)
	return t
}

func (m *Manual) AfterFunc(d time.Duration, fn func()) Handle {
	if d < 0 {
		d = 0
	}
	m.seq++
	t := &manualTask{fn: fn, at: m.now.Add(d), seq: m.seq}
	m.timers = append(m.timers, t)
	return t
}

// Frame runs the callbacks requested before the call. Callbacks
// requested while the frame runs are deferred to the next frame.
// The clock does not move. It returns the number of callbacks run.
func (m *Manual) Frame() int {
	frames := m.frames
	m.frames = nil

	n := 0
	for _, t := range frames {
		if t.cancelled {
			continue
		}
		t.cancelled = true
		t.fn()
		n++
	}
	return n
}

// Advance moves the clock forward by d, firing due timers in deadline
// order. Timers scheduled by fired timers run too if they fall due
// within the window.
func (m *Manual) Advance(d time.Duration) int {
	target := m.now.Add(d)
	n := 0
	for {
		t := m.nextDue(target)
		if t == nil {
			break
		}
		if t.at.After(m.now) {
			m.now = t.at
		}
		t.cancelled = true
		t.fn()
		n++
	}
	m.now = target
	return n
}

func (m *Manual) nextDue(target time.Time) *manualTask {
	live := m.timers[:0]
	for _, t := range m.timers {
		if !t.cancelled {
			live = append(live, t)
		}
	}
	m.timers = live

	sort.SliceStable(m.timers, func(i, j int) bool {
		if m.timers[i].at.Equal(m.timers[j].at) {
			return m.timers[i].seq < m.timers[j].seq
		}
		return m.timers[i].at.Before(m.timers[j].at)
	})

	if len(m.timers) == 0 || m.timers[0].at.After(target) {
		return nil
	}
	return m.timers[0]
}

// Pending returns the number of live frame callbacks and timers.
func (m *Manual) Pending() (frames, timers int) {
	for _, t := range m.frames {
		if !t.cancelled {
			frames++
		}
	}
	for _, t := range m.timers {
		if !t.cancelled {
			timers++
		}
	}
	return frames, timers
}
