package frame

import (
	"context"
	"sync"
	"sync/atomic"
	"time"
)

// Loop is a real-time Scheduler that runs every callback on the
// goroutine calling Run. Other goroutines hand work to it with Post.
type Loop struct {
	interval time.Duration
	tasks    chan func()

	mu     sync.Mutex
	frames []*loopTask
}

type loopTask struct {
	fn        func()
	cancelled atomic.Bool
	timer     *time.Timer
}

func (t *loopTask) Cancel() {
	t.cancelled.Store(true)
	if t.timer != nil {
		t.timer.Stop()
	}
}

func NewLoop(interval time.Duration) *Loop {
	if interval <= 0 {
		interval = DefaultFrameInterval
	}
	return &Loop{
		interval: interval,
		tasks:    make(chan func(), 64),
	}
}

func (l *Loop) Now() time.Time {
	return time.Now()
}

// Post queues fn to run on the loop goroutine.
func (l *Loop) Post(fn func()) {
	l.tasks <- fn
}

func (l *Loop) RequestFrame(fn func()) Handle {
	t := &loopTask{fn: fn}
	l.mu.Lock()
	l.frames = append(l.frames, t)
	l.mu.Unlock()
	return t
}

func (l *Loop) AfterFunc(d time.Duration, fn func()) Handle {
	t := &loopTask{fn: fn}
	if d < 0 {
		d = 0
	}
	t.timer = time.AfterFunc(d, func() {
		if t.cancelled.Load() {
			return
		}
		l.Post(func() {
			if !t.cancelled.Swap(true) {
				t.fn()
			}
		})
	})
	return t
}

// Run processes posted tasks and frames until ctx is done.
func (l *Loop) Run(ctx context.Context) error {
	ticker := time.NewTicker(l.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case fn := <-l.tasks:
			fn()
		case <-ticker.C:
			l.runFrame()
		}
	}
}

func (l *Loop) runFrame() {
	l.mu.Lock()
	frames := l.frames
	l.frames = nil
	l.mu.Unlock()

	for _, t := range frames {
		if !t.cancelled.Swap(true) {
			t.fn()
		}
	}
}
