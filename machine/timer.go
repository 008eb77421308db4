package machine

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	db "ukern/debug"
)

// The hardware timer. Time is measured in ticks; each Tick advances
// the clock by period ticks and delivers a timer interrupt by calling
// the installed handler.
type Timer struct {
	sync.Mutex
	now     atomic.Int64
	period  int64
	handler func()
}

func NewTimer(period int64) *Timer {
	if period <= 0 {
		period = 1
	}
	return &Timer{period: period}
}

// Current time in ticks.
func (t *Timer) Time() int64 {
	return t.now.Load()
}

func (t *Timer) Period() int64 {
	return t.period
}

func (t *Timer) SetInterruptHandler(h func()) {
	t.Lock()
	defer t.Unlock()
	t.handler = h
}

// Advance the clock without delivering an interrupt, as executing
// instructions does.
func (t *Timer) Advance(n int64) int64 {
	return t.now.Add(n)
}

// Advance the clock to the next interrupt and run the handler.
// Interrupts are delivered one at a time.
func (t *Timer) Tick() {
	t.Lock()
	defer t.Unlock()
	now := t.now.Add(t.period)
	db.DPrintf(db.TIMER, "tick %d", now)
	if t.handler != nil {
		t.handler()
	}
}

// Deliver an interrupt every interval of real time until ctx is done.
func (t *Timer) Start(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				db.DPrintf(db.TIMER, "timer stopped at %d", t.Time())
				return
			case <-ticker.C:
				t.Tick()
			}
		}
	}()
}
