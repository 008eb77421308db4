package alarm

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	db "ukern/debug"
	"ukern/kthread"
	"ukern/machine"
)

const PERIOD = 500

type woke struct {
	id    int
	start int64
	now   int64
}

type Tstate struct {
	t     *testing.T
	timer *machine.Timer
	a     *Alarm
	ch    chan woke
}

func newTstate(t *testing.T) *Tstate {
	ts := &Tstate{t: t, timer: machine.NewTimer(PERIOD), ch: make(chan woke, 16)}
	ts.a = NewAlarm(ts.timer)
	return ts
}

func (ts *Tstate) sleeper(id int, x int64) {
	kthread.Fork("sleeper", func() {
		start := ts.timer.Time()
		ts.a.WaitUntil(x)
		ts.ch <- woke{id, start, ts.timer.Time()}
	})
}

func (ts *Tstate) waitSleepers(n int) {
	for i := 0; ts.a.Len() != n; i++ {
		if i > 10000 {
			assert.FailNow(ts.t, "sleepers never arrived")
		}
		time.Sleep(time.Millisecond)
	}
}

func (ts *Tstate) recv() woke {
	select {
	case w := <-ts.ch:
		return w
	case <-time.After(10 * time.Second):
		assert.FailNow(ts.t, "no wakeup")
	}
	return woke{}
}

func (ts *Tstate) noWakeup() {
	select {
	case w := <-ts.ch:
		assert.Fail(ts.t, "unexpected wakeup", "%v", w)
	case <-time.After(20 * time.Millisecond):
	}
}

// Tick until the time reaches end. At each tick listed in expect, the
// sleeper with the given id must wake and nobody else.
func (ts *Tstate) run(end int64, expect map[int64]int, sleep map[int]int64) {
	for now := ts.timer.Time() + PERIOD; now <= end; now += PERIOD {
		ts.timer.Tick()
		if id, ok := expect[now]; ok {
			w := ts.recv()
			assert.Equal(ts.t, id, w.id)
			assert.GreaterOrEqual(ts.t, w.now-w.start, sleep[w.id])
			db.DPrintf(db.TEST, "sleeper %d asked %d slept %d", w.id, sleep[w.id], w.now-w.start)
		} else {
			ts.noWakeup()
		}
	}
}

func TestSingle(t *testing.T) {
	ts := newTstate(t)
	ts.sleeper(0, 2500)
	ts.waitSleepers(1)
	ts.run(3000, map[int64]int{2500: 0}, map[int]int64{0: 2500})
	assert.Equal(t, 0, ts.a.Len())
}

func TestAscending(t *testing.T) {
	ts := newTstate(t)
	sleep := map[int]int64{0: 1500, 1: 2500, 2: 3500}
	for id := 0; id < 3; id++ {
		ts.sleeper(id, sleep[id])
		ts.waitSleepers(id + 1)
	}
	ts.run(4000, map[int64]int{1500: 0, 2500: 1, 3500: 2}, sleep)
	assert.Equal(t, 0, ts.a.Len())
}

func TestMixedOrder(t *testing.T) {
	ts := newTstate(t)
	sleep := map[int]int64{0: 3500, 1: 500, 2: 1500}
	for id := 0; id < 3; id++ {
		ts.sleeper(id, sleep[id])
		ts.waitSleepers(id + 1)
	}
	ts.run(4000, map[int64]int{500: 1, 1500: 2, 3500: 0}, sleep)
}

func TestNotOnTickBoundary(t *testing.T) {
	ts := newTstate(t)
	ts.timer.Advance(100)
	ts.sleeper(0, 1050)
	ts.waitSleepers(1)
	// wake time 1150: the first interrupt at or after it is at 1600
	for ts.timer.Time()+PERIOD < 1150 {
		ts.timer.Tick()
		ts.noWakeup()
	}
	ts.timer.Tick()
	w := ts.recv()
	assert.Equal(t, int64(1600), w.now)
	st := ts.a.Stats()
	assert.Equal(t, 1, st.N)
	assert.Equal(t, float64(450), st.Max)
}

func TestZero(t *testing.T) {
	ts := newTstate(t)
	ts.sleeper(0, 0)
	ts.waitSleepers(1)
	ts.noWakeup()
	ts.timer.Tick()
	ts.recv()
	assert.Equal(t, 0, ts.a.Len())
}

func TestEqualWakeTimes(t *testing.T) {
	ts := newTstate(t)
	for id := 0; id < 4; id++ {
		ts.sleeper(id, 1000)
		ts.waitSleepers(id + 1)
	}
	ts.timer.Tick()
	ts.noWakeup()
	ts.timer.Tick()
	seen := make(map[int]bool)
	for i := 0; i < 4; i++ {
		seen[ts.recv().id] = true
	}
	assert.Equal(t, 4, len(seen))
	st := ts.a.Stats()
	assert.Equal(t, 4, st.N)
	assert.Equal(t, float64(0), st.Mean)
}

func TestStartTimer(t *testing.T) {
	ts := newTstate(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	ts.timer.Start(ctx, time.Millisecond)
	ts.sleeper(0, 5*PERIOD)
	w := ts.recv()
	assert.GreaterOrEqual(t, w.now-w.start, int64(5*PERIOD))
}

// Only the latest NSAMPLE wakeups are summarized.
func TestStatsBounded(t *testing.T) {
	ts := newTstate(t)
	const extra = 10
	n := NSAMPLE + extra
	for i := 0; i < n; i++ {
		ts.a.waiters.ReplaceOrInsert(&waiter{wake: int64(i), seq: uint64(i)})
	}
	now := int64(n)
	assert.Equal(t, n, len(ts.a.expired(now)))
	assert.Equal(t, NSAMPLE, len(ts.a.late))

	st := ts.a.Stats()
	assert.Equal(t, NSAMPLE, st.N)
	// wake times 0..extra-1 were overwritten
	assert.Equal(t, float64(now-extra), st.Max)

	ts.a.waiters.ReplaceOrInsert(&waiter{wake: now})
	ts.a.expired(now)
	assert.Equal(t, NSAMPLE, ts.a.Stats().N)
}
