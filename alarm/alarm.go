package alarm

import (
	"fmt"
	"sync"

	"github.com/google/btree"
	"github.com/montanaflynn/stats"

	db "ukern/debug"
	"ukern/kthread"
	"ukern/machine"
)

// Number of most recent wakeups kept for Stats.
const NSAMPLE = 1024

// A thread sleeping until its wake time. seq breaks ties between
// equal wake times in arrival order.
type waiter struct {
	t    *kthread.Thread
	wake int64
	seq  uint64
}

func lessWaiter(a, b *waiter) bool {
	if a.wake != b.wake {
		return a.wake < b.wake
	}
	return a.seq < b.seq
}

// Alarm lets threads sleep until a certain time. It is driven by the
// machine's timer interrupt; there should be one per machine.
type Alarm struct {
	sync.Mutex
	timer   *machine.Timer
	waiters *btree.BTreeG[*waiter]
	seq     uint64
	late    []float64 // ring of ticks each waiter was woken after its wake time
	next    int       // slot in late for the next sample once it is full
}

func NewAlarm(timer *machine.Timer) *Alarm {
	a := &Alarm{
		timer:   timer,
		waiters: btree.NewG[*waiter](8, lessWaiter),
	}
	timer.SetInterruptHandler(a.TimerInterrupt)
	return a
}

// The timer interrupt handler: make ready every thread whose wake time
// has arrived, earliest first, and then yield.
func (a *Alarm) TimerInterrupt() {
	now := a.timer.Time()
	ready := a.expired(now)
	for _, w := range ready {
		db.DPrintf(db.ALARM, "wake %v at %d (wake time %d)", w.t, now, w.wake)
		w.t.Ready()
	}
	kthread.Yield()
}

func (a *Alarm) expired(now int64) []*waiter {
	a.Lock()
	defer a.Unlock()

	var ready []*waiter
	for {
		w, ok := a.waiters.Min()
		if !ok || w.wake > now {
			break
		}
		a.waiters.DeleteMin()
		a.sampleL(float64(now - w.wake))
		ready = append(ready, w)
	}
	return ready
}

func (a *Alarm) sampleL(d float64) {
	if len(a.late) < NSAMPLE {
		a.late = append(a.late, d)
	} else {
		a.late[a.next] = d
	}
	a.next = (a.next + 1) % NSAMPLE
}

// Put the calling thread to sleep for at least x ticks. It is woken by
// the first timer interrupt at which the time is at least the call
// time plus x.
func (a *Alarm) WaitUntil(x int64) {
	if x < 0 {
		x = 0
	}
	t := kthread.Current()

	a.Lock()
	w := &waiter{t: t, wake: a.timer.Time() + x, seq: a.seq}
	a.seq++
	a.waiters.ReplaceOrInsert(w)
	a.Unlock()

	db.DPrintf(db.ALARM, "%v sleeps until %d", t, w.wake)
	t.Block()
}

// Number of sleeping threads.
func (a *Alarm) Len() int {
	a.Lock()
	defer a.Unlock()
	return a.waiters.Len()
}

// Summary of how late (in ticks) threads were woken, over the last
// NSAMPLE wakeups.
type Stats struct {
	N    int
	Mean float64
	P50  float64
	P99  float64
	Max  float64
}

func (st *Stats) String() string {
	return fmt.Sprintf("&{ n:%d mean:%.1f p50:%.1f p99:%.1f max:%.1f }", st.N, st.Mean, st.P50, st.P99, st.Max)
}

func (a *Alarm) Stats() *Stats {
	a.Lock()
	late := make([]float64, len(a.late))
	copy(late, a.late)
	a.Unlock()

	st := &Stats{N: len(late)}
	if st.N == 0 {
		return st
	}
	st.Mean, _ = stats.Mean(late)
	st.P50, _ = stats.Percentile(late, 50)
	st.P99, _ = stats.Percentile(late, 99)
	st.Max, _ = stats.Max(late)
	return st
}
