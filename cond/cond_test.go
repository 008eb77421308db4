package cond

import (
	"sort"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"ukern/kthread"
	"ukern/lock"
)

const N = 10

type Tstate struct {
	t  *testing.T
	lk *lock.Lock
	c  *Cond
}

func newTstate(t *testing.T) *Tstate {
	lk := lock.NewLock("cond_test")
	return &Tstate{t: t, lk: lk, c: NewCond(lk)}
}

// Wait until n threads sleep on the cond.
func (ts *Tstate) waitSleepers(n int) {
	for i := 0; ts.c.Len() != n; i++ {
		if i > 10000 {
			assert.FailNow(ts.t, "sleepers never arrived", "want %d have %d", n, ts.c.Len())
		}
		time.Sleep(time.Millisecond)
	}
}

func (ts *Tstate) sleeper(i int, order chan int) *kthread.Thread {
	return kthread.Fork("sleeper", func() {
		ts.lk.Lock()
		ts.c.Sleep()
		assert.True(ts.t, ts.lk.IsHeld())
		order <- i
		ts.lk.Unlock()
	})
}

func TestWakeFIFO(t *testing.T) {
	ts := newTstate(t)
	order := make(chan int, N)
	for i := 0; i < N; i++ {
		ts.sleeper(i, order)
		ts.waitSleepers(i + 1)
	}
	for i := 0; i < N; i++ {
		ts.lk.Lock()
		assert.True(t, ts.c.Wake())
		assert.Equal(t, N-i-1, ts.c.Len())
		ts.lk.Unlock()
		assert.Equal(t, i, <-order)
	}
	ts.lk.Lock()
	assert.False(t, ts.c.Wake())
	ts.lk.Unlock()
}

func TestWakeAll(t *testing.T) {
	ts := newTstate(t)
	order := make(chan int, N)
	ths := make([]*kthread.Thread, 0, N)
	for i := 0; i < N; i++ {
		ths = append(ths, ts.sleeper(i, order))
		ts.waitSleepers(i + 1)
	}
	ts.lk.Lock()
	assert.Equal(t, N, ts.c.WakeAll())
	assert.Equal(t, 0, ts.c.Len())
	ts.lk.Unlock()

	for _, th := range ths {
		th.Join()
	}
	close(order)
	woken := make([]int, 0, N)
	for i := range order {
		woken = append(woken, i)
	}
	sort.Ints(woken)
	for i := 0; i < N; i++ {
		assert.Equal(t, i, woken[i])
	}

	ts.lk.Lock()
	assert.Equal(t, 0, ts.c.WakeAll())
	ts.lk.Unlock()
}

func TestWithoutLockPanics(t *testing.T) {
	ts := newTstate(t)
	assert.Panics(t, func() { ts.c.Sleep() })
	assert.Panics(t, func() { ts.c.Wake() })
	assert.Panics(t, func() { ts.c.WakeAll() })
	assert.Equal(t, 0, ts.c.Len())
}

// Classic bounded producer/consumer; every item is consumed exactly
// once and no wakeup is lost.
func TestProducerConsumer(t *testing.T) {
	const NITEM = 1000
	const CAP = 4
	lk := lock.NewLock("pc")
	notFull := NewCond(lk)
	notEmpty := NewCond(lk)
	buf := make([]int, 0, CAP)

	prod := kthread.Fork("producer", func() {
		for i := 0; i < NITEM; i++ {
			lk.Lock()
			for len(buf) == CAP {
				notFull.Sleep()
			}
			buf = append(buf, i)
			notEmpty.Wake()
			lk.Unlock()
		}
	})
	sum := 0
	cons := kthread.Fork("consumer", func() {
		for i := 0; i < NITEM; i++ {
			lk.Lock()
			for len(buf) == 0 {
				notEmpty.Sleep()
			}
			assert.Equal(t, i, buf[0])
			sum += buf[0]
			buf = buf[1:]
			notFull.Wake()
			lk.Unlock()
		}
	})
	prod.Join()
	cons.Join()
	assert.Equal(t, NITEM*(NITEM-1)/2, sum)
}
