package cond

import (
	"fmt"
	"sync"

	db "ukern/debug"
	"ukern/kthread"
	"ukern/lock"
)

//
// A condition variable bound to a kernel lock. Waiters are kept in a
// FIFO queue. Sleep puts the caller on the queue before it releases
// the lock, so a Wake issued by the next lock holder always finds it;
// if that Wake arrives before the sleeper has blocked, the sleeper's
// thread remembers it.
//

type Cond struct {
	mu    sync.Mutex // protects queue
	lk    *lock.Lock
	queue []*kthread.Thread
}

func NewCond(lk *lock.Lock) *Cond {
	return &Cond{lk: lk}
}

func (c *Cond) checkHeld(op string) {
	if !c.lk.IsHeld() {
		panic(fmt.Sprintf("cond %v: %v without holding lock (thread %v)", c.lk.Name(), op, kthread.Current()))
	}
}

// Atomically release the lock and sleep until woken; re-acquire the
// lock before returning. Caller must hold the lock.
func (c *Cond) Sleep() {
	c.checkHeld("Sleep")
	t := kthread.Current()

	c.mu.Lock()
	c.queue = append(c.queue, t)
	c.mu.Unlock()

	db.DPrintf(db.COND, "%v: %v sleeps", c.lk.Name(), t)
	c.lk.Unlock()
	t.Block()
	c.lk.Lock()
}

// Wake up at most one sleeping thread, the one that has waited
// longest. Caller must hold the lock. Returns false if nobody waited.
func (c *Cond) Wake() bool {
	c.checkHeld("Wake")
	return c.wake()
}

func (c *Cond) wake() bool {
	c.mu.Lock()
	if len(c.queue) == 0 {
		c.mu.Unlock()
		return false
	}
	t := c.queue[0]
	c.queue[0] = nil
	c.queue = c.queue[1:]
	c.mu.Unlock()

	db.DPrintf(db.COND, "%v: wake %v", c.lk.Name(), t)
	t.Ready()
	return true
}

// Wake up all threads sleeping on c, in the order they went to sleep.
// Caller must hold the lock. Returns the number of threads woken.
func (c *Cond) WakeAll() int {
	c.checkHeld("WakeAll")
	n := 0
	for c.wake() {
		n++
	}
	return n
}

// Number of threads sleeping on c.
func (c *Cond) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.queue)
}
