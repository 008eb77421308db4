package lock

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sasha-s/go-deadlock"

	db "ukern/debug"
	"ukern/kthread"
)

// A kernel mutual-exclusion lock. Unlike sync.Mutex it knows which
// thread holds it, so condition variables can check their callers
// and a release by a non-holder is caught. The underlying mutex
// reports lock-order inversions and locks held for too long.
type Lock struct {
	mu     deadlock.Mutex
	holder atomic.Pointer[kthread.Thread]
	name   string
}

func NewLock(name string) *Lock {
	return &Lock{name: name}
}

var (
	optsOnce        sync.Once
	deadlockTimeout time.Duration
)

// Report a lock as deadlocked once it has been held (or waited for)
// longer than d. deadlock.Opts is read by go-deadlock's watchers
// without synchronization, so only the first call per process takes
// effect. Returns the timeout in effect.
func SetDeadlockTimeout(d time.Duration) time.Duration {
	optsOnce.Do(func() {
		deadlock.Opts.DeadlockTimeout = d
		deadlockTimeout = d
	})
	return deadlockTimeout
}

func (l *Lock) Lock() {
	t := kthread.Current()
	if l.holder.Load() == t {
		panic(fmt.Sprintf("lock %v: %v acquires lock it holds", l.name, t))
	}
	l.mu.Lock()
	l.holder.Store(t)
	db.DPrintf(db.LOCK, "%v: acquired by %v", l.name, t)
}

func (l *Lock) Unlock() {
	t := kthread.Current()
	if h := l.holder.Load(); h != t {
		panic(fmt.Sprintf("lock %v: released by %v, held by %v", l.name, t, h))
	}
	l.holder.Store(nil)
	db.DPrintf(db.LOCK, "%v: released by %v", l.name, t)
	l.mu.Unlock()
}

// True if the calling thread holds l.
func (l *Lock) IsHeld() bool {
	return l.holder.Load() == kthread.Current()
}

func (l *Lock) Name() string {
	return l.name
}

func (l *Lock) String() string {
	return fmt.Sprintf("&{ lock:%v holder:%v }", l.name, l.holder.Load())
}
