package kthread

import (
	"fmt"
	"runtime"
	"sync"
	"sync/atomic"

	"github.com/petermattis/goid"

	db "ukern/debug"
)

//
// Kernel threads. Each thread is a goroutine that runs until it blocks
// or yields. A thread blocks by calling Block and becomes runnable
// again when another thread calls Ready on it. A Ready that arrives
// before the matching Block is remembered, so a waker never has to
// wait for the sleeper to reach Block.
//

type Thread struct {
	id     uint64
	name   string
	wakeup chan struct{}
	done   chan struct{}
}

type threadTable struct {
	sync.Mutex
	threads map[int64]*Thread // keyed by goroutine id
}

var (
	tt     = &threadTable{threads: make(map[int64]*Thread)}
	nextId atomic.Uint64
)

func newThread(name string) *Thread {
	return &Thread{
		id:     nextId.Add(1),
		name:   name,
		wakeup: make(chan struct{}, 1),
		done:   make(chan struct{}),
	}
}

// Create a new thread running fn.
func Fork(name string, fn func()) *Thread {
	t := newThread(name)
	db.DPrintf(db.KTHREAD, "Fork %v", t)
	go func() {
		g := goid.Get()
		tt.Lock()
		tt.threads[g] = t
		tt.Unlock()
		defer t.finish(g)
		fn()
	}()
	return t
}

func (t *Thread) finish(g int64) {
	tt.Lock()
	delete(tt.threads, g)
	tt.Unlock()
	db.DPrintf(db.KTHREAD, "Finish %v", t)
	close(t.done)
}

// The calling thread. A goroutine not created by Fork (e.g., the
// boot goroutine or a test) is adopted as a thread the first time it
// asks.
func Current() *Thread {
	g := goid.Get()
	tt.Lock()
	defer tt.Unlock()
	t, ok := tt.threads[g]
	if !ok {
		t = newThread(fmt.Sprintf("g%d", g))
		tt.threads[g] = t
	}
	return t
}

// Number of live threads, including adopted goroutines.
func NThread() int {
	tt.Lock()
	defer tt.Unlock()
	return len(tt.threads)
}

// Make t runnable.
func (t *Thread) Ready() {
	select {
	case t.wakeup <- struct{}{}:
	default:
		db.DPrintf(db.KTHREAD, "Ready %v: already ready", t)
	}
}

// Suspend the calling thread, which must be t, until t is made ready.
func (t *Thread) Block() {
	if c := Current(); c != t {
		panic(fmt.Sprintf("Block %v called by %v", t, c))
	}
	<-t.wakeup
}

// Wait until t has finished.
func (t *Thread) Join() {
	<-t.done
}

func (t *Thread) Done() <-chan struct{} {
	return t.done
}

func (t *Thread) Id() uint64 {
	return t.id
}

func (t *Thread) Name() string {
	return t.name
}

func (t *Thread) String() string {
	return fmt.Sprintf("%v:%d", t.name, t.id)
}

// Give up the CPU to another runnable thread.
func Yield() {
	runtime.Gosched()
}

// Terminate the calling thread. Deferred calls run first.
func Exit() {
	runtime.Goexit()
}
