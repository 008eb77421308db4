package freelist

import (
	"fmt"
	"sync"
)

// A free list of distinct values. A value is either on the list or
// handed out, never both: putting back a value that is already free
// panics.
type FreeList[T comparable] struct {
	mu       sync.Mutex
	freelist []T
	free     map[T]bool
	nGet     int
}

func NewFreeList[T comparable](vals []T) *FreeList[T] {
	fl := &FreeList[T]{
		freelist: make([]T, 0, len(vals)),
		free:     make(map[T]bool, len(vals)),
	}
	for _, v := range vals {
		fl.putL(v)
	}
	return fl
}

func (fl *FreeList[T]) Len() int {
	fl.mu.Lock()
	defer fl.mu.Unlock()
	return len(fl.freelist)
}

// Number of successful Get/GetN values handed out so far.
func (fl *FreeList[T]) NGet() int {
	fl.mu.Lock()
	defer fl.mu.Unlock()
	return fl.nGet
}

func (fl *FreeList[T]) getL() T {
	e := fl.freelist[0]
	fl.freelist = fl.freelist[1:]
	delete(fl.free, e)
	fl.nGet += 1
	return e
}

func (fl *FreeList[T]) Get() (T, bool) {
	fl.mu.Lock()
	defer fl.mu.Unlock()

	if len(fl.freelist) == 0 {
		var e T
		return e, false
	}
	return fl.getL(), true
}

// Take n values, or none if fewer than n are free.
func (fl *FreeList[T]) GetN(n int) ([]T, bool) {
	fl.mu.Lock()
	defer fl.mu.Unlock()

	if n < 0 || n > len(fl.freelist) {
		return nil, false
	}
	es := make([]T, 0, n)
	for i := 0; i < n; i++ {
		es = append(es, fl.getL())
	}
	return es, true
}

func (fl *FreeList[T]) putL(e T) {
	if fl.free[e] {
		panic(fmt.Sprintf("freelist: %v freed twice", e))
	}
	fl.free[e] = true
	fl.freelist = append(fl.freelist, e)
}

func (fl *FreeList[T]) Put(e T) {
	fl.mu.Lock()
	defer fl.mu.Unlock()
	fl.putL(e)
}
