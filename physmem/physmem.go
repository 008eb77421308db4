package physmem

import (
	"fmt"

	"github.com/dustin/go-humanize"

	db "ukern/debug"
	"ukern/machine"
	"ukern/serr"
	"ukern/util/freelist"
)

// The pool of free physical pages, shared by all processes. All
// allocation and release goes through the pool's lock, so concurrent
// process creation cannot hand out the same page twice.
type Pool struct {
	mem  *machine.Memory
	free *freelist.FreeList[int]
}

func NewPool(mem *machine.Memory) *Pool {
	ppns := make([]int, mem.NumPhysPages())
	for i := range ppns {
		ppns[i] = i
	}
	p := &Pool{mem: mem, free: freelist.NewFreeList(ppns)}
	db.DPrintf(db.PHYSMEM, "NewPool %v", p)
	return p
}

func (p *Pool) Mem() *machine.Memory {
	return p.mem
}

// Allocate one page.
func (p *Pool) Alloc() (int, *serr.Err) {
	ppn, ok := p.free.Get()
	if !ok {
		return -1, serr.NewErr(serr.TErrNoMem, 1)
	}
	return ppn, nil
}

// Allocate n pages, all or nothing.
func (p *Pool) AllocN(n int) ([]int, *serr.Err) {
	ppns, ok := p.free.GetN(n)
	if !ok {
		db.DPrintf(db.PHYSMEM_ERR, "AllocN %d: only %d free", n, p.NFree())
		return nil, serr.NewErr(serr.TErrNoMem, n)
	}
	db.DPrintf(db.PHYSMEM, "AllocN %d (%s): %v", n, p.bytes(n), ppns)
	return ppns, nil
}

// Return a page to the pool. Freeing a free page panics.
func (p *Pool) Free(ppn int) {
	if ppn < 0 || ppn >= p.mem.NumPhysPages() {
		panic(fmt.Sprintf("physmem: free of bad page %d", ppn))
	}
	p.free.Put(ppn)
}

func (p *Pool) NFree() int {
	return p.free.Len()
}

func (p *Pool) NTotal() int {
	return p.mem.NumPhysPages()
}

func (p *Pool) bytes(npages int) string {
	return humanize.IBytes(uint64(npages * p.mem.PageSize()))
}

func (p *Pool) String() string {
	nfree := p.NFree()
	return fmt.Sprintf("&{ free:%d (%s) total:%d (%s) }", nfree, p.bytes(nfree), p.NTotal(), p.bytes(p.NTotal()))
}
