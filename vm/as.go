package vm

import (
	"fmt"
	"sync"

	"ukern/coff"
	db "ukern/debug"
	"ukern/machine"
	"ukern/physmem"
	"ukern/serr"
)

// One virtual-to-physical page mapping. A valid entry owns its
// physical page: no other valid entry in any address space maps it.
type TranslationEntry struct {
	VPN      int
	PPN      int
	Valid    bool
	ReadOnly bool
	Used     bool
	Dirty    bool
}

func (te TranslationEntry) String() string {
	return fmt.Sprintf("{%d->%d v:%v ro:%v u:%v d:%v}", te.VPN, te.PPN, te.Valid, te.ReadOnly, te.Used, te.Dirty)
}

// The address space of a user process. Layout after Load: the
// executable's sections from page 0, then the stack, then one page
// holding the argument vector.
type AddrSpace struct {
	sync.Mutex
	mem        *machine.Memory
	pool       *physmem.Pool
	pageTable  []TranslationEntry
	stackPages int
	numPages   int
	loading    bool // a LoadSections is between its check and its install
	initialPC  int
	initialSP  int
	argc       int
	argv       int
}

// A new address space with an identity-mapped placeholder page table.
// The placeholder entries are not valid and own nothing; Load
// replaces them.
func NewAddrSpace(pool *physmem.Pool, stackPages int) *AddrSpace {
	as := &AddrSpace{
		mem:        pool.Mem(),
		pool:       pool,
		stackPages: stackPages,
	}
	n := as.mem.NumPhysPages()
	as.pageTable = make([]TranslationEntry, n)
	for i := 0; i < n; i++ {
		as.pageTable[i] = TranslationEntry{VPN: i, PPN: i}
	}
	return as
}

func (as *AddrSpace) NumPages() int {
	as.Lock()
	defer as.Unlock()
	return as.numPages
}

func (as *AddrSpace) InitialPC() int {
	return as.initialPC
}

func (as *AddrSpace) InitialSP() int {
	return as.initialSP
}

// Argument count and the virtual address of the argv array.
func (as *AddrSpace) Args() (int, int) {
	return as.argc, as.argv
}

// A copy of the page table.
func (as *AddrSpace) PageTable() []TranslationEntry {
	as.Lock()
	defer as.Unlock()
	pt := make([]TranslationEntry, len(as.pageTable))
	copy(pt, as.pageTable)
	return pt
}

func (as *AddrSpace) Entry(vpn int) (TranslationEntry, bool) {
	as.Lock()
	defer as.Unlock()
	if vpn < 0 || vpn >= len(as.pageTable) {
		return TranslationEntry{}, false
	}
	return as.pageTable[vpn], true
}

// Load the executable exe and lay out args in the last page. exe is
// closed in all cases.
func (as *AddrSpace) Load(exe *coff.Coff, args []string) *serr.Err {
	defer exe.Close()

	pageSize := as.mem.PageSize()

	npages, err := sectionPages(exe)
	if err != nil {
		return err
	}

	// the argv array must fit in one page: a 4-byte pointer per
	// argument plus the string and its terminator
	argsSize := 0
	for _, a := range args {
		argsSize += 4 + len(a) + 1
	}
	if argsSize > pageSize {
		db.DPrintf(db.VM_ERR, "Load: arguments too long (%d bytes)", argsSize)
		return serr.NewErr(serr.TErrInval, "arguments too long")
	}

	as.initialPC = exe.EntryPoint()
	npages += as.stackPages
	as.initialSP = npages * pageSize
	// one page for arguments
	npages++

	as.Lock()
	as.numPages = npages
	as.Unlock()

	if err := as.LoadSections(exe); err != nil {
		as.Lock()
		as.numPages = 0
		as.Unlock()
		return err
	}

	entryOffset := (npages - 1) * pageSize
	stringOffset := entryOffset + len(args)*4
	as.argc = len(args)
	as.argv = entryOffset
	for _, a := range args {
		if !as.WriteInt32(entryOffset, int32(stringOffset)) {
			db.DFatalf("Load: write argv pointer at %d", entryOffset)
		}
		entryOffset += 4
		b := append([]byte(a), 0)
		if as.Write(stringOffset, b) != len(b) {
			db.DFatalf("Load: write argv string at %d", stringOffset)
		}
		stringOffset += len(b)
	}
	return nil
}

// Allocate physical pages and load the executable's sections into
// them. The pages come out of the pool all at once under the pool's
// lock; if there are not enough, exe is closed and nothing is
// committed.
func (as *AddrSpace) LoadSections(exe *coff.Coff) *serr.Err {
	spages, err := sectionPages(exe)
	if err != nil {
		exe.Close()
		return err
	}

	as.Lock()
	npages := max(as.numPages, spages)
	if as.loading || as.loadedL() {
		as.Unlock()
		exe.Close()
		return serr.NewErr(serr.TErrExists, "address space already loaded")
	}
	as.loading = true
	as.Unlock()

	ppns, err := as.pool.AllocN(npages)
	if err != nil {
		as.Lock()
		as.loading = false
		as.Unlock()
		exe.Close()
		db.DPrintf(db.VM_ERR, "LoadSections: insufficient physical memory for %d pages (%v)", npages, as.pool)
		return err
	}

	pt := make([]TranslationEntry, npages)
	vpn := 0
	for s := 0; s < exe.NumSections(); s++ {
		section := exe.Section(s)
		db.DPrintf(db.VM, "initializing %v section (%d pages)", section.Name, section.Length)
		for i := 0; i < section.Length; i++ {
			vpn = section.FirstVPN + i
			ppn := ppns[vpn]
			pt[vpn] = TranslationEntry{VPN: vpn, PPN: ppn, Valid: true, ReadOnly: section.ReadOnly}
			section.LoadPage(i, as.mem.Page(ppn))
		}
		vpn = section.FirstVPN + section.Length
	}
	// stack and argument pages
	for ; vpn < npages; vpn++ {
		ppn := ppns[vpn]
		pt[vpn] = TranslationEntry{VPN: vpn, PPN: ppn, Valid: true}
		clear(as.mem.Page(ppn))
	}

	as.Lock()
	as.pageTable = pt
	as.numPages = npages
	as.loading = false
	as.Unlock()
	return nil
}

// Number of pages covered by exe's sections, which must be contiguous
// and start at page 0.
func sectionPages(exe *coff.Coff) (int, *serr.Err) {
	npages := 0
	for s := 0; s < exe.NumSections(); s++ {
		section := exe.Section(s)
		if section.FirstVPN != npages {
			db.DPrintf(db.VM_ERR, "fragmented executable %v", section)
			return 0, serr.NewErr(serr.TErrFormat, "fragmented executable")
		}
		npages += section.Length
	}
	return npages, nil
}

func (as *AddrSpace) loadedL() bool {
	for _, te := range as.pageTable {
		if te.Valid {
			return true
		}
	}
	return false
}

// Return every physical page the address space owns to the pool.
// Safe to call on an unloaded address space and more than once.
func (as *AddrSpace) UnloadSections() int {
	as.Lock()
	pt := as.pageTable
	as.pageTable = nil
	as.numPages = 0
	as.Unlock()

	n := 0
	for _, te := range pt {
		if te.Valid {
			as.pool.Free(te.PPN)
			n++
		}
	}
	if n > 0 {
		db.DPrintf(db.VM, "UnloadSections: freed %d pages (%v)", n, as.pool)
	}
	return n
}
