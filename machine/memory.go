package machine

import (
	"fmt"

	"github.com/dustin/go-humanize"
)

// Main memory of the simulated machine: NumPhysPages pages of
// PageSize bytes each. Users address it through page tables; the
// kernel addresses it by physical page number.
type Memory struct {
	pageSize int
	npages   int
	mem      []byte
}

func NewMemory(npages, pageSize int) *Memory {
	if npages <= 0 || pageSize <= 0 {
		panic(fmt.Sprintf("bad memory geometry %d pages of %d bytes", npages, pageSize))
	}
	return &Memory{
		pageSize: pageSize,
		npages:   npages,
		mem:      make([]byte, npages*pageSize),
	}
}

func (m *Memory) PageSize() int {
	return m.pageSize
}

func (m *Memory) NumPhysPages() int {
	return m.npages
}

// The bytes of physical page ppn.
func (m *Memory) Page(ppn int) []byte {
	if ppn < 0 || ppn >= m.npages {
		panic(fmt.Sprintf("physical page %d out of range [0, %d)", ppn, m.npages))
	}
	off := ppn * m.pageSize
	return m.mem[off : off+m.pageSize]
}

func (m *Memory) PageFromAddress(addr int) int {
	return addr / m.pageSize
}

func (m *Memory) OffsetFromAddress(addr int) int {
	return addr % m.pageSize
}

func (m *Memory) MakeAddress(page, offset int) int {
	return page*m.pageSize + offset
}

func (m *Memory) String() string {
	return fmt.Sprintf("&{ pages:%d pagesz:%d total:%s }", m.npages, m.pageSize, humanize.IBytes(uint64(len(m.mem))))
}
