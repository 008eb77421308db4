package vm

import (
	"encoding/binary"
)

//
// Copying between user virtual memory and kernel buffers. These never
// fail: a bad address, a bad buffer range, an unmapped page, or a
// read-only page (for writes) just ends the transfer, and the caller
// learns how many bytes were copied.
//

func badRange(vaddr int, data []byte, offset, length int) bool {
	return vaddr < 0 || data == nil || offset < 0 || length < 0 || offset+length > len(data)
}

// Copy page by page between user memory at vaddr and data[offset :
// offset+length]. Caller holds as lock.
func (as *AddrSpace) transferL(vaddr int, data []byte, offset, length int, write bool) int {
	pageSize := as.mem.PageSize()
	vpn := as.mem.PageFromAddress(vaddr)
	off := as.mem.OffsetFromAddress(vaddr)
	amount := 0
	for length > 0 {
		if vpn >= len(as.pageTable) {
			break
		}
		te := &as.pageTable[vpn]
		if !te.Valid {
			break
		}
		if write && te.ReadOnly {
			break
		}
		te.Used = true
		page := as.mem.Page(te.PPN)
		n := min(pageSize-off, length)
		if write {
			te.Dirty = true
			copy(page[off:off+n], data[offset+amount:])
		} else {
			copy(data[offset+amount:], page[off:off+n])
		}
		off = 0
		amount += n
		length -= n
		vpn++
	}
	return amount
}

// Copy length bytes of user memory at vaddr into data at offset.
// Returns the number of bytes copied.
func (as *AddrSpace) ReadVirtualMemory(vaddr int, data []byte, offset, length int) int {
	if badRange(vaddr, data, offset, length) {
		return 0
	}
	as.Lock()
	defer as.Unlock()
	return as.transferL(vaddr, data, offset, length, false)
}

// Copy length bytes of data at offset into user memory at vaddr.
// Returns the number of bytes copied.
func (as *AddrSpace) WriteVirtualMemory(vaddr int, data []byte, offset, length int) int {
	if badRange(vaddr, data, offset, length) {
		return 0
	}
	as.Lock()
	defer as.Unlock()
	return as.transferL(vaddr, data, offset, length, true)
}

func (as *AddrSpace) Read(vaddr int, data []byte) int {
	return as.ReadVirtualMemory(vaddr, data, 0, len(data))
}

func (as *AddrSpace) Write(vaddr int, data []byte) int {
	return as.WriteVirtualMemory(vaddr, data, 0, len(data))
}

// Read a NUL-terminated string of at most maxLen bytes (not counting
// the terminator) at vaddr. Returns false if no terminator was found.
func (as *AddrSpace) ReadString(vaddr int, maxLen int) (string, bool) {
	if maxLen < 0 {
		return "", false
	}
	b := make([]byte, maxLen+1)
	n := as.Read(vaddr, b)
	for i := 0; i < n; i++ {
		if b[i] == 0 {
			return string(b[:i]), true
		}
	}
	return "", false
}

func (as *AddrSpace) ReadInt32(vaddr int) (int32, bool) {
	var b [4]byte
	if as.Read(vaddr, b[:]) != len(b) {
		return 0, false
	}
	return int32(binary.LittleEndian.Uint32(b[:])), true
}

func (as *AddrSpace) WriteInt32(vaddr int, v int32) bool {
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], uint32(v))
	return as.Write(vaddr, b[:]) == len(b)
}
