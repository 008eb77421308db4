package uproc

import (
	"io"

	db "ukern/debug"
	"ukern/machine"
	"ukern/serr"
)

const (
	STDIN  = 0
	STDOUT = 1
)

type consoleFile struct {
	*machine.Console
}

func (consoleFile) Close() error {
	return nil
}

// A process's open files, indexed by file descriptor. Only the
// process's own thread touches it, so it has no lock.
type fdTable struct {
	files []io.ReadWriteCloser
}

func newFdTable(n int, console *machine.Console) *fdTable {
	if n < 2 {
		n = 2
	}
	fdt := &fdTable{files: make([]io.ReadWriteCloser, n)}
	fdt.files[STDIN] = consoleFile{console}
	fdt.files[STDOUT] = consoleFile{console}
	return fdt
}

// Install f in the lowest free slot.
func (fdt *fdTable) alloc(f io.ReadWriteCloser) (int, *serr.Err) {
	for fd, of := range fdt.files {
		if of == nil {
			fdt.files[fd] = f
			return fd, nil
		}
	}
	return -1, serr.NewErr(serr.TErrBadFd, "fd table full")
}

func (fdt *fdTable) lookup(fd int) (io.ReadWriteCloser, *serr.Err) {
	if fd < 0 || fd >= len(fdt.files) || fdt.files[fd] == nil {
		return nil, serr.NewErr(serr.TErrBadFd, fd)
	}
	return fdt.files[fd], nil
}

func (fdt *fdTable) close(fd int) *serr.Err {
	f, err := fdt.lookup(fd)
	if err != nil {
		return err
	}
	fdt.files[fd] = nil
	if err := f.Close(); err != nil {
		return serr.NewErrError(serr.TErrClosed, fd, err)
	}
	return nil
}

// Close every open descriptor; returns how many were open.
func (fdt *fdTable) closeAll() int {
	n := 0
	for fd, f := range fdt.files {
		if f == nil {
			continue
		}
		if err := f.Close(); err != nil {
			db.DPrintf(db.UPROC_ERR, "close fd %d: %v", fd, err)
		}
		fdt.files[fd] = nil
		n++
	}
	return n
}

func (fdt *fdTable) nopen() int {
	n := 0
	for _, f := range fdt.files {
		if f != nil {
			n++
		}
	}
	return n
}
