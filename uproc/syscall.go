package uproc

import (
	"errors"
	"fmt"
	"io"

	db "ukern/debug"
	"ukern/kthread"
	"ukern/proc"
)

// Syscall numbers.
const (
	SYS_HALT   = 0
	SYS_EXIT   = 1
	SYS_EXEC   = 2
	SYS_JOIN   = 3
	SYS_CREAT  = 4
	SYS_OPEN   = 5
	SYS_READ   = 6
	SYS_WRITE  = 7
	SYS_CLOSE  = 8
	SYS_UNLINK = 9
)

// Dispatch a syscall made by p's program. Arguments that point into
// memory are user virtual addresses. Errors come back as -1; halt and
// exit do not return.
func (p *Process) HandleSyscall(num, a0, a1, a2, a3 int) int {
	db.DPrintf(db.SYSCALL, "%v: syscall %d(%d, %d, %d, %d)", p, num, a0, a1, a2, a3)
	var r int
	switch num {
	case SYS_HALT:
		r = p.handleHalt()
	case SYS_EXIT:
		p.Exit(a0)
	case SYS_EXEC:
		r = p.handleExec(a0, a1, a2)
	case SYS_JOIN:
		r = p.handleJoin(a0, a1)
	case SYS_CREAT:
		r = p.handleOpen(a0, true)
	case SYS_OPEN:
		r = p.handleOpen(a0, false)
	case SYS_READ:
		r = p.handleRead(a0, a1, a2)
	case SYS_WRITE:
		r = p.handleWrite(a0, a1, a2)
	case SYS_CLOSE:
		r = p.handleClose(a0)
	case SYS_UNLINK:
		r = p.handleUnlink(a0)
	default:
		db.DPrintf(db.SYSCALL_ERR, "%v: unknown syscall %d", p, num)
		panic(fmt.Sprintf("unknown syscall %d", num))
	}
	return r
}

func (p *Process) handleHalt() int {
	db.DPrintf(db.SYSCALL, "%v: halt", p)
	p.k.Halt()
	kthread.Exit()
	return 0
}

func (p *Process) readString(vaddr int) (string, bool) {
	s, ok := p.as.ReadString(vaddr, p.k.Conf().Process.MAX_STRING_LEN)
	if !ok {
		db.DPrintf(db.SYSCALL_ERR, "%v: unreadable string at %#x", p, vaddr)
	}
	return s, ok
}

func (p *Process) handleExec(file, argc, argv int) int {
	name, ok := p.readString(file)
	if !ok {
		return -1
	}
	if argc < 0 || argc > p.as.NumPages()*p.k.Pool().Mem().PageSize()/4 {
		db.DPrintf(db.SYSCALL_ERR, "%v: exec %v: bad argc %d", p, name, argc)
		return -1
	}
	args := make([]string, argc)
	for i := range args {
		ptr, ok := p.as.ReadInt32(argv + 4*i)
		if !ok {
			db.DPrintf(db.SYSCALL_ERR, "%v: exec %v: unreadable argv[%d]", p, name, i)
			return -1
		}
		if args[i], ok = p.readString(int(ptr)); !ok {
			return -1
		}
	}
	pid, err := p.Exec(name, args)
	if err != nil {
		db.DPrintf(db.SYSCALL_ERR, "%v: exec %v: %v", p, name, err)
		return -1
	}
	return int(pid)
}

func (p *Process) handleJoin(pid, statusAddr int) int {
	st, err := p.Join(proc.Tpid(pid))
	if err != nil {
		return -1
	}
	if !p.as.WriteInt32(statusAddr, st.ExitCode) {
		db.DPrintf(db.SYSCALL_ERR, "%v: join %v: bad status address %#x", p, pid, statusAddr)
	}
	if st.IsStatusOK() {
		return 1
	}
	return 0
}

func (p *Process) handleOpen(nameAddr int, create bool) int {
	name, ok := p.readString(nameAddr)
	if !ok {
		return -1
	}
	f, err := p.k.FS().Open(name, create)
	if err != nil {
		db.DPrintf(db.SYSCALL_ERR, "%v: open %q: %v", p, name, err)
		return -1
	}
	fd, err := p.files.alloc(f)
	if err != nil {
		f.Close()
		db.DPrintf(db.SYSCALL_ERR, "%v: open %q: %v", p, name, err)
		return -1
	}
	return fd
}

// Read up to count bytes from fd into user memory at vaddr, a page at
// a time. A short read from the file ends the transfer.
func (p *Process) handleRead(fd, vaddr, count int) int {
	f, err := p.files.lookup(fd)
	if err != nil || count < 0 {
		return -1
	}
	buf := make([]byte, min(count, p.k.Pool().Mem().PageSize()))
	total := 0
	for total < count {
		chunk := buf[:min(len(buf), count-total)]
		n, rerr := f.Read(chunk)
		if n > 0 {
			if p.as.Write(vaddr+total, chunk[:n]) != n {
				db.DPrintf(db.SYSCALL_ERR, "%v: read fd %d: bad buffer %#x", p, fd, vaddr+total)
				return -1
			}
			total += n
		}
		if rerr != nil {
			if errors.Is(rerr, io.EOF) {
				break
			}
			db.DPrintf(db.SYSCALL_ERR, "%v: read fd %d: %v", p, fd, rerr)
			return -1
		}
		if n < len(chunk) {
			break
		}
	}
	return total
}

func (p *Process) handleWrite(fd, vaddr, count int) int {
	f, err := p.files.lookup(fd)
	if err != nil || count < 0 {
		return -1
	}
	buf := make([]byte, min(count, p.k.Pool().Mem().PageSize()))
	total := 0
	for total < count {
		chunk := buf[:min(len(buf), count-total)]
		if p.as.Read(vaddr+total, chunk) != len(chunk) {
			db.DPrintf(db.SYSCALL_ERR, "%v: write fd %d: bad buffer %#x", p, fd, vaddr+total)
			return -1
		}
		n, werr := f.Write(chunk)
		total += n
		if werr != nil {
			db.DPrintf(db.SYSCALL_ERR, "%v: write fd %d: %v", p, fd, werr)
			return -1
		}
	}
	return total
}

func (p *Process) handleClose(fd int) int {
	if err := p.files.close(fd); err != nil {
		db.DPrintf(db.SYSCALL_ERR, "%v: close %d: %v", p, fd, err)
		return -1
	}
	return 0
}

func (p *Process) handleUnlink(nameAddr int) int {
	name, ok := p.readString(nameAddr)
	if !ok {
		return -1
	}
	if err := p.k.FS().Remove(name); err != nil {
		db.DPrintf(db.SYSCALL_ERR, "%v: unlink %q: %v", p, name, err)
		return -1
	}
	return 0
}
