// Package ulib is the user side of the syscall interface: wrappers
// that marshal Go values into the calling process's memory and trap
// into the kernel, as a C library would.
package ulib

import (
	"encoding/binary"
	"fmt"

	"ukern/uproc"
)

// A program's view of its process. Syscall arguments are pushed below
// the initial stack pointer and popped when the call returns.
type Env struct {
	p  *uproc.Process
	sp int
}

func NewEnv(p *uproc.Process) *Env {
	return &Env{p: p, sp: p.AddrSpace().InitialSP()}
}

func (e *Env) Process() *uproc.Process {
	return e.p
}

func (e *Env) Args() []string {
	return e.p.Args()
}

func (e *Env) syscall(num, a0, a1, a2 int) int {
	return e.p.HandleSyscall(num, a0, a1, a2, 0)
}

// Save the stack pointer; the returned func restores it.
func (e *Env) frame() func() {
	sp := e.sp
	return func() { e.sp = sp }
}

func (e *Env) push(b []byte) (int, bool) {
	e.sp = (e.sp - len(b)) &^ 3
	if e.sp < 0 {
		return 0, false
	}
	return e.sp, e.p.AddrSpace().Write(e.sp, b) == len(b)
}

func (e *Env) pushString(s string) (int, bool) {
	return e.push(append([]byte(s), 0))
}

func (e *Env) Halt() {
	e.syscall(uproc.SYS_HALT, 0, 0, 0)
}

func (e *Env) Exit(status int) {
	e.syscall(uproc.SYS_EXIT, status, 0, 0)
}

// Start name with args as a child. Returns its pid or -1.
func (e *Env) Exec(name string, args ...string) int {
	defer e.frame()()
	fa, ok := e.pushString(name)
	if !ok {
		return -1
	}
	ptrs := make([]byte, 4*len(args))
	for i, a := range args {
		pa, ok := e.pushString(a)
		if !ok {
			return -1
		}
		binary.LittleEndian.PutUint32(ptrs[4*i:], uint32(pa))
	}
	argv, ok := e.push(ptrs)
	if !ok {
		return -1
	}
	return e.syscall(uproc.SYS_EXEC, fa, len(args), argv)
}

// Wait for child pid. Returns 1 and its exit status if it exited
// normally, 0 if it died, -1 if pid is not a child.
func (e *Env) Join(pid int) (int, int32) {
	defer e.frame()()
	addr, ok := e.push(make([]byte, 4))
	if !ok {
		return -1, 0
	}
	r := e.syscall(uproc.SYS_JOIN, pid, addr, 0)
	st, _ := e.p.AddrSpace().ReadInt32(addr)
	return r, st
}

func (e *Env) nameCall(num int, name string) int {
	defer e.frame()()
	a, ok := e.pushString(name)
	if !ok {
		return -1
	}
	return e.syscall(num, a, 0, 0)
}

func (e *Env) Creat(name string) int {
	return e.nameCall(uproc.SYS_CREAT, name)
}

func (e *Env) Open(name string) int {
	return e.nameCall(uproc.SYS_OPEN, name)
}

func (e *Env) Unlink(name string) int {
	return e.nameCall(uproc.SYS_UNLINK, name)
}

func (e *Env) Close(fd int) int {
	return e.syscall(uproc.SYS_CLOSE, fd, 0, 0)
}

// Read up to n bytes from fd; n must fit on the stack.
func (e *Env) Read(fd, n int) ([]byte, int) {
	defer e.frame()()
	addr, ok := e.push(make([]byte, n))
	if !ok {
		return nil, -1
	}
	r := e.syscall(uproc.SYS_READ, fd, addr, n)
	if r <= 0 {
		return nil, r
	}
	b := make([]byte, r)
	e.p.AddrSpace().Read(addr, b)
	return b, r
}

func (e *Env) Write(fd int, b []byte) int {
	defer e.frame()()
	addr, ok := e.push(b)
	if !ok {
		return -1
	}
	return e.syscall(uproc.SYS_WRITE, fd, addr, len(b))
}

func (e *Env) Printf(format string, v ...interface{}) int {
	return e.Write(uproc.STDOUT, []byte(fmt.Sprintf(format, v...)))
}
