package uproc

import (
	"fmt"

	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"

	"ukern/cond"
	db "ukern/debug"
	"ukern/kthread"
	"ukern/lock"
	"ukern/proc"
	"ukern/serr"
	"ukern/vm"
)

type Tstate uint8

const (
	StateCreated Tstate = iota
	StateLoaded
	StateRunning
	StateExited
)

func (st Tstate) String() string {
	switch st {
	case StateCreated:
		return "created"
	case StateLoaded:
		return "loaded"
	case StateRunning:
		return "running"
	case StateExited:
		return "exited"
	default:
		return "unknown state"
	}
}

//
// A user process. Lock order: a child's status lock before its
// parent's; no thread holds a parent's lock while taking a child's.
//

type Process struct {
	pid    proc.Tpid
	name   string
	k      Kernel
	as     *vm.AddrSpace
	files  *fdTable
	thread *kthread.Thread

	exiting bool // touched only by the process's own thread

	statusLock *lock.Lock
	joinCond   *cond.Cond // joiners wait here for a child to exit

	// protected by statusLock
	state    Tstate
	parent   proc.Tpid
	children map[proc.Tpid]bool
	status   *proc.Status
}

func newProcess(k Kernel, name string, ppid proc.Tpid) *Process {
	conf := k.Conf()
	lk := lock.NewLock("status-" + name)
	return &Process{
		name:       name,
		k:          k,
		as:         vm.NewAddrSpace(k.Pool(), conf.Process.STACK_PAGES),
		files:      newFdTable(conf.Process.MAX_OPEN_FILES, k.Console()),
		statusLock: lk,
		joinCond:   cond.NewCond(lk),
		state:      StateCreated,
		parent:     ppid,
		children:   make(map[proc.Tpid]bool),
	}
}

// Start the first process, which has no parent.
func Spawn(k Kernel, name string, args []string) (*Process, *serr.Err) {
	return spawn(k, name, args, nil)
}

// Load name into a new process and start it as a child of p.
func (p *Process) Exec(name string, args []string) (proc.Tpid, *serr.Err) {
	c, err := spawn(p.k, name, args, p)
	if err != nil {
		return proc.NoPid, err
	}
	return c.pid, nil
}

// A process enters the registry and its parent's children only once
// it is loaded; a failed load leaves no trace.
func spawn(k Kernel, name string, args []string, parent *Process) (*Process, *serr.Err) {
	if k.Halted() {
		return nil, serr.NewErr(serr.TErrHalted, name)
	}
	prog, ok := k.Program(name)
	if !ok {
		db.DPrintf(db.UPROC_ERR, "spawn %v: no program", name)
		return nil, serr.NewErr(serr.TErrNotfound, name)
	}
	ppid := proc.NoPid
	if parent != nil {
		ppid = parent.pid
	}
	p := newProcess(k, name, ppid)
	if err := p.load(args); err != nil {
		db.DPrintf(db.UPROC_ERR, "spawn %v: load err %v", name, err)
		return nil, err
	}
	k.Registry().add(p)
	if parent != nil {
		parent.statusLock.Lock()
		parent.children[p.pid] = true
		parent.statusLock.Unlock()
	}
	p.statusLock.Lock()
	p.state = StateRunning
	p.statusLock.Unlock()

	db.DPrintf(db.UPROC, "spawn %v parent %v args %v", p, ppid, args)
	p.thread = kthread.Fork(p.pid.String()+"-"+name, func() { p.run(prog) })
	return p, nil
}

func (p *Process) load(args []string) *serr.Err {
	exe, err := p.k.Loader().Open(p.name)
	if err != nil {
		return err
	}
	if err := p.as.Load(exe, args); err != nil {
		return err
	}
	p.state = StateLoaded
	return nil
}

// Run prog on the process's thread. A program that panics exits
// abnormally; a panic while exiting is a kernel bug.
func (p *Process) run(prog Program) {
	defer func() {
		if r := recover(); r != nil {
			if p.exiting {
				panic(r)
			}
			db.DPrintf(db.UPROC_ERR, "%v: abnormal exit: %v", p, r)
			p.exit(proc.NewStatusErr(fmt.Sprint(r)))
		}
	}()
	ret := prog(p)
	p.Exit(ret)
}

// Wait for child pid to exit and collect its status. Fails with
// TErrNotChild if pid is not a child of p, including a child that was
// already joined.
func (p *Process) Join(pid proc.Tpid) (*proc.Status, *serr.Err) {
	reg := p.k.Registry()

	p.statusLock.Lock()
	ok := p.children[pid]
	p.statusLock.Unlock()
	if !ok {
		db.DPrintf(db.UPROC_ERR, "%v: join %v: not a child", p, pid)
		return nil, serr.NewErr(serr.TErrNotChild, pid)
	}
	c, ok := reg.Lookup(pid)
	if !ok {
		// another joiner collected it first
		return nil, serr.NewErr(serr.TErrNotChild, pid)
	}

	c.statusLock.Lock()
	for c.status == nil {
		p.statusLock.Lock()
		c.statusLock.Unlock()
		p.joinCond.Sleep()
		p.statusLock.Unlock()
		c.statusLock.Lock()
	}
	st := c.status
	c.statusLock.Unlock()

	p.statusLock.Lock()
	mine := p.children[pid]
	delete(p.children, pid)
	p.statusLock.Unlock()
	if !mine {
		return nil, serr.NewErr(serr.TErrNotChild, pid)
	}
	reg.remove(pid)
	db.DPrintf(db.UPROC, "%v: joined %v status %v", p, pid, st)
	return st, nil
}

// Exit with status and end the calling thread, which must be p's.
func (p *Process) Exit(status int) {
	p.exit(proc.NewStatus(int32(status)))
	kthread.Exit()
}

func (p *Process) exit(st *proc.Status) {
	p.exiting = true
	reg := p.k.Registry()

	npages := p.as.UnloadSections()
	nfiles := p.files.closeAll()
	db.DPrintf(db.UPROC, "%v: exit %v: freed %d pages, closed %d files", p, st, npages, nfiles)

	// Children let go before the status is visible, so no child
	// ever looks up a parent that has already been collected.
	p.releaseChildren()

	p.statusLock.Lock()
	p.status = st
	p.state = StateExited
	if p.parent == proc.NoPid {
		reg.remove(p.pid)
	} else {
		parent, ok := reg.Lookup(p.parent)
		if !ok {
			db.DFatalf("%v: parent %v not registered", p, p.parent)
		}
		// WakeAll: any number of threads may be joining the parent's
		// children; each re-checks its own child.
		parent.statusLock.Lock()
		n := parent.joinCond.WakeAll()
		parent.statusLock.Unlock()
		db.DPrintf(db.UPROC, "%v: woke %d joiners of %v", p, n, p.parent)
	}
	p.statusLock.Unlock()

	if reg.exited() == 0 {
		db.DPrintf(db.UPROC, "%v: last process exited, halting", p)
		p.k.Halt()
	}
}

// Reap children that have exited and orphan the rest.
func (p *Process) releaseChildren() {
	reg := p.k.Registry()

	p.statusLock.Lock()
	pids := maps.Keys(p.children)
	clear(p.children)
	p.statusLock.Unlock()

	slices.Sort(pids)
	for _, pid := range pids {
		c, ok := reg.Lookup(pid)
		if !ok {
			db.DFatalf("%v: child %v not registered", p, pid)
		}
		c.statusLock.Lock()
		if c.status != nil {
			reg.remove(pid)
			db.DPrintf(db.UPROC, "%v: reaped %v", p, pid)
		} else {
			c.parent = proc.NoPid
			db.DPrintf(db.UPROC, "%v: orphaned %v", p, pid)
		}
		c.statusLock.Unlock()
	}
}

func (p *Process) Pid() proc.Tpid {
	return p.pid
}

func (p *Process) Name() string {
	return p.name
}

func (p *Process) AddrSpace() *vm.AddrSpace {
	return p.as
}

func (p *Process) Thread() *kthread.Thread {
	return p.thread
}

func (p *Process) Parent() proc.Tpid {
	p.statusLock.Lock()
	defer p.statusLock.Unlock()
	return p.parent
}

// Pids of p's unjoined children, in order.
func (p *Process) Children() []proc.Tpid {
	p.statusLock.Lock()
	pids := maps.Keys(p.children)
	p.statusLock.Unlock()
	slices.Sort(pids)
	return pids
}

// The exit status, or nil if p has not exited.
func (p *Process) Status() *proc.Status {
	p.statusLock.Lock()
	defer p.statusLock.Unlock()
	return p.status
}

func (p *Process) State() Tstate {
	p.statusLock.Lock()
	defer p.statusLock.Unlock()
	return p.state
}

// The argument strings, read back from the process's argument page.
func (p *Process) Args() []string {
	argc, argv := p.as.Args()
	maxLen := p.k.Conf().Process.MAX_STRING_LEN
	args := make([]string, 0, argc)
	for i := 0; i < argc; i++ {
		ptr, ok := p.as.ReadInt32(argv + 4*i)
		if !ok {
			break
		}
		s, ok := p.as.ReadString(int(ptr), maxLen)
		if !ok {
			break
		}
		args = append(args, s)
	}
	return args
}

func (p *Process) String() string {
	return fmt.Sprintf("%v(%v)", p.pid, p.name)
}
