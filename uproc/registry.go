package uproc

import (
	"fmt"
	"sync"

	db "ukern/debug"
	"ukern/proc"
)

// The process table. The registry owns every process record; parent
// and child links are pids looked up here. A record stays until its
// exit status has been collected: by its parent's join, or at exit
// when it has no parent.
type Registry struct {
	sync.Mutex
	procs map[proc.Tpid]*Process
	last  proc.Tpid
	nlive int
}

func NewRegistry() *Registry {
	return &Registry{procs: make(map[proc.Tpid]*Process)}
}

// Assign p a fresh pid and enter it.
func (r *Registry) add(p *Process) proc.Tpid {
	r.Lock()
	defer r.Unlock()
	r.last++
	p.pid = r.last
	r.procs[p.pid] = p
	r.nlive++
	db.DPrintf(db.UPROC, "Registry add %v %v live %d", p.pid, p.name, r.nlive)
	return p.pid
}

func (r *Registry) Lookup(pid proc.Tpid) (*Process, bool) {
	r.Lock()
	defer r.Unlock()
	p, ok := r.procs[pid]
	return p, ok
}

func (r *Registry) remove(pid proc.Tpid) {
	r.Lock()
	defer r.Unlock()
	if _, ok := r.procs[pid]; !ok {
		db.DFatalf("Registry remove %v: not present", pid)
	}
	delete(r.procs, pid)
	db.DPrintf(db.UPROC, "Registry remove %v", pid)
}

// Record that a process has exited; returns the number still live.
func (r *Registry) exited() int {
	r.Lock()
	defer r.Unlock()
	r.nlive--
	return r.nlive
}

// Number of records, including exited processes nobody has joined.
func (r *Registry) Len() int {
	r.Lock()
	defer r.Unlock()
	return len(r.procs)
}

// Number of processes that have not exited.
func (r *Registry) NLive() int {
	r.Lock()
	defer r.Unlock()
	return r.nlive
}

func (r *Registry) String() string {
	r.Lock()
	defer r.Unlock()
	return fmt.Sprintf("&{ procs:%d live:%d last:%v }", len(r.procs), r.nlive, r.last)
}
