package proc

import (
	"strconv"
)

// Process identifier. Pids are handed out by the process registry,
// starting at 1, and never reused.
type Tpid int

// The parent of a process whose parent has exited, and of the first
// process.
const NoPid Tpid = 0

func (pid Tpid) String() string {
	if pid == NoPid {
		return "nopid"
	}
	return "pid-" + strconv.Itoa(int(pid))
}
