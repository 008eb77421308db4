package debug

type Tselector string

// ALWAYS
const (
	ALWAYS Tselector = "ALWAYS"
	ERROR            = "ERROR"
	NEVER            = "NEVER"
)

// ERR
const (
	ERR Tselector = "_ERR"
)

// Tests
const (
	TEST  Tselector = "TEST"
	TEST1           = "TEST1"
	STAT            = "STAT"
)

// Threads and synchronization
const (
	KTHREAD  Tselector = "KTHREAD"
	LOCK               = "LOCK"
	COND               = "COND"
	ALARM              = "ALARM"
	COMM               = "COMM"
	COMM_ERR           = COMM + ERR
)

// Machine
const (
	MACHINE     Tselector = "MACHINE"
	TIMER                 = "TIMER"
	PHYSMEM               = "PHYSMEM"
	PHYSMEM_ERR           = PHYSMEM + ERR
)

// Memory management and loading
const (
	VM         Tselector = "VM"
	VM_ERR               = VM + ERR
	LOADER               = "LOADER"
	LOADER_ERR           = LOADER + ERR
	COFF                 = "COFF"
	STUBFS               = "STUBFS"
)

// Processes
const (
	UPROC       Tselector = "UPROC"
	UPROC_ERR             = UPROC + ERR
	SYSCALL               = "SYSCALL"
	SYSCALL_ERR           = SYSCALL + ERR
	KERNEL                = "KERNEL"
)
