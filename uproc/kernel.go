package uproc

import (
	"ukern/config"
	"ukern/loader"
	"ukern/machine"
	"ukern/physmem"
	"ukern/stubfs"
)

// The code a user process runs. A program sees the kernel only
// through its process's syscalls and user memory; its return value is
// passed to exit.
type Program func(p *Process) int

// What user processes need from the kernel they run on.
type Kernel interface {
	Conf() *config.Config
	Pool() *physmem.Pool
	Loader() *loader.Loader
	FS() *stubfs.FileSystem
	Console() *machine.Console
	Registry() *Registry
	Program(name string) (Program, bool)
	Halt()
	Halted() bool
}
