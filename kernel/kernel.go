package kernel

import (
	"context"
	"io"
	"sync"

	"ukern/alarm"
	"ukern/coff"
	"ukern/config"
	db "ukern/debug"
	"ukern/loader"
	"ukern/lock"
	"ukern/machine"
	"ukern/physmem"
	"ukern/proc"
	"ukern/serr"
	"ukern/stubfs"
	"ukern/uproc"
)

// The kernel of one simulated machine: memory, clock, alarm, file
// system and the process table.
type Kernel struct {
	sync.Mutex
	conf     *config.Config
	mach     *machine.Machine
	pool     *physmem.Pool
	alarm    *alarm.Alarm
	fs       *stubfs.FileSystem
	ld       *loader.Loader
	reg      *uproc.Registry
	programs map[string]uproc.Program
}

// Boot a machine configured by conf whose console reads in and
// writes out.
func Boot(conf *config.Config, in io.Reader, out io.Writer) *Kernel {
	lock.SetDeadlockTimeout(conf.Lock.DEADLOCK_TIMEOUT)
	k := &Kernel{
		conf:     conf,
		mach:     machine.NewMachine(conf, in, out),
		fs:       stubfs.NewFileSystem(),
		reg:      uproc.NewRegistry(),
		programs: make(map[string]uproc.Program),
	}
	k.pool = physmem.NewPool(k.mach.Mem)
	k.alarm = alarm.NewAlarm(k.mach.Timer)
	k.ld = loader.NewLoader(k.fs, conf.Machine.PAGE_SIZE, conf.Machine.PHYS_PAGES, conf.Loader.CACHE_SIZE)
	db.DPrintf(db.KERNEL, "Boot mem %v pool %v", k.mach.Mem, k.pool)
	return k
}

// Install prog as the executable name, writing img to the file
// system. A nil img gets a default image.
func (k *Kernel) Install(name string, prog uproc.Program, img *coff.Image) *serr.Err {
	if img == nil {
		img = DefaultImage(k.conf.Machine.PAGE_SIZE)
	}
	if err := k.fs.PutFile(name, img.Marshal()); err != nil {
		return err
	}
	k.Lock()
	defer k.Unlock()
	k.programs[name] = prog
	db.DPrintf(db.KERNEL, "Install %v (%d pages)", name, img.NumPages())
	return nil
}

// Start the first user process.
func (k *Kernel) Run(name string, args []string) (*uproc.Process, *serr.Err) {
	p, err := uproc.Spawn(k, name, args)
	if err != nil {
		db.DPrintf(db.KERNEL, "Run %v: %v", name, err)
		return nil, err
	}
	db.DPrintf(db.KERNEL, "Run %v as %v", name, p.Pid())
	return p, nil
}

// Deliver timer interrupts in real time until ctx is done or the
// machine halts.
func (k *Kernel) StartClock(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	go func() {
		select {
		case <-k.mach.Halted():
		case <-ctx.Done():
		}
		cancel()
	}()
	k.mach.Timer.Start(ctx, k.conf.Machine.TICK_INTERVAL)
}

// Wait for the machine to halt.
func (k *Kernel) WaitHalt(ctx context.Context) error {
	select {
	case <-k.mach.Halted():
		db.DPrintf(db.STAT, "alarm oversleep %v", k.alarm.Stats())
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Look up a live or unjoined process.
func (k *Kernel) Lookup(pid proc.Tpid) (*uproc.Process, bool) {
	return k.reg.Lookup(pid)
}

func (k *Kernel) Conf() *config.Config {
	return k.conf
}

func (k *Kernel) Machine() *machine.Machine {
	return k.mach
}

func (k *Kernel) Pool() *physmem.Pool {
	return k.pool
}

func (k *Kernel) Alarm() *alarm.Alarm {
	return k.alarm
}

func (k *Kernel) Loader() *loader.Loader {
	return k.ld
}

func (k *Kernel) FS() *stubfs.FileSystem {
	return k.fs
}

func (k *Kernel) Console() *machine.Console {
	return k.mach.Console
}

func (k *Kernel) Registry() *uproc.Registry {
	return k.reg
}

func (k *Kernel) Program(name string) (uproc.Program, bool) {
	k.Lock()
	defer k.Unlock()
	prog, ok := k.programs[name]
	return prog, ok
}

func (k *Kernel) Halt() {
	k.mach.Halt()
}

func (k *Kernel) Halted() bool {
	return k.mach.IsHalted()
}
