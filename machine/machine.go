package machine

import (
	"io"
	"sync"

	"ukern/config"
	db "ukern/debug"
)

// A simulated single-CPU machine: main memory, a timer, and a console.
type Machine struct {
	Mem     *Memory
	Timer   *Timer
	Console *Console
	once    sync.Once
	halted  chan struct{}
}

func NewMachine(conf *config.Config, in io.Reader, out io.Writer) *Machine {
	m := &Machine{
		Mem:     NewMemory(conf.Machine.PHYS_PAGES, conf.Machine.PAGE_SIZE),
		Timer:   NewTimer(conf.Machine.TICKS_PER_INTERRUPT),
		Console: NewConsole(in, out),
		halted:  make(chan struct{}),
	}
	db.DPrintf(db.MACHINE, "NewMachine mem %v", m.Mem)
	return m
}

// Stop the machine. Safe to call more than once.
func (m *Machine) Halt() {
	m.once.Do(func() {
		db.DPrintf(db.MACHINE, "Halt at tick %d", m.Timer.Time())
		close(m.halted)
		db.Sync()
	})
}

func (m *Machine) Halted() <-chan struct{} {
	return m.halted
}

func (m *Machine) IsHalted() bool {
	select {
	case <-m.halted:
		return true
	default:
		return false
	}
}
