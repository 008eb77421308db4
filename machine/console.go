package machine

import (
	"io"
	"sync"
)

// The serial console. File descriptors 0 and 1 of every user process
// refer to it.
type Console struct {
	mu  sync.Mutex
	in  io.Reader
	out io.Writer
}

func NewConsole(in io.Reader, out io.Writer) *Console {
	return &Console{in: in, out: out}
}

func (c *Console) Read(b []byte) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.in == nil {
		return 0, io.EOF
	}
	return c.in.Read(b)
}

func (c *Console) Write(b []byte) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.out == nil {
		return len(b), nil
	}
	return c.out.Write(b)
}
