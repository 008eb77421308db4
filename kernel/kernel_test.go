package kernel_test

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ukern/config"
	"ukern/kernel"
	"ukern/uprogs"
)

type Tstate struct {
	t   *testing.T
	k   *kernel.Kernel
	out *bytes.Buffer
}

func newTstate(t *testing.T) *Tstate {
	out := &bytes.Buffer{}
	k := kernel.Boot(config.Default(), nil, out)
	require.Nil(t, uprogs.Install(k))
	return &Tstate{t: t, k: k, out: out}
}

func (ts *Tstate) sh(lines ...string) {
	_, err := ts.k.Run("sh", append([]string{"sh"}, lines...))
	require.Nil(ts.t, err)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	require.Nil(ts.t, ts.k.WaitHalt(ctx))
	assert.Equal(ts.t, ts.k.Pool().NTotal(), ts.k.Pool().NFree())
	assert.Equal(ts.t, 0, ts.k.Registry().Len())
}

func TestBoot(t *testing.T) {
	ts := newTstate(t)
	conf := ts.k.Conf()
	assert.Equal(t, conf.Machine.PHYS_PAGES, ts.k.Pool().NFree())
	assert.False(t, ts.k.Halted())
	_, ok := ts.k.Program("sh")
	assert.True(t, ok)
	_, ok = ts.k.Program("nosuch")
	assert.False(t, ok)
	_, err := ts.k.Run("nosuch", nil)
	assert.NotNil(t, err)
}

func TestShell(t *testing.T) {
	ts := newTstate(t)
	ts.sh("echo hello world", "write f a b", "cat f", "rm f", "cat f")
	out := ts.out.String()
	assert.Contains(t, out, "hello world\n")
	assert.Contains(t, out, "a b[")
	assert.Contains(t, out, "cat: f: no such file\n")
	assert.Contains(t, out, "exit 1\n")
	_, err := ts.k.FS().GetFile("f")
	assert.NotNil(t, err)
}

func TestShellStatus(t *testing.T) {
	ts := newTstate(t)
	ts.sh("exit 3", "crash now", "nosuch")
	out := ts.out.String()
	assert.Contains(t, out, "exit 3\n")
	assert.Contains(t, out, "killed\n")
	assert.Contains(t, out, "sh: nosuch: exec failed\n")
}

func TestShellConcurrent(t *testing.T) {
	ts := newTstate(t)
	ts.sh("echo x & echo y & exit 2", "echo z")
	out := ts.out.String()
	assert.Contains(t, out, "x\n")
	assert.Contains(t, out, "y\n")
	assert.Contains(t, out, "exit 2\n")
	assert.Contains(t, out, "z\n")
}

func TestSleep(t *testing.T) {
	ts := newTstate(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	ts.k.StartClock(ctx)
	start := ts.k.Machine().Timer.Time()
	ts.sh("sleep 1000 & sleep 2000")
	assert.True(t, ts.k.Machine().Timer.Time()-start >= 2000)
	st := ts.k.Alarm().Stats()
	assert.Equal(t, 2, st.N)
	assert.True(t, st.Max < float64(ts.k.Conf().Machine.TICKS_PER_INTERRUPT))
}

func TestHalt(t *testing.T) {
	ts := newTstate(t)
	_, err := ts.k.Run("sh", []string{"sh", "halt"})
	require.Nil(t, err)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	require.Nil(t, ts.k.WaitHalt(ctx))
	assert.True(t, ts.k.Halted())
}
