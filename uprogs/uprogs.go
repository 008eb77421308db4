// Package uprogs holds the user programs the ukern command installs:
// a small shell and a handful of utilities built on ulib.
package uprogs

import (
	"strconv"
	"strings"

	"ukern/alarm"
	"ukern/kernel"
	"ukern/serr"
	"ukern/ulib"
	"ukern/uproc"
)

// The arguments after the program name.
func rest(args []string) []string {
	if len(args) == 0 {
		return nil
	}
	return args[1:]
}

func Echo(p *uproc.Process) int {
	e := ulib.NewEnv(p)
	if e.Printf("%s\n", strings.Join(rest(e.Args()), " ")) < 0 {
		return 1
	}
	return 0
}

func Cat(p *uproc.Process) int {
	e := ulib.NewEnv(p)
	for _, name := range rest(e.Args()) {
		fd := e.Open(name)
		if fd < 0 {
			e.Printf("cat: %s: no such file\n", name)
			return 1
		}
		for {
			b, n := e.Read(fd, 128)
			if n <= 0 {
				break
			}
			e.Write(uproc.STDOUT, b)
		}
		e.Close(fd)
	}
	return 0
}

// write name word...: replace name with the words.
func Write(p *uproc.Process) int {
	e := ulib.NewEnv(p)
	args := e.Args()
	if len(args) < 2 {
		return 1
	}
	fd := e.Creat(args[1])
	if fd < 0 {
		return 1
	}
	defer e.Close(fd)
	data := []byte(strings.Join(args[2:], " "))
	if e.Write(fd, data) != len(data) {
		return 1
	}
	return 0
}

func Rm(p *uproc.Process) int {
	e := ulib.NewEnv(p)
	for _, name := range rest(e.Args()) {
		if e.Unlink(name) < 0 {
			return 1
		}
	}
	return 0
}

// exit n: exit with status n.
func Exit(p *uproc.Process) int {
	e := ulib.NewEnv(p)
	args := e.Args()
	if len(args) < 2 {
		return 0
	}
	n, err := strconv.Atoi(args[1])
	if err != nil {
		return -1
	}
	e.Exit(n)
	return n
}

func Crash(p *uproc.Process) int {
	panic("crash: " + strings.Join(rest(p.Args()), " "))
}

func Halt(p *uproc.Process) int {
	ulib.NewEnv(p).Halt()
	return 0
}

// sleep ticks: sleep on the machine's alarm.
func Sleep(a *alarm.Alarm) uproc.Program {
	return func(p *uproc.Process) int {
		args := p.Args()
		if len(args) < 2 {
			return 1
		}
		n, err := strconv.ParseInt(args[1], 10, 64)
		if err != nil {
			return 1
		}
		a.WaitUntil(n)
		return 0
	}
}

// sh cmd...: run each argument as a command line, one at a time,
// and report how it exited. Commands separated by "&" in one argument
// run concurrently.
func Sh(p *uproc.Process) int {
	e := ulib.NewEnv(p)
	failed := 0
	for _, line := range rest(e.Args()) {
		pids := []int{}
		for _, cmd := range strings.Split(line, "&") {
			argv := strings.Fields(cmd)
			if len(argv) == 0 {
				continue
			}
			pid := e.Exec(argv[0], argv...)
			if pid < 0 {
				e.Printf("sh: %s: exec failed\n", argv[0])
				failed++
				continue
			}
			pids = append(pids, pid)
		}
		for _, pid := range pids {
			r, st := e.Join(pid)
			switch r {
			case 1:
				e.Printf("[%d] exit %d\n", pid, st)
				if st != 0 {
					failed++
				}
			case 0:
				e.Printf("[%d] killed\n", pid)
				failed++
			default:
				e.Printf("[%d] join failed\n", pid)
				failed++
			}
		}
	}
	return failed
}

// Install the programs on k.
func Install(k *kernel.Kernel) *serr.Err {
	progs := map[string]uproc.Program{
		"sh":    Sh,
		"echo":  Echo,
		"cat":   Cat,
		"write": Write,
		"rm":    Rm,
		"exit":  Exit,
		"crash": Crash,
		"halt":  Halt,
		"sleep": Sleep(k.Alarm()),
	}
	for name, prog := range progs {
		if err := k.Install(name, prog, nil); err != nil {
			return err
		}
	}
	return nil
}
