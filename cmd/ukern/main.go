package main

//
// Boot a simulated machine and run the shell with the remaining
// arguments as command lines, e.g.
//
//   ukern -conf ukern.yaml "write f hello" "cat f" "echo a & echo b"
//

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"

	"ukern/config"
	db "ukern/debug"
	"ukern/kernel"
	"ukern/uprogs"
)

var (
	confPath   string
	physPages  int
	stackPages int
)

func init() {
	flag.StringVar(&confPath, "conf", "", "YAML config file (defaults built in)")
	flag.IntVar(&physPages, "pages", 0, "override machine.phys_pages")
	flag.IntVar(&stackPages, "stack", 0, "override process.stack_pages")
}

func readConfig() (*config.Config, error) {
	conf := config.Default()
	if confPath != "" {
		c, err := config.ReadConfigFile(confPath)
		if err != nil {
			return nil, err
		}
		conf = c
	}
	over := map[string]interface{}{}
	if physPages > 0 {
		over["machine"] = map[string]interface{}{"phys_pages": physPages}
	}
	if stackPages > 0 {
		over["process"] = map[string]interface{}{"stack_pages": stackPages}
	}
	if err := config.Override(conf, over); err != nil {
		return nil, err
	}
	return conf, nil
}

func main() {
	flag.Parse()
	if flag.NArg() < 1 {
		fmt.Fprintf(os.Stderr, "Usage: %v [-conf file] [-pages n] [-stack n] cmdline...\n", os.Args[0])
		os.Exit(1)
	}
	db.Name("ukern")

	conf, err := readConfig()
	if err != nil {
		db.DFatalf("config: %v", err)
	}
	k := kernel.Boot(conf, os.Stdin, os.Stdout)
	if err := uprogs.Install(k); err != nil {
		db.DFatalf("install: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	k.StartClock(ctx)

	if _, err := k.Run("sh", append([]string{"sh"}, flag.Args()...)); err != nil {
		db.DFatalf("run sh: %v", err)
	}
	if err := k.WaitHalt(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "%v: %v\n", os.Args[0], err)
		os.Exit(1)
	}
	db.Sync()
}
