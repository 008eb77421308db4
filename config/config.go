package config

import (
	"os"
	"strings"
	"time"

	"github.com/mitchellh/mapstructure"
	"gopkg.in/yaml.v3"

	db "ukern/debug"
)

// Default machine and kernel parameters.
var local = `
machine:
  phys_pages: 64
  page_size: 1024
  ticks_per_interrupt: 500
  tick_interval: 1ms

process:
  stack_pages: 8
  max_open_files: 16
  max_string_len: 256

loader:
  cache_size: 16

lock:
  deadlock_timeout: 30s
`

type Config struct {
	Machine struct {
		// Number of physical pages of main memory.
		PHYS_PAGES int `yaml:"phys_pages"`
		// Bytes per page.
		PAGE_SIZE int `yaml:"page_size"`
		// Clock ticks between two timer interrupts.
		TICKS_PER_INTERRUPT int64 `yaml:"ticks_per_interrupt"`
		// Real time between two timer interrupts when the timer runs
		// on its own.
		TICK_INTERVAL time.Duration `yaml:"tick_interval"`
	} `yaml:"machine"`
	Process struct {
		// Pages of stack given to each user process.
		STACK_PAGES int `yaml:"stack_pages"`
		// Size of a process's file descriptor table.
		MAX_OPEN_FILES int `yaml:"max_open_files"`
		// Longest path or argument string a syscall reads.
		MAX_STRING_LEN int `yaml:"max_string_len"`
	} `yaml:"process"`
	Loader struct {
		// Number of parsed executables kept by the loader.
		CACHE_SIZE int `yaml:"cache_size"`
	} `yaml:"loader"`
	Lock struct {
		// Report a kernel lock as deadlocked after it is held this long.
		DEADLOCK_TIMEOUT time.Duration `yaml:"deadlock_timeout"`
	} `yaml:"lock"`
}

func Default() *Config {
	conf, err := ReadConfig(local)
	if err != nil {
		db.DFatalf("Yaml decode default config err %v", err)
	}
	return conf
}

func ReadConfig(params string) (*Config, error) {
	config := &Config{}
	d := yaml.NewDecoder(strings.NewReader(params))
	if err := d.Decode(config); err != nil {
		return nil, err
	}
	return config, nil
}

// Read a config file; parameters missing from the file keep their
// default values.
func ReadConfigFile(pn string) (*Config, error) {
	config := Default()
	file, err := os.Open(pn)
	if err != nil {
		return nil, err
	}
	defer file.Close()
	d := yaml.NewDecoder(file)
	if err := d.Decode(config); err != nil {
		return nil, err
	}
	return config, nil
}

// Override parameters from a nested map using the yaml names, e.g.
// {"machine": {"phys_pages": 16}}. Durations may be given as strings.
func Override(config *Config, params map[string]interface{}) error {
	d, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		DecodeHook:       mapstructure.StringToTimeDurationHookFunc(),
		TagName:          "yaml",
		WeaklyTypedInput: true,
		Result:           config,
	})
	if err != nil {
		return err
	}
	return d.Decode(params)
}

func (c *Config) PhysMemBytes() int {
	return c.Machine.PHYS_PAGES * c.Machine.PAGE_SIZE
}
