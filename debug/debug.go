package debug

import (
	"fmt"
	"os"
	"runtime"
	"strings"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

//
// Debug output is controled by UKERNDEBUG environment variable, which
// can be a list of labels (e.g., "ALARM;COND").
//

const UKERNDEBUG = "UKERNDEBUG"

var (
	mu     sync.Mutex
	labels map[Tselector]bool
	log    *zap.SugaredLogger
	name   = "ukern"
)

func init() {
	labels = debugLabels()
	log = newLogger()
}

func newLogger() *zap.SugaredLogger {
	ecfg := zap.NewDevelopmentEncoderConfig()
	ecfg.TimeKey = "T"
	ecfg.EncodeTime = zapcore.TimeEncoderOfLayout("15:04:05.000000")
	ecfg.CallerKey = ""
	ecfg.LevelKey = ""
	core := zapcore.NewCore(zapcore.NewConsoleEncoder(ecfg), zapcore.Lock(os.Stderr), zapcore.DebugLevel)
	return zap.New(core).Sugar()
}

func debugLabels() map[Tselector]bool {
	m := make(map[Tselector]bool)
	s := os.Getenv(UKERNDEBUG)
	if s == "" {
		return m
	}
	for _, l := range strings.Split(s, ";") {
		m[Tselector(l)] = true
	}
	return m
}

// Set the name printed in front of every debug line (e.g., the name of
// the test or command).
func Name(n string) {
	mu.Lock()
	defer mu.Unlock()
	name = n
}

// Enable or disable a selector at run time; mostly for tests.
func Enable(label Tselector, on bool) {
	mu.Lock()
	defer mu.Unlock()
	if on {
		labels[label] = true
	} else {
		delete(labels, label)
	}
}

func WillBePrinted(label Tselector) bool {
	mu.Lock()
	defer mu.Unlock()
	_, ok := labels[label]
	return ok || label == ALWAYS || label == ERROR
}

func DPrintf(label Tselector, format string, v ...interface{}) {
	if WillBePrinted(label) {
		mu.Lock()
		n := name
		mu.Unlock()
		log.Infof("%v %v %v", n, label, fmt.Sprintf(format, v...))
	}
}

func DFatalf(format string, v ...interface{}) {
	// Get info for the caller.
	pc, file, line, ok := runtime.Caller(1)
	fnDetails := runtime.FuncForPC(pc)
	if ok && fnDetails != nil {
		log.Fatalf("FATAL %v %v %v:%v %v", name, fnDetails.Name(), file, line, fmt.Sprintf(format, v...))
	} else {
		log.Fatalf("FATAL %v (missing details) %v", name, fmt.Sprintf(format, v...))
	}
}

// Flush buffered log output; called before the machine halts.
func Sync() {
	log.Sync()
}
