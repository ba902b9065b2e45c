package log

import (
	"io"
	"os"
	"sync"
	"testing"
)

// testLogLevelEnv narrows what verbose test runs print, e.g. "error".
const testLogLevelEnv = "SQ_TEST_LOG_LEVEL"

var (
	testingLoggerOnce sync.Once
	testingLogger     Logger
)

// TestingLogger returns a logger writing to stdout when tests run with -v and
// a nop logger otherwise. It must be called from inside a test, the verbose
// flag is not parsed yet in init funcs.
func TestingLogger() Logger {
	testingLoggerOnce.Do(func() {
		testingLogger = newTestingLogger(os.Stdout, testing.Verbose(), os.Getenv(testLogLevelEnv))
	})
	return testingLogger
}

func newTestingLogger(w io.Writer, verbose bool, lvl string) Logger {
	if !verbose {
		return NewNopLogger()
	}
	l := NewTMLogger(NewSyncWriter(w))
	if lvl == "" {
		return l
	}
	filtered, err := NewFilter(l, lvl)
	if err != nil {
		l.Error("Ignoring test log level", "level", lvl, "err", err)
		return l
	}
	return filtered
}
