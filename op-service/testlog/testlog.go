// Package testlog provides a log handler for unit tests.
package testlog

import (
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum/log"
)

// Testing is the subset of testing.TB the logger needs.
type Testing interface {
	Logf(format string, args ...any)
	Helper()
	Cleanup(func())
}

// Logger returns a logger which logs to the unit test's log of t.
// Records emitted after the test finished are dropped, since the testing
// package panics on late writes.
func Logger(t Testing, level log.Lvl) log.Logger {
	var (
		mu   sync.Mutex
		done bool
	)
	t.Cleanup(func() {
		mu.Lock()
		defer mu.Unlock()
		done = true
	})

	format := log.TerminalFormat(false)
	h := log.FuncHandler(func(r *log.Record) error {
		mu.Lock()
		defer mu.Unlock()
		if done {
			return nil
		}
		t.Helper()
		t.Logf("%s", strings.TrimRight(string(format.Format(r)), "\n"))
		return nil
	})

	l := log.New()
	l.SetHandler(log.LvlFilterHandler(level, h))
	return l
}
