package testlog

import (
	"fmt"
	"testing"

	"github.com/ethereum/go-ethereum/log"
	"github.com/stretchr/testify/require"
)

type recorder struct {
	lines    []string
	cleanups []func()
}

func (r *recorder) Logf(format string, args ...any) { r.lines = append(r.lines, fmt.Sprintf(format, args...)) }
func (r *recorder) Helper()                         {}
func (r *recorder) Cleanup(fn func())               { r.cleanups = append(r.cleanups, fn) }

func TestLoggerRespectsLevelAndCleanup(t *testing.T) {
	r := &recorder{}
	l := Logger(r, log.LvlInfo)

	l.Debug("quiet")
	l.New("service", "test").Info("loud", "n", 1)
	require.Len(t, r.lines, 1)
	require.Contains(t, r.lines[0], "loud")
	require.Contains(t, r.lines[0], "service=test")

	for _, fn := range r.cleanups {
		fn()
	}
	l.Error("after the end")
	require.Len(t, r.lines, 1)
}
