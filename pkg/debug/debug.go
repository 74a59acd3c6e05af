// Package debug provides conditional debug logging for tt.
//
// Debug logging is enabled by setting the TT_DEBUG environment variable:
//
//	TT_DEBUG=1 tt tree
//
// Messages go through the global zerolog logger, tagged with
// component=debug. When disabled (default), all functions are no-ops.
package debug

import (
	"fmt"
	"os"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/vanderheijden86/topictree/pkg/logging"
)

var (
	enabled    atomic.Bool
	checkpoint atomic.Int64
)

func init() {
	enabled.Store(os.Getenv("TT_DEBUG") != "")
}

// Enabled returns whether debug logging is enabled.
func Enabled() bool {
	return enabled.Load()
}

// SetEnabled allows programmatic control of debug logging.
func SetEnabled(e bool) {
	enabled.Store(e)
}

// event logs without a level so TT_DEBUG output survives logging.level=info.
func event() *zerolog.Event {
	return logging.Logger.Log().Str("component", "debug")
}

// Log writes a printf-style debug message.
func Log(format string, args ...any) {
	if !Enabled() {
		return
	}
	event().Msgf(format, args...)
}

// LogTiming writes a timing message.
func LogTiming(name string, d time.Duration) {
	if !Enabled() {
		return
	}
	event().Str("op", name).Dur("elapsed", d).Msg("timing")
}

// LogIf writes a debug message only if the condition is true.
func LogIf(cond bool, format string, args ...any) {
	if !cond {
		return
	}
	Log(format, args...)
}

// LogEnterExit logs function entry and exit with timing.
//
//	defer debug.LogEnterExit("Build")()
func LogEnterExit(name string) func() {
	if !Enabled() {
		return func() {}
	}
	event().Str("op", name).Msg("enter")
	start := time.Now()
	return func() {
		event().Str("op", name).Dur("elapsed", time.Since(start)).Msg("exit")
	}
}

// Dump logs a value with its type.
func Dump(name string, v any) {
	if !Enabled() {
		return
	}
	event().Str("name", name).Str("type", fmt.Sprintf("%T", v)).Msgf("%+v", v)
}

// Checkpoint logs a numbered checkpoint.
func Checkpoint(msg string) {
	if !Enabled() {
		return
	}
	event().Int64("checkpoint", checkpoint.Add(1)).Msg(msg)
}

// ResetCheckpoints resets the checkpoint counter.
func ResetCheckpoints() {
	checkpoint.Store(0)
}

// Assert panics if the condition is false. Only active when debug is enabled.
func Assert(cond bool, msg string) {
	if !Enabled() || cond {
		return
	}
	event().Msgf("ASSERTION FAILED: %s", msg)
	panic(fmt.Sprintf("debug assertion failed: %s", msg))
}
