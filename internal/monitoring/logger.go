// Package monitoring is the operational (not hot-path) logger for
// snakecore: the occasional startup/shutdown/backpressure line a human
// operator reads, as distinct from internal/snake's own high-rate
// ops/diag/trace streams (internal/snake/logging.go), which exist
// precisely because this logger is too coarse-grained for per-event use.
package monitoring

import "log"

// Logf is the package-level diagnostic logger. It defaults to log.Printf but may
// be replaced by SetLogger. Tests or production code can redirect or mute it.
var Logf func(format string, v ...interface{}) = log.Printf

// SetLogger replaces the package logger. Passing nil will set a no-op logger.
func SetLogger(f func(format string, v ...interface{})) {
	if f == nil {
		Logf = func(string, ...interface{}) {}
		return
	}
	Logf = f
}

// WithSession returns a logging func that prefixes every message it
// logs with an acquisition's session id, so the lines a caller routes
// through it (cmd/snakecore's post-load and shutdown-summary lines) can
// be grep'd together even when snakecore's stdout interleaves several
// runs (e.g. under a process supervisor that restarts on tagger fault).
// Lines logged through Logf directly, such as the startup line and the
// renderer sink's stall warning, carry no session prefix.
func WithSession(sessionID string) func(format string, v ...interface{}) {
	return func(format string, v ...interface{}) {
		Logf("[session %s] "+format, append([]interface{}{sessionID}, v...)...)
	}
}
