package snake

import (
	"io"
	"log"
)

// Three independent logging streams, mirroring how a high-rate hot path
// needs different volumes of detail available without coupling them to
// a single level knob:
//   - ops:   actionable warnings and errors (dropped events, config faults)
//   - diag:  day-to-day diagnostics (frame boundaries, snake rebuilds)
//   - trace: per-event telemetry, off by default — too hot to leave on
var (
	opsLogger   *log.Logger
	diagLogger  *log.Logger
	traceLogger *log.Logger
)

// SetLogWriters configures the three logging streams. Pass nil for any
// writer to disable that stream.
func SetLogWriters(ops, diag, trace io.Writer) {
	opsLogger = newLogger("[snake] ", ops)
	diagLogger = newLogger("[snake] ", diag)
	traceLogger = newLogger("[snake] ", trace)
}

func newLogger(prefix string, w io.Writer) *log.Logger {
	if w == nil {
		return nil
	}
	return log.New(w, prefix, log.LstdFlags|log.Lmicroseconds)
}

// opsf logs to the ops stream: things an operator should see.
func opsf(format string, args ...interface{}) {
	if opsLogger != nil {
		opsLogger.Printf(format, args...)
	}
}

// diagf logs to the diag stream: routine operational detail.
func diagf(format string, args ...interface{}) {
	if diagLogger != nil {
		diagLogger.Printf(format, args...)
	}
}

// tracef logs to the trace stream: high-frequency per-event detail.
func tracef(format string, args ...interface{}) {
	if traceLogger != nil {
		traceLogger.Printf(format, args...)
	}
}

// DO NOT add Debugf, that's an anti-pattern. Each callsite needs to use opsf, diagf, or tracef.
