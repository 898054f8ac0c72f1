package snake

import "fmt"

// ConfigError reports a fatal configuration problem found by
// AppConfig's validation: an out-of-range grid dimension, fill
// fraction, frame dead time, or period. A duplicate channel assignment
// is not reported this way; NewChannelMap panics on it. Configuration
// errors must be surfaced before the core starts running; they are
// never retried.
type ConfigError struct {
	Field string
	Msg   string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("snake: invalid configuration field %s: %s", e.Field, e.Msg)
}

// StreamWarning reports a transient stream error — a malformed (ragged)
// batch — that the driver logs at warn and skips: the whole batch is
// dropped and the driver moves on to the next one.
type StreamWarning struct {
	Reason string
}

func (e *StreamWarning) Error() string {
	return fmt.Sprintf("snake: transient stream warning: %s", e.Reason)
}

// OrderingViolation reports an event whose time regressed relative to
// the previous event in the same batch. The offending event is dropped;
// the snake cursor is never rewound.
type OrderingViolation struct {
	PreviousTime Ps
	EventTime    Ps
}

func (e *OrderingViolation) Error() string {
	return fmt.Sprintf("snake: time regression: event at %d ps precedes previous event at %d ps", e.EventTime, e.PreviousTime)
}

// SnakeCorruptedError reports a cursor that could not find a cell with
// end_time >= time inside [offset, max_frame_time]. This indicates the
// snake's invariants (strictly ascending end_time, full frame coverage)
// have been violated — a fatal, unrecoverable condition. Dump carries a
// human-readable rendering of the snake state for postmortem diagnosis.
type SnakeCorruptedError struct {
	Time         Ps
	MaxFrameTime Ps
	Dump         string
}

func (e *SnakeCorruptedError) Error() string {
	return fmt.Sprintf("snake: lookup invariant violated for time %d ps (max_frame_time %d ps); dump:\n%s",
		e.Time, e.MaxFrameTime, e.Dump)
}
