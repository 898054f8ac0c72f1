// Package taggerbridge defines the boundary between the time-tagger
// hardware driver and the reconstruction core: an EventSource that
// yields batches of raw tag events. The vendor's driver protocol lives
// on the far side of this boundary; the package ships the interface
// plus two reference adapters rather than any particular instrument
// protocol: an in-memory ReplaySource and a SerialEventSource built
// around a bare io.ReadWriteCloser.
package taggerbridge

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/snakecore/tagimage/internal/snake"
	"github.com/snakecore/tagimage/internal/timeutil"
)

// EventBatch is the structure-of-arrays wire shape of the inbound
// event stream: four equal-length columns. Batch boundaries carry no
// semantic meaning.
type EventBatch struct {
	Type    []uint8
	Missed  []uint16
	Channel []int32
	TimePs  []int64
}

// Len reports the number of rows in the batch.
func (b EventBatch) Len() int { return len(b.TimePs) }

// Validate reports a column-length mismatch, the one structural fault
// a SoA batch can carry. A ragged batch is a transient fault: the
// driver logs it and moves to the next batch.
func (b EventBatch) Validate() error {
	n := len(b.TimePs)
	if len(b.Type) != n || len(b.Missed) != n || len(b.Channel) != n {
		return fmt.Errorf("taggerbridge: ragged event batch: type=%d missed=%d channel=%d time=%d",
			len(b.Type), len(b.Missed), len(b.Channel), n)
	}
	return nil
}

// ToRawEvents flattens the SoA batch into the classifier's row-major
// RawEvent slice. The classifier works row-at-a-time; the wire format
// stays columnar because that's how the tagger bridge actually
// delivers it.
func (b EventBatch) ToRawEvents() []snake.RawEvent {
	out := make([]snake.RawEvent, b.Len())
	for i := range out {
		out[i] = snake.RawEvent{
			Type:         b.Type[i],
			MissedEvents: b.Missed[i],
			Channel:      b.Channel[i],
			Time:         snake.Ps(b.TimePs[i]),
		}
	}
	return out
}

// EventSource is the pull-based collaborator interface the stream
// driver consumes: NextBatch blocks until a batch is
// ready, the context is canceled, or the stream ends.
type EventSource interface {
	NextBatch(ctx context.Context) (EventBatch, error)
	Close() error
}

// ToBatchSource adapts an EventSource to snake.BatchSource, translating
// io.EOF-style end-of-stream into the (ok=false) sentinel the driver's
// Run loop expects.
func ToBatchSource(src EventSource) snake.BatchSource {
	return &batchSourceAdapter{src: src}
}

type batchSourceAdapter struct{ src EventSource }

func (a *batchSourceAdapter) NextBatch(ctx context.Context) (snake.EventBatch, bool, error) {
	batch, err := a.src.NextBatch(ctx)
	if err == errEndOfStream {
		return snake.EventBatch{}, false, nil
	}
	if err != nil {
		return snake.EventBatch{}, false, err
	}
	if err := batch.Validate(); err != nil {
		return snake.EventBatch{}, true, &snake.StreamWarning{Reason: err.Error()}
	}
	return snake.EventBatch{Events: batch.ToRawEvents()}, true, nil
}

// errEndOfStream is the sentinel ReplaySource returns once its
// preloaded batches are exhausted.
var errEndOfStream = fmt.Errorf("taggerbridge: end of stream")

// ReplaySource is an in-memory, deterministic EventSource used by
// this package's tests and by cmd/snakecore's -replay mode: canned batches
// standing in for hardware, so the same consumer code path exercises
// both.
type ReplaySource struct {
	mu      sync.Mutex
	batches []EventBatch
	idx     int
	closed  bool
	pace    time.Duration
	clock   timeutil.Clock
}

// NewReplaySource returns a ReplaySource that yields batches in order,
// then reports end-of-stream.
func NewReplaySource(batches []EventBatch) *ReplaySource {
	return &ReplaySource{batches: batches}
}

// WithPacing configures the source to sleep pace between each batch it
// yields instead of dumping them all at once, so -replay mode can
// rehearse the driver's own timing-sensitive paths (the renderer
// sink's stall warning, batch-to-batch ordering) rather than racing
// through a canned file. clock is injected so tests can pace against a
// timeutil.MockClock instead of real time.
func (r *ReplaySource) WithPacing(pace time.Duration, clock timeutil.Clock) *ReplaySource {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.pace = pace
	r.clock = clock
	return r
}

func (r *ReplaySource) NextBatch(ctx context.Context) (EventBatch, error) {
	select {
	case <-ctx.Done():
		return EventBatch{}, ctx.Err()
	default:
	}
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return EventBatch{}, fmt.Errorf("taggerbridge: replay source closed")
	}
	if r.idx >= len(r.batches) {
		r.mu.Unlock()
		return EventBatch{}, errEndOfStream
	}
	b := r.batches[r.idx]
	r.idx++
	pace, clock := r.pace, r.clock
	r.mu.Unlock()

	if pace > 0 && clock != nil {
		clock.Sleep(pace)
	}
	return b, nil
}

func (r *ReplaySource) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.closed = true
	return nil
}
