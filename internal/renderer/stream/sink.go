// Package stream is the renderer-facing frame hand-off: a bounded
// single-producer/single-consumer channel the driver pushes finished
// frames onto, with the driver blocking (backpressure toward the
// instrument) when the channel is full. An optional gRPC republisher
// streams the same frames to remote viewers.
package stream

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/snakecore/tagimage/internal/monitoring"
	"github.com/snakecore/tagimage/internal/snake"
	"github.com/snakecore/tagimage/internal/timeutil"
)

// stallWarningAfter is how long a Submit may block on a full channel
// before the sink logs a backpressure warning through monitoring.Logf.
// It keeps warning on the same cadence until the send finally succeeds.
const stallWarningAfter = 5 * time.Second

// Sink is the SPSC-channel-fed renderer collaborator. Submit
// implements snake.FrameSink; Frames exposes the consumer side the
// GPU point renderer pulls from.
type Sink struct {
	frames  chan snake.FinishedFrame
	closeMu sync.Mutex
	closed  bool
	clock   timeutil.Clock
}

// NewSink allocates a Sink with the given channel depth. Depth 0 makes
// every Submit synchronous with a Frames receiver; size the depth to
// the consumer's cadence, never unbounded.
func NewSink(depth int) *Sink {
	return &Sink{frames: make(chan snake.FinishedFrame, depth), clock: timeutil.RealClock{}}
}

// Submit pushes frame onto the channel, blocking if it is full or
// returning ctx.Err() if the context is canceled first. A blocked send
// past stallWarningAfter logs a recurring backpressure warning without
// breaking the block.
func (s *Sink) Submit(ctx context.Context, frame snake.FinishedFrame) error {
	s.closeMu.Lock()
	if s.closed {
		s.closeMu.Unlock()
		return fmt.Errorf("stream: sink closed")
	}
	s.closeMu.Unlock()

	stall := s.clock.NewTicker(stallWarningAfter)
	defer stall.Stop()
	for {
		select {
		case s.frames <- frame:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		case <-stall.C():
			monitoring.Logf("stream: Submit blocked on a full renderer sink for over %s", stallWarningAfter)
		}
	}
}

// Frames returns the consumer-side receive channel.
func (s *Sink) Frames() <-chan snake.FinishedFrame {
	return s.frames
}

// Close closes the channel. Submit calls after Close return an error
// instead of panicking on a send to a closed channel.
func (s *Sink) Close() {
	s.closeMu.Lock()
	defer s.closeMu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	close(s.frames)
}
