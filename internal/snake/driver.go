package snake

import (
	"context"

	"github.com/google/uuid"
	"gonum.org/v1/gonum/stat"
)

// dropRateWindow is the number of most recent batches the driver keeps
// per-batch drop fractions for, to report a rolling rate rather than a
// single noisy instantaneous value.
const dropRateWindow = 64

// EventBatch is one pulled chunk of raw tagger events. Batch
// boundaries carry no semantic meaning — ordering only matters within
// and across batches taken together.
type EventBatch struct {
	Events []RawEvent
}

// BatchSource is the tagger bridge collaborator's pull-based
// interface: NextBatch blocks until a batch is available, the context
// is canceled, or the stream ends (io.EOF-style sentinel via the bool).
type BatchSource interface {
	NextBatch(ctx context.Context) (EventBatch, bool, error)
}

// FrameSink receives finished frames. Both the renderer and the
// serializer collaborators implement this; the driver submits the same
// FinishedFrame to each sink in turn, and a sink that buffers (the
// renderer's stream.Sink) does so over its own bounded channel.
type FrameSink interface {
	Submit(ctx context.Context, frame FinishedFrame) error
}

// Driver owns the snake, frame buffers, channel map, classifier, and
// the rolling dropped-event counter for one acquisition. It pulls
// batches from a BatchSource, drives the classifier per event, and
// flushes finished frames to its collaborators on a frame boundary.
//
// The dispatch loop is single-threaded and cooperative: it never
// suspends mid-batch, and only blocks on batch I/O and on a full
// collaborator channel (backpressure toward the instrument).
//
// The snake itself isn't built until the stream gives the driver
// something to anchor it to (see bootstrap): a fresh acquisition's
// initial offset comes from the first Frame-marker event, not from a
// caller-supplied constant.
type Driver struct {
	cfg        AppConfig
	snake      *Snake
	buffers    *FrameBuffers
	classifier *Classifier
	source     BatchSource
	sinks      []FrameSink

	sequence       uint64
	replayExisting bool
	rollingAvg     bool
	pendingFrameAt Ps
	haveFrameMark  bool

	dropRates []float64 // ring buffer of per-batch dropped-event fractions
	dropNext  int
}

// NewDriver constructs a Driver ready to run. The snake is not built
// yet — Run derives its initial offset from the stream itself, per
// bootstrap's doc comment.
func NewDriver(cfg AppConfig, source BatchSource, sinks []FrameSink, replayExisting, rollingAvg bool) *Driver {
	return &Driver{
		cfg:            cfg,
		buffers:        NewFrameBuffers(cfg, ComputeVoxelDeltaReal(cfg)),
		classifier:     NewClassifier(NewChannelMap(cfg)),
		source:         source,
		sinks:          sinks,
		replayExisting: replayExisting,
		rollingAvg:     rollingAvg,
	}
}

func (d *Driver) initSnake(offset Ps) {
	if d.cfg.Planes > 1 {
		d.snake = New3D(d.cfg, offset)
	} else {
		d.snake = New2D(d.cfg, offset)
	}
	diagf("snake: initialized with offset %d ps", offset)
}

// bootstrap establishes the snake's initial offset the first time it's
// needed: the offset comes from the first Frame marker seen on the
// stream. If replayExisting is set and a non-marker
// event (a photon, typically) arrives first, the snake is built at
// offset zero instead so those leading events aren't discarded; absent
// replayExisting, events preceding the first marker are dropped since
// they have no defined snake to land on.
//
// ready reports whether d.snake is now usable. consumed reports
// whether ev was itself the bootstrapping event and needs no further
// dispatch (true when ev was the Frame marker that set the offset, or
// when ready is false and ev was simply dropped).
func (d *Driver) bootstrap(ev RawEvent) (ready, consumed bool) {
	kind := d.channels().Lookup(ChannelID(ev.Channel))
	if kind == Frame {
		d.initSnake(ev.Time)
		return true, true
	}
	if d.replayExisting {
		d.initSnake(0)
		return true, false
	}
	diagf("snake: discarding event on channel %d before initial frame marker", ev.Channel)
	return false, true
}

// Dropped reports the cumulative dropped-event counter.
func (d *Driver) Dropped() uint64 { return d.classifier.Dropped() }

// DroppedRate reports the mean per-batch dropped-event fraction over
// the most recent dropRateWindow batches, as a rolling health signal
// that cmd/snakecore reports in its shutdown log line. It returns 0 before the
// first batch completes.
func (d *Driver) DroppedRate() float64 {
	if len(d.dropRates) == 0 {
		return 0
	}
	return stat.Mean(d.dropRates, nil)
}

func (d *Driver) recordDropRate(batchSize int, droppedBefore, droppedAfter uint64) {
	if batchSize == 0 {
		return
	}
	rate := float64(droppedAfter-droppedBefore) / float64(batchSize)
	if len(d.dropRates) < dropRateWindow {
		d.dropRates = append(d.dropRates, rate)
		return
	}
	d.dropRates[d.dropNext] = rate
	d.dropNext = (d.dropNext + 1) % dropRateWindow
}

// Run drives batches from source until the context is canceled or the
// source reports end-of-stream. The shared cancellation flag is the
// context itself, checked once per batch, never mid-batch.
func (d *Driver) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return d.shutdown(ctx)
		default:
		}

		batch, ok, err := d.source.NextBatch(ctx)
		if err != nil {
			if _, transient := err.(*StreamWarning); transient {
				opsf("stream warning: %v", err)
				continue
			}
			return err
		}
		if !ok {
			return d.shutdown(ctx)
		}
		if err := d.processBatch(ctx, batch); err != nil {
			return err
		}
	}
}

func (d *Driver) processBatch(ctx context.Context, batch EventBatch) error {
	if len(batch.Events) == 0 {
		opsf("stream warning: %v", &StreamWarning{Reason: "empty batch"})
		return nil
	}
	droppedBefore := d.classifier.Dropped()
	defer func() {
		d.recordDropRate(len(batch.Events), droppedBefore, d.classifier.Dropped())
	}()

	var prevTime Ps
	havePrev := false
	pending := batch.Events
	for len(pending) > 0 {
		ev := pending[0]
		pending = pending[1:]

		if havePrev && ev.Time < prevTime {
			opsf("%v", &OrderingViolation{PreviousTime: prevTime, EventTime: ev.Time})
			continue
		}
		havePrev = true
		prevTime = ev.Time

		if d.snake == nil {
			ready, consumed := d.bootstrap(ev)
			if !ready || consumed {
				continue
			}
		}

		result, err := d.classifier.Dispatch(ev, d.snake)
		if err != nil {
			return err
		}

		switch result.Kind {
		case Displayed:
			idx, _ := d.channels().Lookup(ChannelID(ev.Channel)).PmtChannelIndex()
			d.buffers.Add(idx, result.Coord, result.Color)
		case FrameMarker:
			d.pendingFrameAt = ev.Time
			d.haveFrameMark = true
			if err := d.rollFrame(ctx, ev.Time); err != nil {
				return err
			}
		case PhotonNewFrame:
			nextAt := d.snake.MaxFrameTime() + d.voxelDelta().Frame
			if d.haveFrameMark {
				nextAt = d.pendingFrameAt
			}
			if err := d.rollFrame(ctx, nextAt); err != nil {
				return err
			}
			// Re-submit the photon that triggered the roll against the
			// advanced snake.
			pending = append([]RawEvent{ev}, pending...)
		}
	}
	return nil
}

func (d *Driver) rollFrame(ctx context.Context, nextFrameAt Ps) error {
	frame := d.buffers.Snapshot(d.sequence, d.snake.MaxFrameTime(), d.rollingAvg)
	frame.TraceID = uuid.New().String()
	d.sequence++
	for _, sink := range d.sinks {
		if err := sink.Submit(ctx, frame); err != nil {
			return err
		}
	}
	d.snake.AdvanceToFrame(nextFrameAt)
	d.haveFrameMark = false
	return nil
}

func (d *Driver) shutdown(ctx context.Context) error {
	if d.snake == nil {
		// The stream ended before a snake was ever established (no
		// Frame marker seen, and replayExisting unset): nothing was
		// ever accumulated, so there's no frame to flush.
		return ctx.Err()
	}
	frame := d.buffers.Snapshot(d.sequence, d.snake.MaxFrameTime(), d.rollingAvg)
	frame.TraceID = uuid.New().String()
	for _, sink := range d.sinks {
		_ = sink.Submit(ctx, frame)
	}
	return ctx.Err()
}

func (d *Driver) channels() *ChannelMap { return d.classifier.channels }

func (d *Driver) voxelDelta() VoxelDelta[Ps] { return d.snake.VoxelDeltaPs() }
