package snake

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fixedBatchSource replays a fixed list of batches, then reports
// end-of-stream.
type fixedBatchSource struct {
	batches []EventBatch
	idx     int
}

func (s *fixedBatchSource) NextBatch(ctx context.Context) (EventBatch, bool, error) {
	if s.idx >= len(s.batches) {
		return EventBatch{}, false, nil
	}
	b := s.batches[s.idx]
	s.idx++
	return b, true, nil
}

// collectingSink records every frame submitted to it.
type collectingSink struct {
	frames []FinishedFrame
}

func (s *collectingSink) Submit(_ context.Context, frame FinishedFrame) error {
	s.frames = append(s.frames, frame)
	return nil
}

func driverTestConfig(t *testing.T) AppConfig {
	t.Helper()
	cfg, err := NewAppConfigBuilder().
		WithRows(10).WithColumns(10).WithPlanes(1).
		WithFillFraction(100).
		WithChannels(ChannelSet{
			Frame: InputChannel{Channel: 9},
		}).
		Build()
	require.NoError(t, err)
	return cfg
}

func TestDriver_RollFrame_AssignsDistinctTraceIDs(t *testing.T) {
	cfg := driverTestConfig(t)
	source := &fixedBatchSource{batches: []EventBatch{
		// The first Frame marker only bootstraps the snake's initial
		// offset; it establishes frame zero but rolls nothing.
		{Events: []RawEvent{{Channel: 9, Time: 1}}},
		{Events: []RawEvent{{Channel: 9, Time: 2}}},
		{Events: []RawEvent{{Channel: 9, Time: 3}}},
	}}
	sink := &collectingSink{}
	driver := NewDriver(cfg, source, []FrameSink{sink}, false, false)

	err := driver.Run(context.Background())
	assert.NoError(t, err)
	// Marker 1 bootstraps; markers 2 and 3 each roll a frame;
	// end-of-stream then flushes whatever accumulated since, producing
	// a third.
	require.Len(t, sink.frames, 3)
	seen := make(map[string]bool)
	for _, f := range sink.frames {
		assert.NotEmpty(t, f.TraceID)
		assert.False(t, seen[f.TraceID], "TraceID reused across frames")
		seen[f.TraceID] = true
	}
}

func TestDriver_DroppedRate_TracksMissedEventsFraction(t *testing.T) {
	cfg := driverTestConfig(t)
	source := &fixedBatchSource{batches: []EventBatch{
		{Events: []RawEvent{
			{Channel: 9, Time: 1}, // bootstraps the snake, no counter yet
			{Channel: 9, Time: 2, MissedEvents: 1},
			{Channel: 9, Time: 3},
		}},
	}}
	sink := &collectingSink{}
	driver := NewDriver(cfg, source, []FrameSink{sink}, false, false)

	assert.Equal(t, float64(0), driver.DroppedRate())

	err := driver.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, uint64(1), driver.Dropped())
	// One annotated event out of a three-event batch; the bootstrap
	// marker still counts toward the batch size.
	assert.InDelta(t, 1.0/3, driver.DroppedRate(), 1e-9)
}

func TestDriver_DroppedRate_ZeroBeforeAnyBatch(t *testing.T) {
	cfg := driverTestConfig(t)
	source := &fixedBatchSource{}
	driver := NewDriver(cfg, source, nil, false, false)
	assert.Equal(t, float64(0), driver.DroppedRate())
}

func TestDriver_DiscardsPhotonsBeforeFirstFrameMarker(t *testing.T) {
	cfg := driverTestConfig(t)
	source := &fixedBatchSource{batches: []EventBatch{
		// No Frame marker precedes these; replayExisting is false, so
		// they must be dropped rather than crash on a nil snake.
		{Events: []RawEvent{{Channel: 1, Time: 1}}},
		{Events: []RawEvent{{Channel: 9, Time: 2}}},
	}}
	sink := &collectingSink{}
	driver := NewDriver(cfg, source, []FrameSink{sink}, false, false)

	err := driver.Run(context.Background())
	assert.NoError(t, err)
	// The Frame marker at time 2 only bootstraps; end-of-stream flushes
	// one (empty) frame.
	require.Len(t, sink.frames, 1)
}

func TestDriver_ReplayExisting_BootstrapsFromFirstEvent(t *testing.T) {
	cfg := driverTestConfig(t)
	source := &fixedBatchSource{batches: []EventBatch{
		// No Frame marker at all; replayExisting builds the snake at
		// offset zero from the first event and dispatches it normally.
		{Events: []RawEvent{{Channel: 1, Time: 1}}},
	}}
	sink := &collectingSink{}
	driver := NewDriver(cfg, source, []FrameSink{sink}, true, false)

	err := driver.Run(context.Background())
	assert.NoError(t, err)
	require.Len(t, sink.frames, 1)
}

func TestDriver_ShutdownBeforeBootstrap_FlushesNothing(t *testing.T) {
	cfg := driverTestConfig(t)
	source := &fixedBatchSource{}
	sink := &collectingSink{}
	driver := NewDriver(cfg, source, []FrameSink{sink}, false, false)

	err := driver.Run(context.Background())
	assert.NoError(t, err)
	assert.Empty(t, sink.frames)
}
