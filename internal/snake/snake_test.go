package snake

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func defaultScenarioConfig(t *testing.T) AppConfig {
	t.Helper()
	return defaultScenarioConfigDir(t, true)
}

func defaultScenarioConfigDir(t *testing.T, bidir bool) AppConfig {
	t.Helper()
	cfg, err := NewAppConfigBuilder().
		WithRows(256).WithColumns(256).WithPlanes(10).
		WithFillFraction(71.3).
		WithScanPeriod(PeriodFromFreq(7926.17)).
		WithTagPeriod(PeriodFromFreq(189_800)).
		WithBidirectional(bidir).
		WithFrameDeadTime(8 * PeriodFromFreq(7926.17).Ps()).
		Build()
	require.NoError(t, err)
	return cfg
}

// Scenario 2: voxel deltas, default config.
func TestComputeVoxelDeltaPs_DefaultConfig(t *testing.T) {
	cfg := defaultScenarioConfig(t)
	delta := ComputeVoxelDeltaPs(cfg)

	want := VoxelDelta[Ps]{
		Column: 175_693,
		Row:    18_104_579,
		Plane:  263_435,
		Frame:  1_009_314_712,
	}
	if diff := cmp.Diff(want, delta); diff != "" {
		t.Errorf("voxel delta mismatch (-want +got):\n%s", diff)
	}
}

// Scenario 3: frame duration and frame rate, bidir and unidir cases.
func TestFrameDurationPs_DefaultConfig_Bidir(t *testing.T) {
	cfg := defaultScenarioConfig(t)
	assert.Equal(t, Ps(16_149_035_264), FrameDurationPs(cfg))
	assert.InEpsilon(t, 61.923, FrameRateHz(cfg), 1e-3)
}

func TestFrameDurationPs_DefaultConfig_Unidir(t *testing.T) {
	cfg := defaultScenarioConfigDir(t, false)
	assert.Equal(t, Ps(32_298_070_784), FrameDurationPs(cfg))
	assert.InEpsilon(t, 30.962, FrameRateHz(cfg), 1e-3)
}

func scenarioGridConfig(t *testing.T, bidir bool) AppConfig {
	t.Helper()
	cfg, err := NewAppConfigBuilder().
		WithRows(10).WithColumns(10).WithPlanes(1).
		WithFillFraction(50).
		WithScanPeriod(PeriodFromFreq(1_000_000_000)).
		WithTagPeriod(PeriodFromFreq(189_800)).
		WithBidirectional(bidir).
		Build()
	require.NoError(t, err)
	return cfg
}

// Scenario 4: 2D bidirectional snake, 10x10 grid.
func TestNew2D_Bidir_GoldenScenario(t *testing.T) {
	cfg := scenarioGridConfig(t, true)
	s := New2D(cfg, 0)

	assert.Equal(t, capacity2D(cfg), s.Len()+1) // +1 for the popped turnaround cell

	cell1 := s.Cell(1)
	assert.Equal(t, Ps(25), cell1.EndTime)
	assert.InDelta(t, -1.0, cell1.Coord.X, 1e-9)
	assert.InDelta(t, -1.0, cell1.Coord.Y, 1e-9)

	cell12 := s.Cell(12)
	assert.Equal(t, Ps(525), cell12.EndTime)
	assert.InDelta(t, -1+2.0/9, cell12.Coord.X, 1e-9)
	assert.InDelta(t, 1.0, cell12.Coord.Y, 1e-9)

	cell35 := s.Cell(35)
	assert.Equal(t, Ps(1550), cell35.EndTime)
	assert.InDelta(t, -1+3*2.0/9, cell35.Coord.X, 1e-9)
	assert.InDelta(t, 1-2.0/9, cell35.Coord.Y, 1e-9)

	last := s.Cell(s.Len() - 1)
	assert.Equal(t, Ps(4750), last.EndTime)
	assert.InDelta(t, 1.0, last.Coord.X, 1e-9)
	assert.InDelta(t, -1.0, last.Coord.Y, 1e-9)
	assert.Equal(t, last.EndTime, s.MaxFrameTime())
}

// Scenario 5: 2D unidirectional snake, same geometry.
func TestNew2D_Unidir_GoldenScenario(t *testing.T) {
	cfg := scenarioGridConfig(t, false)
	s := New2D(cfg, 0)

	cell12 := s.Cell(12)
	assert.Equal(t, Ps(1275), cell12.EndTime)
	assert.InDelta(t, -1+2.0/9, cell12.Coord.X, 1e-9)
	assert.InDelta(t, -1.0, cell12.Coord.Y, 1e-9)

	last := s.Cell(s.Len() - 1)
	assert.Equal(t, Ps(11500), last.EndTime)
	assert.InDelta(t, 1.0, last.Coord.X, 1e-9)
	assert.InDelta(t, 1.0, last.Coord.Y, 1e-9)
}

// Scenario 6: offset propagation.
func TestNew2D_OffsetPropagation(t *testing.T) {
	cfg := scenarioGridConfig(t, true)
	s := New2D(cfg, 100)

	assert.Equal(t, Ps(100), s.Cell(0).EndTime)

	delta := ComputeVoxelDeltaPs(cfg)
	last := s.Cell(s.Len() - 1)
	assert.Equal(t, s.FrameDuration()+100, last.EndTime+delta.Row)
}

// Construction invariants, generalized over both scan directions.
func TestNew2D_Invariants(t *testing.T) {
	for _, bidir := range []bool{true, false} {
		cfg := scenarioGridConfig(t, bidir)
		s := New2D(cfg, 0)

		require.Equal(t, capacity2D(cfg), s.Len()+1)

		for i := 1; i < s.Len(); i++ {
			assert.Greater(t, s.Cell(i).EndTime, s.Cell(i-1).EndTime,
				"end_time must be strictly increasing at index %d", i)
		}

		assert.Equal(t, Ps(0), s.Cell(0).EndTime)
		delta := ComputeVoxelDeltaPs(cfg)
		last := s.Cell(s.Len() - 1).EndTime
		assert.LessOrEqual(t, s.FrameDuration()-delta.Row, last)
		assert.LessOrEqual(t, last, s.FrameDuration())
	}
}

// The line-shift correction moves only the reversed (odd) rows in
// time; even rows and every imagespace coordinate stay put.
func TestNew2D_LineShiftMovesOddRowsOnly(t *testing.T) {
	cfg, err := NewAppConfigBuilder().
		WithRows(10).WithColumns(10).WithPlanes(1).
		WithFillFraction(50).
		WithScanPeriod(PeriodFromFreq(1_000_000_000)).
		WithTagPeriod(PeriodFromFreq(189_800)).
		WithBidirectional(true).
		WithLineShift(5).
		Build()
	require.NoError(t, err)

	plain := New2D(scenarioGridConfig(t, true), 0)
	shifted := New2D(cfg, 0)
	require.Equal(t, plain.Len(), shifted.Len())

	cellsPerRow := cfg.Columns + 1
	for i := 1; i < plain.Len(); i++ {
		row := (i - 1) / cellsPerRow
		want := plain.Cell(i).EndTime
		if row%2 == 1 {
			want += 5
		}
		assert.Equal(t, want, shifted.Cell(i).EndTime, "cell %d (row %d)", i, row)
		if !plain.Cell(i).Coord.IsDiscard() {
			assert.Equal(t, plain.Cell(i).Coord, shifted.Cell(i).Coord)
		} else {
			assert.True(t, shifted.Cell(i).Coord.IsDiscard())
		}
	}
}

func TestSnake_AdvanceToFrame(t *testing.T) {
	cfg := scenarioGridConfig(t, true)
	s := New2D(cfg, 0)

	before := make([]Ps, s.Len())
	for i := 0; i < s.Len(); i++ {
		before[i] = s.Cell(i).EndTime
	}

	prevEarliest := s.EarliestFrameTime()
	s.AdvanceToFrame(50_000)
	offset := 50_000 - prevEarliest

	for i := 0; i < s.Len(); i++ {
		assert.Equal(t, before[i]+offset, s.Cell(i).EndTime)
	}
	assert.Equal(t, s.Cell(s.Len()-1).EndTime, s.MaxFrameTime())
	assert.Equal(t, Ps(50_000), s.EarliestFrameTime())
}

// For every non-discard cell, a time just inside its window resolves
// to its coordinate; a time past the horizon signals a new frame.
func TestSnake_LookupProperties(t *testing.T) {
	cfg := scenarioGridConfig(t, true)
	s := New2D(cfg, 0)

	for i := 0; i < s.Len(); i++ {
		cell := s.Cell(i)
		if cell.Coord.IsDiscard() {
			continue
		}
		s2 := New2D(cfg, 0) // fresh cursor per lookup to isolate resumability
		result, err := s2.Lookup(cell.EndTime-1, 0)
		require.NoError(t, err)
		require.Equal(t, Displayed, result.Kind)
		assert.Equal(t, cell.Coord, result.Coord)
	}

	result, err := s.Lookup(s.MaxFrameTime()+1, 0)
	require.NoError(t, err)
	assert.Equal(t, PhotonNewFrame, result.Kind)
}

func TestSnake_LookupDoesNotRewindCursor(t *testing.T) {
	cfg := scenarioGridConfig(t, true)
	s := New2D(cfg, 0)

	first, err := s.Lookup(25, 0)
	require.NoError(t, err)
	assert.Equal(t, Displayed, first.Kind)
	assert.Equal(t, 1, s.lastAccessedIdx)

	// A time before the cursor's current position still resolves —
	// forward-only resumption means the cursor itself never rewinds,
	// not that earlier times are rejected.
	again, err := s.Lookup(1, 0)
	require.NoError(t, err)
	assert.Equal(t, first.Coord, again.Coord)
	assert.Equal(t, 1, s.lastAccessedIdx)
}

func TestSnake_LookupReportsCorruptionWhenCursorExhausted(t *testing.T) {
	cfg := scenarioGridConfig(t, true)
	s := New2D(cfg, 0)

	// Force the cursor past the end of the data to simulate the
	// invariant violation the driver must treat as fatal: a time
	// within [offset, max_frame_time] that the cursor can no longer
	// reach.
	s.lastAccessedIdx = s.Len()

	_, err := s.Lookup(s.MaxFrameTime()-1, 0)
	require.Error(t, err)
	var corrupted *SnakeCorruptedError
	assert.ErrorAs(t, err, &corrupted)
}

func TestNew3D_Capacity(t *testing.T) {
	cfg, err := NewAppConfigBuilder().
		WithRows(10).WithColumns(10).WithPlanes(8).
		WithFillFraction(50).
		WithScanPeriod(PeriodFromFreq(1_000_000_000)).
		WithTagPeriod(PeriodFromFreq(500_000)).
		WithBidirectional(true).
		Build()
	require.NoError(t, err)

	s := New3D(cfg, 0)
	assert.True(t, s.Is3D())
	assert.Equal(t, capacity3D(cfg), s.Len()+1)
	for i := 1; i < s.Len(); i++ {
		assert.Greater(t, s.Cell(i).EndTime, s.Cell(i-1).EndTime)
	}
}
