package snake

import (
	"fmt"
	"strings"
)

// ProcessedEvent is the result of feeding one classified photon or
// marker through a Snake. Callers switch on Kind; Coord and Color are
// set only when Kind is Displayed.
type ProcessedEvent struct {
	Kind  ProcessedEventKind
	Coord Coord3
	Color RGB
}

// ProcessedEventKind enumerates the outcomes of a lookup or marker.
type ProcessedEventKind uint8

const (
	// NoOp means the event carried no rendering consequence.
	NoOp ProcessedEventKind = iota
	// Displayed means Coord/Color identify a voxel to accumulate into.
	Displayed
	// PhotonNewFrame means the photon's time is beyond max_frame_time;
	// the driver must flush, advance the snake, and resubmit.
	PhotonNewFrame
	// FrameMarker means a Frame-channel marker arrived; the driver
	// should treat this as the authoritative next-frame boundary.
	FrameMarker
)

// Snake is the precomputed time-to-coordinate trajectory for one
// frame of the scanner. It is built once per AppConfig (see New2D and
// New3D) and then mutated in place, frame after frame, by
// AdvanceToFrame — no cell is ever reallocated once the acquisition is
// running.
//
// Dimensionality is a flag on one concrete type rather than an
// interface: callers check Is3D once per batch, not once per event.
type Snake struct {
	data            []TimeCoordPair
	lastAccessedIdx int
	maxFrameTime    Ps
	earliestFrame   Ps
	frameDuration   Ps

	voxelDeltaPs VoxelDelta[Ps]
	voxelDeltaIm VoxelDelta[Real]

	is3D          bool
	lastTagLens   Ps
	rows, columns int
}

// Len reports the number of cells currently in the snake (test/debug use).
func (s *Snake) Len() int { return len(s.data) }

// Cell returns the i'th cell, for tests and diagnostics.
func (s *Snake) Cell(i int) TimeCoordPair { return s.data[i] }

// MaxFrameTime is the end_time of the last retained cell.
func (s *Snake) MaxFrameTime() Ps { return s.maxFrameTime }

// EarliestFrameTime is the end_time of the leading inter-frame cell.
func (s *Snake) EarliestFrameTime() Ps { return s.earliestFrame }

// FrameDuration is rows (times planes, in 3D) * the per-row line-offset
// advance: the end_time the popped trailing turnaround cell had, less
// the leading offset. It exceeds MaxFrameTime()-EarliestFrameTime() by
// Δrow.
func (s *Snake) FrameDuration() Ps { return s.frameDuration }

// VoxelDeltaPs returns the timing deltas this snake was built from.
func (s *Snake) VoxelDeltaPs() VoxelDelta[Ps] { return s.voxelDeltaPs }

// VoxelDeltaReal returns the imagespace deltas this snake was built
// from, used by the frame buffers to quantize a coordinate to a grid.
func (s *Snake) VoxelDeltaReal() VoxelDelta[Real] { return s.voxelDeltaIm }

// Is3D reports whether this snake carries a Z axis.
func (s *Snake) Is3D() bool { return s.is3D }

// capacity2D is (columns+1)*rows+1: one trailing turnaround cell per
// row, plus the single leading inter-frame cell.
func capacity2D(cfg AppConfig) int {
	return (cfg.Columns+1)*cfg.Rows + 1
}

// capacity3D multiplies the 2D baseline by the plane count.
func capacity3D(cfg AppConfig) int {
	baseline := (cfg.Columns + 1) * cfg.Rows
	if cfg.Planes <= 1 {
		return baseline + 1
	}
	return baseline*cfg.Planes + 1
}

// rowTemplate builds the per-row picosecond offsets: col_ps[i] =
// (i+1)*Δcol for i in [0,columns), then one trailing cell at
// col_ps[columns-1]+Δrow representing the mirror-turnaround window.
// That trailing cell's value is also the per-row line-offset advance
// the caller applies between rows — see New2D.
func rowTemplatePs(columns int, delta VoxelDelta[Ps]) []Ps {
	tpl := make([]Ps, columns+1)
	for i := 0; i < columns; i++ {
		tpl[i] = Ps(i+1) * delta.Column
	}
	tpl[columns] = tpl[columns-1] + delta.Row
	return tpl
}

// rowTemplateIm builds the per-row imagespace offsets, in [-1,+1],
// with a trailing NaN standing in for the discarded turnaround cell.
func rowTemplateIm(columns int, delta VoxelDelta[Real]) []Real {
	tpl := make([]Real, columns+1)
	for i := 0; i < columns; i++ {
		tpl[i] = Real(i)*delta.Column - 1
	}
	tpl[columns] = discardCoord.X // NaN
	return tpl
}

// reverseRowIm reverses the active columns of tpl (odd rows scan
// right-to-left) while keeping the discard cell last.
func reverseRowIm(tpl []Real) []Real {
	n := len(tpl) - 1
	rev := make([]Real, len(tpl))
	for i := 0; i < n; i++ {
		rev[i] = tpl[n-1-i]
	}
	rev[n] = tpl[n]
	return rev
}

// shiftRowPs applies the configurable line-shift correction to every
// cell of tpl, in place order (the ps axis always advances forward in
// time regardless of the mirror's imagespace direction).
func shiftRowPs(tpl []Ps, lineShift Ps) []Ps {
	shifted := make([]Ps, len(tpl))
	for i, v := range tpl {
		shifted[i] = v + lineShift
	}
	return shifted
}

func pushRow(data []TimeCoordPair, im []Real, ps []Ps, rowCoord Real, lineOffset Ps) []TimeCoordPair {
	for i := range ps {
		data = append(data, TimeCoordPair{
			EndTime: ps[i] + lineOffset,
			Coord:   Coord3{X: rowCoord, Y: im[i], Z: 0},
		})
	}
	return data
}

// New2D builds a fresh 2D snake spanning one frame, starting at the
// given offset. Bidirectional scans alternate a forward row template
// with a reversed, phase-shifted one; unidirectional scans reuse the
// forward template for every row, with the flyback folded into Δrow.
func New2D(cfg AppConfig, offset Ps) *Snake {
	deltaPs := ComputeVoxelDeltaPs(cfg)
	deltaIm := ComputeVoxelDeltaReal(cfg)

	data := make([]TimeCoordPair, 0, capacity2D(cfg))
	data = append(data, TimeCoordPair{EndTime: offset, Coord: discardCoord})

	colPs := rowTemplatePs(cfg.Columns, deltaPs)
	colIm := rowTemplateIm(cfg.Columns, deltaIm)
	advance := rowAdvancePs(deltaPs, cfg.Columns) // == colPs[cfg.Columns]

	lineOffset := offset
	if cfg.Bidirectional {
		colImRev := reverseRowIm(colIm)
		colPsRev := shiftRowPs(colPs, cfg.LineShift)
		for row := 0; row < cfg.Rows; row += 2 {
			rowCoord := Real(row)*deltaIm.Row - 1
			data = pushRow(data, colIm, colPs, rowCoord, lineOffset)
			lineOffset += advance
			rowCoord = Real(row+1)*deltaIm.Row - 1
			data = pushRow(data, colImRev, colPsRev, rowCoord, lineOffset)
			lineOffset += advance
		}
	} else {
		for row := 0; row < cfg.Rows; row++ {
			rowCoord := Real(row)*deltaIm.Row - 1
			data = pushRow(data, colIm, colPs, rowCoord, lineOffset)
			lineOffset += advance
		}
	}

	// Pop the final turnaround cell: no mirror turnaround is needed
	// after the last row of the frame.
	data = data[:len(data)-1]

	return &Snake{
		data:          data,
		maxFrameTime:  data[len(data)-1].EndTime,
		earliestFrame: offset,
		frameDuration: Ps(cfg.Rows) * advance,
		voxelDeltaPs:  deltaPs,
		voxelDeltaIm:  deltaIm,
		rows:          cfg.Rows,
		columns:       cfg.Columns,
	}
}

// Lookup resolves a photon timestamp to the voxel the laser occupied,
// via a resumable linear scan from the last hit cell: at realistic
// count rates adjacent photons land in adjacent cells, so the scan is
// amortized O(1) and beats binary search for this access pattern.
// Channel index 0..3 selects the display color for a hit; it is
// otherwise unused.
func (s *Snake) Lookup(time Ps, channelIndex int) (ProcessedEvent, error) {
	if time > s.maxFrameTime {
		return ProcessedEvent{Kind: PhotonNewFrame}, nil
	}
	for i := s.lastAccessedIdx; i < len(s.data); i++ {
		if time <= s.data[i].EndTime {
			s.lastAccessedIdx = i
			coord := s.data[i].Coord
			if coord.IsDiscard() {
				return ProcessedEvent{Kind: NoOp}, nil
			}
			color := RGB{}
			if channelIndex >= 0 && channelIndex < len(DisplayColors) {
				color = DisplayColors[channelIndex]
			}
			return ProcessedEvent{Kind: Displayed, Coord: coord, Color: color}, nil
		}
	}
	return ProcessedEvent{}, &SnakeCorruptedError{
		Time:         time,
		MaxFrameTime: s.maxFrameTime,
		Dump:         s.dump(),
	}
}

// AdvanceToFrame shifts every cell's end_time by (nextFrameAt -
// earliestFrameTime), resets the lookup cursor, and records the new
// frame boundary. Called once per frame, never per event.
func (s *Snake) AdvanceToFrame(nextFrameAt Ps) {
	offset := nextFrameAt - s.earliestFrame
	for i := range s.data {
		s.data[i].EndTime += offset
	}
	s.lastAccessedIdx = 0
	s.lastTagLens = 0
	s.maxFrameTime = s.data[len(s.data)-1].EndTime
	s.earliestFrame = nextFrameAt
}

// RecordTagLensTime stores the most recent TAG-lens start-of-cycle
// time. Lookup does not consult it — the Z trajectory assumes an
// ideal sinusoid phase-locked to frame start — but the field is kept
// so a phase correction, if one ever proves necessary, has somewhere
// to read from without changing the call sites.
func (s *Snake) RecordTagLensTime(t Ps) {
	s.lastTagLens = t
}

func (s *Snake) dump() string {
	var b strings.Builder
	lo := s.lastAccessedIdx
	hi := lo + 8
	if hi > len(s.data) {
		hi = len(s.data)
	}
	fmt.Fprintf(&b, "snake: %d cells, last_accessed_idx=%d, earliest=%d, max=%d\n",
		len(s.data), s.lastAccessedIdx, s.earliestFrame, s.maxFrameTime)
	for i := lo; i < hi; i++ {
		fmt.Fprintf(&b, "  [%d] end_time=%d coord=%+v\n", i, s.data[i].EndTime, s.data[i].Coord)
	}
	return b.String()
}
