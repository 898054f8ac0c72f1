package snake

import (
	"fmt"
	"math"
)

// Ps is a picosecond-resolution duration or absolute timestamp. All
// timing in this package, from the tagger's raw event stream to the
// snake's end_time cells, is expressed in Ps.
type Ps int64

// Real is a normalized imagespace coordinate component, in [-1, +1].
// NaN denotes a "discard" voxel: mirror turnaround or an inter-frame gap.
type Real = float64

// Period couples a Ps duration to the frequency it was derived from.
// Conversion to Hz is exact to within float64 rounding; conversion from
// Hz rounds to the nearest picosecond so repeated round-trips don't
// accumulate drift over a long acquisition.
type Period struct {
	ps Ps
}

// PeriodFromPs builds a Period directly from a picosecond duration.
func PeriodFromPs(ps Ps) Period {
	return Period{ps: ps}
}

// PeriodFromFreq builds a Period from a frequency in Hz.
func PeriodFromFreq(hz float64) Period {
	return Period{ps: Ps(math.Round(1e12 / hz))}
}

// Ps returns the period's duration in picoseconds.
func (p Period) Ps() Ps { return p.ps }

// Hz returns the period's frequency, the inverse of its Ps duration.
func (p Period) Hz() float64 {
	if p.ps == 0 {
		return 0
	}
	return 1e12 / float64(p.ps)
}

// MarshalText implements encoding.TextMarshaler so Period round-trips
// through TOML as a plain picosecond integer.
func (p Period) MarshalText() ([]byte, error) {
	return []byte(fmt.Sprintf("%d", int64(p.ps))), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (p *Period) UnmarshalText(text []byte) error {
	var v int64
	if _, err := fmt.Sscanf(string(text), "%d", &v); err != nil {
		return fmt.Errorf("snake: invalid period %q: %w", text, err)
	}
	p.ps = Ps(v)
	return nil
}

// ChannelID is a signed small integer in [-18, +18]. Sign encodes rising
// (positive) vs falling (negative) edge; magnitude names a physical
// input 1..18. Zero means "not connected".
type ChannelID int8

const (
	minChannelID ChannelID = -18
	maxChannelID ChannelID = 18
)

// InputChannel pairs a signed channel id with its detection threshold.
// The threshold is opaque to the core; it is passed through to the
// tagger-driver bridge collaborator unexamined.
type InputChannel struct {
	Channel   ChannelID `toml:"channel"`
	Threshold float32   `toml:"threshold"`
}

// Connected reports whether this channel is wired to a physical input.
func (c InputChannel) Connected() bool { return c.Channel != 0 }

// DataKind classifies what an input channel produces.
type DataKind uint8

const (
	Invalid DataKind = iota
	Pmt1
	Pmt2
	Pmt3
	Pmt4
	Line
	Frame
	TagLens
	Laser
	Ignored
)

func (k DataKind) String() string {
	switch k {
	case Pmt1:
		return "Pmt1"
	case Pmt2:
		return "Pmt2"
	case Pmt3:
		return "Pmt3"
	case Pmt4:
		return "Pmt4"
	case Line:
		return "Line"
	case Frame:
		return "Frame"
	case TagLens:
		return "TagLens"
	case Laser:
		return "Laser"
	case Ignored:
		return "Ignored"
	default:
		return "Invalid"
	}
}

// PmtChannelIndex returns the 0..3 channel index used to select a
// display color and per-channel buffer, or false if k is not a PMT kind.
func (k DataKind) PmtChannelIndex() (int, bool) {
	switch k {
	case Pmt1:
		return 0, true
	case Pmt2:
		return 1, true
	case Pmt3:
		return 2, true
	case Pmt4:
		return 3, true
	default:
		return 0, false
	}
}

// Coord3 is an imagespace coordinate. A NaN component marks a discard
// voxel (turnaround or inter-frame gap).
type Coord3 struct {
	X, Y, Z Real
}

// IsDiscard reports whether any component is NaN.
func (c Coord3) IsDiscard() bool {
	return math.IsNaN(c.X) || math.IsNaN(c.Y) || math.IsNaN(c.Z)
}

var discardCoord = Coord3{X: math.NaN(), Y: math.NaN(), Z: math.NaN()}

// TimeCoordPair is one cell of a Snake: the end_time of the window
// during which the laser occupied coord.
type TimeCoordPair struct {
	EndTime Ps
	Coord   Coord3
}

// RGB is a display color triple, component range [0, 255].
type RGB struct {
	R, G, B uint8
}

// FinishedFrame is the outbound message delivered to the renderer and
// serializer collaborators when a frame is flushed.
type FinishedFrame struct {
	Sequence     uint64
	MaxFrameTime Ps
	TraceID      string
	Channels     [4]map[VoxelKey]uint8
	Merged       map[VoxelKey]RGB
}

// VoxelKey is a quantized imagespace voxel coordinate, suitable as a map
// key (float64 is not comparable-safe across NaN, but quantization
// always rounds to a finite grid point before keying).
type VoxelKey struct {
	Row, Column, Plane int32
}
