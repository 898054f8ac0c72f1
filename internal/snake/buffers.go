package snake

import "math"

// incrementColorBy is the multiplicative brightening factor applied to
// the merged display map each time a second (or later) photon lands on
// an already-populated voxel in the same frame.
const incrementColorBy = 1.15

// FrameBuffers accumulates one frame's worth of displayed photons: a
// per-PMT-channel count map (saturating u8) and a merged display-color
// map. Both are keyed by a quantized VoxelKey, never by the raw
// floating coordinate, so repeat visits to the same voxel collapse to
// one map entry.
type FrameBuffers struct {
	deltaIm  VoxelDelta[Real]
	rows     int
	columns  int
	planes   int
	channels [4]map[VoxelKey]uint8
	merged   map[VoxelKey]RGB
}

// NewFrameBuffers allocates empty buffers sized for the given geometry.
func NewFrameBuffers(cfg AppConfig, deltaIm VoxelDelta[Real]) *FrameBuffers {
	fb := &FrameBuffers{
		deltaIm: deltaIm,
		rows:    cfg.Rows,
		columns: cfg.Columns,
		planes:  cfg.Planes,
		merged:  make(map[VoxelKey]RGB),
	}
	for i := range fb.channels {
		fb.channels[i] = make(map[VoxelKey]uint8)
	}
	return fb
}

// quantize rounds a real-space coordinate to the nearest precomputed
// grid point and reports whether it landed inside the grid; an
// out-of-grid coordinate (beyond the configured rows/columns/planes
// after rounding) is dropped rather than clamped.
func (fb *FrameBuffers) quantize(c Coord3) (VoxelKey, bool) {
	col := math.Round((c.Y + 1) / fb.deltaIm.Column)
	row := math.Round((c.X + 1) / fb.deltaIm.Row)
	var plane float64
	if fb.planes > 1 {
		plane = math.Round((c.Z + 1) / fb.deltaIm.Plane)
	}
	if row < 0 || row >= float64(fb.rows) || col < 0 || col >= float64(fb.columns) {
		return VoxelKey{}, false
	}
	if fb.planes > 1 && (plane < 0 || plane >= float64(fb.planes)) {
		return VoxelKey{}, false
	}
	return VoxelKey{Row: int32(row), Column: int32(col), Plane: int32(plane)}, true
}

// Add records one displayed photon on the given PMT channel index
// (0..3). NaN or out-of-grid coordinates are silently dropped.
func (fb *FrameBuffers) Add(channelIndex int, coord Coord3, color RGB) {
	if coord.IsDiscard() {
		return
	}
	key, ok := fb.quantize(coord)
	if !ok {
		return
	}
	if channelIndex >= 0 && channelIndex < len(fb.channels) {
		if fb.channels[channelIndex][key] < math.MaxUint8 {
			fb.channels[channelIndex][key]++
		}
	}
	if existing, present := fb.merged[key]; present {
		fb.merged[key] = brighten(existing, incrementColorBy)
	} else {
		fb.merged[key] = color
	}
}

// brighten scales each RGB component by factor, saturating at 255.
func brighten(c RGB, factor float64) RGB {
	scale := func(v uint8) uint8 {
		scaled := math.Round(float64(v) * factor)
		if scaled > 255 {
			return 255
		}
		return uint8(scaled)
	}
	return RGB{R: scale(c.R), G: scale(c.G), B: scale(c.B)}
}

// Snapshot copies the current buffer contents into a FinishedFrame and
// clears the per-channel count maps. The merged map is cleared too
// unless keepMerged is set: rolling-average rendering retains it
// across frames so the renderer can blend with geometric decay.
func (fb *FrameBuffers) Snapshot(sequence uint64, maxFrameTime Ps, keepMerged bool) FinishedFrame {
	out := FinishedFrame{
		Sequence:     sequence,
		MaxFrameTime: maxFrameTime,
		Merged:       fb.merged,
	}
	for i, m := range fb.channels {
		out.Channels[i] = m
		fb.channels[i] = make(map[VoxelKey]uint8)
	}
	if keepMerged {
		merged := make(map[VoxelKey]RGB, len(fb.merged))
		for k, v := range fb.merged {
			merged[k] = v
		}
		fb.merged = merged
	} else {
		fb.merged = make(map[VoxelKey]RGB)
	}
	return out
}
