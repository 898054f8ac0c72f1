package snake

import "math"

// VoxelDelta holds the four inter-cell durations (or imagespace steps)
// that separate adjacent columns, rows, planes, and frames. T is either
// Ps (for timing) or Real (for imagespace geometry).
type VoxelDelta[T Ps | Real] struct {
	Column T
	Row    T
	Plane  T
	Frame  T
}

// roundPs converts a float64 picosecond value to Ps using nearest-
// integer rounding, never truncation — truncating would bias every
// inter-cell duration downward and accumulate visible drift over a
// frame's thousands of rows.
func roundPs(v float64) Ps {
	return Ps(math.Round(v))
}

// effectiveLinePeriodPs is the time the scanner is actually inside the
// image, as opposed to the full half-scan-period it's given: the two
// differ by the fill fraction. Shared by ComputeVoxelDeltaPs and the
// snake builder's row template, which needs it directly rather than
// re-deriving it from VoxelDelta.
//
// The fill-fraction divide happens at float32 precision before
// widening to float64 for the multiply against halfScan: the
// instrument's fill fraction is a single-precision quantity upstream
// of this core, and the deltas must carry its rounding error
// bit-for-bit rather than drift a few picoseconds from a pure-f64
// computation.
func effectiveLinePeriodPs(cfg AppConfig) Ps {
	halfScan := cfg.ScanPeriod.Ps() / 2
	fraction := float32(cfg.FillFraction) / 100
	return roundPs(float64(halfScan) * float64(fraction))
}

// ComputeVoxelDeltaPs derives the four inter-cell durations in
// picoseconds from an AppConfig. The
// half-scan, column, and plane divisions are integer (truncating),
// matching the scanner's own quantization; only the fill-fraction
// multiply is rounded to the nearest ps, since that's the one place a
// real (not integer-periodic) quantity enters the computation.
func ComputeVoxelDeltaPs(cfg AppConfig) VoxelDelta[Ps] {
	halfScan := cfg.ScanPeriod.Ps() / 2
	effectiveLinePeriod := effectiveLinePeriodPs(cfg)

	column := effectiveLinePeriod / Ps(cfg.Columns)

	var row Ps
	if cfg.Bidirectional {
		row = halfScan - effectiveLinePeriod
	} else {
		row = halfScan + 2*(halfScan-effectiveLinePeriod)
	}

	plane := (cfg.TagPeriod.Ps() / 2) / Ps(cfg.Planes)

	return VoxelDelta[Ps]{
		Column: column,
		Row:    row,
		Plane:  plane,
		Frame:  cfg.FrameDeadTime,
	}
}

// ComputeVoxelDeltaReal derives the four inter-cell imagespace steps,
// normalized to [-1, +1]. Frame has no imagespace meaning and is
// reported as NaN.
func ComputeVoxelDeltaReal(cfg AppConfig) VoxelDelta[Real] {
	column := 2 / float64(cfg.Columns-1)
	row := 2 / float64(cfg.Rows-1)

	var plane float64
	if cfg.Planes <= 1 {
		plane = 2
	} else {
		plane = 2 / float64(cfg.Planes-1)
	}

	return VoxelDelta[Real]{
		Column: column,
		Row:    row,
		Plane:  plane,
		Frame:  math.NaN(),
	}
}

// rowAdvancePs is the per-row line-offset advance the snake builder
// applies between rows: the row template's own trailing cell,
// columns*Δcol+Δrow (see rowTemplatePs in snake.go). This is built from
// Δcol directly rather than effectiveLinePeriodPs, because Δcol is
// itself a truncating division of the effective line period — for
// column counts that don't divide it evenly, columns*Δcol undershoots
// effectiveLinePeriod by the truncation remainder. The snake's
// FrameDuration() (rows*rowAdvancePs) therefore differs from
// FrameDurationPs's nominal value; see FrameDurationPs's doc comment.
func rowAdvancePs(delta VoxelDelta[Ps], columns int) Ps {
	return Ps(columns)*delta.Column + delta.Row
}

// FrameDurationPs returns the nominal duration of one frame as the
// configuration defines it: rows times the full scan half-period for
// bidirectional scanning (every row, forward or reversed, takes one
// half-period including its mirror turnaround), or rows times the full
// scan period for unidirectional scanning (every row pays a full
// period: one half for the active sweep, one half for the flyback).
// This is a property of AppConfig alone and deliberately does not
// route through the snake builder's own per-row advance
// (rowAdvancePs), so the two differ. For bidirectional scans
// rowAdvancePs sums the *truncated* per-column delta and falls short of
// halfScan by the truncation remainder: a few dozen nanoseconds over a
// whole frame (46,592 ps at 256x256, 7926.17 Hz, 71.3% fill). For
// unidirectional scans Δrow is halfScan+2*(halfScan-effectiveLinePeriod),
// so each snake row spans one scan period plus
// (halfScan-effectiveLinePeriod), less that remainder: about 4.6 ms per
// frame more than this value for the same geometry.
func FrameDurationPs(cfg AppConfig) Ps {
	halfScan := cfg.ScanPeriod.Ps() / 2
	if cfg.Bidirectional {
		return Ps(cfg.Rows) * halfScan
	}
	return Ps(cfg.Rows) * cfg.ScanPeriod.Ps()
}

// FrameRateHz reports frames-per-second implied by FrameDurationPs.
func FrameRateHz(cfg AppConfig) float64 {
	d := FrameDurationPs(cfg)
	if d <= 0 {
		return 0
	}
	return 1e12 / float64(d)
}
