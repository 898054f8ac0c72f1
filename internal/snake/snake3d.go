package snake

import "math"

// zTrajectory derives the per-plane Z imagespace position and the ps
// timestamp at which the TAG lens focus crosses it, for one full
// up-down cycle of the sinusoid sin(2π·t/tag_period). The cycle is
// split into four quadrants — ascending 0→1, descending 1→−1 (treated
// as one combined span, since arcsin is odd and handles the sign
// change), and ascending −1→0 — each inverted via arcsin to recover
// timing from position.
//
// planes should ideally be a multiple of 4 so the quadrants divide
// evenly; for other counts the remainder is folded into the last
// quadrant.
func zTrajectory(planes int, tagPeriod Ps, offset Ps) (zIm []Real, zPs []Ps) {
	quarter := planes / 4
	half := planes / 2
	remaining := planes - quarter - half
	quarterDelta := float64(tagPeriod) / 4

	zIm = make([]Real, 0, planes)
	zPs = make([]Ps, 0, planes)

	asinNorm := func(z float64) float64 {
		return math.Asin(z) / (math.Pi / 2)
	}

	// Quadrant 1: ascending 0 -> 1.
	for i := 0; i < quarter; i++ {
		z := float64(i+1) / float64(quarter)
		t := quarterDelta * asinNorm(z)
		zIm = append(zIm, Real(z))
		zPs = append(zPs, roundPs(t)+offset)
	}
	// Quadrants 2+3: descending 1 -> -1.
	for i := 0; i < half; i++ {
		z := 1 - float64(i+1)*(2.0/float64(half))
		t := quarterDelta*(1-asinNorm(z)) + quarterDelta
		zIm = append(zIm, Real(z))
		zPs = append(zPs, roundPs(t)+offset)
	}
	// Quadrant 4: ascending -1 -> 0.
	for i := 0; i < remaining; i++ {
		z := -1 + float64(i+1)*(1.0/float64(remaining))
		t := quarterDelta*(1+asinNorm(z)) + 3*quarterDelta
		zIm = append(zIm, Real(z))
		zPs = append(zPs, roundPs(t)+offset)
	}
	return zIm, zPs
}

// New3D builds a fresh 3D snake: one full 2D raster block per plane,
// each block's cells tagged with that plane's Z imagespace position,
// stacked back to back in time. The TAG-lens quadrant trajectory
// (zTrajectory) supplies the Z value each plane's block carries;
// per-row/column timing within a block reuses the same row templates
// as New2D.
func New3D(cfg AppConfig, offset Ps) *Snake {
	deltaPs := ComputeVoxelDeltaPs(cfg)
	deltaIm := ComputeVoxelDeltaReal(cfg)

	zIm, _ := zTrajectory(cfg.Planes, cfg.TagPeriod.Ps(), offset)

	data := make([]TimeCoordPair, 0, capacity3D(cfg))
	data = append(data, TimeCoordPair{EndTime: offset, Coord: discardCoord})

	colPs := rowTemplatePs(cfg.Columns, deltaPs)
	colIm := rowTemplateIm(cfg.Columns, deltaIm)
	advance := rowAdvancePs(deltaPs, cfg.Columns) // == colPs[cfg.Columns]
	colImRev := reverseRowIm(colIm)
	colPsRev := shiftRowPs(colPs, cfg.LineShift)

	lineOffset := offset
	for plane := 0; plane < cfg.Planes; plane++ {
		z := zIm[plane]
		if cfg.Bidirectional {
			for row := 0; row < cfg.Rows; row += 2 {
				rowCoord := Real(row)*deltaIm.Row - 1
				data = pushPlaneRow(data, colIm, colPs, rowCoord, z, lineOffset)
				lineOffset += advance
				rowCoord = Real(row+1)*deltaIm.Row - 1
				data = pushPlaneRow(data, colImRev, colPsRev, rowCoord, z, lineOffset)
				lineOffset += advance
			}
		} else {
			for row := 0; row < cfg.Rows; row++ {
				rowCoord := Real(row)*deltaIm.Row - 1
				data = pushPlaneRow(data, colIm, colPs, rowCoord, z, lineOffset)
				lineOffset += advance
			}
		}
	}

	data = data[:len(data)-1]

	return &Snake{
		data:          data,
		maxFrameTime:  data[len(data)-1].EndTime,
		earliestFrame: offset,
		frameDuration: Ps(cfg.Rows*cfg.Planes) * advance,
		voxelDeltaPs:  deltaPs,
		voxelDeltaIm:  deltaIm,
		is3D:          true,
		rows:          cfg.Rows,
		columns:       cfg.Columns,
	}
}

func pushPlaneRow(data []TimeCoordPair, im []Real, ps []Ps, rowCoord, z Real, lineOffset Ps) []TimeCoordPair {
	for i := range ps {
		data = append(data, TimeCoordPair{
			EndTime: ps[i] + lineOffset,
			Coord:   Coord3{X: rowCoord, Y: im[i], Z: z},
		})
	}
	return data
}
