package detect

import (
	"discstack/internal/dropout"
)

// Clip flags luma clipping: samples beyond the black and white levels by more
// than a margin. Each event is widened to the nearest in-range samples within
// the scan range on either side.
type Clip struct {
	marginPercent float64
	scanRange     int
}

// NewClip returns a clip detector. marginPercent is the allowed overshoot as a
// percentage of the black-to-white range.
func NewClip(marginPercent float64, scanRange int) *Clip {
	if scanRange < 1 {
		scanRange = 1
	}
	return &Clip{marginPercent: marginPercent, scanRange: scanRange}
}

func (c *Clip) Name() string { return "clip" }

// Limits returns the clip thresholds for the given levels, clamped to the
// 16-bit sample range.
func (c *Clip) Limits(black, white int) (low, high int) {
	margin := int(float64(white-black) * c.marginPercent / 100)
	low = max(black-margin, 0)
	high = min(white+margin, 65535)
	return low, high
}

func (c *Clip) Process(in Input) dropout.List {
	field := in.target()
	vp := in.Video
	if len(field) < vp.FieldSamples() {
		return nil
	}
	black, white := vp.Black16bIre, vp.White16bIre
	low, high := c.Limits(black, white)
	inRange := func(v int) bool { return v >= black && v <= white }

	rowStart, rowEnd, colStart, colEnd := window(vp)
	var out dropout.List
	for y := rowStart; y < rowEnd; y++ {
		line := field[y*vp.FieldWidth : (y+1)*vp.FieldWidth]
		for x := colStart; x < colEnd; x++ {
			v := int(line[x])
			if v >= low && v <= high {
				continue
			}

			minX := max(x-c.scanRange, colStart)
			maxX := min(x+c.scanRange, colEnd-1)

			start := minX
			for i := x - 1; i >= minX; i-- {
				if inRange(int(line[i])) {
					start = i + 1
					break
				}
			}
			end := maxX
			for i := x + 1; i <= maxX; i++ {
				if inRange(int(line[i])) {
					end = i - 1
					break
				}
			}

			if end > start {
				out.Append(start, end, y+1)
			}
			x += c.scanRange
		}
	}
	return out
}
