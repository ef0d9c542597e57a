package detect

import (
	"discstack/internal/dropout"
	"discstack/internal/metadata"
	"discstack/internal/pixel"
)

// MinimumDiffSources is the fewest fields the diff detector can compare.
const MinimumDiffSources = 3

// Diff flags samples of the target field whose absolute deviation from the
// cross-source median exceeds a threshold. The threshold policy is
// experimental.
type Diff struct {
	threshold int
}

// NewDiff returns a diff detector with the given threshold in 16-bit sample
// units.
func NewDiff(threshold int) *Diff {
	return &Diff{threshold: threshold}
}

func (d *Diff) Name() string { return "diff" }

func (d *Diff) Process(in Input) dropout.List {
	median, ok := medianPlane(in.Fields, in.Video)
	if !ok {
		return nil
	}
	return d.compare(in.target(), median, in.Video)
}

// ProcessField compares every source against one median plane, so the
// cross-source median is taken once per field rather than once per source.
func (d *Diff) ProcessField(fields [][]uint16, vp metadata.VideoParameters) []dropout.List {
	out := make([]dropout.List, len(fields))
	median, ok := medianPlane(fields, vp)
	if !ok {
		return out
	}
	for i, f := range fields {
		out[i] = d.compare(f, median, vp)
	}
	return out
}

// medianPlane returns the per-pixel median of fields over the active window.
// Samples outside the window are left zero.
func medianPlane(fields [][]uint16, vp metadata.VideoParameters) ([]uint16, bool) {
	if len(fields) < MinimumDiffSources {
		return nil, false
	}
	samples := vp.FieldSamples()
	for _, f := range fields {
		if len(f) < samples {
			return nil, false
		}
	}

	rowStart, rowEnd, colStart, colEnd := window(vp)
	plane := make([]uint16, samples)
	values := make([]uint16, len(fields))
	for y := rowStart; y < rowEnd; y++ {
		for x := colStart; x < colEnd; x++ {
			offset := y*vp.FieldWidth + x
			for i, f := range fields {
				values[i] = f[offset]
			}
			plane[offset] = pixel.Middle(values)
		}
	}
	return plane, true
}

func (d *Diff) compare(target, median []uint16, vp metadata.VideoParameters) dropout.List {
	if len(target) < len(median) {
		return nil
	}
	rowStart, rowEnd, colStart, colEnd := window(vp)
	var out dropout.List
	for y := rowStart; y < rowEnd; y++ {
		runStart := -1
		for x := colStart; x < colEnd; x++ {
			offset := y*vp.FieldWidth + x
			deviation := int(target[offset]) - int(median[offset])
			if deviation < 0 {
				deviation = -deviation
			}
			flagged := deviation > d.threshold
			switch {
			case flagged && runStart < 0:
				runStart = x
			case !flagged && runStart >= 0:
				out.Append(runStart, x-1, y+1)
				runStart = -1
			}
		}
		if runStart >= 0 {
			out.Append(runStart, colEnd-1, y+1)
		}
	}
	out.Concatenate()
	return out
}
