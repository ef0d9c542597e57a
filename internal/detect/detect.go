// Package detect derives dropout lists from field samples without relying on
// the dropouts recorded in capture metadata.
//
// Two detectors are provided: Clip flags samples that overshoot the black and
// white levels, and Diff flags samples that stray from the median of the same
// pixel across several sources. Both work on one field at a time inside the
// active video window and report field-local, 1-based line numbers.
package detect

import (
	"fmt"

	"discstack/internal/config"
	"discstack/internal/dropout"
	"discstack/internal/metadata"
)

// Input is one field as seen by every contributing source.
type Input struct {
	// Fields holds the same field from each source. Fields[Target] is the
	// field the result describes.
	Fields [][]uint16
	Target int
	Video  metadata.VideoParameters
}

func (in Input) target() []uint16 {
	if in.Target < 0 || in.Target >= len(in.Fields) {
		return nil
	}
	return in.Fields[in.Target]
}

// Detector finds dropouts in the target field of an Input.
type Detector interface {
	Name() string
	Process(in Input) dropout.List
}

// fieldDetector is implemented by detectors that can share work across all
// sources of one field.
type fieldDetector interface {
	ProcessField(fields [][]uint16, vp metadata.VideoParameters) []dropout.List
}

// ProcessField runs d against every source of one field and returns one list
// per source, in the order of fields.
func ProcessField(d Detector, fields [][]uint16, vp metadata.VideoParameters) []dropout.List {
	if fd, ok := d.(fieldDetector); ok {
		return fd.ProcessField(fields, vp)
	}
	out := make([]dropout.List, len(fields))
	for i := range fields {
		out[i] = d.Process(Input{Fields: fields, Target: i, Video: vp})
	}
	return out
}

// New returns the detector selected by cfg. The "none" detector yields a nil
// Detector and no error.
func New(cfg config.Detection) (Detector, error) {
	switch cfg.Detector {
	case config.DetectorNone, "":
		return nil, nil
	case config.DetectorClip:
		return NewClip(cfg.ClipMarginPercent, cfg.ClipScanRange), nil
	case config.DetectorDiff:
		if cfg.DiffThreshold <= 0 {
			return nil, fmt.Errorf("diff detector requires a positive threshold")
		}
		return NewDiff(cfg.DiffThreshold), nil
	default:
		return nil, fmt.Errorf("unknown detector %q", cfg.Detector)
	}
}

// window returns the active rows and columns of a field.
func window(vp metadata.VideoParameters) (rowStart, rowEnd, colStart, colEnd int) {
	rowStart, rowEnd = vp.ActiveFieldLines()
	colStart, colEnd = vp.ActiveColumns()
	return rowStart, rowEnd, colStart, colEnd
}
