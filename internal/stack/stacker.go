package stack

import (
	"context"
	"log/slog"

	"discstack/internal/detect"
	"discstack/internal/dropout"
	"discstack/internal/logging"
	"discstack/internal/metadata"
	"discstack/internal/pixel"
)

// Stacker is one worker. It repeatedly claims a bundle from its pool, stacks
// it and deposits the result until the pool is exhausted or aborted.
type Stacker struct {
	id       int
	pool     *Pool
	detector detect.Detector
	logger   *slog.Logger
}

// NewStacker returns a worker bound to pool. detector may be nil.
func NewStacker(id int, pool *Pool, detector detect.Detector, logger *slog.Logger) *Stacker {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Stacker{id: id, pool: pool, detector: detector, logger: logger.With(logging.Int("worker", id))}
}

// Run processes frames until the pool reports exhaustion. Cancellation of ctx
// aborts the pool; a frame already claimed is still completed and deposited.
func (s *Stacker) Run(ctx context.Context) {
	for {
		if ctx.Err() != nil {
			s.pool.Abort()
			return
		}
		bundle, ok := s.pool.Next()
		if !ok {
			return
		}
		s.logger.Debug("stacking frame",
			logging.Int(logging.FieldFrame, bundle.Frame),
			logging.Int("sources_available", len(bundle.Available)),
			logging.Int("sources_total", bundle.TotalSources),
		)
		if err := s.pool.Deposit(StackFrame(bundle, s.detector)); err != nil {
			return
		}
	}
}

// StackFrame stacks both fields of a bundle independently. detector may be
// nil; otherwise its findings are merged into each source's recorded dropouts
// before stacking.
func StackFrame(b *Bundle, detector detect.Detector) OutputFrame {
	out := OutputFrame{
		Frame:        b.Frame,
		SourceIndex:  -1,
		Contributing: len(b.Available),
	}
	if len(b.First) > 0 {
		out.SourceIndex = b.First[0].Source
		out.FirstFieldNumber = b.First[0].FieldNumber
		out.SecondFieldNumber = b.Second[0].FieldNumber
	}
	out.First, out.FirstDropouts = stackField(b.First, b.Video, detector)
	out.Second, out.SecondDropouts = stackField(b.Second, b.Video, detector)
	return out
}

func stackField(fields []SourceField, vp metadata.VideoParameters, detector detect.Detector) ([]uint16, dropout.List) {
	width, height := vp.FieldWidth, vp.FieldHeight
	output := make([]uint16, width*height)

	indexes := make([]*dropout.Index, len(fields))
	var detected []dropout.List
	if detector != nil && len(fields) > 0 {
		samples := make([][]uint16, len(fields))
		for i, f := range fields {
			samples[i] = f.Samples
		}
		detected = detect.ProcessField(detector, samples, vp)
	}
	for i, f := range fields {
		recorded := f.Dropouts
		if detected != nil {
			recorded = recorded.Clone()
			recorded.Merge(detected[i])
		}
		indexes[i] = dropout.NewIndex(recorded)
	}

	var dropouts dropout.List
	values := make([]uint16, 0, len(fields))
	masks := make([][]bool, len(fields))
	for y := 0; y < height; y++ {
		for i, idx := range indexes {
			masks[i] = idx.LineCovered(y+1, width)
		}
		row := y * width
		for x := 0; x < width; x++ {
			values = values[:0]
			for i, f := range fields {
				if masks[i] != nil && masks[i][x] {
					continue
				}
				values = append(values, f.Samples[row+x])
			}
			switch len(values) {
			case 0:
				output[row+x] = 0
				dropouts.Append(x, x, y+1)
			case 1:
				output[row+x] = values[0]
			case 2:
				output[row+x] = pixel.Mean2(values[0], values[1])
			default:
				output[row+x] = pixel.Median(values)
			}
		}
	}
	dropouts.Concatenate()
	return output, dropouts
}
