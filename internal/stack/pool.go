package stack

import (
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"discstack/internal/faults"
	"discstack/internal/logging"
	"discstack/internal/source"
)

// PoolOptions selects the frame range and progress reporting of a Pool.
type PoolOptions struct {
	// Start is the first VBI frame to stack. Zero or a value below the
	// collection minimum starts at the minimum.
	Start int
	// Length limits the number of frames. Zero runs to the collection maximum.
	Length         int
	ProgressBucket float64
	Logger         *slog.Logger
}

// Pool hands out frame bundles and releases completed frames to its sink in
// ascending order.
type Pool struct {
	coll *source.Collection
	sink Sink

	first int
	last  int

	mu        sync.Mutex
	nextInput int
	nextOut   int
	pending   map[int]OutputFrame
	err       error
	stats     Stats
	sampler   *logging.ProgressSampler
	logger    *slog.Logger

	aborted atomic.Bool
}

// NewPool prepares a pool over coll. The requested range is clamped to the
// collection's minimum and maximum VBI frames.
func NewPool(coll *source.Collection, sink Sink, opts PoolOptions) (*Pool, error) {
	first, last, err := FrameRange(coll, opts.Start, opts.Length)
	if err != nil {
		return nil, err
	}
	logger := opts.Logger
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Pool{
		coll:      coll,
		sink:      sink,
		first:     first,
		last:      last,
		nextInput: first,
		nextOut:   first,
		pending:   make(map[int]OutputFrame),
		sampler:   logging.NewProgressSampler(opts.ProgressBucket),
		logger:    logger,
		stats:     Stats{FirstFrame: first, LastFrame: last},
	}, nil
}

// FrameRange clamps a requested start and length to the collection's VBI
// frame range. A zero start begins at the minimum and a zero length runs to
// the maximum.
func FrameRange(coll *source.Collection, start, length int) (first, last int, err error) {
	first, last = coll.MinimumVbiFrame(), coll.MaximumVbiFrame()
	if start > first {
		first = start
	}
	if length > 0 && first+length-1 < last {
		last = first + length - 1
	}
	if first > last {
		return 0, 0, faults.Wrap(faults.ErrValidation, "stack", "select range",
			fmt.Sprintf("start frame %d is beyond the last available frame %d", start, coll.MaximumVbiFrame()), nil)
	}
	return first, last, nil
}

// Range returns the first and last frame the pool enumerates.
func (p *Pool) Range() (first, last int) { return p.first, p.last }

// Frames returns the number of frames the pool enumerates.
func (p *Pool) Frames() int { return p.last - p.first + 1 }

// Next claims the next frame and gathers its bundle. It returns false once
// every frame has been claimed or the pool has been aborted. A gather failure
// fails the pool and also returns false.
func (p *Pool) Next() (*Bundle, bool) {
	if p.aborted.Load() {
		return nil, false
	}
	p.mu.Lock()
	if p.nextInput > p.last {
		p.mu.Unlock()
		return nil, false
	}
	frame := p.nextInput
	p.nextInput++
	p.mu.Unlock()

	bundle, err := p.gather(frame)
	if err != nil {
		p.Fail(err)
		return nil, false
	}
	return bundle, true
}

func (p *Pool) gather(frame int) (*Bundle, error) {
	available := p.coll.AvailableSources(frame)
	b := &Bundle{
		Frame:        frame,
		Available:    available,
		TotalSources: p.coll.Len(),
		First:        make([]SourceField, 0, len(available)),
		Second:       make([]SourceField, 0, len(available)),
		Video:        p.coll.VideoParameters(),
	}
	for _, i := range available {
		src := p.coll.Source(i)
		firstSamples, secondSamples, err := src.FrameFieldData(frame)
		if err != nil {
			return nil, faults.Wrap(faults.ErrIO, "stack", "read frame", fmt.Sprintf("frame %d", frame), err)
		}
		firstDropouts, secondDropouts := src.FieldDropouts(frame)
		firstNumber, secondNumber := src.FieldNumbers(frame)
		b.First = append(b.First, SourceField{Source: i, FieldNumber: firstNumber, Samples: firstSamples, Dropouts: firstDropouts})
		b.Second = append(b.Second, SourceField{Source: i, FieldNumber: secondNumber, Samples: secondSamples, Dropouts: secondDropouts})
	}
	return b, nil
}

// Deposit hands back a completed frame. Frames are written to the sink as
// soon as every earlier frame has been written. A sink failure fails the pool
// and is returned to the depositing worker.
func (p *Pool) Deposit(out OutputFrame) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	if out.Frame < p.nextOut || out.Frame > p.last {
		err := fmt.Errorf("frame %d deposited outside the pending range %d..%d", out.Frame, p.nextOut, p.last)
		p.failLocked(err)
		return err
	}
	if _, dup := p.pending[out.Frame]; dup {
		err := fmt.Errorf("frame %d deposited twice", out.Frame)
		p.failLocked(err)
		return err
	}
	p.pending[out.Frame] = out

	for {
		next, ok := p.pending[p.nextOut]
		if !ok {
			return nil
		}
		delete(p.pending, p.nextOut)
		if err := p.sink.WriteFrame(next); err != nil {
			err = faults.Wrap(faults.ErrIO, "stack", "write frame", fmt.Sprintf("frame %d", next.Frame), err)
			p.failLocked(err)
			return err
		}
		p.record(next)
		p.nextOut++
	}
}

func (p *Pool) record(out OutputFrame) {
	p.stats.Frames++
	if out.Contributing == 0 {
		p.stats.ZeroSourceFrames++
		logging.WarnWithContext(p.logger, "no source supplies frame", "zero_source_frame",
			logging.Int(logging.FieldFrame, out.Frame),
			logging.Int("sources_total", p.coll.Len()),
			logging.String(logging.FieldImpact, "frame written as black with whole-field dropouts"),
		)
	} else if out.Contributing < p.coll.Len() {
		p.stats.PartialFrames++
	}
	p.stats.DropoutSamples += out.FirstDropouts.Samples() + out.SecondDropouts.Samples()

	percent := float64(p.stats.Frames) * 100 / float64(p.Frames())
	if p.sampler.ShouldLog(percent) {
		p.logger.Info("stacking progress",
			logging.Int(logging.FieldFrame, out.Frame),
			logging.Int("frames_done", p.stats.Frames),
			logging.Int("frames_total", p.Frames()),
			logging.Float64("percent", float64(int(percent*10))/10),
		)
	}
}

// Abort stops further frames from being claimed. Frames already claimed may
// still be deposited.
func (p *Pool) Abort() {
	p.aborted.Store(true)
}

// Aborted reports whether the pool has been aborted.
func (p *Pool) Aborted() bool {
	return p.aborted.Load()
}

// Fail records err as the pool's failure and aborts it. Only the first
// failure is kept.
func (p *Pool) Fail(err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.failLocked(err)
}

func (p *Pool) failLocked(err error) {
	if p.err == nil {
		p.err = err
		p.logger.Error("stacking failed",
			logging.Int("next_frame", p.nextOut),
			logging.Error(err),
		)
	}
	p.aborted.Store(true)
}

// Err returns the first failure recorded by the pool.
func (p *Pool) Err() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.err
}

// Complete reports whether every frame in the range reached the sink.
func (p *Pool) Complete() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.nextOut > p.last
}

// Stats returns a snapshot of the counters gathered so far.
func (p *Pool) Stats() Stats {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.stats
}
