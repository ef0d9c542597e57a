package stack

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"discstack/internal/detect"
	"discstack/internal/faults"
	"discstack/internal/logging"
	"discstack/internal/source"
)

// Options configures a stacking run.
type Options struct {
	Workers        int
	Start          int
	Length         int
	Detector       detect.Detector
	ProgressBucket float64
	Logger         *slog.Logger
}

// Stats summarizes a run.
type Stats struct {
	RunID      string
	FirstFrame int
	LastFrame  int
	Frames     int
	// ZeroSourceFrames counts frames no source could supply.
	ZeroSourceFrames int
	// PartialFrames counts frames supplied by some but not all sources.
	PartialFrames int
	// DropoutSamples counts output samples no source could supply.
	DropoutSamples int
	Workers        int
	Elapsed        time.Duration
}

// Run stacks every frame of coll in the requested range into sink. The
// collection is frozen for the duration of the run.
func Run(ctx context.Context, coll *source.Collection, sink Sink, opts Options) (Stats, error) {
	runID := uuid.NewString()
	ctx = logging.WithRunID(ctx, runID)
	logger := logging.WithContext(ctx, logging.NewComponentLogger(opts.Logger, "stack"))

	workers := max(opts.Workers, 1)
	coll.Freeze()

	pool, err := NewPool(coll, sink, PoolOptions{
		Start:          opts.Start,
		Length:         opts.Length,
		ProgressBucket: opts.ProgressBucket,
		Logger:         logger,
	})
	if err != nil {
		return Stats{RunID: runID}, err
	}

	first, last := pool.Range()
	detectorName := "none"
	if opts.Detector != nil {
		detectorName = opts.Detector.Name()
	}
	logger.Info("stacking started",
		logging.Int("first_frame", first),
		logging.Int("last_frame", last),
		logging.Int("sources", coll.Len()),
		logging.Int("workers", workers),
		logging.String("detector", detectorName),
	)

	started := time.Now()
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		stacker := NewStacker(i, pool, opts.Detector, logger)
		wg.Go(func() { stacker.Run(ctx) })
	}
	wg.Wait()

	stats := pool.Stats()
	stats.RunID = runID
	stats.Workers = workers
	stats.Elapsed = time.Since(started)

	if err := pool.Err(); err != nil {
		return stats, err
	}
	if err := ctx.Err(); err != nil && !pool.Complete() {
		return stats, faults.Wrap(faults.ErrAborted, "stack", "run", "stacking cancelled", err)
	}

	logger.Info("stacking complete",
		logging.Int("frames", stats.Frames),
		logging.Int("zero_source_frames", stats.ZeroSourceFrames),
		logging.Int("partial_frames", stats.PartialFrames),
		logging.Int("dropout_samples", stats.DropoutSamples),
		logging.Duration("elapsed", stats.Elapsed),
	)
	return stats, nil
}
