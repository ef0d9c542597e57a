package main

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/samber/lo"
	"github.com/spf13/cobra"

	"discstack/internal/detect"
	"discstack/internal/faults"
	"discstack/internal/logging"
	"discstack/internal/source"
	"discstack/internal/stack"
)

type detectFlags struct {
	reverse       bool
	start         int
	length        int
	detector      string
	diffThreshold int
}

// sourceDetection accumulates per-source counts for the detect report.
type sourceDetection struct {
	frames          int
	recorded        int
	detected        int
	detectedSamples int
}

func newDetectCommand(ctx *commandContext) *cobra.Command {
	var flags detectFlags

	cmd := &cobra.Command{
		Use:   "detect <input.tbc>...",
		Short: "Count the dropouts a detector finds in each capture",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) (err error) {
			cfg, err := ctx.runConfig()
			if err != nil {
				return err
			}
			changed := cmd.Flags().Changed
			if changed("reverse") {
				cfg.Stacking.ReverseFieldOrder = flags.reverse
			}
			if changed("start") {
				cfg.Stacking.StartFrame = flags.start
			}
			if changed("length") {
				cfg.Stacking.Length = flags.length
			}
			if changed("detector") {
				cfg.Detection.Detector = flags.detector
			}
			if changed("diff-threshold") {
				cfg.Detection.DiffThreshold = flags.diffThreshold
			}
			if err := finalizeFlags(&cfg); err != nil {
				return err
			}

			detector, err := detect.New(cfg.Detection)
			if err != nil {
				return faults.Wrap(faults.ErrConfiguration, "detect", "select", cfg.Detection.Detector, err)
			}
			if detector == nil {
				return faults.Wrap(faults.ErrValidation, "detect", "select", "no detector selected (use --detector clip or --detector diff)", nil)
			}

			logger, closeLog, err := ctx.newLogger(cmd, cfg.Logging)
			if err != nil {
				return err
			}
			defer closeQuietly(cmd.ErrOrStderr(), "log file", closeLog)

			coll, err := source.OpenCollection(cmd.Context(), args, source.Options{Logger: logger})
			if err != nil {
				return err
			}
			defer func() { err = errors.Join(err, coll.Close()) }()
			if err := coll.SetReverseFieldOrder(cfg.Stacking.ReverseFieldOrder); err != nil {
				return err
			}

			pool, err := stack.NewPool(coll, nil, stack.PoolOptions{
				Start:  cfg.Stacking.StartFrame,
				Length: cfg.Stacking.Length,
				Logger: logger,
			})
			if err != nil {
				return err
			}
			results, err := runDetection(cmd, pool, coll.Len(), detector)
			if err != nil {
				return err
			}

			first, last := pool.Range()
			logger.Info("detection finished",
				logging.String("detector", detector.Name()),
				logging.Int("first_frame", first),
				logging.Int("last_frame", last),
			)
			out := cmd.OutOrStdout()
			fmt.Fprintln(out, renderTable(out, detectHeaders, detectRows(coll, results), detectAligns))
			fmt.Fprintf(out, "Detector %s over frames %d..%d (%s frames)\n", detector.Name(), first, last, count(pool.Frames()))
			return nil
		},
	}

	cmd.Flags().BoolVarP(&flags.reverse, "reverse", "r", false, "Reverse the field order of every source")
	cmd.Flags().IntVar(&flags.start, "start", 0, "First VBI frame to examine")
	cmd.Flags().IntVar(&flags.length, "length", 0, "Number of frames to examine (0 runs to the end)")
	cmd.Flags().StringVar(&flags.detector, "detector", "", "Dropout detector: clip or diff")
	cmd.Flags().IntVar(&flags.diffThreshold, "diff-threshold", 0, "Deviation threshold for the diff detector (experimental)")
	return cmd
}

// runDetection walks the pool sequentially. Bundles are never deposited; the
// pool only supplies range clamping and frame gathering.
func runDetection(cmd *cobra.Command, pool *stack.Pool, sources int, detector detect.Detector) ([]sourceDetection, error) {
	results := make([]sourceDetection, sources)
	for {
		if err := cmd.Context().Err(); err != nil {
			return nil, err
		}
		bundle, ok := pool.Next()
		if !ok {
			break
		}
		for _, fields := range [][]stack.SourceField{bundle.First, bundle.Second} {
			samples := lo.Map(fields, func(f stack.SourceField, _ int) []uint16 { return f.Samples })
			detected := detect.ProcessField(detector, samples, bundle.Video)
			for i, f := range fields {
				found := detected[i]
				r := &results[f.Source]
				r.recorded += len(f.Dropouts)
				r.detected += len(found)
				r.detectedSamples += found.Samples()
			}
		}
		for _, i := range bundle.Available {
			results[i].frames++
		}
	}
	if err := pool.Err(); err != nil {
		return nil, err
	}
	return results, nil
}

var (
	detectHeaders = []string{"#", "Capture", "Frames", "Recorded", "Detected", "Detected samples"}
	detectAligns  = []columnAlignment{alignRight, alignLeft, alignRight, alignRight, alignRight, alignRight}
)

func detectRows(coll *source.Collection, results []sourceDetection) [][]string {
	rows := make([][]string, 0, len(results))
	for i, r := range results {
		rows = append(rows, []string{
			strconv.Itoa(i),
			coll.Source(i).Path(),
			count(r.frames),
			count(r.recorded),
			count(r.detected),
			count(r.detectedSamples),
		})
	}
	return rows
}
