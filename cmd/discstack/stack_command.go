package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"discstack/internal/config"
	"discstack/internal/detect"
	"discstack/internal/faults"
	"discstack/internal/logging"
	"discstack/internal/metadata"
	"discstack/internal/output"
	"discstack/internal/preflight"
	"discstack/internal/source"
	"discstack/internal/stack"
)

type stackFlags struct {
	reverse        bool
	workers        int
	start          int
	length         int
	detector       string
	diffThreshold  int
	metadataFormat string
	overwrite      bool
}

func newStackCommand(ctx *commandContext) *cobra.Command {
	var flags stackFlags

	cmd := &cobra.Command{
		Use:   "stack <input.tbc>... <output.tbc>",
		Short: "Median-stack several captures of one disc into a new capture",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.runConfig()
			if err != nil {
				return err
			}
			if err := flags.apply(cmd, &cfg); err != nil {
				return err
			}
			inputs, target := args[:len(args)-1], args[len(args)-1]
			return runStack(cmd, ctx, &cfg, inputs, target)
		},
	}

	cmd.Flags().BoolVarP(&flags.reverse, "reverse", "r", false, "Reverse the field order of every source")
	cmd.Flags().IntVarP(&flags.workers, "workers", "t", 0, "Number of stacking workers (default: logical CPUs)")
	cmd.Flags().IntVar(&flags.start, "start", 0, "First VBI frame to stack")
	cmd.Flags().IntVar(&flags.length, "length", 0, "Number of frames to stack (0 stacks to the end)")
	cmd.Flags().StringVar(&flags.detector, "detector", "", "Extra dropout detector: none, clip or diff")
	cmd.Flags().IntVar(&flags.diffThreshold, "diff-threshold", 0, "Deviation threshold for the diff detector (experimental)")
	cmd.Flags().StringVar(&flags.metadataFormat, "metadata-format", "", "Output metadata format: json or sqlite")
	cmd.Flags().BoolVar(&flags.overwrite, "overwrite", false, "Replace an existing output capture")
	return cmd
}

// apply copies explicitly set flags over cfg and revalidates it.
func (f stackFlags) apply(cmd *cobra.Command, cfg *config.Config) error {
	changed := cmd.Flags().Changed
	if changed("reverse") {
		cfg.Stacking.ReverseFieldOrder = f.reverse
	}
	if changed("workers") {
		cfg.Stacking.Workers = f.workers
	}
	if changed("start") {
		cfg.Stacking.StartFrame = f.start
	}
	if changed("length") {
		cfg.Stacking.Length = f.length
	}
	if changed("detector") {
		cfg.Detection.Detector = f.detector
	}
	if changed("diff-threshold") {
		cfg.Detection.DiffThreshold = f.diffThreshold
	}
	if changed("metadata-format") {
		cfg.Output.MetadataFormat = f.metadataFormat
	}
	if changed("overwrite") {
		cfg.Output.Overwrite = f.overwrite
	}
	return finalizeFlags(cfg)
}

func finalizeFlags(cfg *config.Config) error {
	if err := cfg.Finalize(); err != nil {
		return faults.Wrap(faults.ErrConfiguration, "config", "apply flags", "", err)
	}
	return nil
}

func runStack(cmd *cobra.Command, ctx *commandContext, cfg *config.Config, inputs []string, target string) (err error) {
	logger, closeLog, err := ctx.newLogger(cmd, cfg.Logging)
	if err != nil {
		return err
	}
	defer closeQuietly(cmd.ErrOrStderr(), "log file", closeLog)

	detector, err := detect.New(cfg.Detection)
	if err != nil {
		return faults.Wrap(faults.ErrConfiguration, "detect", "select", cfg.Detection.Detector, err)
	}

	runCtx := cmd.Context()
	coll, err := source.OpenCollection(runCtx, inputs, source.Options{Logger: logger})
	if err != nil {
		return err
	}
	defer func() { err = errors.Join(err, coll.Close()) }()

	if err := coll.SetReverseFieldOrder(cfg.Stacking.ReverseFieldOrder); err != nil {
		return err
	}

	first, last, err := stack.FrameRange(coll, cfg.Stacking.StartFrame, cfg.Stacking.Length)
	if err != nil {
		return err
	}
	checks := preflight.RunAll(preflight.Plan{
		Output:      target,
		OutputBytes: preflight.EstimateOutputBytes(last-first+1, coll.VideoParameters()),
		LogDir:      cfg.Logging.Dir,
	})
	for _, check := range checks {
		logger.Debug("preflight", logging.String("check", check.Name), logging.Bool("passed", check.Passed), logging.String("detail", check.Detail))
	}
	if err := preflight.Err(checks); err != nil {
		return err
	}

	writer, err := output.Create(target, coll, output.Options{
		Format:    metadata.Format(cfg.Output.MetadataFormat),
		Overwrite: cfg.Output.Overwrite,
		Logger:    logger,
	})
	if err != nil {
		return err
	}

	stats, runErr := stack.Run(runCtx, coll, writer, stack.Options{
		Workers:        cfg.Stacking.Workers,
		Start:          cfg.Stacking.StartFrame,
		Length:         cfg.Stacking.Length,
		Detector:       detector,
		ProgressBucket: cfg.Stacking.ProgressBucket,
		Logger:         logger,
	})
	// Frames already written are kept on abort so the sidecar always matches
	// the sample file. After a failed sample write Close writes no sidecar.
	closeErr := writer.Close(context.WithoutCancel(runCtx))
	if runErr != nil || closeErr != nil {
		return errors.Join(runErr, closeErr)
	}

	logger.Debug("stack run finished", logging.String(logging.FieldRunID, stats.RunID))
	printStackSummary(cmd, writer.Path(), stats, detector)
	return nil
}

func printStackSummary(cmd *cobra.Command, target string, stats stack.Stats, detector detect.Detector) {
	detectorName := "none"
	if detector != nil {
		detectorName = detector.Name()
	}
	rows := [][]string{
		{"Output", target},
		{"Frames", fmt.Sprintf("%s (%d..%d)", count(stats.Frames), stats.FirstFrame, stats.LastFrame)},
		{"Frames without sources", count(stats.ZeroSourceFrames)},
		{"Frames with missing sources", count(stats.PartialFrames)},
		{"Unrecoverable samples", count(stats.DropoutSamples)},
		{"Detector", detectorName},
		{"Workers", count(stats.Workers)},
		{"Elapsed", formatElapsed(stats.Elapsed)},
	}
	out := cmd.OutOrStdout()
	fmt.Fprintln(out, renderTable(out, []string{"Stack", "Value"}, rows, []columnAlignment{alignLeft, alignRight}))
}
