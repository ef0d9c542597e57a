package main

import (
	"context"
	"errors"
	"testing"

	"github.com/spf13/cobra"

	"discstack/internal/detect"
	"discstack/internal/faults"
	"discstack/internal/source"
	"discstack/internal/stack"
	"discstack/internal/testsupport"
)

// deviant reads 40000 on row 1, columns 2 and 3, and 30000 elsewhere.
func deviant(_, _, x, y int) uint16 {
	if y == 1 && (x == 2 || x == 3) {
		return 40000
	}
	return 30000
}

func TestRunDetectionCountsPerSource(t *testing.T) {
	env := setupCLITestEnv(t)
	paths := []string{
		env.capture(t, "a.tbc"),
		env.capture(t, "b.tbc"),
		env.capture(t, "c.tbc", testsupport.WithSamples(deviant)),
	}
	coll, err := source.OpenCollection(context.Background(), paths, source.Options{Fs: env.fs})
	if err != nil {
		t.Fatalf("open collection: %v", err)
	}
	defer coll.Close()

	pool, err := stack.NewPool(coll, nil, stack.PoolOptions{})
	if err != nil {
		t.Fatalf("NewPool: %v", err)
	}
	cmd := &cobra.Command{}
	cmd.SetContext(context.Background())
	results, err := runDetection(cmd, pool, coll.Len(), detect.NewDiff(1000))
	if err != nil {
		t.Fatalf("runDetection: %v", err)
	}

	for i, r := range results {
		if r.frames != 4 {
			t.Fatalf("source %d examined %d frames, want 4", i, r.frames)
		}
	}
	if results[0].detected != 0 || results[1].detected != 0 {
		t.Fatalf("expected no detections on clean sources, got %+v", results)
	}
	if got := results[2]; got.detected != 8 || got.detectedSamples != 16 {
		t.Fatalf("expected 8 runs of 16 samples on the deviant source, got %+v", got)
	}
}

func TestDetectCommandRequiresDetector(t *testing.T) {
	env := setupCLITestEnv(t)
	a := env.capture(t, "a.tbc")
	_, _, err := runCLI(t, []string{"detect", a}, env.configPath)
	if !errors.Is(err, faults.ErrValidation) {
		t.Fatalf("expected validation error without a detector, got %v", err)
	}
}

func TestDetectCommandReportsDiff(t *testing.T) {
	env := setupCLITestEnv(t)
	a := env.capture(t, "a.tbc")
	b := env.capture(t, "b.tbc")
	c := env.capture(t, "c.tbc", testsupport.WithSamples(deviant))

	out, _, err := runCLI(t, []string{"detect", "--detector", "diff", "--diff-threshold", "1000", "--start", "2", a, b, c}, env.configPath)
	if err != nil {
		t.Fatalf("detect: %v", err)
	}
	requireContains(t, out, c)
	requireContains(t, out, "Detector diff over frames 2..4 (3 frames)")
}
