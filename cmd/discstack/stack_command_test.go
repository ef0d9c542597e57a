package main

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"discstack/internal/faults"
	"discstack/internal/logging"
	"discstack/internal/metadata"
	"discstack/internal/source"
	"discstack/internal/testsupport"
)

func TestStackCommandWritesMedianCapture(t *testing.T) {
	env := setupCLITestEnv(t)
	a := env.capture(t, "a.tbc", testsupport.WithConstant(1000))
	b := env.capture(t, "b.tbc", testsupport.WithConstant(2000))
	c := env.capture(t, "c.tbc", testsupport.WithConstant(9000))
	target := filepath.Join(env.baseDir, "out", "stacked.tbc")

	out, _, err := runCLI(t, []string{"stack", "--metadata-format", "sqlite", "-t", "3", a, b, c, target}, env.configPath)
	if err != nil {
		t.Fatalf("stack: %v", err)
	}
	requireContains(t, out, "4 (1..4)")
	requireContains(t, out, target)

	if _, err := os.Stat(metadata.SidecarPath(target, metadata.FormatSQLite)); err != nil {
		t.Fatalf("expected sqlite sidecar: %v", err)
	}
	src, err := source.Open(context.Background(), 0, target, source.Options{Fs: env.fs})
	if err != nil {
		t.Fatalf("open stacked output: %v", err)
	}
	defer src.Close()
	first, second, err := src.FrameFieldData(3)
	if err != nil {
		t.Fatalf("read stacked frame: %v", err)
	}
	if first[5] != 2000 || second[40] != 2000 {
		t.Fatalf("expected median 2000, got %d/%d", first[5], second[40])
	}

	if _, err := os.Stat(filepath.Join(env.cfg.Logging.Dir, logging.LogFileName)); err != nil {
		t.Fatalf("expected log file in %s: %v", env.cfg.Logging.Dir, err)
	}
}

func TestStackCommandHonoursRange(t *testing.T) {
	env := setupCLITestEnv(t)
	a := env.capture(t, "a.tbc", testsupport.WithFrames(1, 8))
	target := filepath.Join(env.baseDir, "range.tbc")

	out, _, err := runCLI(t, []string{"stack", "--start", "3", "--length", "2", a, target}, env.configPath)
	if err != nil {
		t.Fatalf("stack: %v", err)
	}
	requireContains(t, out, "2 (3..4)")

	meta, _, err := metadata.Load(context.Background(), env.fs, target)
	if err != nil {
		t.Fatalf("load output metadata: %v", err)
	}
	if got := meta.NumberOfFields(); got != 4 {
		t.Fatalf("expected 4 output fields, got %d", got)
	}
}

func TestStackCommandRefusesExistingOutput(t *testing.T) {
	env := setupCLITestEnv(t)
	a := env.capture(t, "a.tbc")
	target := filepath.Join(env.baseDir, "twice.tbc")

	if _, _, err := runCLI(t, []string{"stack", a, target}, env.configPath); err != nil {
		t.Fatalf("first stack: %v", err)
	}
	_, _, err := runCLI(t, []string{"stack", a, target}, env.configPath)
	if !errors.Is(err, faults.ErrValidation) {
		t.Fatalf("expected validation error for existing output, got %v", err)
	}
	if _, _, err := runCLI(t, []string{"stack", "--overwrite", a, target}, env.configPath); err != nil {
		t.Fatalf("stack --overwrite: %v", err)
	}
}

func TestStackCommandRejectsMixedStandards(t *testing.T) {
	env := setupCLITestEnv(t)
	ntsc := env.capture(t, "ntsc.tbc")
	pal := env.capture(t, "pal.tbc", testsupport.WithPAL())

	_, _, err := runCLI(t, []string{"stack", ntsc, pal, filepath.Join(env.baseDir, "mixed.tbc")}, env.configPath)
	if !errors.Is(err, faults.ErrSourceOpen) {
		t.Fatalf("expected source open error, got %v", err)
	}
	var openErr *source.OpenError
	if !errors.As(err, &openErr) || openErr.Index != 1 {
		t.Fatalf("expected failure on source 1, got %v", err)
	}
}

func TestStackCommandDiffNeedsThreshold(t *testing.T) {
	env := setupCLITestEnv(t)
	a := env.capture(t, "a.tbc")

	_, _, err := runCLI(t, []string{"stack", "--detector", "diff", a, filepath.Join(env.baseDir, "out.tbc")}, env.configPath)
	if !errors.Is(err, faults.ErrConfiguration) {
		t.Fatalf("expected configuration error, got %v", err)
	}
}

func TestStackCommandNeedsOutput(t *testing.T) {
	env := setupCLITestEnv(t)
	a := env.capture(t, "a.tbc")
	if _, _, err := runCLI(t, []string{"stack", a}, env.configPath); err == nil {
		t.Fatal("expected an argument error with a single path")
	}
}
