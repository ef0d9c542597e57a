package faults_test

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"discstack/internal/faults"
)

func TestWrapKeepsMarkerAndCause(t *testing.T) {
	cause := errors.New("disk on fire")
	err := faults.Wrap(faults.ErrSourceOpen, "source", "open", "metadata unreadable", cause)
	if !errors.Is(err, faults.ErrSourceOpen) {
		t.Fatalf("expected ErrSourceOpen marker, got %v", err)
	}
	if !errors.Is(err, cause) {
		t.Fatalf("expected cause to be wrapped, got %v", err)
	}
	want := "source open failed: source: open: metadata unreadable: disk on fire"
	if err.Error() != want {
		t.Fatalf("unexpected message:\n got %q\nwant %q", err.Error(), want)
	}
}

func TestWrapDefaultsMarkerAndDetail(t *testing.T) {
	err := faults.Wrap(nil, " ", "", "", nil)
	if !errors.Is(err, faults.ErrIO) {
		t.Fatalf("expected default ErrIO marker, got %v", err)
	}
	if !strings.HasSuffix(err.Error(), ": failure") {
		t.Fatalf("unexpected message %q", err.Error())
	}
}

func TestExitCode(t *testing.T) {
	if faults.ExitCode(nil) != 0 {
		t.Fatal("expected 0 for nil error")
	}
	if got := faults.ExitCode(fmt.Errorf("run: %w", context.Canceled)); got != 130 {
		t.Fatalf("ExitCode(canceled) = %d, want 130", got)
	}
	if got := faults.ExitCode(faults.ErrValidation); got != 1 {
		t.Fatalf("ExitCode(validation) = %d, want 1", got)
	}
}
