// Package faults defines the error markers shared across discstack.
//
// Failures that abort a run are tagged with one of the sentinel markers so the
// CLI can classify them with errors.Is while the message keeps the component
// and operation that failed. Recoverable per-frame conditions are absorbed by
// the stacker and never reach this package.
package faults

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

var (
	ErrSourceOpen    = errors.New("source open failed")
	ErrValidation    = errors.New("validation error")
	ErrConfiguration = errors.New("configuration error")
	ErrIO            = errors.New("i/o error")
	ErrAborted       = errors.New("run aborted")
)

// Wrap builds an error message that includes component context while tagging
// it with the provided marker. The marker should be one of the sentinel errors
// above.
func Wrap(marker error, component, operation, message string, err error) error {
	detail := buildDetail(component, operation, message)
	if marker == nil {
		marker = ErrIO
	}
	if err != nil {
		return fmt.Errorf("%w: %s: %w", marker, detail, err)
	}
	return fmt.Errorf("%w: %s", marker, detail)
}

// ExitCode maps a run error to the process exit status.
func ExitCode(err error) int {
	switch {
	case err == nil:
		return 0
	case errors.Is(err, context.Canceled):
		return 130
	default:
		return 1
	}
}

func buildDetail(component, operation, message string) string {
	parts := make([]string, 0, 3)
	if component = strings.TrimSpace(component); component != "" {
		parts = append(parts, component)
	}
	if operation = strings.TrimSpace(operation); operation != "" {
		parts = append(parts, operation)
	}
	if message = strings.TrimSpace(message); message != "" {
		parts = append(parts, message)
	}
	if len(parts) == 0 {
		return "failure"
	}
	return strings.Join(parts, ": ")
}
