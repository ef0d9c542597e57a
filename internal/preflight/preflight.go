package preflight

import (
	"fmt"
	"path/filepath"
	"strings"

	"discstack/internal/faults"
	"discstack/internal/metadata"
)

// Result reports the outcome of a single preflight check.
type Result struct {
	Name   string
	Passed bool
	Detail string
}

// Plan describes the files a run is about to write.
type Plan struct {
	// Output is the .tbc path of the stacked capture.
	Output string
	// OutputBytes is the expected size of the sample file.
	OutputBytes uint64
	// LogDir is the configured log directory, if any.
	LogDir string
}

// EstimateOutputBytes returns the size of a sample file holding frames
// frames of the given geometry: two fields of 16-bit samples per frame.
func EstimateOutputBytes(frames int, vp metadata.VideoParameters) uint64 {
	if frames <= 0 {
		return 0
	}
	return uint64(frames) * 2 * uint64(vp.FieldSamples()) * 2
}

// RunAll executes the checks that apply to plan.
func RunAll(plan Plan) []Result {
	outputDir := existingAncestor(filepath.Dir(plan.Output))

	results := []Result{
		CheckDirectoryAccess("Output directory", outputDir),
		CheckFreeSpace("Output free space", outputDir, plan.OutputBytes),
	}

	// Log directory (when configured)
	if plan.LogDir != "" {
		results = append(results, CheckDirectoryAccess("Log directory", plan.LogDir))
	}
	return results
}

// Err folds failed results into one validation error. It returns nil when
// every check passed.
func Err(results []Result) error {
	var failed []string
	for _, r := range results {
		if !r.Passed {
			failed = append(failed, fmt.Sprintf("%s: %s", r.Name, r.Detail))
		}
	}
	if len(failed) == 0 {
		return nil
	}
	return faults.Wrap(faults.ErrValidation, "preflight", "check", strings.Join(failed, "; "), nil)
}
