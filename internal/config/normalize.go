package config

import (
	"fmt"
	"os"
	"runtime"
	"strconv"
	"strings"

	"github.com/shirou/gopsutil/v3/cpu"
)

// logicalCPUs falls back to the Go runtime when gopsutil cannot read the
// processor topology.
var logicalCPUs = func() int {
	if n, err := cpu.Counts(true); err == nil && n > 0 {
		return n
	}
	return runtime.NumCPU()
}

func (c *Config) normalize() error {
	if err := c.normalizeStacking(); err != nil {
		return err
	}
	c.normalizeDetection()
	c.normalizeOutput()
	return c.normalizeLogging()
}

// Finalize re-applies normalization after callers override fields (for
// example from command-line flags) and validates the result.
func (c *Config) Finalize() error {
	if err := c.normalize(); err != nil {
		return err
	}
	return c.Validate()
}

func (c *Config) normalizeStacking() error {
	if c.Stacking.Workers == 0 {
		if value, ok := os.LookupEnv("DISCSTACK_WORKERS"); ok && strings.TrimSpace(value) != "" {
			workers, err := strconv.Atoi(strings.TrimSpace(value))
			if err != nil {
				return fmt.Errorf("DISCSTACK_WORKERS: %w", err)
			}
			c.Stacking.Workers = workers
		}
	}
	if c.Stacking.Workers == 0 {
		c.Stacking.Workers = logicalCPUs()
	}
	if c.Stacking.ProgressBucket <= 0 {
		c.Stacking.ProgressBucket = defaultProgressBucket
	}
	return nil
}

func (c *Config) normalizeDetection() {
	c.Detection.Detector = strings.ToLower(strings.TrimSpace(c.Detection.Detector))
	if c.Detection.Detector == "" {
		c.Detection.Detector = defaultDetector
	}
	if c.Detection.ClipScanRange == 0 {
		c.Detection.ClipScanRange = defaultClipScanRange
	}
}

func (c *Config) normalizeOutput() {
	c.Output.MetadataFormat = strings.ToLower(strings.TrimSpace(c.Output.MetadataFormat))
	switch c.Output.MetadataFormat {
	case "", "json":
		c.Output.MetadataFormat = "json"
	case "db":
		c.Output.MetadataFormat = "sqlite"
	}
}

func (c *Config) normalizeLogging() error {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	switch c.Logging.Format {
	case "", "console":
		c.Logging.Format = "console"
	case "json":
	default:
		c.Logging.Format = "console"
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		if value, ok := os.LookupEnv("DISCSTACK_LOG_LEVEL"); ok {
			c.Logging.Level = strings.ToLower(strings.TrimSpace(value))
		}
	}
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
	var err error
	if c.Logging.Dir, err = expandPath(strings.TrimSpace(c.Logging.Dir)); err != nil {
		return fmt.Errorf("logging.dir: %w", err)
	}
	return nil
}
