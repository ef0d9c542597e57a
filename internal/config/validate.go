package config

import (
	"errors"
	"fmt"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateStacking(); err != nil {
		return err
	}
	if err := c.validateDetection(); err != nil {
		return err
	}
	if err := c.validateOutput(); err != nil {
		return err
	}
	return c.validateLogging()
}

func (c *Config) validateStacking() error {
	if c.Stacking.Workers < 1 || c.Stacking.Workers > maxWorkers {
		return fmt.Errorf("stacking.workers must be between 1 and %d", maxWorkers)
	}
	if c.Stacking.StartFrame < 0 {
		return errors.New("stacking.start_frame must be >= 0")
	}
	if c.Stacking.Length < 0 {
		return errors.New("stacking.length must be >= 0")
	}
	if c.Stacking.ProgressBucket > 100 {
		return errors.New("stacking.progress_bucket must be at most 100")
	}
	return nil
}

func (c *Config) validateDetection() error {
	switch c.Detection.Detector {
	case DetectorNone, DetectorClip, DetectorDiff:
	default:
		return fmt.Errorf("detection.detector must be one of none, clip, diff (got %q)", c.Detection.Detector)
	}
	if c.Detection.ClipMarginPercent < 0 || c.Detection.ClipMarginPercent > 100 {
		return errors.New("detection.clip_margin_percent must be between 0 and 100")
	}
	if c.Detection.ClipScanRange < 1 {
		return errors.New("detection.clip_scan_range must be positive")
	}
	if c.Detection.DiffThreshold < 0 || c.Detection.DiffThreshold > 65535 {
		return errors.New("detection.diff_threshold must be between 0 and 65535")
	}
	if c.Detection.Detector == DetectorDiff && c.Detection.DiffThreshold == 0 {
		return errors.New("detection.diff_threshold must be set when detection.detector is \"diff\"")
	}
	return nil
}

func (c *Config) validateOutput() error {
	switch c.Output.MetadataFormat {
	case "json", "sqlite":
		return nil
	default:
		return fmt.Errorf("output.metadata_format must be json or sqlite (got %q)", c.Output.MetadataFormat)
	}
}

func (c *Config) validateLogging() error {
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
		return nil
	default:
		return fmt.Errorf("logging.level must be one of debug, info, warn, error (got %q)", c.Logging.Level)
	}
}
