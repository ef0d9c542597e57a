package config

const (
	defaultConfigPath        = "~/.config/discstack/config.toml"
	projectConfigName        = "discstack.toml"
	defaultProgressBucket    = 5
	defaultDetector          = DetectorNone
	defaultClipMarginPercent = 8
	defaultClipScanRange     = 20
	defaultMetadataFormat    = "json"
	defaultLogFormat         = "console"
	defaultLogLevel          = "info"
	maxWorkers               = 256
)

// Detector names accepted by detection.detector.
const (
	DetectorNone = "none"
	DetectorClip = "clip"
	DetectorDiff = "diff"
)

// Default returns a Config populated with repository defaults. Derived values
// such as the worker count are filled in by Load.
func Default() Config {
	return Config{
		Stacking: Stacking{
			ProgressBucket: defaultProgressBucket,
		},
		Detection: Detection{
			Detector:          defaultDetector,
			ClipMarginPercent: defaultClipMarginPercent,
			ClipScanRange:     defaultClipScanRange,
		},
		Output: Output{
			MetadataFormat: defaultMetadataFormat,
		},
		Logging: Logging{
			Format: defaultLogFormat,
		},
	}
}
