package testsupport

import (
	"path/filepath"
	"testing"

	"discstack/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*configBuilder)

type configBuilder struct {
	t       testing.TB
	baseDir string
	cfg     *config.Config
}

// NewConfig produces a normalized config seeded with a unique temp log
// directory per test. It applies any provided options before finalizing.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfgVal := config.Default()
	cfgVal.Stacking.Workers = 2
	cfgVal.Logging.Level = "info"
	cfgVal.Logging.Dir = filepath.Join(base, "logs")

	builder := &configBuilder{
		t:       t,
		baseDir: base,
		cfg:     &cfgVal,
	}

	for _, opt := range opts {
		opt(builder)
	}

	if err := builder.cfg.Finalize(); err != nil {
		t.Fatalf("finalize test config: %v", err)
	}
	return builder.cfg
}

// WithWorkers overrides the stacking worker count.
func WithWorkers(n int) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Stacking.Workers = n
	}
}

// WithDetector selects a dropout detector and its diff threshold.
func WithDetector(name string, diffThreshold int) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Detection.Detector = name
		b.cfg.Detection.DiffThreshold = diffThreshold
	}
}

// WithMetadataFormat selects the output sidecar format.
func WithMetadataFormat(format string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Output.MetadataFormat = format
	}
}

// BaseDir returns the root temp directory backing the generated config.
func BaseDir(cfg *config.Config) string {
	return filepath.Dir(cfg.Logging.Dir)
}
