package main

import (
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"

	"github.com/spf13/cobra"

	"discstack/internal/config"
	"discstack/internal/faults"
	"discstack/internal/logging"
)

type commandContext struct {
	configFlag    *string
	logLevelFlag  *string
	logFormatFlag *string

	configOnce sync.Once
	config     *config.Config
	configPath string
	configSeen bool
	configErr  error
}

func newCommandContext(configFlag, logLevelFlag, logFormatFlag *string) *commandContext {
	return &commandContext{
		configFlag:    configFlag,
		logLevelFlag:  logLevelFlag,
		logFormatFlag: logFormatFlag,
	}
}

// ensureConfig loads the configuration once and applies the persistent log
// flags on top of it.
func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.configOnce.Do(func() {
		cfg, path, exists, err := config.Load(c.configFlagValue())
		if err != nil {
			c.configErr = faults.Wrap(faults.ErrConfiguration, "config", "load", path, err)
			return
		}
		if level := flagValue(c.logLevelFlag); level != "" {
			cfg.Logging.Level = level
		}
		if format := flagValue(c.logFormatFlag); format != "" {
			cfg.Logging.Format = format
		}
		if err := finalizeFlags(cfg); err != nil {
			c.configErr = err
			return
		}
		if err := cfg.EnsureDirectories(); err != nil {
			c.configErr = faults.Wrap(faults.ErrConfiguration, "config", "ensure directories", "", err)
			return
		}
		c.config, c.configPath, c.configSeen = cfg, path, exists
	})
	return c.config, c.configErr
}

// runConfig returns a copy of the loaded configuration that a single command
// may override with its own flags.
func (c *commandContext) runConfig() (config.Config, error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return config.Config{}, err
	}
	return *cfg, nil
}

func (c *commandContext) configFlagValue() string {
	return flagValue(c.configFlag)
}

// newLogger builds the run logger. Logs go to stderr so command output on
// stdout stays machine readable.
func (c *commandContext) newLogger(cmd *cobra.Command, cfg config.Logging) (*slog.Logger, func() error, error) {
	logger, closeLog, err := logging.NewFromConfig(cfg, cmd.ErrOrStderr())
	if err != nil {
		return nil, nil, faults.Wrap(faults.ErrConfiguration, "logging", "init", "", err)
	}
	return logger, closeLog, nil
}

func flagValue(v *string) string {
	if v == nil {
		return ""
	}
	return strings.TrimSpace(*v)
}

func shouldSkipConfig(cmd *cobra.Command) bool {
	for c := cmd; c != nil; c = c.Parent() {
		if c.Annotations != nil && c.Annotations["skipConfigLoad"] == "true" {
			return true
		}
	}
	return false
}

func closeQuietly(w io.Writer, name string, fn func() error) {
	if fn == nil {
		return
	}
	if err := fn(); err != nil {
		fmt.Fprintf(w, "warning: close %s: %v\n", name, err)
	}
}
