package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/mattn/go-isatty"

	"discstack/internal/config"
)

// LogFileName is the file written inside logging.dir.
const LogFileName = "discstack.log"

// Options describes logger construction parameters.
type Options struct {
	Level  string
	Format string
	// Writer receives log output. Nil selects stdout.
	Writer io.Writer
	// Color forces ANSI level colouring on console output. When false the
	// writer is checked with isatty.
	Color       bool
	Development bool
}

// New constructs a slog logger using the provided options.
func New(opts Options) (*slog.Logger, error) {
	handler, err := newHandler(opts)
	if err != nil {
		return nil, err
	}
	return slog.New(handler), nil
}

func newHandler(opts Options) (slog.Handler, error) {
	levelVar := new(slog.LevelVar)
	levelVar.Set(ParseLevel(opts.Level))

	writer := opts.Writer
	if writer == nil {
		writer = os.Stdout
	}
	addSource := opts.Development || levelVar.Level() <= slog.LevelDebug

	switch strings.ToLower(strings.TrimSpace(opts.Format)) {
	case "json":
		return newJSONHandler(writer, levelVar, addSource), nil
	case "console", "":
		color := opts.Color || isTerminal(writer)
		return newPrettyHandler(writer, levelVar, addSource, color), nil
	default:
		return nil, fmt.Errorf("log format: unsupported value %q", opts.Format)
	}
}

// NewFromConfig creates a logger from the logging section. When a log
// directory is configured, records are also appended as JSON to
// discstack.log inside it. The run log records at info or below even when the
// console is set to warn or error, so progress history survives a quiet
// console. The returned close function releases that file.
func NewFromConfig(cfg config.Logging, stdout io.Writer) (*slog.Logger, func() error, error) {
	primary, err := newHandler(Options{Level: cfg.Level, Format: cfg.Format, Writer: stdout})
	if err != nil {
		return nil, nil, err
	}
	if strings.TrimSpace(cfg.Dir) == "" {
		return slog.New(primary), func() error { return nil }, nil
	}

	if err := os.MkdirAll(cfg.Dir, 0o755); err != nil {
		return nil, nil, fmt.Errorf("ensure log directory: %w", err)
	}
	logPath := filepath.Join(cfg.Dir, LogFileName)
	file, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o664)
	if err != nil {
		return nil, nil, fmt.Errorf("open log file %s: %w", logPath, err)
	}
	levelVar := new(slog.LevelVar)
	levelVar.Set(min(ParseLevel(cfg.Level), slog.LevelInfo))
	fileHandler := newJSONHandler(file, levelVar, levelVar.Level() <= slog.LevelDebug)
	return slog.New(TeeHandler(primary, fileHandler)), file.Close, nil
}

// ParseLevel maps a configured level name onto a slog level. Unknown names
// fall back to info.
func ParseLevel(level string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func isTerminal(w io.Writer) bool {
	file, ok := w.(*os.File)
	if !ok {
		return false
	}
	fd := file.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}
