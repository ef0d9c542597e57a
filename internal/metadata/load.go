package metadata

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/spf13/afero"
)

const osCreateTrunc = os.O_CREATE | os.O_WRONLY | os.O_TRUNC

// ErrNotFound is returned when neither sidecar encoding exists for a capture.
var ErrNotFound = errors.New("metadata sidecar not found")

// Format names a sidecar encoding.
type Format string

const (
	FormatJSON   Format = "json"
	FormatSQLite Format = "sqlite"
)

// SidecarPath returns the sidecar path for a .tbc file in the given format.
func SidecarPath(tbcPath string, format Format) string {
	if format == FormatSQLite {
		return tbcPath + ".db"
	}
	return tbcPath + ".json"
}

// Load reads the sidecar for tbcPath. The JSON document is preferred; the
// SQLite database is consulted only when no JSON file exists. SQLite sidecars
// are always read from the operating system filesystem.
func Load(ctx context.Context, fsys afero.Fs, tbcPath string) (*Metadata, Format, error) {
	jsonPath := SidecarPath(tbcPath, FormatJSON)
	if exists, err := afero.Exists(fsys, jsonPath); err != nil {
		return nil, "", fmt.Errorf("stat %s: %w", jsonPath, err)
	} else if exists {
		m, err := LoadJSON(fsys, jsonPath)
		if err != nil {
			return nil, "", err
		}
		return m, FormatJSON, nil
	}

	dbPath := SidecarPath(tbcPath, FormatSQLite)
	if _, err := os.Stat(dbPath); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, "", fmt.Errorf("%w: %s or %s", ErrNotFound, jsonPath, dbPath)
		}
		return nil, "", fmt.Errorf("stat %s: %w", dbPath, err)
	}
	m, err := LoadSQLite(ctx, dbPath)
	if err != nil {
		return nil, "", err
	}
	return m, FormatSQLite, nil
}

// Save writes the sidecar for tbcPath in the given format and returns the
// path written.
func Save(ctx context.Context, fsys afero.Fs, tbcPath string, format Format, m *Metadata) (string, error) {
	path := SidecarPath(tbcPath, format)
	switch format {
	case FormatSQLite:
		if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return "", fmt.Errorf("remove stale %s: %w", path, err)
		}
		return path, SaveSQLite(ctx, path, m)
	case FormatJSON, "":
		return path, SaveJSON(fsys, path, m)
	default:
		return "", fmt.Errorf("unsupported metadata format %q", format)
	}
}
