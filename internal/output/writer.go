// Package output writes stacked frames as a new capture: a .tbc sample file
// plus a JSON or SQLite metadata sidecar describing the stacked fields.
package output

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/gofrs/flock"
	"github.com/spf13/afero"

	"discstack/internal/faults"
	"discstack/internal/logging"
	"discstack/internal/metadata"
	"discstack/internal/source"
	"discstack/internal/stack"
	"discstack/internal/tbc"
	"discstack/internal/vbi"
)

// Options controls how the output capture is created.
type Options struct {
	// Fs backs the .tbc and JSON sidecar. Nil selects the OS filesystem.
	Fs        afero.Fs
	Format    metadata.Format
	Overwrite bool
	Logger    *slog.Logger
}

// Writer is a stack.Sink that appends stacked frames to a capture. Field
// records are copied from the source that supplied each frame so VBI data
// survives; dropouts are replaced by the stacked result.
type Writer struct {
	mu     sync.Mutex
	coll   *source.Collection
	path   string
	fs     afero.Fs
	format metadata.Format
	lock   *flock.Flock
	tbc    *tbc.Writer
	meta   *metadata.Metadata
	logger *slog.Logger
	closed bool
	// failed latches the first sample write error. Once set no further
	// frames are written and Close leaves no sidecar behind.
	failed error
}

var _ stack.Sink = (*Writer)(nil)

// Create opens path for writing. An existing capture is only replaced when
// opts.Overwrite is set, and never when it is one of the inputs. An exclusive
// lock file next to the output guards against concurrent writers.
func Create(path string, coll *source.Collection, opts Options) (*Writer, error) {
	if opts.Fs == nil {
		opts.Fs = afero.NewOsFs()
	}
	if opts.Format == "" {
		opts.Format = metadata.FormatJSON
	}
	logger := logging.NewComponentLogger(opts.Logger, "output")

	if err := checkNotInput(path, coll); err != nil {
		return nil, err
	}
	exists, err := afero.Exists(opts.Fs, path)
	if err != nil {
		return nil, faults.Wrap(faults.ErrIO, "output", "stat", path, err)
	}
	if exists && !opts.Overwrite {
		return nil, faults.Wrap(faults.ErrValidation, "output", "create",
			fmt.Sprintf("%s already exists (set output.overwrite or pass --overwrite to replace it)", path), nil)
	}
	if err := opts.Fs.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, faults.Wrap(faults.ErrIO, "output", "create directory", filepath.Dir(path), err)
	}

	lockPath := path + ".lock"
	if err := os.MkdirAll(filepath.Dir(lockPath), 0o755); err != nil {
		return nil, faults.Wrap(faults.ErrIO, "output", "create lock directory", filepath.Dir(lockPath), err)
	}
	lock := flock.New(lockPath)
	locked, err := lock.TryLock()
	if err != nil {
		return nil, faults.Wrap(faults.ErrIO, "output", "acquire lock", lockPath, err)
	}
	if !locked {
		return nil, faults.Wrap(faults.ErrValidation, "output", "acquire lock",
			fmt.Sprintf("%s is being written by another process", path), nil)
	}

	writer, err := tbc.Create(opts.Fs, path)
	if err != nil {
		releaseLock(lock)
		return nil, faults.Wrap(faults.ErrIO, "output", "create", path, err)
	}

	vp := coll.VideoParameters()
	vp.IsMapped = true
	vp.NumberOfSequentialFields = 0
	return &Writer{
		coll:   coll,
		path:   path,
		fs:     opts.Fs,
		format: opts.Format,
		lock:   lock,
		tbc:    writer,
		meta:   &metadata.Metadata{VideoParameters: vp},
		logger: logger.With(logging.String(logging.FieldPath, path)),
	}, nil
}

func checkNotInput(path string, coll *source.Collection) error {
	target, err := filepath.Abs(path)
	if err != nil {
		return faults.Wrap(faults.ErrValidation, "output", "resolve path", path, err)
	}
	for _, src := range coll.Sources() {
		input, err := filepath.Abs(src.Path())
		if err != nil {
			continue
		}
		if input == target {
			return faults.Wrap(faults.ErrValidation, "output", "create",
				fmt.Sprintf("output %s is also input source %d", path, src.Index()), nil)
		}
	}
	return nil
}

func releaseLock(lock *flock.Flock) {
	_ = lock.Unlock()
	_ = os.Remove(lock.Path())
}

// Path returns the .tbc path being written.
func (w *Writer) Path() string { return w.path }

// Fields returns the number of fields written so far.
func (w *Writer) Fields() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.meta.Fields)
}

// WriteFrame appends both fields of a stacked frame.
func (w *Writer) WriteFrame(out stack.OutputFrame) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return errors.New("output writer is closed")
	}
	if w.failed != nil {
		return w.failed
	}

	first, second, err := w.fieldRecords(out)
	if err != nil {
		return err
	}
	for _, samples := range [][]uint16{out.First, out.Second} {
		if err := w.tbc.WriteField(samples); err != nil {
			w.failed = faults.Wrap(faults.ErrIO, "output", "write samples", fmt.Sprintf("frame %d", out.Frame), err)
			return w.failed
		}
	}

	first.SeqNo = len(w.meta.Fields) + 1
	first.SetDropouts(out.FirstDropouts)
	second.SeqNo = first.SeqNo + 1
	second.SetDropouts(out.SecondDropouts)
	w.meta.Fields = append(w.meta.Fields, first, second)
	return nil
}

func (w *Writer) fieldRecords(out stack.OutputFrame) (first, second metadata.Field, err error) {
	if out.SourceIndex < 0 {
		a, b := vbi.EncodeAddress(out.Frame, w.coll.IsCAV(), w.coll.IsPAL())
		return metadata.Field{IsFirstField: true, VBI: &metadata.VBI{Data: a}},
			metadata.Field{IsFirstField: false, VBI: &metadata.VBI{Data: b}}, nil
	}
	src := w.coll.Source(out.SourceIndex)
	if first, err = src.FieldRecord(out.FirstFieldNumber); err != nil {
		return first, second, fmt.Errorf("frame %d: %w", out.Frame, err)
	}
	if second, err = src.FieldRecord(out.SecondFieldNumber); err != nil {
		return first, second, fmt.Errorf("frame %d: %w", out.Frame, err)
	}
	first, second = detachRecord(first), detachRecord(second)
	first.IsFirstField, second.IsFirstField = true, false
	first.Pad, second.Pad = false, false
	return first, second, nil
}

// detachRecord copies the VBI block so the output never aliases source
// metadata.
func detachRecord(f metadata.Field) metadata.Field {
	if f.VBI != nil {
		v := *f.VBI
		f.VBI = &v
	}
	f.DropOuts = nil
	return f
}

// Close flushes the sample file, writes the metadata sidecar and releases the
// output lock. It is safe to call more than once. When a sample write or the
// final flush failed, no sidecar is written and any existing one is removed,
// so the partial .tbc cannot be opened as a capture.
func (w *Writer) Close(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return nil
	}
	w.closed = true
	defer releaseLock(w.lock)

	if err := w.tbc.Close(); err != nil && w.failed == nil {
		w.failed = faults.Wrap(faults.ErrIO, "output", "close samples", w.path, err)
	}
	if w.failed != nil {
		return w.abandon()
	}
	w.meta.VideoParameters.NumberOfSequentialFields = len(w.meta.Fields)
	sidecar, err := metadata.Save(ctx, w.fs, w.path, w.format, w.meta)
	if err != nil {
		return faults.Wrap(faults.ErrIO, "output", "write metadata", sidecar, err)
	}
	if err := w.removeStaleSidecar(); err != nil {
		return err
	}
	w.logger.Info("output written",
		logging.Int("fields", len(w.meta.Fields)),
		logging.String("metadata", sidecar),
	)
	return nil
}

// abandon removes every sidecar for the output and reports the write failure.
func (w *Writer) abandon() error {
	jsonPath := metadata.SidecarPath(w.path, metadata.FormatJSON)
	if err := w.fs.Remove(jsonPath); err != nil && !errors.Is(err, fs.ErrNotExist) && !os.IsNotExist(err) {
		w.logger.Error("remove metadata failed", logging.String("metadata", jsonPath), logging.Error(err))
	}
	dbPath := metadata.SidecarPath(w.path, metadata.FormatSQLite)
	if err := os.Remove(dbPath); err != nil && !errors.Is(err, fs.ErrNotExist) {
		w.logger.Error("remove metadata failed", logging.String("metadata", dbPath), logging.Error(err))
	}
	logging.WarnWithContext(w.logger, "output incomplete", "output_write_failed",
		logging.Int("fields", len(w.meta.Fields)),
		logging.String(logging.FieldImpact, "sample file is partial and has no metadata sidecar"),
		logging.Error(w.failed),
	)
	return faults.Wrap(faults.ErrIO, "output", "write metadata", "skipped after a failed sample write", w.failed)
}

// removeStaleSidecar deletes a sidecar of the other format left by an earlier
// run, since readers prefer JSON over SQLite.
func (w *Writer) removeStaleSidecar() error {
	if w.format == metadata.FormatSQLite {
		stale := metadata.SidecarPath(w.path, metadata.FormatJSON)
		if err := w.fs.Remove(stale); err != nil && !errors.Is(err, fs.ErrNotExist) && !os.IsNotExist(err) {
			return faults.Wrap(faults.ErrIO, "output", "remove stale metadata", stale, err)
		}
		return nil
	}
	stale := metadata.SidecarPath(w.path, metadata.FormatSQLite)
	if err := os.Remove(stale); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return faults.Wrap(faults.ErrIO, "output", "remove stale metadata", stale, err)
	}
	return nil
}
