package source

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/samber/lo"

	"discstack/internal/faults"
	"discstack/internal/logging"
	"discstack/internal/metadata"
)

// MaxSources is the largest number of captures a collection accepts.
const MaxSources = 64

// OpenError reports which source of a collection failed to open.
type OpenError struct {
	Index int
	Path  string
	Err   error
}

func (e *OpenError) Error() string {
	return fmt.Sprintf("source %d (%s): %v", e.Index, e.Path, e.Err)
}

func (e *OpenError) Unwrap() error { return e.Err }

// Is makes every OpenError match faults.ErrSourceOpen.
func (e *OpenError) Is(target error) bool {
	return target == faults.ErrSourceOpen
}

// Collection is a set of sources aligned to a shared VBI frame space.
type Collection struct {
	mu      sync.Mutex
	sources []*Source
	minVbi  int
	maxVbi  int
	frozen  bool
	closed  bool
	logger  *slog.Logger
}

// OpenCollection opens every path in order. On the first failure all sources
// opened so far are closed and an *OpenError naming the failing index is
// returned. Every source after the first must match its disc type, colour
// standard and field geometry.
func OpenCollection(ctx context.Context, paths []string, opts Options) (*Collection, error) {
	if len(paths) == 0 || len(paths) > MaxSources {
		return nil, faults.Wrap(faults.ErrValidation, "collection", "open",
			fmt.Sprintf("between 1 and %d sources are required (got %d)", MaxSources, len(paths)), nil)
	}
	opts = opts.withDefaults()
	logger := logging.NewComponentLogger(opts.Logger, "source")
	opts.Logger = logger

	c := &Collection{logger: logger}
	fail := func(index int, path string, err error) (*Collection, error) {
		logger.Error("source open failed",
			logging.Int(logging.FieldSource, index),
			logging.String(logging.FieldPath, path),
			logging.Error(err),
		)
		_ = c.closeSources()
		return nil, &OpenError{Index: index, Path: path, Err: err}
	}

	for i, path := range paths {
		if err := ctx.Err(); err != nil {
			_ = c.closeSources()
			return nil, err
		}
		src, err := Open(ctx, i, path, opts)
		if err != nil {
			return fail(i, path, err)
		}
		c.sources = append(c.sources, src)
		if err := c.checkHomogeneous(src); err != nil {
			return fail(i, path, err)
		}
		if i == 0 || src.StartVbiFrame() < c.minVbi {
			c.minVbi = src.StartVbiFrame()
		}
		if i == 0 || src.EndVbiFrame() > c.maxVbi {
			c.maxVbi = src.EndVbiFrame()
		}
		logger.Info("source opened",
			logging.Int(logging.FieldSource, i),
			logging.String(logging.FieldPath, path),
			logging.String("disc_type", src.DiscType()),
			logging.String("standard", src.Standard()),
			logging.Int("start_vbi_frame", src.StartVbiFrame()),
			logging.Int("end_vbi_frame", src.EndVbiFrame()),
		)
	}

	logger.Info("collection ready",
		logging.Int("sources", len(c.sources)),
		logging.Int("minimum_vbi_frame", c.minVbi),
		logging.Int("maximum_vbi_frame", c.maxVbi),
	)
	return c, nil
}

func (c *Collection) checkHomogeneous(src *Source) error {
	if len(c.sources) < 2 {
		return nil
	}
	ref := c.sources[0]
	if src.IsCAV() != ref.IsCAV() {
		return faults.Wrap(faults.ErrValidation, "collection", "check disc type",
			fmt.Sprintf("source is %s but source 0 is %s", src.DiscType(), ref.DiscType()), nil)
	}
	if src.IsPAL() != ref.IsPAL() {
		return faults.Wrap(faults.ErrValidation, "collection", "check colour standard",
			fmt.Sprintf("source is %s but source 0 is %s", src.Standard(), ref.Standard()), nil)
	}
	a, b := src.VideoParameters(), ref.VideoParameters()
	if a.FieldWidth != b.FieldWidth || a.FieldHeight != b.FieldHeight {
		return faults.Wrap(faults.ErrValidation, "collection", "check geometry",
			fmt.Sprintf("field size %dx%d differs from source 0 (%dx%d)", a.FieldWidth, a.FieldHeight, b.FieldWidth, b.FieldHeight), nil)
	}
	return nil
}

// Len returns the number of sources.
func (c *Collection) Len() int { return len(c.sources) }

// Source returns the source at index i.
func (c *Collection) Source(i int) *Source { return c.sources[i] }

// Sources returns the opened sources in collection order.
func (c *Collection) Sources() []*Source {
	return append([]*Source(nil), c.sources...)
}

// MinimumVbiFrame returns the lowest start frame of any source.
func (c *Collection) MinimumVbiFrame() int { return c.minVbi }

// MaximumVbiFrame returns the highest end frame of any source.
func (c *Collection) MaximumVbiFrame() int { return c.maxVbi }

// IsCAV reports the shared disc type.
func (c *Collection) IsCAV() bool { return c.sources[0].IsCAV() }

// IsPAL reports the shared colour standard.
func (c *Collection) IsPAL() bool { return c.sources[0].IsPAL() }

// VideoParameters returns the parameters of the first source. Geometry is
// identical across the collection.
func (c *Collection) VideoParameters() metadata.VideoParameters {
	return c.sources[0].VideoParameters()
}

// AvailableSourceCount returns how many sources can supply vbiFrame.
func (c *Collection) AvailableSourceCount(vbiFrame int) int {
	return lo.CountBy(c.sources, func(s *Source) bool {
		return s.IsFrameAvailable(vbiFrame)
	})
}

// AvailableSources returns the indices of the sources that can supply
// vbiFrame, in collection order.
func (c *Collection) AvailableSources(vbiFrame int) []int {
	return lo.FilterMap(c.sources, func(s *Source, i int) (int, bool) {
		return i, s.IsFrameAvailable(vbiFrame)
	})
}

// SetReverseFieldOrder swaps the field roles of every source. It must be
// called before Freeze.
func (c *Collection) SetReverseFieldOrder(reverse bool) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.frozen {
		return faults.Wrap(faults.ErrValidation, "collection", "set field order", "field order cannot change once stacking has started", nil)
	}
	for _, s := range c.sources {
		s.SetReverseFieldOrder(reverse)
	}
	return nil
}

// Freeze marks the collection read-only for the duration of a run.
func (c *Collection) Freeze() {
	c.mu.Lock()
	c.frozen = true
	c.mu.Unlock()
}

// Close releases every source. It is safe to call more than once.
func (c *Collection) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}
	c.closed = true
	return c.closeSources()
}

func (c *Collection) closeSources() error {
	var errs []error
	for _, s := range c.sources {
		if err := s.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
