package source

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/spf13/afero"

	"discstack/internal/dropout"
	"discstack/internal/faults"
	"discstack/internal/logging"
	"discstack/internal/metadata"
	"discstack/internal/tbc"
	"discstack/internal/vbi"
)

// classificationFrames is the number of leading frames sampled to decide
// between CAV and CLV.
const classificationFrames = 100

// Options controls how sources are opened.
type Options struct {
	// Fs backs .tbc and .tbc.json access. Nil selects the OS filesystem.
	Fs afero.Fs
	// Decode turns VBI words into a frame address. Nil selects vbi.DecodeFrame.
	Decode vbi.DecodeFunc
	Logger *slog.Logger
}

func (o Options) withDefaults() Options {
	if o.Fs == nil {
		o.Fs = afero.NewOsFs()
	}
	if o.Decode == nil {
		o.Decode = vbi.DecodeFrame
	}
	if o.Logger == nil {
		o.Logger = logging.NewNop()
	}
	return o
}

// Source is one opened capture aligned to VBI frame numbers.
type Source struct {
	index  int
	path   string
	meta   *metadata.Metadata
	format metadata.Format
	reader *tbc.Reader

	cav      bool
	cavCount int
	clvCount int
	startVbi int
	endVbi   int
}

// Open loads the capture at path. index is the source's position in its
// collection and is only used for reporting.
func Open(ctx context.Context, index int, path string, opts Options) (*Source, error) {
	opts = opts.withDefaults()
	logger := opts.Logger.With(logging.Int(logging.FieldSource, index), logging.String(logging.FieldPath, path))

	meta, format, err := metadata.Load(ctx, opts.Fs, path)
	if err != nil {
		return nil, faults.Wrap(faults.ErrSourceOpen, "source", "load metadata", path, err)
	}
	if err := meta.Validate(); err != nil {
		return nil, faults.Wrap(faults.ErrSourceOpen, "source", "validate metadata", path, err)
	}
	if !meta.VideoParameters.IsMapped {
		return nil, faults.Wrap(faults.ErrSourceOpen, "source", "check mapping", "capture has not been mapped", nil)
	}
	if meta.NumberOfFrames() == 0 {
		return nil, faults.Wrap(faults.ErrSourceOpen, "source", "check frames", "capture contains no complete frames", nil)
	}

	reader, err := tbc.Open(opts.Fs, path, meta.VideoParameters.FieldSamples())
	if err != nil {
		return nil, faults.Wrap(faults.ErrSourceOpen, "source", "open samples", "", err)
	}
	if reader.FieldCount() < meta.NumberOfFields() {
		_ = reader.Close()
		return nil, faults.Wrap(faults.ErrSourceOpen, "source", "open samples",
			fmt.Sprintf("sample file holds %d fields but metadata lists %d", reader.FieldCount(), meta.NumberOfFields()), nil)
	}

	s := &Source{index: index, path: path, meta: meta, format: format, reader: reader}
	if err := s.align(opts.Decode); err != nil {
		_ = reader.Close()
		return nil, err
	}

	logger.Debug("source opened",
		logging.String("disc_type", s.DiscType()),
		logging.String("standard", s.Standard()),
		logging.Int("start_vbi_frame", s.startVbi),
		logging.Int("end_vbi_frame", s.endVbi),
		logging.Int("cav_count", s.cavCount),
		logging.Int("clv_count", s.clvCount),
		logging.String("metadata_format", string(format)),
	)
	return s, nil
}

// align classifies the disc type from the leading frames and derives the VBI
// frame range from the first and last sequential frames.
func (s *Source) align(decode vbi.DecodeFunc) error {
	frames := s.meta.NumberOfFrames()
	sample := min(classificationFrames, frames)
	for seq := 1; seq <= sample; seq++ {
		f := s.decodeSequential(decode, seq)
		if f.HasPictureNumber() {
			s.cavCount++
		}
		if f.HasTimecode() {
			s.clvCount++
		}
	}
	if s.cavCount == 0 && s.clvCount == 0 {
		return faults.Wrap(faults.ErrSourceOpen, "source", "classify disc", "no CAV picture numbers or CLV timecodes in the leading frames", nil)
	}
	// Equal counts resolve to CLV.
	s.cav = s.cavCount > s.clvCount

	s.startVbi = s.frameNumber(s.decodeSequential(decode, 1))
	s.endVbi = s.frameNumber(s.decodeSequential(decode, frames))

	if s.cav && s.startVbi < 1 {
		return faults.Wrap(faults.ErrSourceOpen, "source", "derive frame range",
			fmt.Sprintf("CAV start frame %d is out of bounds (should be 1 or above)", s.startVbi), nil)
	}
	if s.startVbi < 0 || s.endVbi < s.startVbi {
		return faults.Wrap(faults.ErrSourceOpen, "source", "derive frame range",
			fmt.Sprintf("invalid VBI frame range %d..%d", s.startVbi, s.endVbi), nil)
	}
	return nil
}

func (s *Source) decodeSequential(decode vbi.DecodeFunc, seq int) vbi.Frame {
	first := s.meta.FieldVBI(s.meta.FirstFieldNumber(seq))
	second := s.meta.FieldVBI(s.meta.SecondFieldNumber(seq))
	return decode(first, second)
}

func (s *Source) frameNumber(f vbi.Frame) int {
	if s.cav {
		return f.PicNo
	}
	return f.Timecode().FrameNumber(s.IsPAL())
}

// Index returns the source's position in its collection.
func (s *Source) Index() int { return s.index }

// Path returns the .tbc path the source was opened from.
func (s *Source) Path() string { return s.path }

// MetadataFormat reports which sidecar encoding the source was loaded from.
func (s *Source) MetadataFormat() metadata.Format { return s.format }

// IsCAV reports whether the disc was classified as CAV.
func (s *Source) IsCAV() bool { return s.cav }

// IsPAL reports the capture's colour standard.
func (s *Source) IsPAL() bool { return s.meta.VideoParameters.IsSourcePal }

// DiscType returns "CAV" or "CLV".
func (s *Source) DiscType() string {
	if s.cav {
		return "CAV"
	}
	return "CLV"
}

// Standard returns "PAL" or "NTSC".
func (s *Source) Standard() string {
	if s.IsPAL() {
		return "PAL"
	}
	return "NTSC"
}

// Classification returns the CAV and CLV hit counts from disc type detection.
func (s *Source) Classification() (cavCount, clvCount int) {
	return s.cavCount, s.clvCount
}

// VideoParameters returns the capture's geometry and levels.
func (s *Source) VideoParameters() metadata.VideoParameters {
	return s.meta.VideoParameters
}

// StartVbiFrame returns the first VBI frame number of the capture.
func (s *Source) StartVbiFrame() int { return s.startVbi }

// EndVbiFrame returns the last VBI frame number of the capture.
func (s *Source) EndVbiFrame() int { return s.endVbi }

// NumberOfFrames returns the length of the VBI frame range.
func (s *Source) NumberOfFrames() int { return s.endVbi - s.startVbi + 1 }

// SequentialFrame converts a VBI frame number to a 1-based sequential frame.
func (s *Source) SequentialFrame(vbiFrame int) int {
	return vbiFrame - s.startVbi + 1
}

func (s *Source) inRange(vbiFrame int) bool {
	if vbiFrame < s.startVbi || vbiFrame > s.endVbi {
		return false
	}
	return s.SequentialFrame(vbiFrame) <= s.meta.NumberOfFrames()
}

// IsFrameAvailable reports whether vbiFrame lies in the source's range and
// neither of its fields is padding.
func (s *Source) IsFrameAvailable(vbiFrame int) bool {
	if !s.inRange(vbiFrame) {
		return false
	}
	seq := s.SequentialFrame(vbiFrame)
	return !s.meta.FieldPadded(s.meta.FirstFieldNumber(seq)) && !s.meta.FieldPadded(s.meta.SecondFieldNumber(seq))
}

// FieldNumbers returns the 1-based sequential field numbers of the first and
// second field of vbiFrame under the current field order.
func (s *Source) FieldNumbers(vbiFrame int) (first, second int) {
	seq := s.SequentialFrame(vbiFrame)
	return s.meta.FirstFieldNumber(seq), s.meta.SecondFieldNumber(seq)
}

// FieldDropouts returns the recorded dropouts of both fields of vbiFrame in
// field-local line numbering. Both are empty when the frame is unavailable.
func (s *Source) FieldDropouts(vbiFrame int) (first, second dropout.List) {
	if !s.IsFrameAvailable(vbiFrame) {
		return nil, nil
	}
	a, b := s.FieldNumbers(vbiFrame)
	return s.meta.FieldDropouts(a), s.meta.FieldDropouts(b)
}

// FrameDropouts returns the frame-level dropouts of vbiFrame: first field
// lines map to 2n-1 and second field lines to 2n.
func (s *Source) FrameDropouts(vbiFrame int) dropout.List {
	first, second := s.FieldDropouts(vbiFrame)
	if first == nil && second == nil {
		return dropout.List{}
	}
	return dropout.FrameFromFields(first, second)
}

// FrameFieldData reads the samples of both fields of vbiFrame. Callers should
// check IsFrameAvailable first; an unavailable frame is an error here.
func (s *Source) FrameFieldData(vbiFrame int) (first, second []uint16, err error) {
	if !s.inRange(vbiFrame) {
		return nil, nil, fmt.Errorf("source %d: frame %d outside %d..%d", s.index, vbiFrame, s.startVbi, s.endVbi)
	}
	a, b := s.FieldNumbers(vbiFrame)
	if first, err = s.reader.ReadField(a); err != nil {
		return nil, nil, fmt.Errorf("source %d: %w", s.index, err)
	}
	if second, err = s.reader.ReadField(b); err != nil {
		return nil, nil, fmt.Errorf("source %d: %w", s.index, err)
	}
	return first, second, nil
}

// FieldRecord returns a copy of the metadata record of a 1-based sequential
// field number.
func (s *Source) FieldRecord(fieldNumber int) (metadata.Field, error) {
	return s.meta.Field(fieldNumber)
}

// FrameVBI decodes the VBI address of vbiFrame with decode.
func (s *Source) FrameVBI(decode vbi.DecodeFunc, vbiFrame int) vbi.Frame {
	if decode == nil {
		decode = vbi.DecodeFrame
	}
	a, b := s.FieldNumbers(vbiFrame)
	return decode(s.meta.FieldVBI(a), s.meta.FieldVBI(b))
}

// SetReverseFieldOrder swaps the roles of the first and second field of every
// frame when reverse is true.
func (s *Source) SetReverseFieldOrder(reverse bool) {
	s.meta.SetFirstFieldFirst(!reverse)
}

// Close releases the sample file.
func (s *Source) Close() error {
	return s.reader.Close()
}
