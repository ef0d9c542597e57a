package testsupport

import (
	"testing"

	"github.com/spf13/afero"

	"discstack/internal/dropout"
	"discstack/internal/metadata"
	"discstack/internal/tbc"
	"discstack/internal/vbi"
)

// Fixture levels match the 16-bit black and white points of a PAL capture.
const (
	FixtureBlack = 16384
	FixtureWhite = 54016
)

// SampleFunc returns the sample at (x, y) of one field of a VBI frame. Field
// 0 is the first field and 1 the second.
type SampleFunc func(frame, field, x, y int) uint16

// VBIFunc returns the line 16, 17 and 18 words of both fields of a VBI frame.
type VBIFunc func(frame int) (first, second [3]int)

// CaptureOption customizes a synthetic capture.
type CaptureOption func(*captureBuilder)

type fieldKey struct {
	frame int
	field int
}

type captureBuilder struct {
	width, height int
	pal           bool
	clv           bool
	mapped        bool
	startFrame    int
	frames        int
	orphanLead    bool
	sample        SampleFunc
	vbiWords      VBIFunc
	dropouts      map[fieldKey]dropout.List
	padded        map[fieldKey]bool
}

// WithGeometry sets the field width and height.
func WithGeometry(width, height int) CaptureOption {
	return func(b *captureBuilder) {
		b.width, b.height = width, height
	}
}

// WithPAL marks the capture as PAL.
func WithPAL() CaptureOption {
	return func(b *captureBuilder) { b.pal = true }
}

// WithCLV encodes CLV timecodes instead of CAV picture numbers.
func WithCLV() CaptureOption {
	return func(b *captureBuilder) { b.clv = true }
}

// Unmapped clears the isMapped flag.
func Unmapped() CaptureOption {
	return func(b *captureBuilder) { b.mapped = false }
}

// WithFrames sets the first VBI frame number and the number of frames.
func WithFrames(start, count int) CaptureOption {
	return func(b *captureBuilder) {
		b.startFrame, b.frames = start, count
	}
}

// WithLeadingSecondField prepends an orphan second field so frame pairing
// starts at field 2.
func WithLeadingSecondField() CaptureOption {
	return func(b *captureBuilder) { b.orphanLead = true }
}

// WithSamples sets the sample generator.
func WithSamples(fn SampleFunc) CaptureOption {
	return func(b *captureBuilder) { b.sample = fn }
}

// WithConstant fills every field with one value.
func WithConstant(value uint16) CaptureOption {
	return WithSamples(func(int, int, int, int) uint16 { return value })
}

// WithVBI overrides the generated VBI words.
func WithVBI(fn VBIFunc) CaptureOption {
	return func(b *captureBuilder) { b.vbiWords = fn }
}

// WithFieldDropouts records dropouts on one field of a VBI frame.
func WithFieldDropouts(frame, field int, l dropout.List) CaptureOption {
	return func(b *captureBuilder) {
		b.dropouts[fieldKey{frame, field}] = l
	}
}

// WithPaddedField marks one field of a VBI frame as padding.
func WithPaddedField(frame, field int) CaptureOption {
	return func(b *captureBuilder) {
		b.padded[fieldKey{frame, field}] = true
	}
}

// WriteCapture writes a synthetic .tbc and its .tbc.json sidecar to fs and
// returns the metadata written. Defaults: 8x6 NTSC CAV fields, four frames
// starting at picture number 1, every sample 30000.
func WriteCapture(t testing.TB, fs afero.Fs, path string, opts ...CaptureOption) *metadata.Metadata {
	t.Helper()

	b := &captureBuilder{
		width:      8,
		height:     6,
		mapped:     true,
		startFrame: 1,
		frames:     4,
		sample:     func(int, int, int, int) uint16 { return 30000 },
		dropouts:   make(map[fieldKey]dropout.List),
		padded:     make(map[fieldKey]bool),
	}
	for _, opt := range opts {
		opt(b)
	}
	if b.vbiWords == nil {
		b.vbiWords = b.defaultVBI
	}

	m := &metadata.Metadata{
		VideoParameters: metadata.VideoParameters{
			IsSourcePal:          b.pal,
			IsMapped:             b.mapped,
			FieldWidth:           b.width,
			FieldHeight:          b.height,
			ActiveVideoStart:     0,
			ActiveVideoEnd:       b.width,
			FirstActiveFieldLine: 0,
			LastActiveFieldLine:  b.height,
			FirstActiveFrameLine: 0,
			LastActiveFrameLine:  2 * b.height,
			Black16bIre:          FixtureBlack,
			White16bIre:          FixtureWhite,
		},
	}

	w, err := tbc.Create(fs, path)
	if err != nil {
		t.Fatalf("create %s: %v", path, err)
	}
	appendField := func(frame, field int, first bool, words [3]int) {
		record := metadata.Field{
			SeqNo:        len(m.Fields) + 1,
			IsFirstField: first,
			Pad:          b.padded[fieldKey{frame, field}],
			VBI:          &metadata.VBI{Data: words},
		}
		record.SetDropouts(b.dropouts[fieldKey{frame, field}])
		m.Fields = append(m.Fields, record)

		samples := make([]uint16, b.width*b.height)
		for y := 0; y < b.height; y++ {
			for x := 0; x < b.width; x++ {
				samples[y*b.width+x] = b.sample(frame, field, x, y)
			}
		}
		if err := w.WriteField(samples); err != nil {
			t.Fatalf("write field: %v", err)
		}
	}

	if b.orphanLead {
		appendField(b.startFrame-1, 1, false, [3]int{})
	}
	for i := 0; i < b.frames; i++ {
		frame := b.startFrame + i
		first, second := b.vbiWords(frame)
		appendField(frame, 0, true, first)
		appendField(frame, 1, false, second)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("close %s: %v", path, err)
	}

	m.VideoParameters.NumberOfSequentialFields = len(m.Fields)
	if err := metadata.SaveJSON(fs, metadata.SidecarPath(path, metadata.FormatJSON), m); err != nil {
		t.Fatalf("write metadata for %s: %v", path, err)
	}
	return m
}

func (b *captureBuilder) defaultVBI(frame int) (first, second [3]int) {
	return vbi.EncodeAddress(frame, !b.clv, b.pal)
}
