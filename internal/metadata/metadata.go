package metadata

import (
	"errors"
	"fmt"

	"discstack/internal/dropout"
)

// ErrFieldRange is returned when a field number lies outside the capture.
var ErrFieldRange = errors.New("field number out of range")

// VideoParameters describes the sample geometry and levels of a capture.
type VideoParameters struct {
	NumberOfSequentialFields int  `json:"numberOfSequentialFields"`
	IsSourcePal              bool `json:"isSourcePal"`
	IsMapped                 bool `json:"isMapped"`

	FieldWidth  int `json:"fieldWidth"`
	FieldHeight int `json:"fieldHeight"`
	SampleRate  int `json:"sampleRate,omitempty"`

	ColourBurstStart int `json:"colourBurstStart"`
	ColourBurstEnd   int `json:"colourBurstEnd"`
	ActiveVideoStart int `json:"activeVideoStart"`
	ActiveVideoEnd   int `json:"activeVideoEnd"`

	FirstActiveFieldLine int `json:"firstActiveFieldLine"`
	LastActiveFieldLine  int `json:"lastActiveFieldLine"`
	FirstActiveFrameLine int `json:"firstActiveFrameLine"`
	LastActiveFrameLine  int `json:"lastActiveFrameLine"`

	Black16bIre int `json:"black16bIre"`
	White16bIre int `json:"white16bIre"`
}

// FieldSamples returns the number of samples in one field.
func (vp VideoParameters) FieldSamples() int {
	return vp.FieldWidth * vp.FieldHeight
}

// ActiveFieldLines returns the half-open range of active rows within a field.
// Explicit field lines win; otherwise the frame lines are halved.
func (vp VideoParameters) ActiveFieldLines() (first, last int) {
	first, last = vp.FirstActiveFieldLine, vp.LastActiveFieldLine
	if last <= first {
		first, last = vp.FirstActiveFrameLine/2, vp.LastActiveFrameLine/2
	}
	first = max(first, 0)
	last = min(last, vp.FieldHeight)
	return first, last
}

// ActiveColumns returns the half-open range of active sample columns.
func (vp VideoParameters) ActiveColumns() (start, end int) {
	start = max(vp.ActiveVideoStart, 0)
	end = vp.ActiveVideoEnd
	if end <= 0 || end > vp.FieldWidth {
		end = vp.FieldWidth
	}
	return start, end
}

// Validate checks the geometry is usable for sample I/O.
func (vp VideoParameters) Validate() error {
	if vp.FieldWidth <= 0 || vp.FieldHeight <= 0 {
		return fmt.Errorf("invalid field geometry %dx%d", vp.FieldWidth, vp.FieldHeight)
	}
	if vp.White16bIre <= vp.Black16bIre {
		return fmt.Errorf("white level %d must be above black level %d", vp.White16bIre, vp.Black16bIre)
	}
	return nil
}

// VBI holds the raw line 16, 17 and 18 words of a field.
type VBI struct {
	Data [3]int `json:"vbiData"`
}

// DropOuts is the column-oriented dropout encoding used by the JSON sidecar.
type DropOuts struct {
	StartX    []int `json:"startx"`
	EndX      []int `json:"endx"`
	FieldLine []int `json:"fieldLine"`
}

// Field is the metadata record of one sequential field.
type Field struct {
	SeqNo          int       `json:"seqNo"`
	IsFirstField   bool      `json:"isFirstField"`
	SyncConf       int       `json:"syncConf,omitempty"`
	MedianBurstIRE float64   `json:"medianBurstIRE,omitempty"`
	FieldPhaseID   int       `json:"fieldPhaseID,omitempty"`
	AudioSamples   int       `json:"audioSamples,omitempty"`
	Pad            bool      `json:"pad,omitempty"`
	VBI            *VBI      `json:"vbi,omitempty"`
	DropOuts       *DropOuts `json:"dropOuts,omitempty"`
}

// Dropouts converts the field's dropout record into a dropout list.
func (f Field) Dropouts() dropout.List {
	if f.DropOuts == nil {
		return nil
	}
	n := min(len(f.DropOuts.StartX), len(f.DropOuts.EndX), len(f.DropOuts.FieldLine))
	out := make(dropout.List, 0, n)
	for i := 0; i < n; i++ {
		out.Append(f.DropOuts.StartX[i], f.DropOuts.EndX[i], f.DropOuts.FieldLine[i])
	}
	return out
}

// SetDropouts replaces the field's dropout record.
func (f *Field) SetDropouts(l dropout.List) {
	if len(l) == 0 {
		f.DropOuts = nil
		return
	}
	d := &DropOuts{
		StartX:    make([]int, len(l)),
		EndX:      make([]int, len(l)),
		FieldLine: make([]int, len(l)),
	}
	for i, entry := range l {
		d.StartX[i] = entry.StartX
		d.EndX[i] = entry.EndX
		d.FieldLine[i] = entry.Line
	}
	f.DropOuts = d
}

// VBIData returns the field's VBI words, zero when absent.
func (f Field) VBIData() [3]int {
	if f.VBI == nil {
		return [3]int{}
	}
	return f.VBI.Data
}

// Metadata is the decoded sidecar of one capture.
type Metadata struct {
	VideoParameters VideoParameters `json:"videoParameters"`
	Fields          []Field         `json:"fields"`

	reversed bool
}

// NumberOfFields returns the number of sequential fields.
func (m *Metadata) NumberOfFields() int {
	return len(m.Fields)
}

// pairBase is the 1-based field number that starts the first frame. A leading
// orphan second field is skipped.
func (m *Metadata) pairBase() int {
	if len(m.Fields) > 0 && !m.Fields[0].IsFirstField {
		return 2
	}
	return 1
}

// NumberOfFrames returns the number of complete sequential frames.
func (m *Metadata) NumberOfFrames() int {
	n := (len(m.Fields) - m.pairBase() + 1) / 2
	return max(n, 0)
}

// SetFirstFieldFirst selects the field order. With false, the roles of the two
// fields in every frame are swapped.
func (m *Metadata) SetFirstFieldFirst(firstFirst bool) {
	m.reversed = !firstFirst
}

// FirstFieldFirst reports the current field order.
func (m *Metadata) FirstFieldFirst() bool {
	return !m.reversed
}

// FirstFieldNumber returns the 1-based field number of the first field of a
// 1-based sequential frame.
func (m *Metadata) FirstFieldNumber(seqFrame int) int {
	n := m.pairBase() + 2*(seqFrame-1)
	if m.reversed {
		return n + 1
	}
	return n
}

// SecondFieldNumber returns the 1-based field number of the second field of a
// 1-based sequential frame.
func (m *Metadata) SecondFieldNumber(seqFrame int) int {
	n := m.pairBase() + 2*(seqFrame-1)
	if m.reversed {
		return n
	}
	return n + 1
}

// Field returns the record for a 1-based field number.
func (m *Metadata) Field(fieldNumber int) (Field, error) {
	if fieldNumber < 1 || fieldNumber > len(m.Fields) {
		return Field{}, fmt.Errorf("%w: field %d of %d", ErrFieldRange, fieldNumber, len(m.Fields))
	}
	return m.Fields[fieldNumber-1], nil
}

// FieldVBI returns the VBI words of a 1-based field number, zero if unknown.
func (m *Metadata) FieldVBI(fieldNumber int) [3]int {
	f, err := m.Field(fieldNumber)
	if err != nil {
		return [3]int{}
	}
	return f.VBIData()
}

// FieldDropouts returns the dropouts of a 1-based field number.
func (m *Metadata) FieldDropouts(fieldNumber int) dropout.List {
	f, err := m.Field(fieldNumber)
	if err != nil {
		return nil
	}
	return f.Dropouts()
}

// FieldPadded reports whether a 1-based field number is padding. Missing
// fields count as padded.
func (m *Metadata) FieldPadded(fieldNumber int) bool {
	f, err := m.Field(fieldNumber)
	if err != nil {
		return true
	}
	return f.Pad
}

// Validate checks the document is consistent enough to open.
func (m *Metadata) Validate() error {
	if err := m.VideoParameters.Validate(); err != nil {
		return err
	}
	if len(m.Fields) == 0 {
		return errors.New("metadata contains no fields")
	}
	return nil
}
