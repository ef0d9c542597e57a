package stack

import (
	"discstack/internal/dropout"
	"discstack/internal/metadata"
)

// SourceField is one field of a frame as supplied by one source.
type SourceField struct {
	// Source is the index of the source in its collection.
	Source int
	// FieldNumber is the 1-based sequential field number within the source.
	FieldNumber int
	Samples     []uint16
	// Dropouts uses field-local, 1-based line numbers.
	Dropouts dropout.List
}

// Bundle is the input of one frame. First[i] and Second[i] come from source
// Available[i]. A bundle with no available sources is still valid.
type Bundle struct {
	Frame        int
	Available    []int
	TotalSources int
	First        []SourceField
	Second       []SourceField
	Video        metadata.VideoParameters
}

// OutputFrame is the stacked result of one frame.
type OutputFrame struct {
	Frame          int
	First          []uint16
	Second         []uint16
	FirstDropouts  dropout.List
	SecondDropouts dropout.List
	// SourceIndex is the source whose field records describe the output
	// frame, or -1 when no source contributed.
	SourceIndex       int
	FirstFieldNumber  int
	SecondFieldNumber int
	Contributing      int
}

// Sink receives output frames in ascending frame order. WriteFrame is never
// called concurrently.
type Sink interface {
	WriteFrame(out OutputFrame) error
}

// SinkFunc adapts a function to the Sink interface.
type SinkFunc func(out OutputFrame) error

func (f SinkFunc) WriteFrame(out OutputFrame) error { return f(out) }
