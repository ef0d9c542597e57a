// Package tbc reads and writes raw time-base-corrected sample files: a flat
// sequence of fields, each fieldWidth*fieldHeight little-endian 16-bit
// samples.
package tbc

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/spf13/afero"
)

// ErrShortField is returned when the file ends inside a requested field.
var ErrShortField = errors.New("tbc file ends inside field")

const bytesPerSample = 2

// Reader provides random access to the fields of one .tbc file. Reads are
// serialized so one Reader may be shared between goroutines.
type Reader struct {
	mu           sync.Mutex
	file         afero.File
	path         string
	fieldSamples int
	fieldCount   int
	buf          []byte
}

// Open opens a .tbc file whose fields hold fieldSamples samples each.
func Open(fs afero.Fs, path string, fieldSamples int) (*Reader, error) {
	if fieldSamples <= 0 {
		return nil, fmt.Errorf("open %s: invalid field size %d", path, fieldSamples)
	}
	file, err := fs.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	info, err := file.Stat()
	if err != nil {
		_ = file.Close()
		return nil, fmt.Errorf("stat %s: %w", path, err)
	}
	fieldBytes := int64(fieldSamples * bytesPerSample)
	return &Reader{
		file:         file,
		path:         path,
		fieldSamples: fieldSamples,
		fieldCount:   int(info.Size() / fieldBytes),
		buf:          make([]byte, fieldBytes),
	}, nil
}

// Path returns the file path the reader was opened with.
func (r *Reader) Path() string { return r.path }

// FieldCount returns the number of complete fields in the file.
func (r *Reader) FieldCount() int { return r.fieldCount }

// ReadField returns the samples of a 1-based field number in a newly
// allocated slice owned by the caller.
func (r *Reader) ReadField(fieldNumber int) ([]uint16, error) {
	if fieldNumber < 1 || fieldNumber > r.fieldCount {
		return nil, fmt.Errorf("read %s: field %d outside 1..%d", r.path, fieldNumber, r.fieldCount)
	}
	out := make([]uint16, r.fieldSamples)

	r.mu.Lock()
	defer r.mu.Unlock()
	offset := int64(fieldNumber-1) * int64(len(r.buf))
	n, err := r.file.ReadAt(r.buf, offset)
	if n < len(r.buf) {
		if err == nil || errors.Is(err, io.EOF) {
			err = ErrShortField
		}
		return nil, fmt.Errorf("read %s field %d: %w", r.path, fieldNumber, err)
	}
	for i := range out {
		out[i] = binary.LittleEndian.Uint16(r.buf[i*bytesPerSample:])
	}
	return out, nil
}

// Close releases the underlying file.
func (r *Reader) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.file == nil {
		return nil
	}
	err := r.file.Close()
	r.file = nil
	return err
}

// Writer appends fields to a .tbc file.
type Writer struct {
	file   afero.File
	out    *bufio.Writer
	path   string
	fields int
	buf    []byte
}

// Create creates (or truncates) a .tbc file for writing.
func Create(fs afero.Fs, path string) (*Writer, error) {
	file, err := fs.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", path, err)
	}
	return &Writer{file: file, out: bufio.NewWriterSize(file, 1<<20), path: path}, nil
}

// WriteField appends one field of samples.
func (w *Writer) WriteField(samples []uint16) error {
	size := len(samples) * bytesPerSample
	if cap(w.buf) < size {
		w.buf = make([]byte, size)
	}
	buf := w.buf[:size]
	for i, s := range samples {
		binary.LittleEndian.PutUint16(buf[i*bytesPerSample:], s)
	}
	if _, err := w.out.Write(buf); err != nil {
		return fmt.Errorf("write %s field %d: %w", w.path, w.fields+1, err)
	}
	w.fields++
	return nil
}

// Fields returns the number of fields written so far.
func (w *Writer) Fields() int { return w.fields }

// Close flushes buffered samples and closes the file.
func (w *Writer) Close() error {
	if w.file == nil {
		return nil
	}
	flushErr := w.out.Flush()
	closeErr := w.file.Close()
	w.file = nil
	if flushErr != nil {
		return fmt.Errorf("flush %s: %w", w.path, flushErr)
	}
	return closeErr
}
