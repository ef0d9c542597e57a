package metadata

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/afero"
)

// ReadJSON decodes a JSON sidecar document.
func ReadJSON(r io.Reader) (*Metadata, error) {
	var m Metadata
	decoder := json.NewDecoder(bufio.NewReader(r))
	if err := decoder.Decode(&m); err != nil {
		return nil, fmt.Errorf("decode metadata json: %w", err)
	}
	for i := range m.Fields {
		if m.Fields[i].SeqNo == 0 {
			m.Fields[i].SeqNo = i + 1
		}
	}
	if m.VideoParameters.NumberOfSequentialFields == 0 {
		m.VideoParameters.NumberOfSequentialFields = len(m.Fields)
	}
	return &m, nil
}

// WriteJSON encodes the document.
func WriteJSON(w io.Writer, m *Metadata) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(m); err != nil {
		return fmt.Errorf("encode metadata json: %w", err)
	}
	return nil
}

// LoadJSON reads a JSON sidecar from the filesystem.
func LoadJSON(fs afero.Fs, path string) (*Metadata, error) {
	file, err := fs.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open metadata %s: %w", path, err)
	}
	defer file.Close()
	return ReadJSON(file)
}

// SaveJSON writes the document to path, replacing any existing file.
func SaveJSON(fs afero.Fs, path string, m *Metadata) error {
	file, err := fs.OpenFile(path, osCreateTrunc, 0o644)
	if err != nil {
		return fmt.Errorf("create metadata %s: %w", path, err)
	}
	buffered := bufio.NewWriter(file)
	if err := WriteJSON(buffered, m); err != nil {
		_ = file.Close()
		return err
	}
	if err := buffered.Flush(); err != nil {
		_ = file.Close()
		return fmt.Errorf("flush metadata %s: %w", path, err)
	}
	return file.Close()
}
