package partuploader

import (
	"fmt"
	"io"
)

// PartReader produces fixed-size parts from a seekable byte source. Every
// part is exactly partSize bytes except the final one, which may be shorter.
// A zero-byte read ends the sequence.
type PartReader struct {
	src      io.ReadSeeker
	partSize int64
	index    int
	offset   int64
}

// NewPartReader creates a reader positioned at the start of the sequence.
func NewPartReader(src io.ReadSeeker, partSize int64) *PartReader {
	return &PartReader{src: src, partSize: partSize}
}

// Next returns the next part, or nil when the source is exhausted.
// An empty source yields nil on the first call.
func (r *PartReader) Next() (*Part, error) {
	buffer := make([]byte, r.partSize)
	n, err := io.ReadFull(r.src, buffer)
	if err == io.EOF {
		return nil, nil
	}
	if err != nil && err != io.ErrUnexpectedEOF {
		return nil, fmt.Errorf("read part %d at offset %d: %w", r.index+1, r.offset, err)
	}
	if n == 0 {
		return nil, nil
	}

	part := &Part{Index: r.index, Offset: r.offset, Payload: buffer[:n]}
	r.index++
	r.offset += int64(n)
	return part, nil
}

// ReadAll drains the remaining sequence into memory.
func (r *PartReader) ReadAll() ([]Part, error) {
	var parts []Part
	for {
		part, err := r.Next()
		if err != nil {
			return nil, err
		}
		if part == nil {
			return parts, nil
		}
		parts = append(parts, *part)
	}
}

// Reset rewinds the reader to the start of the source.
func (r *PartReader) Reset() error {
	if _, err := r.src.Seek(0, io.SeekStart); err != nil {
		return fmt.Errorf("seek to start: %w", err)
	}
	r.index = 0
	r.offset = 0
	return nil
}
