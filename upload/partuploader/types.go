// Package partuploader splits a source file into fixed-size parts and
// transmits them concurrently over a bounded worker pool.
package partuploader

import (
	"context"
)

// Part is one contiguous byte range of the source file, uploaded as a unit.
// Offsets are assigned strictly in file order and are contiguous.
type Part struct {
	Index   int
	Offset  int64
	Payload []byte
}

// Length returns the payload length in bytes.
func (p Part) Length() int64 {
	return int64(len(p.Payload))
}

// PartResult is the immutable outcome of one part transmission. A failed
// transmission carries its cause in Err and is never mistaken for success.
type PartResult struct {
	Index    int
	Offset   int64
	Length   int64
	Checksum string
	Err      error
}

// PartStore transmits one part payload tagged with its byte range. It must
// be safe for concurrent use by multiple workers. Re-sending the same range
// overwrites the earlier bytes on the remote side.
type PartStore interface {
	UploadPart(ctx context.Context, sessionID string, offset int64, payload []byte, checksum string) error
}
