// Package network talks to the remote archive store.
package network

import (
	"context"
)

// Store is the remote store protocol for one multipart archive session.
type Store interface {
	// Initiate starts a multipart session in the vault and returns the
	// session identifier assigned by the store.
	Initiate(ctx context.Context, description string, partSize int64) (string, error)

	// UploadPart transmits one part tagged with its byte range. Safe for
	// concurrent use. Re-sending a range overwrites the earlier bytes.
	UploadPart(ctx context.Context, sessionID string, offset int64, payload []byte, checksum string) error

	// Complete finalizes the session. The store independently verifies the
	// aggregated checksum and total size and rejects the session on
	// mismatch. Returns the archive identifier.
	Complete(ctx context.Context, sessionID, checksum string, totalSize int64) (string, error)
}
