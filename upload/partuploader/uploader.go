package partuploader

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bitrise-io/go-utils/v2/log"

	"github.com/ich-bins/archive-mpu/upload/treehash"
)

// DefaultConcurrency is the worker count used when none is configured.
const DefaultConcurrency = 4

// ErrUploadFailed marks the aggregate failure reported after every part has
// finished. Individual causes are carried by the PartResults.
var ErrUploadFailed = errors.New("some part uploads have failed")

// Uploader runs part uploads on a bounded worker pool.
type Uploader struct {
	store       PartStore
	concurrency int
	logger      log.Logger
	stats       *Stats
}

// New creates an Uploader with the given worker count.
func New(store PartStore, concurrency int, logger log.Logger) *Uploader {
	if concurrency <= 0 {
		concurrency = DefaultConcurrency
	}
	return &Uploader{
		store:       store,
		concurrency: concurrency,
		logger:      logger,
		stats:       NewStats(),
	}
}

// Stats returns the upload statistics.
func (u *Uploader) Stats() *Stats {
	return u.stats
}

// UploadParts transmits every part exactly once and blocks until all results
// are in. A failed part does not cancel in-flight uploads; the remaining
// parts run to completion before the aggregate error is reported. Results
// are returned in ascending offset order regardless of completion order.
func (u *Uploader) UploadParts(ctx context.Context, sessionID string, parts []Part) ([]PartResult, error) {
	if len(parts) == 0 {
		return []PartResult{}, nil
	}

	resultChan := make(chan PartResult, len(parts))
	semaphore := make(chan struct{}, u.concurrency)

	for i := range parts {
		go func(part Part) {
			semaphore <- struct{}{}
			defer func() { <-semaphore }()

			resultChan <- u.uploadPart(ctx, sessionID, part, len(parts))
		}(parts[i])
	}

	results := make([]PartResult, len(parts))
	failed := 0
	var firstErr error
	for completed := 0; completed < len(parts); completed++ {
		result := <-resultChan
		results[result.Index] = result
		if result.Err != nil {
			failed++
			if firstErr == nil {
				firstErr = result.Err
			}
		}
	}

	if failed > 0 {
		return results, fmt.Errorf("%w: %d of %d parts, first failure: %v", ErrUploadFailed, failed, len(parts), firstErr)
	}
	return results, nil
}

func (u *Uploader) uploadPart(ctx context.Context, sessionID string, part Part, totalParts int) PartResult {
	result := PartResult{
		Index:    part.Index,
		Offset:   part.Offset,
		Length:   part.Length(),
		Checksum: treehash.ToHex(treehash.Hash(part.Payload)),
	}

	u.logger.Debugf("Uploading part %d/%d (offset=%d length=%d) [finished=%d] [avg=%v]",
		part.Index+1, totalParts, part.Offset, part.Length(),
		u.stats.FinishedCount(), u.stats.Average().Round(time.Millisecond))

	start := time.Now()
	if err := u.store.UploadPart(ctx, sessionID, part.Offset, part.Payload, result.Checksum); err != nil {
		result.Err = fmt.Errorf("upload part %d (offset=%d length=%d): %w",
			part.Index+1, part.Offset, part.Length(), err)
		u.logger.Errorf("Part %d failed: %v", part.Index+1, result.Err)
		return result
	}

	took := time.Since(start)
	u.stats.Update(took)
	u.logger.Debugf("Part %d uploaded in %v", part.Index+1, took.Round(time.Millisecond))
	return result
}
