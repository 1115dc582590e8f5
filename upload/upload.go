// Package upload drives one multipart archive upload end to end: a session
// is initiated in the remote store, the source file is split into parts
// that a worker pool transmits concurrently, the per-part tree hashes are
// folded into the archive checksum, and the session is completed against
// that checksum.
package upload

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/bitrise-io/go-utils/retry"
	"github.com/bitrise-io/go-utils/v2/log"
	"github.com/docker/go-units"

	"github.com/ich-bins/archive-mpu/compression"
	"github.com/ich-bins/archive-mpu/upload/network"
	"github.com/ich-bins/archive-mpu/upload/partuploader"
	"github.com/ich-bins/archive-mpu/upload/treehash"
)

const numInitiateRetries = 3

// ErrSizeMismatch reports that the bytes split into parts do not add up to
// the source file's length. It indicates a reader bug or a file changing
// mid-read, never a transmission failure.
var ErrSizeMismatch = errors.New("sum of part lengths differs from file size")

// Uploader is the session orchestrator. It owns the session for the whole
// run and the connection lifecycle when no custom store is injected.
type Uploader struct {
	logger log.Logger
	store  network.Store
}

// NewUploader creates the orchestrator. `store` can be nil, unless you want
// to provide a custom Store implementation.
func NewUploader(logger log.Logger, store network.Store) *Uploader {
	return &Uploader{
		logger: logger,
		store:  store,
	}
}

// Upload runs one session: initiate, upload all parts, aggregate the tree
// checksum, complete. A failed run surfaces its error and leaves any
// orphaned remote session alone; the whole session must be retried
// externally.
func (u *Uploader) Upload(ctx context.Context, input UploadInput) error {
	config, err := u.createConfig(input)
	if err != nil {
		return fmt.Errorf("process inputs: %w", err)
	}
	u.logger.EnableDebugLog(config.Verbose)

	filePath := config.FilePath
	if config.Compress {
		u.logger.Infof("Compressing archive before upload...")
		compressedPath, err := compression.Compress(filePath, u.logger)
		if err != nil {
			return fmt.Errorf("compress archive: %w", err)
		}
		defer os.Remove(compressedPath)
		filePath = compressedPath
	}

	fileInfo, err := os.Stat(filePath)
	if err != nil {
		return fmt.Errorf("stat source file: %w", err)
	}
	u.logger.Printf("Archive size: %s", units.HumanSizeWithPrecision(float64(fileInfo.Size()), 3))

	store := u.store
	if store == nil {
		provider := network.NewClientProvider(network.ClientProviderParams{
			ServiceEndpoint: config.ServiceEndpoint,
			SigningRegion:   config.SigningRegion,
			ClientLife:      config.ClientLife,
		}, u.logger)
		defer provider.Shutdown()
		store = network.NewGlacierStore(provider, config.VaultName, u.logger)
	}

	sessionID, err := u.initiateSession(ctx, store, config)
	if err != nil {
		return fmt.Errorf("initiate session: %w", err)
	}
	u.logger.Infof("Session initiated, upload ID: %s", sessionID)

	checksum, err := u.uploadParts(ctx, store, sessionID, config, filePath, fileInfo.Size())
	if err != nil {
		return err
	}
	u.logger.Infof("All parts uploaded, tree checksum: %s", checksum)

	archiveID, err := store.Complete(ctx, sessionID, checksum, fileInfo.Size())
	if err != nil {
		return fmt.Errorf("complete session: %w", err)
	}

	u.logger.Donef("Upload finished, archive ID: %s", archiveID)
	return nil
}

// initiateSession starts the remote session. No parts are in flight yet, so
// a bounded retry on transient failures is safe here.
func (u *Uploader) initiateSession(ctx context.Context, store network.Store, config uploadConfig) (string, error) {
	var sessionID string
	err := retry.Times(numInitiateRetries).Wait(5 * time.Second).TryWithAbort(func(attempt uint) (error, bool) {
		if attempt > 0 {
			u.logger.Warnf("Retrying session initiation (attempt %d)", attempt+1)
		}
		id, err := store.Initiate(ctx, config.Description, config.PartSize)
		if err != nil {
			return err, false
		}
		sessionID = id
		return nil, true
	})
	return sessionID, err
}

func (u *Uploader) uploadParts(ctx context.Context, store network.Store, sessionID string, config uploadConfig, filePath string, fileSize int64) (string, error) {
	file, err := os.Open(filePath)
	if err != nil {
		return "", fmt.Errorf("open source file: %w", err)
	}
	defer file.Close()

	reader := partuploader.NewPartReader(file, config.PartSize)
	parts, err := reader.ReadAll()
	if err != nil {
		return "", fmt.Errorf("read parts: %w", err)
	}

	var totalLength int64
	for _, part := range parts {
		totalLength += part.Length()
	}
	if totalLength != fileSize {
		return "", fmt.Errorf("%w: file size is %d but sum of parts is %d", ErrSizeMismatch, fileSize, totalLength)
	}

	u.logger.Infof("Uploading %d parts of up to %s each with %d workers",
		len(parts), units.HumanSize(float64(config.PartSize)), config.Concurrency)

	pool := partuploader.New(store, config.Concurrency, u.logger)
	results, err := pool.UploadParts(ctx, sessionID, parts)
	if err != nil {
		return "", err
	}

	// results arrive in ascending offset order; the fold is order-sensitive
	checksums := make([][]byte, len(results))
	for i, result := range results {
		digest, err := treehash.FromHex(result.Checksum)
		if err != nil {
			return "", fmt.Errorf("decode checksum of part %d: %w", result.Index+1, err)
		}
		checksums[i] = digest
	}

	return treehash.ToHex(treehash.Combine(checksums)), nil
}
