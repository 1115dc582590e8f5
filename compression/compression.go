// Package compression shrinks the source file before upload.
package compression

import (
	"fmt"
	"io"
	"os"

	"github.com/bitrise-io/go-utils/v2/log"
	"github.com/klauspost/compress/zstd"
)

// Compress writes a zstd-compressed copy of sourcePath into a temp file and
// returns its path. The caller owns the returned file and removes it when
// the upload is done.
func Compress(sourcePath string, logger log.Logger) (string, error) {
	source, err := os.Open(sourcePath)
	if err != nil {
		return "", fmt.Errorf("open source file: %w", err)
	}
	defer source.Close()

	output, err := os.CreateTemp("", "archive-mpu-*.zst")
	if err != nil {
		return "", fmt.Errorf("create temp file: %w", err)
	}

	writer, err := zstd.NewWriter(output)
	if err != nil {
		removeSilently(output)
		return "", fmt.Errorf("create zstd writer: %w", err)
	}

	if _, err := io.Copy(writer, source); err != nil {
		writer.Close()
		removeSilently(output)
		return "", fmt.Errorf("compress file: %w", err)
	}
	if err := writer.Close(); err != nil {
		removeSilently(output)
		return "", fmt.Errorf("flush zstd writer: %w", err)
	}
	if err := output.Close(); err != nil {
		os.Remove(output.Name())
		return "", fmt.Errorf("close temp file: %w", err)
	}

	logger.Debugf("Compressed %s to %s", sourcePath, output.Name())
	return output.Name(), nil
}

// Decompress restores a zstd-compressed file to destinationPath.
func Decompress(archivePath, destinationPath string) error {
	archive, err := os.Open(archivePath)
	if err != nil {
		return fmt.Errorf("open archive: %w", err)
	}
	defer archive.Close()

	reader, err := zstd.NewReader(archive)
	if err != nil {
		return fmt.Errorf("create zstd reader: %w", err)
	}
	defer reader.Close()

	output, err := os.Create(destinationPath)
	if err != nil {
		return fmt.Errorf("create output file: %w", err)
	}
	defer output.Close()

	if _, err := io.Copy(output, reader); err != nil {
		return fmt.Errorf("decompress file: %w", err)
	}

	return nil
}

func removeSilently(file *os.File) {
	file.Close()
	os.Remove(file.Name())
}
