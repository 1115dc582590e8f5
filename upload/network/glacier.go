package network

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/glacier"
	"github.com/aws/smithy-go"
	"github.com/bitrise-io/go-utils/v2/log"
)

// glacierStore implements Store on top of the AWS Glacier multipart API.
// The provider owns the connection lifecycle; the store is safe for
// concurrent UploadPart calls.
type glacierStore struct {
	provider *ClientProvider
	vault    string
	logger   log.Logger
}

// NewGlacierStore returns a Store bound to one vault. The caller keeps
// ownership of the provider and must Shutdown it when done.
func NewGlacierStore(provider *ClientProvider, vault string, logger log.Logger) Store {
	return &glacierStore{
		provider: provider,
		vault:    vault,
		logger:   logger,
	}
}

func (s *glacierStore) Initiate(ctx context.Context, description string, partSize int64) (string, error) {
	client, err := s.provider.Client(ctx)
	if err != nil {
		return "", err
	}

	out, err := client.InitiateMultipartUpload(ctx, &glacier.InitiateMultipartUploadInput{
		AccountId:          aws.String("-"),
		VaultName:          aws.String(s.vault),
		ArchiveDescription: aws.String(description),
		PartSize:           aws.String(strconv.FormatInt(partSize, 10)),
	})
	if err != nil {
		return "", fmt.Errorf("initiate multipart upload: %w", err)
	}

	return aws.ToString(out.UploadId), nil
}

func (s *glacierStore) UploadPart(ctx context.Context, sessionID string, offset int64, payload []byte, checksum string) error {
	client, err := s.provider.Client(ctx)
	if err != nil {
		return err
	}

	contentRange := rangeHeader(offset, int64(len(payload)))
	_, err = client.UploadMultipartPart(ctx, &glacier.UploadMultipartPartInput{
		AccountId: aws.String("-"),
		VaultName: aws.String(s.vault),
		UploadId:  aws.String(sessionID),
		Range:     aws.String(contentRange),
		Checksum:  aws.String(checksum),
		Body:      bytes.NewReader(payload),
	})
	if err != nil {
		return fmt.Errorf("upload range %s: %w", contentRange, err)
	}

	return nil
}

func (s *glacierStore) Complete(ctx context.Context, sessionID, checksum string, totalSize int64) (string, error) {
	client, err := s.provider.Client(ctx)
	if err != nil {
		return "", err
	}

	out, err := client.CompleteMultipartUpload(ctx, &glacier.CompleteMultipartUploadInput{
		AccountId:   aws.String("-"),
		VaultName:   aws.String(s.vault),
		UploadId:    aws.String(sessionID),
		ArchiveSize: aws.String(strconv.FormatInt(totalSize, 10)),
		Checksum:    aws.String(checksum),
	})
	if err != nil {
		// checksum or size mismatches come back as API errors, keep the
		// remote diagnostic detail visible
		var apiErr smithy.APIError
		if errors.As(err, &apiErr) {
			return "", fmt.Errorf("complete multipart upload rejected (%s): %s: %w",
				apiErr.ErrorCode(), apiErr.ErrorMessage(), err)
		}
		return "", fmt.Errorf("complete multipart upload: %w", err)
	}

	s.logger.Debugf("Session completed, location: %s", aws.ToString(out.Location))
	return aws.ToString(out.ArchiveId), nil
}

// rangeHeader formats the Content-Range value for one part, for example
// "bytes 0-1048575/*".
func rangeHeader(offset, length int64) string {
	return fmt.Sprintf("bytes %d-%d/*", offset, offset+length-1)
}
