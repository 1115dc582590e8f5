package upload

import (
	"fmt"

	"github.com/kelseyhightower/envconfig"
)

// UploadInput is the information collected from the command line.
type UploadInput struct {
	FilePath        string
	Description     string
	VaultName       string
	ServiceEndpoint string
	SigningRegion   string
	Verbose         bool
	Compress        bool
}

type uploadConfig struct {
	UploadInput
	PartSize    int64
	Concurrency int
	ClientLife  int64
}

// Operational tunables come from the environment, not the command line.
type envTunables struct {
	PartSizeMB  int64 `envconfig:"ARCHIVE_MPU_PART_SIZE_MB" default:"1"`
	Concurrency int   `envconfig:"ARCHIVE_MPU_CONCURRENCY" default:"4"`
	ClientLife  int64 `envconfig:"ARCHIVE_MPU_CLIENT_LIFE" default:"60"`
}

func (u *Uploader) createConfig(input UploadInput) (uploadConfig, error) {
	if input.FilePath == "" {
		return uploadConfig{}, fmt.Errorf("file path must not be empty")
	}
	if input.VaultName == "" {
		return uploadConfig{}, fmt.Errorf("vault name must not be empty")
	}
	if input.SigningRegion == "" {
		return uploadConfig{}, fmt.Errorf("signing region must not be empty")
	}

	var tunables envTunables
	if err := envconfig.Process("", &tunables); err != nil {
		return uploadConfig{}, fmt.Errorf("parse environment tunables: %w", err)
	}

	// the remote store only accepts part sizes that are a power-of-two
	// number of MiB between 1 MiB and 4 GiB
	if tunables.PartSizeMB < 1 || tunables.PartSizeMB > 4096 || tunables.PartSizeMB&(tunables.PartSizeMB-1) != 0 {
		return uploadConfig{}, fmt.Errorf("part size must be a power-of-two number of MiB between 1 and 4096, got %d", tunables.PartSizeMB)
	}
	if tunables.Concurrency < 1 {
		return uploadConfig{}, fmt.Errorf("concurrency must be at least 1, got %d", tunables.Concurrency)
	}

	return uploadConfig{
		UploadInput: input,
		PartSize:    tunables.PartSizeMB * 1024 * 1024,
		Concurrency: tunables.Concurrency,
		ClientLife:  tunables.ClientLife,
	}, nil
}
