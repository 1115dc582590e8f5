package main

import (
	"context"
	"fmt"
	"os"

	"github.com/bitrise-io/go-utils/v2/log"
	"github.com/urfave/cli/v2"

	"github.com/ich-bins/archive-mpu/upload"
)

// requiredFlags are validated by hand so that a missing option prints the
// full required list plus the missing subset before exiting.
var requiredFlags = []*cli.StringFlag{
	{Name: "file", Usage: "file to upload"},
	{Name: "description", Usage: "intended archive name in vault"},
	{Name: "vault-name", Usage: "aws glacier vault name; this vault must already exist"},
	{Name: "service-endpoint", Usage: "aws service endpoint, e.g. 'glacier.eu-central-1.amazonaws.com'"},
	{Name: "signing-region", Usage: "aws signing region, e.g. 'eu-central-1'"},
}

func main() {
	logger := log.NewLogger()

	app := &cli.App{
		Name:   "archive-mpu",
		Usage:  "upload a large file to an AWS Glacier vault using multipart upload",
		Flags:  appFlags(),
		Action: run,
	}

	if err := app.Run(os.Args); err != nil {
		logger.Errorf("Error: %s", err)
		os.Exit(1)
	}
}

func appFlags() []cli.Flag {
	flags := make([]cli.Flag, 0, len(requiredFlags)+2)
	for _, flag := range requiredFlags {
		flags = append(flags, flag)
	}
	flags = append(flags,
		&cli.BoolFlag{Name: "verbose", Usage: "enable debug logging"},
		&cli.BoolFlag{Name: "compress", Usage: "zstd-compress the file before upload"},
	)
	return flags
}

func missingOptions(c *cli.Context) []*cli.StringFlag {
	var missing []*cli.StringFlag
	for _, flag := range requiredFlags {
		if c.String(flag.Name) == "" {
			missing = append(missing, flag)
		}
	}
	return missing
}

func run(c *cli.Context) error {
	if missing := missingOptions(c); len(missing) > 0 {
		fmt.Println("Required options:")
		for _, flag := range requiredFlags {
			fmt.Printf("  --%s  %s\n", flag.Name, flag.Usage)
		}
		fmt.Println("Missing required options:")
		for _, flag := range missing {
			fmt.Printf("  --%s  %s\n", flag.Name, flag.Usage)
		}
		return cli.Exit("", 1)
	}

	input := upload.UploadInput{
		FilePath:        c.String("file"),
		Description:     c.String("description"),
		VaultName:       c.String("vault-name"),
		ServiceEndpoint: c.String("service-endpoint"),
		SigningRegion:   c.String("signing-region"),
		Verbose:         c.Bool("verbose"),
		Compress:        c.Bool("compress"),
	}

	logger := log.NewLogger()
	logger.EnableDebugLog(input.Verbose)
	logger.Infof("------------")
	logger.Infof("file: %s", input.FilePath)
	logger.Infof("description: %s", input.Description)
	logger.Infof("vault-name: %s", input.VaultName)
	logger.Infof("service-endpoint: %s", input.ServiceEndpoint)
	logger.Infof("signing-region: %s", input.SigningRegion)
	logger.Infof("------------")

	uploader := upload.NewUploader(logger, nil)
	return uploader.Upload(context.Background(), input)
}
