package main

import (
	"log"

	"github.com/jcvilalta/MineDeezCoords/internal/config"
	"github.com/jcvilalta/MineDeezCoords/internal/persistence/r2s3"
)

// buildUploader returns nil when uploads are disabled; a nil uploader
// ignores every call.
func buildUploader(cfg config.R2Config, logger *log.Logger) (*r2s3.Uploader, error) {
	if !cfg.Enabled {
		return nil, nil
	}
	client, err := r2s3.New(r2s3.Config{
		Endpoint:        cfg.Endpoint,
		Bucket:          cfg.Bucket,
		Region:          cfg.Region,
		AccessKeyID:     cfg.AccessKeyID,
		SecretAccessKey: cfg.SecretAccessKey,
	})
	if err != nil {
		return nil, err
	}
	return r2s3.NewUploader(client, r2s3.UploaderOptions{
		Prefix:  cfg.Prefix,
		Workers: cfg.Workers,
		Logger:  logger,
	}), nil
}
