package storage

import (
	"context"
	"fmt"
	"log/slog"
)

// Options selects and configures one object store backend.
type Options struct {
	Type          string
	PublicBaseURL string
	S3            S3Options

	RedisAddress  string
	RedisPassword string
	RedisDB       int

	SQLiteConnectionString string
}

func NewObjectStore(ctx context.Context, opts Options) (store ObjectStore, err error) {
	switch opts.Type {
	case "s3":
		s3Opts := opts.S3
		if s3Opts.PublicBaseURL == "" {
			s3Opts.PublicBaseURL = opts.PublicBaseURL
		}
		store, err = NewS3ObjectStore(ctx, s3Opts)
	case "redis":
		store, err = NewRedisObjectStore(ctx, opts.RedisAddress, opts.RedisPassword, opts.RedisDB, opts.PublicBaseURL)
	case "sqlite":
		store, err = NewSQLiteObjectStore(opts.SQLiteConnectionString, opts.PublicBaseURL)
	default:
		return nil, fmt.Errorf("unsupported storage type: %s", opts.Type)
	}
	if err != nil {
		return nil, err
	}

	slog.Info("object store initialized", "type", opts.Type)
	return store, nil
}
