package storage

import (
	"context"
	"log/slog"
	"time"
)

// Uploader stores meal photos as JPEG objects in one bucket.
type Uploader struct {
	store  ObjectStore
	bucket string
}

func NewUploader(store ObjectStore, bucket string) *Uploader {
	if bucket == "" {
		bucket = DefaultBucket
	}
	return &Uploader{
		store:  store,
		bucket: bucket,
	}
}

// Upload writes the JPEG at path and returns its public URL. Failures are returned as *Error.
func (u *Uploader) Upload(ctx context.Context, jpegImage []byte, path string) (string, error) {
	start := time.Now()
	if err := u.store.Upload(ctx, u.bucket, path, jpegImage, JPEGContentType); err != nil {
		slog.Error("Uploader: upload failed", "bucket", u.bucket, "path", path, "error", err)
		return "", &Error{Bucket: u.bucket, Path: path, Err: err}
	}

	url := u.store.PublicURL(u.bucket, path)
	slog.Debug("Uploader: upload complete",
		"bucket", u.bucket,
		"path", path,
		"size_bytes", len(jpegImage),
		"duration_ms", time.Since(start).Milliseconds())
	return url, nil
}

// Bucket returns the target bucket name
func (u *Uploader) Bucket() string {
	return u.bucket
}
