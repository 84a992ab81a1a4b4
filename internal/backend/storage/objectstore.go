package storage

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
)

const (
	DefaultBucket   = "food_images"
	JPEGContentType = "image/jpeg"
)

// ErrObjectNotFound is returned by ObjectReader implementations for unknown objects.
var ErrObjectNotFound = errors.New("object not found")

// ObjectStore is a path-addressed blob store. Upload overwrites an existing object at the same path.
type ObjectStore interface {
	Upload(ctx context.Context, bucket, path string, data []byte, contentType string) error
	PublicURL(bucket, path string) string
	Close() error
}

// ObjectReader is implemented by stores whose objects are served by this service itself.
type ObjectReader interface {
	Download(ctx context.Context, bucket, path string) ([]byte, string, error)
}

// Error reports a failed object store write.
type Error struct {
	Bucket string
	Path   string
	Err    error
}

func (e *Error) Error() string {
	return fmt.Sprintf("failed to upload %s/%s: %v", e.Bucket, e.Path, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// joinPublicURL escapes each path segment; object keys themselves stay unescaped.
func joinPublicURL(baseURL, bucket, path string) string {
	segments := strings.Split(strings.TrimLeft(path, "/"), "/")
	for i, segment := range segments {
		segments[i] = url.PathEscape(segment)
	}
	return strings.TrimRight(baseURL, "/") + "/" + url.PathEscape(bucket) + "/" + strings.Join(segments, "/")
}
