package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
)

// Source kinds understood by the factory
const (
	KindHTTP  = "http"
	KindAzure = "azure"
	KindMinio = "minio"
)

// DefaultMaxImageBytes caps downloads when no limit is configured
const DefaultMaxImageBytes int64 = 10 * 1024 * 1024

var (
	ErrImageTooLarge   = errors.New("image exceeds size limit")
	ErrInvalidLocation = errors.New("invalid image location")
	ErrObjectNotFound  = errors.New("image not found")
)

// ImageSource returns the raw bytes of an image stored at location
type ImageSource interface {
	Fetch(ctx context.Context, location string) ([]byte, error)
}

// StatusError is a non-200 answer from an image host
type StatusError struct {
	StatusCode int
}

func (e *StatusError) Error() string {
	if e.StatusCode >= 500 {
		return fmt.Sprintf("server error: status code %d", e.StatusCode)
	}
	return fmt.Sprintf("client error: status code %d", e.StatusCode)
}

// readLimited reads r fully unless it holds more than limit bytes
func readLimited(r io.Reader, limit int64) ([]byte, error) {
	if limit <= 0 {
		limit = DefaultMaxImageBytes
	}
	data, err := io.ReadAll(io.LimitReader(r, limit+1))
	if err != nil {
		return nil, fmt.Errorf("read image: %w", err)
	}
	if int64(len(data)) > limit {
		return nil, fmt.Errorf("%w (%d bytes)", ErrImageTooLarge, limit)
	}
	return data, nil
}
