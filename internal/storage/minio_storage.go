package storage

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// ObjectLocation addresses one object in an S3-compatible bucket
type ObjectLocation struct {
	Bucket string
	Object string
}

// ParseObjectLocation reads "<bucket>/<object>", or a bare "<object>" in defaultBucket.
// When defaultBucket is set, a location without a slash is an object name.
func ParseObjectLocation(location, defaultBucket string) (ObjectLocation, error) {
	location = strings.TrimPrefix(strings.TrimSpace(location), "/")
	if location == "" {
		return ObjectLocation{}, fmt.Errorf("%w: empty object location", ErrInvalidLocation)
	}

	bucket, object, found := strings.Cut(location, "/")
	if !found {
		if defaultBucket == "" {
			return ObjectLocation{}, fmt.Errorf("%w: %s has no bucket and none is configured", ErrInvalidLocation, location)
		}
		return ObjectLocation{Bucket: defaultBucket, Object: location}, nil
	}
	if bucket == "" || object == "" {
		return ObjectLocation{}, fmt.Errorf("%w: %s", ErrInvalidLocation, location)
	}
	return ObjectLocation{Bucket: bucket, Object: object}, nil
}

type objectOpener interface {
	openObject(ctx context.Context, bucket, object string) (io.ReadCloser, error)
}

type minioOpener struct {
	client *minio.Client
}

func (o minioOpener) openObject(ctx context.Context, bucket, object string) (io.ReadCloser, error) {
	obj, err := o.client.GetObject(ctx, bucket, object, minio.GetObjectOptions{})
	if err != nil {
		return nil, err
	}
	// GetObject is lazy; Stat surfaces a missing key before the body is read.
	if _, err := obj.Stat(); err != nil {
		obj.Close()
		return nil, err
	}
	return obj, nil
}

// MinioSource reads images from a MinIO or other S3-compatible endpoint
type MinioSource struct {
	bucket   string
	opener   objectOpener
	maxBytes int64
}

// NewMinioSource connects to endpoint with static credentials
func NewMinioSource(endpoint, accessKey, secretKey, bucket string, useSSL bool, maxBytes int64) (*MinioSource, error) {
	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(accessKey, secretKey, ""),
		Secure: useSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to init Minio client: %w", err)
	}

	return &MinioSource{
		bucket:   bucket,
		opener:   minioOpener{client: client},
		maxBytes: maxBytes,
	}, nil
}

// Fetch downloads the object named by location
func (s *MinioSource) Fetch(ctx context.Context, location string) ([]byte, error) {
	loc, err := ParseObjectLocation(location, s.bucket)
	if err != nil {
		return nil, err
	}

	body, err := s.opener.openObject(ctx, loc.Bucket, loc.Object)
	if err != nil {
		switch minio.ToErrorResponse(err).Code {
		case "NoSuchKey", "NoSuchBucket":
			return nil, fmt.Errorf("%w: %s/%s", ErrObjectNotFound, loc.Bucket, loc.Object)
		}
		return nil, fmt.Errorf("get object failed: %w", err)
	}
	defer body.Close()

	return readLimited(body, s.maxBytes)
}
