package factory

import (
	"fmt"
	"strings"
	"sync"

	"github.com/neuravision/neuravision/internal/config"
	"github.com/neuravision/neuravision/internal/storage"
)

// SourceType represents different types of image storage backends
type SourceType string

const (
	// HTTPSource for images fetched by URL
	HTTPSource SourceType = storage.KindHTTP
	// AzureSource for Azure blob storage
	AzureSource SourceType = storage.KindAzure
	// MinioSource for MinIO and other S3-compatible storage
	MinioSource SourceType = storage.KindMinio
)

// ParseSourceType maps a request field onto a source type. Empty means HTTP.
func ParseSourceType(s string) (SourceType, error) {
	switch t := SourceType(strings.ToLower(strings.TrimSpace(s))); t {
	case "":
		return HTTPSource, nil
	case HTTPSource, AzureSource, MinioSource:
		return t, nil
	default:
		return "", fmt.Errorf("unsupported source type: %s", s)
	}
}

// SourceFactory creates image sources
type SourceFactory interface {
	CreateSource(sourceType SourceType) (storage.ImageSource, error)
}

// sourceFactory builds each source once from configuration and reuses it
type sourceFactory struct {
	cfg *config.Config

	mu      sync.Mutex
	sources map[SourceType]storage.ImageSource
}

// NewSourceFactory creates a new source factory
func NewSourceFactory(cfg *config.Config) SourceFactory {
	return &sourceFactory{
		cfg:     cfg,
		sources: make(map[SourceType]storage.ImageSource),
	}
}

// CreateSource returns the source for sourceType, building it on first use
func (f *sourceFactory) CreateSource(sourceType SourceType) (storage.ImageSource, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if src, ok := f.sources[sourceType]; ok {
		return src, nil
	}

	src, err := f.build(sourceType)
	if err != nil {
		return nil, err
	}
	f.sources[sourceType] = src
	return src, nil
}

func (f *sourceFactory) build(sourceType SourceType) (storage.ImageSource, error) {
	maxBytes := f.cfg.Analysis.MaxImageBytes

	switch sourceType {
	case HTTPSource:
		return storage.NewHTTPImageFetcher(
			storage.WithFetchTimeout(f.cfg.Fetch.Timeout),
			storage.WithRetryBackoff(f.cfg.Fetch.RetryBackoff),
			storage.WithMaxBytes(maxBytes),
		), nil
	case AzureSource:
		azure := f.cfg.Storage.Azure
		if !azure.Configured() {
			return nil, fmt.Errorf("azure storage is not configured")
		}
		return storage.NewAzureBlobSource(azure.AccountName, azure.AccountKey, maxBytes)
	case MinioSource:
		m := f.cfg.Storage.Minio
		if !m.Configured() {
			return nil, fmt.Errorf("minio storage is not configured")
		}
		return storage.NewMinioSource(m.Endpoint, m.AccessKey, m.SecretKey, m.Bucket, m.UseSSL, maxBytes)
	default:
		return nil, fmt.Errorf("unsupported source type: %s", sourceType)
	}
}
