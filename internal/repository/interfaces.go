package repository

import (
	"context"

	"github.com/neuravision/neuravision/internal/factory"
)

// ImageRef names an image in one of the configured sources
type ImageRef struct {
	Source   factory.SourceType
	Location string
}

// ImageRepository defines the interface for loading remote images
type ImageRepository interface {
	// Load validates ref and returns the raw image bytes
	Load(ctx context.Context, ref ImageRef) ([]byte, error)
}
