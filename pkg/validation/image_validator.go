package validation

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	apperrors "github.com/neuravision/neuravision/internal/errors"
	"github.com/neuravision/neuravision/internal/imaging"
)

// NoImageMessage is shown when an analysis is requested without an image
const NoImageMessage = "⚠️ NO IMAGE DATA DETECTED"

// ImageLimits defines what an uploaded image may look like
type ImageLimits struct {
	MaxBytes int64
	// MaxPixels bounds width*height so decoding stays within memory; 0 disables it
	MaxPixels      int
	AllowedFormats []string
}

// DefaultImageLimits accepts the upload formats of the web form plus GIF and WebP
func DefaultImageLimits() ImageLimits {
	return ImageLimits{
		MaxBytes:       10 * 1024 * 1024,
		MaxPixels:      50_000_000,
		AllowedFormats: []string{"png", "jpeg", "gif", "webp"},
	}
}

// ImageInfo is what the validator learned from the image header
type ImageInfo struct {
	Format string
	Width  int
	Height int
	Bytes  int
}

// ImageValidator checks image data before it is decoded
type ImageValidator struct {
	limits ImageLimits
}

// NewImageValidator creates a validator with default limits
func NewImageValidator() *ImageValidator {
	return &ImageValidator{limits: DefaultImageLimits()}
}

// NewImageValidatorWithLimits creates a validator with custom limits
func NewImageValidatorWithLimits(limits ImageLimits) *ImageValidator {
	return &ImageValidator{limits: limits}
}

// ValidateImage reads the image header and checks size and format
func (v *ImageValidator) ValidateImage(data []byte) (ImageInfo, error) {
	if len(data) == 0 {
		return ImageInfo{}, apperrors.NewValidationError(NoImageMessage, nil)
	}
	if v.limits.MaxBytes > 0 && int64(len(data)) > v.limits.MaxBytes {
		return ImageInfo{}, apperrors.NewValidationError(
			fmt.Sprintf("Image is %d bytes, the limit is %d", len(data), v.limits.MaxBytes), nil)
	}

	cfg, format, err := imaging.DecodeConfig(data)
	if err != nil {
		if errors.Is(err, imaging.ErrUnsupportedImage) {
			return ImageInfo{}, apperrors.NewValidationError("Unsupported image format", err)
		}
		return ImageInfo{}, apperrors.NewValidationError("Invalid image data", err)
	}
	if !v.isFormatAllowed(format) {
		return ImageInfo{}, apperrors.NewValidationError(fmt.Sprintf("Image format %s not allowed", format), nil)
	}
	if cfg.Width <= 0 || cfg.Height <= 0 {
		return ImageInfo{}, apperrors.NewValidationError("Image has no pixels", nil)
	}
	if v.limits.MaxPixels > 0 && cfg.Width*cfg.Height > v.limits.MaxPixels {
		return ImageInfo{}, apperrors.NewValidationError(
			fmt.Sprintf("Image is %dx%d, the limit is %d pixels", cfg.Width, cfg.Height, v.limits.MaxPixels), nil)
	}

	return ImageInfo{Format: format, Width: cfg.Width, Height: cfg.Height, Bytes: len(data)}, nil
}

// ValidateFilename checks the extension of an uploaded file name
func (v *ImageValidator) ValidateFilename(name string) error {
	ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(name)), ".")
	if ext == "jpg" {
		ext = "jpeg"
	}
	if ext == "" || !v.isFormatAllowed(ext) {
		return apperrors.NewValidationError(fmt.Sprintf("File type not allowed: %s", name), nil)
	}
	return nil
}

func (v *ImageValidator) isFormatAllowed(format string) bool {
	for _, allowed := range v.limits.AllowedFormats {
		if format == allowed {
			return true
		}
	}
	return false
}
