// Package imaging turns uploaded image bytes into the JPEG data URI sent to the
// vision model.
package imaging

import (
	"bytes"
	"encoding/base64"
	"errors"
	"fmt"
	"image"
	"image/color"
	_ "image/gif"
	"image/jpeg"
	_ "image/png"
	"strings"

	"golang.org/x/image/draw"
	_ "golang.org/x/image/webp"
)

const (
	MediaTypeJPEG = "image/jpeg"

	DefaultJPEGQuality = 75
)

var (
	ErrEmptyImage       = errors.New("image data is empty")
	ErrUnsupportedImage = errors.New("unsupported or corrupt image data")
	ErrInvalidDataURI   = errors.New("invalid image data URI")
)

// EncodeOptions controls how an image is re-encoded before upload.
type EncodeOptions struct {
	Quality      int // JPEG quality, 1..100
	MaxDimension int // longest side in pixels; 0 keeps the original size
}

// DefaultEncodeOptions matches the quality of the common JPEG encoders.
func DefaultEncodeOptions() EncodeOptions {
	return EncodeOptions{Quality: DefaultJPEGQuality}
}

// Decode decodes PNG, JPEG, GIF or WebP data and returns the format name.
func Decode(data []byte) (image.Image, string, error) {
	if len(data) == 0 {
		return nil, "", ErrEmptyImage
	}
	img, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, "", fmt.Errorf("%w: %v", ErrUnsupportedImage, err)
	}
	return img, format, nil
}

// DecodeConfig reads only the header: format and pixel dimensions.
func DecodeConfig(data []byte) (image.Config, string, error) {
	if len(data) == 0 {
		return image.Config{}, "", ErrEmptyImage
	}
	cfg, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return image.Config{}, "", fmt.Errorf("%w: %v", ErrUnsupportedImage, err)
	}
	return cfg, format, nil
}

// Flatten draws img over an opaque white background into an RGBA image
// whose bounds start at the origin. JPEG carries no alpha channel.
func Flatten(img image.Image) *image.RGBA {
	b := img.Bounds()
	dst := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(dst, dst.Bounds(), &image.Uniform{C: color.White}, image.Point{}, draw.Src)
	draw.Draw(dst, dst.Bounds(), img, b.Min, draw.Over)
	return dst
}

// Fit scales img down so that its longest side is at most maxDim, keeping the
// aspect ratio. Images already within bounds, or maxDim <= 0, are returned as is.
func Fit(img image.Image, maxDim int) image.Image {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	if maxDim <= 0 || (w <= maxDim && h <= maxDim) {
		return img
	}

	nw, nh := maxDim, maxDim
	if w >= h {
		nh = max(1, h*maxDim/w)
	} else {
		nw = max(1, w*maxDim/h)
	}

	dst := image.NewRGBA(image.Rect(0, 0, nw, nh))
	draw.CatmullRom.Scale(dst, dst.Rect, img, b, draw.Over, nil)
	return dst
}

// EncodeJPEG flattens and encodes img. The output depends only on the pixels
// and the quality, so equal inputs produce equal bytes.
func EncodeJPEG(img image.Image, quality int) ([]byte, error) {
	if img == nil {
		return nil, ErrEmptyImage
	}
	if b := img.Bounds(); b.Dx() <= 0 || b.Dy() <= 0 {
		return nil, ErrEmptyImage
	}
	if quality < 1 || quality > 100 {
		quality = DefaultJPEGQuality
	}

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, Flatten(img), &jpeg.Options{Quality: quality}); err != nil {
		return nil, fmt.Errorf("encode jpeg: %w", err)
	}
	return buf.Bytes(), nil
}

// DataURI embeds data as a base64 data URI of the given media type.
func DataURI(mediaType string, data []byte) string {
	return "data:" + mediaType + ";base64," + base64.StdEncoding.EncodeToString(data)
}

// EncodeDataURI re-encodes img as JPEG and wraps it in a data URI.
func EncodeDataURI(img image.Image, opts EncodeOptions) (string, error) {
	if img == nil {
		return "", ErrEmptyImage
	}
	data, err := EncodeJPEG(Fit(img, opts.MaxDimension), opts.Quality)
	if err != nil {
		return "", err
	}
	return DataURI(MediaTypeJPEG, data), nil
}

// ParseDataURI splits a base64 image data URI into its media type and payload.
func ParseDataURI(uri string) (string, []byte, error) {
	rest, ok := strings.CutPrefix(uri, "data:")
	if !ok {
		return "", nil, ErrInvalidDataURI
	}
	mediaType, payload, ok := strings.Cut(rest, ";base64,")
	if !ok {
		return "", nil, ErrInvalidDataURI
	}

	switch mediaType {
	case "image/jpeg", "image/jpg", "image/png", "image/webp", "image/gif":
	default:
		return "", nil, fmt.Errorf("%w: media type %q", ErrInvalidDataURI, mediaType)
	}

	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return "", nil, fmt.Errorf("%w: %v", ErrInvalidDataURI, err)
	}
	return mediaType, data, nil
}
