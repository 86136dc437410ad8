package analyzer

import (
	"context"
	"image"
)

// ImageAnalyzer sends an image and a prompt to a vision model. Implementations
// report every failure inside the returned Result and never panic.
type ImageAnalyzer interface {
	Analyze(ctx context.Context, credential string, img image.Image, prompt string) Result
	AnalyzeBytes(ctx context.Context, credential string, data []byte, prompt string) Result
}
