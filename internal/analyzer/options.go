package analyzer

import "github.com/neuravision/neuravision/internal/imaging"

const (
	DefaultModel                     = "meta-llama/llama-4-scout-17b-16e-instruct"
	DefaultMaxTokens                 = 1024
	DefaultBanner                    = "▲▲ ANALYSIS COMPLETE ▲▲"
	DefaultErrorPrefix               = "⚠️ SYSTEM ERROR: "
	DefaultCredentialRequiredMessage = "❌ ERROR: API KEY REQUIRED"
)

// AnalysisOptions provides flexible configuration for image analysis
type AnalysisOptions struct {
	// Model request
	Model       string
	MaxTokens   int
	Temperature *float64

	// Image encoding
	JPEGQuality       int
	MaxImageDimension int // 0 keeps the original size

	// Result framing
	Banner                    string
	ErrorPrefix               string
	CredentialRequiredMessage string
}

// DefaultOptions returns default analysis options
func DefaultOptions() AnalysisOptions {
	return AnalysisOptions{
		Model:                     DefaultModel,
		MaxTokens:                 DefaultMaxTokens,
		JPEGQuality:               imaging.DefaultJPEGQuality,
		MaxImageDimension:         0,
		Banner:                    DefaultBanner,
		ErrorPrefix:               DefaultErrorPrefix,
		CredentialRequiredMessage: DefaultCredentialRequiredMessage,
	}
}

// withDefaults replaces zero or out of range request and encoding settings
// with DefaultOptions values. Banner and ErrorPrefix may be empty on purpose
// and are kept as given.
func (o AnalysisOptions) withDefaults() AnalysisOptions {
	defaults := DefaultOptions()
	if o.Model == "" {
		o.Model = defaults.Model
	}
	if o.MaxTokens <= 0 {
		o.MaxTokens = defaults.MaxTokens
	}
	if o.JPEGQuality < 1 || o.JPEGQuality > 100 {
		o.JPEGQuality = defaults.JPEGQuality
	}
	if o.MaxImageDimension < 0 {
		o.MaxImageDimension = 0
	}
	if o.CredentialRequiredMessage == "" {
		o.CredentialRequiredMessage = defaults.CredentialRequiredMessage
	}
	return o
}

// WithModel sets the model identifier
func (o AnalysisOptions) WithModel(model string) AnalysisOptions {
	o.Model = model
	return o
}

// WithMaxTokens sets the completion token ceiling
func (o AnalysisOptions) WithMaxTokens(maxTokens int) AnalysisOptions {
	o.MaxTokens = maxTokens
	return o
}

// WithTemperature sets the sampling temperature sent with the request
func (o AnalysisOptions) WithTemperature(temperature float64) AnalysisOptions {
	o.Temperature = &temperature
	return o
}

// WithJPEGQuality sets the quality of the re-encoded upload
func (o AnalysisOptions) WithJPEGQuality(quality int) AnalysisOptions {
	o.JPEGQuality = quality
	return o
}

// WithMaxImageDimension enables downscaling of large images
func (o AnalysisOptions) WithMaxImageDimension(maxDim int) AnalysisOptions {
	o.MaxImageDimension = maxDim
	return o
}

// WithBanner sets the header placed above successful results. Empty disables it.
func (o AnalysisOptions) WithBanner(banner string) AnalysisOptions {
	o.Banner = banner
	return o
}

// WithErrorPrefix sets the prefix of failure messages
func (o AnalysisOptions) WithErrorPrefix(prefix string) AnalysisOptions {
	o.ErrorPrefix = prefix
	return o
}

// WithCredentialRequiredMessage sets the message returned when no API key is given
func (o AnalysisOptions) WithCredentialRequiredMessage(message string) AnalysisOptions {
	o.CredentialRequiredMessage = message
	return o
}

func (o AnalysisOptions) encodeOptions() imaging.EncodeOptions {
	return imaging.EncodeOptions{
		Quality:      o.JPEGQuality,
		MaxDimension: o.MaxImageDimension,
	}
}
