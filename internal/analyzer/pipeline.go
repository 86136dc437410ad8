package analyzer

import (
	"context"
	"errors"
	"fmt"
	"image"
	"net/url"
	"strings"
	"time"

	apperrors "github.com/neuravision/neuravision/internal/errors"
	"github.com/neuravision/neuravision/internal/imaging"
	"github.com/neuravision/neuravision/internal/observer"
	"github.com/neuravision/neuravision/internal/provider"
)

// pipeline implements ImageAnalyzer on top of a chat completion endpoint
type pipeline struct {
	completer provider.ChatCompleter
	options   AnalysisOptions
	events    observer.Subject
}

// NewPipeline creates an analyzer that sends images to completer. events may be nil.
// Unset model, token ceiling, JPEG quality and credential message fall back to
// DefaultOptions; an empty Banner or ErrorPrefix is kept.
func NewPipeline(completer provider.ChatCompleter, options AnalysisOptions, events observer.Subject) ImageAnalyzer {
	return &pipeline{
		completer: completer,
		options:   options.withDefaults(),
		events:    events,
	}
}

// AnalyzeBytes checks the credential, decodes data and analyzes the image
func (p *pipeline) AnalyzeBytes(ctx context.Context, credential string, data []byte, prompt string) Result {
	if !hasCredential(credential) {
		return p.credentialRequired(ctx)
	}

	img, _, err := imaging.Decode(data)
	if err != nil {
		return p.fail(ctx, time.Now(), apperrors.NewEncodingError("failed to decode image", err))
	}
	return p.Analyze(ctx, credential, img, prompt)
}

// Analyze sends img with prompt to the model. It never panics: every failure,
// a recovered panic included, is reported as a Failed result.
func (p *pipeline) Analyze(ctx context.Context, credential string, img image.Image, prompt string) (result Result) {
	if !hasCredential(credential) {
		return p.credentialRequired(ctx)
	}

	start := time.Now()
	state := StateIdle
	defer func() {
		if r := recover(); r != nil {
			result = p.fail(ctx, start, apperrors.NewInternalError("analysis panicked", fmt.Errorf("panic: %v", r)))
		}
	}()

	state = p.transition(state, StateRequesting)
	p.publish(ctx, observer.AnalysisEvent{EventType: observer.AnalysisStarted, Model: p.options.Model})

	uri, err := imaging.EncodeDataURI(img, p.options.encodeOptions())
	if err != nil {
		return p.fail(ctx, start, apperrors.NewEncodingError("failed to encode image", err))
	}

	req := provider.NewVisionRequest(p.options.Model, prompt, uri, p.options.MaxTokens)
	req.Temperature = p.options.Temperature

	resp, err := p.completer.CreateChatCompletion(ctx, credential, req)
	if err != nil {
		return p.fail(ctx, start, classifyProviderError(err))
	}

	text, err := resp.FirstChoiceText()
	if err != nil {
		return p.fail(ctx, start, apperrors.NewProviderError("invalid provider response", err))
	}

	state = p.transition(state, StateSucceeded)
	result = Result{
		State:    state,
		Text:     text,
		Message:  p.decorate(text),
		Model:    p.options.Model,
		Usage:    resp.Usage,
		Duration: time.Since(start),
	}
	if resp.Model != "" {
		result.Model = resp.Model
	}

	event := observer.AnalysisEvent{
		EventType:      observer.AnalysisCompleted,
		Model:          result.Model,
		ProcessingTime: result.Duration,
		Success:        true,
	}
	if resp.Usage != nil {
		event.Metadata = map[string]interface{}{"total_tokens": resp.Usage.TotalTokens}
	}
	p.publish(ctx, event)
	return result
}

func (p *pipeline) credentialRequired(ctx context.Context) Result {
	return p.fail(ctx, time.Now(), apperrors.NewCredentialRequiredError(p.options.CredentialRequiredMessage))
}

func (p *pipeline) fail(ctx context.Context, start time.Time, appErr *apperrors.AppError) Result {
	result := Result{
		State:    StateFailed,
		Err:      appErr,
		Model:    p.options.Model,
		Duration: time.Since(start),
	}
	if appErr.Type == apperrors.ErrorTypeCredentialRequired {
		result.Message = appErr.Message
	} else {
		result.Message = p.options.ErrorPrefix + appErr.Description()
	}

	p.publish(ctx, observer.AnalysisEvent{
		EventType:      observer.AnalysisFailed,
		Model:          result.Model,
		ProcessingTime: result.Duration,
		ErrorType:      string(appErr.Type),
		ErrorMessage:   appErr.Description(),
	})
	return result
}

func (p *pipeline) transition(from, to State) State {
	if !from.CanTransition(to) {
		panic(fmt.Sprintf("analyzer: illegal state transition %s -> %s", from, to))
	}
	return to
}

func (p *pipeline) decorate(text string) string {
	if p.options.Banner == "" {
		return text
	}
	return p.options.Banner + "\n\n" + text
}

func (p *pipeline) publish(ctx context.Context, event observer.AnalysisEvent) {
	if p.events == nil {
		return
	}
	p.events.NotifyObservers(ctx, event)
}

func hasCredential(credential string) bool {
	return strings.TrimSpace(credential) != ""
}

func classifyProviderError(err error) *apperrors.AppError {
	var apiErr *provider.APIError
	var urlErr *url.Error
	isURLErr := errors.As(err, &urlErr)
	switch {
	case errors.Is(err, context.DeadlineExceeded), isURLErr && urlErr.Timeout():
		return apperrors.NewTimeoutError("provider request timed out", err)
	case errors.As(err, &apiErr):
		return apperrors.NewProviderError("provider rejected the request", err)
	case isURLErr:
		return apperrors.NewNetworkError("provider unreachable", err)
	default:
		return apperrors.NewProviderError("provider request failed", err)
	}
}
