package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	apperrors "github.com/neuravision/neuravision/internal/errors"
	"github.com/neuravision/neuravision/internal/factory"
	"github.com/neuravision/neuravision/internal/observer"
	"github.com/neuravision/neuravision/internal/storage"
	"github.com/neuravision/neuravision/pkg/validation"
)

// SourceImageRepository loads images through the source factory
type SourceImageRepository struct {
	sources   factory.SourceFactory
	validator *validation.URLValidator
	events    observer.Subject
}

// NewSourceImageRepository creates a repository. events may be nil.
func NewSourceImageRepository(sources factory.SourceFactory, validator *validation.URLValidator, events observer.Subject) *SourceImageRepository {
	if validator == nil {
		validator = validation.NewURLValidator()
	}
	return &SourceImageRepository{
		sources:   sources,
		validator: validator,
		events:    events,
	}
}

// Load fetches the image named by ref. Errors are *apperrors.AppError.
func (r *SourceImageRepository) Load(ctx context.Context, ref ImageRef) ([]byte, error) {
	if strings.TrimSpace(ref.Location) == "" {
		return nil, apperrors.NewValidationError("Image location is required", ErrEmptyLocation)
	}
	if ref.Source == "" {
		ref.Source = factory.HTTPSource
	}

	switch ref.Source {
	case factory.HTTPSource, factory.AzureSource:
		if err := r.validator.ValidateImageURL(ref.Location); err != nil {
			return nil, err
		}
	}

	src, err := r.sources.CreateSource(ref.Source)
	if err != nil {
		return nil, apperrors.NewValidationError("Image source unavailable",
			fmt.Errorf("%w: %v", ErrSourceUnavailable, err))
	}

	start := time.Now()
	data, err := src.Fetch(ctx, ref.Location)
	event := observer.AnalysisEvent{
		EventType:      observer.ImageFetched,
		Source:         string(ref.Source),
		ProcessingTime: time.Since(start),
		Success:        err == nil,
	}
	if err != nil {
		appErr := classifyFetchError(err)
		event.EventType = observer.ImageFetchFailed
		event.ErrorType = string(appErr.Type)
		event.ErrorMessage = err.Error()
		r.publish(ctx, event)
		return nil, appErr
	}

	event.Metadata = map[string]interface{}{"bytes": len(data)}
	r.publish(ctx, event)
	return data, nil
}

func (r *SourceImageRepository) publish(ctx context.Context, event observer.AnalysisEvent) {
	if r.events != nil {
		r.events.NotifyObservers(ctx, event)
	}
}

func classifyFetchError(err error) *apperrors.AppError {
	var statusErr *storage.StatusError
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return apperrors.NewTimeoutError("Timed out fetching image", err)
	case errors.Is(err, storage.ErrInvalidLocation):
		return apperrors.NewValidationError("Invalid image location", err)
	case errors.Is(err, storage.ErrImageTooLarge):
		return apperrors.NewValidationError("Image too large", err)
	case errors.Is(err, storage.ErrObjectNotFound):
		return apperrors.NewNotFoundError("Image not found", err)
	case errors.As(err, &statusErr) && statusErr.StatusCode == 404:
		return apperrors.NewNotFoundError("Image not found", err)
	default:
		return apperrors.NewNetworkError("Failed to fetch image", err)
	}
}
