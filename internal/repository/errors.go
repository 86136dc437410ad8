package repository

import "errors"

var (
	// ErrEmptyLocation indicates a request without an image location
	ErrEmptyLocation = errors.New("image location is empty")

	// ErrSourceUnavailable indicates the requested storage backend cannot be used
	ErrSourceUnavailable = errors.New("image source unavailable")
)
