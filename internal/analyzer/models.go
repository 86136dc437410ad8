package analyzer

import (
	"time"

	apperrors "github.com/neuravision/neuravision/internal/errors"
	"github.com/neuravision/neuravision/internal/provider"
)

// State is the lifecycle position of one analysis call
type State int

const (
	StateIdle State = iota
	StateRequesting
	StateSucceeded
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateRequesting:
		return "requesting"
	case StateSucceeded:
		return "succeeded"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// MarshalText renders the state by name in JSON
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Terminal reports whether the call has finished
func (s State) Terminal() bool {
	return s == StateSucceeded || s == StateFailed
}

// CanTransition reports whether next may follow s. Idle may go straight to
// Failed when a precondition rejects the call before any request is sent.
func (s State) CanTransition(next State) bool {
	switch s {
	case StateIdle:
		return next == StateRequesting || next == StateFailed
	case StateRequesting:
		return next == StateSucceeded || next == StateFailed
	default:
		return false
	}
}

// Result is the outcome of one analysis call. Message is the display string:
// the decorated text on success, the prefixed error description on failure.
type Result struct {
	State    State
	Text     string
	Message  string
	Err      *apperrors.AppError
	Model    string
	Usage    *provider.Usage
	Duration time.Duration
}

// Succeeded reports whether the model produced text
func (r Result) Succeeded() bool {
	return r.State == StateSucceeded
}

// ErrorType returns the failure category, or an empty string on success
func (r Result) ErrorType() string {
	if r.Err == nil {
		return ""
	}
	return string(r.Err.Type)
}
