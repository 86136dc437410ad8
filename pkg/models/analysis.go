package models

import "time"

// AnalysisResponse is the outcome of one analysis as returned to clients.
// Result is the display string, shown as is whether the analysis succeeded or not.
type AnalysisResponse struct {
	State            string    `json:"state"`
	Result           string    `json:"result"`
	Text             string    `json:"text,omitempty"`
	ErrorType        string    `json:"error_type,omitempty"`
	Model            string    `json:"model,omitempty"`
	Prompt           string    `json:"prompt"`
	Source           string    `json:"source,omitempty"`
	SessionID        string    `json:"session_id,omitempty"`
	ProcessingTimeMs int64     `json:"processing_time_ms"`
	Usage            *Usage    `json:"usage,omitempty"`
	Timestamp        time.Time `json:"timestamp"`

	// StatusCode is the HTTP status matching the outcome
	StatusCode int `json:"-"`
}

// Usage reports token counts when the provider returns them
type Usage struct {
	PromptTokens     int64 `json:"prompt_tokens"`
	CompletionTokens int64 `json:"completion_tokens"`
	TotalTokens      int64 `json:"total_tokens"`
}

// Succeeded reports whether the model produced text
func (r *AnalysisResponse) Succeeded() bool {
	return r.State == "succeeded"
}

// Preset describes one quick scan prompt
type Preset struct {
	Name   string `json:"name"`
	Label  string `json:"label"`
	Prompt string `json:"prompt"`
}

// SessionResponse is a session as returned to clients; the credential itself never leaves the server
type SessionResponse struct {
	ID            string         `json:"id"`
	Prompt        string         `json:"prompt"`
	Preset        string         `json:"preset,omitempty"`
	HasCredential bool           `json:"has_credential"`
	LastResult    *SessionResult `json:"last_result,omitempty"`
	CreatedAt     time.Time      `json:"created_at"`
	UpdatedAt     time.Time      `json:"updated_at"`
}

// SessionResult is the last analysis outcome stored in a session
type SessionResult struct {
	State       string    `json:"state"`
	Result      string    `json:"result"`
	ErrorType   string    `json:"error_type,omitempty"`
	Model       string    `json:"model,omitempty"`
	CompletedAt time.Time `json:"completed_at"`
}
