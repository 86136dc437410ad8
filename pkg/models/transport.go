package models

// RemoteAnalysisRequest asks for an analysis of an image held in remote storage
type RemoteAnalysisRequest struct {
	URL    string `json:"url" binding:"required"`
	Source string `json:"source,omitempty" binding:"omitempty,oneof=http azure minio"`
	Prompt string `json:"prompt,omitempty"`
	Preset string `json:"preset,omitempty"`
}

// SessionRequest creates or updates a session. Nil fields are left unchanged on update.
type SessionRequest struct {
	APIKey *string `json:"api_key,omitempty"`
	Prompt *string `json:"prompt,omitempty"`
	Preset *string `json:"preset,omitempty"`
}

// ErrorResponse represents an error response
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}
