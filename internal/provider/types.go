package provider

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

const (
	RoleUser = "user"

	ContentTypeText     = "text"
	ContentTypeImageURL = "image_url"
)

var ErrNoChoices = errors.New("provider: response contains no choices")

type ChatCompletionRequest struct {
	Model       string    `json:"model"`
	Messages    []Message `json:"messages"`
	MaxTokens   int       `json:"max_tokens,omitempty"`
	Temperature *float64  `json:"temperature,omitempty"`
}

type Message struct {
	Role    string        `json:"role"`
	Content []ContentPart `json:"content"`
}

type ContentPart struct {
	Type     string    `json:"type"`
	Text     string    `json:"text,omitempty"`
	ImageURL *ImageURL `json:"image_url,omitempty"`
}

type ImageURL struct {
	URL string `json:"url"`
}

type ChatCompletionResponse struct {
	ID      string   `json:"id"`
	Model   string   `json:"model"`
	Choices []Choice `json:"choices"`
	Usage   *Usage   `json:"usage,omitempty"`
}

type Choice struct {
	Index        int             `json:"index"`
	Message      ResponseMessage `json:"message"`
	FinishReason string          `json:"finish_reason"`
}

type ResponseMessage struct {
	Role    string          `json:"role"`
	Content json.RawMessage `json:"content"`
}

type Usage struct {
	PromptTokens     int64 `json:"prompt_tokens"`
	CompletionTokens int64 `json:"completion_tokens"`
	TotalTokens      int64 `json:"total_tokens"`
}

// NewVisionRequest builds a single user turn holding the prompt text followed
// by the image reference.
func NewVisionRequest(model, prompt, imageURL string, maxTokens int) ChatCompletionRequest {
	return ChatCompletionRequest{
		Model: model,
		Messages: []Message{
			{
				Role: RoleUser,
				Content: []ContentPart{
					{Type: ContentTypeText, Text: prompt},
					{Type: ContentTypeImageURL, ImageURL: &ImageURL{URL: imageURL}},
				},
			},
		},
		MaxTokens: maxTokens,
	}
}

// FirstChoiceText returns the text of the first choice.
func (r *ChatCompletionResponse) FirstChoiceText() (string, error) {
	if r == nil || len(r.Choices) == 0 {
		return "", ErrNoChoices
	}
	return parseContent(r.Choices[0].Message.Content)
}

// parseContent accepts either a plain string or a list of content parts.
func parseContent(raw json.RawMessage) (string, error) {
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return "", nil
	}

	var text string
	if err := json.Unmarshal(raw, &text); err == nil {
		return text, nil
	}

	var parts []ContentPart
	if err := json.Unmarshal(raw, &parts); err == nil {
		var b strings.Builder
		for _, part := range parts {
			if part.Type == "" || part.Type == ContentTypeText {
				b.WriteString(part.Text)
			}
		}
		return b.String(), nil
	}

	return "", fmt.Errorf("provider: unsupported message content: %s", string(raw))
}
