package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const (
	DefaultBaseURL   = "https://api.groq.com/openai/v1"
	defaultUserAgent = "NeuraVision/2.0"

	maxErrorBodyBytes = 2 * 1024 * 1024
)

// ChatCompleter sends one chat completion request authenticated with credential.
type ChatCompleter interface {
	CreateChatCompletion(ctx context.Context, credential string, req ChatCompletionRequest) (*ChatCompletionResponse, error)
}

// APIError is a non-2xx answer from the provider.
type APIError struct {
	StatusCode int
	Type       string
	Code       string
	Message    string
}

func (e *APIError) Error() string {
	if e.Type != "" || e.Code != "" {
		return fmt.Sprintf("provider: API error %d (%s, %s): %s", e.StatusCode, e.Type, e.Code, e.Message)
	}
	return fmt.Sprintf("provider: API error %d: %s", e.StatusCode, e.Message)
}

// Client talks to an OpenAI-compatible /chat/completions endpoint.
type Client struct {
	baseURL    string
	userAgent  string
	httpClient *http.Client
}

var _ ChatCompleter = (*Client)(nil)

type Option func(*Client)

// NewClient creates a client for the Groq endpoint unless WithBaseURL says otherwise.
// The HTTP client has no timeout of its own unless WithTimeout is given.
func NewClient(opts ...Option) *Client {
	c := &Client{
		baseURL:    DefaultBaseURL,
		userAgent:  defaultUserAgent,
		httpClient: &http.Client{},
	}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		opt(c)
	}
	return c
}

func WithBaseURL(baseURL string) Option {
	return func(c *Client) {
		if strings.TrimSpace(baseURL) == "" {
			return
		}
		c.baseURL = strings.TrimSpace(baseURL)
	}
}

func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client == nil {
			return
		}
		c.httpClient = client
	}
}

// WithTimeout sets a timeout on the underlying HTTP client. Zero or negative values are ignored.
func WithTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		if timeout <= 0 {
			return
		}
		c.httpClient.Timeout = timeout
	}
}

func WithUserAgent(userAgent string) Option {
	return func(c *Client) {
		if userAgent != "" {
			c.userAgent = userAgent
		}
	}
}

// BaseURL returns the endpoint root requests are sent to.
func (c *Client) BaseURL() string {
	return c.baseURL
}

func (c *Client) CreateChatCompletion(ctx context.Context, credential string, req ChatCompletionRequest) (*ChatCompletionResponse, error) {
	if strings.TrimSpace(credential) == "" {
		return nil, errors.New("provider: API key is required")
	}

	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("provider: marshal request: %w", err)
	}

	url := strings.TrimRight(c.baseURL, "/") + "/chat/completions"
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("provider: build request: %w", err)
	}
	httpReq.Header.Set("Authorization", "Bearer "+credential)
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")
	httpReq.Header.Set("User-Agent", c.userAgent)

	httpResp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("provider: request failed: %w", err)
	}
	defer httpResp.Body.Close()

	if httpResp.StatusCode < 200 || httpResp.StatusCode >= 300 {
		return nil, decodeAPIError(httpResp)
	}

	var resp ChatCompletionResponse
	if err := json.NewDecoder(httpResp.Body).Decode(&resp); err != nil {
		return nil, fmt.Errorf("provider: decode response: %w", err)
	}
	return &resp, nil
}

func decodeAPIError(resp *http.Response) error {
	body, readErr := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodyBytes))
	if readErr != nil {
		return fmt.Errorf("provider: API status %d and failed to read error body: %w", resp.StatusCode, readErr)
	}

	var envelope struct {
		Error struct {
			Message string `json:"message"`
			Type    string `json:"type"`
			Code    any    `json:"code"`
		} `json:"error"`
	}

	apiErr := &APIError{StatusCode: resp.StatusCode}
	if err := json.Unmarshal(body, &envelope); err == nil && envelope.Error.Message != "" {
		apiErr.Message = envelope.Error.Message
		apiErr.Type = envelope.Error.Type
		if envelope.Error.Code != nil {
			apiErr.Code = fmt.Sprint(envelope.Error.Code)
		}
		return apiErr
	}

	text := strings.TrimSpace(string(body))
	if text == "" {
		text = http.StatusText(resp.StatusCode)
	}
	apiErr.Message = text
	return apiErr
}
