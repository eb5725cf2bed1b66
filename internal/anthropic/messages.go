package anthropic

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// MessagesRequest is the body of POST /v1/messages
type MessagesRequest struct {
	Model       string    `json:"model"`
	MaxTokens   int       `json:"max_tokens"`
	Temperature *float64  `json:"temperature,omitempty"`
	System      string    `json:"system,omitempty"`
	Messages    []Message `json:"messages"`
}

// Message is one conversation turn
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// MessagesResponse is the decoded reply
type MessagesResponse struct {
	ID         string         `json:"id"`
	Type       string         `json:"type"`
	Role       string         `json:"role"`
	Content    []ContentBlock `json:"content"`
	Model      string         `json:"model"`
	StopReason string         `json:"stop_reason"`
	Usage      Usage          `json:"usage"`
}

type ContentBlock struct {
	Type string `json:"type"`
	Text string `json:"text,omitempty"`
}

type Usage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
}

// GetTextContent joins every text block of the response
func (r *MessagesResponse) GetTextContent() string {
	var b strings.Builder
	for _, block := range r.Content {
		if block.Type == "text" {
			b.WriteString(block.Text)
		}
	}
	return b.String()
}

// APIError is a non-2xx reply from the API
type APIError struct {
	Type        string        `json:"type"`
	ErrorDetail ErrorDetails  `json:"error"`
	StatusCode  int           `json:"-"`
	RetryAfter  time.Duration `json:"-"`
}

type ErrorDetails struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("anthropic API error (status %d, type %s): %s", e.StatusCode, e.ErrorDetail.Type, e.ErrorDetail.Message)
}

// statusOverloaded is Anthropic's "overloaded" status
const statusOverloaded = 529

// IsRetryable reports whether err is a rate limit, overload or server
// failure that may succeed on a later attempt.
func IsRetryable(err error) bool {
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		return false
	}
	switch {
	case apiErr.StatusCode == http.StatusTooManyRequests, apiErr.StatusCode == statusOverloaded:
		return true
	case apiErr.StatusCode >= 500:
		return true
	}
	return false
}
