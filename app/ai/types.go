package ai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
)

var ErrUnsupportedProvider = errors.New("unsupported provider")

const (
	ProviderOpenAI    = "openai"
	ProviderAnthropic = "anthropic"
	ProviderGemini    = "gemini"

	DefaultTemperature = 0.2
	DefaultMaxTokens   = 2000
)

type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// Options select the provider and generation parameters of one call.
type Options struct {
	Provider    string
	APIKey      string
	Model       string
	BaseURL     string
	Temperature *float64
	MaxTokens   int
}

func (o Options) temperature() float64 {
	if o.Temperature == nil {
		return DefaultTemperature
	}
	return *o.Temperature
}

func (o Options) maxTokens() int {
	if o.MaxTokens <= 0 {
		return DefaultMaxTokens
	}
	return o.MaxTokens
}

func (o Options) baseURL(fallback string) string {
	if o.BaseURL == "" {
		return fallback
	}
	return o.BaseURL
}

type Response struct {
	Content string
	Raw     json.RawMessage
}

// Sender is what callers of the gateway depend on.
type Sender interface {
	Send(ctx context.Context, opts Options, messages []Message) (*Response, error)
}

// StatusError is returned when a provider answers with a non-2xx status.
type StatusError struct {
	Provider   string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s error: %d %s", e.Provider, e.StatusCode, e.Body)
}

func SupportedProvider(name string) bool {
	switch name {
	case ProviderOpenAI, ProviderAnthropic, ProviderGemini:
		return true
	}
	return false
}
