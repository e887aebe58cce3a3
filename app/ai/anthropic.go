package ai

import (
	"context"
	"net/http"
	"strings"
)

const (
	anthropicBaseURL = "https://api.anthropic.com/v1"
	anthropicVersion = "2023-06-01"
)

type anthropicMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type anthropicRequestBody struct {
	Model       string             `json:"model"`
	System      string             `json:"system,omitempty"`
	Messages    []anthropicMessage `json:"messages"`
	Temperature float64            `json:"temperature"`
	MaxTokens   int                `json:"max_tokens"`
}

func anthropicRequest(ctx context.Context, opts Options, messages []Message) (*http.Request, error) {
	var system []string
	converted := make([]anthropicMessage, 0, len(messages))
	for _, m := range messages {
		switch m.Role {
		case RoleSystem:
			system = append(system, m.Content)
		case RoleAssistant:
			converted = append(converted, anthropicMessage{Role: "assistant", Content: m.Content})
		default:
			converted = append(converted, anthropicMessage{Role: "user", Content: m.Content})
		}
	}

	req, err := newJSONRequest(ctx, opts.baseURL(anthropicBaseURL)+"/messages", anthropicRequestBody{
		Model:       opts.Model,
		System:      strings.Join(system, "\n\n"),
		Messages:    converted,
		Temperature: opts.temperature(),
		MaxTokens:   opts.maxTokens(),
	})
	if err != nil {
		return nil, err
	}
	req.Header.Set("x-api-key", opts.APIKey)
	req.Header.Set("anthropic-version", anthropicVersion)
	return req, nil
}
