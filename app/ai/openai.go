package ai

import (
	"context"
	"net/http"
)

const openAIBaseURL = "https://api.openai.com/v1"

type openAIRequestBody struct {
	Model       string    `json:"model"`
	Messages    []Message `json:"messages"`
	Temperature float64   `json:"temperature"`
	MaxTokens   int       `json:"max_tokens"`
}

func openAIRequest(ctx context.Context, opts Options, messages []Message) (*http.Request, error) {
	req, err := newJSONRequest(ctx, opts.baseURL(openAIBaseURL)+"/chat/completions", openAIRequestBody{
		Model:       opts.Model,
		Messages:    messages,
		Temperature: opts.temperature(),
		MaxTokens:   opts.maxTokens(),
	})
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+opts.APIKey)
	return req, nil
}
