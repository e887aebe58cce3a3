package settings

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/lysyi3m/rss-insight/app/ai"
)

var ErrNotConfigured = errors.New("AI config not set")

// ValidationError reports a rejected settings request.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

const (
	configKey          = "config"
	DefaultTemperature = 0.2
	DefaultMaxTokens   = 2000
)

// KV is the storage the singleton settings document lives in.
type KV interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte) error
}

// AIConfig is the stored document. The API key only ever appears encrypted.
type AIConfig struct {
	Provider        string  `json:"provider"`
	Model           string  `json:"model"`
	BaseURL         string  `json:"base_url,omitempty"`
	APIKeyEncrypted string  `json:"api_key_encrypted"`
	Temperature     float64 `json:"temperature"`
	MaxTokens       int     `json:"max_tokens"`
}

type SaveRequest struct {
	Provider    string   `json:"provider"`
	Model       string   `json:"model"`
	APIKey      string   `json:"api_key"`
	BaseURL     string   `json:"base_url"`
	Temperature *float64 `json:"temperature"`
	MaxTokens   *int     `json:"max_tokens"`
}

type Status struct {
	Configured bool   `json:"configured"`
	Provider   string `json:"provider,omitempty"`
	Model      string `json:"model,omitempty"`
	BaseURL    string `json:"base_url,omitempty"`
}

// Config is the decrypted form handed to the provider gateway.
type Config struct {
	Provider    string
	Model       string
	BaseURL     string
	APIKey      string
	Temperature float64
	MaxTokens   int
}

// Options converts the config into gateway options.
func (c *Config) Options() ai.Options {
	temperature := c.Temperature
	return ai.Options{
		Provider:    c.Provider,
		APIKey:      c.APIKey,
		Model:       c.Model,
		BaseURL:     c.BaseURL,
		Temperature: &temperature,
		MaxTokens:   c.MaxTokens,
	}
}

type Service struct {
	kv  KV
	key []byte
}

func NewService(kv KV, encryptionKey []byte) *Service {
	return &Service{kv: kv, key: encryptionKey}
}

// Save validates, encrypts and replaces the stored settings.
func (s *Service) Save(ctx context.Context, req SaveRequest) error {
	provider := strings.ToLower(strings.TrimSpace(req.Provider))
	if provider == "" || req.Model == "" || req.APIKey == "" {
		return &ValidationError{Message: "Missing required fields"}
	}
	if !ai.SupportedProvider(provider) {
		return &ValidationError{Message: fmt.Sprintf("Unsupported provider: %s", req.Provider)}
	}

	encrypted, err := Encrypt([]byte(req.APIKey), s.key)
	if err != nil {
		return fmt.Errorf("failed to encrypt api key: %w", err)
	}

	doc := AIConfig{
		Provider:        provider,
		Model:           req.Model,
		BaseURL:         req.BaseURL,
		APIKeyEncrypted: encrypted,
		Temperature:     DefaultTemperature,
		MaxTokens:       DefaultMaxTokens,
	}
	if req.Temperature != nil {
		doc.Temperature = *req.Temperature
	}
	if req.MaxTokens != nil && *req.MaxTokens > 0 {
		doc.MaxTokens = *req.MaxTokens
	}

	data, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("failed to encode settings: %w", err)
	}
	return s.kv.Set(ctx, configKey, data)
}

func (s *Service) Status(ctx context.Context) (*Status, error) {
	doc, err := s.read(ctx)
	if errors.Is(err, ErrNotConfigured) {
		return &Status{Configured: false}, nil
	}
	if err != nil {
		return nil, err
	}
	return &Status{Configured: true, Provider: doc.Provider, Model: doc.Model, BaseURL: doc.BaseURL}, nil
}

// Load returns the decrypted settings or ErrNotConfigured. A stored key that
// no longer decrypts, for example after the encryption key was rotated, also
// counts as not configured.
func (s *Service) Load(ctx context.Context) (*Config, error) {
	doc, err := s.read(ctx)
	if err != nil {
		return nil, err
	}

	apiKey, err := Decrypt(doc.APIKeyEncrypted, s.key)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to decrypt api key: %w", ErrNotConfigured, err)
	}

	return &Config{
		Provider:    doc.Provider,
		Model:       doc.Model,
		BaseURL:     doc.BaseURL,
		APIKey:      string(apiKey),
		Temperature: doc.Temperature,
		MaxTokens:   doc.MaxTokens,
	}, nil
}

func (s *Service) read(ctx context.Context) (*AIConfig, error) {
	data, ok, err := s.kv.Get(ctx, configKey)
	if err != nil {
		return nil, fmt.Errorf("failed to read settings: %w", err)
	}
	if !ok {
		return nil, ErrNotConfigured
	}

	var doc AIConfig
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to decode settings: %w", err)
	}
	return &doc, nil
}
