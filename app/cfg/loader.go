package cfg

import (
	"cmp"
	"encoding/base64"
	"fmt"
	"time"

	"github.com/jessevdk/go-flags"
)

// Version is set at build time via -ldflags
var Version = "dev"

func GetVersion() string {
	return cmp.Or(Version, "unknown")
}

type rawCfg struct {
	// Storage
	DBPath    string `long:"db-path" env:"DB_PATH" default:"./data/rss-insight.db" description:"SQLite database file"`
	DataDir   string `long:"data-dir" env:"DATA_DIR" default:"./data/objects" description:"Directory for content blobs, vectors and settings"`
	RedisAddr string `long:"redis-addr" env:"REDIS_ADDR" description:"Redis address for the settings store (optional, defaults to the data dir)"`

	// Application configuration
	SourcesDir        string `long:"sources-dir" env:"SOURCES_DIR" default:"./sources" description:"Directory containing source seed files"`
	Port              string `long:"port" env:"PORT" default:"8080" description:"HTTP server port"`
	WorkerURL         string `long:"worker-url" env:"WORKER_URL" description:"Base URL of the job worker (optional, jobs run in-process when empty)"`
	SchedulerInterval int    `long:"scheduler-interval" env:"SCHEDULER_INTERVAL" default:"300" description:"Scheduler interval in seconds"`
	JobTimeout        int    `long:"job-timeout" env:"JOB_TIMEOUT" default:"300" description:"Per-job deadline in seconds"`
	APIAccessKey      string `long:"api-key" env:"API_ACCESS_KEY" description:"API access key for authentication (optional)"`
	EncryptionKey     string `long:"encryption-key" env:"AI_ENCRYPTION_KEY" description:"Base64 AES key protecting stored provider credentials (required)" required:"true"`

	// Embedding backend
	EmbeddingProvider string `long:"embedding-provider" env:"EMBEDDING_PROVIDER" default:"openai" choice:"openai" choice:"gemini" description:"Embedding backend"`
	EmbeddingURL      string `long:"embedding-url" env:"EMBEDDING_URL" default:"http://localhost:11434/v1" description:"OpenAI-compatible embedding endpoint"`
	EmbeddingModel    string `long:"embedding-model" env:"EMBEDDING_MODEL" default:"embeddinggemma" description:"Embedding model"`
	EmbeddingAPIKey   string `long:"embedding-api-key" env:"EMBEDDING_API_KEY" description:"API key for the embedding backend"`

	// Application metadata
	UserAgent string `long:"user-agent" env:"USER_AGENT" default:"RSS Insight/1.0" description:"User agent string for HTTP requests"`
	Timezone  string `long:"timezone" env:"TZ" default:"UTC" description:"Timezone for timestamps (e.g., UTC, America/New_York)"`
	Debug     bool   `long:"debug" env:"DEBUG" description:"Enable debug logging"`
}

var globalCfg *Cfg

func Load() (*Cfg, error) {
	return LoadArgs(nil)
}

// LoadArgs parses the given arguments; nil means os.Args.
func LoadArgs(args []string) (*Cfg, error) {
	var raw rawCfg

	parser := flags.NewParser(&raw, flags.Default)

	var err error
	if args == nil {
		_, err = parser.Parse()
	} else {
		_, err = parser.ParseArgs(args)
	}
	if err != nil {
		if flagsErr, ok := err.(*flags.Error); ok {
			if flagsErr.Type == flags.ErrHelp {
				return nil, nil
			}
		}
		return nil, fmt.Errorf("failed to parse configuration: %w", err)
	}

	cfg := &Cfg{
		DBPath:            raw.DBPath,
		DataDir:           raw.DataDir,
		RedisAddr:         raw.RedisAddr,
		SourcesDir:        raw.SourcesDir,
		Port:              raw.Port,
		WorkerURL:         raw.WorkerURL,
		SchedulerInterval: raw.SchedulerInterval,
		JobTimeout:        raw.JobTimeout,
		APIAccessKey:      raw.APIAccessKey,
		EncryptionKey:     raw.EncryptionKey,
		EmbeddingProvider: raw.EmbeddingProvider,
		EmbeddingURL:      raw.EmbeddingURL,
		EmbeddingModel:    raw.EmbeddingModel,
		EmbeddingAPIKey:   raw.EmbeddingAPIKey,
		UserAgent:         raw.UserAgent,
		Timezone:          raw.Timezone,
		Debug:             raw.Debug,
		Version:           GetVersion(),
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	if err := applyTimezone(cfg.Timezone); err != nil {
		fmt.Printf("Warning: Invalid timezone '%s', using system default: %v\n", cfg.Timezone, err)
	}

	globalCfg = cfg

	return cfg, nil
}

func Get() *Cfg {
	if globalCfg == nil {
		panic("configuration not loaded - call cfg.Load() first")
	}
	return globalCfg
}

// Set replaces the global configuration. Intended for tests and embedding.
func Set(cfg *Cfg) {
	globalCfg = cfg
}

// EncryptionKeyBytes decodes the base64 encryption key.
func (c *Cfg) EncryptionKeyBytes() ([]byte, error) {
	key, err := base64.StdEncoding.DecodeString(c.EncryptionKey)
	if err != nil {
		return nil, fmt.Errorf("encryption key is not valid base64: %w", err)
	}
	switch len(key) {
	case 16, 24, 32:
		return key, nil
	default:
		return nil, fmt.Errorf("encryption key must decode to 16, 24 or 32 bytes, got %d", len(key))
	}
}

func (c *Cfg) SchedulerIntervalDuration() time.Duration {
	return time.Duration(c.SchedulerInterval) * time.Second
}

func (c *Cfg) JobTimeoutDuration() time.Duration {
	return time.Duration(c.JobTimeout) * time.Second
}

func (c *Cfg) validate() error {
	if c.SchedulerInterval <= 0 {
		return fmt.Errorf("scheduler interval must be positive, got %d", c.SchedulerInterval)
	}
	if c.JobTimeout <= 0 {
		return fmt.Errorf("job timeout must be positive, got %d", c.JobTimeout)
	}
	if _, err := c.EncryptionKeyBytes(); err != nil {
		return err
	}
	return nil
}

func applyTimezone(timezone string) error {
	if timezone != "" {
		if loc, err := time.LoadLocation(timezone); err != nil {
			return err
		} else {
			time.Local = loc
			fmt.Printf("Timezone configured: %s\n", timezone)
		}
	}
	return nil
}
