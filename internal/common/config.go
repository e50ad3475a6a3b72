package common

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/pelletier/go-toml/v2"
)

// Config represents the application configuration
type Config struct {
	Environment string           `toml:"environment" validate:"omitempty,oneof=development production"`
	Server      ServerConfig     `toml:"server"`
	Storage     StorageConfig    `toml:"storage"`
	Queue       QueueConfig      `toml:"queue"`
	Pipeline    PipelineConfig   `toml:"pipeline"`
	Fetcher     FetcherConfig    `toml:"fetcher"`
	Translator  TranslatorConfig `toml:"translator"`
	Summarizer  SummarizerConfig `toml:"summarizer"`
	Metrics     MetricsConfig    `toml:"metrics"`
	Logging     LoggingConfig    `toml:"logging"`
}

type ServerConfig struct {
	Port int    `toml:"port" validate:"gte=0,lte=65535"`
	Host string `toml:"host"`
}

type StorageConfig struct {
	Badger BadgerConfig `toml:"badger"`
}

// BadgerConfig represents BadgerDB-specific configuration
type BadgerConfig struct {
	Path           string `toml:"path"`             // Database directory path
	ResetOnStartup bool   `toml:"reset_on_startup"` // Delete database on startup for clean test runs
}

type QueueConfig struct {
	PollInterval      string `toml:"poll_interval"`      // e.g. "1s" - how often workers poll for messages
	Concurrency       int    `toml:"concurrency"`        // Number of concurrent workers
	VisibilityTimeout string `toml:"visibility_timeout"` // e.g. "5m" - message visibility timeout for redelivery
	MaxReceive        int    `toml:"max_receive"`        // Max deliveries per message: 1 initial + retries
	QueueName         string `toml:"queue_name"`         // Queue name prefix in Badger
}

// PollIntervalDuration parses the poll interval, falling back to 1s
func (q QueueConfig) PollIntervalDuration() time.Duration {
	return parseDuration(q.PollInterval, time.Second)
}

// VisibilityTimeoutDuration parses the visibility timeout, falling back to 5m
func (q QueueConfig) VisibilityTimeoutDuration() time.Duration {
	return parseDuration(q.VisibilityTimeout, 5*time.Minute)
}

type PipelineConfig struct {
	StageTimeout      string  `toml:"stage_timeout"`       // Hard wall-clock limit per stage execution
	MaxRetries        int     `toml:"max_retries"`         // Additional attempts after the initial one
	BackoffBase       string  `toml:"backoff_base"`        // First retry delay
	BackoffCap        string  `toml:"backoff_cap"`         // Upper bound on retry delay
	BackoffMultiplier float64 `toml:"backoff_multiplier"`  // Exponential growth factor
	TargetLanguage    string  `toml:"target_language"`     // Translation target, default "en"
}

// StageTimeoutDuration parses the stage timeout, falling back to 300s
func (p PipelineConfig) StageTimeoutDuration() time.Duration {
	return parseDuration(p.StageTimeout, 300*time.Second)
}

// BackoffBaseDuration parses the backoff base, falling back to 1s
func (p PipelineConfig) BackoffBaseDuration() time.Duration {
	return parseDuration(p.BackoffBase, time.Second)
}

// BackoffCapDuration parses the backoff cap, falling back to 60s
func (p PipelineConfig) BackoffCapDuration() time.Duration {
	return parseDuration(p.BackoffCap, 60*time.Second)
}

// FetcherConfig contains content fetcher configuration
type FetcherConfig struct {
	Mode            string `toml:"mode" validate:"omitempty,oneof=chromedp static"` // Rendering mode
	UserAgent       string `toml:"user_agent"`
	RequestTimeout  string `toml:"request_timeout"`    // Per-fetch timeout
	RequestDelay    string `toml:"request_delay"`      // Minimum delay between requests to one domain
	RenderWaitTime  string `toml:"render_wait_time"`   // Extra wait for JavaScript to settle (chromedp)
	MaxBodySize     int    `toml:"max_body_size"`      // Maximum response body size in bytes (static)
	FollowRobotsTxt bool   `toml:"follow_robots_txt"`  // Respect robots.txt rules
}

// RequestTimeoutDuration parses the request timeout, falling back to 45s
func (f FetcherConfig) RequestTimeoutDuration() time.Duration {
	return parseDuration(f.RequestTimeout, 45*time.Second)
}

// RequestDelayDuration parses the per-domain request delay, falling back to 500ms
func (f FetcherConfig) RequestDelayDuration() time.Duration {
	return parseDuration(f.RequestDelay, 500*time.Millisecond)
}

// RenderWaitTimeDuration parses the render wait time, falling back to 3s
func (f FetcherConfig) RenderWaitTimeDuration() time.Duration {
	return parseDuration(f.RenderWaitTime, 3*time.Second)
}

type TranslatorConfig struct {
	Engine string `toml:"engine" validate:"omitempty,oneof=marker"`
}

// SummarizerConfig selects the summarizer provider at construction time
type SummarizerConfig struct {
	Provider string       `toml:"provider" validate:"omitempty,oneof=extractive claude gemini"`
	Claude   ClaudeConfig `toml:"claude"`
	Gemini   GeminiConfig `toml:"gemini"`
}

type ClaudeConfig struct {
	APIKey    string `toml:"api_key"`
	Model     string `toml:"model"`
	MaxTokens int    `toml:"max_tokens"`
	Timeout   string `toml:"timeout"`
}

type GeminiConfig struct {
	APIKey string `toml:"api_key"`
	Model  string `toml:"model"`
}

// MetricsConfig controls the advisory metrics snapshot logging
type MetricsConfig struct {
	SnapshotEnabled  bool   `toml:"snapshot_enabled"`
	SnapshotSchedule string `toml:"snapshot_schedule"` // Cron schedule format
}

type LoggingConfig struct {
	Level  string   `toml:"level" validate:"omitempty,oneof=debug info warn error"`
	Output []string `toml:"output"` // "stdout", "file"
}

// DefaultConfig returns the configuration defaults applied before any file
// or environment override.
func DefaultConfig() *Config {
	return &Config{
		Environment: "development",
		Server: ServerConfig{
			Port: 8085,
			Host: "localhost",
		},
		Storage: StorageConfig{
			Badger: BadgerConfig{
				Path: "./data/colligo",
			},
		},
		Queue: QueueConfig{
			PollInterval:      "1s",
			Concurrency:       4,
			VisibilityTimeout: "5m",
			MaxReceive:        4,
			QueueName:         "colligo_tasks",
		},
		Pipeline: PipelineConfig{
			StageTimeout:      "300s",
			MaxRetries:        3,
			BackoffBase:       "1s",
			BackoffCap:        "60s",
			BackoffMultiplier: 2.0,
			TargetLanguage:    "en",
		},
		Fetcher: FetcherConfig{
			Mode:            "chromedp",
			UserAgent:       "Mozilla/5.0 (compatible; ColligoBot/1.0)",
			RequestTimeout:  "45s",
			RequestDelay:    "500ms",
			RenderWaitTime:  "3s",
			MaxBodySize:     10 * 1024 * 1024,
			FollowRobotsTxt: false,
		},
		Translator: TranslatorConfig{
			Engine: "marker",
		},
		Summarizer: SummarizerConfig{
			Provider: "extractive",
			Claude: ClaudeConfig{
				MaxTokens: 1024,
				Timeout:   "60s",
			},
		},
		Metrics: MetricsConfig{
			SnapshotEnabled:  true,
			SnapshotSchedule: "@every 5m",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Output: []string{"stdout"},
		},
	}
}

// LoadConfig loads configuration in priority order: defaults, then each file
// (later files override earlier ones), then environment variables.
func LoadConfig(paths ...string) (*Config, error) {
	cfg := DefaultConfig()

	for _, path := range paths {
		if path == "" {
			continue
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
		if err := toml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
	}

	applyEnvOverrides(cfg)

	if err := validator.New().Struct(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// DiscoverConfigPath looks for colligo.toml in the working directory, then
// next to the executable. Returns "" when no file is found.
func DiscoverConfigPath() string {
	if _, err := os.Stat("colligo.toml"); err == nil {
		return "colligo.toml"
	}
	if exePath, err := os.Executable(); err == nil {
		candidate := filepath.Join(filepath.Dir(exePath), "colligo.toml")
		if _, err := os.Stat(candidate); err == nil {
			return candidate
		}
	}
	return ""
}

// applyEnvOverrides applies COLLIGO_* environment variable overrides
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("COLLIGO_SERVER_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = port
		}
	}
	if v := os.Getenv("COLLIGO_SERVER_HOST"); v != "" {
		cfg.Server.Host = v
	}
	if v := os.Getenv("COLLIGO_BADGER_PATH"); v != "" {
		cfg.Storage.Badger.Path = v
	}
	if v := os.Getenv("COLLIGO_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("COLLIGO_SUMMARIZER_PROVIDER"); v != "" {
		cfg.Summarizer.Provider = v
	}
	if v := os.Getenv("ANTHROPIC_API_KEY"); v != "" && cfg.Summarizer.Claude.APIKey == "" {
		cfg.Summarizer.Claude.APIKey = v
	}
	if v := os.Getenv("GEMINI_API_KEY"); v != "" && cfg.Summarizer.Gemini.APIKey == "" {
		cfg.Summarizer.Gemini.APIKey = v
	}
}

// parseDuration parses a duration string, returning the fallback on empty or
// invalid input.
func parseDuration(s string, fallback time.Duration) time.Duration {
	if s == "" {
		return fallback
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return fallback
	}
	return d
}
