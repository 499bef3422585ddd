// Package config reads service configuration from the environment.
//
// A .env file in the working directory is loaded first when present, so
// local runs and the container share the same variable names.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	ProviderGateway = "gateway"
	ProviderOpenAI  = "openai"
	ProviderMock    = "mock"
)

type LLM struct {
	Provider    string
	GatewayURL  string
	APIKey      string
	Model       string
	OpenAIKey   string
	OpenAIBase  string
	Timeout     time.Duration
	MaxRetry    time.Duration
	Temperature float64
}

type Database struct {
	Driver string // sqlite3 | postgres | memory
	DSN    string
}

type Config struct {
	LLM              LLM
	Database         Database
	PersonaTemplates string
	DatasetPath      string
	Concurrency      int
	Port             string
	MetricsFile      string
}

// Load reads .env (if any) and then the process environment.
func Load() (*Config, error) {
	_ = godotenv.Load()
	return FromEnv()
}

// FromEnv builds a Config from the current environment only.
func FromEnv() (*Config, error) {
	cfg := &Config{
		LLM: LLM{
			Provider:    strings.ToLower(envOr("LLM_PROVIDER", ProviderGateway)),
			GatewayURL:  os.Getenv("LLM_GATEWAY_URL"),
			APIKey:      os.Getenv("LLM_API_KEY"),
			Model:       envOr("LLM_MODEL", "gpt-4o-mini"),
			OpenAIKey:   os.Getenv("OPENAI_API_KEY"),
			OpenAIBase:  os.Getenv("OPENAI_BASE_URL"),
			Timeout:     25 * time.Second,
			MaxRetry:    45 * time.Second,
			Temperature: 0.3,
		},
		Database: Database{
			Driver: envOr("DB_DRIVER", "sqlite3"),
			DSN:    envOr("DB_DSN", "data/negotiation-eval.db"),
		},
		PersonaTemplates: os.Getenv("PERSONA_TEMPLATES"),
		DatasetPath:      envOr("DATASET_PATH", "data/calls.json"),
		Concurrency:      1,
		Port:             envOr("PORT", "8080"),
		MetricsFile:      os.Getenv("METRICS_FILE"),
	}
	if os.Getenv("USE_MOCK_LLM") == "true" {
		cfg.LLM.Provider = ProviderMock
	}

	var err error
	if cfg.LLM.Timeout, err = durationEnv("LLM_TIMEOUT", cfg.LLM.Timeout); err != nil {
		return nil, err
	}
	if cfg.LLM.MaxRetry, err = durationEnv("LLM_MAX_RETRY", cfg.LLM.MaxRetry); err != nil {
		return nil, err
	}
	if v := os.Getenv("LLM_TEMPERATURE"); v != "" {
		t, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return nil, fmt.Errorf("LLM_TEMPERATURE: %w", err)
		}
		cfg.LLM.Temperature = t
	}
	if v := os.Getenv("EVAL_CONCURRENCY"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			return nil, fmt.Errorf("EVAL_CONCURRENCY must be a positive integer, got %q", v)
		}
		cfg.Concurrency = n
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks cross-field requirements for the selected provider and driver.
func (c *Config) Validate() error {
	switch c.LLM.Provider {
	case ProviderGateway:
		// gateway credentials are checked lazily; a missing gateway only
		// degrades to the documented fallbacks
	case ProviderOpenAI:
		if c.LLM.OpenAIKey == "" {
			return fmt.Errorf("OPENAI_API_KEY not set for provider %q", ProviderOpenAI)
		}
	case ProviderMock:
	default:
		return fmt.Errorf("unknown LLM_PROVIDER %q", c.LLM.Provider)
	}
	if c.LLM.Timeout <= 0 {
		return fmt.Errorf("LLM_TIMEOUT must be positive, got %s", c.LLM.Timeout)
	}
	if c.LLM.MaxRetry <= 0 {
		return fmt.Errorf("LLM_MAX_RETRY must be positive, got %s", c.LLM.MaxRetry)
	}
	switch c.Database.Driver {
	case "sqlite3", "postgres", "memory":
	default:
		return fmt.Errorf("unknown DB_DRIVER %q", c.Database.Driver)
	}
	return nil
}

func envOr(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func durationEnv(k string, def time.Duration) (time.Duration, error) {
	v := os.Getenv(k)
	if v == "" {
		return def, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", k, err)
	}
	return d, nil
}
