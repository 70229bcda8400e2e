// Package config loads docpipe's YAML configuration file.
//
// Values are resolved in order: built-in defaults, the YAML file (with
// ${VAR} references expanded from the environment), then DOCPIPE_*
// environment overrides. Command line flags are applied last by the CLI.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/poiesic/docpipe/ai"
	"gopkg.in/yaml.v3"
)

// DefaultPath is read when neither an explicit path nor DOCPIPE_CONFIG is set.
const DefaultPath = "docpipe.yaml"

type Config struct {
	AI           AIConfig           `yaml:"ai"`
	Dispatch     DispatchConfig     `yaml:"dispatch"`
	Orchestrator OrchestratorConfig `yaml:"orchestrator"`
	NATS         NATSConfig         `yaml:"nats"`
	Store        StoreConfig        `yaml:"store"`
	Log          LogConfig          `yaml:"log"`
}

type AIConfig struct {
	OCRHost         string        `yaml:"ocr_host"`
	ExtractionHost  string        `yaml:"extraction_host"`
	APIKey          string        `yaml:"api_key"`
	OCRModel        string        `yaml:"ocr_model"`
	ExtractionModel string        `yaml:"extraction_model"`
	MinConfidence   float64       `yaml:"min_confidence"`
	RequestTimeout  time.Duration `yaml:"request_timeout"`
}

type DispatchConfig struct {
	MaxConcurrency int           `yaml:"max_concurrency"`
	MaxRetries     int           `yaml:"max_retries"`
	RetryDelay     time.Duration `yaml:"retry_delay"`
	Backoff        bool          `yaml:"backoff"`
	BatchSize      int           `yaml:"batch_size"`
}

type OrchestratorConfig struct {
	MaxConcurrency     int           `yaml:"max_concurrency"`
	RateLimit          int           `yaml:"rate_limit"`
	RateWindow         time.Duration `yaml:"rate_window"`
	MaxRetries         int           `yaml:"max_retries"`
	RetryDelay         time.Duration `yaml:"retry_delay"`
	Timeout            time.Duration `yaml:"timeout"`
	StatisticsInterval time.Duration `yaml:"statistics_interval"`
	BufferSize         int           `yaml:"buffer_size"`
}

// NATSConfig selects the message bus. An empty URL starts an embedded server.
type NATSConfig struct {
	URL     string `yaml:"url"`
	Port    int    `yaml:"port"`
	DataDir string `yaml:"data_dir"`
	Prefix  string `yaml:"subject_prefix"`
}

type StoreConfig struct {
	Path string `yaml:"path"`
}

type LogConfig struct {
	Level string `yaml:"level"`
}

// Defaults returns the built-in configuration.
func Defaults() Config {
	ac := ai.DefaultConfig()
	return Config{
		AI: AIConfig{
			OCRHost:         ac.OCRHost,
			ExtractionHost:  ac.ExtractionHost,
			APIKey:          ac.APIKey,
			OCRModel:        ac.OCRModel,
			ExtractionModel: ac.ExtractionModel,
			MinConfidence:   ac.MinConfidence,
			RequestTimeout:  ac.RequestTimeout,
		},
		Dispatch: DispatchConfig{
			MaxConcurrency: 4,
			MaxRetries:     3,
			RetryDelay:     time.Second,
			BatchSize:      16,
		},
		Orchestrator: OrchestratorConfig{
			MaxConcurrency:     4,
			RateLimit:          10,
			RateWindow:         time.Second,
			MaxRetries:         2,
			RetryDelay:         500 * time.Millisecond,
			Timeout:            2 * time.Minute,
			StatisticsInterval: 5 * time.Second,
			BufferSize:         64,
		},
		NATS: NATSConfig{
			Port:   4222,
			Prefix: "docpipe",
		},
		Store: StoreConfig{
			Path: "data/docpipe.db",
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// Load reads the configuration file at path. An empty path falls back to
// DOCPIPE_CONFIG and then DefaultPath. A missing file is not an error.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	if path == "" {
		path = os.Getenv("DOCPIPE_CONFIG")
	}
	if path == "" {
		path = DefaultPath
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("read config: %w", err)
		}
		// Config file not found, use defaults + env
	} else {
		expanded := os.ExpandEnv(string(data))
		if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := applyEnv(&cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func applyEnv(cfg *Config) error {
	var errs []error
	str := func(name string, dst *string) {
		if v := os.Getenv(name); v != "" {
			*dst = v
		}
	}
	num := func(name string, dst *int) {
		if v := os.Getenv(name); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", name, err))
				return
			}
			*dst = n
		}
	}
	dur := func(name string, dst *time.Duration) {
		if v := os.Getenv(name); v != "" {
			d, err := time.ParseDuration(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", name, err))
				return
			}
			*dst = d
		}
	}

	str("DOCPIPE_OCR_HOST", &cfg.AI.OCRHost)
	str("DOCPIPE_EXTRACTION_HOST", &cfg.AI.ExtractionHost)
	str("DOCPIPE_API_KEY", &cfg.AI.APIKey)
	str("DOCPIPE_OCR_MODEL", &cfg.AI.OCRModel)
	str("DOCPIPE_EXTRACTION_MODEL", &cfg.AI.ExtractionModel)
	dur("DOCPIPE_REQUEST_TIMEOUT", &cfg.AI.RequestTimeout)
	num("DOCPIPE_DISPATCH_CONCURRENCY", &cfg.Dispatch.MaxConcurrency)
	num("DOCPIPE_RATE_LIMIT", &cfg.Orchestrator.RateLimit)
	dur("DOCPIPE_RATE_WINDOW", &cfg.Orchestrator.RateWindow)
	num("DOCPIPE_ORCHESTRATOR_CONCURRENCY", &cfg.Orchestrator.MaxConcurrency)
	str("DOCPIPE_NATS_URL", &cfg.NATS.URL)
	num("DOCPIPE_NATS_PORT", &cfg.NATS.Port)
	str("DOCPIPE_STORE_PATH", &cfg.Store.Path)
	str("DOCPIPE_LOG_LEVEL", &cfg.Log.Level)

	return errors.Join(errs...)
}

// Validate checks the configuration for values the components would reject.
func (c *Config) Validate() error {
	var errs []error
	if c.Dispatch.MaxConcurrency < 1 {
		errs = append(errs, fmt.Errorf("dispatch.max_concurrency must be at least 1, got %d", c.Dispatch.MaxConcurrency))
	}
	if c.Dispatch.MaxRetries < 0 {
		errs = append(errs, fmt.Errorf("dispatch.max_retries cannot be negative, got %d", c.Dispatch.MaxRetries))
	}
	if c.Dispatch.BatchSize < 1 {
		errs = append(errs, fmt.Errorf("dispatch.batch_size must be at least 1, got %d", c.Dispatch.BatchSize))
	}
	if c.Orchestrator.MaxConcurrency < 1 {
		errs = append(errs, fmt.Errorf("orchestrator.max_concurrency must be at least 1, got %d", c.Orchestrator.MaxConcurrency))
	}
	if c.Orchestrator.RateLimit < 0 {
		errs = append(errs, fmt.Errorf("orchestrator.rate_limit cannot be negative, got %d", c.Orchestrator.RateLimit))
	}
	if c.Orchestrator.RateLimit > 0 && c.Orchestrator.RateWindow <= 0 {
		errs = append(errs, errors.New("orchestrator.rate_window must be positive when rate_limit is set"))
	}
	if c.NATS.URL == "" && (c.NATS.Port < -1 || c.NATS.Port > 65535) {
		errs = append(errs, fmt.Errorf("nats.port out of range: %d", c.NATS.Port))
	}
	if c.NATS.Prefix == "" {
		errs = append(errs, errors.New("nats.subject_prefix cannot be empty"))
	}
	if _, err := ParseLevel(c.Log.Level); err != nil {
		errs = append(errs, err)
	}
	if err := c.AIConfig().Validate(); err != nil {
		errs = append(errs, fmt.Errorf("ai: %w", err))
	}
	return errors.Join(errs...)
}

// AIConfig converts the ai section into a normalized collaborator config.
func (c *Config) AIConfig() *ai.Config {
	ac := ai.NewConfig(
		ai.WithOCRHost(c.AI.OCRHost),
		ai.WithExtractionHost(c.AI.ExtractionHost),
		ai.WithAPIKey(c.AI.APIKey),
		ai.WithOCRModel(c.AI.OCRModel),
		ai.WithExtractionModel(c.AI.ExtractionModel),
		ai.WithMinConfidence(c.AI.MinConfidence),
		ai.WithRequestTimeout(c.AI.RequestTimeout),
	)
	ac.Normalize()
	return ac
}
