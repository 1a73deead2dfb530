package internal

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	FailurePolicyAbort = "abort"
	FailurePolicySkip  = "skip"

	DefaultWatchDebounce = 2 * time.Second
)

type ModelConfig struct {
	Provider          string        `yaml:"provider"`
	Endpoint          string        `yaml:"endpoint"`
	Model             string        `yaml:"model"`
	APIKey            string        `yaml:"api_key,omitempty"`
	Temperature       float64       `yaml:"temperature"`
	MaxTokens         int           `yaml:"max_tokens"`
	Timeout           time.Duration `yaml:"timeout"`
	ProbeTimeout      time.Duration `yaml:"probe_timeout"`
	RequestsPerMinute int           `yaml:"requests_per_minute,omitempty"`
}

type ContextConfig struct {
	DefaultCommitRange int `yaml:"default_commit_range"`
	MaxTokensPerCommit int `yaml:"max_tokens_per_commit"`
	// GlobalRetentionDays is recorded but global entries are never expired.
	GlobalRetentionDays int    `yaml:"global_retention_days"`
	TTLDays             int    `yaml:"ttl_days"`
	Estimator           string `yaml:"estimator"`
	FailurePolicy       string `yaml:"failure_policy"`
}

type GitConfig struct {
	AutoSync      bool          `yaml:"auto_sync"`
	HookEnabled   bool          `yaml:"hook_enabled"`
	WatchDebounce time.Duration `yaml:"watch_debounce"`
}

type LogConfig struct {
	Level      string `yaml:"level"`
	MaxSizeMB  int    `yaml:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups"`
	MaxAgeDays int    `yaml:"max_age_days"`
}

type Config struct {
	Model   ModelConfig   `yaml:"model"`
	Context ContextConfig `yaml:"context"`
	Git     GitConfig     `yaml:"git"`
	Log     LogConfig     `yaml:"log"`
}

func DefaultConfig() *Config {
	return &Config{
		Model: ModelConfig{
			Provider:     ProviderOllama,
			Endpoint:     DefaultModelEndpoint,
			Model:        DefaultModelName,
			Temperature:  DefaultTemperature,
			MaxTokens:    DefaultMaxTokens,
			Timeout:      DefaultModelTimeout,
			ProbeTimeout: DefaultProbeTimeout,
		},
		Context: ContextConfig{
			DefaultCommitRange:  DefaultCommitRange,
			MaxTokensPerCommit:  DefaultTokensPerCommit,
			GlobalRetentionDays: -1,
			TTLDays:             DefaultTTLDays,
			Estimator:           EstimatorChars,
			FailurePolicy:       FailurePolicyAbort,
		},
		Git: GitConfig{
			WatchDebounce: DefaultWatchDebounce,
		},
		Log: LogConfig{
			Level:      "info",
			MaxSizeMB:  10,
			MaxBackups: 3,
			MaxAgeDays: 28,
		},
	}
}

// LoadConfig reads the workspace config. Keys absent from the file keep
// their defaults; a missing file yields DefaultConfig.
func LoadConfig(ws Workspace) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(ws.ConfigPath())
	if errors.Is(err, os.ErrNotExist) {
		return cfg, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", ws.ConfigPath(), err)
	}

	return cfg, nil
}

func SaveConfig(ws Workspace, cfg *Config) error {
	if err := cfg.Validate(); err != nil {
		return err
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}

	if err := os.MkdirAll(ws.Dir, 0755); err != nil {
		return fmt.Errorf("create %s: %w", ws.Dir, err)
	}
	if err := os.WriteFile(ws.ConfigPath(), data, 0644); err != nil {
		return fmt.Errorf("write config: %w", err)
	}

	return nil
}

func (c *Config) Validate() error {
	var errs []error

	switch c.Model.Provider {
	case ProviderOllama:
		u, err := url.Parse(c.Model.Endpoint)
		if err != nil || u.Scheme == "" || u.Host == "" {
			errs = append(errs, fmt.Errorf("model.endpoint %q must be an absolute URL", c.Model.Endpoint))
		}
	case ProviderOpenAI, ProviderAnthropic, ProviderOpenRouter:
	default:
		errs = append(errs, fmt.Errorf("model.provider %q is not supported", c.Model.Provider))
	}
	if c.Model.Model == "" {
		errs = append(errs, errors.New("model.model must not be empty"))
	}
	if c.Model.Temperature < 0 || c.Model.Temperature > 2 {
		errs = append(errs, fmt.Errorf("model.temperature %.2f must be within [0, 2]", c.Model.Temperature))
	}
	if c.Model.RequestsPerMinute < 0 {
		errs = append(errs, errors.New("model.requests_per_minute must not be negative"))
	}
	if c.Context.DefaultCommitRange <= 0 {
		errs = append(errs, errors.New("context.default_commit_range must be positive"))
	}
	if c.Context.TTLDays <= 0 {
		errs = append(errs, errors.New("context.ttl_days must be positive"))
	}
	switch c.Context.Estimator {
	case "", EstimatorChars, EstimatorTiktoken:
	default:
		errs = append(errs, fmt.Errorf("context.estimator %q is not supported", c.Context.Estimator))
	}
	switch c.Context.FailurePolicy {
	case "", FailurePolicyAbort, FailurePolicySkip:
	default:
		errs = append(errs, fmt.Errorf("context.failure_policy %q must be %q or %q",
			c.Context.FailurePolicy, FailurePolicyAbort, FailurePolicySkip))
	}

	return errors.Join(errs...)
}

// BestEffort reports whether per-commit failures are skipped.
func (c *Config) BestEffort() bool {
	return c.Context.FailurePolicy == FailurePolicySkip
}

// APIKey returns the configured key, falling back to CONTEXTHUB_API_KEY.
func (c *Config) APIKey() string {
	if c.Model.APIKey != "" {
		return c.Model.APIKey
	}
	return os.Getenv("CONTEXTHUB_API_KEY")
}
