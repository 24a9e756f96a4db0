package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/MaxLiang-91/HF-Download/internal/downloader"
	hfdlhttp "github.com/MaxLiang-91/HF-Download/internal/http"
	"github.com/MaxLiang-91/HF-Download/internal/hub"
	"github.com/MaxLiang-91/HF-Download/internal/progress"
	"gopkg.in/yaml.v3"
)

// Config defines configuration for the hfdl CLI.
type Config struct {
	URL       string        `yaml:"url"`
	Dir       string        `yaml:"dir"`
	Mirror    string        `yaml:"mirror"`
	UserAgent string        `yaml:"user_agent"`
	ChunkSize int           `yaml:"chunk_size"`
	Progress  bool          `yaml:"progress"`
	Retry     RetryConfig   `yaml:"retry"`
	Timeouts  TimeoutConfig `yaml:"timeouts"`
}

// RetryConfig defines retry behavior for transient transfer failures.
type RetryConfig struct {
	Attempts int           `yaml:"attempts"`
	Wait     time.Duration `yaml:"wait"`
}

// TimeoutConfig bounds the remote operations.
type TimeoutConfig struct {
	Probe          time.Duration `yaml:"probe"`
	List           time.Duration `yaml:"list"`
	ResponseHeader time.Duration `yaml:"response_header"`
}

// Default returns a Config with sensible defaults.
func Default() Config {
	hd := hfdlhttp.DefaultOptions()
	return Config{
		Dir:       "downloads",
		Mirror:    "https://" + hub.PrimaryHost,
		UserAgent: hd.UserAgent,
		ChunkSize: downloader.DefaultChunkSize,
		Progress:  true,
		Retry: RetryConfig{
			Attempts: downloader.DefaultAttempts,
			Wait:     downloader.DefaultRetryWait,
		},
		Timeouts: TimeoutConfig{
			Probe:          hd.ProbeTimeout,
			List:           hd.ListTimeout,
			ResponseHeader: hd.ResponseHeaderTimeout,
		},
	}
}

// yamlConfig is used for YAML unmarshaling with string sizes and
// durations. Progress is a pointer so an absent key keeps the default
// rather than forcing it off.
type yamlConfig struct {
	URL       string            `yaml:"url"`
	Dir       string            `yaml:"dir"`
	Mirror    string            `yaml:"mirror"`
	UserAgent string            `yaml:"user_agent"`
	ChunkSize string            `yaml:"chunk_size"`
	Progress  *bool             `yaml:"progress"`
	Retry     yamlRetryConfig   `yaml:"retry"`
	Timeouts  yamlTimeoutConfig `yaml:"timeouts"`
}

type yamlRetryConfig struct {
	Attempts int    `yaml:"attempts"`
	Wait     string `yaml:"wait"`
}

type yamlTimeoutConfig struct {
	Probe          string `yaml:"probe"`
	List           string `yaml:"list"`
	ResponseHeader string `yaml:"response_header"`
}

// LoadFromFile loads configuration from a YAML file. Values present in
// the file override the defaults.
func LoadFromFile(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config file: %w", err)
	}

	var yc yamlConfig
	if err := yaml.Unmarshal(data, &yc); err != nil {
		return Config{}, fmt.Errorf("parse config file: %w", err)
	}

	cfg := Default()

	if yc.URL != "" {
		cfg.URL = yc.URL
	}
	if yc.Dir != "" {
		cfg.Dir = yc.Dir
	}
	if yc.Mirror != "" {
		cfg.Mirror = yc.Mirror
	}
	if yc.UserAgent != "" {
		cfg.UserAgent = yc.UserAgent
	}
	if yc.ChunkSize != "" {
		size, err := progress.ParseBytes(yc.ChunkSize)
		if err != nil {
			return Config{}, fmt.Errorf("parse chunk_size: %w", err)
		}
		cfg.ChunkSize = int(size)
	}
	if yc.Progress != nil {
		cfg.Progress = *yc.Progress
	}
	if yc.Retry.Attempts != 0 {
		cfg.Retry.Attempts = yc.Retry.Attempts
	}
	if yc.Retry.Wait != "" {
		d, err := time.ParseDuration(yc.Retry.Wait)
		if err != nil {
			return Config{}, fmt.Errorf("parse retry.wait: %w", err)
		}
		cfg.Retry.Wait = d
	}
	if yc.Timeouts.Probe != "" {
		d, err := time.ParseDuration(yc.Timeouts.Probe)
		if err != nil {
			return Config{}, fmt.Errorf("parse timeouts.probe: %w", err)
		}
		cfg.Timeouts.Probe = d
	}
	if yc.Timeouts.List != "" {
		d, err := time.ParseDuration(yc.Timeouts.List)
		if err != nil {
			return Config{}, fmt.Errorf("parse timeouts.list: %w", err)
		}
		cfg.Timeouts.List = d
	}
	if yc.Timeouts.ResponseHeader != "" {
		d, err := time.ParseDuration(yc.Timeouts.ResponseHeader)
		if err != nil {
			return Config{}, fmt.Errorf("parse timeouts.response_header: %w", err)
		}
		cfg.Timeouts.ResponseHeader = d
	}

	return cfg, nil
}

// LoadFromEnv loads configuration from environment variables.
// Environment variables use the HFDL_ prefix.
func (c *Config) LoadFromEnv() error {
	if v := os.Getenv("HFDL_URL"); v != "" {
		c.URL = v
	}
	if v := os.Getenv("HFDL_DIR"); v != "" {
		c.Dir = v
	}
	if v := os.Getenv("HFDL_MIRROR"); v != "" {
		c.Mirror = v
	}
	if v := os.Getenv("HFDL_USER_AGENT"); v != "" {
		c.UserAgent = v
	}
	if v := os.Getenv("HFDL_CHUNK_SIZE"); v != "" {
		size, err := progress.ParseBytes(v)
		if err != nil {
			return fmt.Errorf("parse HFDL_CHUNK_SIZE: %w", err)
		}
		c.ChunkSize = int(size)
	}
	if v := os.Getenv("HFDL_PROGRESS"); v != "" {
		c.Progress = v == "true" || v == "1"
	}
	if v := os.Getenv("HFDL_RETRY_ATTEMPTS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("parse HFDL_RETRY_ATTEMPTS: %w", err)
		}
		c.Retry.Attempts = n
	}
	if v := os.Getenv("HFDL_RETRY_WAIT"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("parse HFDL_RETRY_WAIT: %w", err)
		}
		c.Retry.Wait = d
	}
	if v := os.Getenv("HFDL_PROBE_TIMEOUT"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("parse HFDL_PROBE_TIMEOUT: %w", err)
		}
		c.Timeouts.Probe = d
	}
	if v := os.Getenv("HFDL_LIST_TIMEOUT"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("parse HFDL_LIST_TIMEOUT: %w", err)
		}
		c.Timeouts.List = d
	}
	if v := os.Getenv("HFDL_RESPONSE_HEADER_TIMEOUT"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("parse HFDL_RESPONSE_HEADER_TIMEOUT: %w", err)
		}
		c.Timeouts.ResponseHeader = d
	}

	return nil
}

// Validate validates the configuration. The URL is not checked here:
// commands that need one take it as an argument.
func (c *Config) Validate() error {
	if c.Dir == "" {
		return errors.New("config: dir is required")
	}
	if c.Mirror == "" {
		return errors.New("config: mirror is required")
	}
	if c.ChunkSize <= 0 {
		return errors.New("config: chunk_size must be positive")
	}
	if c.Retry.Attempts <= 0 {
		return errors.New("config: retry attempts must be positive")
	}
	if c.Retry.Wait < 0 {
		return errors.New("config: retry wait must not be negative")
	}
	return nil
}

// Merge merges override values into c, returning a new Config.
// Zero values in override are ignored.
func (c Config) Merge(override Config) Config {
	if override.URL != "" {
		c.URL = override.URL
	}
	if override.Dir != "" {
		c.Dir = override.Dir
	}
	if override.Mirror != "" {
		c.Mirror = override.Mirror
	}
	if override.UserAgent != "" {
		c.UserAgent = override.UserAgent
	}
	if override.ChunkSize != 0 {
		c.ChunkSize = override.ChunkSize
	}
	if override.Progress {
		c.Progress = override.Progress
	}
	if override.Retry.Attempts != 0 {
		c.Retry.Attempts = override.Retry.Attempts
	}
	if override.Retry.Wait != 0 {
		c.Retry.Wait = override.Retry.Wait
	}
	if override.Timeouts.Probe != 0 {
		c.Timeouts.Probe = override.Timeouts.Probe
	}
	if override.Timeouts.List != 0 {
		c.Timeouts.List = override.Timeouts.List
	}
	if override.Timeouts.ResponseHeader != 0 {
		c.Timeouts.ResponseHeader = override.Timeouts.ResponseHeader
	}
	return c
}
