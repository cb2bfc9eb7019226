// Package config provides configuration loading for the compiler client.
// Supports YAML files, environment variables, and programmatic overrides.
package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the compiler client and its surfaces.
type Config struct {
	Service       ServiceConfig       `yaml:"service"`
	Fallbacks     []ServiceConfig     `yaml:"fallbacks"`
	Envelope      EnvelopeConfig      `yaml:"envelope"`
	Retry         RetryConfig         `yaml:"retry"`
	Cache         CacheConfig         `yaml:"cache"`
	Server        ServerConfig        `yaml:"server"`
	Observability ObservabilityConfig `yaml:"observability"`
}

// ServiceConfig describes one remote compilation backend.
type ServiceConfig struct {
	Endpoint       string        `yaml:"endpoint"`
	RelayEndpoint  string        `yaml:"relay_endpoint"`  // optional; {url} is replaced by the target
	ResultBaseURL  string        `yaml:"result_base_url"` // optional; {token} is replaced by the reference
	Engine         string        `yaml:"engine"`
	OutputFormat   string        `yaml:"output_format"`
	SourceFilename string        `yaml:"source_filename"`
	Timeout        time.Duration `yaml:"timeout"`
	MaxBodyBytes   int64         `yaml:"max_body_bytes"`
	Fields         FieldNames    `yaml:"fields"`
}

// FieldNames are the form field names the remote service expects.
type FieldNames struct {
	Source   string `yaml:"source"`
	Filename string `yaml:"filename"`
	Engine   string `yaml:"engine"`
	Output   string `yaml:"output"`
}

// EnvelopeConfig describes the JSON status envelope some backends answer with.
type EnvelopeConfig struct {
	StatusField     string   `yaml:"status_field"`
	SuccessValues   []string `yaml:"success_values"`
	ErrorValues     []string `yaml:"error_values"`
	ReferenceFields []string `yaml:"reference_fields"`
	ArtifactFields  []string `yaml:"artifact_fields"`
	LogFields       []string `yaml:"log_fields"`
	EncodingField   string   `yaml:"encoding_field"`
}

// RetryConfig holds the caller-level retry policy.
type RetryConfig struct {
	MaxRetries     int           `yaml:"max_retries"`
	InitialBackoff time.Duration `yaml:"initial_backoff"`
	MaxBackoff     time.Duration `yaml:"max_backoff"`
}

// CacheConfig holds artifact cache settings.
type CacheConfig struct {
	Driver     string        `yaml:"driver"` // none, memory or redis
	TTL        time.Duration `yaml:"ttl"`
	MaxEntries int           `yaml:"max_entries"`
	Redis      RedisConfig   `yaml:"redis"`
}

// RedisConfig holds Redis-specific settings.
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	PoolSize int    `yaml:"pool_size"`
	Prefix   string `yaml:"prefix"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host             string        `yaml:"host"`
	Port             int           `yaml:"port"`
	ReadTimeout      time.Duration `yaml:"read_timeout"`
	WriteTimeout     time.Duration `yaml:"write_timeout"`
	IdleTimeout      time.Duration `yaml:"idle_timeout"`
	GracefulShutdown time.Duration `yaml:"graceful_shutdown"`
	MaxSourceBytes   int64         `yaml:"max_source_bytes"`
}

// ObservabilityConfig holds logging settings.
type ObservabilityConfig struct {
	LogLevel    string `yaml:"log_level"`
	LogFormat   string `yaml:"log_format"`
	ServiceName string `yaml:"service_name"`
}

// Load reads configuration from a YAML file and applies environment overrides.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}

		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config file: %w", err)
		}
	}

	applyEnvOverrides(cfg)

	for i := range cfg.Fallbacks {
		cfg.Fallbacks[i] = cfg.Fallbacks[i].withDefaults(cfg.Service)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return cfg, nil
}

// DefaultConfig returns a configuration with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Service:  DefaultServiceConfig(),
		Envelope: DefaultEnvelopeConfig(),
		Retry: RetryConfig{
			MaxRetries:     0,
			InitialBackoff: 1 * time.Second,
			MaxBackoff:     30 * time.Second,
		},
		Cache: CacheConfig{
			Driver:     "none",
			TTL:        24 * time.Hour,
			MaxEntries: 256,
			Redis: RedisConfig{
				Addr:     "localhost:6379",
				DB:       0,
				PoolSize: 10,
				Prefix:   "pdfc:",
			},
		},
		Server: ServerConfig{
			Host:             "0.0.0.0",
			Port:             8086,
			ReadTimeout:      30 * time.Second,
			WriteTimeout:     120 * time.Second,
			IdleTimeout:      120 * time.Second,
			GracefulShutdown: 10 * time.Second,
			MaxSourceBytes:   8 << 20,
		},
		Observability: ObservabilityConfig{
			LogLevel:    "info",
			LogFormat:   "console",
			ServiceName: "pdf-compiler",
		},
	}
}

// DefaultServiceConfig returns the settings for the public TeX Live service.
func DefaultServiceConfig() ServiceConfig {
	return ServiceConfig{
		Endpoint:       "https://texlive.net/cgi-bin/latexcgi",
		Engine:         "pdflatex",
		OutputFormat:   "pdf",
		SourceFilename: "document.tex",
		Timeout:        90 * time.Second,
		MaxBodyBytes:   64 << 20,
		Fields: FieldNames{
			Source:   "filecontents[]",
			Filename: "filename[]",
			Engine:   "engine",
			Output:   "return",
		},
	}
}

// DefaultEnvelopeConfig returns the envelope vocabulary most JSON backends use.
func DefaultEnvelopeConfig() EnvelopeConfig {
	return EnvelopeConfig{
		StatusField:     "status",
		SuccessValues:   []string{"success", "ok", "done", "completed"},
		ErrorValues:     []string{"error", "failed", "failure"},
		ReferenceFields: []string{"filename", "reference", "id"},
		ArtifactFields:  []string{"pdf", "artifact", "content"},
		LogFields:       []string{"log", "logs", "message"},
		EncodingField:   "log_encoding",
	}
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	if err := c.Service.Validate(); err != nil {
		return fmt.Errorf("service: %w", err)
	}

	for i, fb := range c.Fallbacks {
		if err := fb.Validate(); err != nil {
			return fmt.Errorf("fallbacks[%d]: %w", i, err)
		}
	}

	if c.Envelope.StatusField == "" {
		return fmt.Errorf("envelope status_field is required")
	}

	if c.Retry.MaxRetries < 0 {
		return fmt.Errorf("retry max_retries must not be negative")
	}

	switch c.Cache.Driver {
	case "none", "memory", "redis":
	default:
		return fmt.Errorf("invalid cache driver: %s", c.Cache.Driver)
	}

	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}

	return nil
}

// Validate checks a single backend definition.
func (s ServiceConfig) Validate() error {
	if err := validateURL("endpoint", s.Endpoint); err != nil {
		return err
	}

	if s.RelayEndpoint != "" {
		if err := validateURL("relay_endpoint", strings.Replace(s.RelayEndpoint, "{url}", "", 1)); err != nil {
			return err
		}
	}

	if s.ResultBaseURL != "" {
		if err := validateURL("result_base_url", strings.Replace(s.ResultBaseURL, "{token}", "", 1)); err != nil {
			return err
		}
	}

	if strings.TrimSpace(s.Engine) == "" {
		return fmt.Errorf("engine is required")
	}

	if s.Fields.Source == "" || s.Fields.Engine == "" {
		return fmt.Errorf("fields.source and fields.engine are required")
	}

	if s.Timeout < 0 {
		return fmt.Errorf("timeout must not be negative")
	}

	return nil
}

// ResultBase returns the base address used to resolve references.
func (s ServiceConfig) ResultBase() string {
	if s.ResultBaseURL != "" {
		return s.ResultBaseURL
	}
	return s.Endpoint
}

// withDefaults fills unset fields of a fallback backend from the primary one.
func (s ServiceConfig) withDefaults(primary ServiceConfig) ServiceConfig {
	if s.Engine == "" {
		s.Engine = primary.Engine
	}
	if s.OutputFormat == "" {
		s.OutputFormat = primary.OutputFormat
	}
	if s.SourceFilename == "" {
		s.SourceFilename = primary.SourceFilename
	}
	if s.Timeout == 0 {
		s.Timeout = primary.Timeout
	}
	if s.MaxBodyBytes == 0 {
		s.MaxBodyBytes = primary.MaxBodyBytes
	}
	if s.Fields == (FieldNames{}) {
		s.Fields = primary.Fields
	}
	return s
}

func validateURL(name, raw string) error {
	if raw == "" {
		return fmt.Errorf("%s is required", name)
	}
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("invalid %s: %w", name, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("invalid %s: scheme must be http or https", name)
	}
	if u.Host == "" {
		return fmt.Errorf("invalid %s: host is required", name)
	}
	return nil
}

// applyEnvOverrides applies environment variable overrides to config.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("COMPILER_ENDPOINT"); v != "" {
		cfg.Service.Endpoint = v
	}

	if v := os.Getenv("COMPILER_RELAY_URL"); v != "" {
		cfg.Service.RelayEndpoint = v
	}

	if v := os.Getenv("COMPILER_RESULT_BASE_URL"); v != "" {
		cfg.Service.ResultBaseURL = v
	}

	if v := os.Getenv("COMPILER_ENGINE"); v != "" {
		cfg.Service.Engine = v
	}

	if v := os.Getenv("COMPILER_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Service.Timeout = d
		}
	}

	if v := os.Getenv("CACHE_DRIVER"); v != "" {
		cfg.Cache.Driver = v
	}

	if v := os.Getenv("REDIS_URL"); v != "" {
		cfg.Cache.Driver = "redis"
		cfg.Cache.Redis.Addr = strings.TrimPrefix(v, "redis://")
	}

	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Observability.LogLevel = v
	}

	if v := os.Getenv("LOG_FORMAT"); v != "" {
		cfg.Observability.LogFormat = v
	}

	if v := os.Getenv("SERVER_HOST"); v != "" {
		cfg.Server.Host = v
	}

	if v := os.Getenv("SERVER_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = port
		}
	}
}
