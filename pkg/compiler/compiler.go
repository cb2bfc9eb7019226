// Package compiler is the public entry point for compiling LaTeX documents
// to PDF with a remote compilation service.
package compiler

import (
	"context"
	"errors"
	"os"

	"github.com/joho/godotenv"

	"github.com/spherical/pdf-compiler/internal/cache"
	"github.com/spherical/pdf-compiler/internal/compiler"
	"github.com/spherical/pdf-compiler/internal/config"
	"github.com/spherical/pdf-compiler/internal/domain"
	"github.com/spherical/pdf-compiler/internal/observability"
	"github.com/spherical/pdf-compiler/internal/policy"
)

// Re-export types for the public API
type (
	Artifact         = domain.Artifact
	CompilationError = domain.CompilationError
	ErrorKind        = domain.ErrorKind
	TransportCause   = domain.TransportCause
	Config           = config.Config
	ServiceConfig    = config.ServiceConfig
	Logger           = observability.Logger
	LogConfig        = observability.LogConfig
)

// Error kinds
const (
	KindTransportUnreachable = domain.KindTransportUnreachable
	KindRelayFailure         = domain.KindRelayFailure
	KindUpstreamRejected     = domain.KindUpstreamRejected
	KindCompilationFailed    = domain.KindCompilationFailed
	KindProtocolViolation    = domain.KindProtocolViolation
)

var (
	// DefaultConfig returns the built-in configuration
	DefaultConfig = config.DefaultConfig
	// LoadConfig reads a YAML file and applies environment overrides
	LoadConfig = config.Load
	// NewLogger creates a structured logger
	NewLogger = observability.NewLogger
	// WithTraceID tags ctx so that every log line of a compile carries id
	WithTraceID = observability.ContextWithTraceID
)

// Client compiles documents using the configured backends, policies and cache
type Client struct {
	compiler domain.Compiler
	store    cache.Client
}

// NewClient loads .env and the file named by COMPILER_CONFIG, if any, and
// builds a client from the result.
func NewClient() (*Client, error) {
	_ = godotenv.Load() // Ignore error if .env doesn't exist

	cfg, err := config.Load(os.Getenv("COMPILER_CONFIG"))
	if err != nil {
		return nil, err
	}
	return NewClientWithConfig(cfg, nil)
}

// NewClientWithConfig builds a client from cfg. A nil logger discards logs.
func NewClientWithConfig(cfg *Config, logger *Logger) (*Client, error) {
	if cfg == nil {
		return nil, errors.New("config is required")
	}
	if logger == nil {
		logger = observability.Nop()
	}

	primary, err := compiler.New(cfg.Service, cfg.Envelope, compiler.WithLogger(logger))
	if err != nil {
		return nil, err
	}

	var c domain.Compiler = primary
	if len(cfg.Fallbacks) > 0 {
		chain := []domain.Compiler{primary}
		for _, svc := range cfg.Fallbacks {
			fb, err := compiler.New(svc, cfg.Envelope, compiler.WithLogger(logger))
			if err != nil {
				return nil, err
			}
			chain = append(chain, fb)
		}
		// every backend would report the same broken document
		c, err = policy.NewFallback(chain, policy.StopOnDiagnostic(true), policy.WithFallbackLogger(logger))
		if err != nil {
			return nil, err
		}
	}

	if cfg.Retry.MaxRetries > 0 {
		c = policy.NewRetry(c, cfg.Retry, logger)
	}

	store, err := cache.NewClient(cfg.Cache)
	if err != nil {
		return nil, err
	}
	if store != nil {
		c = cache.NewArtifactCache(c, store, cfg.Service.Engine, cfg.Cache.TTL, logger)
	}

	return &Client{compiler: c, store: store}, nil
}

// Compile turns sourceText into a PDF. Any error is a *CompilationError.
func (c *Client) Compile(ctx context.Context, sourceText string) (*Artifact, error) {
	return c.compiler.Compile(ctx, sourceText)
}

// Close releases the cache connection, if any
func (c *Client) Close() error {
	if c.store == nil {
		return nil
	}
	return c.store.Close()
}

// AsCompilationError returns err as a *CompilationError
func AsCompilationError(err error) *CompilationError {
	return domain.AsCompilationError(err)
}
