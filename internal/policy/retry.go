// Package policy layers caller-level behaviour such as retries and backend
// fallback on top of a domain.Compiler. The core client never retries on
// its own.
package policy

import (
	"context"
	"errors"
	"math"
	"time"

	"github.com/spherical/pdf-compiler/internal/config"
	"github.com/spherical/pdf-compiler/internal/domain"
	"github.com/spherical/pdf-compiler/internal/observability"
)

const (
	defaultInitialBackoff = 1 * time.Second
	defaultMaxBackoff     = 30 * time.Second
)

// Retry resubmits a document when the previous attempt failed in a way
// that a new attempt could fix. Compilation failures are never retried.
type Retry struct {
	next   domain.Compiler
	cfg    config.RetryConfig
	logger *observability.Logger
	sleep  func(ctx context.Context, d time.Duration) error
}

// NewRetry wraps next with the retry policy in cfg
func NewRetry(next domain.Compiler, cfg config.RetryConfig, logger *observability.Logger) *Retry {
	if cfg.InitialBackoff <= 0 {
		cfg.InitialBackoff = defaultInitialBackoff
	}
	if cfg.MaxBackoff <= 0 {
		cfg.MaxBackoff = defaultMaxBackoff
	}
	if logger == nil {
		logger = observability.Nop()
	}
	return &Retry{next: next, cfg: cfg, logger: logger, sleep: sleepContext}
}

// Compile implements domain.Compiler
func (r *Retry) Compile(ctx context.Context, sourceText string) (*domain.Artifact, error) {
	log := r.logger.WithContext(ctx).WithOperation("retry")
	var lastErr *domain.CompilationError

	for attempt := 0; attempt <= r.cfg.MaxRetries; attempt++ {
		artifact, err := r.next.Compile(ctx, sourceText)
		if err == nil {
			return artifact, nil
		}

		lastErr = domain.AsCompilationError(err)
		if !lastErr.Retryable() || attempt == r.cfg.MaxRetries {
			break
		}

		backoff := calculateBackoff(attempt, r.cfg)
		log.Warn().
			Int("attempt", attempt+1).
			Int("max_retries", r.cfg.MaxRetries).
			Dur("backoff", backoff).
			Err(lastErr).
			Msg("Compilation attempt failed, retrying")

		if err := r.sleep(ctx, backoff); err != nil {
			cause := domain.CauseCancelled
			if errors.Is(err, context.DeadlineExceeded) {
				cause = domain.CauseTimeout
			}
			return nil, domain.TransportError(cause, "gave up waiting to retry", lastErr)
		}
	}

	return nil, lastErr
}

// calculateBackoff returns initialBackoff * 2^attempt capped at maxBackoff
func calculateBackoff(attempt int, cfg config.RetryConfig) time.Duration {
	backoff := float64(cfg.InitialBackoff) * math.Pow(2, float64(attempt))
	if backoff > float64(cfg.MaxBackoff) {
		backoff = float64(cfg.MaxBackoff)
	}
	return time.Duration(backoff)
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

var _ domain.Compiler = (*Retry)(nil)
