package policy

import (
	"context"
	"errors"

	"github.com/spherical/pdf-compiler/internal/domain"
	"github.com/spherical/pdf-compiler/internal/observability"
)

// Fallback tries a list of compilers in order and returns the first artifact.
type Fallback struct {
	compilers        []domain.Compiler
	stopOnDiagnostic bool
	logger           *observability.Logger
}

// FallbackOption customises a Fallback
type FallbackOption func(*Fallback)

// StopOnDiagnostic ends the chain as soon as a backend reports that the
// document itself failed to compile.
func StopOnDiagnostic(stop bool) FallbackOption {
	return func(f *Fallback) {
		f.stopOnDiagnostic = stop
	}
}

// WithFallbackLogger sets the logger
func WithFallbackLogger(l *observability.Logger) FallbackOption {
	return func(f *Fallback) {
		if l != nil {
			f.logger = l
		}
	}
}

// NewFallback creates a chain over compilers, tried in the given order
func NewFallback(compilers []domain.Compiler, opts ...FallbackOption) (*Fallback, error) {
	if len(compilers) == 0 {
		return nil, errors.New("fallback needs at least one compiler")
	}
	f := &Fallback{
		compilers: compilers,
		logger:    observability.Nop(),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f, nil
}

type endpointer interface {
	Endpoint() string
}

// Compile implements domain.Compiler. When every backend fails, a
// compilation failure is preferred over infrastructure errors because its
// log is what the user needs to fix the document.
func (f *Fallback) Compile(ctx context.Context, sourceText string) (*domain.Artifact, error) {
	log := f.logger.WithContext(ctx).WithOperation("fallback")

	var compileErr, lastErr *domain.CompilationError
	for i, c := range f.compilers {
		artifact, err := c.Compile(ctx, sourceText)
		if err == nil {
			return artifact, nil
		}

		ce := domain.AsCompilationError(err)
		lastErr = ce
		if ce.Kind == domain.KindCompilationFailed {
			if compileErr == nil {
				compileErr = ce
			}
			if f.stopOnDiagnostic {
				break
			}
		}
		if ctx.Err() != nil {
			break
		}

		if i < len(f.compilers)-1 {
			evt := log.Warn().Str("kind", string(ce.Kind)).Int("position", i+1)
			if e, ok := c.(endpointer); ok {
				evt = evt.Str("backend", e.Endpoint())
			}
			evt.Msg("Backend failed, trying next")
		}
	}

	if compileErr != nil {
		return nil, compileErr
	}
	return nil, lastErr
}

var _ domain.Compiler = (*Fallback)(nil)
