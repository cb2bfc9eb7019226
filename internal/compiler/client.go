// Package compiler is the entry point for turning a LaTeX document into a
// PDF with a remote compilation service.
package compiler

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/spherical/pdf-compiler/internal/classify"
	"github.com/spherical/pdf-compiler/internal/config"
	"github.com/spherical/pdf-compiler/internal/diagnostic"
	"github.com/spherical/pdf-compiler/internal/domain"
	"github.com/spherical/pdf-compiler/internal/observability"
	"github.com/spherical/pdf-compiler/internal/resolve"
	"github.com/spherical/pdf-compiler/internal/transport"
)

// Client compiles documents against a single backend. It holds only
// immutable configuration, so one Client may serve concurrent calls.
type Client struct {
	endpoint   string
	timeout    time.Duration
	transport  domain.Transport
	classifier domain.Classifier
	extractor  domain.Extractor
	resolver   *resolve.Resolver
	logger     *observability.Logger
}

// Option customises a Client
type Option func(*Client)

// WithTransport replaces the HTTP transport
func WithTransport(t domain.Transport) Option {
	return func(c *Client) {
		c.transport = t
	}
}

// WithClassifier replaces the response classifier
func WithClassifier(cl domain.Classifier) Option {
	return func(c *Client) {
		c.classifier = cl
	}
}

// WithExtractor replaces the diagnostic extractor
func WithExtractor(e domain.Extractor) Option {
	return func(c *Client) {
		c.extractor = e
	}
}

// WithLogger sets the logger
func WithLogger(l *observability.Logger) Option {
	return func(c *Client) {
		if l != nil {
			c.logger = l
		}
	}
}

// New creates a client for the backend described by svc
func New(svc config.ServiceConfig, envelope config.EnvelopeConfig, opts ...Option) (*Client, error) {
	if err := svc.Validate(); err != nil {
		return nil, fmt.Errorf("invalid service config: %w", err)
	}

	c := &Client{
		endpoint: svc.Endpoint,
		timeout:  svc.Timeout,
		logger:   observability.Nop(),
	}
	for _, opt := range opts {
		opt(c)
	}

	c.logger = c.logger.WithBackend(svc.Endpoint)
	if c.transport == nil {
		c.transport = transport.New(svc, transport.WithLogger(c.logger))
	}
	if c.classifier == nil {
		c.classifier = classify.New(envelope)
	}
	if c.extractor == nil {
		c.extractor = diagnostic.New()
	}
	c.resolver = resolve.New(svc.ResultBase(), c.transport)

	return c, nil
}

// Endpoint returns the service endpoint documents are submitted to
func (c *Client) Endpoint() string {
	return c.endpoint
}

// Compile submits sourceText and returns the compiled PDF. Any returned
// error is a *domain.CompilationError.
func (c *Client) Compile(ctx context.Context, sourceText string) (*domain.Artifact, error) {
	artifact, _, err := c.CompileWithReport(ctx, sourceText)
	return artifact, err
}

// CompileWithReport is Compile plus a summary of the call for display.
func (c *Client) CompileWithReport(ctx context.Context, sourceText string) (artifact *domain.Artifact, report domain.CompileReport, err error) {
	traceID := observability.TraceIDFromContext(ctx)
	if traceID == "" {
		traceID = uuid.NewString()
		ctx = observability.ContextWithTraceID(ctx, traceID)
	}

	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	r := &run{
		client: c,
		ctx:    ctx,
		logger: c.logger.WithContext(ctx).WithOperation("compile"),
		state:  stateIdle,
	}
	start := time.Now()

	defer func() {
		if p := recover(); p != nil {
			r.logger.Error().Str("state", r.state.String()).Msgf("Recovered from panic: %v", p)
			artifact = nil
			err = domain.ProtocolError(fmt.Sprintf("compilation aborted in state %s", r.state), fmt.Errorf("panic: %v", p))
		}

		ce := domain.AsCompilationError(err)
		report = domain.CompileReport{
			TraceID:  traceID,
			Backend:  c.endpoint,
			Resolved: r.resolved,
			Duration: time.Since(start),
			Bytes:    artifact.Size(),
			Err:      ce,
		}
		r.finish(report)
		if ce != nil {
			err = ce
		}
	}()

	artifact, err = r.execute(sourceText)
	return artifact, report, err
}

// run carries the state of one Compile call
type run struct {
	client   *Client
	ctx      context.Context
	logger   *observability.Logger
	state    state
	resolved bool
}

func (r *run) execute(sourceText string) (*domain.Artifact, error) {
	c := r.client

	resp, err := c.transport.Submit(r.ctx, c.endpoint, domain.CompilationRequest{SourceText: sourceText})
	r.enter(stateSubmitted)
	if err != nil {
		return nil, r.transportFailure(err)
	}

	for {
		if resp == nil {
			return nil, domain.ProtocolError("transport returned no response", nil)
		}

		outcome := c.classifier.Classify(*resp)
		r.enter(stateClassified)
		r.logger.Debug().
			Str("outcome", outcome.Kind.String()).
			Int("status", resp.StatusCode).
			Str("content_type", resp.ContentType).
			Int("body_bytes", len(resp.Body)).
			Msg("Classified response")

		switch outcome.Kind {
		case domain.OutcomeArtifact:
			return &domain.Artifact{Data: outcome.Artifact, MediaType: domain.MediaTypePDF}, nil

		case domain.OutcomeDiagnostic:
			return nil, domain.CompilationFailed(c.extractor.Extract(*outcome.Diagnostic))

		case domain.OutcomeTransportError:
			return nil, outcome.Err

		case domain.OutcomeReference:
			if r.resolved {
				return nil, domain.ProtocolError("result fetch answered with another reference", nil)
			}
			r.resolved = true

			resp, err = c.resolver.Resolve(r.ctx, outcome.Token)
			r.enter(stateResolved)
			if err != nil {
				return nil, r.transportFailure(err)
			}

		default:
			return nil, domain.ProtocolError(fmt.Sprintf("classifier produced %s", outcome.Kind), nil)
		}
	}
}

// transportFailure normalises errors from the transport or resolver. Errors
// from substituted transports that are not CompilationErrors still honour
// the call's deadline and cancellation.
func (r *run) transportFailure(err error) *domain.CompilationError {
	var ce *domain.CompilationError
	if errors.As(err, &ce) {
		return ce
	}
	switch {
	case errors.Is(r.ctx.Err(), context.Canceled):
		return domain.TransportError(domain.CauseCancelled, "compilation cancelled", err)
	case errors.Is(r.ctx.Err(), context.DeadlineExceeded):
		return domain.TransportError(domain.CauseTimeout, "compilation timed out", err)
	}
	return domain.AsCompilationError(err)
}

func (r *run) enter(next state) {
	r.logger.Debug().Str("from", r.state.String()).Str("to", next.String()).Msg("State transition")
	r.state = next
}

func (r *run) finish(report domain.CompileReport) {
	r.enter(stateDone)

	if report.Err == nil {
		r.logger.Info().
			Int("bytes", report.Bytes).
			Bool("resolved", report.Resolved).
			Dur("duration", report.Duration).
			Msg("Compilation succeeded")
		return
	}

	evt := r.logger.Warn().
		Str("kind", string(report.Err.Kind)).
		Bool("resolved", report.Resolved).
		Dur("duration", report.Duration)
	if report.Err.Cause != domain.CauseNone {
		evt = evt.Str("cause", string(report.Err.Cause))
	}
	if report.Err.StatusCode != 0 {
		evt = evt.Int("status", report.Err.StatusCode)
	}
	evt.Msg("Compilation did not produce a document")
}

var _ domain.Compiler = (*Client)(nil)
