// Package transport moves documents to the remote compilation service and
// reads back its raw answers without interpreting them.
package transport

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strings"

	"github.com/spherical/pdf-compiler/internal/config"
	"github.com/spherical/pdf-compiler/internal/domain"
	"github.com/spherical/pdf-compiler/internal/observability"
)

const (
	userAgent        = "pdf-compiler/1.0 (+https://github.com/spherical/pdf-compiler)"
	defaultMaxBody   = 64 << 20
	relayPlaceholder = "{url}"
)

// HTTPTransport implements domain.Transport over HTTP
type HTTPTransport struct {
	httpClient *http.Client
	relay      string
	fields     config.FieldNames
	engine     string
	output     string
	filename   string
	maxBody    int64
	logger     *observability.Logger
}

// Option customises an HTTPTransport
type Option func(*HTTPTransport)

// WithHTTPClient replaces the default http.Client
func WithHTTPClient(c *http.Client) Option {
	return func(t *HTTPTransport) {
		if c != nil {
			t.httpClient = c
		}
	}
}

// WithLogger sets the logger used for request tracing
func WithLogger(l *observability.Logger) Option {
	return func(t *HTTPTransport) {
		if l != nil {
			t.logger = l
		}
	}
}

// New creates a transport for the backend described by cfg. Deadlines come
// from the caller's context, so the default client has no timeout of its own.
func New(cfg config.ServiceConfig, opts ...Option) *HTTPTransport {
	maxBody := cfg.MaxBodyBytes
	if maxBody <= 0 {
		maxBody = defaultMaxBody
	}

	t := &HTTPTransport{
		httpClient: &http.Client{},
		relay:      cfg.RelayEndpoint,
		fields:     cfg.Fields,
		engine:     cfg.Engine,
		output:     cfg.OutputFormat,
		filename:   cfg.SourceFilename,
		maxBody:    maxBody,
		logger:     observability.Nop(),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Submit posts the full document as a multipart form to endpoint
func (t *HTTPTransport) Submit(ctx context.Context, endpoint string, req domain.CompilationRequest) (*domain.RawResponse, error) {
	body, contentType, err := t.encodeForm(req)
	if err != nil {
		return nil, domain.ProtocolError("failed to encode request", err)
	}

	target, viaRelay := t.route(endpoint)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, target, bytes.NewReader(body))
	if err != nil {
		return nil, domain.TransportError(domain.CauseUnreachable, "failed to create submit request", err)
	}
	httpReq.Header.Set("Content-Type", contentType)
	httpReq.Header.Set("Accept", "application/pdf, application/json;q=0.9, text/*;q=0.8, */*;q=0.5")
	httpReq.Header.Set("User-Agent", userAgent)

	t.logger.WithContext(ctx).Debug().
		Str("target", target).
		Bool("via_relay", viaRelay).
		Int("source_bytes", len(req.SourceText)).
		Msg("Submitting document")

	return t.do(ctx, httpReq, viaRelay, "submit")
}

// Fetch retrieves a referenced result from address
func (t *HTTPTransport) Fetch(ctx context.Context, address string) (*domain.RawResponse, error) {
	target, viaRelay := t.route(address)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, domain.TransportError(domain.CauseUnreachable, "failed to create fetch request", err)
	}
	httpReq.Header.Set("User-Agent", userAgent)

	t.logger.WithContext(ctx).Debug().
		Str("target", target).
		Bool("via_relay", viaRelay).
		Msg("Fetching referenced result")

	return t.do(ctx, httpReq, viaRelay, "fetch")
}

func (t *HTTPTransport) do(ctx context.Context, req *http.Request, viaRelay bool, op string) (*domain.RawResponse, error) {
	resp, err := t.httpClient.Do(req)
	if err != nil {
		return nil, classifyError(ctx, err, op+" request failed")
	}
	defer resp.Body.Close()

	// one extra byte tells an exactly-full body apart from an oversized one
	body, err := io.ReadAll(io.LimitReader(resp.Body, t.maxBody+1))
	if err != nil {
		return nil, classifyError(ctx, err, op+" response could not be read")
	}
	if int64(len(body)) > t.maxBody {
		return nil, domain.ProtocolError(fmt.Sprintf("%s response exceeds %d bytes", op, t.maxBody), nil)
	}

	return &domain.RawResponse{
		StatusCode:  resp.StatusCode,
		ContentType: resp.Header.Get("Content-Type"),
		Body:        body,
		ViaRelay:    viaRelay,
	}, nil
}

// encodeForm builds the multipart body. Only configured field names are sent.
func (t *HTTPTransport) encodeForm(req domain.CompilationRequest) ([]byte, string, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	fields := []struct{ name, value string }{
		{t.fields.Filename, t.filename},
		{t.fields.Source, req.SourceText},
		{t.fields.Engine, t.engine},
		{t.fields.Output, t.output},
	}
	for _, f := range fields {
		if f.name == "" {
			continue
		}
		if err := w.WriteField(f.name, f.value); err != nil {
			return nil, "", fmt.Errorf("write field %s: %w", f.name, err)
		}
	}

	if err := w.Close(); err != nil {
		return nil, "", fmt.Errorf("close multipart writer: %w", err)
	}
	return buf.Bytes(), w.FormDataContentType(), nil
}

// route returns the address to dial for target, through the relay if one is set
func (t *HTTPTransport) route(target string) (string, bool) {
	if t.relay == "" {
		return target, false
	}
	if strings.Contains(t.relay, relayPlaceholder) {
		return strings.Replace(t.relay, relayPlaceholder, url.QueryEscape(target), 1), true
	}
	return t.relay + target, true
}

var _ domain.Transport = (*HTTPTransport)(nil)
