package policy

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spherical/pdf-compiler/internal/config"
	"github.com/spherical/pdf-compiler/internal/domain"
)

var testArtifact = &domain.Artifact{Data: []byte("%PDF-1.5"), MediaType: domain.MediaTypePDF}

// scriptedCompiler returns the next scripted error on each call, then succeeds
type scriptedCompiler struct {
	endpoint string
	errs     []error
	calls    int
}

func (s *scriptedCompiler) Compile(context.Context, string) (*domain.Artifact, error) {
	s.calls++
	if len(s.errs) == 0 {
		return testArtifact, nil
	}
	err := s.errs[0]
	s.errs = s.errs[1:]
	return nil, err
}

func (s *scriptedCompiler) Endpoint() string {
	return s.endpoint
}

func noSleep(context.Context, time.Duration) error { return nil }

func newTestRetry(next domain.Compiler, maxRetries int) *Retry {
	r := NewRetry(next, config.RetryConfig{MaxRetries: maxRetries}, nil)
	r.sleep = noSleep
	return r
}

func TestCalculateBackoff(t *testing.T) {
	cfg := config.RetryConfig{InitialBackoff: time.Second, MaxBackoff: 30 * time.Second}

	tests := []struct {
		attempt int
		want    time.Duration
	}{
		{0, 1 * time.Second},
		{1, 2 * time.Second},
		{2, 4 * time.Second},
		{3, 8 * time.Second},
		{4, 16 * time.Second},
		{5, 30 * time.Second},
		{10, 30 * time.Second},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, calculateBackoff(tt.attempt, cfg), "attempt %d", tt.attempt)
	}
}

func TestRetry(t *testing.T) {
	relay := domain.RelayError(502, "relay answered with an error page")
	reset := domain.TransportError(domain.CauseReset, "submit request failed", nil)
	failed := domain.CompilationFailed("! Emergency stop.")
	rejected := domain.UpstreamError(413, "service answered with an empty error response")
	protocol := domain.ProtocolError("status envelope has no recognisable status", nil)

	tests := []struct {
		name       string
		errs       []error
		maxRetries int
		wantCalls  int
		wantKind   domain.ErrorKind
	}{
		{"success first time", nil, 3, 1, ""},
		{"recovers after transient failures", []error{relay, reset}, 3, 3, ""},
		{"gives up after max retries", []error{relay, relay, relay, relay}, 3, 4, domain.KindRelayFailure},
		{"disabled by default", []error{reset}, 0, 1, domain.KindTransportUnreachable},
		{"compilation failure not retried", []error{failed}, 3, 1, domain.KindCompilationFailed},
		{"client error not retried", []error{rejected}, 3, 1, domain.KindUpstreamRejected},
		{"protocol violation not retried", []error{protocol}, 3, 1, domain.KindProtocolViolation},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			next := &scriptedCompiler{errs: append([]error(nil), tt.errs...)}

			artifact, err := newTestRetry(next, tt.maxRetries).Compile(context.Background(), "doc")
			assert.Equal(t, tt.wantCalls, next.calls)
			if tt.wantKind == "" {
				require.NoError(t, err)
				assert.Same(t, testArtifact, artifact)
				return
			}
			assert.Equal(t, tt.wantKind, domain.KindOf(err))
		})
	}
}

func TestRetry_CancelledWhileWaiting(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	next := &scriptedCompiler{errs: []error{domain.RelayError(503, "relay answered with an error page")}}
	r := NewRetry(next, config.RetryConfig{MaxRetries: 2, InitialBackoff: time.Hour}, nil)

	_, err := r.Compile(ctx, "doc")
	var ce *domain.CompilationError
	require.True(t, errors.As(err, &ce))
	assert.Equal(t, domain.CauseCancelled, ce.Cause)
	assert.Equal(t, 1, next.calls)
	assert.Equal(t, domain.KindRelayFailure, domain.AsCompilationError(ce.Err).Kind)
}

func TestFallback(t *testing.T) {
	failed := domain.CompilationFailed("! Undefined control sequence.")
	down := domain.TransportError(domain.CauseUnreachable, "submit request failed", nil)
	relay := domain.RelayError(502, "relay answered with an error page")

	tests := []struct {
		name      string
		script    [][]error
		stop      bool
		wantCalls []int
		wantKind  domain.ErrorKind
	}{
		{
			name:      "first backend succeeds",
			script:    [][]error{nil, nil},
			wantCalls: []int{1, 0},
		},
		{
			name:      "falls through to second backend",
			script:    [][]error{{down}, nil},
			wantCalls: []int{1, 1},
		},
		{
			name:      "all down reports last error",
			script:    [][]error{{down}, {relay}},
			wantCalls: []int{1, 1},
			wantKind:  domain.KindRelayFailure,
		},
		{
			name:      "compilation failure preferred over later outage",
			script:    [][]error{{failed}, {down}},
			wantCalls: []int{1, 1},
			wantKind:  domain.KindCompilationFailed,
		},
		{
			name:      "stop on diagnostic",
			script:    [][]error{{failed}, nil},
			stop:      true,
			wantCalls: []int{1, 0},
			wantKind:  domain.KindCompilationFailed,
		},
		{
			name:      "diagnostic without stop tries next backend",
			script:    [][]error{{failed}, nil},
			wantCalls: []int{1, 1},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			scripted := make([]*scriptedCompiler, len(tt.script))
			compilers := make([]domain.Compiler, len(tt.script))
			for i, errs := range tt.script {
				scripted[i] = &scriptedCompiler{endpoint: "https://backend", errs: errs}
				compilers[i] = scripted[i]
			}

			f, err := NewFallback(compilers, StopOnDiagnostic(tt.stop))
			require.NoError(t, err)

			artifact, err := f.Compile(context.Background(), "doc")
			for i, want := range tt.wantCalls {
				assert.Equal(t, want, scripted[i].calls, "backend %d", i)
			}
			if tt.wantKind == "" {
				require.NoError(t, err)
				assert.NotNil(t, artifact)
				return
			}
			assert.Equal(t, tt.wantKind, domain.KindOf(err))
		})
	}
}

func TestFallback_StopsWhenCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	first := &scriptedCompiler{errs: []error{domain.TransportError(domain.CauseCancelled, "compilation cancelled", nil)}}
	second := &scriptedCompiler{}

	f, err := NewFallback([]domain.Compiler{first, second})
	require.NoError(t, err)

	_, err = f.Compile(ctx, "doc")
	assert.Equal(t, domain.KindTransportUnreachable, domain.KindOf(err))
	assert.Equal(t, 0, second.calls)
}

func TestNewFallback_Empty(t *testing.T) {
	_, err := NewFallback(nil)
	require.Error(t, err)
}
