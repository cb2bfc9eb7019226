package transport

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"io"
	"net"
	"syscall"

	"github.com/spherical/pdf-compiler/internal/domain"
)

// classifyError maps a failed round-trip onto a transport cause. The
// caller's context is consulted first so that a deadline or cancellation is
// reported as such even when the client wraps it in something else.
func classifyError(ctx context.Context, err error, message string) *domain.CompilationError {
	return domain.TransportError(causeOf(ctx, err), message, err)
}

func causeOf(ctx context.Context, err error) domain.TransportCause {
	switch {
	case errors.Is(ctx.Err(), context.Canceled), errors.Is(err, context.Canceled):
		return domain.CauseCancelled
	case errors.Is(ctx.Err(), context.DeadlineExceeded), errors.Is(err, context.DeadlineExceeded):
		return domain.CauseTimeout
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return domain.CauseTimeout
	}

	if isReset(err) {
		return domain.CauseReset
	}

	if isTLS(err) {
		return domain.CauseTLS
	}

	return domain.CauseUnreachable
}

// isReset reports whether the peer was reached but dropped the connection.
func isReset(err error) bool {
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) || errors.Is(err, net.ErrClosed) {
		return true
	}
	var errno syscall.Errno
	if errors.As(err, &errno) {
		return errno == syscall.ECONNRESET || errno == syscall.EPIPE || errno == syscall.ECONNABORTED
	}
	return false
}

func isTLS(err error) bool {
	var (
		recordErr   tls.RecordHeaderError
		verifyErr   *tls.CertificateVerificationError
		authority   x509.UnknownAuthorityError
		hostname    x509.HostnameError
		invalidCert x509.CertificateInvalidError
	)
	return errors.As(err, &recordErr) ||
		errors.As(err, &verifyErr) ||
		errors.As(err, &authority) ||
		errors.As(err, &hostname) ||
		errors.As(err, &invalidCert)
}
