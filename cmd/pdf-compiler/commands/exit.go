package commands

import (
	"errors"

	"github.com/spherical/pdf-compiler/internal/domain"
)

// Exit codes of the compile command.
const (
	ExitOK                 = 0
	ExitCompilationFailed  = 1
	ExitServiceUnavailable = 2
	ExitProtocolViolation  = 3
)

// exitError carries a process exit code for an error that was already
// reported to the user.
type exitError struct {
	code int
	err  error
}

func (e *exitError) Error() string { return e.err.Error() }
func (e *exitError) Unwrap() error { return e.err }

// Reported tells main whether err has already been shown to the user.
func Reported(err error) bool {
	var ee *exitError
	return errors.As(err, &ee)
}

// ExitCode returns the process exit status for err.
func ExitCode(err error) int {
	if err == nil {
		return ExitOK
	}
	var ee *exitError
	if errors.As(err, &ee) {
		return ee.code
	}
	return 1
}

func exitCodeFor(err *domain.CompilationError) int {
	switch err.Kind {
	case domain.KindCompilationFailed:
		return ExitCompilationFailed
	case domain.KindTransportUnreachable, domain.KindRelayFailure, domain.KindUpstreamRejected:
		return ExitServiceUnavailable
	default:
		return ExitProtocolViolation
	}
}
