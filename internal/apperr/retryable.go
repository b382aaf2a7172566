package apperr

import (
	"context"
	"errors"
	"net"
	"syscall"
)

// Retryable reports whether an error belongs to the transient
// connectivity/timeout class. Validation, not-found, duplicate and
// authentication failures are terminal and must never be retried.
func Retryable(err error) bool {
	if err == nil {
		return false
	}

	var e *Error
	if errors.As(err, &e) {
		switch e.Code {
		case CodeDatabase, CodeConnection:
			return e.Cause == nil || retryableCause(e.Cause)
		default:
			return false
		}
	}

	return retryableCause(err)
}

func retryableCause(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}

	return errors.Is(err, syscall.ECONNREFUSED) ||
		errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, syscall.EPIPE) ||
		errors.Is(err, syscall.ETIMEDOUT)
}
