package resilience

import (
	"context"
	"errors"
	"net"
	"net/http"
	"syscall"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// StatusCoder is implemented by errors that carry an HTTP status code.
type StatusCoder interface {
	HTTPStatus() int
}

// IsTransient reports whether err is worth a single retry: network failures,
// per-call timeouts, gRPC Unavailable/DeadlineExceeded/Aborted and HTTP 5xx.
// Quota, auth, client errors, an open breaker and caller cancellation are
// never transient.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, ErrCircuitOpen) || errors.Is(err, ErrRateLimited) {
		return false
	}
	if IsQuota(err) || IsAuth(err) {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}

	var sc StatusCoder
	if errors.As(err, &sc) {
		return sc.HTTPStatus() >= 500
	}

	if st, ok := status.FromError(err); ok && st.Code() != codes.Unknown {
		switch st.Code() {
		case codes.Unavailable, codes.DeadlineExceeded, codes.Aborted:
			return true
		default:
			return false
		}
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}
	return errors.Is(err, syscall.ECONNREFUSED) || errors.Is(err, syscall.ECONNRESET)
}

// IsQuota reports whether err signals an exhausted quota or rate limit upstream.
func IsQuota(err error) bool {
	var sc StatusCoder
	if errors.As(err, &sc) && sc.HTTPStatus() == http.StatusTooManyRequests {
		return true
	}
	if st, ok := status.FromError(err); ok && st.Code() == codes.ResourceExhausted {
		return true
	}
	return false
}

// IsAuth reports whether err is an authentication or authorization failure.
func IsAuth(err error) bool {
	var sc StatusCoder
	if errors.As(err, &sc) {
		code := sc.HTTPStatus()
		return code == http.StatusUnauthorized || code == http.StatusForbidden
	}
	if st, ok := status.FromError(err); ok {
		return st.Code() == codes.Unauthenticated || st.Code() == codes.PermissionDenied
	}
	return false
}
