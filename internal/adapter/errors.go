package adapter

import (
	"errors"
	"fmt"
	"net/http"
	"time"
)

// Kind tags a provider failure so callers can branch without matching
// message strings.
type Kind string

const (
	KindConfiguration  Kind = "configuration"
	KindValidation     Kind = "validation"
	KindAuthentication Kind = "authentication"
	KindPermission     Kind = "permission"
	KindRateLimited    Kind = "rate_limited"
	KindUnavailable    Kind = "service_unavailable"
	KindProvider       Kind = "provider"
)

// MaxRetries caps rate-limit retries. The adapter never loops internally;
// the caller owns the loop and the attempt counter.
const MaxRetries = 3

// Error carries kind + original status + message, enough structure for the
// caller to decide whether to retry.
type Error struct {
	Kind    Kind
	Status  int
	Message string
}

func (e *Error) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("%s: %s (status %d)", e.Kind, e.Message, e.Status)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// Retryable reports whether the caller may retry with backoff. Only rate
// limits qualify: 5xx is surfaced for the caller's own policy, everything
// else is fatal.
func (e *Error) Retryable() bool {
	return e.Kind == KindRateLimited
}

// BackoffDelay computes the rate-limit retry delay for a zero-based
// attempt: 2^attempt seconds.
func BackoffDelay(attempt int) time.Duration {
	return time.Duration(1<<uint(attempt)) * time.Second
}

// Classify maps a non-2xx provider status to the error taxonomy.
func Classify(status int, message string) *Error {
	switch {
	case status == http.StatusTooManyRequests:
		return &Error{Kind: KindRateLimited, Status: status, Message: message}
	case status == http.StatusUnauthorized:
		return &Error{Kind: KindAuthentication, Status: status, Message: "invalid API key or authentication failed"}
	case status == http.StatusForbidden:
		return &Error{Kind: KindPermission, Status: status, Message: "access forbidden - check API permissions"}
	case status >= 500:
		return &Error{Kind: KindUnavailable, Status: status, Message: "AI service temporarily unavailable"}
	default:
		return &Error{Kind: KindProvider, Status: status, Message: message}
	}
}

// IsKind reports whether err is an adapter Error of the given kind.
func IsKind(err error, kind Kind) bool {
	var e *Error
	return errors.As(err, &e) && e.Kind == kind
}
