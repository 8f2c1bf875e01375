package fallback

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// Coder is implemented by errors that carry a numeric status or JSON-RPC code.
// go-ethereum JSON-RPC errors satisfy it as well.
type Coder interface {
	ErrorCode() int
}

// RPCError is an endpoint failure with an optional code (0 means no code).
// Adapters use it to keep HTTP statuses and JSON-RPC codes visible to classification.
type RPCError struct {
	Code    int
	Message string
	Err     error
}

// NewRPCError builds an RPCError with a formatted message
func NewRPCError(code int, format string, args ...interface{}) *RPCError {
	return &RPCError{Code: code, Message: fmt.Sprintf(format, args...)}
}

func (e *RPCError) Error() string {
	if e.Message == "" && e.Err != nil {
		return e.Err.Error()
	}
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *RPCError) ErrorCode() int { return e.Code }

func (e *RPCError) Unwrap() error { return e.Err }

// AttemptError is what one failed attempt left behind
type AttemptError struct {
	Endpoint string `json:"endpoint"`
	Message  string `json:"error"`
	Code     int    `json:"code,omitempty"`
}

// AggregateError is returned when every candidate endpoint failed
type AggregateError struct {
	Chain   string         `json:"chain"`
	Details []AttemptError `json:"details"`

	cause error
}

func (e *AggregateError) Error() string {
	parts := make([]string, 0, len(e.Details))
	for _, d := range e.Details {
		parts = append(parts, fmt.Sprintf("%s (%s)", d.Endpoint, d.Message))
	}
	return fmt.Sprintf("All RPC endpoints failed for %s: %s", e.Chain, strings.Join(parts, "; "))
}

// Unwrap exposes the context error when the call was abandoned early
func (e *AggregateError) Unwrap() error { return e.cause }

// ErrNoEndpoints is wrapped when a chain has no configured endpoints
var ErrNoEndpoints = errors.New("no endpoints configured")

// ErrorCode extracts a numeric code from err, or 0
func ErrorCode(err error) int {
	var coder Coder
	if errors.As(err, &coder) {
		return coder.ErrorCode()
	}
	return 0
}

// IsTemporaryError reports whether err is an endpoint-level overload failure
// (rate limited or forbidden) as opposed to a request-level failure.
func IsTemporaryError(err error) bool {
	if err == nil {
		return false
	}

	code := ErrorCode(err)
	message := err.Error()
	lower := strings.ToLower(message)

	switch {
	case code == http.StatusTooManyRequests || strings.Contains(message, "429"):
		return true
	case code == http.StatusForbidden || strings.Contains(message, "403"):
		return true
	case strings.Contains(lower, "too many requests"):
		return true
	case strings.Contains(lower, "rate limit"):
		return true
	}
	return false
}
