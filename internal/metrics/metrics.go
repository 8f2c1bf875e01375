// Package metrics records RPC fallback, endpoint health and cache activity.
package metrics

import "time"

// Attempt outcomes
const (
	OutcomeSuccess   = "success"
	OutcomeTemporary = "temporary_error"
	OutcomeRequest   = "request_error"
)

// Recorder is implemented by every metrics backend
type Recorder interface {
	// ObserveAttempt records one call against one endpoint
	ObserveAttempt(chain, outcome string, d time.Duration)
	// IncFallbackFailure records a call in which every endpoint failed
	IncFallbackFailure(chain string)
	// SetEndpointHealth exports the current health flag of an endpoint
	SetEndpointHealth(chain, endpoint string, healthy bool)
	// IncCacheLookup records a cache hit or miss for a data class
	IncCacheLookup(class string, hit bool)
	// IncHTTPRequest records a served API request
	IncHTTPRequest(route string, status int)
}
