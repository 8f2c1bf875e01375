package metrics

import "time"

type NoopRecorder struct{}

func (NoopRecorder) ObserveAttempt(string, string, time.Duration) {}
func (NoopRecorder) IncFallbackFailure(string)                    {}
func (NoopRecorder) SetEndpointHealth(string, string, bool)       {}
func (NoopRecorder) IncCacheLookup(string, bool)                  {}
func (NoopRecorder) IncHTTPRequest(string, int)                   {}
