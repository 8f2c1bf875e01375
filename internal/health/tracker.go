// Package health tracks per-endpoint health for every chain and decides which RPC endpoints
// are currently eligible to be tried.
package health

import (
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/yourorg/multichain-pay/internal/clock"
)

// DefaultRetryDelay is how long an unhealthy endpoint is skipped before it becomes eligible again
const DefaultRetryDelay = 5 * time.Second

// Key identifies one upstream endpoint within one logical chain
type Key struct {
	Chain    string
	Endpoint string
}

// Status is the health record of a single endpoint.
// A healthy status never carries LastFailedAt; an unhealthy one always does.
type Status struct {
	Healthy       bool       `json:"is_healthy"`
	LastFailedAt  *time.Time `json:"last_failed_at"`
	LastCheckedAt *time.Time `json:"last_checked_at"`
}

// Tracker keeps the health map for all chains.
// Records are created lazily; an endpoint without a record is assumed healthy.
type Tracker struct {
	mu sync.RWMutex

	statuses map[Key]Status

	// Duration an unhealthy endpoint sits out before it is retried
	retryDelay time.Duration

	clock clock.Clock

	// Called after every mark, e.g. to export a health gauge
	onStateChange func(key Key, healthy bool)
}

// New creates a Tracker with the default retry delay and the wall clock
func New() *Tracker {
	return &Tracker{
		statuses:   make(map[Key]Status),
		retryDelay: DefaultRetryDelay,
		clock:      clock.Real{},
	}
}

// WithRetryDelay sets a custom recovery window and returns the tracker
func (t *Tracker) WithRetryDelay(delay time.Duration) *Tracker {
	t.retryDelay = delay
	return t
}

// WithClock replaces the time source and returns the tracker
func (t *Tracker) WithClock(c clock.Clock) *Tracker {
	t.clock = c
	return t
}

// WithStateCallback sets a function that is called whenever an endpoint is marked
func (t *Tracker) WithStateCallback(callback func(key Key, healthy bool)) *Tracker {
	t.onStateChange = callback
	return t
}

// RetryDelay returns the configured recovery window
func (t *Tracker) RetryDelay() time.Duration {
	return t.retryDelay
}

// MarkHealthy records a successful call against the endpoint and forgets any earlier failure
func (t *Tracker) MarkHealthy(chain, endpoint string) {
	now := t.clock.Now()
	key := Key{Chain: chain, Endpoint: endpoint}

	t.mu.Lock()
	prev, existed := t.statuses[key]
	t.statuses[key] = Status{Healthy: true, LastCheckedAt: &now}
	t.mu.Unlock()

	if existed && !prev.Healthy {
		logrus.WithFields(logrus.Fields{"chain": chain, "endpoint": endpoint}).Info("Endpoint recovered")
	}
	t.notify(key, true)
}

// MarkUnhealthy records a temporary failure; the endpoint is skipped until the retry delay elapses
func (t *Tracker) MarkUnhealthy(chain, endpoint string) {
	now := t.clock.Now()
	key := Key{Chain: chain, Endpoint: endpoint}

	t.mu.Lock()
	t.statuses[key] = Status{Healthy: false, LastFailedAt: &now}
	t.mu.Unlock()

	logrus.WithFields(logrus.Fields{
		"chain":       chain,
		"endpoint":    endpoint,
		"retry_delay": t.retryDelay,
	}).Warn("Endpoint marked unhealthy")
	t.notify(key, false)
}

// HealthyEndpoints returns the endpoints that may be tried right now, in their input order.
// An unhealthy endpoint is eligible again once more than retryDelay has passed since it failed.
func (t *Tracker) HealthyEndpoints(chain string, endpoints []string) []string {
	now := t.clock.Now()

	t.mu.RLock()
	defer t.mu.RUnlock()

	eligible := make([]string, 0, len(endpoints))
	for _, endpoint := range endpoints {
		status, ok := t.statuses[Key{Chain: chain, Endpoint: endpoint}]
		if !ok || status.Healthy {
			eligible = append(eligible, endpoint)
			continue
		}
		if status.LastFailedAt != nil && now.Sub(*status.LastFailedAt) > t.retryDelay {
			eligible = append(eligible, endpoint)
		}
	}
	return eligible
}

// Status returns a snapshot for the given endpoints. Untracked endpoints report healthy
// with no timestamps.
func (t *Tracker) Status(chain string, endpoints []string) map[string]Status {
	t.mu.RLock()
	defer t.mu.RUnlock()

	out := make(map[string]Status, len(endpoints))
	for _, endpoint := range endpoints {
		status, ok := t.statuses[Key{Chain: chain, Endpoint: endpoint}]
		if !ok {
			out[endpoint] = Status{Healthy: true}
			continue
		}
		out[endpoint] = copyStatus(status)
	}
	return out
}

// Reset forgets every tracked endpoint
func (t *Tracker) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.statuses = make(map[Key]Status)
	logrus.Info("Endpoint health status reset")
}

func (t *Tracker) notify(key Key, healthy bool) {
	if t.onStateChange != nil {
		t.onStateChange(key, healthy)
	}
}

// copyStatus detaches the timestamps so callers cannot mutate tracker state
func copyStatus(s Status) Status {
	out := Status{Healthy: s.Healthy}
	if s.LastFailedAt != nil {
		ts := *s.LastFailedAt
		out.LastFailedAt = &ts
	}
	if s.LastCheckedAt != nil {
		ts := *s.LastCheckedAt
		out.LastCheckedAt = &ts
	}
	return out
}
