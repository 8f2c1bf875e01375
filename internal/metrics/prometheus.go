package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "walletpay"

// PrometheusRecorder exports metrics through client_golang
type PrometheusRecorder struct {
	attempts         *prometheus.CounterVec
	attemptDuration  *prometheus.HistogramVec
	fallbackFailures *prometheus.CounterVec
	endpointHealthy  *prometheus.GaugeVec
	cacheLookups     *prometheus.CounterVec
	httpRequests     *prometheus.CounterVec
}

// NewPrometheusRecorder creates the collectors and registers them with reg.
// Pass prometheus.DefaultRegisterer to expose them on the default /metrics handler.
func NewPrometheusRecorder(reg prometheus.Registerer) *PrometheusRecorder {
	p := &PrometheusRecorder{
		attempts: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "rpc_attempts_total",
				Help:      "RPC attempts by chain and outcome",
			},
			[]string{"chain", "outcome"},
		),
		attemptDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "rpc_attempt_duration_seconds",
				Help:      "Latency of a single RPC attempt",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"chain"},
		),
		fallbackFailures: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "rpc_fallback_failures_total",
				Help:      "Calls in which every configured endpoint failed",
			},
			[]string{"chain"},
		),
		endpointHealthy: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "endpoint_healthy",
				Help:      "Endpoint health flag (1=healthy, 0=unhealthy)",
			},
			[]string{"chain", "endpoint"},
		),
		cacheLookups: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "cache_lookups_total",
				Help:      "Result cache lookups by data class",
			},
			[]string{"class", "result"},
		),
		httpRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "http_requests_total",
				Help:      "API requests by route and status code",
			},
			[]string{"route", "status"},
		),
	}

	reg.MustRegister(
		p.attempts,
		p.attemptDuration,
		p.fallbackFailures,
		p.endpointHealthy,
		p.cacheLookups,
		p.httpRequests,
	)
	return p
}

func (p *PrometheusRecorder) ObserveAttempt(chain, outcome string, d time.Duration) {
	p.attempts.WithLabelValues(chain, outcome).Inc()
	p.attemptDuration.WithLabelValues(chain).Observe(d.Seconds())
}

func (p *PrometheusRecorder) IncFallbackFailure(chain string) {
	p.fallbackFailures.WithLabelValues(chain).Inc()
}

func (p *PrometheusRecorder) SetEndpointHealth(chain, endpoint string, healthy bool) {
	v := 0.0
	if healthy {
		v = 1.0
	}
	p.endpointHealthy.WithLabelValues(chain, endpoint).Set(v)
}

func (p *PrometheusRecorder) IncCacheLookup(class string, hit bool) {
	result := "miss"
	if hit {
		result = "hit"
	}
	p.cacheLookups.WithLabelValues(class, result).Inc()
}

func (p *PrometheusRecorder) IncHTTPRequest(route string, status int) {
	p.httpRequests.WithLabelValues(route, strconv.Itoa(status)).Inc()
}
