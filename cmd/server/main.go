// Package main is the entry point for the multichain payment backend: balances, token metadata
// and fee estimates for Solana, Ethereum, Polygon, Base and Bitcoin, served over HTTP with
// automatic fallback across public RPC endpoints.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
	"github.com/yourorg/multichain-pay/internal/balance"
	"github.com/yourorg/multichain-pay/internal/cache"
	"github.com/yourorg/multichain-pay/internal/config"
	"github.com/yourorg/multichain-pay/internal/fallback"
	"github.com/yourorg/multichain-pay/internal/fee"
	"github.com/yourorg/multichain-pay/internal/fetch"
	"github.com/yourorg/multichain-pay/internal/health"
	"github.com/yourorg/multichain-pay/internal/metrics"
	"github.com/yourorg/multichain-pay/internal/otel"
	"golang.org/x/time/rate"
)

// startTime records when the service was initialized for uptime reporting
var startTime = time.Now()

// main is the entry point for the application
func main() {
	cfg, err := config.Load()
	if err != nil {
		logrus.Fatalf("Failed to load configuration: %v", err)
	}

	// Configure logging
	setupLogging(cfg.LogFormat, cfg.LogLevel)

	shutdownTracer := otel.InitTracer(cfg.OtelEndpoint)
	defer shutdownTracer()

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	recorder := metrics.NewPrometheusRecorder(reg)

	tracker := health.New().
		WithRetryDelay(cfg.RetryDelay).
		WithStateCallback(func(key health.Key, healthy bool) {
			recorder.SetEndpointHealth(key.Chain, key.Endpoint, healthy)
		})
	executor := fallback.NewExecutor(tracker).WithRecorder(recorder)
	results := cache.New().WithRecorder(recorder)

	solanaClient := fetch.NewSolanaClient()
	evmClient := fetch.NewEVMClient()
	defer evmClient.Close()
	bitcoinClient := fetch.NewBitcoinClient(cfg.UpstreamTimeout)

	server := NewServer(
		cfg,
		balance.NewService(cfg, executor, results, solanaClient, evmClient, bitcoinClient),
		fee.NewService(cfg, executor, results, evmClient, solanaClient, bitcoinClient),
		tracker,
		recorder,
		promhttp.HandlerFor(reg, promhttp.HandlerOpts{}),
	)
	server.Start()
}

// setupLogging configures the logging for the application
func setupLogging(format, level string) {
	// Set log formatter based on environment
	switch format {
	case "json":
		logrus.SetFormatter(&logrus.JSONFormatter{})
	default:
		logrus.SetFormatter(&logrus.TextFormatter{
			FullTimestamp: true,
		})
	}

	// Set log level based on environment
	switch level {
	case "debug":
		logrus.SetLevel(logrus.DebugLevel)
	case "info":
		logrus.SetLevel(logrus.InfoLevel)
	case "warn", "warning":
		logrus.SetLevel(logrus.WarnLevel)
	case "error":
		logrus.SetLevel(logrus.ErrorLevel)
	default:
		logrus.SetLevel(logrus.InfoLevel)
	}

	logrus.Info("Logging configured")
}

// Server is the HTTP API
type Server struct {
	config   config.Config
	balances BalanceService
	fees     FeeService
	tracker  *health.Tracker
	recorder metrics.Recorder
	metrics  http.Handler
	limiter  *rate.Limiter
	server   *http.Server
}

// NewServer creates a server; a non-positive RateLimitRPS disables rate limiting
func NewServer(cfg config.Config, balances BalanceService, fees FeeService, tracker *health.Tracker, recorder metrics.Recorder, metricsHandler http.Handler) *Server {
	s := &Server{
		config:   cfg,
		balances: balances,
		fees:     fees,
		tracker:  tracker,
		recorder: recorder,
		metrics:  metricsHandler,
	}
	if cfg.RateLimitRPS > 0 {
		s.limiter = rate.NewLimiter(rate.Limit(cfg.RateLimitRPS), cfg.RateLimitBurst)
	}

	chains := make([]string, 0, len(cfg.Chains))
	for chain, cc := range cfg.Chains {
		if cc.Enabled {
			chains = append(chains, string(chain))
		}
	}

	logrus.WithFields(logrus.Fields{
		"port":            cfg.Port,
		"chains":          chains,
		"retry_delay":     cfg.RetryDelay,
		"request_timeout": cfg.RequestTimeout,
		"rate_limit_rps":  cfg.RateLimitRPS,
	}).Info("Server initialized")

	return s
}

// Routes builds the HTTP handler
func (s *Server) Routes() http.Handler {
	mux := http.NewServeMux()

	s.handle(mux, "GET /balance", s.handleBalance)
	s.handle(mux, "GET /tokens", s.handleTokenBalances)
	s.handle(mux, "GET /tokens/info", s.handleTokenInfo)
	s.handle(mux, "GET /fees/evm", s.handleGasSchedule)
	s.handle(mux, "GET /fees/evm/quote", s.handleFeeQuote)
	s.handle(mux, "GET /fees/solana", s.handleSolanaFee)
	s.handle(mux, "GET /fees/bitcoin", s.handleBitcoinFees)
	s.handle(mux, "GET /endpoints", s.handleEndpoints)
	s.handle(mux, "POST /endpoints/reset", s.handleEndpointsReset)
	s.handle(mux, "POST /cache/invalidate", s.handleCacheInvalidate)
	mux.HandleFunc("GET /health", s.handleHealth)
	if s.metrics != nil {
		mux.Handle("GET /metrics", s.metrics)
	}

	return withRequestID(mux)
}

// Start begins the HTTP server and sets up graceful shutdown
func (s *Server) Start() {
	// Configure server with timeouts
	s.server = &http.Server{
		Addr:         ":" + s.config.Port,
		Handler:      s.Routes(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: s.config.RequestTimeout + 5*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start the server in a goroutine
	go func() {
		logrus.Infof("Server starting on port %s", s.config.Port)
		if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logrus.Fatalf("Error starting server: %v", err)
		}
	}()

	// Wait for interrupt signal to gracefully shut down the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logrus.Info("Server shutting down...")
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := s.server.Shutdown(ctx); err != nil {
		logrus.Errorf("Server shutdown failed: %v", err)
	}

	logrus.Info("Server stopped")
}
