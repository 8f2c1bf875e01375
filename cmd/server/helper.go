package main

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/yourorg/multichain-pay/internal/fallback"
	"github.com/yourorg/multichain-pay/internal/validation"
)

// requestIDHeader carries the request id in both directions
const requestIDHeader = "X-Request-ID"

type contextKey string

const requestIDKey contextKey = "request_id"

// ErrorResponse is the body of every failed request
type ErrorResponse struct {
	Status  string                  `json:"status"`
	Error   string                  `json:"error"`
	Details []fallback.AttemptError `json:"details,omitempty"`
}

// withRequestID reuses the caller's request id or assigns a new one
func withRequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(requestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set(requestIDHeader, id)
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), requestIDKey, id)))
	})
}

// requestLogger returns a logger tagged with the request id
func requestLogger(r *http.Request) *logrus.Entry {
	id, _ := r.Context().Value(requestIDKey).(string)
	return logrus.WithFields(logrus.Fields{
		"request_id": id,
		"path":       r.URL.Path,
	})
}

// statusWriter remembers the status code written
type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(status int) {
	w.status = status
	w.ResponseWriter.WriteHeader(status)
}

// handle registers an API route with rate limiting, the request timeout and metrics
func (s *Server) handle(mux *http.ServeMux, pattern string, h http.HandlerFunc) {
	mux.HandleFunc(pattern, func(w http.ResponseWriter, r *http.Request) {
		sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		defer func() { s.recorder.IncHTTPRequest(pattern, sw.status) }()

		if s.limiter != nil && !s.limiter.Allow() {
			s.errorResponse(sw, r, http.StatusTooManyRequests, errors.New("rate limit exceeded"))
			return
		}

		if s.config.RequestTimeout > 0 {
			ctx, cancel := context.WithTimeout(r.Context(), s.config.RequestTimeout)
			defer cancel()
			r = r.WithContext(ctx)
		}
		h(sw, r)
	})
}

// writeJSON sends v with the given status
func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logrus.Warnf("Failed to encode response: %v", err)
	}
}

// errorResponse returns a formatted error response
func (s *Server) errorResponse(w http.ResponseWriter, r *http.Request, statusCode int, err error) {
	requestLogger(r).WithField("status", statusCode).Warn(err.Error())

	response := ErrorResponse{Status: "error", Error: err.Error()}
	var aggErr *fallback.AggregateError
	if errors.As(err, &aggErr) {
		response.Details = aggErr.Details
	}
	writeJSON(w, statusCode, response)
}

// statusForError maps caller mistakes to 400 and upstream failures to 502
func statusForError(err error) int {
	switch {
	case errors.Is(err, validation.ErrInvalidAddress),
		errors.Is(err, validation.ErrUnsupportedCurrency),
		errors.Is(err, validation.ErrInvalidAmount):
		return http.StatusBadRequest
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusBadGateway
	}
}
