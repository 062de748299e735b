// Package api serves the HTTP interface: connection pairing, delegate key
// registration and the sign request queue of the signing device.
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/better-wallet/webconnect/internal/logger"
	"github.com/better-wallet/webconnect/internal/metrics"
	"github.com/better-wallet/webconnect/internal/middleware"
	apperrors "github.com/better-wallet/webconnect/pkg/errors"
)

// Options configures a Server
type Options struct {
	Port int

	// Metrics, when set, is served on /metrics and counts requests
	Metrics     *metrics.Metrics
	RateLimiter *middleware.RateLimiter

	// Ping reports database health on /health
	Ping func(ctx context.Context) error
}

// Server represents the HTTP server
type Server struct {
	opts         Options
	connections  Connections
	delegates    Delegates
	ownerKeys    OwnerKeys
	signRequests SignRequests
	httpServer   *http.Server
}

// NewServer creates a new API server
func NewServer(opts Options, connections Connections, delegates Delegates, ownerKeys OwnerKeys, signRequests SignRequests) *Server {
	return &Server{
		opts:         opts,
		connections:  connections,
		delegates:    delegates,
		ownerKeys:    ownerKeys,
		signRequests: signRequests,
	}
}

// Handler returns the routes wrapped in the middleware chain
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", s.handleHealth)
	if s.opts.Metrics != nil {
		mux.Handle("GET /metrics", s.opts.Metrics.Handler())
	}

	mux.HandleFunc("POST /v1/connections", s.handleConnect)
	mux.HandleFunc("GET /v1/connections", s.handleListConnections)
	mux.HandleFunc("GET /v1/connections/{id}", s.handleGetConnection)
	mux.HandleFunc("POST /v1/connections/{id}/handshake", s.handleHandshake)
	mux.HandleFunc("POST /v1/connections/{id}/approve", s.handleApprove)
	mux.HandleFunc("POST /v1/connections/{id}/reject", s.handleReject)
	mux.HandleFunc("POST /v1/connections/{id}/disconnect", s.handleDisconnect)
	mux.HandleFunc("GET /v1/connections/{id}/session", s.handleSession)
	mux.HandleFunc("POST /v1/connections/{id}/requests", s.handleReceiveRequest)
	mux.HandleFunc("GET /v1/connections/{id}/requests", s.handlePendingRequests)
	mux.HandleFunc("POST /v1/connections/{id}/responses", s.handleRespond)

	mux.HandleFunc("POST /v1/owner-keys", s.handleCreateOwnerKey)
	mux.HandleFunc("GET /v1/owner-keys", s.handleListOwnerKeys)
	mux.HandleFunc("GET /v1/owner-keys/{address}", s.handleGetOwnerKey)
	mux.HandleFunc("POST /v1/owner-keys/{address}/delegate", s.handleRegisterDelegate)
	mux.HandleFunc("GET /v1/owner-keys/{address}/delegate", s.handleDelegateStatus)

	mux.HandleFunc("GET /v1/sign-requests", s.handleListSignRequests)
	mux.HandleFunc("GET /v1/sign-requests/{id}", s.handleGetSignRequest)
	mux.HandleFunc("POST /v1/sign-requests/{id}/signature", s.handleSubmitSignature)
	mux.HandleFunc("POST /v1/sign-requests/{id}/cancel", s.handleCancelSignRequest)
	mux.HandleFunc("POST /v1/sign-requests/{id}/reject", s.handleRejectSignRequest)

	// Chain: RequestID -> RateLimit -> LimitBody -> AccessLog -> Routes
	var h http.Handler = middleware.AccessLog(s.opts.Metrics)(mux)
	h = middleware.LimitBody(h)
	h = s.opts.RateLimiter.Limit(h)
	return middleware.RequestID(h)
}

// Start starts the HTTP server
func (s *Server) Start() error {
	// the write timeout covers a synchronous delegate registration, which
	// waits for the signing device
	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf(":%d", s.opts.Port),
		Handler:      s.Handler(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 5 * time.Minute,
		IdleTimeout:  60 * time.Second,
	}

	logger.Info(context.Background(), "starting server", "port", s.opts.Port)
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}
	return s.httpServer.Shutdown(ctx)
}

// handleHealth handles health check requests
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if s.opts.Ping != nil {
		if err := s.opts.Ping(r.Context()); err != nil {
			logger.Error(r.Context(), "health check failed", "error", err)
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// writeJSON writes a JSON response
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

// writeError writes err as an AppError. Errors that are not AppErrors are
// logged and reported as internal errors without their detail.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	appErr, ok := apperrors.IsAppError(err)
	if !ok || appErr.StatusCode >= http.StatusInternalServerError {
		logger.Error(r.Context(), "request failed", "method", r.Method, "path", r.URL.Path, "error", err)
	}
	if !ok {
		appErr = apperrors.ErrInternalError
	}
	writeJSON(w, appErr.StatusCode, appErr)
}

// decodeJSON decodes the request body into v
func decodeJSON(r *http.Request, v any) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return apperrors.ErrBadRequest.WithDetail(fmt.Sprintf("invalid request body: %v", err))
	}
	return nil
}
