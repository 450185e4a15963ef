// Package httpapi serves the bridge over HTTP.
//
// Routes:
//   - GET /healthz - liveness probe, unauthenticated
//   - POST /v1/bridge - one bridge request in the body, the reply in the
//     response. Requires a bearer token when JWT is configured.
//
// A bridge-level failure is still a 200 response whose reply carries the
// error. Non-200 statuses report transport problems only.
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/marmos91/fsbridge/internal/logger"
	"github.com/marmos91/fsbridge/pkg/metrics"
	"github.com/marmos91/fsbridge/pkg/transport"
)

const (
	protocolName = "http"

	// BridgePath is the endpoint accepting bridge requests.
	BridgePath = "/v1/bridge"

	// HealthPath answers 200 without authentication.
	HealthPath = "/healthz"
)

// Config configures the HTTP transport adapter. Zero values are replaced
// by ApplyDefaults.
type Config struct {
	// Enabled turns the adapter on
	Enabled bool `mapstructure:"enabled"`

	// Address is the listen address (default 127.0.0.1:7879)
	Address string `mapstructure:"address"`

	// ReadTimeout and WriteTimeout are passed to http.Server
	ReadTimeout  time.Duration `mapstructure:"read_timeout" validate:"min=0"`
	WriteTimeout time.Duration `mapstructure:"write_timeout" validate:"min=0"`

	// RequestTimeout bounds the handling of one request.
	RequestTimeout time.Duration `mapstructure:"request_timeout" validate:"min=0"`

	// ShutdownTimeout bounds the graceful shutdown after ctx ends
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" validate:"min=0"`

	// MaxBodySize bounds a request body in bytes.
	MaxBodySize int64 `mapstructure:"max_body_size" validate:"min=0"`

	// JWT enables bearer authentication when its secret is set
	JWT JWTConfig `mapstructure:"jwt"`
}

// ApplyDefaults fills every zero field. The body limit leaves room for a
// base64 encoded save of a full writable stream.
func (c *Config) ApplyDefaults() {
	if c.Address == "" {
		c.Address = "127.0.0.1:7879"
	}
	if c.ReadTimeout == 0 {
		c.ReadTimeout = 30 * time.Second
	}
	if c.WriteTimeout == 0 {
		c.WriteTimeout = 60 * time.Second
	}
	if c.RequestTimeout == 0 {
		c.RequestTimeout = 60 * time.Second
	}
	if c.ShutdownTimeout == 0 {
		c.ShutdownTimeout = 10 * time.Second
	}
	if c.MaxBodySize == 0 {
		c.MaxBodySize = 96 << 20
	}
}

// Server is the HTTP transport adapter.
type Server struct {
	config  Config
	handler transport.Handler
	auth    *Authenticator
	metrics metrics.TransportMetrics

	server   *http.Server
	listener net.Listener
	ready    chan struct{}
	conns    atomic.Int32
}

// NewServer creates the HTTP adapter. It does not listen until Serve.
//
// Parameters:
//   - config: Adapter configuration; defaults are applied to a copy
//   - m: Transport metrics, nil for none
//
// Returns:
//   - *Server: The adapter, still without a handler
//   - error: If the JWT configuration is invalid
//
// A missing JWT secret is not an error: requests are then accepted
// unauthenticated and a warning is logged.
func NewServer(config Config, m metrics.TransportMetrics) (*Server, error) {
	config.ApplyDefaults()

	var auth *Authenticator
	if config.JWT.Secret != "" {
		a, err := NewAuthenticator(config.JWT)
		if err != nil {
			return nil, fmt.Errorf("invalid http config: %w", err)
		}
		auth = a
	} else {
		logger.Warn("HTTP transport has no JWT secret: requests are not authenticated")
	}

	if m == nil {
		m = metrics.NewNoop()
	}

	s := &Server{
		config:  config,
		auth:    auth,
		metrics: m,
		ready:   make(chan struct{}),
	}
	s.server = &http.Server{
		Addr:         config.Address,
		Handler:      s.Router(),
		ReadTimeout:  config.ReadTimeout,
		WriteTimeout: config.WriteTimeout,
		ConnState:    s.trackConn,
	}
	return s, nil
}

// SetHandler sets the handler requests are dispatched to. It must be
// called before Serve.
func (s *Server) SetHandler(h transport.Handler) {
	s.handler = h
}

// Authenticator returns the token authority, or nil when authentication
// is disabled.
func (s *Server) Authenticator() *Authenticator {
	return s.auth
}

// Router builds the chi router.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(s.config.RequestTimeout))

	r.Get(HealthPath, func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"status":"ok"}`)
	})

	r.Group(func(r chi.Router) {
		if s.auth != nil {
			r.Use(s.auth.Middleware)
		}
		r.Post(BridgePath, s.handleBridge)
	})

	return r
}

func (s *Server) handleBridge(w http.ResponseWriter, r *http.Request) {
	if s.handler == nil {
		http.Error(w, "bridge not ready", http.StatusServiceUnavailable)
		return
	}

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, s.config.MaxBodySize))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			http.Error(w, "request body too large", http.StatusRequestEntityTooLarge)
			return
		}
		http.Error(w, "failed to read request body", http.StatusBadRequest)
		return
	}

	reply := s.handler.Dispatch(r.Context(), body)

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(reply); err != nil {
		logger.Debug("Failed to write bridge reply: %v", err)
	}
}

func (s *Server) trackConn(_ net.Conn, state http.ConnState) {
	switch state {
	case http.StateNew:
		s.metrics.RecordConnectionAccepted(protocolName)
		s.metrics.SetActiveConnections(protocolName, s.conns.Add(1))
	case http.StateClosed, http.StateHijacked:
		s.metrics.RecordConnectionClosed(protocolName)
		s.metrics.SetActiveConnections(protocolName, s.conns.Add(-1))
	}
}

func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		logger.Debug("HTTP %s %s status=%d bytes=%d duration=%v request_id=%s",
			r.Method, r.URL.Path, ww.Status(), ww.BytesWritten(), time.Since(start),
			middleware.GetReqID(r.Context()))
	})
}

// Ready is closed once the listener is bound.
func (s *Server) Ready() <-chan struct{} {
	return s.ready
}

// Addr returns the bound address. It is only valid after Ready.
func (s *Server) Addr() net.Addr {
	return s.listener.Addr()
}

// Serve listens on the configured address and blocks until ctx is done,
// then shuts down gracefully within ShutdownTimeout.
//
// Returns nil after a clean shutdown, or the listen or serve error.
func (s *Server) Serve(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.config.Address)
	if err != nil {
		return fmt.Errorf("failed to create http listener on %s: %w", s.config.Address, err)
	}
	s.listener = ln
	close(s.ready)

	logger.Info("HTTP bridge listening on %s", ln.Addr())

	errChan := make(chan error, 1)
	go func() {
		if err := s.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- err
		}
		close(errChan)
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.config.ShutdownTimeout)
		defer cancel()
		return s.Stop(shutdownCtx)
	case err, ok := <-errChan:
		if !ok {
			return nil
		}
		return fmt.Errorf("http bridge failed: %w", err)
	}
}

// Stop shuts the HTTP server down, waiting for in-flight requests until
// ctx ends.
func (s *Server) Stop(ctx context.Context) error {
	if err := s.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("http bridge shutdown: %w", err)
	}
	logger.Info("HTTP bridge stopped")
	return nil
}

// Protocol returns "http".
func (s *Server) Protocol() string {
	return protocolName
}

// Address returns the configured listen address.
func (s *Server) Address() string {
	return s.config.Address
}

var _ transport.Adapter = (*Server)(nil)
