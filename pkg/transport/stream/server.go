// Package stream serves the bridge over a byte stream (TCP or a Unix
// socket).
//
// Each message is an XDR envelope {xid, type, body} sent as one
// record-marked record. The body is the JSON request or reply. Calls on a
// connection are dispatched concurrently and their replies are written as
// they complete, so a client must match replies by xid.
package stream

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/marmos91/fsbridge/internal/logger"
	"github.com/marmos91/fsbridge/pkg/metrics"
	"github.com/marmos91/fsbridge/pkg/transport"
)

const protocolName = "stream"

// Config controls the stream adapter.
type Config struct {
	Enabled bool `mapstructure:"enabled"`

	// Network is "tcp" or "unix".
	Network string `mapstructure:"network" validate:"omitempty,oneof=tcp unix"`

	// Address is host:port for tcp or a socket path for unix.
	Address string `mapstructure:"address"`

	// MaxConnections limits concurrent connections. 0 means unlimited.
	MaxConnections int `mapstructure:"max_connections" validate:"min=0"`

	// MaxInFlight limits concurrently dispatched calls per connection.
	MaxInFlight int `mapstructure:"max_in_flight" validate:"min=0"`

	ReadTimeout  time.Duration `mapstructure:"read_timeout" validate:"min=0"`
	WriteTimeout time.Duration `mapstructure:"write_timeout" validate:"min=0"`

	// IdleTimeout closes connections that send nothing for this long.
	IdleTimeout time.Duration `mapstructure:"idle_timeout" validate:"min=0"`

	// ShutdownTimeout bounds how long Stop waits for connections to drain.
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" validate:"min=0"`
}

// ApplyDefaults fills every zero field: tcp on 127.0.0.1:7878 with 64
// requests in flight per connection.
func (c *Config) ApplyDefaults() {
	if c.Network == "" {
		c.Network = "tcp"
	}
	if c.Address == "" {
		c.Address = "127.0.0.1:7878"
	}
	if c.MaxInFlight == 0 {
		c.MaxInFlight = 64
	}
	if c.WriteTimeout == 0 {
		c.WriteTimeout = 30 * time.Second
	}
	if c.IdleTimeout == 0 {
		c.IdleTimeout = 5 * time.Minute
	}
	if c.ShutdownTimeout == 0 {
		c.ShutdownTimeout = 30 * time.Second
	}
}

func (c *Config) validate() error {
	if c.Network != "tcp" && c.Network != "unix" {
		return fmt.Errorf("invalid network %q: must be tcp or unix", c.Network)
	}
	if c.MaxConnections < 0 {
		return fmt.Errorf("invalid MaxConnections %d: must be >= 0", c.MaxConnections)
	}
	if c.MaxInFlight < 0 {
		return fmt.Errorf("invalid MaxInFlight %d: must be >= 0", c.MaxInFlight)
	}
	if c.ReadTimeout < 0 || c.WriteTimeout < 0 || c.IdleTimeout < 0 {
		return errors.New("timeouts must be >= 0")
	}
	if c.ShutdownTimeout <= 0 {
		return fmt.Errorf("invalid ShutdownTimeout %v: must be > 0", c.ShutdownTimeout)
	}
	return nil
}

// Server accepts stream connections and feeds their calls to a Handler.
type Server struct {
	config  Config
	handler transport.Handler
	metrics metrics.TransportMetrics

	listener net.Listener
	ready    chan struct{}

	activeConns       sync.WaitGroup
	connCount         atomic.Int32
	connSemaphore     chan struct{}
	activeConnections sync.Map

	shutdownOnce   sync.Once
	shutdown       chan struct{}
	shutdownCtx    context.Context
	cancelRequests context.CancelFunc
}

// NewServer creates the stream adapter with the given configuration.
//
// Parameters:
//   - config: Adapter configuration; defaults are applied to a copy
//   - m: Transport metrics, nil for none
//
// Returns:
//   - *Server: Ready for SetHandler and Serve
//   - error: If the configuration is invalid
func NewServer(config Config, m metrics.TransportMetrics) (*Server, error) {
	config.ApplyDefaults()
	if err := config.validate(); err != nil {
		return nil, fmt.Errorf("invalid stream config: %w", err)
	}

	var connSemaphore chan struct{}
	if config.MaxConnections > 0 {
		connSemaphore = make(chan struct{}, config.MaxConnections)
		logger.Debug("Stream connection limit: %d", config.MaxConnections)
	}

	if m == nil {
		m = metrics.NewNoop()
	}

	shutdownCtx, cancelRequests := context.WithCancel(context.Background())

	return &Server{
		config:         config,
		metrics:        m,
		ready:          make(chan struct{}),
		connSemaphore:  connSemaphore,
		shutdown:       make(chan struct{}),
		shutdownCtx:    shutdownCtx,
		cancelRequests: cancelRequests,
	}, nil
}

// SetHandler sets the handler requests are dispatched to. It must be
// called before Serve.
func (s *Server) SetHandler(h transport.Handler) {
	s.handler = h
}

// Ready is closed once the listener is bound.
func (s *Server) Ready() <-chan struct{} {
	return s.ready
}

// Addr returns the bound address. It is only valid after Ready.
func (s *Server) Addr() net.Addr {
	return s.listener.Addr()
}

// Serve accepts connections until ctx is done or Stop is called.
//
// Each connection reads records in a loop and dispatches every request on
// its own goroutine, bounded by MaxInFlight, so replies may leave out of
// order. Once MaxConnections are open, accepting pauses until one closes.
//
// Returns the outcome of the graceful shutdown, or the listen error.
func (s *Server) Serve(ctx context.Context) error {
	if s.handler == nil {
		return errors.New("stream server: no handler set")
	}

	listener, err := net.Listen(s.config.Network, s.config.Address)
	if err != nil {
		return fmt.Errorf("failed to create stream listener on %s: %w", s.config.Address, err)
	}
	s.listener = listener
	close(s.ready)

	logger.Info("Stream server listening on %s://%s", s.config.Network, listener.Addr())

	go func() {
		select {
		case <-ctx.Done():
			logger.Info("Stream shutdown signal received: %v", ctx.Err())
			s.initiateShutdown()
		case <-s.shutdown:
		}
	}()

	for {
		// Step 1: wait for a connection slot
		if s.connSemaphore != nil {
			select {
			case s.connSemaphore <- struct{}{}:
			case <-s.shutdown:
				return s.gracefulShutdown()
			}
		}

		// Step 2: accept
		netConn, err := s.listener.Accept()
		if err != nil {
			if s.connSemaphore != nil {
				<-s.connSemaphore
			}

			select {
			case <-s.shutdown:
				return s.gracefulShutdown()
			default:
				logger.Debug("Error accepting stream connection: %v", err)
				continue
			}
		}

		// Step 3: track and serve
		s.activeConns.Add(1)
		current := s.connCount.Add(1)

		addr := netConn.RemoteAddr().String() + "#" + fmt.Sprint(time.Now().UnixNano())
		s.activeConnections.Store(addr, netConn)

		s.metrics.RecordConnectionAccepted(protocolName)
		s.metrics.SetActiveConnections(protocolName, current)
		logger.Debug("Stream connection accepted from %s (active: %d)", netConn.RemoteAddr(), current)

		c := newConn(s, netConn)
		go func() {
			defer func() {
				s.activeConnections.Delete(addr)
				current := s.connCount.Add(-1)
				if s.connSemaphore != nil {
					<-s.connSemaphore
				}

				s.metrics.RecordConnectionClosed(protocolName)
				s.metrics.SetActiveConnections(protocolName, current)
				logger.Debug("Stream connection closed (active: %d)", current)
				s.activeConns.Done()
			}()

			c.serve(s.shutdownCtx)
		}()
	}
}

func (s *Server) initiateShutdown() {
	s.shutdownOnce.Do(func() {
		logger.Debug("Stream shutdown initiated")
		close(s.shutdown)

		if s.listener != nil {
			if err := s.listener.Close(); err != nil {
				logger.Debug("Error closing stream listener: %v", err)
			}
		}

		s.cancelRequests()
	})
}

func (s *Server) waitConnections() <-chan struct{} {
	done := make(chan struct{})
	go func() {
		s.activeConns.Wait()
		close(done)
	}()
	return done
}

func (s *Server) gracefulShutdown() error {
	logger.Info("Stream graceful shutdown: waiting for %d active connection(s) (timeout: %v)",
		s.connCount.Load(), s.config.ShutdownTimeout)

	select {
	case <-s.waitConnections():
		logger.Info("Stream graceful shutdown complete")
		return nil

	case <-time.After(s.config.ShutdownTimeout):
		remaining := s.connCount.Load()
		logger.Warn("Stream shutdown timeout exceeded: %d connection(s) still active, forcing closure", remaining)
		s.forceCloseConnections()
		return fmt.Errorf("stream shutdown timeout: %d connections force-closed", remaining)
	}
}

func (s *Server) forceCloseConnections() {
	closed := 0
	s.activeConnections.Range(func(key, value any) bool {
		if err := value.(net.Conn).Close(); err != nil {
			logger.Debug("Error force-closing connection %s: %v", key, err)
		} else {
			closed++
		}
		return true
	})
	logger.Info("Force-closed %d stream connection(s)", closed)
}

// Stop begins shutdown and waits for open connections until ctx expires.
func (s *Server) Stop(ctx context.Context) error {
	s.initiateShutdown()

	select {
	case <-s.waitConnections():
		return nil
	case <-ctx.Done():
		s.forceCloseConnections()
		return ctx.Err()
	}
}

// ActiveConnections returns the number of open connections.
func (s *Server) ActiveConnections() int32 {
	return s.connCount.Load()
}

// Protocol returns "stream".
func (s *Server) Protocol() string {
	return protocolName
}

// Address returns the configured listen address.
func (s *Server) Address() string {
	return s.config.Address
}

var _ transport.Adapter = (*Server)(nil)
