// Package server runs the bridge's transport adapters under one lifecycle.
package server

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/marmos91/fsbridge/internal/logger"
	"github.com/marmos91/fsbridge/pkg/transport"
	"golang.org/x/sync/errgroup"
)

const defaultShutdownTimeout = 30 * time.Second

// Service is anything the server runs alongside the adapters, such as the
// metrics endpoint.
type Service interface {
	Serve(ctx context.Context) error
	Protocol() string
}

// BridgeServer feeds every registered adapter the same handler and keeps
// them running until the context is cancelled or one of them fails.
type BridgeServer struct {
	handler         transport.Handler
	adapters        []transport.Adapter
	services        []Service
	shutdownTimeout time.Duration

	mu     sync.Mutex
	served bool
}

// Option configures a BridgeServer.
type Option func(*BridgeServer)

// WithShutdownTimeout bounds how long stopping all adapters may take.
func WithShutdownTimeout(d time.Duration) Option {
	return func(s *BridgeServer) {
		if d > 0 {
			s.shutdownTimeout = d
		}
	}
}

// WithService runs svc next to the adapters. Its failure stops the server.
func WithService(svc Service) Option {
	return func(s *BridgeServer) {
		if svc != nil {
			s.services = append(s.services, svc)
		}
	}
}

// New creates a server that hands handler to every adapter.
//
// Parameters:
//   - handler: Usually a *bridge.Dispatcher
//   - opts: Shutdown timeout and extra services
//
// Example:
//
//	srv := server.New(bridge.NewDispatcher(svc), server.WithService(metricsServer))
//	_ = srv.AddAdapter(streamAdapter)
//	err := srv.Serve(ctx)
func New(handler transport.Handler, opts ...Option) *BridgeServer {
	s := &BridgeServer{
		handler:         handler,
		shutdownTimeout: defaultShutdownTimeout,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// AddAdapter registers an adapter and hands it the bridge handler.
//
// Two adapters may not share a protocol name or a listen address.
// Adapters cannot be added once Serve has been called.
func (s *BridgeServer) AddAdapter(a transport.Adapter) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.served {
		return errors.New("cannot add adapter after server has started")
	}

	for _, existing := range s.adapters {
		if existing.Protocol() == a.Protocol() {
			return fmt.Errorf("adapter for protocol %s already registered", a.Protocol())
		}
		if a.Address() != "" && existing.Address() == a.Address() {
			return fmt.Errorf("address %s already in use by %s adapter", a.Address(), existing.Protocol())
		}
	}

	a.SetHandler(s.handler)
	s.adapters = append(s.adapters, a)

	logger.Debug("Registered %s adapter on %s", a.Protocol(), a.Address())
	return nil
}

// Serve runs all adapters and services and blocks until ctx is cancelled
// or one of them fails. It can only be called once.
//
// Returns ctx.Err() after a requested shutdown, or the first failure.
func (s *BridgeServer) Serve(ctx context.Context) error {
	s.mu.Lock()
	if s.served {
		s.mu.Unlock()
		return errors.New("server already served")
	}
	s.served = true
	adapters := append([]transport.Adapter(nil), s.adapters...)
	s.mu.Unlock()

	if len(adapters) == 0 {
		return errors.New("no adapters registered")
	}

	logger.Info("Starting fsbridge with %d adapter(s)", len(adapters))

	g, gctx := errgroup.WithContext(ctx)

	for _, a := range adapters {
		g.Go(func() error {
			logger.Info("Starting %s adapter on %s", a.Protocol(), a.Address())
			if err := a.Serve(gctx); err != nil && !errors.Is(err, context.Canceled) {
				logger.Error("%s adapter failed: %v", a.Protocol(), err)
				return fmt.Errorf("%s adapter: %w", a.Protocol(), err)
			}
			logger.Info("%s adapter stopped", a.Protocol())
			return nil
		})
	}

	for _, svc := range s.services {
		g.Go(func() error {
			if err := svc.Serve(gctx); err != nil && !errors.Is(err, context.Canceled) {
				logger.Error("%s service failed: %v", svc.Protocol(), err)
				return fmt.Errorf("%s service: %w", svc.Protocol(), err)
			}
			return nil
		})
	}

	// Once either the caller cancels or a member fails, stop everything in
	// reverse registration order so late adapters drain first.
	finished := make(chan struct{})
	stopped := make(chan struct{})
	go func() {
		defer close(stopped)
		select {
		case <-gctx.Done():
			s.stopAllAdapters(adapters)
		case <-finished:
		}
	}()

	err := g.Wait()
	close(finished)
	<-stopped

	if err != nil {
		return err
	}
	if ctx.Err() != nil {
		logger.Info("fsbridge shut down")
		return ctx.Err()
	}
	return nil
}

func (s *BridgeServer) stopAllAdapters(adapters []transport.Adapter) {
	ctx, cancel := context.WithTimeout(context.Background(), s.shutdownTimeout)
	defer cancel()

	for i := len(adapters) - 1; i >= 0; i-- {
		a := adapters[i]
		logger.Debug("Stopping %s adapter", a.Protocol())
		if err := a.Stop(ctx); err != nil {
			logger.Warn("Error stopping %s adapter: %v", a.Protocol(), err)
		}
	}
}

// Adapters returns a snapshot of the registered adapters.
func (s *BridgeServer) Adapters() []transport.Adapter {
	s.mu.Lock()
	defer s.mu.Unlock()

	return append([]transport.Adapter(nil), s.adapters...)
}
