package server

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/marmos91/fsbridge/pkg/bridge/protocol"
	"github.com/marmos91/fsbridge/pkg/transport"
	"github.com/marmos91/fsbridge/pkg/transport/stream"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeAdapter struct {
	protocol string
	address  string
	failWith error

	mu      sync.Mutex
	handler transport.Handler
	log     *[]string
}

func (f *fakeAdapter) Serve(ctx context.Context) error {
	if f.failWith != nil {
		return f.failWith
	}
	<-ctx.Done()
	return ctx.Err()
}

func (f *fakeAdapter) SetHandler(h transport.Handler) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.handler = h
}

func (f *fakeAdapter) Stop(context.Context) error {
	if f.log != nil {
		f.mu.Lock()
		*f.log = append(*f.log, f.protocol)
		f.mu.Unlock()
	}
	return nil
}

func (f *fakeAdapter) Protocol() string { return f.protocol }
func (f *fakeAdapter) Address() string  { return f.address }

func echo() transport.Handler {
	return transport.HandlerFunc(func(_ context.Context, raw []byte) protocol.Reply {
		reply, _ := protocol.Success(json.RawMessage(raw))
		return reply
	})
}

func TestAddAdapter(t *testing.T) {
	s := New(echo())

	a := &fakeAdapter{protocol: "stream", address: "127.0.0.1:7878"}
	require.NoError(t, s.AddAdapter(a))
	assert.NotNil(t, a.handler)

	err := s.AddAdapter(&fakeAdapter{protocol: "stream", address: "127.0.0.1:9999"})
	assert.ErrorContains(t, err, "already registered")

	err = s.AddAdapter(&fakeAdapter{protocol: "http", address: "127.0.0.1:7878"})
	assert.ErrorContains(t, err, "already in use")

	require.NoError(t, s.AddAdapter(&fakeAdapter{protocol: "http", address: "127.0.0.1:7879"}))
	assert.Len(t, s.Adapters(), 2)
}

func TestServeWithoutAdapters(t *testing.T) {
	err := New(echo()).Serve(context.Background())
	assert.ErrorContains(t, err, "no adapters")
}

func TestServeOnlyOnce(t *testing.T) {
	s := New(echo())
	require.NoError(t, s.AddAdapter(&fakeAdapter{protocol: "a"}))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, s.Serve(ctx), context.Canceled)

	assert.Error(t, s.Serve(context.Background()))
	assert.Error(t, s.AddAdapter(&fakeAdapter{protocol: "b"}))
}

func TestAdapterFailureStopsOthersInReverseOrder(t *testing.T) {
	var stopped []string
	s := New(echo(), WithShutdownTimeout(time.Second))
	require.NoError(t, s.AddAdapter(&fakeAdapter{protocol: "first", log: &stopped}))
	require.NoError(t, s.AddAdapter(&fakeAdapter{protocol: "second", log: &stopped}))
	require.NoError(t, s.AddAdapter(&fakeAdapter{protocol: "broken", failWith: errors.New("bind failed"), log: &stopped}))

	err := s.Serve(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "broken adapter")
	assert.Equal(t, []string{"broken", "second", "first"}, stopped)
}

type failingService struct{}

func (failingService) Serve(context.Context) error { return errors.New("port taken") }
func (failingService) Protocol() string              { return "metrics" }

func TestServiceFailureStopsServer(t *testing.T) {
	s := New(echo(), WithService(failingService{}))
	require.NoError(t, s.AddAdapter(&fakeAdapter{protocol: "stream"}))

	err := s.Serve(context.Background())
	assert.ErrorContains(t, err, "metrics service")
}

func TestServeStreamAdapter(t *testing.T) {
	a, err := stream.NewServer(stream.Config{Address: "127.0.0.1:0", ShutdownTimeout: time.Second}, nil)
	require.NoError(t, err)

	s := New(echo())
	require.NoError(t, s.AddAdapter(a))

	ctx, cancel := context.WithCancel(context.Background())
	served := make(chan error, 1)
	go func() { served <- s.Serve(ctx) }()
	<-a.Ready()

	client, err := stream.Dial(context.Background(), "tcp", a.Addr().String())
	require.NoError(t, err)
	defer client.Close()

	reply, err := client.Call(context.Background(), json.RawMessage(`{"action":"debugPrint"}`))
	require.NoError(t, err)
	assert.JSONEq(t, `{"action":"debugPrint"}`, string(reply.Result))

	cancel()
	select {
	case err := <-served:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not stop")
	}
}
