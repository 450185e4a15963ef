// Package inproc connects a client to a Handler living in the same
// process. Each call runs on its own goroutine, so replies come back in
// completion order.
package inproc

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/marmos91/fsbridge/pkg/bridge/protocol"
	"github.com/marmos91/fsbridge/pkg/transport"
)

// Transport is a transport.Caller that calls a Handler directly.
type Transport struct {
	handler transport.Handler

	mu     sync.RWMutex
	closed bool
	calls  sync.WaitGroup
}

// New creates a transport dispatching to h.
func New(h transport.Handler) *Transport {
	return &Transport{handler: h}
}

// Call dispatches request asynchronously. Once dispatched the request runs
// to completion even if ctx is cancelled; Call merely stops waiting.
func (t *Transport) Call(ctx context.Context, request json.RawMessage) (protocol.Reply, error) {
	t.mu.RLock()
	if t.closed {
		t.mu.RUnlock()
		return protocol.Reply{}, transport.ErrClosed
	}
	t.calls.Add(1)
	t.mu.RUnlock()

	raw := append([]byte(nil), request...)
	done := make(chan protocol.Reply, 1)
	go func() {
		defer t.calls.Done()
		done <- t.handler.Dispatch(context.WithoutCancel(ctx), raw)
	}()

	select {
	case reply := <-done:
		return reply, nil
	case <-ctx.Done():
		return protocol.Reply{}, ctx.Err()
	}
}

// Close rejects new calls and waits for dispatched ones to finish.
func (t *Transport) Close() error {
	t.mu.Lock()
	t.closed = true
	t.mu.Unlock()

	t.calls.Wait()
	return nil
}

var _ transport.Caller = (*Transport)(nil)
