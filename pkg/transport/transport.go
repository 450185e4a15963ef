// Package transport carries bridge requests from a client to the native
// side and replies back.
//
// Every transport moves the same payloads: a JSON request object one way
// and a protocol.Reply the other. Correlating a reply with its request is
// the transport's job, and replies may arrive in any order.
package transport

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/marmos91/fsbridge/pkg/bridge/protocol"
)

var (
	// ErrClosed is returned by calls on a closed transport.
	ErrClosed = errors.New("transport closed")

	// ErrUnauthorized is returned when the native side rejects the
	// client's credentials.
	ErrUnauthorized = errors.New("transport unauthorized")
)

// Handler is the native half: it turns a raw request into a reply.
// bridge.Dispatcher implements it.
type Handler interface {
	Dispatch(ctx context.Context, raw []byte) protocol.Reply
}

// HandlerFunc adapts a function to Handler.
type HandlerFunc func(ctx context.Context, raw []byte) protocol.Reply

// Dispatch calls f.
func (f HandlerFunc) Dispatch(ctx context.Context, raw []byte) protocol.Reply {
	return f(ctx, raw)
}

// Caller is the client half.
type Caller interface {
	// Call sends one request and waits for its reply. The error reports
	// transport failures only: a bridge-level failure arrives as a reply
	// with its error half set.
	Call(ctx context.Context, request json.RawMessage) (protocol.Reply, error)

	Close() error
}

// Adapter serves a Handler to remote clients.
type Adapter interface {
	// Serve blocks until ctx is cancelled or the adapter fails.
	Serve(ctx context.Context) error

	// SetHandler must be called before Serve.
	SetHandler(h Handler)

	Stop(ctx context.Context) error

	// Protocol names the adapter in logs and metrics.
	Protocol() string

	// Address is the configured listen address.
	Address() string
}
