package inproc

import (
	"context"
	"encoding/json"
	"sync/atomic"
	"testing"
	"time"

	"github.com/marmos91/fsbridge/pkg/bridge/protocol"
	"github.com/marmos91/fsbridge/pkg/transport"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func echo() transport.Handler {
	return transport.HandlerFunc(func(_ context.Context, raw []byte) protocol.Reply {
		reply, _ := protocol.Success(json.RawMessage(raw))
		return reply
	})
}

func TestCall(t *testing.T) {
	tr := New(echo())
	defer tr.Close()

	reply, err := tr.Call(context.Background(), json.RawMessage(`{"action":"readFile"}`))
	require.NoError(t, err)
	assert.JSONEq(t, `{"action":"readFile"}`, string(reply.Result))
}

func TestCallSurvivesCancellation(t *testing.T) {
	release := make(chan struct{})
	var finished atomic.Bool

	tr := New(transport.HandlerFunc(func(ctx context.Context, _ []byte) protocol.Reply {
		<-release
		finished.Store(ctx.Err() == nil)
		return protocol.Reply{}
	}))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := tr.Call(ctx, json.RawMessage(`{}`))
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	close(release)
	require.NoError(t, tr.Close())
	assert.True(t, finished.Load(), "dispatched call saw a cancelled context")
}

func TestClosed(t *testing.T) {
	tr := New(echo())
	require.NoError(t, tr.Close())

	_, err := tr.Call(context.Background(), json.RawMessage(`{}`))
	assert.ErrorIs(t, err, transport.ErrClosed)
}
