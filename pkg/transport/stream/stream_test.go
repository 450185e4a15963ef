package stream

import (
	"bytes"
	"context"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/marmos91/fsbridge/pkg/bridge/protocol"
	"github.com/marmos91/fsbridge/pkg/transport"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecordRoundTrip(t *testing.T) {
	for _, size := range []int{0, 1, MaxFragmentSize - 1, MaxFragmentSize, 2*MaxFragmentSize + 7} {
		t.Run(fmt.Sprint(size), func(t *testing.T) {
			payload := bytes.Repeat([]byte{0xAB}, size)

			var buf bytes.Buffer
			require.NoError(t, writeRecord(&buf, payload))

			got, err := readRecord(&buf)
			require.NoError(t, err)
			assert.Equal(t, len(payload), len(got))
			assert.True(t, bytes.Equal(payload, got))
			assert.Zero(t, buf.Len())
		})
	}
}

func TestRecordFragmentHeader(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, writeRecord(&buf, []byte("abc")))

	header := binary.BigEndian.Uint32(buf.Bytes()[:4])
	assert.Equal(t, uint32(0x80000003), header)
}

func TestRecordRejectsOversizedFragment(t *testing.T) {
	var buf bytes.Buffer
	_ = binary.Write(&buf, binary.BigEndian, uint32(lastFragmentBit|(MaxFragmentSize+1)))

	_, err := readRecord(&buf)
	assert.ErrorIs(t, err, ErrFragmentTooLarge)
}

func TestRecordTruncated(t *testing.T) {
	var buf bytes.Buffer
	_ = binary.Write(&buf, binary.BigEndian, uint32(lastFragmentBit|10))
	buf.WriteString("short")

	_, err := readRecord(&buf)
	assert.ErrorIs(t, err, io.ErrUnexpectedEOF)
}

func TestEnvelopeRoundTrip(t *testing.T) {
	data, err := encodeEnvelope(&envelope{XID: 42, Type: msgReply, Body: []byte(`{"result":true}`)})
	require.NoError(t, err)

	env, err := decodeEnvelope(data)
	require.NoError(t, err)
	assert.Equal(t, uint32(42), env.XID)
	assert.Equal(t, msgReply, env.Type)
	assert.Equal(t, `{"result":true}`, string(env.Body))

	data, err = encodeEnvelope(&envelope{XID: 1, Type: 9})
	require.NoError(t, err)
	_, err = decodeEnvelope(data)
	assert.Error(t, err)
}

// slowEcho answers each request after the delay it names, echoing it.
func slowEcho() transport.Handler {
	return transport.HandlerFunc(func(_ context.Context, raw []byte) protocol.Reply {
		var req struct {
			Delay int `json:"delay"`
		}
		_ = json.Unmarshal(raw, &req)
		time.Sleep(time.Duration(req.Delay) * time.Millisecond)

		reply, _ := protocol.Success(json.RawMessage(raw))
		return reply
	})
}

func startServer(t *testing.T, cfg Config) *Server {
	t.Helper()

	srv, err := NewServer(cfg, nil)
	require.NoError(t, err)
	srv.SetHandler(slowEcho())

	ctx, cancel := context.WithCancel(context.Background())
	served := make(chan error, 1)
	go func() { served <- srv.Serve(ctx) }()

	select {
	case <-srv.Ready():
	case err := <-served:
		t.Fatalf("server failed to start: %v", err)
	}

	t.Cleanup(func() {
		cancel()
		select {
		case <-served:
		case <-time.After(5 * time.Second):
			t.Error("server did not stop")
		}
	})
	return srv
}

func TestClientServerConcurrentCalls(t *testing.T) {
	srv := startServer(t, Config{Address: "127.0.0.1:0"})

	ctx := context.Background()
	client, err := Dial(ctx, "tcp", srv.Addr().String())
	require.NoError(t, err)
	defer client.Close()

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			req := json.RawMessage(fmt.Sprintf(`{"action":"echo","n":%d,"delay":%d}`, i, (20-i)*2))

			reply, err := client.Call(ctx, req)
			if !assert.NoError(t, err) {
				return
			}
			assert.JSONEq(t, string(req), string(reply.Result))
		}(i)
	}
	wg.Wait()

	assert.Eventually(t, func() bool { return srv.ActiveConnections() == 1 }, time.Second, 10*time.Millisecond)
}

func TestUnixSocket(t *testing.T) {
	sock := filepath.Join(t.TempDir(), "bridge.sock")
	startServer(t, Config{Network: "unix", Address: sock})

	client, err := Dial(context.Background(), "unix", sock)
	require.NoError(t, err)
	defer client.Close()

	reply, err := client.Call(context.Background(), json.RawMessage(`{"action":"x"}`))
	require.NoError(t, err)
	assert.JSONEq(t, `{"action":"x"}`, string(reply.Result))
}

func TestCallTimeoutAndClose(t *testing.T) {
	srv := startServer(t, Config{Address: "127.0.0.1:0"})

	client, err := Dial(context.Background(), "tcp", srv.Addr().String())
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = client.Call(ctx, json.RawMessage(`{"delay":300}`))
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	require.NoError(t, client.Close())
	_, err = client.Call(context.Background(), json.RawMessage(`{}`))
	assert.ErrorIs(t, err, transport.ErrClosed)
}

func TestServerStop(t *testing.T) {
	srv, err := NewServer(Config{Address: "127.0.0.1:0", ShutdownTimeout: time.Second}, nil)
	require.NoError(t, err)
	srv.SetHandler(slowEcho())

	served := make(chan error, 1)
	go func() { served <- srv.Serve(context.Background()) }()
	<-srv.Ready()

	client, err := Dial(context.Background(), "tcp", srv.Addr().String())
	require.NoError(t, err)
	defer client.Close()

	_, err = client.Call(context.Background(), json.RawMessage(`{}`))
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, srv.Stop(ctx))
	assert.NoError(t, <-served)
	assert.Zero(t, srv.ActiveConnections())
}

func TestConfigValidation(t *testing.T) {
	_, err := NewServer(Config{Network: "udp"}, nil)
	assert.Error(t, err)

	_, err = NewServer(Config{MaxConnections: -1}, nil)
	assert.Error(t, err)

	srv, err := NewServer(Config{}, nil)
	require.NoError(t, err)
	assert.Equal(t, "127.0.0.1:7878", srv.Address())
	assert.Equal(t, "stream", srv.Protocol())

	assert.Error(t, srv.Serve(context.Background()), "serving without a handler")
}
