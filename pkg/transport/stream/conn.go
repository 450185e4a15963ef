package stream

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net"
	"sync"
	"time"

	"github.com/marmos91/fsbridge/internal/logger"
	"github.com/marmos91/fsbridge/pkg/bridge/protocol"
)

// conn serves one client connection.
type conn struct {
	server *Server
	conn   net.Conn
	addr   string

	writeMu  sync.Mutex
	inFlight chan struct{}
	calls    sync.WaitGroup
}

func newConn(s *Server, c net.Conn) *conn {
	return &conn{
		server:   s,
		conn:     c,
		addr:     c.RemoteAddr().String(),
		inFlight: make(chan struct{}, s.config.MaxInFlight),
	}
}

func (c *conn) serve(ctx context.Context) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error("Panic in stream connection handler from %s: %v", c.addr, r)
		}
		c.calls.Wait()
		_ = c.conn.Close()
	}()

	logger.Debug("New stream connection from %s", c.addr)

	// Unblock the pending read on shutdown. Replies still in flight can be
	// written.
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			_ = c.conn.SetReadDeadline(time.Now())
		case <-done:
		}
	}()

	for {
		select {
		case <-ctx.Done():
			logger.Debug("Stream connection from %s closed: %v", c.addr, ctx.Err())
			return
		default:
		}

		if err := c.handleRecord(ctx); err != nil {
			var netErr net.Error
			switch {
			case errors.Is(err, io.EOF):
				logger.Debug("Stream connection from %s closed by client", c.addr)
			case errors.As(err, &netErr) && netErr.Timeout():
				logger.Debug("Stream connection from %s timed out: %v", c.addr, err)
			default:
				logger.Debug("Error handling stream record from %s: %v", c.addr, err)
			}
			return
		}
	}
}

// readDeadline picks the tighter of the idle and read timeouts.
func (c *conn) readDeadline() time.Time {
	timeout := c.server.config.IdleTimeout
	if rt := c.server.config.ReadTimeout; rt > 0 && (timeout == 0 || rt < timeout) {
		timeout = rt
	}
	if timeout == 0 {
		return time.Time{}
	}
	return time.Now().Add(timeout)
}

func (c *conn) handleRecord(ctx context.Context) error {
	if err := c.conn.SetReadDeadline(c.readDeadline()); err != nil {
		return err
	}

	record, err := readRecord(c.conn)
	if err != nil {
		return err
	}

	env, err := decodeEnvelope(record)
	if err != nil {
		logger.Debug("Dropping malformed envelope from %s: %v", c.addr, err)
		return nil
	}
	if env.Type != msgCall {
		logger.Debug("Dropping non-call message xid=0x%x from %s", env.XID, c.addr)
		return nil
	}

	select {
	case c.inFlight <- struct{}{}:
	case <-ctx.Done():
		return ctx.Err()
	}

	c.calls.Add(1)
	go func() {
		defer func() {
			<-c.inFlight
			c.calls.Done()
		}()
		c.dispatch(ctx, env)
	}()
	return nil
}

func (c *conn) dispatch(ctx context.Context, env *envelope) {
	reply := c.server.handler.Dispatch(ctx, env.Body)

	body, err := json.Marshal(reply)
	if err != nil {
		logger.Error("Failed to encode reply xid=0x%x: %v", env.XID, err)
		body, _ = json.Marshal(protocol.Failure("internal error"))
	}

	if err := c.send(&envelope{XID: env.XID, Type: msgReply, Body: body}); err != nil {
		logger.Debug("Failed to send reply xid=0x%x to %s: %v", env.XID, c.addr, err)
	}
}

func (c *conn) send(env *envelope) error {
	data, err := encodeEnvelope(env)
	if err != nil {
		return err
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	if wt := c.server.config.WriteTimeout; wt > 0 {
		if err := c.conn.SetWriteDeadline(time.Now().Add(wt)); err != nil {
			return err
		}
	}
	return writeRecord(c.conn, data)
}
