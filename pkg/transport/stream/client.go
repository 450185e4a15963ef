package stream

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/marmos91/fsbridge/internal/logger"
	"github.com/marmos91/fsbridge/pkg/bridge/protocol"
	"github.com/marmos91/fsbridge/pkg/transport"
)

type callResult struct {
	reply protocol.Reply
	err   error
}

// Client is a transport.Caller over one stream connection. Calls may be
// issued concurrently; replies are matched to calls by xid.
type Client struct {
	conn    net.Conn
	nextXID atomic.Uint32

	writeMu sync.Mutex

	mu      sync.Mutex
	pending map[uint32]chan callResult
	err     error

	done chan struct{}
}

// Dial connects to a stream server.
func Dial(ctx context.Context, network, address string) (*Client, error) {
	var d net.Dialer
	c, err := d.DialContext(ctx, network, address)
	if err != nil {
		return nil, fmt.Errorf("dial %s://%s: %w", network, address, err)
	}
	return NewClient(c), nil
}

// NewClient takes ownership of c.
func NewClient(c net.Conn) *Client {
	cl := &Client{
		conn:    c,
		pending: make(map[uint32]chan callResult),
		done:    make(chan struct{}),
	}
	go cl.readLoop()
	return cl
}

// Call sends request under a fresh XID and waits for the matching reply.
// Calls may be issued concurrently; a cancelled ctx abandons the wait
// and a late reply is dropped.
func (c *Client) Call(ctx context.Context, request json.RawMessage) (protocol.Reply, error) {
	xid := c.nextXID.Add(1)
	ch := make(chan callResult, 1)

	c.mu.Lock()
	if c.err != nil {
		err := c.err
		c.mu.Unlock()
		return protocol.Reply{}, err
	}
	c.pending[xid] = ch
	c.mu.Unlock()

	if err := c.send(ctx, &envelope{XID: xid, Type: msgCall, Body: request}); err != nil {
		c.forget(xid)
		return protocol.Reply{}, err
	}

	select {
	case res := <-ch:
		return res.reply, res.err
	case <-ctx.Done():
		c.forget(xid)
		return protocol.Reply{}, ctx.Err()
	}
}

func (c *Client) forget(xid uint32) {
	c.mu.Lock()
	delete(c.pending, xid)
	c.mu.Unlock()
}

func (c *Client) send(ctx context.Context, env *envelope) error {
	data, err := encodeEnvelope(env)
	if err != nil {
		return err
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	deadline, _ := ctx.Deadline()
	if err := c.conn.SetWriteDeadline(deadline); err != nil {
		return err
	}
	if err := writeRecord(c.conn, data); err != nil {
		return fmt.Errorf("%w: %w", transport.ErrClosed, err)
	}
	return nil
}

func (c *Client) readLoop() {
	var err error
	defer func() {
		c.fail(err)
		close(c.done)
	}()

	for {
		var record []byte
		record, err = readRecord(c.conn)
		if err != nil {
			return
		}

		env, decodeErr := decodeEnvelope(record)
		if decodeErr != nil || env.Type != msgReply {
			logger.Debug("Ignoring unexpected stream message: %v", decodeErr)
			continue
		}

		c.mu.Lock()
		ch, ok := c.pending[env.XID]
		delete(c.pending, env.XID)
		c.mu.Unlock()
		if !ok {
			logger.Debug("Reply for unknown xid=0x%x", env.XID)
			continue
		}

		var res callResult
		if err := json.Unmarshal(env.Body, &res.reply); err != nil {
			res.err = fmt.Errorf("decode reply: %w", err)
		}
		ch <- res
	}
}

// fail records the terminal error and releases every waiting call.
func (c *Client) fail(cause error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.err == nil {
		c.err = fmt.Errorf("%w: %v", transport.ErrClosed, cause)
	}
	for xid, ch := range c.pending {
		ch <- callResult{err: c.err}
		delete(c.pending, xid)
	}
}

// Close closes the connection and fails pending calls.
func (c *Client) Close() error {
	err := c.conn.Close()
	select {
	case <-c.done:
	case <-time.After(5 * time.Second):
	}
	return err
}

var _ transport.Caller = (*Client)(nil)
