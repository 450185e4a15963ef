package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/marmos91/fsbridge/pkg/bridge/protocol"
	"github.com/marmos91/fsbridge/pkg/transport"
)

// Client is a transport.Caller posting requests to a Server.
type Client struct {
	endpoint string
	token    string
	http     *http.Client
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithToken sends token as a bearer credential.
func WithToken(token string) ClientOption {
	return func(c *Client) {
		c.token = token
	}
}

// WithHTTPClient replaces the default http.Client, e.g. to set timeouts
// or TLS.
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) {
		c.http = hc
	}
}

// NewClient targets the server at baseURL, e.g. "http://127.0.0.1:7879".
func NewClient(baseURL string, opts ...ClientOption) *Client {
	c := &Client{
		endpoint: strings.TrimSuffix(baseURL, "/") + BridgePath,
		http:     &http.Client{},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Call posts request and decodes the reply.
//
// Returns:
//   - The bridge reply for any 200 response, including failure replies
//   - transport.ErrUnauthorized on 401
//   - An error carrying the status and the start of the body otherwise
func (c *Client) Call(ctx context.Context, request json.RawMessage) (protocol.Reply, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(request))
	if err != nil {
		return protocol.Reply{}, err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return protocol.Reply{}, err
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusUnauthorized:
		return protocol.Reply{}, transport.ErrUnauthorized
	default:
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return protocol.Reply{}, fmt.Errorf("bridge http status %d: %s", resp.StatusCode, strings.TrimSpace(string(msg)))
	}

	var reply protocol.Reply
	if err := json.NewDecoder(resp.Body).Decode(&reply); err != nil {
		return protocol.Reply{}, fmt.Errorf("decode reply: %w", err)
	}
	return reply, nil
}

// Close drops idle keep-alive connections.
func (c *Client) Close() error {
	c.http.CloseIdleConnections()
	return nil
}

var _ transport.Caller = (*Client)(nil)
