package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/marmos91/fsbridge/pkg/bridge/protocol"
	"github.com/marmos91/fsbridge/pkg/transport"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "0123456789abcdef0123456789abcdef"

func echo() transport.Handler {
	return transport.HandlerFunc(func(_ context.Context, raw []byte) protocol.Reply {
		if strings.Contains(string(raw), "fail") {
			return protocol.Failure("Could not read file.")
		}
		reply, _ := protocol.Success(json.RawMessage(raw))
		return reply
	})
}

func newTestServer(t *testing.T, cfg Config) (*Server, *httptest.Server) {
	t.Helper()

	srv, err := NewServer(cfg, nil)
	require.NoError(t, err)
	srv.SetHandler(echo())

	ts := httptest.NewServer(srv.Router())
	t.Cleanup(ts.Close)
	return srv, ts
}

func TestBridgeRoundTrip(t *testing.T) {
	_, ts := newTestServer(t, Config{})
	client := NewClient(ts.URL)
	defer client.Close()

	reply, err := client.Call(context.Background(), json.RawMessage(`{"action":"readFile","identifier":"x"}`))
	require.NoError(t, err)
	assert.JSONEq(t, `{"action":"readFile","identifier":"x"}`, string(reply.Result))

	reply, err = client.Call(context.Background(), json.RawMessage(`{"action":"fail"}`))
	require.NoError(t, err)
	assert.True(t, reply.Failed())
	assert.Equal(t, "Could not read file.", reply.Message())
}

func TestHealthz(t *testing.T) {
	_, ts := newTestServer(t, Config{JWT: JWTConfig{Secret: testSecret}})

	resp, err := http.Get(ts.URL + HealthPath)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestBearerAuthentication(t *testing.T) {
	srv, ts := newTestServer(t, Config{JWT: JWTConfig{Secret: testSecret}})
	ctx := context.Background()
	req := json.RawMessage(`{"action":"debugPrint"}`)

	_, err := NewClient(ts.URL).Call(ctx, req)
	assert.ErrorIs(t, err, transport.ErrUnauthorized)

	_, err = NewClient(ts.URL, WithToken("garbage")).Call(ctx, req)
	assert.ErrorIs(t, err, transport.ErrUnauthorized)

	token, err := srv.Authenticator().IssueToken("editor")
	require.NoError(t, err)
	reply, err := NewClient(ts.URL, WithToken(token)).Call(ctx, req)
	require.NoError(t, err)
	assert.False(t, reply.Failed())
}

func TestAuthenticator(t *testing.T) {
	_, err := NewAuthenticator(JWTConfig{Secret: "short"})
	assert.ErrorIs(t, err, ErrInvalidSecretLength)

	a, err := NewAuthenticator(JWTConfig{Secret: testSecret})
	require.NoError(t, err)

	token, err := a.IssueToken("editor")
	require.NoError(t, err)
	claims, err := a.Validate(token)
	require.NoError(t, err)
	assert.Equal(t, "editor", claims.Subject)
	assert.Equal(t, "fsbridge", claims.Issuer)

	other, err := NewAuthenticator(JWTConfig{Secret: testSecret, Issuer: "someone-else"})
	require.NoError(t, err)
	_, err = other.Validate(token)
	assert.ErrorIs(t, err, ErrInvalidToken)

	expired := jwt.NewWithClaims(jwt.SigningMethodHS256, &Claims{RegisteredClaims: jwt.RegisteredClaims{
		Issuer:    "fsbridge",
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Minute)),
	}})
	signed, err := expired.SignedString([]byte(testSecret))
	require.NoError(t, err)
	_, err = a.Validate(signed)
	assert.ErrorIs(t, err, ErrExpiredToken)
}

func TestBodyTooLarge(t *testing.T) {
	_, ts := newTestServer(t, Config{MaxBodySize: 16})

	_, err := NewClient(ts.URL).Call(context.Background(), json.RawMessage(`{"action":"saveFile","content":"AAAAAAAAAAAA"}`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "413")
}

func TestServeAndStop(t *testing.T) {
	srv, err := NewServer(Config{Address: "127.0.0.1:0"}, nil)
	require.NoError(t, err)
	srv.SetHandler(echo())

	ctx, cancel := context.WithCancel(context.Background())
	served := make(chan error, 1)
	go func() { served <- srv.Serve(ctx) }()
	<-srv.Ready()

	client := NewClient("http://" + srv.Addr().String())
	reply, err := client.Call(context.Background(), json.RawMessage(`{"action":"x"}`))
	require.NoError(t, err)
	assert.JSONEq(t, `{"action":"x"}`, string(reply.Result))

	cancel()
	assert.NoError(t, <-served)
	assert.Equal(t, "http", srv.Protocol())
}
