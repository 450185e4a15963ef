package stream

import (
	"bytes"
	"fmt"

	xdr "github.com/rasky/go-xdr/xdr2"
)

// Message types carried in an envelope.
const (
	msgCall  uint32 = 0
	msgReply uint32 = 1
)

// envelope wraps one JSON message. XID pairs a reply with its call.
type envelope struct {
	XID  uint32
	Type uint32
	Body []byte
}

func encodeEnvelope(env *envelope) ([]byte, error) {
	var buf bytes.Buffer
	if _, err := xdr.Marshal(&buf, env); err != nil {
		return nil, fmt.Errorf("encode envelope: %w", err)
	}
	return buf.Bytes(), nil
}

func decodeEnvelope(data []byte) (*envelope, error) {
	env := new(envelope)
	if _, err := xdr.Unmarshal(bytes.NewReader(data), env); err != nil {
		return nil, fmt.Errorf("decode envelope: %w", err)
	}
	if env.Type != msgCall && env.Type != msgReply {
		return nil, fmt.Errorf("decode envelope: unknown message type %d", env.Type)
	}
	return env, nil
}
