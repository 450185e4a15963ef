package polyfill

import (
	"context"
	"encoding/base64"
	"fmt"
	"sync"

	"github.com/marmos91/fsbridge/pkg/bridge/protocol"
)

// MaxStreamSize bounds the staged content of a WritableStream. Close
// ships the whole buffer base64-encoded in one request, which has to fit
// the 64 MiB record limit of the stream transport.
const MaxStreamSize = 32 << 20

// WriteType selects what a WriteParams chunk does.
type WriteType string

const (
	WriteData     WriteType = "write"
	WriteSeek     WriteType = "seek"
	WriteTruncate WriteType = "truncate"
)

// WriteParams is the structured chunk form. Position moves the cursor
// before a write, or is the target of a seek. Size is the target of a
// truncate. Data is a []byte or a string.
type WriteParams struct {
	Type     WriteType
	Position *int64
	Size     *int64
	Data     any
}

// Int64 is a helper for the optional WriteParams fields.
func Int64(v int64) *int64 {
	return &v
}

// WritableStream stages writes in memory. Nothing reaches the file until
// Close, which replaces the whole content in one saveFile request.
//
// The cursor never exceeds the buffer length except after a seek past the
// end, in which case the next write zero-fills the gap.
type WritableStream struct {
	client     *Client
	identifier string

	mu     sync.Mutex
	buf    []byte
	cursor int64
	closed bool
}

func newWritableStream(c *Client, identifier string, seed []byte) *WritableStream {
	return &WritableStream{
		client:     c,
		identifier: identifier,
		buf:        append([]byte(nil), seed...),
	}
}

// Write applies one chunk: a WriteParams (or pointer to one), a []byte or
// a string. Plain data is written at the cursor.
func (w *WritableStream) Write(chunk any) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return newError(ErrStreamClosed, "write: stream is closed")
	}

	switch c := chunk.(type) {
	case WriteParams:
		return w.apply(c)
	case *WriteParams:
		if c == nil {
			return newError(ErrInvalidChunk, "write: nil chunk")
		}
		return w.apply(*c)
	default:
		data, err := chunkData(chunk)
		if err != nil {
			return err
		}
		return w.write(data)
	}
}

func (w *WritableStream) apply(p WriteParams) error {
	switch p.Type {
	case WriteSeek:
		if p.Position == nil {
			return newError(ErrInvalidChunk, "seek: position is required")
		}
		return w.seek(*p.Position)

	case WriteTruncate:
		if p.Size == nil {
			return newError(ErrInvalidChunk, "truncate: size is required")
		}
		return w.truncate(*p.Size)

	case WriteData, "":
		data, err := chunkData(p.Data)
		if err != nil {
			return err
		}
		if p.Position != nil {
			if err := w.seek(*p.Position); err != nil {
				return err
			}
		}
		return w.write(data)

	default:
		return newError(ErrInvalidChunk, fmt.Sprintf("write: unknown chunk type %q", p.Type))
	}
}

func chunkData(v any) ([]byte, error) {
	switch d := v.(type) {
	case []byte:
		return d, nil
	case string:
		return []byte(d), nil
	default:
		return nil, newError(ErrInvalidChunk, fmt.Sprintf("write: unsupported data of type %T", v))
	}
}

// write keeps the bytes before the cursor, zero-filling up to it if
// needed, appends data and drops the old tail.
func (w *WritableStream) write(data []byte) error {
	if int64(len(data)) > MaxStreamSize-w.cursor {
		return newError(ErrInvalidChunk, fmt.Sprintf("write: %d bytes at %d exceed %d", len(data), w.cursor, MaxStreamSize))
	}
	if gap := w.cursor - int64(len(w.buf)); gap > 0 {
		w.buf = append(w.buf, make([]byte, gap)...)
	}
	w.buf = append(w.buf[:w.cursor], data...)
	w.cursor += int64(len(data))
	return nil
}

func (w *WritableStream) seek(position int64) error {
	if position < 0 {
		return newError(ErrInvalidChunk, fmt.Sprintf("seek: negative position %d", position))
	}
	if position > MaxStreamSize {
		return newError(ErrInvalidChunk, fmt.Sprintf("seek: position %d exceeds %d", position, MaxStreamSize))
	}
	w.cursor = position
	return nil
}

func (w *WritableStream) truncate(size int64) error {
	if size < 0 {
		return newError(ErrInvalidChunk, fmt.Sprintf("truncate: negative size %d", size))
	}
	if size > MaxStreamSize {
		return newError(ErrInvalidChunk, fmt.Sprintf("truncate: size %d exceeds %d", size, MaxStreamSize))
	}

	if n := int64(len(w.buf)); size > n {
		w.buf = append(w.buf, make([]byte, size-n)...)
	} else {
		w.buf = w.buf[:size]
	}
	if w.cursor > size {
		w.cursor = size
	}
	return nil
}

// Seek moves the cursor.
func (w *WritableStream) Seek(position int64) error {
	return w.Write(WriteParams{Type: WriteSeek, Position: &position})
}

// Truncate resizes the buffer, zero-filling when it grows. Sizes above
// MaxStreamSize are rejected with ErrInvalidChunk.
func (w *WritableStream) Truncate(size int64) error {
	return w.Write(WriteParams{Type: WriteTruncate, Size: &size})
}

// Cursor returns the current write position.
func (w *WritableStream) Cursor() int64 {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.cursor
}

// Bytes returns a copy of the staged content.
func (w *WritableStream) Bytes() []byte {
	w.mu.Lock()
	defer w.mu.Unlock()
	return append([]byte(nil), w.buf...)
}

// Close sends the staged content with saveFile. The stream is closed
// whatever the outcome.
func (w *WritableStream) Close(ctx context.Context) *Future[struct{}] {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return Rejected[struct{}](newError(ErrStreamClosed, "close: stream is closed"))
	}
	w.closed = true
	content := base64.StdEncoding.EncodeToString(w.buf)
	w.buf = nil
	w.mu.Unlock()

	req := protocol.SaveFileRequest{Identifier: w.identifier, Content: content}
	return request(ctx, w.client, protocol.ActionSaveFile, req, func(r protocol.Reply) (struct{}, error) {
		var status string
		if err := r.Decode(&status); err != nil || status != protocol.SaveSuccess {
			return struct{}{}, newError(ErrBridge, fmt.Sprintf("saveFile: unexpected reply %s", r.Result))
		}
		return struct{}{}, nil
	})
}

// Abort discards the staged content without touching the file.
func (w *WritableStream) Abort() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return newError(ErrStreamClosed, "abort: stream is closed")
	}
	w.closed = true
	w.buf = nil
	return nil
}
