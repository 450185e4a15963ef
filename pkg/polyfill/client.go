// Package polyfill is the client half of the bridge: a handle and stream
// object model whose every operation becomes one bridge request.
//
// Operations return a *Future that settles once with the decoded result or
// with an error. Errors produced on the client carry a *Error whose Kind is
// ErrNotFound, ErrTypeMismatch, ErrStreamClosed or ErrInvalidChunk. Errors
// reported by the native side are *Error values of kind ErrBridge carrying
// the reply message verbatim. Transport failures are returned wrapped.
package polyfill

import (
	"context"
	"fmt"
	"time"

	"github.com/marmos91/fsbridge/internal/logger"
	"github.com/marmos91/fsbridge/pkg/bridge/protocol"
	"github.com/marmos91/fsbridge/pkg/transport"
)

// remoteLogTimeout bounds a forwarded debugPrint.
const remoteLogTimeout = 5 * time.Second

// Client issues bridge requests over a transport.Caller.
//
// A Client is the entry point of the object model: the three pickers hand
// out the first handles, and every handle keeps a reference to the client
// that created it.
//
// Thread safety:
// All methods are safe for concurrent use. Each request runs on its own
// goroutine and settles its own future.
type Client struct {
	caller    transport.Caller
	remoteLog bool
}

// Option configures a Client.
type Option func(*Client)

// WithRemoteLog forwards the client's info and error lines to the native
// log through debugPrint.
func WithRemoteLog() Option {
	return func(c *Client) {
		c.remoteLog = true
	}
}

// NewClient creates a client over caller.
//
// Parameters:
//   - caller: Any transport: inproc for tests and embedding, stream or
//     httpapi for a bridge in another process
//   - opts: Optional behaviour such as WithRemoteLog
//
// The client owns caller from now on; Close closes it.
func NewClient(caller transport.Caller, opts ...Option) *Client {
	c := &Client{caller: caller}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Close releases the underlying transport.
func (c *Client) Close() error {
	return c.caller.Close()
}

// request sends one action and settles the returned future with decode's
// output. decode only runs on a reply that carries no error.
func request[T any](ctx context.Context, c *Client, action string, params any, decode func(protocol.Reply) (T, error)) *Future[T] {
	f := newFuture[T]()

	raw, err := protocol.Encode(action, params)
	if err != nil {
		f.reject(err)
		return f
	}

	logger.Debug("[CALL] %s", action)

	go func() {
		reply, err := c.caller.Call(ctx, raw)
		if err != nil {
			c.logError("%s failed: %v", action, err)
			f.reject(fmt.Errorf("%s: %w", action, err))
			return
		}
		if reply.Failed() {
			c.logError("%s failed: %s", action, reply.Message())
			f.reject(newError(ErrBridge, reply.Message()))
			return
		}

		v, err := decode(reply)
		if err != nil {
			c.logError("%s: %v", action, err)
			f.reject(err)
			return
		}
		f.resolve(v)
	}()

	return f
}

// decodeResult decodes a reply result into a T. A null result is an error.
func decodeResult[T any](action string) func(protocol.Reply) (T, error) {
	return func(r protocol.Reply) (T, error) {
		var v T
		if r.Empty() {
			return v, newError(ErrBridge, action+": empty reply")
		}
		if err := r.Decode(&v); err != nil {
			return v, fmt.Errorf("%s: malformed reply: %w", action, err)
		}
		return v, nil
	}
}

// OpenFilePickerOptions configures ShowOpenFilePicker.
type OpenFilePickerOptions struct {
	Multiple               bool
	ExcludeAcceptAllOption bool
	Types                  []protocol.FilePickerAcceptType

	// Accept lists extensions directly. It wins over Types.
	Accept []string
}

// SaveFilePickerOptions configures ShowSaveFilePicker. An empty
// SuggestedName lets the bridge pick "untitled.txt".
type SaveFilePickerOptions struct {
	SuggestedName          string
	ExcludeAcceptAllOption bool
	Types                  []protocol.FilePickerAcceptType
}

// ShowOpenFilePicker asks the user for one or more existing entries.
//
// The future resolves with one handle per selection: *FileHandle for
// files, *DirectoryHandle (already listed one level deep) for
// directories. A dismissed dialog rejects with ErrBridge.
func (c *Client) ShowOpenFilePicker(ctx context.Context, opts OpenFilePickerOptions) *Future[[]Handle] {
	req := protocol.OpenFilePickerRequest{
		Multiple:               opts.Multiple,
		ExcludeAcceptAllOption: opts.ExcludeAcceptAllOption,
		Types:                  opts.Types,
		Accept:                 opts.Accept,
	}
	if req.Accept == nil {
		req.Accept = []string{}
	}

	return request(ctx, c, protocol.ActionShowOpenFilePicker, req, func(r protocol.Reply) ([]Handle, error) {
		raw, err := decodeResult[[]protocol.Handle](protocol.ActionShowOpenFilePicker)(r)
		if err != nil {
			return nil, err
		}
		handles := make([]Handle, 0, len(raw))
		for _, h := range raw {
			handles = append(handles, c.decodeHandle(h))
		}
		return handles, nil
	})
}

// ShowDirectoryPicker asks the user for a directory. The handle resolves
// with its direct children already cached.
func (c *Client) ShowDirectoryPicker(ctx context.Context) *Future[*DirectoryHandle] {
	return request(ctx, c, protocol.ActionShowDirectoryPicker, nil, c.decodeDirectory(protocol.ActionShowDirectoryPicker))
}

// ShowSaveFilePicker asks the user for a save target. The target exists,
// empty, once the future resolves.
func (c *Client) ShowSaveFilePicker(ctx context.Context, opts SaveFilePickerOptions) *Future[*FileHandle] {
	req := protocol.SaveFilePickerRequest{
		SuggestedName:          opts.SuggestedName,
		ExcludeAcceptAllOption: opts.ExcludeAcceptAllOption,
		Types:                  opts.Types,
	}

	return request(ctx, c, protocol.ActionShowSaveFilePicker, req, func(r protocol.Reply) (*FileHandle, error) {
		raw, err := decodeResult[[]protocol.Handle](protocol.ActionShowSaveFilePicker)(r)
		if err != nil {
			return nil, err
		}
		if len(raw) == 0 {
			return nil, newError(ErrBridge, protocol.ActionShowSaveFilePicker+": empty reply")
		}
		return c.newFileHandle(raw[0]), nil
	})
}

// DebugPrint writes message to the native log.
func (c *Client) DebugPrint(ctx context.Context, message string) *Future[struct{}] {
	return request(ctx, c, protocol.ActionDebugPrint, protocol.DebugPrintRequest{Message: message},
		func(protocol.Reply) (struct{}, error) { return struct{}{}, nil })
}

func (c *Client) logInfo(format string, args ...any) {
	logger.Info(format, args...)
	c.forward("[INFO] " + fmt.Sprintf(format, args...))
}

func (c *Client) logError(format string, args ...any) {
	logger.Error(format, args...)
	c.forward("[ERROR] " + fmt.Sprintf(format, args...))
}

// forward sends a log line without waiting for, or logging, the outcome.
func (c *Client) forward(line string) {
	if !c.remoteLog {
		return
	}

	raw, err := protocol.Encode(protocol.ActionDebugPrint, protocol.DebugPrintRequest{Message: line})
	if err != nil {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), remoteLogTimeout)
		defer cancel()
		_, _ = c.caller.Call(ctx, raw)
	}()
}
