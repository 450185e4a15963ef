package polyfill

import (
	"context"

	"github.com/marmos91/fsbridge/pkg/bridge/protocol"
)

// FileHandle refers to a registered file.
type FileHandle struct {
	entry
}

func (c *Client) newFileHandle(h protocol.Handle) *FileHandle {
	return &FileHandle{entry: newEntry(c, h)}
}

// GetFile reads the whole file.
func (h *FileHandle) GetFile(ctx context.Context) *Future[*File] {
	req := protocol.EntryRequest{Identifier: h.identifier}
	return request(ctx, h.client, protocol.ActionReadFile, req, func(r protocol.Reply) (*File, error) {
		payload, err := decodeResult[protocol.FilePayload](protocol.ActionReadFile)(r)
		if err != nil {
			return nil, err
		}
		return decodeFile(payload)
	})
}

// WritableOptions configures CreateWritable.
type WritableOptions struct {
	// KeepExistingData seeds the stream with the current content.
	KeepExistingData bool
}

// CreateWritable opens a stream that replaces the file content on Close.
//
// Without KeepExistingData the stream starts empty and no request is made
// until Close. With it the current content is read first and the cursor
// starts at 0, so a plain write overwrites from the beginning.
//
// Example:
//
//	w, _ := fh.CreateWritable(ctx, polyfill.WritableOptions{KeepExistingData: true}).Await(ctx)
//	_ = w.Seek(5)
//	_ = w.Write(" world")
//	_, err := w.Close(ctx).Await(ctx)
func (h *FileHandle) CreateWritable(ctx context.Context, opts WritableOptions) *Future[*WritableStream] {
	if !opts.KeepExistingData {
		return Resolved(newWritableStream(h.client, h.identifier, nil))
	}

	return Then(h.GetFile(ctx), func(f *File) (*WritableStream, error) {
		return newWritableStream(h.client, h.identifier, f.data), nil
	})
}
