package polyfill

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/marmos91/fsbridge/pkg/bridge/protocol"
)

// File is a snapshot of a file's content taken by GetFile.
type File struct {
	Name         string
	Type         string
	LastModified time.Time

	data []byte
}

// Size returns the content length in bytes.
func (f *File) Size() int64 {
	return int64(len(f.data))
}

// Bytes returns a copy of the content.
func (f *File) Bytes() []byte {
	return bytes.Clone(f.data)
}

// Text returns the content as a string.
func (f *File) Text() string {
	return string(f.data)
}

// Reader reads the content from the start.
func (f *File) Reader() io.Reader {
	return bytes.NewReader(f.data)
}

func decodeFile(p protocol.FilePayload) (*File, error) {
	data, err := base64.StdEncoding.DecodeString(p.Content)
	if err != nil {
		return nil, fmt.Errorf("readFile: malformed content: %w", err)
	}
	return &File{
		Name:         p.Name,
		Type:         p.Type,
		LastModified: parseLastModified(p.LastModified),
		data:         data,
	}, nil
}

// parseLastModified accepts RFC 3339 or integer milliseconds since the
// epoch. Anything else, "0" included, is the zero time.
func parseLastModified(s string) time.Time {
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return t
	}
	if ms, err := strconv.ParseInt(s, 10, 64); err == nil && ms > 0 {
		return time.UnixMilli(ms).UTC()
	}
	return time.Time{}
}
