package polyfill

import (
	"context"

	"github.com/marmos91/fsbridge/pkg/bridge/protocol"
)

// PermissionState is the answer to a permission query.
type PermissionState string

// PermissionGranted is the only state ever reported. Access control
// happens on the native side, per scope.
const PermissionGranted PermissionState = "granted"

// PermissionMode is "read" or "readwrite". It does not change the answer.
type PermissionMode string

const (
	ModeRead      PermissionMode = "read"
	ModeReadWrite PermissionMode = "readwrite"
)

// Handle is either a *FileHandle or a *DirectoryHandle.
type Handle interface {
	// Kind is protocol.KindFile or protocol.KindDirectory
	Kind() protocol.Kind

	// Name is the last element of the location
	Name() string

	// URL is the driver's rendering of the location
	URL() string

	// Identifier is the registry key the bridge issued for this handle
	Identifier() string

	IsSameEntry(other Handle) bool
	QueryPermission(ctx context.Context, mode PermissionMode) *Future[PermissionState]
	RequestPermission(ctx context.Context, mode PermissionMode) *Future[PermissionState]

	entryOf() *entry
}

// entry holds what every handle knows about its location.
type entry struct {
	client     *Client
	kind       protocol.Kind
	name       string
	url        string
	identifier string
}

func newEntry(c *Client, h protocol.Handle) entry {
	return entry{client: c, kind: h.Kind, name: h.Name, url: h.URL, identifier: h.Identifier}
}

func (e *entry) Kind() protocol.Kind { return e.kind }
func (e *entry) Name() string        { return e.name }
func (e *entry) URL() string         { return e.url }
func (e *entry) Identifier() string  { return e.identifier }
func (e *entry) entryOf() *entry     { return e }

// IsSameEntry compares identifiers. Two handles for one path registered
// separately are not the same entry.
func (e *entry) IsSameEntry(other Handle) bool {
	return other != nil && other.Identifier() == e.identifier
}

// QueryPermission always resolves to granted.
func (e *entry) QueryPermission(context.Context, PermissionMode) *Future[PermissionState] {
	return Resolved(PermissionGranted)
}

// RequestPermission always resolves to granted.
func (e *entry) RequestPermission(context.Context, PermissionMode) *Future[PermissionState] {
	return Resolved(PermissionGranted)
}

// Encode renders h in its wire form. Directory handles include the
// currently cached children.
func Encode(h Handle) protocol.Handle {
	e := h.entryOf()
	out := protocol.Handle{Kind: e.kind, Name: e.name, URL: e.url, Identifier: e.identifier}

	switch h := h.(type) {
	case *FileHandle:
		out.Kind = protocol.KindFile
	case *DirectoryHandle:
		out.Kind = protocol.KindDirectory
		out.Entries = []protocol.Handle{}
		for child := range h.Values() {
			out.Entries = append(out.Entries, Encode(child))
		}
	}
	return out
}

// decodeHandle builds the handle type matching h.Kind.
func (c *Client) decodeHandle(h protocol.Handle) Handle {
	if h.Kind == protocol.KindDirectory {
		return c.newDirectoryHandle(h)
	}
	return c.newFileHandle(h)
}

func (c *Client) decodeDirectory(action string) func(protocol.Reply) (*DirectoryHandle, error) {
	return func(r protocol.Reply) (*DirectoryHandle, error) {
		raw, err := decodeResult[protocol.Handle](action)(r)
		if err != nil {
			return nil, err
		}
		return c.newDirectoryHandle(raw), nil
	}
}

func (c *Client) decodeFile(action string) func(protocol.Reply) (*FileHandle, error) {
	return func(r protocol.Reply) (*FileHandle, error) {
		raw, err := decodeResult[protocol.Handle](action)(r)
		if err != nil {
			return nil, err
		}
		return c.newFileHandle(raw), nil
	}
}
