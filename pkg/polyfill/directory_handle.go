package polyfill

import (
	"context"
	"iter"
	"slices"
	"strings"
	"sync"

	"github.com/marmos91/fsbridge/pkg/bridge/protocol"
)

// DirectoryHandle refers to a registered directory and caches the
// children it was last listed with. The cache changes only through this
// handle's own operations and Refresh.
type DirectoryHandle struct {
	entry

	mu       sync.RWMutex
	order    []string
	children map[string]Handle
}

func (c *Client) newDirectoryHandle(h protocol.Handle) *DirectoryHandle {
	d := &DirectoryHandle{entry: newEntry(c, h)}
	d.reset(h.Entries)
	return d
}

func (d *DirectoryHandle) reset(entries []protocol.Handle) {
	order := make([]string, 0, len(entries))
	children := make(map[string]Handle, len(entries))
	for _, e := range entries {
		if _, dup := children[e.Name]; !dup {
			order = append(order, e.Name)
		}
		children[e.Name] = d.client.decodeHandle(e)
	}

	d.mu.Lock()
	d.order, d.children = order, children
	d.mu.Unlock()
}

func (d *DirectoryHandle) cached(name string) (Handle, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	h, ok := d.children[name]
	return h, ok
}

func (d *DirectoryHandle) add(h Handle) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, ok := d.children[h.Name()]; !ok {
		d.order = append(d.order, h.Name())
	}
	d.children[h.Name()] = h
}

func (d *DirectoryHandle) evict(name string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.children, name)
	d.order = slices.DeleteFunc(d.order, func(n string) bool { return n == name })
}

// Len returns the number of cached children.
func (d *DirectoryHandle) Len() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.order)
}

// GetHandleOptions configures GetFileHandle and GetDirectoryHandle.
type GetHandleOptions struct {
	Create bool
}

// GetFileHandle returns the cached file called name, or creates it when
// opts.Create is set.
func (d *DirectoryHandle) GetFileHandle(ctx context.Context, name string, opts GetHandleOptions) *Future[*FileHandle] {
	if h, ok := d.cached(name); ok {
		if fh, isFile := h.(*FileHandle); isFile {
			return Resolved(fh)
		}
		return Rejected[*FileHandle](newError(ErrTypeMismatch, MsgIsDirectory))
	}
	if !opts.Create {
		return Rejected[*FileHandle](newError(ErrNotFound, MsgFileNotFound))
	}

	req := protocol.CreateEntryRequest{Parent: d.identifier, Name: name}
	decode := d.client.decodeFile(protocol.ActionCreateFile)
	return request(ctx, d.client, protocol.ActionCreateFile, req, func(r protocol.Reply) (*FileHandle, error) {
		fh, err := decode(r)
		if err != nil {
			return nil, err
		}
		d.add(fh)
		return fh, nil
	})
}

// GetDirectoryHandle returns the directory called name, re-listed from
// the bridge, or creates it when opts.Create is set.
//
// A created name may span several elements ("a/b"), in which case the
// missing levels are created too. Only direct children enter the cache;
// call Refresh to see a new intermediate directory.
func (d *DirectoryHandle) GetDirectoryHandle(ctx context.Context, name string, opts GetHandleOptions) *Future[*DirectoryHandle] {
	if h, ok := d.cached(name); ok {
		if dh, isDir := h.(*DirectoryHandle); isDir {
			return dh.Refresh(ctx)
		}
		return Rejected[*DirectoryHandle](newError(ErrTypeMismatch, MsgIsFile))
	}
	if !opts.Create {
		return Rejected[*DirectoryHandle](newError(ErrNotFound, MsgDirectoryNotFound))
	}

	req := protocol.CreateEntryRequest{Parent: d.identifier, Name: name}
	decode := d.client.decodeDirectory(protocol.ActionCreateDirectory)
	return request(ctx, d.client, protocol.ActionCreateDirectory, req, func(r protocol.Reply) (*DirectoryHandle, error) {
		dh, err := decode(r)
		if err != nil {
			return nil, err
		}
		if !strings.Contains(name, "/") {
			d.add(dh)
		}
		return dh, nil
	})
}

// Refresh re-lists the directory and replaces the cache.
func (d *DirectoryHandle) Refresh(ctx context.Context) *Future[*DirectoryHandle] {
	req := protocol.EntryRequest{Identifier: d.identifier}
	return request(ctx, d.client, protocol.ActionGetDirectory, req, func(r protocol.Reply) (*DirectoryHandle, error) {
		raw, err := decodeResult[protocol.Handle](protocol.ActionGetDirectory)(r)
		if err != nil {
			return nil, err
		}
		d.reset(raw.Entries)
		return d, nil
	})
}

// RemoveOptions configures RemoveEntry. Without Recursive a non-empty
// directory is not removed.
type RemoveOptions struct {
	Recursive bool
}

// RemoveEntry deletes the cached child called name. The child leaves the
// cache only once the bridge confirms the removal; a reply of false
// rejects with ErrBridge.
func (d *DirectoryHandle) RemoveEntry(ctx context.Context, name string, opts RemoveOptions) *Future[struct{}] {
	h, ok := d.cached(name)
	if !ok {
		return Rejected[struct{}](newError(ErrNotFound, MsgEntryNotFound))
	}

	req := protocol.RemoveEntryRequest{Identifier: h.Identifier(), Recursive: opts.Recursive}
	return request(ctx, d.client, protocol.ActionRemoveEntry, req, func(r protocol.Reply) (struct{}, error) {
		removed, err := decodeResult[bool](protocol.ActionRemoveEntry)(r)
		if err != nil {
			return struct{}{}, err
		}
		if !removed {
			return struct{}{}, newError(ErrBridge, MsgRemoveRefused)
		}
		d.evict(name)
		d.client.logInfo("removed %s", name)
		return struct{}{}, nil
	})
}

// Resolve returns the name components leading to the cached child with the
// same name as descendant, as reported by the bridge. It resolves to nil
// when no such child is cached.
func (d *DirectoryHandle) Resolve(ctx context.Context, descendant Handle) *Future[[]string] {
	if descendant == nil {
		return Resolved[[]string](nil)
	}
	h, ok := d.cached(descendant.Name())
	if !ok {
		return Resolved[[]string](nil)
	}

	req := protocol.EntryRequest{Identifier: h.Identifier()}
	return request(ctx, d.client, protocol.ActionResolve, req, decodeResult[[]string](protocol.ActionResolve))
}

// snapshot copies the cache in insertion order.
func (d *DirectoryHandle) snapshot() ([]string, []Handle) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	names := slices.Clone(d.order)
	handles := make([]Handle, len(names))
	for i, n := range names {
		handles[i] = d.children[n]
	}
	return names, handles
}

// All yields the cached children as name and handle pairs in insertion
// order. It iterates over a copy taken when iteration starts.
func (d *DirectoryHandle) All() iter.Seq2[string, Handle] {
	return func(yield func(string, Handle) bool) {
		names, handles := d.snapshot()
		for i := range names {
			if !yield(names[i], handles[i]) {
				return
			}
		}
	}
}

// Keys yields the cached child names in insertion order.
func (d *DirectoryHandle) Keys() iter.Seq[string] {
	return func(yield func(string) bool) {
		for name := range d.All() {
			if !yield(name) {
				return
			}
		}
	}
}

// Values yields the cached child handles in insertion order.
func (d *DirectoryHandle) Values() iter.Seq[Handle] {
	return func(yield func(Handle) bool) {
		for _, h := range d.All() {
			if !yield(h) {
				return
			}
		}
	}
}
