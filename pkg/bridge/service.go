// Package bridge implements the native side of the file-access bridge.
//
// Service performs the file operations behind each action against a
// driver, registering every location it hands out in the handle registry.
// Dispatcher decodes raw requests, calls the Service and turns the outcome
// into a protocol.Reply. No error or panic raised by a collaborator ever
// reaches the client as anything other than an error string.
package bridge

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"time"

	"github.com/marmos91/fsbridge/internal/logger"
	"github.com/marmos91/fsbridge/pkg/bridge/protocol"
	"github.com/marmos91/fsbridge/pkg/driver"
	"github.com/marmos91/fsbridge/pkg/metrics"
	"github.com/marmos91/fsbridge/pkg/picker"
	"github.com/marmos91/fsbridge/pkg/registry"
	"github.com/marmos91/fsbridge/pkg/scope"
)

// Config holds the collaborators of a Service.
type Config struct {
	// Registry maps identifiers to locations (required)
	Registry registry.Registry

	// Driver performs the file system I/O (required)
	Driver driver.Driver

	// Scopes brackets every access to a location (required)
	Scopes scope.Service

	// Picker asks the user for locations. New wraps it so that at most
	// one dialog is open at a time (required)
	Picker picker.Picker

	// Metrics defaults to a no-op implementation.
	Metrics metrics.BridgeMetrics

	// DetectMIME defaults to DetectMIME.
	DetectMIME func([]byte) string
}

// Service performs bridge operations.
//
// A Service holds no per-request state: concurrent calls only meet in the
// registry and the driver.
type Service struct {
	registry registry.Registry
	driver   driver.Driver
	scopes   scope.Service
	picker   picker.Picker
	metrics  metrics.BridgeMetrics
	detect   func([]byte) string
}

// New creates a Service from its collaborators.
//
// The driver is wrapped so every call is timed into cfg.Metrics, and the
// picker is serialized so concurrent picker actions queue behind the open
// dialog.
//
// Parameters:
//   - cfg: Collaborators of the service. Registry, Driver, Scopes and Picker
//     are required; Metrics and DetectMIME fall back to defaults.
//
// Returns:
//   - *Service: Ready to be wrapped by NewDispatcher
//   - error: If a required collaborator is missing
func New(cfg Config) (*Service, error) {
	if cfg.Registry == nil {
		return nil, errors.New("bridge: registry is required")
	}
	if cfg.Driver == nil {
		return nil, errors.New("bridge: driver is required")
	}
	if cfg.Scopes == nil {
		return nil, errors.New("bridge: scope service is required")
	}
	if cfg.Picker == nil {
		return nil, errors.New("bridge: picker is required")
	}
	if cfg.Metrics == nil {
		cfg.Metrics = metrics.NewNoop()
	}
	if cfg.DetectMIME == nil {
		cfg.DetectMIME = DetectMIME
	}

	return &Service{
		registry: cfg.Registry,
		driver:   instrument(cfg.Driver, cfg.Metrics),
		scopes:   cfg.Scopes,
		picker:   picker.Serialized(cfg.Picker),
		metrics:  cfg.Metrics,
		detect:   cfg.DetectMIME,
	}, nil
}

// Register adds a location to the registry. Locations picked by the user
// are their own scope root; entries found below them inherit it.
//
// Both paths are cleaned before they are stored, and every call yields a
// fresh identifier even for a location that is already registered.
//
// Returns the stored resource with its new identifier, or ErrIOFailure
// when the registry rejects it.
func (s *Service) Register(ctx context.Context, target, scopeRoot string) (registry.Resource, error) {
	res := registry.Resource{
		Target:    driver.Clean(target),
		ScopeRoot: driver.Clean(scopeRoot),
	}

	id, err := s.registry.Register(ctx, res)
	if err != nil {
		return registry.Resource{}, fmt.Errorf("%w: register %s: %w", ErrIOFailure, res.Target, err)
	}
	res.ID = id
	s.metrics.RecordEntryRegistered()
	return res, nil
}

func (s *Service) lookup(ctx context.Context, id string) (registry.Resource, error) {
	res, err := s.registry.Get(ctx, registry.EntryID(id))
	if err != nil {
		return registry.Resource{}, classify(err)
	}
	return res, nil
}

// withScope runs fn while holding the scope of root. The scope is released
// on every exit path.
func (s *Service) withScope(ctx context.Context, root string, fn func() error) error {
	return classify(scope.Do(ctx, s.scopes, root, fn))
}

func (s *Service) handle(res registry.Resource, kind protocol.Kind) protocol.Handle {
	return protocol.Handle{
		Kind:       kind,
		Name:       driver.Base(res.Target),
		URL:        s.driver.URL(res.Target),
		Identifier: res.ID.String(),
	}
}

// enumerate registers the direct children of dir and returns their
// handles in listing order. Children inherit the scope root of dir. The
// caller holds that scope.
func (s *Service) enumerate(ctx context.Context, dir registry.Resource) ([]protocol.Handle, error) {
	entries, err := s.driver.List(ctx, dir.Target)
	if err != nil {
		return nil, err
	}

	children := make([]protocol.Handle, 0, len(entries))
	for _, e := range entries {
		isDir, err := s.driver.IsDirectory(ctx, e.Path)
		if err != nil {
			logger.Debug("type check of %s failed, using listing: %v", e.Path, err)
			isDir = e.IsDir
		}

		child, err := s.Register(ctx, e.Path, dir.ScopeRoot)
		if err != nil {
			return nil, err
		}

		kind := protocol.KindFile
		if isDir {
			kind = protocol.KindDirectory
		}
		children = append(children, s.handle(child, kind))
	}
	return children, nil
}

// directoryHandle builds the handle of dir populated one level deep.
func (s *Service) directoryHandle(ctx context.Context, dir registry.Resource) (protocol.Handle, error) {
	children, err := s.enumerate(ctx, dir)
	if err != nil {
		return protocol.Handle{}, err
	}
	h := s.handle(dir, protocol.KindDirectory)
	h.Entries = children
	return h, nil
}

// PickFiles asks the picker for files and registers each selection.
// Picked directories are returned populated one level deep.
//
// Parameters:
//   - multiple: Whether the user may select more than one entry
//   - accept: Extensions to offer (".txt" or "txt"); empty offers everything
//
// Returns:
//   - []protocol.Handle: One handle per selection, in picker order
//   - error: ErrUserCancelled when nothing was picked, ErrAccessDenied or
//     ErrIOFailure when a selection cannot be inspected
func (s *Service) PickFiles(ctx context.Context, multiple bool, accept []string) ([]protocol.Handle, error) {
	paths, err := s.picker.PickFiles(ctx, multiple, accept)
	if err != nil {
		return nil, classify(err)
	}
	if len(paths) == 0 {
		return nil, ErrUserCancelled
	}

	handles := make([]protocol.Handle, 0, len(paths))
	for _, p := range paths {
		res, err := s.Register(ctx, p, p)
		if err != nil {
			return nil, err
		}

		var h protocol.Handle
		err = s.withScope(ctx, res.ScopeRoot, func() error {
			isDir, err := s.driver.IsDirectory(ctx, res.Target)
			if err != nil {
				return err
			}
			if !isDir {
				h = s.handle(res, protocol.KindFile)
				return nil
			}
			h, err = s.directoryHandle(ctx, res)
			return err
		})
		if err != nil {
			return nil, err
		}
		handles = append(handles, h)
	}
	return handles, nil
}

// PickDirectory asks the picker for a directory and returns it populated
// one level deep.
func (s *Service) PickDirectory(ctx context.Context) (protocol.Handle, error) {
	p, err := s.picker.PickDirectory(ctx)
	if err != nil {
		return protocol.Handle{}, classify(err)
	}

	res, err := s.Register(ctx, p, p)
	if err != nil {
		return protocol.Handle{}, err
	}

	var h protocol.Handle
	err = s.withScope(ctx, res.ScopeRoot, func() error {
		var err error
		h, err = s.directoryHandle(ctx, res)
		return err
	})
	return h, err
}

// PickSaveTarget asks the picker where to save, creates the chosen file
// empty and returns it as a one-element handle list.
//
// An empty suggestedName falls back to protocol.DefaultSuggestedName. The
// file is created before it is registered, so a failed creation leaves no
// registry entry behind.
func (s *Service) PickSaveTarget(ctx context.Context, suggestedName string) ([]protocol.Handle, error) {
	if suggestedName == "" {
		suggestedName = protocol.DefaultSuggestedName
	}

	p, err := s.picker.PickSaveTarget(ctx, suggestedName)
	if err != nil {
		return nil, classify(err)
	}
	target := driver.Clean(p)

	err = s.withScope(ctx, target, func() error {
		return s.driver.CreateEmpty(ctx, target)
	})
	if err != nil {
		return nil, err
	}

	res, err := s.Register(ctx, target, target)
	if err != nil {
		return nil, err
	}
	return []protocol.Handle{s.handle(res, protocol.KindFile)}, nil
}

// ReadFile returns the content of a registered file.
//
// Parameters:
//   - id: Identifier of a registered file
//
// Returns:
//   - protocol.FilePayload: Base64 content, sniffed MIME type, base name
//     and RFC 3339 modification time ("0" when the driver cannot tell)
//   - error: ErrNotFound for an unknown identifier, ErrAccessDenied when the
//     scope is refused, ErrIOFailure when the read fails
func (s *Service) ReadFile(ctx context.Context, id string) (protocol.FilePayload, error) {
	res, err := s.lookup(ctx, id)
	if err != nil {
		return protocol.FilePayload{}, err
	}

	var payload protocol.FilePayload
	err = s.withScope(ctx, res.ScopeRoot, func() error {
		data, err := s.driver.Read(ctx, res.Target)
		if err != nil {
			return err
		}

		lastModified := "0"
		if mt, err := s.driver.ModificationTime(ctx, res.Target); err == nil && !mt.IsZero() {
			lastModified = mt.UTC().Format(time.RFC3339Nano)
		}

		payload = protocol.FilePayload{
			Content:      base64.StdEncoding.EncodeToString(data),
			Type:         s.detect(data),
			Name:         driver.Base(res.Target),
			LastModified: lastModified,
		}
		s.metrics.RecordBytesTransferred(protocol.ActionReadFile, metrics.DirectionRead, len(data))
		return nil
	})
	return payload, err
}

// SaveFile replaces the content of a registered file.
//
// An unknown identifier or a scope that cannot be acquired is not an
// error: the call does nothing and reports success.
func (s *Service) SaveFile(ctx context.Context, id string, data []byte) error {
	res, err := s.lookup(ctx, id)
	if err != nil {
		logger.Warn("saveFile: ignoring unknown identifier %s", id)
		return nil
	}

	err = s.withScope(ctx, res.ScopeRoot, func() error {
		return s.driver.Write(ctx, res.Target, data)
	})
	switch {
	case errors.Is(err, ErrAccessDenied):
		logger.Warn("saveFile: scope %s unavailable, nothing written to %s", res.ScopeRoot, res.Target)
		return nil
	case err != nil:
		return err
	}

	s.metrics.RecordBytesTransferred(protocol.ActionSaveFile, metrics.DirectionWrite, len(data))
	return nil
}

// CreateFile creates an empty file named name inside the registered
// directory parent.
//
// name must be a single element. The new entry inherits the scope root of
// parent and is returned as a file handle.
func (s *Service) CreateFile(ctx context.Context, parent, name string) (protocol.Handle, error) {
	dir, err := s.lookup(ctx, parent)
	if err != nil {
		return protocol.Handle{}, err
	}
	if !driver.ValidName(name) {
		return protocol.Handle{}, fmt.Errorf("%w: %q: %w", ErrIOFailure, name, driver.ErrInvalidName)
	}

	var h protocol.Handle
	err = s.withScope(ctx, dir.ScopeRoot, func() error {
		target := driver.Join(dir.Target, name)
		if err := s.driver.CreateEmpty(ctx, target); err != nil {
			return err
		}

		res, err := s.Register(ctx, target, dir.ScopeRoot)
		if err != nil {
			return err
		}
		h = s.handle(res, protocol.KindFile)
		return nil
	})
	return h, err
}

// CreateDirectory creates the directory at the relative path name inside
// the registered directory parent.
//
// name may span several elements ("a/b/c"); missing intermediate
// directories are created along the way. Every element must be a valid
// name, so the result can never escape parent.
//
// Parameters:
//   - parent: identifier of a registered directory
//   - name: relative path of the new directory
//
// Returns the handle of the deepest directory, named after the last
// element and populated one level deep.
func (s *Service) CreateDirectory(ctx context.Context, parent, name string) (protocol.Handle, error) {
	dir, err := s.lookup(ctx, parent)
	if err != nil {
		return protocol.Handle{}, err
	}
	if !driver.ValidRelativePath(name) {
		return protocol.Handle{}, fmt.Errorf("%w: %q: %w", ErrIOFailure, name, driver.ErrInvalidName)
	}

	var h protocol.Handle
	err = s.withScope(ctx, dir.ScopeRoot, func() error {
		target := driver.Join(dir.Target, name)
		if err := s.driver.CreateDirectory(ctx, target, true); err != nil {
			return err
		}

		res, err := s.Register(ctx, target, dir.ScopeRoot)
		if err != nil {
			return err
		}
		h, err = s.directoryHandle(ctx, res)
		return err
	})
	return h, err
}

// RemoveEntry deletes a registered entry. The registry entry itself is
// kept, so later calls with the identifier fail with ErrIOFailure.
//
// A directory with children is only removed when recursive is set. In
// recursive mode each child is removed in listing order and then the
// directory itself; the first failure stops the removal.
func (s *Service) RemoveEntry(ctx context.Context, id string, recursive bool) (bool, error) {
	res, err := s.lookup(ctx, id)
	if err != nil {
		return false, err
	}

	err = s.withScope(ctx, res.ScopeRoot, func() error {
		// Step 1: the entry must exist
		exists, err := s.driver.Exists(ctx, res.Target)
		if err != nil {
			return err
		}
		if !exists {
			return fmt.Errorf("%w: %s", ErrNotFound, res.Target)
		}

		// Step 2: plain files go directly
		isDir, err := s.driver.IsDirectory(ctx, res.Target)
		if err != nil {
			return err
		}
		if !isDir {
			return s.driver.Remove(ctx, res.Target)
		}

		// Step 3: children first, then the directory
		children, err := s.driver.List(ctx, res.Target)
		if err != nil {
			return err
		}
		if len(children) > 0 && !recursive {
			return fmt.Errorf("%w: %s: directory not empty", ErrIOFailure, res.Target)
		}
		for _, child := range children {
			if err := s.driver.Remove(ctx, child.Path); err != nil {
				return err
			}
		}
		return s.driver.Remove(ctx, res.Target)
	})
	if err != nil {
		return false, err
	}
	return true, nil
}

// Resolve returns the names of the entries that share the target's
// parent, in listing order and without the target, followed by the
// target's own name. Failures yield an empty list.
//
// The parent of a picked entry usually lies outside the entry's scope
// root. The listing then also needs the parent's own scope, and a refusal
// yields an empty list like any other failure.
func (s *Service) Resolve(ctx context.Context, id string) []string {
	names := []string{}

	res, err := s.lookup(ctx, id)
	if err != nil {
		return names
	}

	self := driver.Base(res.Target)
	parent := driver.Parent(res.Target)
	list := func() error {
		entries, err := s.driver.List(ctx, parent)
		if err != nil {
			return err
		}
		for _, e := range entries {
			if e.Name != self {
				names = append(names, e.Name)
			}
		}
		names = append(names, self)
		return nil
	}

	err = s.withScope(ctx, res.ScopeRoot, func() error {
		if scope.Within(res.ScopeRoot, parent) {
			return list()
		}
		return s.withScope(ctx, parent, list)
	})
	if err != nil {
		logger.Debug("resolve %s: %v", id, err)
		return []string{}
	}
	return names
}

// GetDirectory returns a registered directory populated one level deep.
// Every child is registered under a fresh identifier.
func (s *Service) GetDirectory(ctx context.Context, id string) (protocol.Handle, error) {
	res, err := s.lookup(ctx, id)
	if err != nil {
		return protocol.Handle{}, err
	}

	var h protocol.Handle
	err = s.withScope(ctx, res.ScopeRoot, func() error {
		var err error
		h, err = s.directoryHandle(ctx, res)
		return err
	})
	return h, err
}
