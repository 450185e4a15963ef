// Package registry maps opaque entry identifiers to the file-system
// locations a client is allowed to reach.
//
// An identifier is handed to the client only after its resource has been
// registered. Entries are never removed during a session: an identifier
// whose target was deleted on disk stays resolvable, and I/O against it
// fails at the driver instead.
package registry

import (
	"context"
	"fmt"

	"github.com/google/uuid"
)

// EntryID is the opaque identifier a client uses to refer to a registered
// location.
type EntryID string

// String returns the identifier as sent on the wire.
func (id EntryID) String() string {
	return string(id)
}

// NewEntryID generates a fresh random identifier.
func NewEntryID() EntryID {
	return EntryID(uuid.NewString())
}

// Resource is a scoped file-system location.
//
// Target is the concrete file or directory. ScopeRoot is the ancestor for
// which access was granted: it equals Target for locations the user picked
// directly, and is inherited from the parent for locations discovered by
// enumerating a directory. Every I/O against Target must hold the scope of
// ScopeRoot.
type Resource struct {
	ID        EntryID `json:"id"`
	Target    string  `json:"target"`
	ScopeRoot string  `json:"scope_root"`
}

func (r Resource) validate() error {
	if r.Target == "" {
		return fmt.Errorf("%w: empty target", ErrInvalidResource)
	}
	if r.ScopeRoot == "" {
		return fmt.Errorf("%w: empty scope root", ErrInvalidResource)
	}
	return nil
}

// Registry is the table of registered resources.
//
// Implementations:
//   - Memory: a map, lost when the process exits
//   - badger.Registry: persisted in BadgerDB so identifiers survive a
//     restart of the bridge
//
// Implementations must be safe for concurrent Register and Get calls.
type Registry interface {
	// Register stores r under a freshly generated identifier and returns
	// it. Any ID already set on r is ignored.
	Register(ctx context.Context, r Resource) (EntryID, error)

	// Get returns the resource registered under id, or ErrUnknownEntry.
	Get(ctx context.Context, id EntryID) (Resource, error)

	// Count returns the number of registered resources.
	Count(ctx context.Context) (int, error)

	// Close releases the storage. Later calls fail with ErrClosed.
	Close() error
}
