// Package driver defines the file-system operations the bridge performs on
// behalf of a client.
//
// Locations are slash-separated absolute paths. Implementations map them
// onto their own namespace: the local driver onto an afero filesystem, the
// S3 driver onto object keys beneath a prefix.
package driver

import (
	"context"
	"path"
	"time"
)

// Entry is one child returned by List.
type Entry struct {
	// Name is the last path element.
	Name string

	// Path is the child's full location.
	Path string

	// IsDir is the type as seen by the listing. The bridge re-checks it
	// with IsDirectory and falls back to this value.
	IsDir bool
}

// Driver is the file-system collaborator of the bridge.
//
// Every method honours ctx cancellation before touching storage. Errors
// wrap the sentinels in errors.go so callers can classify them with
// errors.Is:
//   - ErrNotFound: p (or its parent, for creations) does not exist
//   - ErrExists: p already exists where it must not
//   - ErrNotDirectory / ErrIsDirectory: p has the wrong type
//   - ErrInvalidName: p cannot be used at all, such as removing the root
//
// Implementations:
//   - local.Driver: afero filesystems (host disk or memory)
//   - s3.Driver: an S3 bucket beneath a key prefix
//
// Thread safety:
// Implementations must be safe for concurrent use. The bridge serializes
// nothing per location.
type Driver interface {
	// Read returns the whole content of the file at p.
	Read(ctx context.Context, p string) ([]byte, error)

	// Write replaces the content of the file at p, creating it when
	// missing. The parent directory must exist.
	Write(ctx context.Context, p string, data []byte) error

	// CreateEmpty creates a zero-length file at p, truncating any
	// existing file. The parent directory must exist.
	CreateEmpty(ctx context.Context, p string) error

	// CreateDirectory creates the directory p. With withIntermediates,
	// missing ancestors are created too and an existing directory is not
	// an error.
	CreateDirectory(ctx context.Context, p string, withIntermediates bool) error

	// List returns the immediate children of directory p, ordered by name.
	List(ctx context.Context, p string) ([]Entry, error)

	// Remove deletes the entry at p together with anything beneath it.
	Remove(ctx context.Context, p string) error

	// Exists reports whether anything lives at p. A missing p is not an
	// error.
	Exists(ctx context.Context, p string) (bool, error)

	// IsDirectory reports whether p is a directory. Unlike Exists, a
	// missing p fails with ErrNotFound.
	IsDirectory(ctx context.Context, p string) (bool, error)

	// ModificationTime returns when p last changed, or the zero time when
	// the storage does not record it.
	ModificationTime(ctx context.Context, p string) (time.Time, error)

	// URL renders p as an absolute URL for display to clients.
	URL(p string) string
}

// Clean normalises a location: slash-separated, absolute, no trailing
// slash except for the root.
func Clean(p string) string {
	return path.Clean("/" + p)
}

// Join appends name to the directory location dir.
func Join(dir, name string) string {
	return path.Join(Clean(dir), name)
}

// Base returns the last element of p.
func Base(p string) string {
	return path.Base(Clean(p))
}

// Parent returns the directory containing p. The parent of the root is
// the root.
func Parent(p string) string {
	return path.Dir(Clean(p))
}
