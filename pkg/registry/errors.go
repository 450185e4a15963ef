package registry

import "errors"

var (
	// ErrUnknownEntry is returned by Get when no resource was registered
	// under the identifier.
	ErrUnknownEntry = errors.New("unknown entry identifier")

	// ErrInvalidResource is returned by Register when the resource has no
	// target or no scope root.
	ErrInvalidResource = errors.New("invalid resource")

	// ErrClosed is returned by operations on a closed registry.
	ErrClosed = errors.New("registry closed")
)
