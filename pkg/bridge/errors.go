package bridge

import (
	"errors"
	"fmt"

	"github.com/marmos91/fsbridge/pkg/driver"
	"github.com/marmos91/fsbridge/pkg/picker"
	"github.com/marmos91/fsbridge/pkg/registry"
	"github.com/marmos91/fsbridge/pkg/scope"
)

var (
	// ErrUserCancelled is returned when the user dismisses a picker.
	ErrUserCancelled = errors.New("user cancelled")

	// ErrNotFound is returned for unknown identifiers and missing entries.
	ErrNotFound = errors.New("not found")

	// ErrTypeMismatch is returned when a file was expected and a directory
	// was found, or the other way around.
	ErrTypeMismatch = errors.New("type mismatch")

	// ErrAccessDenied is returned when the scope of a resource could not be
	// acquired.
	ErrAccessDenied = errors.New("access denied")

	// ErrIOFailure wraps every other driver failure.
	ErrIOFailure = errors.New("i/o failure")
)

// Reply messages sent to clients.
const (
	MsgPickerDismissed   = "Picker dismissed"
	MsgDirectoryContents = "Could not get directory contents."
	MsgRemoveEntry       = "Could not remove entry."
	MsgReadFile          = "Could not read file."
	MsgCreateEntry       = "Could not create entry."
	MsgSaveFile          = "Could not save file."
)

// classify maps an error from a collaborator onto the bridge taxonomy.
func classify(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, ErrUserCancelled), errors.Is(err, ErrNotFound),
		errors.Is(err, ErrTypeMismatch), errors.Is(err, ErrAccessDenied),
		errors.Is(err, ErrIOFailure):
		return err
	case errors.Is(err, picker.ErrCancelled):
		return fmt.Errorf("%w: %w", ErrUserCancelled, err)
	case errors.Is(err, registry.ErrUnknownEntry):
		return fmt.Errorf("%w: %w", ErrNotFound, err)
	case errors.Is(err, scope.ErrAccessDenied):
		return fmt.Errorf("%w: %w", ErrAccessDenied, err)
	case errors.Is(err, driver.ErrNotDirectory), errors.Is(err, driver.ErrIsDirectory):
		return fmt.Errorf("%w: %w", ErrTypeMismatch, err)
	default:
		return fmt.Errorf("%w: %w", ErrIOFailure, err)
	}
}
