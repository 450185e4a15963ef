package polyfill

import (
	"errors"
)

var (
	// ErrNotFound is the kind of a missing entry.
	ErrNotFound = errors.New("NotFoundError")

	// ErrTypeMismatch is the kind of a file found where a directory was
	// asked for, or the reverse.
	ErrTypeMismatch = errors.New("TypeMismatchError")

	// ErrBridge is the kind of an error reported by the native side. The
	// message is carried verbatim.
	ErrBridge = errors.New("bridge error")

	// ErrStreamClosed is returned by a writable stream after Close or
	// Abort.
	ErrStreamClosed = errors.New("stream is closed")

	// ErrInvalidChunk is returned for a malformed write chunk.
	ErrInvalidChunk = errors.New("invalid chunk")
)

// Client-side rejection messages.
const (
	MsgFileNotFound      = "NotFoundError: File doesn't exist and the create option is set to false."
	MsgDirectoryNotFound = "NotFoundError: Directory doesn't exist and the create option is set to false."
	MsgEntryNotFound     = "NotFoundError: Entry doesn't exist."
	MsgIsDirectory       = "TypeMismatchError: The named entry is a directory not a file."
	MsgIsFile            = "TypeMismatchError: The named entry is a file not a directory."
	MsgRemoveRefused     = "Could not remove entry."
)

// Error is a rejection carrying a message meant for the caller. Kind is
// one of the sentinels above and can be tested with errors.Is.
type Error struct {
	Kind    error
	Message string
}

// Error returns the message alone, without the kind.
func (e *Error) Error() string {
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Kind
}

func newError(kind error, message string) *Error {
	return &Error{Kind: kind, Message: message}
}
