package driver

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrNotFound     = errors.New("no such file or directory")
	ErrExists       = errors.New("entry already exists")
	ErrNotDirectory = errors.New("not a directory")
	ErrIsDirectory  = errors.New("is a directory")
	ErrInvalidName  = errors.New("invalid entry name")
)

// PathError records the operation and location that failed.
type PathError struct {
	Op   string
	Path string
	Err  error
}

// Error renders "op path: cause".
func (e *PathError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.Path, e.Err)
}

// Unwrap returns the cause so errors.Is matches the sentinels.
func (e *PathError) Unwrap() error {
	return e.Err
}

// Errorf wraps err in a PathError.
func Errorf(op, p string, err error) error {
	return &PathError{Op: op, Path: p, Err: err}
}

// ValidName reports whether name can be used as a single path element.
func ValidName(name string) bool {
	if name == "" || name == "." || name == ".." {
		return false
	}
	for _, r := range name {
		if r == '/' || r == 0 {
			return false
		}
	}
	return true
}

// ValidRelativePath reports whether rel is a slash-separated sequence of
// valid names. Leading, trailing and doubled slashes are rejected since
// they produce empty elements.
func ValidRelativePath(rel string) bool {
	if rel == "" {
		return false
	}
	for _, elem := range strings.Split(rel, "/") {
		if !ValidName(elem) {
			return false
		}
	}
	return true
}
