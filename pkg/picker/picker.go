// Package picker defines the native dialogs a client can open: choosing
// files, choosing a directory, and naming a save target.
package picker

import (
	"context"
	"errors"
	"path"
	"strings"
)

// ErrCancelled is returned when the user dismisses a dialog.
var ErrCancelled = errors.New("picker dismissed")

// Picker is the dialog service. Every method blocks until the user
// answers or ctx is done, and returns slash-separated locations.
type Picker interface {
	// PickFiles lets the user choose one file, or several when multiple
	// is set. accept lists allowed extensions; empty means any file.
	PickFiles(ctx context.Context, multiple bool, accept []string) ([]string, error)

	// PickDirectory lets the user choose one directory.
	PickDirectory(ctx context.Context) (string, error)

	// PickSaveTarget asks where to save a new file, proposing
	// suggestedName.
	PickSaveTarget(ctx context.Context, suggestedName string) (string, error)
}

// Accepts reports whether name matches one of the accepted extensions.
// Extensions are compared case-insensitively, with or without their
// leading dot.
func Accepts(name string, accept []string) bool {
	if len(accept) == 0 {
		return true
	}
	ext := strings.ToLower(strings.TrimPrefix(path.Ext(name), "."))
	for _, a := range accept {
		a = strings.ToLower(strings.TrimPrefix(strings.TrimSpace(a), "."))
		if a == "*" || a == ext && ext != "" {
			return true
		}
	}
	return false
}

// Serialized wraps p so that at most one dialog is open at a time. Other
// callers wait for it to close or for their ctx to end.
func Serialized(p Picker) Picker {
	return &serialized{next: p, slot: make(chan struct{}, 1)}
}

type serialized struct {
	next Picker
	slot chan struct{}
}

func (s *serialized) acquire(ctx context.Context) error {
	select {
	case s.slot <- struct{}{}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *serialized) release() {
	<-s.slot
}

func (s *serialized) PickFiles(ctx context.Context, multiple bool, accept []string) ([]string, error) {
	if err := s.acquire(ctx); err != nil {
		return nil, err
	}
	defer s.release()
	return s.next.PickFiles(ctx, multiple, accept)
}

func (s *serialized) PickDirectory(ctx context.Context) (string, error) {
	if err := s.acquire(ctx); err != nil {
		return "", err
	}
	defer s.release()
	return s.next.PickDirectory(ctx)
}

func (s *serialized) PickSaveTarget(ctx context.Context, suggestedName string) (string, error) {
	if err := s.acquire(ctx); err != nil {
		return "", err
	}
	defer s.release()
	return s.next.PickSaveTarget(ctx, suggestedName)
}
