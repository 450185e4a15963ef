package picker

import (
	"context"
	"path"
)

// Static answers every dialog from fixed configuration. It serves
// headless hosts and tests. An empty answer behaves like a dismissal.
type Static struct {
	// Files are offered to PickFiles, filtered by the accepted types.
	Files []string `mapstructure:"files"`

	// Directory is returned by PickDirectory.
	Directory string `mapstructure:"directory"`

	// SaveDir is where PickSaveTarget places the suggested name.
	SaveDir string `mapstructure:"save_dir"`
}

// PickFiles returns the configured files matching accept, or only the
// first match unless multiple is set.
func (s *Static) PickFiles(ctx context.Context, multiple bool, accept []string) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var picked []string
	for _, f := range s.Files {
		if !Accepts(f, accept) {
			continue
		}
		picked = append(picked, f)
		if !multiple {
			break
		}
	}
	if len(picked) == 0 {
		return nil, ErrCancelled
	}
	return picked, nil
}

// PickDirectory returns the configured directory.
func (s *Static) PickDirectory(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if s.Directory == "" {
		return "", ErrCancelled
	}
	return s.Directory, nil
}

// PickSaveTarget joins SaveDir with the base of suggestedName.
func (s *Static) PickSaveTarget(ctx context.Context, suggestedName string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if s.SaveDir == "" || suggestedName == "" {
		return "", ErrCancelled
	}
	return path.Join(s.SaveDir, path.Base(suggestedName)), nil
}

var _ Picker = (*Static)(nil)
