// Package terminal implements picker.Picker as interactive menus on the
// host's terminal. Browsing goes through a driver.Driver, so the same
// dialogs work on local disks and on object storage.
package terminal

import (
	"context"
	"errors"
	"fmt"

	"github.com/marmos91/fsbridge/internal/cli/prompt"
	"github.com/marmos91/fsbridge/internal/logger"
	"github.com/marmos91/fsbridge/pkg/driver"
	"github.com/marmos91/fsbridge/pkg/picker"
)

// Prompter asks the user questions. The default implementation uses
// promptui.
type Prompter interface {
	// Select shows items and returns the index of the chosen one.
	Select(label string, items []string) (int, error)

	// Input asks for a single line, prefilled with defaultValue.
	Input(label, defaultValue string) (string, error)
}

// promptuiPrompter validates typed names as single path elements.
type promptuiPrompter struct{}

func (promptuiPrompter) Select(label string, items []string) (int, error) {
	return prompt.SelectIndex(label, items)
}

func (promptuiPrompter) Input(label, defaultValue string) (string, error) {
	return prompt.InputWithValidation(label, defaultValue, func(s string) error {
		if !driver.ValidName(s) {
			return fmt.Errorf("invalid file name")
		}
		return nil
	})
}

// Config configures the terminal picker.
type Config struct {
	// BaseDir is where browsing starts. Defaults to "/".
	BaseDir string `mapstructure:"base_dir"`

	// ShowHidden lists dot-files.
	ShowHidden bool `mapstructure:"show_hidden"`
}

// Picker browses a driver interactively.
type Picker struct {
	drv      driver.Driver
	cfg      Config
	prompter Prompter
}

// New creates a terminal picker. A nil prompter selects promptui.
func New(drv driver.Driver, cfg Config, prompter Prompter) *Picker {
	if cfg.BaseDir == "" {
		cfg.BaseDir = "/"
	}
	if prompter == nil {
		prompter = promptuiPrompter{}
	}
	return &Picker{drv: drv, cfg: cfg, prompter: prompter}
}

const (
	itemUp       = ".."
	itemHere     = "[ choose this directory ]"
	itemDone     = "[ done ]"
	itemSaveHere = "[ save here ]"
	itemCancel   = "[ cancel ]"
)

type menuItem struct {
	label string
	entry *driver.Entry
}

// browse lists dir and returns the menu built from it.
func (p *Picker) browse(ctx context.Context, dir string, filesToo bool, accept []string, actions ...string) ([]menuItem, error) {
	entries, err := p.drv.List(ctx, dir)
	if err != nil {
		return nil, err
	}

	items := make([]menuItem, 0, len(entries)+len(actions)+2)
	for _, a := range actions {
		items = append(items, menuItem{label: a})
	}
	if driver.Clean(dir) != "/" {
		items = append(items, menuItem{label: itemUp})
	}
	for i := range entries {
		e := entries[i]
		if !p.cfg.ShowHidden && len(e.Name) > 0 && e.Name[0] == '.' {
			continue
		}
		switch {
		case e.IsDir:
			items = append(items, menuItem{label: e.Name + "/", entry: &e})
		case filesToo && picker.Accepts(e.Name, accept):
			items = append(items, menuItem{label: e.Name, entry: &e})
		}
	}
	items = append(items, menuItem{label: itemCancel})
	return items, nil
}

func (p *Picker) choose(label string, items []menuItem) (menuItem, error) {
	labels := make([]string, len(items))
	for i, it := range items {
		labels[i] = it.label
	}

	idx, err := p.prompter.Select(label, labels)
	if err != nil {
		if errors.Is(err, prompt.ErrAborted) {
			return menuItem{}, picker.ErrCancelled
		}
		return menuItem{}, err
	}
	if idx < 0 || idx >= len(items) {
		return menuItem{}, fmt.Errorf("selection %d out of range", idx)
	}
	if items[idx].label == itemCancel {
		return menuItem{}, picker.ErrCancelled
	}
	return items[idx], nil
}

// PickFiles browses from BaseDir. Directories are entered on selection and
// files matching accept are picked. With multiple the menu keeps coming
// back with a done entry until the user confirms.
func (p *Picker) PickFiles(ctx context.Context, multiple bool, accept []string) ([]string, error) {
	dir := driver.Clean(p.cfg.BaseDir)
	var picked []string
	chosen := make(map[string]bool)

	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		var actions []string
		if multiple && len(picked) > 0 {
			actions = append(actions, itemDone)
		}
		items, err := p.browse(ctx, dir, true, accept, actions...)
		if err != nil {
			return nil, err
		}

		label := fmt.Sprintf("Open file (%s)", dir)
		if multiple {
			label = fmt.Sprintf("Open files (%s, %d selected)", dir, len(picked))
		}

		item, err := p.choose(label, items)
		if err != nil {
			return nil, err
		}

		switch {
		case item.label == itemDone:
			return picked, nil
		case item.label == itemUp:
			dir = driver.Parent(dir)
		case item.entry.IsDir:
			dir = item.entry.Path
		case !multiple:
			return []string{item.entry.Path}, nil
		case !chosen[item.entry.Path]:
			chosen[item.entry.Path] = true
			picked = append(picked, item.entry.Path)
			logger.Debug("Terminal picker: selected %s", item.entry.Path)
		}
	}
}

// PickDirectory browses directories only, starting at BaseDir, until the
// user chooses the one currently shown.
func (p *Picker) PickDirectory(ctx context.Context) (string, error) {
	dir := driver.Clean(p.cfg.BaseDir)

	for {
		if err := ctx.Err(); err != nil {
			return "", err
		}

		items, err := p.browse(ctx, dir, false, nil, itemHere)
		if err != nil {
			return "", err
		}

		item, err := p.choose(fmt.Sprintf("Choose directory (%s)", dir), items)
		if err != nil {
			return "", err
		}

		switch item.label {
		case itemHere:
			return dir, nil
		case itemUp:
			dir = driver.Parent(dir)
		default:
			dir = item.entry.Path
		}
	}
}

// PickSaveTarget browses to a directory and then asks for a file name,
// proposing suggestedName.
func (p *Picker) PickSaveTarget(ctx context.Context, suggestedName string) (string, error) {
	dir := driver.Clean(p.cfg.BaseDir)

	for {
		if err := ctx.Err(); err != nil {
			return "", err
		}

		items, err := p.browse(ctx, dir, false, nil, itemSaveHere)
		if err != nil {
			return "", err
		}

		item, err := p.choose(fmt.Sprintf("Save to (%s)", dir), items)
		if err != nil {
			return "", err
		}

		switch item.label {
		case itemSaveHere:
			name, err := p.prompter.Input("File name", suggestedName)
			if err != nil {
				if errors.Is(err, prompt.ErrAborted) {
					return "", picker.ErrCancelled
				}
				return "", err
			}
			if !driver.ValidName(name) {
				return "", fmt.Errorf("invalid file name %q", name)
			}
			return driver.Join(dir, name), nil
		case itemUp:
			dir = driver.Parent(dir)
		default:
			dir = item.entry.Path
		}
	}
}

var _ picker.Picker = (*Picker)(nil)
