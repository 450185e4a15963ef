// Package prompt wraps promptui for interactive terminal input.
package prompt

import (
	"errors"

	"github.com/manifoldco/promptui"
)

// ErrAborted is returned when the user interrupts (Ctrl+C) or aborts a
// prompt.
var ErrAborted = errors.New("aborted")

// IsAborted reports whether err means the user left the prompt.
func IsAborted(err error) bool {
	return errors.Is(err, promptui.ErrInterrupt) || errors.Is(err, promptui.ErrAbort) || errors.Is(err, promptui.ErrEOF) || errors.Is(err, ErrAborted)
}

func wrapError(err error) error {
	if err == nil {
		return nil
	}
	if IsAborted(err) {
		return ErrAborted
	}
	return err
}

// Input asks for a line of text, pre-filled with defaultValue.
func Input(label string, defaultValue string) (string, error) {
	p := promptui.Prompt{
		Label:     label,
		Default:   defaultValue,
		AllowEdit: true,
	}

	result, err := p.Run()
	return result, wrapError(err)
}

// InputWithValidation asks for a line of text accepted by validate.
func InputWithValidation(label, defaultValue string, validate func(string) error) (string, error) {
	p := promptui.Prompt{
		Label:     label,
		Default:   defaultValue,
		AllowEdit: true,
		Validate:  validate,
	}

	result, err := p.Run()
	return result, wrapError(err)
}

func selectTemplates() *promptui.SelectTemplates {
	return &promptui.SelectTemplates{
		Label:    "{{ . }}",
		Active:   "> {{ . | cyan }}",
		Inactive: "  {{ . | white }}",
		Selected: "* {{ . | green }}",
	}
}

// SelectIndex shows items and returns the index of the chosen one.
func SelectIndex(label string, items []string) (int, error) {
	p := promptui.Select{
		Label:     label,
		Items:     items,
		Templates: selectTemplates(),
		Size:      12,
	}

	i, _, err := p.Run()
	return i, wrapError(err)
}
