// Package protocol defines the messages exchanged between a client and the
// native bridge.
//
// A request is a JSON object carrying an "action" field plus the fields of
// that action. A reply is {"result": ..., "error": ...} with at most one
// half populated.
package protocol

import (
	"encoding/json"
	"errors"
	"fmt"
)

// Action names.
const (
	ActionShowOpenFilePicker  = "showOpenFilePicker"
	ActionShowDirectoryPicker = "showDirectoryPicker"
	ActionShowSaveFilePicker  = "showSaveFilePicker"
	ActionReadFile            = "readFile"
	ActionSaveFile            = "saveFile"
	ActionCreateFile          = "createFile"
	ActionCreateDirectory     = "createDirectory"
	ActionRemoveEntry         = "removeEntry"
	ActionResolve             = "resolve"
	ActionGetDirectory        = "getDirectory"
	ActionDebugPrint          = "debugPrint"
)

// SaveSuccess is the result of a saveFile request.
const SaveSuccess = "success"

// DefaultSuggestedName is used by showSaveFilePicker when the client sends
// no name.
const DefaultSuggestedName = "untitled.txt"

// Header is the part common to every request.
type Header struct {
	Action string `json:"action"`
}

// FilePickerAcceptType mirrors one entry of the picker "types" option:
// a description and a map from MIME type to extensions.
type FilePickerAcceptType struct {
	Description string              `json:"description,omitempty"`
	Accept      map[string][]string `json:"accept,omitempty"`
}

// OpenFilePickerRequest is the request of showOpenFilePicker.
type OpenFilePickerRequest struct {
	// Multiple lets the user select more than one entry
	Multiple               bool                   `json:"multiple"`
	ExcludeAcceptAllOption bool                   `json:"excludeAcceptAllOption,omitempty"`
	Types                  []FilePickerAcceptType `json:"types,omitempty"`

	// Accept is the flattened list of extensions. When empty it is
	// derived from Types; when both are empty any file is accepted.
	Accept []string `json:"accept"`
}

// Extensions returns Accept, or the extensions listed in Types.
func (r *OpenFilePickerRequest) Extensions() []string {
	if len(r.Accept) > 0 {
		return r.Accept
	}
	var exts []string
	for _, t := range r.Types {
		for _, list := range t.Accept {
			exts = append(exts, list...)
		}
	}
	return exts
}

// DirectoryPickerRequest is the request of showDirectoryPicker. It carries
// no fields beyond the action.
type DirectoryPickerRequest struct{}

// SaveFilePickerRequest is the request of showSaveFilePicker. An empty
// SuggestedName means DefaultSuggestedName.
type SaveFilePickerRequest struct {
	SuggestedName          string                 `json:"suggestedName"`
	ExcludeAcceptAllOption bool                   `json:"excludeAcceptAllOption,omitempty"`
	Types                  []FilePickerAcceptType `json:"types,omitempty"`
}

// EntryRequest addresses one registered entry. It is the request of
// readFile, resolve and getDirectory.
type EntryRequest struct {
	Identifier string `json:"identifier"`
}

// SaveFileRequest is the request of saveFile. It replaces the whole file;
// there is no partial write on the wire.
type SaveFileRequest struct {
	Identifier string `json:"identifier"`

	// Content is the complete new file content, base64 encoded.
	Content string `json:"content"`
}

// CreateEntryRequest is the request of createFile and createDirectory.
type CreateEntryRequest struct {
	// Parent is the identifier of a registered directory
	Parent string `json:"parent"`

	// Name is a single element for createFile. createDirectory also
	// accepts a relative path such as "a/b".
	Name string `json:"name"`
}

// RemoveEntryRequest is the request of removeEntry. Identifier names the
// entry to remove, not its parent.
type RemoveEntryRequest struct {
	Identifier string `json:"identifier"`
	Recursive  bool   `json:"recursive"`
}

// DebugPrintRequest is the request of debugPrint. Message is logged on the
// native side.
type DebugPrintRequest struct {
	Message string `json:"message"`
}

// Encode builds the request object for action from params, which must
// marshal to a JSON object (or be nil).
func Encode(action string, params any) (json.RawMessage, error) {
	fields := map[string]json.RawMessage{}

	if params != nil {
		data, err := json.Marshal(params)
		if err != nil {
			return nil, fmt.Errorf("failed to encode %s params: %w", action, err)
		}
		if string(data) != "null" {
			if err := json.Unmarshal(data, &fields); err != nil {
				return nil, fmt.Errorf("%s params must be a JSON object: %w", action, err)
			}
		}
	}

	name, err := json.Marshal(action)
	if err != nil {
		return nil, err
	}
	fields["action"] = name

	return json.Marshal(fields)
}

// ActionOf extracts the action name from a raw request.
func ActionOf(raw []byte) (string, error) {
	var h Header
	if err := json.Unmarshal(raw, &h); err != nil {
		return "", fmt.Errorf("malformed request: %w", err)
	}
	if h.Action == "" {
		return "", errors.New("malformed request: missing action")
	}
	return h.Action, nil
}
