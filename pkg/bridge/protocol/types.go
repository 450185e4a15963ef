package protocol

import (
	"encoding/json"
)

// Kind tags a handle as a file or a directory.
type Kind string

const (
	KindFile      Kind = "file"
	KindDirectory Kind = "directory"
)

// Handle is the serialized form of a file-system handle.
//
// Directory handles always carry an entries array, holding the children
// found one level deep. Child directories carry an empty array of their
// own. File handles have no entries field.
type Handle struct {
	Kind       Kind     `json:"kind"`
	Name       string   `json:"name"`
	URL        string   `json:"url"`
	Identifier string   `json:"identifier"`
	Entries    []Handle `json:"entries,omitempty"`
}

type leafHandle struct {
	Kind       Kind   `json:"kind"`
	Name       string `json:"name"`
	URL        string `json:"url"`
	Identifier string `json:"identifier"`
}

type directoryHandle struct {
	leafHandle
	Entries []Handle `json:"entries"`
}

// MarshalJSON omits "entries" from file handles and always emits it, as an
// array, for directory handles.
func (h Handle) MarshalJSON() ([]byte, error) {
	leaf := leafHandle{Kind: h.Kind, Name: h.Name, URL: h.URL, Identifier: h.Identifier}
	if h.Kind != KindDirectory {
		return json.Marshal(leaf)
	}

	entries := h.Entries
	if entries == nil {
		entries = []Handle{}
	}
	return json.Marshal(directoryHandle{leafHandle: leaf, Entries: entries})
}

// FilePayload is the content of a file as returned by readFile.
type FilePayload struct {
	// Content is the file data, base64 encoded.
	Content string `json:"content"`

	// Type is the detected MIME type.
	Type string `json:"type"`

	Name string `json:"name"`

	// LastModified is an RFC 3339 timestamp, or "0" when unknown.
	LastModified string `json:"lastModified"`
}

// Reply is the answer to one request.
type Reply struct {
	Result json.RawMessage `json:"result"`
	Error  *string         `json:"error"`
}

// Success builds a reply carrying v as its result. A nil v yields an empty
// reply.
func Success(v any) (Reply, error) {
	if v == nil {
		return Reply{}, nil
	}
	data, err := json.Marshal(v)
	if err != nil {
		return Reply{}, err
	}
	return Reply{Result: data}, nil
}

// Failure builds an error reply.
func Failure(message string) Reply {
	return Reply{Error: &message}
}

// Failed reports whether the reply carries an error.
func (r Reply) Failed() bool {
	return r.Error != nil
}

// Message returns the error message, or "" for a successful reply.
func (r Reply) Message() string {
	if r.Error == nil {
		return ""
	}
	return *r.Error
}

// Empty reports whether neither half is populated, or the result is null.
func (r Reply) Empty() bool {
	return r.Error == nil && (len(r.Result) == 0 || string(r.Result) == "null")
}

// Decode unmarshals the result into v.
func (r Reply) Decode(v any) error {
	return json.Unmarshal(r.Result, v)
}
