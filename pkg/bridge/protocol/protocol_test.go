package protocol

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeFlattensParams(t *testing.T) {
	raw, err := Encode(ActionCreateFile, CreateEntryRequest{Parent: "p-1", Name: "b.txt"})
	require.NoError(t, err)

	var fields map[string]any
	require.NoError(t, json.Unmarshal(raw, &fields))
	assert.Equal(t, map[string]any{"action": "createFile", "parent": "p-1", "name": "b.txt"}, fields)

	action, err := ActionOf(raw)
	require.NoError(t, err)
	assert.Equal(t, ActionCreateFile, action)
}

func TestEncodeWithoutParams(t *testing.T) {
	raw, err := Encode(ActionShowDirectoryPicker, nil)
	require.NoError(t, err)
	assert.JSONEq(t, `{"action":"showDirectoryPicker"}`, string(raw))

	_, err = Encode(ActionDebugPrint, "not an object")
	assert.Error(t, err)
}

func TestActionOfRejectsMalformed(t *testing.T) {
	_, err := ActionOf([]byte(`{"identifier":"x"}`))
	assert.Error(t, err)

	_, err = ActionOf([]byte(`not json`))
	assert.Error(t, err)
}

func TestHandleJSON(t *testing.T) {
	file := Handle{Kind: KindFile, Name: "a.txt", URL: "file:///d/a.txt", Identifier: "id-a"}
	dir := Handle{Kind: KindDirectory, Name: "d", URL: "file:///d", Identifier: "id-d", Entries: []Handle{
		file,
		{Kind: KindDirectory, Name: "sub", URL: "file:///d/sub", Identifier: "id-s"},
	}}

	data, err := json.Marshal(dir)
	require.NoError(t, err)
	assert.JSONEq(t, `{
		"kind": "directory", "name": "d", "url": "file:///d", "identifier": "id-d",
		"entries": [
			{"kind": "file", "name": "a.txt", "url": "file:///d/a.txt", "identifier": "id-a"},
			{"kind": "directory", "name": "sub", "url": "file:///d/sub", "identifier": "id-s", "entries": []}
		]
	}`, string(data))

	var decoded Handle
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, "sub", decoded.Entries[1].Name)
	assert.Empty(t, decoded.Entries[1].Entries)
}

func TestReplyHelpers(t *testing.T) {
	ok, err := Success([]string{"a", "b"})
	require.NoError(t, err)
	assert.False(t, ok.Failed())
	assert.False(t, ok.Empty())

	var names []string
	require.NoError(t, ok.Decode(&names))
	assert.Equal(t, []string{"a", "b"}, names)

	bad := Failure("Picker dismissed")
	assert.True(t, bad.Failed())
	assert.Equal(t, "Picker dismissed", bad.Message())

	data, err := json.Marshal(bad)
	require.NoError(t, err)
	assert.JSONEq(t, `{"result":null,"error":"Picker dismissed"}`, string(data))

	none, err := Success(nil)
	require.NoError(t, err)
	assert.True(t, none.Empty())
}

func TestExtensionsFromTypes(t *testing.T) {
	req := OpenFilePickerRequest{Types: []FilePickerAcceptType{
		{Description: "Text", Accept: map[string][]string{"text/plain": {".txt"}}},
	}}
	assert.Equal(t, []string{".txt"}, req.Extensions())

	req.Accept = []string{".md"}
	assert.Equal(t, []string{".md"}, req.Extensions())
}
