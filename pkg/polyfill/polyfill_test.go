package polyfill

import (
	"context"
	"slices"
	"testing"

	"github.com/marmos91/fsbridge/pkg/bridge"
	"github.com/marmos91/fsbridge/pkg/bridge/protocol"
	"github.com/marmos91/fsbridge/pkg/driver/local"
	"github.com/marmos91/fsbridge/pkg/picker"
	"github.com/marmos91/fsbridge/pkg/registry"
	"github.com/marmos91/fsbridge/pkg/scope"
	"github.com/marmos91/fsbridge/pkg/transport/inproc"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type harness struct {
	client *Client
	fs     *local.Driver
	picker *picker.Static
}

// newHarness wires a client to a real bridge over an in-memory file
// system holding:
//
//	/d/a.txt      "hello"
//	/d/sub/x.txt  "x"
//	/out/
func newHarness(t *testing.T) *harness {
	t.Helper()
	ctx := context.Background()

	fs := local.NewMemory()
	require.NoError(t, fs.CreateDirectory(ctx, "/d/sub", true))
	require.NoError(t, fs.CreateDirectory(ctx, "/out", true))
	require.NoError(t, fs.Write(ctx, "/d/a.txt", []byte("hello")))
	require.NoError(t, fs.Write(ctx, "/d/sub/x.txt", []byte("x")))

	p := &picker.Static{Files: []string{"/d/a.txt"}, Directory: "/d", SaveDir: "/out"}
	scopes := scope.NewAllowAll()

	svc, err := bridge.New(bridge.Config{
		Registry: registry.NewMemory(),
		Driver:   fs,
		Scopes:   scopes,
		Picker:   p,
	})
	require.NoError(t, err)

	tr := inproc.New(bridge.NewDispatcher(svc))
	c := NewClient(tr)
	t.Cleanup(func() {
		assert.NoError(t, c.Close())
		assert.Zero(t, scopes.Outstanding())
	})

	return &harness{client: c, fs: fs, picker: p}
}

func await[T any](t *testing.T, f *Future[T]) T {
	t.Helper()
	v, err := f.Await(context.Background())
	require.NoError(t, err)
	return v
}

func awaitErr[T any](t *testing.T, f *Future[T]) error {
	t.Helper()
	_, err := f.Await(context.Background())
	require.Error(t, err)
	return err
}

func (h *harness) root(t *testing.T) *DirectoryHandle {
	t.Helper()
	return await(t, h.client.ShowDirectoryPicker(context.Background()))
}

func TestDirectoryPickerListsOneLevel(t *testing.T) {
	h := newHarness(t)
	dir := h.root(t)

	assert.Equal(t, "d", dir.Name())
	assert.Equal(t, protocol.KindDirectory, dir.Kind())
	assert.Equal(t, "mem:///d", dir.URL())
	assert.Equal(t, []string{"a.txt", "sub"}, slices.Collect(dir.Keys()))

	for name, child := range dir.All() {
		assert.Equal(t, name, child.Name())
	}

	sub, ok := dir.cached("sub")
	require.True(t, ok)
	assert.Zero(t, sub.(*DirectoryHandle).Len(), "children are not listed until fetched")

	encoded := Encode(dir)
	require.Len(t, encoded.Entries, 2)
	assert.Equal(t, protocol.KindFile, encoded.Entries[0].Kind)
	assert.NotNil(t, encoded.Entries[1].Entries)
}

func TestGetFile(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	dir := h.root(t)

	fh := await(t, dir.GetFileHandle(ctx, "a.txt", GetHandleOptions{}))
	f := await(t, fh.GetFile(ctx))

	assert.Equal(t, "a.txt", f.Name)
	assert.Equal(t, "hello", f.Text())
	assert.Equal(t, int64(5), f.Size())
	assert.Equal(t, "text/plain", f.Type)
	assert.False(t, f.LastModified.IsZero())
}

func TestGetHandleErrors(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	dir := h.root(t)

	err := awaitErr(t, dir.GetFileHandle(ctx, "missing.txt", GetHandleOptions{}))
	assert.ErrorIs(t, err, ErrNotFound)
	assert.EqualError(t, err, MsgFileNotFound)

	err = awaitErr(t, dir.GetDirectoryHandle(ctx, "missing", GetHandleOptions{}))
	assert.ErrorIs(t, err, ErrNotFound)
	assert.EqualError(t, err, MsgDirectoryNotFound)

	err = awaitErr(t, dir.GetFileHandle(ctx, "sub", GetHandleOptions{}))
	assert.ErrorIs(t, err, ErrTypeMismatch)
	assert.EqualError(t, err, MsgIsDirectory)

	err = awaitErr(t, dir.GetDirectoryHandle(ctx, "a.txt", GetHandleOptions{Create: true}))
	assert.ErrorIs(t, err, ErrTypeMismatch)
	assert.EqualError(t, err, MsgIsFile)

	err = awaitErr(t, dir.RemoveEntry(ctx, "missing", RemoveOptions{}))
	assert.EqualError(t, err, MsgEntryNotFound)
}

func TestCreateAndWrite(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	dir := h.root(t)

	fh := await(t, dir.GetFileHandle(ctx, "new.txt", GetHandleOptions{Create: true}))
	assert.Equal(t, []string{"a.txt", "sub", "new.txt"}, slices.Collect(dir.Keys()))

	again := await(t, dir.GetFileHandle(ctx, "new.txt", GetHandleOptions{}))
	assert.True(t, again.IsSameEntry(fh), "cache hit returns the same entry")

	w := await(t, fh.CreateWritable(ctx, WritableOptions{}))
	require.NoError(t, w.Write("abc"))
	await(t, w.Close(ctx))

	data, err := h.fs.Read(ctx, "/d/new.txt")
	require.NoError(t, err)
	assert.Equal(t, "abc", string(data))
}

func TestKeepExistingData(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	fh := await(t, h.root(t).GetFileHandle(ctx, "a.txt", GetHandleOptions{}))

	w := await(t, fh.CreateWritable(ctx, WritableOptions{KeepExistingData: true}))
	assert.Equal(t, "hello", string(w.Bytes()))
	assert.Zero(t, w.Cursor())

	require.NoError(t, w.Seek(5))
	require.NoError(t, w.Write(" world"))

	data, err := h.fs.Read(ctx, "/d/a.txt")
	require.NoError(t, err)
	assert.Equal(t, "hello", string(data), "nothing is written before close")

	await(t, w.Close(ctx))
	assert.Equal(t, "hello world", await(t, fh.GetFile(ctx)).Text())
}

func TestNestedDirectories(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	dir := h.root(t)

	nested := await(t, dir.GetDirectoryHandle(ctx, "nested", GetHandleOptions{Create: true}))
	assert.Zero(t, nested.Len())

	await(t, nested.GetFileHandle(ctx, "inner.txt", GetHandleOptions{Create: true}))
	ok, err := h.fs.Exists(ctx, "/d/nested/inner.txt")
	require.NoError(t, err)
	assert.True(t, ok)

	sub := await(t, dir.GetDirectoryHandle(ctx, "sub", GetHandleOptions{}))
	assert.Equal(t, []string{"x.txt"}, slices.Collect(sub.Keys()), "cached directory is re-fetched")

	deep := await(t, dir.GetDirectoryHandle(ctx, "p/q", GetHandleOptions{Create: true}))
	assert.Equal(t, "q", deep.Name())
	isDir, err := h.fs.IsDirectory(ctx, "/d/p/q")
	require.NoError(t, err)
	assert.True(t, isDir)
	assert.NotContains(t, slices.Collect(dir.Keys()), "q", "only direct children are cached")

	await(t, dir.Refresh(ctx))
	assert.Contains(t, slices.Collect(dir.Keys()), "p")
}

func TestEmptyWriteRoundTrips(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	dir := h.root(t)

	fh := await(t, dir.GetFileHandle(ctx, "empty.txt", GetHandleOptions{Create: true}))
	w := await(t, fh.CreateWritable(ctx, WritableOptions{}))
	require.NoError(t, w.Write(""))
	await(t, w.Close(ctx))

	f := await(t, fh.GetFile(ctx))
	assert.Zero(t, f.Size())
	assert.Empty(t, f.Bytes())
	assert.Empty(t, f.Text())

	// An existing file is emptied the same way.
	a := await(t, dir.GetFileHandle(ctx, "a.txt", GetHandleOptions{}))
	await(t, await(t, a.CreateWritable(ctx, WritableOptions{})).Close(ctx))
	assert.Zero(t, await(t, a.GetFile(ctx)).Size())

	data, err := h.fs.Read(ctx, "/d/a.txt")
	require.NoError(t, err)
	assert.Empty(t, data)
}

func TestRemoveEntry(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	dir := h.root(t)

	err := awaitErr(t, dir.RemoveEntry(ctx, "sub", RemoveOptions{}))
	assert.ErrorIs(t, err, ErrBridge)
	assert.EqualError(t, err, "Could not remove entry.")
	assert.Equal(t, []string{"a.txt", "sub"}, slices.Collect(dir.Keys()), "failed removal keeps the cache")

	await(t, dir.RemoveEntry(ctx, "sub", RemoveOptions{Recursive: true}))
	assert.Equal(t, []string{"a.txt"}, slices.Collect(dir.Keys()))

	ok, err := h.fs.Exists(ctx, "/d/sub")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestResolve(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	dir := h.root(t)

	a := await(t, dir.GetFileHandle(ctx, "a.txt", GetHandleOptions{}))
	assert.Equal(t, []string{"sub", "a.txt"}, await(t, dir.Resolve(ctx, a)))

	stranger := h.client.newFileHandle(protocol.Handle{Kind: protocol.KindFile, Name: "elsewhere.txt", Identifier: "x"})
	assert.Nil(t, await(t, dir.Resolve(ctx, stranger)))
}

func TestRefreshIssuesFreshIdentifiers(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	dir := h.root(t)

	before, _ := dir.cached("a.txt")
	require.NoError(t, h.fs.Write(ctx, "/d/b.txt", []byte("b")))

	same := await(t, dir.Refresh(ctx))
	assert.Same(t, dir, same)
	assert.Equal(t, []string{"a.txt", "b.txt", "sub"}, slices.Collect(dir.Keys()))

	after, _ := dir.cached("a.txt")
	assert.False(t, after.IsSameEntry(before))
	assert.True(t, after.IsSameEntry(after))
}

func TestPickers(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	picked := await(t, h.client.ShowOpenFilePicker(ctx, OpenFilePickerOptions{Accept: []string{".txt"}}))
	require.Len(t, picked, 1)
	fh, ok := picked[0].(*FileHandle)
	require.True(t, ok)
	assert.Equal(t, "hello", await(t, fh.GetFile(ctx)).Text())

	target := await(t, h.client.ShowSaveFilePicker(ctx, SaveFilePickerOptions{SuggestedName: "report.txt"}))
	assert.Equal(t, "report.txt", target.Name())
	ok, err := h.fs.Exists(ctx, "/out/report.txt")
	require.NoError(t, err)
	assert.True(t, ok, "save target is created empty")

	perm := await(t, target.QueryPermission(ctx, ModeReadWrite))
	assert.Equal(t, PermissionGranted, perm)
	assert.Equal(t, PermissionGranted, await(t, target.RequestPermission(ctx, ModeRead)))

	h.picker.Files = nil
	err = awaitErr(t, h.client.ShowOpenFilePicker(ctx, OpenFilePickerOptions{}))
	assert.ErrorIs(t, err, ErrBridge)
	assert.EqualError(t, err, "Picker dismissed")
}

func TestDebugPrint(t *testing.T) {
	h := newHarness(t)
	await(t, h.client.DebugPrint(context.Background(), "hello from the page"))
}
