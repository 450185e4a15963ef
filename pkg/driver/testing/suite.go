package testing

import (
	"context"
	"testing"
	"time"

	"github.com/marmos91/fsbridge/pkg/driver"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// DriverTestSuite checks the driver.Driver contract. It is reused by every
// driver implementation.
//
// Usage:
//
//	func TestMyDriver(t *testing.T) {
//	    suite := &testing.DriverTestSuite{
//	        NewDriver: func(t *testing.T) (driver.Driver, string) {
//	            return mydriver.New(), "/scratch"
//	        },
//	    }
//	    suite.Run(t)
//	}
type DriverTestSuite struct {
	// NewDriver returns a driver and an existing, empty directory the
	// tests may freely use.
	NewDriver func(t *testing.T) (driver.Driver, string)
}

// Run executes all tests in the suite.
func (suite *DriverTestSuite) Run(t *testing.T) {
	t.Run("ReadWrite", suite.testReadWrite)
	t.Run("CreateEmpty", suite.testCreateEmpty)
	t.Run("WriteRequiresParent", suite.testWriteRequiresParent)
	t.Run("CreateDirectory", suite.testCreateDirectory)
	t.Run("CreateDirectoryIntermediates", suite.testCreateDirectoryIntermediates)
	t.Run("ListIsShallowAndSorted", suite.testListIsShallowAndSorted)
	t.Run("ListErrors", suite.testListErrors)
	t.Run("Remove", suite.testRemove)
	t.Run("RemoveDirectoryTree", suite.testRemoveDirectoryTree)
	t.Run("ExistsAndIsDirectory", suite.testExistsAndIsDirectory)
	t.Run("ModificationTime", suite.testModificationTime)
	t.Run("CancelledContext", suite.testCancelledContext)
}

func mustWrite(t *testing.T, d driver.Driver, p string, data []byte) {
	t.Helper()
	require.NoError(t, d.Write(context.Background(), p, data))
}

func mustMkdir(t *testing.T, d driver.Driver, p string) {
	t.Helper()
	require.NoError(t, d.CreateDirectory(context.Background(), p, true))
}

func mustRead(t *testing.T, d driver.Driver, p string) []byte {
	t.Helper()
	data, err := d.Read(context.Background(), p)
	require.NoError(t, err)
	return data
}

func names(entries []driver.Entry) []string {
	out := make([]string, len(entries))
	for i, e := range entries {
		out[i] = e.Name
	}
	return out
}

func (suite *DriverTestSuite) testReadWrite(t *testing.T) {
	d, root := suite.NewDriver(t)
	p := driver.Join(root, "hello.txt")

	mustWrite(t, d, p, []byte("hello"))
	assert.Equal(t, []byte("hello"), mustRead(t, d, p))

	mustWrite(t, d, p, []byte("hi"))
	assert.Equal(t, []byte("hi"), mustRead(t, d, p), "write replaces the whole content")

	_, err := d.Read(context.Background(), driver.Join(root, "missing.txt"))
	assert.ErrorIs(t, err, driver.ErrNotFound)

	_, err = d.Read(context.Background(), root)
	assert.ErrorIs(t, err, driver.ErrIsDirectory)
}

func (suite *DriverTestSuite) testCreateEmpty(t *testing.T) {
	d, root := suite.NewDriver(t)
	ctx := context.Background()
	p := driver.Join(root, "empty.bin")

	require.NoError(t, d.CreateEmpty(ctx, p))
	assert.Empty(t, mustRead(t, d, p))

	mustWrite(t, d, p, []byte("data"))
	require.NoError(t, d.CreateEmpty(ctx, p))
	assert.Empty(t, mustRead(t, d, p), "create truncates an existing file")
}

func (suite *DriverTestSuite) testWriteRequiresParent(t *testing.T) {
	d, root := suite.NewDriver(t)

	err := d.Write(context.Background(), driver.Join(root, "nope/a.txt"), []byte("x"))
	assert.ErrorIs(t, err, driver.ErrNotFound)

	err = d.CreateEmpty(context.Background(), driver.Join(root, "nope/b.txt"))
	assert.ErrorIs(t, err, driver.ErrNotFound)
}

func (suite *DriverTestSuite) testCreateDirectory(t *testing.T) {
	d, root := suite.NewDriver(t)
	ctx := context.Background()
	p := driver.Join(root, "sub")

	require.NoError(t, d.CreateDirectory(ctx, p, false))
	isDir, err := d.IsDirectory(ctx, p)
	require.NoError(t, err)
	assert.True(t, isDir)

	err = d.CreateDirectory(ctx, p, false)
	assert.ErrorIs(t, err, driver.ErrExists)

	err = d.CreateDirectory(ctx, driver.Join(root, "x/y"), false)
	assert.ErrorIs(t, err, driver.ErrNotFound)
}

func (suite *DriverTestSuite) testCreateDirectoryIntermediates(t *testing.T) {
	d, root := suite.NewDriver(t)
	ctx := context.Background()
	p := driver.Join(root, "a/b/c")

	require.NoError(t, d.CreateDirectory(ctx, p, true))
	require.NoError(t, d.CreateDirectory(ctx, p, true), "existing directory is fine")

	for _, dir := range []string{"a", "a/b", "a/b/c"} {
		isDir, err := d.IsDirectory(ctx, driver.Join(root, dir))
		require.NoError(t, err)
		assert.True(t, isDir, dir)
	}
}

func (suite *DriverTestSuite) testListIsShallowAndSorted(t *testing.T) {
	d, root := suite.NewDriver(t)
	ctx := context.Background()

	mustWrite(t, d, driver.Join(root, "b.txt"), []byte("b"))
	mustWrite(t, d, driver.Join(root, "a.txt"), []byte("a"))
	mustMkdir(t, d, driver.Join(root, "nested/deeper"))
	mustWrite(t, d, driver.Join(root, "nested/inner.txt"), []byte("i"))

	entries, err := d.List(ctx, root)
	require.NoError(t, err)
	assert.Equal(t, []string{"a.txt", "b.txt", "nested"}, names(entries))

	for _, e := range entries {
		assert.Equal(t, driver.Join(root, e.Name), e.Path)
		assert.Equal(t, e.Name == "nested", e.IsDir, e.Name)
	}

	inner, err := d.List(ctx, driver.Join(root, "nested"))
	require.NoError(t, err)
	assert.Equal(t, []string{"deeper", "inner.txt"}, names(inner))

	empty, err := d.List(ctx, driver.Join(root, "nested/deeper"))
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func (suite *DriverTestSuite) testListErrors(t *testing.T) {
	d, root := suite.NewDriver(t)
	ctx := context.Background()

	_, err := d.List(ctx, driver.Join(root, "missing"))
	assert.ErrorIs(t, err, driver.ErrNotFound)

	mustWrite(t, d, driver.Join(root, "file.txt"), []byte("x"))
	_, err = d.List(ctx, driver.Join(root, "file.txt"))
	assert.ErrorIs(t, err, driver.ErrNotDirectory)
}

func (suite *DriverTestSuite) testRemove(t *testing.T) {
	d, root := suite.NewDriver(t)
	ctx := context.Background()
	p := driver.Join(root, "gone.txt")

	mustWrite(t, d, p, []byte("x"))
	require.NoError(t, d.Remove(ctx, p))

	exists, err := d.Exists(ctx, p)
	require.NoError(t, err)
	assert.False(t, exists)

	err = d.Remove(ctx, p)
	assert.ErrorIs(t, err, driver.ErrNotFound)
}

func (suite *DriverTestSuite) testRemoveDirectoryTree(t *testing.T) {
	d, root := suite.NewDriver(t)
	ctx := context.Background()
	dir := driver.Join(root, "tree")

	mustMkdir(t, d, driver.Join(dir, "sub"))
	mustWrite(t, d, driver.Join(dir, "sub/leaf.txt"), []byte("x"))
	mustWrite(t, d, driver.Join(dir, "top.txt"), []byte("y"))

	require.NoError(t, d.Remove(ctx, dir))

	exists, err := d.Exists(ctx, dir)
	require.NoError(t, err)
	assert.False(t, exists)

	exists, err = d.Exists(ctx, driver.Join(dir, "sub/leaf.txt"))
	require.NoError(t, err)
	assert.False(t, exists)
}

func (suite *DriverTestSuite) testExistsAndIsDirectory(t *testing.T) {
	d, root := suite.NewDriver(t)
	ctx := context.Background()

	mustWrite(t, d, driver.Join(root, "f"), []byte("x"))
	mustMkdir(t, d, driver.Join(root, "dir"))

	for name, wantDir := range map[string]bool{"f": false, "dir": true} {
		p := driver.Join(root, name)
		exists, err := d.Exists(ctx, p)
		require.NoError(t, err)
		assert.True(t, exists, name)

		isDir, err := d.IsDirectory(ctx, p)
		require.NoError(t, err)
		assert.Equal(t, wantDir, isDir, name)
	}

	exists, err := d.Exists(ctx, driver.Join(root, "nothing"))
	require.NoError(t, err)
	assert.False(t, exists)

	_, err = d.IsDirectory(ctx, driver.Join(root, "nothing"))
	assert.ErrorIs(t, err, driver.ErrNotFound)
}

func (suite *DriverTestSuite) testModificationTime(t *testing.T) {
	d, root := suite.NewDriver(t)
	p := driver.Join(root, "timed.txt")

	before := time.Now().Add(-time.Minute)
	mustWrite(t, d, p, []byte("x"))

	mtime, err := d.ModificationTime(context.Background(), p)
	require.NoError(t, err)
	assert.True(t, mtime.After(before), "mtime %v should be recent", mtime)

	_, err = d.ModificationTime(context.Background(), driver.Join(root, "missing"))
	assert.ErrorIs(t, err, driver.ErrNotFound)
}

func (suite *DriverTestSuite) testCancelledContext(t *testing.T) {
	d, root := suite.NewDriver(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := d.List(ctx, root)
	assert.ErrorIs(t, err, context.Canceled)

	err = d.Write(ctx, driver.Join(root, "x"), nil)
	assert.ErrorIs(t, err, context.Canceled)
}
