package s3

import (
	"context"
	"testing"

	"github.com/marmos91/fsbridge/pkg/driver"
	drivertesting "github.com/marmos91/fsbridge/pkg/driver/testing"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestDriver(t *testing.T, prefix string) (*Driver, *fakeS3) {
	t.Helper()
	fake := newFakeS3()
	d, err := New(context.Background(), Config{Client: fake, Bucket: "bridge", KeyPrefix: prefix})
	require.NoError(t, err)
	return d, fake
}

func TestS3Driver(t *testing.T) {
	suite := &drivertesting.DriverTestSuite{
		NewDriver: func(t *testing.T) (driver.Driver, string) {
			d, _ := newTestDriver(t, "tenant")
			require.NoError(t, d.CreateDirectory(context.Background(), "/work", false))
			return d, "/work"
		},
	}
	suite.Run(t)
}

func TestKeyLayout(t *testing.T) {
	d, fake := newTestDriver(t, "/tenant")
	ctx := context.Background()

	require.NoError(t, d.CreateDirectory(ctx, "/docs/2024", true))
	require.NoError(t, d.Write(ctx, "/docs/2024/report.txt", []byte("q1")))

	assert.Equal(t, []string{
		"tenant/docs/",
		"tenant/docs/2024/",
		"tenant/docs/2024/report.txt",
	}, fake.keys())

	assert.Equal(t, "s3://bridge/tenant/docs/2024/report.txt", d.URL("/docs/2024/report.txt"))
}

func TestImplicitDirectories(t *testing.T) {
	d, fake := newTestDriver(t, "")
	ctx := context.Background()

	// Objects uploaded by another tool, without directory markers.
	_, err := fake.PutObject(ctx, putInput("photos/2023/cat.jpg", "meow"))
	require.NoError(t, err)

	isDir, err := d.IsDirectory(ctx, "/photos")
	require.NoError(t, err)
	assert.True(t, isDir)

	entries, err := d.List(ctx, "/photos")
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, driver.Entry{Name: "2023", Path: "/photos/2023", IsDir: true}, entries[0])

	mtime, err := d.ModificationTime(ctx, "/photos")
	require.NoError(t, err)
	assert.True(t, mtime.IsZero())
}

func TestRootIsAlwaysADirectory(t *testing.T) {
	d, _ := newTestDriver(t, "")
	ctx := context.Background()

	isDir, err := d.IsDirectory(ctx, "/")
	require.NoError(t, err)
	assert.True(t, isDir)

	require.NoError(t, d.Write(ctx, "/top.txt", []byte("x")))
	entries, err := d.List(ctx, "/")
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "top.txt", entries[0].Name)

	assert.ErrorIs(t, d.Remove(ctx, "/"), driver.ErrInvalidName)
}

func TestNewValidatesConfig(t *testing.T) {
	_, err := New(context.Background(), Config{Bucket: "b"})
	assert.Error(t, err)

	_, err = New(context.Background(), Config{Client: newFakeS3()})
	assert.Error(t, err)
}
