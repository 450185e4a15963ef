package driver

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPathHelpers(t *testing.T) {
	assert.Equal(t, "/a/b", Clean("a/b/"))
	assert.Equal(t, "/", Clean(""))
	assert.Equal(t, "/docs/a.txt", Join("/docs/", "a.txt"))
	assert.Equal(t, "a.txt", Base("/docs/a.txt"))
	assert.Equal(t, "/docs", Parent("/docs/a.txt"))
	assert.Equal(t, "/", Parent("/"))
}

func TestValidName(t *testing.T) {
	assert.True(t, ValidName("a.txt"))
	assert.True(t, ValidName(".hidden"))
	assert.False(t, ValidName(""))
	assert.False(t, ValidName(".."))
	assert.False(t, ValidName("a/b"))
}

func TestValidRelativePath(t *testing.T) {
	assert.True(t, ValidRelativePath("a"))
	assert.True(t, ValidRelativePath("a/b/c"))
	assert.False(t, ValidRelativePath(""))
	assert.False(t, ValidRelativePath("/a"))
	assert.False(t, ValidRelativePath("a/"))
	assert.False(t, ValidRelativePath("a//b"))
	assert.False(t, ValidRelativePath("a/../b"))
	assert.False(t, ValidRelativePath("a/\x00"))
}

func TestPathErrorUnwraps(t *testing.T) {
	err := Errorf("read", "/x", ErrNotFound)
	assert.True(t, errors.Is(err, ErrNotFound))
	assert.Equal(t, "read /x: no such file or directory", err.Error())
}
