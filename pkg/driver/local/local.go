// Package local implements driver.Driver on an afero filesystem.
//
// NewOS drives the host's real filesystem; NewMemory keeps everything in
// memory, which is what tests and the `memory` driver type use.
package local

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/marmos91/fsbridge/pkg/driver"
	"github.com/spf13/afero"
)

// Driver is a driver.Driver over an afero.Fs.
type Driver struct {
	fs     afero.Fs
	scheme string
}

// New wraps an arbitrary afero filesystem.
func New(fsys afero.Fs) *Driver {
	return &Driver{fs: fsys, scheme: "file"}
}

// NewOS drives the host filesystem. A non-empty basePath jails every
// location beneath it.
func NewOS(basePath string) *Driver {
	var fsys afero.Fs = afero.NewOsFs()
	if basePath != "" {
		fsys = afero.NewBasePathFs(fsys, basePath)
	}
	return New(fsys)
}

// NewMemory creates a driver over an empty in-memory filesystem.
func NewMemory() *Driver {
	d := New(afero.NewMemMapFs())
	d.scheme = "mem"
	return d
}

// Fs exposes the underlying filesystem.
func (d *Driver) Fs() afero.Fs {
	return d.fs
}

// URL renders p as file:///p, or mem:///p for a memory driver.
func (d *Driver) URL(p string) string {
	return d.scheme + "://" + driver.Clean(p)
}

func osPath(p string) string {
	return filepath.FromSlash(driver.Clean(p))
}

// classify maps an afero/os error onto the driver sentinels.
func classify(op, p string, err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, fs.ErrNotExist):
		return driver.Errorf(op, p, driver.ErrNotFound)
	case errors.Is(err, fs.ErrExist):
		return driver.Errorf(op, p, driver.ErrExists)
	default:
		return driver.Errorf(op, p, err)
	}
}

func (d *Driver) stat(op, p string) (os.FileInfo, error) {
	info, err := d.fs.Stat(osPath(p))
	if err != nil {
		return nil, classify(op, p, err)
	}
	return info, nil
}

// requireParent checks that the directory holding p exists.
func (d *Driver) requireParent(op, p string) error {
	info, err := d.stat(op, driver.Parent(p))
	if err != nil {
		return err
	}
	if !info.IsDir() {
		return driver.Errorf(op, p, driver.ErrNotDirectory)
	}
	return nil
}

// Read returns the whole content of the file at p. Reading a directory
// fails with driver.ErrIsDirectory.
func (d *Driver) Read(ctx context.Context, p string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	info, err := d.stat("read", p)
	if err != nil {
		return nil, err
	}
	if info.IsDir() {
		return nil, driver.Errorf("read", p, driver.ErrIsDirectory)
	}

	data, err := afero.ReadFile(d.fs, osPath(p))
	if err != nil {
		return nil, classify("read", p, err)
	}
	return data, nil
}

// Write replaces the content of p, creating the file if needed.
//
// The parent must already exist. A directory at p is never overwritten
// and yields driver.ErrIsDirectory.
func (d *Driver) Write(ctx context.Context, p string, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := d.requireParent("write", p); err != nil {
		return err
	}
	if info, err := d.fs.Stat(osPath(p)); err == nil && info.IsDir() {
		return driver.Errorf("write", p, driver.ErrIsDirectory)
	}

	return classify("write", p, afero.WriteFile(d.fs, osPath(p), data, 0o644))
}

// CreateEmpty creates p with no content, truncating an existing file.
func (d *Driver) CreateEmpty(ctx context.Context, p string) error {
	return d.Write(ctx, p, nil)
}

// CreateDirectory creates the directory p.
//
// With withIntermediates the missing ancestors are created too and an
// existing directory at p is accepted. Without it the parent must exist
// and p must not. A file at p always fails with driver.ErrExists.
func (d *Driver) CreateDirectory(ctx context.Context, p string, withIntermediates bool) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	if info, err := d.fs.Stat(osPath(p)); err == nil {
		if !info.IsDir() {
			return driver.Errorf("mkdir", p, driver.ErrExists)
		}
		if withIntermediates {
			return nil
		}
		return driver.Errorf("mkdir", p, driver.ErrExists)
	}

	if withIntermediates {
		return classify("mkdir", p, d.fs.MkdirAll(osPath(p), 0o755))
	}

	if err := d.requireParent("mkdir", p); err != nil {
		return err
	}
	return classify("mkdir", p, d.fs.Mkdir(osPath(p), 0o755))
}

// List returns the direct children of the directory p sorted by name.
func (d *Driver) List(ctx context.Context, p string) ([]driver.Entry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	info, err := d.stat("list", p)
	if err != nil {
		return nil, err
	}
	if !info.IsDir() {
		return nil, driver.Errorf("list", p, driver.ErrNotDirectory)
	}

	// afero.ReadDir returns entries sorted by name.
	infos, err := afero.ReadDir(d.fs, osPath(p))
	if err != nil {
		return nil, classify("list", p, err)
	}

	entries := make([]driver.Entry, 0, len(infos))
	for _, fi := range infos {
		entries = append(entries, driver.Entry{
			Name:  fi.Name(),
			Path:  driver.Join(p, fi.Name()),
			IsDir: fi.IsDir(),
		})
	}
	return entries, nil
}

// Remove deletes p and everything beneath it. The root itself can never be
// removed.
func (d *Driver) Remove(ctx context.Context, p string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if driver.Clean(p) == "/" {
		return driver.Errorf("remove", p, driver.ErrInvalidName)
	}
	if _, err := d.stat("remove", p); err != nil {
		return err
	}
	return classify("remove", p, d.fs.RemoveAll(osPath(p)))
}

// Exists reports whether anything lives at p.
func (d *Driver) Exists(ctx context.Context, p string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	ok, err := afero.Exists(d.fs, osPath(p))
	if err != nil {
		return false, classify("stat", p, err)
	}
	return ok, nil
}

// IsDirectory reports whether p is a directory. A missing p fails with
// driver.ErrNotFound.
func (d *Driver) IsDirectory(ctx context.Context, p string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	info, err := d.stat("stat", p)
	if err != nil {
		return false, err
	}
	return info.IsDir(), nil
}

// ModificationTime returns the modification time recorded by the
// filesystem.
func (d *Driver) ModificationTime(ctx context.Context, p string) (time.Time, error) {
	if err := ctx.Err(); err != nil {
		return time.Time{}, err
	}
	info, err := d.stat("stat", p)
	if err != nil {
		return time.Time{}, err
	}
	return info.ModTime(), nil
}

var _ driver.Driver = (*Driver)(nil)
