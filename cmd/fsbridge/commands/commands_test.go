package commands

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/marmos91/fsbridge/pkg/bridge"
	"github.com/marmos91/fsbridge/pkg/driver/local"
	"github.com/marmos91/fsbridge/pkg/picker"
	"github.com/marmos91/fsbridge/pkg/polyfill"
	"github.com/marmos91/fsbridge/pkg/registry"
	"github.com/marmos91/fsbridge/pkg/scope"
	"github.com/marmos91/fsbridge/pkg/transport/inproc"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	t.Cleanup(func() {
		cfgFile = ""
		initForce = false
	})

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return out.String(), err
}

func TestVersionCommand(t *testing.T) {
	out, err := execute(t, "version")
	require.NoError(t, err)
	assert.Contains(t, out, "fsbridge dev")
}

func TestInitCommand(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	path := filepath.Join(t.TempDir(), "config.yaml")

	out, err := execute(t, "init", "--config", path)
	require.NoError(t, err)
	assert.Contains(t, out, path)

	_, err = os.Stat(path)
	require.NoError(t, err)

	_, err = execute(t, "init", "--config", path)
	assert.ErrorContains(t, err, "already exists")

	_, err = execute(t, "init", "--config", path, "--force")
	assert.NoError(t, err)
}

func TestTokenCommandRequiresSecret(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	t.Setenv("FSBRIDGE_ADAPTERS_HTTP_JWT_SECRET", "")

	_, err := execute(t, "token", "editor")
	assert.ErrorContains(t, err, "no JWT secret")
}

func TestListDirectory(t *testing.T) {
	ctx := context.Background()
	drv := local.NewMemory()
	require.NoError(t, drv.CreateDirectory(ctx, "/d/sub", true))
	require.NoError(t, drv.Write(ctx, "/d/a.txt", []byte("hello")))

	var out bytes.Buffer
	require.NoError(t, listDirectory(ctx, &out, drv, "/d"))
	assert.Contains(t, out.String(), "a.txt")
	assert.Contains(t, out.String(), "directory")

	assert.Error(t, listDirectory(ctx, &out, drv, "/missing"))
}

func TestBrowseDescendsAndPrints(t *testing.T) {
	ctx := context.Background()
	drv := local.NewMemory()
	require.NoError(t, drv.CreateDirectory(ctx, "/d/photos/2024", true))
	require.NoError(t, drv.Write(ctx, "/d/photos/2024/beach.jpg", []byte("jpg")))

	svc, err := bridge.New(bridge.Config{
		Registry: registry.NewMemory(),
		Driver:   drv,
		Scopes:   scope.NewAllowAll(),
		Picker:   &picker.Static{Directory: "/d"},
	})
	require.NoError(t, err)

	client := polyfill.NewClient(inproc.New(bridge.NewDispatcher(svc)))
	defer client.Close()

	root, err := client.ShowDirectoryPicker(ctx).Await(ctx)
	require.NoError(t, err)

	dir, err := descend(ctx, root, "photos/2024/")
	require.NoError(t, err)
	assert.Equal(t, "2024", dir.Name())

	var out bytes.Buffer
	require.NoError(t, printDirectory(&out, dir))
	assert.Contains(t, out.String(), "beach.jpg")
	assert.Contains(t, out.String(), "file")

	_, err = descend(ctx, root, "nope")
	assert.ErrorIs(t, err, polyfill.ErrNotFound)
}
