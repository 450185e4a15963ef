package testing

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/marmos91/fsbridge/pkg/registry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// RegistryTestSuite checks the Registry contract. It is reused by every
// backend.
//
// Usage:
//
//	func TestMyRegistry(t *testing.T) {
//	    suite := &testing.RegistryTestSuite{
//	        NewRegistry: func(t *testing.T) registry.Registry {
//	            return myregistry.New()
//	        },
//	    }
//	    suite.Run(t)
//	}
type RegistryTestSuite struct {
	// NewRegistry returns a fresh, empty registry for each test.
	NewRegistry func(t *testing.T) registry.Registry
}

// Run executes all tests in the suite.
func (suite *RegistryTestSuite) Run(t *testing.T) {
	t.Run("RegisterThenGet", suite.testRegisterThenGet)
	t.Run("UnknownIdentifier", suite.testUnknownIdentifier)
	t.Run("IdentifiersAreUnique", suite.testIdentifiersAreUnique)
	t.Run("CallerIDIgnored", suite.testCallerIDIgnored)
	t.Run("InvalidResource", suite.testInvalidResource)
	t.Run("ConcurrentAccess", suite.testConcurrentAccess)
	t.Run("CancelledContext", suite.testCancelledContext)
}

func (suite *RegistryTestSuite) newRegistry(t *testing.T) registry.Registry {
	t.Helper()
	reg := suite.NewRegistry(t)
	t.Cleanup(func() { _ = reg.Close() })
	return reg
}

func mustRegister(t *testing.T, reg registry.Registry, target, root string) registry.EntryID {
	t.Helper()
	id, err := reg.Register(context.Background(), registry.Resource{Target: target, ScopeRoot: root})
	require.NoError(t, err)
	require.NotEmpty(t, id)
	return id
}

func (suite *RegistryTestSuite) testRegisterThenGet(t *testing.T) {
	reg := suite.newRegistry(t)
	ctx := context.Background()

	want := registry.Resource{Target: "/docs/notes/a.txt", ScopeRoot: "/docs"}
	id, err := reg.Register(ctx, want)
	require.NoError(t, err)

	got, err := reg.Get(ctx, id)
	require.NoError(t, err)

	want.ID = id
	assert.Equal(t, want, got)

	count, err := reg.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func (suite *RegistryTestSuite) testUnknownIdentifier(t *testing.T) {
	reg := suite.newRegistry(t)

	_, err := reg.Get(context.Background(), registry.EntryID("does-not-exist"))
	assert.ErrorIs(t, err, registry.ErrUnknownEntry)
}

func (suite *RegistryTestSuite) testIdentifiersAreUnique(t *testing.T) {
	reg := suite.newRegistry(t)

	seen := make(map[registry.EntryID]bool)
	for i := 0; i < 200; i++ {
		// Same location registered repeatedly still gets a new identifier.
		id := mustRegister(t, reg, "/docs/same.txt", "/docs")
		assert.False(t, seen[id], "identifier %s reused", id)
		seen[id] = true
	}

	count, err := reg.Count(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 200, count)
}

func (suite *RegistryTestSuite) testCallerIDIgnored(t *testing.T) {
	reg := suite.newRegistry(t)
	ctx := context.Background()

	first := mustRegister(t, reg, "/a", "/a")

	id, err := reg.Register(ctx, registry.Resource{ID: first, Target: "/b", ScopeRoot: "/b"})
	require.NoError(t, err)
	assert.NotEqual(t, first, id)

	got, err := reg.Get(ctx, first)
	require.NoError(t, err)
	assert.Equal(t, "/a", got.Target, "existing entry must not be overwritten")
}

func (suite *RegistryTestSuite) testInvalidResource(t *testing.T) {
	reg := suite.newRegistry(t)
	ctx := context.Background()

	_, err := reg.Register(ctx, registry.Resource{ScopeRoot: "/x"})
	assert.ErrorIs(t, err, registry.ErrInvalidResource)

	_, err = reg.Register(ctx, registry.Resource{Target: "/x"})
	assert.ErrorIs(t, err, registry.ErrInvalidResource)
}

func (suite *RegistryTestSuite) testConcurrentAccess(t *testing.T) {
	reg := suite.newRegistry(t)
	ctx := context.Background()

	const workers = 8
	const perWorker = 25

	var wg sync.WaitGroup
	ids := make(chan registry.EntryID, workers*perWorker)

	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < perWorker; i++ {
				target := fmt.Sprintf("/root/%d/%d", w, i)
				id, err := reg.Register(ctx, registry.Resource{Target: target, ScopeRoot: "/root"})
				if !assert.NoError(t, err) {
					return
				}
				got, err := reg.Get(ctx, id)
				if assert.NoError(t, err) {
					assert.Equal(t, target, got.Target)
				}
				ids <- id
			}
		}(w)
	}
	wg.Wait()
	close(ids)

	unique := make(map[registry.EntryID]struct{})
	for id := range ids {
		unique[id] = struct{}{}
	}
	assert.Len(t, unique, workers*perWorker)
}

func (suite *RegistryTestSuite) testCancelledContext(t *testing.T) {
	reg := suite.newRegistry(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := reg.Register(ctx, registry.Resource{Target: "/a", ScopeRoot: "/a"})
	assert.ErrorIs(t, err, context.Canceled)
}
