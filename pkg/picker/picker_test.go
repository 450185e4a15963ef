package picker

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAccepts(t *testing.T) {
	assert.True(t, Accepts("notes.txt", nil))
	assert.True(t, Accepts("notes.TXT", []string{".txt"}))
	assert.True(t, Accepts("notes.md", []string{"txt", "md"}))
	assert.True(t, Accepts("anything", []string{"*"}))
	assert.False(t, Accepts("notes.md", []string{".txt"}))
	assert.False(t, Accepts("Makefile", []string{".txt"}))
}

func TestStaticPickFiles(t *testing.T) {
	s := &Static{Files: []string{"/d/a.txt", "/d/b.md", "/d/c.txt"}}
	ctx := context.Background()

	one, err := s.PickFiles(ctx, false, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"/d/a.txt"}, one)

	all, err := s.PickFiles(ctx, true, []string{".txt"})
	require.NoError(t, err)
	assert.Equal(t, []string{"/d/a.txt", "/d/c.txt"}, all)

	_, err = s.PickFiles(ctx, true, []string{".png"})
	assert.ErrorIs(t, err, ErrCancelled)
}

func TestStaticDismissals(t *testing.T) {
	s := &Static{}
	ctx := context.Background()

	_, err := s.PickDirectory(ctx)
	assert.ErrorIs(t, err, ErrCancelled)

	_, err = s.PickSaveTarget(ctx, "untitled.txt")
	assert.ErrorIs(t, err, ErrCancelled)
}

func TestStaticSaveTarget(t *testing.T) {
	s := &Static{SaveDir: "/out"}

	target, err := s.PickSaveTarget(context.Background(), "../escape.txt")
	require.NoError(t, err)
	assert.Equal(t, "/out/escape.txt", target)
}

// slowPicker records how many dialogs are open at once.
type slowPicker struct {
	Static
	open    atomic.Int32
	maxOpen atomic.Int32
}

func (p *slowPicker) PickDirectory(ctx context.Context) (string, error) {
	n := p.open.Add(1)
	defer p.open.Add(-1)
	for {
		cur := p.maxOpen.Load()
		if n <= cur || p.maxOpen.CompareAndSwap(cur, n) {
			break
		}
	}
	time.Sleep(5 * time.Millisecond)
	return "/picked", nil
}

func TestSerializedAllowsOneDialog(t *testing.T) {
	inner := &slowPicker{}
	p := Serialized(inner)

	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			dir, err := p.PickDirectory(context.Background())
			assert.NoError(t, err)
			assert.Equal(t, "/picked", dir)
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), inner.maxOpen.Load())
}

func TestSerializedHonoursContext(t *testing.T) {
	inner := &slowPicker{}
	p := Serialized(inner).(*serialized)
	p.slot <- struct{}{}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	_, err := p.PickDirectory(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}
