// Package scope models the permission bracket required before touching a
// location outside the host's private storage.
//
// Access is granted per scope root, not per leaf. A caller acquires the
// root, performs its I/O on any location beneath it, and releases the root
// on every exit path. Guard packages that sequence as a value.
package scope

import (
	"context"
	"errors"
	"fmt"
	"path"
	"strings"
	"sync"
)

// ErrAccessDenied is returned by Open when the service refuses the root.
var ErrAccessDenied = errors.New("scope access denied")

// Service grants and revokes access to scope roots.
type Service interface {
	// Acquire asks for access to root and reports whether it was granted.
	Acquire(ctx context.Context, root string) bool

	// Release gives back one successful Acquire of root.
	Release(root string)
}

// Guard is a held scope. Close releases it exactly once; further calls
// are no-ops, so `defer g.Close()` is always safe.
type Guard struct {
	svc  Service
	root string
	once sync.Once
}

// Open acquires root from svc.
func Open(ctx context.Context, svc Service, root string) (*Guard, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if !svc.Acquire(ctx, root) {
		return nil, fmt.Errorf("%w: %s", ErrAccessDenied, root)
	}
	return &Guard{svc: svc, root: root}, nil
}

// Root returns the scope root held by the guard.
func (g *Guard) Root() string {
	return g.root
}

// Close releases the root.
func (g *Guard) Close() {
	g.once.Do(func() {
		g.svc.Release(g.root)
	})
}

// Do runs fn while holding root. The scope is released when fn returns or
// panics.
func Do(ctx context.Context, svc Service, root string, fn func() error) error {
	g, err := Open(ctx, svc, root)
	if err != nil {
		return err
	}
	defer g.Close()
	return fn()
}

// Counter tracks outstanding acquisitions per root. Services embed it to
// expose how many operations currently hold a root.
type Counter struct {
	mu     sync.Mutex
	active map[string]int
}

func (c *Counter) inc(root string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.active == nil {
		c.active = make(map[string]int)
	}
	c.active[root]++
}

func (c *Counter) dec(root string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.active[root] <= 1 {
		delete(c.active, root)
		return
	}
	c.active[root]--
}

// Active returns the number of unreleased acquisitions of root.
func (c *Counter) Active(root string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.active[root]
}

// Outstanding returns the total number of unreleased acquisitions.
func (c *Counter) Outstanding() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	total := 0
	for _, n := range c.active {
		total += n
	}
	return total
}

// AllowAll grants every root. It is the service used when the host has no
// sandbox of its own.
type AllowAll struct {
	Counter
}

// NewAllowAll creates a service that grants everything but still counts
// outstanding acquisitions.
func NewAllowAll() *AllowAll {
	return &AllowAll{}
}

// Acquire grants root unless ctx is already done.
func (a *AllowAll) Acquire(ctx context.Context, root string) bool {
	if ctx.Err() != nil {
		return false
	}
	a.inc(root)
	return true
}

func (a *AllowAll) Release(root string) {
	a.dec(root)
}

// Rooted grants a root only when it lies at or beneath one of the allowed
// directories.
type Rooted struct {
	Counter
	allowed []string
}

// NewRooted creates a service confined to the given directories. Paths
// are cleaned; relative paths are rejected by Acquire since they cannot be
// compared.
func NewRooted(allowed ...string) *Rooted {
	cleaned := make([]string, 0, len(allowed))
	for _, a := range allowed {
		if a == "" {
			continue
		}
		cleaned = append(cleaned, path.Clean(a))
	}
	return &Rooted{allowed: cleaned}
}

// Acquire grants root when it lies at or beneath an allowed directory and
// ctx is not done.
func (r *Rooted) Acquire(ctx context.Context, root string) bool {
	if ctx.Err() != nil || !r.permits(root) {
		return false
	}
	r.inc(root)
	return true
}

func (r *Rooted) Release(root string) {
	r.dec(root)
}

func (r *Rooted) permits(root string) bool {
	if root == "" {
		return false
	}
	root = path.Clean(root)
	for _, a := range r.allowed {
		if Within(a, root) {
			return true
		}
	}
	return false
}

// Within reports whether p equals base or lies beneath it. Both are
// slash-separated; prefix matching respects segment boundaries.
func Within(base, p string) bool {
	base = path.Clean(base)
	p = path.Clean(p)
	if base == p || base == "/" && strings.HasPrefix(p, "/") {
		return true
	}
	return strings.HasPrefix(p, base+"/")
}
