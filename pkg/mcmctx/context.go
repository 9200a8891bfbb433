// Package mcmctx supplies the cancellation-token tree described in
// spec §5: a global context that is the ancestor of every connection
// context, with WithCancel/WithTimeout child derivation. It is a thin
// layer over the standard library's context.Context rather than a
// reimplementation of it — no repo in the retrieval pack reinvents
// context cancellation, they all build directly on stdlib context,
// and so does this one.
package mcmctx

import (
	"context"
	"sync"
	"time"

	"github.com/open-mcm/mesh-dataplane/internal/mcmerr"
)

// Context is a cancellable node in the tree. It embeds a standard
// context.Context and remembers its own cancel func so Cancel() can be
// called directly without plumbing a separate CancelFunc around.
type Context struct {
	context.Context
	cancel context.CancelFunc
	parent *Context

	mu       sync.Mutex
	children []*Context
}

// Background returns a fresh root context, suitable as the single
// ClientContext-owned global context in spec §4.8/§9 ("the global
// context which is the ancestor of all connection contexts").
func Background() *Context {
	ctx, cancel := context.WithCancel(context.Background())
	return &Context{Context: ctx, cancel: cancel}
}

// WithCancel derives a child context. Cancelling the parent cancels
// every descendant; cancelling a child never affects its parent.
func (c *Context) WithCancel() *Context {
	ctx, cancel := context.WithCancel(c.Context)
	child := &Context{Context: ctx, cancel: cancel, parent: c}
	c.addChild(child)
	return child
}

// WithTimeout derives a child context bounded by d in addition to
// inheriting the parent's cancellation.
func (c *Context) WithTimeout(d time.Duration) *Context {
	ctx, cancel := context.WithTimeout(c.Context, d)
	child := &Context{Context: ctx, cancel: cancel, parent: c}
	c.addChild(child)
	return child
}

// WithDeadline derives a child context bounded by the absolute time t.
func (c *Context) WithDeadline(t time.Time) *Context {
	ctx, cancel := context.WithDeadline(c.Context, t)
	child := &Context{Context: ctx, cancel: cancel, parent: c}
	c.addChild(child)
	return child
}

func (c *Context) addChild(child *Context) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.children = append(c.children, child)
}

// removeChild drops child from c.children, called once that child has
// been cancelled on its own (not as part of a parent's cascade) so a
// long-lived parent doesn't keep accumulating references to contexts
// whose connections have long since been deleted.
func (c *Context) removeChild(child *Context) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i, k := range c.children {
		if k == child {
			c.children = append(c.children[:i], c.children[i+1:]...)
			return
		}
	}
}

// Cancel cancels this context and every descendant derived from it,
// then detaches itself from its parent's child list so a parent that
// outlives many short-lived children — a Client creating and deleting
// connections over its whole life — doesn't leak one *Context per
// deleted connection.
func (c *Context) Cancel() {
	c.mu.Lock()
	kids := c.children
	c.children = nil
	c.mu.Unlock()
	for _, k := range kids {
		k.Cancel()
	}
	c.cancel()
	if c.parent != nil {
		c.parent.removeChild(c)
	}
}

// Cancelled reports whether this context (or an ancestor) has been
// cancelled or has expired.
func (c *Context) Cancelled() bool {
	select {
	case <-c.Done():
		return true
	default:
		return false
	}
}

// Err maps the context's termination reason onto the engine's error
// taxonomy: a cancelled context is always CONN_CLOSED per spec §7
// ("Cancelled context → ConnClosed"), regardless of whether
// cancellation came from Cancel() or a parent's cancellation; a
// context whose deadline expired with no cancellation is TIMEOUT.
func (c *Context) Err() error {
	switch c.Context.Err() {
	case context.Canceled:
		return mcmerr.New(mcmerr.ConnClosed, "context", nil)
	case context.DeadlineExceeded:
		return mcmerr.New(mcmerr.Timeout, "context", nil)
	default:
		return nil
	}
}

// Sleep blocks for d or until ctx is cancelled, whichever comes first,
// returning true if it was woken by cancellation.
func Sleep(ctx *Context, d time.Duration) (cancelled bool) {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return false
	case <-ctx.Done():
		return true
	}
}
