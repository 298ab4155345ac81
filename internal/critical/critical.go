// Package critical models the single-core interrupt mask used to protect state
// shared between interrupt handlers and the main loop.
//
// A Mask is the global maskable-interrupt enable flag. Each thread of control
// (the main loop, or one running handler) owns a Context that remembers whether
// interrupts are enabled from its point of view. Enter/Exit follow the PRIMASK
// save/restore contract: Enter returns the previous enabled flag and Exit only
// re-enables interrupts when that flag was set, so sections nest safely.
package critical

import (
	"sync"
	"sync/atomic"
)

// Mask is the global interrupt mask. The zero value is unmasked and ready to use.
type Mask struct {
	mu         sync.Mutex
	interrupts atomic.Uint64
}

// New returns an unmasked Mask.
func New() *Mask { return &Mask{} }

// Context is one thread of control. It is not safe for use by more than one
// goroutine at a time; that is what distinguishes it from the Mask.
type Context struct {
	m       *Mask
	name    string
	enabled bool
}

// Thread returns a context for normal (non-interrupt) code, with interrupts
// enabled.
func (m *Mask) Thread(name string) *Context {
	return &Context{m: m, name: name, enabled: true}
}

// Interrupt runs fn to completion as an interrupt handler. The mask is held for
// the whole call and the handler's context starts with interrupts disabled, so
// nested sections inside fn never unmask early. Handlers raised concurrently
// run one after another.
func (m *Mask) Interrupt(name string, fn func(*Context)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.interrupts.Add(1)
	fn(&Context{m: m, name: name})
}

// Interrupts returns how many handlers have run.
func (m *Mask) Interrupts() uint64 { return m.interrupts.Load() }

// Enter masks interrupts and returns whether they were enabled before.
func (c *Context) Enter() bool {
	saved := c.enabled
	if saved {
		c.m.mu.Lock()
		c.enabled = false
	}
	return saved
}

// Exit restores the state saved by the matching Enter.
func (c *Context) Exit(saved bool) {
	if !saved {
		return
	}
	c.enabled = true
	c.m.mu.Unlock()
}

// Do runs fn inside a critical section.
func (c *Context) Do(fn func()) {
	saved := c.Enter()
	defer c.Exit(saved)
	fn()
}

// Enabled reports whether interrupts are enabled for this context.
func (c *Context) Enabled() bool { return c.enabled }

// Name returns the label given at creation.
func (c *Context) Name() string { return c.name }
