// Package mailbox provides the single-slot exchange between the IRC reader
// and the dispatcher. Exactly one context is live at a time: a new publish
// overwrites the slot whether or not the previous value was consumed, and a
// take marks the slot stale so the same context is never dispatched twice.
package mailbox

import (
	"sync"

	"github.com/voxinfinitus/kaa/internal/irc"
)

// Mailbox is safe for one producer and one consumer plus any number of
// Signal listeners.
type Mailbox struct {
	mu    sync.Mutex
	ctx   irc.Context
	fresh bool

	signal chan struct{}
}

// New creates an empty mailbox. The initial slot is stale.
func New() *Mailbox {
	return &Mailbox{
		signal: make(chan struct{}, 1),
	}
}

// Publish replaces the live context and marks it fresh. The wakeup is
// non-blocking so a slow consumer never stalls the reader.
func (m *Mailbox) Publish(ctx irc.Context) {
	m.mu.Lock()
	m.ctx = ctx
	m.fresh = true
	m.mu.Unlock()

	select {
	case m.signal <- struct{}{}:
	default:
	}
}

// TakeIfFresh returns the live context and marks it stale. The second return
// is false when the slot has already been consumed or never filled.
func (m *Mailbox) TakeIfFresh() (irc.Context, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.fresh {
		return irc.Context{}, false
	}
	m.fresh = false
	return m.ctx, true
}

// Signal returns a channel that receives a token after each publish. It may
// coalesce bursts; consumers should drain with TakeIfFresh until empty.
func (m *Mailbox) Signal() <-chan struct{} {
	return m.signal
}
