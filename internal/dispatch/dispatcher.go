package dispatch

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/voxinfinitus/kaa/internal/events"
	"github.com/voxinfinitus/kaa/internal/irc"
	"github.com/voxinfinitus/kaa/internal/log"
	"github.com/voxinfinitus/kaa/internal/mailbox"
	"github.com/voxinfinitus/kaa/internal/registry"
	"github.com/voxinfinitus/kaa/internal/worker"
)

// fallbackPoll bounds how long a missed wakeup can delay a dispatch cycle.
const fallbackPoll = 250 * time.Millisecond

// Submitter is the worker pool surface the dispatcher needs.
type Submitter interface {
	Submit(t worker.Task)
}

// Dispatcher drains the mailbox and enqueues matching handler invocations.
type Dispatcher struct {
	box    *mailbox.Mailbox
	reg    *registry.Registry
	pool   Submitter
	prefix string
	hub    *events.Hub
	logger *slog.Logger
}

// New creates a Dispatcher. prefix is the command prefix, e.g. ".".
func New(box *mailbox.Mailbox, reg *registry.Registry, pool Submitter, prefix string, hub *events.Hub) *Dispatcher {
	return &Dispatcher{
		box:    box,
		reg:    reg,
		pool:   pool,
		prefix: prefix,
		hub:    hub,
		logger: log.WithComponent("dispatch"),
	}
}

// Start runs the dispatch loop until ctx is cancelled. This is a blocking
// call. The loop is signal-driven with a ticker fallback, and tolerates an
// empty mailbox indefinitely.
func (d *Dispatcher) Start(ctx context.Context) error {
	d.logger.Info("dispatch loop started", "prefix", d.prefix)
	defer d.logger.Info("dispatch loop stopped")

	ticker := time.NewTicker(fallbackPoll)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-d.box.Signal():
			d.Cycle()
		case <-ticker.C:
			d.Cycle()
		}
	}
}

// Cycle runs one dispatch cycle: take a fresh context if any, match it, and
// enqueue matches. Returns the number of invocations enqueued.
func (d *Dispatcher) Cycle() int {
	c, ok := d.box.TakeIfFresh()
	if !ok || len(c.Args) == 0 {
		return 0
	}
	return d.match(c)
}

func (d *Dispatcher) match(c irc.Context) int {
	enqueued := 0

	// Commands first, then events; both may fire for the same context.
	if d.prefix != "" && strings.HasPrefix(c.Message, d.prefix) {
		for _, desc := range d.reg.Commands() {
			if strings.Contains(c.Message, d.prefix+desc.Hook) {
				d.enqueue(desc, c)
				enqueued++
			}
		}
	}

	if c.Command != "" && isUpper(c.Command) {
		for _, desc := range d.reg.Events() {
			if desc.Hook == c.Command {
				d.enqueue(desc, c)
				enqueued++
			}
		}
	}

	return enqueued
}

func (d *Dispatcher) enqueue(desc registry.Descriptor, c irc.Context) {
	d.logger.Debug("matched", "kind", string(desc.Kind), "hook", desc.Hook, "user", c.User)
	if d.hub != nil {
		d.hub.Publish(events.TypeDispatchMatched, map[string]string{
			"kind": string(desc.Kind),
			"hook": desc.Hook,
			"user": c.User,
		})
	}
	d.pool.Submit(worker.Task{Desc: desc, Ctx: snapshot(c)})
}

// snapshot deep-copies the context so later lines never alias what a handler
// sees.
func snapshot(c irc.Context) irc.Context {
	out := c
	out.Args = append([]string(nil), c.Args...)
	return out
}

// isUpper reports whether s is entirely upper-case letters or digits, the
// protocol-verb convention.
func isUpper(s string) bool {
	for _, r := range s {
		if r >= 'a' && r <= 'z' {
			return false
		}
	}
	return s != ""
}
