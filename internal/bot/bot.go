// Package bot assembles the runtime: one IRC connection feeding a single-slot
// mailbox, a dispatch loop matching contexts against the registry, and a
// worker pool running handlers and sending replies.
package bot

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/voxinfinitus/kaa/internal/config"
	"github.com/voxinfinitus/kaa/internal/dispatch"
	"github.com/voxinfinitus/kaa/internal/events"
	"github.com/voxinfinitus/kaa/internal/irc"
	"github.com/voxinfinitus/kaa/internal/log"
	"github.com/voxinfinitus/kaa/internal/mailbox"
	"github.com/voxinfinitus/kaa/internal/registry"
	"github.com/voxinfinitus/kaa/internal/reload"
	"github.com/voxinfinitus/kaa/internal/reply"
	"github.com/voxinfinitus/kaa/internal/worker"
)

// Bot wires the runtime together. Construct with New, bind handlers with
// Command/Event or handler scripts, then Run.
type Bot struct {
	cfg       *config.Config
	box       *mailbox.Mailbox
	reg       *registry.Registry
	hub       *events.Hub
	client    *irc.Client
	responder *reply.Responder
	pool      *worker.Pool
	disp      *dispatch.Dispatcher
	logger    *slog.Logger
}

// New builds a Bot from cfg. recorder may be nil when invocations should not
// be persisted.
func New(cfg *config.Config, recorder worker.InvocationRecorder) *Bot {
	box := mailbox.New()
	reg := registry.New()
	hub := events.NewHub(0)

	client := irc.NewClient(irc.Config{
		Host:     cfg.Server.Host,
		Port:     cfg.Server.Port,
		Password: cfg.Server.Password,
		SSL:      cfg.Server.SSL,
		Timeout:  cfg.Server.Timeout,
		Nick:     cfg.Identity.Nick,
		Realname: cfg.Identity.Realname,
		Channels: cfg.Channels,
	}, box)

	responder := reply.New(client)
	pool := worker.New(cfg.Workers.Min, cfg.Workers.Max, responder, recorder, hub)
	disp := dispatch.New(box, reg, pool, cfg.Handlers.CommandPrefix, hub)

	return &Bot{
		cfg:       cfg,
		box:       box,
		reg:       reg,
		hub:       hub,
		client:    client,
		responder: responder,
		pool:      pool,
		disp:      disp,
		logger:    log.WithComponent("bot"),
	}
}

// Registry exposes the hook registry, for status surfaces.
func (b *Bot) Registry() *registry.Registry { return b.reg }

// Hub exposes the runtime event feed.
func (b *Bot) Hub() *events.Hub { return b.hub }

// Command binds fn to a prefixed command hook. Multiple functions on the same
// hook run in registration order.
func (b *Bot) Command(hook string, fn registry.HandlerFunc, opts registry.Options) error {
	return b.reg.Add(registry.KindCommand, hook, fn, opts)
}

// Event binds fn to a bare IRC verb, e.g. "JOIN" or "PRIVMSG".
func (b *Bot) Event(hook string, fn registry.HandlerFunc, opts registry.Options) error {
	return b.reg.Add(registry.KindEvent, hook, fn, opts)
}

// RemoveCommand unbinds fn from a command hook.
func (b *Bot) RemoveCommand(hook string, fn registry.HandlerFunc) {
	b.reg.Remove(registry.KindCommand, hook, fn)
}

// RemoveEvent unbinds fn from an event hook.
func (b *Bot) RemoveEvent(hook string, fn registry.HandlerFunc) {
	b.reg.Remove(registry.KindEvent, hook, fn)
}

// Reply sends text back to where ctx came from, outside the usual
// handler-return path. Long messages are chunked.
func (b *Bot) Reply(message string, ctx irc.Context, action, notice bool) error {
	return b.responder.Reply(message, ctx, action, notice, 0)
}

// Run connects to the server and drives the dispatch loop until ctx is
// cancelled. Handler scripts are loaded before connecting and watched for
// changes while running.
func (b *Bot) Run(ctx context.Context) error {
	var reloader *reload.Coordinator
	if b.cfg.Handlers.Dir != "" {
		var err error
		reloader, err = reload.New(b.cfg.Handlers.Dir, b.reg, b.hub)
		if err != nil {
			return fmt.Errorf("create reload coordinator: %w", err)
		}
		defer reloader.Stop()

		bound, err := reloader.Prime()
		if err != nil {
			return fmt.Errorf("load handlers: %w", err)
		}
		b.logger.Info("handlers loaded", "dir", b.cfg.Handlers.Dir, "hooks", bound)

		if b.cfg.Handlers.Watch {
			if err := reloader.Start(ctx); err != nil {
				return fmt.Errorf("watch handlers: %w", err)
			}
		}
	}

	if err := b.client.Connect(ctx); err != nil {
		return err
	}
	defer func() {
		if err := b.client.Close(); err != nil {
			b.logger.Error("close connection", "error", err)
		}
	}()

	b.pool.Start(ctx)
	defer b.pool.Wait()

	err := b.disp.Start(ctx)
	if err != nil && err != context.Canceled {
		return err
	}
	return nil
}
