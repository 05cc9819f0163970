// Package worker executes matched handler invocations on a bounded pool.
// Each invocation is isolated: a panicking or failing handler is logged and
// recorded, and never disturbs other invocations or the dispatcher.
package worker

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/voxinfinitus/kaa/internal/events"
	"github.com/voxinfinitus/kaa/internal/irc"
	"github.com/voxinfinitus/kaa/internal/log"
	"github.com/voxinfinitus/kaa/internal/registry"
	"github.com/voxinfinitus/kaa/internal/store"
)

//go:generate mockgen -source=pool.go -destination=mocks/mocks.go -package=mocks

// Replier forwards handler output back to IRC.
type Replier interface {
	Reply(message string, ctx irc.Context, action, notice bool, lineLimit int) error
}

// InvocationRecorder persists completed invocations.
type InvocationRecorder interface {
	Record(ctx context.Context, inv store.Invocation) error
}

// Task is one enqueued invocation: a descriptor plus the context snapshot it
// matched against.
type Task struct {
	Desc registry.Descriptor
	Ctx  irc.Context
}

const queueDepth = 64

// Pool runs between min and max workers. It starts at min and grows one
// worker at a time when the queue backs up.
type Pool struct {
	min, max int
	tasks    chan Task
	replier  Replier
	recorder InvocationRecorder
	hub      *events.Hub
	logger   *slog.Logger

	mu      sync.Mutex
	ctx     context.Context
	running int
	wg      sync.WaitGroup
}

// New creates a pool bounded by [min, max] workers.
func New(min, max int, replier Replier, recorder InvocationRecorder, hub *events.Hub) *Pool {
	if min < 1 {
		min = 1
	}
	if max < min {
		max = min
	}
	return &Pool{
		min:      min,
		max:      max,
		tasks:    make(chan Task, queueDepth),
		replier:  replier,
		recorder: recorder,
		hub:      hub,
		logger:   log.WithComponent("worker"),
	}
}

// Start launches the minimum worker set. Workers exit when ctx is cancelled.
func (p *Pool) Start(ctx context.Context) {
	p.mu.Lock()
	p.ctx = ctx
	for p.running < p.min {
		p.spawnLocked()
	}
	p.mu.Unlock()
	p.logger.Info("worker pool started", "min", p.min, "max", p.max)
}

// Submit enqueues one invocation without blocking the caller. When the queue
// is full the pool grows toward max and retries once; if the queue is still
// full the invocation is dropped and logged, so a backlog of hung handlers
// never stalls the dispatch loop.
func (p *Pool) Submit(t Task) {
	select {
	case p.tasks <- t:
		return
	default:
	}

	p.grow()

	select {
	case p.tasks <- t:
	default:
		p.logger.Warn("queue full, dropping invocation",
			"hook", t.Desc.Hook, "kind", string(t.Desc.Kind), "user", t.Ctx.User)
	}
}

// Wait blocks until all workers have exited. Call after cancelling the
// Start context.
func (p *Pool) Wait() {
	p.wg.Wait()
}

// Running reports the current worker count.
func (p *Pool) Running() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.running
}

func (p *Pool) grow() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.ctx == nil || p.running >= p.max {
		return
	}
	p.spawnLocked()
	p.logger.Debug("pool grew", "running", p.running)
}

func (p *Pool) spawnLocked() {
	p.running++
	p.wg.Add(1)
	go p.run(p.ctx)
}

func (p *Pool) run(ctx context.Context) {
	defer p.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case t := <-p.tasks:
			p.invoke(ctx, t)
		}
	}
}

// invoke runs every function bound to the descriptor, in registration order.
func (p *Pool) invoke(ctx context.Context, t Task) {
	id := uuid.NewString()
	logger := log.WithInvocation(id).With("hook", t.Desc.Hook, "kind", string(t.Desc.Kind))
	started := time.Now().UTC()

	if p.hub != nil {
		p.hub.Publish(events.TypeHandlerStarted, map[string]string{
			"invocation_id": id,
			"hook":          t.Desc.Hook,
			"kind":          string(t.Desc.Kind),
			"user":          t.Ctx.User,
		})
	}

	var firstErr error
	for _, fn := range t.Desc.Funcs {
		result, err := p.callOne(fn, t)
		if err != nil {
			logger.Error("handler failed", "error", err, "sender", t.Ctx.Sender, "user", t.Ctx.User)
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		if result == "" {
			continue
		}
		if err := p.replier.Reply(result, t.Ctx,
			optBool(t.Desc.Options, "action"),
			optBool(t.Desc.Options, "notice"),
			optInt(t.Desc.Options, "line_limit")); err != nil {
			logger.Error("reply failed", "error", err)
		}
	}

	p.record(ctx, id, t, started, firstErr)
}

// callOne isolates a single handler call, converting panics into errors.
func (p *Pool) callOne(fn registry.HandlerFunc, t Task) (result string, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("handler panicked: %v", r)
		}
	}()
	return fn(t.Ctx, t.Desc.Options)
}

func (p *Pool) record(ctx context.Context, id string, t Task, started time.Time, invErr error) {
	status := store.StatusSucceeded
	var errText *string
	eventType := events.TypeHandlerSucceeded
	if invErr != nil {
		status = store.StatusFailed
		s := invErr.Error()
		errText = &s
		eventType = events.TypeHandlerFailed
	}

	if p.hub != nil {
		p.hub.Publish(eventType, map[string]string{
			"invocation_id": id,
			"hook":          t.Desc.Hook,
			"kind":          string(t.Desc.Kind),
		})
	}

	if p.recorder == nil {
		return
	}
	inv := store.Invocation{
		ID:         id,
		Kind:       string(t.Desc.Kind),
		Hook:       t.Desc.Hook,
		Status:     status,
		Error:      errText,
		Sender:     t.Ctx.Sender,
		User:       t.Ctx.User,
		Command:    t.Ctx.Command,
		Message:    t.Ctx.Message,
		StartedAt:  started,
		FinishedAt: time.Now().UTC(),
	}
	if err := p.recorder.Record(ctx, inv); err != nil {
		p.logger.Error("failed to record invocation", "invocation_id", id, "error", err)
	}
}

func optBool(opts registry.Options, key string) bool {
	v, ok := opts[key].(bool)
	return ok && v
}

func optInt(opts registry.Options, key string) int {
	switch v := opts[key].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	default:
		return 0
	}
}
