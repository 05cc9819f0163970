package worker

import (
	"context"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/golang/mock/gomock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/voxinfinitus/kaa/internal/events"
	"github.com/voxinfinitus/kaa/internal/irc"
	"github.com/voxinfinitus/kaa/internal/log"
	"github.com/voxinfinitus/kaa/internal/registry"
	"github.com/voxinfinitus/kaa/internal/store"
	"github.com/voxinfinitus/kaa/internal/worker/mocks"
)

func TestMain(m *testing.M) {
	log.Setup("ERROR") // Suppress logs in tests
	os.Exit(m.Run())
}

func testTask(hook string, funcs ...registry.HandlerFunc) Task {
	return Task{
		Desc: registry.Descriptor{
			Kind:    registry.KindCommand,
			Hook:    hook,
			Funcs:   funcs,
			Options: registry.Options{},
			Enabled: true,
		},
		Ctx: irc.Context{Sender: "#test", User: "alice", Command: "PRIVMSG", Args: []string{"#test"}, Message: "." + hook},
	}
}

func TestInvoke_RepliesWithHandlerResult(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	replier := mocks.NewMockReplier(ctrl)
	recorder := mocks.NewMockInvocationRecorder(ctrl)

	task := testTask("ping", func(ctx irc.Context, opts registry.Options) (string, error) {
		return "pong", nil
	})

	replier.EXPECT().Reply("pong", task.Ctx, false, false, 0).Return(nil)
	recorder.EXPECT().Record(gomock.Any(), gomock.Any()).DoAndReturn(
		func(_ context.Context, inv store.Invocation) error {
			assert.Equal(t, "ping", inv.Hook)
			assert.Equal(t, store.StatusSucceeded, inv.Status)
			assert.Nil(t, inv.Error)
			return nil
		})

	p := New(1, 2, replier, recorder, nil)
	p.invoke(context.Background(), task)
}

func TestInvoke_EmptyResultSendsNoReply(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	replier := mocks.NewMockReplier(ctrl)
	recorder := mocks.NewMockInvocationRecorder(ctrl)
	recorder.EXPECT().Record(gomock.Any(), gomock.Any()).Return(nil)

	task := testTask("quiet", func(ctx irc.Context, opts registry.Options) (string, error) {
		return "", nil
	})

	p := New(1, 2, replier, recorder, nil)
	p.invoke(context.Background(), task)
}

func TestInvoke_PanicIsIsolatedAndRecorded(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	replier := mocks.NewMockReplier(ctrl)
	recorder := mocks.NewMockInvocationRecorder(ctrl)

	// The second function still runs and its reply is still sent.
	task := testTask("boom",
		func(ctx irc.Context, opts registry.Options) (string, error) {
			panic("kaboom")
		},
		func(ctx irc.Context, opts registry.Options) (string, error) {
			return "survived", nil
		},
	)

	replier.EXPECT().Reply("survived", task.Ctx, false, false, 0).Return(nil)
	recorder.EXPECT().Record(gomock.Any(), gomock.Any()).DoAndReturn(
		func(_ context.Context, inv store.Invocation) error {
			require.NotNil(t, inv.Error)
			assert.Equal(t, store.StatusFailed, inv.Status)
			assert.Contains(t, *inv.Error, "kaboom")
			return nil
		})

	p := New(1, 2, replier, recorder, nil)
	p.invoke(context.Background(), task)
}

func TestInvoke_FuncsRunInRegistrationOrder(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	replier := mocks.NewMockReplier(ctrl)
	recorder := mocks.NewMockInvocationRecorder(ctrl)
	recorder.EXPECT().Record(gomock.Any(), gomock.Any()).Return(nil)

	var order []string
	task := testTask("ordered",
		func(ctx irc.Context, opts registry.Options) (string, error) {
			order = append(order, "first")
			return "", nil
		},
		func(ctx irc.Context, opts registry.Options) (string, error) {
			order = append(order, "second")
			return "", nil
		},
	)

	p := New(1, 2, replier, recorder, nil)
	p.invoke(context.Background(), task)

	assert.Equal(t, []string{"first", "second"}, order)
}

func TestInvoke_OptionsControlReplyShape(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	replier := mocks.NewMockReplier(ctrl)
	recorder := mocks.NewMockInvocationRecorder(ctrl)
	recorder.EXPECT().Record(gomock.Any(), gomock.Any()).Return(nil)

	task := testTask("shout", func(ctx irc.Context, opts registry.Options) (string, error) {
		return "announcement", nil
	})
	task.Desc.Options = registry.Options{"notice": true, "line_limit": 200}

	replier.EXPECT().Reply("announcement", task.Ctx, false, true, 200).Return(nil)

	p := New(1, 2, replier, recorder, nil)
	p.invoke(context.Background(), task)
}

func TestInvoke_PublishesHubEvents(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	replier := mocks.NewMockReplier(ctrl)
	hub := events.NewHub(16)

	task := testTask("evt", func(ctx irc.Context, opts registry.Options) (string, error) {
		return "", nil
	})

	p := New(1, 2, replier, nil, hub)
	p.invoke(context.Background(), task)

	all := hub.SnapshotSince(0)
	require.Len(t, all, 2)
	assert.Equal(t, events.TypeHandlerStarted, all[0].Type)
	assert.Equal(t, events.TypeHandlerSucceeded, all[1].Type)
}

func TestPool_StartRunsMinWorkers(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	replier := mocks.NewMockReplier(ctrl)

	ctx, cancel := context.WithCancel(context.Background())
	p := New(3, 7, replier, nil, nil)
	p.Start(ctx)

	assert.Equal(t, 3, p.Running())

	cancel()
	p.Wait()
}

func TestPool_ExecutesSubmittedTasks(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	replier := mocks.NewMockReplier(ctrl)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	p := New(2, 4, replier, nil, nil)
	p.Start(ctx)

	var mu sync.Mutex
	seen := map[string]bool{}
	done := make(chan struct{}, 3)

	for _, hook := range []string{"a", "b", "c"} {
		hook := hook
		p.Submit(testTask(hook, func(ctx irc.Context, opts registry.Options) (string, error) {
			mu.Lock()
			seen[hook] = true
			mu.Unlock()
			done <- struct{}{}
			return "", nil
		}))
	}

	for range 3 {
		select {
		case <-done:
		case <-time.After(2 * time.Second):
			t.Fatal("timed out waiting for tasks")
		}
	}

	mu.Lock()
	defer mu.Unlock()
	assert.Len(t, seen, 3)
}

func TestPool_GrowsWhenQueueBacksUp(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	replier := mocks.NewMockReplier(ctrl)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	p := New(1, 3, replier, nil, nil)
	p.Start(ctx)

	block := make(chan struct{})
	slow := func(ctx irc.Context, opts registry.Options) (string, error) {
		<-block
		return "", nil
	}

	// One task occupies the single worker, the rest fill the queue until
	// Submit is forced to grow the pool.
	for range queueDepth + 2 {
		p.Submit(testTask("slow", slow))
	}

	assert.Greater(t, p.Running(), 1, "pool should grow past min when backlogged")
	assert.LessOrEqual(t, p.Running(), 3)

	close(block)
}

func TestSubmit_DropsInsteadOfBlockingWhenSaturated(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	replier := mocks.NewMockReplier(ctrl)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	p := New(1, 1, replier, nil, nil)
	p.Start(ctx)

	block := make(chan struct{})
	defer close(block)
	slow := func(ctx irc.Context, opts registry.Options) (string, error) {
		<-block
		return "", nil
	}

	// One task hangs the only worker, the rest fill the queue.
	for range queueDepth + 1 {
		p.Submit(testTask("slow", slow))
	}

	// With the pool at max and the queue full, another submit must return
	// promptly rather than stall the dispatcher.
	done := make(chan struct{})
	go func() {
		p.Submit(testTask("slow", slow))
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Submit blocked on a saturated pool")
	}
	assert.Equal(t, 1, p.Running())
}

func TestSubmit_BeforeStartDoesNotBlock(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	replier := mocks.NewMockReplier(ctrl)
	p := New(1, 3, replier, nil, nil)

	// No workers are draining the queue; overflow submits must still return.
	done := make(chan struct{})
	go func() {
		for range queueDepth + 2 {
			p.Submit(testTask("idle", func(ctx irc.Context, opts registry.Options) (string, error) {
				return "", nil
			}))
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Submit blocked with no running workers")
	}
	assert.Equal(t, 0, p.Running())
}
