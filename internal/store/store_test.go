package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()

	dbPath := filepath.Join(t.TempDir(), "kaa.db")
	db, err := OpenSQLite(context.Background(), dbPath)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	return New(db)
}

func sampleInvocation(id, hook string, status Status, at time.Time) Invocation {
	return Invocation{
		ID:         id,
		Kind:       "command",
		Hook:       hook,
		Status:     status,
		Sender:     "#landfill",
		User:       "alice",
		Command:    "PRIVMSG",
		Message:    "." + hook,
		StartedAt:  at,
		FinishedAt: at.Add(5 * time.Millisecond),
	}
}

func TestRecordAndRecent(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	base := time.Date(2026, 8, 24, 12, 0, 0, 0, time.UTC)

	require.NoError(t, s.Record(ctx, sampleInvocation("inv-1", "ping", StatusSucceeded, base)))
	require.NoError(t, s.Record(ctx, sampleInvocation("inv-2", "echo", StatusSucceeded, base.Add(time.Second))))

	got, err := s.Recent(ctx, 10)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "inv-2", got[0].ID, "most recent first")
	assert.Equal(t, "inv-1", got[1].ID)
	assert.Equal(t, "#landfill", got[0].Sender)
	assert.Equal(t, StatusSucceeded, got[0].Status)
}

func TestRecordFailure(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	inv := sampleInvocation("inv-err", "boom", StatusFailed, time.Now())
	msg := "handler panicked: oh no"
	inv.Error = &msg
	require.NoError(t, s.Record(ctx, inv))

	got, err := s.Recent(ctx, 1)
	require.NoError(t, err)
	require.Len(t, got, 1)
	require.NotNil(t, got[0].Error)
	assert.Equal(t, msg, *got[0].Error)
}

func TestRecordValidation(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	err := s.Record(ctx, Invocation{Status: StatusSucceeded})
	assert.Error(t, err, "empty id must be rejected")

	err = s.Record(ctx, Invocation{ID: "x", Status: Status("bogus")})
	assert.Error(t, err, "unknown status must be rejected")
}

func TestRecentLimit(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	base := time.Now().UTC()

	for i := range 10 {
		inv := sampleInvocation(uuidLike(i), "ping", StatusSucceeded, base.Add(time.Duration(i)*time.Second))
		require.NoError(t, s.Record(ctx, inv))
	}

	got, err := s.Recent(ctx, 3)
	require.NoError(t, err)
	assert.Len(t, got, 3)
}

func TestPrune(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	base := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)

	require.NoError(t, s.Record(ctx, sampleInvocation("old", "ping", StatusSucceeded, base)))
	require.NoError(t, s.Record(ctx, sampleInvocation("new", "ping", StatusSucceeded, base.Add(48*time.Hour))))

	n, err := s.Prune(ctx, base.Add(24*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	got, err := s.Recent(ctx, 10)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "new", got[0].ID)
}

func uuidLike(i int) string {
	return string(rune('a'+i)) + "-invocation"
}
