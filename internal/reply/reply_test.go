package reply

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/voxinfinitus/kaa/internal/irc"
)

type recordedMessage struct {
	recipient string
	text      string
	action    bool
	notice    bool
}

type fakeSender struct {
	sent []recordedMessage
}

func (f *fakeSender) SendMessage(recipient, text string, action, notice bool) error {
	f.sent = append(f.sent, recordedMessage{recipient, text, action, notice})
	return nil
}

func TestSplit(t *testing.T) {
	tests := []struct {
		name    string
		message string
		limit   int
		want    []string
	}{
		{"empty", "", 400, nil},
		{"fits", "hello", 400, []string{"hello"}},
		{"exact boundary", strings.Repeat("a", 400), 400, []string{strings.Repeat("a", 400)}},
		{"three chunks", strings.Repeat("A", 1000), 400, []string{
			strings.Repeat("A", 400),
			strings.Repeat("A", 400),
			strings.Repeat("A", 200),
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Split(tt.message, tt.limit))
		})
	}
}

func TestReply_ChannelRecipient(t *testing.T) {
	s := &fakeSender{}
	r := New(s)
	ctx := irc.Context{Sender: "#landfill", User: "alice"}

	require.NoError(t, r.Reply("hi", ctx, false, false, 0))
	require.Len(t, s.sent, 1)
	assert.Equal(t, "#landfill", s.sent[0].recipient)
}

func TestReply_PrivateMessageRecipient(t *testing.T) {
	s := &fakeSender{}
	r := New(s)
	ctx := irc.Context{Sender: "Kaa_", User: "alice"}

	require.NoError(t, r.Reply("hi", ctx, false, false, 0))
	require.Len(t, s.sent, 1)
	assert.Equal(t, "alice", s.sent[0].recipient)
}

func TestReply_ChunksInOrder(t *testing.T) {
	s := &fakeSender{}
	r := New(s)
	ctx := irc.Context{Sender: "#c", User: "u"}

	require.NoError(t, r.Reply(strings.Repeat("A", 1000), ctx, false, false, 400))

	require.Len(t, s.sent, 3)
	assert.Len(t, s.sent[0].text, 400)
	assert.Len(t, s.sent[1].text, 400)
	assert.Len(t, s.sent[2].text, 200)
}

func TestReply_ActionAndNoticeFlagsForwarded(t *testing.T) {
	s := &fakeSender{}
	r := New(s)
	ctx := irc.Context{Sender: "#c", User: "u"}

	require.NoError(t, r.Reply("waves", ctx, true, false, 0))
	require.NoError(t, r.Reply("psst", ctx, false, true, 0))

	require.Len(t, s.sent, 2)
	assert.True(t, s.sent[0].action)
	assert.True(t, s.sent[1].notice)
}

func TestReply_NoRecipient(t *testing.T) {
	r := New(&fakeSender{})
	assert.Error(t, r.Reply("hi", irc.Context{}, false, false, 0))
}
