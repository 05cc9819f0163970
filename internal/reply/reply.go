// Package reply turns handler output into outbound IRC messages, splitting
// oversized text into protocol-sized chunks.
package reply

import (
	"fmt"

	"github.com/voxinfinitus/kaa/internal/irc"
)

// DefaultLineLimit is the per-chunk character limit. 400 leaves headroom
// under the 512-byte IRC line cap for the command and recipient.
const DefaultLineLimit = 400

// Sender is the transport primitive replies are forwarded to.
type Sender interface {
	SendMessage(recipient, text string, action, notice bool) error
}

// Responder resolves the recipient for a context and chunks long messages.
// Chunks of one call are sent in order; interleaving with concurrent calls
// from other workers is acceptable.
type Responder struct {
	sender Sender
}

// New creates a Responder forwarding to sender.
func New(sender Sender) *Responder {
	return &Responder{sender: sender}
}

// Reply sends message back to where ctx came from: the channel when the
// sender is a channel, otherwise the originating user. lineLimit <= 0 uses
// DefaultLineLimit.
func (r *Responder) Reply(message string, ctx irc.Context, action, notice bool, lineLimit int) error {
	recipient := ctx.User
	if ctx.FromChannel() {
		recipient = ctx.Sender
	}
	if recipient == "" {
		return fmt.Errorf("context has no recipient")
	}
	if lineLimit <= 0 {
		lineLimit = DefaultLineLimit
	}

	for _, chunk := range Split(message, lineLimit) {
		if err := r.sender.SendMessage(recipient, chunk, action, notice); err != nil {
			return fmt.Errorf("send chunk: %w", err)
		}
	}
	return nil
}

// Split cuts message into pieces of at most limit characters, preserving
// order.
func Split(message string, limit int) []string {
	if message == "" {
		return nil
	}
	var chunks []string
	for len(message) > limit {
		chunks = append(chunks, message[:limit])
		message = message[limit:]
	}
	return append(chunks, message)
}
