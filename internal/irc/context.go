package irc

import "time"

// Context is a snapshot of one parsed inbound IRC line. The dispatcher hands
// value copies of it to workers, so later lines never mutate what a handler
// sees.
type Context struct {
	// Sender is the first middle parameter: the channel the line was sent to,
	// or our own nick for a private message.
	Sender string
	// User is the nick portion of the message prefix.
	User string
	// Command is the IRC verb or numeric, as received.
	Command string
	// Args are the middle parameters, in order.
	Args []string
	// Message is the trailing parameter, empty if absent.
	Message string
	// Raw is the line as received, without CRLF.
	Raw string
	// At is the local receive time.
	At time.Time
}

// Map renders the context as a plain map for interpreted handler scripts.
func (c Context) Map() map[string]any {
	args := make([]string, len(c.Args))
	copy(args, c.Args)
	return map[string]any{
		"sender":  c.Sender,
		"user":    c.User,
		"command": c.Command,
		"args":    args,
		"message": c.Message,
	}
}

// FromChannel reports whether the line originated in a channel rather than a
// private message.
func (c Context) FromChannel() bool {
	return len(c.Sender) > 0 && (c.Sender[0] == '#' || c.Sender[0] == '&')
}
