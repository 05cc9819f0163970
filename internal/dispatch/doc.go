// Package dispatch owns the context-dispatch loop.
//
// The loop waits for a fresh context in the mailbox, matches it against the
// registry, and hands snapshots to the worker pool:
//
//	WaitingForFreshContext -> Matching -> Consumed -> WaitingForFreshContext
//
// Taking a context from the mailbox marks it stale, so each context is
// matched at most once even while the reader keeps publishing. Matching and
// enqueueing happen outside the mailbox lock; only the take itself is
// synchronized with the producer.
//
// Two match passes run per context, in order:
//
//  1. commands: the message starts with the configured prefix and a
//     registered hook (prefixed) occurs within the message;
//  2. events: the IRC verb is fully upper-case and equals a registered hook.
//
// Both passes may fire for the same context (a PRIVMSG carrying a command is
// also a PRIVMSG event).
package dispatch
