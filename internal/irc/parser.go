package irc

import (
	"strings"
	"time"
)

// ParseLine tokenizes one raw IRC line into a Context.
//
// Grammar handled: [":" prefix SPACE] command {SPACE middle} [SPACE ":" trailing].
// The prefix nick (everything before "!" or "@") becomes User; the first
// middle parameter becomes Sender.
func ParseLine(raw string) Context {
	ctx := Context{Raw: raw, At: time.Now().UTC()}

	line := strings.TrimRight(raw, "\r\n")
	if line == "" {
		return ctx
	}

	if strings.HasPrefix(line, ":") {
		prefix, rest, found := strings.Cut(line[1:], " ")
		if !found {
			return ctx
		}
		ctx.User = prefixNick(prefix)
		line = rest
	}

	var trailing string
	hasTrailing := false
	if strings.HasPrefix(line, ":") {
		trailing = line[1:]
		hasTrailing = true
		line = ""
	} else if before, after, found := strings.Cut(line, " :"); found {
		trailing = after
		hasTrailing = true
		line = before
	}

	fields := strings.Fields(line)
	if len(fields) > 0 {
		ctx.Command = fields[0]
		ctx.Args = fields[1:]
	}
	if hasTrailing {
		ctx.Message = trailing
	}

	if len(ctx.Args) > 0 {
		ctx.Sender = ctx.Args[0]
	}
	return ctx
}

func prefixNick(prefix string) string {
	if i := strings.IndexAny(prefix, "!@"); i >= 0 {
		return prefix[:i]
	}
	return prefix
}
