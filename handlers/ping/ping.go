package ping

// Handlers declares the hooks this script binds. The runtime interprets this
// file; edits here take effect without restarting the bot.
func Handlers() []map[string]any {
	return []map[string]any{
		{
			"kind": "command",
			"hook": "ping",
			"func": func(ctx map[string]any, opts map[string]any) (string, error) {
				return "pong", nil
			},
		},
	}
}
