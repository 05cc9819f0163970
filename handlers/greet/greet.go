package greet

func Handlers() []map[string]any {
	return []map[string]any{
		{
			"kind": "event",
			"hook": "JOIN",
			"func": func(ctx map[string]any, opts map[string]any) (string, error) {
				user, _ := ctx["user"].(string)
				if user == "" {
					return "", nil
				}
				return "welcome, " + user, nil
			},
			"options": map[string]any{
				"notice": true,
			},
		},
	}
}
