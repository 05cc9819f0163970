package echo

import "strings"

func Handlers() []map[string]any {
	return []map[string]any{
		{
			"kind": "command",
			"hook": "echo",
			"func": func(ctx map[string]any, opts map[string]any) (string, error) {
				msg, _ := ctx["message"].(string)
				// Everything after ".echo ".
				_, rest, found := strings.Cut(msg, ".echo ")
				if !found || strings.TrimSpace(rest) == "" {
					return "usage: .echo <text>", nil
				}
				return rest, nil
			},
		},
	}
}
