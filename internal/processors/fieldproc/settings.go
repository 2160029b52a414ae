package fieldproc

import (
	"sort"
	"strings"
)

// StringList reads a list of strings from processor settings.
// It accepts []string, []any, a map whose truthy entries are selected
// (checkbox style), or a single comma separated string.
func StringList(settings map[string]any, key string) []string {
	switch v := settings[key].(type) {
	case []string:
		return v
	case []any:
		out := make([]string, 0, len(v))
		for _, s := range v {
			if str, ok := s.(string); ok && str != "" {
				out = append(out, str)
			}
		}
		return out
	case map[string]any:
		out := make([]string, 0, len(v))
		for k, sel := range v {
			switch s := sel.(type) {
			case bool:
				if s {
					out = append(out, k)
				}
			case string:
				if s != "" && s != "0" {
					out = append(out, k)
				}
			case nil:
			default:
				out = append(out, k)
			}
		}
		sort.Strings(out)
		return out
	case string:
		if v == "" {
			return nil
		}
		parts := strings.Split(v, ",")
		out := make([]string, 0, len(parts))
		for _, p := range parts {
			if p = strings.TrimSpace(p); p != "" {
				out = append(out, p)
			}
		}
		return out
	default:
		return nil
	}
}

// Int reads an integer setting. Handles int, int64, and float64 types that
// may come from TOML/JSON parsing.
func Int(settings map[string]any, key string, def int) int {
	switch v := settings[key].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	default:
		return def
	}
}

// Bool reads a boolean setting.
func Bool(settings map[string]any, key string, def bool) bool {
	if v, ok := settings[key].(bool); ok {
		return v
	}
	return def
}

// String reads a string setting.
func String(settings map[string]any, key, def string) string {
	if v, ok := settings[key].(string); ok {
		return v
	}
	return def
}
