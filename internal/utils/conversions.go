package utils

import "strings"

// StringList normalises a claim that may arrive as a JSON array or a
// space separated string (the form OAuth "scope" style claims use).
// Non-string array entries are skipped.
func StringList(v any) []string {
	switch list := v.(type) {
	case []any:
		out := make([]string, 0, len(list))
		for _, item := range list {
			if s, ok := item.(string); ok && s != "" {
				out = append(out, s)
			}
		}
		return out
	case []string:
		return list
	case string:
		return strings.Fields(list)
	}
	return nil
}
