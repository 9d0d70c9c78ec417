package utils

import "strings"

// TruncateForLog shortens s to at most limit runes, appending an ellipsis when it was cut.
// Newlines are collapsed so prompt previews stay on one log line.
func TruncateForLog(s string, limit int) string {
	s = strings.TrimSpace(s)
	if limit <= 0 {
		return ""
	}
	s = strings.Join(strings.Fields(s), " ")
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit]) + "..."
}
