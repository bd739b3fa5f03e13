package validators

import "strings"

// SanitizeCode trims a user-entered code and caps its length.
func SanitizeCode(input string, maxLen int) string {
	trimmed := strings.TrimSpace(input)
	if maxLen > 0 && len(trimmed) > maxLen {
		return trimmed[:maxLen]
	}
	return trimmed
}
