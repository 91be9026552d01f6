package chat

import "strings"

// Rune limits applied to untrusted text before it enters room state.
const (
	// MaxNameRunes caps usernames and room names.
	MaxNameRunes = 100

	// MaxMessageRunes caps message bodies.
	MaxMessageRunes = 2000
)

// Sanitize trims surrounding whitespace and truncates the result to at most
// maxRunes runes. It never fails; callers treat an empty result as invalid
// input. A maxRunes of zero or less disables truncation.
func Sanitize(raw string, maxRunes int) string {
	s := strings.TrimSpace(raw)
	if maxRunes <= 0 {
		return s
	}
	runes := []rune(s)
	if len(runes) <= maxRunes {
		return s
	}
	// Truncation can expose trailing whitespace; trim again.
	return strings.TrimRight(string(runes[:maxRunes]), " \t\r\n")
}
