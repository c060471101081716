package generator

import (
	"regexp"
	"strings"
)

const LinkPlaceholder = "[link]"

var longURLRegex = regexp.MustCompile(`https?://\S{50,}`)

// CleanResponse strips markdown emphasis, replaces overlong URLs and caps the
// text at maxLen runes (no cap when maxLen <= 0).
func CleanResponse(text string, maxLen int) string {
	cleaned := strings.ReplaceAll(text, "**", "")
	cleaned = strings.ReplaceAll(cleaned, "*", "")
	cleaned = longURLRegex.ReplaceAllString(cleaned, LinkPlaceholder)
	cleaned = strings.TrimSpace(cleaned)

	if maxLen <= 0 {
		return cleaned
	}
	runes := []rune(cleaned)
	if len(runes) <= maxLen {
		return cleaned
	}
	if maxLen <= 3 {
		return string(runes[:maxLen])
	}
	return strings.TrimSpace(string(runes[:maxLen-3])) + "..."
}
