package utils

import (
	"errors"
	"html"
	"regexp"
	"strings"
	"unicode/utf8"
)

// Message length limits
const (
	MaxMessageLength = 8000
	MinMessageLength = 1
)

var (
	scriptTagRegex = regexp.MustCompile(`(?i)<script[^>]*>.*?</script>`)
	onEventRegex   = regexp.MustCompile(`(?i)\s+on\w+\s*=`)
)

// SanitizeMessageBody cleans and validates a chat message body.
// An empty body is allowed here (attachment-only messages); the store
// enforces the body-or-attachment rule.
func SanitizeMessageBody(body string) (string, error) {
	if strings.TrimSpace(body) == "" {
		return "", nil
	}

	if utf8.RuneCountInString(body) > MaxMessageLength {
		return "", errors.New("message exceeds maximum length")
	}

	// Strip script tags and inline event handlers, then escape the rest
	body = scriptTagRegex.ReplaceAllString(body, "")
	body = onEventRegex.ReplaceAllString(body, " ")
	return html.EscapeString(strings.TrimSpace(body)), nil
}

// EscapeSQLWildcards escapes SQL LIKE/ILIKE wildcard characters
func EscapeSQLWildcards(input string) string {
	input = strings.ReplaceAll(input, "\\", "\\\\")
	input = strings.ReplaceAll(input, "%", "\\%")
	input = strings.ReplaceAll(input, "_", "\\_")
	return input
}

// TruncateString truncates a string to at most maxLen bytes, backing off to
// the nearest rune boundary so the result stays valid UTF-8.
func TruncateString(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	cut := maxLen
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut]
}
