package reports

import (
	"strings"
	"unicode/utf8"
)

// HeadLines returns the first n lines of a stack trace, without the trailing newline.
func HeadLines(trace string, n int) []string {
	if n <= 0 || trace == "" {
		return nil
	}
	trace = strings.ReplaceAll(trace, "\r\n", "\n")
	lines := strings.SplitN(trace, "\n", n+1)
	if len(lines) > n {
		lines = lines[:n]
	}
	return lines
}

// Truncate shortens s to maxBytes without splitting UTF-8 runes, appending "…" when cut.
func Truncate(s string, maxBytes int) string {
	if len(s) <= maxBytes {
		return s
	}
	for maxBytes > 0 && !utf8.RuneStart(s[maxBytes]) {
		maxBytes--
	}
	return s[:maxBytes] + "…"
}
