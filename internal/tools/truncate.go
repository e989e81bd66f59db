// ABOUTME: Head truncation of tool output on a UTF-8 boundary
// ABOUTME: Applied by the executor when Options.MaxOutputBytes is set

package tools

import (
	"fmt"
	"unicode/utf8"
)

// TruncateResult holds the outcome of a truncation operation.
type TruncateResult struct {
	Content    string
	Truncated  bool
	TotalBytes int
}

// TruncateHead keeps at most maxBytes of content, cutting before any partial
// rune. A non-positive maxBytes disables truncation.
func TruncateHead(content string, maxBytes int) TruncateResult {
	result := TruncateResult{Content: content, TotalBytes: len(content)}
	if maxBytes <= 0 || len(content) <= maxBytes {
		return result
	}
	result.Content = truncateToUTF8Boundary(content, maxBytes)
	result.Truncated = true
	return result
}

// truncateToUTF8Boundary truncates content to at most maxBytes,
// walking backward from the cut point to avoid splitting a multi-byte rune.
func truncateToUTF8Boundary(s string, maxBytes int) string {
	if maxBytes >= len(s) {
		return s
	}
	for maxBytes > 0 && !utf8.RuneStart(s[maxBytes]) {
		maxBytes--
	}
	return s[:maxBytes]
}

// truncationNotice is appended to truncated outcome content.
func truncationNotice(total int) string {
	return fmt.Sprintf("\n... [output truncated, %d bytes total]", total)
}
