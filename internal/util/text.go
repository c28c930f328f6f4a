// ABOUTME: Rune-aware text helpers used across the pipeline
// ABOUTME: Counting, tail extraction and truncation on character boundaries
package util

import "unicode/utf8"

// CountChars returns the character count used as the word count everywhere
func CountChars(s string) int {
	return utf8.RuneCountInString(s)
}

// Tail returns the last n characters of s
func Tail(s string, n int) string {
	if n <= 0 {
		return ""
	}
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[len(runes)-n:])
}

// Head returns the first n characters of s
func Head(s string, n int) string {
	if n <= 0 {
		return ""
	}
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}

// Truncate shortens s to maxLen characters, ending with "..." when cut
func Truncate(s string, maxLen int) string {
	runes := []rune(s)
	if len(runes) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return string(runes[:maxLen])
	}
	return string(runes[:maxLen-3]) + "..."
}
