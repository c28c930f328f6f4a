// ABOUTME: Short abstracts of segments that have not been refined yet
// ABOUTME: Keeps earlier prompts aware of where the unit is heading
package segment

import (
	"strings"
)

// PreviewLength is the character budget of one abstract
const PreviewLength = 200

// NoFollowingContent is used when there is nothing left to preview
const NoFollowingContent = "(no following content)"

// Abstract condenses text to at most limit characters.
// A cut lands after the last sentence end when that keeps over half the budget.
func Abstract(text string, limit int) string {
	text = strings.TrimSpace(text)
	if text == "" {
		return ""
	}
	runes := []rune(text)
	if len(runes) <= limit {
		return text
	}
	head := runes[:limit]
	if i := lastIndexFunc(head, isTerminal); i > limit/2 {
		head = head[:i+1]
	}
	return string(head) + "..."
}

// Preview abstracts every piece after index, labelled by position
func Preview(pieces []Piece, index int) string {
	var parts []string
	for _, p := range pieces[index+1:] {
		a := Abstract(p.Text, PreviewLength)
		if a == "" {
			continue
		}
		parts = append(parts, "["+Label(p.Index)+"] "+a)
	}
	if len(parts) == 0 {
		return NoFollowingContent
	}
	return strings.Join(parts, "\n")
}

// Label names a segment position for prompts and reports
func Label(index int) string {
	switch index {
	case 0:
		return "Opening"
	case 1:
		return "Middle"
	default:
		return "Closing"
	}
}
