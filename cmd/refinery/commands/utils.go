// ABOUTME: Shared utility functions for CLI commands
// ABOUTME: Truncation, relative times, argument validation and lipgloss status styles
package commands

import (
	"fmt"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/harper/refinery/internal/models"
)

var (
	headerStyle  = lipgloss.NewStyle().Bold(true)
	successStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	failureStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
	skippedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("11"))
	dimStyle     = lipgloss.NewStyle().Faint(true)
)

// truncate shortens a string to maxLen, adding "..." if truncated
func truncate(s string, maxLen int) string {
	runes := []rune(s)
	if len(runes) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return string(runes[:maxLen])
	}
	return string(runes[:maxLen-3]) + "..."
}

// formatTime formats a time for display
func formatTime(t time.Time) string {
	now := time.Now()
	diff := now.Sub(t)

	if diff < time.Minute {
		return "just now"
	} else if diff < time.Hour {
		mins := int(diff.Minutes())
		return fmt.Sprintf("%dm ago", mins)
	} else if diff < 24*time.Hour {
		hours := int(diff.Hours())
		return fmt.Sprintf("%dh ago", hours)
	} else if diff < 7*24*time.Hour {
		days := int(diff.Hours() / 24)
		return fmt.Sprintf("%dd ago", days)
	}
	return t.Format("2006-01-02")
}

// validatePositiveInt returns error if n is not positive
func validatePositiveInt(n int, name string) error {
	if n <= 0 {
		return fmt.Errorf("%s must be positive, got %d", name, n)
	}
	return nil
}

// statusBadge renders a batch outcome with its color
func statusBadge(s models.BatchEventStatus) string {
	label := fmt.Sprintf("%-9s", s)
	switch s {
	case models.BatchCompleted:
		return successStyle.Render(label)
	case models.BatchFailed:
		return failureStyle.Render(label)
	default:
		return skippedStyle.Render(label)
	}
}

// wordDelta formats a character count change
func wordDelta(before, after int) string {
	return fmt.Sprintf("%d -> %d (%+d)", before, after, after-before)
}
