// ABOUTME: Markdown report comparing original and refined text per unit
// ABOUTME: Word-count deltas, review state and opening excerpts of completed refinements
package export

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/harper/refinery/internal/util"
)

// excerptChars is the length of each opening excerpt in the report
const excerptChars = 300

// DiffReport writes the comparison report for a project
func (e *Exporter) DiffReport(ctx context.Context, w io.Writer, projectID string) error {
	project, err := e.project(ctx, projectID)
	if err != nil {
		return err
	}
	records, err := e.latestCompleted(ctx, projectID)
	if err != nil {
		return err
	}

	var totalOriginal, totalRefined int
	for _, r := range records {
		totalOriginal += r.OriginalWordCount
		totalRefined += r.RefinedWordCount
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "# %s - Refinement Report\n\n", project.Title)
	fmt.Fprintf(&sb, "Generated: %s\n\n", e.now().Format("2006-01-02 15:04"))
	sb.WriteString("## Overview\n\n")
	fmt.Fprintf(&sb, "- Units refined: %d\n", len(records))
	fmt.Fprintf(&sb, "- Original characters: %d\n", totalOriginal)
	fmt.Fprintf(&sb, "- Refined characters: %d\n", totalRefined)
	fmt.Fprintf(&sb, "- Change: %s\n\n", delta(totalOriginal, totalRefined))
	sb.WriteString("---\n\n")

	for _, r := range records {
		fmt.Fprintf(&sb, "## Unit %d\n\n", r.UnitNumber)
		fmt.Fprintf(&sb, "- Original characters: %d\n", r.OriginalWordCount)
		fmt.Fprintf(&sb, "- Refined characters: %d\n", r.RefinedWordCount)
		fmt.Fprintf(&sb, "- Change: %s\n", delta(r.OriginalWordCount, r.RefinedWordCount))
		fmt.Fprintf(&sb, "- Model: %s\n", r.Model)
		fmt.Fprintf(&sb, "- Review: %s\n\n", r.ReviewStatus.Label())

		sb.WriteString("### Opening\n\n")
		sb.WriteString("**Original:**\n")
		fmt.Fprintf(&sb, "```\n%s\n```\n\n", excerpt(r.Segments[0].Original))
		sb.WriteString("**Refined:**\n")
		fmt.Fprintf(&sb, "```\n%s\n```\n\n", excerpt(r.Segments[0].Refined))
		sb.WriteString("---\n\n")
	}

	_, err = io.WriteString(w, sb.String())
	return err
}

func delta(before, after int) string {
	change := after - before
	pct := 0.0
	if before > 0 {
		pct = float64(change) / float64(before) * 100
	}
	return fmt.Sprintf("%+d (%+.1f%%)", change, pct)
}

func excerpt(s string) string {
	if util.CountChars(s) <= excerptChars {
		return s
	}
	return util.Head(s, excerptChars) + "..."
}
