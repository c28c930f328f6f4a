// ABOUTME: CLI commands over refinement history: diff, rollback and review
// ABOUTME: All of them act on a unit's latest completed refinement
package commands

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/harper/refinery/internal/models"
)

var reviewComment string

// NewDiffCmd creates diff command
func NewDiffCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "diff <unit-id>",
		Short: "Show original and refined text segment by segment",
		Long: `Show the latest completed refinement of a unit.

Each of the three segments is printed as the original followed by its refined
version, with character counts.`,
		Args: cobra.ExactArgs(1),
		RunE: runDiff,
	}
}

func runDiff(cmd *cobra.Command, args []string) error {
	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.Close()

	diff, err := a.svc.Diff(cmd.Context(), args[0])
	if err != nil {
		return err
	}
	if jsonOutput() {
		return printJSON(cmd, diff)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "%s unit %d, version %d (%s)\n",
		headerStyle.Render("Refinement"), diff.UnitNumber, diff.Version, diff.Model)
	for _, seg := range diff.Segments {
		fmt.Fprintf(out, "\n%s\n", headerStyle.Render(fmt.Sprintf("Segment %d: %s characters", seg.Index,
			wordDelta(seg.OriginalWordCount, seg.RefinedWordCount))))
		fmt.Fprintf(out, "%s\n%s\n", dimStyle.Render("--- original"), seg.Original)
		fmt.Fprintf(out, "%s\n%s\n", dimStyle.Render("+++ refined"), seg.Refined)
	}
	fmt.Fprintf(out, "\nTotal: %s characters\n", wordDelta(diff.OriginalWordCount, diff.RefinedWordCount))
	return nil
}

// NewRollbackCmd creates rollback command
func NewRollbackCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "rollback <unit-id>",
		Short: "Restore a unit's original text",
		Long: `Restore the text a unit had before its latest refinement.

Refinement records are kept, so the refined versions stay available to diff
and export.`,
		Args: cobra.ExactArgs(1),
		RunE: runRollback,
	}
}

func runRollback(cmd *cobra.Command, args []string) error {
	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.Close()

	result, err := a.svc.Rollback(cmd.Context(), args[0])
	if err != nil {
		return err
	}
	if jsonOutput() {
		return printJSON(cmd, result)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Restored unit %d from refinement %s (%d characters)\n",
		result.UnitNumber, result.RefinementID, result.RestoredWordCount)
	return nil
}

// NewReviewCmd creates review command
func NewReviewCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "review <unit-id> <approved|rejected|pending>",
		Short: "Record a review of a unit's latest refinement",
		Long: `Mark the latest completed refinement of a unit approved, rejected or pending.

Reviews never change the unit's text; use rollback to undo a refinement.

Examples:
  refinery review 3f2a9c approved
  refinery review 3f2a9c rejected --comment "lost the dialect"`,
		Args: cobra.ExactArgs(2),
		RunE: runReview,
	}

	cmd.Flags().StringVarP(&reviewComment, "comment", "c", "", "Review comment")

	return cmd
}

func runReview(cmd *cobra.Command, args []string) error {
	status, err := models.ParseReviewStatus(strings.ToLower(args[1]))
	if err != nil {
		return err
	}

	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.Close()

	rec, err := a.svc.Review(cmd.Context(), args[0], status, reviewComment)
	if err != nil {
		return err
	}
	if jsonOutput() {
		return printJSON(cmd, map[string]interface{}{
			"unit_id":        rec.UnitID,
			"refinement_id":  rec.ID,
			"version":        rec.Version,
			"review_status":  rec.ReviewStatus.Label(),
			"review_comment": rec.ReviewComment,
		})
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Unit %d version %d marked %s\n", rec.UnitNumber, rec.Version, rec.ReviewStatus.Label())
	return nil
}

// NewReviewsCmd creates reviews command
func NewReviewsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "reviews <project-id>",
		Short: "Count reviews across a project",
		Args:  cobra.ExactArgs(1),
		RunE:  runReviews,
	}
}

func runReviews(cmd *cobra.Command, args []string) error {
	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.Close()

	summary, err := a.svc.ReviewSummary(cmd.Context(), args[0])
	if err != nil {
		return err
	}
	if jsonOutput() {
		return printJSON(cmd, summary)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%d refined unit(s): %s approved, %s rejected, %d pending\n",
		summary.Total,
		successStyle.Render(fmt.Sprint(summary.Approved)),
		failureStyle.Render(fmt.Sprint(summary.Rejected)),
		summary.Pending)
	return nil
}
