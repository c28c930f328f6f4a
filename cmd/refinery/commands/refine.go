// ABOUTME: CLI commands to refine one unit or a range of units
// ABOUTME: Batch progress streams one line per unit and stops cleanly on interrupt
package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/harper/refinery/internal/models"
	"github.com/harper/refinery/internal/refine"
)

var (
	refineModel string
	batchStart  int
	batchEnd    int
)

// NewRefineCmd creates refine command
func NewRefineCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "refine <unit-id>",
		Short: "Refine one unit",
		Long: `Refine one unit through the three-segment pipeline.

The refined text becomes the unit's active content. The previous text is kept
on the refinement record, so rollback can restore it.

Examples:
  refinery refine 3f2a9c
  refinery refine 3f2a9c --model sonnet`,
		Args: cobra.ExactArgs(1),
		RunE: runRefine,
	}

	cmd.Flags().StringVarP(&refineModel, "model", "m", "", "Model key or identifier (default: project model)")

	return cmd
}

func runRefine(cmd *cobra.Command, args []string) error {
	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.Close()

	result, err := a.svc.RefineUnit(cmd.Context(), args[0], refine.Options{Model: refineModel})
	if err != nil {
		return err
	}

	if jsonOutput() {
		return printJSON(cmd, result)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s unit %d (version %d, %s): %s characters\n",
		successStyle.Render("Refined"), result.UnitNumber, result.Version, result.ModelUsed,
		wordDelta(result.OriginalWordCount, result.RefinedWordCount))
	return nil
}

// NewBatchCmd creates batch command
func NewBatchCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "batch <project-id>",
		Short: "Refine a range of units in order",
		Long: `Refine units start through end of a project, one at a time.

Each refined unit becomes the prior context of the next one. Failed units do not
stop the batch. Missing or too-short units are skipped. Ctrl-C lets the unit in
progress finish and starts no further units.

Examples:
  refinery batch novel --start 1 --end 20
  refinery batch novel --start 5 --end 5 --model opus`,
		Args: cobra.ExactArgs(1),
		RunE: runBatch,
	}

	cmd.Flags().IntVar(&batchStart, "start", 1, "First unit number")
	cmd.Flags().IntVar(&batchEnd, "end", 0, "Last unit number (inclusive)")
	cmd.Flags().StringVarP(&refineModel, "model", "m", "", "Model key or identifier (default: project model)")
	_ = cmd.MarkFlagRequired("end")

	return cmd
}

func runBatch(cmd *cobra.Command, args []string) error {
	if err := validatePositiveInt(batchStart, "start"); err != nil {
		return err
	}
	if err := validatePositiveInt(batchEnd, "end"); err != nil {
		return err
	}

	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.Close()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	req := refine.BatchRequest{ProjectID: args[0], Start: batchStart, End: batchEnd, Model: refineModel}
	// Units run detached from the signal so an interrupt never cuts a unit short
	events, err := a.svc.RefineBatch(context.WithoutCancel(ctx), req)
	if err != nil {
		return err
	}

	var (
		summary   models.BatchSummary
		collected []models.BatchEvent
	)
	out := cmd.OutOrStdout()
	for ev := range events {
		summary.Add(ev)
		if jsonOutput() {
			collected = append(collected, ev)
		} else {
			printEvent(cmd, ev)
		}
		if ctx.Err() != nil {
			fmt.Fprintf(cmd.ErrOrStderr(), "Warning: interrupted, stopping after unit %d\n", ev.UnitNumber)
			break
		}
	}

	if jsonOutput() {
		return printJSON(cmd, map[string]interface{}{
			"project_id": req.ProjectID,
			"events":     collected,
			"summary":    summary,
		})
	}
	fmt.Fprintf(out, "\n%s %d completed, %d failed, %d skipped of %d\n",
		headerStyle.Render("Batch:"), summary.Completed, summary.Failed, summary.Skipped, summary.Total)
	return nil
}

func printEvent(cmd *cobra.Command, ev models.BatchEvent) {
	detail := ev.Reason
	switch ev.Status {
	case models.BatchCompleted:
		if ev.Result != nil {
			detail = wordDelta(ev.Result.OriginalWordCount, ev.Result.RefinedWordCount) + " characters"
		}
	case models.BatchFailed:
		detail = ev.Error
	}
	fmt.Fprintf(cmd.OutOrStdout(), "unit %4d  %s %s\n", ev.UnitNumber, statusBadge(ev.Status), dimStyle.Render(truncate(detail, 100)))
}
