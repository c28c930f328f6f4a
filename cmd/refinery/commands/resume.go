// ABOUTME: CLI command to continue refinements left in flight
// ABOUTME: Resumes one unit, or every interrupted unit of a project
package commands

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/harper/refinery/internal/models"
)

var resumeProject string

// NewResumeCmd creates resume command
func NewResumeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "resume [unit-id]",
		Short: "Continue interrupted refinements",
		Long: `Continue a refinement that stopped before it completed.

Segments already refined are reused; generation restarts at the first segment
without output. With --project every interrupted unit of the project is resumed.

Examples:
  refinery resume 3f2a9c
  refinery resume --project novel`,
		Args: cobra.MaximumNArgs(1),
		RunE: runResume,
	}

	cmd.Flags().StringVarP(&resumeProject, "project", "p", "", "Resume every interrupted unit of this project")

	return cmd
}

func runResume(cmd *cobra.Command, args []string) error {
	if (len(args) == 1) == (resumeProject != "") {
		return errors.New("give either a unit ID or --project")
	}

	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.Close()

	ctx := cmd.Context()
	var unitIDs []string
	if len(args) == 1 {
		unitIDs = args
	} else {
		interrupted, err := a.svc.Interrupted(ctx, resumeProject)
		if err != nil {
			return err
		}
		for _, rec := range interrupted {
			unitIDs = append(unitIDs, rec.UnitID)
		}
		if len(unitIDs) == 0 {
			if !quiet {
				fmt.Fprintf(cmd.OutOrStdout(), "Nothing to resume\n")
			}
			return nil
		}
	}

	var results []*models.RefineResult
	var failed int
	for _, id := range unitIDs {
		result, err := a.svc.Resume(ctx, id)
		if err != nil {
			if len(unitIDs) == 1 {
				return err
			}
			failed++
			logger.Warn("resume failed", zap.String("unit_id", id), zap.Error(err))
			fmt.Fprintf(cmd.ErrOrStderr(), "Warning: unit %s: %v\n", id, err)
			continue
		}
		results = append(results, result)
		if !jsonOutput() {
			fmt.Fprintf(cmd.OutOrStdout(), "%s unit %d (version %d): %s characters\n",
				successStyle.Render("Resumed"), result.UnitNumber, result.Version,
				wordDelta(result.OriginalWordCount, result.RefinedWordCount))
		}
	}

	if jsonOutput() {
		return printJSON(cmd, results)
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d unit(s) could not be resumed", failed, len(unitIDs))
	}
	return nil
}
