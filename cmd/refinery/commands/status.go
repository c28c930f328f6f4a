// ABOUTME: CLI commands for project status, unit listings and the model catalog
// ABOUTME: Read-only views printed as tables or JSON
package commands

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/harper/refinery/internal/models"
)

// NewStatusCmd creates status command
func NewStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status <project-id>",
		Short: "Show refinement progress of a project",
		Long: `Show whether a project is idle, processing or completed.

Lists record counts by status and any interrupted refinements that
'refinery resume' can continue.`,
		Args: cobra.ExactArgs(1),
		RunE: runStatus,
	}
}

func runStatus(cmd *cobra.Command, args []string) error {
	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.Close()

	ctx := cmd.Context()
	st, err := a.svc.ProjectStatus(ctx, args[0])
	if err != nil {
		return err
	}
	interrupted, err := a.svc.Interrupted(ctx, args[0])
	if err != nil {
		return err
	}

	if jsonOutput() {
		return printJSON(cmd, map[string]interface{}{
			"status":      st,
			"interrupted": interrupted,
		})
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "%s %s\n", headerStyle.Render("Project "+st.ProjectID+":"), st.State)
	fmt.Fprintf(out, "Units refined: %d/%d\n", st.RefinedUnits, st.TotalUnits)
	if st.State == models.ProjectProcessing {
		fmt.Fprintf(out, "In progress: unit %d, segment %d\n", st.CurrentUnit, st.CurrentSegment)
	}
	for _, s := range []models.RefinementStatus{models.StatusCompleted, models.StatusFailed} {
		if n := st.Counts[s]; n > 0 {
			fmt.Fprintf(out, "Records %s: %d\n", s, n)
		}
	}
	if len(interrupted) > 0 {
		fmt.Fprintf(out, "\n%s\n", failureStyle.Render("Interrupted:"))
		for _, rec := range interrupted {
			fmt.Fprintf(out, "  unit %d (%s) at %s, resume with: refinery resume %s\n",
				rec.UnitNumber, rec.UnitID, rec.Status, rec.UnitID)
		}
	}
	return nil
}

// NewUnitsCmd creates units command
func NewUnitsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "units <project-id>",
		Short: "List a project's units",
		Args:  cobra.ExactArgs(1),
		RunE:  runUnits,
	}
}

func runUnits(cmd *cobra.Command, args []string) error {
	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.Close()

	units, err := a.svc.ListUnits(cmd.Context(), args[0])
	if err != nil {
		return err
	}
	if jsonOutput() {
		return printJSON(cmd, units)
	}
	if len(units) == 0 {
		if !quiet {
			fmt.Fprintf(cmd.OutOrStdout(), "No units found\n")
		}
		return nil
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "NO\tTITLE\tCHARS\tREFINED\tMODEL\tUNIT ID\n")
	fmt.Fprintf(w, "--\t-----\t-----\t-------\t-----\t-------\n")
	for _, u := range units {
		refined := "-"
		if u.IsRefined && u.RefinedAt != nil {
			refined = formatTime(*u.RefinedAt)
		}
		model := u.RefinementModel
		if model == "" {
			model = "-"
		}
		fmt.Fprintf(w, "%d\t%s\t%d\t%s\t%s\t%s\n",
			u.Number, truncate(u.Title, 30), u.WordCount, refined, model, u.UnitID)
	}
	_ = w.Flush()

	if !quiet {
		fmt.Fprintf(cmd.OutOrStdout(), "\nTotal: %d unit(s)\n", len(units))
	}
	return nil
}

// NewModelsCmd creates models command
func NewModelsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "models",
		Short: "List available models",
		Args:  cobra.NoArgs,
		RunE:  runModels,
	}
}

func runModels(cmd *cobra.Command, args []string) error {
	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.Close()

	catalog := a.svc.ListModels()
	if jsonOutput() {
		return printJSON(cmd, catalog)
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "KEY\tNAME\tMODEL ID\tDESCRIPTION\n")
	for _, m := range catalog.Models {
		key := m.Key
		if key == catalog.Default {
			key += " *"
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", key, m.Name, m.ID, truncate(m.Description, 50))
	}
	return w.Flush()
}
