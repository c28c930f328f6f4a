// ABOUTME: CLI command to import a YAML project bundle
// ABOUTME: Loads project, roster, outlines and chapters into the database
package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/harper/refinery/internal/storage/sqlite"
)

// NewImportCmd creates import command
func NewImportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "import <bundle.yaml>",
		Short: "Import a project bundle",
		Long: `Import a project from a YAML bundle.

The bundle holds the project (title, genre, default model), its characters,
outlines and numbered chapters. Importing again updates existing entries.

Examples:
  refinery import novel.yaml
  refinery import novel.yaml --db ./novel.db`,
		Args: cobra.ExactArgs(1),
		RunE: runImport,
	}
	return cmd
}

func runImport(cmd *cobra.Command, args []string) error {
	bundle, err := sqlite.LoadBundle(args[0])
	if err != nil {
		return err
	}

	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.Close()

	stats, err := a.store.ImportBundle(cmd.Context(), bundle)
	if err != nil {
		return fmt.Errorf("importing bundle: %w", err)
	}

	if jsonOutput() {
		return printJSON(cmd, stats)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Imported project %s: %d unit(s), %d character(s), %d outline(s)\n",
		stats.ProjectID, stats.Units, stats.Characters, stats.Outlines)
	return nil
}
