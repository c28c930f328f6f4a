// ABOUTME: CLI command to export a project's text or its refinement report
// ABOUTME: Writes txt, markdown, json or yaml, optionally zipped with the originals
package commands

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/harper/refinery/internal/export"
)

var (
	exportFormat string
	exportOutput string
	exportZip    bool
	exportReport bool
)

// NewExportCmd creates export command
func NewExportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "export <project-id>",
		Short: "Export a project's text",
		Long: `Export the active text of every unit of a project.

--zip bundles the export with the original text of every refined unit.
--report writes a Markdown report comparing original and refined units instead.

Examples:
  refinery export novel --as markdown -o novel.md
  refinery export novel --zip -o novel.zip
  refinery export novel --report`,
		Args: cobra.ExactArgs(1),
		RunE: runExport,
	}

	cmd.Flags().StringVar(&exportFormat, "as", "txt", "Export format: txt, markdown, json or yaml")
	cmd.Flags().StringVarP(&exportOutput, "output", "o", "", "Output file (default: stdout)")
	cmd.Flags().BoolVar(&exportZip, "zip", false, "Write a zip with the originals (requires --output)")
	cmd.Flags().BoolVar(&exportReport, "report", false, "Write the refinement diff report")

	return cmd
}

func runExport(cmd *cobra.Command, args []string) error {
	f, err := export.ParseFormat(exportFormat)
	if err != nil {
		return err
	}
	if exportZip && exportOutput == "" {
		return errors.New("--zip requires --output")
	}
	if exportZip && exportReport {
		return errors.New("--zip and --report cannot be combined")
	}

	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.Close()

	var w io.Writer = cmd.OutOrStdout()
	var file *os.File
	if exportOutput != "" {
		file, err = os.Create(exportOutput) // #nosec G304
		if err != nil {
			return fmt.Errorf("creating output file: %w", err)
		}
		defer func() { _ = file.Close() }()
		w = file
	}
	buf := bufio.NewWriter(w)

	ctx := cmd.Context()
	projectID := args[0]
	switch {
	case exportReport:
		err = a.exporter.DiffReport(ctx, buf, projectID)
	case exportZip:
		err = a.exporter.WriteZip(ctx, buf, projectID, f)
	default:
		err = a.exporter.Write(ctx, buf, projectID, f)
	}
	if err != nil {
		return err
	}
	if err := buf.Flush(); err != nil {
		return fmt.Errorf("writing export: %w", err)
	}

	if file != nil {
		if err := file.Close(); err != nil {
			return fmt.Errorf("closing output file: %w", err)
		}
		if !quiet {
			fmt.Fprintf(cmd.ErrOrStderr(), "Exported %s to %s\n", projectID, exportOutput)
		}
	}
	return nil
}
