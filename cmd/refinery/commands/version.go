// ABOUTME: Version command reporting the build and the storage schema it expects
// ABOUTME: Prints one line with --short, or a JSON object with --format json
package commands

import (
	"fmt"
	"runtime"

	"github.com/spf13/cobra"

	"github.com/harper/refinery/internal/storage/sqlite"
)

var versionInfo = VersionInfo{Version: "dev", Commit: "none", Date: "unknown"}

// VersionInfo is stamped into the binary at release time
type VersionInfo struct {
	Version string `json:"version"`
	Commit  string `json:"commit"`
	Date    string `json:"date"`
}

// SetVersion records the release stamp (called from main)
func SetVersion(version, commit, date string) {
	versionInfo = VersionInfo{Version: version, Commit: commit, Date: date}
}

type versionReport struct {
	VersionInfo
	GoVersion     string `json:"go_version"`
	SchemaVersion int    `json:"schema_version"`
}

// NewVersionCmd creates the version command
func NewVersionCmd() *cobra.Command {
	var short bool
	cmd := &cobra.Command{
		Use:   "version",
		Short: "Show the refinery build and database schema version",
		Long: `Report the refinery release, the commit it was built from, the Go toolchain,
and the database schema version this binary creates and reads.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			report := versionReport{
				VersionInfo:   versionInfo,
				GoVersion:     runtime.Version(),
				SchemaVersion: sqlite.SchemaVersion,
			}
			out := cmd.OutOrStdout()
			switch {
			case jsonOutput():
				return printJSON(cmd, report)
			case short:
				fmt.Fprintln(out, report.Version)
			default:
				fmt.Fprintf(out, "refinery %s (%s, built %s)\n", report.Version, report.Commit, report.Date)
				fmt.Fprintf(out, "go:     %s\n", report.GoVersion)
				fmt.Fprintf(out, "schema: v%d\n", report.SchemaVersion)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&short, "short", false, "Print only the version number")
	return cmd
}
