// ABOUTME: Root command, global flags and logger lifecycle for the CLI
// ABOUTME: Every subcommand shares --verbose, --quiet, --format and --db
package commands

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/harper/refinery/internal/logging"
)

var (
	verbose      bool
	quiet        bool
	outputFormat string
	dbPath       string

	logger = zap.NewNop()
)

const banner = `
██████  ███████ ███████ ██ ███    ██ ███████ ██████  ██    ██
██   ██ ██      ██      ██ ████   ██ ██      ██   ██  ██  ██
██████  █████   █████   ██ ██ ██  ██ █████   ██████    ████
██   ██ ██      ██      ██ ██  ██ ██ ██      ██   ██    ██
██   ██ ███████ ██      ██ ██   ████ ███████ ██   ██    ██
`

// NewRootCmd creates the root command with every subcommand attached
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "refinery",
		Short: "Refine novel chapters through a three-segment LLM pipeline",
		Long: banner + `
Refinery rewrites chapters of a novel project with a generative model.
Each chapter is split into three segments (40/40/20), refined in order with
the story context, merged, cleaned and stored as the chapter's active text.
Every run is versioned, so any chapter can be diffed, reviewed or rolled back.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			// Load .env file if it exists (for API keys)
			_ = godotenv.Load()

			l, err := logging.New(logging.Options{
				Level:   os.Getenv("REFINERY_LOG_LEVEL"),
				Verbose: verbose,
				Quiet:   quiet,
			})
			if err != nil {
				return err
			}
			logger = l

			switch outputFormat {
			case "auto", "text", "json":
				return nil
			default:
				return fmt.Errorf("--format must be auto, text or json, got %q", outputFormat)
			}
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			_ = logger.Sync()
		},
	}

	cmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Verbose logging")
	cmd.PersistentFlags().BoolVarP(&quiet, "quiet", "q", false, "Only print errors and results")
	cmd.PersistentFlags().StringVar(&outputFormat, "format", "auto", "Output format: auto, text or json")
	cmd.PersistentFlags().StringVar(&dbPath, "db", "", "Database path (default $XDG_DATA_HOME/refinery/refinery.db)")
	cmd.MarkFlagsMutuallyExclusive("verbose", "quiet")

	cmd.AddCommand(
		NewImportCmd(),
		NewRefineCmd(),
		NewBatchCmd(),
		NewDiffCmd(),
		NewRollbackCmd(),
		NewModelsCmd(),
		NewStatusCmd(),
		NewUnitsCmd(),
		NewReviewCmd(),
		NewReviewsCmd(),
		NewExportCmd(),
		NewResumeCmd(),
		NewMCPCmd(),
		NewVersionCmd(),
	)

	return cmd
}

// Execute runs the root command
func Execute() error {
	return NewRootCmd().Execute()
}

// jsonOutput reports whether results should be printed as JSON
func jsonOutput() bool {
	return outputFormat == "json"
}
