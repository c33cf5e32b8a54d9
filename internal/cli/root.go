package cli

import (
	"fmt"
	"slices"

	"github.com/spf13/cobra"

	"github.com/roach88/pheval-phen2gene/internal/dispatch"
	"github.com/roach88/pheval-phen2gene/internal/runid"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	Verbose bool
	Format  string // "json" | "text"
	Config  string
	EnvFile string
	Ledger  string

	// Docker overrides the container API (for testing).
	// If nil, the docker environment connects to the daemon from DOCKER_HOST.
	Docker dispatch.ContainerAPI

	// RunIDs overrides run id generation (for testing).
	// If nil, defaults to UUIDv7Generator.
	RunIDs runid.Generator

	// Environ overrides the process environment used for config overrides
	// (for testing). If nil, os.Environ is used.
	Environ []string
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// NewRootCommand creates the root command for the pheval-phen2gene CLI.
func NewRootCommand() *cobra.Command {
	return newRootCommand(&RootOptions{})
}

func newRootCommand(opts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "pheval-phen2gene",
		Short: "Run Phen2Gene as a PhEval benchmark tool",
		Long: `Prepare, execute and standardize Phen2Gene runs for PhEval.

Phenopackets of a corpus are turned into a batch of Phen2Gene invocations,
the batch is executed locally or in docker, and the raw Phen2Gene output is
converted into ranked PhEval gene result files.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			// Validate format flag
			if !isValidFormat(opts.Format) {
				return NewExitError(ExitCommandError,
					fmt.Sprintf("invalid format %q: must be one of %v", opts.Format, ValidFormats))
			}
			return nil
		},
	}

	// Global flags
	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")
	cmd.PersistentFlags().StringVarP(&opts.Config, "config", "c", "", "path to the YAML run configuration (required)")
	cmd.PersistentFlags().StringVar(&opts.EnvFile, "env-file", "", "dotenv file with PHEN2GENE_* overrides")
	cmd.PersistentFlags().StringVar(&opts.Ledger, "ledger", "", "path to a SQLite run ledger (optional)")
	_ = cmd.MarkPersistentFlagRequired("config")

	// Add subcommands
	cmd.AddCommand(NewPrepareCommand(opts))
	cmd.AddCommand(NewRunCommand(opts))
	cmd.AddCommand(NewPostProcessCommand(opts))
	cmd.AddCommand(NewBenchmarkCommand(opts))

	return cmd
}

// isValidFormat checks if the format is one of the allowed values.
func isValidFormat(format string) bool {
	return slices.Contains(ValidFormats, format)
}
