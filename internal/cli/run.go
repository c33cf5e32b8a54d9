package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/pheval-phen2gene/internal/dispatch"
)

// RunOptions holds flags for the run command.
type RunOptions struct {
	*RootOptions
	Testdata   string
	Corpus     string
	BatchDir   string
	ResultsDir string
	DataDir    string
}

// RunResult is the output of the run command.
type RunResult struct {
	RunID       string                   `json:"run_id,omitempty"`
	Prefix      string                   `json:"prefix"`
	BatchPath   string                   `json:"batch_path"`
	Environment string                   `json:"environment"`
	FinalState  dispatch.State           `json:"final_state"`
	Commands    []dispatch.CommandResult `json:"commands"`
}

func (r RunResult) String() string {
	return fmt.Sprintf("Executed %d command(s) from %s (%s, %s)", len(r.Commands), r.BatchPath, r.Environment, r.FinalState)
}

func newRunResult(runID string, report *dispatch.Report) RunResult {
	return RunResult{
		RunID:       runID,
		Prefix:      report.Prefix,
		BatchPath:   report.BatchPath,
		Environment: string(report.Environment),
		FinalState:  report.FinalState,
		Commands:    report.Commands,
	}
}

// NewRunCommand creates the run command.
func NewRunCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RunOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Execute a prepared batch",
		Long: `Execute the batch file of a corpus with the configured environment.

In local mode the batch runs as one bash script, inside the configured
conda environment when it exists. In docker mode every line runs in its own
container with the results and data directories mounted. The first failing
command stops the batch.

Example:
  pheval-phen2gene run -c config.yaml --corpus lirical \
    --batch-dir out/tool_input_commands --results-dir out/raw_results --data-dir /data/phen2gene`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDispatch(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Testdata, "testdata", "", "corpus directory (its base name is the batch prefix)")
	cmd.Flags().StringVar(&opts.Corpus, "corpus", "", "batch prefix")
	cmd.Flags().StringVar(&opts.BatchDir, "batch-dir", "", "directory holding batch files (required)")
	cmd.Flags().StringVar(&opts.ResultsDir, "results-dir", "", "directory for raw Phen2Gene output")
	cmd.Flags().StringVar(&opts.DataDir, "data-dir", "", "Phen2Gene data directory")
	_ = cmd.MarkFlagRequired("batch-dir")
	cmd.MarkFlagsOneRequired("testdata", "corpus")

	return cmd
}

func runDispatch(opts *RunOptions, cmd *cobra.Command) (err error) {
	formatter := opts.formatter(cmd)
	logger := opts.logger(cmd)
	ctx, stop := commandContext(cmd)
	defer stop()

	cfg, err := opts.loadConfig()
	if err != nil {
		return formatter.Fail("failed to load config", err)
	}
	prefix := corpusName(opts.Corpus, opts.Testdata)

	l, err := opts.openLedger(ctx, "run", prefix, cfg, logger)
	if err != nil {
		return formatter.Fail("failed to open ledger", err)
	}
	defer func() { l.finish(err) }()

	report, err := dispatchStage(ctx, opts.RootOptions, cfg, logger, dispatch.Request{
		BatchDir:   opts.BatchDir,
		Prefix:     prefix,
		ResultsDir: opts.ResultsDir,
		DataDir:    opts.DataDir,
	})
	if recErr := l.recordDispatch(ctx, prefix, report); recErr != nil {
		logger.Error("failed to record dispatch", "error", recErr)
	}
	if err != nil {
		return formatter.Fail("batch execution failed", err)
	}

	return formatter.Success(newRunResult(l.RunID(), report))
}
