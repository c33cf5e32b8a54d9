package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/pheval-phen2gene/internal/batch"
)

// PrepareOptions holds flags for the prepare command.
type PrepareOptions struct {
	*RootOptions
	Testdata       string
	Corpus         string
	PhenopacketDir string
	BatchDir       string
	ResultsDir     string
	DataDir        string
	Executable     string
}

// PrepareResult is the output of the prepare command.
type PrepareResult struct {
	RunID       string `json:"run_id,omitempty"`
	Corpus      string `json:"corpus"`
	BatchPath   string `json:"batch_path"`
	Environment string `json:"environment"`
	Commands    int    `json:"commands"`
	Digest      string `json:"digest"`
}

func (r PrepareResult) String() string {
	return fmt.Sprintf("Prepared %d %s command(s) for corpus %s in %s", r.Commands, r.Environment, r.Corpus, r.BatchPath)
}

// NewPrepareCommand creates the prepare command.
func NewPrepareCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &PrepareOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "prepare",
		Short: "Write the Phen2Gene batch file of a corpus",
		Long: `Write one Phen2Gene invocation per phenopacket of a corpus to
{batch-dir}/{corpus}-phen2gene-batch.txt.

The phenopacket directory is --phenopacket-dir, or the first subdirectory
of --testdata whose name contains "phenopacket".

Example:
  pheval-phen2gene prepare -c config.yaml --testdata corpora/lirical \
    --batch-dir out/tool_input_commands --results-dir out/raw_results --data-dir /data/phen2gene`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPrepare(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Testdata, "testdata", "", "corpus directory")
	cmd.Flags().StringVar(&opts.Corpus, "corpus", "", "corpus name (defaults to the base name of --testdata)")
	cmd.Flags().StringVar(&opts.PhenopacketDir, "phenopacket-dir", "", "phenopacket directory (overrides discovery under --testdata)")
	cmd.Flags().StringVar(&opts.BatchDir, "batch-dir", "", "directory for batch files (required)")
	cmd.Flags().StringVar(&opts.ResultsDir, "results-dir", "", "directory for raw Phen2Gene output")
	cmd.Flags().StringVar(&opts.DataDir, "data-dir", "", "Phen2Gene data directory")
	cmd.Flags().StringVar(&opts.Executable, "executable", "", "Phen2Gene checkout (overrides the config)")
	_ = cmd.MarkFlagRequired("batch-dir")
	cmd.MarkFlagsOneRequired("testdata", "phenopacket-dir")

	return cmd
}

func runPrepare(opts *PrepareOptions, cmd *cobra.Command) (err error) {
	formatter := opts.formatter(cmd)
	logger := opts.logger(cmd)
	ctx, stop := commandContext(cmd)
	defer stop()

	cfg, err := opts.loadConfig()
	if err != nil {
		return formatter.Fail("failed to load config", err)
	}

	corpus := corpusName(opts.Corpus, opts.Testdata)
	if corpus == "" {
		return formatter.Fail("missing corpus", NewExitError(ExitCommandError, "--corpus is required with --phenopacket-dir"))
	}

	l, err := opts.openLedger(ctx, "prepare", corpus, cfg, logger)
	if err != nil {
		return formatter.Fail("failed to open ledger", err)
	}
	defer func() { l.finish(err) }()

	b, err := prepareStage(cfg, logger, batch.Request{
		Corpus:         corpus,
		TestdataDir:    opts.Testdata,
		PhenopacketDir: opts.PhenopacketDir,
		ResultsDir:     opts.ResultsDir,
		BatchDir:       opts.BatchDir,
		DataDir:        opts.DataDir,
		ExecutablePath: opts.Executable,
	})
	if err != nil {
		return formatter.Fail("failed to prepare batch", err)
	}
	if err := l.recordBatch(ctx, b.Corpus, b.Path, b.Environment, b.Commands); err != nil {
		return formatter.Fail("failed to record batch", err)
	}

	logger.Debug("batch written", "path", b.Path, "digest", batch.Digest(b.Commands))
	return formatter.Success(PrepareResult{
		RunID:       l.RunID(),
		Corpus:      b.Corpus,
		BatchPath:   b.Path,
		Environment: string(b.Environment),
		Commands:    len(b.Commands),
		Digest:      batch.Digest(b.Commands),
	})
}
