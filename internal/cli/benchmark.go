package cli

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/roach88/pheval-phen2gene/internal/batch"
	"github.com/roach88/pheval-phen2gene/internal/dispatch"
	"github.com/roach88/pheval-phen2gene/internal/postprocess"
	"github.com/roach88/pheval-phen2gene/internal/sink"
)

// Subdirectories of the benchmark output directory.
const (
	ToolInputCommandsDir = "tool_input_commands"
	RawResultsDir        = "raw_results"
)

// BenchmarkOptions holds flags for the benchmark command.
type BenchmarkOptions struct {
	*RootOptions
	Testdata       string
	Corpus         string
	PhenopacketDir string
	OutputDir      string
	DataDir        string
	HGNC           string
	Executable     string
}

// BenchmarkResult is the output of the benchmark command.
type BenchmarkResult struct {
	RunID       string              `json:"run_id,omitempty"`
	Prepare     PrepareResult       `json:"prepare"`
	Run         RunResult           `json:"run"`
	PostProcess postprocess.Summary `json:"post_process"`
	OutputDir   string              `json:"output_dir"`
}

func (r BenchmarkResult) String() string {
	return fmt.Sprintf("%s\n%s\nStandardized %d sample(s), %d gene(s), %d unresolved, into %s",
		r.Prepare, r.Run, r.PostProcess.Samples, r.PostProcess.Genes, r.PostProcess.Unresolved,
		filepath.Join(r.OutputDir, sink.GeneResultsDir))
}

// NewBenchmarkCommand creates the benchmark command.
func NewBenchmarkCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &BenchmarkOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "benchmark",
		Short: "Prepare, run and post-process one corpus",
		Long: `Run the whole Phen2Gene pipeline for one corpus:

  {output-dir}/tool_input_commands/   batch file
  {output-dir}/raw_results/           raw Phen2Gene tables
  {output-dir}/pheval_gene_results/   standardized PhEval gene results

Example:
  pheval-phen2gene benchmark -c config.yaml --testdata corpora/lirical \
    --output-dir out --data-dir /data/phen2gene --hgnc hgnc_complete_set.txt`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBenchmark(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Testdata, "testdata", "", "corpus directory")
	cmd.Flags().StringVar(&opts.Corpus, "corpus", "", "corpus name (defaults to the base name of --testdata)")
	cmd.Flags().StringVar(&opts.PhenopacketDir, "phenopacket-dir", "", "phenopacket directory (overrides discovery under --testdata)")
	cmd.Flags().StringVar(&opts.OutputDir, "output-dir", "", "benchmark output directory (required)")
	cmd.Flags().StringVar(&opts.DataDir, "data-dir", "", "Phen2Gene data directory")
	cmd.Flags().StringVar(&opts.HGNC, "hgnc", "", "HGNC complete set TSV (required)")
	cmd.Flags().StringVar(&opts.Executable, "executable", "", "Phen2Gene checkout (overrides the config)")
	_ = cmd.MarkFlagRequired("output-dir")
	_ = cmd.MarkFlagRequired("hgnc")
	cmd.MarkFlagsOneRequired("testdata", "phenopacket-dir")

	return cmd
}

func runBenchmark(opts *BenchmarkOptions, cmd *cobra.Command) (err error) {
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

	batchDir := filepath.Join(opts.OutputDir, ToolInputCommandsDir)
	rawDir := filepath.Join(opts.OutputDir, RawResultsDir)

	l, err := opts.openLedger(ctx, "benchmark", corpus, cfg, logger)
	if err != nil {
		return formatter.Fail("failed to open ledger", err)
	}
	defer func() { l.finish(err) }()

	b, err := prepareStage(cfg, logger, batch.Request{
		Corpus:         corpus,
		TestdataDir:    opts.Testdata,
		PhenopacketDir: opts.PhenopacketDir,
		ResultsDir:     rawDir,
		BatchDir:       batchDir,
		DataDir:        opts.DataDir,
		ExecutablePath: opts.Executable,
	})
	if err != nil {
		return formatter.Fail("failed to prepare batch", err)
	}

	report, err := dispatchStage(ctx, opts.RootOptions, cfg, logger, dispatch.Request{
		BatchDir:   batchDir,
		Prefix:     corpus,
		ResultsDir: rawDir,
		DataDir:    opts.DataDir,
	})
	if recErr := l.recordDispatch(ctx, corpus, report); recErr != nil {
		logger.Error("failed to record dispatch", "error", recErr)
	}
	if err != nil {
		return formatter.Fail("batch execution failed", err)
	}

	sum, err := postProcessStage(ctx, cfg, logger, opts.HGNC, rawDir, l.sinks(sink.TSV{Dir: opts.OutputDir}))
	if err != nil {
		return formatter.Fail("post-processing failed", err)
	}

	return formatter.Success(BenchmarkResult{
		RunID: l.RunID(),
		Prepare: PrepareResult{
			RunID:       l.RunID(),
			Corpus:      b.Corpus,
			BatchPath:   b.Path,
			Environment: string(b.Environment),
			Commands:    len(b.Commands),
			Digest:      batch.Digest(b.Commands),
		},
		Run:         newRunResult(l.RunID(), report),
		PostProcess: sum,
		OutputDir:   opts.OutputDir,
	})
}
