package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/pheval-phen2gene/internal/postprocess"
	"github.com/roach88/pheval-phen2gene/internal/sink"
)

// PostProcessOptions holds flags for the post-process command.
type PostProcessOptions struct {
	*RootOptions
	ResultsDir string
	OutputDir  string
	HGNC       string
}

// PostProcessResult is the output of the post-process command.
type PostProcessResult struct {
	RunID     string `json:"run_id,omitempty"`
	OutputDir string `json:"output_dir"`
	postprocess.Summary
}

func (r PostProcessResult) String() string {
	return fmt.Sprintf("Standardized %d sample(s), %d gene(s), %d unresolved, into %s",
		r.Samples, r.Genes, r.Unresolved, sink.TSV{Dir: r.OutputDir}.Path("{sample}"))
}

// NewPostProcessCommand creates the post-process command.
func NewPostProcessCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &PostProcessOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "post-process",
		Short: "Convert raw Phen2Gene output into PhEval gene results",
		Long: `Read every raw Phen2Gene table (*.tsv) of --results-dir, resolve gene
symbols against the HGNC complete set, rank genes by score and write
{output-dir}/pheval_gene_results/{sample}-pheval_gene_result.tsv.

Example:
  pheval-phen2gene post-process -c config.yaml --results-dir out/raw_results \
    --output-dir out --hgnc hgnc_complete_set.txt`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPostProcess(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.ResultsDir, "results-dir", "", "directory of raw Phen2Gene output (required)")
	cmd.Flags().StringVar(&opts.OutputDir, "output-dir", "", "PhEval output directory (required)")
	cmd.Flags().StringVar(&opts.HGNC, "hgnc", "", "HGNC complete set TSV (required)")
	_ = cmd.MarkFlagRequired("results-dir")
	_ = cmd.MarkFlagRequired("output-dir")
	_ = cmd.MarkFlagRequired("hgnc")

	return cmd
}

func runPostProcess(opts *PostProcessOptions, cmd *cobra.Command) (err error) {
	formatter := opts.formatter(cmd)
	logger := opts.logger(cmd)
	ctx, stop := commandContext(cmd)
	defer stop()

	cfg, err := opts.loadConfig()
	if err != nil {
		return formatter.Fail("failed to load config", err)
	}

	l, err := opts.openLedger(ctx, "post-process", "", cfg, logger)
	if err != nil {
		return formatter.Fail("failed to open ledger", err)
	}
	defer func() { l.finish(err) }()

	sum, err := postProcessStage(ctx, cfg, logger, opts.HGNC, opts.ResultsDir, l.sinks(sink.TSV{Dir: opts.OutputDir}))
	if err != nil {
		return formatter.Fail("post-processing failed", err)
	}

	return formatter.Success(PostProcessResult{RunID: l.RunID(), OutputDir: opts.OutputDir, Summary: sum})
}
