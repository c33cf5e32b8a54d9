package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/roach88/pheval-phen2gene/internal/batch"
	"github.com/roach88/pheval-phen2gene/internal/config"
	"github.com/roach88/pheval-phen2gene/internal/dispatch"
	"github.com/roach88/pheval-phen2gene/internal/hgnc"
	"github.com/roach88/pheval-phen2gene/internal/postprocess"
	"github.com/roach88/pheval-phen2gene/internal/sink"
)

// commandContext returns the command context cancelled on SIGINT/SIGTERM.
func commandContext(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	// Use command's context if available (for testing), otherwise create one
	parent := cmd.Context()
	if parent == nil {
		parent = context.Background()
	}
	return signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
}

// corpusName is the batch prefix of a corpus: an explicit name, else the
// base name of the testdata directory.
func corpusName(explicit, testdata string) string {
	if explicit != "" {
		return explicit
	}
	if testdata == "" {
		return ""
	}
	return filepath.Base(filepath.Clean(testdata))
}

func prepareStage(cfg *config.Config, logger *slog.Logger, req batch.Request) (*batch.Batch, error) {
	p := batch.NewPreparer(cfg)
	p.Logger = logger
	return p.Prepare(req)
}

func dispatchStage(ctx context.Context, opts *RootOptions, cfg *config.Config, logger *slog.Logger, req dispatch.Request) (*dispatch.Report, error) {
	d, err := dispatch.New(cfg, dispatch.Options{
		Docker: opts.Docker,
		Logger: logger,
		OnLine: func(stream dispatch.Stream, line string) {
			logger.Info("phen2gene", "stream", stream, "line", line)
		},
	})
	if err != nil {
		return nil, err
	}
	return d.Dispatch(ctx, req)
}

func postProcessStage(ctx context.Context, cfg *config.Config, logger *slog.Logger, hgncPath, rawDir string, sinks []sink.Sink) (postprocess.Summary, error) {
	table, err := hgnc.LoadTableFile(hgncPath)
	if err != nil {
		return postprocess.Summary{}, fmt.Errorf("load HGNC table: %w", err)
	}
	logger.Debug("HGNC table loaded", "path", hgncPath, "symbols", table.Len())

	pipeline, err := postprocess.New(cfg, table, sinks, logger)
	if err != nil {
		return postprocess.Summary{}, err
	}
	return pipeline.Run(ctx, rawDir)
}
