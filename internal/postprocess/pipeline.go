// Package postprocess turns raw Phen2Gene output tables into ranked PhEval
// gene results.
package postprocess

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/roach88/pheval-phen2gene/internal/config"
	"github.com/roach88/pheval-phen2gene/internal/hgnc"
	"github.com/roach88/pheval-phen2gene/internal/rank"
	"github.com/roach88/pheval-phen2gene/internal/result"
	"github.com/roach88/pheval-phen2gene/internal/sink"
)

// Summary counts what a pipeline run produced.
type Summary struct {
	Samples    int `json:"samples"`
	Genes      int `json:"genes"`
	Unresolved int `json:"unresolved"`
}

// Pipeline extracts, ranks and writes every raw result table of a directory.
type Pipeline struct {
	Extractor *result.Extractor
	SortOrder rank.SortOrder
	TiePolicy rank.TiePolicy
	Sinks     []sink.Sink
	Logger    *slog.Logger
}

// New builds a pipeline from the post_process section of cfg, resolving
// identifiers against table.
func New(cfg *config.Config, table *hgnc.Table, sinks []sink.Sink, logger *slog.Logger) (*Pipeline, error) {
	pp := cfg.PostProcess
	order, err := rank.ParseSortOrder(pp.SortOrder)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", config.ErrInvalidConfig, err)
	}
	ties, err := rank.ParseTiePolicy(pp.TiePolicy)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", config.ErrInvalidConfig, err)
	}
	policy, err := result.ParseUnresolvedPolicy(pp.UnresolvedIdentifiers)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", config.ErrInvalidConfig, err)
	}
	scheme, err := hgnc.ParseScheme(pp.IdentifierScheme)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", config.ErrInvalidConfig, err)
	}
	resolver, err := hgnc.NewResolver(table, scheme)
	if err != nil {
		return nil, err
	}

	if logger == nil {
		logger = slog.Default()
	}
	return &Pipeline{
		Extractor: &result.Extractor{Resolver: resolver, Policy: policy, Logger: logger},
		SortOrder: order,
		TiePolicy: ties,
		Sinks:     sinks,
		Logger:    logger,
	}, nil
}

// Run processes the *.tsv files of resultsDir in name order. The sample id
// is the file stem. The first failing file stops the run.
func (p *Pipeline) Run(ctx context.Context, resultsDir string) (Summary, error) {
	logger := p.Logger
	if logger == nil {
		logger = slog.Default()
	}

	files, err := ResultFiles(resultsDir)
	if err != nil {
		return Summary{}, err
	}

	var sum Summary
	for _, path := range files {
		if err := ctx.Err(); err != nil {
			return sum, err
		}
		sample := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))

		normalized, err := p.Extractor.ExtractFile(path)
		if err != nil {
			return sum, fmt.Errorf("sample %s: %w", sample, err)
		}
		ranked := rank.Assemble(normalized, p.SortOrder, p.TiePolicy)

		for _, s := range p.Sinks {
			if err := s.Write(ctx, sample, ranked); err != nil {
				return sum, fmt.Errorf("sample %s: %w", sample, err)
			}
		}

		unresolved := 0
		if p.Extractor.Resolver != nil {
			for _, r := range normalized {
				if r.GeneIdentifier == "" {
					unresolved++
				}
			}
		}
		sum.Samples++
		sum.Genes += len(ranked)
		sum.Unresolved += unresolved
		logger.Debug("sample standardized", "sample", sample, "genes", len(ranked), "unresolved", unresolved)
	}

	logger.Info("post-processing complete",
		"samples", sum.Samples,
		"genes", sum.Genes,
		"unresolved", sum.Unresolved)
	return sum, nil
}

// ResultFiles lists the regular *.tsv files of dir sorted by name.
func ResultFiles(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("list raw results: %w", err)
	}
	var files []string
	for _, e := range entries {
		if e.Type().IsRegular() && filepath.Ext(e.Name()) == ".tsv" {
			files = append(files, filepath.Join(dir, e.Name()))
		}
	}
	return files, nil
}
