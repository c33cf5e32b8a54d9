// Package sink persists ranked gene results.
package sink

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/roach88/pheval-phen2gene/internal/rank"
)

// Sink receives the ranked result set of one sample.
type Sink interface {
	Write(ctx context.Context, sample string, results []rank.RankedGeneResult) error
}

// GeneResultsDir is the subdirectory the TSV sink writes into.
const GeneResultsDir = "pheval_gene_results"

// TSV writes PhEval gene result files:
// {Dir}/pheval_gene_results/{sample}-pheval_gene_result.tsv
type TSV struct {
	Dir string
}

// Path returns the file the sink writes for sample.
func (s TSV) Path(sample string) string {
	return filepath.Join(s.Dir, GeneResultsDir, sample+"-pheval_gene_result.tsv")
}

func (s TSV) Write(ctx context.Context, sample string, results []rank.RankedGeneResult) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	path := s.Path(sample)
	if err := writeFileAtomic(path, func(w *bufio.Writer) error {
		return WriteTSV(w, results)
	}); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}

// writeFileAtomic writes through a temp file in the target directory and
// renames it over path, so readers see the old file or the complete new one.
func writeFileAtomic(path string, write func(*bufio.Writer) error) (err error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("create gene results dir: %w", err)
	}
	tmp, err := os.CreateTemp(dir, ".gene-result-*")
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			tmp.Close()
			os.Remove(tmp.Name())
		}
	}()

	w := bufio.NewWriter(tmp)
	if err := write(w); err != nil {
		return err
	}
	if err := w.Flush(); err != nil {
		return err
	}
	if err := tmp.Chmod(0644); err != nil {
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}

// WriteTSV encodes results as a tab-separated table with a header row.
func WriteTSV(w *bufio.Writer, results []rank.RankedGeneResult) error {
	if _, err := w.WriteString("rank\tscore\tgene_symbol\tgene_identifier\n"); err != nil {
		return err
	}
	for _, r := range results {
		line := strconv.Itoa(r.Rank) + "\t" +
			strconv.FormatFloat(r.Score, 'f', 4, 64) + "\t" +
			r.GeneSymbol + "\t" +
			r.GeneIdentifier + "\n"
		if _, err := w.WriteString(line); err != nil {
			return err
		}
	}
	return nil
}

// Multi fans a result set out to several sinks in order, stopping at the
// first error.
type Multi []Sink

func (m Multi) Write(ctx context.Context, sample string, results []rank.RankedGeneResult) error {
	for _, s := range m {
		if err := s.Write(ctx, sample, results); err != nil {
			return err
		}
	}
	return nil
}
