package result

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"iter"
	"log/slog"
	"math"
	"os"
	"strconv"
	"strings"

	"golang.org/x/text/unicode/norm"
)

// Required column names of a Phen2Gene output table.
const (
	ColumnGene  = "Gene"
	ColumnScore = "Score"
)

// UnresolvedPolicy decides what happens to a symbol without an identifier.
type UnresolvedPolicy string

const (
	// PolicyKeep emits the row with an empty identifier and logs a warning.
	PolicyKeep UnresolvedPolicy = "keep"
	// PolicyAbort fails the whole table on the first unresolved symbol.
	PolicyAbort UnresolvedPolicy = "abort"
)

// ParseUnresolvedPolicy validates a configured policy name.
func ParseUnresolvedPolicy(s string) (UnresolvedPolicy, error) {
	switch UnresolvedPolicy(s) {
	case PolicyKeep, PolicyAbort:
		return UnresolvedPolicy(s), nil
	default:
		return "", fmt.Errorf("unknown unresolved identifier policy %q: must be %s or %s", s, PolicyKeep, PolicyAbort)
	}
}

// IdentifierResolver maps a gene symbol onto a stable identifier.
type IdentifierResolver interface {
	Resolve(symbol string) (string, error)
}

// Extractor turns tool output tables into NormalizedGeneResult values.
type Extractor struct {
	Resolver IdentifierResolver
	Policy   UnresolvedPolicy
	Logger   *slog.Logger
}

// NewExtractor returns an Extractor using the keep policy and the default logger.
func NewExtractor(resolver IdentifierResolver) *Extractor {
	return &Extractor{Resolver: resolver, Policy: PolicyKeep}
}

func (e *Extractor) logger() *slog.Logger {
	if e.Logger != nil {
		return e.Logger
	}
	return slog.Default()
}

// ExtractFile reads the whole table at path. On any error the returned
// slice is nil; callers never see a partial result set.
func (e *Extractor) ExtractFile(path string) ([]NormalizedGeneResult, error) {
	results := []NormalizedGeneResult{}
	for res, err := range e.Rows(path) {
		if err != nil {
			return nil, err
		}
		results = append(results, res)
	}
	return results, nil
}

// Rows lazily yields one NormalizedGeneResult per data row of the table at
// path. Iteration stops after the first error, which is yielded once.
func (e *Extractor) Rows(path string) iter.Seq2[NormalizedGeneResult, error] {
	return func(yield func(NormalizedGeneResult, error) bool) {
		f, err := os.Open(path)
		if err != nil {
			yield(NormalizedGeneResult{}, fmt.Errorf("open result table: %w", err))
			return
		}
		defer f.Close()

		for row, err := range readRows(f, path) {
			if err != nil {
				yield(NormalizedGeneResult{}, err)
				return
			}
			res, err := e.normalize(row)
			if err != nil {
				yield(NormalizedGeneResult{}, fmt.Errorf("%s: %w", path, err))
				return
			}
			if !yield(res, nil) {
				return
			}
		}
	}
}

func (e *Extractor) normalize(row RawRow) (NormalizedGeneResult, error) {
	res := NormalizedGeneResult{
		GeneSymbol: row.GeneSymbol,
		Score:      RoundScore(row.Score),
	}
	if e.Resolver == nil {
		return res, nil
	}

	id, err := e.Resolver.Resolve(row.GeneSymbol)
	if err != nil {
		if e.Policy == PolicyAbort {
			return NormalizedGeneResult{}, err
		}
		e.logger().Warn("gene identifier not resolved, keeping empty identifier",
			"symbol", row.GeneSymbol, "error", err)
		return res, nil
	}
	res.GeneIdentifier = id
	return res, nil
}

// readRows parses a tab-separated table into RawRow values.
func readRows(r io.Reader, name string) iter.Seq2[RawRow, error] {
	return func(yield func(RawRow, error) bool) {
		cr := csv.NewReader(r)
		cr.Comma = '\t'
		cr.LazyQuotes = true
		cr.FieldsPerRecord = -1
		cr.ReuseRecord = true

		header, err := cr.Read()
		if errors.Is(err, io.EOF) {
			return
		}
		if err != nil {
			yield(RawRow{}, fmt.Errorf("%s: read header: %w", name, err))
			return
		}

		geneIdx, scoreIdx := -1, -1
		for i, col := range header {
			switch strings.TrimSpace(col) {
			case ColumnGene:
				geneIdx = i
			case ColumnScore:
				scoreIdx = i
			}
		}
		if geneIdx < 0 || scoreIdx < 0 {
			yield(RawRow{}, fmt.Errorf("%s: %w: need %q and %q, have %v",
				name, ErrMissingColumn, ColumnGene, ColumnScore, header))
			return
		}
		width := max(geneIdx, scoreIdx) + 1

		for {
			rec, err := cr.Read()
			if errors.Is(err, io.EOF) {
				return
			}
			if err != nil {
				yield(RawRow{}, fmt.Errorf("%s: read row: %w", name, err))
				return
			}
			line, _ := cr.FieldPos(0)
			if len(rec) == 1 && strings.TrimSpace(rec[0]) == "" {
				continue
			}
			if len(rec) < width {
				yield(RawRow{}, &MalformedRowError{
					File:   name,
					Line:   line,
					Value:  strings.Join(rec, "\t"),
					Reason: fmt.Sprintf("expected at least %d columns, got %d", width, len(rec)),
				})
				return
			}

			symbol := norm.NFC.String(strings.TrimSpace(rec[geneIdx]))
			if symbol == "" {
				yield(RawRow{}, &MalformedRowError{File: name, Line: line, Reason: "empty gene symbol"})
				return
			}

			raw := strings.TrimSpace(rec[scoreIdx])
			score, err := strconv.ParseFloat(raw, 64)
			if err != nil || math.IsNaN(score) || math.IsInf(score, 0) {
				yield(RawRow{}, &MalformedRowError{
					File:   name,
					Line:   line,
					Value:  raw,
					Reason: "score is not a finite number",
				})
				return
			}

			if !yield(RawRow{GeneSymbol: symbol, Score: score}, nil) {
				return
			}
		}
	}
}
