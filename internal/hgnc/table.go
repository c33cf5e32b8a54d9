package hgnc

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/text/unicode/norm"
)

// Record is one approved gene of the HGNC export.
type Record struct {
	Symbol          string
	HGNCID          string
	EnsemblID       string
	EntrezID        string
	PreviousSymbols []string
}

// Table is an immutable symbol index over HGNC records.
type Table struct {
	records  []Record
	current  map[string]int
	previous map[string]int
}

// Column names read from the export. Everything else is ignored.
const (
	colSymbol     = "symbol"
	colHGNCID     = "hgnc_id"
	colEnsemblID  = "ensembl_gene_id"
	colEntrezID   = "entrez_id"
	colPrevSymbol = "prev_symbol"
)

// LoadTableFile opens path and loads it with LoadTable.
func LoadTableFile(path string) (*Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open hgnc table: %w", err)
	}
	defer f.Close()

	t, err := LoadTable(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return t, nil
}

// LoadTable parses a tab-separated HGNC export. The header must contain a
// "symbol" column; identifier columns that are absent stay empty.
func LoadTable(r io.Reader) (*Table, error) {
	cr := csv.NewReader(r)
	cr.Comma = '\t'
	cr.LazyQuotes = true
	cr.FieldsPerRecord = -1

	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return nil, errors.New("hgnc table is empty")
	}
	if err != nil {
		return nil, fmt.Errorf("read hgnc header: %w", err)
	}

	idx := make(map[string]int, len(header))
	for i, name := range header {
		idx[strings.TrimSpace(name)] = i
	}
	if _, ok := idx[colSymbol]; !ok {
		return nil, fmt.Errorf("hgnc table has no %q column", colSymbol)
	}

	field := func(row []string, name string) string {
		i, ok := idx[name]
		if !ok || i >= len(row) {
			return ""
		}
		return strings.TrimSpace(row[i])
	}

	t := &Table{
		current:  make(map[string]int),
		previous: make(map[string]int),
	}
	for {
		row, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read hgnc row: %w", err)
		}

		symbol := norm.NFC.String(field(row, colSymbol))
		if symbol == "" {
			continue
		}
		rec := Record{
			Symbol:          symbol,
			HGNCID:          field(row, colHGNCID),
			EnsemblID:       field(row, colEnsemblID),
			EntrezID:        field(row, colEntrezID),
			PreviousSymbols: splitSymbols(field(row, colPrevSymbol)),
		}

		t.add(rec)
	}

	return t, nil
}

// NewTable builds a Table from in-memory records, mainly for callers that
// already hold the mapping in another form.
func NewTable(records []Record) *Table {
	t := &Table{
		current:  make(map[string]int, len(records)),
		previous: make(map[string]int),
	}
	for _, rec := range records {
		rec.Symbol = norm.NFC.String(rec.Symbol)
		if rec.Symbol == "" {
			continue
		}
		prevs := make([]string, 0, len(rec.PreviousSymbols))
		for _, p := range rec.PreviousSymbols {
			prevs = append(prevs, norm.NFC.String(p))
		}
		rec.PreviousSymbols = prevs
		t.add(rec)
	}
	return t
}

// add indexes rec. A repeated approved symbol keeps the first row.
func (t *Table) add(rec Record) {
	if _, dup := t.current[rec.Symbol]; dup {
		return
	}
	t.records = append(t.records, rec)
	pos := len(t.records) - 1
	t.current[rec.Symbol] = pos
	for _, prev := range rec.PreviousSymbols {
		if _, taken := t.previous[prev]; !taken {
			t.previous[prev] = pos
		}
	}
}

// Len returns the number of approved symbols in the table.
func (t *Table) Len() int {
	return len(t.records)
}

// Lookup returns the record for symbol, falling back to previous symbols.
func (t *Table) Lookup(symbol string) (Record, bool) {
	symbol = norm.NFC.String(symbol)
	if pos, ok := t.current[symbol]; ok {
		return t.records[pos], true
	}
	if pos, ok := t.previous[symbol]; ok {
		return t.records[pos], true
	}
	return Record{}, false
}

// splitSymbols splits the pipe-separated prev_symbol cell.
func splitSymbols(cell string) []string {
	cell = strings.Trim(cell, `"`)
	if cell == "" {
		return nil
	}
	parts := strings.Split(cell, "|")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, norm.NFC.String(p))
		}
	}
	return out
}
