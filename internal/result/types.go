// Package result extracts normalized gene results from Phen2Gene output.
package result

import "strconv"

// RawRow is one data line of a tool output table before normalization.
type RawRow struct {
	GeneSymbol string
	Score      float64
}

// NormalizedGeneResult is a gene with its resolved identifier and rounded
// score. Values are never mutated after extraction.
type NormalizedGeneResult struct {
	GeneSymbol     string  `json:"gene_symbol"`
	GeneIdentifier string  `json:"gene_identifier"`
	Score          float64 `json:"score"`
}

// scorePrecision is the number of decimals kept from tool scores.
const scorePrecision = 4

// RoundScore rounds a tool score to four decimal places. The exact binary
// value is rounded, so 2.67645 (stored just below the half) becomes 2.6764.
func RoundScore(score float64) float64 {
	rounded, err := strconv.ParseFloat(strconv.FormatFloat(score, 'f', scorePrecision, 64), 64)
	if err != nil {
		return score
	}
	return rounded
}
