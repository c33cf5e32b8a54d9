// Package rank orders normalized gene results and assigns ranks.
//
// Two tie policies are supported. Dense ranking is the harness contract:
// tied scores share a rank and the next distinct score takes the previous
// rank plus one. Competition ranking lets the next distinct score resume
// at its position, so ranks skip after a tie.
//
//	scores   0.9  0.9  0.5  0.1
//	dense      1    1    2    3
//	compet.    1    1    3    4
package rank

import (
	"cmp"
	"fmt"
	"slices"

	"github.com/roach88/pheval-phen2gene/internal/result"
)

// SortOrder selects which end of the score range ranks first.
type SortOrder string

const (
	Ascending  SortOrder = "ascending"
	Descending SortOrder = "descending"
)

// ParseSortOrder validates a configured sort order.
func ParseSortOrder(s string) (SortOrder, error) {
	switch SortOrder(s) {
	case Ascending, Descending:
		return SortOrder(s), nil
	default:
		return "", fmt.Errorf("unknown sort order %q: must be %s or %s", s, Ascending, Descending)
	}
}

// TiePolicy selects how equal scores are ranked.
type TiePolicy string

const (
	Dense       TiePolicy = "dense"
	Competition TiePolicy = "competition"
)

// ParseTiePolicy validates a configured tie policy.
func ParseTiePolicy(s string) (TiePolicy, error) {
	switch TiePolicy(s) {
	case Dense, Competition:
		return TiePolicy(s), nil
	default:
		return "", fmt.Errorf("unknown tie policy %q: must be %s or %s", s, Dense, Competition)
	}
}

// RankedGeneResult is a normalized result with its 1-based rank.
type RankedGeneResult struct {
	result.NormalizedGeneResult
	Rank int `json:"rank"`
}

// Assemble sorts results by score in the given order (stable, so tied rows
// keep their input order) and assigns ranks under policy. The input slice
// is not modified. Empty input yields an empty, non-nil slice.
func Assemble(results []result.NormalizedGeneResult, order SortOrder, policy TiePolicy) []RankedGeneResult {
	sorted := slices.Clone(results)
	slices.SortStableFunc(sorted, func(a, b result.NormalizedGeneResult) int {
		if order == Ascending {
			return cmp.Compare(a.Score, b.Score)
		}
		return cmp.Compare(b.Score, a.Score)
	})

	ranked := make([]RankedGeneResult, len(sorted))
	rank := 0
	for i, res := range sorted {
		switch {
		case i == 0:
			rank = 1
		case res.Score == sorted[i-1].Score:
			// tie: keep previous rank
		case policy == Competition:
			rank = i + 1
		default:
			rank++
		}
		ranked[i] = RankedGeneResult{NormalizedGeneResult: res, Rank: rank}
	}
	return ranked
}
