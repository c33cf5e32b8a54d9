package rank

import (
	"fmt"
	"slices"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"

	"github.com/roach88/pheval-phen2gene/internal/result"
)

// toResults builds results from small integer buckets so ties are common.
func toResults(buckets []int) []result.NormalizedGeneResult {
	out := make([]result.NormalizedGeneResult, len(buckets))
	for i, b := range buckets {
		out[i] = gene(fmt.Sprintf("G%03d", i), float64(b)/10)
	}
	return out
}

func better(order SortOrder, a, b float64) bool {
	if order == Ascending {
		return a < b
	}
	return a > b
}

func rankProperties(t *testing.T, order SortOrder) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)
	buckets := gen.SliceOf(gen.IntRange(0, 8))

	properties.Property("best score ranks first", prop.ForAll(
		func(xs []int) bool {
			in := toResults(xs)
			ranked := Assemble(in, order, Dense)
			if len(in) == 0 {
				return len(ranked) == 0
			}
			for _, r := range in {
				if better(order, r.Score, ranked[0].Score) {
					return false
				}
			}
			return ranked[0].Rank == 1
		},
		buckets,
	))

	properties.Property("dense ranks are contiguous and ties share a rank", prop.ForAll(
		func(xs []int) bool {
			ranked := Assemble(toResults(xs), order, Dense)
			for i := 1; i < len(ranked); i++ {
				prev, cur := ranked[i-1], ranked[i]
				if better(order, cur.Score, prev.Score) {
					return false
				}
				if cur.Score == prev.Score && cur.Rank != prev.Rank {
					return false
				}
				if cur.Score != prev.Score && cur.Rank != prev.Rank+1 {
					return false
				}
			}
			return true
		},
		buckets,
	))

	properties.Property("competition rank counts strictly better scores", prop.ForAll(
		func(xs []int) bool {
			in := toResults(xs)
			for _, r := range Assemble(in, order, Competition) {
				ahead := 0
				for _, other := range in {
					if better(order, other.Score, r.Score) {
						ahead++
					}
				}
				if r.Rank != ahead+1 {
					return false
				}
			}
			return true
		},
		buckets,
	))

	properties.Property("ranks do not depend on input order", prop.ForAll(
		func(xs []int) bool {
			in := toResults(xs)
			reversed := slices.Clone(in)
			slices.Reverse(reversed)
			a := ranksBySymbol(Assemble(in, order, Dense))
			b := ranksBySymbol(Assemble(reversed, order, Dense))
			for sym, r := range a {
				if b[sym] != r {
					return false
				}
			}
			return len(a) == len(b)
		},
		buckets,
	))

	properties.TestingRun(t)
}

func TestAssembleProperties_Descending(t *testing.T) {
	rankProperties(t, Descending)
}

func TestAssembleProperties_Ascending(t *testing.T) {
	rankProperties(t, Ascending)
}
