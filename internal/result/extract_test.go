package result

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mapResolver resolves symbols from a fixed map.
type mapResolver map[string]string

var errUnknown = errors.New("unknown symbol")

func (m mapResolver) Resolve(symbol string) (string, error) {
	if id, ok := m[symbol]; ok {
		return id, nil
	}
	return "", fmt.Errorf("%w: %s", errUnknown, symbol)
}

var testResolver = mapResolver{
	"BRCA1": "ENSG00000012048",
	"TP53":  "ENSG00000141510",
	"EGFR":  "ENSG00000146648",
}

func newTestExtractor(policy UnresolvedPolicy) *Extractor {
	return &Extractor{
		Resolver: testResolver,
		Policy:   policy,
		Logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
}

func writeTable(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "sample.tsv")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestExtractFile_TiedScores(t *testing.T) {
	got, err := newTestExtractor(PolicyKeep).ExtractFile("testdata/tied_scores.tsv")
	require.NoError(t, err)

	want := []NormalizedGeneResult{
		{GeneSymbol: "BRCA1", GeneIdentifier: "ENSG00000012048", Score: 0.9123},
		{GeneSymbol: "TP53", GeneIdentifier: "ENSG00000141510", Score: 0.9123},
		{GeneSymbol: "EGFR", GeneIdentifier: "ENSG00000146648", Score: 0.5},
	}
	assert.Equal(t, want, got)
}

func TestExtractFile_Idempotent(t *testing.T) {
	ex := newTestExtractor(PolicyKeep)
	first, err := ex.ExtractFile("testdata/tied_scores.tsv")
	require.NoError(t, err)
	second, err := ex.ExtractFile("testdata/tied_scores.tsv")
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestExtractFile_MalformedScore(t *testing.T) {
	got, err := newTestExtractor(PolicyKeep).ExtractFile("testdata/malformed_score.tsv")
	require.Error(t, err)
	assert.Nil(t, got, "no partial result set on failure")
	assert.True(t, errors.Is(err, ErrMalformedResultRow))

	var me *MalformedRowError
	require.True(t, errors.As(err, &me))
	assert.Equal(t, 2, me.Line)
	assert.Equal(t, "not-a-number", me.Value)
}

func TestExtractFile_MalformedAfterValidRows(t *testing.T) {
	path := writeTable(t, "Gene\tScore\nBRCA1\t0.9\nTP53\tNaN\n")
	got, err := newTestExtractor(PolicyKeep).ExtractFile(path)
	require.ErrorIs(t, err, ErrMalformedResultRow)
	assert.Nil(t, got)
}

func TestExtractFile_InfiniteScore(t *testing.T) {
	path := writeTable(t, "Gene\tScore\nBRCA1\t+Inf\n")
	_, err := newTestExtractor(PolicyKeep).ExtractFile(path)
	assert.ErrorIs(t, err, ErrMalformedResultRow)
}

func TestExtractFile_ShortRow(t *testing.T) {
	path := writeTable(t, "Rank\tGene\tID\tScore\n1\tBRCA1\n")
	_, err := newTestExtractor(PolicyKeep).ExtractFile(path)
	require.ErrorIs(t, err, ErrMalformedResultRow)
	assert.Contains(t, err.Error(), "expected at least 4 columns")
}

func TestExtractFile_ReorderedAndExtraColumns(t *testing.T) {
	path := writeTable(t, "Score\tStatus\tGene\tExtra\n0.12346\tSeedGene\tEGFR\tx\n")
	got, err := newTestExtractor(PolicyKeep).ExtractFile(path)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "EGFR", got[0].GeneSymbol)
	assert.Equal(t, 0.1235, got[0].Score)
}

func TestExtractFile_MissingColumn(t *testing.T) {
	path := writeTable(t, "Rank\tGene\tID\n1\tBRCA1\t672\n")
	_, err := newTestExtractor(PolicyKeep).ExtractFile(path)
	require.ErrorIs(t, err, ErrMissingColumn)
}

func TestExtractFile_EmptyTable(t *testing.T) {
	for name, content := range map[string]string{
		"header only": "Rank\tGene\tID\tScore\tStatus\n",
		"empty file":  "",
	} {
		t.Run(name, func(t *testing.T) {
			got, err := newTestExtractor(PolicyKeep).ExtractFile(writeTable(t, content))
			require.NoError(t, err)
			assert.NotNil(t, got)
			assert.Empty(t, got)
		})
	}
}

func TestExtractFile_UnresolvedKeep(t *testing.T) {
	path := writeTable(t, "Gene\tScore\nNOVEL1\t0.3\nTP53\t0.2\n")
	got, err := newTestExtractor(PolicyKeep).ExtractFile(path)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "", got[0].GeneIdentifier)
	assert.Equal(t, "ENSG00000141510", got[1].GeneIdentifier)
}

func TestExtractFile_UnresolvedAbort(t *testing.T) {
	path := writeTable(t, "Gene\tScore\nTP53\t0.2\nNOVEL1\t0.3\n")
	got, err := newTestExtractor(PolicyAbort).ExtractFile(path)
	require.ErrorIs(t, err, errUnknown)
	assert.Nil(t, got)
	assert.Contains(t, err.Error(), path)
}

func TestExtractFile_MissingFile(t *testing.T) {
	_, err := newTestExtractor(PolicyKeep).ExtractFile("testdata/does-not-exist.tsv")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "open result table")
}

func TestRows_StopsEarly(t *testing.T) {
	seen := 0
	for res, err := range newTestExtractor(PolicyKeep).Rows("testdata/tied_scores.tsv") {
		require.NoError(t, err)
		assert.Equal(t, "BRCA1", res.GeneSymbol)
		seen++
		break
	}
	assert.Equal(t, 1, seen)
}

func TestRoundScore(t *testing.T) {
	assert.Equal(t, 0.9123, RoundScore(0.9123456))
	assert.Equal(t, 0.5, RoundScore(0.5))
	assert.Equal(t, 0.1235, RoundScore(0.12346))
	assert.Equal(t, -0.0001, RoundScore(-0.00007))
	assert.Equal(t, 12.0, RoundScore(11.99999))

	// Half-way decimals round by their exact binary value.
	assert.Equal(t, 2.6764, RoundScore(2.67645))
	assert.Equal(t, 5.0, RoundScore(5.00005))
	assert.Equal(t, 0.0001, RoundScore(0.00015))
	assert.Equal(t, 1.0002, RoundScore(1.00015))
}

func TestParseUnresolvedPolicy(t *testing.T) {
	p, err := ParseUnresolvedPolicy("abort")
	require.NoError(t, err)
	assert.Equal(t, PolicyAbort, p)

	_, err = ParseUnresolvedPolicy("drop")
	assert.Error(t, err)
}
