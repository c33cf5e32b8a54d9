package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/pheval-phen2gene/internal/rank"
	"github.com/roach88/pheval-phen2gene/internal/result"
)

func fixedClock(ts ...time.Time) func() time.Time {
	i := 0
	return func() time.Time {
		t := ts[min(i, len(ts)-1)]
		i++
		return t
	}
}

func beginTestRun(t *testing.T, s *Store, id string) {
	t.Helper()
	require.NoError(t, s.BeginRun(context.Background(), Run{
		ID:          id,
		Command:     "benchmark",
		Corpus:      "lirical",
		Environment: "docker",
		ToolVersion: "1.2.3",
	}))
}

func TestRunLifecycle(t *testing.T) {
	s := createTestStore(t)
	start := time.Date(2026, 3, 1, 10, 0, 0, 123, time.UTC)
	end := start.Add(90 * time.Second)
	s.SetClock(fixedClock(start, end))
	ctx := context.Background()

	beginTestRun(t, s, "run-1")

	run, err := s.ReadRun(ctx, "run-1")
	require.NoError(t, err)
	assert.Equal(t, RunRunning, run.Status)
	assert.True(t, run.StartedAt.Equal(start))
	assert.True(t, run.FinishedAt.IsZero())

	require.NoError(t, s.FinishRun(ctx, "run-1", errors.New("tool execution failed")))

	run, err = s.ReadRun(ctx, "run-1")
	require.NoError(t, err)
	assert.Equal(t, RunFailed, run.Status)
	assert.Equal(t, "tool execution failed", run.Error)
	assert.True(t, run.FinishedAt.Equal(end))
	assert.Equal(t, "lirical", run.Corpus)
}

func TestFinishRun_Unknown(t *testing.T) {
	s := createTestStore(t)
	assert.Error(t, s.FinishRun(context.Background(), "missing", nil))
}

func TestReadRun_NotFound(t *testing.T) {
	s := createTestStore(t)
	_, err := s.ReadRun(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestBeginRun_Duplicate(t *testing.T) {
	s := createTestStore(t)
	beginTestRun(t, s, "run-1")
	assert.Error(t, s.BeginRun(context.Background(), Run{ID: "run-1"}))
}

func TestRecordBatchAndExecutions(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	beginTestRun(t, s, "run-1")

	b := BatchRecord{RunID: "run-1", Digest: "abc", Corpus: "lirical", Path: "/b/lirical-phen2gene-batch.txt", Environment: "docker", Commands: 2}
	require.NoError(t, s.RecordBatch(ctx, b))
	require.NoError(t, s.RecordBatch(ctx, b), "recording a batch twice is a no-op")

	batches, err := s.ReadBatches(ctx, "run-1")
	require.NoError(t, err)
	assert.Equal(t, []BatchRecord{b}, batches)

	second := Execution{RunID: "run-1", BatchDigest: "abc", Index: 1, Command: "-m HP:2", ExitCode: 3, Duration: 2 * time.Second}
	first := Execution{RunID: "run-1", BatchDigest: "abc", Index: 0, Command: "-m HP:1", ContainerID: "c01", Duration: 1500 * time.Millisecond}
	require.NoError(t, s.RecordExecution(ctx, second))
	require.NoError(t, s.RecordExecution(ctx, first))

	got, err := s.ReadExecutions(ctx, "run-1")
	require.NoError(t, err)
	assert.Equal(t, []Execution{first, second}, got)
}

func TestRecordExecution_RequiresRun(t *testing.T) {
	s := createTestStore(t)
	err := s.RecordExecution(context.Background(), Execution{RunID: "missing", BatchDigest: "abc"})
	assert.Error(t, err, "foreign keys are enforced")
}

func TestReadExecutions_Empty(t *testing.T) {
	s := createTestStore(t)
	got, err := s.ReadExecutions(context.Background(), "none")
	require.NoError(t, err)
	assert.NotNil(t, got)
	assert.Empty(t, got)
}

func TestGeneResults_RoundTrip(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	beginTestRun(t, s, "run-1")

	ranked := rank.Assemble([]result.NormalizedGeneResult{
		{GeneSymbol: "EGFR", GeneIdentifier: "ENSG00000146648", Score: 0.5},
		{GeneSymbol: "BRCA1", GeneIdentifier: "ENSG00000012048", Score: 0.9123},
		{GeneSymbol: "TP53", GeneIdentifier: "", Score: 0.9123},
	}, rank.Descending, rank.Dense)

	sink := s.ResultSink("run-1")
	require.NoError(t, sink.Write(ctx, "patient_1", ranked))
	require.NoError(t, sink.Write(ctx, "patient_0", ranked[:1]))

	got, err := s.ReadGeneResults(ctx, "run-1", "patient_1")
	require.NoError(t, err)
	assert.Equal(t, ranked, got)

	samples, err := s.ReadSamples(ctx, "run-1")
	require.NoError(t, err)
	assert.Equal(t, []string{"patient_0", "patient_1"}, samples)

	// Rewriting a sample replaces its rows.
	require.NoError(t, sink.Write(ctx, "patient_1", ranked[2:]))
	got, err = s.ReadGeneResults(ctx, "run-1", "patient_1")
	require.NoError(t, err)
	assert.Equal(t, ranked[2:], got)
}

func TestGeneResults_EmptySample(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	beginTestRun(t, s, "run-1")

	require.NoError(t, s.WriteGeneResults(ctx, "run-1", "empty", nil))
	got, err := s.ReadGeneResults(ctx, "run-1", "empty")
	require.NoError(t, err)
	assert.Empty(t, got)
}
