package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/roach88/pheval-phen2gene/internal/rank"
)

// ErrNotFound is returned when a requested row does not exist.
var ErrNotFound = errors.New("not found")

// ReadRun returns the run with id.
func (s *Store) ReadRun(ctx context.Context, id string) (Run, error) {
	var (
		run             Run
		status, started string
		finished        sql.NullString
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT id, command, corpus, environment, tool_version, status, error, started_at, finished_at
		FROM runs
		WHERE id = ?
	`, id).Scan(&run.ID, &run.Command, &run.Corpus, &run.Environment, &run.ToolVersion, &status, &run.Error, &started, &finished)
	if errors.Is(err, sql.ErrNoRows) {
		return Run{}, fmt.Errorf("run %q: %w", id, ErrNotFound)
	}
	if err != nil {
		return Run{}, fmt.Errorf("read run: %w", err)
	}

	run.Status = RunStatus(status)
	if run.StartedAt, err = time.Parse(timeLayout, started); err != nil {
		return Run{}, fmt.Errorf("read run: started_at: %w", err)
	}
	if finished.Valid {
		if run.FinishedAt, err = time.Parse(timeLayout, finished.String); err != nil {
			return Run{}, fmt.Errorf("read run: finished_at: %w", err)
		}
	}
	return run, nil
}

// ReadBatches returns the batches of a run ordered by corpus.
//
// Returns empty slice (not nil) if the run recorded no batches.
func (s *Store) ReadBatches(ctx context.Context, runID string) ([]BatchRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT run_id, digest, corpus, path, environment, commands
		FROM batches
		WHERE run_id = ?
		ORDER BY corpus ASC, digest COLLATE BINARY ASC
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("query batches: %w", err)
	}
	defer rows.Close()

	batches := []BatchRecord{}
	for rows.Next() {
		var b BatchRecord
		if err := rows.Scan(&b.RunID, &b.Digest, &b.Corpus, &b.Path, &b.Environment, &b.Commands); err != nil {
			return nil, fmt.Errorf("scan batch: %w", err)
		}
		batches = append(batches, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate batches: %w", err)
	}
	return batches, nil
}

// ReadExecutions returns the executions of a run ordered by batch and index.
//
// Returns empty slice (not nil) if nothing was executed.
func (s *Store) ReadExecutions(ctx context.Context, runID string) ([]Execution, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT run_id, batch_digest, idx, command, exit_code, container_id, duration_ms
		FROM executions
		WHERE run_id = ?
		ORDER BY batch_digest COLLATE BINARY ASC, idx ASC
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("query executions: %w", err)
	}
	defer rows.Close()

	executions := []Execution{}
	for rows.Next() {
		var (
			e  Execution
			ms int64
		)
		if err := rows.Scan(&e.RunID, &e.BatchDigest, &e.Index, &e.Command, &e.ExitCode, &e.ContainerID, &ms); err != nil {
			return nil, fmt.Errorf("scan execution: %w", err)
		}
		e.Duration = time.Duration(ms) * time.Millisecond
		executions = append(executions, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate executions: %w", err)
	}
	return executions, nil
}

// ReadGeneResults returns the ranked results of one sample in written order.
//
// Returns empty slice (not nil) if the sample has no results.
func (s *Store) ReadGeneResults(ctx context.Context, runID, sample string) ([]rank.RankedGeneResult, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT rank, score, gene_symbol, gene_identifier
		FROM gene_results
		WHERE run_id = ? AND sample = ?
		ORDER BY position ASC
	`, runID, sample)
	if err != nil {
		return nil, fmt.Errorf("query gene results: %w", err)
	}
	defer rows.Close()

	results := []rank.RankedGeneResult{}
	for rows.Next() {
		var r rank.RankedGeneResult
		if err := rows.Scan(&r.Rank, &r.Score, &r.GeneSymbol, &r.GeneIdentifier); err != nil {
			return nil, fmt.Errorf("scan gene result: %w", err)
		}
		results = append(results, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate gene results: %w", err)
	}
	return results, nil
}

// ReadSamples returns the samples with results in a run, sorted by name.
func (s *Store) ReadSamples(ctx context.Context, runID string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT DISTINCT sample
		FROM gene_results
		WHERE run_id = ?
		ORDER BY sample COLLATE BINARY ASC
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("query samples: %w", err)
	}
	defer rows.Close()

	samples := []string{}
	for rows.Next() {
		var sample string
		if err := rows.Scan(&sample); err != nil {
			return nil, fmt.Errorf("scan sample: %w", err)
		}
		samples = append(samples, sample)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate samples: %w", err)
	}
	return samples, nil
}
