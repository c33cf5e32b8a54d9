package store

import (
	"context"
	"fmt"
	"time"

	"github.com/roach88/pheval-phen2gene/internal/rank"
	"github.com/roach88/pheval-phen2gene/internal/sink"
)

// timeLayout keeps sub-second precision so runs started in the same second
// still order correctly.
const timeLayout = time.RFC3339Nano

// BeginRun inserts run with status running and the current time.
func (s *Store) BeginRun(ctx context.Context, run Run) error {
	if run.ID == "" {
		return fmt.Errorf("begin run: empty id")
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO runs
		(id, command, corpus, environment, tool_version, status, started_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`,
		run.ID,
		run.Command,
		run.Corpus,
		run.Environment,
		run.ToolVersion,
		string(RunRunning),
		s.now().UTC().Format(timeLayout),
	)
	if err != nil {
		return fmt.Errorf("begin run: %w", err)
	}
	return nil
}

// FinishRun marks a run succeeded, or failed with runErr's message.
func (s *Store) FinishRun(ctx context.Context, runID string, runErr error) error {
	status, msg := RunSucceeded, ""
	if runErr != nil {
		status, msg = RunFailed, runErr.Error()
	}

	res, err := s.db.ExecContext(ctx, `
		UPDATE runs SET status = ?, error = ?, finished_at = ?
		WHERE id = ?
	`, string(status), msg, s.now().UTC().Format(timeLayout), runID)
	if err != nil {
		return fmt.Errorf("finish run: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("finish run: unknown run %q", runID)
	}
	return nil
}

// RecordBatch stores a batch. Recording the same digest twice in a run is a
// no-op.
func (s *Store) RecordBatch(ctx context.Context, b BatchRecord) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO batches
		(run_id, digest, corpus, path, environment, commands)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(run_id, digest) DO NOTHING
	`, b.RunID, b.Digest, b.Corpus, b.Path, b.Environment, b.Commands)
	if err != nil {
		return fmt.Errorf("record batch: %w", err)
	}
	return nil
}

// RecordExecution stores the outcome of one command.
func (s *Store) RecordExecution(ctx context.Context, e Execution) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO executions
		(run_id, batch_digest, idx, command, exit_code, container_id, duration_ms)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(run_id, batch_digest, idx) DO UPDATE SET
			command = excluded.command,
			exit_code = excluded.exit_code,
			container_id = excluded.container_id,
			duration_ms = excluded.duration_ms
	`, e.RunID, e.BatchDigest, e.Index, e.Command, e.ExitCode, e.ContainerID, e.Duration.Milliseconds())
	if err != nil {
		return fmt.Errorf("record execution: %w", err)
	}
	return nil
}

// WriteGeneResults replaces the ranked results of one sample in a run.
// The delete and inserts share one transaction.
func (s *Store) WriteGeneResults(ctx context.Context, runID, sample string, results []rank.RankedGeneResult) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("write gene results: begin transaction: %w", err)
	}
	defer tx.Rollback() // No-op if committed

	if _, err := tx.ExecContext(ctx, `
		DELETE FROM gene_results WHERE run_id = ? AND sample = ?
	`, runID, sample); err != nil {
		return fmt.Errorf("write gene results: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO gene_results
		(run_id, sample, position, rank, score, gene_symbol, gene_identifier)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("write gene results: %w", err)
	}
	defer stmt.Close()

	for i, r := range results {
		if _, err := stmt.ExecContext(ctx, runID, sample, i, r.Rank, r.Score, r.GeneSymbol, r.GeneIdentifier); err != nil {
			return fmt.Errorf("write gene results: %s row %d: %w", sample, i, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("write gene results: commit: %w", err)
	}
	return nil
}

// ResultSink returns a sink that writes into the gene results of runID.
func (s *Store) ResultSink(runID string) sink.Sink {
	return runSink{store: s, runID: runID}
}

type runSink struct {
	store *Store
	runID string
}

func (r runSink) Write(ctx context.Context, sample string, results []rank.RankedGeneResult) error {
	return r.store.WriteGeneResults(ctx, r.runID, sample, results)
}
