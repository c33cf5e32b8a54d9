package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/roach88/pheval-phen2gene/internal/batch"
	"github.com/roach88/pheval-phen2gene/internal/config"
	"github.com/roach88/pheval-phen2gene/internal/dispatch"
	"github.com/roach88/pheval-phen2gene/internal/sink"
	"github.com/roach88/pheval-phen2gene/internal/store"
)

var errLedger = errors.New("ledger")

// ledger records one command invocation when --ledger is set. A nil
// *ledger is valid and records nothing.
type ledger struct {
	st     *store.Store
	runID  string
	logger *slog.Logger
}

// openLedger opens --ledger and begins a run. Returns nil when no ledger
// was requested.
func (o *RootOptions) openLedger(ctx context.Context, command, corpus string, cfg *config.Config, logger *slog.Logger) (*ledger, error) {
	if o.Ledger == "" {
		return nil, nil
	}
	st, err := store.Open(o.Ledger)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", errLedger, err)
	}

	l := &ledger{st: st, runID: o.runIDs().Generate(), logger: logger}
	err = st.BeginRun(ctx, store.Run{
		ID:          l.runID,
		Command:     command,
		Corpus:      corpus,
		Environment: string(cfg.Run.Environment),
		ToolVersion: cfg.ToolVersion,
	})
	if err != nil {
		st.Close()
		return nil, fmt.Errorf("%w: %w", errLedger, err)
	}
	logger.Info("ledger run started", "run_id", l.runID, "ledger", o.Ledger)
	return l, nil
}

// RunID returns the ledger run id, or "" without a ledger.
func (l *ledger) RunID() string {
	if l == nil {
		return ""
	}
	return l.runID
}

func (l *ledger) recordBatch(ctx context.Context, corpus, path string, env config.Environment, commands []string) error {
	if l == nil {
		return nil
	}
	err := l.st.RecordBatch(ctx, store.BatchRecord{
		RunID:       l.runID,
		Digest:      batch.Digest(commands),
		Corpus:      corpus,
		Path:        path,
		Environment: string(env),
		Commands:    len(commands),
	})
	if err != nil {
		return fmt.Errorf("%w: %w", errLedger, err)
	}
	return nil
}

func (l *ledger) recordDispatch(ctx context.Context, corpus string, report *dispatch.Report) error {
	if l == nil || report == nil || report.BatchPath == "" {
		return nil
	}
	commands, err := batch.Read(report.BatchPath)
	if err != nil {
		return err
	}
	if err := l.recordBatch(ctx, corpus, report.BatchPath, report.Environment, commands); err != nil {
		return err
	}
	for _, res := range report.Commands {
		err := l.st.RecordExecution(ctx, store.Execution{
			RunID:       l.runID,
			BatchDigest: report.BatchDigest,
			Index:       res.Index,
			Command:     res.Command,
			ExitCode:    res.ExitCode,
			ContainerID: res.ContainerID,
			Duration:    res.Duration,
		})
		if err != nil {
			return fmt.Errorf("%w: %w", errLedger, err)
		}
	}
	return nil
}

// sinks appends the ledger result sink when a ledger is open.
func (l *ledger) sinks(base ...sink.Sink) []sink.Sink {
	if l == nil {
		return base
	}
	return append(base, l.st.ResultSink(l.runID))
}

// finish closes the run with runErr and closes the store. Ledger errors are
// logged; they never mask runErr.
func (l *ledger) finish(runErr error) {
	if l == nil {
		return
	}
	// Finish even when the command context was cancelled.
	if err := l.st.FinishRun(context.Background(), l.runID, runErr); err != nil {
		l.logger.Error("failed to finish ledger run", "run_id", l.runID, "error", err)
	}
	if err := l.st.Close(); err != nil {
		l.logger.Error("error closing ledger", "error", err)
	}
}
