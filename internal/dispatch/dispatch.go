package dispatch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/roach88/pheval-phen2gene/internal/batch"
	"github.com/roach88/pheval-phen2gene/internal/config"
)

// Request identifies the batch to dispatch and its directories.
type Request struct {
	BatchDir string
	// Prefix selects the batch file, usually the corpus name.
	Prefix string
	// ResultsDir receives raw tool output (mounted in docker mode).
	ResultsDir string
	// DataDir is the Phen2Gene data directory (mounted in docker mode).
	DataDir string
}

// CommandResult is the outcome of one executed command.
type CommandResult struct {
	Index       int           `json:"index"`
	Command     string        `json:"command"`
	ExitCode    int           `json:"exit_code"`
	ContainerID string        `json:"container_id,omitempty"`
	Duration    time.Duration `json:"duration"`
}

// Report summarizes one dispatch. It is returned alongside errors too, with
// the commands that ran before the failure.
type Report struct {
	Prefix      string             `json:"prefix"`
	BatchPath   string             `json:"batch_path"`
	BatchDigest string             `json:"batch_digest"`
	Environment config.Environment `json:"environment"`
	FinalState  State              `json:"final_state"`
	Commands    []CommandResult    `json:"commands"`
}

// Job is a located batch ready to run.
type Job struct {
	BatchPath  string
	Commands   []string
	ResultsDir string
	DataDir    string
	// Transition records a state change; index is the command index or -1.
	Transition func(state State, index int)
}

func (j Job) transition(state State, index int) {
	if j.Transition != nil {
		j.Transition(state, index)
	}
}

// Runner executes a located batch.
type Runner interface {
	Run(ctx context.Context, job Job) ([]CommandResult, error)
}

// Options configures a Dispatcher.
type Options struct {
	// Docker is required for the docker environment. A nil value makes New
	// connect to the daemon from the environment.
	Docker ContainerAPI
	Logger *slog.Logger
	// OnLine receives tool output lines as they are produced.
	OnLine LineFunc
}

// Dispatcher runs batches with the runner of the configured environment.
type Dispatcher struct {
	cfg    *config.Config
	runner Runner
	logger *slog.Logger
}

// New selects the runner for cfg.Run.Environment.
func New(cfg *config.Config, opts Options) (*Dispatcher, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	onLine := opts.OnLine
	if onLine == nil {
		onLine = func(stream Stream, line string) {
			logger.Debug("tool output", "stream", stream, "line", line)
		}
	}

	d := &Dispatcher{cfg: cfg, logger: logger}
	switch cfg.Run.Environment {
	case config.EnvironmentLocal:
		d.runner = &LocalRunner{
			CondaEnvironment: cfg.Run.CondaEnvironment,
			Logger:           logger,
			OnLine:           onLine,
		}
	case config.EnvironmentDocker:
		api := opts.Docker
		if api == nil {
			cli, err := NewDockerClient()
			if err != nil {
				return nil, err
			}
			api = cli
		}
		d.runner = &DockerRunner{
			API:          api,
			Image:        cfg.Docker.Image,
			Pull:         cfg.Docker.Pull,
			ResultsMount: cfg.Docker.ResultsMount,
			DataMount:    cfg.Docker.DataMount,
			Logger:       logger,
			OnLine:       onLine,
		}
	default:
		return nil, fmt.Errorf("%w: unknown environment %q", config.ErrInvalidConfig, cfg.Run.Environment)
	}
	return d, nil
}

// Dispatch locates the batch for req.Prefix and runs every command in order.
// The first failing command stops the batch with a *ToolExecutionFailedError.
func (d *Dispatcher) Dispatch(ctx context.Context, req Request) (*Report, error) {
	report := &Report{
		Prefix:      req.Prefix,
		Environment: d.cfg.Run.Environment,
		FinalState:  StateIdle,
	}
	logger := d.logger.With("prefix", req.Prefix, "environment", report.Environment)

	path, err := batch.Locate(req.BatchDir, req.Prefix)
	if err != nil {
		report.FinalState = StateFailed
		return report, err
	}
	commands, err := batch.Read(path)
	if err != nil {
		report.FinalState = StateFailed
		return report, err
	}
	report.BatchPath = path
	report.BatchDigest = batch.Digest(commands)

	if timeout := d.cfg.Run.CommandTimeout; timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	job := Job{
		BatchPath:  path,
		Commands:   commands,
		ResultsDir: req.ResultsDir,
		DataDir:    req.DataDir,
		Transition: func(state State, index int) {
			attrs := []any{"from", report.FinalState, "to", state}
			if index >= 0 {
				attrs = append(attrs, "command", index+1)
			}
			logger.Debug("dispatch state", attrs...)
			report.FinalState = state
		},
	}

	logger.Info("dispatching batch", "batch", path, "commands", len(commands))
	start := time.Now()
	results, err := d.runner.Run(ctx, job)
	report.Commands = results
	if err != nil {
		if !report.FinalState.Terminal() {
			job.transition(StateFailed, -1)
		}
		if ctxErr := ctx.Err(); ctxErr != nil && !errors.Is(err, ctxErr) {
			err = fmt.Errorf("%w: %w", ctxErr, err)
		}
		logger.Error("batch failed", "error", err, "duration", time.Since(start))
		return report, err
	}
	if !report.FinalState.Terminal() {
		job.transition(StateDone, -1)
	}
	logger.Info("batch complete", "commands", len(results), "duration", time.Since(start))
	return report, nil
}
