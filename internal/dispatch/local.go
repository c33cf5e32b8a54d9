package dispatch

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os/exec"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"
)

// waitDelay bounds how long Wait blocks on output pipes after the process
// was killed.
const waitDelay = 5 * time.Second

// LocalRunner runs a batch file as a single bash script.
type LocalRunner struct {
	// Bash is the shell binary. Defaults to "bash".
	Bash string
	// CondaEnvironment is activated through "conda run" when available.
	CondaEnvironment string
	// WorkDir is the working directory of the script. Defaults to the
	// current directory, which batch paths are relative to.
	WorkDir string
	Logger  *slog.Logger
	OnLine  LineFunc
	// LookPath resolves executables. Defaults to exec.LookPath.
	LookPath func(file string) (string, error)
}

// Run executes the batch with "bash -e" so the first failing line stops it.
func (r *LocalRunner) Run(ctx context.Context, job Job) ([]CommandResult, error) {
	logger := r.logger()

	prefix := r.activate(ctx)
	job.transition(StateEnvironmentActivated, -1)

	bash := r.Bash
	if bash == "" {
		bash = "bash"
	}
	argv := append(prefix, bash, "-e", job.BatchPath)
	res := CommandResult{Index: 0, Command: strings.Join(argv, " ")}

	job.transition(StateExecuting, -1)
	logger.Info("executing batch script", "command", res.Command, "lines", len(job.Commands))

	start := time.Now()
	code, err := r.execute(ctx, argv)
	res.ExitCode = code
	res.Duration = time.Since(start)
	if err != nil {
		job.transition(StateFailed, -1)
		if ctxErr := ctx.Err(); ctxErr != nil {
			return []CommandResult{res}, fmt.Errorf("batch script interrupted: %w", ctxErr)
		}
		return []CommandResult{res}, &ToolExecutionFailedError{Index: 0, Command: res.Command, ExitCode: code, Err: err}
	}
	if code != 0 {
		job.transition(StateFailed, -1)
		return []CommandResult{res}, &ToolExecutionFailedError{Index: 0, Command: res.Command, ExitCode: code}
	}

	logger.Info("batch script finished", "exit_code", code, "duration", res.Duration)
	job.transition(StateDone, -1)
	return []CommandResult{res}, nil
}

// activate returns the argv prefix that runs inside the conda environment,
// or nil when activation is not possible. Failure only logs a warning.
func (r *LocalRunner) activate(ctx context.Context) []string {
	logger := r.logger()
	if r.CondaEnvironment == "" {
		logger.Debug("no conda environment configured")
		return nil
	}

	lookPath := r.LookPath
	if lookPath == nil {
		lookPath = exec.LookPath
	}
	conda, err := lookPath("conda")
	if err != nil {
		logger.Warn("conda not found, running batch without environment activation",
			"environment", r.CondaEnvironment, "error", err)
		return nil
	}

	envs, err := condaEnvironments(ctx, conda)
	if err != nil {
		logger.Warn("cannot list conda environments, running batch without environment activation",
			"environment", r.CondaEnvironment, "error", err)
		return nil
	}
	if !slices.Contains(envs, r.CondaEnvironment) {
		logger.Warn("conda environment not found, running batch without environment activation",
			"environment", r.CondaEnvironment, "available", envs)
		return nil
	}

	logger.Debug("activating conda environment", "environment", r.CondaEnvironment, "conda", conda)
	return []string{conda, "run", "--no-capture-output", "-n", r.CondaEnvironment}
}

// condaEnvironments returns environment names from "conda env list --json".
func condaEnvironments(ctx context.Context, conda string) ([]string, error) {
	out, err := exec.CommandContext(ctx, conda, "env", "list", "--json").Output()
	if err != nil {
		return nil, err
	}
	var listing struct {
		Envs []string `json:"envs"`
	}
	if err := json.Unmarshal(out, &listing); err != nil {
		return nil, fmt.Errorf("parse conda env list: %w", err)
	}

	names := make([]string, 0, len(listing.Envs)+1)
	for i, path := range listing.Envs {
		// The first entry is the root prefix.
		if i == 0 {
			names = append(names, "base")
		}
		names = append(names, filepath.Base(path))
	}
	return names, nil
}

// execute runs argv, streaming both pipes, and returns the exit code. A
// non-nil error means the process could not be started or awaited.
func (r *LocalRunner) execute(ctx context.Context, argv []string) (int, error) {
	cmd := exec.CommandContext(ctx, argv[0], argv[1:]...)
	cmd.Dir = r.WorkDir
	cmd.WaitDelay = waitDelay
	killProcessGroup(cmd)

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return -1, err
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return -1, err
	}
	if err := cmd.Start(); err != nil {
		return -1, fmt.Errorf("start %s: %w", argv[0], err)
	}

	emit := serialize(r.onLine())
	var g errgroup.Group
	g.Go(func() error { return scanLines(stdout, Stdout, emit) })
	g.Go(func() error { return scanLines(stderr, Stderr, emit) })
	streamErr := g.Wait()

	waitErr := cmd.Wait()
	var exitErr *exec.ExitError
	switch {
	case waitErr == nil:
	case errors.As(waitErr, &exitErr):
		if ctx.Err() != nil {
			return exitErr.ExitCode(), ctx.Err()
		}
		return exitErr.ExitCode(), nil
	default:
		return -1, waitErr
	}
	if streamErr != nil {
		return 0, fmt.Errorf("read output: %w", streamErr)
	}
	return 0, nil
}

func scanLines(r io.Reader, stream Stream, emit LineFunc) error {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1<<20)
	for scanner.Scan() {
		emit(stream, scanner.Text())
	}
	// A killed process closes its pipes early.
	if err := scanner.Err(); err != nil && !errors.Is(err, io.ErrClosedPipe) && !errors.Is(err, fs.ErrClosed) {
		return err
	}
	return nil
}

func (r *LocalRunner) onLine() LineFunc {
	if r.OnLine != nil {
		return r.OnLine
	}
	logger := r.logger()
	return func(stream Stream, line string) {
		logger.Debug("tool output", "stream", stream, "line", line)
	}
}

func (r *LocalRunner) logger() *slog.Logger {
	if r.Logger != nil {
		return r.Logger
	}
	return slog.Default()
}
