package dispatch

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/filters"
	"github.com/docker/docker/api/types/image"
	"github.com/docker/docker/api/types/network"
	"github.com/docker/docker/client"
	"github.com/docker/docker/pkg/stdcopy"
	ocispec "github.com/opencontainers/image-spec/specs-go/v1"

	"github.com/roach88/pheval-phen2gene/internal/config"
)

// removeTimeout bounds container removal, which runs on a context detached
// from the dispatch so cancelled runs still clean up.
const removeTimeout = 30 * time.Second

// Container labels.
const (
	LabelBatch = "org.monarchinitiative.pheval.phen2gene.batch"
	LabelIndex = "org.monarchinitiative.pheval.phen2gene.index"
)

// ContainerAPI is the subset of the Docker Engine client used by DockerRunner.
type ContainerAPI interface {
	ImageList(ctx context.Context, options image.ListOptions) ([]image.Summary, error)
	ImagePull(ctx context.Context, ref string, options image.PullOptions) (io.ReadCloser, error)
	ContainerCreate(ctx context.Context, config *container.Config, hostConfig *container.HostConfig, networkingConfig *network.NetworkingConfig, platform *ocispec.Platform, containerName string) (container.CreateResponse, error)
	ContainerStart(ctx context.Context, containerID string, options container.StartOptions) error
	ContainerLogs(ctx context.Context, containerID string, options container.LogsOptions) (io.ReadCloser, error)
	ContainerWait(ctx context.Context, containerID string, condition container.WaitCondition) (<-chan container.WaitResponse, <-chan error)
	ContainerRemove(ctx context.Context, containerID string, options container.RemoveOptions) error
}

var _ ContainerAPI = (*client.Client)(nil)

// NewDockerClient connects to the daemon described by DOCKER_HOST and
// related environment variables.
func NewDockerClient() (*client.Client, error) {
	cli, err := client.NewClientWithOpts(client.FromEnv, client.WithAPIVersionNegotiation())
	if err != nil {
		return nil, fmt.Errorf("create docker client: %w", err)
	}
	return cli, nil
}

// VolumeMount exposes a host directory inside the container.
type VolumeMount struct {
	HostPath      string
	ContainerPath string
}

// Bind renders the mount in docker "-v" syntax.
func (m VolumeMount) Bind() string {
	return m.HostPath + ":" + m.ContainerPath
}

// DockerRunner runs every batch line in its own container.
type DockerRunner struct {
	API          ContainerAPI
	Image        string
	Pull         config.PullPolicy
	ResultsMount string
	DataMount    string
	Logger       *slog.Logger
	OnLine       LineFunc
}

// Mounts derives the results and data bind mounts for a job. The results
// directory is created when missing; the data directory must exist.
func (r *DockerRunner) Mounts(job Job) ([]VolumeMount, error) {
	if job.ResultsDir == "" || job.DataDir == "" {
		return nil, fmt.Errorf("docker runs need both a results and a data directory")
	}
	results, err := filepath.Abs(job.ResultsDir)
	if err != nil {
		return nil, fmt.Errorf("resolve results dir: %w", err)
	}
	if err := os.MkdirAll(results, 0755); err != nil {
		return nil, fmt.Errorf("create results dir: %w", err)
	}
	data, err := filepath.Abs(job.DataDir)
	if err != nil {
		return nil, fmt.Errorf("resolve data dir: %w", err)
	}
	if info, err := os.Stat(data); err != nil || !info.IsDir() {
		return nil, fmt.Errorf("data dir %s is not a directory", data)
	}
	return []VolumeMount{
		{HostPath: results, ContainerPath: r.ResultsMount},
		{HostPath: data, ContainerPath: r.DataMount},
	}, nil
}

// Run executes the commands in order and stops at the first non-zero exit.
func (r *DockerRunner) Run(ctx context.Context, job Job) ([]CommandResult, error) {
	logger := r.logger()
	job.transition(StateLocated, -1)

	mounts, err := r.Mounts(job)
	if err != nil {
		return nil, err
	}
	binds := make([]string, len(mounts))
	for i, m := range mounts {
		binds[i] = m.Bind()
	}
	job.transition(StateMounted, -1)

	if err := r.ensureImage(ctx); err != nil {
		return nil, err
	}

	results := make([]CommandResult, 0, len(job.Commands))
	for i, line := range job.Commands {
		if i > 0 {
			job.transition(StateNextCommand, i)
		}
		job.transition(StateRunning, i)

		res, err := r.runOne(ctx, job, i, line, binds)
		results = append(results, res)
		if err != nil {
			job.transition(StateFailed, i)
			return results, &ToolExecutionFailedError{Index: i, Command: line, ExitCode: res.ExitCode, Err: err}
		}
		if res.ExitCode != 0 {
			job.transition(StateFailed, i)
			return results, &ToolExecutionFailedError{Index: i, Command: line, ExitCode: res.ExitCode}
		}
		logger.Info("command finished",
			"command", i+1,
			"of", len(job.Commands),
			"container", shortID(res.ContainerID),
			"duration", res.Duration)
	}

	job.transition(StateDone, -1)
	return results, nil
}

// commandArgs splits a batch line into the container's argv. Batch lines
// hold HPO ids, a weight model, mount paths and a file stem, none of which
// need quoting, so quotes and escapes are rejected rather than interpreted.
func commandArgs(line string) ([]string, error) {
	if i := strings.IndexAny(line, "'\"\\"); i >= 0 {
		return nil, fmt.Errorf("batch line has unsupported shell quoting at column %d: %s", i+1, line)
	}
	argv := strings.Fields(line)
	if len(argv) == 0 {
		return nil, fmt.Errorf("empty batch line")
	}
	return argv, nil
}

func (r *DockerRunner) runOne(ctx context.Context, job Job, index int, line string, binds []string) (res CommandResult, err error) {
	res = CommandResult{Index: index, Command: line, ExitCode: -1}
	start := time.Now()
	defer func() { res.Duration = time.Since(start) }()

	argv, err := commandArgs(line)
	if err != nil {
		return res, err
	}
	created, err := r.API.ContainerCreate(ctx,
		&container.Config{
			Image: r.Image,
			Cmd:   argv,
			Labels: map[string]string{
				LabelBatch: filepath.Base(job.BatchPath),
				LabelIndex: strconv.Itoa(index),
			},
		},
		&container.HostConfig{Binds: binds},
		nil, nil, "")
	if err != nil {
		return res, fmt.Errorf("create container: %w", err)
	}
	res.ContainerID = created.ID
	for _, w := range created.Warnings {
		r.logger().Warn("container create warning", "container", shortID(created.ID), "warning", w)
	}
	defer r.remove(ctx, created.ID)

	if err := r.API.ContainerStart(ctx, created.ID, container.StartOptions{}); err != nil {
		return res, fmt.Errorf("start container: %w", err)
	}

	job.transition(StateStreaming, index)
	if err := r.stream(ctx, created.ID); err != nil {
		return res, err
	}

	code, err := r.wait(ctx, created.ID)
	if err != nil {
		return res, err
	}
	res.ExitCode = code
	return res, nil
}

// stream copies the demultiplexed container logs to OnLine until the log
// stream closes.
func (r *DockerRunner) stream(ctx context.Context, id string) error {
	logs, err := r.API.ContainerLogs(ctx, id, container.LogsOptions{
		ShowStdout: true,
		ShowStderr: true,
		Follow:     true,
	})
	if err != nil {
		return fmt.Errorf("attach logs: %w", err)
	}
	defer logs.Close()

	emit := r.onLine()
	stdout := newLineWriter(Stdout, emit)
	stderr := newLineWriter(Stderr, emit)
	_, err = stdcopy.StdCopy(stdout, stderr, logs)
	stdout.Flush()
	stderr.Flush()
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return fmt.Errorf("stream logs: %w", ctxErr)
		}
		return fmt.Errorf("stream logs: %w", err)
	}
	return nil
}

func (r *DockerRunner) wait(ctx context.Context, id string) (int, error) {
	statusCh, errCh := r.API.ContainerWait(ctx, id, container.WaitConditionNotRunning)
	select {
	case status := <-statusCh:
		if status.Error != nil && status.Error.Message != "" {
			return int(status.StatusCode), fmt.Errorf("wait container: %s", status.Error.Message)
		}
		return int(status.StatusCode), nil
	case err := <-errCh:
		return -1, fmt.Errorf("wait container: %w", err)
	case <-ctx.Done():
		return -1, fmt.Errorf("wait container: %w", ctx.Err())
	}
}

func (r *DockerRunner) remove(ctx context.Context, id string) {
	rmCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), removeTimeout)
	defer cancel()
	if err := r.API.ContainerRemove(rmCtx, id, container.RemoveOptions{Force: true}); err != nil {
		r.logger().Error("failed to remove container", "container", shortID(id), "error", err)
		return
	}
	r.logger().Debug("container removed", "container", shortID(id))
}

// ensureImage applies the pull policy once per dispatch.
func (r *DockerRunner) ensureImage(ctx context.Context) error {
	logger := r.logger()
	switch r.Pull {
	case config.PullNever:
		return nil
	case config.PullMissing, "":
		found, err := r.API.ImageList(ctx, image.ListOptions{
			Filters: filters.NewArgs(filters.Arg("reference", r.Image)),
		})
		if err != nil {
			return fmt.Errorf("inspect image %s: %w", r.Image, err)
		}
		if len(found) > 0 {
			logger.Debug("image present", "image", r.Image)
			return nil
		}
	}

	logger.Info("pulling image", "image", r.Image)
	progress, err := r.API.ImagePull(ctx, r.Image, image.PullOptions{})
	if err != nil {
		return fmt.Errorf("pull image %s: %w", r.Image, err)
	}
	defer progress.Close()

	w := newLineWriter(Stdout, func(_ Stream, line string) {
		logger.Debug("pull progress", "image", r.Image, "message", line)
	})
	if _, err := io.Copy(w, progress); err != nil {
		return fmt.Errorf("pull image %s: %w", r.Image, err)
	}
	w.Flush()
	return nil
}

func (r *DockerRunner) onLine() LineFunc {
	if r.OnLine != nil {
		return r.OnLine
	}
	logger := r.logger()
	return func(stream Stream, line string) {
		logger.Debug("tool output", "stream", stream, "line", line)
	}
}

func (r *DockerRunner) logger() *slog.Logger {
	if r.Logger != nil {
		return r.Logger
	}
	return slog.Default()
}

func shortID(id string) string {
	if len(id) > 12 {
		return id[:12]
	}
	return id
}
