package dispatch

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/image"
	"github.com/docker/docker/api/types/network"
	"github.com/docker/docker/pkg/stdcopy"
	ocispec "github.com/opencontainers/image-spec/specs-go/v1"
)

// fakeContainer is one container created through fakeDocker.
type fakeContainer struct {
	ID      string
	Config  container.Config
	Host    container.HostConfig
	Started bool
	Removed bool
}

// fakeDocker records calls and replays scripted behavior per container.
// Exit codes and output are keyed by the first argument after "-n".
type fakeDocker struct {
	mu         sync.Mutex
	images     []string
	pulled     []string
	containers []*fakeContainer
	calls      []string

	// exitCodes maps the output name (-n value) to the container exit code.
	exitCodes map[string]int64
	// stdout and stderr map the output name to log lines.
	stdout map[string][]string
	stderr map[string][]string
	// hang keeps the log stream of the named command open until ctx ends.
	hang string
	// onHang runs once the hanging log stream is handed out.
	onHang func()
	// startErr fails ContainerStart for the named command.
	startErr string
}

var _ ContainerAPI = (*fakeDocker)(nil)

func outputName(cmd []string) string {
	for i, arg := range cmd {
		if arg == "-n" && i+1 < len(cmd) {
			return cmd[i+1]
		}
	}
	return ""
}

func (f *fakeDocker) record(format string, args ...any) {
	f.calls = append(f.calls, fmt.Sprintf(format, args...))
}

func (f *fakeDocker) find(id string) *fakeContainer {
	for _, c := range f.containers {
		if c.ID == id {
			return c
		}
	}
	return nil
}

func (f *fakeDocker) ImageList(_ context.Context, options image.ListOptions) ([]image.Summary, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	ref := options.Filters.Get("reference")
	f.record("list %s", strings.Join(ref, ","))
	var out []image.Summary
	for _, img := range f.images {
		for _, r := range ref {
			if img == r {
				out = append(out, image.Summary{ID: "sha256:" + img, RepoTags: []string{img}})
			}
		}
	}
	return out, nil
}

func (f *fakeDocker) ImagePull(_ context.Context, ref string, _ image.PullOptions) (io.ReadCloser, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("pull %s", ref)
	f.pulled = append(f.pulled, ref)
	f.images = append(f.images, ref)
	return io.NopCloser(strings.NewReader(`{"status":"Pulling from genomicslab/phen2gene"}` + "\n" + `{"status":"Download complete"}` + "\n")), nil
}

func (f *fakeDocker) ContainerCreate(_ context.Context, cfg *container.Config, host *container.HostConfig, _ *network.NetworkingConfig, _ *ocispec.Platform, _ string) (container.CreateResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	id := fmt.Sprintf("c%02d0123456789abcdef", len(f.containers)+1)
	f.containers = append(f.containers, &fakeContainer{ID: id, Config: *cfg, Host: *host})
	f.record("create %s", id)
	return container.CreateResponse{ID: id}, nil
}

func (f *fakeDocker) ContainerStart(_ context.Context, id string, _ container.StartOptions) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("start %s", id)
	c := f.find(id)
	if c == nil {
		return errors.New("no such container")
	}
	if f.startErr != "" && outputName(c.Config.Cmd) == f.startErr {
		return errors.New("OCI runtime create failed")
	}
	c.Started = true
	return nil
}

func (f *fakeDocker) ContainerLogs(ctx context.Context, id string, _ container.LogsOptions) (io.ReadCloser, error) {
	f.mu.Lock()
	f.record("logs %s", id)
	c := f.find(id)
	name := outputName(c.Config.Cmd)
	hang := f.hang != "" && name == f.hang
	onHang := f.onHang
	var buf bytes.Buffer
	out := stdcopy.NewStdWriter(&buf, stdcopy.Stdout)
	errw := stdcopy.NewStdWriter(&buf, stdcopy.Stderr)
	for _, line := range f.stdout[name] {
		_, _ = out.Write([]byte(line + "\n"))
	}
	for _, line := range f.stderr[name] {
		_, _ = errw.Write([]byte(line + "\n"))
	}
	f.mu.Unlock()

	if !hang {
		return io.NopCloser(&buf), nil
	}

	pr, pw := io.Pipe()
	context.AfterFunc(ctx, func() { pw.CloseWithError(ctx.Err()) })
	if onHang != nil {
		onHang()
	}
	return pr, nil
}

func (f *fakeDocker) ContainerWait(_ context.Context, id string, _ container.WaitCondition) (<-chan container.WaitResponse, <-chan error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("wait %s", id)
	statusCh := make(chan container.WaitResponse, 1)
	errCh := make(chan error, 1)
	statusCh <- container.WaitResponse{StatusCode: f.exitCodes[outputName(f.find(id).Config.Cmd)]}
	return statusCh, errCh
}

func (f *fakeDocker) ContainerRemove(ctx context.Context, id string, options container.RemoveOptions) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := ctx.Err(); err != nil {
		return err
	}
	f.record("remove %s force=%t", id, options.Force)
	if c := f.find(id); c != nil {
		c.Removed = true
	}
	return nil
}

func (f *fakeDocker) snapshot() ([]string, []*fakeContainer) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...), append([]*fakeContainer(nil), f.containers...)
}
