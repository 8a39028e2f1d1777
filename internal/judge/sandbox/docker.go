package sandbox

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/docker/docker/api/types"
	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/strslice"
	"github.com/docker/docker/client"
	"github.com/docker/docker/pkg/stdcopy"
)

// maxCapturedBytes bounds how much container output the backend keeps in
// memory. Judges apply their own tighter character budget on top.
const maxCapturedBytes = 1 << 20

const removeTimeout = 30 * time.Second

// DockerBackend implements Backend against a Docker engine. The client is
// owned by the process and injected into every judge, never re-created per
// run.
type DockerBackend struct {
	cli client.ContainerAPIClient
}

// NewDockerBackend connects to the engine using the standard DOCKER_* environment.
func NewDockerBackend() (*DockerBackend, error) {
	cli, err := client.NewClientWithOpts(client.FromEnv, client.WithAPIVersionNegotiation())
	if err != nil {
		return nil, fmt.Errorf("create docker client failed: %w", err)
	}
	return &DockerBackend{cli: cli}, nil
}

// NewDockerBackendWithClient wraps an existing container API client.
func NewDockerBackendWithClient(cli client.ContainerAPIClient) (*DockerBackend, error) {
	if cli == nil {
		return nil, fmt.Errorf("docker client is required")
	}
	return &DockerBackend{cli: cli}, nil
}

func (b *DockerBackend) Run(ctx context.Context, spec RunSpec, timeout time.Duration) (RunResult, error) {
	cfg := &container.Config{
		Image:           spec.Image,
		Cmd:             strslice.StrSlice(spec.Command),
		User:            spec.User,
		NetworkDisabled: true,
	}
	hostCfg := &container.HostConfig{
		NetworkMode:    "none",
		ReadonlyRootfs: true,
		Tmpfs:          spec.Tmpfs,
		Runtime:        spec.Runtime,
		Resources: container.Resources{
			Memory:     spec.MemoryBytes,
			MemorySwap: spec.MemoryBytes,
			NanoCPUs:   spec.NanoCPUs,
		},
	}
	if spec.PidsLimit > 0 {
		limit := spec.PidsLimit
		hostCfg.Resources.PidsLimit = &limit
	}

	created, err := b.cli.ContainerCreate(ctx, cfg, hostCfg, nil, nil, "")
	if err != nil {
		return RunResult{}, fmt.Errorf("create container failed: %w", err)
	}
	id := created.ID
	defer b.remove(id)

	if err := b.cli.ContainerStart(ctx, id, types.ContainerStartOptions{}); err != nil {
		return RunResult{}, fmt.Errorf("start container failed: %w", err)
	}

	waitCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	statusCh, errCh := b.cli.ContainerWait(waitCtx, id, container.WaitConditionNotRunning)
	select {
	case status := <-statusCh:
		if status.Error != nil {
			return RunResult{}, fmt.Errorf("container wait failed: %s", status.Error.Message)
		}
		output, err := b.collectLogs(ctx, id)
		if err != nil {
			return RunResult{}, err
		}
		return RunResult{ExitCode: status.StatusCode, Output: output}, nil

	case err := <-errCh:
		if errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil {
			b.kill(id)
			return RunResult{}, ErrTimeout
		}
		return RunResult{}, fmt.Errorf("container wait failed: %w", err)
	}
}

func (b *DockerBackend) collectLogs(ctx context.Context, id string) (string, error) {
	rc, err := b.cli.ContainerLogs(ctx, id, types.ContainerLogsOptions{
		ShowStdout: true,
		ShowStderr: true,
	})
	if err != nil {
		return "", fmt.Errorf("read container logs failed: %w", err)
	}
	defer rc.Close()

	// stdout and stderr are demultiplexed into the same buffer, matching
	// the single combined stream the verdict stores.
	buf := &boundedBuffer{max: maxCapturedBytes}
	if _, err := stdcopy.StdCopy(buf, buf, rc); err != nil {
		return "", fmt.Errorf("read container logs failed: %w", err)
	}
	return buf.String(), nil
}

// kill is best-effort: the run has already been classified as a timeout.
func (b *DockerBackend) kill(id string) {
	ctx, cancel := context.WithTimeout(context.Background(), removeTimeout)
	defer cancel()
	_ = b.cli.ContainerKill(ctx, id, "SIGKILL")
}

// remove tears the container down regardless of how the run ended. Failures
// are swallowed; the run has already concluded.
func (b *DockerBackend) remove(id string) {
	ctx, cancel := context.WithTimeout(context.Background(), removeTimeout)
	defer cancel()
	_ = b.cli.ContainerRemove(ctx, id, types.ContainerRemoveOptions{Force: true})
}

// boundedBuffer keeps at most max bytes and silently discards the rest, so a
// program printing without bound cannot exhaust worker memory.
type boundedBuffer struct {
	buf bytes.Buffer
	max int
}

func (b *boundedBuffer) Write(p []byte) (int, error) {
	n := len(p)
	if remain := b.max - b.buf.Len(); remain > 0 {
		if len(p) > remain {
			p = p[:remain]
		}
		b.buf.Write(p)
	}
	return n, nil
}

func (b *boundedBuffer) String() string {
	return b.buf.String()
}
