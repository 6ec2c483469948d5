package sandbox

import (
	"context"
	"fmt"
	"io"
	"path/filepath"

	"github.com/docker/docker/api/types"
	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/client"
	"github.com/docker/docker/errdefs"
	"github.com/docker/docker/pkg/stdcopy"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/snipbox/snipbox/config"
)

// DockerRuntime implements Runtime against the Docker Engine API.
type DockerRuntime struct {
	client *client.Client
	logger *zap.Logger
}

// NewDockerRuntime creates a runtime talking to the engine at host, or the
// environment's default engine when host is empty.
func NewDockerRuntime(logger *zap.Logger, host string) (*DockerRuntime, error) {
	opts := []client.Opt{client.FromEnv, client.WithAPIVersionNegotiation()}
	if host != "" {
		opts = append(opts, client.WithHost(host))
	}

	cli, err := client.NewClientWithOpts(opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create docker client: %w", err)
	}

	return &DockerRuntime{client: cli, logger: logger}, nil
}

// NewDockerRuntimeFromConfig creates a runtime from the process configuration.
func NewDockerRuntimeFromConfig(logger *zap.Logger, cfg *config.Config) (*DockerRuntime, error) {
	return NewDockerRuntime(logger, cfg.Docker.Host)
}

// Create provisions a hardened container: unprivileged user, no
// capabilities, no network, resource limits from the profile, SIGKILL as
// the stop signal so a forced stop is immediate.
func (d *DockerRuntime) Create(ctx context.Context, spec CreateSpec) (string, error) {
	name := "snipbox-" + uuid.NewString()

	containerConfig := &container.Config{
		Image:           spec.Image,
		Cmd:             spec.Command,
		Env:             spec.Env,
		WorkingDir:      filepath.Dir(CodePath),
		User:            "65534:65534",
		NetworkDisabled: true,
		StopSignal:      "SIGKILL",
	}

	pids := spec.Limits.PidsLimit
	hostConfig := &container.HostConfig{
		NetworkMode: "none",
		CapDrop:     []string{"ALL"},
		SecurityOpt: []string{"no-new-privileges:true"},
		Resources: container.Resources{
			NanoCPUs:   int64(spec.Limits.CPUs * 1e9),
			Memory:     spec.Limits.MemoryBytes,
			MemorySwap: spec.Limits.MemoryBytes,
			PidsLimit:  &pids,
		},
	}

	resp, err := d.client.ContainerCreate(ctx, containerConfig, hostConfig, nil, nil, name)
	if err != nil {
		return "", fmt.Errorf("failed to create container: %w", err)
	}

	archive, err := codeArchive(filepath.Base(CodePath), spec.Code)
	if err != nil {
		d.removeBestEffort(resp.ID)
		return "", err
	}
	err = d.client.CopyToContainer(ctx, resp.ID, filepath.Dir(CodePath), archive, types.CopyToContainerOptions{})
	if err != nil {
		// The handle was never returned to the caller, so cleanup is ours.
		d.removeBestEffort(resp.ID)
		return "", fmt.Errorf("failed to copy code into container: %w", err)
	}

	return resp.ID, nil
}

func (d *DockerRuntime) removeBestEffort(handle string) {
	if err := d.client.ContainerRemove(context.Background(), handle, types.ContainerRemoveOptions{Force: true}); err != nil {
		d.logger.Warn("failed to remove half-created container",
			zap.String("container", handle), zap.Error(err))
	}
}

func (d *DockerRuntime) Start(ctx context.Context, handle string) error {
	if err := d.client.ContainerStart(ctx, handle, types.ContainerStartOptions{}); err != nil {
		return fmt.Errorf("failed to start container: %w", err)
	}
	return nil
}

// StreamLogs follows the container's combined output, demultiplexing the
// engine's stdout/stderr framing into w in arrival order.
func (d *DockerRuntime) StreamLogs(ctx context.Context, handle string, w io.Writer) error {
	logs, err := d.client.ContainerLogs(ctx, handle, types.ContainerLogsOptions{
		ShowStdout: true,
		ShowStderr: true,
		Follow:     true,
	})
	if err != nil {
		return fmt.Errorf("failed to stream logs: %w", err)
	}
	defer logs.Close()

	if _, err := stdcopy.StdCopy(w, w, logs); err != nil && ctx.Err() == nil {
		return fmt.Errorf("log stream broke: %w", err)
	}
	return nil
}

func (d *DockerRuntime) Wait(ctx context.Context, handle string) (int64, error) {
	statusCh, errCh := d.client.ContainerWait(ctx, handle, container.WaitConditionNotRunning)
	select {
	case err := <-errCh:
		return 0, fmt.Errorf("failed to wait for container: %w", err)
	case status := <-statusCh:
		if status.Error != nil {
			return 0, fmt.Errorf("container wait reported: %s", status.Error.Message)
		}
		return status.StatusCode, nil
	}
}

func (d *DockerRuntime) Kill(ctx context.Context, handle string) error {
	err := d.client.ContainerKill(ctx, handle, "SIGKILL")
	if err == nil || errdefs.IsConflict(err) || errdefs.IsNotFound(err) {
		// Conflict means the container already stopped on its own.
		return nil
	}
	return fmt.Errorf("failed to kill container: %w", err)
}

func (d *DockerRuntime) Remove(ctx context.Context, handle string) error {
	err := d.client.ContainerRemove(ctx, handle, types.ContainerRemoveOptions{Force: true})
	if err != nil && !errdefs.IsNotFound(err) {
		return fmt.Errorf("failed to remove container: %w", err)
	}
	return nil
}
