package runner

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/containerd/errdefs"
	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/mount"
	"github.com/docker/docker/client"

	"github.com/claw4business/claude-code-slackbot/internal/config"
	"github.com/claw4business/claude-code-slackbot/internal/domain"
)

const (
	dockerStopTimeoutSecs = 10
	dockerWorkDir         = "/workspace"

	// Resource limits. Coding sessions are heavier than a typical one-shot
	// job, so these are generous.
	dockerMemoryLimit = 2 * 1024 * 1024 * 1024 // 2GB
	dockerCPUQuota    = 100000                 // 1 CPU
	dockerPidsLimit   = 512

	// ContainerLogs tail request; TailLog trims to the caller's byte limit.
	dockerLogTailLines = "200"
)

// DockerRunner runs each task in a one-shot container named after the
// session. The container's stdout is the task log.
type DockerRunner struct {
	cli *client.Client
	cfg *config.Config
}

// NewDockerRunner creates a Docker-backed runner.
func NewDockerRunner(cfg *config.Config) (*DockerRunner, error) {
	cli, err := client.NewClientWithOpts(client.FromEnv, client.WithAPIVersionNegotiation())
	if err != nil {
		return nil, fmt.Errorf("create docker client: %w", err)
	}
	slog.Info("Docker client initialized", "image", cfg.Launcher.Image)
	return &DockerRunner{cli: cli, cfg: cfg}, nil
}

// Launch creates and starts a task container.
func (d *DockerRunner) Launch(ctx context.Context, task *domain.Task) (string, error) {
	if err := validateSessionName(task.SessionName); err != nil {
		return "", err
	}

	containerConfig := &container.Config{
		Image:      d.cfg.Launcher.Image,
		WorkingDir: dockerWorkDir,
		// With Tty set the log stream is raw text rather than multiplexed
		// stdout/stderr frames.
		Tty: true,
		Cmd: []string{d.cfg.ClaudeBin, "--dangerously-skip-permissions", "-p", task.Prompt},
	}

	hostConfig := &container.HostConfig{
		Resources: container.Resources{
			Memory:    dockerMemoryLimit,
			CPUQuota:  dockerCPUQuota,
			PidsLimit: ptr(int64(dockerPidsLimit)),
		},
	}
	if d.cfg.Launcher.WorkDir != "" {
		hostConfig.Mounts = []mount.Mount{{
			Type:   mount.TypeBind,
			Source: d.cfg.Launcher.WorkDir,
			Target: dockerWorkDir,
		}}
	}

	resp, err := d.cli.ContainerCreate(ctx, containerConfig, hostConfig, nil, nil, task.SessionName)
	if err != nil {
		return "", fmt.Errorf("create container: %w", err)
	}

	if err := d.cli.ContainerStart(ctx, resp.ID, container.StartOptions{}); err != nil {
		if removeErr := d.cli.ContainerRemove(ctx, resp.ID, container.RemoveOptions{Force: true}); removeErr != nil && !errdefs.IsNotFound(removeErr) {
			slog.Warn("Failed to remove container after start failure", "container_id", resp.ID, "error", removeErr)
		}
		return "", fmt.Errorf("start container %s: %w", resp.ID, err)
	}

	slog.Info("Container created and started", "container_id", resp.ID, "session", task.SessionName)
	return resp.ID, nil
}

// IsRunning checks whether the task container is currently running.
func (d *DockerRunner) IsRunning(ctx context.Context, runtimeID string) (bool, error) {
	inspect, err := d.cli.ContainerInspect(ctx, runtimeID)
	if err != nil {
		if errdefs.IsNotFound(err) {
			return false, nil
		}
		return false, fmt.Errorf("inspect container %s: %w", runtimeID, err)
	}
	return inspect.State.Running, nil
}

// Stop stops and removes the task container. It is idempotent and tolerates
// a concurrent removal.
func (d *DockerRunner) Stop(ctx context.Context, runtimeID string) error {
	_, err := d.cli.ContainerInspect(ctx, runtimeID)
	if err != nil {
		if errdefs.IsNotFound(err) {
			return nil
		}
		return fmt.Errorf("inspect container %s: %w", runtimeID, err)
	}

	timeout := dockerStopTimeoutSecs
	if err := d.cli.ContainerStop(ctx, runtimeID, container.StopOptions{Timeout: &timeout}); err != nil && !errdefs.IsNotFound(err) {
		slog.Debug("Container stop returned error, continuing to remove", "container_id", runtimeID, "error", err)
	}

	if err := d.cli.ContainerRemove(ctx, runtimeID, container.RemoveOptions{Force: true}); err != nil {
		if errdefs.IsNotFound(err) || strings.Contains(err.Error(), "is already in progress") {
			return nil
		}
		return fmt.Errorf("remove container %s: %w", runtimeID, err)
	}

	slog.Info("Container stopped and removed", "container_id", runtimeID)
	return nil
}

// TailLog fetches recent container output, trimmed to the last n bytes.
func (d *DockerRunner) TailLog(ctx context.Context, task *domain.Task, n int64) (string, error) {
	if n <= 0 {
		return "", nil
	}

	rc, err := d.cli.ContainerLogs(ctx, task.RuntimeID, container.LogsOptions{
		ShowStdout: true,
		ShowStderr: true,
		Tail:       dockerLogTailLines,
	})
	if err != nil {
		return "", fmt.Errorf("fetch logs for %s: %w", task.RuntimeID, err)
	}
	defer rc.Close()

	ring := newTailBuffer(int(n))
	if _, err := io.Copy(ring, rc); err != nil {
		return "", fmt.Errorf("read logs for %s: %w", task.RuntimeID, err)
	}
	return string(ring.Bytes()), nil
}

// FollowLog streams the container's output from the recent tail onward.
// The stream ends when the container is removed or ctx is canceled.
func (d *DockerRunner) FollowLog(ctx context.Context, task *domain.Task) (io.ReadCloser, error) {
	rc, err := d.cli.ContainerLogs(ctx, task.RuntimeID, container.LogsOptions{
		ShowStdout: true,
		ShowStderr: true,
		Follow:     true,
		Tail:       dockerLogTailLines,
	})
	if err != nil {
		return nil, fmt.Errorf("follow logs for %s: %w", task.RuntimeID, err)
	}
	return rc, nil
}

func ptr[T any](v T) *T {
	return &v
}
