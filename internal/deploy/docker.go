package deploy

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

const dockerfileTemplate = `FROM %s
COPY . /app/workspace
ENV AGENT_WORKSPACE=/app/workspace
EXPOSE 8080
`

// DockerRunner runs agent containers through the docker CLI.
type DockerRunner struct {
	baseImage string
}

// NewDockerRunner creates a runner building on the given runtime base image.
func NewDockerRunner(baseImage string) *DockerRunner {
	return &DockerRunner{baseImage: baseImage}
}

func runDocker(ctx context.Context, args ...string) (string, error) {
	cmd := exec.CommandContext(ctx, "docker", args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return "", fmt.Errorf("docker %s failed: %w: %s", args[0], err, strings.TrimSpace(stderr.String()))
	}
	return strings.TrimSpace(stdout.String()), nil
}

// BuildImage writes the workspace to a temp build context and builds an image
// tagged for the agent version.
func (r *DockerRunner) BuildImage(ctx context.Context, agentID, versionID string, files map[string]string) (string, error) {
	dir, err := os.MkdirTemp("", "agenthr-build-")
	if err != nil {
		return "", fmt.Errorf("failed to create build context: %w", err)
	}
	defer os.RemoveAll(dir)

	for name, content := range files {
		path := filepath.Join(dir, filepath.FromSlash(name))
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return "", fmt.Errorf("failed to create build dir: %w", err)
		}
		if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
			return "", fmt.Errorf("failed to write %s: %w", name, err)
		}
	}

	dockerfile := fmt.Sprintf(dockerfileTemplate, r.baseImage)
	if err := os.WriteFile(filepath.Join(dir, "Dockerfile"), []byte(dockerfile), 0o644); err != nil {
		return "", fmt.Errorf("failed to write Dockerfile: %w", err)
	}

	tag := fmt.Sprintf("agenthr/%s:%s", agentID, versionID)
	out, err := runDocker(ctx, "build", "-q", "-t", tag, dir)
	if err != nil {
		return "", err
	}
	return out, nil
}

// StartContainer starts a container with a dynamically assigned host port
// and returns the container ID and that port.
func (r *DockerRunner) StartContainer(ctx context.Context, imageID, deploymentID string) (string, int, error) {
	name := "agenthr-" + deploymentID
	containerID, err := runDocker(ctx, "run", "-d", "--name", name, "-p", "0:8080", imageID)
	if err != nil {
		return "", 0, err
	}

	port, err := r.hostPort(ctx, containerID)
	if err != nil {
		// Don't leak the container if we cannot address it.
		stopCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = r.StopContainer(stopCtx, containerID)
		return "", 0, err
	}
	return containerID, port, nil
}

func (r *DockerRunner) hostPort(ctx context.Context, containerID string) (int, error) {
	out, err := runDocker(ctx, "port", containerID, "8080/tcp")
	if err != nil {
		return 0, err
	}
	// Output looks like "0.0.0.0:49153" (one line per address family).
	line := strings.Split(out, "\n")[0]
	idx := strings.LastIndex(line, ":")
	if idx < 0 {
		return 0, fmt.Errorf("unexpected docker port output: %q", out)
	}
	port, err := strconv.Atoi(strings.TrimSpace(line[idx+1:]))
	if err != nil {
		return 0, fmt.Errorf("unexpected docker port output: %q", out)
	}
	return port, nil
}

// StopContainer force-removes a container.
func (r *DockerRunner) StopContainer(ctx context.Context, containerID string) error {
	_, err := runDocker(ctx, "rm", "-f", containerID)
	return err
}

// ContainerStatus reports the container's state (running, exited, ...).
func (r *DockerRunner) ContainerStatus(ctx context.Context, containerID string) (string, error) {
	return runDocker(ctx, "inspect", "-f", "{{.State.Status}}", containerID)
}
