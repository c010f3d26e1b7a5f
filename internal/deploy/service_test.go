package deploy

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/agent-hr/agenthr/internal/domain"
	"github.com/agent-hr/agenthr/tests/helpers"
)

type fakeRunner struct {
	mu       sync.Mutex
	buildErr error
	startErr error
	built    []string
	started  []string
	stopped  []string
	files    map[string]string
	nextPort int
}

func (f *fakeRunner) BuildImage(ctx context.Context, agentID, versionID string, files map[string]string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.buildErr != nil {
		return "", f.buildErr
	}
	f.built = append(f.built, versionID)
	f.files = files
	return "img_" + versionID, nil
}

func (f *fakeRunner) StartContainer(ctx context.Context, imageID, deploymentID string) (string, int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.startErr != nil {
		return "", 0, f.startErr
	}
	f.started = append(f.started, deploymentID)
	f.nextPort++
	return "ctr_" + deploymentID, 18000 + f.nextPort, nil
}

func (f *fakeRunner) StopContainer(ctx context.Context, containerID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stopped = append(f.stopped, containerID)
	return nil
}

func (f *fakeRunner) ContainerStatus(ctx context.Context, containerID string) (string, error) {
	return "running", nil
}

type recordingCloser struct {
	mu     sync.Mutex
	closed []string
}

func (r *recordingCloser) CloseDeployment(deploymentID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.closed = append(r.closed, deploymentID)
}

func seedAgentVersion(t *testing.T, st interface {
	CreateAgent(context.Context, *domain.Agent) error
	CreateVersion(context.Context, *domain.AgentVersion) error
}) {
	t.Helper()
	ctx := context.Background()
	agent := &domain.Agent{AgentID: "agt_1", Name: "A", Status: domain.AgentStatusActive, CreatedAt: time.Now(), UpdatedAt: time.Now()}
	if err := st.CreateAgent(ctx, agent); err != nil {
		t.Fatalf("CreateAgent failed: %v", err)
	}
	version := &domain.AgentVersion{VersionID: "ver_1", AgentID: "agt_1", VersionNumber: 1, ChangeType: domain.ChangeTypeUpload, CreatedAt: time.Now()}
	if err := st.CreateVersion(ctx, version); err != nil {
		t.Fatalf("CreateVersion failed: %v", err)
	}
}

func TestDeployHappyPath(t *testing.T) {
	ctx := context.Background()
	st := helpers.NewTestStore(t)
	seedAgentVersion(t, st)

	runner := &fakeRunner{}
	svc := NewService(st, runner, nil)

	dep, err := svc.Deploy(ctx, "agt_1", "ver_1", "u1")
	if err != nil {
		t.Fatalf("Deploy failed: %v", err)
	}
	if dep.Status != domain.DeploymentStatusRunning {
		t.Fatalf("expected running, got %s (%s)", dep.Status, dep.ErrorMessage)
	}
	if dep.Port == 0 || dep.ContainerID == "" || dep.ImageID != "img_ver_1" {
		t.Fatalf("container details not recorded: %+v", dep)
	}
	if dep.StartedAt == nil {
		t.Fatalf("expected started_at to be set")
	}
	if len(runner.built) != 1 || len(runner.started) != 1 {
		t.Fatalf("unexpected runner calls: built=%v started=%v", runner.built, runner.started)
	}
}

func TestDeployBuildFailureMarksFailed(t *testing.T) {
	ctx := context.Background()
	st := helpers.NewTestStore(t)
	seedAgentVersion(t, st)

	runner := &fakeRunner{buildErr: errors.New("no base image")}
	svc := NewService(st, runner, nil)

	dep, err := svc.Deploy(ctx, "agt_1", "ver_1", "u1")
	if err != nil {
		t.Fatalf("Deploy returned error: %v", err)
	}
	if dep.Status != domain.DeploymentStatusFailed {
		t.Fatalf("expected failed, got %s", dep.Status)
	}

	stored, err := st.GetDeployment(ctx, dep.DeploymentID)
	if err != nil {
		t.Fatalf("GetDeployment failed: %v", err)
	}
	if stored.Status != domain.DeploymentStatusFailed || stored.ErrorMessage == "" {
		t.Fatalf("failure not persisted: %+v", stored)
	}
}

func TestDeployUnknownAgent(t *testing.T) {
	st := helpers.NewTestStore(t)
	svc := NewService(st, &fakeRunner{}, nil)

	if _, err := svc.Deploy(context.Background(), "missing", "ver_1", "u1"); err == nil {
		t.Fatalf("expected error for unknown agent")
	}
}

func TestDeployReplacesRunningDeployment(t *testing.T) {
	ctx := context.Background()
	st := helpers.NewTestStore(t)
	seedAgentVersion(t, st)

	runner := &fakeRunner{}
	closer := &recordingCloser{}
	svc := NewService(st, runner, closer)

	first, err := svc.Deploy(ctx, "agt_1", "ver_1", "u1")
	if err != nil {
		t.Fatalf("first Deploy failed: %v", err)
	}
	second, err := svc.Deploy(ctx, "agt_1", "ver_1", "u1")
	if err != nil {
		t.Fatalf("second Deploy failed: %v", err)
	}

	old, err := st.GetDeployment(ctx, first.DeploymentID)
	if err != nil {
		t.Fatalf("GetDeployment failed: %v", err)
	}
	if old.Status != domain.DeploymentStatusStopped {
		t.Fatalf("expected first deployment stopped, got %s", old.Status)
	}
	if second.Status != domain.DeploymentStatusRunning {
		t.Fatalf("expected second deployment running, got %s", second.Status)
	}
	if len(closer.closed) != 1 || closer.closed[0] != first.DeploymentID {
		t.Fatalf("expected chat connections closed for %s, got %v", first.DeploymentID, closer.closed)
	}
	if len(runner.stopped) != 1 {
		t.Fatalf("expected one stopped container, got %v", runner.stopped)
	}
}

func TestStopNonRunningDeployment(t *testing.T) {
	ctx := context.Background()
	st := helpers.NewTestStore(t)
	seedAgentVersion(t, st)

	runner := &fakeRunner{buildErr: errors.New("boom")}
	svc := NewService(st, runner, nil)

	dep, err := svc.Deploy(ctx, "agt_1", "ver_1", "u1")
	if err != nil {
		t.Fatalf("Deploy failed: %v", err)
	}
	if _, err := svc.Stop(ctx, dep.DeploymentID); err == nil {
		t.Fatalf("expected error stopping failed deployment")
	}
}

func TestStopAll(t *testing.T) {
	ctx := context.Background()
	st := helpers.NewTestStore(t)
	seedAgentVersion(t, st)

	runner := &fakeRunner{}
	svc := NewService(st, runner, nil)

	if _, err := svc.Deploy(ctx, "agt_1", "ver_1", "u1"); err != nil {
		t.Fatalf("Deploy failed: %v", err)
	}
	if err := svc.StopAll(ctx); err != nil {
		t.Fatalf("StopAll failed: %v", err)
	}

	running, err := st.ListRunningDeployments(ctx)
	if err != nil {
		t.Fatalf("ListRunningDeployments failed: %v", err)
	}
	if len(running) != 0 {
		t.Fatalf("expected no running deployments, got %d", len(running))
	}
}

func TestDeployBuildsWorkspaceFromComponents(t *testing.T) {
	ctx := context.Background()
	st := helpers.NewTestStore(t)
	seedAgentVersion(t, st)

	skill := &domain.Component{
		ComponentID: "cmp_1", VersionID: "ver_1", Type: domain.ComponentTypeSkill,
		Name: "triage", Content: "# Triage", SourcePath: ".claude/commands/triage.md",
	}
	if err := st.CreateComponent(ctx, skill); err != nil {
		t.Fatalf("CreateComponent failed: %v", err)
	}

	runner := &fakeRunner{}
	svc := NewService(st, runner, nil)
	if _, err := svc.Deploy(ctx, "agt_1", "ver_1", "u1"); err != nil {
		t.Fatalf("Deploy failed: %v", err)
	}

	if runner.files[".claude/commands/triage.md"] != "# Triage" {
		t.Fatalf("skill missing from build context: %v", runner.files)
	}
	if _, ok := runner.files["config.json"]; !ok {
		t.Fatalf("config manifest missing from build context")
	}
}
