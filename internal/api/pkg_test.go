package api

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/agent-hr/agenthr/internal/config"
	"github.com/agent-hr/agenthr/internal/deploy"
	"github.com/agent-hr/agenthr/internal/domain"
	"github.com/agent-hr/agenthr/internal/policy"
	"github.com/agent-hr/agenthr/internal/runtime"
	"github.com/agent-hr/agenthr/internal/store"
	"github.com/agent-hr/agenthr/internal/ws"
	"github.com/agent-hr/agenthr/tests/helpers"
)

// stubRunner deploys without docker.
type stubRunner struct {
	mu       sync.Mutex
	nextPort int
	stopped  []string
}

func (f *stubRunner) BuildImage(ctx context.Context, agentID, versionID string, files map[string]string) (string, error) {
	return "img_" + versionID, nil
}

func (f *stubRunner) StartContainer(ctx context.Context, imageID, deploymentID string) (string, int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextPort++
	return "ctr_" + deploymentID, 18000 + f.nextPort, nil
}

func (f *stubRunner) StopContainer(ctx context.Context, containerID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stopped = append(f.stopped, containerID)
	return nil
}

func (f *stubRunner) ContainerStatus(ctx context.Context, containerID string) (string, error) {
	return "running", nil
}

func newTestHandler(t *testing.T) *Handler {
	t.Helper()
	st := helpers.NewTestStore(t)
	return newTestHandlerWithStore(t, st)
}

func newTestHandlerWithStore(t *testing.T, st store.Store) *Handler {
	t.Helper()
	engine, err := policy.NewEngine(context.Background(), policy.DefaultPolicy)
	if err != nil {
		t.Fatalf("NewEngine failed: %v", err)
	}
	cfg := &config.Config{ContainerHost: "127.0.0.1"}
	deployer := deploy.NewService(st, &stubRunner{}, nil)
	return NewHandler(st, deployer, runtime.NewClient("127.0.0.1"), engine, ws.NewRegistry(), cfg)
}

func seedAgent(t *testing.T, h *Handler, agentID string) {
	t.Helper()
	agent := &domain.Agent{
		AgentID:   agentID,
		Name:      "Test Agent",
		Status:    domain.AgentStatusActive,
		CreatedAt: time.Now(),
		UpdatedAt: time.Now(),
	}
	if err := h.store.CreateAgent(context.Background(), agent); err != nil {
		t.Fatalf("CreateAgent failed: %v", err)
	}
}

func seedVersion(t *testing.T, h *Handler, agentID, versionID string) {
	t.Helper()
	version := &domain.AgentVersion{
		VersionID:     versionID,
		AgentID:       agentID,
		VersionNumber: 1,
		ChangeType:    domain.ChangeTypeUpload,
		CreatedAt:     time.Now(),
	}
	if err := h.store.CreateVersion(context.Background(), version); err != nil {
		t.Fatalf("CreateVersion failed: %v", err)
	}
	if err := h.store.SetCurrentVersion(context.Background(), agentID, versionID); err != nil {
		t.Fatalf("SetCurrentVersion failed: %v", err)
	}
}
