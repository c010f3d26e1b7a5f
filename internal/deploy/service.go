// Package deploy orchestrates the agent deployment lifecycle: building a
// container image from an agent version's components, starting the container,
// and tearing it down again.
package deploy

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/agent-hr/agenthr/internal/domain"
	"github.com/agent-hr/agenthr/internal/store"
	"github.com/google/uuid"
)

// Runner starts and stops agent containers. The production implementation
// shells out to the docker CLI; tests substitute a fake.
type Runner interface {
	BuildImage(ctx context.Context, agentID, versionID string, files map[string]string) (imageID string, err error)
	StartContainer(ctx context.Context, imageID, deploymentID string) (containerID string, port int, err error)
	StopContainer(ctx context.Context, containerID string) error
	ContainerStatus(ctx context.Context, containerID string) (string, error)
}

// ConnCloser force-closes live chat connections when a deployment stops.
type ConnCloser interface {
	CloseDeployment(deploymentID string)
}

type noopCloser struct{}

func (noopCloser) CloseDeployment(string) {}

// Service orchestrates deployments against a Store and a Runner.
type Service struct {
	store  store.Store
	runner Runner
	conns  ConnCloser
}

// NewService creates a deployment service. The conn closer may be nil.
func NewService(st store.Store, runner Runner, conns ConnCloser) *Service {
	if conns == nil {
		conns = noopCloser{}
	}
	return &Service{store: st, runner: runner, conns: conns}
}

func newDeploymentID() string {
	return "dep_" + uuid.New().String()[:8]
}

// Deploy builds and starts a container for an agent version. Any running
// deployment of the same agent is stopped first. The returned deployment is
// either running or failed.
func (s *Service) Deploy(ctx context.Context, agentID, versionID, userID string) (*domain.Deployment, error) {
	agent, err := s.store.GetAgent(ctx, agentID)
	if err != nil {
		return nil, fmt.Errorf("failed to load agent: %w", err)
	}
	if agent == nil {
		return nil, fmt.Errorf("agent %s not found", agentID)
	}

	version, err := s.store.GetVersion(ctx, versionID)
	if err != nil {
		return nil, fmt.Errorf("failed to load version: %w", err)
	}
	if version == nil || version.AgentID != agentID {
		return nil, fmt.Errorf("version %s not found for agent %s", versionID, agentID)
	}

	// One running deployment per agent.
	if existing, err := s.store.GetActiveDeployment(ctx, agentID); err != nil {
		return nil, fmt.Errorf("failed to check active deployment: %w", err)
	} else if existing != nil {
		if _, err := s.Stop(ctx, existing.DeploymentID); err != nil {
			log.Printf("WARN: failed to stop previous deployment %s: %v", existing.DeploymentID, err)
		}
	}

	dep := &domain.Deployment{
		DeploymentID: newDeploymentID(),
		AgentID:      agentID,
		VersionID:    versionID,
		Status:       domain.DeploymentStatusPending,
		CreatedBy:    userID,
		CreatedAt:    time.Now(),
	}
	if err := s.store.CreateDeployment(ctx, dep); err != nil {
		return nil, fmt.Errorf("failed to create deployment: %w", err)
	}

	if err := s.run(ctx, dep); err != nil {
		log.Printf("ERROR: deployment %s failed: %v", dep.DeploymentID, err)
		if uerr := s.store.UpdateDeploymentStopped(ctx, dep.DeploymentID, domain.DeploymentStatusFailed, err.Error()); uerr != nil {
			log.Printf("ERROR: failed to record deployment failure: %v", uerr)
		}
		dep.Status = domain.DeploymentStatusFailed
		dep.ErrorMessage = err.Error()
		return dep, nil
	}

	return s.store.GetDeployment(ctx, dep.DeploymentID)
}

// run walks a pending deployment through building, starting, and running.
func (s *Service) run(ctx context.Context, dep *domain.Deployment) error {
	if err := s.store.UpdateDeploymentStatus(ctx, dep.DeploymentID, domain.DeploymentStatusBuilding); err != nil {
		return fmt.Errorf("failed to update status: %w", err)
	}

	components, err := s.store.ListComponents(ctx, dep.VersionID)
	if err != nil {
		return fmt.Errorf("failed to load components: %w", err)
	}
	files := BuildWorkspace(components)

	imageID, err := s.runner.BuildImage(ctx, dep.AgentID, dep.VersionID, files)
	if err != nil {
		return fmt.Errorf("image build failed: %w", err)
	}

	if err := s.store.UpdateDeploymentStatus(ctx, dep.DeploymentID, domain.DeploymentStatusStarting); err != nil {
		return fmt.Errorf("failed to update status: %w", err)
	}

	containerID, port, err := s.runner.StartContainer(ctx, imageID, dep.DeploymentID)
	if err != nil {
		return fmt.Errorf("container start failed: %w", err)
	}

	if err := s.store.UpdateDeploymentStarted(ctx, dep.DeploymentID, containerID, imageID, port); err != nil {
		return fmt.Errorf("failed to record container: %w", err)
	}
	return nil
}

// Stop stops a running deployment, removes its container, and closes any
// live chat connections.
func (s *Service) Stop(ctx context.Context, deploymentID string) (*domain.Deployment, error) {
	dep, err := s.store.GetDeployment(ctx, deploymentID)
	if err != nil {
		return nil, fmt.Errorf("failed to load deployment: %w", err)
	}
	if dep == nil {
		return nil, fmt.Errorf("deployment %s not found", deploymentID)
	}
	if dep.Status != domain.DeploymentStatusRunning {
		return nil, fmt.Errorf("deployment is not running (status: %s)", dep.Status)
	}

	if err := s.store.UpdateDeploymentStatus(ctx, deploymentID, domain.DeploymentStatusStopping); err != nil {
		return nil, fmt.Errorf("failed to update status: %w", err)
	}

	s.conns.CloseDeployment(deploymentID)

	if dep.ContainerID != "" {
		if err := s.runner.StopContainer(ctx, dep.ContainerID); err != nil {
			// Container may already be gone.
			log.Printf("WARN: failed to stop container %s: %v", dep.ContainerID, err)
		}
	}

	if err := s.store.UpdateDeploymentStopped(ctx, deploymentID, domain.DeploymentStatusStopped, ""); err != nil {
		return nil, fmt.Errorf("failed to record stop: %w", err)
	}
	return s.store.GetDeployment(ctx, deploymentID)
}

// StopAll stops every running deployment. Used during shutdown.
func (s *Service) StopAll(ctx context.Context) error {
	running, err := s.store.ListRunningDeployments(ctx)
	if err != nil {
		return fmt.Errorf("failed to list running deployments: %w", err)
	}
	for _, dep := range running {
		if _, err := s.Stop(ctx, dep.DeploymentID); err != nil {
			log.Printf("ERROR: failed to stop deployment %s: %v", dep.DeploymentID, err)
		}
	}
	return nil
}

// ContainerStatus reports the runner's view of a running deployment's
// container. Returns empty for deployments without a container.
func (s *Service) ContainerStatus(ctx context.Context, dep *domain.Deployment) string {
	if dep.ContainerID == "" || dep.Status != domain.DeploymentStatusRunning {
		return ""
	}
	status, err := s.runner.ContainerStatus(ctx, dep.ContainerID)
	if err != nil {
		return "not_found"
	}
	return status
}
