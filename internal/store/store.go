// Package store defines the storage interface and implementations.
package store

import (
	"context"

	"github.com/agent-hr/agenthr/internal/domain"
)

// Store defines the interface for data persistence.
type Store interface {
	// Agent operations
	CreateAgent(ctx context.Context, agent *domain.Agent) error
	GetAgent(ctx context.Context, agentID string) (*domain.Agent, error)
	ListAgents(ctx context.Context) ([]domain.Agent, error)
	UpdateAgent(ctx context.Context, agent *domain.Agent) error
	SoftDeleteAgent(ctx context.Context, agentID string) error
	SetCurrentVersion(ctx context.Context, agentID, versionID string) error

	// Version operations
	CreateVersion(ctx context.Context, version *domain.AgentVersion) error
	GetVersion(ctx context.Context, versionID string) (*domain.AgentVersion, error)
	ListVersions(ctx context.Context, agentID string) ([]domain.AgentVersion, error)

	// Component operations (versioned agent components)
	CreateComponent(ctx context.Context, component *domain.Component) error
	ListComponents(ctx context.Context, versionID string) ([]domain.Component, error)

	// Registry operations (shared component registry)
	CreateRegistryComponent(ctx context.Context, rc *domain.RegistryComponent) error
	GetRegistryComponent(ctx context.Context, componentID string) (*domain.RegistryComponent, error)
	ListRegistryComponents(ctx context.Context) ([]domain.RegistryComponent, error)
	UpdateRegistryComponent(ctx context.Context, rc *domain.RegistryComponent) error
	SoftDeleteRegistryComponent(ctx context.Context, componentID string) error
	CreateSnapshot(ctx context.Context, snap *domain.Snapshot) error
	ListSnapshots(ctx context.Context, componentID string) ([]domain.Snapshot, error)

	// Grant operations
	CreateGrant(ctx context.Context, grant *domain.Grant) error
	GetActiveGrant(ctx context.Context, componentID, agentID string) (*domain.Grant, error)
	ListGrants(ctx context.Context, componentID string) ([]domain.Grant, error)
	RevokeGrant(ctx context.Context, grantID string) error

	// Access request operations
	CreateAccessRequest(ctx context.Context, req *domain.AccessRequest) error
	GetAccessRequest(ctx context.Context, requestID string) (*domain.AccessRequest, error)
	ListAccessRequests(ctx context.Context, componentID string, status domain.RequestStatus) ([]domain.AccessRequest, error)
	ResolveAccessRequest(ctx context.Context, requestID string, status domain.RequestStatus, resolvedBy, denialReason string) error

	// Registry ref operations (agent -> registry component links)
	CreateRegistryRef(ctx context.Context, ref *domain.RegistryRef) error
	ListRegistryRefs(ctx context.Context, agentID string) ([]domain.RegistryRef, error)

	// Deployment operations
	CreateDeployment(ctx context.Context, dep *domain.Deployment) error
	GetDeployment(ctx context.Context, deploymentID string) (*domain.Deployment, error)
	ListDeployments(ctx context.Context, agentID string, status domain.DeploymentStatus) ([]domain.Deployment, error)
	ListRunningDeployments(ctx context.Context) ([]domain.Deployment, error)
	GetActiveDeployment(ctx context.Context, agentID string) (*domain.Deployment, error)
	UpdateDeploymentStatus(ctx context.Context, deploymentID string, status domain.DeploymentStatus) error
	UpdateDeploymentStarted(ctx context.Context, deploymentID, containerID, imageID string, port int) error
	UpdateDeploymentStopped(ctx context.Context, deploymentID string, status domain.DeploymentStatus, errMsg string) error

	// Lifecycle
	Close() error
}
