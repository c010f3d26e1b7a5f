package domain

import "time"

// DeploymentStatus is the lifecycle state of an agent deployment.
type DeploymentStatus string

const (
	DeploymentStatusPending  DeploymentStatus = "pending"
	DeploymentStatusBuilding DeploymentStatus = "building"
	DeploymentStatusStarting DeploymentStatus = "starting"
	DeploymentStatusRunning  DeploymentStatus = "running"
	DeploymentStatusStopping DeploymentStatus = "stopping"
	DeploymentStatusStopped  DeploymentStatus = "stopped"
	DeploymentStatusFailed   DeploymentStatus = "failed"
)

// Deployment is one containerized run of an agent version.
type Deployment struct {
	DeploymentID string           `json:"deployment_id"`
	AgentID      string           `json:"agent_id"`
	VersionID    string           `json:"version_id"`
	Status       DeploymentStatus `json:"status"`
	ContainerID  string           `json:"container_id,omitempty"`
	ImageID      string           `json:"image_id,omitempty"`
	Port         int              `json:"port,omitempty"`
	ErrorMessage string           `json:"error_message,omitempty"`
	CreatedBy    string           `json:"created_by,omitempty"`
	CreatedAt    time.Time        `json:"created_at"`
	StartedAt    *time.Time       `json:"started_at,omitempty"`
	StoppedAt    *time.Time       `json:"stopped_at,omitempty"`
}
