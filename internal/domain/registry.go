package domain

import (
	"encoding/json"
	"time"
)

// RegistryType classifies a shared registry component.
type RegistryType string

const (
	RegistryTypeSkill  RegistryType = "skill"
	RegistryTypeTool   RegistryType = "tool"
	RegistryTypeMemory RegistryType = "memory"
)

// Visibility controls who can discover a registry component.
type Visibility string

const (
	VisibilityPrivate      Visibility = "private"
	VisibilityOrganization Visibility = "organization"
	VisibilityPublic       Visibility = "public"
)

// RegistryStatus is the publication state of a registry component.
type RegistryStatus string

const (
	RegistryStatusDraft      RegistryStatus = "draft"
	RegistryStatusPublished  RegistryStatus = "published"
	RegistryStatusDeprecated RegistryStatus = "deprecated"
	RegistryStatusRetired    RegistryStatus = "retired"
)

// Entitlement controls how agents obtain elevated access to a component.
type Entitlement string

const (
	EntitlementOpen            Entitlement = "open"
	EntitlementRequestRequired Entitlement = "request_required"
	EntitlementRestricted      Entitlement = "restricted"
)

// RegistryComponent is a shared, independently versioned component in the
// company registry.
type RegistryComponent struct {
	ComponentID       string          `json:"component_id"`
	Type              RegistryType    `json:"type"`
	Name              string          `json:"name"`
	Description       string          `json:"description,omitempty"`
	Content           string          `json:"content,omitempty"`
	Tags              []string        `json:"tags,omitempty"`
	OwnerID           string          `json:"owner_id"`
	Visibility        Visibility      `json:"visibility"`
	Status            RegistryStatus  `json:"status"`
	Entitlement       Entitlement     `json:"entitlement_type"`
	Version           string          `json:"version"`
	Metadata          json.RawMessage `json:"metadata,omitempty"`
	PublishedAt       *time.Time      `json:"published_at,omitempty"`
	DeprecationReason string          `json:"deprecation_reason,omitempty"`
	CreatedAt         time.Time       `json:"created_at"`
	UpdatedAt         time.Time       `json:"updated_at"`
	DeletedAt         *time.Time      `json:"deleted_at,omitempty"`
}

// Snapshot is a point-in-time copy of a registry component's editable state.
type Snapshot struct {
	SnapshotID   string    `json:"snapshot_id"`
	ComponentID  string    `json:"component_id"`
	VersionLabel string    `json:"version_label"`
	Name         string    `json:"name"`
	Description  string    `json:"description,omitempty"`
	Content      string    `json:"content,omitempty"`
	CreatedBy    string    `json:"created_by,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}

// AccessLevel is the level of access an agent holds on a registry component.
// Viewer can read metadata, executor can use the component, contributor can
// modify it.
type AccessLevel string

const (
	AccessLevelViewer      AccessLevel = "viewer"
	AccessLevelExecutor    AccessLevel = "executor"
	AccessLevelContributor AccessLevel = "contributor"
)

// CanExecute reports whether the level permits using the component.
func (l AccessLevel) CanExecute() bool {
	return l == AccessLevelExecutor || l == AccessLevelContributor
}

// CanModify reports whether the level permits editing the component.
func (l AccessLevel) CanModify() bool {
	return l == AccessLevelContributor
}

// Grant gives one agent a level of access to one registry component.
type Grant struct {
	GrantID     string      `json:"grant_id"`
	ComponentID string      `json:"component_id"`
	AgentID     string      `json:"agent_id"`
	Level       AccessLevel `json:"access_level"`
	GrantedBy   string      `json:"granted_by,omitempty"`
	GrantedAt   time.Time   `json:"granted_at"`
	ExpiresAt   *time.Time  `json:"expires_at,omitempty"`
	RevokedAt   *time.Time  `json:"revoked_at,omitempty"`
}

// IsActive reports whether the grant is neither revoked nor expired.
func (g *Grant) IsActive() bool {
	if g.RevokedAt != nil {
		return false
	}
	if g.ExpiresAt != nil && g.ExpiresAt.Before(time.Now()) {
		return false
	}
	return true
}

// RequestStatus is the state of a component access request.
type RequestStatus string

const (
	RequestStatusPending  RequestStatus = "pending"
	RequestStatusApproved RequestStatus = "approved"
	RequestStatusDenied   RequestStatus = "denied"
)

// AccessRequest is a pending or resolved request for elevated access to a
// registry component on behalf of an agent.
type AccessRequest struct {
	RequestID      string        `json:"request_id"`
	ComponentID    string        `json:"component_id"`
	AgentID        string        `json:"agent_id"`
	RequestedLevel AccessLevel   `json:"requested_level"`
	RequestedBy    string        `json:"requested_by,omitempty"`
	RequestedAt    time.Time     `json:"requested_at"`
	Status         RequestStatus `json:"status"`
	ResolvedBy     string        `json:"resolved_by,omitempty"`
	ResolvedAt     *time.Time    `json:"resolved_at,omitempty"`
	DenialReason   string        `json:"denial_reason,omitempty"`
}

// RegistryRef links an agent to a registry component it uses.
type RegistryRef struct {
	RefID       string    `json:"ref_id"`
	AgentID     string    `json:"agent_id"`
	ComponentID string    `json:"component_id"`
	AddedAt     time.Time `json:"added_at"`
	AddedBy     string    `json:"added_by,omitempty"`
}
