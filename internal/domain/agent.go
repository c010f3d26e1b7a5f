// Package domain defines the core domain models for the Agent-HR platform.
package domain

import (
	"encoding/json"
	"time"
)

// AgentStatus represents the lifecycle status of an agent.
type AgentStatus string

const (
	AgentStatusDraft      AgentStatus = "draft"
	AgentStatusActive     AgentStatus = "active"
	AgentStatusDeprecated AgentStatus = "deprecated"
)

// ChangeType describes how an agent version came to exist.
type ChangeType string

const (
	ChangeTypeUpload   ChangeType = "upload"
	ChangeTypeEdit     ChangeType = "edit"
	ChangeTypeRollback ChangeType = "rollback"
)

// Agent is a managed agent configuration.
type Agent struct {
	AgentID          string      `json:"agent_id"`
	Name             string      `json:"name"`
	Description      string      `json:"description,omitempty"`
	Status           AgentStatus `json:"status"`
	Tags             []string    `json:"tags,omitempty"`
	Department       string      `json:"department,omitempty"`
	UsageNotes       string      `json:"usage_notes,omitempty"`
	CurrentVersionID string      `json:"current_version_id,omitempty"`
	CreatedAt        time.Time   `json:"created_at"`
	UpdatedAt        time.Time   `json:"updated_at"`
	DeletedAt        *time.Time  `json:"deleted_at,omitempty"`
}

// AgentVersion is one immutable snapshot of an agent's configuration.
type AgentVersion struct {
	VersionID       string     `json:"version_id"`
	AgentID         string     `json:"agent_id"`
	VersionNumber   int        `json:"version_number"`
	ParentVersionID string     `json:"parent_version_id,omitempty"`
	ChangeType      ChangeType `json:"change_type"`
	ChangeSummary   string     `json:"change_summary,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
}

// ComponentType classifies a versioned agent component.
type ComponentType string

const (
	ComponentTypeSkill   ComponentType = "skill"
	ComponentTypeMCPTool ComponentType = "mcp_tool"
	ComponentTypeMemory  ComponentType = "memory"
	ComponentTypeAgent   ComponentType = "agent"
)

// MemoryType classifies memory components following the cognitive memory
// model: working memory is runtime-scoped, short-term lasts one session,
// long-term persists, procedural holds how-to knowledge.
type MemoryType string

const (
	MemoryTypeWorking    MemoryType = "working"
	MemoryTypeShortTerm  MemoryType = "short_term"
	MemoryTypeLongTerm   MemoryType = "long_term"
	MemoryTypeProcedural MemoryType = "procedural"
)

// Component is one parsed component (skill, MCP tool, memory file, or
// sub-agent definition) belonging to an agent version.
type Component struct {
	ComponentID string          `json:"component_id"`
	VersionID   string          `json:"version_id"`
	Type        ComponentType   `json:"type"`
	Name        string          `json:"name"`
	Description string          `json:"description,omitempty"`
	Content     string          `json:"content,omitempty"`
	Config      json.RawMessage `json:"config,omitempty"`
	SourcePath  string          `json:"source_path,omitempty"`
	MemoryType  MemoryType      `json:"memory_type,omitempty"`
}
