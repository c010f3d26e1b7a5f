package api

import (
	"log"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/agent-hr/agenthr/internal/domain"
)

// AgentRequest is the request body for creating or updating an agent.
type AgentRequest struct {
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Status      string   `json:"status"`
	Tags        []string `json:"tags"`
	Department  string   `json:"department"`
	UsageNotes  string   `json:"usage_notes"`
}

func validAgentStatus(s string) bool {
	switch domain.AgentStatus(s) {
	case domain.AgentStatusDraft, domain.AgentStatusActive, domain.AgentStatusDeprecated:
		return true
	}
	return false
}

// CreateAgent creates a new agent in draft status.
// POST /api/agents
func (h *Handler) CreateAgent(c echo.Context) error {
	ctx := c.Request().Context()

	var req AgentRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid request body"})
	}
	if req.Name == "" {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "name is required"})
	}

	now := time.Now()
	agent := &domain.Agent{
		AgentID:     newID("agt"),
		Name:        req.Name,
		Description: req.Description,
		Status:      domain.AgentStatusDraft,
		Tags:        req.Tags,
		Department:  req.Department,
		UsageNotes:  req.UsageNotes,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if err := h.store.CreateAgent(ctx, agent); err != nil {
		log.Printf("ERROR: failed to create agent: %v", err)
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "failed to create agent"})
	}

	return c.JSON(http.StatusCreated, agent)
}

// ListAgents lists all agents.
// GET /api/agents
func (h *Handler) ListAgents(c echo.Context) error {
	ctx := c.Request().Context()

	agents, err := h.store.ListAgents(ctx)
	if err != nil {
		log.Printf("ERROR: failed to list agents: %v", err)
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "failed to list agents"})
	}

	return c.JSON(http.StatusOK, map[string]interface{}{"agents": agents})
}

// GetAgent gets a specific agent by ID.
// GET /api/agents/:id
func (h *Handler) GetAgent(c echo.Context) error {
	ctx := c.Request().Context()
	agentID := c.Param("id")

	agent, err := h.store.GetAgent(ctx, agentID)
	if err != nil {
		log.Printf("ERROR: failed to get agent: %v", err)
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "failed to get agent"})
	}
	if agent == nil {
		return c.JSON(http.StatusNotFound, map[string]string{"error": "agent not found"})
	}

	return c.JSON(http.StatusOK, agent)
}

// AgentUpdateRequest is the request body for partial agent updates. Pointer
// fields distinguish "not provided" from an explicit empty value, so clearable
// attributes can be blanked.
type AgentUpdateRequest struct {
	Name        *string  `json:"name"`
	Description *string  `json:"description"`
	Status      *string  `json:"status"`
	Tags        []string `json:"tags"`
	Department  *string  `json:"department"`
	UsageNotes  *string  `json:"usage_notes"`
}

// UpdateAgent updates an agent's metadata. Only fields present in the request
// are touched; an explicit empty string clears the field.
// PUT /api/agents/:id
func (h *Handler) UpdateAgent(c echo.Context) error {
	ctx := c.Request().Context()
	agentID := c.Param("id")

	agent, err := h.store.GetAgent(ctx, agentID)
	if err != nil {
		log.Printf("ERROR: failed to get agent: %v", err)
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "failed to get agent"})
	}
	if agent == nil {
		return c.JSON(http.StatusNotFound, map[string]string{"error": "agent not found"})
	}

	var req AgentUpdateRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid request body"})
	}

	if req.Name != nil {
		if *req.Name == "" {
			return c.JSON(http.StatusBadRequest, map[string]string{"error": "name cannot be empty"})
		}
		agent.Name = *req.Name
	}
	if req.Description != nil {
		agent.Description = *req.Description
	}
	if req.Status != nil {
		if !validAgentStatus(*req.Status) {
			return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid status"})
		}
		agent.Status = domain.AgentStatus(*req.Status)
	}
	if req.Tags != nil {
		agent.Tags = req.Tags
	}
	if req.Department != nil {
		agent.Department = *req.Department
	}
	if req.UsageNotes != nil {
		agent.UsageNotes = *req.UsageNotes
	}

	if err := h.store.UpdateAgent(ctx, agent); err != nil {
		log.Printf("ERROR: failed to update agent: %v", err)
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "failed to update agent"})
	}

	updated, err := h.store.GetAgent(ctx, agentID)
	if err != nil {
		log.Printf("ERROR: failed to reload agent: %v", err)
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "failed to update agent"})
	}
	return c.JSON(http.StatusOK, updated)
}

// DeleteAgent soft-deletes an agent. Running deployments are stopped first.
// DELETE /api/agents/:id
func (h *Handler) DeleteAgent(c echo.Context) error {
	ctx := c.Request().Context()
	agentID := c.Param("id")

	agent, err := h.store.GetAgent(ctx, agentID)
	if err != nil {
		log.Printf("ERROR: failed to get agent: %v", err)
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "failed to get agent"})
	}
	if agent == nil {
		return c.JSON(http.StatusNotFound, map[string]string{"error": "agent not found"})
	}

	if active, err := h.store.GetActiveDeployment(ctx, agentID); err == nil && active != nil {
		if _, err := h.deployer.Stop(ctx, active.DeploymentID); err != nil {
			log.Printf("WARN: failed to stop deployment %s: %v", active.DeploymentID, err)
		}
	}

	if err := h.store.SoftDeleteAgent(ctx, agentID); err != nil {
		log.Printf("ERROR: failed to delete agent: %v", err)
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "failed to delete agent"})
	}

	return c.JSON(http.StatusOK, map[string]string{"status": "deleted"})
}
