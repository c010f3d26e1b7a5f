package api

import (
	"log"
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/agent-hr/agenthr/internal/domain"
	"github.com/agent-hr/agenthr/internal/runtime"
)

// DeployRequest is the request body for deploying an agent.
type DeployRequest struct {
	VersionID string `json:"version_id"`
}

// DeployAgent builds and starts a container for an agent version. When no
// version is given, the agent's current version is deployed.
// POST /api/agents/:id/deploy
func (h *Handler) DeployAgent(c echo.Context) error {
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

	var req DeployRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid request body"})
	}
	versionID := req.VersionID
	if versionID == "" {
		versionID = agent.CurrentVersionID
	}
	if versionID == "" {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "agent has no version to deploy"})
	}

	dep, err := h.deployer.Deploy(ctx, agentID, versionID, userID(c.Request().Header.Get("X-User-ID")))
	if err != nil {
		log.Printf("ERROR: failed to deploy agent: %v", err)
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "failed to deploy agent"})
	}

	return c.JSON(http.StatusCreated, dep)
}

// ListDeployments lists an agent's deployments, optionally filtered by
// ?status=.
// GET /api/agents/:id/deployments
func (h *Handler) ListDeployments(c echo.Context) error {
	ctx := c.Request().Context()
	agentID := c.Param("id")

	deployments, err := h.store.ListDeployments(ctx, agentID, domain.DeploymentStatus(c.QueryParam("status")))
	if err != nil {
		log.Printf("ERROR: failed to list deployments: %v", err)
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "failed to list deployments"})
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"deployments": deployments})
}

// GetActiveDeployment returns an agent's running deployment, if any.
// GET /api/agents/:id/deployments/active
func (h *Handler) GetActiveDeployment(c echo.Context) error {
	ctx := c.Request().Context()
	agentID := c.Param("id")

	dep, err := h.store.GetActiveDeployment(ctx, agentID)
	if err != nil {
		log.Printf("ERROR: failed to get active deployment: %v", err)
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "failed to get deployment"})
	}
	if dep == nil {
		return c.JSON(http.StatusNotFound, map[string]string{"error": "no active deployment"})
	}
	return c.JSON(http.StatusOK, dep)
}

// loadDeployment fetches a deployment or writes the error response.
func (h *Handler) loadDeployment(c echo.Context) (*domain.Deployment, bool) {
	ctx := c.Request().Context()
	dep, err := h.store.GetDeployment(ctx, c.Param("id"))
	if err != nil {
		log.Printf("ERROR: failed to get deployment: %v", err)
		c.JSON(http.StatusInternalServerError, map[string]string{"error": "failed to get deployment"})
		return nil, false
	}
	if dep == nil {
		c.JSON(http.StatusNotFound, map[string]string{"error": "deployment not found"})
		return nil, false
	}
	return dep, true
}

// requireRunning writes the error response unless the deployment is running
// with an assigned port.
func requireRunning(c echo.Context, dep *domain.Deployment) bool {
	if dep.Status != domain.DeploymentStatusRunning {
		c.JSON(http.StatusBadRequest, map[string]string{"error": "deployment is not running (status: " + string(dep.Status) + ")"})
		return false
	}
	if dep.Port == 0 {
		c.JSON(http.StatusInternalServerError, map[string]string{"error": "deployment has no assigned port"})
		return false
	}
	return true
}

// GetDeployment returns one deployment with its container status.
// GET /api/deployments/:id
func (h *Handler) GetDeployment(c echo.Context) error {
	ctx := c.Request().Context()
	dep, ok := h.loadDeployment(c)
	if !ok {
		return nil
	}

	resp := map[string]interface{}{"deployment": dep}
	if status := h.deployer.ContainerStatus(ctx, dep); status != "" {
		resp["container_status"] = status
	}
	if h.links != nil {
		resp["chat_links"] = h.links.DeploymentLinkCount(dep.DeploymentID)
	}
	return c.JSON(http.StatusOK, resp)
}

// StopDeployment stops a running deployment.
// POST /api/deployments/:id/stop
func (h *Handler) StopDeployment(c echo.Context) error {
	ctx := c.Request().Context()
	dep, ok := h.loadDeployment(c)
	if !ok {
		return nil
	}
	if dep.Status != domain.DeploymentStatusRunning {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "deployment is not running (status: " + string(dep.Status) + ")"})
	}

	stopped, err := h.deployer.Stop(ctx, dep.DeploymentID)
	if err != nil {
		log.Printf("ERROR: failed to stop deployment: %v", err)
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "failed to stop deployment"})
	}
	return c.JSON(http.StatusOK, stopped)
}

// StopAllDeployments stops every running deployment.
// POST /api/deployments/stop-all
func (h *Handler) StopAllDeployments(c echo.Context) error {
	ctx := c.Request().Context()

	if err := h.deployer.StopAll(ctx); err != nil {
		log.Printf("ERROR: failed to stop deployments: %v", err)
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "failed to stop deployments"})
	}
	return c.JSON(http.StatusOK, map[string]string{"status": "stopped"})
}

// ChatRequest is the request body for the non-streaming chat endpoint.
type ChatRequest struct {
	Message        string `json:"message"`
	ConversationID string `json:"conversation_id"`
}

// ChatWithDeployment proxies one chat message to the deployment's container
// and returns the complete reply.
// POST /api/deployments/:id/chat
func (h *Handler) ChatWithDeployment(c echo.Context) error {
	ctx := c.Request().Context()
	dep, ok := h.loadDeployment(c)
	if !ok {
		return nil
	}
	if !requireRunning(c, dep) {
		return nil
	}

	var req ChatRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid request body"})
	}
	if req.Message == "" {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "message is required"})
	}
	conversationID := req.ConversationID
	if conversationID == "" {
		conversationID = uuid.New().String()
	}

	resp, err := h.runtime.Chat(ctx, dep.Port, &runtime.ChatRequest{
		Message:        req.Message,
		ConversationID: conversationID,
	})
	if err != nil {
		log.Printf("ERROR: chat with deployment %s failed: %v", dep.DeploymentID, err)
		return c.JSON(http.StatusServiceUnavailable, map[string]string{"error": "failed to reach agent container"})
	}
	if resp.ConversationID == "" {
		resp.ConversationID = conversationID
	}
	return c.JSON(http.StatusOK, resp)
}

// GetWorkingMemory returns the container's working memory entries.
// GET /api/deployments/:id/working-memory
func (h *Handler) GetWorkingMemory(c echo.Context) error {
	ctx := c.Request().Context()
	dep, ok := h.loadDeployment(c)
	if !ok {
		return nil
	}
	if !requireRunning(c, dep) {
		return nil
	}

	entries, err := h.runtime.WorkingMemory(ctx, dep.Port)
	if err != nil {
		log.Printf("ERROR: failed to fetch working memory: %v", err)
		return c.JSON(http.StatusServiceUnavailable, map[string]string{"error": "failed to reach agent container"})
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"entries": entries})
}

// WorkingMemoryRequest is the request body for injecting working memory.
type WorkingMemoryRequest struct {
	Name    string `json:"name"`
	Content string `json:"content"`
}

// AddWorkingMemory injects an entry into the container's working memory.
// POST /api/deployments/:id/working-memory
func (h *Handler) AddWorkingMemory(c echo.Context) error {
	ctx := c.Request().Context()
	dep, ok := h.loadDeployment(c)
	if !ok {
		return nil
	}
	if !requireRunning(c, dep) {
		return nil
	}

	var req WorkingMemoryRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid request body"})
	}
	if req.Content == "" {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "content is required"})
	}

	entries, err := h.runtime.InjectContext(ctx, dep.Port, req.Name, req.Content)
	if err != nil {
		log.Printf("ERROR: failed to inject working memory: %v", err)
		return c.JSON(http.StatusServiceUnavailable, map[string]string{"error": "failed to reach agent container"})
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"entries": entries})
}

// ClearWorkingMemory clears the container's working memory.
// DELETE /api/deployments/:id/working-memory
func (h *Handler) ClearWorkingMemory(c echo.Context) error {
	ctx := c.Request().Context()
	dep, ok := h.loadDeployment(c)
	if !ok {
		return nil
	}
	if !requireRunning(c, dep) {
		return nil
	}

	if err := h.runtime.ClearWorkingMemory(ctx, dep.Port); err != nil {
		log.Printf("ERROR: failed to clear working memory: %v", err)
		return c.JSON(http.StatusServiceUnavailable, map[string]string{"error": "failed to reach agent container"})
	}
	return c.JSON(http.StatusOK, map[string]string{"status": "cleared"})
}
