// Package api provides the HTTP handlers for the Agent-HR server.
package api

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/agent-hr/agenthr/internal/config"
	"github.com/agent-hr/agenthr/internal/deploy"
	"github.com/agent-hr/agenthr/internal/policy"
	"github.com/agent-hr/agenthr/internal/runtime"
	"github.com/agent-hr/agenthr/internal/store"
	"github.com/agent-hr/agenthr/internal/ws"
)

// Handler handles HTTP requests.
type Handler struct {
	store    store.Store
	deployer *deploy.Service
	runtime  *runtime.Client
	policy   *policy.Engine
	links    *ws.Registry
	config   *config.Config
}

// NewHandler creates a new handler.
func NewHandler(st store.Store, deployer *deploy.Service, rt *runtime.Client, engine *policy.Engine, links *ws.Registry, cfg *config.Config) *Handler {
	return &Handler{
		store:    st,
		deployer: deployer,
		runtime:  rt,
		policy:   engine,
		links:    links,
		config:   cfg,
	}
}

// RegisterRoutes registers routes with the echo server.
func (h *Handler) RegisterRoutes(e *echo.Echo) {
	// Agents
	e.POST("/api/agents", h.CreateAgent)
	e.GET("/api/agents", h.ListAgents)
	e.GET("/api/agents/:id", h.GetAgent)
	e.PUT("/api/agents/:id", h.UpdateAgent)
	e.DELETE("/api/agents/:id", h.DeleteAgent)

	// Versions and uploads
	e.POST("/api/agents/:id/upload", h.UploadBundle)
	e.POST("/api/agents/:id/export", h.ExportAgent)
	e.GET("/api/agents/:id/versions", h.ListVersions)
	e.POST("/api/agents/:id/rollback", h.RollbackVersion)
	e.GET("/api/versions/:id/components", h.ListComponents)
	e.GET("/api/versions/:id/components/:component_id", h.GetComponent)
	e.PATCH("/api/versions/:id/components/:component_id", h.EditComponent)

	// Component registry
	e.POST("/api/registry/components", h.CreateRegistryComponent)
	e.GET("/api/registry/components", h.ListRegistryComponents)
	e.GET("/api/registry/components/:id", h.GetRegistryComponent)
	e.PUT("/api/registry/components/:id", h.UpdateRegistryComponent)
	e.DELETE("/api/registry/components/:id", h.DeleteRegistryComponent)
	e.POST("/api/registry/components/:id/publish", h.PublishRegistryComponent)
	e.POST("/api/registry/components/:id/deprecate", h.DeprecateRegistryComponent)
	e.GET("/api/registry/components/:id/snapshots", h.ListSnapshots)

	// Access control
	e.GET("/api/registry/components/:id/access", h.CheckAccess)
	e.POST("/api/registry/components/:id/grants", h.CreateGrant)
	e.GET("/api/registry/components/:id/grants", h.ListGrants)
	e.DELETE("/api/grants/:id", h.RevokeGrant)
	e.POST("/api/registry/components/:id/access-requests", h.CreateAccessRequest)
	e.GET("/api/registry/components/:id/access-requests", h.ListAccessRequests)
	e.POST("/api/access-requests/:id/approve", h.ApproveAccessRequest)
	e.POST("/api/access-requests/:id/deny", h.DenyAccessRequest)

	// Registry refs
	e.POST("/api/agents/:id/registry-refs", h.CreateRegistryRef)
	e.GET("/api/agents/:id/registry-refs", h.ListRegistryRefs)

	// Deployments
	e.POST("/api/agents/:id/deploy", h.DeployAgent)
	e.GET("/api/agents/:id/deployments", h.ListDeployments)
	e.GET("/api/agents/:id/deployments/active", h.GetActiveDeployment)
	e.GET("/api/deployments/:id", h.GetDeployment)
	e.POST("/api/deployments/:id/stop", h.StopDeployment)
	e.POST("/api/deployments/stop-all", h.StopAllDeployments)
	e.POST("/api/deployments/:id/chat", h.ChatWithDeployment)
	e.GET("/api/deployments/:id/working-memory", h.GetWorkingMemory)
	e.POST("/api/deployments/:id/working-memory", h.AddWorkingMemory)
	e.DELETE("/api/deployments/:id/working-memory", h.ClearWorkingMemory)

	e.GET("/health", h.Health)
}

// Health returns health status.
func (h *Handler) Health(c echo.Context) error {
	resp := map[string]interface{}{
		"status":  "healthy",
		"version": "0.1.0",
	}
	if h.links != nil {
		resp["chat_links"] = h.links.LinkCount()
	}
	return c.JSON(http.StatusOK, resp)
}

// APIKeyMiddleware rejects requests without the configured X-API-Key. A blank
// configured key disables the check.
func APIKeyMiddleware(apiKey string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if apiKey == "" || c.Path() == "/health" {
				return next(c)
			}
			if c.Request().Header.Get("X-API-Key") != apiKey {
				return c.JSON(http.StatusUnauthorized, map[string]string{"error": "invalid api key"})
			}
			return next(c)
		}
	}
}
