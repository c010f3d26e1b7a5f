package api

import (
	"log"
	"net/http"
	"regexp"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/agent-hr/agenthr/internal/bundle"
	"github.com/agent-hr/agenthr/internal/deploy"
	"github.com/agent-hr/agenthr/internal/domain"
)

// ExportRequest is the request body for exporting an agent bundle.
type ExportRequest struct {
	ExcludedComponentIDs []string `json:"excluded_component_ids"`
}

var (
	filenameStrip    = regexp.MustCompile(`[^\w\s-]`)
	filenameCollapse = regexp.MustCompile(`[\s_]+`)
)

// exportFilename builds a safe download filename from an agent name.
func exportFilename(agentName string) string {
	name := filenameStrip.ReplaceAllString(strings.ToLower(agentName), "")
	name = filenameCollapse.ReplaceAllString(name, "-")
	name = strings.Trim(name, "-")
	if name == "" {
		name = "agent-export"
	}
	return name + ".zip"
}

// ExportAgent downloads the agent's current version as a zip bundle, the
// inverse of UploadBundle. Excluded component IDs are left out of the archive.
// POST /api/agents/:id/export
func (h *Handler) ExportAgent(c echo.Context) error {
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
	if agent.CurrentVersionID == "" {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "agent has no current version"})
	}

	var req ExportRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid request body"})
	}
	excluded := make(map[string]bool, len(req.ExcludedComponentIDs))
	for _, id := range req.ExcludedComponentIDs {
		excluded[id] = true
	}

	components, err := h.store.ListComponents(ctx, agent.CurrentVersionID)
	if err != nil {
		log.Printf("ERROR: failed to list components: %v", err)
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "failed to export agent"})
	}

	kept := make([]domain.Component, 0, len(components))
	for _, comp := range components {
		if !excluded[comp.ComponentID] {
			kept = append(kept, comp)
		}
	}

	data, err := bundle.BuildZip(deploy.BuildWorkspace(kept))
	if err != nil {
		log.Printf("ERROR: failed to build export archive: %v", err)
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "failed to export agent"})
	}

	c.Response().Header().Set(echo.HeaderContentDisposition,
		`attachment; filename="`+exportFilename(agent.Name)+`"`)
	return c.Blob(http.StatusOK, "application/zip", data)
}
