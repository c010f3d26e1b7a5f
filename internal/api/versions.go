package api

import (
	"io"
	"log"
	"net/http"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/labstack/echo/v4"

	"github.com/agent-hr/agenthr/internal/bundle"
	"github.com/agent-hr/agenthr/internal/domain"
)

// UploadBundle uploads an agent configuration bundle (a zip archive or a
// single text file) and creates a new version from its parsed components.
// POST /api/agents/:id/upload
func (h *Handler) UploadBundle(c echo.Context) error {
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

	fileHeader, err := c.FormFile("file")
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "file is required"})
	}
	if fileHeader.Size > bundle.MaxUploadSize {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "file too large"})
	}

	src, err := fileHeader.Open()
	if err != nil {
		log.Printf("ERROR: failed to open upload: %v", err)
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "failed to read upload"})
	}
	defer src.Close()

	content, err := io.ReadAll(io.LimitReader(src, bundle.MaxUploadSize+1))
	if err != nil {
		log.Printf("ERROR: failed to read upload: %v", err)
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "failed to read upload"})
	}
	if len(content) > bundle.MaxUploadSize {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "file too large"})
	}

	var files map[string]string
	if strings.HasSuffix(fileHeader.Filename, ".zip") {
		files, err = bundle.ExtractZip(content)
		if err != nil {
			return c.JSON(http.StatusBadRequest, map[string]string{"error": err.Error()})
		}
	} else {
		if !utf8.Valid(content) {
			return c.JSON(http.StatusBadRequest, map[string]string{"error": "file must be text-based"})
		}
		files = map[string]string{fileHeader.Filename: string(content)}
	}

	parsed := bundle.Parse(files)
	components := parsed.Components()
	if len(components) == 0 {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "no recognizable components in upload"})
	}

	version, _, err := h.createVersion(c, agentID, agent.CurrentVersionID, domain.ChangeTypeUpload, c.FormValue("summary"), components)
	if err != nil {
		log.Printf("ERROR: failed to create version: %v", err)
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "failed to create version"})
	}

	return c.JSON(http.StatusCreated, map[string]interface{}{
		"version":    version,
		"skills":     len(parsed.Skills),
		"mcp_tools":  len(parsed.MCPTools),
		"memory":     len(parsed.Memory),
		"agents":     len(parsed.Agents),
		"components": len(components),
	})
}

// createVersion persists a new version with its components and makes it the
// agent's current version. The created components are returned in input order.
func (h *Handler) createVersion(c echo.Context, agentID, parentID string, changeType domain.ChangeType, summary string, components []bundle.Parsed) (*domain.AgentVersion, []domain.Component, error) {
	ctx := c.Request().Context()

	existing, err := h.store.ListVersions(ctx, agentID)
	if err != nil {
		return nil, nil, err
	}

	version := &domain.AgentVersion{
		VersionID:       newID("ver"),
		AgentID:         agentID,
		VersionNumber:   len(existing) + 1,
		ParentVersionID: parentID,
		ChangeType:      changeType,
		ChangeSummary:   summary,
		CreatedAt:       time.Now(),
	}
	if err := h.store.CreateVersion(ctx, version); err != nil {
		return nil, nil, err
	}

	created := make([]domain.Component, 0, len(components))
	for _, p := range components {
		component := &domain.Component{
			ComponentID: newID("cmp"),
			VersionID:   version.VersionID,
			Type:        p.Type,
			Name:        p.Name,
			Description: p.Description,
			Content:     p.Content,
			Config:      p.Config,
			SourcePath:  p.SourcePath,
			MemoryType:  p.MemoryType,
		}
		if err := h.store.CreateComponent(ctx, component); err != nil {
			return nil, nil, err
		}
		created = append(created, *component)
	}

	if err := h.store.SetCurrentVersion(ctx, agentID, version.VersionID); err != nil {
		return nil, nil, err
	}
	return version, created, nil
}

// ListVersions lists an agent's version history, newest first.
// GET /api/agents/:id/versions
func (h *Handler) ListVersions(c echo.Context) error {
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

	versions, err := h.store.ListVersions(ctx, agentID)
	if err != nil {
		log.Printf("ERROR: failed to list versions: %v", err)
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "failed to list versions"})
	}

	return c.JSON(http.StatusOK, map[string]interface{}{
		"versions":           versions,
		"current_version_id": agent.CurrentVersionID,
	})
}

// RollbackRequest is the request body for rolling an agent back to an
// earlier version.
type RollbackRequest struct {
	VersionID string `json:"version_id"`
	Summary   string `json:"summary"`
}

// RollbackVersion creates a new version that copies an earlier version's
// components and makes it current.
// POST /api/agents/:id/rollback
func (h *Handler) RollbackVersion(c echo.Context) error {
	ctx := c.Request().Context()
	agentID := c.Param("id")

	var req RollbackRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid request body"})
	}
	if req.VersionID == "" {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "version_id is required"})
	}

	agent, err := h.store.GetAgent(ctx, agentID)
	if err != nil {
		log.Printf("ERROR: failed to get agent: %v", err)
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "failed to get agent"})
	}
	if agent == nil {
		return c.JSON(http.StatusNotFound, map[string]string{"error": "agent not found"})
	}

	target, err := h.store.GetVersion(ctx, req.VersionID)
	if err != nil {
		log.Printf("ERROR: failed to get version: %v", err)
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "failed to get version"})
	}
	if target == nil || target.AgentID != agentID {
		return c.JSON(http.StatusNotFound, map[string]string{"error": "version not found"})
	}

	targetComponents, err := h.store.ListComponents(ctx, req.VersionID)
	if err != nil {
		log.Printf("ERROR: failed to list components: %v", err)
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "failed to list components"})
	}

	copies := make([]bundle.Parsed, len(targetComponents))
	for i, tc := range targetComponents {
		copies[i] = bundle.Parsed{
			Name:        tc.Name,
			Type:        tc.Type,
			Description: tc.Description,
			Content:     tc.Content,
			Config:      tc.Config,
			SourcePath:  tc.SourcePath,
			MemoryType:  tc.MemoryType,
		}
	}

	summary := req.Summary
	if summary == "" {
		summary = "rollback to version " + req.VersionID
	}

	version, _, err := h.createVersion(c, agentID, agent.CurrentVersionID, domain.ChangeTypeRollback, summary, copies)
	if err != nil {
		log.Printf("ERROR: failed to create rollback version: %v", err)
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "failed to create version"})
	}

	return c.JSON(http.StatusCreated, map[string]interface{}{"version": version})
}

// ComponentUpdateRequest is the request body for editing a component.
// Empty fields keep the component's current value.
type ComponentUpdateRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Content     string `json:"content"`
}

// GetComponent gets one component of a version.
// GET /api/versions/:id/components/:component_id
func (h *Handler) GetComponent(c echo.Context) error {
	ctx := c.Request().Context()

	components, err := h.store.ListComponents(ctx, c.Param("id"))
	if err != nil {
		log.Printf("ERROR: failed to list components: %v", err)
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "failed to get component"})
	}
	for _, comp := range components {
		if comp.ComponentID == c.Param("component_id") {
			return c.JSON(http.StatusOK, comp)
		}
	}
	return c.JSON(http.StatusNotFound, map[string]string{"error": "component not found"})
}

// EditComponent edits one component of a version. Versions are immutable, so
// the edit lands in a new version that copies every component of the source
// version with the update applied, and that version becomes current.
// PATCH /api/versions/:id/components/:component_id
func (h *Handler) EditComponent(c echo.Context) error {
	ctx := c.Request().Context()
	versionID := c.Param("id")
	componentID := c.Param("component_id")

	version, err := h.store.GetVersion(ctx, versionID)
	if err != nil {
		log.Printf("ERROR: failed to get version: %v", err)
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "failed to get version"})
	}
	if version == nil {
		return c.JSON(http.StatusNotFound, map[string]string{"error": "version not found"})
	}

	var req ComponentUpdateRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid request body"})
	}

	components, err := h.store.ListComponents(ctx, versionID)
	if err != nil {
		log.Printf("ERROR: failed to list components: %v", err)
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "failed to list components"})
	}

	editedIdx := -1
	copies := make([]bundle.Parsed, len(components))
	for i, comp := range components {
		copies[i] = bundle.Parsed{
			Name:        comp.Name,
			Type:        comp.Type,
			Description: comp.Description,
			Content:     comp.Content,
			Config:      comp.Config,
			SourcePath:  comp.SourcePath,
			MemoryType:  comp.MemoryType,
		}
		if comp.ComponentID != componentID {
			continue
		}
		editedIdx = i
		if req.Name != "" {
			copies[i].Name = req.Name
		}
		if req.Description != "" {
			copies[i].Description = req.Description
		}
		if req.Content != "" {
			copies[i].Content = req.Content
		}
	}
	if editedIdx < 0 {
		return c.JSON(http.StatusNotFound, map[string]string{"error": "component not found"})
	}

	summary := "Edited component: " + components[editedIdx].Name
	newVersion, created, err := h.createVersion(c, version.AgentID, versionID, domain.ChangeTypeEdit, summary, copies)
	if err != nil {
		log.Printf("ERROR: failed to create edit version: %v", err)
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "failed to create version"})
	}

	return c.JSON(http.StatusCreated, map[string]interface{}{
		"version":   newVersion,
		"component": created[editedIdx],
	})
}

// ListComponents lists the components of a version.
// GET /api/versions/:id/components
func (h *Handler) ListComponents(c echo.Context) error {
	ctx := c.Request().Context()
	versionID := c.Param("id")

	version, err := h.store.GetVersion(ctx, versionID)
	if err != nil {
		log.Printf("ERROR: failed to get version: %v", err)
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "failed to get version"})
	}
	if version == nil {
		return c.JSON(http.StatusNotFound, map[string]string{"error": "version not found"})
	}

	components, err := h.store.ListComponents(ctx, versionID)
	if err != nil {
		log.Printf("ERROR: failed to list components: %v", err)
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "failed to list components"})
	}

	return c.JSON(http.StatusOK, map[string]interface{}{"components": components})
}
