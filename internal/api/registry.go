package api

import (
	"encoding/json"
	"log"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/agent-hr/agenthr/internal/domain"
)

// RegistryComponentRequest is the request body for creating or updating a
// registry component.
type RegistryComponentRequest struct {
	Type        string          `json:"type"`
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Content     string          `json:"content"`
	Tags        []string        `json:"tags"`
	Visibility  string          `json:"visibility"`
	Entitlement string          `json:"entitlement_type"`
	Version     string          `json:"version"`
	Metadata    json.RawMessage `json:"metadata"`
}

func validRegistryType(s string) bool {
	switch domain.RegistryType(s) {
	case domain.RegistryTypeSkill, domain.RegistryTypeTool, domain.RegistryTypeMemory:
		return true
	}
	return false
}

func validVisibility(s string) bool {
	switch domain.Visibility(s) {
	case domain.VisibilityPrivate, domain.VisibilityOrganization, domain.VisibilityPublic:
		return true
	}
	return false
}

func validEntitlement(s string) bool {
	switch domain.Entitlement(s) {
	case domain.EntitlementOpen, domain.EntitlementRequestRequired, domain.EntitlementRestricted:
		return true
	}
	return false
}

// CreateRegistryComponent creates a draft registry component owned by the
// requesting user.
// POST /api/registry/components
func (h *Handler) CreateRegistryComponent(c echo.Context) error {
	ctx := c.Request().Context()

	var req RegistryComponentRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid request body"})
	}
	if req.Name == "" {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "name is required"})
	}
	if !validRegistryType(req.Type) {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid type"})
	}

	visibility := domain.VisibilityPrivate
	if req.Visibility != "" {
		if !validVisibility(req.Visibility) {
			return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid visibility"})
		}
		visibility = domain.Visibility(req.Visibility)
	}
	entitlement := domain.EntitlementOpen
	if req.Entitlement != "" {
		if !validEntitlement(req.Entitlement) {
			return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid entitlement_type"})
		}
		entitlement = domain.Entitlement(req.Entitlement)
	}
	version := req.Version
	if version == "" {
		version = "1.0.0"
	}

	now := time.Now()
	rc := &domain.RegistryComponent{
		ComponentID: newID("reg"),
		Type:        domain.RegistryType(req.Type),
		Name:        req.Name,
		Description: req.Description,
		Content:     req.Content,
		Tags:        req.Tags,
		OwnerID:     userID(c.Request().Header.Get("X-User-ID")),
		Visibility:  visibility,
		Status:      domain.RegistryStatusDraft,
		Entitlement: entitlement,
		Version:     version,
		Metadata:    req.Metadata,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if err := h.store.CreateRegistryComponent(ctx, rc); err != nil {
		log.Printf("ERROR: failed to create registry component: %v", err)
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "failed to create component"})
	}

	return c.JSON(http.StatusCreated, rc)
}

// ListRegistryComponents lists all registry components.
// GET /api/registry/components
func (h *Handler) ListRegistryComponents(c echo.Context) error {
	ctx := c.Request().Context()

	components, err := h.store.ListRegistryComponents(ctx)
	if err != nil {
		log.Printf("ERROR: failed to list registry components: %v", err)
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "failed to list components"})
	}

	return c.JSON(http.StatusOK, map[string]interface{}{"components": components})
}

// loadRegistryComponent fetches a component or writes the error response.
func (h *Handler) loadRegistryComponent(c echo.Context) (*domain.RegistryComponent, bool) {
	ctx := c.Request().Context()
	rc, err := h.store.GetRegistryComponent(ctx, c.Param("id"))
	if err != nil {
		log.Printf("ERROR: failed to get registry component: %v", err)
		c.JSON(http.StatusInternalServerError, map[string]string{"error": "failed to get component"})
		return nil, false
	}
	if rc == nil {
		c.JSON(http.StatusNotFound, map[string]string{"error": "component not found"})
		return nil, false
	}
	return rc, true
}

// GetRegistryComponent gets one registry component.
// GET /api/registry/components/:id
func (h *Handler) GetRegistryComponent(c echo.Context) error {
	rc, ok := h.loadRegistryComponent(c)
	if !ok {
		return nil
	}
	return c.JSON(http.StatusOK, rc)
}

// RegistryComponentUpdateRequest is the request body for partial component
// updates. Pointer fields distinguish "not provided" from an explicit empty
// value.
type RegistryComponentUpdateRequest struct {
	Name        *string         `json:"name"`
	Description *string         `json:"description"`
	Content     *string         `json:"content"`
	Tags        []string        `json:"tags"`
	Visibility  *string         `json:"visibility"`
	Entitlement *string         `json:"entitlement_type"`
	Version     *string         `json:"version"`
	Metadata    json.RawMessage `json:"metadata"`
}

// UpdateRegistryComponent updates a component's editable fields. Only fields
// present in the request are touched; retired components cannot be edited.
// PUT /api/registry/components/:id
func (h *Handler) UpdateRegistryComponent(c echo.Context) error {
	ctx := c.Request().Context()
	rc, ok := h.loadRegistryComponent(c)
	if !ok {
		return nil
	}
	if rc.Status == domain.RegistryStatusRetired {
		return c.JSON(http.StatusConflict, map[string]string{"error": "component is retired"})
	}

	var req RegistryComponentUpdateRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid request body"})
	}

	if req.Name != nil {
		if *req.Name == "" {
			return c.JSON(http.StatusBadRequest, map[string]string{"error": "name cannot be empty"})
		}
		rc.Name = *req.Name
	}
	if req.Description != nil {
		rc.Description = *req.Description
	}
	if req.Content != nil {
		rc.Content = *req.Content
	}
	if req.Tags != nil {
		rc.Tags = req.Tags
	}
	if req.Visibility != nil {
		if !validVisibility(*req.Visibility) {
			return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid visibility"})
		}
		rc.Visibility = domain.Visibility(*req.Visibility)
	}
	if req.Entitlement != nil {
		if !validEntitlement(*req.Entitlement) {
			return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid entitlement_type"})
		}
		rc.Entitlement = domain.Entitlement(*req.Entitlement)
	}
	if req.Version != nil && *req.Version != "" {
		rc.Version = *req.Version
	}
	if req.Metadata != nil {
		rc.Metadata = req.Metadata
	}

	if err := h.store.UpdateRegistryComponent(ctx, rc); err != nil {
		log.Printf("ERROR: failed to update registry component: %v", err)
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "failed to update component"})
	}

	updated, err := h.store.GetRegistryComponent(ctx, rc.ComponentID)
	if err != nil {
		log.Printf("ERROR: failed to reload registry component: %v", err)
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "failed to update component"})
	}
	return c.JSON(http.StatusOK, updated)
}

// DeleteRegistryComponent soft-deletes a registry component.
// DELETE /api/registry/components/:id
func (h *Handler) DeleteRegistryComponent(c echo.Context) error {
	ctx := c.Request().Context()
	rc, ok := h.loadRegistryComponent(c)
	if !ok {
		return nil
	}

	if err := h.store.SoftDeleteRegistryComponent(ctx, rc.ComponentID); err != nil {
		log.Printf("ERROR: failed to delete registry component: %v", err)
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "failed to delete component"})
	}
	return c.JSON(http.StatusOK, map[string]string{"status": "deleted"})
}

// PublishRegistryComponent publishes a draft component and records a
// snapshot of its published state.
// POST /api/registry/components/:id/publish
func (h *Handler) PublishRegistryComponent(c echo.Context) error {
	ctx := c.Request().Context()
	rc, ok := h.loadRegistryComponent(c)
	if !ok {
		return nil
	}
	if rc.Status == domain.RegistryStatusPublished {
		return c.JSON(http.StatusConflict, map[string]string{"error": "component is already published"})
	}
	if rc.Status == domain.RegistryStatusRetired {
		return c.JSON(http.StatusConflict, map[string]string{"error": "component is retired"})
	}

	now := time.Now()
	rc.Status = domain.RegistryStatusPublished
	rc.PublishedAt = &now
	rc.DeprecationReason = ""
	if err := h.store.UpdateRegistryComponent(ctx, rc); err != nil {
		log.Printf("ERROR: failed to publish registry component: %v", err)
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "failed to publish component"})
	}

	snap := &domain.Snapshot{
		SnapshotID:   newID("snap"),
		ComponentID:  rc.ComponentID,
		VersionLabel: rc.Version,
		Name:         rc.Name,
		Description:  rc.Description,
		Content:      rc.Content,
		CreatedBy:    userID(c.Request().Header.Get("X-User-ID")),
		CreatedAt:    now,
	}
	if err := h.store.CreateSnapshot(ctx, snap); err != nil {
		log.Printf("ERROR: failed to create snapshot: %v", err)
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "failed to snapshot component"})
	}

	return c.JSON(http.StatusOK, rc)
}

// DeprecateRequest is the request body for deprecating a component.
type DeprecateRequest struct {
	Reason string `json:"reason"`
}

// DeprecateRegistryComponent marks a published component as deprecated.
// POST /api/registry/components/:id/deprecate
func (h *Handler) DeprecateRegistryComponent(c echo.Context) error {
	ctx := c.Request().Context()
	rc, ok := h.loadRegistryComponent(c)
	if !ok {
		return nil
	}
	if rc.Status != domain.RegistryStatusPublished {
		return c.JSON(http.StatusConflict, map[string]string{"error": "only published components can be deprecated"})
	}

	var req DeprecateRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid request body"})
	}

	rc.Status = domain.RegistryStatusDeprecated
	rc.DeprecationReason = req.Reason
	if err := h.store.UpdateRegistryComponent(ctx, rc); err != nil {
		log.Printf("ERROR: failed to deprecate registry component: %v", err)
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "failed to deprecate component"})
	}

	return c.JSON(http.StatusOK, rc)
}

// ListSnapshots lists a component's published snapshots, newest first.
// GET /api/registry/components/:id/snapshots
func (h *Handler) ListSnapshots(c echo.Context) error {
	ctx := c.Request().Context()
	rc, ok := h.loadRegistryComponent(c)
	if !ok {
		return nil
	}

	snapshots, err := h.store.ListSnapshots(ctx, rc.ComponentID)
	if err != nil {
		log.Printf("ERROR: failed to list snapshots: %v", err)
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "failed to list snapshots"})
	}

	return c.JSON(http.StatusOK, map[string]interface{}{"snapshots": snapshots})
}
