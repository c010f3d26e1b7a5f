package api

import (
	"log"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/agent-hr/agenthr/internal/domain"
	"github.com/agent-hr/agenthr/internal/policy"
)

func validAccessLevel(s string) bool {
	switch domain.AccessLevel(s) {
	case domain.AccessLevelViewer, domain.AccessLevelExecutor, domain.AccessLevelContributor:
		return true
	}
	return false
}

// CheckAccess evaluates whether an agent may use a registry component.
// GET /api/registry/components/:id/access?agent_id=...
func (h *Handler) CheckAccess(c echo.Context) error {
	ctx := c.Request().Context()
	rc, ok := h.loadRegistryComponent(c)
	if !ok {
		return nil
	}

	agentID := c.QueryParam("agent_id")
	if agentID == "" {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "agent_id is required"})
	}

	grant, err := h.store.GetActiveGrant(ctx, rc.ComponentID, agentID)
	if err != nil {
		log.Printf("ERROR: failed to check grant: %v", err)
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "failed to check access"})
	}

	decision, err := h.policy.Evaluate(ctx, policy.AccessInput{
		RequesterID:    userID(c.Request().Header.Get("X-User-ID")),
		RequestedLevel: domain.AccessLevelExecutor,
		Component:      rc,
		HasGrant:       grant != nil,
	})
	if err != nil {
		log.Printf("ERROR: policy evaluation failed: %v", err)
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "failed to check access"})
	}

	resp := map[string]interface{}{"decision": decision}
	if grant != nil {
		resp["grant"] = grant
	}
	return c.JSON(http.StatusOK, resp)
}

// GrantRequest is the request body for creating a grant.
type GrantRequest struct {
	AgentID   string     `json:"agent_id"`
	Level     string     `json:"access_level"`
	ExpiresAt *time.Time `json:"expires_at"`
}

// CreateGrant grants an agent access to a registry component.
// POST /api/registry/components/:id/grants
func (h *Handler) CreateGrant(c echo.Context) error {
	ctx := c.Request().Context()
	rc, ok := h.loadRegistryComponent(c)
	if !ok {
		return nil
	}

	var req GrantRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid request body"})
	}
	if req.AgentID == "" {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "agent_id is required"})
	}
	if !validAccessLevel(req.Level) {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid access_level"})
	}

	grant := &domain.Grant{
		GrantID:     newID("grt"),
		ComponentID: rc.ComponentID,
		AgentID:     req.AgentID,
		Level:       domain.AccessLevel(req.Level),
		GrantedBy:   userID(c.Request().Header.Get("X-User-ID")),
		GrantedAt:   time.Now(),
		ExpiresAt:   req.ExpiresAt,
	}
	if err := h.store.CreateGrant(ctx, grant); err != nil {
		log.Printf("ERROR: failed to create grant: %v", err)
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "failed to create grant"})
	}

	return c.JSON(http.StatusCreated, grant)
}

// ListGrants lists all grants on a component, including revoked ones.
// GET /api/registry/components/:id/grants
func (h *Handler) ListGrants(c echo.Context) error {
	ctx := c.Request().Context()
	rc, ok := h.loadRegistryComponent(c)
	if !ok {
		return nil
	}

	grants, err := h.store.ListGrants(ctx, rc.ComponentID)
	if err != nil {
		log.Printf("ERROR: failed to list grants: %v", err)
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "failed to list grants"})
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"grants": grants})
}

// RevokeGrant revokes a grant.
// DELETE /api/grants/:id
func (h *Handler) RevokeGrant(c echo.Context) error {
	ctx := c.Request().Context()

	if err := h.store.RevokeGrant(ctx, c.Param("id")); err != nil {
		log.Printf("ERROR: failed to revoke grant: %v", err)
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "failed to revoke grant"})
	}
	return c.JSON(http.StatusOK, map[string]string{"status": "revoked"})
}

// AccessRequestRequest is the request body for requesting access.
type AccessRequestRequest struct {
	AgentID string `json:"agent_id"`
	Level   string `json:"requested_level"`
}

// CreateAccessRequest files a pending access request for an agent.
// POST /api/registry/components/:id/access-requests
func (h *Handler) CreateAccessRequest(c echo.Context) error {
	ctx := c.Request().Context()
	rc, ok := h.loadRegistryComponent(c)
	if !ok {
		return nil
	}

	var req AccessRequestRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid request body"})
	}
	if req.AgentID == "" {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "agent_id is required"})
	}
	if !validAccessLevel(req.Level) {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid requested_level"})
	}
	if rc.Entitlement == domain.EntitlementRestricted {
		return c.JSON(http.StatusForbidden, map[string]string{"error": "component does not accept access requests"})
	}

	request := &domain.AccessRequest{
		RequestID:      newID("req"),
		ComponentID:    rc.ComponentID,
		AgentID:        req.AgentID,
		RequestedLevel: domain.AccessLevel(req.Level),
		RequestedBy:    userID(c.Request().Header.Get("X-User-ID")),
		RequestedAt:    time.Now(),
		Status:         domain.RequestStatusPending,
	}
	if err := h.store.CreateAccessRequest(ctx, request); err != nil {
		log.Printf("ERROR: failed to create access request: %v", err)
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "failed to create access request"})
	}

	return c.JSON(http.StatusCreated, request)
}

// ListAccessRequests lists a component's access requests, optionally
// filtered by ?status=.
// GET /api/registry/components/:id/access-requests
func (h *Handler) ListAccessRequests(c echo.Context) error {
	ctx := c.Request().Context()
	rc, ok := h.loadRegistryComponent(c)
	if !ok {
		return nil
	}

	status := domain.RequestStatus(c.QueryParam("status"))
	requests, err := h.store.ListAccessRequests(ctx, rc.ComponentID, status)
	if err != nil {
		log.Printf("ERROR: failed to list access requests: %v", err)
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "failed to list access requests"})
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"requests": requests})
}

// loadPendingRequest fetches a pending access request or writes the error
// response.
func (h *Handler) loadPendingRequest(c echo.Context) (*domain.AccessRequest, bool) {
	ctx := c.Request().Context()
	request, err := h.store.GetAccessRequest(ctx, c.Param("id"))
	if err != nil {
		log.Printf("ERROR: failed to get access request: %v", err)
		c.JSON(http.StatusInternalServerError, map[string]string{"error": "failed to get access request"})
		return nil, false
	}
	if request == nil {
		c.JSON(http.StatusNotFound, map[string]string{"error": "access request not found"})
		return nil, false
	}
	if request.Status != domain.RequestStatusPending {
		c.JSON(http.StatusConflict, map[string]string{"error": "access request is already resolved"})
		return nil, false
	}
	return request, true
}

// ApproveAccessRequest approves a pending request and creates the grant.
// POST /api/access-requests/:id/approve
func (h *Handler) ApproveAccessRequest(c echo.Context) error {
	ctx := c.Request().Context()
	request, ok := h.loadPendingRequest(c)
	if !ok {
		return nil
	}

	resolvedBy := userID(c.Request().Header.Get("X-User-ID"))
	if err := h.store.ResolveAccessRequest(ctx, request.RequestID, domain.RequestStatusApproved, resolvedBy, ""); err != nil {
		log.Printf("ERROR: failed to approve access request: %v", err)
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "failed to approve access request"})
	}

	grant := &domain.Grant{
		GrantID:     newID("grt"),
		ComponentID: request.ComponentID,
		AgentID:     request.AgentID,
		Level:       request.RequestedLevel,
		GrantedBy:   resolvedBy,
		GrantedAt:   time.Now(),
	}
	if err := h.store.CreateGrant(ctx, grant); err != nil {
		log.Printf("ERROR: failed to create grant from request: %v", err)
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "failed to create grant"})
	}

	return c.JSON(http.StatusOK, map[string]interface{}{"status": "approved", "grant": grant})
}

// DenyRequest is the request body for denying an access request.
type DenyRequest struct {
	Reason string `json:"reason"`
}

// DenyAccessRequest denies a pending request.
// POST /api/access-requests/:id/deny
func (h *Handler) DenyAccessRequest(c echo.Context) error {
	ctx := c.Request().Context()
	request, ok := h.loadPendingRequest(c)
	if !ok {
		return nil
	}

	var req DenyRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid request body"})
	}

	resolvedBy := userID(c.Request().Header.Get("X-User-ID"))
	if err := h.store.ResolveAccessRequest(ctx, request.RequestID, domain.RequestStatusDenied, resolvedBy, req.Reason); err != nil {
		log.Printf("ERROR: failed to deny access request: %v", err)
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "failed to deny access request"})
	}

	return c.JSON(http.StatusOK, map[string]string{"status": "denied"})
}

// RegistryRefRequest is the request body for linking an agent to a registry
// component.
type RegistryRefRequest struct {
	ComponentID string `json:"component_id"`
}

// CreateRegistryRef links an agent to a registry component, subject to the
// access policy.
// POST /api/agents/:id/registry-refs
func (h *Handler) CreateRegistryRef(c echo.Context) error {
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

	var req RegistryRefRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid request body"})
	}
	if req.ComponentID == "" {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "component_id is required"})
	}

	rc, err := h.store.GetRegistryComponent(ctx, req.ComponentID)
	if err != nil {
		log.Printf("ERROR: failed to get registry component: %v", err)
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "failed to get component"})
	}
	if rc == nil {
		return c.JSON(http.StatusNotFound, map[string]string{"error": "component not found"})
	}

	grant, err := h.store.GetActiveGrant(ctx, rc.ComponentID, agentID)
	if err != nil {
		log.Printf("ERROR: failed to check grant: %v", err)
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "failed to check access"})
	}

	decision, err := h.policy.Evaluate(ctx, policy.AccessInput{
		RequesterID:    userID(c.Request().Header.Get("X-User-ID")),
		RequestedLevel: domain.AccessLevelExecutor,
		Component:      rc,
		HasGrant:       grant != nil,
	})
	if err != nil {
		log.Printf("ERROR: policy evaluation failed: %v", err)
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "failed to check access"})
	}
	if decision != policy.DecisionAllow {
		return c.JSON(http.StatusForbidden, map[string]interface{}{
			"error":    "access denied",
			"decision": decision,
		})
	}

	ref := &domain.RegistryRef{
		RefID:       newID("ref"),
		AgentID:     agentID,
		ComponentID: rc.ComponentID,
		AddedAt:     time.Now(),
		AddedBy:     userID(c.Request().Header.Get("X-User-ID")),
	}
	if err := h.store.CreateRegistryRef(ctx, ref); err != nil {
		return c.JSON(http.StatusConflict, map[string]string{"error": "agent already references this component"})
	}

	return c.JSON(http.StatusCreated, ref)
}

// ListRegistryRefs lists an agent's registry component links.
// GET /api/agents/:id/registry-refs
func (h *Handler) ListRegistryRefs(c echo.Context) error {
	ctx := c.Request().Context()
	agentID := c.Param("id")

	refs, err := h.store.ListRegistryRefs(ctx, agentID)
	if err != nil {
		log.Printf("ERROR: failed to list registry refs: %v", err)
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "failed to list registry refs"})
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"refs": refs})
}
