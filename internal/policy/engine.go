// Package policy evaluates registry access decisions with OPA.
package policy

import (
	"context"
	"fmt"

	"github.com/agent-hr/agenthr/internal/domain"
	"github.com/open-policy-agent/opa/rego"
)

// Access decisions returned by the engine.
const (
	DecisionAllow          = "allow"
	DecisionRequireRequest = "require_request"
	DecisionDeny           = "deny"
)

// AccessInput describes one access check: who wants what level on which
// registry component.
type AccessInput struct {
	RequesterID    string
	RequestedLevel domain.AccessLevel
	Component      *domain.RegistryComponent
	HasGrant       bool
}

// Engine is the OPA policy engine for registry access.
type Engine struct {
	query rego.PreparedEvalQuery
}

// NewEngine creates a new policy engine with the given policy content.
func NewEngine(ctx context.Context, policyContent string) (*Engine, error) {
	r := rego.New(
		rego.Query("data.registry_access.decision"),
		rego.Module("registry_access.rego", policyContent),
	)

	query, err := r.PrepareForEval(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to prepare rego: %w", err)
	}

	return &Engine{query: query}, nil
}

// Evaluate runs the access policy and returns allow, require_request, or
// deny. Policies that yield no decision deny by default.
func (e *Engine) Evaluate(ctx context.Context, in AccessInput) (string, error) {
	input := map[string]interface{}{
		"requester_id":    in.RequesterID,
		"requested_level": string(in.RequestedLevel),
		"has_grant":       in.HasGrant,
		"component": map[string]interface{}{
			"owner_id":         in.Component.OwnerID,
			"visibility":       string(in.Component.Visibility),
			"status":           string(in.Component.Status),
			"entitlement_type": string(in.Component.Entitlement),
		},
	}

	results, err := e.query.Eval(ctx, rego.EvalInput(input))
	if err != nil {
		return "", fmt.Errorf("failed to evaluate policy: %w", err)
	}

	if len(results) == 0 || len(results[0].Expressions) == 0 {
		return DecisionDeny, nil
	}

	if s, ok := results[0].Expressions[0].Value.(string); ok {
		return s, nil
	}
	return DecisionDeny, nil
}

// DefaultPolicy encodes the registry entitlement rules: owners and active
// grant holders are allowed, published open components are allowed for
// everyone, request_required components prompt an access request, and
// everything else is denied.
const DefaultPolicy = `
package registry_access

default decision = "deny"

# Owners always have full access to their own components.
decision = "allow" {
	input.requester_id == input.component.owner_id
}

# An active grant satisfies any entitlement.
decision = "allow" {
	input.has_grant
}

# Published open components are usable by anyone who can see them.
decision = "allow" {
	input.component.status == "published"
	input.component.entitlement_type == "open"
}

# Published gated components require an approved access request.
decision = "require_request" {
	input.component.status == "published"
	input.component.entitlement_type == "request_required"
	not input.has_grant
	input.requester_id != input.component.owner_id
}
`
