package token

import (
	"time"

	tokenerrors "github.com/systmms/agentcred/internal/errors"
	"github.com/systmms/agentcred/internal/matcher"
)

// DelegateRequest describes a child token to mint from a verified parent.
// Scopes must each be covered by the parent's scopes; Constraints, when
// given for a scope, are merged with (narrowed by, never widened past) the
// parent's effective constraint for that scope.
type DelegateRequest struct {
	AgentID     string
	Scopes      []string
	Constraints map[string]ScopeConstraint
	Delegatable *bool
	// TTL bounds the child's ExpiresAt to now+TTL, further clamped to the
	// parent's ExpiresAt and MaxExpiresAt when those are set. If nil, the
	// child inherits the parent's ExpiresAt as-is.
	TTL *time.Duration
}

// Delegate verifies parent and mints a child token attenuated per req.
func Delegate(keys SigningKeys, parent Token, req DelegateRequest) (Token, error) {
	if err := Verify(keys, parent); err != nil {
		return Token{}, err
	}
	if !parent.Delegatable {
		return Token{}, tokenerrors.NotDelegatableError{AgentID: parent.AgentID}
	}
	if parent.CurrentDepth >= parent.MaxDelegationDepth {
		return Token{}, tokenerrors.DepthExceededError{
			AgentID:            parent.AgentID,
			CurrentDepth:       parent.CurrentDepth,
			MaxDelegationDepth: parent.MaxDelegationDepth,
		}
	}

	scopes := append([]string(nil), req.Scopes...)
	if scopes == nil {
		scopes = []string{}
	}
	for _, s := range scopes {
		if _, ok := matcher.AnyScopeMatches(parent.Scopes, s); !ok {
			return Token{}, tokenerrors.ScopeNotAllowedError{Scope: s}
		}
	}

	constraints := make(map[string]ScopeConstraint, len(scopes))
	for _, s := range scopes {
		parentConstraint, parentHas := effectiveConstraint(parent.Scopes, parent.Constraints, s)
		reqConstraint, reqHas := req.Constraints[s]
		switch {
		case parentHas && reqHas:
			constraints[s] = mergeConstraint(parentConstraint, reqConstraint)
		case parentHas:
			constraints[s] = parentConstraint
		case reqHas:
			constraints[s] = reqConstraint
		}
	}

	agentID := req.AgentID
	if agentID == "" {
		var err error
		agentID, err = randomAgentID()
		if err != nil {
			return Token{}, err
		}
	}

	delegatable := true
	if req.Delegatable != nil {
		delegatable = *req.Delegatable
	}
	delegatable = delegatable && parent.Delegatable

	expiresAt := parent.ExpiresAt
	if req.TTL != nil {
		candidate := time.Now().Add(*req.TTL)
		expiresAt = &candidate
	}
	if parent.ExpiresAt != nil && (expiresAt == nil || expiresAt.After(*parent.ExpiresAt)) {
		expiresAt = parent.ExpiresAt
	}

	child := Token{
		AgentID:            agentID,
		ParentID:           parent.AgentID,
		Scopes:             scopes,
		Constraints:        constraints,
		Delegatable:        delegatable,
		MaxDelegationDepth: parent.MaxDelegationDepth,
		CurrentDepth:       parent.CurrentDepth + 1,
		ExpiresAt:          expiresAt,
		MaxExpiresAt:       parent.MaxExpiresAt,
	}
	child.Signature = sign(keys.Current, child)
	return child, nil
}

// mergeConstraint narrows parent's constraint by child's requested
// constraint: resources default to parent's unless child names its own,
// the validity window is the intersection, and max_uses is the lesser of
// the two when both are set.
func mergeConstraint(parent, child ScopeConstraint) ScopeConstraint {
	merged := ScopeConstraint{Resources: parent.Resources}
	if len(child.Resources) > 0 {
		merged.Resources = child.Resources
	}

	merged.NotBefore = laterOf(parent.NotBefore, child.NotBefore)
	merged.NotAfter = earlierOf(parent.NotAfter, child.NotAfter)

	switch {
	case parent.MaxUses != nil && child.MaxUses != nil:
		if *parent.MaxUses < *child.MaxUses {
			merged.MaxUses = parent.MaxUses
		} else {
			merged.MaxUses = child.MaxUses
		}
	case parent.MaxUses != nil:
		merged.MaxUses = parent.MaxUses
	case child.MaxUses != nil:
		merged.MaxUses = child.MaxUses
	}
	return merged
}

func laterOf(a, b *time.Time) *time.Time {
	switch {
	case a == nil:
		return b
	case b == nil:
		return a
	case a.After(*b):
		return a
	default:
		return b
	}
}

func earlierOf(a, b *time.Time) *time.Time {
	switch {
	case a == nil:
		return b
	case b == nil:
		return a
	case a.Before(*b):
		return a
	default:
		return b
	}
}
