// Package token implements the capability-token engine: creation, signing,
// hierarchical delegation with attenuation, verification, permission
// checking, refresh, and serialization.
//
// The signing scheme (HMAC-SHA256 over a canonical JSON encoding, base64url,
// constant-time comparison) follows the same shape as a small JIT token
// broker elsewhere in the pack, generalized here to support the full
// delegation chain and attenuation invariants a capability token needs.
package token

import (
	"time"

	"github.com/systmms/agentcred/internal/matcher"
)

// ScopeConstraint narrows a scope's permitted resources, validity window, and
// use count. A child token's constraint for a given scope may only narrow its
// parent's effective constraint for that scope, never widen it.
type ScopeConstraint struct {
	Resources []string   `json:"resources,omitempty"`
	NotBefore *time.Time `json:"not_before,omitempty"`
	NotAfter  *time.Time `json:"not_after,omitempty"`
	// MaxUses is recorded but not enforced by CheckPermission (spec open
	// question: left as metadata until a product decision says otherwise).
	MaxUses *int `json:"max_uses,omitempty"`
}

// Token is an immutable capability record. Tokens are never mutated after
// creation; "refresh" produces a new Token value with a new ExpiresAt and a
// fresh Signature, preserving every other field.
type Token struct {
	AgentID            string                     `json:"agent_id"`
	ParentID           string                     `json:"parent_id,omitempty"`
	Scopes             []string                   `json:"scopes"`
	Constraints        map[string]ScopeConstraint `json:"constraints,omitempty"`
	Delegatable        bool                       `json:"delegatable"`
	MaxDelegationDepth int                        `json:"max_delegation_depth"`
	CurrentDepth       int                        `json:"current_depth"`
	ExpiresAt          *time.Time                 `json:"expires_at,omitempty"`
	MaxExpiresAt       *time.Time                 `json:"max_expires_at,omitempty"`
	Signature          string                     `json:"signature"`
}

// PermissionResult is returned by CheckPermission on success.
type PermissionResult struct {
	Allowed      bool
	MatchedScope string
	Constraint   ScopeConstraint
}

// SigningKeys bundles the key used to (re)sign new tokens with the full set
// of keys acceptable for verification. During a key-rotation transition,
// Verify accepts a signature produced by any retained key, not only Current.
type SigningKeys struct {
	Current []byte
	Verify  [][]byte
}

// effectiveConstraint finds the constraint that applies to target, per the
// "exact key, else first wildcard hit in scope order" rule used both for
// delegation's constraint merge and for CheckPermission.
func effectiveConstraint(scopeOrder []string, constraints map[string]ScopeConstraint, target string) (ScopeConstraint, bool) {
	if c, ok := constraints[target]; ok {
		return c, true
	}
	for _, s := range scopeOrder {
		if s == target {
			continue
		}
		c, ok := constraints[s]
		if !ok {
			continue
		}
		if matcher.ScopeMatches(s, target) {
			return c, true
		}
	}
	return ScopeConstraint{}, false
}
