package token

import (
	"time"

	tokenerrors "github.com/systmms/agentcred/internal/errors"
	"github.com/systmms/agentcred/internal/matcher"
)

// allKeys returns every key acceptable for verification: keys.Verify if set,
// else keys.Current alone.
func allKeys(keys SigningKeys) [][]byte {
	if len(keys.Verify) > 0 {
		return keys.Verify
	}
	if keys.Current != nil {
		return [][]byte{keys.Current}
	}
	return nil
}

// Verify checks a token's signature and expiry. It does not check
// permissions; call CheckPermission for scope/resource/constraint checks.
func Verify(keys SigningKeys, t Token) error {
	if !signatureValid(allKeys(keys), t) {
		return tokenerrors.InvalidSignatureError{AgentID: t.AgentID}
	}
	if t.ExpiresAt != nil && t.ExpiresAt.Before(time.Now()) {
		return tokenerrors.TokenExpiredError{AgentID: t.AgentID}
	}
	return nil
}

// CheckPermission verifies t, then checks that scope is covered by t.Scopes
// and, if a constraint applies, that resource and the current time satisfy
// it. The effective constraint is the one stored under the exact scope key,
// or else the first of t.Scopes (in order) whose pattern matches scope and
// has a stored constraint.
func CheckPermission(keys SigningKeys, t Token, scope, resource string) (PermissionResult, error) {
	if err := Verify(keys, t); err != nil {
		return PermissionResult{}, err
	}

	matched, ok := matcher.AnyScopeMatches(t.Scopes, scope)
	if !ok {
		return PermissionResult{}, tokenerrors.ScopeNotAllowedError{Scope: scope}
	}

	constraint, hasConstraint := effectiveConstraint(t.Scopes, t.Constraints, scope)
	if hasConstraint {
		now := time.Now()
		if constraint.NotBefore != nil && now.Before(*constraint.NotBefore) {
			return PermissionResult{}, tokenerrors.PermissionDeniedError{
				Reason: "scope " + scope + " not yet valid",
			}
		}
		if constraint.NotAfter != nil && now.After(*constraint.NotAfter) {
			return PermissionResult{}, tokenerrors.PermissionDeniedError{
				Reason: "scope " + scope + " constraint window has closed",
			}
		}
		if len(constraint.Resources) > 0 && !matcher.AnyResourceMatches(constraint.Resources, resource) {
			return PermissionResult{}, tokenerrors.ResourceNotAllowedError{Scope: scope, Resource: resource}
		}
	}

	return PermissionResult{Allowed: true, MatchedScope: matched, Constraint: constraint}, nil
}
