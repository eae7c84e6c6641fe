package token

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"time"
)

const (
	// defaultMaxDelegationDepth matches the depth a freshly minted root token
	// gets when the caller does not specify one.
	defaultMaxDelegationDepth = 3
)

// CreateRootParams describes a new root token. Scopes and Constraints are
// copied defensively; the returned Token owns its own slice and map.
type CreateRootParams struct {
	AgentID            string
	Scopes             []string
	Constraints        map[string]ScopeConstraint
	Delegatable        *bool
	MaxDelegationDepth *int
	// TTL, when set, bounds both ExpiresAt and MaxExpiresAt to now+TTL. A
	// root token with no TTL never expires and has no maximum lifetime.
	TTL *time.Duration
}

// CreateRoot mints a new, unparented token signed with keys.Current.
func CreateRoot(keys SigningKeys, params CreateRootParams) (Token, error) {
	if params.AgentID == "" {
		return Token{}, fmt.Errorf("token: agent_id is required")
	}

	delegatable := true
	if params.Delegatable != nil {
		delegatable = *params.Delegatable
	}
	maxDepth := defaultMaxDelegationDepth
	if params.MaxDelegationDepth != nil {
		maxDepth = *params.MaxDelegationDepth
	}

	scopes := append([]string(nil), params.Scopes...)
	if scopes == nil {
		scopes = []string{}
	}
	constraints := make(map[string]ScopeConstraint, len(params.Constraints))
	for k, v := range params.Constraints {
		constraints[k] = v
	}

	t := Token{
		AgentID:            params.AgentID,
		Scopes:             scopes,
		Constraints:        constraints,
		Delegatable:        delegatable,
		MaxDelegationDepth: maxDepth,
		CurrentDepth:       0,
	}

	if params.TTL != nil {
		exp := time.Now().Add(*params.TTL)
		t.ExpiresAt = &exp
		maxExp := exp
		t.MaxExpiresAt = &maxExp
	}

	t.Signature = sign(keys.Current, t)
	return t, nil
}

// randomAgentID returns a short, unpredictable agent identifier for
// delegated tokens whose caller did not name one explicitly.
func randomAgentID() (string, error) {
	buf := make([]byte, 4)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("token: generating agent id: %w", err)
	}
	return "agent-" + hex.EncodeToString(buf), nil
}
