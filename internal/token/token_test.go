package token_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	tokenerrors "github.com/systmms/agentcred/internal/errors"
	"github.com/systmms/agentcred/internal/token"
)

func keys(key string) token.SigningKeys {
	return token.SigningKeys{Current: []byte(key), Verify: [][]byte{[]byte(key)}}
}

func TestCreateRootSignsAndVerifies(t *testing.T) {
	t.Parallel()

	root, err := token.CreateRoot(keys("k1"), token.CreateRootParams{
		AgentID: "agent-root",
		Scopes:  []string{"github:repo:*"},
	})
	require.NoError(t, err)
	assert.NotEmpty(t, root.Signature)
	assert.True(t, root.Delegatable)
	assert.Equal(t, 3, root.MaxDelegationDepth)
	assert.NoError(t, token.Verify(keys("k1"), root))
}

// Property: a tampered token fails verification.
func TestVerifyRejectsTamperedToken(t *testing.T) {
	t.Parallel()

	root, err := token.CreateRoot(keys("k1"), token.CreateRootParams{
		AgentID: "agent-root",
		Scopes:  []string{"github:repo:*"},
	})
	require.NoError(t, err)

	tampered := root
	tampered.Scopes = append(tampered.Scopes, "aws:s3:*")

	err = token.Verify(keys("k1"), tampered)
	assert.ErrorAs(t, err, &tokenerrors.InvalidSignatureError{})
}

// Property: a token signed under a retired key still verifies against the
// retained key set during a rotation transition.
func TestVerifyAcceptsAnyRetainedKey(t *testing.T) {
	t.Parallel()

	oldKeys := keys("old")
	root, err := token.CreateRoot(oldKeys, token.CreateRootParams{AgentID: "agent-root", Scopes: []string{"*"}})
	require.NoError(t, err)

	rotated := token.SigningKeys{Current: []byte("new"), Verify: [][]byte{[]byte("new"), []byte("old")}}
	assert.NoError(t, token.Verify(rotated, root))
}

func TestVerifyRejectsExpiredToken(t *testing.T) {
	t.Parallel()

	ttl := -time.Minute
	expired, err := token.CreateRoot(keys("k1"), token.CreateRootParams{
		AgentID: "agent-root",
		Scopes:  []string{"*"},
		TTL:     &ttl,
	})
	require.NoError(t, err)

	err = token.Verify(keys("k1"), expired)
	assert.ErrorAs(t, err, &tokenerrors.TokenExpiredError{})
}

// Property: delegation never widens scope.
func TestDelegateRejectsScopeOutsideParent(t *testing.T) {
	t.Parallel()

	root, err := token.CreateRoot(keys("k1"), token.CreateRootParams{
		AgentID: "agent-root",
		Scopes:  []string{"github:repo:read"},
	})
	require.NoError(t, err)

	_, err = token.Delegate(keys("k1"), root, token.DelegateRequest{
		Scopes: []string{"github:repo:write"},
	})
	assert.ErrorAs(t, err, &tokenerrors.ScopeNotAllowedError{})
}

// Property: a non-delegatable token cannot be delegated from.
func TestDelegateRejectsNonDelegatableParent(t *testing.T) {
	t.Parallel()

	notDelegatable := false
	root, err := token.CreateRoot(keys("k1"), token.CreateRootParams{
		AgentID:     "agent-root",
		Scopes:      []string{"*"},
		Delegatable: &notDelegatable,
	})
	require.NoError(t, err)

	_, err = token.Delegate(keys("k1"), root, token.DelegateRequest{Scopes: []string{"aws:s3:read"}})
	assert.ErrorAs(t, err, &tokenerrors.NotDelegatableError{})
}

// Property: delegation depth is bounded by max_delegation_depth.
func TestDelegateRejectsPastMaxDepth(t *testing.T) {
	t.Parallel()

	maxDepth := 1
	root, err := token.CreateRoot(keys("k1"), token.CreateRootParams{
		AgentID:            "agent-root",
		Scopes:             []string{"*"},
		MaxDelegationDepth: &maxDepth,
	})
	require.NoError(t, err)

	child, err := token.Delegate(keys("k1"), root, token.DelegateRequest{Scopes: []string{"aws:s3:read"}})
	require.NoError(t, err)
	assert.Equal(t, 1, child.CurrentDepth)

	_, err = token.Delegate(keys("k1"), child, token.DelegateRequest{Scopes: []string{"aws:s3:read"}})
	assert.ErrorAs(t, err, &tokenerrors.DepthExceededError{})
}

// Property: a child's constraint narrows, never widens, the parent's.
func TestDelegateNarrowsResourceConstraint(t *testing.T) {
	t.Parallel()

	root, err := token.CreateRoot(keys("k1"), token.CreateRootParams{
		AgentID: "agent-root",
		Scopes:  []string{"github:repo:read"},
		Constraints: map[string]token.ScopeConstraint{
			"github:repo:read": {Resources: []string{"myorg/*"}},
		},
	})
	require.NoError(t, err)

	child, err := token.Delegate(keys("k1"), root, token.DelegateRequest{
		Scopes: []string{"github:repo:read"},
		Constraints: map[string]token.ScopeConstraint{
			"github:repo:read": {Resources: []string{"myorg/docs"}},
		},
	})
	require.NoError(t, err)

	result, err := token.CheckPermission(keys("k1"), child, "github:repo:read", "myorg/docs")
	require.NoError(t, err)
	assert.True(t, result.Allowed)

	_, err = token.CheckPermission(keys("k1"), child, "github:repo:read", "myorg/other")
	assert.ErrorAs(t, err, &tokenerrors.ResourceNotAllowedError{})
}

// Property: serialize/deserialize round-trips byte-for-byte.
func TestSerializeRoundTrip(t *testing.T) {
	t.Parallel()

	root, err := token.CreateRoot(keys("k1"), token.CreateRootParams{
		AgentID: "agent-root",
		Scopes:  []string{"github:repo:*", "aws:s3:read"},
		Constraints: map[string]token.ScopeConstraint{
			"aws:s3:read": {Resources: []string{"arn:aws:s3:::bucket/*"}},
		},
	})
	require.NoError(t, err)

	encoded, err := token.Serialize(root)
	require.NoError(t, err)

	decoded, err := token.Deserialize(encoded)
	require.NoError(t, err)
	assert.Equal(t, root, decoded)

	reencoded, err := token.Serialize(decoded)
	require.NoError(t, err)
	assert.Equal(t, encoded, reencoded)

	assert.NoError(t, token.Verify(keys("k1"), decoded))
}

// Scenario: root -> delegate -> check_permission happy path end to end.
func TestScenarioRootDelegateCheckPermission(t *testing.T) {
	t.Parallel()

	root, err := token.CreateRoot(keys("k1"), token.CreateRootParams{
		AgentID: "ci-pipeline",
		Scopes:  []string{"github:repo:*", "aws:s3:read"},
	})
	require.NoError(t, err)

	ttl := 30 * time.Minute
	child, err := token.Delegate(keys("k1"), root, token.DelegateRequest{
		AgentID: "build-step-42",
		Scopes:  []string{"github:repo:read"},
		TTL:     &ttl,
	})
	require.NoError(t, err)
	assert.Equal(t, "ci-pipeline", child.ParentID)

	result, err := token.CheckPermission(keys("k1"), child, "github:repo:read", "myorg/myrepo")
	require.NoError(t, err)
	assert.True(t, result.Allowed)

	_, err = token.CheckPermission(keys("k1"), child, "aws:s3:read", "arn:aws:s3:::bucket/key")
	assert.ErrorAs(t, err, &tokenerrors.ScopeNotAllowedError{})
}

// Scenario: refresh requires the refresh scope and clamps to max_expires_at.
func TestScenarioRefreshClampsToMaxLifetime(t *testing.T) {
	t.Parallel()

	ttl := time.Hour
	root, err := token.CreateRoot(keys("k1"), token.CreateRootParams{
		AgentID: "agent-root",
		Scopes:  []string{"system:token:refresh", "aws:s3:read"},
		TTL:     &ttl,
	})
	require.NoError(t, err)

	farFuture := time.Now().Add(24 * time.Hour)
	refreshed, err := token.Refresh(keys("k1"), root, &farFuture)
	require.NoError(t, err)
	assert.True(t, refreshed.ExpiresAt.Equal(*root.MaxExpiresAt))

	noRefreshScope, err := token.CreateRoot(keys("k1"), token.CreateRootParams{
		AgentID: "agent-root-2",
		Scopes:  []string{"aws:s3:read"},
	})
	require.NoError(t, err)
	_, err = token.Refresh(keys("k1"), noRefreshScope, nil)
	assert.ErrorAs(t, err, &tokenerrors.PermissionDeniedError{})
}

func TestScenarioRefreshPastMaxLifetimeFails(t *testing.T) {
	t.Parallel()

	ttl := -time.Minute
	root, err := token.CreateRoot(keys("k1"), token.CreateRootParams{
		AgentID: "agent-root",
		Scopes:  []string{"system:token:refresh"},
		TTL:     &ttl,
	})
	require.NoError(t, err)

	_, err = token.Refresh(keys("k1"), root, nil)
	assert.ErrorAs(t, err, &tokenerrors.AtMaxLifetimeError{})
}
