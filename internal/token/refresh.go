package token

import (
	"time"

	tokenerrors "github.com/systmms/agentcred/internal/errors"
	"github.com/systmms/agentcred/internal/matcher"
)

// defaultRefreshExtension is used when the caller does not name an explicit
// newExpiresAt: the refreshed token gets one more hour from now, still
// clamped to max_expires_at like any other refresh.
const defaultRefreshExtension = time.Hour

// refreshScope is the capability Refresh requires; a token holding "*" or
// "system:*" also satisfies it through matcher.AnyScopeMatches.
const refreshScope = "system:token:refresh"

// Refresh verifies t, checks it carries the refresh capability, and returns
// a new Token with ExpiresAt extended to newExpiresAt (or a one-hour default
// when nil), clamped to t.MaxExpiresAt. Every other field is copied
// verbatim; a fresh signature is produced with keys.Current.
func Refresh(keys SigningKeys, t Token, newExpiresAt *time.Time) (Token, error) {
	if _, ok := matcher.AnyScopeMatches(t.Scopes, refreshScope); !ok {
		return Token{}, tokenerrors.PermissionDeniedError{Reason: "missing " + refreshScope + " scope"}
	}
	// Only the signature is checked here, not ordinary expiry: a token whose
	// soft expires_at has already passed is precisely the refresh candidate,
	// as long as it has not outlived max_expires_at.
	if !signatureValid(allKeys(keys), t) {
		return Token{}, tokenerrors.InvalidSignatureError{AgentID: t.AgentID}
	}

	if t.MaxExpiresAt != nil && !time.Now().Before(*t.MaxExpiresAt) {
		return Token{}, tokenerrors.AtMaxLifetimeError{AgentID: t.AgentID}
	}

	target := newExpiresAt
	if target == nil {
		extended := time.Now().Add(defaultRefreshExtension)
		target = &extended
	}
	if t.MaxExpiresAt != nil && target.After(*t.MaxExpiresAt) {
		target = t.MaxExpiresAt
	}

	refreshed := t
	refreshed.ExpiresAt = target
	refreshed.Signature = sign(keys.Current, refreshed)
	return refreshed, nil
}
