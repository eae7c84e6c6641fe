// Package broker composes the token engine, credential cache, and provider
// registry behind a single permission-gated request surface. It is the
// repository's top-level core type: everything else (leader, follower, CLI)
// is a caller of a Broker.
package broker

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/systmms/agentcred/internal/cache"
	dserrors "github.com/systmms/agentcred/internal/errors"
	"github.com/systmms/agentcred/internal/logging"
	"github.com/systmms/agentcred/internal/revocation"
	"github.com/systmms/agentcred/internal/token"
	"github.com/systmms/agentcred/pkg/provider"
)

// Broker composes the Token Engine, Credential Cache, and Provider Registry
// behind a single GetCredential entry point, plus thin passthroughs for
// token operations and cache/config management. The constructed instance
// owns all of its state; there is no package-level global.
type Broker struct {
	mu sync.RWMutex

	keys        token.SigningKeys
	cache       *cache.Cache
	providers   map[string]provider.Provider
	logger      *logging.Logger
	revocations *revocation.Set
}

// New constructs a Broker bound to keys for signing and verification, with
// providerInstances keyed by the provider name a scope's first segment
// names (e.g. scope "aws.sts:role:assume" dispatches to the provider
// registered as "aws.sts").
func New(keys token.SigningKeys, providerInstances map[string]provider.Provider, logger *logging.Logger) *Broker {
	if logger == nil {
		logger = logging.New(false, false)
	}
	insts := make(map[string]provider.Provider, len(providerInstances))
	for name, p := range providerInstances {
		insts[name] = p
	}
	return &Broker{
		keys:      keys,
		cache:     cache.New(),
		providers: insts,
		logger:    logger,
	}
}

// providerNameFromScope extracts the provider registry key a scope
// addresses: the segment before the first colon, matching the glossary's
// "provider:resource:action" scope shape.
func providerNameFromScope(scope string) string {
	if idx := strings.IndexByte(scope, ':'); idx >= 0 {
		return scope[:idx]
	}
	return scope
}

// GetCredential is the broker's single entry point. It checks t's
// permission for (scope, resource), consults the credential cache, and on a
// miss dispatches to the provider named by scope's leading segment. A
// result carrying a non-zero ExpiresAt is cached under "<scope>:<resource>"
// for subsequent callers.
func (b *Broker) GetCredential(ctx context.Context, t token.Token, scope, resource string) (provider.Credential, error) {
	b.mu.RLock()
	keys := b.keys
	b.mu.RUnlock()

	if b.isRevoked(t) {
		return provider.Credential{}, dserrors.RevokedError{AgentID: t.AgentID}
	}
	if _, err := token.CheckPermission(keys, t, scope, resource); err != nil {
		return provider.Credential{}, dserrors.PermissionDeniedError{Reason: err.Error()}
	}

	cacheKey := scope + ":" + resource
	if v, ok := b.cache.Get(cacheKey); ok {
		if cred, ok := v.(provider.Credential); ok {
			return cred, nil
		}
	}

	name := providerNameFromScope(scope)
	b.mu.RLock()
	p, ok := b.providers[name]
	b.mu.RUnlock()
	if !ok {
		return provider.Credential{}, dserrors.ProviderUnavailableError{Provider: name}
	}

	cred, err := p.IssueCredential(ctx, provider.Reference{
		Provider: name,
		Key:      resource,
		Path:     resource,
	})
	if err != nil {
		return provider.Credential{}, dserrors.ProviderUpstreamError{Provider: name, Err: err}
	}

	if !cred.ExpiresAt.IsZero() {
		b.cache.Put(cacheKey, cred, cred.ExpiresAt)
	}
	return cred, nil
}

// SetRevocations binds the revocation set the broker consults before
// honoring any token. Left nil (the zero-value Broker), every token is
// treated as unrevoked — useful for tests and for standalone operation
// without a leader/follower pair.
func (b *Broker) SetRevocations(set *revocation.Set) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.revocations = set
}

// isRevoked consults the bound revocation set, if any, keyed by the
// token's signature. The token type carries no separate token_id field;
// its HMAC signature is already a unique per-token fingerprint (two
// distinct tokens never collide without also being distinguishable some
// other way), so it doubles as the revocation set's key rather than
// adding a redundant identifier to Token.
func (b *Broker) isRevoked(t token.Token) bool {
	b.mu.RLock()
	set := b.revocations
	b.mu.RUnlock()
	if set == nil {
		return false
	}
	return set.IsRevoked(t.Signature)
}

// --- Token-operation passthroughs, bound to the broker's signing key ---

// CreateRoot mints a new root token signed with the broker's current key.
func (b *Broker) CreateRoot(params token.CreateRootParams) (token.Token, error) {
	b.mu.RLock()
	keys := b.keys
	b.mu.RUnlock()
	return token.CreateRoot(keys, params)
}

// Delegate mints a child token attenuated from parent, signed with the
// broker's current key.
func (b *Broker) Delegate(parent token.Token, req token.DelegateRequest) (token.Token, error) {
	b.mu.RLock()
	keys := b.keys
	b.mu.RUnlock()
	return token.Delegate(keys, parent, req)
}

// Verify checks t's signature and expiry against the broker's key set, and
// that it has not been revoked.
func (b *Broker) Verify(t token.Token) error {
	b.mu.RLock()
	keys := b.keys
	b.mu.RUnlock()
	if err := token.Verify(keys, t); err != nil {
		return err
	}
	if b.isRevoked(t) {
		return dserrors.RevokedError{AgentID: t.AgentID}
	}
	return nil
}

// CheckPermission checks whether t covers (scope, resource) against the
// broker's key set and is not revoked, without issuing or caching anything.
func (b *Broker) CheckPermission(t token.Token, scope, resource string) (token.PermissionResult, error) {
	b.mu.RLock()
	keys := b.keys
	b.mu.RUnlock()
	if b.isRevoked(t) {
		return token.PermissionResult{}, dserrors.RevokedError{AgentID: t.AgentID}
	}
	return token.CheckPermission(keys, t, scope, resource)
}

// Refresh extends t's expiry, re-signed with the broker's current key. Per
// spec.md's resolved open question, this centralized refresh re-verifies
// the refresh scope rather than self-signing.
func (b *Broker) Refresh(t token.Token, newExpiresAt *time.Time) (token.Token, error) {
	b.mu.RLock()
	keys := b.keys
	b.mu.RUnlock()
	return token.Refresh(keys, t, newExpiresAt)
}

// Serialize and Deserialize pass through unchanged; they carry no signing
// dependency.
func (b *Broker) Serialize(t token.Token) (string, error) { return token.Serialize(t) }
func (b *Broker) DeserializeToken(s string) (token.Token, error) { return token.Deserialize(s) }

// SetKeys replaces the broker's bound signing keys, e.g. after a key-store
// rotation or a follower sync importing a new current key.
func (b *Broker) SetKeys(keys token.SigningKeys) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.keys = keys
}

// --- Cache passthroughs ---

// CacheStats returns the credential cache's hit/miss/eviction counters.
func (b *Broker) CacheStats() cache.Stats { return b.cache.Stats() }

// ClearCache discards every cached credential.
func (b *Broker) ClearCache() { b.cache.Clear() }

// EvictExpiredCredentials sweeps cache entries past their safety buffer and
// returns the count removed.
func (b *Broker) EvictExpiredCredentials() int { return b.cache.EvictExpired() }

// SetCacheBuffer adjusts the safety buffer subtracted from a credential's
// expires_at before admission.
func (b *Broker) SetCacheBuffer(d time.Duration) { b.cache.SetBuffer(d) }

// --- Provider registry passthroughs ---

// RegisterProvider adds or replaces a provider instance at name, used by
// configuration reload and by tests substituting doubles.
func (b *Broker) RegisterProvider(name string, p provider.Provider) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.providers[name] = p
}

// ProviderNames lists the currently registered provider instance names.
func (b *Broker) ProviderNames() []string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	names := make([]string, 0, len(b.providers))
	for name := range b.providers {
		names = append(names, name)
	}
	return names
}
