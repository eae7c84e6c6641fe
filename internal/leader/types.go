package leader

import (
	"time"

	"github.com/systmms/agentcred/internal/config"
)

// SyncRequest is the body a follower posts to /sync.
type SyncRequest struct {
	FollowerID              string   `json:"follower_id"`
	SigningKeyVersion       int      `json:"signing_key_version"`
	ProviderConfigsVersion  int      `json:"provider_configs_version"`
	RevocationListVersion   int      `json:"revocation_list_version"`
	KnownRootTokens         []string `json:"known_root_tokens,omitempty"`
}

// SyncResponse is returned from /sync. SigningKey and ProviderConfigs are
// only populated when the follower's reported version is behind current.
type SyncResponse struct {
	SigningKey             *string                           `json:"signing_key,omitempty"`
	SigningKeyVersion      int                               `json:"signing_key_version"`
	ProviderConfigs        map[string]config.ProviderConfig `json:"provider_configs,omitempty"`
	ProviderConfigsVersion int                               `json:"provider_configs_version"`
	RevocationListDelta    []string                          `json:"revocation_list_delta"`
	RevocationListVersion  int                               `json:"revocation_list_version"`
	NextSyncSeconds        int                               `json:"next_sync_seconds"`
	LeaderTimestamp        time.Time                         `json:"leader_timestamp"`
}

// StatusResponse is returned from GET /status.
type StatusResponse struct {
	Mode                   string   `json:"mode"`
	SigningKeyVersion      int      `json:"signing_key_version"`
	ProviderConfigsVersion int      `json:"provider_configs_version"`
	RevocationListVersion  int      `json:"revocation_list_version"`
	RevocationCount        int      `json:"revocation_count"`
	KnownFollowerIDs       []string `json:"known_follower_ids"`
}

// revokeRequest is the body posted to /revoke/<token_id>.
type revokeRequest struct {
	Reason string `json:"reason,omitempty"`
}

// rotateKeyResponse is returned from /rotate-key.
type rotateKeyResponse struct {
	SigningKeyVersion int `json:"signing_key_version"`
}

// errorResponse is the JSON body for any 4xx/5xx response.
type errorResponse struct {
	Error string `json:"error"`
}

// followerRecord is the leader's per-follower bookkeeping.
type followerRecord struct {
	FollowerID                  string
	LastSyncAt                  time.Time
	KnownSigningKeyVersion      int
	KnownProviderConfigsVersion int
	KnownRevocationVersion      int
	RemoteAddress               string
}

// PushMessage is a typed, best-effort notification fanned out to connected
// followers on a mutating operation. Transient send failures are swallowed;
// the next periodic sync reconciles.
type PushMessage struct {
	Type    PushType  `json:"type"`
	Subject string    `json:"subject,omitempty"`
	Version int       `json:"version,omitempty"`
	SentAt  time.Time `json:"sent_at"`
}

// PushType enumerates the push channel's message kinds.
type PushType string

const (
	PushRevocation  PushType = "revocation"
	PushKeyRotation PushType = "key_rotation"
	PushConfigUpdate PushType = "config_update"
)
