package follower

import (
	"time"

	"github.com/systmms/agentcred/internal/config"
)

// syncRequest mirrors the leader's SyncRequest wire shape.
type syncRequest struct {
	FollowerID             string   `json:"follower_id"`
	SigningKeyVersion      int      `json:"signing_key_version"`
	ProviderConfigsVersion int      `json:"provider_configs_version"`
	RevocationListVersion  int      `json:"revocation_list_version"`
	KnownRootTokens        []string `json:"known_root_tokens,omitempty"`
}

// syncResponse mirrors the leader's SyncResponse wire shape.
type syncResponse struct {
	SigningKey             *string                   `json:"signing_key,omitempty"`
	SigningKeyVersion      int                       `json:"signing_key_version"`
	ProviderConfigs        map[string]config.ProviderConfig `json:"provider_configs,omitempty"`
	ProviderConfigsVersion int                       `json:"provider_configs_version"`
	RevocationListDelta    []string                  `json:"revocation_list_delta"`
	RevocationListVersion  int                       `json:"revocation_list_version"`
	NextSyncSeconds        int                       `json:"next_sync_seconds"`
	LeaderTimestamp        time.Time                 `json:"leader_timestamp"`
}
