package follower_test

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/systmms/agentcred/internal/config"
	"github.com/systmms/agentcred/internal/follower"
	"github.com/systmms/agentcred/internal/keystore"
	"github.com/systmms/agentcred/internal/leader"
	"github.com/systmms/agentcred/internal/revocation"
)

func newTestClient(t *testing.T, leaderURL string) (*follower.Client, *keystore.Store, *revocation.Set, *config.Store) {
	t.Helper()
	dir := t.TempDir()
	keys, err := keystore.New(dir)
	require.NoError(t, err)
	revocations, err := revocation.New(dir)
	require.NoError(t, err)
	cfgStore := config.New(dir)
	require.NoError(t, cfgStore.EnsureDir())

	cfg := follower.Config{
		LeaderURL:    leaderURL,
		BearerToken:  "test-bearer-token",
		FollowerID:   "follower-1",
		SyncInterval: 20 * time.Millisecond,
		SyncTimeout:  time.Second,
	}
	client := follower.New(cfg, keys, revocations, cfgStore, nil, nil)
	return client, keys, revocations, cfgStore
}

func TestSyncAppliesKeyAndRevocationDelta(t *testing.T) {
	keyBytes := "a-fake-base64-signing-key-material"
	encoded := base64.StdEncoding.EncodeToString([]byte(keyBytes))

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer test-bearer-token", r.Header.Get("Authorization"))
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"signing_key":           encoded,
			"signing_key_version":   1,
			"revocation_list_delta": []string{"tok-1"},
			"revocation_list_version": 1,
			"next_sync_seconds":    60,
			"leader_timestamp":     time.Now().Format(time.RFC3339),
		})
	}))
	defer server.Close()

	client, keys, revocations, _ := newTestClient(t, server.URL)
	err := client.Sync(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, keys.CurrentVersion())
	assert.True(t, revocations.IsRevoked("tok-1"))
}

func TestStartMovesToConnectedOnSuccessfulInitialSync(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"signing_key_version":   1,
			"revocation_list_delta": []string{},
			"revocation_list_version": 0,
			"next_sync_seconds":    60,
			"leader_timestamp":     time.Now().Format(time.RFC3339),
		})
	}))
	defer server.Close()

	client, _, _, _ := newTestClient(t, server.URL)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, client.Start(ctx))
	defer client.Stop()

	assert.Equal(t, follower.StateConnected, client.State())
}

func TestStartFailsWithoutLocalKeyWhenLeaderUnreachable(t *testing.T) {
	client, _, _, _ := newTestClient(t, "http://127.0.0.1:1")
	err := client.Start(context.Background())
	assert.Error(t, err)
}

func TestStartDegradesWithPrePopulatedKeyWhenLeaderUnreachable(t *testing.T) {
	client, keys, _, _ := newTestClient(t, "http://127.0.0.1:1")
	_, _, err := keys.GetCurrent() // pre-populate a local key
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, client.Start(ctx))
	defer client.Stop()

	assert.Equal(t, follower.StateDegraded, client.State())
	assert.True(t, client.CanOperate())
}

func TestStopIsIdempotent(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"signing_key_version":   1,
			"revocation_list_delta": []string{},
			"next_sync_seconds":     60,
			"leader_timestamp":      time.Now().Format(time.RFC3339),
		})
	}))
	defer server.Close()

	client, _, _, _ := newTestClient(t, server.URL)
	require.NoError(t, client.Start(context.Background()))
	client.Stop()
	client.Stop()
}

func TestCanOperateReflectsLocalKeyAvailability(t *testing.T) {
	client, keys, _, _ := newTestClient(t, "http://127.0.0.1:1")
	assert.False(t, client.CanOperate())
	_, _, err := keys.GetCurrent()
	require.NoError(t, err)
	assert.True(t, client.CanOperate())
}

// TestPushListenerTriggersOutOfBandSync exercises the push receive loop:
// the client here syncs on its own timer only once an hour, so the only
// way a second sync request can arrive within the test's short window is
// the push listener reacting to a broadcast message.
func TestPushListenerTriggersOutOfBandSync(t *testing.T) {
	var syncCount int32
	pushMsg := make(chan leader.PushMessage, 1)

	mux := http.NewServeMux()
	mux.HandleFunc("/sync", func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&syncCount, 1)
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"signing_key_version":    1,
			"revocation_list_delta":  []string{},
			"revocation_list_version": 0,
			"next_sync_seconds":      3600,
			"leader_timestamp":       time.Now().Format(time.RFC3339),
		})
	})
	mux.HandleFunc("/push/follower-1", func(w http.ResponseWriter, r *http.Request) {
		flusher, ok := w.(http.Flusher)
		require.True(t, ok)
		w.Header().Set("Content-Type", "application/x-ndjson")
		w.WriteHeader(http.StatusOK)
		flusher.Flush()

		enc := json.NewEncoder(w)
		select {
		case msg := <-pushMsg:
			_ = enc.Encode(msg)
			flusher.Flush()
		case <-r.Context().Done():
			return
		}
		<-r.Context().Done()
	})

	server := httptest.NewServer(mux)
	defer server.Close()

	dir := t.TempDir()
	keys, err := keystore.New(dir)
	require.NoError(t, err)
	revocations, err := revocation.New(dir)
	require.NoError(t, err)
	cfgStore := config.New(dir)
	require.NoError(t, cfgStore.EnsureDir())
	client := follower.New(follower.Config{
		LeaderURL:    server.URL,
		BearerToken:  "test-bearer-token",
		FollowerID:   "follower-1",
		SyncInterval: time.Hour,
		SyncTimeout:  time.Second,
	}, keys, revocations, cfgStore, nil, nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, client.Start(ctx))
	defer client.Stop()

	require.Eventually(t, func() bool { return atomic.LoadInt32(&syncCount) >= 1 }, time.Second, 10*time.Millisecond)

	pushMsg <- leader.PushMessage{Type: leader.PushKeyRotation, Version: 2, SentAt: time.Now()}

	require.Eventually(t, func() bool { return atomic.LoadInt32(&syncCount) >= 2 }, time.Second, 10*time.Millisecond)
}
