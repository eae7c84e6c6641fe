package keystore_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/systmms/agentcred/internal/keystore"
)

func TestGetCurrentMintsVersionOneOnFirstAccess(t *testing.T) {
	store, err := keystore.New(t.TempDir())
	require.NoError(t, err)

	key, version, err := store.GetCurrent()
	require.NoError(t, err)
	assert.Equal(t, 1, version)
	assert.Len(t, key, 32)

	key2, version2, err := store.GetCurrent()
	require.NoError(t, err)
	assert.Equal(t, version, version2)
	assert.Equal(t, key, key2)
}

func TestRotateDeprecatesPriorAndAdvancesVersion(t *testing.T) {
	store, err := keystore.New(t.TempDir())
	require.NoError(t, err)

	oldKey, oldVersion, err := store.GetCurrent()
	require.NoError(t, err)

	newKey, newVersion, err := store.Rotate()
	require.NoError(t, err)
	assert.Equal(t, oldVersion+1, newVersion)
	assert.NotEqual(t, oldKey, newKey)

	got, ok, err := store.Get(oldVersion)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, oldKey, got)

	cur, curVersion, err := store.GetCurrent()
	require.NoError(t, err)
	assert.Equal(t, newVersion, curVersion)
	assert.Equal(t, newKey, cur)
}

func TestGetUnknownVersionReturnsNotOK(t *testing.T) {
	store, err := keystore.New(t.TempDir())
	require.NoError(t, err)

	_, ok, err := store.Get(999)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestExportImportRoundTrip(t *testing.T) {
	leader, err := keystore.New(t.TempDir())
	require.NoError(t, err)
	_, _, err = leader.GetCurrent()
	require.NoError(t, err)
	exported, err := leader.ExportCurrent()
	require.NoError(t, err)

	follower, err := keystore.New(t.TempDir())
	require.NoError(t, err)

	require.NoError(t, follower.Import(exported, 1))
	key, version, err := follower.GetCurrent()
	require.NoError(t, err)
	assert.Equal(t, 1, version)

	leaderKey, _, err := leader.Get(1)
	require.NoError(t, err)
	assert.Equal(t, leaderKey, key)
}

func TestImportNeverOverwritesExistingVersion(t *testing.T) {
	store, err := keystore.New(t.TempDir())
	require.NoError(t, err)
	original, _, err := store.GetCurrent()
	require.NoError(t, err)

	require.NoError(t, store.Import("AAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAA", 1))

	stillOriginal, _, err := store.Get(1)
	require.NoError(t, err)
	assert.Equal(t, original, stillOriginal)
}

func TestImportOnlyAdvancesCurrentVersionWhenStrictlyNewer(t *testing.T) {
	store, err := keystore.New(t.TempDir())
	require.NoError(t, err)
	_, _, err = store.GetCurrent() // version 1
	require.NoError(t, err)
	_, _, err = store.Rotate() // version 2
	require.NoError(t, err)

	require.NoError(t, store.Import("AAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAA", 1))
	_, version, err := store.GetCurrent()
	require.NoError(t, err)
	assert.Equal(t, 2, version, "importing an older version must not move current_version backward")
}

func TestPruneRemovesOnlyOldNonCurrentKeys(t *testing.T) {
	store, err := keystore.New(t.TempDir())
	require.NoError(t, err)
	_, _, err = store.GetCurrent()
	require.NoError(t, err)
	_, _, err = store.Rotate()
	require.NoError(t, err)

	removed, err := store.Prune(0)
	require.NoError(t, err)
	assert.Equal(t, 1, removed)

	_, ok, err := store.Get(1)
	require.NoError(t, err)
	assert.False(t, ok)

	_, curVersion, err := store.GetCurrent()
	require.NoError(t, err)
	assert.Equal(t, 2, curVersion)
}

func TestKeysSinceReturnsOnlyNewerVersionsAscending(t *testing.T) {
	store, err := keystore.New(t.TempDir())
	require.NoError(t, err)
	_, _, err = store.GetCurrent()
	require.NoError(t, err)
	_, _, err = store.Rotate()
	require.NoError(t, err)
	_, _, err = store.Rotate()
	require.NoError(t, err)

	keys := store.KeysSince(1)
	require.Len(t, keys, 2)
	assert.Equal(t, 2, keys[0].Version)
	assert.Equal(t, 3, keys[1].Version)
}

func TestStorePersistsAcrossReload(t *testing.T) {
	dir := t.TempDir()

	store, err := keystore.New(dir)
	require.NoError(t, err)
	key, version, err := store.GetCurrent()
	require.NoError(t, err)

	reloaded, err := keystore.New(dir)
	require.NoError(t, err)
	gotKey, gotVersion, err := reloaded.GetCurrent()
	require.NoError(t, err)
	assert.Equal(t, version, gotVersion)
	assert.Equal(t, key, gotKey)
}
