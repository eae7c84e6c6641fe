package config_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zalando/go-keyring"

	"github.com/systmms/agentcred/internal/config"
)

func TestGetOrCreateSecretGeneratesAndPersists(t *testing.T) {
	dir := t.TempDir()
	store := config.New(dir)
	require.NoError(t, store.EnsureDir())

	secret, err := store.GetOrCreateSecret()
	require.NoError(t, err)
	assert.Len(t, secret, 32)

	info, err := os.Stat(filepath.Join(dir, "token_secret"))
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())

	again, err := store.GetOrCreateSecret()
	require.NoError(t, err)
	assert.Equal(t, secret, again)
}

func TestGetOrCreateSecretStableAcrossReload(t *testing.T) {
	dir := t.TempDir()
	first := config.New(dir)
	require.NoError(t, first.EnsureDir())
	secret, err := first.GetOrCreateSecret()
	require.NoError(t, err)

	second := config.New(dir)
	reloaded, err := second.GetOrCreateSecret()
	require.NoError(t, err)
	assert.Equal(t, secret, reloaded)
}

func TestSaveLoadRoundTrip(t *testing.T) {
	store := config.New(t.TempDir())
	rec := config.Record{Providers: map[string]config.ProviderConfig{
		"vault-prod": {Type: "vault", Config: map[string]interface{}{"address": "https://vault.internal"}},
	}}
	require.NoError(t, store.Save(rec))

	loaded, err := store.Load()
	require.NoError(t, err)
	assert.Equal(t, rec.Providers["vault-prod"].Type, loaded.Providers["vault-prod"].Type)
}

func TestLoadMissingFileReturnsEmptyRecord(t *testing.T) {
	store := config.New(t.TempDir())
	rec, err := store.Load()
	require.NoError(t, err)
	assert.Empty(t, rec.Providers)
}

func TestSetProviderUpsertsWithoutDroppingOthers(t *testing.T) {
	store := config.New(t.TempDir())
	require.NoError(t, store.SetProvider("aws", config.ProviderConfig{Type: "aws.sts"}))
	require.NoError(t, store.SetProvider("gcp", config.ProviderConfig{Type: "gcp.secretmanager"}))

	rec, err := store.Load()
	require.NoError(t, err)
	assert.Len(t, rec.Providers, 2)
	assert.Equal(t, "aws.sts", rec.Providers["aws"].Type)
}

func TestGetProviderTimeoutDefaultsTo30Seconds(t *testing.T) {
	cfg := config.ProviderConfig{Type: "vault"}
	assert.Equal(t, 30000, cfg.GetProviderTimeout())

	cfg.TimeoutMs = 5000
	assert.Equal(t, 5000, cfg.GetProviderTimeout())
}

func TestSeedFromYAMLDoesNotOverwriteExistingConfig(t *testing.T) {
	dir := t.TempDir()
	store := config.New(dir)
	require.NoError(t, store.SetProvider("existing", config.ProviderConfig{Type: "literal"}))

	seedPath := filepath.Join(dir, "seed.yaml")
	require.NoError(t, os.WriteFile(seedPath, []byte("providers:\n  seeded:\n    type: vault\n"), 0600))

	require.NoError(t, store.SeedFromYAML(seedPath))

	rec, err := store.Load()
	require.NoError(t, err)
	assert.Len(t, rec.Providers, 1)
	assert.Contains(t, rec.Providers, "existing")
}

func TestSeedFromYAMLAppliesWhenNoConfigExists(t *testing.T) {
	dir := t.TempDir()
	seedPath := filepath.Join(dir, "seed.yaml")
	require.NoError(t, os.WriteFile(seedPath, []byte("providers:\n  seeded:\n    type: vault\n"), 0600))

	store := config.New(dir)
	require.NoError(t, store.SeedFromYAML(seedPath))

	rec, err := store.Load()
	require.NoError(t, err)
	assert.Equal(t, "vault", rec.Providers["seeded"].Type)
}

func TestRedactedViewMasksSensitiveFields(t *testing.T) {
	rec := config.Record{Providers: map[string]config.ProviderConfig{
		"azure": {
			Type: "azure.keyvault",
			Config: map[string]interface{}{
				"clientSecret": "super-secret-value",
				"vaultName":    "prod-vault",
			},
		},
	}}

	view := config.RedactedView(rec)
	azure := view["azure"].(map[string]interface{})
	cfg := azure["config"].(map[string]interface{})
	assert.Equal(t, "***REDACTED***", cfg["clientSecret"])
	assert.Equal(t, "prod-vault", cfg["vaultName"])
}

func TestRedactedViewReportsFileExistenceForPathFields(t *testing.T) {
	dir := t.TempDir()
	keyPath := filepath.Join(dir, "key.pem")
	require.NoError(t, os.WriteFile(keyPath, []byte("fake"), 0600))

	rec := config.Record{Providers: map[string]config.ProviderConfig{
		"gcp": {Type: "gcp.secretmanager", Config: map[string]interface{}{
			"privateKeyPath": keyPath,
		}},
	}}

	view := config.RedactedView(rec)
	gcp := view["gcp"].(map[string]interface{})
	cfg := gcp["config"].(map[string]interface{})
	report := cfg["privateKeyPath"].(map[string]interface{})
	assert.True(t, report["exists"].(bool))

	rec.Providers["gcp"] = config.ProviderConfig{Type: "gcp.secretmanager", Config: map[string]interface{}{
		"privateKeyPath": filepath.Join(dir, "missing.pem"),
	}}
	view = config.RedactedView(rec)
	gcp = view["gcp"].(map[string]interface{})
	cfg = gcp["config"].(map[string]interface{})
	report = cfg["privateKeyPath"].(map[string]interface{})
	assert.False(t, report["exists"].(bool))
}

func TestGetOrCreateSecretKeyringBackendGeneratesAndPersists(t *testing.T) {
	keyring.MockInit()

	store := config.NewWithKeyring(t.TempDir(), "agentcred-test-"+t.Name())
	secret, err := store.GetOrCreateSecret()
	require.NoError(t, err)
	assert.Len(t, secret, 32)

	again, err := store.GetOrCreateSecret()
	require.NoError(t, err)
	assert.Equal(t, secret, again)
}

func TestValidateProviderConfigRequiresType(t *testing.T) {
	require.NoError(t, config.ValidateProviderConfig(map[string]interface{}{"type": "vault"}))
	assert.Error(t, config.ValidateProviderConfig(map[string]interface{}{}))
}
