package commands

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/systmms/agentcred/internal/config"
)

func TestCredentialGetResolvesMockProvider(t *testing.T) {
	app := testApp(t)

	configStore, err := app.OpenConfigStore()
	require.NoError(t, err)
	require.NoError(t, configStore.SetProvider("mock", config.ProviderConfig{
		Type:   "mock",
		Config: map[string]interface{}{"values": map[string]interface{}{"widget": "tok-abc"}},
	}))

	createCmd := newTokenCreateCommand(app)
	rootOut := captureStdout(t, createCmd, []string{"--agent-id", "agent-1", "--scope", "mock:*"})

	getCmd := newCredentialGetCommand(app)
	out := captureStdout(t, getCmd, []string{
		"--token", trimNewline(rootOut),
		"--scope", "mock:read",
		"--resource", "widget",
	})

	var payload map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(out), &payload))
	assert.Equal(t, "tok-abc", payload["bearer_token"])
}
