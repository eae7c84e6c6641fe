// Package commands implements agentbroker's Cobra command tree: serve
// (leader), follow (follower), token (mint/delegate/refresh), and credential
// (one-shot issuance against local state). Deliberately thin compared to the
// teacher's full operator CLI — no interactive setup, doctoring, or
// guard/leak tooling; those remain out of this repository's scope.
package commands

import (
	"path/filepath"

	"github.com/systmms/agentcred/internal/config"
	"github.com/systmms/agentcred/internal/keystore"
	"github.com/systmms/agentcred/internal/logging"
	"github.com/systmms/agentcred/internal/revocation"
)

// App carries the flags and lazily-opened local state shared by every
// subcommand, mirroring the teacher's shared *config.Config passed into each
// NewXCommand constructor.
type App struct {
	StateDir string
	Logger   *logging.Logger
}

// keystorePath, revocationPath, and configStorePath are the three fixed
// subdirectories of StateDir the Open* methods below open local state from.
func (a *App) keystorePath() string    { return filepath.Join(a.StateDir, "keys") }
func (a *App) revocationPath() string  { return filepath.Join(a.StateDir, "revocations") }
func (a *App) configStorePath() string { return filepath.Join(a.StateDir, "config") }

// OpenKeystore opens (and creates if absent) the local signing key store.
func (a *App) OpenKeystore() (*keystore.Store, error) {
	return keystore.New(a.keystorePath())
}

// OpenRevocations opens (and creates if absent) the local revocation set.
func (a *App) OpenRevocations() (*revocation.Set, error) {
	return revocation.New(a.revocationPath())
}

// OpenConfigStore opens the local provider-configuration store, creating its
// directory if needed.
func (a *App) OpenConfigStore() (*config.Store, error) {
	store := config.New(a.configStorePath())
	if err := store.EnsureDir(); err != nil {
		return nil, err
	}
	return store, nil
}
