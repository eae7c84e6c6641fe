package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/systmms/agentcred/cmd/agentbroker/commands"
	"github.com/systmms/agentcred/internal/logging"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	var (
		stateDir string
		noColor  bool
		debug    bool
	)

	app := &commands.App{}

	rootCmd := &cobra.Command{
		Use:   "agentbroker",
		Short: "Capability-based credential broker for autonomous software agents",
		Long: `agentbroker issues short-lived upstream credentials to agents holding
signed capability tokens. It runs as a leader (authoritative signing key,
revocation set, and provider config), a follower (periodically synced
replica), or a one-shot token/credential CLI against local state.`,
		Version: fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, date),
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			app.Logger = logging.New(debug, noColor)
			app.StateDir = stateDir
			return nil
		},
	}

	rootCmd.PersistentFlags().StringVar(&stateDir, "state-dir", "./agentbroker-state", "Directory holding signing keys, revocations, and provider config")
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "Disable colored log output")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "Enable debug logging")

	rootCmd.AddCommand(
		commands.NewServeCommand(app),
		commands.NewFollowCommand(app),
		commands.NewTokenCommand(app),
		commands.NewCredentialCommand(app),
	)

	return rootCmd.Execute()
}
