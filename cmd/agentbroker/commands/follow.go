package commands

import (
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	dserrors "github.com/systmms/agentcred/internal/errors"
	"github.com/systmms/agentcred/internal/follower"
	"github.com/systmms/agentcred/internal/metrics"
	"github.com/systmms/agentcred/internal/notifications"
)

// NewFollowCommand runs agentbroker as a follower: periodically syncs
// signing key, revocation, and provider-config deltas from a leader.
func NewFollowCommand(app *App) *cobra.Command {
	var (
		leaderURL    string
		bearerToken  string
		followerID   string
		syncInterval time.Duration
	)

	cmd := &cobra.Command{
		Use:   "follow",
		Short: "Run as a follower, periodically syncing from a leader",
		RunE: func(cmd *cobra.Command, args []string) error {
			if leaderURL == "" {
				return dserrors.UserError{
					Message:    "a leader URL is required",
					Suggestion: "pass --leader-url or set AGENTBROKER_LEADER_URL",
				}
			}
			if bearerToken == "" {
				return dserrors.UserError{
					Message:    "a bearer token is required",
					Suggestion: "pass --bearer-token or set AGENTBROKER_BEARER_TOKEN",
				}
			}

			keys, err := app.OpenKeystore()
			if err != nil {
				return err
			}
			revocations, err := app.OpenRevocations()
			if err != nil {
				return err
			}
			configStore, err := app.OpenConfigStore()
			if err != nil {
				return err
			}

			metrics.InitMetrics()
			notifier := notifications.NewManager(notifications.DefaultQueueSize)

			ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer cancel()
			notifier.Start(ctx)
			defer notifier.Stop()

			cfg := follower.DefaultConfig()
			cfg.LeaderURL = leaderURL
			cfg.BearerToken = bearerToken
			cfg.FollowerID = followerID
			if syncInterval > 0 {
				cfg.SyncInterval = syncInterval
			}

			client := follower.New(cfg, keys, revocations, configStore, notifier, app.Logger)
			app.Logger.Info("follower %s syncing from %s", followerID, leaderURL)
			return follower.Run(ctx, client)
		},
	}

	cmd.Flags().StringVar(&leaderURL, "leader-url", os.Getenv("AGENTBROKER_LEADER_URL"), "Base URL of the leader to sync from")
	cmd.Flags().StringVar(&bearerToken, "bearer-token", os.Getenv("AGENTBROKER_BEARER_TOKEN"), "Bearer token presented to the leader")
	cmd.Flags().StringVar(&followerID, "follower-id", "", "Identifier this follower reports to the leader")
	cmd.Flags().DurationVar(&syncInterval, "sync-interval", 0, "Override the default sync cadence")

	return cmd
}
