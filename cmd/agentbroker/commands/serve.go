package commands

import (
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/systmms/agentcred/internal/audit"
	dserrors "github.com/systmms/agentcred/internal/errors"
	"github.com/systmms/agentcred/internal/leader"
	"github.com/systmms/agentcred/internal/metrics"
	"github.com/systmms/agentcred/internal/notifications"
)

// NewServeCommand runs agentbroker as a leader: authoritative signing key,
// revocation set, and provider config, served to followers over HTTP(S).
func NewServeCommand(app *App) *cobra.Command {
	var (
		addr         string
		bearerToken  string
		tlsCert      string
		tlsKey       string
		slackURL     string
		webhookURL   string
		pagerDutyKey string
		auditDialect string
		auditDSN     string
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run as the leader, serving sync and mutation requests to followers",
		RunE: func(cmd *cobra.Command, args []string) error {
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
			if slackURL != "" {
				notifier.RegisterProvider(notifications.NewSlackProvider(notifications.SlackConfig{WebhookURL: slackURL}))
			}
			if webhookURL != "" {
				notifier.RegisterProvider(notifications.NewWebhookProvider(notifications.WebhookConfig{Name: "webhook", URL: webhookURL, Method: http.MethodPost}))
			}
			if pagerDutyKey != "" {
				notifier.RegisterProvider(notifications.NewPagerDutyProvider(notifications.PagerDutyConfig{IntegrationKey: pagerDutyKey}))
			}

			ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer cancel()
			notifier.Start(ctx)
			defer notifier.Stop()

			var auditSink *audit.Sink
			if auditDSN != "" {
				db, err := audit.Open(ctx, audit.Dialect(auditDialect), auditDSN)
				if err != nil {
					return err
				}
				defer func() { _ = db.Close() }()
				auditSink = audit.New(db, audit.Dialect(auditDialect))
				if err := auditSink.EnsureSchema(ctx); err != nil {
					return err
				}
			}

			cfg := leader.DefaultConfig()
			cfg.Addr = addr
			cfg.BearerToken = bearerToken
			cfg.TLSCertPath = tlsCert
			cfg.TLSKeyPath = tlsKey

			server := leader.New(cfg, keys, revocations, configStore, notifier, auditSink, app.Logger)
			app.Logger.Info("leader listening on %s", addr)
			return leader.Run(ctx, server, 10*time.Second)
		},
	}

	cmd.Flags().StringVar(&addr, "addr", ":8443", "Listen address")
	cmd.Flags().StringVar(&bearerToken, "bearer-token", os.Getenv("AGENTBROKER_BEARER_TOKEN"), "Bearer token followers must present")
	cmd.Flags().StringVar(&tlsCert, "tls-cert", "", "TLS certificate path (plain HTTP if empty)")
	cmd.Flags().StringVar(&tlsKey, "tls-key", "", "TLS key path")
	cmd.Flags().StringVar(&slackURL, "slack-webhook-url", os.Getenv("AGENTBROKER_SLACK_WEBHOOK_URL"), "Slack incoming webhook URL for governance events")
	cmd.Flags().StringVar(&webhookURL, "webhook-url", os.Getenv("AGENTBROKER_WEBHOOK_URL"), "Generic webhook URL for governance events")
	cmd.Flags().StringVar(&pagerDutyKey, "pagerduty-integration-key", os.Getenv("AGENTBROKER_PAGERDUTY_KEY"), "PagerDuty Events API v2 integration key for governance events")
	cmd.Flags().StringVar(&auditDialect, "audit-dialect", "postgres", "SQL dialect for the audit sink (postgres or mysql)")
	cmd.Flags().StringVar(&auditDSN, "audit-dsn", os.Getenv("AGENTBROKER_AUDIT_DSN"), "DSN for the audit sink; audit logging is disabled when empty")

	return cmd
}
