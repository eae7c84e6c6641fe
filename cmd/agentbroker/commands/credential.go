package commands

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/systmms/agentcred/internal/broker"
	"github.com/systmms/agentcred/internal/token"
)

// NewCredentialCommand groups one-shot credential operations against local
// state: signing key, revocations, and provider config, with no leader or
// follower process running.
func NewCredentialCommand(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "credential",
		Short: "Issue a credential against local state",
	}
	cmd.AddCommand(newCredentialGetCommand(app))
	return cmd
}

func newCredentialGetCommand(app *App) *cobra.Command {
	var (
		serialized string
		scope      string
		resource   string
	)

	cmd := &cobra.Command{
		Use:   "get",
		Short: "Resolve a (scope, resource) request into an upstream credential",
		RunE: func(cmd *cobra.Command, args []string) error {
			keys, err := app.OpenKeystore()
			if err != nil {
				return err
			}
			signingKeys, err := signingKeysFromStore(keys)
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
			rec, err := configStore.Load()
			if err != nil {
				return err
			}
			providerInstances, err := buildProviders(rec)
			if err != nil {
				return err
			}

			tok, err := token.Deserialize(serialized)
			if err != nil {
				return err
			}

			b := broker.New(signingKeys, providerInstances, app.Logger)
			b.SetRevocations(revocations)

			cred, err := b.GetCredential(context.Background(), tok, scope, resource)
			if err != nil {
				return err
			}

			out, err := json.MarshalIndent(cred, "", "  ")
			if err != nil {
				return err
			}
			fmt.Println(string(out))
			return nil
		},
	}
	cmd.Flags().StringVar(&serialized, "token", "", "Serialized capability token")
	cmd.Flags().StringVar(&scope, "scope", "", "Scope the token is asserting")
	cmd.Flags().StringVar(&resource, "resource", "", "Resource within scope")
	_ = cmd.MarkFlagRequired("token")
	_ = cmd.MarkFlagRequired("scope")
	_ = cmd.MarkFlagRequired("resource")
	return cmd
}
