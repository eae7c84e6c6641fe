package commands

import (
	"encoding/base64"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	dserrors "github.com/systmms/agentcred/internal/errors"
	"github.com/systmms/agentcred/internal/keystore"
	"github.com/systmms/agentcred/internal/token"
)

// signingKeysFromStore builds a token.SigningKeys from every key the local
// keystore currently retains, with the current version as the signing key
// and every retained version (including the current one) accepted for
// verification — the same set the broker would use.
func signingKeysFromStore(store *keystore.Store) (token.SigningKeys, error) {
	current, _, err := store.GetCurrent()
	if err != nil {
		return token.SigningKeys{}, err
	}
	verify := [][]byte{current}
	for _, k := range store.KeysSince(0) {
		raw, err := base64.StdEncoding.DecodeString(k.KeyB64)
		if err != nil {
			continue
		}
		verify = append(verify, raw)
	}
	return token.SigningKeys{Current: current, Verify: verify}, nil
}

// NewTokenCommand groups the token-lifecycle subcommands.
func NewTokenCommand(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Mint, delegate, or refresh capability tokens",
	}
	cmd.AddCommand(
		newTokenCreateCommand(app),
		newTokenDelegateCommand(app),
		newTokenRefreshCommand(app),
	)
	return cmd
}

func newTokenCreateCommand(app *App) *cobra.Command {
	var (
		agentID string
		scopes  []string
		ttl     time.Duration
	)

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Mint a new root token",
		RunE: func(cmd *cobra.Command, args []string) error {
			if agentID == "" {
				return dserrors.UserError{Message: "--agent-id is required"}
			}
			store, err := app.OpenKeystore()
			if err != nil {
				return err
			}
			keys, err := signingKeysFromStore(store)
			if err != nil {
				return err
			}

			params := token.CreateRootParams{AgentID: agentID, Scopes: scopes}
			if ttl > 0 {
				params.TTL = &ttl
			}
			tok, err := token.CreateRoot(keys, params)
			if err != nil {
				return err
			}
			serialized, err := token.Serialize(tok)
			if err != nil {
				return err
			}
			fmt.Println(serialized)
			return nil
		},
	}
	cmd.Flags().StringVar(&agentID, "agent-id", "", "Identifier of the agent this token belongs to")
	cmd.Flags().StringSliceVar(&scopes, "scope", nil, "Scope pattern the token may request (repeatable)")
	cmd.Flags().DurationVar(&ttl, "ttl", 0, "Token lifetime; unset means no expiry")
	return cmd
}

func newTokenDelegateCommand(app *App) *cobra.Command {
	var (
		parentSerialized string
		agentID          string
		scopes           []string
		ttl              time.Duration
	)

	cmd := &cobra.Command{
		Use:   "delegate",
		Short: "Mint a child token attenuated from a parent",
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := app.OpenKeystore()
			if err != nil {
				return err
			}
			keys, err := signingKeysFromStore(store)
			if err != nil {
				return err
			}

			parent, err := token.Deserialize(parentSerialized)
			if err != nil {
				return dserrors.UserError{Message: "could not parse --parent-token", Err: err}
			}

			req := token.DelegateRequest{AgentID: agentID, Scopes: scopes}
			if ttl > 0 {
				req.TTL = &ttl
			}
			child, err := token.Delegate(keys, parent, req)
			if err != nil {
				return err
			}
			serialized, err := token.Serialize(child)
			if err != nil {
				return err
			}
			fmt.Println(serialized)
			return nil
		},
	}
	cmd.Flags().StringVar(&parentSerialized, "parent-token", "", "Serialized parent token")
	cmd.Flags().StringVar(&agentID, "agent-id", "", "Identifier of the delegate agent")
	cmd.Flags().StringSliceVar(&scopes, "scope", nil, "Scope pattern the child token may request (repeatable)")
	cmd.Flags().DurationVar(&ttl, "ttl", 0, "Child token lifetime, clamped to the parent's own expiry")
	_ = cmd.MarkFlagRequired("parent-token")
	_ = cmd.MarkFlagRequired("agent-id")
	return cmd
}

func newTokenRefreshCommand(app *App) *cobra.Command {
	var serialized string

	cmd := &cobra.Command{
		Use:   "refresh",
		Short: "Extend a token's expiry, re-signed with the current key",
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := app.OpenKeystore()
			if err != nil {
				return err
			}
			keys, err := signingKeysFromStore(store)
			if err != nil {
				return err
			}

			tok, err := token.Deserialize(serialized)
			if err != nil {
				return dserrors.UserError{Message: "could not parse --token", Err: err}
			}

			refreshed, err := token.Refresh(keys, tok, nil)
			if err != nil {
				return err
			}
			out, err := token.Serialize(refreshed)
			if err != nil {
				return err
			}
			fmt.Println(out)
			return nil
		},
	}
	cmd.Flags().StringVar(&serialized, "token", "", "Serialized token to refresh")
	_ = cmd.MarkFlagRequired("token")
	return cmd
}
