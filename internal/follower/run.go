package follower

import "context"

// Run starts the client and blocks until ctx is cancelled, then stops the
// sync loop. It is the building block cmd/agentbroker wires into its
// "follow" subcommand.
func Run(ctx context.Context, client *Client) error {
	if err := client.Start(ctx); err != nil {
		return err
	}
	<-ctx.Done()
	client.Stop()
	return nil
}
