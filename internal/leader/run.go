package leader

import (
	"context"
	"time"
)

// Run starts the server, blocks until ctx is cancelled, then shuts down
// gracefully within shutdownTimeout. It is the building block cmd/agentbroker
// wires into its "serve" subcommand.
func Run(ctx context.Context, server *Server, shutdownTimeout time.Duration) error {
	if err := server.Start(); err != nil {
		return err
	}

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return server.Stop(shutdownCtx)
}
