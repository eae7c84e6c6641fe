package commands

import (
	"fmt"

	"github.com/systmms/agentcred/internal/config"
	"github.com/systmms/agentcred/internal/providers"
	"github.com/systmms/agentcred/pkg/provider"
)

// buildProviders instantiates one provider.Provider per entry in rec using
// the built-in registry, keyed by the name under which each was configured
// (the same name a scope's leading segment addresses).
func buildProviders(rec config.Record) (map[string]provider.Provider, error) {
	registry := providers.NewRegistry()
	out := make(map[string]provider.Provider, len(rec.Providers))
	for name, cfg := range rec.Providers {
		p, err := registry.CreateProvider(name, cfg)
		if err != nil {
			return nil, fmt.Errorf("provider %q: %w", name, err)
		}
		out[name] = p
	}
	return out, nil
}
