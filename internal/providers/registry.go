package providers

import (
	"fmt"

	"github.com/systmms/agentcred/internal/config"
	"github.com/systmms/agentcred/internal/providers/adapters"
	"github.com/systmms/agentcred/internal/providers/vault"
	"github.com/systmms/agentcred/pkg/provider"
)

// Registry manages provider creation and registration.
type Registry struct {
	factories map[string]ProviderFactory
}

// ProviderFactory creates a provider instance from configuration.
type ProviderFactory func(name string, config map[string]interface{}) (provider.Provider, error)

// NewRegistry creates a new provider registry with the built-in credential
// issuers: two in-process test doubles and one adapter per upstream
// identity/secret system exercised by this broker.
func NewRegistry() *Registry {
	registry := &Registry{factories: make(map[string]ProviderFactory)}

	registry.RegisterFactory("literal", NewLiteralProviderFactory)
	registry.RegisterFactory("mock", NewMockProviderFactory)
	registry.RegisterFactory("aws.sts", NewAWSSTSProviderFactory)
	registry.RegisterFactory("aws.secretsmanager", NewAWSSecretsManagerProviderFactory)
	registry.RegisterFactory("azure.identity", NewAzureIdentityProviderFactory)
	registry.RegisterFactory("azure.keyvault", NewAzureKeyVaultProviderFactory)
	registry.RegisterFactory("gcp.secretmanager", NewGCPSecretManagerProviderFactory)
	registry.RegisterFactory("vault", NewVaultProviderFactory)
	registry.RegisterFactory("akeyless", NewAkeylessProviderFactory)

	return registry
}

// RegisterFactory registers a provider factory for a given type.
func (r *Registry) RegisterFactory(providerType string, factory ProviderFactory) {
	r.factories[providerType] = factory
}

// CreateProvider creates a provider instance from configuration.
func (r *Registry) CreateProvider(name string, cfg config.ProviderConfig) (provider.Provider, error) {
	factory, exists := r.factories[cfg.Type]
	if !exists {
		return nil, fmt.Errorf("unknown provider type: %s", cfg.Type)
	}
	return factory(name, cfg.Config)
}

// GetSupportedTypes returns a list of supported provider types.
func (r *Registry) GetSupportedTypes() []string {
	types := make([]string, 0, len(r.factories))
	for providerType := range r.factories {
		types = append(types, providerType)
	}
	return types
}

// IsSupported checks if a provider type is supported.
func (r *Registry) IsSupported(providerType string) bool {
	_, exists := r.factories[providerType]
	return exists
}

// Factory functions for built-in providers.

func NewLiteralProviderFactory(name string, config map[string]interface{}) (provider.Provider, error) {
	values := make(map[string]string)
	if configMap, ok := config["values"].(map[string]interface{}); ok {
		for k, v := range configMap {
			if str, ok := v.(string); ok {
				values[k] = str
			}
		}
	}
	return NewLiteralProvider(name, values), nil
}

func NewMockProviderFactory(name string, config map[string]interface{}) (provider.Provider, error) {
	mockProvider := NewMockProvider(name)
	mockProvider.SetValue("test-secret", "mock-value")
	mockProvider.SetValue("api-key", "mock-api-key-123")

	if values, ok := config["values"].(map[string]interface{}); ok {
		for k, v := range values {
			if str, ok := v.(string); ok {
				mockProvider.SetValue(k, str)
			}
		}
	}
	return mockProvider, nil
}

func NewAWSSTSProviderFactory(name string, config map[string]interface{}) (provider.Provider, error) {
	return adapters.NewAWSSTSAdapter(name, config)
}

func NewAWSSecretsManagerProviderFactory(name string, config map[string]interface{}) (provider.Provider, error) {
	return adapters.NewAWSSecretsManagerAdapter(name, config)
}

func NewAzureIdentityProviderFactory(name string, config map[string]interface{}) (provider.Provider, error) {
	return adapters.NewAzureIdentityAdapter(name, config)
}

func NewAzureKeyVaultProviderFactory(name string, config map[string]interface{}) (provider.Provider, error) {
	return adapters.NewAzureKeyVaultAdapter(name, config)
}

func NewGCPSecretManagerProviderFactory(name string, config map[string]interface{}) (provider.Provider, error) {
	return adapters.NewGCPSecretManagerAdapter(name, config)
}

func NewVaultProviderFactory(name string, config map[string]interface{}) (provider.Provider, error) {
	return vault.NewVaultAdapter(name, config)
}

func NewAkeylessProviderFactory(name string, config map[string]interface{}) (provider.Provider, error) {
	return adapters.NewAkeylessAdapter(name, config)
}
