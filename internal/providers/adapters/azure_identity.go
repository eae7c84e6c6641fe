package adapters

import (
	"context"
	"fmt"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/policy"
	"github.com/Azure/azure-sdk-for-go/sdk/azidentity"

	"github.com/systmms/agentcred/internal/logging"
	"github.com/systmms/agentcred/pkg/provider"
)

// AzureIdentityAdapter issues Azure AD access tokens via managed identity or
// a service principal. This is the most direct fit in the pack for bearer
// credential issuance: Azure's own token cache already handles reuse, so
// IssueCredential simply forwards to azcore.TokenCredential.GetToken.
type AzureIdentityAdapter struct {
	name       string
	credential azcore.TokenCredential
	logger     *logging.Logger
	config     AzureIdentityConfig
}

type AzureIdentityConfig struct {
	TenantID           string
	ClientID           string
	ClientSecret       string
	UseManagedIdentity bool
	UserAssignedID     string
	DefaultScope       string
}

func NewAzureIdentityAdapter(name string, configMap map[string]interface{}) (*AzureIdentityAdapter, error) {
	cfg := AzureIdentityConfig{
		UseManagedIdentity: true,
		DefaultScope:       "https://management.azure.com/.default",
	}
	if v, ok := configMap["tenant_id"].(string); ok {
		cfg.TenantID = v
	}
	if v, ok := configMap["client_id"].(string); ok {
		cfg.ClientID = v
	}
	if v, ok := configMap["client_secret"].(string); ok {
		cfg.ClientSecret = v
	}
	if v, ok := configMap["use_managed_identity"].(bool); ok {
		cfg.UseManagedIdentity = v
	}
	if v, ok := configMap["user_assigned_identity_id"].(string); ok {
		cfg.UserAssignedID = v
	}
	if v, ok := configMap["scope"].(string); ok {
		cfg.DefaultScope = v
	}

	cred, err := newAzureCredential(cfg)
	if err != nil {
		return nil, fmt.Errorf("azure.identity: %w", err)
	}
	return &AzureIdentityAdapter{name: name, credential: cred, logger: logging.New(false, false), config: cfg}, nil
}

func newAzureCredential(cfg AzureIdentityConfig) (azcore.TokenCredential, error) {
	switch {
	case cfg.UseManagedIdentity && cfg.UserAssignedID != "":
		return azidentity.NewManagedIdentityCredential(&azidentity.ManagedIdentityCredentialOptions{
			ID: azidentity.ClientID(cfg.UserAssignedID),
		})
	case cfg.UseManagedIdentity:
		return azidentity.NewManagedIdentityCredential(nil)
	case cfg.ClientSecret != "":
		if cfg.TenantID == "" || cfg.ClientID == "" {
			return nil, fmt.Errorf("tenant_id and client_id are required for service principal auth")
		}
		return azidentity.NewClientSecretCredential(cfg.TenantID, cfg.ClientID, cfg.ClientSecret, nil)
	default:
		return azidentity.NewDefaultAzureCredential(nil)
	}
}

func (a *AzureIdentityAdapter) Name() string { return a.name }

func (a *AzureIdentityAdapter) IssueCredential(ctx context.Context, ref provider.Reference) (provider.Credential, error) {
	scope := ref.Key
	if scope == "" {
		scope = a.config.DefaultScope
	}

	a.logger.Debug("requesting azure access token for scope %s", logging.Secret(scope))
	token, err := a.credential.GetToken(ctx, policy.TokenRequestOptions{Scopes: []string{scope}})
	if err != nil {
		return provider.Credential{}, provider.AuthError{Provider: a.name, Message: err.Error()}
	}

	return provider.Credential{
		Type:        provider.CredentialTypeBearerToken,
		BearerToken: token.Token,
		ExpiresAt:   token.ExpiresOn,
		Metadata:    map[string]string{"scope": scope},
	}, nil
}

func (a *AzureIdentityAdapter) Capabilities() provider.Capabilities {
	return provider.Capabilities{RequiresAuth: true, AuthMethods: []string{"managed_identity", "service_principal", "default"}}
}

func (a *AzureIdentityAdapter) Validate(ctx context.Context) error {
	_, err := a.credential.GetToken(ctx, policy.TokenRequestOptions{Scopes: []string{a.config.DefaultScope}})
	if err != nil {
		return provider.AuthError{Provider: a.name, Message: err.Error()}
	}
	return nil
}
