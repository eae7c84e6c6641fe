package adapters

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/azidentity"
	"github.com/Azure/azure-sdk-for-go/sdk/security/keyvault/azsecrets"

	"github.com/systmms/agentcred/internal/logging"
	"github.com/systmms/agentcred/pkg/provider"
)

// AzureKeyVaultClientAPI is the subset of the Key Vault secrets client this
// adapter calls, narrowed for test doubles.
type AzureKeyVaultClientAPI interface {
	GetSecret(ctx context.Context, name string, version string, options *azsecrets.GetSecretOptions) (azsecrets.GetSecretResponse, error)
}

// AzureKeyVaultAdapter issues a credential whose value is a Key Vault
// secret's current (or pinned) version.
type AzureKeyVaultAdapter struct {
	name   string
	client AzureKeyVaultClientAPI
	logger *logging.Logger
}

func NewAzureKeyVaultAdapter(name string, configMap map[string]interface{}) (*AzureKeyVaultAdapter, error) {
	vaultURL, _ := configMap["vault_url"].(string)
	if vaultURL == "" {
		return nil, fmt.Errorf("azure.keyvault: vault_url is required")
	}

	cred, err := azidentity.NewDefaultAzureCredential(nil)
	if err != nil {
		return nil, fmt.Errorf("azure.keyvault: %w", err)
	}
	client, err := azsecrets.NewClient(vaultURL, cred, nil)
	if err != nil {
		return nil, fmt.Errorf("azure.keyvault: creating client: %w", err)
	}

	return &AzureKeyVaultAdapter{name: name, client: client, logger: logging.New(false, false)}, nil
}

func (a *AzureKeyVaultAdapter) Name() string { return a.name }

func (a *AzureKeyVaultAdapter) IssueCredential(ctx context.Context, ref provider.Reference) (provider.Credential, error) {
	resp, err := a.client.GetSecret(ctx, ref.Key, ref.Version, nil)
	if err != nil {
		return provider.Credential{}, provider.NotFoundError{Provider: a.name, Key: ref.Key}
	}

	expiresAt := time.Now().Add(90 * 24 * time.Hour)
	if resp.Attributes != nil && resp.Attributes.Expires != nil {
		expiresAt = *resp.Attributes.Expires
	}
	var value string
	if resp.Value != nil {
		value = *resp.Value
	}

	return provider.Credential{
		Type:      provider.CredentialTypeAPIKey,
		APIKey:    value,
		ExpiresAt: expiresAt,
		Metadata:  map[string]string{"secret_name": ref.Key},
	}, nil
}

func (a *AzureKeyVaultAdapter) Capabilities() provider.Capabilities {
	return provider.Capabilities{RequiresAuth: true, AuthMethods: []string{"managed_identity", "default"}}
}

// Validate probes connectivity with a sentinel secret name. A 404 response
// still proves auth succeeded; any other error is a genuine failure.
func (a *AzureKeyVaultAdapter) Validate(ctx context.Context) error {
	_, err := a.client.GetSecret(ctx, "__agentcred_validate__", "", nil)
	if err == nil {
		return nil
	}
	var respErr *azcore.ResponseError
	if errors.As(err, &respErr) && respErr.StatusCode == 404 {
		return nil
	}
	return provider.AuthError{Provider: a.name, Message: err.Error()}
}
