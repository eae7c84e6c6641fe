package adapters

import (
	"context"
	"fmt"
	"time"

	akeyless "github.com/akeylesslabs/akeyless-go/v3"

	"github.com/systmms/agentcred/internal/logging"
	"github.com/systmms/agentcred/pkg/provider"
)

// akeylessDefaultTTL is how long an Akeyless auth token is treated as valid.
// Akeyless tokens typically last 30 minutes; 25 leaves margin for clock skew.
const akeylessDefaultTTL = 25 * time.Minute

// AkeylessAdapter issues Akeyless's own session token as a bearer
// credential. Auth() already returns a usable, time-boxed token, so unlike
// the other secret-store adapters this one never needs a second fetch step.
type AkeylessAdapter struct {
	name      string
	apiClient *akeyless.APIClient
	logger    *logging.Logger
	config    AkeylessConfig
}

type AkeylessConfig struct {
	AccessID   string
	AuthMethod string
	AccessKey  string
	GatewayURL string
}

func NewAkeylessAdapter(name string, configMap map[string]interface{}) (*AkeylessAdapter, error) {
	cfg := AkeylessConfig{
		AuthMethod: "api_key",
		GatewayURL: "https://api.akeyless.io",
	}
	if v, ok := configMap["access_id"].(string); ok {
		cfg.AccessID = v
	}
	if v, ok := configMap["access_key"].(string); ok {
		cfg.AccessKey = v
	}
	if v, ok := configMap["auth_method"].(string); ok && v != "" {
		cfg.AuthMethod = v
	}
	if v, ok := configMap["gateway_url"].(string); ok && v != "" {
		cfg.GatewayURL = v
	}
	if cfg.AccessID == "" {
		return nil, fmt.Errorf("akeyless: access_id is required")
	}

	configuration := akeyless.NewConfiguration()
	configuration.Servers = []akeyless.ServerConfiguration{{URL: cfg.GatewayURL}}
	apiClient := akeyless.NewAPIClient(configuration)

	return &AkeylessAdapter{name: name, apiClient: apiClient, logger: logging.New(false, false), config: cfg}, nil
}

func (a *AkeylessAdapter) Name() string { return a.name }

// IssueCredential authenticates against Akeyless and returns the resulting
// session token as a bearer credential. ref is unused: the credential being
// issued here is the auth session itself, not a secret read through it.
func (a *AkeylessAdapter) IssueCredential(ctx context.Context, ref provider.Reference) (provider.Credential, error) {
	token, err := a.authenticate(ctx)
	if err != nil {
		return provider.Credential{}, provider.AuthError{Provider: a.name, Message: err.Error()}
	}

	return provider.Credential{
		Type:        provider.CredentialTypeBearerToken,
		BearerToken: token,
		ExpiresAt:   time.Now().Add(akeylessDefaultTTL),
		Metadata:    map[string]string{"auth_method": a.config.AuthMethod},
	}, nil
}

func (a *AkeylessAdapter) authenticate(ctx context.Context) (string, error) {
	authBody := akeyless.NewAuthWithDefaults()
	authBody.SetAccessId(a.config.AccessID)
	switch a.config.AuthMethod {
	case "api_key", "":
		authBody.SetAccessKey(a.config.AccessKey)
	default:
		authBody.SetAccessType(a.config.AuthMethod)
	}

	authRes, _, err := a.apiClient.V2Api.Auth(ctx).Body(*authBody).Execute()
	if err != nil {
		return "", fmt.Errorf("akeyless auth failed: %w", err)
	}
	return authRes.GetToken(), nil
}

func (a *AkeylessAdapter) Capabilities() provider.Capabilities {
	return provider.Capabilities{
		MaxCredentialTTL: akeylessDefaultTTL,
		RequiresAuth:     true,
		AuthMethods:      []string{"api_key", "aws_iam", "azure_ad", "gcp"},
	}
}

func (a *AkeylessAdapter) Validate(ctx context.Context) error {
	_, err := a.authenticate(ctx)
	if err != nil {
		return provider.AuthError{Provider: a.name, Message: err.Error()}
	}
	return nil
}
