package adapters

import (
	"context"
	"fmt"
	"os"
	"time"

	secretmanager "cloud.google.com/go/secretmanager/apiv1"
	"cloud.google.com/go/secretmanager/apiv1/secretmanagerpb"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"

	"github.com/systmms/agentcred/internal/logging"
	"github.com/systmms/agentcred/pkg/provider"
)

// GCPSecretManagerAdapter issues a credential whose value is a GCP Secret
// Manager secret's current (or pinned) version.
type GCPSecretManagerAdapter struct {
	name      string
	client    *secretmanager.Client
	logger    *logging.Logger
	projectID string
}

func NewGCPSecretManagerAdapter(name string, configMap map[string]interface{}) (*GCPSecretManagerAdapter, error) {
	projectID, _ := configMap["project_id"].(string)
	if projectID == "" {
		projectID = gcpProjectIDFromEnv()
	}
	if projectID == "" {
		return nil, fmt.Errorf("gcp.secretmanager: project_id is required (or set GOOGLE_CLOUD_PROJECT)")
	}

	var opts []option.ClientOption
	if keyPath, ok := configMap["service_account_key_path"].(string); ok && keyPath != "" {
		opts = append(opts, option.WithCredentialsFile(keyPath))
	}

	client, err := secretmanager.NewClient(context.Background(), opts...)
	if err != nil {
		return nil, fmt.Errorf("gcp.secretmanager: creating client: %w", err)
	}
	return &GCPSecretManagerAdapter{name: name, client: client, logger: logging.New(false, false), projectID: projectID}, nil
}

func gcpProjectIDFromEnv() string {
	for _, key := range []string{"GOOGLE_CLOUD_PROJECT", "GCLOUD_PROJECT", "GCP_PROJECT"} {
		if v := os.Getenv(key); v != "" {
			return v
		}
	}
	return ""
}

func (a *GCPSecretManagerAdapter) Name() string { return a.name }

func (a *GCPSecretManagerAdapter) IssueCredential(ctx context.Context, ref provider.Reference) (provider.Credential, error) {
	version := ref.Version
	if version == "" {
		version = "latest"
	}
	resourceName := fmt.Sprintf("projects/%s/secrets/%s/versions/%s", a.projectID, ref.Key, version)

	a.logger.Debug("accessing gcp secret %s", logging.Secret(resourceName))
	resp, err := a.client.AccessSecretVersion(ctx, &secretmanagerpb.AccessSecretVersionRequest{Name: resourceName})
	if err != nil {
		return provider.Credential{}, provider.NotFoundError{Provider: a.name, Key: ref.Key}
	}

	return provider.Credential{
		Type:      provider.CredentialTypeAPIKey,
		APIKey:    string(resp.Payload.Data),
		ExpiresAt: time.Now().Add(90 * 24 * time.Hour),
		Metadata:  map[string]string{"resource_name": resourceName},
	}, nil
}

func (a *GCPSecretManagerAdapter) Capabilities() provider.Capabilities {
	return provider.Capabilities{RequiresAuth: true, AuthMethods: []string{"service_account", "adc"}}
}

// Validate lists secrets in the project, which requires a valid, scoped
// credential regardless of whether any secrets exist yet.
func (a *GCPSecretManagerAdapter) Validate(ctx context.Context) error {
	it := a.client.ListSecrets(ctx, &secretmanagerpb.ListSecretsRequest{
		Parent:   fmt.Sprintf("projects/%s", a.projectID),
		PageSize: 1,
	})
	_, err := it.Next()
	if err != nil && err != iterator.Done {
		return provider.AuthError{Provider: a.name, Message: err.Error()}
	}
	return nil
}
