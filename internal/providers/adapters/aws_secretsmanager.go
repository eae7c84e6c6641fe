package adapters

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"

	"github.com/systmms/agentcred/pkg/provider"
)

// SecretsManagerClientAPI is the subset of the Secrets Manager client this
// adapter calls, narrowed so a test double can stand in for the real client.
type SecretsManagerClientAPI interface {
	GetSecretValue(ctx context.Context, params *secretsmanager.GetSecretValueInput, optFns ...func(*secretsmanager.Options)) (*secretsmanager.GetSecretValueOutput, error)
}

// AWSSecretsManagerAdapter issues a credential whose value is a static
// secret's current version. Used where the "credential" an agent needs is a
// rotated-out-of-band API key or password living in Secrets Manager, rather
// than a freshly minted token.
type AWSSecretsManagerAdapter struct {
	name   string
	client SecretsManagerClientAPI
	region string
}

// SecretsManagerOption customizes construction, primarily for tests.
type SecretsManagerOption func(*AWSSecretsManagerAdapter)

// WithSecretsManagerClient injects a test double in place of the real client.
func WithSecretsManagerClient(client SecretsManagerClientAPI) SecretsManagerOption {
	return func(a *AWSSecretsManagerAdapter) { a.client = client }
}

func NewAWSSecretsManagerAdapter(name string, configMap map[string]interface{}, opts ...SecretsManagerOption) (*AWSSecretsManagerAdapter, error) {
	region := "us-east-1"
	if v, ok := configMap["region"].(string); ok && v != "" {
		region = v
	}

	a := &AWSSecretsManagerAdapter{name: name, region: region}
	for _, opt := range opts {
		opt(a)
	}

	if a.client == nil {
		var loadOpts []func(*awsconfig.LoadOptions) error
		loadOpts = append(loadOpts, awsconfig.WithRegion(region))
		if ak, ok := configMap["access_key_id"].(string); ok && ak != "" {
			if sk, ok := configMap["secret_access_key"].(string); ok && sk != "" {
				loadOpts = append(loadOpts, awsconfig.WithCredentialsProvider(
					credentials.NewStaticCredentialsProvider(ak, sk, "")))
			}
		}
		cfg, err := awsconfig.LoadDefaultConfig(context.Background(), loadOpts...)
		if err != nil {
			return nil, fmt.Errorf("aws.secretsmanager: loading aws config: %w", err)
		}
		a.client = secretsmanager.NewFromConfig(cfg)
	}
	return a, nil
}

func (a *AWSSecretsManagerAdapter) Name() string { return a.name }

func (a *AWSSecretsManagerAdapter) IssueCredential(ctx context.Context, ref provider.Reference) (provider.Credential, error) {
	input := &secretsmanager.GetSecretValueInput{SecretId: aws.String(ref.Key)}
	if ref.Version != "" && ref.Version != "latest" {
		input.VersionStage = aws.String(ref.Version)
	}

	result, err := a.client.GetSecretValue(ctx, input)
	if err != nil {
		return provider.Credential{}, provider.NotFoundError{Provider: a.name, Key: ref.Key}
	}

	expiresAt := time.Now().Add(time.Hour)
	if result.CreatedDate != nil {
		expiresAt = result.CreatedDate.Add(90 * 24 * time.Hour)
	}
	return provider.Credential{
		Type:      provider.CredentialTypeAPIKey,
		APIKey:    aws.ToString(result.SecretString),
		ExpiresAt: expiresAt,
		Metadata: map[string]string{
			"secret_id": ref.Key,
			"version":   aws.ToString(result.VersionId),
		},
	}, nil
}

func (a *AWSSecretsManagerAdapter) Capabilities() provider.Capabilities {
	return provider.Capabilities{RequiresAuth: true, AuthMethods: []string{"iam", "static"}}
}

// Validate probes connectivity by requesting a sentinel secret id. A
// "not found" response still proves the client can reach and authenticate
// to Secrets Manager; any other error is treated as an auth/connectivity
// failure.
func (a *AWSSecretsManagerAdapter) Validate(ctx context.Context) error {
	_, err := a.client.GetSecretValue(ctx, &secretsmanager.GetSecretValueInput{
		SecretId: aws.String("__agentcred_validate__"),
	})
	if err == nil || strings.Contains(err.Error(), "ResourceNotFoundException") {
		return nil
	}
	return provider.AuthError{Provider: a.name, Message: err.Error()}
}
