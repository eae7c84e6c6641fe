// Package adapters implements concrete Provider adapters over real upstream
// identity and secret-storage systems. The core (token engine, cache,
// broker, leader, follower) never imports this package directly — it only
// ever holds a provider.Provider obtained through the registry, so swapping,
// adding, or removing an adapter never touches core code.
package adapters

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sts"
	"github.com/aws/aws-sdk-go-v2/service/sts/types"

	"github.com/systmms/agentcred/internal/logging"
	"github.com/systmms/agentcred/pkg/provider"
)

// AWSSTSAdapter issues temporary AWS credentials by assuming an IAM role via
// STS. Each IssueCredential call performs a fresh AssumeRole; the broker's
// credential cache is what gives these a useful lifetime, not the adapter.
type AWSSTSAdapter struct {
	name   string
	client *sts.Client
	logger *logging.Logger
	config STSConfig
}

// STSConfig holds AWS STS-specific configuration.
type STSConfig struct {
	Region          string
	Profile         string
	DefaultRoleARN  string
	RoleSessionName string
	ExternalID      string
	Duration        int32
	Tags            map[string]string
}

// NewAWSSTSAdapter builds an adapter from a generic config map, as produced
// by decoding a provider config block.
func NewAWSSTSAdapter(name string, configMap map[string]interface{}) (*AWSSTSAdapter, error) {
	cfg := STSConfig{
		RoleSessionName: fmt.Sprintf("agentcred-%d", time.Now().UnixNano()),
		Duration:        3600,
	}
	if v, ok := configMap["region"].(string); ok {
		cfg.Region = v
	}
	if v, ok := configMap["profile"].(string); ok {
		cfg.Profile = v
	}
	if v, ok := configMap["assume_role"].(string); ok {
		cfg.DefaultRoleARN = v
	}
	if v, ok := configMap["role_session_name"].(string); ok {
		cfg.RoleSessionName = v
	}
	if v, ok := configMap["external_id"].(string); ok {
		cfg.ExternalID = v
	}
	if v, ok := configMap["duration"].(int); ok {
		cfg.Duration = int32(v)
	}
	if tags, ok := configMap["tags"].(map[string]interface{}); ok {
		cfg.Tags = make(map[string]string, len(tags))
		for k, v := range tags {
			if s, ok := v.(string); ok {
				cfg.Tags[k] = s
			}
		}
	}

	var opts []func(*awsconfig.LoadOptions) error
	if cfg.Region != "" {
		opts = append(opts, awsconfig.WithRegion(cfg.Region))
	}
	if cfg.Profile != "" {
		opts = append(opts, awsconfig.WithSharedConfigProfile(cfg.Profile))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(context.Background(), opts...)
	if err != nil {
		return nil, fmt.Errorf("aws.sts: loading aws config: %w", err)
	}

	return &AWSSTSAdapter{
		name:   name,
		client: sts.NewFromConfig(awsCfg),
		logger: logging.New(false, false),
		config: cfg,
	}, nil
}

func (p *AWSSTSAdapter) Name() string { return p.name }

func (p *AWSSTSAdapter) IssueCredential(ctx context.Context, ref provider.Reference) (provider.Credential, error) {
	roleARN := ref.RoleARN
	if roleARN == "" {
		roleARN = p.config.DefaultRoleARN
	}
	if roleARN == "" {
		return provider.Credential{}, fmt.Errorf("aws.sts: no role_arn given in reference or config")
	}
	sessionName := ref.SessionName
	if sessionName == "" {
		sessionName = p.config.RoleSessionName
	}

	input := &sts.AssumeRoleInput{
		RoleArn:         aws.String(roleARN),
		RoleSessionName: aws.String(sessionName),
		DurationSeconds: aws.Int32(p.config.Duration),
	}
	if p.config.ExternalID != "" {
		input.ExternalId = aws.String(p.config.ExternalID)
	}
	if len(p.config.Tags) > 0 {
		tags := make([]types.Tag, 0, len(p.config.Tags))
		for k, v := range p.config.Tags {
			tags = append(tags, types.Tag{Key: aws.String(k), Value: aws.String(v)})
		}
		input.Tags = tags
	}

	p.logger.Debug("assuming role %s", logging.Secret(roleARN))
	result, err := p.client.AssumeRole(ctx, input)
	if err != nil {
		return provider.Credential{}, provider.AuthError{Provider: p.name, Message: err.Error()}
	}

	creds := result.Credentials
	return provider.Credential{
		Type:            provider.CredentialTypeAWSCredentials,
		AccessKeyID:     *creds.AccessKeyId,
		SecretAccessKey: *creds.SecretAccessKey,
		SessionToken:    *creds.SessionToken,
		ExpiresAt:       *creds.Expiration,
		Metadata: map[string]string{
			"role_arn":     roleARN,
			"session_name": sessionName,
		},
	}, nil
}

func (p *AWSSTSAdapter) Capabilities() provider.Capabilities {
	return provider.Capabilities{
		MaxCredentialTTL: time.Duration(p.config.Duration) * time.Second,
		RequiresAuth:     true,
		AuthMethods:      []string{"iam", "profile"},
	}
}

func (p *AWSSTSAdapter) Validate(ctx context.Context) error {
	_, err := p.client.GetCallerIdentity(ctx, &sts.GetCallerIdentityInput{})
	if err != nil {
		return provider.AuthError{Provider: p.name, Message: err.Error()}
	}
	return nil
}
