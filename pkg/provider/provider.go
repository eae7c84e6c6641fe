// Package provider defines the core interface and types a credential
// provider must implement.
//
// A provider wraps one upstream identity or credential-issuing system (AWS
// STS, Azure Identity, GCP Secret Manager, HashiCorp Vault, Akeyless, or a
// test double) behind a single, uniform API. The broker facade and the rest
// of the core never import a concrete provider package directly; they hold
// only a Provider value obtained from the provider registry.
//
// # Provider Architecture
//
// A Provider issues short-lived credentials on demand; it does not resolve
// or describe static secrets. Whether the upstream system is asked for a
// brand-new credential or returns one from its own short-term cache is an
// implementation detail of the provider itself.
//
// # Implementing a Custom Provider
//
//  1. Implement the Provider interface.
//  2. Register a factory for it in the provider registry.
//  3. Describe its config shape so the config store can validate it.
//
// # Error Handling
//
// Providers should return NotFoundError when the requested reference does
// not correspond to anything the upstream system knows about, and AuthError
// when the provider's own credentials to the upstream system are invalid or
// expired. Any other failure should be wrapped so the broker can surface it
// as a ProviderUpstreamError.
//
// # Threading and Concurrency
//
// Provider implementations must be safe for concurrent use; the broker may
// call IssueCredential from many goroutines handling different agents'
// requests at once.
package provider

import (
	"context"
	"time"
)

// Provider defines the interface every credential provider implements.
type Provider interface {
	// Name returns the instance name the provider was created under (its key
	// in the provider configuration, e.g. "my-vault"), not its type.
	Name() string

	// IssueCredential obtains a credential for ref from the upstream system.
	// Implementations should support context cancellation, return
	// NotFoundError when ref does not resolve to anything issuable, and
	// AuthError when the provider cannot authenticate to its own upstream.
	IssueCredential(ctx context.Context, ref Reference) (Credential, error)

	// Capabilities describes what this provider supports.
	Capabilities() Capabilities

	// Validate checks that the provider is reachable and authenticated,
	// without issuing a credential. Called at startup and by health checks.
	Validate(ctx context.Context) error
}

// Reference identifies what to request from a provider. Addressing is
// provider-specific:
//   - aws.sts: RoleARN names the role to assume, SessionName labels the
//     resulting STS session.
//   - aws.secretsmanager / gcp.secretmanager / azure.keyvault: Key is the
//     secret name, Version optionally pins a specific version.
//   - vault: Path is the full mount-relative path, Key is the field within
//     the returned secret.
//   - akeyless: the reference is not used; the credential is the adapter's
//     own auth session token.
type Reference struct {
	Provider    string
	Key         string
	Version     string
	Path        string
	RoleARN     string
	SessionName string
}

// CredentialType discriminates the tagged variants a Provider may return.
type CredentialType string

const (
	CredentialTypeBearerToken    CredentialType = "bearer_token"
	CredentialTypeAWSCredentials CredentialType = "aws_credentials"
	CredentialTypeAPIKey         CredentialType = "api_key"
)

// Credential is the tagged-variant payload a provider issues. Exactly the
// fields matching Type are populated; the others are zero.
type Credential struct {
	Type      CredentialType `json:"credential_type"`
	ExpiresAt time.Time      `json:"expires_at"`

	// BearerToken is populated when Type == CredentialTypeBearerToken.
	BearerToken string `json:"bearer_token,omitempty"`

	// AWS fields are populated when Type == CredentialTypeAWSCredentials.
	AccessKeyID     string `json:"access_key_id,omitempty"`
	SecretAccessKey string `json:"secret_access_key,omitempty"`
	SessionToken    string `json:"session_token,omitempty"`

	// APIKey is populated when Type == CredentialTypeAPIKey.
	APIKey string `json:"api_key,omitempty"`

	// Metadata carries provider-specific, non-secret context (issuing
	// region, key ID, rotation tag) useful for audit logging.
	Metadata map[string]string `json:"metadata,omitempty"`
}

// Capabilities describes what a provider supports, so the registry and
// config store can validate configuration before first use.
type Capabilities struct {
	// MaxCredentialTTL is the longest-lived credential the provider can
	// issue; zero means the provider decides per-request.
	MaxCredentialTTL time.Duration

	// SupportsSessionName indicates the provider can apply Reference.SessionName.
	SupportsSessionName bool

	// RequiresAuth indicates the provider itself needs upstream credentials
	// (nearly always true; false only for providers like "mock" or "literal").
	RequiresAuth bool

	// AuthMethods lists how this provider authenticates to its upstream.
	AuthMethods []string
}

// NotFoundError indicates ref does not correspond to anything the upstream
// system can issue a credential for.
type NotFoundError struct {
	Provider string
	Key      string
}

func (e NotFoundError) Error() string {
	return "not found: " + e.Key + " in provider " + e.Provider
}

// AuthError indicates the provider could not authenticate to its own
// upstream system.
type AuthError struct {
	Provider string
	Message  string
}

func (e AuthError) Error() string {
	return "authentication failed for provider " + e.Provider + ": " + e.Message
}
