package providers

import (
	"context"
	"time"

	"github.com/systmms/agentcred/pkg/provider"
)

// LiteralProvider issues a fixed, pre-configured value as an API key
// credential. It never calls out to anything; it exists for local
// development and for seeding a broker that fronts a handful of static
// values alongside real upstream providers.
type LiteralProvider struct {
	name   string
	values map[string]string
}

// NewLiteralProvider creates a literal provider keyed by ref.Key -> value.
func NewLiteralProvider(name string, values map[string]string) *LiteralProvider {
	if values == nil {
		values = make(map[string]string)
	}
	return &LiteralProvider{name: name, values: values}
}

func (l *LiteralProvider) Name() string { return l.name }

func (l *LiteralProvider) IssueCredential(_ context.Context, ref provider.Reference) (provider.Credential, error) {
	value, exists := l.values[ref.Key]
	if !exists {
		return provider.Credential{}, provider.NotFoundError{Provider: l.name, Key: ref.Key}
	}
	return provider.Credential{
		Type:      provider.CredentialTypeAPIKey,
		APIKey:    value,
		ExpiresAt: time.Now().Add(24 * time.Hour),
		Metadata:  map[string]string{"provider": l.name},
	}, nil
}

func (l *LiteralProvider) Capabilities() provider.Capabilities {
	return provider.Capabilities{RequiresAuth: false}
}

func (l *LiteralProvider) Validate(_ context.Context) error { return nil }

// SetValue sets a literal value; useful in tests and seed configuration.
func (l *LiteralProvider) SetValue(key, value string) {
	l.values[key] = value
}

// MockProvider simulates an upstream provider's latency and failure modes
// for tests, without making any network call.
type MockProvider struct {
	name     string
	values   map[string]string
	failures map[string]error
	delay    time.Duration
}

// NewMockProvider creates a mock provider for testing.
func NewMockProvider(name string) *MockProvider {
	return &MockProvider{
		name:     name,
		values:   make(map[string]string),
		failures: make(map[string]error),
	}
}

func (m *MockProvider) Name() string { return m.name }

func (m *MockProvider) IssueCredential(ctx context.Context, ref provider.Reference) (provider.Credential, error) {
	if m.delay > 0 {
		select {
		case <-time.After(m.delay):
		case <-ctx.Done():
			return provider.Credential{}, ctx.Err()
		}
	}
	if err, exists := m.failures[ref.Key]; exists {
		return provider.Credential{}, err
	}
	value, exists := m.values[ref.Key]
	if !exists {
		return provider.Credential{}, provider.NotFoundError{Provider: m.name, Key: ref.Key}
	}
	return provider.Credential{
		Type:      provider.CredentialTypeBearerToken,
		BearerToken: value,
		ExpiresAt: time.Now().Add(15 * time.Minute),
		Metadata:  map[string]string{"provider": m.name, "simulated": "true"},
	}, nil
}

func (m *MockProvider) Capabilities() provider.Capabilities {
	return provider.Capabilities{RequiresAuth: false, MaxCredentialTTL: 15 * time.Minute}
}

func (m *MockProvider) Validate(_ context.Context) error { return nil }

// SetValue sets the value a mock credential carries for key.
func (m *MockProvider) SetValue(key, value string) {
	m.values[key] = value
}

// SetFailure makes IssueCredential return err for key.
func (m *MockProvider) SetFailure(key string, err error) {
	m.failures[key] = err
}

// SetDelay simulates upstream network latency.
func (m *MockProvider) SetDelay(delay time.Duration) {
	m.delay = delay
}
