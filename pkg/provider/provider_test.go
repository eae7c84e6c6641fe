package provider

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestNotFoundErrorMessage(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		err      NotFoundError
		expected string
	}{
		{
			name:     "basic",
			err:      NotFoundError{Provider: "aws.secretsmanager", Key: "my-secret"},
			expected: "not found: my-secret in provider aws.secretsmanager",
		},
		{
			name:     "vault path",
			err:      NotFoundError{Provider: "vault", Key: "secret/data/app"},
			expected: "not found: secret/data/app in provider vault",
		},
		{
			name:     "empty provider",
			err:      NotFoundError{Key: "key"},
			expected: "not found: key in provider ",
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := tt.err.Error(); got != tt.expected {
				t.Errorf("Error() = %q, want %q", got, tt.expected)
			}
		})
	}
}

func TestAuthErrorMessage(t *testing.T) {
	t.Parallel()

	err := AuthError{Provider: "azure.identity", Message: "token expired"}
	want := "authentication failed for provider azure.identity: token expired"
	if got := err.Error(); got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}
}

func TestNotFoundErrorIsDistinguishableViaErrorsAs(t *testing.T) {
	t.Parallel()

	var err error = NotFoundError{Provider: "mock", Key: "absent"}

	var nf NotFoundError
	if !errors.As(err, &nf) {
		t.Fatal("expected errors.As to match NotFoundError")
	}
	if nf.Key != "absent" {
		t.Errorf("Key = %q, want %q", nf.Key, "absent")
	}

	var ae AuthError
	if errors.As(err, &ae) {
		t.Fatal("NotFoundError should not match AuthError")
	}
}

// stubProvider is a minimal in-package implementation used only to verify
// the Credential/Reference/Capabilities shapes round-trip through the
// interface as intended.
type stubProvider struct {
	values map[string]string
}

func (s *stubProvider) Name() string { return "stub" }

func (s *stubProvider) IssueCredential(ctx context.Context, ref Reference) (Credential, error) {
	select {
	case <-ctx.Done():
		return Credential{}, ctx.Err()
	default:
	}
	v, ok := s.values[ref.Key]
	if !ok {
		return Credential{}, NotFoundError{Provider: s.Name(), Key: ref.Key}
	}
	return Credential{
		Type:      CredentialTypeAPIKey,
		APIKey:    v,
		ExpiresAt: time.Now().Add(time.Hour),
	}, nil
}

func (s *stubProvider) Capabilities() Capabilities {
	return Capabilities{RequiresAuth: false}
}

func (s *stubProvider) Validate(ctx context.Context) error { return nil }

var _ Provider = (*stubProvider)(nil)

func TestStubProviderIssueCredentialRoundTrip(t *testing.T) {
	t.Parallel()

	p := &stubProvider{values: map[string]string{"k": "v"}}

	cred, err := p.IssueCredential(context.Background(), Reference{Key: "k"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cred.Type != CredentialTypeAPIKey || cred.APIKey != "v" {
		t.Errorf("unexpected credential: %+v", cred)
	}
	if cred.ExpiresAt.Before(time.Now()) {
		t.Error("expected ExpiresAt in the future")
	}
}

func TestStubProviderIssueCredentialNotFound(t *testing.T) {
	t.Parallel()

	p := &stubProvider{}
	_, err := p.IssueCredential(context.Background(), Reference{Key: "missing"})

	var nf NotFoundError
	if !errors.As(err, &nf) {
		t.Fatalf("expected NotFoundError, got %v", err)
	}
}

func TestStubProviderRespectsContextCancellation(t *testing.T) {
	t.Parallel()

	p := &stubProvider{values: map[string]string{"k": "v"}}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := p.IssueCredential(ctx, Reference{Key: "k"})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}

func TestCredentialZeroValueHasNoVariantPopulated(t *testing.T) {
	t.Parallel()

	var c Credential
	if c.BearerToken != "" || c.APIKey != "" || c.AccessKeyID != "" {
		t.Error("zero-value Credential should carry no variant data")
	}
}

func TestCapabilitiesZeroValue(t *testing.T) {
	t.Parallel()

	var c Capabilities
	if c.RequiresAuth || c.SupportsSessionName || c.MaxCredentialTTL != 0 || c.AuthMethods != nil {
		t.Errorf("unexpected non-zero Capabilities: %+v", c)
	}
}
