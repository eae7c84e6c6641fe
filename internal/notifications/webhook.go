package notifications

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"text/template"
	"time"
)

// WebhookRetryConfig controls retry backoff for a WebhookProvider.
type WebhookRetryConfig struct {
	MaxAttempts int
	Backoff     string // linear, exponential, fixed
	InitialWait time.Duration
}

// WebhookConfig configures delivery of governance events to an arbitrary HTTP endpoint.
type WebhookConfig struct {
	Name            string
	URL             string
	Method          string
	Headers         map[string]string
	Events          []string
	PayloadTemplate string
	Retry           *WebhookRetryConfig
	Timeout         time.Duration
}

// WebhookProvider delivers governance events via HTTP, retrying on failure.
type WebhookProvider struct {
	config   WebhookConfig
	client   *http.Client
	template *template.Template
}

// NewWebhookProvider constructs a WebhookProvider, applying defaults.
func NewWebhookProvider(config WebhookConfig) *WebhookProvider {
	if config.Method == "" {
		config.Method = "POST"
	}
	if config.Timeout == 0 {
		config.Timeout = 10 * time.Second
	}
	if config.Retry == nil {
		config.Retry = &WebhookRetryConfig{MaxAttempts: 3, Backoff: "exponential", InitialWait: time.Second}
	}
	if config.Retry.MaxAttempts == 0 {
		config.Retry.MaxAttempts = 3
	}
	if config.Retry.Backoff == "" {
		config.Retry.Backoff = "exponential"
	}
	if config.Retry.InitialWait == 0 {
		config.Retry.InitialWait = time.Second
	}

	p := &WebhookProvider{
		config: config,
		client: &http.Client{Timeout: config.Timeout},
	}
	if config.PayloadTemplate != "" {
		if tmpl, err := template.New("payload").Parse(config.PayloadTemplate); err == nil {
			p.template = tmpl
		}
	}
	return p
}

func (p *WebhookProvider) Name() string {
	if p.config.Name != "" {
		return "webhook:" + p.config.Name
	}
	return "webhook"
}

func (p *WebhookProvider) SupportsEvent(eventType EventType) bool {
	if len(p.config.Events) == 0 {
		return true
	}
	for _, e := range p.config.Events {
		if strings.EqualFold(e, string(eventType)) {
			return true
		}
	}
	return false
}

func (p *WebhookProvider) Validate(ctx context.Context) error {
	if p.config.URL == "" {
		return fmt.Errorf("URL is required")
	}
	parsed, err := url.Parse(p.config.URL)
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return fmt.Errorf("invalid URL: %s", p.config.URL)
	}
	switch strings.ToUpper(p.config.Method) {
	case "POST", "PUT", "PATCH", "":
	default:
		return fmt.Errorf("invalid method: %s", p.config.Method)
	}
	if p.config.Retry != nil && p.config.Retry.Backoff != "" {
		switch strings.ToLower(p.config.Retry.Backoff) {
		case "linear", "exponential", "fixed":
		default:
			return fmt.Errorf("invalid backoff strategy: %s", p.config.Retry.Backoff)
		}
	}
	return nil
}

func (p *WebhookProvider) Send(ctx context.Context, event GovernanceEvent) error {
	payload, err := p.buildPayload(event)
	if err != nil {
		return fmt.Errorf("failed to build payload: %w", err)
	}

	var lastErr error
	for attempt := 1; attempt <= p.config.Retry.MaxAttempts; attempt++ {
		if err := p.doSend(ctx, payload); err == nil {
			return nil
		} else {
			lastErr = err
		}
		if attempt < p.config.Retry.MaxAttempts {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(p.backoff(attempt)):
			}
		}
	}
	return fmt.Errorf("webhook failed after %d attempts: %w", p.config.Retry.MaxAttempts, lastErr)
}

func (p *WebhookProvider) doSend(ctx context.Context, payload []byte) error {
	req, err := http.NewRequestWithContext(ctx, strings.ToUpper(p.config.Method), p.config.URL, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range p.config.Headers {
		req.Header.Set(k, v)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("webhook returned status %d", resp.StatusCode)
	}
	return nil
}

type webhookTemplateData struct {
	Type      string
	Subject   string
	Status    string
	Reason    string
	Error     string
	Duration  string
	Timestamp string
	Metadata  map[string]string
}

func (p *WebhookProvider) buildPayload(event GovernanceEvent) ([]byte, error) {
	if p.template != nil {
		return p.buildCustomPayload(event)
	}
	return p.buildDefaultPayload(event)
}

func (p *WebhookProvider) buildCustomPayload(event GovernanceEvent) ([]byte, error) {
	data := webhookTemplateData{
		Type:      string(event.Type),
		Subject:   event.Subject,
		Status:    string(event.Status),
		Reason:    event.Reason,
		Duration:  event.Duration.String(),
		Timestamp: event.Timestamp.Format(time.RFC3339),
		Metadata:  event.Metadata,
	}
	if event.Err != nil {
		data.Error = event.Err.Error()
	}

	var buf bytes.Buffer
	if err := p.template.Execute(&buf, data); err != nil {
		return p.buildDefaultPayload(event)
	}
	return buf.Bytes(), nil
}

func (p *WebhookProvider) buildDefaultPayload(event GovernanceEvent) ([]byte, error) {
	payload := map[string]interface{}{
		"event":     string(event.Type),
		"subject":   event.Subject,
		"status":    string(event.Status),
		"timestamp": event.Timestamp.Format(time.RFC3339),
	}
	if event.Reason != "" {
		payload["reason"] = event.Reason
	}
	if event.Duration > 0 {
		payload["duration_seconds"] = event.Duration.Seconds()
	}
	if event.Err != nil {
		payload["error"] = event.Err.Error()
	}
	if len(event.Metadata) > 0 {
		payload["metadata"] = event.Metadata
	}
	return json.Marshal(payload)
}

func (p *WebhookProvider) backoff(attempt int) time.Duration {
	initial := p.config.Retry.InitialWait
	switch strings.ToLower(p.config.Retry.Backoff) {
	case "linear":
		return initial * time.Duration(attempt)
	case "exponential":
		return initial * time.Duration(1<<(attempt-1))
	default:
		return initial
	}
}
