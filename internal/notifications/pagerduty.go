package notifications

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"
)

const pagerDutyAPIURL = "https://events.pagerduty.com/v2/enqueue"

// PagerDutySeverity is a PagerDuty incident severity level.
type PagerDutySeverity string

const (
	SeverityCritical PagerDutySeverity = "critical"
	SeverityError    PagerDutySeverity = "error"
	SeverityWarning  PagerDutySeverity = "warning"
	SeverityInfo     PagerDutySeverity = "info"
)

// PagerDutyConfig configures delivery of governance events to PagerDuty's
// Events API v2.
type PagerDutyConfig struct {
	IntegrationKey string
	ServiceID      string
	Severity       string
	Events         []string
	AutoResolve    bool
}

// PagerDutyProvider triggers (and optionally resolves) PagerDuty incidents
// for governance events.
type PagerDutyProvider struct {
	config PagerDutyConfig
	client *http.Client
	apiURL string
}

// NewPagerDutyProvider constructs a PagerDutyProvider.
func NewPagerDutyProvider(config PagerDutyConfig) *PagerDutyProvider {
	return &PagerDutyProvider{
		config: config,
		client: &http.Client{Timeout: 30 * time.Second},
		apiURL: pagerDutyAPIURL,
	}
}

func (p *PagerDutyProvider) Name() string { return "pagerduty" }

func (p *PagerDutyProvider) SupportsEvent(eventType EventType) bool {
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

func (p *PagerDutyProvider) Validate(ctx context.Context) error {
	if p.config.IntegrationKey == "" {
		return fmt.Errorf("integration key is required")
	}
	if p.config.Severity != "" {
		switch strings.ToLower(p.config.Severity) {
		case "critical", "error", "warning", "info":
		default:
			return fmt.Errorf("invalid severity: %s", p.config.Severity)
		}
	}
	return nil
}

func (p *PagerDutyProvider) Send(ctx context.Context, event GovernanceEvent) error {
	action := p.determineAction(event)
	if action == "resolve" && !p.config.AutoResolve {
		return nil
	}

	payload := p.buildPayload(event, action)
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal pagerduty payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.apiURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send pagerduty notification: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("pagerduty returned status %d", resp.StatusCode)
	}
	return nil
}

func (p *PagerDutyProvider) determineAction(event GovernanceEvent) string {
	switch event.Type {
	case EventTypeFollowerRecovered:
		return "resolve"
	default:
		return "trigger"
	}
}

func (p *PagerDutyProvider) buildPayload(event GovernanceEvent, action string) map[string]interface{} {
	payload := map[string]interface{}{
		"routing_key":  p.config.IntegrationKey,
		"event_action": action,
		"dedup_key":    p.buildDedupKey(event),
	}
	if action != "resolve" {
		payload["payload"] = p.buildEventPayload(event)
	} else {
		payload["payload"] = map[string]interface{}{
			"summary":  fmt.Sprintf("agentcred: %s recovered", event.Subject),
			"severity": p.severity(),
			"source":   "agentcred",
		}
	}
	return payload
}

func (p *PagerDutyProvider) buildEventPayload(event GovernanceEvent) map[string]interface{} {
	customDetails := map[string]interface{}{
		"subject":    event.Subject,
		"event_type": string(event.Type),
		"status":     string(event.Status),
		"timestamp":  event.Timestamp.Format(time.RFC3339),
	}
	if event.Reason != "" {
		customDetails["reason"] = event.Reason
	}
	if event.Duration > 0 {
		customDetails["duration"] = event.Duration.String()
	}
	if event.Err != nil {
		customDetails["error"] = event.Err.Error()
	}
	for k, v := range event.Metadata {
		customDetails[k] = v
	}

	return map[string]interface{}{
		"summary":        p.buildSummary(event),
		"severity":       p.severity(),
		"source":         "agentcred",
		"custom_details": customDetails,
	}
}

func (p *PagerDutyProvider) buildSummary(event GovernanceEvent) string {
	var action string
	switch event.Type {
	case EventTypeKeyRotation:
		action = "signing key rotated"
	case EventTypeRevocation:
		action = "token revoked"
	case EventTypeFollowerDegraded:
		action = "follower degraded"
	case EventTypeConfigUpdate:
		action = "provider configuration updated"
	default:
		action = "event"
	}

	summary := fmt.Sprintf("agentcred: %s — %s", action, event.Subject)
	if event.Err != nil {
		summary = fmt.Sprintf("%s - %s", summary, event.Err.Error())
	}
	if len(summary) > 1024 {
		summary = summary[:1021] + "..."
	}
	return summary
}

func (p *PagerDutyProvider) buildDedupKey(event GovernanceEvent) string {
	parts := []string{"agentcred", string(event.Type), event.Subject}
	return strings.Join(parts, "-")
}

func (p *PagerDutyProvider) severity() string {
	if p.config.Severity == "" {
		return string(SeverityError)
	}
	return strings.ToLower(p.config.Severity)
}
