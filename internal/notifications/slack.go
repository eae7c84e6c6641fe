package notifications

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// SlackConfig configures delivery of governance events to a Slack webhook.
type SlackConfig struct {
	WebhookURL string
	Channel    string
	// Events restricts delivery to the named event types; empty means all.
	Events   []string
	Mentions *SlackMentions
}

// SlackMentions names who to @-mention for specific event types.
type SlackMentions struct {
	OnFailure        []string
	OnRevocation     []string
	OnFollowerDegrade []string
}

// SlackProvider posts governance events to a Slack incoming webhook.
type SlackProvider struct {
	config SlackConfig
	client *http.Client
}

// NewSlackProvider constructs a SlackProvider.
func NewSlackProvider(config SlackConfig) *SlackProvider {
	return &SlackProvider{
		config: config,
		client: &http.Client{Timeout: 30 * time.Second},
	}
}

func (p *SlackProvider) Name() string { return "slack" }

func (p *SlackProvider) SupportsEvent(eventType EventType) bool {
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

func (p *SlackProvider) Validate(ctx context.Context) error {
	if p.config.WebhookURL == "" {
		return fmt.Errorf("webhook URL is required")
	}
	parsed, err := url.Parse(p.config.WebhookURL)
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return fmt.Errorf("invalid webhook URL: %s", p.config.WebhookURL)
	}
	return nil
}

func (p *SlackProvider) Send(ctx context.Context, event GovernanceEvent) error {
	message := p.buildMessage(event)

	body, err := json.Marshal(message)
	if err != nil {
		return fmt.Errorf("failed to marshal slack message: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.config.WebhookURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send slack notification: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("slack returned status %d", resp.StatusCode)
	}
	return nil
}

func (p *SlackProvider) buildMessage(event GovernanceEvent) map[string]interface{} {
	blocks := make([]map[string]interface{}, 0)

	emoji, title := p.eventDisplay(event)
	blocks = append(blocks, map[string]interface{}{
		"type": "header",
		"text": map[string]interface{}{"type": "plain_text", "text": fmt.Sprintf("%s %s", emoji, title), "emoji": true},
	})

	fields := []map[string]interface{}{
		{"type": "mrkdwn", "text": fmt.Sprintf("*Subject:*\n%s", event.Subject)},
	}
	if event.Reason != "" {
		fields = append(fields, map[string]interface{}{"type": "mrkdwn", "text": fmt.Sprintf("*Reason:*\n%s", event.Reason)})
	}
	blocks = append(blocks, map[string]interface{}{"type": "section", "fields": fields})

	if event.Err != nil {
		blocks = append(blocks, map[string]interface{}{
			"type": "section",
			"text": map[string]interface{}{"type": "mrkdwn", "text": fmt.Sprintf(":warning: *Error:*\n```%s```", event.Err.Error())},
		})
	}

	if mentions := p.mentionsFor(event.Type); mentions != "" {
		blocks = append(blocks, map[string]interface{}{
			"type": "section",
			"text": map[string]interface{}{"type": "mrkdwn", "text": fmt.Sprintf("*Attention:* %s", mentions)},
		})
	}

	blocks = append(blocks, map[string]interface{}{
		"type": "context",
		"elements": []map[string]interface{}{
			{"type": "mrkdwn", "text": event.Timestamp.Format(time.RFC3339)},
		},
	})

	message := map[string]interface{}{"blocks": blocks}
	if p.config.Channel != "" {
		message["channel"] = p.config.Channel
	}
	return message
}

func (p *SlackProvider) eventDisplay(event GovernanceEvent) (emoji, title string) {
	switch event.Type {
	case EventTypeKeyRotation:
		return ":key:", "Signing Key Rotated"
	case EventTypeRevocation:
		return ":no_entry_sign:", "Token Revoked"
	case EventTypeFollowerDegraded:
		return ":warning:", "Follower Degraded"
	case EventTypeFollowerRecovered:
		return ":white_check_mark:", "Follower Recovered"
	case EventTypeConfigUpdate:
		return ":gear:", "Provider Configuration Updated"
	default:
		return ":bell:", "Governance Event"
	}
}

func (p *SlackProvider) mentionsFor(eventType EventType) string {
	if p.config.Mentions == nil {
		return ""
	}
	var mentions []string
	switch eventType {
	case EventTypeRevocation:
		mentions = p.config.Mentions.OnRevocation
	case EventTypeFollowerDegraded:
		mentions = p.config.Mentions.OnFollowerDegrade
	}
	if len(mentions) == 0 {
		return ""
	}
	return strings.Join(mentions, " ")
}
