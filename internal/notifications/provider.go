package notifications

import "context"

// Provider delivers governance events to one notification target.
type Provider interface {
	Name() string
	Send(ctx context.Context, event GovernanceEvent) error
	SupportsEvent(eventType EventType) bool
	Validate(ctx context.Context) error
}
