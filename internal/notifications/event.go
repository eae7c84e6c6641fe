// Package notifications fans governance events — key rotation, token
// revocation, follower degradation, and provider-config updates — out to
// Slack, generic webhooks, and PagerDuty, on a bounded async queue so a
// slow or unreachable notification target never blocks the leader's
// mutation path. Adapted from the teacher's rotation-lifecycle notifier,
// retargeted from rotation events to broker governance events.
package notifications

import "time"

// EventType identifies the kind of governance event being reported.
type EventType string

const (
	EventTypeKeyRotation       EventType = "key_rotation"
	EventTypeRevocation        EventType = "revocation"
	EventTypeFollowerDegraded  EventType = "follower_degraded"
	EventTypeFollowerRecovered EventType = "follower_recovered"
	EventTypeConfigUpdate      EventType = "config_update"
)

// Status is the outcome of whatever the event describes.
type Status string

const (
	StatusSuccess Status = "success"
	StatusFailure Status = "failure"
)

// GovernanceEvent is a single notifiable occurrence at the leader (or, for
// follower state transitions, observed by the follower itself).
type GovernanceEvent struct {
	Type      EventType
	Subject   string // token id, key version, follower id — whatever Type identifies
	Status    Status
	Reason    string
	Err       error
	Duration  time.Duration
	Metadata  map[string]string
	Timestamp time.Time
}

// AllEventTypes returns every event type a provider's Events filter may name.
func AllEventTypes() []EventType {
	return []EventType{
		EventTypeKeyRotation,
		EventTypeRevocation,
		EventTypeFollowerDegraded,
		EventTypeFollowerRecovered,
		EventTypeConfigUpdate,
	}
}
