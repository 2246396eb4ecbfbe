package notify

import (
	"context"
	"time"
)

// =============================================================================
// Notification Types
// =============================================================================

// EventType represents the type of run event.
type EventType string

// Event type constants.
const (
	EventRunStarted          EventType = "run_started"
	EventAuthenticated       EventType = "authenticated"
	EventConnectionCreated   EventType = "connection_created"
	EventConnectionVerified  EventType = "connection_verified"
	EventConnectionLocated   EventType = "connection_located"
	EventTunnelTested        EventType = "tunnel_tested"
	EventLinkReady           EventType = "link_ready"
	EventRunFailed           EventType = "run_failed"
	EventVerificationPending EventType = "verification_pending"
)

// Severity constants for notifications.
const (
	SeverityError   = "error"
	SeverityWarning = "warning"
	SeverityInfo    = "info"
)

// Event describes a provisioning run event.
type Event struct {
	Type         EventType      `json:"type"`
	RunID        string         `json:"run_id"`
	Stage        string         `json:"stage,omitempty"`
	ConnectionID string         `json:"connection_id,omitempty"`
	Message      string         `json:"message"`
	Severity     string         `json:"severity"` // SeverityInfo, SeverityWarning, SeverityError
	Timestamp    time.Time      `json:"timestamp"`
	Metadata     map[string]any `json:"metadata,omitempty"`
}

// =============================================================================
// Notifier Interface
// =============================================================================

// Notifier sends notifications about run events.
type Notifier interface {
	// Notify sends a notification. Callers treat a returned error as
	// non-fatal.
	Notify(ctx context.Context, event Event) error
}
