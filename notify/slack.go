package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sort"
)

// =============================================================================
// SlackNotifier
// =============================================================================

// SlackNotifier sends notifications to a Slack incoming webhook.
type SlackNotifier struct {
	WebhookURL string
	Channel    string
	Username   string
	Client     *http.Client
}

// NewSlackNotifier creates a Slack webhook notifier.
func NewSlackNotifier(webhookURL string, opts ...SlackOption) *SlackNotifier {
	n := &SlackNotifier{
		WebhookURL: webhookURL,
		Username:   "guaclink",
		Client:     newHTTPClient(),
	}
	for _, opt := range opts {
		opt(n)
	}
	return n
}

// SlackOption configures SlackNotifier.
type SlackOption func(*SlackNotifier)

// WithSlackChannel sets the channel to post to.
func WithSlackChannel(channel string) SlackOption {
	return func(n *SlackNotifier) { n.Channel = channel }
}

// WithSlackUsername sets the bot username.
func WithSlackUsername(username string) SlackOption {
	return func(n *SlackNotifier) { n.Username = username }
}

// Notify implements Notifier.
func (n *SlackNotifier) Notify(ctx context.Context, event Event) error {
	footer := "Run: " + event.RunID
	if event.ConnectionID != "" {
		footer += " | Connection: " + event.ConnectionID
	}

	payload := slackPayload{
		Username: n.Username,
		Channel:  n.Channel,
		Attachments: []slackAttachment{
			{
				Color:     colorForSeverity(event.Severity),
				Title:     fmt.Sprintf("%s %s", emojiForEvent(event.Type), event.Type),
				Text:      event.Message,
				Footer:    footer,
				Timestamp: event.Timestamp.Unix(),
				Fields:    fieldsFromMetadata(event.Metadata),
			},
		},
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal slack payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.WebhookURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", userAgent)

	return send(n.Client, req, "slack")
}

func emojiForEvent(t EventType) string {
	switch t {
	case EventRunStarted:
		return ":rocket:"
	case EventAuthenticated:
		return ":key:"
	case EventConnectionCreated:
		return ":heavy_plus_sign:"
	case EventConnectionVerified, EventConnectionLocated, EventTunnelTested:
		return ":white_check_mark:"
	case EventLinkReady:
		return ":link:"
	case EventVerificationPending:
		return ":hourglass:"
	case EventRunFailed:
		return ":x:"
	default:
		return ":loudspeaker:"
	}
}

func colorForSeverity(severity string) string {
	switch severity {
	case SeverityError:
		return "danger"
	case SeverityWarning:
		return "warning"
	default:
		return "good"
	}
}

// fieldsFromMetadata renders metadata as short fields sorted by key.
func fieldsFromMetadata(metadata map[string]any) []slackField {
	if len(metadata) == 0 {
		return nil
	}

	keys := make([]string, 0, len(metadata))
	for k := range metadata {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	fields := make([]slackField, 0, len(keys))
	for _, k := range keys {
		fields = append(fields, slackField{
			Title: k,
			Value: fmt.Sprintf("%v", metadata[k]),
			Short: true,
		})
	}
	return fields
}

// Slack webhook payload types
type slackPayload struct {
	Username    string            `json:"username,omitempty"`
	Channel     string            `json:"channel,omitempty"`
	Attachments []slackAttachment `json:"attachments"`
}

type slackAttachment struct {
	Color     string       `json:"color,omitempty"`
	Title     string       `json:"title"`
	Text      string       `json:"text"`
	Footer    string       `json:"footer,omitempty"`
	Timestamp int64        `json:"ts,omitempty"`
	Fields    []slackField `json:"fields,omitempty"`
}

type slackField struct {
	Title string `json:"title"`
	Value string `json:"value"`
	Short bool   `json:"short"`
}
