// Package notify reports provisioning run events.
//
// Core types:
//   - Notifier: Interface for sending notifications
//   - Event: Run event with type, stage, message, and metadata
//
// Implementations:
//   - LogNotifier: Logs events through slog
//   - WebhookNotifier: Posts events as JSON to a webhook
//   - SlackNotifier: Posts events to a Slack incoming webhook
//   - MultiNotifier: Fans out to several notifiers
//   - NopNotifier: Discards events
//
// Example usage:
//
//	notifier := notify.NewMultiNotifier(
//	    notify.NewLogNotifier(logger),
//	    notify.NewSlackNotifier(webhookURL, notify.WithSlackChannel("#ops")),
//	)
//	_ = notifier.Notify(ctx, notify.Event{
//	    Type:    notify.EventLinkReady,
//	    RunID:   runID,
//	    Message: "connection ready",
//	})
//
// Notification failures never fail a run.
package notify
