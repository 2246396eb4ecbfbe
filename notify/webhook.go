package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/go-cleanhttp"
)

// DeliveryIDHeader carries a unique ID per webhook delivery so receivers
// can drop duplicates.
const DeliveryIDHeader = "X-Delivery-ID"

// userAgent identifies outgoing notifications.
const userAgent = "guaclink-notify"

// =============================================================================
// WebhookNotifier
// =============================================================================

// WebhookNotifier posts events as JSON to a generic HTTP webhook.
type WebhookNotifier struct {
	URL     string
	Headers map[string]string
	Client  *http.Client
}

// NewWebhookNotifier creates a webhook notifier.
func NewWebhookNotifier(url string, headers map[string]string) *WebhookNotifier {
	return &WebhookNotifier{
		URL:     url,
		Headers: headers,
		Client:  newHTTPClient(),
	}
}

// Notify implements Notifier.
func (n *WebhookNotifier) Notify(ctx context.Context, event Event) error {
	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.URL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set(DeliveryIDHeader, uuid.NewString())
	for k, v := range n.Headers {
		req.Header.Set(k, v)
	}

	return send(n.Client, req, "webhook")
}

func newHTTPClient() *http.Client {
	client := cleanhttp.DefaultClient()
	client.Timeout = 10 * time.Second
	return client
}

func send(client *http.Client, req *http.Request, target string) error {
	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("send %s: %w", target, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return fmt.Errorf("%s returned %d", target, resp.StatusCode)
	}

	return nil
}
