package integrationtest

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/randalmurphal/guaclink/config"
	"github.com/randalmurphal/guaclink/guacamole"
	"github.com/randalmurphal/guaclink/notify"
	"github.com/randalmurphal/guaclink/provision"
)

// capture records JSON bodies and headers posted to it.
type capture struct {
	server *httptest.Server

	mu      sync.Mutex
	bodies  []map[string]any
	headers []http.Header
}

func newCapture(t *testing.T) *capture {
	t.Helper()

	c := &capture{}
	c.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		c.mu.Lock()
		c.bodies = append(c.bodies, body)
		c.headers = append(c.headers, r.Header.Clone())
		c.mu.Unlock()
		w.WriteHeader(http.StatusOK)
	}))
	t.Cleanup(c.server.Close)

	return c
}

func (c *capture) Bodies() []map[string]any {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]map[string]any(nil), c.bodies...)
}

func (c *capture) Headers() []http.Header {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]http.Header(nil), c.headers...)
}

// resolveSettings writes the given global YAML and .env files into a
// temporary directory and loads settings from them.
func resolveSettings(t *testing.T, globalYAML, dotEnv string) *config.Settings {
	t.Helper()

	dir := t.TempDir()
	globalPath := filepath.Join(dir, "config.yaml")
	dotEnvPath := filepath.Join(dir, ".env")

	if err := os.WriteFile(globalPath, []byte(globalYAML), 0o600); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	if err := os.WriteFile(dotEnvPath, []byte(dotEnv), 0o600); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	cfg := config.DefaultResolverConfig()
	cfg.ErrWriter = io.Discard
	resolver := config.NewResolverWithPaths(cfg, globalPath, "", dotEnvPath)

	settings, err := config.Load(resolver.Resolve())
	if err != nil {
		t.Fatalf("config.Load: %v", err)
	}
	if len(resolver.Warnings) > 0 {
		t.Fatalf("unexpected config warnings: %v", resolver.Warnings)
	}
	return settings
}

// newRunner wires a runner the way the command does, from settings.
func newRunner(t *testing.T, s *config.Settings) *provision.Runner {
	t.Helper()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	client, err := guacamole.NewClient(s.Guacamole, guacamole.WithLogger(logger))
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}

	notifiers := []notify.Notifier{notify.NewLogNotifier(logger)}
	if s.WebhookURL != "" {
		notifiers = append(notifiers, notify.NewWebhookNotifier(s.WebhookURL, map[string]string{"X-Test": "1"}))
	}
	if s.SlackWebhookURL != "" {
		notifiers = append(notifiers, notify.NewSlackNotifier(s.SlackWebhookURL, notify.WithSlackChannel("#ops")))
	}

	return provision.NewRunner(client, provision.Options{
		Username: s.Guacamole.Auth.Username,
		Password: s.Guacamole.Auth.Password,
		SSH:      s.SSH,
		VerifyPoll: provision.VerifyPoll{
			Initial:     s.Verify.Initial,
			Max:         s.Verify.Max,
			MaxAttempts: s.Verify.Attempts,
		},
		TestTunnel: s.TestTunnel,
	},
		provision.WithLogger(logger),
		provision.WithNotifier(notify.NewMultiNotifier(notifiers...)),
	)
}
