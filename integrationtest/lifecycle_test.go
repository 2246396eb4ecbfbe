package integrationtest

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	devhttp "github.com/randalmurphal/guaclink/http"
	"github.com/randalmurphal/guaclink/provision"
	"github.com/randalmurphal/guaclink/testutil"
)

func globalConfig(broker *testutil.FakeBroker, webhook, slack *capture) string {
	return fmt.Sprintf(`url: %s
ssh_username: deploy
ssh_hostname: 10.0.0.9
verify_initial: 1ms
verify_max: 2ms
verify_attempts: 4
retry_max: 1
webhook_url: %s
slack_webhook_url: %s
`, broker.URL(), webhook.server.URL, slack.server.URL)
}

const credentialsEnv = "GUACLINK_USERNAME=guacadmin\nGUACLINK_PASSWORD=guacadmin\n"

// TestLifecycle_EndToEnd runs the whole lifecycle from configuration files
// through to notifications.
func TestLifecycle_EndToEnd(t *testing.T) {
	broker := testutil.NewFakeBroker(t)
	broker.NextID = 42
	broker.PendingVerifies = 1
	webhook := newCapture(t)
	slack := newCapture(t)

	settings := resolveSettings(t, globalConfig(broker, webhook, slack), credentialsEnv)
	require.Equal(t, "guacadmin", settings.Guacamole.Auth.Password, "password should come from .env")
	require.Equal(t, 4, settings.Verify.Attempts)

	result, err := newRunner(t, settings).Run(testutil.TestContext(t))
	require.NoError(t, err)

	assert.Equal(t, provision.StageLinked, result.Stage)
	assert.Equal(t, broker.URL()+"/#/client/NDIAYwBteXNxbAA=", result.DeepLink)
	assert.Equal(t, "10.0.0.9", broker.Parameters("42")["hostname"])
	assert.Equal(t, []string{testutil.BrokerToken}, broker.Logouts())

	var types []string
	for _, body := range webhook.Bodies() {
		types = append(types, fmt.Sprint(body["type"]))
		assert.Equal(t, result.RunID, body["run_id"])
	}
	assert.Equal(t, []string{
		"run_started",
		"authenticated",
		"connection_created",
		"verification_pending",
		"connection_verified",
		"connection_located",
		"link_ready",
	}, types)

	seen := map[string]bool{}
	for _, h := range webhook.Headers() {
		id := h.Get("X-Delivery-ID")
		require.NotEmpty(t, id)
		assert.False(t, seen[id], "delivery IDs should be unique")
		seen[id] = true
		assert.Equal(t, "1", h.Get("X-Test"))
	}

	slackBodies := slack.Bodies()
	require.Len(t, slackBodies, len(types))
	assert.Equal(t, "guaclink", slackBodies[0]["username"])
	assert.Equal(t, "#ops", slackBodies[0]["channel"])
}

// TestLifecycle_EnvOverridesFiles checks the precedence of environment
// variables over the .env file and the global config.
func TestLifecycle_EnvOverridesFiles(t *testing.T) {
	broker := testutil.NewFakeBroker(t)
	broker.Password = "from-env"
	webhook := newCapture(t)
	slack := newCapture(t)

	t.Setenv("GUACLINK_PASSWORD", "from-env")

	settings := resolveSettings(t, globalConfig(broker, webhook, slack), credentialsEnv)
	require.Equal(t, "from-env", settings.Guacamole.Auth.Password)

	result, err := newRunner(t, settings).Run(testutil.TestContext(t))
	require.NoError(t, err)
	assert.Equal(t, provision.StageLinked, result.Stage)
}

// TestLifecycle_FailureIsNotified checks that a lookup failure reaches the
// webhook with the dashboard URL.
func TestLifecycle_FailureIsNotified(t *testing.T) {
	broker := testutil.NewFakeBroker(t)
	broker.HideFromList = true
	webhook := newCapture(t)
	slack := newCapture(t)

	settings := resolveSettings(t, globalConfig(broker, webhook, slack), credentialsEnv)

	result, err := newRunner(t, settings).Run(testutil.TestContext(t))
	require.Error(t, err)
	assert.Equal(t, provision.StageVerified, result.Stage)

	bodies := webhook.Bodies()
	require.NotEmpty(t, bodies)
	last := bodies[len(bodies)-1]
	assert.Equal(t, "run_failed", last["type"])
	assert.Equal(t, "error", last["severity"])

	meta, ok := last["metadata"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, broker.URL()+"/#/", meta["dashboard"])
	assert.Equal(t, "locate connection", meta["op"])

	slackBodies := slack.Bodies()
	require.NotEmpty(t, slackBodies)
	attachments, ok := slackBodies[len(slackBodies)-1]["attachments"].([]any)
	require.True(t, ok)
	require.Len(t, attachments, 1)
	assert.Equal(t, "danger", attachments[0].(map[string]any)["color"])
}

// TestLifecycle_NoRetryConfig checks that retry_max 0 still completes a
// healthy run.
func TestLifecycle_NoRetryConfig(t *testing.T) {
	broker := testutil.NewFakeBroker(t)
	webhook := newCapture(t)
	slack := newCapture(t)

	global := strings.Replace(globalConfig(broker, webhook, slack), "retry_max: 1", "retry_max: 0", 1)
	settings := resolveSettings(t, global, credentialsEnv)
	require.Equal(t, devhttp.NoRetry(), settings.Guacamole.Retry)

	result, err := newRunner(t, settings).Run(testutil.TestContext(t))
	require.NoError(t, err)
	assert.NotEmpty(t, result.DeepLink)
}
