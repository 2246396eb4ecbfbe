package testutil

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"testing"
	"time"
)

func TestTestContext(t *testing.T) {
	ctx := TestContext(t)
	if ctx.Err() != nil {
		t.Errorf("context should not be canceled yet, got %v", ctx.Err())
	}
}

func TestTestContextWithTimeout(t *testing.T) {
	ctx := TestContextWithTimeout(t, time.Hour)
	deadline, ok := ctx.Deadline()
	if !ok {
		t.Fatal("context should have a deadline")
	}
	if time.Until(deadline) <= 0 {
		t.Errorf("deadline %v is in the past", deadline)
	}
}

func TestCancelableContext(t *testing.T) {
	ctx, cancel := CancelableContext(t)
	cancel()
	if ctx.Err() != context.Canceled {
		t.Errorf("ctx.Err() = %v, want context.Canceled", ctx.Err())
	}
}

func TestTempFile(t *testing.T) {
	path := TempFile(t, "key", []byte("secret"), 0o600)

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile() error = %v", err)
	}
	if string(data) != "secret" {
		t.Errorf("content = %q, want %q", data, "secret")
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("Stat() error = %v", err)
	}
	if info.Mode().Perm() != 0o600 {
		t.Errorf("mode = %v, want 0600", info.Mode().Perm())
	}
}

func brokerDo(t *testing.T, b *FakeBroker, method, path, token string, body io.Reader) *http.Response {
	t.Helper()

	req, err := http.NewRequestWithContext(TestContext(t), method, b.URL()+path, body)
	if err != nil {
		t.Fatalf("NewRequest() error = %v", err)
	}
	if token != "" {
		req.Header.Set("Guacamole-Token", token)
	}
	if method == http.MethodPost && strings.HasPrefix(path, "/api/tokens") {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	} else if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("Do() error = %v", err)
	}
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func TestFakeBroker_Token(t *testing.T) {
	b := NewFakeBroker(t)

	form := url.Values{"username": {BrokerUsername}, "password": {BrokerPassword}}
	resp := brokerDo(t, b, http.MethodPost, "/api/tokens", "", strings.NewReader(form.Encode()))
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}

	var got map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got["authToken"] != BrokerToken {
		t.Errorf("authToken = %v, want %s", got["authToken"], BrokerToken)
	}
	if got["dataSource"] != "mysql" {
		t.Errorf("dataSource = %v, want mysql", got["dataSource"])
	}

	bad := url.Values{"username": {BrokerUsername}, "password": {"wrong"}}
	resp = brokerDo(t, b, http.MethodPost, "/api/tokens", "", strings.NewReader(bad.Encode()))
	if resp.StatusCode != http.StatusForbidden {
		t.Errorf("wrong password status = %d, want 403", resp.StatusCode)
	}
}

func TestFakeBroker_CreateAndRead(t *testing.T) {
	b := NewFakeBroker(t)
	b.NextID = 42
	b.PendingVerifies = 1

	body := `{"name":"SSH_Connection_1","protocol":"ssh","parentIdentifier":"ROOT","parameters":{"hostname":"10.0.0.9","port":"22"}}`
	resp := brokerDo(t, b, http.MethodPost, "/api/session/data/mysql/connections", BrokerToken, strings.NewReader(body))
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("create status = %d, want 200", resp.StatusCode)
	}

	var created map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&created); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if created["identifier"] != "42" {
		t.Errorf("identifier = %v, want 42", created["identifier"])
	}

	resp = brokerDo(t, b, http.MethodGet, "/api/session/data/mysql/connections/42", BrokerToken, nil)
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("first read status = %d, want 404 while pending", resp.StatusCode)
	}
	resp = brokerDo(t, b, http.MethodGet, "/api/session/data/mysql/connections/42", BrokerToken, nil)
	if resp.StatusCode != http.StatusOK {
		t.Errorf("second read status = %d, want 200", resp.StatusCode)
	}

	if got := b.Parameters("42")["hostname"]; got != "10.0.0.9" {
		t.Errorf("stored hostname = %q, want 10.0.0.9", got)
	}

	resp = brokerDo(t, b, http.MethodGet, "/api/session/data/mysql/connections", BrokerToken, nil)
	var listed map[string]map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&listed); err != nil {
		t.Fatalf("decode list: %v", err)
	}
	if listed["42"]["name"] != "SSH_Connection_1" {
		t.Errorf("listed = %v, want connection 42", listed)
	}
}

func TestFakeBroker_RejectsBadToken(t *testing.T) {
	b := NewFakeBroker(t)

	resp := brokerDo(t, b, http.MethodGet, "/api/session/data/mysql/connections", "nope", nil)
	if resp.StatusCode != http.StatusForbidden {
		t.Errorf("status = %d, want 403", resp.StatusCode)
	}

	resp = brokerDo(t, b, http.MethodGet, "/api/session/data/postgresql/connections", BrokerToken, nil)
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("unknown data source status = %d, want 404", resp.StatusCode)
	}
}

func TestFakeBroker_RecordsCalls(t *testing.T) {
	b := NewFakeBroker(t)
	b.AddConnection("7", map[string]any{"name": "existing", "identifier": "7"}, nil)

	brokerDo(t, b, http.MethodGet, "/api/session/data/mysql/connections/7", BrokerToken, nil)
	brokerDo(t, b, http.MethodPost, "/api/session/tunnels", BrokerToken, strings.NewReader(`{"connectionID":"7"}`))
	brokerDo(t, b, http.MethodDelete, "/api/tokens/"+BrokerToken, "", nil)

	want := []string{
		"GET /api/session/data/mysql/connections/7",
		"POST /api/session/tunnels",
		"DELETE /api/tokens/" + BrokerToken,
	}
	got := b.Calls()
	if len(got) != len(want) {
		t.Fatalf("Calls() = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("Calls()[%d] = %q, want %q", i, got[i], want[i])
		}
	}

	if tunnels := b.Tunnels(); len(tunnels) != 1 || tunnels[0]["connectionID"] != "7" {
		t.Errorf("Tunnels() = %v", tunnels)
	}
	if logouts := b.Logouts(); len(logouts) != 1 || logouts[0] != BrokerToken {
		t.Errorf("Logouts() = %v", logouts)
	}
}
