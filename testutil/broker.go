package testutil

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"
	"testing"
)

// Default credentials accepted by a FakeBroker.
const (
	BrokerUsername = "guacadmin"
	BrokerPassword = "guacadmin"
	BrokerToken    = "tok1"
)

// FakeBroker is an in-memory Guacamole REST API for tests.
//
// Status fields force a response code for an endpoint when non-zero.
// Fields must be set before the first request.
type FakeBroker struct {
	Server *httptest.Server

	Username   string
	Password   string
	Token      string
	DataSource string

	AuthStatus   int
	CreateStatus int
	VerifyStatus int
	ListStatus   int
	TunnelStatus int

	// PendingVerifies is how many single-connection reads return 404
	// before a created connection becomes visible.
	PendingVerifies int

	// HideFromList omits created connections from listings.
	HideFromList bool

	// NextID is the identifier assigned to the next created connection.
	NextID int

	mu          sync.Mutex
	connections map[string]map[string]any
	parameters  map[string]map[string]string
	calls       []string
	tunnels     []map[string]any
	logouts     []string
}

// NewFakeBroker starts a fake broker that is closed when the test ends.
func NewFakeBroker(t *testing.T) *FakeBroker {
	t.Helper()

	b := &FakeBroker{
		Username:    BrokerUsername,
		Password:    BrokerPassword,
		Token:       BrokerToken,
		DataSource:  "mysql",
		NextID:      1,
		connections: map[string]map[string]any{},
		parameters:  map[string]map[string]string{},
	}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/tokens", b.handleToken)
	mux.HandleFunc("DELETE /api/tokens/{token}", b.handleLogout)
	mux.HandleFunc("GET /api/session/data/{ds}/connections", b.handleList)
	mux.HandleFunc("POST /api/session/data/{ds}/connections", b.handleCreate)
	mux.HandleFunc("GET /api/session/data/{ds}/connections/{id}", b.handleGet)
	mux.HandleFunc("GET /api/session/data/{ds}/connections/{id}/parameters", b.handleParameters)
	mux.HandleFunc("POST /api/session/tunnels", b.handleTunnel)

	b.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		b.mu.Lock()
		b.calls = append(b.calls, r.Method+" "+r.URL.Path)
		b.mu.Unlock()
		mux.ServeHTTP(w, r)
	}))
	t.Cleanup(b.Server.Close)

	return b
}

// URL returns the broker base URL.
func (b *FakeBroker) URL() string {
	return b.Server.URL
}

// Calls returns "METHOD /path" for every request received, in order.
func (b *FakeBroker) Calls() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]string(nil), b.calls...)
}

// Tunnels returns the bodies of tunnel requests received.
func (b *FakeBroker) Tunnels() []map[string]any {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]map[string]any(nil), b.tunnels...)
}

// Logouts returns the tokens revoked so far.
func (b *FakeBroker) Logouts() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]string(nil), b.logouts...)
}

// Parameters returns the stored parameters of connection id.
func (b *FakeBroker) Parameters(id string) map[string]string {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make(map[string]string, len(b.parameters[id]))
	for k, v := range b.parameters[id] {
		out[k] = v
	}
	return out
}

// AddConnection stores a connection as if it had been created earlier.
func (b *FakeBroker) AddConnection(id string, body map[string]any, params map[string]string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.connections[id] = body
	if params != nil {
		b.parameters[id] = params
	}
}

func (b *FakeBroker) handleToken(w http.ResponseWriter, r *http.Request) {
	if b.AuthStatus != 0 && b.AuthStatus != http.StatusOK {
		writeBrokerError(w, b.AuthStatus, "Authentication failed.", "INVALID_CREDENTIALS")
		return
	}
	if err := r.ParseForm(); err != nil {
		writeBrokerError(w, http.StatusBadRequest, err.Error(), "BAD_REQUEST")
		return
	}
	if r.PostForm.Get("username") != b.Username || r.PostForm.Get("password") != b.Password {
		writeBrokerError(w, http.StatusForbidden, "Invalid login.", "INVALID_CREDENTIALS")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"authToken":            b.Token,
		"username":             b.Username,
		"dataSource":           b.DataSource,
		"availableDataSources": []string{b.DataSource},
	})
}

func (b *FakeBroker) handleLogout(w http.ResponseWriter, r *http.Request) {
	b.mu.Lock()
	b.logouts = append(b.logouts, r.PathValue("token"))
	b.mu.Unlock()
	w.WriteHeader(http.StatusNoContent)
}

func (b *FakeBroker) handleList(w http.ResponseWriter, r *http.Request) {
	if !b.authorized(w, r) {
		return
	}
	if b.ListStatus != 0 && b.ListStatus != http.StatusOK {
		writeBrokerError(w, b.ListStatus, "List failed.", "INTERNAL_ERROR")
		return
	}

	b.mu.Lock()
	out := make(map[string]map[string]any, len(b.connections))
	if !b.HideFromList {
		for id, conn := range b.connections {
			out[id] = conn
		}
	}
	b.mu.Unlock()

	writeJSON(w, http.StatusOK, out)
}

func (b *FakeBroker) handleCreate(w http.ResponseWriter, r *http.Request) {
	if !b.authorized(w, r) {
		return
	}
	if b.CreateStatus != 0 && b.CreateStatus != http.StatusOK {
		writeBrokerError(w, b.CreateStatus, "Create failed.", "INTERNAL_ERROR")
		return
	}

	var body map[string]any
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeBrokerError(w, http.StatusBadRequest, err.Error(), "BAD_REQUEST")
		return
	}

	b.mu.Lock()
	id := strconv.Itoa(b.NextID)
	b.NextID++
	params := map[string]string{}
	if raw, ok := body["parameters"].(map[string]any); ok {
		for k, v := range raw {
			if s, ok := v.(string); ok {
				params[k] = s
			}
		}
	}
	stored := map[string]any{
		"name":              body["name"],
		"identifier":        id,
		"parentIdentifier":  body["parentIdentifier"],
		"protocol":          body["protocol"],
		"attributes":        body["attributes"],
		"activeConnections": 0,
	}
	b.connections[id] = stored
	b.parameters[id] = params
	b.mu.Unlock()

	resp := map[string]any{}
	for k, v := range body {
		resp[k] = v
	}
	resp["identifier"] = id
	writeJSON(w, http.StatusOK, resp)
}

func (b *FakeBroker) handleGet(w http.ResponseWriter, r *http.Request) {
	if !b.authorized(w, r) {
		return
	}
	if b.VerifyStatus != 0 && b.VerifyStatus != http.StatusOK {
		writeBrokerError(w, b.VerifyStatus, "Read failed.", "NOT_FOUND")
		return
	}

	b.mu.Lock()
	conn, ok := b.connections[r.PathValue("id")]
	pending := b.PendingVerifies > 0
	if ok && pending {
		b.PendingVerifies--
	}
	b.mu.Unlock()

	if !ok || pending {
		writeBrokerError(w, http.StatusNotFound, "No such connection.", "NOT_FOUND")
		return
	}
	writeJSON(w, http.StatusOK, conn)
}

func (b *FakeBroker) handleParameters(w http.ResponseWriter, r *http.Request) {
	if !b.authorized(w, r) {
		return
	}

	b.mu.Lock()
	params, ok := b.parameters[r.PathValue("id")]
	b.mu.Unlock()

	if !ok {
		writeBrokerError(w, http.StatusNotFound, "No such connection.", "NOT_FOUND")
		return
	}
	writeJSON(w, http.StatusOK, params)
}

func (b *FakeBroker) handleTunnel(w http.ResponseWriter, r *http.Request) {
	if !b.authorized(w, r) {
		return
	}

	var body map[string]any
	_ = json.NewDecoder(r.Body).Decode(&body)

	b.mu.Lock()
	b.tunnels = append(b.tunnels, body)
	b.mu.Unlock()

	if b.TunnelStatus != 0 && b.TunnelStatus != http.StatusOK {
		writeBrokerError(w, b.TunnelStatus, "Tunnel failed.", "SERVER_ERROR")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"uuid": "tunnel-1", "connectionID": body["connectionID"]})
}

func (b *FakeBroker) authorized(w http.ResponseWriter, r *http.Request) bool {
	if r.Header.Get("Guacamole-Token") != b.Token {
		writeBrokerError(w, http.StatusForbidden, "Permission denied.", "PERMISSION_DENIED")
		return false
	}
	if ds := r.PathValue("ds"); ds != "" && ds != b.DataSource {
		writeBrokerError(w, http.StatusNotFound, "No such data source.", "NOT_FOUND")
		return false
	}
	return true
}

func writeBrokerError(w http.ResponseWriter, status int, message, kind string) {
	writeJSON(w, status, map[string]any{"message": message, "type": kind})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
