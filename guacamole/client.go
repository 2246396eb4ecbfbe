package guacamole

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"sync"
	"time"

	devhttp "github.com/randalmurphal/guaclink/http"
)

// TokenHeader carries the session token on authenticated requests.
const TokenHeader = "Guacamole-Token"

const serviceName = "guacamole"

// Client provides access to the Guacamole REST API.
type Client struct {
	cfg        *Config
	api        *devhttp.Client
	httpClient *http.Client
	logger     *slog.Logger
	baseURL    string

	mu         sync.RWMutex
	dataSource string
}

// ClientOption configures the client.
type ClientOption func(*Client)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(httpClient *http.Client) ClientOption {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

// WithLogger sets the logger used for retry diagnostics.
func WithLogger(logger *slog.Logger) ClientOption {
	return func(c *Client) {
		c.logger = logger
	}
}

// NewClient creates a new Guacamole client.
func NewClient(cfg *Config, opts ...ClientOption) (*Client, error) {
	if validateErr := cfg.Validate(); validateErr != nil {
		return nil, validateErr
	}

	c := &Client{
		cfg:        cfg.Clone(),
		baseURL:    strings.TrimSuffix(cfg.URL, "/"),
		dataSource: cfg.DataSource,
	}

	for _, opt := range opts {
		opt(c)
	}

	c.api = devhttp.NewClient(devhttp.ClientConfig{
		Client:      c.httpClient,
		BaseURL:     c.baseURL,
		ServiceName: serviceName,
		Retry:       c.cfg.Retry,
		Logger:      c.logger,
	})

	return c, nil
}

// BaseURL returns the broker base URL.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// DataSource returns the data source connections are addressed in.
func (c *Client) DataSource() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.dataSource
}

// Login authenticates with the configured credentials.
func (c *Client) Login(ctx context.Context) (*Session, error) {
	return c.Authenticate(ctx, c.cfg.Auth.Username, c.cfg.Auth.Password)
}

// Authenticate exchanges a username and password for a session token.
// Only a 200 response carrying a token succeeds. When no data source is
// configured, the one reported by the broker is adopted.
func (c *Client) Authenticate(ctx context.Context, username, password string) (*Session, error) {
	ctx, cancel := c.withTimeout(ctx, c.cfg.Timeouts.Auth)
	defer cancel()

	form := url.Values{
		"username": {username},
		"password": {password},
	}

	resp, respErr := c.api.Request(ctx, http.MethodPost, tokensPath, form)
	if respErr != nil {
		return nil, respErr
	}

	var session Session
	if decodeErr := c.api.DecodeResponse(resp, tokensPath, http.StatusOK, &session); decodeErr != nil {
		var apiErr *devhttp.APIError
		if errors.As(decodeErr, &apiErr) {
			return nil, fmt.Errorf("%w: %w", ErrAuthenticationFailed, &devhttp.AuthError{
				Service: serviceName,
				Reason:  fmt.Sprintf("status %d: %s", apiErr.StatusCode, apiErr.Message),
				Err:     apiErr,
			})
		}
		return nil, decodeErr
	}

	if session.Token == "" {
		return nil, fmt.Errorf("%w: %w", ErrAuthenticationFailed, ErrTokenMissing)
	}

	c.mu.Lock()
	if c.dataSource == "" {
		c.dataSource = session.DataSource
	}
	c.mu.Unlock()

	return &session, nil
}

// Logout revokes a session token.
func (c *Client) Logout(ctx context.Context, token string) error {
	if token == "" {
		return ErrTokenRequired
	}

	ctx, cancel := c.withTimeout(ctx, c.cfg.Timeouts.Auth)
	defer cancel()

	path := tokensPath + "/" + url.PathEscape(token)
	resp, respErr := c.api.RequestWithHeaders(ctx, http.MethodDelete, path, nil, tokenHeaders(token))
	if respErr != nil {
		return respErr
	}

	return c.api.DecodeResponse(resp, path, 0, nil)
}

// CreateConnection stores a new connection and returns it with the
// broker-assigned identifier. Only a 200 response succeeds.
func (c *Client) CreateConnection(ctx context.Context, token string, conn *Connection) (*Connection, error) {
	if conn == nil || conn.Name == "" {
		return nil, ErrConnectionNameRequired
	}

	path, pathErr := c.connectionsPath()
	if pathErr != nil {
		return nil, pathErr
	}

	ctx, cancel := c.withTimeout(ctx, c.cfg.Timeouts.Create)
	defer cancel()

	resp, respErr := c.api.RequestWithHeaders(ctx, http.MethodPost, path, conn, tokenHeaders(token))
	if respErr != nil {
		return nil, respErr
	}

	var created Connection
	if decodeErr := c.api.DecodeResponse(resp, path, http.StatusOK, &created); decodeErr != nil {
		return nil, decodeErr
	}

	if created.Identifier == "" {
		return nil, ErrIdentifierMissing
	}
	if created.Name == "" {
		created.Name = conn.Name
	}
	if created.Protocol == "" {
		created.Protocol = conn.Protocol
	}

	return &created, nil
}

// GetConnection retrieves a connection by identifier.
func (c *Client) GetConnection(ctx context.Context, token, id string) (*Connection, error) {
	path, pathErr := c.connectionPath(id)
	if pathErr != nil {
		return nil, pathErr
	}

	var conn Connection
	if getErr := c.get(ctx, token, path, &conn); getErr != nil {
		return nil, getErr
	}
	if conn.Identifier == "" {
		conn.Identifier = id
	}

	return &conn, nil
}

// VerifyConnection reports whether the connection exists: nil on 200,
// ErrConnectionNotFound on 404, and the underlying error otherwise.
func (c *Client) VerifyConnection(ctx context.Context, token, id string) error {
	path, pathErr := c.connectionPath(id)
	if pathErr != nil {
		return pathErr
	}

	return c.get(ctx, token, path, nil)
}

// GetConnectionParameters retrieves the stored protocol parameters.
func (c *Client) GetConnectionParameters(ctx context.Context, token, id string) (map[string]string, error) {
	path, pathErr := c.connectionPath(id)
	if pathErr != nil {
		return nil, pathErr
	}
	path += "/parameters"

	params := map[string]string{}
	if getErr := c.get(ctx, token, path, &params); getErr != nil {
		return nil, getErr
	}

	return params, nil
}

// ListConnections returns every connection visible to the session, ordered
// by identifier. The broker keys its response by identifier; the key is
// copied into each connection and the listed body is kept in Body. An empty collection yields an empty slice
// and a nil error.
func (c *Client) ListConnections(ctx context.Context, token string) ([]Connection, error) {
	path, pathErr := c.connectionsPath()
	if pathErr != nil {
		return nil, pathErr
	}

	var byID map[string]json.RawMessage
	if getErr := c.get(ctx, token, path, &byID); getErr != nil {
		return nil, fmt.Errorf("list connections: %w", getErr)
	}

	return flattenConnections(byID)
}

// FindConnectionByName returns the connection whose name matches exactly.
// If several match, the one with the lowest identifier wins.
func (c *Client) FindConnectionByName(ctx context.Context, token, name string) (*Connection, error) {
	if name == "" {
		return nil, ErrConnectionNameRequired
	}

	conns, listErr := c.ListConnections(ctx, token)
	if listErr != nil {
		return nil, listErr
	}

	for i := range conns {
		if conns[i].Name == name {
			return &conns[i], nil
		}
	}

	return nil, fmt.Errorf("%w: %q", ErrConnectionNotFound, name)
}

// TestConnection reads the connection and then asks the broker to open a
// tunnel for it. It succeeds only if the tunnel request returns 200.
//
// The tunnel is opened with the connection's stored parameters; entries in
// override replace individual stored values.
func (c *Client) TestConnection(
	ctx context.Context,
	token, id string,
	override map[string]string,
) (Tunnel, error) {
	conn, connErr := c.GetConnection(ctx, token, id)
	if connErr != nil {
		return nil, fmt.Errorf("get connection details: %w", connErr)
	}

	params, paramsErr := c.GetConnectionParameters(ctx, token, id)
	if paramsErr != nil {
		return nil, fmt.Errorf("get connection parameters: %w", paramsErr)
	}
	for k, v := range override {
		params[k] = v
	}

	protocol := conn.Protocol
	if protocol == "" {
		protocol = ProtocolSSH
	}

	ctx, cancel := c.withTimeout(ctx, c.cfg.Timeouts.Read)
	defer cancel()

	body := &TunnelRequest{
		ConnectionID: id,
		Protocol:     protocol,
		Parameters:   params,
	}

	resp, respErr := c.api.RequestWithHeaders(ctx, http.MethodPost, tunnelsPath, body, tokenHeaders(token))
	if respErr != nil {
		return nil, respErr
	}

	tunnel := Tunnel{}
	if decodeErr := c.api.DecodeResponse(resp, tunnelsPath, http.StatusOK, &tunnel); decodeErr != nil {
		return nil, decodeErr
	}

	return tunnel, nil
}

// DeepLink returns the web UI URL that opens connection id.
func (c *Client) DeepLink(id string) string {
	return BuildDeepLink(c.baseURL, id, c.DataSource())
}

// DashboardURL returns the web UI home page.
func (c *Client) DashboardURL() string {
	return BuildDashboardURL(c.baseURL)
}

const (
	tokensPath  = "/api/tokens"
	tunnelsPath = "/api/session/tunnels"
)

func (c *Client) connectionsPath() (string, error) {
	ds := c.DataSource()
	if ds == "" {
		return "", ErrDataSourceUnknown
	}
	return "/api/session/data/" + url.PathEscape(ds) + "/connections", nil
}

func (c *Client) connectionPath(id string) (string, error) {
	if id == "" {
		return "", ErrConnectionIDRequired
	}
	base, err := c.connectionsPath()
	if err != nil {
		return "", err
	}
	return base + "/" + url.PathEscape(id), nil
}

// get performs an authenticated GET with the read timeout. A 404 maps to
// ErrConnectionNotFound while keeping the APIError in the chain.
func (c *Client) get(ctx context.Context, token, path string, result any) error {
	if token == "" {
		return ErrTokenRequired
	}

	ctx, cancel := c.withTimeout(ctx, c.cfg.Timeouts.Read)
	defer cancel()

	resp, respErr := c.api.RequestWithHeaders(ctx, http.MethodGet, path, nil, tokenHeaders(token))
	if respErr != nil {
		return respErr
	}

	decodeErr := c.api.DecodeResponse(resp, path, http.StatusOK, result)
	if devhttp.IsNotFound(decodeErr) {
		return fmt.Errorf("%w: %w", ErrConnectionNotFound, decodeErr)
	}
	return decodeErr
}

func (c *Client) withTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, d)
}

func tokenHeaders(token string) map[string]string {
	return map[string]string{TokenHeader: token}
}

func flattenConnections(byID map[string]json.RawMessage) ([]Connection, error) {
	conns := make([]Connection, 0, len(byID))
	for id, body := range byID {
		var conn Connection
		if err := json.Unmarshal(body, &conn); err != nil {
			return nil, fmt.Errorf("decode connection %s: %w", id, err)
		}
		conn.Identifier = id
		conn.Body = body
		conns = append(conns, conn)
	}
	sort.Slice(conns, func(i, j int) bool {
		return lessIdentifier(conns[i].Identifier, conns[j].Identifier)
	})
	return conns, nil
}

// lessIdentifier orders numeric identifiers by value before all others,
// which compare lexically.
func lessIdentifier(a, b string) bool {
	aNum, bNum := isDigits(a), isDigits(b)
	switch {
	case aNum && bNum:
		ta, tb := strings.TrimLeft(a, "0"), strings.TrimLeft(b, "0")
		if len(ta) != len(tb) {
			return len(ta) < len(tb)
		}
		if ta != tb {
			return ta < tb
		}
		return a < b
	case aNum != bNum:
		return aNum
	default:
		return a < b
	}
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
