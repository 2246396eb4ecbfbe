package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/hashicorp/go-cleanhttp"
	"github.com/hashicorp/go-retryablehttp"
)

// DefaultTimeout is the default HTTP request timeout.
const DefaultTimeout = 30 * time.Second

// Client provides common HTTP functionality for broker clients.
// Retries are delegated to go-retryablehttp and governed by a RetryPolicy.
type Client struct {
	retry       *retryablehttp.Client
	baseURL     string
	serviceName string
	policy      RetryPolicy

	// beforeRequest is called before each request (for auth headers, etc.)
	beforeRequest func(req *http.Request)
}

// ClientConfig holds configuration for Client.
type ClientConfig struct {
	// Client is the underlying HTTP client. Defaults to a pooled client
	// from go-cleanhttp with DefaultTimeout.
	Client *http.Client

	BaseURL     string
	ServiceName string

	// Retry controls transport-level retries. The zero value is replaced
	// by DefaultRetryPolicy.
	Retry RetryPolicy

	// Logger receives retry diagnostics. Nil disables them.
	Logger *slog.Logger

	BeforeRequest func(req *http.Request)
}

// NewClient creates a new Client with the given configuration.
func NewClient(cfg ClientConfig) *Client {
	policy := cfg.Retry.withDefaults()

	httpClient := cfg.Client
	if httpClient == nil {
		httpClient = cleanhttp.DefaultPooledClient()
		httpClient.Timeout = DefaultTimeout
	}

	rc := retryablehttp.NewClient()
	rc.HTTPClient = httpClient
	rc.RetryMax = policy.MaxRetries
	rc.RetryWaitMin = policy.WaitMin
	rc.RetryWaitMax = policy.WaitMax
	rc.CheckRetry = policy.checkRetry
	rc.Backoff = policy.backoff
	rc.ErrorHandler = retryablehttp.PassthroughErrorHandler
	rc.Logger = nil
	if cfg.Logger != nil {
		rc.Logger = cfg.Logger.With("service", cfg.ServiceName)
	}

	return &Client{
		retry:         rc,
		baseURL:       strings.TrimSuffix(cfg.BaseURL, "/"),
		serviceName:   cfg.ServiceName,
		policy:        policy,
		beforeRequest: cfg.BeforeRequest,
	}
}

// BaseURL returns the base URL requests are resolved against.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// Policy returns the effective retry policy.
func (c *Client) Policy() RetryPolicy {
	return c.policy
}

// Request executes an HTTP request with retries for transient errors.
// A url.Values body is sent form encoded; any other non-nil body is sent as JSON.
func (c *Client) Request(ctx context.Context, method, path string, body any) (*http.Response, error) {
	return c.RequestWithHeaders(ctx, method, path, body, nil)
}

// RequestWithHeaders executes an HTTP request with custom headers.
func (c *Client) RequestWithHeaders(
	ctx context.Context,
	method, path string,
	body any,
	headers map[string]string,
) (*http.Response, error) {
	var (
		rawBody     []byte
		contentType = "application/json"
	)
	switch b := body.(type) {
	case nil:
	case url.Values:
		rawBody = []byte(b.Encode())
		contentType = "application/x-www-form-urlencoded"
	default:
		data, err := json.Marshal(b)
		if err != nil {
			return nil, fmt.Errorf("marshal request body: %w", err)
		}
		rawBody = data
	}

	var reader any
	if rawBody != nil {
		reader = rawBody
	}

	req, err := retryablehttp.NewRequestWithContext(withMethod(ctx, method), method, c.baseURL+path, reader)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Accept", "application/json")

	for k, v := range headers {
		req.Header.Set(k, v)
	}

	if c.beforeRequest != nil {
		c.beforeRequest(req.Request)
	}

	resp, err := c.retry.Do(req)
	if err != nil {
		if resp != nil && resp.Body != nil {
			_ = resp.Body.Close()
		}
		return nil, &TransportError{Service: c.serviceName, Endpoint: path, Err: err}
	}

	return resp, nil
}

// DecodeResponse checks the response status and decodes the body into result.
// With want == 0 any 2xx status is accepted; otherwise the status must match
// exactly. The response body is always closed.
func (c *Client) DecodeResponse(resp *http.Response, path string, want int, result any) error {
	defer func() { _ = resp.Body.Close() }()

	ok := resp.StatusCode >= 200 && resp.StatusCode < 300
	if want != 0 {
		ok = resp.StatusCode == want
	}
	if !ok {
		return c.parseError(resp, path)
	}

	if result == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}

	if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}
		return fmt.Errorf("decode %s response: %w", c.serviceName, err)
	}

	return nil
}

// parseError parses an error response into an APIError.
func (c *Client) parseError(resp *http.Response, path string) error {
	body, _ := io.ReadAll(resp.Body)

	apiErr := &APIError{
		Service:    c.serviceName,
		StatusCode: resp.StatusCode,
		Endpoint:   path,
		RequestID:  resp.Header.Get("X-Request-Id"),
	}

	// Guacamole reports {"message": ..., "type": ...}; other services use "error".
	var errResp struct {
		Message string `json:"message"`
		Error   string `json:"error"`
		Type    string `json:"type"`
	}
	if json.Unmarshal(bytes.TrimSpace(body), &errResp) == nil {
		apiErr.Type = errResp.Type
		if errResp.Message != "" {
			apiErr.Message = errResp.Message
		} else if errResp.Error != "" {
			apiErr.Message = errResp.Error
		}
	}

	if apiErr.Message == "" {
		apiErr.Message = http.StatusText(resp.StatusCode)
	}

	return apiErr
}

type methodKey struct{}

// withMethod records the request method for the retry check, which only
// sees the context when the transport fails before a response exists.
func withMethod(ctx context.Context, method string) context.Context {
	return context.WithValue(ctx, methodKey{}, method)
}

func methodFromContext(ctx context.Context) string {
	if m, ok := ctx.Value(methodKey{}).(string); ok {
		return m
	}
	return ""
}
