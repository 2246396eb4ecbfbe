package http

import (
	"context"
	"errors"
	"net"
	"net/http"
	"net/url"
	"slices"
	"strconv"
	"time"
)

// Default retry settings: three retries waiting 1s, 2s, 4s.
const (
	DefaultMaxRetries = 3
	DefaultRetryWait  = 1 * time.Second
	DefaultRetryMax   = 30 * time.Second
)

// DefaultRetryStatuses are the server errors worth retrying.
var DefaultRetryStatuses = []int{
	http.StatusInternalServerError,
	http.StatusBadGateway,
	http.StatusServiceUnavailable,
	http.StatusGatewayTimeout,
}

// RetryPolicy controls transport-level retries.
//
// Status-based retries only apply to idempotent methods unless
// RetryNonIdempotent is set. Transport failures are retried for idempotent
// methods, and for any method when the connection was never established.
type RetryPolicy struct {
	// MaxRetries is the number of retries after the first attempt.
	// Negative disables retries.
	MaxRetries int `yaml:"max_retries"`

	// WaitMin is the first backoff; each retry doubles it.
	WaitMin time.Duration `yaml:"wait_min"`

	// WaitMax caps a single backoff.
	WaitMax time.Duration `yaml:"wait_max"`

	// RetryStatuses lists response codes that trigger a retry.
	RetryStatuses []int `yaml:"retry_statuses"`

	// RetryNonIdempotent allows status retries for POST and PATCH.
	RetryNonIdempotent bool `yaml:"retry_non_idempotent"`
}

// DefaultRetryPolicy returns the policy used when none is configured.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxRetries:    DefaultMaxRetries,
		WaitMin:       DefaultRetryWait,
		WaitMax:       DefaultRetryMax,
		RetryStatuses: slices.Clone(DefaultRetryStatuses),
	}
}

// NoRetry returns a policy that performs a single attempt.
func NoRetry() RetryPolicy {
	return RetryPolicy{MaxRetries: -1}
}

func (p RetryPolicy) withDefaults() RetryPolicy {
	def := DefaultRetryPolicy()
	switch {
	case p.MaxRetries < 0:
		p.MaxRetries = 0
	case p.MaxRetries == 0:
		p.MaxRetries = def.MaxRetries
	}
	if p.WaitMin <= 0 {
		p.WaitMin = def.WaitMin
	}
	if p.WaitMax <= 0 {
		p.WaitMax = def.WaitMax
	}
	if p.WaitMax < p.WaitMin {
		p.WaitMax = p.WaitMin
	}
	if p.RetryStatuses == nil {
		p.RetryStatuses = def.RetryStatuses
	}
	return p
}

// Backoff returns the wait before retry number attempt (0-based).
// The result never exceeds WaitMax, however large attempt is.
func (p RetryPolicy) Backoff(attempt int) time.Duration {
	if attempt < 0 {
		attempt = 0
	}
	if p.WaitMin <= 0 || attempt >= 63 || p.WaitMin > p.WaitMax>>attempt {
		return p.WaitMax
	}
	return p.WaitMin << attempt
}

// backoff implements retryablehttp.Backoff, preferring the server's
// Retry-After header when present.
func (p RetryPolicy) backoff(_, _ time.Duration, attempt int, resp *http.Response) time.Duration {
	if resp != nil {
		if retryAfter := resp.Header.Get("Retry-After"); retryAfter != "" {
			if seconds, err := strconv.Atoi(retryAfter); err == nil && seconds >= 0 {
				return min(time.Duration(seconds)*time.Second, p.WaitMax)
			}
		}
	}
	return p.Backoff(attempt)
}

// ShouldRetryStatus reports whether a response with the given status
// should be retried for the method.
func (p RetryPolicy) ShouldRetryStatus(method string, status int) bool {
	if !slices.Contains(p.RetryStatuses, status) {
		return false
	}
	return p.RetryNonIdempotent || isIdempotent(method)
}

// checkRetry implements retryablehttp.CheckRetry.
func (p RetryPolicy) checkRetry(ctx context.Context, resp *http.Response, err error) (bool, error) {
	if ctx.Err() != nil {
		return false, ctx.Err()
	}

	method := methodFromContext(ctx)

	if err != nil {
		return isIdempotent(method) || isDialError(err), nil
	}

	if resp == nil {
		return false, nil
	}

	return p.ShouldRetryStatus(method, resp.StatusCode), nil
}

func isIdempotent(method string) bool {
	switch method {
	case http.MethodGet, http.MethodHead, http.MethodOptions,
		http.MethodPut, http.MethodDelete, http.MethodTrace:
		return true
	default:
		return false
	}
}

// isDialError reports whether the request failed before anything was sent.
func isDialError(err error) bool {
	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		err = urlErr.Err
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return opErr.Op == "dial"
	}
	var dnsErr *net.DNSError
	return errors.As(err, &dnsErr)
}
