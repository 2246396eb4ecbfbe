package guacamole

import (
	"net/url"
	"strings"
	"time"

	devhttp "github.com/randalmurphal/guaclink/http"
)

// DefaultDataSource is the authentication backend connections are stored in.
const DefaultDataSource = "mysql"

// Config holds the configuration for the Guacamole client.
type Config struct {
	// URL is the base URL of the Guacamole web application,
	// e.g. http://broker.example.com:8080/guacamole
	URL string `yaml:"url"`

	// DataSource names the backend holding connections ("mysql",
	// "postgresql", ...). When empty, the data source reported at login
	// is used.
	DataSource string `yaml:"data_source"`

	// Auth contains the credentials exchanged for a session token.
	Auth AuthConfig `yaml:"auth"`

	// Timeouts bound each API call.
	Timeouts TimeoutConfig `yaml:"timeouts"`

	// Retry controls transport-level retries.
	Retry devhttp.RetryPolicy `yaml:"retry"`
}

// AuthConfig holds authentication configuration.
type AuthConfig struct {
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

// TimeoutConfig holds per-call timeouts.
type TimeoutConfig struct {
	// Auth bounds token requests.
	Auth time.Duration `yaml:"auth"`

	// Read bounds lookups and tunnel tests.
	Read time.Duration `yaml:"read"`

	// Create bounds connection creation, which is slower on some backends.
	Create time.Duration `yaml:"create"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		DataSource: DefaultDataSource,
		Timeouts: TimeoutConfig{
			Auth:   10 * time.Second,
			Read:   10 * time.Second,
			Create: 30 * time.Second,
		},
		Retry: devhttp.DefaultRetryPolicy(),
	}
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.URL == "" {
		return ErrConfigURLRequired
	}

	u, err := url.Parse(c.URL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return ErrConfigURLInvalid
	}

	if c.Auth.Username == "" {
		return ErrConfigUsernameRequired
	}
	if c.Auth.Password == "" {
		return ErrConfigPasswordRequired
	}

	if strings.ContainsAny(c.DataSource, "/?#") {
		return ErrConfigDataSourceInvalid
	}

	if c.Timeouts.Auth < 0 || c.Timeouts.Read < 0 || c.Timeouts.Create < 0 {
		return ErrConfigTimeoutInvalid
	}

	return nil
}

// Clone returns a deep copy of the config.
func (c *Config) Clone() *Config {
	if c == nil {
		return nil
	}
	clone := *c
	if c.Retry.RetryStatuses != nil {
		clone.Retry.RetryStatuses = append([]int(nil), c.Retry.RetryStatuses...)
	}
	return &clone
}
