package config

import (
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/randalmurphal/guaclink/guacamole"
	devhttp "github.com/randalmurphal/guaclink/http"
)

// ErrInvalidValue is returned when a key cannot be parsed.
var ErrInvalidValue = errors.New("invalid config value")

// Settings is the typed form of a resolved configuration.
type Settings struct {
	// Guacamole is the broker client configuration. It is not validated here.
	Guacamole *guacamole.Config

	// SSH holds the connection parameters. PrivateKey is left empty; the key
	// file named by PrivateKeyPath is loaded separately.
	SSH guacamole.SSHParameters

	// PrivateKeyPath is a key file path, "auto" to search ~/.ssh, or empty.
	PrivateKeyPath string

	TestTunnel bool
	Verify     VerifySettings

	WebhookURL      string
	SlackWebhookURL string

	LogLevel slog.Level
	NoColor  bool
}

// VerifySettings controls how long a new connection is polled for.
type VerifySettings struct {
	Attempts int
	Initial  time.Duration
	Max      time.Duration
}

// Load converts resolved values to Settings.
func Load(r *Resolved) (*Settings, error) {
	p := parser{r: r}

	gc := guacamole.DefaultConfig()
	gc.URL = r.Get(KeyURL)
	gc.DataSource = r.Get(KeyDataSource)
	gc.Auth = guacamole.AuthConfig{
		Username: r.Get(KeyUsername),
		Password: r.Get(KeyPassword),
	}
	gc.Timeouts = guacamole.TimeoutConfig{
		Auth:   p.duration(KeyAuthTimeout),
		Read:   p.duration(KeyReadTimeout),
		Create: p.duration(KeyCreateTimeout),
	}
	switch retries := p.int(KeyRetryMax); {
	case retries < 0:
		p.fail(KeyRetryMax, strconv.Itoa(retries), errors.New("must not be negative"))
	case retries == 0:
		gc.Retry = devhttp.NoRetry()
	default:
		gc.Retry.MaxRetries = retries
	}

	s := &Settings{
		Guacamole: gc,
		SSH: guacamole.SSHParameters{
			Hostname:   r.Get(KeySSHHostname),
			Port:       p.int(KeySSHPort),
			Username:   r.Get(KeySSHUsername),
			Password:   r.Get(KeySSHPassword),
			Passphrase: r.Get(KeySSHPassphrase),
			HostKey:    r.Get(KeySSHHostKey),
		},
		PrivateKeyPath: r.Get(KeySSHPrivateKey),
		TestTunnel:     p.bool(KeyTestTunnel),
		Verify: VerifySettings{
			Attempts: p.int(KeyVerifyAttempts),
			Initial:  p.duration(KeyVerifyInitial),
			Max:      p.duration(KeyVerifyMax),
		},
		WebhookURL:      r.Get(KeyWebhookURL),
		SlackWebhookURL: r.Get(KeySlackWebhookURL),
		LogLevel:        p.level(KeyLogLevel),
		NoColor:         p.bool(KeyNoColor),
	}

	if s.SSH.Port < 0 || s.SSH.Port > 65535 {
		p.fail(KeySSHPort, r.Get(KeySSHPort), errors.New("out of range"))
	}

	if p.err != nil {
		return nil, p.err
	}
	return s, nil
}

// parser records the first parse failure.
type parser struct {
	r   *Resolved
	err error
}

func (p *parser) fail(key, value string, err error) {
	if p.err == nil {
		p.err = fmt.Errorf("%w %s=%q: %w", ErrInvalidValue, key, value, err)
	}
}

func (p *parser) int(key string) int {
	v := p.r.Get(key)
	if v == "" {
		return 0
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		p.fail(key, v, err)
	}
	return n
}

func (p *parser) bool(key string) bool {
	v := p.r.Get(key)
	if v == "" {
		return false
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		p.fail(key, v, err)
	}
	return b
}

func (p *parser) duration(key string) time.Duration {
	v := p.r.Get(key)
	if v == "" {
		return 0
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		p.fail(key, v, err)
		return 0
	}
	if d < 0 {
		p.fail(key, v, errors.New("must not be negative"))
	}
	return d
}

func (p *parser) level(key string) slog.Level {
	var lvl slog.Level
	v := p.r.Get(key)
	if v == "" {
		return slog.LevelInfo
	}
	if err := lvl.UnmarshalText([]byte(v)); err != nil {
		p.fail(key, v, err)
	}
	return lvl
}
