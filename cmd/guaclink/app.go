package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/skip2/go-qrcode"

	"github.com/randalmurphal/guaclink/config"
	clierrors "github.com/randalmurphal/guaclink/errors"
	"github.com/randalmurphal/guaclink/guacamole"
	"github.com/randalmurphal/guaclink/hostaddr"
	"github.com/randalmurphal/guaclink/notify"
	"github.com/randalmurphal/guaclink/provision"
	"github.com/randalmurphal/guaclink/sshkey"
)

var version = "0.1.0"

// autoKey selects the first default key found in ~/.ssh.
const autoKey = "auto"

const (
	colorReset = "\033[0m"
	colorBold  = "\033[1m"
	colorDim   = "\033[2m"
	colorGreen = "\033[32m"
	colorRed   = "\033[31m"
)

type app struct {
	stdout   io.Writer
	stderr   io.Writer
	resolver *config.Resolver
	saver    config.SaveConfig
	noColor  bool
}

func (a *app) run(ctx context.Context, args []string) int {
	if len(args) > 0 && args[0] == "config" {
		return a.runConfig(args[1:])
	}
	return a.runProvision(ctx, args)
}

// runOptions are the flags that are not configuration keys.
type runOptions struct {
	logJSON bool
	qr      bool
	version bool
}

func (a *app) parseFlags(args []string) (map[string]string, runOptions, error) {
	var opts runOptions

	fs := flag.NewFlagSet("guaclink", flag.ContinueOnError)
	fs.SetOutput(a.stderr)

	fs.String("url", "", "broker base URL, e.g. http://host:8080/guacamole")
	fs.String("data-source", "", "broker data source")
	fs.String("username", "", "broker username")
	fs.String("password", "", "broker password (prefer GUACLINK_PASSWORD)")
	fs.String("ssh-hostname", "", "SSH host; discovered from the local route when empty")
	fs.String("ssh-port", "", "SSH port")
	fs.String("ssh-username", "", "SSH login user")
	fs.String("ssh-private-key", "", `SSH private key file, or "auto" to search ~/.ssh`)
	fs.String("ssh-host-key", "", "expected SSH host key in authorized_keys format")
	fs.Bool("test-tunnel", false, "open a tunnel to the new connection before linking")
	fs.String("verify-attempts", "", "reads of the new connection before giving up")
	fs.String("verify-initial", "", "first delay between verification reads")
	fs.String("verify-max", "", "longest delay between verification reads")
	fs.String("retry-max", "", "HTTP retries per request, 0 disables")
	fs.String("webhook-url", "", "post run events to this webhook")
	fs.String("slack-webhook-url", "", "post run events to this Slack webhook")
	fs.String("log-level", "", "debug, info, warn or error")
	fs.Bool("no-color", false, "disable colored output")
	fs.BoolVar(&opts.logJSON, "log-json", false, "log as JSON")
	fs.BoolVar(&opts.qr, "qr", false, "print the link as a QR code")
	fs.BoolVar(&opts.version, "version", false, "print the version")

	if err := fs.Parse(args); err != nil {
		return nil, opts, err
	}
	if fs.NArg() > 0 {
		return nil, opts, fmt.Errorf("unexpected argument %q", fs.Arg(0))
	}

	flags := map[string]string{}
	fs.Visit(func(f *flag.Flag) {
		key := strings.ReplaceAll(f.Name, "-", "_")
		if isConfigKey(key) {
			flags[key] = f.Value.String()
		}
	})

	return flags, opts, nil
}

func (a *app) runProvision(ctx context.Context, args []string) int {
	flags, opts, err := a.parseFlags(args)
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return clierrors.ExitOK
		}
		return clierrors.ExitUsage
	}
	if opts.version {
		fmt.Fprintf(a.stdout, "guaclink v%s\n", version)
		return clierrors.ExitOK
	}

	resolved := a.resolver.ResolveWithFlags(flags)
	settings, err := config.Load(resolved)
	if err != nil {
		return a.fail(err, clierrors.Context{})
	}
	a.noColor = settings.NoColor

	logger := newLogger(a.stderr, settings.LogLevel, opts.logJSON)

	errCtx := clierrors.Context{
		ServerURL: settings.Guacamole.URL,
		Username:  settings.Guacamole.Auth.Username,
		KeyPath:   settings.PrivateKeyPath,
	}

	if err := applySSHKeys(settings, logger); err != nil {
		return a.fail(err, errCtx)
	}

	client, err := guacamole.NewClient(settings.Guacamole, guacamole.WithLogger(logger))
	if err != nil {
		return a.fail(err, errCtx)
	}
	errCtx.DashboardURL = client.DashboardURL()

	runner := provision.NewRunner(client, provision.Options{
		Username: settings.Guacamole.Auth.Username,
		Password: settings.Guacamole.Auth.Password,
		SSH:      settings.SSH,
		Resolver: hostaddr.FromConfig(settings.SSH.Hostname),
		VerifyPoll: provision.VerifyPoll{
			Initial:     settings.Verify.Initial,
			Max:         settings.Verify.Max,
			MaxAttempts: settings.Verify.Attempts,
		},
		TestTunnel: settings.TestTunnel,
	},
		provision.WithLogger(logger),
		provision.WithNotifier(newNotifier(settings, logger)),
	)

	result, err := runner.Run(ctx)
	if err != nil {
		code := a.fail(err, errCtx)
		if result != nil && result.Stage >= provision.StageCreated {
			fmt.Fprintf(a.stderr, "\n%s %s\n", a.paint(colorDim, "Dashboard:"), result.DashboardURL)
		}
		return code
	}

	a.printResult(result, opts.qr)
	return clierrors.ExitOK
}

func (a *app) printResult(result *provision.Result, qr bool) {
	fmt.Fprintf(a.stderr, "%s connection %s (%s) ready\n",
		a.paint(colorGreen, "✓"), result.Connection.Name, result.Connection.Identifier)
	if result.TunnelTested {
		fmt.Fprintf(a.stderr, "%s tunnel opened\n", a.paint(colorGreen, "✓"))
	}

	fmt.Fprintln(a.stdout, result.DeepLink)

	if qr {
		code, err := qrcode.New(result.DeepLink, qrcode.Medium)
		if err != nil {
			fmt.Fprintf(a.stderr, "qr code: %v\n", err)
			return
		}
		fmt.Fprint(a.stdout, code.ToSmallString(false))
	}
}

func (a *app) fail(err error, c clierrors.Context) int {
	wrapped := clierrors.Wrap(err, c)
	fmt.Fprintf(a.stderr, "%s %v\n", a.paint(colorRed+colorBold, "Error:"), wrapped)
	return clierrors.ExitCode(wrapped)
}

func (a *app) paint(color, s string) string {
	if a.noColor {
		return s
	}
	return color + s + colorReset
}

func newLogger(w io.Writer, level slog.Level, asJSON bool) *slog.Logger {
	opts := &slog.HandlerOptions{Level: level}
	if asJSON {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

// applySSHKeys loads the configured private key into the connection
// parameters and normalizes the pinned host key.
func applySSHKeys(s *config.Settings, logger *slog.Logger) error {
	if s.SSH.HostKey != "" {
		hostKey, err := sshkey.ParseHostKey(s.SSH.HostKey)
		if err != nil {
			return err
		}
		s.SSH.HostKey = hostKey
	}

	path := s.PrivateKeyPath
	if path == "" {
		return nil
	}
	if path == autoKey {
		found, err := sshkey.FindDefaultKey(sshkey.Config{})
		if err != nil {
			return err
		}
		path = found
		s.PrivateKeyPath = found
	}

	key, err := sshkey.LoadPrivateKey(path, s.SSH.Passphrase)
	if err != nil {
		return err
	}
	logger.Debug("loaded private key", "path", key.Path, "type", key.Type, "fingerprint", key.Fingerprint)

	s.SSH.PrivateKey = key.PEM
	if !key.Encrypted {
		s.SSH.Passphrase = ""
	}
	return nil
}

func newNotifier(s *config.Settings, logger *slog.Logger) notify.Notifier {
	notifiers := []notify.Notifier{notify.NewLogNotifier(logger)}
	if s.WebhookURL != "" {
		notifiers = append(notifiers, notify.NewWebhookNotifier(s.WebhookURL, nil))
	}
	if s.SlackWebhookURL != "" {
		notifiers = append(notifiers, notify.NewSlackNotifier(s.SlackWebhookURL))
	}
	if len(notifiers) == 1 {
		return notifiers[0]
	}

	multi := notify.NewMultiNotifier(notifiers...)
	multi.Logger = logger
	return multi
}

func isConfigKey(key string) bool {
	for _, k := range config.Keys {
		if k == key {
			return true
		}
	}
	return false
}

func (a *app) usage() {
	fmt.Fprint(a.stderr, `Usage:
  guaclink [flags]
  guaclink config list
  guaclink config get <key>
  guaclink config set [-local] <key> <value>
  guaclink config unset <key>

Run "guaclink -h" for the list of flags.
`)
}

func workDir() string {
	dir, err := os.Getwd()
	if err != nil {
		return "."
	}
	return dir
}
