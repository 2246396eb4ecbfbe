package main

import (
	"bytes"
	"crypto/ed25519"
	"crypto/rand"
	"encoding/pem"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/ssh"

	"github.com/randalmurphal/guaclink/config"
	clierrors "github.com/randalmurphal/guaclink/errors"
	"github.com/randalmurphal/guaclink/testutil"
)

func newTestApp(t *testing.T, globalPath string) (*app, *bytes.Buffer, *bytes.Buffer) {
	t.Helper()

	cfg := config.DefaultResolverConfig()
	cfg.ErrWriter = io.Discard

	var stdout, stderr bytes.Buffer
	return &app{
		stdout:   &stdout,
		stderr:   &stderr,
		resolver: config.NewResolverWithPaths(cfg, globalPath, "", ""),
		saver:    config.DefaultSaveConfig(),
	}, &stdout, &stderr
}

func brokerArgs(broker *testutil.FakeBroker, extra ...string) []string {
	args := []string{
		"-url", broker.URL(),
		"-username", testutil.BrokerUsername,
		"-password", testutil.BrokerPassword,
		"-ssh-username", "deploy",
		"-ssh-hostname", "10.0.0.9",
		"-verify-initial", "1ms",
		"-verify-max", "2ms",
		"-verify-attempts", "2",
		"-retry-max", "0",
		"-log-level", "error",
		"-no-color",
	}
	return append(args, extra...)
}

func TestRun_PrintsDeepLink(t *testing.T) {
	broker := testutil.NewFakeBroker(t)
	a, stdout, stderr := newTestApp(t, "")

	code := a.run(testutil.TestContext(t), brokerArgs(broker))
	require.Equal(t, clierrors.ExitOK, code, stderr.String())

	assert.Equal(t, broker.URL()+"/#/client/MQBjAG15c3FsAA==\n", stdout.String())
	assert.Contains(t, stderr.String(), "connection SSH_Connection_")
	assert.Equal(t, []string{testutil.BrokerToken}, broker.Logouts())
}

func TestRun_QRCode(t *testing.T) {
	broker := testutil.NewFakeBroker(t)
	a, stdout, stderr := newTestApp(t, "")

	code := a.run(testutil.TestContext(t), brokerArgs(broker, "-qr"))
	require.Equal(t, clierrors.ExitOK, code, stderr.String())

	lines := strings.Split(strings.TrimSpace(stdout.String()), "\n")
	require.Greater(t, len(lines), 10)
	assert.Equal(t, broker.URL()+"/#/client/MQBjAG15c3FsAA==", lines[0])
}

func TestRun_TestTunnelFlag(t *testing.T) {
	broker := testutil.NewFakeBroker(t)
	a, _, stderr := newTestApp(t, "")

	code := a.run(testutil.TestContext(t), brokerArgs(broker, "-test-tunnel"))
	require.Equal(t, clierrors.ExitOK, code, stderr.String())

	assert.Len(t, broker.Tunnels(), 1)
	assert.Contains(t, stderr.String(), "tunnel opened")
}

func TestRun_PrivateKey(t *testing.T) {
	_, priv, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)
	block, err := ssh.MarshalPrivateKey(priv, "deploy@example.com")
	require.NoError(t, err)
	keyPEM := pem.EncodeToMemory(block)
	keyPath := testutil.TempFile(t, "id_ed25519", keyPEM, 0o600)

	t.Run("loaded into parameters", func(t *testing.T) {
		broker := testutil.NewFakeBroker(t)
		a, _, stderr := newTestApp(t, "")

		code := a.run(testutil.TestContext(t), brokerArgs(broker, "-ssh-private-key", keyPath))
		require.Equal(t, clierrors.ExitOK, code, stderr.String())

		params := broker.Parameters("1")
		assert.Equal(t, string(keyPEM), params["private-key"])
		assert.NotContains(t, params, "passphrase")
	})

	t.Run("missing file", func(t *testing.T) {
		broker := testutil.NewFakeBroker(t)
		a, _, stderr := newTestApp(t, "")

		missing := filepath.Join(t.TempDir(), "id_missing")
		code := a.run(testutil.TestContext(t), brokerArgs(broker, "-ssh-private-key", missing))
		assert.Equal(t, clierrors.ExitUsage, code)
		assert.Empty(t, broker.Calls())
		assert.Contains(t, stderr.String(), missing)
	})
}

func TestRun_ExitCodes(t *testing.T) {
	tests := []struct {
		name     string
		setup    func(*testutil.FakeBroker)
		args     func(*testutil.FakeBroker) []string
		wantCode int
		wantErr  string
	}{
		{
			name:     "bad credentials",
			args:     func(b *testutil.FakeBroker) []string { return append(brokerArgs(b), "-password", "wrong") },
			wantCode: clierrors.ExitAuth,
			wantErr:  "Guacamole rejected the login",
		},
		{
			name:     "missing url",
			args:     func(*testutil.FakeBroker) []string { return []string{"-username", "u", "-password", "p", "-ssh-username", "deploy"} },
			wantCode: clierrors.ExitUsage,
		},
		{
			name:     "invalid port",
			args:     func(b *testutil.FakeBroker) []string { return brokerArgs(b, "-ssh-port", "70000") },
			wantCode: clierrors.ExitUsage,
		},
		{
			name:     "unknown flag",
			args:     func(*testutil.FakeBroker) []string { return []string{"-bogus"} },
			wantCode: clierrors.ExitUsage,
		},
		{
			name:     "create rejected",
			setup:    func(b *testutil.FakeBroker) { b.CreateStatus = 400 },
			args:     func(b *testutil.FakeBroker) []string { return brokerArgs(b) },
			wantCode: clierrors.ExitFailure,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			broker := testutil.NewFakeBroker(t)
			if tt.setup != nil {
				tt.setup(broker)
			}
			a, stdout, stderr := newTestApp(t, "")

			code := a.run(testutil.TestContext(t), tt.args(broker))
			assert.Equal(t, tt.wantCode, code, stderr.String())
			assert.Empty(t, stdout.String())
			if tt.wantErr != "" {
				assert.Contains(t, stderr.String(), tt.wantErr)
			}
		})
	}
}

func TestRun_DashboardOnLookupFailure(t *testing.T) {
	broker := testutil.NewFakeBroker(t)
	broker.HideFromList = true
	a, stdout, stderr := newTestApp(t, "")

	code := a.run(testutil.TestContext(t), brokerArgs(broker))
	assert.Equal(t, clierrors.ExitFailure, code)
	assert.Empty(t, stdout.String())
	assert.Contains(t, stderr.String(), "Dashboard: "+broker.URL()+"/#/")
}

func TestRun_Version(t *testing.T) {
	a, stdout, _ := newTestApp(t, "")

	code := a.run(testutil.TestContext(t), []string{"-version"})
	assert.Equal(t, clierrors.ExitOK, code)
	assert.Equal(t, "guaclink v"+version+"\n", stdout.String())
}

func TestConfigList_MasksSecrets(t *testing.T) {
	dir := t.TempDir()
	global := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(global, []byte("url: http://broker:8080/guacamole\npassword: hunter2\n"), 0o600))

	a, stdout, _ := newTestApp(t, global)

	code := a.run(testutil.TestContext(t), []string{"config", "list"})
	require.Equal(t, clierrors.ExitOK, code)

	out := stdout.String()
	assert.Contains(t, out, "http://broker:8080/guacamole")
	assert.Contains(t, out, "********")
	assert.NotContains(t, out, "hunter2")
}

func TestConfigList_ShowsFiles(t *testing.T) {
	dir := t.TempDir()
	global := filepath.Join(dir, "config.yaml")
	dotEnv := filepath.Join(dir, ".env")
	require.NoError(t, os.WriteFile(global, []byte("url: http://broker:8080/guacamole\n"), 0o600))
	require.NoError(t, os.WriteFile(dotEnv, []byte("GUACLINK_SSH_USERNAME=deploy\n"), 0o600))

	cfg := config.DefaultResolverConfig()
	cfg.ErrWriter = io.Discard
	a, stdout, stderr := newTestApp(t, global)
	a.resolver = config.NewResolverWithPaths(cfg, global, "", dotEnv)

	code := a.run(testutil.TestContext(t), []string{"config", "list"})
	require.Equal(t, clierrors.ExitOK, code)

	assert.Contains(t, stderr.String(), "global: "+global)
	assert.Contains(t, stderr.String(), "dotenv: "+dotEnv)
	assert.NotContains(t, stderr.String(), "local:")
	assert.Regexp(t, `ssh_username\s+deploy\s+dotenv`, stdout.String())
}

func TestConfigSetGet(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)

	global := filepath.Join(home, ".config", config.AppDir, "config.yaml")
	a, stdout, stderr := newTestApp(t, global)

	code := a.run(testutil.TestContext(t), []string{"config", "set", "url", "http://broker:8080/guacamole"})
	require.Equal(t, clierrors.ExitOK, code, stderr.String())

	code = a.run(testutil.TestContext(t), []string{"config", "get", "url"})
	require.Equal(t, clierrors.ExitOK, code)
	assert.Equal(t, "http://broker:8080/guacamole\n", stdout.String())
	assert.Contains(t, stderr.String(), "(from global)")

	stdout.Reset()
	code = a.run(testutil.TestContext(t), []string{"config", "unset", "url"})
	require.Equal(t, clierrors.ExitOK, code)

	code = a.run(testutil.TestContext(t), []string{"config", "get", "url"})
	require.Equal(t, clierrors.ExitOK, code)
	assert.Equal(t, "\n", stdout.String())
}

func TestConfigSet_RefusesLocalSecret(t *testing.T) {
	a, _, stderr := newTestApp(t, "")

	code := a.run(testutil.TestContext(t), []string{"config", "set", "-local", "password", "hunter2"})
	assert.Equal(t, clierrors.ExitUsage, code)
	assert.NotContains(t, stderr.String(), "hunter2")
}

func TestConfig_Usage(t *testing.T) {
	tests := [][]string{
		{"config"},
		{"config", "frobnicate"},
		{"config", "get"},
		{"config", "set", "url"},
	}

	for _, args := range tests {
		t.Run(strings.Join(args, " "), func(t *testing.T) {
			a, _, _ := newTestApp(t, "")
			assert.Equal(t, clierrors.ExitUsage, a.run(testutil.TestContext(t), args))
		})
	}
}

func TestConfigGet_UnknownKey(t *testing.T) {
	a, _, _ := newTestApp(t, "")
	assert.Equal(t, clierrors.ExitUsage, a.run(testutil.TestContext(t), []string{"config", "get", "nope"}))
}
