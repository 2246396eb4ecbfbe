// Command guaclink creates an SSH connection on a Guacamole broker and
// prints a link that opens it in the web UI.
//
// Usage:
//
//	guaclink [flags]
//	guaclink config list
//	guaclink config get <key>
//	guaclink config set [-local] <key> <value>
//	guaclink config unset <key>
//
// Settings are read from ~/.config/guaclink/config.yaml, .guaclink.yaml in
// the repository root, a .env file, GUACLINK_* environment variables and
// flags, in increasing order of precedence.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/randalmurphal/guaclink/config"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)

	a := &app{
		stdout:   os.Stdout,
		stderr:   os.Stderr,
		resolver: config.NewResolver(config.DefaultResolverConfig()),
		saver:    config.DefaultSaveConfig(),
	}
	code := a.run(ctx, os.Args[1:])

	stop()
	os.Exit(code)
}
