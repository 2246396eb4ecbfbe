package main

import (
	"flag"
	"fmt"
	"text/tabwriter"

	"github.com/randalmurphal/guaclink/config"
	clierrors "github.com/randalmurphal/guaclink/errors"
)

func (a *app) runConfig(args []string) int {
	if len(args) == 0 {
		a.usage()
		return clierrors.ExitUsage
	}

	switch args[0] {
	case "list":
		return a.configList()
	case "get":
		if len(args) != 2 {
			fmt.Fprintln(a.stderr, "Usage: guaclink config get <key>")
			return clierrors.ExitUsage
		}
		return a.configGet(args[1])
	case "set":
		return a.configSet(args[1:])
	case "unset":
		if len(args) != 2 {
			fmt.Fprintln(a.stderr, "Usage: guaclink config unset <key>")
			return clierrors.ExitUsage
		}
		if err := a.saver.DeleteGlobalKey(args[1]); err != nil {
			return a.fail(err, clierrors.Context{})
		}
		return clierrors.ExitOK
	default:
		fmt.Fprintf(a.stderr, "Unknown config command: %s\n", args[0])
		a.usage()
		return clierrors.ExitUsage
	}
}

func (a *app) configList() int {
	resolved := a.resolver.Resolve()

	tw := tabwriter.NewWriter(a.stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "KEY\tVALUE\tSOURCE")
	for _, key := range config.Keys {
		value, source := resolved.GetWithSource(key)
		if source == "" {
			source = "-"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\n", key, config.Mask(key, value), source)
	}
	if err := tw.Flush(); err != nil {
		return clierrors.ExitFailure
	}

	files := []struct{ label, path string }{
		{string(config.SourceGlobal), a.resolver.GlobalPath()},
		{string(config.SourceLocal), a.resolver.LocalPath()},
		{string(config.SourceDotEnv), a.resolver.DotEnvPath()},
	}
	for _, f := range files {
		if f.path != "" {
			fmt.Fprintf(a.stderr, "%s: %s\n", f.label, f.path)
		}
	}
	return clierrors.ExitOK
}

func (a *app) configGet(key string) int {
	if !isConfigKey(key) {
		return a.fail(fmt.Errorf("%w: %s", config.ErrUnknownKey, key), clierrors.Context{})
	}

	value, source := a.resolver.Resolve().GetWithSource(key)
	fmt.Fprintln(a.stdout, config.Mask(key, value))
	if source != "" {
		fmt.Fprintf(a.stderr, "(from %s)\n", source)
	}
	return clierrors.ExitOK
}

func (a *app) configSet(args []string) int {
	fs := flag.NewFlagSet("guaclink config set", flag.ContinueOnError)
	fs.SetOutput(a.stderr)
	local := fs.Bool("local", false, "write to .guaclink.yaml in the current directory")
	if err := fs.Parse(args); err != nil {
		return clierrors.ExitUsage
	}
	if fs.NArg() != 2 {
		fmt.Fprintln(a.stderr, "Usage: guaclink config set [-local] <key> <value>")
		return clierrors.ExitUsage
	}
	key, value := fs.Arg(0), fs.Arg(1)

	var err error
	if *local {
		dir := a.resolver.GitRoot()
		if dir == "" {
			dir = workDir()
		}
		err = a.saver.SaveLocal(dir, key, value)
	} else {
		err = a.saver.SaveGlobal(key, value)
	}
	if err != nil {
		return a.fail(err, clierrors.Context{})
	}

	fmt.Fprintf(a.stderr, "%s %s = %s\n", a.paint(colorGreen, "✓"), key, config.Mask(key, value))
	return clierrors.ExitOK
}
