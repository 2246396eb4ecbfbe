// Package config resolves guaclink settings from layered sources.
//
// Precedence, highest first:
//  1. Command-line flags
//  2. GUACLINK_* environment variables
//  3. .env in the working directory (same variable names)
//  4. .guaclink.yaml in the git root, or the working directory
//  5. ~/.config/guaclink/config.yaml
//  6. Built-in defaults
//
// # Basic Usage
//
//	resolver := config.NewResolver(config.DefaultResolverConfig())
//	resolved := resolver.ResolveWithFlags(map[string]string{"url": flagURL})
//	settings, err := config.Load(resolved)
//
// Each resolved value tracks where it came from (see Source), which the
// CLI shows in "guaclink config list".
//
// # Credentials
//
// password, ssh_password and ssh_passphrase are secrets. They are masked by
// Mask and cannot be written to the local config file, which is usually
// committed with the project. Keep them in the global config, .env, or the
// environment.
package config
