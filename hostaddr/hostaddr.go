// Package hostaddr resolves the address the broker should use to reach
// this host over SSH.
package hostaddr

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
)

// Addresses used to pick the outbound interface. Nothing is sent to them.
const (
	DefaultTarget   = "8.8.8.8:80"
	DefaultTargetV6 = "[2001:4860:4860::8888]:80"
)

// ErrNoAddress is returned when no resolver produced an address.
var ErrNoAddress = errors.New("could not determine host address")

// Resolver returns the hostname or IP to put in a connection.
type Resolver interface {
	Resolve(ctx context.Context) (string, error)
}

// UDPResolver reports the local IP the OS would use to reach Target.
// Dialing UDP only selects a route; no packets are sent.
type UDPResolver struct {
	Target string
}

// Resolve implements Resolver.
func (r UDPResolver) Resolve(ctx context.Context) (string, error) {
	target := r.Target
	if target == "" {
		target = DefaultTarget
	}

	var d net.Dialer
	conn, err := d.DialContext(ctx, "udp", target)
	if err != nil {
		return "", fmt.Errorf("determine outbound IP for %s: %w", target, err)
	}
	defer conn.Close()

	udpAddr, ok := conn.LocalAddr().(*net.UDPAddr)
	if !ok || udpAddr.IP == nil || udpAddr.IP.IsUnspecified() {
		return "", fmt.Errorf("%w: no local address for %s", ErrNoAddress, target)
	}
	return udpAddr.IP.String(), nil
}

// StaticResolver always returns Address.
type StaticResolver struct {
	Address string
}

// Resolve implements Resolver.
func (r StaticResolver) Resolve(context.Context) (string, error) {
	addr := strings.TrimSpace(r.Address)
	if addr == "" {
		return "", ErrNoAddress
	}
	return addr, nil
}

// ResolverFunc adapts a function to Resolver.
type ResolverFunc func(ctx context.Context) (string, error)

// Resolve implements Resolver.
func (f ResolverFunc) Resolve(ctx context.Context) (string, error) {
	return f(ctx)
}

type chain []Resolver

// Chain returns a resolver that tries each resolver in order and returns the
// first success. If all fail, the error joins every failure.
func Chain(resolvers ...Resolver) Resolver {
	return chain(resolvers)
}

func (c chain) Resolve(ctx context.Context) (string, error) {
	errs := []error{ErrNoAddress}
	for _, r := range c {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		addr, err := r.Resolve(ctx)
		if err == nil {
			return addr, nil
		}
		errs = append(errs, err)
	}
	return "", errors.Join(errs...)
}

// FromConfig returns a static resolver when hostname is set. Otherwise it
// discovers the IPv4 route and falls back to IPv6 on hosts without one.
func FromConfig(hostname string) Resolver {
	if strings.TrimSpace(hostname) != "" {
		return StaticResolver{Address: hostname}
	}
	return Chain(
		UDPResolver{Target: DefaultTarget},
		UDPResolver{Target: DefaultTargetV6},
	)
}
