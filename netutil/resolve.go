package netutil

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
)

// UnknownHost is what HostName reports for an address it can not render.
const UnknownHost = "Unknown host"

// ErrNoAddress is returned when a host resolves to no usable address.
var ErrNoAddress = errors.New("no address found")

// Resolver is the subset of *net.Resolver used by this package.
type Resolver interface {
	// LookupIPAddr looks up host and returns its addresses.
	LookupIPAddr(ctx context.Context, host string) ([]net.IPAddr, error)

	// LookupAddr performs a reverse lookup of addr.
	LookupAddr(ctx context.Context, addr string) ([]string, error)
}

// A compile time check to ensure *net.Resolver satisfies Resolver.
var _ Resolver = (*net.Resolver)(nil)

// LookupAddress resolves host to the canonical 16 byte form used on the wire.
// IPv4 results are returned as IPv4-mapped IPv6 (::ffff:a.b.c.d). The first
// result is preferred.
func LookupAddress(ctx context.Context, r Resolver,
	host string) ([net.IPv6len]byte, error) {

	var addr [net.IPv6len]byte

	// Literal addresses never need the resolver.
	if ip := net.ParseIP(host); ip != nil {
		copy(addr[:], ip.To16())
		return addr, nil
	}

	ips, err := r.LookupIPAddr(ctx, host)
	if err != nil {
		return addr, fmt.Errorf("unable to lookup hostname %s: %w",
			host, err)
	}

	for _, ip := range ips {
		if v6 := ip.IP.To16(); v6 != nil {
			copy(addr[:], v6)
			log.Debugf("Resolved %s to %v", host, ip.IP)

			return addr, nil
		}
	}

	return addr, fmt.Errorf("%w: %s", ErrNoAddress, host)
}

// HostName returns "numeric/name" for ip, or "numeric/" when the reverse
// lookup yields nothing. An ip that is neither 4 nor 16 bytes long renders as
// UnknownHost.
func HostName(ctx context.Context, r Resolver, ip net.IP) string {
	if len(ip) != net.IPv4len && len(ip) != net.IPv6len {
		return UnknownHost
	}
	numeric := ip.String()

	names, err := r.LookupAddr(ctx, numeric)
	if err != nil || len(names) == 0 {
		log.Tracef("Reverse lookup of %s failed: %v", numeric, err)
		return numeric + "/"
	}

	return numeric + "/" + strings.TrimSuffix(names[0], ".")
}
