// Package validation checks user-supplied endpoints and form inputs before
// they reach the network.
//
// Service and token endpoints must use https and must not point at private,
// loopback or cloud metadata addresses. VISREC_ALLOW_PRIVATE (any value
// accepted by strconv.ParseBool) or SetAllowPrivate(true) relaxes this for
// local deployments: plain http and private ranges are then accepted, but
// metadata endpoints stay blocked.
package validation

import (
	"context"
	"fmt"
	"net"
	"net/netip"
	"net/url"
	"os"
	"strconv"
	"strings"
	"sync/atomic"
	"time"
)

var allowPrivate atomic.Bool

// lookupIP is replaced in tests.
var lookupIP = func(ctx context.Context, host string) ([]net.IP, error) {
	return net.DefaultResolver.LookupIP(ctx, "ip", host)
}

var reservedPrefixes = mustPrefixes(
	"10.0.0.0/8",
	"172.16.0.0/12",
	"192.168.0.0/16",
	"100.64.0.0/10",
	"169.254.0.0/16",
	"192.0.0.0/24",
	"192.0.2.0/24",
	"198.18.0.0/15",
	"198.51.100.0/24",
	"203.0.113.0/24",
	"240.0.0.0/4",
	"fc00::/7",
	"fe80::/10",
	"ff00::/8",
	"2001:db8::/32",
)

var metadataHosts = map[string]bool{
	"169.254.169.254":          true,
	"metadata.google.internal": true,
	"metadata":                 true,
	"instance-data":            true,
	"fd00:ec2::254":            true,
}

func init() {
	v, _ := strconv.ParseBool(strings.TrimSpace(os.Getenv("VISREC_ALLOW_PRIVATE")))
	allowPrivate.Store(v)
}

func mustPrefixes(cidrs ...string) []netip.Prefix {
	out := make([]netip.Prefix, 0, len(cidrs))
	for _, c := range cidrs {
		out = append(out, netip.MustParsePrefix(c))
	}
	return out
}

// SetAllowPrivate enables or disables private and loopback endpoints.
func SetAllowPrivate(enabled bool) {
	allowPrivate.Store(enabled)
}

// AllowPrivateEnabled reports whether private endpoints are accepted.
func AllowPrivateEnabled() bool {
	return allowPrivate.Load()
}

// ValidateServiceURL checks a service or token endpoint URL.
func ValidateServiceURL(rawURL string) error {
	if strings.TrimSpace(rawURL) == "" {
		return fmt.Errorf("URL cannot be empty")
	}
	if len(rawURL) > MaxURLLength {
		return fmt.Errorf("URL exceeds maximum length of %d characters", MaxURLLength)
	}

	parsed, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("invalid URL format: %w", err)
	}
	switch parsed.Scheme {
	case "https":
	case "http":
		if !allowPrivate.Load() {
			return fmt.Errorf("insecure URL scheme %q: use https or set VISREC_ALLOW_PRIVATE=1", parsed.Scheme)
		}
	default:
		return fmt.Errorf("invalid URL scheme: only http and https are allowed, got %q", parsed.Scheme)
	}
	if parsed.User != nil {
		return fmt.Errorf("URL must not embed credentials")
	}

	host := strings.ToLower(parsed.Hostname())
	if host == "" {
		return fmt.Errorf("URL must contain a hostname")
	}
	if isCloudMetadata(host) {
		return fmt.Errorf("cloud metadata endpoints are not allowed")
	}
	if !allowPrivate.Load() && isLocalhost(host) {
		return fmt.Errorf("localhost URLs are not allowed")
	}

	if addr, err := netip.ParseAddr(host); err == nil {
		return checkAddr(addr)
	}
	return checkResolved(host)
}

func isLocalhost(host string) bool {
	switch host {
	case "localhost", "127.0.0.1", "::1", "0.0.0.0", "::":
		return true
	}
	return strings.HasSuffix(host, ".localhost")
}

func isCloudMetadata(host string) bool {
	return metadataHosts[host] || strings.HasSuffix(host, ".metadata.google.internal")
}

func checkAddr(addr netip.Addr) error {
	addr = addr.Unmap()
	if metadataHosts[addr.String()] {
		return fmt.Errorf("cloud metadata IP address is not allowed")
	}
	if addr.IsUnspecified() {
		return fmt.Errorf("unspecified IP addresses are not allowed")
	}
	if addr.IsLinkLocalUnicast() || addr.IsLinkLocalMulticast() {
		return fmt.Errorf("link-local IP addresses are not allowed")
	}
	if allowPrivate.Load() {
		return nil
	}
	if addr.IsLoopback() {
		return fmt.Errorf("loopback IP addresses are not allowed")
	}
	if isPrivateAddr(addr) {
		return fmt.Errorf("private IP addresses are not allowed")
	}
	return nil
}

func isPrivateAddr(addr netip.Addr) bool {
	for _, p := range reservedPrefixes {
		if p.Contains(addr) {
			return true
		}
	}
	return false
}

// checkResolved validates every address a hostname resolves to. Names that
// do not resolve are accepted; the request itself will fail later.
func checkResolved(host string) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	ips, err := lookupIP(ctx, host)
	if err != nil {
		return nil
	}
	for _, ip := range ips {
		addr, ok := netip.AddrFromSlice(ip)
		if !ok {
			continue
		}
		if err := checkAddr(addr); err != nil {
			return fmt.Errorf("domain %q resolves to forbidden IP %s: %w", host, addr.Unmap(), err)
		}
	}
	return nil
}
