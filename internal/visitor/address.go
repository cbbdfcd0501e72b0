package visitor

import (
	"context"
	"net"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"
)

// Header names consulted by the resolver.
const (
	HeaderForwardedFor = "X-Forwarded-For"
	HeaderRealIP       = "X-Real-IP"
)

// defaultLookupTimeout bounds the local hostname lookup used as a last resort.
const defaultLookupTimeout = 500 * time.Millisecond

// Resolver derives the real client address from proxy headers.
//
// IPv4 addresses are preferred over anything else. When neither the headers nor
// the transport address yield an IPv4 address, the resolver falls back to the
// local machine's own IPv4 address, which is what a loopback IPv6 peer on the
// same host most likely is.
type Resolver struct {
	hostname      func() (string, error)
	lookup        func(ctx context.Context, host string) ([]net.IPAddr, error)
	lookupTimeout time.Duration
}

// NewResolver creates a resolver that uses the system hostname and DNS resolver.
func NewResolver() *Resolver {
	return &Resolver{
		hostname:      os.Hostname,
		lookup:        net.DefaultResolver.LookupIPAddr,
		lookupTimeout: defaultLookupTimeout,
	}
}

// IsIPv4 reports whether s is a dotted-quad IPv4 address, optionally followed
// by ":port". Each octet must parse as an integer in [0, 255].
func IsIPv4(s string) bool {
	if i := strings.IndexByte(s, ':'); i >= 0 {
		s = s[:i]
	}
	parts := strings.Split(s, ".")
	if len(parts) != 4 {
		return false
	}
	for _, part := range parts {
		n, err := strconv.Atoi(part)
		if err != nil || n < 0 || n > 255 {
			return false
		}
	}
	return true
}

// Resolve returns the best guess of the client address.
//
// Priority:
//  1. X-Forwarded-For: the first IPv4 entry, else the first entry as-is
//  2. X-Real-IP, if it is IPv4
//  3. transportAddr, if it is IPv4
//  4. the local host's IPv4 address
//  5. transportAddr unchanged
//
// Resolve never fails.
func (r *Resolver) Resolve(headers http.Header, transportAddr string) string {
	if forwarded := headers.Get(HeaderForwardedFor); forwarded != "" {
		entries := strings.Split(forwarded, ",")
		for i := range entries {
			entries[i] = strings.TrimSpace(entries[i])
		}
		for _, entry := range entries {
			if IsIPv4(entry) {
				return entry
			}
		}
		return entries[0]
	}

	if realIP := headers.Get(HeaderRealIP); realIP != "" && IsIPv4(realIP) {
		return realIP
	}

	if IsIPv4(transportAddr) {
		return transportAddr
	}

	if local, ok := r.localIPv4(); ok {
		return local
	}

	return transportAddr
}

// ResolveRequest resolves the client address of an HTTP request. The port is
// stripped from RemoteAddr before it is used as the transport address.
func (r *Resolver) ResolveRequest(req *http.Request) string {
	return r.Resolve(req.Header, transportHost(req.RemoteAddr))
}

// localIPv4 looks up the IPv4 address of this machine's hostname. Any failure
// is reported as ok=false.
func (r *Resolver) localIPv4() (string, bool) {
	if r.hostname == nil || r.lookup == nil {
		return "", false
	}
	host, err := r.hostname()
	if err != nil || host == "" {
		return "", false
	}

	ctx, cancel := context.WithTimeout(context.Background(), r.lookupTimeout)
	defer cancel()

	addrs, err := r.lookup(ctx, host)
	if err != nil {
		return "", false
	}
	for _, addr := range addrs {
		if v4 := addr.IP.To4(); v4 != nil {
			ip := v4.String()
			if IsIPv4(ip) {
				return ip, true
			}
		}
	}
	return "", false
}

// transportHost strips the port from a RemoteAddr value, leaving IPv6 hosts
// without brackets.
func transportHost(remoteAddr string) string {
	host, _, err := net.SplitHostPort(remoteAddr)
	if err != nil {
		return remoteAddr
	}
	return host
}
