package middleware

import (
	"fmt"
	"net"
	"net/http"
	"net/netip"
	"strings"
)

// ClientIP returns the caller's address as reported by the request: the
// first valid entry of X-Forwarded-For, then X-Real-IP, then RemoteAddr
// without its port. The headers are client-controlled, so the result is
// only fit for logs and spans. Use a ClientIPResolver to key rate limits.
func ClientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		if ip := net.ParseIP(strings.TrimSpace(first)); ip != nil {
			return ip.String()
		}
	}

	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		if ip := net.ParseIP(strings.TrimSpace(xri)); ip != nil {
			return ip.String()
		}
	}

	return remoteHost(r)
}

// ClientIPResolver derives the client address from forwarding headers
// only when the request arrives from a trusted proxy. A nil resolver, or
// one without trusted prefixes, always answers with RemoteAddr.
type ClientIPResolver struct {
	trusted []netip.Prefix
}

// NewClientIPResolver parses the trusted proxy CIDRs.
func NewClientIPResolver(trustedCIDRs []string) (*ClientIPResolver, error) {
	res := &ClientIPResolver{}
	for _, cidr := range trustedCIDRs {
		cidr = strings.TrimSpace(cidr)
		if cidr == "" {
			continue
		}
		p, err := netip.ParsePrefix(cidr)
		if err != nil {
			return nil, fmt.Errorf("parse trusted proxy CIDR %q: %w", cidr, err)
		}
		res.trusted = append(res.trusted, p.Masked())
	}
	return res, nil
}

// ClientIP returns the address of the nearest untrusted hop.
// X-Forwarded-For is walked right to left, skipping trusted proxies.
func (c *ClientIPResolver) ClientIP(r *http.Request) string {
	peer, ok := remoteAddr(r)
	if !ok {
		return remoteHost(r)
	}
	if c == nil || !c.isTrusted(peer) {
		return peer.String()
	}

	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		hops := strings.Split(xff, ",")
		for i := len(hops) - 1; i >= 0; i-- {
			hop, err := netip.ParseAddr(strings.TrimSpace(hops[i]))
			if err != nil {
				break
			}
			hop = hop.Unmap()
			if !c.isTrusted(hop) {
				return hop.String()
			}
		}
		return peer.String()
	}

	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		if a, err := netip.ParseAddr(strings.TrimSpace(xri)); err == nil {
			return a.Unmap().String()
		}
	}

	return peer.String()
}

func (c *ClientIPResolver) isTrusted(a netip.Addr) bool {
	for _, p := range c.trusted {
		if p.Contains(a) {
			return true
		}
	}
	return false
}

func remoteHost(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
