package middleware

import (
	"fmt"
	"net"
	"net/http"
	"net/netip"
	"strings"
)

// ProxyTrust decides which peers may report the client address through
// X-Forwarded-For or X-Real-IP. The zero value trusts no one, so the client
// is always the TCP peer.
type ProxyTrust struct {
	nets []netip.Prefix
}

// ParseTrustedProxies accepts CIDR prefixes or bare addresses.
func ParseTrustedProxies(entries []string) (ProxyTrust, error) {
	var pt ProxyTrust
	for _, e := range entries {
		e = strings.TrimSpace(e)
		if e == "" {
			continue
		}
		if p, err := netip.ParsePrefix(e); err == nil {
			pt.nets = append(pt.nets, p.Masked())
			continue
		}
		a, err := netip.ParseAddr(e)
		if err != nil {
			return ProxyTrust{}, fmt.Errorf("middleware: trusted proxy %q: %w", e, err)
		}
		pt.nets = append(pt.nets, netip.PrefixFrom(a.Unmap(), a.Unmap().BitLen()))
	}
	return pt, nil
}

func (pt ProxyTrust) trusts(ip string) bool {
	a, err := netip.ParseAddr(ip)
	if err != nil {
		return false
	}
	a = a.Unmap()
	for _, p := range pt.nets {
		if p.Contains(a) {
			return true
		}
	}
	return false
}

// ClientIP returns the address a request is attributed to. Forwarding
// headers count only when the peer is a trusted proxy; X-Forwarded-For is
// walked from the right, skipping trusted hops.
func (pt ProxyTrust) ClientIP(r *http.Request) string {
	peer := remoteHost(r)
	if !pt.trusts(peer) {
		return peer
	}
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		hops := strings.Split(xff, ",")
		for i := len(hops) - 1; i >= 0; i-- {
			hop := strings.TrimSpace(hops[i])
			if hop == "" {
				continue
			}
			if !pt.trusts(hop) {
				return hop
			}
		}
	}
	if xri := strings.TrimSpace(r.Header.Get("X-Real-IP")); xri != "" {
		return xri
	}
	return peer
}

func remoteHost(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
