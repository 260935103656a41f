package api

import (
	"fmt"
	"net"
	"net/http"
	"net/netip"
	"strings"
)

// ClientIPResolver picks the address used to key rate limits. Forwarding
// headers are honoured only when the direct peer is a trusted proxy.
type ClientIPResolver struct {
	trusted []netip.Prefix
}

func NewClientIPResolver(trustedProxies []string) (*ClientIPResolver, error) {
	resolver := &ClientIPResolver{}

	for _, raw := range trustedProxies {
		value := strings.TrimSpace(raw)
		if value == "" {
			continue
		}

		if addr, err := netip.ParseAddr(value); err == nil {
			addr = addr.Unmap()
			resolver.trusted = append(resolver.trusted, netip.PrefixFrom(addr, addr.BitLen()))
			continue
		}

		prefix, err := netip.ParsePrefix(value)
		if err != nil {
			return nil, fmt.Errorf("invalid trusted proxy %q: %w", value, err)
		}
		resolver.trusted = append(resolver.trusted, prefix.Masked())
	}

	return resolver, nil
}

func (r *ClientIPResolver) Resolve(req *http.Request) string {
	peer, ok := peerAddr(req.RemoteAddr)
	if !ok {
		return "unknown"
	}
	if !r.isTrusted(peer) {
		return peer.String()
	}

	// Walk X-Forwarded-For from the nearest hop and stop at the first
	// address that is not one of our proxies.
	hops := strings.Split(req.Header.Get("X-Forwarded-For"), ",")
	for i := len(hops) - 1; i >= 0; i-- {
		addr, ok := parseAddr(hops[i])
		if !ok {
			continue
		}
		if !r.isTrusted(addr) {
			return addr.String()
		}
	}

	if addr, ok := parseAddr(req.Header.Get("X-Real-IP")); ok {
		return addr.String()
	}
	return peer.String()
}

// KeyFunc adapts the resolver to httprate.
func (r *ClientIPResolver) KeyFunc(req *http.Request) (string, error) {
	return r.Resolve(req), nil
}

func (r *ClientIPResolver) isTrusted(addr netip.Addr) bool {
	for _, prefix := range r.trusted {
		if prefix.Contains(addr) {
			return true
		}
	}
	return false
}

func peerAddr(remoteAddr string) (netip.Addr, bool) {
	if host, _, err := net.SplitHostPort(remoteAddr); err == nil {
		return parseAddr(host)
	}
	return parseAddr(remoteAddr)
}

func parseAddr(value string) (netip.Addr, bool) {
	value = strings.Trim(strings.TrimSpace(value), `"`)
	if value == "" {
		return netip.Addr{}, false
	}

	if addrPort, err := netip.ParseAddrPort(value); err == nil {
		return addrPort.Addr().Unmap(), true
	}
	addr, err := netip.ParseAddr(strings.Trim(value, "[]"))
	if err != nil {
		return netip.Addr{}, false
	}
	return addr.Unmap(), true
}
