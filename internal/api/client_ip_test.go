package api

import (
	"net/http/httptest"
	"testing"
)

func TestClientIPResolver(t *testing.T) {
	tests := []struct {
		name       string
		trusted    []string
		remoteAddr string
		forwarded  string
		realIP     string
		want       string
	}{
		{
			name:       "direct_connection_ignores_headers",
			remoteAddr: "203.0.113.7:43210",
			forwarded:  "198.51.100.5",
			realIP:     "198.51.100.6",
			want:       "203.0.113.7",
		},
		{
			name:       "trusted_proxy_uses_forwarded_for",
			trusted:    []string{"172.30.0.10/32"},
			remoteAddr: "172.30.0.10:12345",
			forwarded:  "198.51.100.8, 172.30.0.10",
			want:       "198.51.100.8",
		},
		{
			name:       "spoofed_leftmost_hop_is_skipped",
			trusted:    []string{"10.0.0.0/8"},
			remoteAddr: "10.0.0.2:80",
			forwarded:  "1.2.3.4, 198.51.100.9, 10.0.0.3",
			want:       "198.51.100.9",
		},
		{
			name:       "trusted_proxy_falls_back_to_real_ip",
			trusted:    []string{"172.30.0.10"},
			remoteAddr: "172.30.0.10:12345",
			forwarded:  "not-an-ip",
			realIP:     "198.51.100.10",
			want:       "198.51.100.10",
		},
		{
			name:       "ipv6_peer",
			remoteAddr: "[2001:db8::1]:443",
			want:       "2001:db8::1",
		},
		{
			name:       "unparseable_peer",
			remoteAddr: "somewhere",
			want:       "unknown",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resolver, err := NewClientIPResolver(tt.trusted)
			if err != nil {
				t.Fatalf("NewClientIPResolver() error = %v", err)
			}

			req := httptest.NewRequest("GET", "http://localhost/test", nil)
			req.RemoteAddr = tt.remoteAddr
			if tt.forwarded != "" {
				req.Header.Set("X-Forwarded-For", tt.forwarded)
			}
			if tt.realIP != "" {
				req.Header.Set("X-Real-IP", tt.realIP)
			}

			if got := resolver.Resolve(req); got != tt.want {
				t.Fatalf("Resolve() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestNewClientIPResolverRejectsGarbage(t *testing.T) {
	if _, err := NewClientIPResolver([]string{"10.0.0.0/99"}); err == nil {
		t.Fatal("NewClientIPResolver() error = nil, want error")
	}
}
