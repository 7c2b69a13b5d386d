package http

import (
	"net"
	"net/http"
	"strings"
)

// clientIP returns the address the rate limiter and request logs key on.
// Proxy headers are honoured only when the direct peer is a loopback or
// private address, and only when they hold a well-formed IP. Anything else
// falls back to the peer address.
func clientIP(r *http.Request) string {
	peer := remoteHost(r.RemoteAddr)
	if !trustedProxy(peer) {
		return peer
	}
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		first, _, _ := strings.Cut(fwd, ",")
		if ip := net.ParseIP(strings.TrimSpace(first)); ip != nil {
			return ip.String()
		}
		return peer
	}
	if ip := net.ParseIP(strings.TrimSpace(r.Header.Get("X-Real-IP"))); ip != nil {
		return ip.String()
	}
	return peer
}

func remoteHost(addr string) string {
	if host, _, err := net.SplitHostPort(addr); err == nil {
		return host
	}
	return addr
}

func trustedProxy(host string) bool {
	ip := net.ParseIP(host)
	return ip != nil && (ip.IsLoopback() || ip.IsPrivate())
}
