package util

import (
	"net"
	"net/http"
	"strings"
)

// ClientIP resolves the caller IP used as the rate-limit key. The direct
// peer address wins; X-Forwarded-For is consulted only when the peer itself
// is a private address, which covers the usual reverse-proxy deployment
// without trusting arbitrary client headers.
func ClientIP(r *http.Request) string {
	remoteIP := parseRemoteIP(r.RemoteAddr)
	if remoteIP == nil {
		return strings.TrimSpace(r.RemoteAddr)
	}
	if !remoteIP.IsPrivate() && !remoteIP.IsLoopback() {
		return remoteIP.String()
	}
	if forwarded := firstForwardedIP(r.Header.Get("X-Forwarded-For")); forwarded != nil {
		return forwarded.String()
	}
	if realIP := parseIP(r.Header.Get("X-Real-IP")); realIP != nil {
		return realIP.String()
	}
	return remoteIP.String()
}

func firstForwardedIP(raw string) net.IP {
	for _, part := range strings.Split(raw, ",") {
		if ip := parseIP(part); ip != nil {
			return ip
		}
	}
	return nil
}

func parseRemoteIP(addr string) net.IP {
	addr = strings.TrimSpace(addr)
	if addr == "" {
		return nil
	}
	host, _, err := net.SplitHostPort(addr)
	if err == nil {
		return parseIP(host)
	}
	return parseIP(addr)
}

func parseIP(raw string) net.IP {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	return net.ParseIP(raw)
}
