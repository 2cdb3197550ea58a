package common

import (
	"net"
	"net/http"
	"strings"
)

// BearerToken returns the token carried in the Authorization header, or "".
func BearerToken(r *http.Request) string {
	scheme, token, ok := strings.Cut(strings.TrimSpace(r.Header.Get("Authorization")), " ")
	if !ok || !strings.EqualFold(scheme, "bearer") {
		return ""
	}
	return strings.TrimSpace(token)
}

// ClientIP returns the host part of RemoteAddr. Proxy headers are resolved
// earlier by chi's RealIP middleware, which rewrites RemoteAddr.
func ClientIP(r *http.Request) string {
	addr := strings.TrimSpace(r.RemoteAddr)
	if host, _, err := net.SplitHostPort(addr); err == nil {
		return host
	}
	return addr
}
