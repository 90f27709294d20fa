package audit

import (
	"net"
	"net/http"
	"strings"
)

// ClientIP extracts the caller address, honouring proxy headers.
func ClientIP(r *http.Request) string {
	if r == nil {
		return ""
	}
	if forwarded := r.Header.Get("X-Forwarded-For"); forwarded != "" {
		parts := strings.Split(forwarded, ",")
		if len(parts) > 0 {
			return strings.TrimSpace(parts[0])
		}
	}
	if realIP := r.Header.Get("X-Real-IP"); realIP != "" {
		return strings.TrimSpace(realIP)
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err == nil {
		return host
	}
	return r.RemoteAddr
}

// ClientFromRequest builds a Client for r.
func ClientFromRequest(r *http.Request) Client {
	if r == nil {
		return Client{}
	}
	return Client{IP: ClientIP(r), UserAgent: r.UserAgent()}
}
