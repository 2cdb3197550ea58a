package security

import (
	"net/http"
	"strconv"
	"time"
)

// Headers configures the response hardening headers. The API serves JSON and
// file downloads only, so the content policy forbids everything.
type Headers struct {
	Enable bool
	// HSTS is sent on TLS requests when positive.
	HSTS                  time.Duration
	HSTSIncludeSubdomains bool
	// NoStore marks responses as uncacheable. Dealer reports are private.
	NoStore bool
}

func (h Headers) static() http.Header {
	out := http.Header{}
	out.Set("X-Content-Type-Options", "nosniff")
	out.Set("X-Frame-Options", "DENY")
	out.Set("Referrer-Policy", "no-referrer")
	out.Set("Content-Security-Policy", "default-src 'none'; frame-ancestors 'none'")
	if h.NoStore {
		out.Set("Cache-Control", "no-store")
	}
	return out
}

func (h Headers) hsts() string {
	if h.HSTS <= 0 {
		return ""
	}
	value := "max-age=" + strconv.FormatInt(int64(h.HSTS/time.Second), 10)
	if h.HSTSIncludeSubdomains {
		value += "; includeSubDomains"
	}
	return value
}

// Middleware attaches the headers before the handler runs so handlers may
// still override them.
func (h Headers) Middleware(next http.Handler) http.Handler {
	if !h.Enable {
		return next
	}
	static := h.static()
	hsts := h.hsts()
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		headers := w.Header()
		for k, v := range static {
			headers[k] = v
		}
		if hsts != "" && r.TLS != nil {
			headers.Set("Strict-Transport-Security", hsts)
		}
		next.ServeHTTP(w, r)
	})
}
