package security

import (
	"net/http"

	"github.com/noah-isme/dealer-insights/internal/common"
)

// defaultMaxBody fits any query-driven dashboard request; none of the
// endpoints take a payload.
const defaultMaxBody = 4 << 10

// BodyLimit caps request payloads.
type BodyLimit struct {
	Max int64
}

// Middleware rejects a declared Content-Length above the limit with 413 and
// caps undeclared bodies with http.MaxBytesReader, so an oversized chunked
// body fails the read in the handler instead of being buffered here.
func (b BodyLimit) Middleware(next http.Handler) http.Handler {
	limit := b.Max
	if limit <= 0 {
		limit = defaultMaxBody
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Body == nil || r.Body == http.NoBody {
			next.ServeHTTP(w, r)
			return
		}
		if r.ContentLength > limit {
			common.JSONError(w, http.StatusRequestEntityTooLarge, "BODY_TOO_LARGE", "request entity too large", map[string]int64{"max_bytes": limit})
			return
		}
		r.Body = http.MaxBytesReader(w, r.Body, limit)
		next.ServeHTTP(w, r)
	})
}
