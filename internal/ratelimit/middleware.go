package ratelimit

import (
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/rs/zerolog"

	"github.com/noah-isme/dealer-insights/internal/common"
)

// Config describes how to derive a rate limit key and thresholds.
type Config struct {
	Key    func(*http.Request) string
	Window time.Duration
	Max    int
}

// Handler enforces Config before delegating to the next handler. A limiter
// failure lets the request through; OnError observes it, defaulting to a
// warning on the request logger.
type Handler struct {
	Limiter Limiter
	Config  Config
	OnError func(*http.Request, error)
}

func (h Handler) Middleware(next http.Handler) http.Handler {
	if h.Limiter == nil || h.Config.Key == nil {
		return next
	}
	onError := h.OnError
	if onError == nil {
		onError = func(r *http.Request, err error) {
			zerolog.Ctx(r.Context()).Warn().Err(err).Msg("rate_limiter_unavailable")
		}
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		res, err := h.Limiter.Allow(r.Context(), h.Config.Key(r), h.Config.Window, h.Config.Max)
		if err != nil {
			onError(r, err)
			next.ServeHTTP(w, r)
			return
		}
		setHeaders(w.Header(), h.Config.Max, res)
		if !res.Allowed {
			common.JSONError(w, http.StatusTooManyRequests, "RATE_LIMITED", "rate limit exceeded", map[string]any{
				"retry_after_seconds": retryAfter(res.Reset),
			})
			return
		}
		next.ServeHTTP(w, r)
	})
}

func setHeaders(headers http.Header, limit int, res Result) {
	headers.Set("X-RateLimit-Limit", strconv.Itoa(max(limit, 0)))
	headers.Set("X-RateLimit-Remaining", strconv.Itoa(max(res.Remaining, 0)))
	headers.Set("X-RateLimit-Reset", strconv.FormatInt(res.Reset.Unix(), 10))
	if !res.Allowed {
		headers.Set("Retry-After", strconv.Itoa(retryAfter(res.Reset)))
	}
}

// retryAfter rounds up so clients never retry a fraction of a second early.
func retryAfter(reset time.Time) int {
	return max(int(math.Ceil(time.Until(reset).Seconds())), 0)
}

// DealerKey buckets requests by authenticated dealer, falling back to the client address.
func DealerKey(scope string) func(*http.Request) string {
	return func(r *http.Request) string {
		if id, ok := common.DealerID(r.Context()); ok {
			return scope + ":dealer:" + id
		}
		return scope + ":ip:" + common.ClientIP(r)
	}
}
