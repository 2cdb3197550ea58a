package health

import (
	"context"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/noah-isme/dealer-insights/internal/common"
)

var ready atomic.Bool

func init() {
	ready.Store(true)
}

// SetReady toggles readiness, e.g. while the server drains on shutdown.
func SetReady(v bool) {
	ready.Store(v)
}

// Checker represents dependencies that can be checked for readiness.
type Checker interface {
	PingBackend(ctx context.Context, timeout time.Duration) error
	PingRedis(ctx context.Context, timeout time.Duration) error
}

// BackendPinger is satisfied by the dealer backend client.
type BackendPinger interface {
	Ping(ctx context.Context) error
}

// Dependencies checks the live dependencies of the API. A nil Redis client
// means the report cache is disabled and is reported as such.
type Dependencies struct {
	Backend BackendPinger
	Redis   *redis.Client
}

// PingBackend implements Checker.
func (d Dependencies) PingBackend(ctx context.Context, timeout time.Duration) error {
	if d.Backend == nil {
		return errDisabled
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return d.Backend.Ping(ctx)
}

// PingRedis implements Checker.
func (d Dependencies) PingRedis(ctx context.Context, timeout time.Duration) error {
	if d.Redis == nil {
		return errDisabled
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return d.Redis.Ping(ctx).Err()
}

type disabledError struct{}

func (disabledError) Error() string { return "disabled" }

var errDisabled error = disabledError{}

// Handler exposes HTTP handlers for health endpoints.
type Handler struct {
	Checker        Checker
	BackendTimeout time.Duration
	RedisTimeout   time.Duration
}

// Live reports liveness status.
func (h Handler) Live(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

// Ready reports readiness based on dependency checks. Redis being disabled
// does not fail readiness; an unreachable Redis does.
func (h Handler) Ready(w http.ResponseWriter, r *http.Request) {
	if h.Checker == nil {
		common.JSONError(w, http.StatusServiceUnavailable, "NOT_READY", "dependencies unavailable", nil)
		return
	}
	if !ready.Load() {
		common.JSONError(w, http.StatusServiceUnavailable, "NOT_READY", "shutting down", nil)
		return
	}
	ctx := r.Context()
	healthy := true
	backendStatus := "ok"
	if err := h.Checker.PingBackend(ctx, h.backendTimeout()); err != nil {
		backendStatus = err.Error()
		healthy = false
	}
	redisStatus := "ok"
	if err := h.Checker.PingRedis(ctx, h.redisTimeout()); err != nil {
		redisStatus = err.Error()
		if err != errDisabled {
			healthy = false
		}
	}
	status := map[string]string{
		"backend": backendStatus,
		"redis":   redisStatus,
	}
	code := http.StatusOK
	if !healthy {
		code = http.StatusServiceUnavailable
	}
	common.JSON(w, code, status)
}

func (h Handler) backendTimeout() time.Duration {
	if h.BackendTimeout <= 0 {
		return 2 * time.Second
	}
	return h.BackendTimeout
}

func (h Handler) redisTimeout() time.Duration {
	if h.RedisTimeout <= 0 {
		return 300 * time.Millisecond
	}
	return h.RedisTimeout
}
