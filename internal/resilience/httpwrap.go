package resilience

import (
	"context"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog"
)

// HTTPClient wraps an http.Client with retry, per-attempt timeout and
// circuit-breaker logic. It is meant for idempotent reads.
type HTTPClient struct {
	Client      *http.Client
	Breaker     *Breaker
	Target      string
	BaseBackoff time.Duration
	MaxAttempts int
	Jitter      float64
	Timeout     time.Duration
}

// Do executes req with retries. Transport errors, 429 and 5xx responses are
// retried; the last response is returned as-is so callers can read the
// backend's error message. Cancellation of ctx is never retried and is not
// reported to the breaker.
func (cl HTTPClient) Do(ctx context.Context, req *http.Request) (*http.Response, error) {
	if cl.Client == nil {
		return nil, errors.New("resilience: http client not configured")
	}
	breaker := cl.Breaker
	if breaker == nil {
		breaker = NewBreaker(1, 1, time.Second)
	}
	maxAttempts := cl.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = 1
	}
	target := cl.Target
	if target == "" {
		target = "default"
	}
	logger := zerolog.Ctx(ctx)

	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if !breaker.Allow(ctx) {
			OutboundAttempts.WithLabelValues(target, "rejected").Inc()
			if lastErr == nil {
				lastErr = ErrOpenCircuit
			}
			return nil, lastErr
		}
		resp, cancel, err := cl.doOnce(ctx, req)
		if err != nil && ctx.Err() != nil {
			cancel()
			breaker.Abandon(ctx)
			return nil, ctx.Err()
		}
		retryable := err != nil || isRetryableStatus(resp.StatusCode)
		breaker.Report(ctx, err == nil && resp.StatusCode < http.StatusInternalServerError)
		if !retryable || attempt == maxAttempts {
			if err != nil {
				cancel()
				OutboundAttempts.WithLabelValues(target, "error").Inc()
				return nil, err
			}
			OutboundAttempts.WithLabelValues(target, "ok").Inc()
			resp.Body = cancelOnClose{ReadCloser: resp.Body, cancel: cancel}
			return resp, nil
		}

		if err != nil {
			lastErr = err
		} else {
			lastErr = errors.New(resp.Status)
			_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))
			_ = resp.Body.Close()
		}
		cancel()
		OutboundAttempts.WithLabelValues(target, "retry").Inc()

		sleepFor := Backoff(cl.BaseBackoff, attempt, cl.Jitter)
		RetryBackoff.WithLabelValues(target).Observe(sleepFor.Seconds())
		logger.Debug().Str("target", target).Int("attempt", attempt).Dur("backoff", sleepFor).Err(lastErr).Msg("outbound_retry")
		timer := time.NewTimer(sleepFor)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, ctx.Err()
		case <-timer.C:
		}
	}
	return nil, lastErr
}

func (cl HTTPClient) doOnce(ctx context.Context, req *http.Request) (*http.Response, context.CancelFunc, error) {
	timeout := cl.Timeout
	if timeout <= 0 {
		timeout = cl.Client.Timeout
	}
	var (
		callCtx context.Context
		cancel  context.CancelFunc
	)
	if timeout > 0 {
		callCtx, cancel = context.WithTimeout(ctx, timeout)
	} else {
		callCtx, cancel = context.WithCancel(ctx)
	}
	resp, err := cl.Client.Do(req.Clone(callCtx))
	return resp, cancel, err
}

func isRetryableStatus(status int) bool {
	return status == http.StatusTooManyRequests || status >= http.StatusInternalServerError
}

// cancelOnClose releases the attempt context once the caller is done with the body.
type cancelOnClose struct {
	io.ReadCloser
	cancel context.CancelFunc
}

func (c cancelOnClose) Close() error {
	err := c.ReadCloser.Close()
	c.cancel()
	return err
}
