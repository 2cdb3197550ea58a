// Package backend is the outbound client of the dealer backend. Every call
// forwards the caller's bearer token and runs through the retrying,
// circuit-broken HTTP client.
package backend

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/noah-isme/dealer-insights/internal/auth"
	"github.com/noah-isme/dealer-insights/internal/performance"
	"github.com/noah-isme/dealer-insights/internal/resilience"
)

const maxErrorBody = 64 << 10

// Config configures the client.
type Config struct {
	BaseURL     string
	Timeout     time.Duration
	MaxAttempts int
	RetryBase   time.Duration
	RetryJitter float64
	Breaker     *resilience.Breaker
	// Transport overrides the instrumented default transport.
	Transport http.RoundTripper
	Logger    zerolog.Logger
}

// Client reads performance, summary and stock data from the dealer backend.
type Client struct {
	base   *url.URL
	http   resilience.HTTPClient
	logger zerolog.Logger
}

// New constructs a Client.
func New(cfg Config) (*Client, error) {
	raw := strings.TrimSpace(cfg.BaseURL)
	if raw == "" {
		return nil, errors.New("backend: base url is required")
	}
	base, err := url.Parse(strings.TrimRight(raw, "/"))
	if err != nil || base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("backend: invalid base url %q", raw)
	}
	transport := cfg.Transport
	if transport == nil {
		transport = otelhttp.NewTransport(http.DefaultTransport)
	}
	breaker := cfg.Breaker
	if breaker == nil {
		breaker = resilience.NewBreaker(5, 0.5, 30*time.Second)
	}
	breaker.WithTarget("dealer_backend").WithLogger(cfg.Logger)
	return &Client{
		base: base,
		http: resilience.HTTPClient{
			Client:      &http.Client{Transport: transport},
			Breaker:     breaker,
			Target:      "dealer_backend",
			BaseBackoff: cfg.RetryBase,
			MaxAttempts: cfg.MaxAttempts,
			Jitter:      cfg.RetryJitter,
			Timeout:     cfg.Timeout,
		},
		logger: cfg.Logger.With().Str("component", "backend").Logger(),
	}, nil
}

// FetchBrandPerformance implements performance.Backend.
func (c *Client) FetchBrandPerformance(ctx context.Context, creds auth.Credentials, q performance.Query) ([]performance.Record, error) {
	var rows []brandRow
	if err := c.get(ctx, creds, "/performance/brands", q.Values(), &rows); err != nil {
		return nil, err
	}
	records := make([]performance.Record, 0, len(rows))
	for _, row := range rows {
		records = append(records, row.record())
	}
	return records, nil
}

// FetchModelPerformance implements performance.Backend. The backend may
// answer with a bare list or with an envelope echoing the applied period.
func (c *Client) FetchModelPerformance(ctx context.Context, creds auth.Credentials, q performance.Query) (performance.ModelResult, error) {
	var payload modelPayload
	if err := c.get(ctx, creds, "/performance/models", q.Values(), &payload); err != nil {
		return performance.ModelResult{}, err
	}
	return payload.result()
}

// Ping reports whether the backend answers HTTP at all. Any status counts.
func (c *Client) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, c.base.String(), nil)
	if err != nil {
		return err
	}
	resp, err := c.http.Client.Do(req)
	if err != nil {
		return err
	}
	return resp.Body.Close()
}

func (c *Client) endpoint(path string, query url.Values) string {
	u := *c.base
	u.Path = strings.TrimRight(u.Path, "/") + path
	if len(query) > 0 {
		u.RawQuery = query.Encode()
	}
	return u.String()
}

func (c *Client) get(ctx context.Context, creds auth.Credentials, path string, query url.Values, dst any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint(path, query), nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if creds.Token != "" {
		req.Header.Set("Authorization", "Bearer "+creds.Token)
	}

	resp, err := c.http.Do(ctx, req)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return &performance.FetchError{Message: err.Error(), Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		fetchErr := &performance.FetchError{Status: resp.StatusCode, Message: errorMessage(resp)}
		zerolog.Ctx(ctx).Debug().Str("path", path).Int("status", resp.StatusCode).Str("message", fetchErr.Message).Msg("backend_error")
		return fetchErr
	}
	if err := json.NewDecoder(resp.Body).Decode(dst); err != nil {
		return &performance.FetchError{Status: resp.StatusCode, Message: "malformed backend response", Err: err}
	}
	return nil
}

// errorMessage extracts the backend's message from a failed response.
func errorMessage(resp *http.Response) string {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	var payload struct {
		Message string          `json:"message"`
		Error   json.RawMessage `json:"error"`
	}
	if err := json.Unmarshal(body, &payload); err == nil {
		if msg := strings.TrimSpace(payload.Message); msg != "" {
			return msg
		}
		var text string
		if json.Unmarshal(payload.Error, &text) == nil && strings.TrimSpace(text) != "" {
			return strings.TrimSpace(text)
		}
		var nested struct {
			Message string `json:"message"`
		}
		if json.Unmarshal(payload.Error, &nested) == nil && strings.TrimSpace(nested.Message) != "" {
			return strings.TrimSpace(nested.Message)
		}
	}
	if text := strings.TrimSpace(string(body)); text != "" && !strings.HasPrefix(text, "{") && len(text) <= 512 {
		return text
	}
	return http.StatusText(resp.StatusCode)
}
