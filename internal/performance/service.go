package performance

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/noah-isme/dealer-insights/internal/auth"
	"github.com/noah-isme/dealer-insights/internal/obs"
	"github.com/noah-isme/dealer-insights/internal/period"
)

// ErrMissingDealer is returned when neither the request nor the credentials name a dealer.
var ErrMissingDealer = errors.New("performance: dealer id required")

// Request describes one report to fetch.
type Request struct {
	Scope     Scope
	DealerID  string
	Selection period.Selection
	// Sort overrides the scope's default ranking when set.
	Sort SortKey
	// Fresh skips the cache read; the result is still cached.
	Fresh bool
}

// ServiceConfig groups Service dependencies.
type ServiceConfig struct {
	Backend  Backend
	Cache    *Cache
	Location *time.Location
	Now      func() time.Time
	Logger   zerolog.Logger
}

// Service resolves periods, reads aggregated totals from the backend and
// ranks them. It never recomputes sums.
type Service struct {
	backend Backend
	cache   *Cache
	loc     *time.Location
	now     func() time.Time
	logger  zerolog.Logger
}

// NewService constructs a Service.
func NewService(cfg ServiceConfig) *Service {
	loc := cfg.Location
	if loc == nil {
		loc = time.Local
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	return &Service{
		backend: cfg.Backend,
		cache:   cfg.Cache,
		loc:     loc,
		now:     now,
		logger:  cfg.Logger.With().Str("component", "performance").Logger(),
	}
}

// Location is the timezone calendar periods are resolved in.
func (s *Service) Location() *time.Location {
	return s.loc
}

// FetchReport resolves req's period and returns the ranked report. An
// invalid custom range is rejected before any backend request is made.
func (s *Service) FetchReport(ctx context.Context, creds auth.Credentials, req Request) (*Report, error) {
	dealerID := strings.TrimSpace(req.DealerID)
	if dealerID == "" {
		dealerID = creds.DealerID
	}
	if dealerID == "" {
		return nil, ErrMissingDealer
	}
	now := s.now().In(s.loc)
	iv, err := period.Resolve(req.Selection, now)
	if err != nil {
		return nil, err
	}
	q := Query{DealerID: dealerID, Kind: req.Selection.Kind, Interval: iv}

	result, err := s.load(ctx, creds, req.Scope, q, req.Fresh)
	if err != nil {
		return nil, err
	}

	sortKey := req.Sort
	if sortKey == "" {
		sortKey = req.Scope.DefaultSort()
	}
	report := &Report{
		Scope:     req.Scope,
		DealerID:  dealerID,
		Selection: req.Selection,
		Interval:  iv,
		SortKey:   sortKey,
		Records:   Rank(result.Records, sortKey),
		FetchedAt: now,
	}
	if !result.Interval.Unbounded() {
		report.Interval = result.Interval
	}
	return report, nil
}

func (s *Service) load(ctx context.Context, creds auth.Credentials, scope Scope, q Query, fresh bool) (ModelResult, error) {
	logger := s.loggerFor(ctx)
	key := s.cache.Key(scope, q)
	if s.cache.Enabled() && !fresh {
		cached, ok, err := s.cache.get(ctx, key)
		switch {
		case err != nil:
			logger.Warn().Err(err).Str("key", key).Msg("report_cache_read_failed")
			countCache(scope, "error")
		case ok:
			countCache(scope, "hit")
			return cached, nil
		default:
			countCache(scope, "miss")
		}
	}

	start := time.Now()
	result, err := s.fetch(ctx, creds, scope, q)
	if obs.ReportFetchLatency != nil {
		obs.ReportFetchLatency.WithLabelValues(string(scope)).Observe(obs.DurationMillis(time.Since(start)))
	}
	if err != nil {
		if ctx.Err() != nil {
			countFetch(scope, "canceled")
			return ModelResult{}, ctx.Err()
		}
		countFetch(scope, "error")
		var fetchErr *FetchError
		if !errors.As(err, &fetchErr) {
			err = &FetchError{Message: err.Error(), Err: err}
		}
		logger.Warn().Err(err).Str("scope", string(scope)).Str("period", string(q.Kind)).Msg("report_fetch_failed")
		return ModelResult{}, err
	}
	countFetch(scope, "ok")

	if err := s.cache.set(ctx, key, result); err != nil {
		logger.Warn().Err(err).Str("key", key).Msg("report_cache_write_failed")
	}
	return result, nil
}

func (s *Service) fetch(ctx context.Context, creds auth.Credentials, scope Scope, q Query) (ModelResult, error) {
	if s.backend == nil {
		return ModelResult{}, errors.New("performance: backend not configured")
	}
	switch scope {
	case ScopeBrand:
		records, err := s.backend.FetchBrandPerformance(ctx, creds, q)
		return ModelResult{Records: records}, err
	case ScopeModel:
		return s.backend.FetchModelPerformance(ctx, creds, q)
	default:
		return ModelResult{}, errors.New("performance: unknown scope " + string(scope))
	}
}

func (s *Service) loggerFor(ctx context.Context) *zerolog.Logger {
	if l := zerolog.Ctx(ctx); l.GetLevel() != zerolog.Disabled {
		return l
	}
	return &s.logger
}

func countFetch(scope Scope, result string) {
	if obs.ReportFetchTotal != nil {
		obs.ReportFetchTotal.WithLabelValues(string(scope), result).Inc()
	}
}

func countCache(scope Scope, result string) {
	if obs.ReportCacheTotal != nil {
		obs.ReportCacheTotal.WithLabelValues(string(scope), result).Inc()
	}
}
