package main

import (
	"context"
	"crypto/subtle"
	"errors"
	"net/http"
	"net/http/pprof"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/extra/redisotel/v9"
	redis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/noah-isme/dealer-insights/internal/auth"
	"github.com/noah-isme/dealer-insights/internal/backend"
	"github.com/noah-isme/dealer-insights/internal/config"
	"github.com/noah-isme/dealer-insights/internal/dashboard"
	"github.com/noah-isme/dealer-insights/internal/health"
	"github.com/noah-isme/dealer-insights/internal/obs"
	"github.com/noah-isme/dealer-insights/internal/performance"
	"github.com/noah-isme/dealer-insights/internal/period"
	"github.com/noah-isme/dealer-insights/internal/ratelimit"
	"github.com/noah-isme/dealer-insights/internal/report"
	"github.com/noah-isme/dealer-insights/internal/resilience"
	"github.com/noah-isme/dealer-insights/internal/security"
	"github.com/noah-isme/dealer-insights/internal/stock"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	logFormat := envOrDefault("OBS_LOG_FORMAT", "json")
	logLevel := envOrDefault("OBS_LOG_LEVEL", "info")
	logger := obs.NewLogger(logFormat, logLevel).With().Str("env", cfg.AppEnv).Logger()

	metricsNamespace := envOrDefault("OBS_METRICS_NAMESPACE", "dealer_insights")
	metricsEnabled := envBool("OBS_ENABLE_PROMETHEUS", true)
	obs.MustRegisterDomainMetrics(metricsNamespace, nil)
	if metricsEnabled {
		if err := resilience.RegisterMetrics(nil); err != nil {
			logger.Error().Err(err).Msg("register resilience metrics")
		}
	}

	tracingEnabled := envBool("OBS_ENABLE_TRACING", true)
	if tracingEnabled {
		shutdown, err := obs.InitTracer(context.Background(), obs.TracingConfig{
			ServiceName:    "dealer-insights",
			ServiceVersion: envOrDefault("SERVICE_VERSION", "dev"),
			Environment:    cfg.AppEnv,
			Exporter:       envOrDefault("OBS_TRACING_EXPORTER", "otlp"),
			Endpoint:       envOrDefault("OBS_OTLP_ENDPOINT", ""),
			SamplingRatio:  envFloat("OBS_TRACING_SAMPLING_RATIO", 1.0),
		})
		if err != nil {
			logger.Error().Err(err).Msg("initialise tracing")
			tracingEnabled = false
		} else {
			defer func() {
				if err := shutdown(context.Background()); err != nil {
					logger.Error().Err(err).Msg("shutdown tracer")
				}
			}()
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	redisClient := connectRedis(ctx, cfg, logger, metricsEnabled)
	if redisClient != nil {
		defer func() {
			if err := redisClient.Close(); err != nil {
				logger.Error().Err(err).Msg("close redis")
			}
		}()
	}

	breaker := resilience.NewBreaker(cfg.BreakerMinRequests, cfg.BreakerFailureRatio, cfg.BreakerOpenFor)
	backendClient, err := backend.New(backend.Config{
		BaseURL:     cfg.BackendBaseURL,
		Timeout:     cfg.BackendTimeout,
		MaxAttempts: cfg.BackendMaxAttempts,
		RetryBase:   cfg.BackendRetryBase,
		RetryJitter: cfg.BackendRetryJitter,
		Breaker:     breaker,
		Logger:      logger,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("initialise backend client")
	}

	defaultPeriod, err := period.ParseKind(cfg.ReportDefaultPeriod, period.DefaultKind)
	if err != nil {
		logger.Fatal().Err(err).Msg("parse REPORT_DEFAULT_PERIOD")
	}

	parser := auth.NewParser(auth.Config{
		Secret:    cfg.JWTSecret,
		Issuer:    cfg.JWTIssuer,
		Audience:  cfg.JWTAudience,
		ClockSkew: 30 * time.Second,
	})
	if !parser.Verifies() {
		logger.Warn().Msg("JWT_SECRET not set; bearer tokens are decoded without signature verification")
	}
	authMiddleware := auth.Middleware{Parser: parser}

	// Cached reports are served without asking the backend, so an unverified
	// token must never be able to read them.
	cacheClient := redisClient
	if !parser.Verifies() {
		cacheClient = nil
	}
	reports := performance.NewService(performance.ServiceConfig{
		Backend:  backendClient,
		Cache:    performance.NewCache(cacheClient, cfg.ReportCacheTTL),
		Location: cfg.ReportTimezone,
		Logger:   logger,
	})
	sessions := dashboard.NewSessions(reports, cfg.SessionTTL).WithLimit(cfg.SessionsPerDealer)
	go sessions.Run(ctx, time.Minute, logger)

	exportLimit := ratelimit.Handler{
		Limiter: exportLimiter(redisClient),
		Config: ratelimit.Config{
			Key:    ratelimit.DealerKey("export"),
			Window: cfg.ExportRateWindow,
			Max:    cfg.ExportRateLimit,
		},
	}

	dashboardHandler := dashboard.NewHandler(dashboard.Config{
		Reports:       reports,
		Stock:         stock.NewService(backendClient, logger),
		Sessions:      sessions,
		Display:       report.NewDisplay(cfg.CurrencySymbol, cfg.DisplayLocale),
		Location:      cfg.ReportTimezone,
		DefaultPeriod: defaultPeriod,
		ExportLimit:   exportLimit.Middleware,
		Logger:        logger,
	})

	var httpMetrics *obs.HTTPMetrics
	if metricsEnabled {
		buckets := obs.ParseBucketsCSV(envOrDefault("OBS_METRICS_BUCKETS_MS", ""))
		httpMetrics = obs.NewHTTPMetrics(metricsNamespace, buckets, nil)
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(obs.RoutePatternMiddleware)
	if tracingEnabled {
		r.Use(obs.TracingMiddleware)
	}
	if metricsEnabled && httpMetrics != nil {
		r.Use(obs.HTTPObs{Metrics: httpMetrics}.Middleware)
	}
	r.Use(obs.RequestLogger{Logger: logger}.Middleware)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   allowedOrigins(cfg),
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", dashboard.SessionHeader},
		ExposedHeaders:   []string{"Content-Disposition", dashboard.SessionHeader, "X-RateLimit-Remaining", "Retry-After"},
		AllowCredentials: true,
		MaxAge:           300,
	}))
	r.Use(security.Headers{
		Enable:  envBool("SECURE_HEADERS_ENABLED", true),
		HSTS:    hstsMaxAge(cfg.AppEnv),
		NoStore: true,
	}.Middleware)
	r.Use(security.BodyLimit{Max: int64(envInt("SECURE_MAX_BODY_BYTES", 4<<10))}.Middleware)

	if metricsEnabled {
		r.Handle("/metrics", promhttp.Handler())
	}
	if envBool("OBS_ENABLE_PPROF", false) {
		user := envOrDefault("SECURE_PPROF_BASIC_AUTH_USER", "")
		pass := envOrDefault("SECURE_PPROF_BASIC_AUTH_PASS", "")
		r.Mount("/debug/pprof", protectPprof(newPprofMux(), user, pass))
	}

	healthHandler := health.Handler{
		Checker:        health.Dependencies{Backend: backendClient, Redis: redisClient},
		BackendTimeout: envDurationMillis("HEALTH_READY_BACKEND_TIMEOUT_MS", 2000),
		RedisTimeout:   envDurationMillis("HEALTH_READY_REDIS_TIMEOUT_MS", 300),
	}
	r.Get("/health/live", healthHandler.Live)
	r.Get("/health/ready", healthHandler.Ready)

	r.Route("/api/v1", func(v chi.Router) {
		v.Use(authMiddleware.RequireAuth)
		dashboardHandler.Routes(v)
	})

	srv := &http.Server{
		Addr:              cfg.HTTPAddr(),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		health.SetReady(false)
		shutdownCtx, cancel := context.WithTimeout(context.Background(), envDurationMillis("SHUTDOWN_TIMEOUT_MS", 15000))
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error().Err(err).Msg("server shutdown")
		}
	}()

	logger.Info().Str("addr", srv.Addr).Str("backend", cfg.BackendBaseURL).Bool("cache", cacheClient != nil).Msg("server starting")
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Fatal().Err(err).Msg("server exited unexpectedly")
	}
	logger.Info().Msg("server stopped")
}

// connectRedis returns nil when REDIS_URL is unset; caching and the shared
// rate limiter are then disabled.
func connectRedis(ctx context.Context, cfg *config.Config, logger zerolog.Logger, metricsEnabled bool) *redis.Client {
	if cfg.RedisURL == "" {
		logger.Info().Msg("REDIS_URL not set; report cache disabled")
		return nil
	}
	redisOpts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("parse redis url")
	}
	client := redis.NewClient(redisOpts)
	if err := redisotel.InstrumentTracing(client); err != nil {
		logger.Error().Err(err).Msg("instrument redis tracing")
	}
	if metricsEnabled {
		if err := redisotel.InstrumentMetrics(client); err != nil {
			logger.Error().Err(err).Msg("instrument redis metrics")
		}
	}
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		logger.Fatal().Err(err).Msg("ping redis")
	}
	return client
}

func exportLimiter(client *redis.Client) ratelimit.Limiter {
	if client == nil {
		return ratelimit.NewMemoryLimiter("export")
	}
	return ratelimit.RedisLimiter{Client: client, Prefix: "ratelimit:"}
}

func allowedOrigins(cfg *config.Config) []string {
	if len(cfg.CORSAllowedOrigins) == 0 {
		return []string{"*"}
	}
	return cfg.CORSAllowedOrigins
}

func envOrDefault(key, fallback string) string {
	if val, ok := os.LookupEnv(key); ok {
		trimmed := strings.TrimSpace(val)
		if trimmed != "" {
			return trimmed
		}
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	if val, ok := os.LookupEnv(key); ok {
		switch strings.ToLower(strings.TrimSpace(val)) {
		case "1", "t", "true", "yes", "on":
			return true
		case "0", "f", "false", "no", "off":
			return false
		}
	}
	return fallback
}

func envFloat(key string, fallback float64) float64 {
	if val, ok := os.LookupEnv(key); ok {
		if parsed, err := strconv.ParseFloat(strings.TrimSpace(val), 64); err == nil {
			return parsed
		}
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if val, ok := os.LookupEnv(key); ok {
		if parsed, err := strconv.Atoi(strings.TrimSpace(val)); err == nil {
			return parsed
		}
	}
	return fallback
}

// hstsMaxAge is a year in production unless SECURE_HSTS_ENABLED says otherwise.
func hstsMaxAge(appEnv string) time.Duration {
	if !envBool("SECURE_HSTS_ENABLED", appEnv == "production") {
		return 0
	}
	return time.Duration(envInt("SECURE_HSTS_MAX_AGE", 31536000)) * time.Second
}

func envDurationMillis(key string, fallback int) time.Duration {
	return time.Duration(envInt(key, fallback)) * time.Millisecond
}

func newPprofMux() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/", pprof.Index)
	mux.HandleFunc("/cmdline", pprof.Cmdline)
	mux.HandleFunc("/profile", pprof.Profile)
	mux.HandleFunc("/symbol", pprof.Symbol)
	mux.HandleFunc("/trace", pprof.Trace)
	mux.Handle("/goroutine", pprof.Handler("goroutine"))
	mux.Handle("/heap", pprof.Handler("heap"))
	return mux
}

func protectPprof(handler http.Handler, user, pass string) http.Handler {
	user = strings.TrimSpace(user)
	pass = strings.TrimSpace(pass)
	if user == "" {
		return handler
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		u, p, ok := r.BasicAuth()
		if !ok || subtle.ConstantTimeCompare([]byte(u), []byte(user)) != 1 || subtle.ConstantTimeCompare([]byte(p), []byte(pass)) != 1 {
			w.Header().Set("WWW-Authenticate", "Basic realm=restricted")
			http.Error(w, "unauthorised", http.StatusUnauthorized)
			return
		}
		handler.ServeHTTP(w, r)
	})
}
