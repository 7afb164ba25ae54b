package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/boddenberg/iptu-bfa-go/internal/config"
	"github.com/boddenberg/iptu-bfa-go/internal/handler"
	"github.com/boddenberg/iptu-bfa-go/internal/infra/observability"
	"github.com/boddenberg/iptu-bfa-go/internal/infra/prodata"
	"github.com/boddenberg/iptu-bfa-go/internal/infra/ratelimit"
	"github.com/boddenberg/iptu-bfa-go/internal/infra/resilience"
	"github.com/boddenberg/iptu-bfa-go/internal/infra/sig"
	"github.com/boddenberg/iptu-bfa-go/internal/normalize"
	"github.com/boddenberg/iptu-bfa-go/internal/port"
	"github.com/boddenberg/iptu-bfa-go/internal/service"

	"go.uber.org/zap"
)

func main() {
	// --- Load .env file (for local development) ---
	_ = config.LoadDotEnv(".env")

	// --- Config ---
	cfg := config.Load()

	// --- Logger ---
	logger := observability.NewLogger(cfg.LogLevel)
	defer logger.Sync()

	logger.Info("configuration loaded",
		zap.Int("port", cfg.Port),
		zap.String("log_level", cfg.LogLevel),
		zap.String("prodata_api_base", cfg.ProdataAPIBase),
		zap.Bool("prodata_credentials", cfg.HasCredentials()),
		zap.String("pesquisa_source", cfg.PesquisaSource),
		zap.Bool("sig_configured", cfg.Sig.Complete()),
		zap.Duration("http_timeout", cfg.HTTPTimeout),
		zap.Duration("token_safety_margin", cfg.TokenSafetyMargin),
		zap.Bool("simulation_mock", cfg.SimulationMock),
		zap.Bool("redis_rate_limit", cfg.RedisAddr != ""),
	)

	// --- Tracing ---
	shutdown, err := observability.InitTracer(cfg.OTLPEndpoint, "iptu-bfa")
	if err != nil {
		logger.Fatal("failed to init tracer", zap.Error(err))
	}
	defer shutdown(context.Background())

	// --- Metrics ---
	metrics := observability.NewMetrics()
	clock := port.SystemClock{}

	alarms, err := observability.NewAlarmJob(metrics, clock, logger).Start(cfg.MetricsAlarmSchedule)
	if err != nil {
		logger.Fatal("failed to start alarm job", zap.Error(err))
	}
	defer alarms.Stop()

	// --- Normalizer ---
	norm := normalize.New()
	if cfg.AliasesFile != "" {
		overrides, err := normalize.LoadOverrides(cfg.AliasesFile)
		if err != nil {
			logger.Fatal("failed to load normalizer aliases", zap.String("file", cfg.AliasesFile), zap.Error(err))
		}
		if norm, err = normalize.NewWithOverrides(overrides); err != nil {
			logger.Fatal("invalid normalizer aliases", zap.String("file", cfg.AliasesFile), zap.Error(err))
		}
		logger.Info("normalizer aliases overridden", zap.String("file", cfg.AliasesFile))
	}

	// --- Clients ---
	httpClient := &http.Client{Timeout: cfg.HTTPTimeout}

	tokens := prodata.NewTokenManager(httpClient, prodata.TokenConfig{
		BaseURL:          cfg.ProdataAPIBase,
		User:             cfg.ProdataUser,
		Password:         cfg.ProdataPassword,
		SafetyMargin:     cfg.TokenSafetyMargin,
		DefaultTTL:       cfg.TokenDefaultTTL,
		Timeout:          cfg.HTTPTimeout,
		ExpiryFromClaims: cfg.TokenExpiryFromClaims,
	}, clock, norm, metrics, logger)

	gateway := prodata.NewGateway(
		httpClient,
		cfg.ProdataAPIBase,
		tokens,
		resilience.NewCircuitBreaker("prodata", logger),
		resilience.NewBulkhead(cfg.MaxConcurrency),
		metrics,
		logger,
	)
	if !gateway.Configured() {
		logger.Warn("PRODATA_USER/PRODATA_PASSWORD not set, Prodata routes answer 503")
	}

	sigClient := sig.NewClient(httpClient, cfg.Sig, resilience.NewCircuitBreaker("sig", logger), clock, metrics, logger)

	// --- Rate limiting ---
	var store port.RateLimitStore
	healthChecks := []handler.HealthCheck{
		{Name: "prodata", Check: func(context.Context) error {
			if !gateway.Configured() {
				return errors.New("credenciais nao configuradas")
			}
			return nil
		}},
	}
	if cfg.RedisAddr != "" {
		redisStore := ratelimit.NewRedisStore(cfg.RedisAddr, "iptu-bfa:rl:")
		defer redisStore.Close()
		store = redisStore
		healthChecks = append(healthChecks, handler.HealthCheck{Name: "redis", Check: redisStore.Ping})
		logger.Info("rate limiting backed by Redis", zap.String("addr", cfg.RedisAddr))
	} else {
		memStore := ratelimit.NewMemoryStore(clock, time.Minute)
		defer memStore.Close()
		store = memStore
	}
	limiter := ratelimit.NewLimiter(store,
		ratelimit.Rule{Limit: cfg.RateLimitIP, Window: cfg.RateLimitIPWindow},
		ratelimit.Rule{Limit: cfg.RateLimitCritical, Window: cfg.RateLimitCriticalWindow},
		metrics, logger,
	)

	// --- Services ---
	iptuSvc := service.NewIPTUService(gateway, sigClient, norm, service.Options{
		Paths:          cfg.Paths,
		SearchSource:   cfg.PesquisaSource,
		SimulationMock: cfg.SimulationMock,
	}, logger)

	// --- Router ---
	router := handler.NewRouter(handler.Deps{
		Service:        iptuSvc,
		Limiter:        limiter,
		Metrics:        metrics,
		AllowedOrigins: cfg.AllowedOrigins,
		HealthChecks:   healthChecks,
		Logger:         logger,
	})

	// --- Server ---
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 2*cfg.HTTPTimeout + 5*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// --- Graceful shutdown ---
	go func() {
		logger.Info("server starting", zap.Int("port", cfg.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server failed", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("server shutting down...")
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Fatal("server forced shutdown", zap.Error(err))
	}

	logger.Info("server stopped")
}
