package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/baller70/bookmarkaihub-sub004/internal/config"
	"github.com/baller70/bookmarkaihub-sub004/internal/database"
	"github.com/baller70/bookmarkaihub-sub004/internal/handlers"
	"github.com/baller70/bookmarkaihub-sub004/internal/logger"
	"github.com/baller70/bookmarkaihub-sub004/internal/middleware"
	"github.com/baller70/bookmarkaihub-sub004/internal/proxy"
	"github.com/baller70/bookmarkaihub-sub004/internal/ratelimit"
	"github.com/baller70/bookmarkaihub-sub004/internal/request"
	"github.com/baller70/bookmarkaihub-sub004/internal/telemetry"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/ulule/limiter/v3"
	memorystore "github.com/ulule/limiter/v3/drivers/store/memory"
	redisstore "github.com/ulule/limiter/v3/drivers/store/redis"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gorilla/mux/otelmux"
	"go.uber.org/zap"
)

const serviceName = "bookmark-gateway"

// Set with -ldflags "-X main.version=... -X main.commit=...".
var (
	version = "dev"
	commit  = ""
)

func main() {
	debugFlag := flag.Bool("debug", false, "Enable debug logging")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	debugMode := cfg.ServerDebugMode || *debugFlag

	zapLogger, err := logger.New(cfg.LogFormat, debugMode)
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer func() { _ = logger.Sync(zapLogger) }()

	zapLogger.Info("starting_gateway",
		zap.String("version", version),
		zap.Bool("debug_mode", debugMode),
		zap.String("server_port", cfg.ServerPort),
		zap.String("upstream_url", cfg.UpstreamURL),
		zap.String("rate_limit_algorithm", cfg.RateLimit.Algorithm),
		zap.String("rate_limit_store", cfg.RateLimit.Store),
		zap.Bool("otel_enabled", cfg.OTELEnabled),
	)

	tracingEnabled := false
	if cfg.OTELEnabled {
		if cfg.OTELEndpoint == "" {
			zapLogger.Warn("otel_enabled_but_endpoint_not_configured")
		} else {
			tp, err := telemetry.InitTracer(context.Background(), telemetry.Config{
				ServiceName:    serviceName,
				ServiceVersion: version,
				Endpoint:       cfg.OTELEndpoint,
				Insecure:       cfg.OTELInsecure,
				SampleRatio:    cfg.OTELSampleRatio,
			})
			if err != nil {
				zapLogger.Warn("failed_to_initialize_otel_tracer", zap.Error(err))
			} else {
				tracingEnabled = true
				zapLogger.Info("otel_tracer_initialized", zap.String("endpoint", cfg.OTELEndpoint))
				defer func() {
					shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
					defer cancel()
					if err := telemetry.Shutdown(shutdownCtx, tp); err != nil {
						zapLogger.Error("failed_to_shutdown_otel_tracer", zap.Error(err))
					}
				}()
			}
		}
	}

	healthChecker := handlers.NewHealthChecker()

	var redisClient *redis.Client
	if cfg.RedisURL != "" {
		redisClient, err = connectRedis(cfg.RedisURL)
		if err != nil {
			zapLogger.Fatal("failed_to_connect_to_redis", zap.Error(err))
		}
		defer func() {
			if err := redisClient.Close(); err != nil {
				zapLogger.Warn("failed_to_close_redis_connection", zap.Error(err))
			}
		}()
		healthChecker.WithCheck("redis", handlers.PingFunc(func(ctx context.Context) error {
			return redisClient.Ping(ctx).Err()
		}))
		zapLogger.Info("connected_to_redis")
	}

	var policyRepo *database.RateLimitPolicyRepository
	if cfg.DatabaseURL != "" {
		db, err := database.New(cfg.DatabaseURL)
		if err != nil {
			zapLogger.Fatal("failed_to_connect_to_database", zap.Error(err))
		}
		defer func() {
			if err := db.Close(); err != nil {
				zapLogger.Warn("failed_to_close_database_connection", zap.Error(err))
			}
		}()
		if err := db.EnsureSchema(context.Background()); err != nil {
			zapLogger.Fatal("failed_to_ensure_database_schema", zap.Error(err))
		}
		healthChecker.WithCheck("database", db)
		policyRepo = database.NewRateLimitPolicyRepository(db)
		zapLogger.Info("connected_to_database")
	}

	basePolicies := ratelimit.DefaultPolicies()
	if cfg.RateLimit.PolicyFile != "" {
		basePolicies, err = ratelimit.LoadPoliciesFile(cfg.RateLimit.PolicyFile, basePolicies)
		if err != nil {
			zapLogger.Fatal("failed_to_load_rate_limit_policy_file",
				zap.String("file", cfg.RateLimit.PolicyFile),
				zap.Error(err),
			)
		}
	}

	alg, err := newAlgorithm(cfg.RateLimit, redisClient)
	if err != nil {
		zapLogger.Fatal("failed_to_create_rate_limit_algorithm", zap.Error(err))
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	metrics := ratelimit.NewMetricsCollector("gateway")
	metrics.MustRegister(registry)

	limiter, err := ratelimit.New(alg,
		ratelimit.WithPolicies(basePolicies),
		ratelimit.WithRetention(cfg.RateLimit.Retention),
		ratelimit.WithSweepProbability(cfg.RateLimit.SweepProbability),
		ratelimit.WithLogger(zapLogger),
		ratelimit.WithMetrics(metrics),
	)
	if err != nil {
		zapLogger.Fatal("failed_to_create_rate_limiter", zap.Error(err))
	}

	identifier, err := request.NewIdentifier(cfg.RateLimit.EdgeHeader, cfg.RateLimit.TrustedProxies)
	if err != nil {
		zapLogger.Fatal("invalid_client_identification_config", zap.Error(err))
	}

	backgroundCtx, backgroundCancel := context.WithCancel(context.Background())
	defer backgroundCancel()

	adminOpts := []handlers.RateLimitAdminOption{}
	if policyRepo != nil {
		reloader := middleware.NewPolicyReloader(policyRepo, limiter, basePolicies, zapLogger, cfg.RateLimit.ReloadInterval)
		if err := reloader.Reload(backgroundCtx); err != nil {
			zapLogger.Warn("starting_with_base_rate_limit_policies", zap.Error(err))
		}
		go reloader.Start(backgroundCtx)
		adminOpts = append(adminOpts, handlers.WithPolicyRepository(policyRepo))
	}

	janitor := ratelimit.NewJanitor(limiter, cfg.RateLimit.SweepInterval, zapLogger)
	go func() {
		if err := janitor.Start(backgroundCtx); err != nil && !errors.Is(err, context.Canceled) {
			zapLogger.Error("rate_limit_janitor_stopped_with_error", zap.Error(err))
		}
	}()

	upstream, err := proxy.New(cfg.UpstreamURL, zapLogger)
	if err != nil {
		zapLogger.Fatal("invalid_upstream_url", zap.Error(err))
	}

	// Setup router. Middleware registered first wraps outermost.
	r := mux.NewRouter()
	if tracingEnabled {
		r.Use(otelmux.Middleware(serviceName))
	}
	r.Use(middleware.RequestID)
	r.Use(middleware.ErrorHandler(zapLogger))
	r.Use(middleware.Logging(zapLogger))
	r.Use(middleware.Audit(zapLogger, identifier))
	r.Use(middleware.CORS(cfg.FrontendURL))
	r.Use(middleware.RateLimit(limiter, identifier, zapLogger, "/healthz", "/metrics"))

	ops := r.NewRoute().Subrouter()
	ops.Use(middleware.SecurityHeaders(cfg.EnableHSTS))
	ops.HandleFunc("/healthz", healthChecker.HealthCheck).Methods(http.MethodGet)
	ops.HandleFunc("/version", handlers.Version(version, commit)).Methods(http.MethodGet)
	ops.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{Registry: registry})).Methods(http.MethodGet)
	handlers.NewOpenAPIHandler().RegisterRoutes(ops.PathPrefix("/internal").Subrouter())

	admin := r.PathPrefix("/internal/ratelimit").Subrouter()
	admin.Use(middleware.SecurityHeaders(cfg.EnableHSTS))
	admin.Use(middleware.AdminToken(cfg.AdminToken, zapLogger))
	admin.Use(middleware.MaxRequestSize(middleware.DefaultMaxRequestSize, zapLogger))
	admin.Use(middleware.JSONContentType(zapLogger))
	admin.Use(middleware.Timeout(middleware.DefaultRequestTimeout))
	handlers.NewRateLimitAdminHandler(limiter, basePolicies, zapLogger, adminOpts...).RegisterRoutes(admin)
	if cfg.AdminToken == "" {
		zapLogger.Info("admin_endpoints_disabled")
	}

	// Everything else belongs to the application.
	r.PathPrefix("/").Handler(upstream)

	srv := &http.Server{
		Addr:              ":" + cfg.ServerPort,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
		MaxHeaderBytes:    1 << 20,
	}

	go func() {
		zapLogger.Info("server_starting", zap.String("port", cfg.ServerPort))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			zapLogger.Fatal("server_failed_to_start", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	zapLogger.Info("server_shutting_down")
	backgroundCancel()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		zapLogger.Error("server_forced_to_shutdown", zap.Error(err))
	}
	zapLogger.Info("server_exited")
}

func connectRedis(redisURL string) (*redis.Client, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}
	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}
	return client, nil
}

// newAlgorithm builds the configured counting strategy over the configured store.
func newAlgorithm(cfg config.RateLimitConfig, redisClient *redis.Client) (ratelimit.Algorithm, error) {
	useRedis := cfg.Store == config.StoreRedis
	if useRedis && redisClient == nil {
		return nil, errors.New("redis store selected without a redis client")
	}

	switch cfg.Algorithm {
	case config.AlgorithmFixedWindow:
		if useRedis {
			return ratelimit.NewFixedWindow(ratelimit.NewRedisStore(redisClient, cfg.Retention)), nil
		}
		return ratelimit.NewFixedWindow(ratelimit.NewMemoryStore()), nil
	case config.AlgorithmTokenBucket:
		return ratelimit.NewTokenBucket(), nil
	case config.AlgorithmUlule:
		if useRedis {
			store, err := redisstore.NewStoreWithOptions(redisClient, limiter.StoreOptions{
				Prefix: "ratelimit:ulule",
			})
			if err != nil {
				return nil, fmt.Errorf("create ulule redis store: %w", err)
			}
			return ratelimit.NewUlule(store), nil
		}
		return ratelimit.NewUlule(memorystore.NewStore()), nil
	default:
		return nil, fmt.Errorf("unsupported algorithm %q", cfg.Algorithm)
	}
}
