package main

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/NYTimes/gziphandler"
	"golang.org/x/time/rate"

	"qkart-storefront/config"
	"qkart-storefront/internal/delivery/http/middleware"
	v1 "qkart-storefront/internal/delivery/http/v1"
	"qkart-storefront/internal/domain"
	"qkart-storefront/internal/infrastructure/backend"
	"qkart-storefront/internal/infrastructure/cache"
	"qkart-storefront/internal/repository/memory"
	"qkart-storefront/internal/repository/postgres"
	"qkart-storefront/internal/repository/rest"
	"qkart-storefront/internal/usecase"
	"qkart-storefront/pkg/logger"
)

const (
	serviceName    = "qkart-storefront"
	serviceVersion = "1.0.0"
	streamPath     = "/api/v1/search/stream"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "invalid configuration: %v\n", err)
		os.Exit(1)
	}

	logger.Init(cfg.Env, cfg.LogLevel)
	log := logger.Get()

	appCtx, stopApp := context.WithCancel(context.Background())
	defer stopApp()

	// Shared in-memory cache: catalog, sessions, cart snapshots
	memCache := cache.NewMemoryCache(30*time.Minute, 10*time.Minute)
	// Search widgets release their dispatcher and subscribers on eviction
	widgetCache := cache.NewMemoryCacheWithEviction(cfg.SearchWidgetTTL, time.Minute, usecase.EvictSearchWidget)

	// Backend
	client := backend.NewClient(backend.Options{
		BaseURL:      cfg.BackendURL,
		Timeout:      cfg.BackendTimeout,
		MaxRetries:   cfg.BackendMaxRetries,
		RetryBackoff: cfg.BackendRetryBackoff,
		RateLimit:    cfg.BackendRateLimit,
		Burst:        cfg.BackendBurst,
	})
	productRepo := rest.NewProductRepository(client)
	cartRepo := rest.NewCartRepository(client)
	authRepo := rest.NewAuthRepository(client)

	// Sessions: Postgres when configured, otherwise in-memory
	var sessionRepo domain.SessionRepository
	if cfg.DBUrl != "" {
		pool, err := postgres.NewPgxPool(appCtx, cfg)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to connect to database")
		}
		defer pool.Close()

		pgSessions := postgres.NewSessionRepository(pool)
		if err := pgSessions.EnsureSchema(appCtx); err != nil {
			log.Fatal().Err(err).Msg("Failed to prepare session table")
		}
		go purgeExpiredSessions(appCtx, pgSessions, 10*time.Minute)
		sessionRepo = pgSessions
		log.Info().Msg("Using PostgreSQL session store")
	} else {
		sessionRepo = memory.NewSessionRepository(memCache, cfg.SessionTTL)
		log.Info().Msg("Using in-memory session store")
	}

	// Usecases
	authUC := usecase.NewAuthUsecase(authRepo, sessionRepo, cfg.SessionTTL)
	catalogUC := usecase.NewCatalogUsecase(productRepo, memCache, cfg.CacheCatalogTTL)
	cartUC := usecase.NewCartUsecase(cartRepo, catalogUC, memCache, cfg.SessionTTL, cfg.MaxCartQuantity)
	searchUC := usecase.NewSearchUsecase(appCtx, catalogUC, widgetCache, usecase.SearchOptions{
		QuietPeriod:  cfg.SearchQuietPeriod,
		FetchTimeout: cfg.SearchTimeout,
		WidgetTTL:    cfg.SearchWidgetTTL,
	})
	authUC.OnLogout(cartUC.Forget)
	authUC.OnLogout(searchUC.Forget)

	// Handlers
	authHandler := v1.NewAuthHandler(authUC, cfg.CookieSecure)
	catalogHandler := v1.NewCatalogHandler(catalogUC)
	cartHandler := v1.NewCartHandler(cartUC)
	searchHandler := v1.NewSearchHandler(searchUC, cfg.CookieSecure, 15*time.Second)

	mux := http.NewServeMux()
	protected := func(h http.HandlerFunc) http.Handler {
		return middleware.RequireSession(h)
	}

	// Auth
	mux.HandleFunc("POST /api/v1/auth/register", authHandler.Register)
	mux.HandleFunc("POST /api/v1/auth/login", authHandler.Login)
	mux.Handle("POST /api/v1/auth/logout", protected(authHandler.Logout))
	mux.Handle("GET /api/v1/auth/me", protected(authHandler.Me))

	// Catalog & Search (Public)
	mux.HandleFunc("GET /api/v1/products", catalogHandler.ListProducts)
	mux.HandleFunc("POST /api/v1/search", searchHandler.Type)
	mux.HandleFunc("GET /api/v1/search", searchHandler.Snapshot)
	mux.HandleFunc("GET "+streamPath, searchHandler.Stream)

	// Cart (Protected)
	mux.Handle("GET /api/v1/cart", protected(cartHandler.GetCart))
	mux.Handle("POST /api/v1/cart", protected(cartHandler.AddToCart))
	mux.Handle("PUT /api/v1/cart", protected(cartHandler.UpdateCart))

	// Health Check
	healthHandler := func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status": "ok"}`))
	}
	mux.HandleFunc("GET /api/v1/health", healthHandler)
	mux.HandleFunc("GET /health", healthHandler)

	rateLimiter := middleware.NewRateLimiter(
		appCtx,
		rate.Limit(cfg.RateLimitRPS),
		cfg.RateLimitBurst,
		time.Minute,
		3*time.Minute,
	)

	handler := middleware.SessionMiddleware(authUC)(mux)
	handler = middleware.NewCORSMiddleware(cfg)(handler)
	handler = middleware.RequestLogger(handler)
	handler = rateLimiter.Middleware()(handler)
	handler = skipGzip(gziphandler.GzipHandler(handler), handler, streamPath)

	addr := fmt.Sprintf(":%s", cfg.Port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		// Request contexts end with appCtx so open search streams return on shutdown
		BaseContext: func(net.Listener) context.Context { return appCtx },
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Server failed to start")
		}
	}()

	logger.ServiceStart(serviceName, serviceVersion, cfg.Port)
	log.Info().Str("backend", cfg.BackendURL).Msgf("Server starting on %s", addr)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Server shutting down...")

	rateLimiter.Shutdown()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	// Ends open search streams and in-flight dispatches
	stopApp()

	if err := srv.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}

	logger.ServiceStop(serviceName)
}

// skipGzip routes path around the gzip handler so server-sent events are flushed as written.
func skipGzip(gzipped, plain http.Handler, path string) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == path {
			plain.ServeHTTP(w, r)
			return
		}
		gzipped.ServeHTTP(w, r)
	})
}

func purgeExpiredSessions(ctx context.Context, repo *postgres.SessionRepository, every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			n, err := repo.DeleteExpired(ctx, time.Now())
			if err != nil {
				logger.Warn().Err(err).Msg("Failed to purge expired sessions")
				continue
			}
			if n > 0 {
				logger.Info().Int64("count", n).Msg("Purged expired sessions")
			}
		case <-ctx.Done():
			return
		}
	}
}
