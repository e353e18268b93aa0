package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/campushq/registra/internal/composer"
	"github.com/campushq/registra/internal/config"
	"github.com/campushq/registra/internal/directory"
	"github.com/campushq/registra/internal/handler"
	"github.com/campushq/registra/internal/inbox"
	"github.com/campushq/registra/internal/metrics"
	"github.com/campushq/registra/internal/middleware"
	"github.com/campushq/registra/internal/session"
	"github.com/campushq/registra/internal/upstream"
	"github.com/campushq/registra/internal/view"
)

func main() {
	_ = godotenv.Load(".env")

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// Validate configuration
	if err := cfg.Validate(); err != nil {
		slog.Error("invalid configuration", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// Initialize structured logging at the configured level
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel(cfg.Server.LogLevel),
	}))
	slog.SetDefault(logger)

	// Metrics registry
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	gatewayMetrics := metrics.New(registry)

	// Credential sealer
	sealer, err := session.NewSealer(cfg.Session.SealKey)
	if err != nil {
		slog.Error("invalid seal key", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// Session persistence backend
	ctx := context.Background()
	var persistence session.Persistence
	switch cfg.Session.Store {
	case config.SessionStorePebble:
		persistence, err = session.NewPebblePersistence(cfg.Session.Pebble.Path)
	case config.SessionStoreSurreal:
		persistence, err = session.NewSurrealPersistence(ctx, session.SurrealConfig{
			Host:      cfg.Session.Surreal.Host,
			Port:      cfg.Session.Surreal.Port,
			Namespace: cfg.Session.Surreal.Namespace,
			Database:  cfg.Session.Surreal.Database,
			User:      cfg.Session.Surreal.User,
			Password:  cfg.Session.Surreal.Password,
		})
	default:
		persistence = session.NewMemoryPersistence()
	}
	if err != nil {
		slog.Error("failed to open session store", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer func() { _ = persistence.Close() }()

	slog.Info("session store ready", slog.String("backend", cfg.Session.Store))

	// Upstream enrollment API client
	upstreamClient := upstream.NewHTTPClient(upstream.HTTPClientConfig{
		BaseURL: cfg.Upstream.BaseURL,
		Timeout: cfg.Upstream.Timeout,
		Rate:    cfg.Upstream.Rate,
		Burst:   cfg.Upstream.Burst,
		Metrics: gatewayMetrics,
		Logger:  logger,
	})

	// Affordance policy
	policy := view.DefaultPolicy()
	if cfg.View.AffordancesPath != "" {
		policy, err = view.LoadPolicy(cfg.View.AffordancesPath)
		if err != nil {
			slog.Error("failed to load affordance policy", slog.String("error", err.Error()))
			os.Exit(1)
		}
		slog.Info("affordance policy loaded", slog.String("path", cfg.View.AffordancesPath))
	}

	// Core services
	sessions := session.NewStore(session.StoreConfig{
		Upstream:    upstreamClient,
		Persistence: persistence,
		Sealer:      sealer,
		TTL:         cfg.Session.TTL,
		Metrics:     gatewayMetrics,
		Logger:      logger,
	})
	resolver := directory.NewResolver(directory.ResolverConfig{
		Upstream: upstreamClient,
		Logger:   logger,
	})
	inboxService := inbox.NewService(inbox.ServiceConfig{
		Upstream: upstreamClient,
		Logger:   logger,
	})
	composerService := composer.NewService(composer.ServiceConfig{
		Upstream: upstreamClient,
		Metrics:  gatewayMetrics,
		Logger:   logger,
	})

	// Rate limiters and replay cache. Login gets a separate, tighter
	// limiter keyed by the submitted email.
	rateLimiter := middleware.NewRateLimiter(middleware.RateLimitConfig{
		Rate:   cfg.RateLimit.Rate,
		Burst:  cfg.RateLimit.Burst,
		Window: cfg.RateLimit.Window,
	})
	defer rateLimiter.Stop()

	loginLimiter := middleware.NewRateLimiter(middleware.RateLimitConfig{
		Rate:   cfg.RateLimit.LoginRate,
		Burst:  cfg.RateLimit.LoginBurst,
		Window: cfg.RateLimit.LoginWindow,
	})
	defer loginLimiter.Stop()

	replayCache := middleware.NewReplayCache(middleware.ReplayCacheConfig{})
	defer replayCache.Stop()

	// Initialize handlers
	authHandler := handler.NewAuthHandler(handler.AuthHandlerConfig{
		Sessions: sessions,
		Upstream: upstreamClient,
		Policy:   policy,
	})
	profileHandler := handler.NewProfileHandler(handler.ProfileHandlerConfig{
		Sessions:  sessions,
		Upstream:  upstreamClient,
		Directory: resolver,
	})
	messagesHandler := handler.NewMessagesHandler(handler.MessagesHandlerConfig{
		Inbox:     inboxService,
		Composer:  composerService,
		Directory: resolver,
		Sessions:  sessions,
	})
	directoryHandler := handler.NewDirectoryHandler(handler.DirectoryHandlerConfig{
		Upstream:  upstreamClient,
		Directory: resolver,
		Sessions:  sessions,
	})

	// Create router and register routes
	mux := http.NewServeMux()

	// Health and metrics
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	mux.Handle("GET /metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))

	// Auth endpoints (public)
	loginGate := middleware.RateLimitKeyed(loginLimiter, middleware.LoginEmailKey)
	mux.Handle("POST /v1/auth/login", loginGate(http.HandlerFunc(authHandler.Login)))
	mux.HandleFunc("POST /v1/auth/register", authHandler.Register)

	// Protected endpoints
	authMiddleware := middleware.Auth(sessions)
	replay := middleware.Idempotency(replayCache)
	composeGate := middleware.RequireVisible(policy, view.AffordanceComposeDirect)
	directoryGate := middleware.RequireVisible(policy, view.AffordanceDirectorySearch)
	rolesGate := middleware.RequireVisible(policy, view.AffordanceRoleCatalog)

	mux.Handle("POST /v1/auth/logout", authMiddleware(http.HandlerFunc(authHandler.Logout)))
	mux.Handle("GET /v1/auth/session", authMiddleware(http.HandlerFunc(authHandler.Session)))
	mux.Handle("GET /v1/affordances", authMiddleware(http.HandlerFunc(authHandler.Affordances)))

	mux.Handle("PATCH /v1/profile", authMiddleware(replay(http.HandlerFunc(profileHandler.Update))))

	mux.Handle("GET /v1/messages", authMiddleware(http.HandlerFunc(messagesHandler.List)))
	mux.Handle("GET /v1/messages/unread-count", authMiddleware(http.HandlerFunc(messagesHandler.UnreadCount)))
	mux.Handle("POST /v1/messages/{messageId}/read", authMiddleware(http.HandlerFunc(messagesHandler.MarkRead)))
	mux.Handle("POST /v1/messages", authMiddleware(replay(composeGate(http.HandlerFunc(messagesHandler.Send)))))

	mux.Handle("GET /v1/directory/identities", authMiddleware(directoryGate(http.HandlerFunc(directoryHandler.List))))
	mux.Handle("GET /v1/directory/identities/{identityId}", authMiddleware(directoryGate(http.HandlerFunc(directoryHandler.Get))))
	mux.Handle("GET /v1/directory/roles", authMiddleware(rolesGate(http.HandlerFunc(directoryHandler.Roles))))

	// Apply global middleware
	wrapped := middleware.Chain(
		mux,
		middleware.RequestID,
		middleware.Logger,
		middleware.Observe(gatewayMetrics),
		middleware.Recovery,
		middleware.CORS(cfg.Server.AllowedOrigins),
		middleware.RateLimit(rateLimiter),
		middleware.Compress,
	)

	// Create HTTP server
	server := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      wrapped,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  120 * time.Second,
	}

	// Start server in goroutine
	go func() {
		slog.Info("starting server",
			slog.String("port", cfg.Server.Port),
			slog.String("env", cfg.Server.Env),
			slog.String("upstream", cfg.Upstream.BaseURL),
		)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server error", slog.String("error", err.Error()))
			os.Exit(1)
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.Info("shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		slog.Error("server forced to shutdown", slog.String("error", err.Error()))
	}

	slog.Info("server exited")
}

// logLevel maps the validated LOG_LEVEL setting onto a slog level.
func logLevel(name string) slog.Level {
	switch name {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
