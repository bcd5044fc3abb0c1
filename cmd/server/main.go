// Role portal backend server.
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/ashureev/roleportal/internal/api"
	"github.com/ashureev/roleportal/internal/config"
	"github.com/ashureev/roleportal/internal/discord"
	"github.com/ashureev/roleportal/internal/feed"
	"github.com/ashureev/roleportal/internal/identity"
	"github.com/ashureev/roleportal/internal/membership"
	"github.com/ashureev/roleportal/internal/middleware"
	"github.com/ashureev/roleportal/internal/probe"
	"github.com/ashureev/roleportal/internal/roles"
	"github.com/ashureev/roleportal/internal/session"
	"github.com/ashureev/roleportal/internal/store"
	"github.com/ashureev/roleportal/internal/telemetry"
)

const (
	limiterSweepInterval = 5 * time.Minute
	limiterIdleTTL       = 15 * time.Minute
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	if err := godotenv.Load(); err != nil {
		slog.Info("No .env file found, using environment variables")
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}

	slog.Info("Starting server", "port", cfg.Port, "guild_id", cfg.GuildID, "dev", cfg.IsDevelopment())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := telemetry.Setup(ctx, "roleportal", cfg.OTelEndpoint)
	if err != nil {
		slog.Error("Failed to initialize tracing", "error", err)
		os.Exit(1)
	}
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracing(flushCtx); err != nil {
			slog.Warn("Failed to flush traces", "error", err)
		}
	}()

	// Connect the bot session.
	client, err := discord.NewClient(discord.Config{
		Token:          cfg.BotToken,
		MaxRetries:     cfg.Platform.MaxRetries,
		RetryBaseDelay: cfg.Platform.RetryBaseDelay,
		Logger:         logger,
	})
	if err != nil {
		slog.Error("Failed to create platform client", "error", err)
		os.Exit(1)
	}

	mgr := session.NewManager(client, cfg.GuildID, logger)
	if err := mgr.Start(); err != nil {
		os.Exit(1)
	}
	defer func() {
		if closeErr := mgr.Close(); closeErr != nil {
			slog.Error("Failed to close platform session", "error", closeErr)
		}
	}()

	// The gRPC probe comes up first so orchestrators see NOT_SERVING while
	// the handshake is pending.
	if cfg.GRPCHealthPort != "" {
		probeSrv, err := probe.New(":" + cfg.GRPCHealthPort)
		if err != nil {
			slog.Error("Failed to start gRPC health probe", "error", err)
			os.Exit(1)
		}
		go func() {
			if err := probeSrv.Serve(ctx, mgr.Ready()); err != nil {
				slog.Error("gRPC health probe failed", "error", err)
			}
		}()
		slog.Info("gRPC health probe listening", "addr", probeSrv.Addr())
	}

	waitCtx := ctx
	if cfg.Ready.Timeout > 0 {
		var cancel context.CancelFunc
		waitCtx, cancel = context.WithTimeout(ctx, cfg.Ready.Timeout)
		defer cancel()
	}
	if err := mgr.WaitReady(waitCtx, cfg.Ready.PollInterval); err != nil {
		slog.Error("Bot did not become ready", "error", err)
		_ = mgr.Close()
		os.Exit(1)
	}

	// Optional audit trail.
	var repo store.Repository
	if cfg.Audit.Enabled {
		sqliteStore, err := store.NewSQLite(cfg.Audit.DBPath)
		if err != nil {
			slog.Error("Failed to initialize database", "error", err)
			os.Exit(1)
		}
		defer func() {
			if closeErr := sqliteStore.Close(); closeErr != nil {
				slog.Error("Failed to close repository", "error", closeErr)
			}
		}()
		if err := sqliteStore.Ping(ctx); err != nil {
			slog.Error("Database health check failed", "error", err)
			os.Exit(1)
		}
		slog.Info("Audit database connected", "path", cfg.Audit.DBPath)

		store.StartRetentionWorker(ctx, sqliteStore, cfg.Audit.Retention)
		repo = sqliteStore
	}

	// Initialize services.
	hub := feed.NewHub()
	limiter := middleware.NewRateLimiter(cfg.Limits.RPS, cfg.Limits.Burst, func(r *http.Request) (string, bool) {
		id := identity.UserIDFromContext(r.Context())
		return id, id != ""
	}, logger)
	limiter.StartJanitor(ctx, limiterSweepInterval, limiterIdleTTL)

	// Initialize handlers.
	healthHandler := api.NewHealthHandler(mgr.IsReady)
	rolesHandler := api.NewRolesHandler(api.RolesHandlerConfig{
		Roles:      roles.NewService(mgr),
		Membership: membership.NewService(mgr, logger),
		Audit:      repo,
		Events:     hub,
		Limiter:    limiter.Handler,
		Logger:     logger,
	})
	auditHandler := api.NewAuditHandler(repo)
	wsHandler := feed.NewWebSocketHandler(hub, originPatterns(cfg))

	// Setup router.
	r := chi.NewRouter()

	// Global middleware.
	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(chiMiddleware.Logger)
	r.Use(chiMiddleware.Recoverer)
	r.Use(middleware.CORS(cfg.AllowedOrigins()))

	if cfg.MetricsEnabled {
		httpMetrics, err := middleware.NewHTTPMetrics(middleware.HTTPMetricsOptions{Registerer: prometheus.DefaultRegisterer})
		if err != nil {
			slog.Error("Failed to register HTTP metrics", "error", err)
			os.Exit(1)
		}
		if err := middleware.NewReadyGauge(prometheus.DefaultRegisterer, mgr.IsReady); err != nil {
			slog.Error("Failed to register readiness gauge", "error", err)
			os.Exit(1)
		}
		r.Use(httpMetrics.Handler)
		r.Handle("/metrics", promhttp.Handler())
	}

	healthHandler.RegisterRoutes(r)
	rolesHandler.RegisterRoutes(r)
	auditHandler.RegisterRoutes(r)

	// WebSocket endpoint.
	r.With(identity.Middleware).Get("/ws/user/{userID}/events", wsHandler.ServeHTTP)

	// WebSocket feeds are long-lived, so there is no WriteTimeout.
	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 0,
		IdleTimeout:  120 * time.Second,
	}

	// Start server.
	go func() {
		slog.Info("Server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("Server failed", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for shutdown signal.
	<-ctx.Done()
	stop()

	slog.Info("Shutting down gracefully...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	hub.CloseAll()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("Server forced to shutdown", "error", err)
	}
	rolesHandler.Wait()

	slog.Info("Server stopped successfully")
}

// originPatterns converts the CORS origins into websocket accept patterns,
// which match on host only.
func originPatterns(cfg *config.Config) []string {
	if cfg.IsDevelopment() {
		return []string{"*"}
	}
	patterns := make([]string, 0, 1)
	for _, o := range cfg.AllowedOrigins() {
		if i := strings.Index(o, "://"); i >= 0 {
			o = o[i+3:]
		}
		patterns = append(patterns, o)
	}
	return patterns
}
