package main

import (
	"context"
	"log/slog"
	"os"

	"github.com/mantled-app/creator-api/internal/analytics"
	"github.com/mantled-app/creator-api/internal/api"
	"github.com/mantled-app/creator-api/internal/audit"
	"github.com/mantled-app/creator-api/internal/auth"
	"github.com/mantled-app/creator-api/internal/config"
	"github.com/mantled-app/creator-api/internal/database"
	"github.com/mantled-app/creator-api/internal/generation"
	mw "github.com/mantled-app/creator-api/internal/middleware"
	inats "github.com/mantled-app/creator-api/internal/nats"
	"github.com/mantled-app/creator-api/internal/notify"
	"github.com/mantled-app/creator-api/internal/provider"
	"github.com/mantled-app/creator-api/internal/quota"
	iredis "github.com/mantled-app/creator-api/internal/redis"
	"github.com/mantled-app/creator-api/internal/server"
	"github.com/mantled-app/creator-api/internal/session"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("loading config", "error", err)
		os.Exit(1)
	}

	setupLogger(cfg.Log)

	if err := cfg.Validate(); err != nil {
		slog.Error("invalid config", "error", err)
		os.Exit(1)
	}

	ctx := context.Background()

	// PostgreSQL
	pool, err := database.NewPostgresPool(ctx, cfg.DB)
	if err != nil {
		slog.Error("connecting to postgres", "error", err)
		os.Exit(1)
	}
	defer pool.Close()

	migrationsPath := os.Getenv("MIGRATIONS_PATH")
	if migrationsPath == "" {
		migrationsPath = "migrations"
	}
	if err := database.RunMigrations(cfg.DB.DSN(), migrationsPath); err != nil {
		slog.Error("running migrations", "error", err)
		os.Exit(1)
	}

	// Redis
	redisClient, err := iredis.NewClient(ctx, cfg.Redis)
	if err != nil {
		slog.Error("connecting to redis", "error", err)
		os.Exit(1)
	}
	defer redisClient.Close()

	// NATS JetStream
	natsClient, err := inats.NewClient(ctx, cfg.NATS)
	if err != nil {
		slog.Error("connecting to nats", "error", err)
		os.Exit(1)
	}
	defer natsClient.Close()

	publisher := inats.NewPublisher(natsClient.JetStream())
	consumerMgr := inats.NewConsumerManager(natsClient.JetStream())

	// Auth
	jwtManager := auth.NewJWTManager(cfg.JWT.AccessSecret)

	// Quota
	policy := quota.NewPolicy(cfg.Quota.Limits)
	ledger := quota.NewLedger(redisClient)
	usageRepo := quota.NewRepository(pool)
	quotaSvc := quota.NewService(policy, ledger, usageRepo)
	quotaHandler := quota.NewHandler(quotaSvc, usageRepo)

	// Audit
	auditRepo := audit.NewRepository(pool)
	auditSink := audit.NewSink(publisher)
	auditHandler := audit.NewHandler(auditRepo)

	auditConsumer := audit.NewConsumer(auditRepo, consumerMgr)
	consumerCtx, stopConsumer := context.WithCancel(ctx)
	defer stopConsumer()
	go func() {
		if err := auditConsumer.Start(consumerCtx); err != nil {
			slog.Error("audit consumer stopped", "error", err)
		}
	}()

	// Providers
	registry := generation.NewRegistry(cfg.Generation.MockAllowed)
	if cfg.Providers.OpenAI.Configured() {
		registry.Register(provider.NewOpenAIText(cfg.Providers.OpenAI, 10))
		registry.Register(provider.NewOpenAIImage(cfg.Providers.OpenAI, 10))
	}
	if cfg.Providers.Avatar.Configured() {
		registry.Register(provider.NewHTTPBackend("avatar-studio", generation.CapabilityAvatar, cfg.Providers.Avatar, 10, 10))
	}
	if cfg.Providers.Video.Configured() {
		registry.Register(provider.NewHTTPBackend("video-render", generation.CapabilityVideo, cfg.Providers.Video, 10, 20))
	}

	// Orchestrator
	orchOpts := []generation.Option{
		generation.WithProviderTimeout(cfg.Generation.ProviderTimeout),
	}
	if cfg.Providers.Aggregator.Configured() {
		orchOpts = append(orchOpts, generation.WithAggregator(provider.NewAggregator(cfg.Providers.Aggregator)))
	}
	if cfg.Generation.MockAllowed {
		orchOpts = append(orchOpts, generation.WithMock(provider.NewMock(nil)))
	}
	orchestrator := generation.NewOrchestrator(
		registry,
		quotaSvc,
		auditSink,
		analytics.NewEmitter(publisher),
		notify.NewNotifier(publisher),
		orchOpts...,
	)
	generationHandler := generation.NewHandler(orchestrator, registry)

	// Recording sessions
	sessionStore := session.NewStore(redisClient, cfg.Session.TTL)
	sessionHandler := session.NewHandler(sessionStore)

	// Rate limiting on the generation endpoint
	generateLimiter := mw.NewRateLimiter(redisClient, 30, 60)

	// Router
	router := api.NewRouter(pool, redisClient, natsClient, api.RouterConfig{
		CORSAllowedOrigins:  cfg.CORS.AllowedOrigins,
		GenerateRateLimiter: generateLimiter.Middleware,
	}, api.HandlerSet{
		Generate:      generationHandler.Generate,
		ListProviders: generationHandler.Providers,

		GetQuota: quotaHandler.GetQuota,
		GetUsage: quotaHandler.GetUsage,

		ListAuditLogs: auditHandler.List,

		CreateRecording: sessionHandler.Create,
		GetRecording:    sessionHandler.Get,
		UpdateRecording: sessionHandler.Update,
		DeleteRecording: sessionHandler.Delete,

		AuthMiddleware: auth.Middleware(jwtManager),
	})

	// Start server
	srv := server.New(cfg.Server, router)
	if err := srv.Start(); err != nil {
		slog.Error("server error", "error", err)
		os.Exit(1)
	}
}

func setupLogger(cfg config.LogConfig) {
	var handler slog.Handler

	opts := &slog.HandlerOptions{}
	switch cfg.Level {
	case "debug":
		opts.Level = slog.LevelDebug
	case "info":
		opts.Level = slog.LevelInfo
	case "warn":
		opts.Level = slog.LevelWarn
	case "error":
		opts.Level = slog.LevelError
	default:
		opts.Level = slog.LevelInfo
	}

	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}

	slog.SetDefault(slog.New(handler))
}
