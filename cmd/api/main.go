package main

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/wolfman30/crystalcare-intake/cmd/mainconfig"
	"github.com/wolfman30/crystalcare-intake/internal/analytics"
	"github.com/wolfman30/crystalcare-intake/internal/api/router"
	"github.com/wolfman30/crystalcare-intake/internal/booking"
	appconfig "github.com/wolfman30/crystalcare-intake/internal/config"
	"github.com/wolfman30/crystalcare-intake/internal/conversation"
	httpmiddleware "github.com/wolfman30/crystalcare-intake/internal/http/middleware"
	"github.com/wolfman30/crystalcare-intake/internal/leads"
	"github.com/wolfman30/crystalcare-intake/internal/notify"
	"github.com/wolfman30/crystalcare-intake/internal/observability/metrics"
	"github.com/wolfman30/crystalcare-intake/internal/webchat"
	"github.com/wolfman30/crystalcare-intake/pkg/logging"
)

// awsLoader resolves the shared AWS config on first use.
type awsLoader func() (aws.Config, error)

func main() {
	// Optional .env for local runs
	_ = godotenv.Load()

	// Load configuration
	cfg := appconfig.Load()

	// Initialize logger
	logger := logging.New(cfg.LogLevel)
	logger.Info("starting crystalcare-intake API server",
		"env", cfg.Env,
		"port", cfg.Port,
		"lead_store", cfg.LeadStoreBackend,
		"dialogue_provider", cfg.DialogueProvider,
		"notify_provider", cfg.NotifyProvider,
	)

	ctx := context.Background()
	loadAWS := awsLoader(sync.OnceValues(func() (aws.Config, error) {
		return mainconfig.LoadAWSConfig(ctx, cfg)
	}))

	metricsHandler, intakeMetrics := setupMetrics()

	var redisClient *redis.Client
	if cfg.LeadStoreBackend == "redis" || strings.TrimSpace(cfg.RedisAddr) != "" {
		redisClient = connectRedis(ctx, cfg, logger)
	}
	if redisClient != nil {
		defer func() { _ = redisClient.Close() }()
	}

	kv, closeKV, err := buildLeadKV(ctx, cfg, redisClient, loadAWS, logger)
	if err != nil {
		logger.Error("failed to configure lead store", "error", err)
		os.Exit(1)
	}
	defer closeKV()

	store := leads.NewStore(kv, logger,
		leads.WithKey(cfg.LeadsKey),
		leads.WithObserver(intakeMetrics),
	)
	if err := store.Initialize(ctx); err != nil {
		logger.Warn("lead store seed failed", "error", err)
	}

	sender, err := buildEmailSender(cfg, loadAWS, logger)
	if err != nil {
		logger.Error("failed to configure notifications", "error", err)
		os.Exit(1)
	}
	dispatcher := notify.NewDispatcher(sender, notify.DispatcherConfig{
		Recipient: cfg.NotifyRecipient,
		Timeout:   cfg.NotifyTimeout,
		Observer:  intakeMetrics,
	}, logger)

	capability, closeCapability, err := buildDialogue(ctx, cfg, loadAWS, intakeMetrics, logger)
	if err != nil {
		logger.Error("failed to configure dialogue capability", "error", err)
		os.Exit(1)
	}
	defer closeCapability()

	managerCfg := conversation.ManagerConfig{
		Capability: capability,
		Store:      store,
		Notifier:   dispatcher,
		Observer:   intakeMetrics,
		Timeout:    cfg.DialogueTimeout,
		SessionTTL: cfg.SessionTTL,
	}
	if redisClient != nil {
		managerCfg.History = conversation.NewRedisHistoryStore(redisClient, cfg.SessionTTL, nil)
	}
	manager := conversation.NewManager(managerCfg, logger)

	var chatLimiter *httpmiddleware.RateLimiter
	webchatOpts := []webchat.Option{}
	if cfg.ChatRateLimit > 0 {
		chatLimiter = httpmiddleware.NewRateLimiter(cfg.ChatRateLimit, cfg.ChatRateBurst)
		webchatOpts = append(webchatOpts, webchat.WithTurnLimiter(chatLimiter))
	}

	// Setup router
	r := router.New(&router.Config{
		Logger: logger,
		BookingHandler: booking.NewHandler(store, dispatcher, booking.HandlerConfig{
			Recipient:   dispatcher.Recipient(),
			SubmitDelay: cfg.BookingSubmitDelay,
			SessionTTL:  cfg.SessionTTL,
			Observer:    intakeMetrics,
		}, logger),
		ConversationHandler: conversation.NewHandler(manager, logger),
		WebChatHandler:      webchat.NewHandler(manager, logger, webchatOpts...),
		LeadsHandler:        leads.NewHandler(store, logger),
		AnalyticsHandler:    analytics.NewHandler(analytics.NewAggregator(store, nil), logger),
		MetricsHandler:      metricsHandler,
		CORSAllowedOrigins:  cfg.CORSAllowedOrigins,
		Admin: httpmiddleware.AdminConfig{
			Password: cfg.AdminPassword,
			Secret:   cfg.AdminJWTSecret,
			TokenTTL: cfg.AdminTokenTTL,
		},
		ChatLimiter: chatLimiter,
	})

	// Create HTTP server
	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadHeaderTimeout: 15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	// Start server in a goroutine
	go func() {
		logger.Info("server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server...")

	// Graceful shutdown with timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced to shutdown", "error", err)
	}
	// Let in-flight confirmations finish before exiting.
	dispatcher.Wait()

	logger.Info("server stopped")
	fmt.Println("Server exited gracefully")
}

func setupMetrics() (http.Handler, *metrics.IntakeMetrics) {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{}), metrics.NewIntakeMetrics(reg)
}

func connectRedis(ctx context.Context, cfg *appconfig.Config, logger *logging.Logger) *redis.Client {
	if strings.TrimSpace(cfg.RedisAddr) == "" {
		return nil
	}
	opts := &redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
	}
	if cfg.RedisTLS {
		opts.TLSConfig = &tls.Config{MinVersion: tls.VersionTLS12}
	}
	client := redis.NewClient(opts)
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		logger.Warn("redis not available", "error", err, "addr", cfg.RedisAddr)
		_ = client.Close()
		return nil
	}
	return client
}

func connectPostgresPool(ctx context.Context, databaseURL string, logger *logging.Logger) *pgxpool.Pool {
	if strings.TrimSpace(databaseURL) == "" {
		return nil
	}
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		logger.Error("failed to create postgres pool", "error", err)
		return nil
	}
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		logger.Error("postgres not reachable", "error", err)
		pool.Close()
		return nil
	}
	return pool
}

func buildLeadKV(ctx context.Context, cfg *appconfig.Config, redisClient *redis.Client, loadAWS awsLoader, logger *logging.Logger) (leads.KV, func(), error) {
	noop := func() {}
	switch cfg.LeadStoreBackend {
	case "", "memory":
		logger.Warn("using in-memory lead store; leads are lost on restart")
		return leads.NewMemoryKV(), noop, nil
	case "redis":
		if redisClient == nil {
			return nil, noop, errors.New("redis lead store requires a reachable REDIS_ADDR")
		}
		return leads.NewRedisKV(redisClient, nil), noop, nil
	case "postgres":
		pool := connectPostgresPool(ctx, cfg.DatabaseURL, logger)
		if pool == nil {
			return nil, noop, errors.New("postgres lead store requires a reachable DATABASE_URL")
		}
		return leads.NewPostgresKV(pool, nil), pool.Close, nil
	case "dynamodb":
		awsCfg, err := loadAWS()
		if err != nil {
			return nil, noop, fmt.Errorf("load aws config: %w", err)
		}
		return leads.NewDynamoKV(dynamodb.NewFromConfig(awsCfg), cfg.LeadsDynamoTable, nil), noop, nil
	default:
		return nil, noop, fmt.Errorf("unknown LEAD_STORE_BACKEND %q", cfg.LeadStoreBackend)
	}
}

func buildEmailSender(cfg *appconfig.Config, loadAWS awsLoader, logger *logging.Logger) (notify.EmailSender, error) {
	switch cfg.NotifyProvider {
	case "", "stub":
		return notify.NewStubEmailSender(logger), nil
	case "sendgrid":
		if strings.TrimSpace(cfg.SendGridAPIKey) == "" || strings.TrimSpace(cfg.SendGridFromEmail) == "" {
			return nil, errors.New("sendgrid requires SENDGRID_API_KEY and SENDGRID_FROM_EMAIL")
		}
		return notify.NewSendGridSender(notify.SendGridConfig{
			APIKey:    cfg.SendGridAPIKey,
			FromEmail: cfg.SendGridFromEmail,
			FromName:  cfg.SendGridFromName,
		}, logger), nil
	case "ses":
		if strings.TrimSpace(cfg.SESFromEmail) == "" {
			return nil, errors.New("ses requires SES_FROM_EMAIL")
		}
		awsCfg, err := loadAWS()
		if err != nil {
			return nil, fmt.Errorf("load aws config: %w", err)
		}
		return notify.NewSESSender(sesv2.NewFromConfig(awsCfg), notify.SESConfig{
			FromEmail: cfg.SESFromEmail,
			FromName:  cfg.SendGridFromName,
		}, logger), nil
	case "sqs":
		if strings.TrimSpace(cfg.NotifyQueueURL) == "" {
			return nil, errors.New("sqs requires NOTIFY_QUEUE_URL")
		}
		awsCfg, err := loadAWS()
		if err != nil {
			return nil, fmt.Errorf("load aws config: %w", err)
		}
		return notify.NewSQSSender(sqs.NewFromConfig(awsCfg), cfg.NotifyQueueURL, logger), nil
	default:
		return nil, fmt.Errorf("unknown NOTIFY_PROVIDER %q", cfg.NotifyProvider)
	}
}

// buildDialogue wires the primary provider and, when configured, a fallback.
func buildDialogue(ctx context.Context, cfg *appconfig.Config, loadAWS awsLoader, observer conversation.Observer, logger *logging.Logger) (conversation.Capability, func(), error) {
	var closers []io.Closer
	closeAll := func() {
		for _, c := range closers {
			_ = c.Close()
		}
	}

	primary, closer, err := buildCapability(ctx, cfg.DialogueProvider, cfg, loadAWS, logger)
	if err != nil {
		return nil, closeAll, err
	}
	if closer != nil {
		closers = append(closers, closer)
	}
	fallbackName := cfg.DialogueFallbackProvider
	if fallbackName == "" || fallbackName == cfg.DialogueProvider {
		return primary, closeAll, nil
	}

	fallback, closer, err := buildCapability(ctx, fallbackName, cfg, loadAWS, logger)
	if err != nil {
		logger.Warn("dialogue fallback disabled", "provider", fallbackName, "error", err)
		return primary, closeAll, nil
	}
	if closer != nil {
		closers = append(closers, closer)
	}
	logger.Info("dialogue fallback enabled", "primary", cfg.DialogueProvider, "fallback", fallbackName)
	return conversation.NewFallbackCapability(primary, fallback, observer, logger), closeAll, nil
}

func buildCapability(ctx context.Context, provider string, cfg *appconfig.Config, loadAWS awsLoader, logger *logging.Logger) (conversation.Capability, io.Closer, error) {
	switch provider {
	case "gemini":
		c, err := conversation.NewGeminiCapability(ctx, cfg.GeminiAPIKey, cfg.GeminiModel)
		if err != nil {
			return nil, nil, err
		}
		return c, c, nil
	case "openai":
		c, err := conversation.NewOpenAICapability(cfg.OpenAIAPIKey, cfg.OpenAIModel, logger)
		if err != nil {
			return nil, nil, err
		}
		return c, nil, nil
	case "bedrock":
		if strings.TrimSpace(cfg.BedrockModelID) == "" {
			return nil, nil, errors.New("bedrock requires BEDROCK_MODEL_ID")
		}
		awsCfg, err := loadAWS()
		if err != nil {
			return nil, nil, fmt.Errorf("load aws config: %w", err)
		}
		return conversation.NewBedrockCapability(bedrockruntime.NewFromConfig(awsCfg), cfg.BedrockModelID), nil, nil
	default:
		return nil, nil, fmt.Errorf("unknown DIALOGUE_PROVIDER %q", provider)
	}
}
