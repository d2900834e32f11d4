package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"cloud.google.com/go/pubsub"
	firebase "firebase.google.com/go/v4"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"google.golang.org/api/option"

	"github.com/classnotes/backend/internal/api"
	"github.com/classnotes/backend/internal/auth"
	"github.com/classnotes/backend/internal/config"
	"github.com/classnotes/backend/internal/domain"
	"github.com/classnotes/backend/internal/fcm"
	"github.com/classnotes/backend/internal/repository"
	"github.com/classnotes/backend/internal/trigger"
)

func main() {
	// Load .env file if exists
	_ = godotenv.Load()

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	logger, err := initLogger(cfg.Server.Env, cfg.Log.Level)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	logger.Info("Starting ClassNotes notifier",
		zap.String("env", cfg.Server.Env),
		zap.String("port", cfg.Server.Port),
		zap.String("store", cfg.Store.Backend),
	)

	ctx := context.Background()

	// Initialize Firebase
	app, err := fcm.NewApp(ctx, logger, cfg.Firebase.ProjectID, cfg.Firebase.CredentialsFile)
	if err != nil {
		logger.Warn("Failed to initialize Firebase app", zap.Error(err))
	}

	var transport domain.Multicaster
	if app != nil {
		fcmClient, err := fcm.NewClient(ctx, app, logger)
		if err != nil {
			logger.Warn("Failed to initialize Firebase messaging - push notifications will be logged only", zap.Error(err))
		} else {
			logger.Info("Firebase messaging initialized")
			transport = fcmClient
		}
	}
	if transport == nil {
		transport = fcm.NewLoggingMulticaster(logger)
	}

	// Initialize record store
	store, closeStore, err := initStore(ctx, cfg, app, logger)
	if err != nil {
		logger.Fatal("Failed to initialize record store", zap.Error(err))
	}
	defer closeStore()

	logger.Info("Record store ready", zap.String("backend", cfg.Store.Backend))

	// Initialize services
	n := cfg.Notification
	notificationService := domain.NewNotificationService(
		domain.NewRecipientResolver(store, store),
		domain.NewTokenFetcher(store, n.MaxQueryBatch, n.FetchConcurrency, n.StoreTimeout),
		domain.NewDispatcher(transport, n.PushTimeout, logger),
		domain.NewTokenReconciler(store, n.MaxQueryBatch, n.StoreTimeout, logger),
		n.AppName,
		n.EventTimeout,
		logger,
	)
	processor := trigger.NewProcessor(notificationService, logger)

	// Trigger authentication
	authenticator := initAuthenticator(cfg, logger)

	// Initialize handlers
	triggerHandler := api.NewTriggerHandler(processor, logger)
	healthHandler := api.NewHealthHandler(store, logger)

	// Initialize router
	router := api.NewRouter(triggerHandler, healthHandler, authenticator, logger)
	r := router.Setup()

	// Start Pub/Sub subscriber
	subCtx, subCancel := context.WithCancel(ctx)
	subDone := make(chan struct{})
	if cfg.PubSub.Subscription != "" {
		psClient, err := initPubSub(ctx, cfg)
		if err != nil {
			logger.Fatal("Failed to create Pub/Sub client", zap.Error(err))
		}
		defer psClient.Close()

		subscriber := trigger.NewSubscriber(psClient, cfg.PubSub.Subscription, processor, logger)
		go func() {
			defer close(subDone)
			if err := subscriber.Run(subCtx); err != nil {
				logger.Error("Pub/Sub subscriber stopped", zap.Error(err))
			}
		}()
	} else {
		close(subDone)
		logger.Info("PUBSUB_SUBSCRIPTION not set - accepting trigger events over HTTP only")
	}

	// Create server
	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: n.EventTimeout + 5*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in goroutine
	go func() {
		logger.Info("Server listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Server failed", zap.Error(err))
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")

	// Stop receiving; Receive returns once in-flight messages finish
	subCancel()

	// Graceful shutdown with timeout
	shutdownCtx, shutdownCancel := context.WithTimeout(ctx, 30*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server shutdown error", zap.Error(err))
	}

	select {
	case <-subDone:
	case <-shutdownCtx.Done():
		logger.Warn("Pub/Sub subscriber did not stop in time")
	}

	logger.Info("Server stopped")
}

func initLogger(env, level string) (*zap.Logger, error) {
	var cfg zap.Config
	if env == "production" {
		cfg = zap.NewProductionConfig()
	} else {
		cfg = zap.NewDevelopmentConfig()
	}
	if level != "" {
		lvl, err := zapcore.ParseLevel(level)
		if err != nil {
			return nil, fmt.Errorf("invalid LOG_LEVEL: %w", err)
		}
		cfg.Level = zap.NewAtomicLevelAt(lvl)
	}
	return cfg.Build()
}

// initStore opens the configured record store and returns a func that
// releases it
func initStore(ctx context.Context, cfg *config.Config, app *firebase.App, logger *zap.Logger) (domain.RecordStore, func(), error) {
	switch cfg.Store.Backend {
	case config.StoreFirestore:
		if app == nil {
			return nil, nil, fmt.Errorf("firestore backend requires a Firebase app")
		}
		client, err := app.Firestore(ctx)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to create firestore client: %w", err)
		}
		return repository.NewFirestoreRepository(client, logger), func() { client.Close() }, nil

	case config.StorePostgres:
		db, err := initDatabase(ctx, cfg.Store.DatabaseURL)
		if err != nil {
			return nil, nil, err
		}
		return repository.NewPostgresRepository(db), db.Close, nil

	case config.StoreMongo:
		client, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.Store.MongoURI))
		if err != nil {
			return nil, nil, fmt.Errorf("failed to connect to mongo: %w", err)
		}
		repo := repository.NewMongoRepository(client, cfg.Store.MongoDatabase)
		if err := repo.Ping(ctx); err != nil {
			_ = client.Disconnect(ctx)
			return nil, nil, fmt.Errorf("failed to ping mongo: %w", err)
		}
		return repo, func() { _ = client.Disconnect(context.Background()) }, nil

	case config.StoreMemory:
		logger.Warn("Using in-memory record store - data is not persisted")
		return repository.NewMemoryRepository(cfg.Notification.MaxQueryBatch), func() {}, nil
	}
	return nil, nil, fmt.Errorf("unknown store backend %q", cfg.Store.Backend)
}

func initDatabase(ctx context.Context, databaseURL string) (*pgxpool.Pool, error) {
	config, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse database URL: %w", err)
	}

	// Connection pool settings
	config.MaxConns = 10
	config.MinConns = 1
	config.MaxConnLifetime = 1 * time.Hour
	config.MaxConnIdleTime = 30 * time.Minute
	config.HealthCheckPeriod = 1 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	// Test connection
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return pool, nil
}

func initAuthenticator(cfg *config.Config, logger *zap.Logger) *auth.Authenticator {
	var verifiers []auth.Verifier
	if cfg.Trigger.Secret != "" {
		verifiers = append(verifiers, auth.NewTriggerTokenManager(cfg.Trigger.Secret))
		logger.Info("Trigger shared-secret tokens enabled")
	}
	google := auth.NewGoogleOIDCVerifier(cfg.Trigger.Audiences, cfg.Trigger.ServiceAccounts)
	if google.IsConfigured() {
		verifiers = append(verifiers, google)
		logger.Info("Trigger Google OIDC tokens enabled", zap.Strings("audiences", cfg.Trigger.Audiences))
	}
	if !cfg.TriggerAuthEnabled() {
		if cfg.IsProduction() {
			logger.Warn("Trigger endpoints are NOT authenticated - set TRIGGER_SECRET or TRIGGER_AUDIENCES")
		} else {
			logger.Info("Trigger endpoints are not authenticated")
		}
	}
	return auth.NewAuthenticator(verifiers...)
}

func initPubSub(ctx context.Context, cfg *config.Config) (*pubsub.Client, error) {
	var opts []option.ClientOption
	if cfg.Firebase.CredentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(cfg.Firebase.CredentialsFile))
	}
	return pubsub.NewClient(ctx, cfg.PubSubProject(), opts...)
}
