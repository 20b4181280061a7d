package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"github.com/uptrace/bun"
	"go.mongodb.org/mongo-driver/mongo"

	_ "github.com/redmonkez12/farm-fresh-api/docs" // Swagger docs
	"github.com/redmonkez12/farm-fresh-api/internal/auth"
	"github.com/redmonkez12/farm-fresh-api/internal/config"
	"github.com/redmonkez12/farm-fresh-api/internal/database"
	httpServer "github.com/redmonkez12/farm-fresh-api/internal/http"
	"github.com/redmonkez12/farm-fresh-api/internal/logging"
	"github.com/redmonkez12/farm-fresh-api/internal/metrics"
	"github.com/redmonkez12/farm-fresh-api/internal/user"
)

// @title           Farm Fresh API
// @version         1.0
// @description     Account API for the farm fresh marketplace: password and Google sign-in on one account per email.

// @host      localhost:5172
// @BasePath  /

// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
// @description Type "Bearer" followed by a space and the session token.

func main() {
	if err := run(); err != nil {
		log.Fatalf("Application error: %v", err)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	logger := logging.NewLogger(cfg.Server.IsDevelopment())
	logger.Info("starting application",
		"env", cfg.Server.Env,
		"port", cfg.Server.Port,
		"store", cfg.Store.Backend,
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, err := openStore(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("failed to initialize store: %w", err)
	}
	defer store.close()

	tokens, err := newTokenService(cfg.Auth)
	if err != nil {
		return fmt.Errorf("failed to initialize token service: %w", err)
	}

	// nil leaves Google sign-in disabled; the endpoint answers 503
	var identity auth.IdentityVerifier
	if cfg.Google.Enabled() {
		verifier, err := auth.NewGoogleVerifier(ctx, cfg.Google.Issuer, cfg.Google.ClientID)
		if err != nil {
			logger.Error("google sign-in disabled: provider discovery failed", "error", err)
		} else {
			identity = verifier
		}
	} else {
		logger.Warn("google sign-in disabled: GOOGLE_CLIENT_ID is not set")
	}

	metrics.RegisterCollectors(prometheus.DefaultRegisterer)

	authService := auth.NewService(
		store.Store,
		auth.NewArgon2Hasher(auth.DefaultArgon2Params),
		tokens,
		identity,
		logger,
		cfg.Auth.SessionTokenDuration,
	)

	authHandler := auth.NewHandler(authService, !cfg.Server.IsDevelopment())
	authMiddleware := auth.NewMiddleware(tokens)
	health := httpServer.NewHealthHandler(cfg.Server.Env, store.backend, store.pinger)

	router := httpServer.NewRouter(cfg, authHandler, authMiddleware, health, prometheus.DefaultGatherer, logger)

	server := httpServer.NewServer(
		":"+cfg.Server.Port,
		router,
		cfg.Server.ReadTimeout,
		cfg.Server.WriteTimeout,
		logger,
	)

	serverErrors := make(chan error, 1)
	go func() {
		serverErrors <- server.Start()
	}()

	select {
	case err := <-serverErrors:
		return fmt.Errorf("server error: %w", err)
	case <-ctx.Done():
		logger.Info("shutdown signal received")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
	}

	return nil
}

func newTokenService(cfg config.AuthConfig) (auth.TokenService, error) {
	if cfg.TokenFormat == config.TokenFormatPaseto {
		return auth.NewPasetoService(cfg.PasetoKey)
	}
	return auth.NewJWTService(cfg.JWTSecret)
}

// openedStore is the selected credential store and how to release it
type openedStore struct {
	user.Store
	backend string
	pinger  user.Pinger
	close   func()
}

func memoryStore() *openedStore {
	return &openedStore{Store: user.NewMemoryStore(), backend: config.StoreMemory, close: func() {}}
}

// openStore connects the configured backend. When every connect attempt
// fails the service keeps running on the memory store.
func openStore(ctx context.Context, cfg *config.Config, logger *logging.Logger) (*openedStore, error) {
	if cfg.Store.Backend == config.StoreMemory {
		logger.Warn("using in-memory store: users are lost on restart")
		return memoryStore(), nil
	}

	store, err := connectStore(ctx, cfg, logger)
	if err != nil {
		if ctx.Err() != nil {
			return nil, err
		}
		logger.Error("store unavailable, falling back to in-memory store", "store", cfg.Store.Backend, "error", err)
		return memoryStore(), nil
	}
	return store, nil
}

func connectStore(ctx context.Context, cfg *config.Config, logger *logging.Logger) (*openedStore, error) {
	retries, delay := cfg.Store.ConnectRetries, cfg.Store.ConnectRetryDelay

	switch cfg.Store.Backend {
	case config.StorePostgres:
		db, err := database.Connect(ctx, logger, "postgres", retries, delay, func(ctx context.Context) (*bun.DB, error) {
			return database.OpenPostgres(ctx, cfg.Database.ConnectionString())
		})
		if err != nil {
			return nil, err
		}
		if err := database.Migrate(ctx, db); err != nil {
			db.Close()
			return nil, err
		}
		repo := user.NewRepository(db)
		return &openedStore{Store: repo, backend: config.StorePostgres, pinger: repo, close: func() { db.Close() }}, nil

	case config.StoreMongo:
		client, err := database.Connect(ctx, logger, "mongo", retries, delay, func(ctx context.Context) (*mongo.Client, error) {
			return database.ConnectMongo(ctx, cfg.Mongo.URI, cfg.Mongo.Timeout)
		})
		if err != nil {
			return nil, err
		}
		ms := user.NewMongoStore(client.Database(cfg.Mongo.Database).Collection(cfg.Mongo.Collection))
		if err := ms.EnsureIndexes(ctx); err != nil {
			_ = client.Disconnect(context.Background())
			return nil, err
		}
		return &openedStore{Store: ms, backend: config.StoreMongo, pinger: ms, close: func() {
			_ = client.Disconnect(context.Background())
		}}, nil

	case config.StoreRedis:
		client, err := database.Connect(ctx, logger, "redis", retries, delay, func(ctx context.Context) (*redis.Client, error) {
			return database.ConnectRedis(ctx, cfg.Redis.Address(), cfg.Redis.Password, cfg.Redis.DB)
		})
		if err != nil {
			return nil, err
		}
		rs := user.NewRedisStore(client, cfg.Redis.Prefix)
		return &openedStore{Store: rs, backend: config.StoreRedis, pinger: rs, close: func() { client.Close() }}, nil
	}

	return nil, fmt.Errorf("unknown store backend %q", cfg.Store.Backend)
}
