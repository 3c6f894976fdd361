package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/web3-forum-api/internal/api"
	"github.com/web3-forum-api/internal/cache"
	"github.com/web3-forum-api/internal/chain"
	"github.com/web3-forum-api/internal/config"
	"github.com/web3-forum-api/internal/database"
	"github.com/web3-forum-api/internal/repository"
	"github.com/web3-forum-api/internal/repository/memory"
	"github.com/web3-forum-api/internal/service"
	"github.com/web3-forum-api/pkg/logger"
)

func main() {
	// .env is optional; real deployments set the environment directly
	_ = godotenv.Load()

	// Initialize logger
	log := logger.New()
	log.Info().Msg("Starting Web3 Forum API server...")

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}

	// Storage: Postgres when configured, in-memory store otherwise.
	// The fallback is selected once here; requests never switch backends.
	var repos *repository.Repositories
	if cfg.HasDatabase() {
		db, err := database.New(&cfg.Database, log)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to connect to database")
		}
		defer db.Close()

		migrationsPath := os.Getenv("MIGRATIONS_PATH")
		if migrationsPath == "" {
			migrationsPath = "./migrations"
		}
		if err := db.RunMigrations(migrationsPath); err != nil {
			log.Fatal().Err(err).Msg("Failed to run database migrations")
		}

		repos = repository.New(db)
		log.Info().Msg("Using PostgreSQL storage")
	} else {
		repos = memory.NewStore().Repositories()
		log.Warn().Msg("No database configured, using in-memory storage; data will not survive restarts")
	}

	// Cache: Redis when configured, no-op otherwise
	var cacheBackend cache.Cache
	if cfg.Redis.URL != "" {
		redisCache, err := cache.NewRedis(&cfg.Redis, log)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to connect to Redis")
		}
		cacheBackend = redisCache
		log.Info().Msg("Using Redis cache")
	} else {
		cacheBackend = cache.NewNoop()
		log.Warn().Msg("No Redis configured, caching disabled")
	}
	defer cacheBackend.Close()

	// Chain verification: offline mode when no RPC endpoint is configured
	var verifier service.ChainVerifier
	if cfg.Chain.RPCURL != "" {
		verifier = chain.NewVerifier(&cfg.Chain, log)
		log.Info().Str("rpc_url", cfg.Chain.RPCURL).Msg("On-chain transaction verification enabled")
	} else {
		log.Warn().Msg("No chain RPC configured, transactions are checked for format and reuse only")
	}

	// Initialize services
	services := service.NewServices(repos, cacheBackend, verifier, cfg, log)

	// Start background task processor
	if cfg.Queue.Workers > 0 {
		go services.Task.StartProcessor(context.Background())
		log.Info().Int("workers", cfg.Queue.Workers).Msg("Background task processor started")
	} else {
		log.Warn().Msg("Zero async workers configured, task submissions run synchronously")
	}

	// Initialize router
	router := api.NewRouter(services, cfg, log)

	// Create HTTP server
	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.ReadTimeout,
	}

	// Start server in goroutine
	go func() {
		log.Info().Str("port", cfg.Server.Port).Msg("Server listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Server failed")
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info().Msg("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	// Stop task processor
	services.Task.StopProcessor()

	if err := srv.Shutdown(ctx); err != nil {
		log.Fatal().Err(err).Msg("Server forced to shutdown")
	}

	log.Info().Msg("Server exited gracefully")
}
