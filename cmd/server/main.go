package main

import (
	"context"
	"fmt"
	"log/slog"

	log "github.com/charmbracelet/log"
	"github.com/p2pwallet/wallet/infra/cache"
	"github.com/p2pwallet/wallet/infra/ledger/dynamodb"
	"github.com/p2pwallet/wallet/infra/ledger/memory"
	pgledger "github.com/p2pwallet/wallet/infra/ledger/postgres"
	"github.com/p2pwallet/wallet/infra/repository"
	resultcache "github.com/p2pwallet/wallet/pkg/cache"
	"github.com/p2pwallet/wallet/pkg/config"
	"github.com/p2pwallet/wallet/pkg/ledger"
	transfersvc "github.com/p2pwallet/wallet/pkg/service/transfer"
	"github.com/p2pwallet/wallet/webapi"
	"github.com/redis/go-redis/v9"
)

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	logger := slog.Default()
	cfg, err := config.Load(logger)
	if err != nil {
		return fmt.Errorf("failed to load application configuration: %w", err)
	}

	store, err := newStore(cfg, logger)
	if err != nil {
		return err
	}
	results := newResultCache(cfg, logger)

	repo := repository.New(store, logger,
		repository.WithIdempotencyTTL(cfg.Idempotency.TTL))
	svc := transfersvc.New(repo, results, cfg.Idempotency.TTL, logger)

	app := webapi.New(svc, cfg)
	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	logger.Info("starting server",
		"env", cfg.Env,
		"address", addr,
		"ledger_backend", cfg.Ledger.Backend,
	)
	return app.Listen(addr)
}

func newStore(cfg *config.AppConfig, logger *slog.Logger) (ledger.Store, error) {
	switch cfg.Ledger.Backend {
	case "dynamodb":
		store, err := dynamodb.NewFromConfig(context.Background(), cfg.Ledger.Table)
		if err != nil {
			return nil, fmt.Errorf("dynamodb store: %w", err)
		}
		return store, nil
	case "postgres":
		store, err := pgledger.Open(cfg.Ledger.DatabaseUrl)
		if err != nil {
			return nil, fmt.Errorf("postgres store: %w", err)
		}
		if err := store.Migrate(); err != nil {
			return nil, fmt.Errorf("postgres migrate: %w", err)
		}
		return store, nil
	case "memory":
		logger.Warn("using in-memory ledger store; state is not durable")
		return memory.New(), nil
	default:
		return nil, fmt.Errorf("unknown ledger backend %q", cfg.Ledger.Backend)
	}
}

func newResultCache(cfg *config.AppConfig, logger *slog.Logger) resultcache.ResultCache {
	switch cfg.Cache.Backend {
	case "redis":
		return cache.NewRedisResultCache(&redis.Options{
			Addr:     cfg.Cache.RedisAddr,
			Password: cfg.Cache.RedisPassword,
			DB:       cfg.Cache.RedisDB,
		}, cfg.Cache.Prefix, logger)
	case "memory":
		return cache.NewMemoryResultCache()
	default:
		return nil
	}
}
