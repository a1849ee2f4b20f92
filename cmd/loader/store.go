package main

import (
	"context"
	"fmt"
	"strings"
	"time"

	"betterreads/internal/catalog"
	"betterreads/internal/config"
	"betterreads/internal/ingest"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
)

const pingTimeout = 2 * time.Second

// openStore connects the configured record store. Pass bookkeeping is only
// recorded when the store is postgres, so runs is nil for other drivers.
func openStore(ctx context.Context, cfg *config.Config, log zerolog.Logger) (catalog.Store, ingest.Repository, error) {
	switch cfg.Driver {
	case config.DriverPostgres:
		pool, err := openDB(ctx, cfg.DSN)
		if err != nil {
			return nil, nil, err
		}
		log.Info().Str("dsn", redactDSN(cfg.DSN)).Msg("database connection OK")
		return catalog.NewPostgresRepo(pool), ingest.NewPostgresRepo(pool), nil

	case config.DriverSQLite:
		repo, err := catalog.NewSQLiteRepo(cfg.SQLitePath)
		if err != nil {
			return nil, nil, fmt.Errorf("cannot open sqlite database %s: %w", cfg.SQLitePath, err)
		}
		log.Info().Str("path", cfg.SQLitePath).Msg("sqlite database ready")
		return repo, nil, nil

	case config.DriverRedis:
		repo := catalog.NewRedisRepo(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB, cfg.RedisPrefix)
		pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
		defer cancel()
		if err := repo.Ping(pingCtx); err != nil {
			_ = repo.Close()
			return nil, nil, fmt.Errorf("cannot reach redis at %s: %w", cfg.RedisAddr, err)
		}
		log.Info().Str("addr", cfg.RedisAddr).Msg("redis connection OK")
		return repo, nil, nil

	case config.DriverMemory:
		log.Warn().Msg("memory store: records are dropped when the process exits")
		return catalog.NewMemoryRepo(), nil, nil
	}
	return nil, nil, fmt.Errorf("unknown store driver %q", cfg.Driver)
}

func openDB(ctx context.Context, dsn string) (*pgxpool.Pool, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("cannot create db pool: %w", err)
	}
	pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("cannot ping database (%s): %w", redactDSN(dsn), err)
	}
	return pool, nil
}

func redactDSN(dsn string) string {
	const marker = "://"
	start := strings.Index(dsn, marker)
	if start < 0 {
		return dsn
	}
	start += len(marker)
	end := strings.Index(dsn[start:], "@")
	if end < 0 {
		return dsn
	}
	return dsn[:start] + "***" + dsn[start+end:]
}
