package main

import (
	"context"
	"fmt"
	"log/slog"

	"stmtguard/internal/dedupe/ports"
	badgerstore "stmtguard/internal/dedupe/store/badger"
	"stmtguard/internal/dedupe/store/memory"
	pgstore "stmtguard/internal/dedupe/store/postgres"
	redisstore "stmtguard/internal/dedupe/store/redis"
	"stmtguard/internal/platform/config"
	"stmtguard/internal/platform/postgres"
	"stmtguard/internal/platform/redis"
)

// index is the selected token index plus what it needs for health checks and
// shutdown.
type index struct {
	ports.Index
	ping  func(context.Context) error
	close func() error
}

func openIndex(ctx context.Context, cfg config.Server, log *slog.Logger) (*index, error) {
	noop := func() error { return nil }
	alive := func(context.Context) error { return nil }

	switch cfg.Index.Backend {
	case config.BackendMemory:
		log.Warn("using in-memory token index, tokens are lost on restart")
		return &index{Index: memory.New(), ping: alive, close: noop}, nil

	case config.BackendPostgres:
		db, err := postgres.Open(ctx, cfg.Database)
		if err != nil {
			return nil, err
		}
		store := pgstore.New(db)
		if err := store.EnsureSchema(ctx); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("ensure token schema: %w", err)
		}
		log.Info("using postgres token index", "max_open_conns", cfg.Database.MaxOpenConns)
		return &index{Index: store, ping: db.PingContext, close: db.Close}, nil

	case config.BackendRedis:
		client, err := redis.New(ctx, cfg.Redis)
		if err != nil {
			return nil, err
		}
		log.Info("using redis token index", "pool_size", cfg.Redis.PoolSize)
		return &index{Index: redisstore.New(client.Client), ping: client.Health, close: client.Close}, nil

	case config.BackendBadger:
		store, err := badgerstore.Open(badgerstore.Config{Path: cfg.Index.BadgerPath, SyncWrites: true, Logger: log})
		if err != nil {
			return nil, err
		}
		log.Info("using badger token index", "path", cfg.Index.BadgerPath)
		return &index{Index: store, ping: alive, close: store.Close}, nil
	}
	return nil, fmt.Errorf("unknown index backend %q", cfg.Index.Backend)
}
