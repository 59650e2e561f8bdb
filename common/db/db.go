package db

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/lyzr/rulechain/common/config"
	"github.com/lyzr/rulechain/common/logger"
)

// DB wraps pgxpool with common operations. The rule-chain engine never reads
// chains back from this pool (the in-memory chain store is the sole source
// of truth); it backs only the optional execution-audit sink.
type DB struct {
	*pgxpool.Pool
	log *logger.Logger
}

// New creates a new database connection pool for the audit sink.
func New(ctx context.Context, cfg *config.Config, log *logger.Logger) (*DB, error) {
	poolConfig, err := pgxpool.ParseConfig(cfg.AuditDatabaseURL())
	if err != nil {
		return nil, fmt.Errorf("parse audit database URL: %w", err)
	}

	poolConfig.MaxConns = int32(cfg.Audit.MaxConns)
	poolConfig.MinConns = int32(cfg.Audit.MinConns)
	poolConfig.MaxConnLifetime = cfg.Audit.MaxLifetime
	poolConfig.MaxConnIdleTime = cfg.Audit.MaxIdleTime

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("create audit connection pool: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := pool.Ping(pingCtx); err != nil {
		return nil, fmt.Errorf("ping audit database: %w", err)
	}

	log.Info("audit database connected", "host", cfg.Audit.Host, "db", cfg.Audit.Database)

	return &DB{
		Pool: pool,
		log:  log,
	}, nil
}

// Close closes the database connection pool
func (db *DB) Close() {
	db.log.Info("closing audit database connection pool")
	db.Pool.Close()
}

// Health checks database health
func (db *DB) Health(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	return db.Pool.Ping(ctx)
}
