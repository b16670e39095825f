// Package postgres opens the connection pool for the target database.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Config holds pool settings. Zero values fall back to the pgxpool defaults.
type Config struct {
	URL             string
	MaxConns        int32
	MinConns        int32
	MaxConnLifetime time.Duration
	MaxConnIdleTime time.Duration
	HealthCheckSecs int
}

// Pool wraps a pgx pool with the logger it was opened with.
type Pool struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

// New parses cfg, opens the pool and pings the server once.
func New(ctx context.Context, cfg Config, logger *slog.Logger) (*Pool, error) {
	if cfg.URL == "" {
		return nil, errors.New("database URL is required")
	}
	if logger == nil {
		logger = slog.Default()
	}

	pcfg, err := pgxpool.ParseConfig(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("parsing database URL: %w", err)
	}
	if cfg.MaxConns > 0 {
		pcfg.MaxConns = cfg.MaxConns
	}
	if cfg.MinConns > 0 {
		pcfg.MinConns = cfg.MinConns
	}
	if cfg.MaxConnLifetime > 0 {
		pcfg.MaxConnLifetime = cfg.MaxConnLifetime
	}
	if cfg.MaxConnIdleTime > 0 {
		pcfg.MaxConnIdleTime = cfg.MaxConnIdleTime
	}
	if cfg.HealthCheckSecs > 0 {
		pcfg.HealthCheckPeriod = time.Duration(cfg.HealthCheckSecs) * time.Second
	}

	pool, err := pgxpool.NewWithConfig(ctx, pcfg)
	if err != nil {
		return nil, fmt.Errorf("creating pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	logger.Info("connected to database",
		"host", pcfg.ConnConfig.Host,
		"database", pcfg.ConnConfig.Database,
		"max_conns", pcfg.MaxConns,
	)
	return &Pool{pool: pool, logger: logger}, nil
}

// DB returns the underlying pgx pool.
func (p *Pool) DB() *pgxpool.Pool {
	return p.pool
}

// Close closes every connection in the pool.
func (p *Pool) Close() {
	p.pool.Close()
	p.logger.Debug("database pool closed")
}
