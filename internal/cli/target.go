package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/mdddj/blog-new/internal/blogmigrate"
	"github.com/mdddj/blog-new/internal/cli/ui"
	"github.com/mdddj/blog-new/internal/config"
	"github.com/mdddj/blog-new/internal/exchange"
	"github.com/mdddj/blog-new/internal/migrate"
	"github.com/mdddj/blog-new/internal/postgres"
	"github.com/spf13/cobra"
)

// target is an open connection to the new Postgres schema.
type target struct {
	pool  *postgres.Pool
	store *blogmigrate.PGStore
}

func (t *target) Close() { t.pool.Close() }

func openTarget(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*target, error) {
	pool, err := postgres.New(ctx, postgres.Config{
		URL:             cfg.Database.URL,
		MaxConns:        int32(cfg.Database.MaxConns),
		MinConns:        int32(cfg.Database.MinConns),
		HealthCheckSecs: cfg.Database.HealthCheckSecs,
	}, logger)
	if err != nil {
		return nil, ui.WithHints(fmt.Errorf("connecting to target database: %w", err),
			"psql \"$DATABASE_URL\" -c 'select 1'")
	}
	return &target{pool: pool, store: blogmigrate.NewPGStore(pool.DB(), logger)}, nil
}

func objectStoreConfig(cfg *config.Config, prefix string) migrate.ObjectStoreConfig {
	return migrate.ObjectStoreConfig{
		Endpoint:  cfg.Storage.Endpoint,
		AccessKey: cfg.Storage.AccessKey,
		SecretKey: cfg.Storage.SecretKey,
		Bucket:    cfg.Storage.Bucket,
		UseSSL:    cfg.Storage.UseSSL,
		Prefix:    prefix,
	}
}

// reportSinks returns the file sink for path plus the bucket sink when
// storage is configured. A bucket that cannot be reached is logged and
// skipped so the local report is still written.
func reportSinks(ctx context.Context, cfg *config.Config, path, label string, logger *slog.Logger) migrate.Sinks {
	sinks := migrate.Sinks{migrate.NewFileSink(path)}
	if cfg.Storage.Endpoint == "" {
		return sinks
	}
	obj, err := migrate.NewObjectSink(ctx, objectStoreConfig(cfg, cfg.Storage.ReportPrefix), label)
	if err != nil {
		logger.Warn("report upload disabled", "error", err)
		return sinks
	}
	return append(sinks, obj)
}

func newExchangeService(cfg *config.Config, t *target, reports migrate.ReportSink, logger *slog.Logger) *exchange.Service {
	return exchange.NewService(t.pool.DB(), t.store, exchange.Options{
		ProtectedTables: cfg.Migration.ProtectedTables,
		Concurrency:     cfg.Migration.Concurrency,
		Reports:         reports,
		Logger:          logger,
	})
}

// withSpinner runs fn behind a step spinner on stderr.
func withSpinner[T any](cmd *cobra.Command, msg string, fn func() (T, error)) (T, error) {
	sp := ui.NewStepSpinner(cmd.ErrOrStderr(), !isTerminal(cmd.ErrOrStderr()))
	sp.Start(msg)
	v, err := fn()
	if err != nil {
		sp.Fail()
		return v, err
	}
	sp.Done()
	return v, nil
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && ui.ColorEnabledFd(f.Fd())
}
