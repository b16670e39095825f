package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/mdddj/blog-new/internal/exchange"
	"github.com/mdddj/blog-new/internal/migrate"
	"github.com/mdddj/blog-new/internal/server"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the admin data-exchange API",
	Long: `Start the admin HTTP server:

  POST /api/admin/auth              exchange the admin password for a token
  GET  /api/admin/data/export       JSON bundle of the target database
  POST /api/admin/data/import       import a JSON bundle, returns the report
  POST /api/admin/data/import-sql   run {"sql": "..."} through the safety filter

With [backup] schedule set, a bundle is also exported on that cron schedule
to [backup] dir and, when [storage] is configured, to the bucket.`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().String("database-url", "", "Target Postgres URL")
	serveCmd.Flags().Int("port", 0, "Server port")
	serveCmd.Flags().String("host", "", "Server host")
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, logger, closeLog, err := loadConfig(cmd, "database-url", "port", "host")
	if err != nil {
		return err
	}
	defer closeLog()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	tgt, err := openTarget(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer tgt.Close()

	reports := reportSinks(ctx, cfg, cfg.Migration.ReportPath, "import", logger)
	svc := newExchangeService(cfg, tgt, reports, logger)

	if cfg.Backup.Schedule != "" {
		dest := exchange.BackupDest{Fs: afero.NewOsFs(), Dir: cfg.Backup.Dir}
		if cfg.Storage.Endpoint != "" {
			obj, err := migrate.NewObjectSink(ctx, objectStoreConfig(cfg, cfg.Storage.BackupPrefix), "backup")
			if err != nil {
				logger.Warn("backup upload disabled", "error", err)
			} else {
				dest.Objects, dest.Prefix = obj, cfg.Storage.BackupPrefix
			}
		}
		sched, err := exchange.NewScheduler(cfg.Backup.Schedule, func(ctx context.Context) error {
			_, err := svc.Backup(ctx, dest)
			return err
		}, logger)
		if err != nil {
			return fmt.Errorf("backup schedule: %w", err)
		}
		go sched.Run(ctx)
		logger.Info("scheduled backups enabled", "schedule", cfg.Backup.Schedule, "dir", cfg.Backup.Dir)
	}

	srv := server.New(cfg, logger, svc)
	errc := make(chan error, 1)
	go func() { errc <- srv.Start() }()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}
	if err := srv.Shutdown(context.WithoutCancel(ctx)); err != nil && !errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("shutting down: %w", err)
	}
	return <-errc
}
