// Package exchange runs bulk data exchange against the target database:
// bundle export and import, raw SQL import and bundle backups.
package exchange

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/mdddj/blog-new/internal/blogmigrate"
	"github.com/mdddj/blog-new/internal/migrate"
	"github.com/mdddj/blog-new/internal/sqlscript"
	"github.com/spf13/afero"
)

// Target is the database the service writes to. PGStore implements it.
type Target interface {
	blogmigrate.Store
	sqlscript.Executor
	ResyncAll(ctx context.Context) error
}

// Options configures a Service.
type Options struct {
	// ProtectedTables reject raw SQL INSERT INTO, UPDATE and DELETE FROM
	// statements that target them. DROP and TRUNCATE are rejected for every table.
	ProtectedTables []string
	Concurrency     int
	// Reports, when set, receives the report of every bundle import.
	Reports migrate.ReportSink
	Logger  *slog.Logger
	Now     func() time.Time
}

// Service is shared by the CLI and the admin HTTP server.
type Service struct {
	q      blogmigrate.Querier
	target Target
	filter *sqlscript.Filter
	opts   Options
	logger *slog.Logger
}

func NewService(q blogmigrate.Querier, target Target, opts Options) *Service {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Service{
		q:      q,
		target: target,
		filter: sqlscript.NewFilter(opts.ProtectedTables...),
		opts:   opts,
		logger: opts.Logger,
	}
}

// Export reads every exportable table into a bundle.
func (s *Service) Export(ctx context.Context) (*blogmigrate.Bundle, error) {
	b, err := blogmigrate.Export(ctx, s.q, s.opts.Now())
	if err != nil {
		return nil, err
	}
	s.logger.Info("bundle exported", "sections", len(b.Sections()), "blogs", len(b.Blogs))
	return b, nil
}

// ImportBundle upserts the sections present in b. progress may be nil.
// The report is returned even when the run was cancelled.
func (s *Service) ImportBundle(ctx context.Context, b *blogmigrate.Bundle, progress migrate.ProgressReporter) (*migrate.Report, error) {
	if b == nil {
		return nil, errors.New("bundle is required")
	}
	m, err := blogmigrate.New(blogmigrate.NewBundleSource(b), s.target, blogmigrate.Options{
		Concurrency: s.opts.Concurrency,
		Progress:    progress,
		Logger:      s.logger,
		Now:         s.opts.Now,
	})
	if err != nil {
		return nil, err
	}
	report, runErr := m.Run(ctx)
	if report != nil && s.opts.Reports != nil {
		if err := s.opts.Reports.Save(context.WithoutCancel(ctx), report); err != nil {
			s.logger.Warn("saving import report failed", "run_id", report.RunID, "error", err)
		}
	}
	return report, runErr
}

// ImportSQL runs a raw SQL script through the safety filter.
func (s *Service) ImportSQL(ctx context.Context, script string) sqlscript.Result {
	return sqlscript.NewImporter(s.target, s.filter, s.target.ResyncAll, s.logger).Import(ctx, script)
}

// BackupDest says where Backup writes. Either field may be empty.
type BackupDest struct {
	Fs  afero.Fs
	Dir string

	Objects *migrate.ObjectSink
	Prefix  string
}

// Backup exports a bundle and writes it to every configured destination.
// It returns the file path or object key of each copy written.
func (s *Service) Backup(ctx context.Context, dest BackupDest) ([]string, error) {
	if dest.Dir == "" && dest.Objects == nil {
		return nil, errors.New("backup has no destination")
	}
	b, err := s.Export(ctx)
	if err != nil {
		return nil, err
	}
	data, err := json.MarshalIndent(b, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encoding bundle: %w", err)
	}
	stamp := b.ExportedAt.UTC().Format("20060102-150405")

	var written []string
	if dest.Dir != "" {
		fs := dest.Fs
		if fs == nil {
			fs = afero.NewOsFs()
		}
		if err := fs.MkdirAll(dest.Dir, 0o755); err != nil {
			return written, fmt.Errorf("creating backup directory: %w", err)
		}
		p := filepath.Join(dest.Dir, "backup-"+stamp+".json")
		if err := afero.WriteFile(fs, p, data, 0o644); err != nil {
			return written, fmt.Errorf("writing backup %s: %w", p, err)
		}
		written = append(written, p)
	}
	if dest.Objects != nil {
		key := migrate.ObjectKey(dest.Prefix, "backup", stamp, ".json")
		if err := dest.Objects.Put(ctx, key, data, "application/json"); err != nil {
			return written, err
		}
		written = append(written, key)
	}
	s.logger.Info("backup written", "copies", written)
	return written, nil
}
