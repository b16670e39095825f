package blogmigrate

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/mdddj/blog-new/internal/migrate"
	"golang.org/x/sync/errgroup"
)

// Options configures a Migrator.
type Options struct {
	// Entities limits the run to these entity types. Empty means all.
	Entities []Entity
	// Concurrency > 1 upserts the rows of one entity type in parallel.
	// Directories always run serially.
	Concurrency int
	Progress    migrate.ProgressReporter
	Logger      *slog.Logger
	// Now is the clock used for the run timestamps and missing row
	// timestamps. Defaults to time.Now.
	Now func() time.Time
}

// Migrator moves rows from a Source into a Store, one entity type at a time
// in dependency order.
type Migrator struct {
	source   Source
	store    Store
	plan     []Entity
	opts     Options
	logger   *slog.Logger
	progress migrate.ProgressReporter
}

// New validates the options and plans the run.
func New(source Source, store Store, opts Options) (*Migrator, error) {
	if source == nil {
		return nil, errors.New("migration source is required")
	}
	if store == nil {
		return nil, errors.New("migration store is required")
	}
	if opts.Concurrency < 0 {
		return nil, fmt.Errorf("concurrency must be >= 0, got %d", opts.Concurrency)
	}
	entities := opts.Entities
	if len(entities) == 0 {
		entities = AllEntities
	}
	for _, e := range entities {
		if !e.known() {
			return nil, fmt.Errorf("unknown table %q", e)
		}
	}
	plan, err := Plan(entities)
	if err != nil {
		return nil, err
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Progress == nil {
		opts.Progress = migrate.NopReporter{}
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Migrator{
		source:   source,
		store:    store,
		plan:     plan,
		opts:     opts,
		logger:   opts.Logger,
		progress: opts.Progress,
	}, nil
}

// Plan returns the entity types Run will process, in order.
func (m *Migrator) Plan() []Entity {
	ps, partial := m.source.(partialSource)
	if !partial {
		return append([]Entity(nil), m.plan...)
	}
	var out []Entity
	for _, e := range m.plan {
		if ps.Provides(e) {
			out = append(out, e)
		}
	}
	return out
}

// Run migrates every planned entity type and returns the report. Row
// problems and per-type read errors are recorded in the report; Run only
// returns an error when ctx is cancelled, together with the partial report.
func (m *Migrator) Run(ctx context.Context) (*migrate.Report, error) {
	now := m.opts.Now().UTC()
	report := migrate.NewReport(now)
	plan := m.Plan()

	m.logger.Info("migration started", "run_id", report.RunID, "tables", len(plan))
	for i, e := range plan {
		if err := ctx.Err(); err != nil {
			report.AddError("migration cancelled before %s: %v", e, err)
			break
		}
		phase := migrate.Phase{Name: string(e), Index: i + 1, Total: len(plan)}
		start := time.Now()

		result, err := m.migrateEntity(ctx, e, phase, now)
		if err != nil {
			m.logger.Error("table migration failed", "table", e, "error", err)
			m.progress.Warn(fmt.Sprintf("%s migration failed: %v", e, err))
			report.AddError("%s migration failed: %v", e, err)
			continue
		}
		report.Add(result)
		m.progress.CompletePhase(phase, result, time.Since(start))

		success, failed, skipped := result.Counts()
		m.logger.Info("table migrated", "table", e,
			"success", success, "failed", failed, "skipped", skipped)

		if e.HasSequence() {
			if err := m.store.ResyncSequence(ctx, e); err != nil {
				m.logger.Warn("sequence resync failed", "table", e, "error", err)
				m.progress.Warn(fmt.Sprintf("could not resync %s sequence: %v", e, err))
				report.AddError("%s sequence resync failed: %v", e, err)
			}
		}
	}

	report.Finalize(m.opts.Now().UTC())
	m.logger.Info("migration finished", "run_id", report.RunID,
		"success", report.TotalSuccess, "failed", report.TotalFailed, "skipped", report.TotalSkipped)
	return report, ctx.Err()
}

func (m *Migrator) migrateEntity(ctx context.Context, e Entity, phase migrate.Phase, now time.Time) (*migrate.TableResult, error) {
	switch e {
	case Categories:
		return load(ctx, m, phase, now, m.source.Categories, TransformCategory)
	case Tags:
		return load(ctx, m, phase, now, m.source.Tags, TransformTag)
	case Blogs:
		return load(ctx, m, phase, now, m.source.Blogs, TransformBlog)
	case BlogTags:
		return load(ctx, m, phase, now, m.source.BlogTags, TransformBlogTag)
	case Directories:
		rows, err := m.source.Directories(ctx)
		if err != nil {
			return nil, err
		}
		return m.migrateDirectories(ctx, phase, rows, now), nil
	case Documents:
		return load(ctx, m, phase, now, m.source.Documents, TransformDocument)
	case Files:
		return load(ctx, m, phase, now, m.source.Files, TransformFile)
	case FriendLinks:
		return load(ctx, m, phase, now, m.source.FriendLinks, TransformFriendLink)
	case Projects:
		return load(ctx, m, phase, now, m.source.Projects, TransformProject)
	case Texts:
		return load(ctx, m, phase, now, m.source.Texts, TransformText)
	case Users:
		return load(ctx, m, phase, now, m.source.Users, TransformUser)
	}
	return nil, fmt.Errorf("unknown table %q", e)
}

type transformFunc[T any] func(T, time.Time) (Record, error)

func load[T any](ctx context.Context, m *Migrator, phase migrate.Phase, now time.Time,
	read func(context.Context) ([]T, error), transform transformFunc[T]) (*migrate.TableResult, error) {
	rows, err := read(ctx)
	if err != nil {
		return nil, err
	}
	return runRows(ctx, m, phase, rows, transform, now), nil
}

// runRows gives every row exactly one outcome.
func runRows[T any](ctx context.Context, m *Migrator, phase migrate.Phase, rows []T, transform transformFunc[T], now time.Time) *migrate.TableResult {
	result := migrate.NewTableResult(phase.Name, len(rows))
	m.progress.StartPhase(phase, len(rows))

	if m.opts.Concurrency <= 1 {
		for i, row := range rows {
			result.Record(apply(ctx, m, row, transform, now))
			m.progress.Progress(phase, i+1, len(rows))
		}
		return result
	}

	// Outcomes are recorded in source order once all workers finish.
	outcomes := make([]migrate.Outcome, len(rows))
	var done atomic.Int64
	var g errgroup.Group
	g.SetLimit(m.opts.Concurrency)
	for i, row := range rows {
		g.Go(func() error {
			outcomes[i] = apply(ctx, m, row, transform, now)
			m.progress.Progress(phase, int(done.Add(1)), len(rows))
			return nil
		})
	}
	_ = g.Wait()
	for _, o := range outcomes {
		result.Record(o)
	}
	return result
}

func apply[T any](ctx context.Context, m *Migrator, row T, transform transformFunc[T], now time.Time) migrate.Outcome {
	rec, err := transform(row, now)
	var skip *SkipError
	if errors.As(err, &skip) {
		m.logger.Debug("row skipped", "reason", skip.Reason)
		return migrate.Skip(skip.Reason)
	}
	if err != nil {
		return migrate.Fail(err.Error())
	}
	if err := m.store.Upsert(ctx, rec.Upsert()); err != nil {
		reason := fmt.Sprintf("%s: %v", rec.Label(), err)
		m.logger.Debug("row failed", "reason", reason)
		return migrate.Fail(reason)
	}
	return migrate.Succeeded()
}

// migrateDirectories writes parents before children. Rows whose parent never
// made it into the target are skipped.
func (m *Migrator) migrateDirectories(ctx context.Context, phase migrate.Phase, rows []SourceDirectory, now time.Time) *migrate.TableResult {
	result := migrate.NewTableResult(phase.Name, len(rows))
	m.progress.StartPhase(phase, len(rows))

	done := 0
	leftover := resolveHierarchy(rows,
		func(d SourceDirectory) int64 { return d.ID },
		func(d SourceDirectory) *int64 { return d.ParentID },
		func(d SourceDirectory) bool {
			o := apply(ctx, m, d, TransformDirectory, now)
			result.Record(o)
			done++
			m.progress.Progress(phase, done, len(rows))
			return o.Kind == migrate.Success
		})

	for _, d := range leftover {
		result.Record(migrate.Skip(fmt.Sprintf("Directory %d has missing parent %d, skipped", d.ID, *d.ParentID)))
		done++
		m.progress.Progress(phase, done, len(rows))
	}
	return result
}
