package blogmigrate

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	sq "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Store is the write side of a migration.
type Store interface {
	// Upsert inserts the row, or resolves a key conflict as u describes.
	Upsert(ctx context.Context, u Upsert) error
	// ResyncSequence moves the table's id sequence past max(id).
	ResyncSequence(ctx context.Context, table Entity) error
}

// PGStore writes to the Postgres schema through a pgx pool. It also serves
// raw SQL imports (sqlscript.Executor).
type PGStore struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

// NewPGStore wraps pool.
func NewPGStore(pool *pgxpool.Pool, logger *slog.Logger) *PGStore {
	if logger == nil {
		logger = slog.Default()
	}
	return &PGStore{pool: pool, logger: logger}
}

var psql = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

// buildUpsert renders u as INSERT ... ON CONFLICT with $n placeholders.
func buildUpsert(u Upsert) (string, []any, error) {
	if len(u.Columns) == 0 || len(u.Columns) != len(u.Values) {
		return "", nil, fmt.Errorf("upsert into %s: %d columns for %d values", u.Table, len(u.Columns), len(u.Values))
	}
	if len(u.Conflict) == 0 {
		return "", nil, fmt.Errorf("upsert into %s: no conflict key", u.Table)
	}

	conflict := make([]string, len(u.Conflict))
	for i, c := range u.Conflict {
		conflict[i] = pgx.Identifier{c}.Sanitize()
	}
	suffix := "ON CONFLICT (" + strings.Join(conflict, ", ") + ") DO NOTHING"
	if len(u.Update) > 0 {
		sets := make([]string, len(u.Update))
		for i, c := range u.Update {
			col := pgx.Identifier{c}.Sanitize()
			sets[i] = col + " = EXCLUDED." + col
		}
		suffix = "ON CONFLICT (" + strings.Join(conflict, ", ") + ") DO UPDATE SET " + strings.Join(sets, ", ")
	}

	cols := make([]string, len(u.Columns))
	for i, c := range u.Columns {
		cols[i] = pgx.Identifier{c}.Sanitize()
	}
	return psql.Insert(pgx.Identifier{u.Table}.Sanitize()).
		Columns(cols...).
		Values(u.Values...).
		Suffix(suffix).
		ToSql()
}

func (s *PGStore) Upsert(ctx context.Context, u Upsert) error {
	query, args, err := buildUpsert(u)
	if err != nil {
		return err
	}
	if _, err := s.pool.Exec(ctx, query, args...); err != nil {
		return describePgError(err)
	}
	return nil
}

// resyncSQL moves the id sequence of table so the next id is max(id)+1, or
// 1 for an empty table.
func resyncSQL(table Entity) (string, error) {
	if !table.known() || !table.HasSequence() {
		return "", fmt.Errorf("table %q has no id sequence", table)
	}
	return fmt.Sprintf(
		`SELECT setval(pg_get_serial_sequence('%s', 'id'), COALESCE(MAX(id), 1), MAX(id) IS NOT NULL) FROM %s`,
		string(table), pgx.Identifier{string(table)}.Sanitize()), nil
}

func (s *PGStore) ResyncSequence(ctx context.Context, table Entity) error {
	query, err := resyncSQL(table)
	if err != nil {
		return err
	}
	var next int64
	if err := s.pool.QueryRow(ctx, query).Scan(&next); err != nil {
		return fmt.Errorf("resyncing %s sequence: %w", table, err)
	}
	s.logger.Debug("sequence resynced", "table", table, "value", next)
	return nil
}

// ResyncAll resyncs every table with an id sequence. Every table is tried;
// the failures are joined.
func (s *PGStore) ResyncAll(ctx context.Context) error {
	var errs []error
	for _, e := range AllEntities {
		if !e.HasSequence() {
			continue
		}
		if err := s.ResyncSequence(ctx, e); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Exec runs one caller-supplied statement over the simple protocol, so the
// text goes to the server exactly as written.
func (s *PGStore) Exec(ctx context.Context, sql string) (int64, error) {
	tag, err := s.pool.Exec(ctx, sql, pgx.QueryExecModeSimpleProtocol)
	if err != nil {
		return 0, describePgError(err)
	}
	return tag.RowsAffected(), nil
}

// describePgError appends the detail line of a Postgres error, which names
// the offending key for constraint violations.
func describePgError(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Detail != "" {
		return fmt.Errorf("%w (%s)", err, pgErr.Detail)
	}
	return err
}
