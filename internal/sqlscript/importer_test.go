package sqlscript

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/mdddj/blog-new/internal/testutil"
)

// fakeExec records executed SQL and fails statements containing a marker.
type fakeExec struct {
	executed []string
	failures map[string]error
}

func (f *fakeExec) Exec(_ context.Context, sql string) (int64, error) {
	for marker, err := range f.failures {
		if strings.Contains(sql, marker) {
			return 0, err
		}
	}
	f.executed = append(f.executed, sql)
	return 1, nil
}

func TestImportMixedScript(t *testing.T) {
	t.Parallel()
	exec := &fakeExec{failures: map[string]error{
		"'dup'":   &pgconn.PgError{Code: "23505", Message: "duplicate key value violates unique constraint"},
		"bad_col": errors.New(`column "bad_col" does not exist`),
	}}
	resynced := 0
	im := NewImporter(exec, NewFilter(), func(context.Context) error {
		resynced++
		return nil
	}, testutil.DiscardLogger())

	script := strings.Join([]string{
		"SET NAMES utf8mb4",
		"-- Table data\nINSERT INTO `tags` VALUES (1,'go')",
		"INSERT INTO tags VALUES (2,'dup')",
		"DELETE FROM users WHERE id=1",
		"UPDATE blogs SET bad_col = 1",
		"DROP TABLE blogs",
		"INSERT INTO tags VALUES (3,'rust')",
	}, ";\n") + ";"

	res := im.Import(context.Background(), script)

	testutil.False(t, res.Success)
	testutil.Equal(t, int64(3), res.StatementsExecuted)
	testutil.Equal(t, int64(1), res.StatementsDropped)
	testutil.Equal(t, int64(2), res.StatementsRejected)
	testutil.SliceEqual(t, []string{
		"Statement 4: rejected: writes to protected table users",
		`Statement 5: column "bad_col" does not exist`,
		"Statement 6: rejected: DROP statements are not allowed",
	}, res.Errors)
	testutil.SliceEqual(t, []string{
		"INSERT INTO tags VALUES (1,'go')",
		"INSERT INTO tags VALUES (3,'rust')",
	}, exec.executed)
	testutil.Equal(t, 1, resynced)
}

func TestImportRejectedNeverExecutes(t *testing.T) {
	t.Parallel()
	exec := &fakeExec{}
	im := NewImporter(exec, nil, nil, testutil.DiscardLogger())

	res := im.Import(context.Background(), "DELETE FROM users WHERE id=1")

	testutil.True(t, res.Success, "rejections alone keep success")
	testutil.Equal(t, int64(0), res.StatementsExecuted)
	testutil.SliceLen(t, exec.executed, 0)
	testutil.SliceLen(t, res.Errors, 1)
}

func TestImportDuplicateCountsAsExecuted(t *testing.T) {
	t.Parallel()
	exec := &fakeExec{failures: map[string]error{
		"tags": errors.New(`ERROR: duplicate key value violates unique constraint "tags_pkey" (SQLSTATE 23505)`),
	}}
	im := NewImporter(exec, nil, nil, testutil.DiscardLogger())

	res := im.Import(context.Background(), "INSERT INTO tags VALUES (1,'go');")

	testutil.True(t, res.Success)
	testutil.Equal(t, int64(1), res.StatementsExecuted)
	testutil.SliceLen(t, res.Errors, 0)
}

func TestImportResyncFailureIsNotFatal(t *testing.T) {
	t.Parallel()
	im := NewImporter(&fakeExec{}, nil, func(context.Context) error {
		return errors.New("permission denied for sequence")
	}, testutil.DiscardLogger())

	res := im.Import(context.Background(), "INSERT INTO tags VALUES (1,'go')")

	testutil.True(t, res.Success)
	testutil.Equal(t, int64(1), res.StatementsExecuted)
}

func TestImportCancelled(t *testing.T) {
	t.Parallel()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	exec := &fakeExec{}
	im := NewImporter(exec, nil, nil, testutil.DiscardLogger())

	res := im.Import(ctx, "SELECT 1; SELECT 2;")

	testutil.False(t, res.Success)
	testutil.SliceLen(t, exec.executed, 0)
	testutil.SliceLen(t, res.Errors, 1)
	testutil.Contains(t, res.Errors[0], "cancelled before statement 1")
}

func TestImportEmptyScript(t *testing.T) {
	t.Parallel()
	res := NewImporter(&fakeExec{}, nil, nil, testutil.DiscardLogger()).Import(context.Background(), "  ;; ")
	testutil.True(t, res.Success)
	testutil.Equal(t, int64(0), res.StatementsExecuted)
	testutil.NotNil(t, res.Errors)
}
