package sqlscript

import (
	"context"
	"fmt"
	"log/slog"
)

// Executor runs one statement against the target database.
type Executor interface {
	Exec(ctx context.Context, sql string) (int64, error)
}

// Result is the outcome of one script import. Success is false only when a
// statement failed to execute; drops and rejections leave it true.
type Result struct {
	Success            bool     `json:"success"`
	StatementsExecuted int64    `json:"statements_executed"`
	StatementsDropped  int64    `json:"statements_dropped"`
	StatementsRejected int64    `json:"statements_rejected"`
	Errors             []string `json:"errors"`
}

// Importer runs raw SQL scripts statement by statement. No statement failure
// stops the run.
type Importer struct {
	exec   Executor
	filter *Filter
	resync func(context.Context) error
	logger *slog.Logger
}

// NewImporter creates an importer. resync, when non-nil, runs once after the
// last statement to move sequences past ids the script inserted.
func NewImporter(exec Executor, filter *Filter, resync func(context.Context) error, logger *slog.Logger) *Importer {
	if filter == nil {
		filter = NewFilter()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Importer{exec: exec, filter: filter, resync: resync, logger: logger}
}

// Import tokenizes and executes script.
func (im *Importer) Import(ctx context.Context, script string) Result {
	res := Result{Success: true, Errors: []string{}}

	stmts := Split(script)
	im.logger.Debug("sql import tokenized", "statements", len(stmts))

	for _, stmt := range stmts {
		if err := ctx.Err(); err != nil {
			res.Success = false
			res.Errors = append(res.Errors, fmt.Sprintf("import cancelled before statement %d: %v", stmt.Ordinal, err))
			break
		}

		d := im.filter.Classify(stmt.SQL)
		switch d.Action {
		case Drop:
			res.StatementsDropped++
			continue
		case Reject:
			res.StatementsRejected++
			res.Errors = append(res.Errors, fmt.Sprintf("Statement %d: rejected: %s", stmt.Ordinal, d.Reason))
			im.logger.Warn("sql import statement rejected", "statement", stmt.Ordinal, "reason", d.Reason)
			continue
		}

		if _, err := im.exec.Exec(ctx, d.SQL); err != nil {
			if IsAlreadyExists(err) {
				res.StatementsExecuted++
				continue
			}
			res.Success = false
			res.Errors = append(res.Errors, fmt.Sprintf("Statement %d: %v", stmt.Ordinal, err))
			im.logger.Debug("sql import statement failed", "statement", stmt.Ordinal, "error", err)
			continue
		}
		res.StatementsExecuted++
	}

	if im.resync != nil {
		if err := im.resync(context.WithoutCancel(ctx)); err != nil {
			im.logger.Warn("sequence resync after sql import failed", "error", err)
		}
	}

	im.logger.Info("sql import finished",
		"executed", res.StatementsExecuted,
		"dropped", res.StatementsDropped,
		"rejected", res.StatementsRejected,
		"errors", len(res.Errors))
	return res
}
