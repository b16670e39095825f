package migrate

import (
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// OutcomeKind is the result class of one source row.
type OutcomeKind int

const (
	Success OutcomeKind = iota
	Skipped
	Failed
)

func (k OutcomeKind) String() string {
	switch k {
	case Success:
		return "success"
	case Skipped:
		return "skipped"
	case Failed:
		return "failed"
	default:
		return "unknown"
	}
}

// Outcome records what happened to a single source row. Reason is empty for
// Success and human-readable otherwise.
type Outcome struct {
	Kind   OutcomeKind
	Reason string
}

// Succeeded returns a Success outcome.
func Succeeded() Outcome { return Outcome{Kind: Success} }

// Skip returns a Skipped outcome: the row failed a business rule.
func Skip(reason string) Outcome { return Outcome{Kind: Skipped, Reason: reason} }

// Fail returns a Failed outcome: the target rejected the write.
func Fail(reason string) Outcome { return Outcome{Kind: Failed, Reason: reason} }

// TableResult aggregates the outcomes of one entity type. It is safe for
// concurrent Record calls.
type TableResult struct {
	mu sync.Mutex

	Table        string   `json:"table_name"`
	SourceCount  int64    `json:"source_count"`
	SuccessCount int64    `json:"success_count"`
	FailedCount  int64    `json:"failed_count"`
	SkippedCount int64    `json:"skipped_count"`
	Errors       []string `json:"errors"`
}

// NewTableResult starts a result for table with the number of source rows read.
func NewTableResult(table string, sourceCount int) *TableResult {
	return &TableResult{Table: table, SourceCount: int64(sourceCount), Errors: []string{}}
}

// Record counts o in exactly one bucket and keeps its reason.
func (r *TableResult) Record(o Outcome) {
	r.mu.Lock()
	defer r.mu.Unlock()
	switch o.Kind {
	case Success:
		r.SuccessCount++
	case Skipped:
		r.SkippedCount++
	default:
		r.FailedCount++
	}
	if o.Kind != Success && o.Reason != "" {
		r.Errors = append(r.Errors, o.Reason)
	}
}

// Counts returns success, failed and skipped counts.
func (r *TableResult) Counts() (success, failed, skipped int64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.SuccessCount, r.FailedCount, r.SkippedCount
}

// Balanced reports whether every source row has exactly one outcome.
func (r *TableResult) Balanced() bool {
	s, f, k := r.Counts()
	return s+f+k == r.SourceCount
}

// Report is the result of one migration or import run.
type Report struct {
	RunID        string         `json:"run_id"`
	StartedAt    time.Time      `json:"started_at"`
	CompletedAt  *time.Time     `json:"completed_at,omitempty"`
	Tables       []*TableResult `json:"tables"`
	Errors       []string       `json:"errors"`
	TotalSuccess int64          `json:"total_success"`
	TotalFailed  int64          `json:"total_failed"`
	TotalSkipped int64          `json:"total_skipped"`
}

// NewReport starts a report with a fresh run id.
func NewReport(startedAt time.Time) *Report {
	return &Report{
		RunID:     uuid.NewString(),
		StartedAt: startedAt.UTC(),
		Tables:    []*TableResult{},
		Errors:    []string{},
	}
}

// Add appends a finished table result, keeping dependency order.
func (r *Report) Add(t *TableResult) {
	r.Tables = append(r.Tables, t)
}

// AddError records a run-level error that is not tied to one row.
func (r *Report) AddError(format string, args ...any) {
	r.Errors = append(r.Errors, fmt.Sprintf(format, args...))
}

// Finalize computes the totals and marks the report complete.
func (r *Report) Finalize(at time.Time) {
	r.TotalSuccess, r.TotalFailed, r.TotalSkipped = 0, 0, 0
	for _, t := range r.Tables {
		s, f, k := t.Counts()
		r.TotalSuccess += s
		r.TotalFailed += f
		r.TotalSkipped += k
	}
	done := at.UTC()
	r.CompletedAt = &done
}

// Table returns the result for name, or nil.
func (r *Report) Table(name string) *TableResult {
	for _, t := range r.Tables {
		if t.Table == name {
			return t
		}
	}
	return nil
}

// JSON renders the machine-readable form.
func (r *Report) JSON() ([]byte, error) {
	return json.MarshalIndent(r, "", "  ")
}

// Markdown renders the human-readable form.
func (r *Report) Markdown() string {
	var b strings.Builder

	b.WriteString("# Data Migration Report\n\n")
	fmt.Fprintf(&b, "**Run:** %s\n", r.RunID)
	fmt.Fprintf(&b, "**Started:** %s\n", r.StartedAt.Format(time.RFC3339))
	if r.CompletedAt != nil {
		fmt.Fprintf(&b, "**Completed:** %s\n\n", r.CompletedAt.Format(time.RFC3339))
	} else {
		b.WriteString("**Completed:** (in progress)\n\n")
	}

	b.WriteString("## Summary\n\n")
	b.WriteString("| Metric | Count |\n")
	b.WriteString("|--------|-------|\n")
	fmt.Fprintf(&b, "| Total Success | %d |\n", r.TotalSuccess)
	fmt.Fprintf(&b, "| Total Failed | %d |\n", r.TotalFailed)
	fmt.Fprintf(&b, "| Total Skipped | %d |\n\n", r.TotalSkipped)

	b.WriteString("## Table Details\n\n")
	b.WriteString("| Table | Source | Success | Failed | Skipped |\n")
	b.WriteString("|-------|--------|---------|--------|---------|\n")
	for _, t := range r.Tables {
		s, f, k := t.Counts()
		fmt.Fprintf(&b, "| %s | %d | %d | %d | %d |\n", t.Table, t.SourceCount, s, f, k)
	}

	b.WriteString("\n## Errors\n\n")
	if len(r.Errors) == 0 {
		b.WriteString("No global errors.\n\n")
	} else {
		for _, e := range r.Errors {
			fmt.Fprintf(&b, "- %s\n", e)
		}
		b.WriteString("\n")
	}

	for _, t := range r.Tables {
		if len(t.Errors) == 0 {
			continue
		}
		fmt.Fprintf(&b, "### %s Errors\n\n", t.Table)
		for _, e := range t.Errors {
			fmt.Fprintf(&b, "- %s\n", e)
		}
		b.WriteString("\n")
	}
	return b.String()
}
