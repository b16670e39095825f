// Package migrate holds the pieces shared by every data-moving command:
// progress reporting, per-row outcomes, the run report and its sinks.
package migrate

import (
	"fmt"
	"io"
	"strings"
	"sync"
	"time"
)

// Phase is one entity type being moved, e.g. "categories" (3 of 11).
type Phase struct {
	Name  string
	Index int // 1-based
	Total int
}

// ProgressReporter receives progress updates from a migrator.
type ProgressReporter interface {
	// StartPhase is called once the source rows of a phase have been read.
	StartPhase(phase Phase, totalItems int)
	// Progress is called as rows are processed within a phase.
	Progress(phase Phase, completed int, totalItems int)
	// CompletePhase is called when every row of a phase has an outcome.
	CompletePhase(phase Phase, result *TableResult, elapsed time.Duration)
	// Warn reports a non-fatal, non-row problem (e.g. a failed resync).
	Warn(msg string)
}

// CLIReporter prints progress to a terminal writer.
type CLIReporter struct {
	w  io.Writer
	mu sync.Mutex
}

// NewCLIReporter creates a reporter that writes to w.
func NewCLIReporter(w io.Writer) *CLIReporter {
	return &CLIReporter{w: w}
}

func (r *CLIReporter) StartPhase(phase Phase, totalItems int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	fmt.Fprintf(r.w, "  [%d/%d] %-14s found %d", phase.Index, phase.Total, phase.Name, totalItems)
}

func (r *CLIReporter) Progress(phase Phase, completed int, totalItems int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if totalItems > 0 {
		fmt.Fprintf(r.w, "\r  [%d/%d] %-14s %d/%d",
			phase.Index, phase.Total, phase.Name, completed, totalItems)
	}
}

func (r *CLIReporter) CompletePhase(phase Phase, result *TableResult, elapsed time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	success, failed, skipped := result.Counts()
	fmt.Fprintf(r.w, "\r  [%d/%d] %-14s %d ok, %d failed, %d skipped  (%s)\n",
		phase.Index, phase.Total, phase.Name, success, failed, skipped, formatDuration(elapsed))
}

func (r *CLIReporter) Warn(msg string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	fmt.Fprintf(r.w, "  Warning: %s\n", msg)
}

// NopReporter discards all progress updates (used in tests, --json mode and
// the HTTP endpoints).
type NopReporter struct{}

func (NopReporter) StartPhase(Phase, int)                            {}
func (NopReporter) Progress(Phase, int, int)                         {}
func (NopReporter) CompletePhase(Phase, *TableResult, time.Duration) {}
func (NopReporter) Warn(string)                                      {}

func formatDuration(d time.Duration) string {
	if d < time.Second {
		return fmt.Sprintf("%dms", d.Milliseconds())
	}
	return fmt.Sprintf("%.1fs", d.Seconds())
}

// SourceType identifies the kind of legacy data source.
type SourceType int

const (
	SourceUnknown SourceType = iota
	SourceMySQL              // legacy MySQL server
	SourceSQLite             // SQLite copy of the legacy database
	SourceBundle             // JSON export bundle
)

func (s SourceType) String() string {
	switch s {
	case SourceMySQL:
		return "MySQL"
	case SourceSQLite:
		return "SQLite"
	case SourceBundle:
		return "JSON bundle"
	default:
		return "unknown"
	}
}

// DetectSource determines the source type from a --source-url value.
//
// Detection rules:
//   - mysql:// URL or a go-sql-driver DSN ("user:pass@tcp(host)/db") → MySQL
//   - sqlite:// / file: URL or a path ending in .db, .sqlite, .sqlite3 → SQLite
//   - path ending in .json → JSON bundle
func DetectSource(from string) SourceType {
	lower := strings.ToLower(from)
	switch {
	case strings.HasPrefix(lower, "mysql://"):
		return SourceMySQL
	case strings.Contains(from, "@tcp(") || strings.Contains(from, "@unix("):
		return SourceMySQL
	case strings.HasPrefix(lower, "sqlite://"), strings.HasPrefix(lower, "file:"):
		return SourceSQLite
	case strings.HasSuffix(lower, ".json"):
		return SourceBundle
	}
	for _, ext := range []string{".db", ".sqlite", ".sqlite3"} {
		if strings.HasSuffix(lower, ext) {
			return SourceSQLite
		}
	}
	return SourceUnknown
}

// FormatBytes formats a byte count as a human-readable string (B, KB, MB, GB).
func FormatBytes(b int64) string {
	switch {
	case b >= 1<<30:
		return fmt.Sprintf("%.1f GB", float64(b)/(1<<30))
	case b >= 1<<20:
		return fmt.Sprintf("%.1f MB", float64(b)/(1<<20))
	case b >= 1<<10:
		return fmt.Sprintf("%.1f KB", float64(b)/(1<<10))
	default:
		return fmt.Sprintf("%d B", b)
	}
}
