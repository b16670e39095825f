package sqlscript

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
)

// Action is what the importer does with a statement.
type Action int

const (
	Execute Action = iota
	Drop           // silently ignored
	Reject         // refused and reported
)

func (a Action) String() string {
	switch a {
	case Execute:
		return "execute"
	case Drop:
		return "drop"
	case Reject:
		return "reject"
	default:
		return "unknown"
	}
}

// Decision is the filter's verdict on one statement. SQL is the statement as
// it should be executed (leading comments and backticks removed).
type Decision struct {
	Action Action
	Reason string
	SQL    string
}

// DefaultProtectedTables are never written by a raw import.
var DefaultProtectedTables = []string{"users"}

// Statements that only make sense to the dump's origin server, or that the
// target schema already covers.
var dropPrefixes = []string{
	"BEGIN",
	"COMMIT",
	"START TRANSACTION",
	"CREATE TABLE",
	"SET NAMES",
	"SET FOREIGN_KEY_CHECKS",
	"SET SQL_MODE",
	"SET TIME_ZONE",
	"SET UNIQUE_CHECKS",
	"SET AUTOCOMMIT",
	"SET CHARACTER_SET_CLIENT",
	"SET @OLD_",
	"SET @SAVED_",
	"LOCK TABLES",
	"UNLOCK TABLES",
}

var rejectPrefixes = []string{
	"DROP",
	"TRUNCATE",
	"CREATE DATABASE",
}

// Filter classifies script statements.
type Filter struct {
	protected *regexp.Regexp
}

// NewFilter returns a filter protecting the given tables (DefaultProtectedTables if none).
func NewFilter(protectedTables ...string) *Filter {
	if len(protectedTables) == 0 {
		protectedTables = DefaultProtectedTables
	}
	names := make([]string, 0, len(protectedTables))
	for _, t := range protectedTables {
		if t = strings.TrimSpace(t); t != "" {
			names = append(names, regexp.QuoteMeta(t))
		}
	}
	f := &Filter{}
	if len(names) > 0 {
		f.protected = regexp.MustCompile(`(?i)\b(?:INSERT\s+INTO|UPDATE|DELETE\s+FROM)\s+(?:ONLY\s+)?` +
			`(?:"?[A-Za-z_][A-Za-z0-9_]*"?\.)?"?(` + strings.Join(names, "|") + `)"?(?:[\s(;,]|$)`)
	}
	return f
}

// Classify decides what to do with one statement.
func (f *Filter) Classify(stmt string) Decision {
	body := stripLeadingComments(stmt)
	if body == "" {
		return Decision{Action: Drop, Reason: "comment"}
	}
	body = StripBackticks(body)
	code := maskLiterals(body)
	head := leadingWords(code)

	for _, p := range dropPrefixes {
		if hasWordPrefix(head, p) {
			return Decision{Action: Drop, Reason: strings.ToLower(p), SQL: body}
		}
	}
	for _, p := range rejectPrefixes {
		if hasWordPrefix(head, p) {
			return Decision{Action: Reject, Reason: p + " statements are not allowed", SQL: body}
		}
	}
	if f.protected != nil {
		if m := f.protected.FindStringSubmatch(code); m != nil {
			return Decision{Action: Reject, Reason: fmt.Sprintf("writes to protected table %s", strings.ToLower(m[1])), SQL: body}
		}
	}
	return Decision{Action: Execute, SQL: body}
}

// leadingWords upper-cases and single-spaces the start of a statement.
func leadingWords(s string) string {
	fields := strings.Fields(s)
	if len(fields) > 4 {
		fields = fields[:4]
	}
	return strings.ToUpper(strings.Join(fields, " "))
}

// hasWordPrefix reports whether head starts with prefix at a word boundary,
// so "DROP" matches "DROP TABLE" but not "DROPPED".
func hasWordPrefix(head, prefix string) bool {
	if !strings.HasPrefix(head, prefix) {
		return false
	}
	if len(head) == len(prefix) || strings.HasSuffix(prefix, "_") {
		return true
	}
	next := head[len(prefix)]
	return !isTagByte(next)
}

// SQLSTATEs for objects or rows that are already there.
var alreadyExistsCodes = map[string]bool{
	"23505": true, // unique_violation
	"42P07": true, // duplicate_table
	"42710": true, // duplicate_object
	"42P06": true, // duplicate_schema
	"42723": true, // duplicate_function
}

// IsAlreadyExists reports whether err means the statement's effect is
// already present, so a replayed import counts it as done.
func IsAlreadyExists(err error) bool {
	if err == nil {
		return false
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && alreadyExistsCodes[pgErr.Code] {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "already exists") ||
		strings.Contains(msg, "duplicate key") ||
		strings.Contains(msg, "unique constraint")
}
