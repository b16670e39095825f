// Package sqlscript splits raw SQL scripts into statements, screens them for
// destructive or credential-touching operations and executes the rest
// against the target database.
package sqlscript

import "strings"

// Statement is one executable statement of a script. Ordinal is its 1-based
// position among the non-empty statements.
type Statement struct {
	Ordinal int
	SQL     string
}

type region int

const (
	code region = iota
	quoted
	dollarQuoted
	comment
)

// walk feeds s to visit as consecutive spans. Spans in the code region are a
// single byte; string literals, dollar-quoted blocks and comments are
// delivered whole. An unterminated literal or comment runs to end of input.
func walk(s string, visit func(span string, r region)) {
	for i := 0; i < len(s); {
		end, r := i+1, code
		switch {
		case s[i] == '\'':
			end, r = quotedEnd(s, i), quoted
		case s[i] == '$' && (i == 0 || !isTagByte(s[i-1])):
			if tag := dollarTag(s, i); tag != "" {
				end, r = dollarEnd(s, i, tag), dollarQuoted
			}
		case strings.HasPrefix(s[i:], "--"):
			end, r = lineCommentEnd(s, i), comment
		case strings.HasPrefix(s[i:], "/*"):
			end, r = blockCommentEnd(s, i), comment
		}
		visit(s[i:end], r)
		i = end
	}
}

// quotedEnd returns the index just past the quote closing the literal that
// opens at s[i]. A doubled quote or a backslash (as mysqldump writes them)
// escapes the next character.
func quotedEnd(s string, i int) int {
	for j := i + 1; j < len(s); j++ {
		if s[j] == '\\' {
			j++
			continue
		}
		if s[j] != '\'' {
			continue
		}
		if j+1 < len(s) && s[j+1] == '\'' {
			j++
			continue
		}
		return j + 1
	}
	return len(s)
}

// dollarTag returns the "$tag$" opening at s[i], or "" if s[i] does not start one.
func dollarTag(s string, i int) string {
	for j := i + 1; j < len(s); j++ {
		c := s[j]
		if c == '$' {
			return s[i : j+1]
		}
		if !isTagByte(c) {
			return ""
		}
	}
	return ""
}

func isTagByte(c byte) bool {
	return c == '_' || ('a' <= c && c <= 'z') || ('A' <= c && c <= 'Z') || ('0' <= c && c <= '9')
}

func dollarEnd(s string, i int, tag string) int {
	body := i + len(tag)
	if k := strings.Index(s[body:], tag); k >= 0 {
		return body + k + len(tag)
	}
	return len(s)
}

func lineCommentEnd(s string, i int) int {
	if k := strings.IndexByte(s[i:], '\n'); k >= 0 {
		return i + k
	}
	return len(s)
}

func blockCommentEnd(s string, i int) int {
	if k := strings.Index(s[i+2:], "*/"); k >= 0 {
		return i + 2 + k + 2
	}
	return len(s)
}

// Split breaks script into statements at semicolons outside string literals,
// dollar-quoted blocks and comments. Whitespace-only fragments are dropped
// before numbering; a trailing fragment without a semicolon is kept.
func Split(script string) []Statement {
	var (
		stmts   []Statement
		current strings.Builder
	)
	flush := func() {
		if sql := strings.TrimSpace(current.String()); sql != "" {
			stmts = append(stmts, Statement{Ordinal: len(stmts) + 1, SQL: sql})
		}
		current.Reset()
	}
	walk(script, func(span string, r region) {
		if r == code && span == ";" {
			flush()
			return
		}
		current.WriteString(span)
	})
	flush()
	return stmts
}

// maskLiterals blanks out string literals, dollar-quoted bodies and comments
// so keyword checks only see code.
func maskLiterals(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	walk(s, func(span string, r region) {
		if r == code {
			b.WriteString(span)
			return
		}
		b.WriteString(strings.Repeat(" ", len(span)))
	})
	return b.String()
}

// StripBackticks removes MySQL identifier quotes outside literals.
func StripBackticks(s string) string {
	if !strings.Contains(s, "`") {
		return s
	}
	var b strings.Builder
	b.Grow(len(s))
	walk(s, func(span string, r region) {
		if r == code && span == "`" {
			return
		}
		b.WriteString(span)
	})
	return b.String()
}

// stripLeadingComments drops the comments (and whitespace) a statement starts
// with, as dump tools put them before the statement they describe.
func stripLeadingComments(s string) string {
	for {
		s = strings.TrimSpace(s)
		switch {
		case strings.HasPrefix(s, "--"):
			s = s[lineCommentEnd(s, 0):]
		case strings.HasPrefix(s, "/*"):
			s = s[blockCommentEnd(s, 0):]
		default:
			return s
		}
	}
}
