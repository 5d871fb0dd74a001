// Package guardrail statically validates candidate SQL before execution.
//
// The checks are deliberately conservative text heuristics, not a SQL parser:
// they may reject safe queries that merely mention a blocked keyword, but they
// never pass the literal keyword forms on the denylist.
package guardrail

import (
	"fmt"
	"strings"
	"unicode"
)

type Kind string

const (
	KindUnsafeSQL  Kind = "unsafe_sql"
	KindWrongTable Kind = "wrong_table"
)

// Error reports why a candidate statement was rejected.
type Error struct {
	Kind    Kind
	Message string
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// Statements must start with SELECT and must not contain any of these anywhere
// in their lower-cased text. Substring matching over-rejects by design.
var blockedKeywords = []string{
	"insert", "update", "delete", "drop", "alter", "create",
	"attach", "copy", "pragma", "install", "load", "export",
}

// ValidateAndNormalize checks that sql is a single safe SELECT scoped to
// allowedTable and guarantees a row-count cap: statements without a LIMIT get
// " LIMIT <defaultLimit>;" appended. Normalization is idempotent.
func ValidateAndNormalize(sql, allowedTable string, defaultLimit int) (string, error) {
	if !IsSafeSelect(sql) {
		return "", &Error{Kind: KindUnsafeSQL, Message: "only single SELECT statements are allowed"}
	}
	if !ReferencesAllowedTable(sql, allowedTable) {
		return "", &Error{Kind: KindWrongTable, Message: fmt.Sprintf("query must reference only %s", allowedTable)}
	}
	return EnsureLimit(sql, defaultLimit), nil
}

// IsSafeSelect reports whether the trimmed, case-folded statement starts with
// "select" and contains no blocked keyword as a substring.
func IsSafeSelect(sql string) bool {
	lowered := strings.ToLower(strings.TrimSpace(sql))
	if !strings.HasPrefix(lowered, "select") {
		return false
	}
	for _, keyword := range blockedKeywords {
		if strings.Contains(lowered, keyword) {
			return false
		}
	}
	return true
}

// ReferencesAllowedTable requires the allowed table name to appear in the
// lower-cased statement text. This is a coarse substring heuristic: it cannot
// catch a second table smuggled in alongside the allowed one, or a name that
// only appears inside a string literal. Tightening it would change which
// queries are accepted, so the loose behavior is kept on purpose.
func ReferencesAllowedTable(sql, allowedTable string) bool {
	return strings.Contains(strings.ToLower(sql), strings.ToLower(allowedTable))
}

// EnsureLimit strips a single trailing semicolon and appends a LIMIT clause
// unless one is already present as a whole word.
func EnsureLimit(sql string, defaultLimit int) string {
	trimmed := strings.TrimSuffix(strings.TrimSpace(sql), ";")
	if containsLimitToken(trimmed) {
		return trimmed + ";"
	}
	return fmt.Sprintf("%s LIMIT %d;", trimmed, defaultLimit)
}

func containsLimitToken(sql string) bool {
	lowered := strings.ToLower(sql)
	for index := 0; ; {
		found := strings.Index(lowered[index:], "limit")
		if found < 0 {
			return false
		}
		start := index + found
		end := start + len("limit")
		if boundaryBefore(lowered, start) && boundaryAfter(lowered, end) {
			return true
		}
		index = start + 1
	}
}

func boundaryBefore(text string, pos int) bool {
	if pos == 0 {
		return true
	}
	return !isWordChar(rune(text[pos-1]))
}

func boundaryAfter(text string, pos int) bool {
	if pos >= len(text) {
		return true
	}
	return !isWordChar(rune(text[pos]))
}

func isWordChar(r rune) bool {
	return r == '_' || unicode.IsLetter(r) || unicode.IsDigit(r)
}
