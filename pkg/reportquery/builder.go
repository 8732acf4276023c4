// Package reportquery builds parameterized SQL for filtered error report listings.
package reportquery

import (
	"fmt"
	"strings"
	"time"
)

// Filter is a conjunctive set of optional predicates over error reports.
// The zero value matches unresolved reports only, newest first, unbounded.
type Filter struct {
	IncludeResolved bool
	DateMin         *time.Time
	DateMax         *time.Time
	RevMin          *int64
	RevMax          *int64
	Contains        string
	Limit           int
}

// Active reports whether any predicate other than the resolved flag is set.
func (f Filter) Active() bool {
	return f.DateMin != nil || f.DateMax != nil || f.RevMin != nil || f.RevMax != nil || f.Contains != ""
}

// Columns selected for summary rows. The problem blob is reduced to a presence
// flag; a zero-length blob counts as absent.
const SummaryColumns = `id, report_date, resolved, version, revision, os, reporting_user, message, stacktrace, COALESCE(octet_length(problem), 0) > 0 AS has_problem`

const table = "error_reports"

// Builder constructs SQL for Filter values.
// All methods are pure; values only ever travel as positional arguments.
// Zero value is ready to use.
type Builder struct{}

// Build returns the summary SELECT for f, ordered newest first.
func (b Builder) Build(f Filter) (string, []any) {
	where, args := b.Where(f)
	q := "SELECT " + SummaryColumns + " FROM " + table + where + " ORDER BY report_date DESC, id DESC"
	if f.Limit > 0 {
		args = append(args, f.Limit)
		q += fmt.Sprintf(" LIMIT $%d", len(args))
	}
	return q, args
}

// BuildIDs returns an id-only SELECT for f. Limit is ignored so that bulk
// operations cover every matching row.
func (b Builder) BuildIDs(f Filter) (string, []any) {
	where, args := b.Where(f)
	return "SELECT id FROM " + table + where + " ORDER BY id", args
}

// BuildCount returns a COUNT(*) over the rows matching f.
func (b Builder) BuildCount(f Filter) (string, []any) {
	where, args := b.Where(f)
	return "SELECT COUNT(*) FROM " + table + where, args
}

// Where returns the WHERE clause (with leading space) and its arguments.
// Returns "" when no predicate applies.
func (b Builder) Where(f Filter) (string, []any) {
	var (
		conditions []string
		args       []any
	)
	add := func(format string, v any) {
		args = append(args, v)
		conditions = append(conditions, fmt.Sprintf(format, len(args)))
	}

	if !f.IncludeResolved {
		conditions = append(conditions, "NOT resolved")
	}
	if f.DateMin != nil {
		add("report_date >= $%d", f.DateMin.UTC())
	}
	if f.DateMax != nil {
		add("report_date <= $%d", f.DateMax.UTC())
	}
	if f.RevMin != nil {
		add("revision >= $%d", *f.RevMin)
	}
	if f.RevMax != nil {
		add("revision <= $%d", *f.RevMax)
	}
	if f.Contains != "" {
		add("strpos(lower(message), lower($%d)) > 0", f.Contains)
	}

	if len(conditions) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conditions, " AND "), args
}
