package store

import (
	"strings"
	"time"
)

// WhereBuilder accumulates AND-ed conditions with "?" placeholders.
// Empty values are skipped so optional filters can be added unconditionally.
type WhereBuilder struct {
	dialect    Dialect
	conditions []string
	args       []any
}

// NewWhereBuilder returns an empty builder for d.
func NewWhereBuilder(d Dialect) *WhereBuilder {
	return &WhereBuilder{dialect: d}
}

// ContainsPattern returns the LIKE pattern for a case-insensitive
// substring match of term.
func ContainsPattern(term string) string {
	return "%" + escapeLike(strings.ToLower(term)) + "%"
}

// Like returns "<fold(column)> LIKE ?" for the builder's dialect.
func (wb *WhereBuilder) Like(column string) string {
	return wb.dialect.lower(column) + ` LIKE ? ESCAPE '\'`
}

// Add appends "column = ?" when value is non-empty.
func (wb *WhereBuilder) Add(column, value string) {
	if value == "" {
		return
	}
	wb.conditions = append(wb.conditions, column+" = ?")
	wb.args = append(wb.args, value)
}

// AddContains appends a case-insensitive substring match over one or more
// columns, OR-ed together. LIKE wildcards in term are matched literally.
func (wb *WhereBuilder) AddContains(term string, columns ...string) {
	if term == "" || len(columns) == 0 {
		return
	}
	pattern := ContainsPattern(term)

	parts := make([]string, len(columns))
	for i, col := range columns {
		parts[i] = wb.Like(col)
		wb.args = append(wb.args, pattern)
	}
	if len(parts) == 1 {
		wb.conditions = append(wb.conditions, parts[0])
		return
	}
	wb.conditions = append(wb.conditions, "("+strings.Join(parts, " OR ")+")")
}

// AddDateRange appends inclusive bounds on column; nil bounds are skipped.
func (wb *WhereBuilder) AddDateRange(column string, from, to *time.Time) {
	if from != nil {
		wb.conditions = append(wb.conditions, column+" >= ?")
		wb.args = append(wb.args, from.UTC())
	}
	if to != nil {
		wb.conditions = append(wb.conditions, column+" <= ?")
		wb.args = append(wb.args, to.UTC())
	}
}

// AddRaw appends a literal condition with its arguments.
func (wb *WhereBuilder) AddRaw(condition string, args ...any) {
	wb.conditions = append(wb.conditions, condition)
	wb.args = append(wb.args, args...)
}

// Build returns " WHERE ..." and its arguments, or "" and nil.
func (wb *WhereBuilder) Build() (string, []any) {
	if len(wb.conditions) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(wb.conditions, " AND "), wb.args
}

func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}
