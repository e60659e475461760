package query

import (
	"fmt"
	"reflect"
	"strings"
)

const placeholder = "$%d"

type condition struct {
	clause string
	args   []any
}

// SortField is a single ORDER BY entry.
type SortField struct {
	Field      string
	Descending bool
}

// Builder composes a read-only SELECT with automatically numbered $N placeholders.
// Conditions are joined with AND in the order they were added.
type Builder struct {
	projection        *ProjectionMap
	conditions        []condition
	defaultSortFields []SortField
	limit             int
}

func NewBuilder(projection *ProjectionMap, defaultSort ...SortField) *Builder {
	return &Builder{
		projection:        projection,
		conditions:        make([]condition, 0),
		defaultSortFields: defaultSort,
	}
}

// Build returns the SELECT statement and its bound arguments.
func (b *Builder) Build() (string, []any) {
	where, args := b.buildWhere()

	sql := fmt.Sprintf(
		"SELECT %s FROM %s%s%s",
		b.projection.Columns(),
		b.projection.From(),
		where,
		b.buildOrderBy(),
	)
	if b.limit > 0 {
		sql += fmt.Sprintf(" LIMIT %d", b.limit)
	}

	return sql, args
}

// BuildCount returns a COUNT(*) over the same conditions.
func (b *Builder) BuildCount() (string, []any) {
	where, args := b.buildWhere()
	return fmt.Sprintf("SELECT COUNT(*) FROM %s%s", b.projection.From(), where), args
}

func (b *Builder) Limit(n int) *Builder {
	b.limit = n
	return b
}

// WhereEquals adds an equality condition. No-op for nil values.
func (b *Builder) WhereEquals(field string, value any) *Builder {
	if isNil(value) {
		return b
	}
	b.conditions = append(b.conditions, condition{
		clause: fmt.Sprintf("%s = %s", b.projection.Column(field), placeholder),
		args:   []any{value},
	})
	return b
}

// WhereBetween adds an inclusive range condition.
func (b *Builder) WhereBetween(field string, low, high any) *Builder {
	b.conditions = append(b.conditions, condition{
		clause: fmt.Sprintf("%s BETWEEN %s AND %s", b.projection.Column(field), placeholder, placeholder),
		args:   []any{low, high},
	})
	return b
}

// WhereGTE adds a lower-bound condition.
func (b *Builder) WhereGTE(field string, value any) *Builder {
	b.conditions = append(b.conditions, condition{
		clause: fmt.Sprintf("%s >= %s", b.projection.Column(field), placeholder),
		args:   []any{value},
	})
	return b
}

func (b *Builder) WhereNotNull(fields ...string) *Builder {
	for _, f := range fields {
		b.conditions = append(b.conditions, condition{
			clause: b.projection.Column(f) + " IS NOT NULL",
		})
	}
	return b
}

func (b *Builder) buildOrderBy() string {
	fields := b.defaultSortFields
	if len(fields) == 0 {
		return ""
	}

	parts := make([]string, len(fields))
	for i, f := range fields {
		dir := "ASC"
		if f.Descending {
			dir = "DESC"
		}
		parts[i] = fmt.Sprintf("%s %s", b.projection.Column(f.Field), dir)
	}

	return " ORDER BY " + strings.Join(parts, ", ")
}

func (b *Builder) buildWhere() (string, []any) {
	if len(b.conditions) == 0 {
		return "", nil
	}

	clauses := make([]string, 0, len(b.conditions))
	args := make([]any, 0)
	paramIdx := 1

	for _, cond := range b.conditions {
		clause := cond.clause
		for _, arg := range cond.args {
			clause = strings.Replace(clause, placeholder, fmt.Sprintf("$%d", paramIdx), 1)
			args = append(args, arg)
			paramIdx++
		}
		clauses = append(clauses, clause)
	}

	return " WHERE " + strings.Join(clauses, " AND "), args
}

func isNil(value any) bool {
	if value == nil {
		return true
	}

	v := reflect.ValueOf(value)
	switch v.Kind() {
	case reflect.Pointer, reflect.Map, reflect.Slice, reflect.Chan, reflect.Func, reflect.Interface:
		return v.IsNil()
	}

	return false
}
