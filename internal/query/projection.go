// Package query turns dashboard filter selections into parameterized SQL against
// the customer analytics views.
package query

import (
	"fmt"
	"strings"
)

// ProjectionMap maps logical field names to qualified column references or
// derived expressions of a single view.
type ProjectionMap struct {
	view       string
	alias      string
	columns    map[string]string
	columnList []string
}

func NewProjectionMap(view, alias string) *ProjectionMap {
	return &ProjectionMap{
		view:       view,
		alias:      alias,
		columns:    make(map[string]string),
		columnList: make([]string, 0),
	}
}

// Project adds a view column under its own name.
func (p *ProjectionMap) Project(column string) *ProjectionMap {
	qualified := fmt.Sprintf("%s.%s", p.alias, column)
	p.columns[column] = qualified
	p.columnList = append(p.columnList, qualified)
	return p
}

// Map makes a view column usable in predicates and ORDER BY without selecting it.
func (p *ProjectionMap) Map(column string) *ProjectionMap {
	p.columns[column] = fmt.Sprintf("%s.%s", p.alias, column)
	return p
}

// ProjectExpr adds a derived column. The expression is selected AS name and is
// substituted wherever name is used in a predicate or ORDER BY.
func (p *ProjectionMap) ProjectExpr(expr, name string) *ProjectionMap {
	p.columns[name] = expr
	p.columnList = append(p.columnList, fmt.Sprintf("%s AS %s", expr, name))
	return p
}

// From returns the view reference with alias.
func (p *ProjectionMap) From() string {
	return fmt.Sprintf("%s %s", p.view, p.alias)
}

// Column returns the qualified column for a field, or the input if not mapped.
func (p *ProjectionMap) Column(name string) string {
	if col, ok := p.columns[name]; ok {
		return col
	}
	return name
}

func (p *ProjectionMap) Columns() string {
	return strings.Join(p.columnList, ", ")
}
