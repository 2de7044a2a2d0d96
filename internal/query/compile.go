package query

import (
	"fmt"
	"strings"
)

// Statement is a compiled SQL statement with positional arguments.
type Statement struct {
	SQL  string
	Args []any
}

// Compile turns a pipeline into a page statement and a matching count
// statement. The count statement shares the joins and filters of the page
// statement but drops projection, sort and pagination, so both always agree
// on which rows are in scope.
//
// Compilation validates stage order: a Match or Sort referencing a table
// alias that no earlier Join introduced fails instead of producing a query
// with different semantics.
func Compile(p *Pipeline) (Statement, Statement, error) {
	if p == nil || p.from == "" {
		return Statement{}, Statement{}, fmt.Errorf("query: pipeline has no base table")
	}

	known := map[string]bool{p.from: true}

	var (
		joins     []Join
		conds     []Cond
		projected []Column
		computed  []AddField
		sorts     []Sort
		skip      = -1
		limit     = -1
	)

	for i, s := range p.stages {
		switch st := s.(type) {
		case Join:
			joins = append(joins, st)
			known[st.aliasName()] = true
		case Match:
			if err := validateCond(st.Cond, known); err != nil {
				return Statement{}, Statement{}, fmt.Errorf("query: stage %d: %w", i, err)
			}
			conds = append(conds, st.Cond)
		case Project:
			projected = st.Columns
		case AddField:
			computed = append(computed, st)
		case Sort:
			if err := validateColumn(st.Column, known); err != nil {
				return Statement{}, Statement{}, fmt.Errorf("query: stage %d: %w", i, err)
			}
			sorts = append(sorts, st)
		case Skip:
			skip = int(st)
		case Limit:
			limit = int(st)
		default:
			return Statement{}, Statement{}, fmt.Errorf("query: stage %d: unsupported stage %T", i, s)
		}
	}

	var fromClause strings.Builder
	fromClause.WriteString(" FROM ")
	fromClause.WriteString(p.from)
	for _, j := range joins {
		fromClause.WriteString(" JOIN ")
		fromClause.WriteString(j.Table)
		if j.Alias != "" && j.Alias != j.Table {
			fromClause.WriteString(" AS ")
			fromClause.WriteString(j.Alias)
		}
		fmt.Fprintf(&fromClause, " ON %s = %s", j.LocalColumn, j.ForeignColumn)
	}

	page := &binder{}
	count := &binder{}

	// Filter conditions render before any select-list placeholders, so the
	// page and count binders assign identical numbering and the WHERE text is
	// shared verbatim between both statements.
	var where string
	if len(conds) > 0 {
		parts := make([]string, 0, len(conds))
		for _, c := range conds {
			parts = append(parts, renderCond(c, page))
			renderCond(c, count)
		}
		where = " WHERE " + strings.Join(parts, " AND ")
	}

	selects := make([]string, 0, len(projected)+len(computed))
	for _, c := range projected {
		if c.Alias != "" {
			selects = append(selects, fmt.Sprintf("%s AS %s", c.Expr, c.Alias))
		} else {
			selects = append(selects, c.Expr)
		}
	}
	if len(selects) == 0 {
		selects = append(selects, p.from+".*")
	}
	for _, f := range computed {
		expr := f.Expr
		for _, a := range f.Args {
			expr = strings.Replace(expr, "?", page.bind(a), 1)
		}
		selects = append(selects, fmt.Sprintf("(%s) AS %s", expr, f.Alias))
	}

	var pageSQL strings.Builder
	pageSQL.WriteString("SELECT ")
	pageSQL.WriteString(strings.Join(selects, ", "))
	pageSQL.WriteString(fromClause.String())
	pageSQL.WriteString(where)
	if len(sorts) > 0 {
		orders := make([]string, 0, len(sorts))
		for _, s := range sorts {
			dir := " ASC"
			if s.Descending {
				dir = " DESC"
			}
			orders = append(orders, s.Column+dir)
		}
		pageSQL.WriteString(" ORDER BY ")
		pageSQL.WriteString(strings.Join(orders, ", "))
	}
	if limit >= 0 {
		fmt.Fprintf(&pageSQL, " LIMIT %d", limit)
	}
	if skip > 0 {
		fmt.Fprintf(&pageSQL, " OFFSET %d", skip)
	}

	countSQL := "SELECT count(*)" + fromClause.String() + where

	return Statement{SQL: pageSQL.String(), Args: page.args},
		Statement{SQL: countSQL, Args: count.args},
		nil
}

func (j Join) aliasName() string {
	if j.Alias != "" {
		return j.Alias
	}
	return j.Table
}

// binder assigns positional placeholders within one statement.
type binder struct {
	args []any
}

func (b *binder) bind(v any) string {
	b.args = append(b.args, v)
	return fmt.Sprintf("$%d", len(b.args))
}

func renderCond(c Cond, b *binder) string {
	switch cc := c.(type) {
	case Eq:
		return fmt.Sprintf("%s = %s", cc.Column, b.bind(cc.Value))
	case IsTrue:
		return cc.Column
	case NotNull:
		return cc.Column + " IS NOT NULL"
	case TextSearch:
		term := "%" + escapeLike(cc.Term) + "%"
		parts := make([]string, 0, len(cc.Columns))
		for _, col := range cc.Columns {
			parts = append(parts, fmt.Sprintf("%s ILIKE %s", col, b.bind(term)))
		}
		return "(" + strings.Join(parts, " OR ") + ")"
	case Or:
		parts := make([]string, 0, len(cc.Conds))
		for _, sub := range cc.Conds {
			parts = append(parts, renderCond(sub, b))
		}
		return "(" + strings.Join(parts, " OR ") + ")"
	default:
		// validateCond rejects unknown conditions before rendering.
		return "FALSE"
	}
}

func validateCond(c Cond, known map[string]bool) error {
	switch cc := c.(type) {
	case Eq:
		return validateColumn(cc.Column, known)
	case IsTrue:
		return validateColumn(cc.Column, known)
	case NotNull:
		return validateColumn(cc.Column, known)
	case TextSearch:
		for _, col := range cc.Columns {
			if err := validateColumn(col, known); err != nil {
				return err
			}
		}
		return nil
	case Or:
		for _, sub := range cc.Conds {
			if err := validateCond(sub, known); err != nil {
				return err
			}
		}
		return nil
	default:
		return fmt.Errorf("unsupported condition %T", c)
	}
}

func validateColumn(column string, known map[string]bool) error {
	qualifier, _, found := strings.Cut(column, ".")
	if !found {
		return nil
	}
	if !known[qualifier] {
		return fmt.Errorf("column %q references table %q before it is joined", column, qualifier)
	}
	return nil
}

func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}
