package query

// A Stage is one unit of query composition. Stages are appended in a fixed,
// order-sensitive sequence (joins, projection, filters, sort, skip, limit)
// and compiled into a single SQL statement by Compile. Later stages may
// reference aliases introduced by earlier Join stages but not the other way
// round.
type Stage interface {
	stage()
}

// Column is a select-list entry. Alias is optional.
type Column struct {
	Expr  string
	Alias string
}

// Join connects the pipeline's base table to another table through a single
// equality. Joins are inner: a base row without a matching foreign row drops
// out of the result silently, which is the documented behaviour for records
// whose owner has been removed.
type Join struct {
	Table         string
	Alias         string
	LocalColumn   string
	ForeignColumn string
}

func (Join) stage() {}

// Match filters rows by a condition.
type Match struct {
	Cond Cond
}

func (Match) stage() {}

// Project replaces the select list with an explicit set of columns. Sensitive
// fields are excluded by never being listed here.
type Project struct {
	Columns []Column
}

func (Project) stage() {}

// AddField appends a computed column to the select list. Expr may contain ?
// placeholders bound to Args in order.
type AddField struct {
	Alias string
	Expr  string
	Args  []any
}

func (AddField) stage() {}

// Sort orders the result by a single column.
type Sort struct {
	Column     string
	Descending bool
}

func (Sort) stage() {}

// Skip discards the first N rows.
type Skip int

func (Skip) stage() {}

// Limit caps the number of returned rows.
type Limit int

func (Limit) stage() {}

// Cond is a filter condition usable inside a Match stage. Conditions combine
// with AND across stages.
type Cond interface {
	cond()
}

// Eq matches rows where Column equals Value.
type Eq struct {
	Column string
	Value  any
}

func (Eq) cond() {}

// IsTrue matches rows where a boolean column holds.
type IsTrue struct {
	Column string
}

func (IsTrue) cond() {}

// NotNull matches rows where Column is set.
type NotNull struct {
	Column string
}

func (NotNull) cond() {}

// TextSearch matches rows where any of Columns contains Term, case
// insensitive. Columns combine with OR.
type TextSearch struct {
	Columns []string
	Term    string
}

func (TextSearch) cond() {}

// Or matches rows satisfying any of its conditions.
type Or struct {
	Conds []Cond
}

func (Or) cond() {}

// Pipeline is an ordered stage list over a base table. The zero value is not
// usable; construct with NewPipeline.
type Pipeline struct {
	from   string
	stages []Stage
}

// NewPipeline starts a pipeline reading from the given table.
func NewPipeline(from string, stages ...Stage) *Pipeline {
	return &Pipeline{from: from, stages: stages}
}

// Append adds stages to the end of the pipeline and returns it for chaining.
func (p *Pipeline) Append(stages ...Stage) *Pipeline {
	p.stages = append(p.stages, stages...)
	return p
}
