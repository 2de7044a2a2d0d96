package query

import "github.com/google/uuid"

// Filter carries the optional list parameters a caller may supply.
type Filter struct {
	OwnerID  string
	Search   string
	SortBy   string
	SortType string
}

// ComposeSpec describes how a resource exposes itself to filtering: which
// column identifies the owner, which columns participate in free-text search,
// which request-level sort keys map to columns, and the column used for the
// default newest-first ordering.
type ComposeSpec struct {
	OwnerColumn string
	TextColumns []string
	SortColumns map[string]string
	DefaultSort string
}

// Compose translates a Filter into the stages appended after a resource's
// join and projection stages. The produced order is fixed: owner filter,
// free-text filter, then sort.
//
// A malformed owner identifier omits the owner stage entirely rather than
// filtering on a value the store could never match. Any sort direction other
// than "asc" sorts descending, and an unknown sort key falls back to the
// default newest-first ordering.
func Compose(f Filter, spec ComposeSpec) []Stage {
	var stages []Stage

	if f.OwnerID != "" && spec.OwnerColumn != "" {
		if _, err := uuid.Parse(f.OwnerID); err == nil {
			stages = append(stages, Match{Cond: Eq{Column: spec.OwnerColumn, Value: f.OwnerID}})
		}
	}

	if f.Search != "" && len(spec.TextColumns) > 0 {
		stages = append(stages, Match{Cond: TextSearch{Columns: spec.TextColumns, Term: f.Search}})
	}

	if column, ok := spec.SortColumns[f.SortBy]; ok && f.SortBy != "" {
		stages = append(stages, Sort{Column: column, Descending: f.SortType != "asc"})
	} else {
		stages = append(stages, Sort{Column: spec.DefaultSort, Descending: true})
	}

	return stages
}
