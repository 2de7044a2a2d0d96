package query

import "encoding/json"

// Page is the uniform envelope returned by paginated reads. Its JSON keys
// come from the labels carried in the options used to produce it.
type Page[T any] struct {
	Items         []T
	Total         int64
	Page          int
	Limit         int
	TotalPages    int
	PagingCounter int
	HasPrevPage   bool
	HasNextPage   bool
	PrevPage      *int
	NextPage      *int

	labels Labels
}

// NewPage shapes a fetched slice and total count into a page envelope.
// TotalPages floors at 1 even for an empty result, matching the upstream
// pagination library.
func NewPage[T any](items []T, total int64, opts Options) Page[T] {
	totalPages := int((total + int64(opts.Limit) - 1) / int64(opts.Limit))
	if totalPages < 1 {
		totalPages = 1
	}

	p := Page[T]{
		Items:         items,
		Total:         total,
		Page:          opts.Page,
		Limit:         opts.Limit,
		TotalPages:    totalPages,
		PagingCounter: (opts.Page-1)*opts.Limit + 1,
		HasPrevPage:   opts.Page > 1,
		HasNextPage:   opts.Page < totalPages,
		labels:        opts.Labels,
	}

	if p.HasPrevPage {
		prev := opts.Page - 1
		p.PrevPage = &prev
	}
	if p.HasNextPage {
		next := opts.Page + 1
		p.NextPage = &next
	}

	return p
}

// MarshalJSON renders the envelope under its configured labels. Items always
// marshals as an array, never null.
func (p Page[T]) MarshalJSON() ([]byte, error) {
	labels := p.labels
	if labels.Items == "" {
		labels = DefaultLabels()
	}

	items := p.Items
	if items == nil {
		items = []T{}
	}

	return json.Marshal(map[string]any{
		labels.Items:         items,
		labels.Total:         p.Total,
		labels.Limit:         p.Limit,
		labels.Page:          p.Page,
		labels.TotalPages:    p.TotalPages,
		labels.PagingCounter: p.PagingCounter,
		labels.HasPrevPage:   p.HasPrevPage,
		labels.HasNextPage:   p.HasNextPage,
		labels.PrevPage:      p.PrevPage,
		labels.NextPage:      p.NextPage,
	})
}
