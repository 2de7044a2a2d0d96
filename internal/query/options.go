package query

import "strconv"

// Labels names the keys used in a page envelope. Zero-valued fields fall back
// to the defaults, so call sites only override what they rename (for example
// totalDocs -> totalComments).
type Labels struct {
	Items         string
	Total         string
	Limit         string
	Page          string
	TotalPages    string
	PagingCounter string
	HasPrevPage   string
	HasNextPage   string
	PrevPage      string
	NextPage      string
}

// DefaultLabels returns the envelope keys used when a call site overrides
// nothing.
func DefaultLabels() Labels {
	return Labels{
		Items:         "docs",
		Total:         "totalDocs",
		Limit:         "limit",
		Page:          "page",
		TotalPages:    "totalPages",
		PagingCounter: "pagingCounter",
		HasPrevPage:   "hasPrevPage",
		HasNextPage:   "hasNextPage",
		PrevPage:      "prevPage",
		NextPage:      "nextPage",
	}
}

func (l Labels) merged(over Labels) Labels {
	pick := func(v, fallback string) string {
		if v != "" {
			return v
		}
		return fallback
	}
	return Labels{
		Items:         pick(over.Items, l.Items),
		Total:         pick(over.Total, l.Total),
		Limit:         pick(over.Limit, l.Limit),
		Page:          pick(over.Page, l.Page),
		TotalPages:    pick(over.TotalPages, l.TotalPages),
		PagingCounter: pick(over.PagingCounter, l.PagingCounter),
		HasPrevPage:   pick(over.HasPrevPage, l.HasPrevPage),
		HasNextPage:   pick(over.HasNextPage, l.HasNextPage),
		PrevPage:      pick(over.PrevPage, l.PrevPage),
		NextPage:      pick(over.NextPage, l.NextPage),
	}
}

// Options is a canonical pagination request. Page and Limit are always
// positive; Labels is fully populated.
type Options struct {
	Page   int
	Limit  int
	Labels Labels
}

// NewOptions normalises raw page/limit query parameters and label overrides.
// A missing or non-numeric page becomes 1; a missing or non-numeric limit
// becomes 10; both are forced to a minimum of 1. No upper bound is applied to
// limit, matching the upstream behaviour.
func NewOptions(page, limit string, custom Labels) Options {
	p, err := strconv.Atoi(page)
	if err != nil || p < 1 {
		p = 1
	}

	l, err := strconv.Atoi(limit)
	if err != nil {
		l = 10
	}
	if l < 1 {
		l = 1
	}

	return Options{
		Page:   p,
		Limit:  l,
		Labels: DefaultLabels().merged(custom),
	}
}
