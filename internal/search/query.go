// Package search runs the relaxation ladder against a prospect-search
// provider.
package search

import (
	"slices"
	"strconv"

	"github.com/sells-group/leadgen/internal/normalize"
)

// Query is one provider request. Values are never mutated in place: every
// With/Without method returns a fresh copy.
type Query struct {
	Locations      []string `json:"locations,omitempty"`
	Industries     []string `json:"industries,omitempty"`
	EmployeeRanges []string `json:"employee_ranges,omitempty"`
	Titles         []string `json:"titles,omitempty"`
	PerPage        int      `json:"per_page"`
}

// BaseQuery builds the full-filter query from normalized criteria.
// location is the provider-facing rendering of nc.Location.
func BaseQuery(nc normalize.Criteria, location string, perPage int) Query {
	q := Query{
		Industries: slices.Clone(nc.Sectors),
		Titles:     slices.Clone(nc.Positions),
		PerPage:    perPage,
	}
	if location != "" {
		q.Locations = []string{location}
	}
	if nc.Size != nil {
		q.EmployeeRanges = []string{EmployeeRange(*nc.Size)}
	}
	return q
}

// EmployeeRange renders a size range in the provider's "min,max" form.
// Open-ended ranges keep the sentinel upper bound.
func EmployeeRange(r normalize.SizeRange) string {
	return strconv.Itoa(r.Min) + "," + strconv.Itoa(r.Max)
}

func (q Query) clone() Query {
	return Query{
		Locations:      slices.Clone(q.Locations),
		Industries:     slices.Clone(q.Industries),
		EmployeeRanges: slices.Clone(q.EmployeeRanges),
		Titles:         slices.Clone(q.Titles),
		PerPage:        q.PerPage,
	}
}

// WithoutSize drops the headcount filter.
func (q Query) WithoutSize() Query {
	out := q.clone()
	out.EmployeeRanges = nil
	return out
}

// WithoutIndustries drops the sector filter.
func (q Query) WithoutIndustries() Query {
	out := q.clone()
	out.Industries = nil
	return out
}

// WithLocation replaces the location filter.
func (q Query) WithLocation(location string) Query {
	out := q.clone()
	out.Locations = []string{location}
	return out
}

// PerPage sizes the provider page: requested × multiplier, capped.
func PerPage(requested, multiplier, ceiling int) int {
	if multiplier <= 0 {
		multiplier = 1
	}
	n := requested * multiplier
	if ceiling > 0 && n > ceiling {
		n = ceiling
	}
	if n < 1 {
		n = 1
	}
	return n
}
