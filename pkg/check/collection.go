package check

import (
	"strings"
)

// Collection is an ordered set of results that together make up one check.
type Collection struct {
	results []CheckResult[float64]
}

// NewCollection keeps the non-empty results in input order.
func NewCollection(results ...CheckResult[float64]) Collection {
	c := Collection{results: make([]CheckResult[float64], 0, len(results))}
	for _, r := range results {
		if r.IsEmpty() {
			continue
		}
		c.results = append(c.results, r)
	}
	return c
}

// Join returns a new Collection with the results of c followed by other.
func (c Collection) Join(other Collection) Collection {
	results := make([]CheckResult[float64], 0, len(c.results)+len(other.results))
	results = append(results, c.results...)
	results = append(results, other.results...)
	return Collection{results: results}
}

// Results returns a copy of the contained results.
func (c Collection) Results() []CheckResult[float64] {
	out := make([]CheckResult[float64], len(c.results))
	copy(out, c.results)
	return out
}

// Len returns the number of results.
func (c Collection) Len() int {
	return len(c.results)
}

// State returns the worst state of all results. An empty Collection is OK.
func (c Collection) State() State {
	state := StateOK
	for _, r := range c.results {
		state = Worst(state, r.State)
	}
	return state
}

// Summary joins all summaries with ", ", marking non-OK entries.
func (c Collection) Summary() string {
	parts := make([]string, 0, len(c.results))
	for _, r := range c.results {
		if r.Summary == "" {
			continue
		}
		parts = append(parts, r.Summary+r.State.Marker())
	}
	return strings.Join(parts, ", ")
}

// Perfdata joins the metrics of all results, space separated, in input order.
func (c Collection) Perfdata() string {
	parts := make([]string, 0, len(c.results))
	for _, r := range c.results {
		if r.Metric == nil {
			continue
		}
		parts = append(parts, r.Metric.String())
	}
	return strings.Join(parts, " ")
}
