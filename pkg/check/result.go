package check

import (
	"time"
)

// CheckResult is the outcome of evaluating one measured quantity: a state,
// a human-readable summary and optionally the metric it was derived from.
//
// The zero CheckResult is empty. Empty results stand for checks that are
// configured off and are dropped by NewCollection.
type CheckResult[T Measurable] struct {
	State   State
	Summary string
	Metric  *Metric[T]
}

// Notice returns a result without a metric.
func Notice[T Measurable](state State, text string) CheckResult[T] {
	return CheckResult[T]{State: state, Summary: text}
}

// FromLevels evaluates the metric against its own levels and reports the
// value after prefix, e.g. "Page size: 1234 B (warn at 1000 B)".
func FromLevels[T Measurable](prefix string, metric Metric[T]) CheckResult[T] {
	return NoticeFromLevels(prefix+": "+metric.format(metric.value), metric)
}

// NoticeFromLevels evaluates the metric against its own levels and uses text
// as the summary. A non-OK state appends the bound that was crossed.
func NoticeFromLevels[T Measurable](text string, metric Metric[T]) CheckResult[T] {
	state, bound := Evaluate(metric.value, metric.level)
	switch bound.Kind {
	case BoundWarn:
		text += " (warn at " + metric.format(bound.Value) + ")"
	case BoundCrit:
		text += " (crit at " + metric.format(bound.Value) + ")"
	}
	return CheckResult[T]{State: state, Summary: text, Metric: &metric}
}

// IsEmpty reports whether r carries nothing.
func (r CheckResult[T]) IsEmpty() bool {
	return r.State == StateOK && r.Summary == "" && r.Metric == nil
}

// MapResult converts the metric of r with f. State and summary are kept as
// computed; the levels are not evaluated again.
func MapResult[T, U Measurable](r CheckResult[T], f func(T) U) CheckResult[U] {
	out := CheckResult[U]{State: r.State, Summary: r.Summary}
	if r.Metric != nil {
		m := MapMetric(*r.Metric, f)
		out.Metric = &m
	}
	return out
}

// Seconds converts a duration into fractional seconds, for use with MapResult.
func Seconds(d time.Duration) float64 {
	return d.Seconds()
}

func (m Metric[T]) format(v T) string {
	s := FormatValue(v)
	if _, ok := any(v).(time.Duration); ok || m.uom == "" {
		return s
	}
	return s + " " + string(m.uom)
}
