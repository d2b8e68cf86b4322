package check

import (
	"errors"
	"fmt"
	"strings"
)

// Uom is a performance data unit of measurement such as "s", "B" or "%".
// The empty Uom is valid and means a plain number.
type Uom string

// ParseUom validates s against the performance data unit grammar: any run of
// characters that contains no digits, whitespace, '=', ';' or quotes.
func ParseUom(s string) (Uom, error) {
	if i := strings.IndexFunc(s, invalidUomRune); i >= 0 {
		return "", &ConfigError{Field: "uom", Err: fmt.Errorf("unit %q contains invalid character %q", s, s[i])}
	}
	return Uom(s), nil
}

func invalidUomRune(r rune) bool {
	switch {
	case r >= '0' && r <= '9':
		return true
	case r == ' ', r == '\t', r == '\n', r == '\r':
		return true
	case r == '=', r == ';', r == '\'', r == '"':
		return true
	}
	return false
}

// Metric is a labeled, unit-tagged measurement exported as performance data.
// A Metric is immutable once built; use NewMetric to construct one.
type Metric[T Measurable] struct {
	label string
	value T
	uom   Uom
	level *Level[T]
	min   *T
	max   *T
}

// MetricOption configures optional Metric fields.
type MetricOption[T Measurable] func(*Metric[T])

// WithLevel attaches warning/critical levels to the metric. The same levels
// are used to classify the value when building a CheckResult.
func WithLevel[T Measurable](level *Level[T]) MetricOption[T] {
	return func(m *Metric[T]) {
		if level == nil {
			m.level = nil
			return
		}
		m.level = &Level[T]{
			Warn:      copyPtr(level.Warn),
			Crit:      copyPtr(level.Crit),
			Direction: level.Direction,
		}
	}
}

func copyPtr[T Measurable](v *T) *T {
	if v == nil {
		return nil
	}
	c := *v
	return &c
}

// WithMin sets the minimum value shown on graphs.
func WithMin[T Measurable](v T) MetricOption[T] {
	return func(m *Metric[T]) { m.min = &v }
}

// WithMax sets the maximum value shown on graphs.
func WithMax[T Measurable](v T) MetricOption[T] {
	return func(m *Metric[T]) { m.max = &v }
}

// NewMetric builds a Metric. It fails with a ConfigError on an empty label or
// an invalid unit.
func NewMetric[T Measurable](label string, value T, uom string, opts ...MetricOption[T]) (Metric[T], error) {
	if strings.TrimSpace(label) == "" {
		return Metric[T]{}, &ConfigError{Field: "label", Err: errors.New("metric label must not be empty")}
	}
	u, err := ParseUom(uom)
	if err != nil {
		return Metric[T]{}, err
	}

	m := Metric[T]{label: label, value: value, uom: u}
	for _, opt := range opts {
		opt(&m)
	}
	return m, nil
}

// MustMetric is like NewMetric but panics on error. Intended for metrics with
// constant labels and units.
func MustMetric[T Measurable](label string, value T, uom string, opts ...MetricOption[T]) Metric[T] {
	m, err := NewMetric(label, value, uom, opts...)
	if err != nil {
		panic(err)
	}
	return m
}

func (m Metric[T]) Label() string    { return m.label }
func (m Metric[T]) Value() T         { return m.value }
func (m Metric[T]) Uom() Uom         { return m.uom }
func (m Metric[T]) Level() *Level[T] { return m.level }
func (m Metric[T]) Min() *T          { return m.min }
func (m Metric[T]) Max() *T          { return m.max }

// String renders the metric as label=value[uom];warn;crit;min;max with empty
// trailing fields dropped.
func (m Metric[T]) String() string {
	fields := []string{
		quoteLabel(m.label) + "=" + perfValue(m.value) + string(m.uom),
		"", "", "", "",
	}
	if m.level != nil {
		fields[1] = optPerfValue(m.level.Warn)
		fields[2] = optPerfValue(m.level.Crit)
	}
	fields[3] = optPerfValue(m.min)
	fields[4] = optPerfValue(m.max)

	n := len(fields)
	for n > 1 && fields[n-1] == "" {
		n--
	}
	return strings.Join(fields[:n], ";")
}

func optPerfValue[T Measurable](v *T) string {
	if v == nil {
		return ""
	}
	return perfValue(*v)
}

func quoteLabel(label string) string {
	if strings.ContainsAny(label, " '=") {
		return "'" + strings.ReplaceAll(label, "'", "''") + "'"
	}
	return label
}

// MapMetric converts the metric's value, levels and bounds with f. The label
// and unit are kept.
func MapMetric[T, U Measurable](m Metric[T], f func(T) U) Metric[U] {
	out := Metric[U]{label: m.label, value: f(m.value), uom: m.uom}
	if m.level != nil {
		out.level = &Level[U]{
			Warn:      mapPtr(m.level.Warn, f),
			Crit:      mapPtr(m.level.Crit, f),
			Direction: m.level.Direction,
		}
	}
	out.min = mapPtr(m.min, f)
	out.max = mapPtr(m.max, f)
	return out
}

func mapPtr[T, U Measurable](v *T, f func(T) U) *U {
	if v == nil {
		return nil
	}
	u := f(*v)
	return &u
}
