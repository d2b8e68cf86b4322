package check

import (
	"fmt"
	"strconv"
	"time"
)

// Measurable is the set of value types a Level can classify.
// time.Duration is covered through ~int64 and compares as elapsed time.
type Measurable interface {
	~int | ~int8 | ~int16 | ~int32 | ~int64 |
		~uint | ~uint8 | ~uint16 | ~uint32 | ~uint64 |
		~float32 | ~float64
}

// Direction selects which side of a bound is acceptable.
type Direction int

const (
	// Upper levels fire once the value reaches the bound (value >= bound).
	Upper Direction = iota
	// Lower levels fire once the value drops below the bound (value < bound).
	Lower
)

func (d Direction) String() string {
	if d == Lower {
		return "lower"
	}
	return "upper"
}

// Level holds optional warning and critical bounds sharing one Direction.
// A nil bound is never violated.
type Level[T Measurable] struct {
	Warn      *T
	Crit      *T
	Direction Direction
}

// UpperLevel returns a Level that warns at warn and goes critical at crit
// when the value grows.
func UpperLevel[T Measurable](warn, crit T) *Level[T] {
	return &Level[T]{Warn: &warn, Crit: &crit, Direction: Upper}
}

// LowerLevel returns a Level that warns below warn and goes critical below
// crit when the value shrinks.
func LowerLevel[T Measurable](warn, crit T) *Level[T] {
	return &Level[T]{Warn: &warn, Crit: &crit, Direction: Lower}
}

// Validate rejects levels whose warning bound lies beyond the critical bound,
// which would make WARN unreachable.
func (l Level[T]) Validate() error {
	if l.Direction != Upper && l.Direction != Lower {
		return &ConfigError{Field: "levels", Err: fmt.Errorf("unknown direction %d", l.Direction)}
	}
	if l.Warn == nil || l.Crit == nil {
		return nil
	}
	switch {
	case l.Direction == Upper && *l.Warn > *l.Crit:
		return &ConfigError{Field: "levels", Err: fmt.Errorf("upper warn %s above crit %s", FormatValue(*l.Warn), FormatValue(*l.Crit))}
	case l.Direction == Lower && *l.Warn < *l.Crit:
		return &ConfigError{Field: "levels", Err: fmt.Errorf("lower warn %s below crit %s", FormatValue(*l.Warn), FormatValue(*l.Crit))}
	}
	return nil
}

func (l Level[T]) crossed(value, bound T) bool {
	if l.Direction == Lower {
		return value < bound
	}
	return value >= bound
}

// BoundKind tells which bound of a Level a value crossed.
type BoundKind int

const (
	BoundNone BoundKind = iota
	BoundWarn
	BoundCrit
)

// Bound describes the outcome of an evaluation: the kind of bound that fired
// and its configured value. Value is meaningless for BoundNone.
type Bound[T Measurable] struct {
	Kind  BoundKind
	Value T
}

// Evaluate classifies value against level. The critical bound is checked
// first, so a value past both bounds is always CRITICAL. Without a level the
// value is OK.
func Evaluate[T Measurable](value T, level *Level[T]) (State, Bound[T]) {
	if level == nil {
		return StateOK, Bound[T]{}
	}
	if level.Crit != nil && level.crossed(value, *level.Crit) {
		return StateCrit, Bound[T]{Kind: BoundCrit, Value: *level.Crit}
	}
	if level.Warn != nil && level.crossed(value, *level.Warn) {
		return StateWarn, Bound[T]{Kind: BoundWarn, Value: *level.Warn}
	}
	return StateOK, Bound[T]{}
}

// FormatValue renders a measured value for human-readable summaries.
// Durations use their String form, floats the shortest exact representation.
func FormatValue[T Measurable](v T) string {
	switch x := any(v).(type) {
	case time.Duration:
		return x.String()
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(x), 'f', -1, 32)
	}
	return fmt.Sprint(v)
}

// perfValue renders v for performance data. Durations are exported in seconds.
func perfValue[T Measurable](v T) string {
	if d, ok := any(v).(time.Duration); ok {
		return strconv.FormatFloat(d.Seconds(), 'f', -1, 64)
	}
	return strconv.FormatFloat(float64(v), 'f', -1, 64)
}
