// Package check defines the threshold model shared by all monitoring checks.
//
// A measured value is classified against a Level (optional warning and
// critical bounds with a direction) and reported as a CheckResult: a State,
// a human-readable summary and an optional Metric for performance data.
// The results of one check run are gathered into a Collection whose State
// is the worst of its members.
//
// Check is implemented by concrete check types (see package check/http).
// The Registry maps type names to factories so checks can be built from
// configuration at runtime.
package check

import (
	"context"
)

// Check is the interface that all monitoring check types must implement.
type Check interface {
	// Type returns the registered name of this check type (e.g. "http").
	Type() string

	// Name returns a short identifier of the checked target, used in logs
	// and in the output line.
	Name() string

	// Run executes the check and returns its Collection. A check that could
	// not complete reports an UNKNOWN or CRITICAL result instead of failing.
	// The provided context can be used for cancellation and timeouts.
	Run(ctx context.Context) Collection
}
