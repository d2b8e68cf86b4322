// Package runner executes many checks concurrently with a bounded number of
// workers and a limited start rate.
package runner

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/kylerisse/checkhttp/pkg/check"
	"github.com/kylerisse/checkhttp/pkg/logging"
)

const (
	// DefaultConcurrency is the default number of checks running at once.
	DefaultConcurrency = 8

	// DefaultRate is the default number of checks started per second.
	DefaultRate = 20
)

// Result is the outcome of one check.
type Result struct {
	Name       string
	Type       string
	Collection check.Collection
	Duration   time.Duration
}

// Output returns the result ready for printing.
func (r Result) Output() check.Output {
	return check.Output{Name: r.Name, Collection: r.Collection}
}

// Runner runs checks.
type Runner struct {
	concurrency int
	limiter     *rate.Limiter
	logger      *logrus.Logger
}

// Option is a functional option for configuring a Runner.
type Option func(*Runner) error

// WithConcurrency sets how many checks may run at once.
func WithConcurrency(n int) Option {
	return func(r *Runner) error {
		if n <= 0 {
			return fmt.Errorf("concurrency must be positive, got %d", n)
		}
		r.concurrency = n
		return nil
	}
}

// WithRate limits how many checks start per second. Burst is the number
// that may start at once.
func WithRate(perSecond float64, burst int) Option {
	return func(r *Runner) error {
		if perSecond <= 0 {
			return fmt.Errorf("rate must be positive, got %v", perSecond)
		}
		if burst <= 0 {
			return fmt.Errorf("burst must be positive, got %d", burst)
		}
		r.limiter = rate.NewLimiter(rate.Limit(perSecond), burst)
		return nil
	}
}

// WithLogger sets the logger.
func WithLogger(l *logrus.Logger) Option {
	return func(r *Runner) error {
		if l == nil {
			return fmt.Errorf("logger must not be nil")
		}
		r.logger = l
		return nil
	}
}

// New creates a Runner.
func New(opts ...Option) (*Runner, error) {
	r := &Runner{
		concurrency: DefaultConcurrency,
		limiter:     rate.NewLimiter(rate.Limit(DefaultRate), DefaultConcurrency),
		logger:      logging.Discard(),
	}
	for _, opt := range opts {
		if err := opt(r); err != nil {
			return nil, fmt.Errorf("runner: %w", err)
		}
	}
	return r, nil
}

// Run executes checks and returns their results in input order. A check
// that could not be started, because ctx ended or it panicked, gets a
// single UNKNOWN result; other checks are unaffected.
func (r *Runner) Run(ctx context.Context, checks []check.Check) []Result {
	results := make([]Result, len(checks))

	var g errgroup.Group
	g.SetLimit(r.concurrency)

	for i, chk := range checks {
		i, chk := i, chk
		g.Go(func() error {
			results[i] = r.runOne(ctx, i, chk)
			return nil
		})
	}
	_ = g.Wait()

	return results
}

func (r *Runner) runOne(ctx context.Context, idx int, chk check.Check) (res Result) {
	res = Result{Name: chk.Name(), Type: chk.Type()}
	log := r.logger.WithFields(logrus.Fields{"check": res.Name, "type": res.Type, "index": idx})

	defer func() {
		if p := recover(); p != nil {
			log.Errorf("Check panicked: %v", p)
			res.Collection = unknown(fmt.Sprintf("Check failed: %v", p))
		}
	}()

	if err := r.limiter.Wait(ctx); err != nil {
		log.Warnf("Check not started: %v", err)
		res.Collection = unknown(fmt.Sprintf("Check not started: %v", err))
		return res
	}

	start := time.Now()
	res.Collection = chk.Run(ctx)
	res.Duration = time.Since(start)

	log.WithField("state", res.Collection.State()).Debugf("Check finished in %v", res.Duration)
	return res
}

func unknown(text string) check.Collection {
	return check.NewCollection(check.Notice[float64](check.StateUnknown, text))
}

// Worst returns the worst state over results; OK when there are none.
func Worst(results []Result) check.State {
	state := check.StateOK
	for _, res := range results {
		state = check.Worst(state, res.Collection.State())
	}
	return state
}
