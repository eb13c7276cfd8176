// Package algorithms contains the scaffolding shared by every lattice search
// algorithm: limits, optimum tracking, progress reporting and checking.
package algorithms

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/inferloop/anonsearch/internal/checker"
	"github.com/inferloop/anonsearch/internal/lattice"
	"github.com/inferloop/anonsearch/internal/observability/metrics"
	"github.com/inferloop/anonsearch/pkg/errors"
	"github.com/inferloop/anonsearch/pkg/interfaces"
)

// Base holds the state every algorithm needs. Algorithms embed it and call
// Start at the beginning of Traverse and Finish at the end.
type Base struct {
	logger  *logrus.Logger
	metrics *metrics.SearchMetrics
	name    string
	runID   string
	now     func() time.Time

	space   *lattice.SolutionSpace
	checker checker.Checker

	timeLimit  time.Duration
	checkLimit int

	started  time.Time
	checks   int
	optimum  *lattice.Transformation
	listener interfaces.ProgressListener
}

// Option configures a Base.
type Option func(*Base)

// WithLogger sets the logger.
func WithLogger(logger *logrus.Logger) Option {
	return func(b *Base) {
		if logger != nil {
			b.logger = logger
		}
	}
}

// WithMetrics records checks and runs in m.
func WithMetrics(m *metrics.SearchMetrics) Option {
	return func(b *Base) {
		b.metrics = m
	}
}

// WithName overrides the algorithm name used in logs and metrics.
func WithName(name string) Option {
	return func(b *Base) {
		if name != "" {
			b.name = name
		}
	}
}

// WithClock replaces the wall clock used for the time limit.
func WithClock(now func() time.Time) Option {
	return func(b *Base) {
		if now != nil {
			b.now = now
		}
	}
}

// NewBase validates the limits and creates the shared state.
func NewBase(space *lattice.SolutionSpace, c checker.Checker, timeLimit time.Duration, checkLimit int, opts ...Option) (*Base, error) {
	if timeLimit <= 0 {
		return nil, errors.NewValidationError(errors.ErrInvalidTimeLimit, errors.CodeInvalidLimit,
			fmt.Sprintf("time limit must be positive, got %s", timeLimit))
	}
	if checkLimit <= 0 {
		return nil, errors.NewValidationError(errors.ErrInvalidCheckLimit, errors.CodeInvalidLimit,
			fmt.Sprintf("check limit must be positive, got %d", checkLimit))
	}
	if space == nil || c == nil {
		return nil, errors.NewValidationError(errors.ErrInvalidParameters, errors.CodeMissingField,
			"solution space and checker are required")
	}

	b := &Base{
		logger:     logrus.New(),
		name:       "search",
		runID:      uuid.New().String(),
		now:        time.Now,
		space:      space,
		checker:    c,
		timeLimit:  timeLimit,
		checkLimit: checkLimit,
	}
	for _, opt := range opts {
		opt(b)
	}
	b.started = b.now()
	return b, nil
}

// Apply applies options after construction. Algorithm constructors use it to
// set their default name before the caller's options.
func (b *Base) Apply(opts ...Option) {
	for _, opt := range opts {
		opt(b)
	}
}

func (b *Base) Space() *lattice.SolutionSpace { return b.space }
func (b *Base) Checker() checker.Checker      { return b.checker }
func (b *Base) Logger() *logrus.Logger        { return b.logger }
func (b *Base) Name() string                  { return b.name }
func (b *Base) RunID() string                 { return b.runID }

// Metrics returns the metrics sink, which may be nil.
func (b *Base) Metrics() *metrics.SearchMetrics {
	return b.metrics
}

// Checks returns the number of checks performed by this algorithm.
func (b *Base) Checks() int {
	return b.checks
}

// Elapsed returns the time since Start.
func (b *Base) Elapsed() time.Duration {
	return b.now().Sub(b.started)
}

// Fields returns the log fields identifying the run.
func (b *Base) Fields() logrus.Fields {
	return logrus.Fields{
		"algorithm": b.name,
		"run_id":    b.runID,
	}
}

// Start resets the timer and logs the beginning of a run.
func (b *Base) Start() {
	b.started = b.now()
	b.logger.WithFields(b.Fields()).WithFields(logrus.Fields{
		"dimensions":  b.space.Dimensions(),
		"size":        b.space.Size().String(),
		"time_limit":  b.timeLimit.String(),
		"check_limit": b.checkLimit,
	}).Info("Starting search")
}

// Finish logs the outcome of a run and records it.
func (b *Base) Finish(optimal bool) {
	elapsed := b.Elapsed()
	fields := logrus.Fields{
		"optimal":  optimal,
		"checks":   b.checks,
		"duration": elapsed.String(),
	}
	if b.optimum != nil {
		fields["optimum"] = b.optimum.String()
		fields["loss"] = b.optimum.InformationLoss().String()
	}
	b.logger.WithFields(b.Fields()).WithFields(fields).Info("Search finished")
	b.metrics.RecordRun(b.name, optimal, elapsed)
}

// MustStop reports whether the time or check limit has been reached.
func (b *Base) MustStop() bool {
	return b.Elapsed() > b.timeLimit || b.checks >= b.checkLimit
}

// GlobalOptimum returns the best anonymous transformation found so far.
func (b *Base) GlobalOptimum() *lattice.Transformation {
	return b.optimum
}

// SetListener registers a progress listener.
func (b *Base) SetListener(listener interfaces.ProgressListener) {
	b.listener = listener
}

// Progress reports progress in [0, 1] to the listener.
func (b *Base) Progress(progress float64) {
	if b.listener == nil {
		return
	}
	b.listener.OnProgress(max(0, min(1, progress)))
}

// TrackOptimum replaces the optimum with t when t is anonymous and has a
// smaller loss, or the same loss on a lower level.
func (b *Base) TrackOptimum(t *lattice.Transformation) {
	if t == nil || t.InformationLoss() == nil || !t.HasProperty(b.space.PropertyAnonymous()) {
		return
	}
	if b.optimum != nil {
		cmp := t.InformationLoss().CompareTo(b.optimum.InformationLoss())
		if cmp > 0 || (cmp == 0 && t.Level() >= b.optimum.Level()) {
			return
		}
	}
	b.optimum = t
	if v, ok := lattice.ValueOf(t.InformationLoss()); ok {
		b.metrics.SetOptimumLoss(b.name, v)
	}
	b.logger.WithFields(b.Fields()).WithFields(logrus.Fields{
		"transformation": t.String(),
		"loss":           t.InformationLoss().String(),
	}).Debug("New global optimum")
}

// Check runs the checker on t unless it has been checked before. Failures
// abort the run.
func (b *Base) Check(t *lattice.Transformation) error {
	if t.IsChecked() {
		return nil
	}
	started := b.now()
	result, err := b.checker.Check(t)
	if err != nil {
		return errors.NewSearchError(fmt.Errorf("%w: %w", errors.ErrCheckFailed, err), errors.CodeCheckFailed,
			"failed to check transformation").
			WithContext("generalization", t.Generalization())
	}
	if result == nil || result.InformationLoss == nil {
		return errors.NewSearchError(errors.ErrCheckFailed, errors.CodeCheckFailed,
			"checker returned no information loss").
			WithContext("generalization", t.Generalization())
	}
	b.checks++
	t.SetChecked(result.PrivacyModelFulfilled, result.MinimalClassSizeFulfilled, result.InformationLoss, result.LowerBound)
	b.metrics.RecordCheck(b.name, b.now().Sub(started))
	b.metrics.SetHistorySnapshots(b.checker.History().Size())
	return nil
}

// Evaluate computes the loss of t without grouping the records. The metric
// must be independent.
func (b *Base) Evaluate(t *lattice.Transformation) error {
	if t.InformationLoss() != nil {
		return nil
	}
	loss, err := b.checker.Metric().InformationLoss(t)
	if err != nil {
		return errors.NewSearchError(fmt.Errorf("%w: %w", errors.ErrCheckFailed, err), errors.CodeCheckFailed,
			"failed to evaluate transformation").
			WithContext("generalization", t.Generalization())
	}
	t.SetInformationLoss(loss)
	b.ComputeLowerBound(t)
	b.metrics.RecordEvaluation(b.name)
	return nil
}

// ComputeLowerBound stores the metric's lower bound for t if it has none.
func (b *Base) ComputeLowerBound(t *lattice.Transformation) {
	if t.LowerBound() == nil {
		if bound := b.checker.Metric().LowerBound(t); bound != nil {
			t.SetLowerBound(bound)
		}
	}
}

// ComputeUtilityForMonotonicMetrics fills in the loss of t when utility is
// monotonic, so that the extremes of the lattice carry a value. Dependent
// metrics need a check, which is skipped once a limit has been reached.
func (b *Base) ComputeUtilityForMonotonicMetrics(t *lattice.Transformation) error {
	if b.checker.Configuration().UtilityMonotonicity != checker.MonotonicityFull || t.InformationLoss() != nil {
		return nil
	}
	if b.checker.Metric().IsIndependent() {
		return b.Evaluate(t)
	}
	if b.MustStop() {
		return nil
	}
	return b.Check(t)
}
