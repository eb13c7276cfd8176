package checker

import (
	"github.com/inferloop/anonsearch/internal/lattice"
	"github.com/inferloop/anonsearch/pkg/errors"
)

// SyntheticConfig describes a checker backed by plain functions over
// generalization vectors.
type SyntheticConfig struct {
	Anonymous func(generalization []int) bool
	// KAnonymous defaults to Anonymous.
	KAnonymous func(generalization []int) bool
	Loss       func(generalization []int) float64
	// Bound is optional.
	Bound func(generalization []int) float64
	// Fail makes Check return the error for selected transformations.
	Fail func(generalization []int) error

	Independent           bool
	PrivacyMonotonicity   Monotonicity
	UtilityMonotonicity   Monotonicity
	PracticalMonotonicity bool
}

// SyntheticChecker evaluates transformations with caller supplied functions.
// It counts every call to Check, including repeated ones.
type SyntheticChecker struct {
	cfg     SyntheticConfig
	metric  *FuncMetric
	history *nullHistory
	checks  int
}

// NewSyntheticChecker creates the checker. Loss defaults to the level of
// the transformation.
func NewSyntheticChecker(cfg SyntheticConfig) *SyntheticChecker {
	if cfg.KAnonymous == nil {
		cfg.KAnonymous = cfg.Anonymous
	}
	if cfg.Loss == nil {
		cfg.Loss = func(generalization []int) float64 {
			sum := 0
			for _, g := range generalization {
				sum += g
			}
			return float64(sum)
		}
	}
	return &SyntheticChecker{
		cfg: cfg,
		metric: &FuncMetric{
			Loss:        cfg.Loss,
			Bound:       cfg.Bound,
			Monotonic:   cfg.UtilityMonotonicity == MonotonicityFull,
			Independent: cfg.Independent,
		},
		history: &nullHistory{},
	}
}

// Check implements Checker.
func (c *SyntheticChecker) Check(t *lattice.Transformation) (*TransformationResult, error) {
	c.checks++
	gen := t.Generalization()
	if c.cfg.Fail != nil {
		if err := c.cfg.Fail(gen); err != nil {
			return nil, err
		}
	}
	return &TransformationResult{
		PrivacyModelFulfilled:     c.cfg.Anonymous(gen),
		MinimalClassSizeFulfilled: c.cfg.KAnonymous(gen),
		InformationLoss:           lattice.ScalarLoss(c.cfg.Loss(gen)),
		LowerBound:                c.metric.LowerBound(t),
	}, nil
}

// Checks returns the number of Check calls.
func (c *SyntheticChecker) Checks() int {
	return c.checks
}

// Metric implements Checker.
func (c *SyntheticChecker) Metric() Metric {
	return c.metric
}

// Configuration implements Checker.
func (c *SyntheticChecker) Configuration() Configuration {
	return Configuration{
		PrivacyMonotonicity:   c.cfg.PrivacyMonotonicity,
		UtilityMonotonicity:   c.cfg.UtilityMonotonicity,
		CriterionMonotonic:    c.cfg.PrivacyMonotonicity == MonotonicityFull,
		PracticalMonotonicity: c.cfg.PracticalMonotonicity,
	}
}

// History implements Checker.
func (c *SyntheticChecker) History() History {
	return c.history
}

// FuncMetric is a metric defined by functions over generalization vectors.
type FuncMetric struct {
	Loss        func(generalization []int) float64
	Bound       func(generalization []int) float64
	Monotonic   bool
	Independent bool
}

func (m *FuncMetric) Name() string        { return "function" }
func (m *FuncMetric) IsMonotonic() bool   { return m.Monotonic }
func (m *FuncMetric) IsIndependent() bool { return m.Independent }

func (m *FuncMetric) InformationLoss(t *lattice.Transformation) (lattice.InformationLoss, error) {
	if !m.Independent {
		return nil, errors.NewSearchError(errors.ErrInvalidConfiguration, errors.CodeInvalidConfiguration,
			"metric cannot be evaluated without a check")
	}
	return lattice.ScalarLoss(m.Loss(t.Generalization())), nil
}

func (m *FuncMetric) LowerBound(t *lattice.Transformation) lattice.InformationLoss {
	if m.Bound == nil {
		return nil
	}
	return lattice.ScalarLoss(m.Bound(t.Generalization()))
}
