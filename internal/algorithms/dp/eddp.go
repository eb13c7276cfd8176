// Package dp implements a data-dependent search that satisfies differential
// privacy by choosing each step with the exponential mechanism.
package dp

import (
	"fmt"
	"maps"
	"slices"
	"time"

	"github.com/cockroachdb/apd/v3"
	"github.com/sirupsen/logrus"

	"github.com/inferloop/anonsearch/internal/algorithms"
	"github.com/inferloop/anonsearch/internal/checker"
	"github.com/inferloop/anonsearch/internal/lattice"
	"github.com/inferloop/anonsearch/internal/privacy"
	"github.com/inferloop/anonsearch/pkg/constants"
	"github.com/inferloop/anonsearch/pkg/errors"
)

// ScoreFunc rates a checked transformation. Higher is better.
type ScoreFunc func(t *lattice.Transformation) (float64, error)

// NegativeLoss scores a transformation by its negated scalar loss.
func NegativeLoss(t *lattice.Transformation) (float64, error) {
	v, ok := lattice.ValueOf(t.InformationLoss())
	if !ok {
		return 0, errors.NewSearchError(errors.ErrInvalidParameters, errors.CodeInvalidInput,
			"transformation has no scalar information loss").
			WithContext("generalization", t.Generalization())
	}
	return -v, nil
}

// Config contains the parameters of the search
type Config struct {
	Epsilon        float64 `json:"epsilon" mapstructure:"epsilon" yaml:"epsilon"`
	ExpansionLimit int     `json:"expansion_limit" mapstructure:"expansion_limit" yaml:"expansion_limit"`
	Precision      uint32  `json:"precision" mapstructure:"precision" yaml:"precision"`
	// Deterministic replaces the secure random source with one seeded by
	// Seed. The result is then not differentially private.
	Deterministic bool  `json:"deterministic" mapstructure:"deterministic" yaml:"deterministic"`
	Seed          int64 `json:"seed" mapstructure:"seed" yaml:"seed"`
}

// DefaultConfig returns the default parameters
func DefaultConfig() *Config {
	return &Config{
		Epsilon:        constants.DefaultEpsilon,
		ExpansionLimit: constants.DefaultExpansionLimit,
		Precision:      constants.DefaultMechanismPrecision,
		Seed:           constants.DefaultDeterministicSeed,
	}
}

// Validate checks every parameter
func (c *Config) Validate() error {
	ve := errors.NewValidationErrors("invalid differential privacy configuration")
	ve.Check(c.Epsilon > 0, "epsilon", "must be positive", c.Epsilon)
	ve.Check(c.ExpansionLimit > 0, "expansion_limit", "must be positive", c.ExpansionLimit)
	ve.Check(c.Precision > 0, "precision", "must be positive", c.Precision)
	return ve.ErrorOrNil()
}

// EDDP walks down from the top of the lattice. Each step adds the unseen
// predecessors of the current pivot to the candidate set and samples the
// next pivot from all candidates. The best pivot becomes the result.
type EDDP struct {
	*algorithms.Base

	config *Config
	score  ScoreFunc
	budget *privacy.BudgetManager

	scores     map[int64]float64
	candidates map[int64]struct{}
	best       *lattice.Transformation
	bestScore  float64
}

// New creates the search. A nil config selects the defaults.
func New(space *lattice.SolutionSpace, c checker.Checker, timeLimit time.Duration, checkLimit int, config *Config,
	opts ...algorithms.Option) (*EDDP, error) {
	if config == nil {
		config = DefaultConfig()
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}
	base, err := algorithms.NewBase(space, c, timeLimit, checkLimit,
		append([]algorithms.Option{algorithms.WithName(constants.AlgorithmEDDP)}, opts...)...)
	if err != nil {
		return nil, err
	}

	return &EDDP{
		Base:   base,
		config: config,
		score:  NegativeLoss,
	}, nil
}

// SetScore replaces the default scoring by negative loss.
func (e *EDDP) SetScore(score ScoreFunc) {
	if score != nil {
		e.score = score
	}
}

// Budget returns the ledger of the last run.
func (e *EDDP) Budget() *privacy.BudgetManager {
	return e.budget
}

// Traverse runs the search. The result is randomized and never reported as
// optimal.
func (e *EDDP) Traverse() (bool, error) {
	e.Start()
	e.Checker().History().SetStorageStrategy(checker.StorageChecked)

	budget, err := privacy.NewBudgetManager(e.config.Epsilon, e.config.Precision, e.Logger())
	if err != nil {
		return false, err
	}
	e.budget = budget
	e.scores = make(map[int64]float64)
	e.candidates = make(map[int64]struct{})
	e.best = nil

	if err := e.traverse(); err != nil {
		return false, err
	}
	e.TrackOptimum(e.best)
	e.Finish(false)
	return false, nil
}

func (e *EDDP) traverse() error {
	share, err := e.budget.Split(e.config.ExpansionLimit)
	if err != nil {
		return err
	}
	mechanism := e.mechanism()

	pivot := e.Space().Top()
	if err := e.visit(pivot); err != nil {
		return err
	}
	e.consider(pivot)

	for step := 0; step < e.config.ExpansionLimit; step++ {
		if e.MustStop() {
			return nil
		}
		stopped, err := e.expand(pivot)
		if err != nil || stopped {
			return err
		}
		delete(e.candidates, pivot.ID())
		if len(e.candidates) == 0 {
			return nil
		}

		if pivot, err = e.sample(mechanism, share); err != nil || pivot == nil {
			return err
		}
		e.consider(pivot)

		e.Logger().WithFields(e.Fields()).WithFields(logrus.Fields{
			"step":       step,
			"pivot":      pivot.String(),
			"candidates": len(e.candidates),
			"epsilon":    share.String(),
		}).Debug("Selected pivot")
		e.Progress(float64(step+1) / float64(e.config.ExpansionLimit))
	}
	return nil
}

func (e *EDDP) mechanism() *privacy.ExponentialMechanism[int64] {
	if e.config.Deterministic {
		return privacy.NewDeterministicExponentialMechanism[int64](e.config.Precision, e.config.Seed, e.Logger())
	}
	return privacy.NewExponentialMechanism[int64](e.config.Precision, e.Logger())
}

// visit checks, scores and enqueues t unless it has been seen before.
func (e *EDDP) visit(t *lattice.Transformation) error {
	visited := e.Space().PropertyVisited()
	if t.HasProperty(visited) {
		return nil
	}
	if err := e.Check(t); err != nil {
		return err
	}
	s, err := e.score(t)
	if err != nil {
		return err
	}
	e.scores[t.ID()] = s
	e.candidates[t.ID()] = struct{}{}
	t.SetProperty(visited)
	return nil
}

// expand adds the unseen predecessors of pivot to the candidates. It reports
// true when a limit was reached.
func (e *EDDP) expand(pivot *lattice.Transformation) (bool, error) {
	for _, id := range pivot.Predecessors() {
		if e.MustStop() {
			return true, nil
		}
		if err := e.visit(e.Space().Transformation(id)); err != nil {
			return false, err
		}
	}
	return false, nil
}

// sample spends one share of the budget and draws the next pivot. It
// returns nil when the budget cannot cover another share.
func (e *EDDP) sample(mechanism *privacy.ExponentialMechanism[int64], share *apd.Decimal) (*lattice.Transformation, error) {
	if !e.budget.CanSpend(share) {
		e.Logger().WithFields(e.Fields()).WithField("remaining", e.budget.Remaining().String()).
			Debug("Privacy budget exhausted")
		return nil, nil
	}
	ids := slices.Sorted(maps.Keys(e.candidates))
	scores := make([]float64, len(ids))
	for i, id := range ids {
		scores[i] = e.scores[id]
	}

	if err := mechanism.SetDistribution(ids, scores, share); err != nil {
		return nil, err
	}
	if err := e.budget.Spend(share, fmt.Sprintf("select pivot among %d candidates", len(ids)), "exponential"); err != nil {
		return nil, err
	}
	if v, err := share.Float64(); err == nil {
		e.Metrics().RecordEpsilonSpent(e.Name(), v)
	}

	id, err := mechanism.Sample()
	if err != nil {
		return nil, err
	}
	return e.Space().Transformation(id), nil
}

func (e *EDDP) consider(t *lattice.Transformation) {
	s := e.scores[t.ID()]
	if e.best == nil || s > e.bestScore {
		e.best = t
		e.bestScore = s
	}
}
