// Package flash implements the FLASH family of lattice searches. The
// traversal adapts to the monotonicity of privacy and utility: monotonic
// properties are bisected along paths through the lattice, everything else
// is visited depth first.
package flash

import (
	"time"

	"github.com/sirupsen/logrus"

	"github.com/inferloop/anonsearch/internal/algorithms"
	"github.com/inferloop/anonsearch/internal/checker"
	"github.com/inferloop/anonsearch/internal/lattice"
	"github.com/inferloop/anonsearch/internal/utils/pqueue"
	"github.com/inferloop/anonsearch/pkg/constants"
	"github.com/inferloop/anonsearch/pkg/errors"
)

// Algorithm runs a binary phase, a linear phase, or both.
type Algorithm struct {
	*algorithms.Base

	config   *Configuration
	strategy *Strategy

	// candidates have a lower bound but were processed before an optimum
	// was known.
	candidates []*lattice.Transformation
	sweptFor   *lattice.Transformation
}

// Create picks the configuration matching the checker's monotonicity.
func Create(space *lattice.SolutionSpace, c checker.Checker, timeLimit time.Duration, checkLimit int,
	strategy *Strategy, opts ...algorithms.Option) (*Algorithm, error) {
	if c == nil {
		return nil, errors.NewValidationError(errors.ErrInvalidParameters, errors.CodeMissingField, "checker is required")
	}
	config, err := NewConfiguration(space, c.Configuration(), c.Metric())
	if err != nil {
		return nil, err
	}
	return newAlgorithm(space, c, timeLimit, checkLimit, strategy, config, opts)
}

// NewBinaryAlgorithm creates an engine with only a binary phase.
func NewBinaryAlgorithm(space *lattice.SolutionSpace, c checker.Checker, timeLimit time.Duration, checkLimit int,
	strategy *Strategy, phase *PhaseConfiguration, opts ...algorithms.Option) (*Algorithm, error) {
	return newAlgorithm(space, c, timeLimit, checkLimit, strategy,
		&Configuration{Name: "binary", Binary: phase}, opts)
}

// NewLinearAlgorithm creates an engine with only a linear phase.
func NewLinearAlgorithm(space *lattice.SolutionSpace, c checker.Checker, timeLimit time.Duration, checkLimit int,
	strategy *Strategy, phase *PhaseConfiguration, opts ...algorithms.Option) (*Algorithm, error) {
	return newAlgorithm(space, c, timeLimit, checkLimit, strategy,
		&Configuration{Name: "linear", Linear: phase}, opts)
}

// NewTwoPhaseAlgorithm creates an engine with a binary and a linear phase.
func NewTwoPhaseAlgorithm(space *lattice.SolutionSpace, c checker.Checker, timeLimit time.Duration, checkLimit int,
	strategy *Strategy, binary, linear *PhaseConfiguration, opts ...algorithms.Option) (*Algorithm, error) {
	return newAlgorithm(space, c, timeLimit, checkLimit, strategy,
		&Configuration{Name: "two-phase", Binary: binary, Linear: linear}, opts)
}

func newAlgorithm(space *lattice.SolutionSpace, c checker.Checker, timeLimit time.Duration, checkLimit int,
	strategy *Strategy, config *Configuration, opts []algorithms.Option) (*Algorithm, error) {
	if config.Binary == nil && config.Linear == nil {
		return nil, errors.NewValidationError(errors.ErrInvalidParameters, errors.CodeMissingField,
			"at least one phase is required")
	}
	base, err := algorithms.NewBase(space, c, timeLimit, checkLimit,
		append([]algorithms.Option{algorithms.WithName(constants.AlgorithmFLASH)}, opts...)...)
	if err != nil {
		return nil, err
	}
	if strategy == nil {
		strategy = NewStrategy(space, nil)
	}
	return &Algorithm{Base: base, config: config, strategy: strategy}, nil
}

// Configuration returns the phase wiring.
func (a *Algorithm) Configuration() *Configuration {
	return a.config
}

// SetPruning enables or disables lower bound pruning.
func (a *Algorithm) SetPruning(enabled bool) {
	a.config.Pruning = enabled
}

// Traverse runs the search. It returns true unless a limit was reached.
func (a *Algorithm) Traverse() (bool, error) {
	a.Start()
	a.Logger().WithFields(a.Fields()).WithFields(logrus.Fields{
		"configuration": a.config.Name,
		"binary":        a.config.BinaryPhaseRequired(),
		"linear":        a.config.LinearPhaseRequired(),
		"pruning":       a.config.Pruning,
	}).Debug("FLASH configuration")

	if a.config.LinearPhaseRequired() {
		a.Checker().History().SetStorageStrategy(checker.StorageAll)
	} else {
		a.Checker().History().SetStorageStrategy(checker.StorageNonAnonymous)
	}

	stopped, err := a.traverse()
	if err != nil {
		return false, err
	}

	if err := a.ComputeUtilityForMonotonicMetrics(a.Space().Top()); err != nil {
		return false, err
	}
	if err := a.ComputeUtilityForMonotonicMetrics(a.Space().Bottom()); err != nil {
		return false, err
	}

	a.Finish(!stopped)
	return !stopped, nil
}

func (a *Algorithm) traverse() (bool, error) {
	space := a.Space()
	levels := float64(space.TopLevel() - space.BottomLevel() + 1)

	for level := space.BottomLevel(); level <= space.TopLevel(); level++ {
		candidates, stopped := a.levelCandidates(level)
		if stopped {
			return true, nil
		}
		for _, t := range candidates {
			if a.config.BinaryPhaseRequired() {
				if !a.config.Binary.skip(t) {
					if err := a.binarySearch(t); err != nil {
						return false, err
					}
				}
			} else if !a.config.Linear.skip(t) {
				if err := a.linearSearch(t); err != nil {
					return false, err
				}
			}
			if a.MustStop() {
				return true, nil
			}
		}
		a.Progress(float64(level-space.BottomLevel()+1) / levels)
		a.Logger().WithFields(a.Fields()).WithFields(logrus.Fields{
			"level":  level,
			"checks": a.Checks(),
		}).Debug("Level done")
	}
	return false, nil
}

func (a *Algorithm) binarySearch(start *lattice.Transformation) error {
	phase := a.config.Binary
	queue := pqueue.New(a.strategy.LessID, 0)
	queue.Add(start.ID())

	for !queue.IsEmpty() {
		id, _ := queue.PollMin()
		next := a.Space().Transformation(id)
		if !phase.skip(next) {
			if err := a.checkPath(a.findPath(next, phase), queue); err != nil {
				return err
			}
		}
		if a.MustStop() {
			return nil
		}
	}
	return nil
}

// findPath walks greedily upwards through the first unskipped successor.
func (a *Algorithm) findPath(start *lattice.Transformation, phase *PhaseConfiguration) []*lattice.Transformation {
	path := []*lattice.Transformation{start}
	for head := start; head != nil; {
		var next *lattice.Transformation
		for _, successor := range a.sortedSuccessors(head) {
			if !phase.skip(successor) {
				next = successor
				break
			}
		}
		if next != nil {
			path = append(path, next)
		}
		head = next
	}
	return path
}

// checkPath bisects path for the lowest transformation with the phase's
// anonymity property.
func (a *Algorithm) checkPath(path []*lattice.Transformation, queue *pqueue.MinMaxPriorityQueue[int64]) error {
	phase := a.config.Binary
	low, high := 0, len(path)-1
	var last *lattice.Transformation

	for low <= high {
		mid := int(uint(low+high) >> 1)
		t := path[mid]
		if phase.skip(t) {
			high = mid - 1
			continue
		}

		if err := a.checkAndTag(t, phase); err != nil {
			return err
		}

		switch {
		case t.HasProperty(phase.AnonymityProperty):
			last = t
			high = mid - 1
		case !t.IsChecked():
			// pruned
			high = mid - 1
		default:
			for _, successor := range a.sortedSuccessors(t) {
				if !phase.skip(successor) {
					queue.Add(successor.ID())
				}
			}
			low = mid + 1
		}

		if a.MustStop() {
			return nil
		}
	}

	if a.config.LinearPhaseRequired() && last != nil {
		return a.linearSearch(last)
	}
	return nil
}

// linearSearch visits everything above start depth first.
func (a *Algorithm) linearSearch(start *lattice.Transformation) error {
	phase := a.config.Linear
	pruned := a.Space().PropertySuccessorsPruned()
	stack := []*lattice.Transformation{start}

	for len(stack) > 0 {
		t := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		if !phase.skip(t) {
			if err := a.checkAndTag(t, phase); err != nil {
				return err
			}
			if !t.HasProperty(pruned) {
				successors := a.sortedSuccessors(t)
				for i := len(successors) - 1; i >= 0; i-- {
					if !phase.skip(successors[i]) {
						stack = append(stack, successors[i])
					}
				}
			}
		}

		if a.MustStop() {
			return nil
		}
	}
	return nil
}

func (a *Algorithm) checkAndTag(t *lattice.Transformation, phase *PhaseConfiguration) error {
	if a.config.Pruning {
		a.ComputeLowerBound(t)
		if a.prunable(t) {
			a.prune(t)
			return nil
		}
		if a.GlobalOptimum() == nil && t.LowerBound() != nil {
			a.candidates = append(a.candidates, t)
		}
	}

	switch {
	case phase.TriggerEvaluate != nil && phase.TriggerEvaluate(t):
		if err := a.Evaluate(t); err != nil {
			return err
		}
	case phase.TriggerCheck != nil && phase.TriggerCheck(t):
		if err := a.Check(t); err != nil {
			return err
		}
	}

	a.TrackOptimum(t)
	if phase.TriggerTag != nil {
		phase.TriggerTag(t)
	}

	if a.config.Pruning {
		a.sweep()
	}
	return nil
}

// prunable reports whether t and everything above it cannot improve on the
// current optimum.
func (a *Algorithm) prunable(t *lattice.Transformation) bool {
	optimum := a.GlobalOptimum()
	if optimum == nil || t == optimum || t.LowerBound() == nil {
		return false
	}
	c := t.LowerBound().CompareTo(optimum.InformationLoss())
	return c > 0 || (c == 0 && t.Level() >= optimum.Level())
}

func (a *Algorithm) prune(t *lattice.Transformation) {
	space := a.Space()
	t.SetProperty(space.PropertyInsufficientUtility())
	space.SetPropertyToNeighbours(t, space.PropertyInsufficientUtility())
	t.SetProperty(space.PropertySuccessorsPruned())
}

// sweep compares the pending candidates against a new optimum.
func (a *Algorithm) sweep() {
	optimum := a.GlobalOptimum()
	if optimum == nil || optimum == a.sweptFor || len(a.candidates) == 0 {
		return
	}
	a.sweptFor = optimum

	kept := a.candidates[:0]
	for _, t := range a.candidates {
		if a.prunable(t) {
			a.prune(t)
		} else {
			kept = append(kept, t)
		}
	}
	a.candidates = kept
}

// levelCandidates returns the transformations of a level that the first
// phase does not skip, in strategy order. Skipped transformations are not
// materialized. The limits are polled for every identifier.
func (a *Algorithm) levelCandidates(level int) ([]*lattice.Transformation, bool) {
	space := a.Space()
	phase := a.config.Linear
	if a.config.BinaryPhaseRequired() {
		phase = a.config.Binary
	}

	var candidates []*lattice.Transformation
	stopped := false
	space.ForEachLevelID(level, func(id int64) bool {
		if a.MustStop() {
			stopped = true
			return false
		}
		if !phase.skip(space.Peek(id)) {
			candidates = append(candidates, space.Transformation(id))
		}
		return true
	})
	a.strategy.Sort(candidates)
	return candidates, stopped
}

func (a *Algorithm) sortedSuccessors(t *lattice.Transformation) []*lattice.Transformation {
	return a.sorted(t.Successors())
}

func (a *Algorithm) sorted(ids []int64) []*lattice.Transformation {
	space := a.Space()
	ts := make([]*lattice.Transformation, len(ids))
	for i, id := range ids {
		ts[i] = space.Transformation(id)
	}
	a.strategy.Sort(ts)
	return ts
}
