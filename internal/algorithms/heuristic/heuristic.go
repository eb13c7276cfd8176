// Package heuristic implements best-first searches that periodically dive
// depth first to find a good solution early.
package heuristic

import (
	"cmp"
	"math"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/inferloop/anonsearch/internal/algorithms"
	"github.com/inferloop/anonsearch/internal/checker"
	"github.com/inferloop/anonsearch/internal/lattice"
	"github.com/inferloop/anonsearch/internal/utils/pqueue"
	"github.com/inferloop/anonsearch/pkg/constants"
)

// Algorithm explores the lattice from one extreme towards the other. The
// queue is ordered by information loss; every stepping-th expansion is
// replaced by a dive along the best neighbour.
type Algorithm struct {
	*algorithms.Base

	bottomUp  bool
	queueSize int
	stepping  int

	queue *pqueue.MinMaxPriorityQueue[int64]
	// boundPruned counts transformations skipped by a bound in a direction
	// where bounds do not carry over to neighbours.
	boundPruned int
}

// NewBottomUp starts at the bottom and expands successors. queueSize <= 0
// selects the default.
func NewBottomUp(space *lattice.SolutionSpace, c checker.Checker, timeLimit time.Duration, checkLimit, queueSize int,
	opts ...algorithms.Option) (*Algorithm, error) {
	return newAlgorithm(space, c, timeLimit, checkLimit, queueSize, true, constants.AlgorithmBestFirst, opts)
}

// NewTopDown starts at the top and expands predecessors.
func NewTopDown(space *lattice.SolutionSpace, c checker.Checker, timeLimit time.Duration, checkLimit, queueSize int,
	opts ...algorithms.Option) (*Algorithm, error) {
	return newAlgorithm(space, c, timeLimit, checkLimit, queueSize, false, constants.AlgorithmTopDown, opts)
}

func newAlgorithm(space *lattice.SolutionSpace, c checker.Checker, timeLimit time.Duration, checkLimit, queueSize int,
	bottomUp bool, name string, opts []algorithms.Option) (*Algorithm, error) {
	base, err := algorithms.NewBase(space, c, timeLimit, checkLimit,
		append([]algorithms.Option{algorithms.WithName(name)}, opts...)...)
	if err != nil {
		return nil, err
	}
	if queueSize <= 0 {
		queueSize = constants.DefaultHeuristicQueueSize
	}
	return &Algorithm{
		Base:      base,
		bottomUp:  bottomUp,
		queueSize: queueSize,
		stepping:  max(space.TopLevel()-space.BottomLevel(), 1),
	}, nil
}

// Traverse runs the search. It returns true when the queue was drained
// without reaching a limit or dropping entries.
func (a *Algorithm) Traverse() (bool, error) {
	a.Start()
	a.Checker().History().SetStorageStrategy(checker.StorageChecked)
	a.queue = pqueue.New(a.less, a.queueSize)
	a.boundPruned = 0

	optimal, err := a.traverse()
	if err != nil {
		return false, err
	}
	a.Finish(optimal)
	return optimal, nil
}

func (a *Algorithm) traverse() (bool, error) {
	space := a.Space()
	config := a.Checker().Configuration()

	start := space.Top()
	if a.bottomUp {
		start = space.Bottom()
	}
	if err := a.Check(start); err != nil {
		return false, err
	}
	a.TrackOptimum(start)
	start.SetProperty(space.PropertyVisited())

	anonymous := start.HasProperty(space.PropertyAnonymous())
	switch {
	case a.bottomUp && anonymous && config.UtilityMonotonicity == checker.MonotonicityFull:
		return true, nil
	case !a.bottomUp && !anonymous && config.PrivacyMonotonicity == checker.MonotonicityFull:
		return true, nil
	}

	a.queue.Add(start.ID())
	steps := 0
	for !a.queue.IsEmpty() {
		if a.MustStop() {
			return false, nil
		}
		id, _ := a.queue.PollMin()
		next := space.Transformation(id)
		if a.prune(next) {
			continue
		}

		steps++
		var err error
		if steps%a.stepping == 0 {
			err = a.dive(next)
		} else {
			_, err = a.expand(next)
		}
		if err != nil {
			return false, err
		}
		a.Progress(float64(space.Materialized()) / math.Max(1, sizeFloat(space)))
	}

	if a.MustStop() {
		return false, nil
	}
	return a.queue.Dropped() == 0 && a.boundPruned == 0, nil
}

// dive follows the best neighbour until none is left.
func (a *Algorithm) dive(t *lattice.Transformation) error {
	depth := 0
	for current := t; current != nil; depth++ {
		best, err := a.expand(current)
		if err != nil {
			return err
		}
		if best != nil {
			a.queue.Remove(best.ID())
		}
		current = best
	}
	a.Logger().WithFields(a.Fields()).WithFields(logrus.Fields{
		"from":   t.String(),
		"depth":  depth,
		"checks": a.Checks(),
	}).Debug("Depth-first dive")
	return nil
}

// expand checks every unvisited neighbour of t, queues it, and returns the
// one with the smallest loss. It returns nil when stopped.
func (a *Algorithm) expand(t *lattice.Transformation) (*lattice.Transformation, error) {
	space := a.Space()
	visited := space.PropertyVisited()
	privacyMonotonic := a.Checker().Configuration().PrivacyMonotonicity == checker.MonotonicityFull

	if !a.bottomUp && privacyMonotonic && !t.HasProperty(space.PropertyAnonymous()) {
		// nothing below a non-anonymous transformation is anonymous
		t.SetProperty(space.PropertyExpanded())
		return nil, nil
	}

	var best *lattice.Transformation
	for _, id := range a.neighbours(t) {
		n := space.Transformation(id)
		if !n.HasProperty(visited) {
			if err := a.Check(n); err != nil {
				return nil, err
			}
			a.TrackOptimum(n)
			a.queue.Add(n.ID())
			if best == nil || a.less(n.ID(), best.ID()) {
				best = n
			}
			n.SetProperty(visited)
		}
		if a.MustStop() {
			return nil, nil
		}
	}
	t.SetProperty(space.PropertyExpanded())
	return best, nil
}

// prune reports whether t can be skipped, tagging it when its bound shows
// it cannot improve on the optimum.
func (a *Algorithm) prune(t *lattice.Transformation) bool {
	space := a.Space()
	if t.HasProperty(space.PropertyExpanded()) {
		return true
	}
	optimum := a.GlobalOptimum()
	if optimum == nil || t == optimum {
		return false
	}

	a.ComputeLowerBound(t)
	bound := t.LowerBound()
	if bound == nil && a.Checker().Configuration().UtilityMonotonicity == checker.MonotonicityFull {
		bound = t.InformationLoss()
	}
	if bound == nil {
		return false
	}
	if c := bound.CompareTo(optimum.InformationLoss()); c < 0 || (c == 0 && t.Level() < optimum.Level()) {
		return false
	}

	t.SetProperty(space.PropertyInsufficientUtility())
	t.SetProperty(space.PropertySuccessorsPruned())
	if !a.bottomUp {
		a.boundPruned++
	}
	return true
}

func (a *Algorithm) neighbours(t *lattice.Transformation) []int64 {
	if a.bottomUp {
		return t.Successors()
	}
	return t.Predecessors()
}

// less orders queued transformations by loss, then level, then identifier.
func (a *Algorithm) less(x, y int64) bool {
	space := a.Space()
	tx, ty := space.Transformation(x), space.Transformation(y)
	if c := lattice.CompareLoss(tx.InformationLoss(), ty.InformationLoss()); c != 0 {
		return c < 0
	}
	if c := cmp.Compare(tx.Level(), ty.Level()); c != 0 {
		return c < 0
	}
	return x < y
}

func sizeFloat(space *lattice.SolutionSpace) float64 {
	f, _ := space.Size().Float64()
	return f
}
