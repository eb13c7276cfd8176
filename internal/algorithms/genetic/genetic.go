// Package genetic implements a population based heuristic. Two
// sub-populations evolve independently and exchange their best individuals
// at a fixed interval.
package genetic

import (
	"math"
	"math/rand"
	"slices"
	"time"

	"github.com/sirupsen/logrus"
	"gonum.org/v1/gonum/stat"

	"github.com/inferloop/anonsearch/internal/algorithms"
	"github.com/inferloop/anonsearch/internal/checker"
	"github.com/inferloop/anonsearch/internal/lattice"
	"github.com/inferloop/anonsearch/pkg/constants"
)

type population []*lattice.Transformation

// Algorithm is the genetic search. Individuals are transformations, so an
// individual that reappears in a later generation is not checked again.
type Algorithm struct {
	*algorithms.Base

	config *Config
	seed   int64
	rng    *rand.Rand
}

// New validates config and creates the algorithm. A nil config selects the
// defaults.
func New(space *lattice.SolutionSpace, c checker.Checker, timeLimit time.Duration, checkLimit int, config *Config,
	opts ...algorithms.Option) (*Algorithm, error) {
	if config == nil {
		config = DefaultConfig()
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}
	base, err := algorithms.NewBase(space, c, timeLimit, checkLimit,
		append([]algorithms.Option{algorithms.WithName(constants.AlgorithmGenetic)}, opts...)...)
	if err != nil {
		return nil, err
	}

	seed := config.Seed
	if !config.Deterministic {
		seed = time.Now().UnixNano()
	}
	return &Algorithm{
		Base:   base,
		config: config,
		seed:   seed,
	}, nil
}

// Traverse evolves the populations until the generation count or a limit is
// reached. The result is never guaranteed to be optimal.
func (a *Algorithm) Traverse() (bool, error) {
	a.Start()
	a.rng = rand.New(rand.NewSource(a.seed))
	a.Checker().History().SetStorageStrategy(checker.StorageChecked)

	if err := a.traverse(); err != nil {
		return false, err
	}
	a.Finish(false)
	return false, nil
}

func (a *Algorithm) traverse() error {
	first, ok, err := a.initialize(true)
	if err != nil || !ok {
		return err
	}
	second, ok, err := a.initialize(false)
	if err != nil || !ok {
		return err
	}

	for generation := 0; generation < a.config.Generations; generation++ {
		if a.MustStop() {
			return nil
		}
		a.sort(first)
		a.sort(second)

		if generation > 0 && generation%a.config.ImmigrationInterval == 0 {
			a.migrate(first, second)
		}

		if first, ok, err = a.evolve(first); err != nil || !ok {
			return err
		}
		if second, ok, err = a.evolve(second); err != nil || !ok {
			return err
		}

		a.logGeneration(generation, first, second)
		a.Progress(float64(generation+1) / float64(a.config.Generations))
	}
	return nil
}

// initialize creates a random sub-population, optionally seeded with the top
// of the lattice.
func (a *Algorithm) initialize(withTop bool) (population, bool, error) {
	size := a.config.SubpopulationSize
	pop := make(population, 0, size)
	if withTop {
		top := a.Space().Top()
		if ok, err := a.evaluate(top); err != nil || !ok {
			return pop, ok, err
		}
		pop = append(pop, top)
	}
	for len(pop) < size {
		t, err := a.Space().TransformationFor(a.random())
		if err != nil {
			return pop, false, err
		}
		if ok, err := a.evaluate(t); err != nil || !ok {
			return pop, ok, err
		}
		pop = append(pop, t)
	}
	return pop, true, nil
}

// evaluate checks t and tracks it as a candidate optimum. It reports false
// once a limit has been reached.
func (a *Algorithm) evaluate(t *lattice.Transformation) (bool, error) {
	if a.MustStop() {
		return false, nil
	}
	if err := a.Check(t); err != nil {
		return false, err
	}
	a.TrackOptimum(t)
	return true, nil
}

// evolve builds the next generation of a sorted sub-population. Elites are
// kept, the middle is mutated and the tail is replaced by crossover children.
func (a *Algorithm) evolve(pop population) (population, bool, error) {
	size := len(pop)
	elites := int(a.config.EliteFraction * float64(size))
	crossovers := int(a.config.CrossoverFraction * float64(size))
	weights := a.fitness(pop)

	next := make(population, size)
	copy(next, pop[:elites])
	for i := elites; i < size; i++ {
		var generalization []int
		if i >= size-crossovers {
			generalization = a.crossover(pop[a.roulette(weights)], pop[a.roulette(weights)])
		} else {
			generalization = a.mutate(pop[i])
		}
		t, err := a.Space().TransformationFor(generalization)
		if err != nil {
			return pop, false, err
		}
		if ok, err := a.evaluate(t); err != nil || !ok {
			return pop, ok, err
		}
		next[i] = t
	}
	return next, true, nil
}

// migrate replaces the weakest individuals of each sorted sub-population
// with the strongest of the other one.
func (a *Algorithm) migrate(first, second population) {
	size := len(first)
	count := min(int(a.config.ImmigrationFraction*float64(size)), size, len(second))
	if count == 0 {
		return
	}
	fromFirst := slices.Clone(first[:count])
	fromSecond := slices.Clone(second[:count])
	copy(first[size-count:], fromSecond)
	copy(second[len(second)-count:], fromFirst)
	a.sort(first)
	a.sort(second)

	a.Logger().WithFields(a.Fields()).WithField("immigrants", count).Debug("Exchanged individuals between sub-populations")
}

// sort orders anonymous individuals before non-anonymous ones, each by
// ascending loss.
func (a *Algorithm) sort(pop population) {
	anonymous := a.Space().PropertyAnonymous()
	slices.SortStableFunc(pop, func(x, y *lattice.Transformation) int {
		ax, ay := x.HasProperty(anonymous), y.HasProperty(anonymous)
		if ax != ay {
			if ax {
				return -1
			}
			return 1
		}
		if c := lattice.CompareLoss(x.InformationLoss(), y.InformationLoss()); c != 0 {
			return c
		}
		switch {
		case x.ID() < y.ID():
			return -1
		case x.ID() > y.ID():
			return 1
		}
		return 0
	})
}

// fitness maps every individual to 1 - its loss normalized to the
// population's range.
func (a *Algorithm) fitness(pop population) []float64 {
	var lo, hi lattice.InformationLoss
	for _, t := range pop {
		loss := t.InformationLoss()
		if loss == nil {
			continue
		}
		if lo == nil || loss.CompareTo(lo) < 0 {
			lo = loss
		}
		if hi == nil || loss.CompareTo(hi) > 0 {
			hi = loss
		}
	}

	weights := make([]float64, len(pop))
	for i, t := range pop {
		if loss := t.InformationLoss(); loss != nil {
			weights[i] = 1 - loss.RelativeTo(lo, hi)
		}
	}
	return weights
}

// roulette samples an index with probability proportional to its weight,
// falling back to a uniform choice when all weights are zero.
func (a *Algorithm) roulette(weights []float64) int {
	total := 0.0
	for _, w := range weights {
		total += w
	}
	if total <= 0 {
		return a.rng.Intn(len(weights))
	}
	r := a.rng.Float64() * total
	for i, w := range weights {
		r -= w
		if r < 0 {
			return i
		}
	}
	return len(weights) - 1
}

// crossover takes every gene from either parent with equal probability.
func (a *Algorithm) crossover(x, y *lattice.Transformation) []int {
	child := x.Generalization()
	for i := range child {
		if a.rng.Intn(2) == 1 {
			child[i] = y.GeneralizationAt(i)
		}
	}
	return child
}

// mutate re-randomizes a bounded number of genes within their level range.
func (a *Algorithm) mutate(t *lattice.Transformation) []int {
	generalization := t.Generalization()
	dims := len(generalization)
	count := max(1, int(math.Ceil(a.config.MutationProbability*float64(dims))))
	for _, dim := range a.rng.Perm(dims)[:min(count, dims)] {
		generalization[dim] = a.level(dim)
	}
	return generalization
}

func (a *Algorithm) random() []int {
	generalization := make([]int, a.Space().Dimensions())
	for i := range generalization {
		generalization[i] = a.level(i)
	}
	return generalization
}

func (a *Algorithm) level(dim int) int {
	lo, hi := a.Space().MinLevels()[dim], a.Space().MaxLevels()[dim]
	return lo + a.rng.Intn(hi-lo+1)
}

func (a *Algorithm) logGeneration(generation int, populations ...population) {
	if !a.Logger().IsLevelEnabled(logrus.DebugLevel) {
		return
	}
	var losses []float64
	for _, pop := range populations {
		for _, t := range pop {
			if v, ok := lattice.ValueOf(t.InformationLoss()); ok {
				losses = append(losses, v)
			}
		}
	}
	fields := logrus.Fields{
		"generation": generation,
		"checks":     a.Checks(),
	}
	if len(losses) > 1 {
		mean, std := stat.MeanStdDev(losses, nil)
		fields["loss_mean"] = mean
		fields["loss_std"] = std
	}
	if optimum := a.GlobalOptimum(); optimum != nil {
		fields["optimum"] = optimum.String()
	}
	a.Logger().WithFields(a.Fields()).WithFields(fields).Debug("Generation finished")
}
