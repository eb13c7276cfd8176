package genetic

import (
	stderrors "errors"
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/inferloop/anonsearch/internal/algorithms"
	"github.com/inferloop/anonsearch/internal/checker"
	"github.com/inferloop/anonsearch/internal/lattice"
	"github.com/inferloop/anonsearch/pkg/errors"
	"github.com/inferloop/anonsearch/pkg/interfaces"
	"github.com/inferloop/anonsearch/tests/helpers"
)

func deterministic() *Config {
	config := DefaultConfig()
	config.SubpopulationSize = 20
	config.Generations = 15
	config.ImmigrationInterval = 5
	config.Deterministic = true
	config.Seed = 7
	return config
}

func TestConfig_Validate(t *testing.T) {
	assert.NoError(t, DefaultConfig().Validate())

	tests := []struct {
		name   string
		modify func(*Config)
		field  string
	}{
		{"subpopulation size", func(c *Config) { c.SubpopulationSize = 0 }, "subpopulation_size"},
		{"generations", func(c *Config) { c.Generations = -1 }, "generations"},
		{"immigration interval", func(c *Config) { c.ImmigrationInterval = 0 }, "immigration_interval"},
		{"elite fraction", func(c *Config) { c.EliteFraction = 1.5 }, "elite_fraction"},
		{"mutation probability", func(c *Config) { c.MutationProbability = -0.1 }, "mutation_probability"},
		{"immigration fraction", func(c *Config) { c.ImmigrationFraction = 2 }, "immigration_fraction"},
		{"elite and crossover", func(c *Config) { c.EliteFraction, c.CrossoverFraction = 0.6, 0.5 }, "crossover_fraction"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			config := DefaultConfig()
			tt.modify(config)
			err := config.Validate()
			require.Error(t, err)
			assert.True(t, stderrors.Is(err, errors.ErrInvalidParameters))

			var ve *errors.ValidationErrors
			require.True(t, stderrors.As(err, &ve))
			fields := make([]string, 0, len(ve.Errors))
			for _, detail := range ve.Errors {
				fields = append(fields, detail.Field)
			}
			assert.Contains(t, fields, tt.field)
		})
	}
}

func TestNew_RejectsInvalidInput(t *testing.T) {
	env := helpers.NewTestEnvironment(t)
	space := env.NewUniformSpace(2, 2)
	c := env.NewMonotonicChecker(helpers.SumAtLeast(2), helpers.LevelLoss)

	_, err := New(space, c, time.Minute, 100, &Config{})
	assert.True(t, stderrors.Is(err, errors.ErrInvalidParameters))

	_, err = New(space, c, 0, 100, nil)
	assert.True(t, stderrors.Is(err, errors.ErrInvalidTimeLimit))

	a, err := New(space, c, time.Minute, 100, nil)
	require.NoError(t, err)
	assert.Equal(t, "genetic", a.Name())
}

func TestTraverse_FindsOptimum(t *testing.T) {
	env := helpers.NewTestEnvironment(t)
	space := env.NewUniformSpace(3, 3)
	anonymous := helpers.SumAtLeast(4)
	c := env.NewMonotonicChecker(anonymous, helpers.LevelLoss)

	a, err := New(space, c, time.Minute, 10000, deterministic(), algorithms.WithLogger(env.Logger))
	require.NoError(t, err)

	optimal, err := a.Traverse()
	require.NoError(t, err)
	assert.False(t, optimal, "the genetic search never claims optimality")

	expected := helpers.BruteForce(env.NewUniformSpace(3, 3), anonymous, helpers.LevelLoss)
	require.NotNil(t, a.GlobalOptimum())
	assert.True(t, a.GlobalOptimum().HasProperty(space.PropertyAnonymous()))
	helpers.AssertOptimum(t, expected, a.GlobalOptimum())
	assert.LessOrEqual(t, c.Checks(), 64, "individuals are checked once")
	assert.Equal(t, checker.StorageChecked, c.History().StorageStrategy())
}

func TestTraverse_Reproducible(t *testing.T) {
	run := func() ([]int, int) {
		env := helpers.NewTestEnvironment(t)
		space := env.NewUniformSpace(5, 4)
		c := checker.NewSyntheticChecker(checker.SyntheticConfig{
			Anonymous:           helpers.Sometimes(3, 0.3),
			Loss:                helpers.NoisyLoss(3, 2),
			PrivacyMonotonicity: checker.MonotonicityNone,
			UtilityMonotonicity: checker.MonotonicityNone,
		})
		a, err := New(space, c, time.Minute, 10000, deterministic(), algorithms.WithLogger(env.Logger))
		require.NoError(t, err)
		_, err = a.Traverse()
		require.NoError(t, err)
		require.NotNil(t, a.GlobalOptimum())
		return a.GlobalOptimum().Generalization(), c.Checks()
	}

	first, firstChecks := run()
	second, secondChecks := run()
	assert.Equal(t, first, second)
	assert.Equal(t, firstChecks, secondChecks)
}

func TestTraverse_NothingAnonymous(t *testing.T) {
	env := helpers.NewTestEnvironment(t)
	space := env.NewUniformSpace(3, 3)
	c := env.NewMonotonicChecker(helpers.SumAtLeast(100), helpers.LevelLoss)

	a, err := New(space, c, time.Minute, 10000, deterministic(), algorithms.WithLogger(env.Logger))
	require.NoError(t, err)
	optimal, err := a.Traverse()
	require.NoError(t, err)
	assert.False(t, optimal)
	assert.Nil(t, a.GlobalOptimum())
}

func TestTraverse_StopsAtCheckLimit(t *testing.T) {
	env := helpers.NewTestEnvironment(t)
	space := env.NewUniformSpace(8, 9)
	c := checker.NewSyntheticChecker(checker.SyntheticConfig{
		Anonymous:           helpers.Sometimes(1, 0.5),
		PrivacyMonotonicity: checker.MonotonicityNone,
		UtilityMonotonicity: checker.MonotonicityNone,
	})

	a, err := New(space, c, time.Minute, 10, deterministic(), algorithms.WithLogger(env.Logger))
	require.NoError(t, err)
	optimal, err := a.Traverse()
	require.NoError(t, err)
	assert.False(t, optimal)
	assert.Equal(t, 10, c.Checks())
}

func TestTraverse_StopsAtTimeLimit(t *testing.T) {
	env := helpers.NewTestEnvironment(t)
	space := env.NewUniformSpace(8, 9)
	now := time.Unix(0, 0)
	c := checker.NewSyntheticChecker(checker.SyntheticConfig{
		Anonymous: func(gen []int) bool {
			now = now.Add(time.Second)
			return helpers.Sum(gen) > 20
		},
		KAnonymous:          helpers.SumAtLeast(21),
		PrivacyMonotonicity: checker.MonotonicityFull,
		UtilityMonotonicity: checker.MonotonicityFull,
	})

	a, err := New(space, c, 5*time.Second, 10000, deterministic(),
		algorithms.WithLogger(env.Logger), algorithms.WithClock(func() time.Time { return now }))
	require.NoError(t, err)
	_, err = a.Traverse()
	require.NoError(t, err)
	assert.Equal(t, 6, c.Checks())
}

func TestTraverse_CheckFailure(t *testing.T) {
	env := helpers.NewTestEnvironment(t)
	space := env.NewUniformSpace(3, 3)
	c := checker.NewSyntheticChecker(checker.SyntheticConfig{
		Anonymous: helpers.SumAtLeast(4),
		Fail: func(gen []int) error {
			if helpers.Sum(gen) < 9 {
				return stderrors.New("broken record")
			}
			return nil
		},
		PrivacyMonotonicity: checker.MonotonicityFull,
		UtilityMonotonicity: checker.MonotonicityFull,
	})

	a, err := New(space, c, time.Minute, 10000, deterministic(), algorithms.WithLogger(env.Logger))
	require.NoError(t, err)
	_, err = a.Traverse()
	require.Error(t, err)
	assert.True(t, stderrors.Is(err, errors.ErrCheckFailed))
}

func TestTraverse_ReportsProgress(t *testing.T) {
	env := helpers.NewTestEnvironment(t)
	space := env.NewUniformSpace(3, 3)
	c := env.NewMonotonicChecker(helpers.SumAtLeast(4), helpers.LevelLoss)

	config := deterministic()
	a, err := New(space, c, time.Minute, 10000, config, algorithms.WithLogger(env.Logger))
	require.NoError(t, err)

	var reported []float64
	a.SetListener(interfaces.ProgressFunc(func(p float64) { reported = append(reported, p) }))
	_, err = a.Traverse()
	require.NoError(t, err)

	require.Len(t, reported, config.Generations)
	assert.InDelta(t, 1.0, reported[len(reported)-1], 1e-12)
	assert.IsIncreasing(t, reported)
}

func newTestAlgorithm(t *testing.T, dims, maxLevel int) (*Algorithm, *lattice.SolutionSpace) {
	t.Helper()
	env := helpers.NewTestEnvironment(t)
	space := env.NewUniformSpace(dims, maxLevel)
	c := env.NewMonotonicChecker(helpers.SumAtLeast(dims), helpers.LevelLoss)
	a, err := New(space, c, time.Minute, 10000, deterministic(), algorithms.WithLogger(env.Logger))
	require.NoError(t, err)
	a.rng = rand.New(rand.NewSource(1))
	return a, space
}

func TestSort_AnonymousFirst(t *testing.T) {
	a, space := newTestAlgorithm(t, 2, 3)

	var pop population
	for _, gen := range [][]int{{0, 0}, {3, 3}, {1, 1}, {0, 2}, {2, 1}, {1, 0}} {
		tr, err := space.TransformationFor(gen)
		require.NoError(t, err)
		require.NoError(t, a.Check(tr))
		pop = append(pop, tr)
	}
	a.sort(pop)

	var order [][]int
	for _, tr := range pop {
		order = append(order, tr.Generalization())
	}
	assert.Equal(t, [][]int{{1, 1}, {0, 2}, {2, 1}, {3, 3}, {0, 0}, {1, 0}}, order)
}

func TestMutate_StaysInRange(t *testing.T) {
	a, space := newTestAlgorithm(t, 6, 4)
	a.config.MutationProbability = 0.3

	for i := 0; i < 200; i++ {
		parent := space.Bottom()
		child := a.mutate(parent)
		changed := 0
		for dim, level := range child {
			assert.GreaterOrEqual(t, level, 0)
			assert.LessOrEqual(t, level, 4)
			if level != parent.GeneralizationAt(dim) {
				changed++
			}
		}
		assert.LessOrEqual(t, changed, 2)
	}
	assert.Equal(t, []int{0, 0, 0, 0, 0, 0}, space.Bottom().Generalization(), "parents are not modified")
}

func TestCrossover_InheritsGenes(t *testing.T) {
	a, space := newTestAlgorithm(t, 6, 4)
	x, y := space.Bottom(), space.Top()

	seenX, seenY := false, false
	for i := 0; i < 50; i++ {
		child := a.crossover(x, y)
		for _, level := range child {
			require.True(t, level == 0 || level == 4)
			seenX = seenX || level == 0
			seenY = seenY || level == 4
		}
	}
	assert.True(t, seenX)
	assert.True(t, seenY)
}

func TestRoulette(t *testing.T) {
	a, _ := newTestAlgorithm(t, 2, 2)

	counts := make([]int, 3)
	for i := 0; i < 3000; i++ {
		counts[a.roulette([]float64{0, 1, 3})]++
	}
	assert.Zero(t, counts[0])
	assert.Greater(t, counts[2], counts[1])

	for i := 0; i < 100; i++ {
		idx := a.roulette([]float64{0, 0, 0})
		assert.True(t, idx >= 0 && idx < 3)
	}
}

func TestMigrate(t *testing.T) {
	a, space := newTestAlgorithm(t, 2, 3)
	a.config.ImmigrationFraction = 0.5

	build := func(gens ...[]int) population {
		var pop population
		for _, gen := range gens {
			tr, err := space.TransformationFor(gen)
			require.NoError(t, err)
			require.NoError(t, a.Check(tr))
			pop = append(pop, tr)
		}
		a.sort(pop)
		return pop
	}
	first := build([]int{1, 1}, []int{2, 2}, []int{3, 2}, []int{3, 3})
	second := build([]int{0, 3}, []int{1, 2}, []int{0, 0}, []int{1, 0})

	a.migrate(first, second)

	generalizations := func(pop population) [][]int {
		var out [][]int
		for _, tr := range pop {
			out = append(out, tr.Generalization())
		}
		return out
	}
	assert.Equal(t, [][]int{{1, 1}, {1, 2}, {0, 3}, {2, 2}}, generalizations(first))
	assert.Equal(t, [][]int{{1, 1}, {1, 2}, {0, 3}, {2, 2}}, generalizations(second))
	assert.Len(t, first, 4)
	assert.Len(t, second, 4)
}
