package factory

import (
	stderrors "errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/inferloop/anonsearch/internal/algorithms"
	"github.com/inferloop/anonsearch/internal/algorithms/dp"
	"github.com/inferloop/anonsearch/internal/algorithms/flash"
	"github.com/inferloop/anonsearch/internal/algorithms/genetic"
	"github.com/inferloop/anonsearch/internal/algorithms/heuristic"
	"github.com/inferloop/anonsearch/internal/checker"
	"github.com/inferloop/anonsearch/pkg/errors"
	"github.com/inferloop/anonsearch/tests/helpers"
)

func TestNew_ByName(t *testing.T) {
	tests := []struct {
		name     string
		expected interface{}
		optimal  bool
	}{
		{"flash", &flash.Algorithm{}, true},
		{"FLASH", &flash.Algorithm{}, true},
		{"", &flash.Algorithm{}, true},
		{"bestfirst", &heuristic.Algorithm{}, true},
		// bound pruning towards the bottom voids the guarantee
		{"topdown", &heuristic.Algorithm{}, false},
		{"genetic", &genetic.Algorithm{}, false},
		{"eddp", &dp.EDDP{}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := helpers.NewTestEnvironment(t)
			space := env.NewUniformSpace(3, 3)
			c := env.NewMonotonicChecker(helpers.SumAtLeast(4), helpers.LevelLoss)

			a, err := New(space, c, Params{
				Algorithm:  tt.name,
				TimeLimit:  time.Minute,
				CheckLimit: 10000,
				Genetic: &genetic.Config{
					SubpopulationSize:   10,
					Generations:         5,
					EliteFraction:       0.2,
					CrossoverFraction:   0.4,
					MutationProbability: 0.2,
					ImmigrationInterval: 2,
					ImmigrationFraction: 0.2,
					Deterministic:       true,
				},
				DP: &dp.Config{Epsilon: 1, ExpansionLimit: 5, Precision: 20, Deterministic: true},
			}, algorithms.WithLogger(env.Logger))
			require.NoError(t, err)
			assert.IsType(t, tt.expected, a)

			optimal, err := a.Traverse()
			require.NoError(t, err)
			assert.Equal(t, tt.optimal, optimal)
		})
	}
}

func TestNew_FlashOptions(t *testing.T) {
	env := helpers.NewTestEnvironment(t)
	space := env.NewUniformSpace(2, 3)
	c := env.NewMonotonicChecker(helpers.SumAtLeast(2), helpers.LevelLoss)

	a, err := New(space, c, Params{Algorithm: "flash", DisablePruning: true, Distinct: [][]int{{4, 2, 1, 1}, {4, 3, 2, 1}}})
	require.NoError(t, err)
	f, ok := a.(*flash.Algorithm)
	require.True(t, ok)
	assert.False(t, f.Configuration().Pruning)
	assert.Equal(t, "full/full", f.Configuration().Name)
}

func TestNew_Errors(t *testing.T) {
	env := helpers.NewTestEnvironment(t)
	space := env.NewUniformSpace(2, 2)
	c := env.NewMonotonicChecker(helpers.SumAtLeast(2), helpers.LevelLoss)

	a, err := New(space, c, Params{Algorithm: "simulated-annealing"})
	assert.Nil(t, a)
	assert.True(t, stderrors.Is(err, errors.ErrUnknownAlgorithm))

	a, err = New(nil, c, Params{})
	assert.Nil(t, a)
	assert.True(t, stderrors.Is(err, errors.ErrInvalidParameters))

	a, err = New(space, c, Params{Algorithm: "bestfirst", TimeLimit: -time.Second})
	assert.Nil(t, a, "failed constructors must not leak a typed nil")
	assert.True(t, stderrors.Is(err, errors.ErrInvalidTimeLimit))

	partial := checker.NewSyntheticChecker(checker.SyntheticConfig{
		Anonymous:           helpers.SumAtLeast(2),
		PrivacyMonotonicity: checker.MonotonicityFull,
		UtilityMonotonicity: checker.MonotonicityPartial,
	})
	a, err = New(space, partial, Params{Algorithm: "flash"})
	assert.Nil(t, a)
	assert.True(t, stderrors.Is(err, errors.ErrUnsupportedMonotonicity))
}

func TestNames(t *testing.T) {
	assert.Equal(t, []string{"flash", "bestfirst", "topdown", "genetic", "eddp"}, Names())
}
