package dp

import (
	stderrors "errors"
	"testing"
	"time"

	"github.com/cockroachdb/apd/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/inferloop/anonsearch/internal/algorithms"
	"github.com/inferloop/anonsearch/internal/checker"
	"github.com/inferloop/anonsearch/internal/lattice"
	"github.com/inferloop/anonsearch/internal/observability/metrics"
	"github.com/inferloop/anonsearch/pkg/errors"
	"github.com/inferloop/anonsearch/pkg/interfaces"
	"github.com/inferloop/anonsearch/tests/helpers"
)

func deterministic(epsilon float64, steps int) *Config {
	config := DefaultConfig()
	config.Epsilon = epsilon
	config.ExpansionLimit = steps
	config.Deterministic = true
	config.Seed = 11
	return config
}

// everything is releasable under a differentially private criterion
func dpChecker(loss func([]int) float64) *checker.SyntheticChecker {
	return checker.NewSyntheticChecker(checker.SyntheticConfig{
		Anonymous:           helpers.SumAtLeast(0),
		Loss:                loss,
		PrivacyMonotonicity: checker.MonotonicityNone,
		UtilityMonotonicity: checker.MonotonicityNone,
	})
}

func TestConfig_Validate(t *testing.T) {
	assert.NoError(t, DefaultConfig().Validate())

	for name, config := range map[string]*Config{
		"epsilon":   {Epsilon: 0, ExpansionLimit: 10, Precision: 20},
		"expansion": {Epsilon: 1, ExpansionLimit: 0, Precision: 20},
		"precision": {Epsilon: 1, ExpansionLimit: 10, Precision: 0},
	} {
		t.Run(name, func(t *testing.T) {
			err := config.Validate()
			require.Error(t, err)
			assert.True(t, stderrors.Is(err, errors.ErrInvalidParameters))
		})
	}

	env := helpers.NewTestEnvironment(t)
	_, err := New(env.NewUniformSpace(2, 2), dpChecker(nil), time.Minute, 10, &Config{})
	assert.True(t, stderrors.Is(err, errors.ErrInvalidParameters))
}

func TestTraverse_GreedyWithLargeEpsilon(t *testing.T) {
	env := helpers.NewTestEnvironment(t)
	space := env.NewUniformSpace(2, 3)
	c := dpChecker(helpers.LevelLoss)

	e, err := New(space, c, time.Minute, 1000, deterministic(1000, 10), algorithms.WithLogger(env.Logger))
	require.NoError(t, err)
	assert.Equal(t, "eddp", e.Name())

	optimal, err := e.Traverse()
	require.NoError(t, err)
	assert.False(t, optimal)

	require.NotNil(t, e.GlobalOptimum())
	assert.Equal(t, []int{0, 0}, e.GlobalOptimum().Generalization())
	assert.Equal(t, c.Checks(), space.CountProperty(space.PropertyVisited()), "transformations are checked once")
	assert.Equal(t, checker.StorageChecked, c.History().StorageStrategy())
}

func TestTraverse_LargeLossGaps(t *testing.T) {
	for _, scale := range []float64{1e6, 1e12} {
		env := helpers.NewTestEnvironment(t)
		space := env.NewUniformSpace(2, 3)
		c := dpChecker(func(g []int) float64 { return helpers.LevelLoss(g) * scale })

		e, err := New(space, c, time.Minute, 1000, deterministic(1000, 10), algorithms.WithLogger(env.Logger))
		require.NoError(t, err)

		_, err = e.Traverse()
		require.NoError(t, err, "scale %g", scale)
		require.NotNil(t, e.GlobalOptimum())
		assert.Equal(t, []int{0, 0}, e.GlobalOptimum().Generalization(), "scale %g", scale)
	}
}

func TestTraverse_CustomScore(t *testing.T) {
	env := helpers.NewTestEnvironment(t)
	space := env.NewUniformSpace(2, 3)
	c := dpChecker(helpers.LevelLoss)

	e, err := New(space, c, time.Minute, 1000, deterministic(1000, 5), algorithms.WithLogger(env.Logger))
	require.NoError(t, err)
	e.SetScore(func(t *lattice.Transformation) (float64, error) {
		return float64(t.Level()), nil
	})

	_, err = e.Traverse()
	require.NoError(t, err)
	assert.Equal(t, space.Top(), e.GlobalOptimum())
}

func TestTraverse_Reproducible(t *testing.T) {
	run := func() ([]int, int) {
		env := helpers.NewTestEnvironment(t)
		space := env.NewUniformSpace(4, 4)
		c := dpChecker(helpers.NoisyLoss(9, 4))
		e, err := New(space, c, time.Minute, 1000, deterministic(1, 20), algorithms.WithLogger(env.Logger))
		require.NoError(t, err)
		_, err = e.Traverse()
		require.NoError(t, err)
		require.NotNil(t, e.GlobalOptimum())
		return e.GlobalOptimum().Generalization(), c.Checks()
	}

	first, firstChecks := run()
	second, secondChecks := run()
	assert.Equal(t, first, second)
	assert.Equal(t, firstChecks, secondChecks)
}

func TestTraverse_SpendsBudget(t *testing.T) {
	env := helpers.NewTestEnvironment(t)
	m, err := metrics.NewSearchMetrics(nil, env.Logger)
	require.NoError(t, err)

	space := env.NewUniformSpace(3, 3)
	e, err := New(space, dpChecker(helpers.LevelLoss), time.Minute, 1000, deterministic(2, 8),
		algorithms.WithLogger(env.Logger), algorithms.WithMetrics(m))
	require.NoError(t, err)

	_, err = e.Traverse()
	require.NoError(t, err)

	status := e.Budget().GetStatus()
	assert.Equal(t, 8, status.TransactionCount)
	assert.InDelta(t, 2.0, status.ConsumedEpsilon, 1e-12)
	assert.LessOrEqual(t, status.ConsumedEpsilon, status.TotalEpsilon)
	for _, tx := range e.Budget().GetTransactionHistory() {
		assert.Zero(t, tx.Epsilon.Cmp(apd.New(25, -2)), "got %s", tx.Epsilon)
		assert.Equal(t, "exponential", tx.Mechanism)
	}

	families, err := m.GetRegistry().Gather()
	require.NoError(t, err)
	spent := 0.0
	for _, family := range families {
		if family.GetName() == "anonsearch_epsilon_spent_total" {
			for _, metric := range family.GetMetric() {
				spent += metric.GetCounter().GetValue()
			}
		}
	}
	assert.InDelta(t, 2.0, spent, 1e-9)
}

func TestTraverse_SingleTransformation(t *testing.T) {
	env := helpers.NewTestEnvironment(t)
	space := env.NewSpace([]int{1, 2}, []int{1, 2})
	c := dpChecker(helpers.LevelLoss)

	e, err := New(space, c, time.Minute, 1000, deterministic(1, 5), algorithms.WithLogger(env.Logger))
	require.NoError(t, err)
	_, err = e.Traverse()
	require.NoError(t, err)

	assert.Equal(t, space.Top(), e.GlobalOptimum())
	assert.Equal(t, 1, c.Checks())
	assert.Equal(t, 0, e.Budget().GetStatus().TransactionCount)
}

func TestTraverse_StopsAtCheckLimit(t *testing.T) {
	env := helpers.NewTestEnvironment(t)
	space := env.NewUniformSpace(6, 6)
	c := dpChecker(helpers.LevelLoss)

	e, err := New(space, c, time.Minute, 12, deterministic(1, 100), algorithms.WithLogger(env.Logger))
	require.NoError(t, err)
	optimal, err := e.Traverse()
	require.NoError(t, err)
	assert.False(t, optimal)
	assert.Equal(t, 12, c.Checks())
	assert.NotNil(t, e.GlobalOptimum())
}

func TestTraverse_CheckFailure(t *testing.T) {
	env := helpers.NewTestEnvironment(t)
	space := env.NewUniformSpace(2, 3)
	c := checker.NewSyntheticChecker(checker.SyntheticConfig{
		Anonymous: helpers.SumAtLeast(0),
		Fail: func(gen []int) error {
			if helpers.Sum(gen) < 6 {
				return stderrors.New("corrupt input")
			}
			return nil
		},
	})

	e, err := New(space, c, time.Minute, 1000, deterministic(1, 5), algorithms.WithLogger(env.Logger))
	require.NoError(t, err)
	_, err = e.Traverse()
	require.Error(t, err)
	assert.True(t, stderrors.Is(err, errors.ErrCheckFailed))
}

func TestTraverse_ReportsProgress(t *testing.T) {
	env := helpers.NewTestEnvironment(t)
	space := env.NewUniformSpace(3, 3)

	e, err := New(space, dpChecker(helpers.LevelLoss), time.Minute, 1000, deterministic(1, 4),
		algorithms.WithLogger(env.Logger))
	require.NoError(t, err)

	var reported []float64
	e.SetListener(interfaces.ProgressFunc(func(p float64) { reported = append(reported, p) }))
	_, err = e.Traverse()
	require.NoError(t, err)
	assert.Equal(t, []float64{0.25, 0.5, 0.75, 1}, reported)
}

func TestNegativeLoss(t *testing.T) {
	env := helpers.NewTestEnvironment(t)
	space := env.NewUniformSpace(2, 2)

	_, err := NegativeLoss(space.Top())
	assert.True(t, stderrors.Is(err, errors.ErrInvalidParameters))

	space.Top().SetInformationLoss(lattice.NewScalarLoss(1.5))
	score, err := NegativeLoss(space.Top())
	require.NoError(t, err)
	assert.Equal(t, -1.5, score)
}
