package helpers

import (
	"fmt"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/inferloop/anonsearch/internal/lattice"
)

// AssertOptimum asserts that actual matches an exhaustive search result by
// loss and level
func AssertOptimum(t *testing.T, expected Optimum, actual *lattice.Transformation, msgAndArgs ...interface{}) {
	t.Helper()

	if !expected.Found {
		assert.Nil(t, actual, msgAndArgs...)
		return
	}
	require.NotNil(t, actual, msgAndArgs...)
	loss, ok := lattice.ValueOf(actual.InformationLoss())
	require.True(t, ok, "optimum has no scalar loss. %s", fmt.Sprint(msgAndArgs...))
	AssertFloatEquals(t, expected.Loss, loss, 1e-9, msgAndArgs...)
	assert.Equal(t, expected.Level, actual.Level(), msgAndArgs...)
}

// AssertFloatEquals asserts that two floats are equal within tolerance
func AssertFloatEquals(t *testing.T, expected, actual, tolerance float64, msgAndArgs ...interface{}) {
	t.Helper()

	if math.IsNaN(expected) && math.IsNaN(actual) {
		return
	}

	if math.IsInf(expected, 0) && math.IsInf(actual, 0) {
		assert.Equal(t, math.Signbit(expected), math.Signbit(actual), msgAndArgs...)
		return
	}

	diff := math.Abs(expected - actual)
	assert.True(t, diff <= tolerance,
		"expected %f to be within %f of %f (diff: %f). %s",
		actual, tolerance, expected, diff, fmt.Sprint(msgAndArgs...))
}

// AssertProbabilities asserts that p is a probability mass function
func AssertProbabilities(t *testing.T, p []float64, tolerance float64) {
	t.Helper()

	sum := 0.0
	for i, v := range p {
		assert.True(t, v >= 0 && v <= 1, "probability %d out of range: %f", i, v)
		sum += v
	}
	AssertFloatEquals(t, 1, sum, tolerance, "probabilities must sum to 1")
}

// AssertUpwardClosed asserts that every successor of a transformation with
// p also has p
func AssertUpwardClosed(t *testing.T, space *lattice.SolutionSpace, p *lattice.PredictiveProperty) {
	t.Helper()

	for _, tr := range All(space) {
		if !tr.HasProperty(p) {
			continue
		}
		for _, id := range tr.Successors() {
			assert.True(t, space.Transformation(id).HasProperty(p),
				"%s has %s but successor %s does not", tr, p, space.Transformation(id))
		}
	}
}
