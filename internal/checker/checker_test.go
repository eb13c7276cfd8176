package checker

import (
	stderrors "errors"
	"strings"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/inferloop/anonsearch/internal/data"
	"github.com/inferloop/anonsearch/internal/lattice"
	"github.com/inferloop/anonsearch/internal/privacy"
	"github.com/inferloop/anonsearch/pkg/constants"
	"github.com/inferloop/anonsearch/pkg/errors"
)

const testRecords = `age;zip;disease
34;47677;flu
45;47602;cancer
34;47678;flu
47;47905;gastritis
`

const testAgeHierarchy = `34;30-39;*
45;40-49;*
47;40-49;*
`

const testZipHierarchy = `47677;4767*;476**;*
47678;4767*;476**;*
47602;4760*;476**;*
47905;4790*;479**;*
`

func newTestLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetLevel(logrus.ErrorLevel)
	return logger
}

func newEncoded(t *testing.T, sensitive string) *data.EncodedDataset {
	t.Helper()
	ds, err := data.ReadCSV(strings.NewReader(testRecords), ';')
	require.NoError(t, err)
	age, err := data.ReadHierarchy(strings.NewReader(testAgeHierarchy), "age", ';')
	require.NoError(t, err)
	zip, err := data.ReadHierarchy(strings.NewReader(testZipHierarchy), "zip", ';')
	require.NoError(t, err)

	enc, err := data.Encode(ds, []string{"age", "zip"}, map[string]*data.Hierarchy{"age": age, "zip": zip}, sensitive)
	require.NoError(t, err)
	return enc
}

func newSpace(t *testing.T, enc *data.EncodedDataset) *lattice.SolutionSpace {
	t.Helper()
	space, err := lattice.NewSolutionSpace(enc.MinLevels(), enc.MaxLevels())
	require.NoError(t, err)
	return space
}

func kAnonymity(t *testing.T, k int) privacy.Criterion {
	t.Helper()
	c, err := privacy.NewKAnonymity(k)
	require.NoError(t, err)
	return c
}

func at(t *testing.T, space *lattice.SolutionSpace, gen ...int) *lattice.Transformation {
	t.Helper()
	tr, err := space.TransformationFor(gen)
	require.NoError(t, err)
	return tr
}

func TestDatasetChecker_KAnonymity(t *testing.T) {
	enc := newEncoded(t, "")
	space := newSpace(t, enc)
	c, err := NewDatasetChecker(enc, DatasetConfig{
		Criteria: []privacy.Criterion{kAnonymity(t, 2)},
		Metric:   constants.MetricHeight,
	}, newTestLogger())
	require.NoError(t, err)

	cfg := c.Configuration()
	assert.Equal(t, MonotonicityFull, cfg.PrivacyMonotonicity)
	assert.Equal(t, MonotonicityFull, cfg.UtilityMonotonicity)
	assert.True(t, cfg.CriterionMonotonic)

	anonymous := map[string]bool{"[1, 3]": true, "[2, 3]": true}
	for id := int64(0); id < space.Size().Int64(); id++ {
		tr := space.Transformation(id)
		result, err := c.Check(tr)
		require.NoError(t, err)
		assert.Equal(t, anonymous[tr.String()], result.PrivacyModelFulfilled, "node %s", tr)
		assert.Equal(t, result.PrivacyModelFulfilled, result.MinimalClassSizeFulfilled)
		assert.Equal(t, lattice.ScalarLoss(tr.Level()), result.InformationLoss)
	}
	assert.Equal(t, int(space.Size().Int64()), c.Checks())
}

func TestDatasetChecker_HistoryMatchesScratch(t *testing.T) {
	enc := newEncoded(t, "disease")
	criteria := func() []privacy.Criterion {
		l, err := privacy.NewLDiversity(2, privacy.DiversityDistinct, 0)
		require.NoError(t, err)
		return []privacy.Criterion{kAnonymity(t, 2), l}
	}

	cached, err := NewDatasetChecker(enc, DatasetConfig{
		Criteria: criteria(), Metric: constants.MetricDiscernibility, HistorySize: 10,
	}, newTestLogger())
	require.NoError(t, err)
	scratch, err := NewDatasetChecker(enc, DatasetConfig{
		Criteria: criteria(), Metric: constants.MetricDiscernibility, HistorySize: -1,
	}, newTestLogger())
	require.NoError(t, err)

	spaceA := newSpace(t, enc)
	spaceB := newSpace(t, enc)
	for id := int64(0); id < spaceA.Size().Int64(); id++ {
		a, err := cached.Check(spaceA.Transformation(id))
		require.NoError(t, err)
		b, err := scratch.Check(spaceB.Transformation(id))
		require.NoError(t, err)
		assert.Equal(t, b, a, "node %s", spaceA.Transformation(id))
	}

	history := cached.SnapshotHistory()
	assert.Greater(t, history.Hits(), 0)
	assert.Greater(t, history.Misses(), 0)
	assert.Equal(t, cached.Checks(), history.Hits()+history.Misses())
	assert.Equal(t, 0, scratch.History().Size())
}

func TestDatasetChecker_Suppression(t *testing.T) {
	enc := newEncoded(t, "")
	space := newSpace(t, enc)
	c, err := NewDatasetChecker(enc, DatasetConfig{
		Criteria:         []privacy.Criterion{kAnonymity(t, 2)},
		Metric:           constants.MetricPrecision,
		SuppressionLimit: 0.25,
	}, newTestLogger())
	require.NoError(t, err)

	assert.Equal(t, MonotonicityFull, c.Configuration().PrivacyMonotonicity)
	assert.Equal(t, MonotonicityNone, c.Configuration().UtilityMonotonicity)
	assert.False(t, c.Metric().IsIndependent())

	result, err := c.Check(at(t, space, 2, 2))
	require.NoError(t, err)
	assert.True(t, result.PrivacyModelFulfilled)
	assert.InDelta(t, 0.875, float64(result.InformationLoss.(lattice.ScalarLoss)), 1e-12)
	assert.InDelta(t, 5.0/6.0, float64(result.LowerBound.(lattice.ScalarLoss)), 1e-12)

	result, err = c.Check(at(t, space, 1, 1))
	require.NoError(t, err)
	assert.False(t, result.PrivacyModelFulfilled)
}

func TestDatasetChecker_Monotonicity(t *testing.T) {
	enc := newEncoded(t, "disease")

	l, err := privacy.NewLDiversity(2, privacy.DiversityDistinct, 0)
	require.NoError(t, err)
	c, err := NewDatasetChecker(enc, DatasetConfig{
		Criteria: []privacy.Criterion{l}, SuppressionLimit: 0.5,
	}, newTestLogger())
	require.NoError(t, err)
	assert.Equal(t, MonotonicityPartial, c.Configuration().PrivacyMonotonicity)
	assert.False(t, c.Configuration().CriterionMonotonic)

	tc, err := privacy.NewTCloseness(0.5, privacy.DistanceEqual, []int{2, 1, 1})
	require.NoError(t, err)
	c, err = NewDatasetChecker(enc, DatasetConfig{
		Criteria: []privacy.Criterion{tc}, SuppressionLimit: 0.5,
	}, newTestLogger())
	require.NoError(t, err)
	assert.Equal(t, MonotonicityNone, c.Configuration().PrivacyMonotonicity)

	c, err = NewDatasetChecker(enc, DatasetConfig{
		Criteria: []privacy.Criterion{tc}, SuppressionLimit: 0.5, PracticalMonotonicity: true,
	}, newTestLogger())
	require.NoError(t, err)
	assert.Equal(t, MonotonicityFull, c.Configuration().PrivacyMonotonicity)
}

func TestDatasetChecker_Validation(t *testing.T) {
	enc := newEncoded(t, "")
	l, err := privacy.NewLDiversity(2, privacy.DiversityDistinct, 0)
	require.NoError(t, err)

	_, err = NewDatasetChecker(enc, DatasetConfig{Criteria: []privacy.Criterion{l}}, newTestLogger())
	assert.True(t, stderrors.Is(err, errors.ErrInvalidConfiguration))

	_, err = NewDatasetChecker(enc, DatasetConfig{}, newTestLogger())
	assert.True(t, stderrors.Is(err, errors.ErrInvalidConfiguration))

	_, err = NewDatasetChecker(enc, DatasetConfig{
		Criteria: []privacy.Criterion{kAnonymity(t, 2)}, SuppressionLimit: 2,
	}, newTestLogger())
	assert.True(t, stderrors.Is(err, errors.ErrInvalidConfiguration))

	_, err = NewDatasetChecker(enc, DatasetConfig{
		Criteria: []privacy.Criterion{kAnonymity(t, 2)}, Metric: "unknown",
	}, newTestLogger())
	assert.True(t, stderrors.Is(err, errors.ErrInvalidConfiguration))
}

func TestDatasetChecker_RejectsForeignTransformation(t *testing.T) {
	enc := newEncoded(t, "")
	c, err := NewDatasetChecker(enc, DatasetConfig{Criteria: []privacy.Criterion{kAnonymity(t, 2)}}, newTestLogger())
	require.NoError(t, err)

	other, err := lattice.NewSolutionSpace([]int{0, 0}, []int{5, 5})
	require.NoError(t, err)
	_, err = c.Check(other.Top())
	assert.True(t, stderrors.Is(err, errors.ErrInvalidGeneralization))
}

func TestSnapshotHistory_StorageStrategies(t *testing.T) {
	enc := newEncoded(t, "")
	newChecker := func() *DatasetChecker {
		c, err := NewDatasetChecker(enc, DatasetConfig{Criteria: []privacy.Criterion{kAnonymity(t, 2)}}, newTestLogger())
		require.NoError(t, err)
		return c
	}

	t.Run("non-anonymous", func(t *testing.T) {
		c := newChecker()
		space := newSpace(t, enc)
		c.History().SetStorageStrategy(StorageNonAnonymous)
		assert.Equal(t, StorageNonAnonymous, c.History().StorageStrategy())

		_, err := c.Check(space.Top())
		require.NoError(t, err)
		assert.Equal(t, 0, c.History().Size())

		_, err = c.Check(space.Bottom())
		require.NoError(t, err)
		assert.Equal(t, 1, c.History().Size())
	})

	t.Run("checked", func(t *testing.T) {
		c := newChecker()
		space := newSpace(t, enc)
		c.History().SetStorageStrategy(StorageChecked)

		pruned := at(t, space, 1, 1)
		pruned.SetProperty(space.PropertySuccessorsPruned())
		_, err := c.Check(pruned)
		require.NoError(t, err)
		assert.Equal(t, 0, c.History().Size())

		forced := at(t, space, 1, 2)
		forced.SetProperty(space.PropertySuccessorsPruned())
		forced.SetProperty(space.PropertyForceSnapshot())
		_, err = c.Check(forced)
		require.NoError(t, err)
		assert.Equal(t, 1, c.History().Size())
	})

	t.Run("bounded", func(t *testing.T) {
		c, err := NewDatasetChecker(enc, DatasetConfig{
			Criteria: []privacy.Criterion{kAnonymity(t, 2)}, HistorySize: 2,
		}, newTestLogger())
		require.NoError(t, err)
		space := newSpace(t, enc)
		for id := int64(0); id < space.Size().Int64(); id++ {
			_, err := c.Check(space.Transformation(id))
			require.NoError(t, err)
		}
		assert.Equal(t, 2, c.History().Size())

		c.SnapshotHistory().Reset()
		assert.Equal(t, 0, c.History().Size())
	})
}

func TestMetrics(t *testing.T) {
	enc := newEncoded(t, "")
	space := newSpace(t, enc)

	entropy := NewEntropyMetric(enc)
	prev := -1.0
	for _, gen := range [][]int{{0, 0}, {0, 1}, {1, 1}, {1, 2}, {2, 2}, {2, 3}} {
		loss, err := entropy.InformationLoss(at(t, space, gen...))
		require.NoError(t, err)
		v := float64(loss.(lattice.ScalarLoss))
		assert.GreaterOrEqual(t, v, prev)
		prev = v
	}
	bottom, _ := entropy.InformationLoss(space.Bottom())
	assert.Equal(t, lattice.ScalarLoss(0), bottom)

	precision := NewPrecisionMetric(enc.MaxLevels(), false)
	loss, err := precision.InformationLoss(space.Top())
	require.NoError(t, err)
	assert.Equal(t, lattice.ScalarLoss(1), loss)

	dm := &DiscernibilityMetric{}
	assert.Nil(t, dm.LowerBound(space.Top()))
	_, err = dm.InformationLoss(space.Top())
	assert.Error(t, err)
	stats := &GroupStats{Records: 4, Classes: []*privacy.EquivalenceClass{{Size: 4}}}
	assert.Equal(t, lattice.ScalarLoss(16), dm.GroupLoss(space.Top(), stats))

	_, err = NewMetric("unknown", enc, false)
	assert.Error(t, err)
}

func TestSyntheticChecker(t *testing.T) {
	space, err := lattice.NewSolutionSpace([]int{0, 0}, []int{2, 3})
	require.NoError(t, err)

	c := NewSyntheticChecker(SyntheticConfig{
		Anonymous:           func(g []int) bool { return g[1] >= 2 },
		Bound:               func(g []int) float64 { return float64(g[0]) },
		Independent:         true,
		PrivacyMonotonicity: MonotonicityFull,
		UtilityMonotonicity: MonotonicityFull,
		Fail: func(g []int) error {
			if g[0] == 2 && g[1] == 0 {
				return stderrors.New("boom")
			}
			return nil
		},
	})

	result, err := c.Check(at(t, space, 1, 2))
	require.NoError(t, err)
	assert.True(t, result.PrivacyModelFulfilled)
	assert.True(t, result.MinimalClassSizeFulfilled)
	assert.Equal(t, lattice.ScalarLoss(3), result.InformationLoss)
	assert.Equal(t, lattice.ScalarLoss(1), result.LowerBound)

	loss, err := c.Metric().InformationLoss(at(t, space, 2, 3))
	require.NoError(t, err)
	assert.Equal(t, lattice.ScalarLoss(5), loss)

	_, err = c.Check(at(t, space, 2, 0))
	assert.Error(t, err)
	assert.Equal(t, 2, c.Checks())

	c.History().SetStorageStrategy(StorageChecked)
	assert.Equal(t, StorageChecked, c.History().StorageStrategy())
	assert.Equal(t, MonotonicityFull, c.Configuration().UtilityMonotonicity)
}

func TestParseMonotonicity(t *testing.T) {
	for _, m := range []Monotonicity{MonotonicityFull, MonotonicityPartial, MonotonicityNone} {
		parsed, err := ParseMonotonicity(m.String())
		require.NoError(t, err)
		assert.Equal(t, m, parsed)
	}
	_, err := ParseMonotonicity("sometimes")
	assert.True(t, stderrors.Is(err, errors.ErrInvalidConfiguration))
}
