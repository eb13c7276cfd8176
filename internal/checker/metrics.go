package checker

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/inferloop/anonsearch/internal/data"
	"github.com/inferloop/anonsearch/internal/lattice"
	"github.com/inferloop/anonsearch/internal/privacy"
	"github.com/inferloop/anonsearch/pkg/constants"
	"github.com/inferloop/anonsearch/pkg/errors"
)

// GroupStats describes the grouping of a dataset under one transformation.
type GroupStats struct {
	Classes    []*privacy.EquivalenceClass
	Records    int
	Suppressed int
}

// GroupMetric is implemented by metrics computed from the equivalence
// classes of a check.
type GroupMetric interface {
	Metric
	GroupLoss(t *lattice.Transformation, stats *GroupStats) lattice.InformationLoss
}

// NewMetric creates a dataset metric by name. Metrics that account for
// suppressed records lose monotonicity when suppression is allowed.
func NewMetric(name string, dataset *data.EncodedDataset, suppression bool) (GroupMetric, error) {
	switch name {
	case constants.MetricHeight:
		return &HeightMetric{}, nil
	case constants.MetricPrecision:
		return NewPrecisionMetric(dataset.MaxLevels(), suppression), nil
	case constants.MetricEntropy:
		return NewEntropyMetric(dataset), nil
	case constants.MetricDiscernibility:
		return &DiscernibilityMetric{suppression: suppression}, nil
	}
	return nil, errors.NewValidationError(errors.ErrInvalidConfiguration, errors.CodeInvalidInput,
		fmt.Sprintf("unknown metric %q", name))
}

// HeightMetric measures loss as the sum of generalization levels.
type HeightMetric struct{}

func (m *HeightMetric) Name() string        { return constants.MetricHeight }
func (m *HeightMetric) IsMonotonic() bool   { return true }
func (m *HeightMetric) IsIndependent() bool { return true }

func (m *HeightMetric) InformationLoss(t *lattice.Transformation) (lattice.InformationLoss, error) {
	return lattice.ScalarLoss(t.Level()), nil
}

func (m *HeightMetric) LowerBound(t *lattice.Transformation) lattice.InformationLoss {
	return lattice.ScalarLoss(t.Level())
}

func (m *HeightMetric) GroupLoss(t *lattice.Transformation, _ *GroupStats) lattice.InformationLoss {
	return lattice.ScalarLoss(t.Level())
}

// PrecisionMetric is the average relative generalization height over all
// cells. Suppressed records count as fully generalized.
type PrecisionMetric struct {
	maxLevels   []int
	suppression bool
}

// NewPrecisionMetric creates the metric for attributes with the given maximum levels.
func NewPrecisionMetric(maxLevels []int, suppression bool) *PrecisionMetric {
	return &PrecisionMetric{maxLevels: append([]int(nil), maxLevels...), suppression: suppression}
}

func (m *PrecisionMetric) Name() string        { return constants.MetricPrecision }
func (m *PrecisionMetric) IsMonotonic() bool   { return !m.suppression }
func (m *PrecisionMetric) IsIndependent() bool { return !m.suppression }

func (m *PrecisionMetric) precision(t *lattice.Transformation) float64 {
	sum := 0.0
	for i, max := range m.maxLevels {
		if max > 0 {
			sum += float64(t.GeneralizationAt(i)) / float64(max)
		}
	}
	return sum / float64(len(m.maxLevels))
}

func (m *PrecisionMetric) InformationLoss(t *lattice.Transformation) (lattice.InformationLoss, error) {
	if m.suppression {
		return nil, errors.NewSearchError(errors.ErrInvalidConfiguration, errors.CodeInvalidConfiguration,
			"precision with suppression depends on the grouping")
	}
	return lattice.ScalarLoss(m.precision(t)), nil
}

func (m *PrecisionMetric) LowerBound(t *lattice.Transformation) lattice.InformationLoss {
	return lattice.ScalarLoss(m.precision(t))
}

func (m *PrecisionMetric) GroupLoss(t *lattice.Transformation, stats *GroupStats) lattice.InformationLoss {
	p := m.precision(t)
	if stats.Records == 0 {
		return lattice.ScalarLoss(p)
	}
	share := float64(stats.Suppressed) / float64(stats.Records)
	return lattice.ScalarLoss(p*(1-share) + share)
}

// EntropyMetric measures the information lost by generalizing each attribute
// as the conditional entropy of the original values given the generalized
// ones, summed over all records, in bits.
type EntropyMetric struct {
	// loss[dim][level]
	loss [][]float64
}

// NewEntropyMetric precomputes the per-attribute, per-level losses.
func NewEntropyMetric(dataset *data.EncodedDataset) *EntropyMetric {
	m := &EntropyMetric{loss: make([][]float64, dataset.Dimensions())}
	n := float64(dataset.Records())
	for dim, h := range dataset.Hierarchies {
		m.loss[dim] = make([]float64, h.Height())
		leaf := entropyBits(dataset.Frequencies(dim, 0))
		for level := 0; level < h.Height(); level++ {
			// H(leaf | generalized) = H(leaf) - H(generalized), as the
			// generalized value is a function of the leaf.
			m.loss[dim][level] = math.Max(0, n*(leaf-entropyBits(dataset.Frequencies(dim, level))))
		}
	}
	return m
}

func entropyBits(counts []float64) float64 {
	total := floats.Sum(counts)
	if total == 0 {
		return 0
	}
	p := make([]float64, len(counts))
	floats.ScaleTo(p, 1/total, counts)
	return stat.Entropy(p) / math.Ln2
}

func (m *EntropyMetric) Name() string        { return constants.MetricEntropy }
func (m *EntropyMetric) IsMonotonic() bool   { return true }
func (m *EntropyMetric) IsIndependent() bool { return true }

func (m *EntropyMetric) value(t *lattice.Transformation) float64 {
	sum := 0.0
	for dim := range m.loss {
		sum += m.loss[dim][t.GeneralizationAt(dim)]
	}
	return sum
}

func (m *EntropyMetric) InformationLoss(t *lattice.Transformation) (lattice.InformationLoss, error) {
	return lattice.ScalarLoss(m.value(t)), nil
}

func (m *EntropyMetric) LowerBound(t *lattice.Transformation) lattice.InformationLoss {
	return lattice.ScalarLoss(m.value(t))
}

func (m *EntropyMetric) GroupLoss(t *lattice.Transformation, _ *GroupStats) lattice.InformationLoss {
	return lattice.ScalarLoss(m.value(t))
}

// DiscernibilityMetric charges every record the size of its class, and
// every suppressed record the size of the dataset.
type DiscernibilityMetric struct {
	suppression bool
}

func (m *DiscernibilityMetric) Name() string        { return constants.MetricDiscernibility }
func (m *DiscernibilityMetric) IsMonotonic() bool   { return !m.suppression }
func (m *DiscernibilityMetric) IsIndependent() bool { return false }

func (m *DiscernibilityMetric) InformationLoss(t *lattice.Transformation) (lattice.InformationLoss, error) {
	return nil, errors.NewSearchError(errors.ErrInvalidConfiguration, errors.CodeInvalidConfiguration,
		"discernibility depends on the grouping")
}

func (m *DiscernibilityMetric) LowerBound(t *lattice.Transformation) lattice.InformationLoss {
	return nil
}

func (m *DiscernibilityMetric) GroupLoss(t *lattice.Transformation, stats *GroupStats) lattice.InformationLoss {
	sum := float64(stats.Suppressed) * float64(stats.Records)
	for _, c := range stats.Classes {
		sum += float64(c.Size) * float64(c.Size)
	}
	return lattice.ScalarLoss(sum)
}
