package privacy

import (
	"fmt"
	"math"

	"github.com/inferloop/anonsearch/pkg/errors"
)

// Distance measures supported by TCloseness.
const (
	DistanceEqual   = "equal"
	DistanceOrdered = "ordered"
)

// TCloseness bounds the distance between the sensitive value distribution of
// every class and the distribution in the whole dataset.
type TCloseness struct {
	T        float64
	Distance string

	global []float64
}

// NewTCloseness creates the criterion from the global sensitive value
// counts, indexed by value code. The ordered distance treats codes as ranks.
func NewTCloseness(t float64, distance string, globalCounts []int) (*TCloseness, error) {
	if t < 0 || t > 1 {
		return nil, errors.NewValidationError(errors.ErrInvalidParameters, errors.CodeOutOfRange,
			fmt.Sprintf("t must be within [0, 1], got %g", t))
	}
	if distance == "" {
		distance = DistanceEqual
	}
	if distance != DistanceEqual && distance != DistanceOrdered {
		return nil, errors.NewValidationError(errors.ErrInvalidParameters, errors.CodeInvalidInput,
			fmt.Sprintf("unknown distance %q", distance))
	}

	total := 0
	for _, c := range globalCounts {
		total += c
	}
	if total == 0 {
		return nil, errors.NewValidationError(errors.ErrInvalidDataset, errors.CodeMissingField,
			"t-closeness requires a non-empty sensitive attribute")
	}
	global := make([]float64, len(globalCounts))
	for i, c := range globalCounts {
		global[i] = float64(c) / float64(total)
	}

	return &TCloseness{T: t, Distance: distance, global: global}, nil
}

func (t *TCloseness) Name() string {
	return fmt.Sprintf("%s-%g-closeness", t.Distance, t.T)
}

func (t *TCloseness) Fulfilled(class *EquivalenceClass) bool {
	if class.Size == 0 {
		return false
	}
	local := make([]float64, len(t.global))
	for value, count := range class.SensitiveCounts {
		if value < len(local) {
			local[value] = float64(count) / float64(class.Size)
		}
	}

	var distance float64
	switch t.Distance {
	case DistanceOrdered:
		distance = orderedDistance(local, t.global)
	default:
		distance = equalDistance(local, t.global)
	}
	return distance <= t.T+1e-12
}

func (t *TCloseness) MinimalClassSize() int {
	return 1
}

func (t *TCloseness) IsMonotonicWithSuppression() bool {
	return false
}

func (t *TCloseness) RequiresSensitive() bool {
	return true
}

// equalDistance is the earth mover's distance with unit ground distance,
// which reduces to half the L1 distance.
func equalDistance(p, q []float64) float64 {
	sum := 0.0
	for i := range p {
		sum += math.Abs(p[i] - q[i])
	}
	return sum / 2
}

// orderedDistance is the earth mover's distance over ranked values.
func orderedDistance(p, q []float64) float64 {
	if len(p) < 2 {
		return 0
	}
	cumulative, sum := 0.0, 0.0
	for i := range p {
		cumulative += p[i] - q[i]
		sum += math.Abs(cumulative)
	}
	return sum / float64(len(p)-1)
}
