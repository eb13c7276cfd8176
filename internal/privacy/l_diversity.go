package privacy

import (
	"fmt"
	"math"
	"sort"

	"github.com/inferloop/anonsearch/pkg/errors"
)

// Diversity models supported by LDiversity.
const (
	DiversityDistinct  = "distinct"
	DiversityEntropy   = "entropy"
	DiversityRecursive = "recursive"
)

// LDiversity requires every equivalence class to hold well represented
// sensitive values.
type LDiversity struct {
	L          int
	Model      string
	RecursiveC float64
}

// NewLDiversity validates the parameters and returns the criterion.
// recursiveC is only used by the recursive model.
func NewLDiversity(l int, model string, recursiveC float64) (*LDiversity, error) {
	if l < 1 {
		return nil, errors.NewValidationError(errors.ErrInvalidParameters, errors.CodeOutOfRange,
			fmt.Sprintf("l must be at least 1, got %d", l))
	}
	switch model {
	case "":
		model = DiversityDistinct
	case DiversityDistinct, DiversityEntropy:
	case DiversityRecursive:
		if recursiveC <= 0 {
			return nil, errors.NewValidationError(errors.ErrInvalidParameters, errors.CodeOutOfRange,
				"recursive l-diversity requires c > 0")
		}
	default:
		return nil, errors.NewValidationError(errors.ErrInvalidParameters, errors.CodeInvalidInput,
			fmt.Sprintf("unknown diversity model %q", model))
	}
	return &LDiversity{L: l, Model: model, RecursiveC: recursiveC}, nil
}

func (l *LDiversity) Name() string {
	if l.Model == DiversityRecursive {
		return fmt.Sprintf("recursive-(%g,%d)-diversity", l.RecursiveC, l.L)
	}
	return fmt.Sprintf("%s-%d-diversity", l.Model, l.L)
}

func (l *LDiversity) Fulfilled(class *EquivalenceClass) bool {
	switch l.Model {
	case DiversityEntropy:
		return l.checkEntropyDiversity(class.SensitiveCounts)
	case DiversityRecursive:
		return l.checkRecursiveDiversity(class.SensitiveCounts)
	default:
		return l.checkDistinctDiversity(class.SensitiveCounts)
	}
}

func (l *LDiversity) MinimalClassSize() int {
	return l.L
}

func (l *LDiversity) IsMonotonicWithSuppression() bool {
	return false
}

func (l *LDiversity) RequiresSensitive() bool {
	return true
}

func (l *LDiversity) checkDistinctDiversity(counts map[int]int) bool {
	return len(counts) >= l.L
}

func (l *LDiversity) checkEntropyDiversity(counts map[int]int) bool {
	total := 0
	for _, c := range counts {
		total += c
	}
	if total == 0 {
		return false
	}

	entropy := 0.0
	for _, c := range counts {
		if c > 0 {
			p := float64(c) / float64(total)
			entropy -= p * math.Log2(p)
		}
	}
	// Small tolerance for classes that hit the bound exactly.
	return entropy >= math.Log2(float64(l.L))-1e-12
}

func (l *LDiversity) checkRecursiveDiversity(counts map[int]int) bool {
	if len(counts) < l.L {
		return false
	}
	frequencies := make([]int, 0, len(counts))
	for _, c := range counts {
		frequencies = append(frequencies, c)
	}
	sort.Sort(sort.Reverse(sort.IntSlice(frequencies)))

	// r1 < c * (r_l + ... + r_m)
	tail := 0
	for _, f := range frequencies[l.L-1:] {
		tail += f
	}
	return float64(frequencies[0]) < l.RecursiveC*float64(tail)
}
