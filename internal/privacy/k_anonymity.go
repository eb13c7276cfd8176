package privacy

import (
	"fmt"

	"github.com/inferloop/anonsearch/pkg/errors"
)

// KAnonymity requires every equivalence class to contain at least K records.
type KAnonymity struct {
	K int
}

// NewKAnonymity validates k and returns the criterion.
func NewKAnonymity(k int) (*KAnonymity, error) {
	if k < 1 {
		return nil, errors.NewValidationError(errors.ErrInvalidParameters, errors.CodeOutOfRange,
			fmt.Sprintf("k must be at least 1, got %d", k))
	}
	return &KAnonymity{K: k}, nil
}

func (k *KAnonymity) Name() string {
	return fmt.Sprintf("%d-anonymity", k.K)
}

func (k *KAnonymity) Fulfilled(class *EquivalenceClass) bool {
	return class.Size >= k.K
}

func (k *KAnonymity) MinimalClassSize() int {
	return k.K
}

// IsMonotonicWithSuppression is true: classes only grow with generalization,
// so the number of records in too-small classes never increases.
func (k *KAnonymity) IsMonotonicWithSuppression() bool {
	return true
}

func (k *KAnonymity) RequiresSensitive() bool {
	return false
}
