// Package checker defines what the search algorithms need from the component
// that evaluates transformations, and provides reference implementations.
package checker

import (
	"fmt"
	"strings"

	"github.com/inferloop/anonsearch/internal/lattice"
	"github.com/inferloop/anonsearch/pkg/errors"
)

// Monotonicity describes how reliably a property is non-decreasing with
// generalization.
type Monotonicity int

const (
	MonotonicityFull Monotonicity = iota
	MonotonicityPartial
	MonotonicityNone
)

func (m Monotonicity) String() string {
	switch m {
	case MonotonicityFull:
		return "full"
	case MonotonicityPartial:
		return "partial"
	default:
		return "none"
	}
}

// ParseMonotonicity converts a name into a Monotonicity.
func ParseMonotonicity(s string) (Monotonicity, error) {
	switch strings.ToLower(s) {
	case "full":
		return MonotonicityFull, nil
	case "partial":
		return MonotonicityPartial, nil
	case "none":
		return MonotonicityNone, nil
	}
	return MonotonicityNone, errors.NewValidationError(errors.ErrInvalidConfiguration, errors.CodeInvalidInput,
		fmt.Sprintf("unknown monotonicity %q", s))
}

// StorageStrategy selects which snapshots the history keeps.
type StorageStrategy int

const (
	// StorageAll keeps a snapshot of every checked transformation.
	StorageAll StorageStrategy = iota
	// StorageNonAnonymous keeps snapshots of non-anonymous transformations.
	StorageNonAnonymous
	// StorageChecked keeps snapshots of checked transformations whose
	// successors have not been pruned.
	StorageChecked
)

func (s StorageStrategy) String() string {
	switch s {
	case StorageAll:
		return "all"
	case StorageNonAnonymous:
		return "non-anonymous"
	default:
		return "checked"
	}
}

// TransformationResult is the outcome of a check.
type TransformationResult struct {
	PrivacyModelFulfilled     bool
	MinimalClassSizeFulfilled bool
	InformationLoss           lattice.InformationLoss
	LowerBound                lattice.InformationLoss
}

// Metric computes information loss.
type Metric interface {
	// Name identifies the metric
	Name() string

	// IsMonotonic reports whether loss is non-decreasing with generalization
	IsMonotonic() bool

	// IsIndependent reports whether InformationLoss works without grouping
	// the records
	IsIndependent() bool

	// InformationLoss evaluates an independent metric for t
	InformationLoss(t *lattice.Transformation) (lattice.InformationLoss, error)

	// LowerBound returns a bound on the loss of t, or nil if unavailable
	LowerBound(t *lattice.Transformation) lattice.InformationLoss
}

// Configuration exposes the monotonicity of the configured privacy model and
// utility measure.
type Configuration struct {
	PrivacyMonotonicity Monotonicity
	UtilityMonotonicity Monotonicity

	// CriterionMonotonic is true when every criterion stays monotonic under
	// the configured suppression limit.
	CriterionMonotonic bool

	// PracticalMonotonicity treats the privacy model as monotonic even when
	// it is not guaranteed to be.
	PracticalMonotonicity bool
}

// History is the cache of equivalence class snapshots used for incremental
// checks.
type History interface {
	SetStorageStrategy(strategy StorageStrategy)
	StorageStrategy() StorageStrategy
	Size() int
}

// Checker evaluates transformations.
type Checker interface {
	// Check groups the records according to t and evaluates privacy and loss
	Check(t *lattice.Transformation) (*TransformationResult, error)

	// Metric returns the information loss metric
	Metric() Metric

	// Configuration returns the monotonicity configuration
	Configuration() Configuration

	// History returns the snapshot cache
	History() History
}
