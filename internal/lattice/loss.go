package lattice

import (
	"fmt"
	"math"
)

// InformationLoss is an opaque, comparable measure of utility loss.
// Implementations may only be partially ordered; CompareTo returns 0 for
// incomparable values.
type InformationLoss interface {
	// CompareTo returns a negative number if the receiver is smaller (better)
	// than other, zero if equal and a positive number otherwise.
	CompareTo(other InformationLoss) int

	// RelativeTo normalizes the receiver into [0,1] given the extremes
	// observed in a solution space.
	RelativeTo(min, max InformationLoss) float64

	String() string
}

// Valuer is implemented by losses that can be reduced to a single number.
type Valuer interface {
	Float64() float64
}

// ScalarLoss is a totally ordered information loss backed by a float64.
type ScalarLoss float64

// NewScalarLoss returns the loss as an InformationLoss value.
func NewScalarLoss(value float64) InformationLoss {
	return ScalarLoss(value)
}

// Float64 returns the underlying value.
func (l ScalarLoss) Float64() float64 {
	return float64(l)
}

// CompareTo implements InformationLoss.
func (l ScalarLoss) CompareTo(other InformationLoss) int {
	o, ok := ValueOf(other)
	if !ok {
		return 0
	}
	switch {
	case float64(l) < o:
		return -1
	case float64(l) > o:
		return 1
	default:
		return 0
	}
}

// RelativeTo implements InformationLoss.
func (l ScalarLoss) RelativeTo(min, max InformationLoss) float64 {
	lo, okLo := ValueOf(min)
	hi, okHi := ValueOf(max)
	if !okLo || !okHi || hi <= lo {
		return 0
	}
	rel := (float64(l) - lo) / (hi - lo)
	return math.Max(0, math.Min(1, rel))
}

func (l ScalarLoss) String() string {
	return fmt.Sprintf("%.6g", float64(l))
}

// ValueOf extracts a float from loss when it implements Valuer.
func ValueOf(loss InformationLoss) (float64, bool) {
	if loss == nil {
		return 0, false
	}
	v, ok := loss.(Valuer)
	if !ok {
		return 0, false
	}
	return v.Float64(), true
}

// CompareLoss orders two losses, treating nil as worse than any value.
func CompareLoss(a, b InformationLoss) int {
	switch {
	case a == nil && b == nil:
		return 0
	case a == nil:
		return 1
	case b == nil:
		return -1
	default:
		return a.CompareTo(b)
	}
}
