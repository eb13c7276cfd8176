package interfaces

import (
	"github.com/inferloop/anonsearch/internal/lattice"
)

// Algorithm defines the contract shared by every lattice search strategy
type Algorithm interface {
	// Traverse runs the search. It returns true when the returned optimum is
	// guaranteed optimal and false when the result is best-effort, for
	// example because a time or check limit was reached or the algorithm is
	// a heuristic.
	Traverse() (bool, error)

	// GlobalOptimum returns the best anonymous transformation found so far,
	// or nil if none was found
	GlobalOptimum() *lattice.Transformation

	// SetListener registers a progress listener
	SetListener(listener ProgressListener)
}

// ProgressListener receives progress updates in [0, 1]. It is called
// synchronously from the search loop and must not block.
type ProgressListener interface {
	OnProgress(progress float64)
}

// ProgressFunc adapts a plain function to ProgressListener
type ProgressFunc func(progress float64)

// OnProgress implements ProgressListener
func (f ProgressFunc) OnProgress(progress float64) {
	f(progress)
}
