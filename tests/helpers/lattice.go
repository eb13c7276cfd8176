package helpers

import (
	"hash/fnv"
	"math"

	"github.com/inferloop/anonsearch/internal/lattice"
)

// Optimum is the result of an exhaustive search.
type Optimum struct {
	Found          bool
	Generalization []int
	Loss           float64
	Level          int
}

// BruteForce evaluates every transformation of space and returns the
// anonymous one with the smallest loss, preferring lower levels on ties.
// It does not touch the properties of the space.
func BruteForce(space *lattice.SolutionSpace, anonymous func([]int) bool, loss func([]int) float64) Optimum {
	var best Optimum
	for _, t := range All(space) {
		gen := t.Generalization()
		if !anonymous(gen) {
			continue
		}
		l := loss(gen)
		if !best.Found || l < best.Loss || (l == best.Loss && t.Level() < best.Level) {
			best = Optimum{Found: true, Generalization: gen, Loss: l, Level: t.Level()}
		}
	}
	return best
}

// All returns every transformation of space, level by level.
func All(space *lattice.SolutionSpace) []*lattice.Transformation {
	var all []*lattice.Transformation
	for level := space.BottomLevel(); level <= space.TopLevel(); level++ {
		for _, id := range space.LevelIDs(level) {
			all = append(all, space.Transformation(id))
		}
	}
	return all
}

// Sum returns the sum of the generalization levels.
func Sum(gen []int) int {
	sum := 0
	for _, g := range gen {
		sum += g
	}
	return sum
}

// LevelLoss is a monotonic loss equal to the level.
func LevelLoss(gen []int) float64 {
	return float64(Sum(gen))
}

// SumAtLeast is a monotonic privacy predicate.
func SumAtLeast(n int) func([]int) bool {
	return func(gen []int) bool {
		return Sum(gen) >= n
	}
}

// AllAtLeast holds when every dimension reaches its minimum. It is
// monotonic.
func AllAtLeast(mins ...int) func([]int) bool {
	return func(gen []int) bool {
		for i, m := range mins {
			if gen[i] < m {
				return false
			}
		}
		return true
	}
}

// WeightedLoss is a monotonic loss with a weight per dimension.
func WeightedLoss(weights ...float64) func([]int) float64 {
	return func(gen []int) float64 {
		sum := 0.0
		for i, g := range gen {
			sum += weights[i] * float64(g)
		}
		return sum
	}
}

// Noise returns a deterministic pseudo-random value in [0, 1) per vector.
func Noise(seed uint64) func([]int) float64 {
	return func(gen []int) float64 {
		return float64(hash(seed, gen)%1_000_003) / 1_000_003
	}
}

// NoisyLoss adds up to amplitude of noise to the level. With amplitude
// above 1 it is not monotonic, but the level remains a lower bound.
func NoisyLoss(seed uint64, amplitude float64) func([]int) float64 {
	noise := Noise(seed)
	return func(gen []int) float64 {
		return LevelLoss(gen) + math.Round(amplitude*noise(gen)*1000)/1000
	}
}

// Sometimes holds for roughly the given share of vectors, independently
// of their position in the lattice.
func Sometimes(seed uint64, share float64) func([]int) bool {
	noise := Noise(seed)
	return func(gen []int) bool {
		return noise(gen) < share
	}
}

// And combines predicates.
func And(predicates ...func([]int) bool) func([]int) bool {
	return func(gen []int) bool {
		for _, p := range predicates {
			if !p(gen) {
				return false
			}
		}
		return true
	}
}

func hash(seed uint64, gen []int) uint64 {
	h := fnv.New64a()
	var buf [8]byte
	write := func(v uint64) {
		for i := range buf {
			buf[i] = byte(v >> (8 * i))
		}
		_, _ = h.Write(buf[:])
	}
	write(seed)
	for _, g := range gen {
		write(uint64(g))
	}
	return h.Sum64()
}
