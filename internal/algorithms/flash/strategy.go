package flash

import (
	"cmp"
	"slices"

	"github.com/inferloop/anonsearch/internal/lattice"
)

// Strategy is the total order in which FLASH visits transformations: by
// level, then by average relative generalization (precision), then by
// average share of retained distinct values (descending), then by
// identifier.
type Strategy struct {
	space *lattice.SolutionSpace
	// distinct[dim][level] is the number of distinct values of an attribute
	// on a level. May be nil.
	distinct [][]int
	keys     map[int64]strategyKey
}

type strategyKey struct {
	level     int
	precision float64
	retention float64
}

// NewStrategy creates the order. distinct may be nil, in which case the
// retention criterion is ignored.
func NewStrategy(space *lattice.SolutionSpace, distinct [][]int) *Strategy {
	return &Strategy{
		space:    space,
		distinct: distinct,
		keys:     make(map[int64]strategyKey),
	}
}

func (s *Strategy) key(t *lattice.Transformation) strategyKey {
	if k, ok := s.keys[t.ID()]; ok {
		return k
	}

	maxLevels := s.space.MaxLevels()
	dims := float64(t.Dimensions())
	k := strategyKey{level: t.Level()}
	for dim := 0; dim < t.Dimensions(); dim++ {
		level := t.GeneralizationAt(dim)
		if maxLevels[dim] > 0 {
			k.precision += float64(level) / float64(maxLevels[dim])
		}
		if s.distinct != nil && dim < len(s.distinct) && level < len(s.distinct[dim]) && s.distinct[dim][0] > 0 {
			k.retention += float64(s.distinct[dim][level]) / float64(s.distinct[dim][0])
		}
	}
	k.precision /= dims
	k.retention /= dims

	s.keys[t.ID()] = k
	return k
}

// Compare orders a before b when it should be visited first.
func (s *Strategy) Compare(a, b *lattice.Transformation) int {
	if a.ID() == b.ID() {
		return 0
	}
	ka, kb := s.key(a), s.key(b)
	if c := cmp.Compare(ka.level, kb.level); c != 0 {
		return c
	}
	if c := cmp.Compare(ka.precision, kb.precision); c != 0 {
		return c
	}
	if c := cmp.Compare(kb.retention, ka.retention); c != 0 {
		return c
	}
	return cmp.Compare(a.ID(), b.ID())
}

// LessID compares two identifiers of the strategy's space.
func (s *Strategy) LessID(a, b int64) bool {
	return s.Compare(s.space.Transformation(a), s.space.Transformation(b)) < 0
}

// Sort orders transformations in place.
func (s *Strategy) Sort(ts []*lattice.Transformation) {
	slices.SortFunc(ts, s.Compare)
}
