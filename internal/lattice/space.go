package lattice

import (
	"fmt"
	"math"
	"math/big"

	"github.com/sirupsen/logrus"

	"github.com/inferloop/anonsearch/pkg/errors"
)

// SolutionSpace is the lattice of all generalization schemes between a
// per-attribute minimum and maximum level. It owns every Transformation and
// the registry of predictive properties.
type SolutionSpace struct {
	logger *logrus.Logger

	minLevels   []int
	maxLevels   []int
	multipliers []int64
	size        *big.Int

	bottomLevel int
	topLevel    int

	transformations map[int64]*Transformation
	registry        []*PredictiveProperty
	props           properties

	// anchors[p] holds the generalizations whose strict up- or down-set
	// carries p. Each list is an antichain.
	anchors [][][]int
}

// Option configures a SolutionSpace.
type Option func(*SolutionSpace)

// WithLogger sets the logger used by the space.
func WithLogger(logger *logrus.Logger) Option {
	return func(s *SolutionSpace) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// NewSolutionSpace creates a lattice spanning minLevels..maxLevels for each
// quasi-identifier.
func NewSolutionSpace(minLevels, maxLevels []int, opts ...Option) (*SolutionSpace, error) {
	if len(minLevels) == 0 || len(minLevels) != len(maxLevels) {
		return nil, errors.NewValidationError(errors.ErrInvalidGeneralization, errors.CodeInvalidInput,
			"minimum and maximum levels must be non-empty and of equal length").
			WithContext("min", minLevels).WithContext("max", maxLevels)
	}

	s := &SolutionSpace{
		logger:          logrus.New(),
		minLevels:       append([]int(nil), minLevels...),
		maxLevels:       append([]int(nil), maxLevels...),
		multipliers:     make([]int64, len(minLevels)),
		transformations: make(map[int64]*Transformation),
	}
	for _, opt := range opts {
		opt(s)
	}

	size := big.NewInt(1)
	for i := range minLevels {
		if minLevels[i] < 0 || maxLevels[i] < minLevels[i] {
			return nil, errors.NewValidationError(errors.ErrInvalidGeneralization, errors.CodeOutOfRange,
				fmt.Sprintf("invalid level range [%d, %d] for attribute %d", minLevels[i], maxLevels[i], i))
		}
		s.multipliers[i] = size.Int64()
		size.Mul(size, big.NewInt(int64(maxLevels[i]-minLevels[i]+1)))
		if !size.IsInt64() {
			return nil, errors.NewValidationError(errors.ErrSolutionSpaceTooLarge, errors.CodeSpaceTooLarge,
				"solution space exceeds the 64-bit identifier range").
				WithContext("attributes", len(minLevels))
		}
		s.bottomLevel += minLevels[i]
		s.topLevel += maxLevels[i]
	}
	s.size = size

	s.props = properties{
		anonymous:           s.NewProperty(LabelAnonymous, DirectionUp),
		notAnonymous:        s.NewProperty(LabelNotAnonymous, DirectionDown),
		kAnonymous:          s.NewProperty(LabelKAnonymous, DirectionUp),
		notKAnonymous:       s.NewProperty(LabelNotKAnonymous, DirectionDown),
		checked:             s.NewProperty(LabelChecked, DirectionNone),
		expanded:            s.NewProperty(LabelExpanded, DirectionNone),
		visited:             s.NewProperty(LabelVisited, DirectionNone),
		insufficientUtility: s.NewProperty(LabelInsufficientUtility, DirectionUp),
		successorsPruned:    s.NewProperty(LabelSuccessorsPruned, DirectionNone),
		forceSnapshot:       s.NewProperty(LabelForceSnapshot, DirectionNone),
	}

	s.logger.WithFields(logrus.Fields{
		"attributes": len(minLevels),
		"size":       s.size.String(),
		"levels":     s.topLevel - s.bottomLevel + 1,
	}).Debug("Created solution space")

	return s, nil
}

// NewProperty registers an additional predictive property. Properties should
// be registered before transformations are materialized; later registrations
// still work because bitsets grow on demand.
func (s *SolutionSpace) NewProperty(label string, direction Direction) *PredictiveProperty {
	p := &PredictiveProperty{
		index:     uint(len(s.registry)),
		label:     label,
		direction: direction,
	}
	s.registry = append(s.registry, p)
	return p
}

func (s *SolutionSpace) propertyCapacity() uint {
	return uint(len(s.registry))
}

// Built-in properties.

func (s *SolutionSpace) PropertyAnonymous() *PredictiveProperty     { return s.props.anonymous }
func (s *SolutionSpace) PropertyNotAnonymous() *PredictiveProperty  { return s.props.notAnonymous }
func (s *SolutionSpace) PropertyKAnonymous() *PredictiveProperty    { return s.props.kAnonymous }
func (s *SolutionSpace) PropertyNotKAnonymous() *PredictiveProperty { return s.props.notKAnonymous }
func (s *SolutionSpace) PropertyChecked() *PredictiveProperty       { return s.props.checked }
func (s *SolutionSpace) PropertyExpanded() *PredictiveProperty      { return s.props.expanded }
func (s *SolutionSpace) PropertyVisited() *PredictiveProperty       { return s.props.visited }
func (s *SolutionSpace) PropertySuccessorsPruned() *PredictiveProperty {
	return s.props.successorsPruned
}
func (s *SolutionSpace) PropertyForceSnapshot() *PredictiveProperty { return s.props.forceSnapshot }
func (s *SolutionSpace) PropertyInsufficientUtility() *PredictiveProperty {
	return s.props.insufficientUtility
}

// Dimensions returns the number of quasi-identifiers.
func (s *SolutionSpace) Dimensions() int {
	return len(s.minLevels)
}

// MinLevels returns a copy of the per-attribute minimum levels.
func (s *SolutionSpace) MinLevels() []int {
	return append([]int(nil), s.minLevels...)
}

// MaxLevels returns a copy of the per-attribute maximum levels.
func (s *SolutionSpace) MaxLevels() []int {
	return append([]int(nil), s.maxLevels...)
}

// Size returns the number of transformations in the space.
func (s *SolutionSpace) Size() *big.Int {
	return new(big.Int).Set(s.size)
}

// SizeFitsInt reports whether the size fits a signed 32-bit word, which is
// what dense per-identifier caches are allowed to allocate.
func (s *SolutionSpace) SizeFitsInt() bool {
	return s.size.Cmp(big.NewInt(math.MaxInt32)) <= 0
}

// BottomLevel returns the level of the bottom transformation.
func (s *SolutionSpace) BottomLevel() int {
	return s.bottomLevel
}

// TopLevel returns the level of the top transformation.
func (s *SolutionSpace) TopLevel() int {
	return s.topLevel
}

// Bottom returns the least generalized transformation.
func (s *SolutionSpace) Bottom() *Transformation {
	return s.Transformation(0)
}

// Top returns the most generalized transformation.
func (s *SolutionSpace) Top() *Transformation {
	return s.Transformation(s.size.Int64() - 1)
}

// Transformation returns the transformation with the given identifier,
// materializing it on first access. It panics for identifiers outside the
// space, like an out-of-range slice index.
func (s *SolutionSpace) Transformation(id int64) *Transformation {
	if t, ok := s.transformations[id]; ok {
		return t
	}
	if id < 0 || id >= s.size.Int64() {
		panic(fmt.Sprintf("lattice: identifier %d outside solution space of size %s", id, s.size))
	}
	t := newTransformation(s, id, s.decode(id))
	s.transformations[id] = t
	return t
}

// Peek returns the transformation with the given identifier without adding
// it to the arena. A transformation that was not materialized before is a
// detached copy: properties written to it are discarded.
func (s *SolutionSpace) Peek(id int64) *Transformation {
	if t, ok := s.transformations[id]; ok {
		return t
	}
	if id < 0 || id >= s.size.Int64() {
		panic(fmt.Sprintf("lattice: identifier %d outside solution space of size %s", id, s.size))
	}
	return newTransformation(s, id, s.decode(id))
}

// TransformationFor returns the transformation with the given
// generalization levels.
func (s *SolutionSpace) TransformationFor(generalization []int) (*Transformation, error) {
	if len(generalization) != len(s.minLevels) {
		return nil, errors.NewValidationError(errors.ErrInvalidGeneralization, errors.CodeInvalidInput,
			fmt.Sprintf("expected %d levels, got %d", len(s.minLevels), len(generalization)))
	}
	for i, g := range generalization {
		if g < s.minLevels[i] || g > s.maxLevels[i] {
			return nil, errors.NewValidationError(errors.ErrInvalidGeneralization, errors.CodeOutOfRange,
				fmt.Sprintf("level %d of attribute %d outside [%d, %d]", g, i, s.minLevels[i], s.maxLevels[i]))
		}
	}
	return s.Transformation(s.encode(generalization)), nil
}

// Materialized returns the number of transformations created so far.
func (s *SolutionSpace) Materialized() int {
	return len(s.transformations)
}

func (s *SolutionSpace) encode(generalization []int) int64 {
	var id int64
	for i, g := range generalization {
		id += int64(g-s.minLevels[i]) * s.multipliers[i]
	}
	return id
}

func (s *SolutionSpace) decode(id int64) []int {
	gen := make([]int, len(s.minLevels))
	for i := len(gen) - 1; i >= 0; i-- {
		gen[i] = int(id/s.multipliers[i]) + s.minLevels[i]
		id %= s.multipliers[i]
	}
	return gen
}

func (s *SolutionSpace) successorIDs(t *Transformation) []int64 {
	ids := make([]int64, 0, len(t.generalization))
	for i, g := range t.generalization {
		if g < s.maxLevels[i] {
			ids = append(ids, t.id+s.multipliers[i])
		}
	}
	return ids
}

func (s *SolutionSpace) predecessorIDs(t *Transformation) []int64 {
	ids := make([]int64, 0, len(t.generalization))
	for i, g := range t.generalization {
		if g > s.minLevels[i] {
			ids = append(ids, t.id-s.multipliers[i])
		}
	}
	return ids
}

// Successors returns the identifiers one step above t.
func (s *SolutionSpace) Successors(t *Transformation) []int64 {
	return t.Successors()
}

// Predecessors returns the identifiers one step below t.
func (s *SolutionSpace) Predecessors(t *Transformation) []int64 {
	return t.Predecessors()
}

// LevelIDs returns the identifiers of all transformations whose levels sum
// to level. Use ForEachLevelID to enumerate large levels lazily.
func (s *SolutionSpace) LevelIDs(level int) []int64 {
	var ids []int64
	s.ForEachLevelID(level, func(id int64) bool {
		ids = append(ids, id)
		return true
	})
	return ids
}

// ForEachLevelID calls fn with the identifier of every transformation on the
// given level, in ascending order of the first attribute, until fn returns
// false. Nothing is materialized.
func (s *SolutionSpace) ForEachLevelID(level int, fn func(id int64) bool) {
	if level < s.bottomLevel || level > s.topLevel {
		return
	}

	n := len(s.minLevels)
	restMin := make([]int, n+1)
	restMax := make([]int, n+1)
	for i := n - 1; i >= 0; i-- {
		restMin[i] = restMin[i+1] + s.minLevels[i]
		restMax[i] = restMax[i+1] + s.maxLevels[i]
	}

	remaining := make([]int, n)
	remaining[0] = level
	lower := func(i int) int {
		return max(s.minLevels[i], remaining[i]-restMax[i+1])
	}
	upper := func(i int) int {
		return min(s.maxLevels[i], remaining[i]-restMin[i+1])
	}

	gen := make([]int, n)
	gen[0] = lower(0)
	for i := 0; i >= 0; {
		if gen[i] > upper(i) {
			i--
			if i >= 0 {
				gen[i]++
			}
			continue
		}
		if i == n-1 {
			if !fn(s.encode(gen)) {
				return
			}
			gen[i]++
			continue
		}
		remaining[i+1] = remaining[i] - gen[i]
		i++
		gen[i] = lower(i)
	}
}

// SetPropertyToNeighbours makes p hold for every transformation reachable
// from t along p's direction. t itself is left untouched. Nothing is
// written to the neighbours: t is recorded as an anchor of p and
// HasProperty resolves inherited properties on demand, so the cost depends
// on the number of anchors, never on the size of the up- or down-set.
func (s *SolutionSpace) SetPropertyToNeighbours(t *Transformation, p *PredictiveProperty) {
	if p.direction == DirectionNone {
		return
	}
	for uint(len(s.anchors)) <= p.index {
		s.anchors = append(s.anchors, nil)
	}

	anchors := s.anchors[p.index]
	for _, a := range anchors {
		if dominates(p.direction, a, t.generalization) {
			return
		}
	}
	kept := anchors[:0]
	for _, a := range anchors {
		if !dominates(p.direction, t.generalization, a) {
			kept = append(kept, a)
		}
	}
	s.anchors[p.index] = append(kept, t.generalization)
}

// inherits reports whether generalization lies strictly beyond an anchor
// of p.
func (s *SolutionSpace) inherits(generalization []int, p *PredictiveProperty) bool {
	if p.direction == DirectionNone || uint(len(s.anchors)) <= p.index {
		return false
	}
	for _, a := range s.anchors[p.index] {
		if dominates(p.direction, a, generalization) && !equalLevels(a, generalization) {
			return true
		}
	}
	return false
}

// Anchors returns how many anchors p has.
func (s *SolutionSpace) Anchors(p *PredictiveProperty) int {
	if uint(len(s.anchors)) <= p.index {
		return 0
	}
	return len(s.anchors[p.index])
}

// dominates reports whether g is reachable from a along direction, a
// itself included.
func dominates(direction Direction, a, g []int) bool {
	for i := range a {
		if direction == DirectionUp && g[i] < a[i] || direction == DirectionDown && g[i] > a[i] {
			return false
		}
	}
	return true
}

func equalLevels(a, b []int) bool {
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// CountProperty returns how many materialized transformations carry p,
// inherited or set.
func (s *SolutionSpace) CountProperty(p *PredictiveProperty) int {
	count := 0
	for _, t := range s.transformations {
		if t.HasProperty(p) {
			count++
		}
	}
	return count
}
