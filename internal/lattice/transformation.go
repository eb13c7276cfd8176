package lattice

import (
	"fmt"
	"strings"

	"github.com/bits-and-blooms/bitset"
)

// Transformation is one point of the generalization lattice. Instances are
// owned by their SolutionSpace and materialized on first access.
type Transformation struct {
	space          *SolutionSpace
	id             int64
	generalization []int
	level          int

	properties *bitset.BitSet

	successors   []int64
	predecessors []int64

	informationLoss InformationLoss
	lowerBound      InformationLoss
}

func newTransformation(space *SolutionSpace, id int64, generalization []int) *Transformation {
	level := 0
	for _, g := range generalization {
		level += g
	}
	return &Transformation{
		space:          space,
		id:             id,
		generalization: generalization,
		level:          level,
		properties:     bitset.New(space.propertyCapacity()),
	}
}

// ID returns the identifier of the transformation within its space.
func (t *Transformation) ID() int64 {
	return t.id
}

// Generalization returns a copy of the per-attribute generalization levels.
func (t *Transformation) Generalization() []int {
	out := make([]int, len(t.generalization))
	copy(out, t.generalization)
	return out
}

// GeneralizationAt returns the level of a single attribute.
func (t *Transformation) GeneralizationAt(dimension int) int {
	return t.generalization[dimension]
}

// Dimensions returns the number of quasi-identifiers.
func (t *Transformation) Dimensions() int {
	return len(t.generalization)
}

// Level returns the sum of all generalization levels.
func (t *Transformation) Level() int {
	return t.level
}

// Space returns the owning solution space.
func (t *Transformation) Space() *SolutionSpace {
	return t.space
}

// HasProperty reports whether the property has been set on t or is
// inherited from an anchor. Inherited properties are cached on t.
func (t *Transformation) HasProperty(p *PredictiveProperty) bool {
	if t.properties.Test(p.index) {
		return true
	}
	if t.space.inherits(t.generalization, p) {
		t.properties.Set(p.index)
		return true
	}
	return false
}

// SetProperty tags the transformation. Properties are never removed.
func (t *Transformation) SetProperty(p *PredictiveProperty) {
	t.properties.Set(p.index)
}

// IsChecked reports whether the transformation went through a full check.
func (t *Transformation) IsChecked() bool {
	return t.HasProperty(t.space.props.checked)
}

// SetChecked stores the outcome of a check. The first result wins: once the
// transformation is checked its loss never changes.
func (t *Transformation) SetChecked(anonymous, kAnonymous bool, loss, bound InformationLoss) {
	p := t.space.props
	if t.HasProperty(p.checked) {
		return
	}
	t.SetProperty(p.checked)
	if anonymous {
		t.SetProperty(p.anonymous)
	} else {
		t.SetProperty(p.notAnonymous)
	}
	if kAnonymous {
		t.SetProperty(p.kAnonymous)
	} else {
		t.SetProperty(p.notKAnonymous)
	}
	t.informationLoss = loss
	if bound != nil {
		t.lowerBound = bound
	}
}

// InformationLoss returns the loss, or nil when not yet known.
func (t *Transformation) InformationLoss() InformationLoss {
	return t.informationLoss
}

// SetInformationLoss records a loss computed without a check. It is a no-op
// once a loss is present.
func (t *Transformation) SetInformationLoss(loss InformationLoss) {
	if t.informationLoss == nil {
		t.informationLoss = loss
	}
}

// LowerBound returns the lower bound, or nil when unknown.
func (t *Transformation) LowerBound() InformationLoss {
	return t.lowerBound
}

// SetLowerBound records a lower bound if none is present yet.
func (t *Transformation) SetLowerBound(bound InformationLoss) {
	if t.lowerBound == nil {
		t.lowerBound = bound
	}
}

// Successors returns identifiers one generalization step above.
func (t *Transformation) Successors() []int64 {
	if t.successors == nil {
		t.successors = t.space.successorIDs(t)
	}
	return t.successors
}

// Predecessors returns identifiers one generalization step below.
func (t *Transformation) Predecessors() []int64 {
	if t.predecessors == nil {
		t.predecessors = t.space.predecessorIDs(t)
	}
	return t.predecessors
}

// Properties lists the labels of all properties set on the transformation.
func (t *Transformation) Properties() []string {
	var labels []string
	for _, p := range t.space.registry {
		if t.HasProperty(p) {
			labels = append(labels, p.label)
		}
	}
	return labels
}

func (t *Transformation) String() string {
	parts := make([]string, len(t.generalization))
	for i, g := range t.generalization {
		parts[i] = fmt.Sprintf("%d", g)
	}
	return "[" + strings.Join(parts, ", ") + "]"
}
