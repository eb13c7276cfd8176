package lattice

// Direction describes along which lattice edges a predictive property holds
// once it holds for a transformation.
type Direction int

const (
	// DirectionNone properties describe a single transformation only.
	DirectionNone Direction = iota
	// DirectionUp properties hold for every successor (more generalized).
	DirectionUp
	// DirectionDown properties hold for every predecessor (less generalized).
	DirectionDown
)

func (d Direction) String() string {
	switch d {
	case DirectionUp:
		return "up"
	case DirectionDown:
		return "down"
	default:
		return "none"
	}
}

// PredictiveProperty is a handle for a boolean tag stored in every
// transformation's property bitset.
type PredictiveProperty struct {
	index     uint
	label     string
	direction Direction
}

// Label returns the human readable name of the property.
func (p *PredictiveProperty) Label() string {
	return p.label
}

// Direction returns the propagation direction.
func (p *PredictiveProperty) Direction() Direction {
	return p.direction
}

// Index returns the bit position used by the property.
func (p *PredictiveProperty) Index() uint {
	return p.index
}

func (p *PredictiveProperty) String() string {
	return p.label
}

// Built-in property labels.
const (
	LabelAnonymous           = "anonymous"
	LabelNotAnonymous        = "not-anonymous"
	LabelKAnonymous          = "k-anonymous"
	LabelNotKAnonymous       = "not-k-anonymous"
	LabelChecked             = "checked"
	LabelExpanded            = "expanded"
	LabelVisited             = "visited"
	LabelInsufficientUtility = "insufficient-utility"
	LabelSuccessorsPruned    = "successors-pruned"
	LabelForceSnapshot       = "force-snapshot"
)

// properties groups the handles every solution space registers up front.
type properties struct {
	anonymous           *PredictiveProperty
	notAnonymous        *PredictiveProperty
	kAnonymous          *PredictiveProperty
	notKAnonymous       *PredictiveProperty
	checked             *PredictiveProperty
	expanded            *PredictiveProperty
	visited             *PredictiveProperty
	insufficientUtility *PredictiveProperty
	successorsPruned    *PredictiveProperty
	forceSnapshot       *PredictiveProperty
}
