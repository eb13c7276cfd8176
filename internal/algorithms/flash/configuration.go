package flash

import (
	"fmt"

	"github.com/inferloop/anonsearch/internal/checker"
	"github.com/inferloop/anonsearch/internal/lattice"
	"github.com/inferloop/anonsearch/pkg/errors"
)

// Trigger is a predicate over a transformation.
type Trigger func(t *lattice.Transformation) bool

// Action is an effect applied to a transformation.
type Action func(t *lattice.Transformation)

// PhaseConfiguration wires one traversal phase. A transformation is skipped
// when TriggerSkip holds, otherwise evaluated when TriggerEvaluate holds or
// checked when TriggerCheck holds, and then tagged with TriggerTag.
type PhaseConfiguration struct {
	// AnonymityProperty is the property a binary search bisects on.
	AnonymityProperty *lattice.PredictiveProperty

	TriggerSkip     Trigger
	TriggerCheck    Trigger
	TriggerEvaluate Trigger
	TriggerTag      Action
}

func (p *PhaseConfiguration) skip(t *lattice.Transformation) bool {
	return p.TriggerSkip != nil && p.TriggerSkip(t)
}

// Configuration combines up to two phases.
type Configuration struct {
	Name    string
	Binary  *PhaseConfiguration
	Linear  *PhaseConfiguration
	Pruning bool
}

// BinaryPhaseRequired reports whether a binary phase is configured.
func (c *Configuration) BinaryPhaseRequired() bool {
	return c.Binary != nil
}

// LinearPhaseRequired reports whether a linear phase is configured.
func (c *Configuration) LinearPhaseRequired() bool {
	return c.Linear != nil
}

// NewConfiguration derives the phase wiring from the monotonicity of privacy
// and utility. Partially monotonic utility has no wiring.
func NewConfiguration(space *lattice.SolutionSpace, cfg checker.Configuration, metric checker.Metric) (*Configuration, error) {
	w := wiring{space: space, independent: metric.IsIndependent()}

	switch cfg.PrivacyMonotonicity {
	case checker.MonotonicityFull:
		switch cfg.UtilityMonotonicity {
		case checker.MonotonicityFull:
			return w.fullFull(), nil
		case checker.MonotonicityNone:
			return w.fullNone(), nil
		}
	case checker.MonotonicityPartial:
		switch cfg.UtilityMonotonicity {
		case checker.MonotonicityFull:
			return w.partial(true), nil
		case checker.MonotonicityNone:
			return w.partial(false), nil
		}
	case checker.MonotonicityNone:
		switch cfg.UtilityMonotonicity {
		case checker.MonotonicityFull:
			return w.noneFull(), nil
		case checker.MonotonicityNone:
			return w.noneNone(), nil
		}
	}
	return nil, errors.NewConfigurationError(errors.ErrUnsupportedMonotonicity,
		fmt.Sprintf("no FLASH configuration for privacy %s and utility %s",
			cfg.PrivacyMonotonicity, cfg.UtilityMonotonicity))
}

type wiring struct {
	space       *lattice.SolutionSpace
	independent bool
}

func (w wiring) has(ps ...*lattice.PredictiveProperty) Trigger {
	return func(t *lattice.Transformation) bool {
		for _, p := range ps {
			if t.HasProperty(p) {
				return true
			}
		}
		return false
	}
}

func (w wiring) notChecked(t *lattice.Transformation) bool {
	return !t.IsChecked()
}

func never(*lattice.Transformation) bool { return false }

// tagMonotonic propagates a monotonic property and its negation. With
// monotonic utility, everything above an anonymous transformation is worse.
func (w wiring) tagMonotonic(property, negation *lattice.PredictiveProperty, utility bool) Action {
	s := w.space
	return func(t *lattice.Transformation) {
		if t.HasProperty(property) {
			s.SetPropertyToNeighbours(t, property)
			if utility && t.HasProperty(s.PropertyAnonymous()) {
				s.SetPropertyToNeighbours(t, s.PropertyInsufficientUtility())
			}
		} else if t.HasProperty(negation) {
			s.SetPropertyToNeighbours(t, negation)
		}
	}
}

func (w wiring) tagVisited(then Action) Action {
	visited := w.space.PropertyVisited()
	return func(t *lattice.Transformation) {
		t.SetProperty(visited)
		if then != nil {
			then(t)
		}
	}
}

func (w wiring) fullFull() *Configuration {
	s := w.space
	return &Configuration{
		Name: "full/full",
		Binary: &PhaseConfiguration{
			AnonymityProperty: s.PropertyAnonymous(),
			TriggerSkip: w.has(s.PropertyChecked(), s.PropertyAnonymous(), s.PropertyNotAnonymous(),
				s.PropertyInsufficientUtility()),
			TriggerCheck:    w.notChecked,
			TriggerEvaluate: never,
			TriggerTag:      w.tagMonotonic(s.PropertyAnonymous(), s.PropertyNotAnonymous(), true),
		},
		Pruning: true,
	}
}

func (w wiring) fullNone() *Configuration {
	s := w.space
	return &Configuration{
		Name: "full/none",
		Binary: &PhaseConfiguration{
			AnonymityProperty: s.PropertyAnonymous(),
			TriggerSkip: w.has(s.PropertyChecked(), s.PropertyAnonymous(), s.PropertyNotAnonymous(),
				s.PropertyInsufficientUtility()),
			TriggerCheck:    w.notChecked,
			TriggerEvaluate: never,
			TriggerTag:      w.tagMonotonic(s.PropertyAnonymous(), s.PropertyNotAnonymous(), false),
		},
		Linear: &PhaseConfiguration{
			AnonymityProperty: s.PropertyAnonymous(),
			TriggerSkip:       w.has(s.PropertyVisited(), s.PropertyInsufficientUtility(), s.PropertyNotAnonymous()),
			TriggerCheck:      w.notChecked,
			TriggerEvaluate: func(t *lattice.Transformation) bool {
				return w.independent && t.HasProperty(s.PropertyAnonymous()) && !t.IsChecked()
			},
			TriggerTag: w.tagVisited(nil),
		},
		Pruning: true,
	}
}

func (w wiring) partial(utility bool) *Configuration {
	s := w.space
	name := "partial/none"
	if utility {
		name = "partial/full"
	}
	tag := w.tagMonotonic(s.PropertyKAnonymous(), s.PropertyNotKAnonymous(), utility)
	return &Configuration{
		Name: name,
		Binary: &PhaseConfiguration{
			AnonymityProperty: s.PropertyKAnonymous(),
			TriggerSkip: w.has(s.PropertyChecked(), s.PropertyKAnonymous(), s.PropertyNotKAnonymous(),
				s.PropertyInsufficientUtility()),
			TriggerCheck:    w.notChecked,
			TriggerEvaluate: never,
			TriggerTag:      tag,
		},
		Linear: &PhaseConfiguration{
			AnonymityProperty: s.PropertyKAnonymous(),
			TriggerSkip:       w.has(s.PropertyVisited(), s.PropertyInsufficientUtility(), s.PropertyNotKAnonymous()),
			TriggerCheck:      w.notChecked,
			TriggerEvaluate:   never,
			TriggerTag:        w.tagVisited(tag),
		},
		Pruning: true,
	}
}

func (w wiring) noneFull() *Configuration {
	s := w.space
	return &Configuration{
		Name: "none/full",
		Linear: &PhaseConfiguration{
			AnonymityProperty: s.PropertyAnonymous(),
			TriggerSkip:       w.has(s.PropertyVisited(), s.PropertyInsufficientUtility()),
			TriggerCheck:      w.notChecked,
			TriggerEvaluate:   never,
			TriggerTag: w.tagVisited(func(t *lattice.Transformation) {
				if t.HasProperty(s.PropertyAnonymous()) {
					s.SetPropertyToNeighbours(t, s.PropertyInsufficientUtility())
				}
			}),
		},
		Pruning: true,
	}
}

func (w wiring) noneNone() *Configuration {
	s := w.space
	return &Configuration{
		Name: "none/none",
		Linear: &PhaseConfiguration{
			AnonymityProperty: s.PropertyAnonymous(),
			TriggerSkip:       w.has(s.PropertyVisited()),
			TriggerCheck:      w.notChecked,
			TriggerEvaluate:   never,
			TriggerTag:        w.tagVisited(nil),
		},
		Pruning: false,
	}
}
