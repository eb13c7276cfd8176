package privacy

import (
	cryptorand "crypto/rand"
	"fmt"
	"math/big"
	"math/rand"

	"github.com/cockroachdb/apd/v3"
	"github.com/sirupsen/logrus"

	"github.com/inferloop/anonsearch/pkg/errors"
)

// Uniform draws are integers in [0, 10^uniformScale).
const (
	uniformScale       = 18
	uniformRange int64 = 1_000_000_000_000_000_000
)

// NewDecimalContext returns an arbitrary-precision context with half-even
// rounding. Underflow and subnormal results do not trap.
func NewDecimalContext(precision uint32) *apd.Context {
	ctx := apd.BaseContext.WithPrecision(precision)
	ctx.Rounding = apd.RoundHalfEven
	ctx.Traps = apd.DefaultTraps &^ (apd.Underflow | apd.Subnormal)
	return ctx
}

// ExponentialMechanism selects one of a set of values with probability
// proportional to exp(epsilon * score / 2), computed in decimal arithmetic.
type ExponentialMechanism[T comparable] struct {
	logger *logrus.Logger
	ctx    *apd.Context
	draw   func() (int64, error)

	values     []T
	weights    []*apd.Decimal
	cumulative []*apd.Decimal
	total      *apd.Decimal
}

// NewExponentialMechanism creates a mechanism backed by a cryptographically
// secure random source.
func NewExponentialMechanism[T comparable](precision uint32, logger *logrus.Logger) *ExponentialMechanism[T] {
	if logger == nil {
		logger = logrus.New()
	}
	limit := big.NewInt(uniformRange)
	return &ExponentialMechanism[T]{
		logger: logger,
		ctx:    NewDecimalContext(precision),
		draw: func() (int64, error) {
			n, err := cryptorand.Int(cryptorand.Reader, limit)
			if err != nil {
				return 0, err
			}
			return n.Int64(), nil
		},
	}
}

// NewDeterministicExponentialMechanism creates a mechanism whose samples are
// reproducible for a given seed. It does not provide differential privacy
// and exists for testing only.
func NewDeterministicExponentialMechanism[T comparable](precision uint32, seed int64, logger *logrus.Logger) *ExponentialMechanism[T] {
	if logger == nil {
		logger = logrus.New()
	}
	logger.WithField("seed", seed).Warn("Using deterministic exponential mechanism; output is not differentially private")

	rng := rand.New(rand.NewSource(seed))
	return &ExponentialMechanism[T]{
		logger: logger,
		ctx:    NewDecimalContext(precision),
		draw: func() (int64, error) {
			return rng.Int63n(uniformRange), nil
		},
	}
}

// SetDistribution prepares the mechanism for the given values and scores.
// Scores are shifted by their maximum before exponentiation.
func (m *ExponentialMechanism[T]) SetDistribution(values []T, scores []float64, epsilon *apd.Decimal) error {
	if len(values) != len(scores) {
		return errors.NewValidationError(errors.ErrInvalidParameters, errors.CodeInvalidInput,
			fmt.Sprintf("got %d values but %d scores", len(values), len(scores)))
	}
	if len(values) == 0 {
		return errors.NewPrivacyError(errors.ErrEmptyDistribution, errors.CodeEmptyDistribution,
			"cannot sample from an empty candidate set")
	}
	if epsilon == nil || epsilon.Sign() <= 0 {
		return errors.NewValidationError(errors.ErrInvalidParameters, errors.CodeOutOfRange,
			"epsilon must be positive")
	}

	decimals := make([]*apd.Decimal, len(scores))
	maxScore := new(apd.Decimal)
	for i, s := range scores {
		d, err := new(apd.Decimal).SetFloat64(s)
		if err != nil {
			return m.arithmeticError(err, "convert score")
		}
		decimals[i] = d
		if i == 0 || d.Cmp(maxScore) > 0 {
			maxScore.Set(d)
		}
	}

	// factor = epsilon / 2
	factor := new(apd.Decimal)
	if _, err := m.ctx.Quo(factor, epsilon, apd.New(2, 0)); err != nil {
		return m.arithmeticError(err, "scale epsilon")
	}

	// The best candidate has weight 1, so the total is at least 1 and any
	// weight below 10^-(precision+2) cannot change it. Such weights are
	// flushed to zero before exponentiation can underflow.
	cutoff := apd.New(-int64(m.ctx.Precision+2)*2303, -3)

	weights := make([]*apd.Decimal, len(values))
	cumulative := make([]*apd.Decimal, len(values))
	total := new(apd.Decimal)
	for i, d := range decimals {
		exponent := new(apd.Decimal)
		if _, err := m.ctx.Sub(exponent, d, maxScore); err != nil {
			return m.arithmeticError(err, "shift score")
		}
		if _, err := m.ctx.Mul(exponent, exponent, factor); err != nil {
			return m.arithmeticError(err, "scale score")
		}
		w := new(apd.Decimal)
		if exponent.Cmp(cutoff) >= 0 {
			cond, err := m.ctx.Exp(w, exponent)
			if err != nil {
				return m.arithmeticError(err, "exponentiate score")
			}
			if cond&(apd.Underflow|apd.Subnormal) != 0 {
				w.SetInt64(0)
			}
		}
		weights[i] = w
		if _, err := m.ctx.Add(total, total, w); err != nil {
			return m.arithmeticError(err, "accumulate weight")
		}
		cumulative[i] = new(apd.Decimal).Set(total)
	}

	m.values = append(m.values[:0], values...)
	m.weights = weights
	m.cumulative = cumulative
	m.total = total

	m.logger.WithFields(logrus.Fields{
		"candidates": len(values),
		"epsilon":    epsilon.String(),
	}).Debug("Prepared exponential mechanism")
	return nil
}

// Values returns the candidates of the current distribution.
func (m *ExponentialMechanism[T]) Values() []T {
	return append([]T(nil), m.values...)
}

// Probabilities returns the selection probability of each candidate, in the
// order of Values.
func (m *ExponentialMechanism[T]) Probabilities() ([]float64, error) {
	out := make([]float64, len(m.weights))
	for i, w := range m.weights {
		p := new(apd.Decimal)
		if _, err := m.ctx.Quo(p, w, m.total); err != nil {
			return nil, m.arithmeticError(err, "normalize weight")
		}
		f, err := p.Float64()
		if err != nil {
			return nil, m.arithmeticError(err, "convert probability")
		}
		out[i] = f
	}
	return out, nil
}

// Sample draws one candidate.
func (m *ExponentialMechanism[T]) Sample() (T, error) {
	var zero T
	if len(m.values) == 0 {
		return zero, errors.NewPrivacyError(errors.ErrEmptyDistribution, errors.CodeEmptyDistribution,
			"no distribution has been set")
	}

	r, err := m.draw()
	if err != nil {
		return zero, errors.NewInternalError(err, "failed to draw randomness")
	}
	target := new(apd.Decimal)
	if _, err := m.ctx.Mul(target, apd.New(r, -uniformScale), m.total); err != nil {
		return zero, m.arithmeticError(err, "scale draw")
	}

	last := -1
	for i, c := range m.cumulative {
		if m.weights[i].IsZero() {
			continue
		}
		last = i
		if c.Cmp(target) > 0 {
			return m.values[i], nil
		}
	}
	if last < 0 {
		last = len(m.values) - 1
	}
	return m.values[last], nil
}

func (m *ExponentialMechanism[T]) arithmeticError(err error, step string) error {
	return errors.NewPrivacyError(err, errors.CodeInternalError,
		fmt.Sprintf("exponential mechanism failed to %s", step))
}
