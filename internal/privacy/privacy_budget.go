package privacy

import (
	"fmt"
	"time"

	"github.com/cockroachdb/apd/v3"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/inferloop/anonsearch/pkg/errors"
)

// BudgetTransaction records one expenditure of privacy budget
type BudgetTransaction struct {
	ID        string       `json:"id"`
	Timestamp time.Time    `json:"timestamp"`
	Epsilon   *apd.Decimal `json:"epsilon"`
	Purpose   string       `json:"purpose"`
	Mechanism string       `json:"mechanism"`
}

// BudgetStatus provides current budget status information
type BudgetStatus struct {
	TotalEpsilon     float64 `json:"total_epsilon"`
	ConsumedEpsilon  float64 `json:"consumed_epsilon"`
	RemainingEpsilon float64 `json:"remaining_epsilon"`
	Utilization      float64 `json:"utilization"`
	TransactionCount int     `json:"transaction_count"`
}

// BudgetManager splits a total epsilon across the steps of a search and
// keeps a ledger of what was spent. Steps compose sequentially, so the
// consumed budget is the sum of all transactions.
type BudgetManager struct {
	logger       *logrus.Logger
	ctx          *apd.Context
	total        *apd.Decimal
	consumed     *apd.Decimal
	transactions []BudgetTransaction
}

// NewBudgetManager creates a manager for the given total epsilon
func NewBudgetManager(epsilon float64, precision uint32, logger *logrus.Logger) (*BudgetManager, error) {
	if epsilon <= 0 {
		return nil, errors.NewValidationError(errors.ErrInvalidParameters, errors.CodeOutOfRange,
			fmt.Sprintf("epsilon must be positive, got %g", epsilon))
	}
	if logger == nil {
		logger = logrus.New()
	}

	total, err := new(apd.Decimal).SetFloat64(epsilon)
	if err != nil {
		return nil, derivationError(err, "convert epsilon")
	}

	ctx := NewDecimalContext(precision)
	// Allocations are rounded down so that they never sum above the total.
	ctx.Rounding = apd.RoundDown

	return &BudgetManager{
		logger:   logger,
		ctx:      ctx,
		total:    total,
		consumed: new(apd.Decimal),
	}, nil
}

// Total returns the total epsilon
func (bm *BudgetManager) Total() *apd.Decimal {
	return new(apd.Decimal).Set(bm.total)
}

// Split returns an equal allocation for each of steps sequential steps
func (bm *BudgetManager) Split(steps int) (*apd.Decimal, error) {
	if steps <= 0 {
		return nil, derivationError(errors.ErrInvalidParameters, fmt.Sprintf("split budget into %d steps", steps))
	}
	share := new(apd.Decimal)
	if _, err := bm.ctx.Quo(share, bm.total, apd.New(int64(steps), 0)); err != nil {
		return nil, derivationError(err, "divide budget")
	}
	return share, nil
}

// CanSpend reports whether epsilon fits in the remaining budget
func (bm *BudgetManager) CanSpend(epsilon *apd.Decimal) bool {
	if epsilon == nil || epsilon.Sign() < 0 {
		return false
	}
	return epsilon.Cmp(bm.Remaining()) <= 0
}

// Spend records an expenditure, refusing anything above the remaining budget
func (bm *BudgetManager) Spend(epsilon *apd.Decimal, purpose, mechanism string) error {
	if !bm.CanSpend(epsilon) {
		return errors.NewPrivacyError(errors.ErrPrivacyBudgetExceeded, errors.CodePrivacyBudgetExceeded,
			fmt.Sprintf("insufficient budget: need %s, have %s", epsilon, bm.Remaining()))
	}

	consumed := new(apd.Decimal)
	if _, err := bm.ctx.Add(consumed, bm.consumed, epsilon); err != nil {
		return derivationError(err, "compose budget")
	}
	bm.consumed = consumed
	bm.transactions = append(bm.transactions, BudgetTransaction{
		ID:        uuid.New().String(),
		Timestamp: time.Now(),
		Epsilon:   new(apd.Decimal).Set(epsilon),
		Purpose:   purpose,
		Mechanism: mechanism,
	})

	bm.logger.WithFields(logrus.Fields{
		"epsilon":  epsilon.String(),
		"consumed": bm.consumed.String(),
		"purpose":  purpose,
	}).Debug("Spent privacy budget")
	return nil
}

// Consumed returns the epsilon spent so far
func (bm *BudgetManager) Consumed() *apd.Decimal {
	return new(apd.Decimal).Set(bm.consumed)
}

// Remaining returns the unspent epsilon
func (bm *BudgetManager) Remaining() *apd.Decimal {
	remaining := new(apd.Decimal)
	if _, err := bm.ctx.Sub(remaining, bm.total, bm.consumed); err != nil || remaining.Sign() < 0 {
		return new(apd.Decimal)
	}
	return remaining
}

// GetTransactionHistory returns a copy of the ledger
func (bm *BudgetManager) GetTransactionHistory() []BudgetTransaction {
	return append([]BudgetTransaction(nil), bm.transactions...)
}

// GetStatus summarizes the budget
func (bm *BudgetManager) GetStatus() *BudgetStatus {
	total, _ := bm.total.Float64()
	consumed, _ := bm.consumed.Float64()
	remaining, _ := bm.Remaining().Float64()
	return &BudgetStatus{
		TotalEpsilon:     total,
		ConsumedEpsilon:  consumed,
		RemainingEpsilon: remaining,
		Utilization:      consumed / total,
		TransactionCount: len(bm.transactions),
	}
}

func derivationError(err error, step string) error {
	return errors.NewPrivacyError(
		fmt.Errorf("%w: %w", errors.ErrPrivacyBudgetDerivation, err),
		errors.CodeBudgetDerivation,
		fmt.Sprintf("failed to %s", step),
	)
}
