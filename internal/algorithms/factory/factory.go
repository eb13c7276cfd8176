// Package factory builds search algorithms by name.
package factory

import (
	"fmt"
	"strings"
	"time"

	"github.com/inferloop/anonsearch/internal/algorithms"
	"github.com/inferloop/anonsearch/internal/algorithms/dp"
	"github.com/inferloop/anonsearch/internal/algorithms/flash"
	"github.com/inferloop/anonsearch/internal/algorithms/genetic"
	"github.com/inferloop/anonsearch/internal/algorithms/heuristic"
	"github.com/inferloop/anonsearch/internal/checker"
	"github.com/inferloop/anonsearch/internal/lattice"
	"github.com/inferloop/anonsearch/pkg/constants"
	"github.com/inferloop/anonsearch/pkg/errors"
	"github.com/inferloop/anonsearch/pkg/interfaces"
)

// Params holds the parameters of every algorithm. Only the fields of the
// selected algorithm are used.
type Params struct {
	Algorithm  string
	TimeLimit  time.Duration
	CheckLimit int

	// Distinct holds the number of distinct values per attribute and level.
	// It refines the FLASH traversal order and may be nil.
	Distinct [][]int
	// DisablePruning turns off the FLASH bound pruning pass.
	DisablePruning bool

	QueueSize int
	Genetic   *genetic.Config
	DP        *dp.Config
}

// Names lists the supported algorithm names.
func Names() []string {
	return []string{
		constants.AlgorithmFLASH,
		constants.AlgorithmBestFirst,
		constants.AlgorithmTopDown,
		constants.AlgorithmGenetic,
		constants.AlgorithmEDDP,
	}
}

// New creates the algorithm named in params. Zero limits select the
// defaults.
func New(space *lattice.SolutionSpace, c checker.Checker, params Params, opts ...algorithms.Option) (interfaces.Algorithm, error) {
	if space == nil || c == nil {
		return nil, errors.NewValidationError(errors.ErrInvalidParameters, errors.CodeMissingField,
			"solution space and checker are required")
	}
	timeLimit := params.TimeLimit
	if timeLimit == 0 {
		timeLimit = constants.DefaultTimeLimit
	}
	checkLimit := params.CheckLimit
	if checkLimit == 0 {
		checkLimit = constants.DefaultCheckLimit
	}

	switch strings.ToLower(strings.TrimSpace(params.Algorithm)) {
	case constants.AlgorithmFLASH, "":
		a, err := flash.Create(space, c, timeLimit, checkLimit, flash.NewStrategy(space, params.Distinct), opts...)
		if err != nil {
			return nil, err
		}
		if params.DisablePruning {
			a.SetPruning(false)
		}
		return a, nil
	case constants.AlgorithmBestFirst:
		return algorithm(heuristic.NewBottomUp(space, c, timeLimit, checkLimit, params.QueueSize, opts...))
	case constants.AlgorithmTopDown:
		return algorithm(heuristic.NewTopDown(space, c, timeLimit, checkLimit, params.QueueSize, opts...))
	case constants.AlgorithmGenetic:
		return algorithm(genetic.New(space, c, timeLimit, checkLimit, params.Genetic, opts...))
	case constants.AlgorithmEDDP:
		return algorithm(dp.New(space, c, timeLimit, checkLimit, params.DP, opts...))
	default:
		return nil, errors.NewSearchError(errors.ErrUnknownAlgorithm, errors.CodeUnknownAlgorithm,
			fmt.Sprintf("unknown algorithm %q, expected one of %s", params.Algorithm, strings.Join(Names(), ", ")))
	}
}

// algorithm keeps a failed constructor's nil pointer out of the interface.
func algorithm[A interfaces.Algorithm](a A, err error) (interfaces.Algorithm, error) {
	if err != nil {
		return nil, err
	}
	return a, nil
}
