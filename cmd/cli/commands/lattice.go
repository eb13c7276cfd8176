package commands

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/inferloop/anonsearch/cmd/cli/config"
	"github.com/inferloop/anonsearch/internal/lattice"
	"github.com/inferloop/anonsearch/pkg/constants"
	"github.com/inferloop/anonsearch/pkg/errors"
)

type LatticeOptions struct {
	Levels string
	Format string
	Output string
}

// LatticeResult describes a solution space.
type LatticeResult struct {
	Dimensions      int    `json:"dimensions" yaml:"dimensions"`
	MinLevels       []int  `json:"min_levels" yaml:"min_levels"`
	MaxLevels       []int  `json:"max_levels" yaml:"max_levels"`
	Size            string `json:"size" yaml:"size"`
	FitsInt         bool   `json:"fits_int" yaml:"fits_int"`
	Levels          int    `json:"levels" yaml:"levels"`
	Bottom          []int  `json:"bottom" yaml:"bottom"`
	Top             []int  `json:"top" yaml:"top"`
	TopPredecessors int    `json:"top_predecessors" yaml:"top_predecessors"`
}

func NewLatticeCmd() *cobra.Command {
	opts := &LatticeOptions{}

	cmd := &cobra.Command{
		Use:   "lattice",
		Short: "Describe a generalization lattice",
		Long: `Describe the solution space spanned by per-attribute generalization
level ranges, given as min:max pairs in attribute order.`,
		Example: `  # Two attributes with levels 0..2 and 0..3
  anonsearch lattice --levels 0:2,0:3

  # As JSON
  anonsearch lattice --levels 0:4,1:3,0:1 --format json`,
		RunE: func(cmd *cobra.Command, args []string) error {
			result, err := describeLattice(opts.Levels)
			if err != nil {
				return err
			}
			return writeOutput(cmd, config.OutputConfig{Format: opts.Format, File: opts.Output}, result)
		},
	}

	cmd.Flags().StringVar(&opts.Levels, "levels", "", "Level ranges, e.g. 0:2,0:3 (required)")
	cmd.Flags().StringVar(&opts.Format, "format", constants.FormatText, "Output format (text, json, yaml)")
	cmd.Flags().StringVarP(&opts.Output, "output", "o", "-", "Output file (- for stdout)")
	cmd.MarkFlagRequired("levels")

	return cmd
}

func describeLattice(levels string) (*LatticeResult, error) {
	minLevels, maxLevels, err := parseLevels(levels)
	if err != nil {
		return nil, err
	}
	space, err := lattice.NewSolutionSpace(minLevels, maxLevels)
	if err != nil {
		return nil, err
	}
	return &LatticeResult{
		Dimensions:      space.Dimensions(),
		MinLevels:       space.MinLevels(),
		MaxLevels:       space.MaxLevels(),
		Size:            space.Size().String(),
		FitsInt:         space.SizeFitsInt(),
		Levels:          space.TopLevel() - space.BottomLevel() + 1,
		Bottom:          space.Bottom().Generalization(),
		Top:             space.Top().Generalization(),
		TopPredecessors: len(space.Top().Predecessors()),
	}, nil
}

// parseLevels reads "min:max" pairs separated by commas. A bare number n
// stands for 0:n.
func parseLevels(s string) ([]int, []int, error) {
	invalid := func(msg string) error {
		return errors.NewValidationError(errors.ErrInvalidGeneralization, errors.CodeInvalidFormat, msg).
			WithContext("levels", s)
	}

	parts := strings.Split(s, ",")
	minLevels := make([]int, 0, len(parts))
	maxLevels := make([]int, 0, len(parts))
	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part == "" {
			return nil, nil, invalid("empty level range")
		}
		lo, hi, found := strings.Cut(part, ":")
		if !found {
			lo, hi = "0", lo
		}
		minLevel, err := strconv.Atoi(strings.TrimSpace(lo))
		if err != nil {
			return nil, nil, invalid(fmt.Sprintf("invalid minimum level %q", lo))
		}
		maxLevel, err := strconv.Atoi(strings.TrimSpace(hi))
		if err != nil {
			return nil, nil, invalid(fmt.Sprintf("invalid maximum level %q", hi))
		}
		minLevels = append(minLevels, minLevel)
		maxLevels = append(maxLevels, maxLevel)
	}
	return minLevels, maxLevels, nil
}

func (r *LatticeResult) writeText(w io.Writer) error {
	_, err := fmt.Fprintf(w, `Lattice:
- Dimensions: %d
- Levels: %v .. %v
- Size: %s
- Height: %d
- Bottom: %v
- Top: %v
`, r.Dimensions, r.MinLevels, r.MaxLevels, r.Size, r.Levels, r.Bottom, r.Top)
	return err
}
