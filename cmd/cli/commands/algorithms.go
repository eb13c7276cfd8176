package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/inferloop/anonsearch/internal/algorithms/factory"
	"github.com/inferloop/anonsearch/pkg/constants"
)

var algorithmSummaries = map[string]string{
	constants.AlgorithmFLASH:     "optimal bottom-up search over the generalization lattice",
	constants.AlgorithmBestFirst: "bottom-up best-first search ordered by information loss",
	constants.AlgorithmTopDown:   "top-down search for settings without monotonic privacy",
	constants.AlgorithmGenetic:   "two-population genetic search",
	constants.AlgorithmEDDP:      "differentially private search with the exponential mechanism",
}

func NewAlgorithmsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "algorithms",
		Short: "List the search algorithms",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			for _, name := range factory.Names() {
				if _, err := fmt.Fprintf(cmd.OutOrStdout(), "%-10s %s\n", name, algorithmSummaries[name]); err != nil {
					return err
				}
			}
			return nil
		},
	}
}
