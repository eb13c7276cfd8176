package commands

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/inferloop/anonsearch/cmd/cli/config"
	"github.com/inferloop/anonsearch/internal/algorithms"
	"github.com/inferloop/anonsearch/internal/algorithms/factory"
	"github.com/inferloop/anonsearch/internal/data"
	"github.com/inferloop/anonsearch/internal/lattice"
	"github.com/inferloop/anonsearch/internal/observability/metrics"
	"github.com/inferloop/anonsearch/pkg/interfaces"
)

// flag name -> config key
var searchFlags = map[string]string{
	"algorithm":     "algorithm",
	"time-limit":    "time_limit",
	"check-limit":   "check_limit",
	"queue-size":    "queue_size",
	"no-pruning":    "disable_pruning",
	"epsilon":       "dp.epsilon",
	"steps":         "dp.expansion_limit",
	"generations":   "genetic.generations",
	"seed":          "genetic.seed",
	"deterministic": "genetic.deterministic",
	"metrics":       "metrics.enabled",
	"metrics-port":  "metrics.port",
}

// seedFlags also reach the eddp search.
var seedFlags = map[string]string{
	"seed":          "dp.seed",
	"deterministic": "dp.deterministic",
}

// NewSearchCmd creates the search command. Flags override the config file
// and the environment.
func NewSearchCmd(cfgFile *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "search",
		Short: "Search the optimal generalization of a dataset",
		Long: `Search the generalization lattice of a dataset for the transformation
that satisfies the privacy criteria with the least information loss.`,
		Example: `  # 5-anonymity with FLASH
  anonsearch search --input adult.csv --hierarchy age=age.csv --hierarchy zip=zip.csv --k 5

  # 2-diversity with a genetic search, reported as JSON
  anonsearch search --input adult.csv --hierarchy age=age.csv --sensitive disease --l 2 \
    --algorithm genetic --format json`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := loadConfig(cmd, *cfgFile, searchFlags, seedFlags)
			if err != nil {
				return err
			}

			result, err := runSearch(cmd.Context(), cfg, logger)
			if err != nil {
				return err
			}
			return writeOutput(cmd, cfg.Output, result)
		},
	}

	f := cmd.Flags()
	addInputFlags(f)
	f.StringP("algorithm", "a", "", "Search algorithm ("+joinNames()+")")
	f.Duration("time-limit", 0, "Time limit of the search")
	f.Int("check-limit", 0, "Maximum number of checked transformations")
	f.Int("queue-size", 0, "Queue bound of the heuristic searches")
	f.Bool("no-pruning", false, "Disable bound pruning in FLASH")
	f.Float64("epsilon", 0, "Privacy budget of the eddp search")
	f.Int("steps", 0, "Expansion steps of the eddp search")
	f.Int("generations", 0, "Generations of the genetic search")
	f.Int64("seed", 0, "Seed of the genetic and eddp searches")
	f.Bool("deterministic", false, "Use the seed instead of the current time or the secure random source")
	f.Bool("metrics", false, "Serve Prometheus metrics while searching")
	f.Int("metrics-port", 0, "Port of the metrics server")
	return cmd
}

// SearchResult is the report of one search run.
type SearchResult struct {
	Algorithm       string            `json:"algorithm" yaml:"algorithm"`
	Found           bool              `json:"found" yaml:"found"`
	Optimal         bool              `json:"optimal" yaml:"optimal"`
	Generalization  []int             `json:"generalization,omitempty" yaml:"generalization,omitempty"`
	Levels          map[string]string `json:"levels,omitempty" yaml:"levels,omitempty"`
	InformationLoss string            `json:"information_loss,omitempty" yaml:"information_loss,omitempty"`
	Metric          string            `json:"metric" yaml:"metric"`
	Checks          int               `json:"checks" yaml:"checks"`
	SnapshotHits    int               `json:"snapshot_hits" yaml:"snapshot_hits"`
	SnapshotMisses  int               `json:"snapshot_misses" yaml:"snapshot_misses"`
	LatticeSize     string            `json:"lattice_size" yaml:"lattice_size"`
	Records         int               `json:"records" yaml:"records"`
	Duration        string            `json:"duration" yaml:"duration"`
}

func runSearch(ctx context.Context, cfg *config.CLIConfig, logger *logrus.Logger) (*SearchResult, error) {
	if ctx == nil {
		ctx = context.Background()
	}

	enc, err := loadDataset(cfg)
	if err != nil {
		return nil, err
	}
	c, err := newChecker(cfg, enc, logger)
	if err != nil {
		return nil, err
	}
	space, err := lattice.NewSolutionSpace(enc.MinLevels(), enc.MaxLevels(), lattice.WithLogger(logger))
	if err != nil {
		return nil, err
	}

	m, err := metrics.NewSearchMetrics(&cfg.Metrics, logger)
	if err != nil {
		return nil, err
	}
	if err := m.Start(ctx); err != nil {
		return nil, err
	}
	defer func() {
		stopCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := m.Stop(stopCtx); err != nil {
			logger.WithError(err).Warn("Failed to stop metrics server")
		}
	}()

	a, err := factory.New(space, c, factory.Params{
		Algorithm:      cfg.Algorithm,
		TimeLimit:      cfg.TimeLimit,
		CheckLimit:     cfg.CheckLimit,
		Distinct:       enc.DistinctValues(),
		DisablePruning: cfg.DisablePruning,
		QueueSize:      cfg.QueueSize,
		Genetic:        &cfg.Genetic,
		DP:             &cfg.DP,
	}, algorithms.WithLogger(logger), algorithms.WithMetrics(m))
	if err != nil {
		return nil, err
	}
	a.SetListener(interfaces.ProgressFunc(func(p float64) {
		logger.WithField("progress", fmt.Sprintf("%.1f%%", 100*p)).Debug("Search progress")
	}))

	logger.WithFields(logrus.Fields{
		"algorithm":    cfg.Algorithm,
		"lattice_size": space.Size().String(),
		"records":      enc.Records(),
	}).Info("Starting search")

	start := time.Now()
	optimal, err := a.Traverse()
	if err != nil {
		return nil, err
	}
	elapsed := time.Since(start)
	history := c.SnapshotHistory()
	m.SetHistorySnapshots(history.Size())

	result := &SearchResult{
		Algorithm:      cfg.Algorithm,
		Optimal:        optimal,
		Metric:         c.Metric().Name(),
		Checks:         c.Checks(),
		SnapshotHits:   history.Hits(),
		SnapshotMisses: history.Misses(),
		LatticeSize:    space.Size().String(),
		Records:        enc.Records(),
		Duration:       elapsed.Round(time.Millisecond).String(),
	}
	if optimum := a.GlobalOptimum(); optimum != nil {
		result.Found = true
		result.Generalization = optimum.Generalization()
		result.Levels = levelLabels(enc, optimum)
		if loss := optimum.InformationLoss(); loss != nil {
			result.InformationLoss = loss.String()
		}
	}

	logger.WithFields(logrus.Fields{
		"found":    result.Found,
		"optimal":  optimal,
		"checks":   result.Checks,
		"duration": elapsed,
	}).Info("Search finished")
	return result, nil
}

// levelLabels describes each chosen level by the generalized value of the
// first record.
func levelLabels(enc *data.EncodedDataset, t *lattice.Transformation) map[string]string {
	out := make(map[string]string, enc.Dimensions())
	for dim, attr := range enc.QuasiIdentifiers {
		level := t.GeneralizationAt(dim)
		if enc.Records() == 0 {
			out[attr] = fmt.Sprintf("level %d", level)
			continue
		}
		out[attr] = fmt.Sprintf("level %d (e.g. %s)", level,
			enc.Hierarchies[dim].Label(enc.Columns[dim][0], level))
	}
	return out
}
