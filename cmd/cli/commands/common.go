package commands

import (
	"sort"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/inferloop/anonsearch/cmd/cli/config"
	"github.com/inferloop/anonsearch/internal/checker"
	"github.com/inferloop/anonsearch/internal/data"
	"github.com/inferloop/anonsearch/internal/privacy"
)

// flag name -> config key, shared by every command that reads a dataset
var inputFlags = map[string]string{
	"input":                  "input.dataset",
	"delimiter":              "input.delimiter",
	"qi":                     "input.quasi_identifiers",
	"sensitive":              "input.sensitive",
	"hierarchy":              "input.hierarchies",
	"k":                      "privacy.k",
	"l":                      "privacy.l",
	"diversity":              "privacy.diversity",
	"recursive-c":            "privacy.recursive_c",
	"t":                      "privacy.t",
	"distance":               "privacy.distance",
	"suppression":            "privacy.suppression_limit",
	"metric":                 "privacy.metric",
	"practical-monotonicity": "privacy.practical_monotonicity",
	"log-level":              "log.level",
	"log-format":             "log.format",
	"format":                 "output.format",
	"output":                 "output.file",
}

func addInputFlags(f *pflag.FlagSet) {
	f.StringP("input", "i", "", "Dataset in CSV format")
	f.String("delimiter", "", "Field separator of the dataset and hierarchies")
	f.StringSlice("qi", nil, "Quasi-identifiers in lattice order (default: hierarchy attributes, sorted)")
	f.String("sensitive", "", "Sensitive attribute")
	f.StringToString("hierarchy", nil, "Generalization hierarchy per attribute (attr=path)")
	f.Int("k", 0, "k of k-anonymity")
	f.Int("l", 0, "l of l-diversity")
	f.String("diversity", "", "l-diversity model (distinct, entropy, recursive)")
	f.Float64("recursive-c", 0, "c of recursive (c,l)-diversity")
	f.Float64("t", 0, "t of t-closeness")
	f.String("distance", "", "t-closeness distance (equal, ordered)")
	f.Float64("suppression", 0, "Share of records that may be suppressed")
	f.String("metric", "", "Information loss metric (height, precision, entropy, discernibility)")
	f.Bool("practical-monotonicity", false, "Assume monotonic privacy even with suppression")
	f.String("format", "", "Output format (text, json, yaml)")
	f.StringP("output", "o", "", "Output file (- for stdout)")
}

// loadConfig merges defaults, config file, environment and the flags of cmd,
// validates the result and creates the logger it configures.
func loadConfig(cmd *cobra.Command, cfgFile string, extra ...map[string]string) (*config.CLIConfig, *logrus.Logger, error) {
	v := viper.New()
	for _, flags := range append([]map[string]string{inputFlags}, extra...) {
		for name, key := range flags {
			if flag := cmd.Flags().Lookup(name); flag != nil {
				if err := v.BindPFlag(key, flag); err != nil {
					return nil, nil, err
				}
			}
		}
	}

	cfg, err := config.LoadConfig(v, cfgFile)
	if err != nil {
		return nil, nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, nil, err
	}
	return cfg, setupLogger(cfg.Log.Level, cfg.Log.Format, cmd.ErrOrStderr()), nil
}

func loadDataset(cfg *config.CLIConfig) (*data.EncodedDataset, error) {
	delimiter := cfg.Delimiter()
	ds, err := data.LoadCSV(cfg.Input.Dataset, delimiter)
	if err != nil {
		return nil, err
	}

	qis := cfg.Input.QuasiIdentifiers
	if len(qis) == 0 {
		for attr := range cfg.Input.Hierarchies {
			qis = append(qis, attr)
		}
		sort.Strings(qis)
	}

	hierarchies := make(map[string]*data.Hierarchy, len(qis))
	for _, attr := range qis {
		h, err := data.LoadHierarchy(cfg.Input.Hierarchies[attr], attr, delimiter)
		if err != nil {
			return nil, err
		}
		hierarchies[attr] = h
	}
	return data.Encode(ds, qis, hierarchies, cfg.Input.Sensitive)
}

func buildCriteria(cfg config.PrivacyConfig, enc *data.EncodedDataset) ([]privacy.Criterion, error) {
	var criteria []privacy.Criterion
	if cfg.K > 0 {
		k, err := privacy.NewKAnonymity(cfg.K)
		if err != nil {
			return nil, err
		}
		criteria = append(criteria, k)
	}
	if cfg.L > 0 {
		l, err := privacy.NewLDiversity(cfg.L, cfg.Diversity, cfg.RecursiveC)
		if err != nil {
			return nil, err
		}
		criteria = append(criteria, l)
	}
	if cfg.T > 0 {
		counts := make([]int, len(enc.SensitiveValues))
		for _, code := range enc.Sensitive {
			counts[code]++
		}
		t, err := privacy.NewTCloseness(cfg.T, cfg.Distance, counts)
		if err != nil {
			return nil, err
		}
		criteria = append(criteria, t)
	}
	return criteria, nil
}

func newChecker(cfg *config.CLIConfig, enc *data.EncodedDataset, logger *logrus.Logger) (*checker.DatasetChecker, error) {
	criteria, err := buildCriteria(cfg.Privacy, enc)
	if err != nil {
		return nil, err
	}
	return checker.NewDatasetChecker(enc, checker.DatasetConfig{
		Criteria:              criteria,
		Metric:                cfg.Privacy.Metric,
		SuppressionLimit:      cfg.Privacy.SuppressionLimit,
		HistorySize:           cfg.Privacy.HistorySize,
		PracticalMonotonicity: cfg.Privacy.PracticalMonotonicity,
	}, logger)
}
