package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/inferloop/anonsearch/internal/algorithms/dp"
	"github.com/inferloop/anonsearch/internal/algorithms/genetic"
	"github.com/inferloop/anonsearch/internal/observability/metrics"
	"github.com/inferloop/anonsearch/pkg/constants"
	"github.com/inferloop/anonsearch/pkg/errors"
)

type CLIConfig struct {
	Algorithm      string        `mapstructure:"algorithm"`
	TimeLimit      time.Duration `mapstructure:"time_limit"`
	CheckLimit     int           `mapstructure:"check_limit"`
	QueueSize      int           `mapstructure:"queue_size"`
	DisablePruning bool          `mapstructure:"disable_pruning"`

	Input   InputConfig              `mapstructure:"input"`
	Privacy PrivacyConfig            `mapstructure:"privacy"`
	Genetic genetic.Config           `mapstructure:"genetic"`
	DP      dp.Config                `mapstructure:"dp"`
	Metrics metrics.PrometheusConfig `mapstructure:"metrics"`
	Log     LogConfig                `mapstructure:"log"`
	Output  OutputConfig             `mapstructure:"output"`
}

type InputConfig struct {
	Dataset          string            `mapstructure:"dataset"`
	Delimiter        string            `mapstructure:"delimiter"`
	QuasiIdentifiers []string          `mapstructure:"quasi_identifiers"`
	Sensitive        string            `mapstructure:"sensitive"`
	Hierarchies      map[string]string `mapstructure:"hierarchies"`
}

type PrivacyConfig struct {
	K                     int     `mapstructure:"k"`
	L                     int     `mapstructure:"l"`
	Diversity             string  `mapstructure:"diversity"`
	RecursiveC            float64 `mapstructure:"recursive_c"`
	T                     float64 `mapstructure:"t"`
	Distance              string  `mapstructure:"distance"`
	SuppressionLimit      float64 `mapstructure:"suppression_limit"`
	Metric                string  `mapstructure:"metric"`
	HistorySize           int     `mapstructure:"history_size"`
	PracticalMonotonicity bool    `mapstructure:"practical_monotonicity"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

type OutputConfig struct {
	Format string `mapstructure:"format"`
	File   string `mapstructure:"file"`
}

// SetDefaults registers the default of every key, which also makes every key
// visible to environment overrides.
func SetDefaults(v *viper.Viper) {
	gc := genetic.DefaultConfig()
	dc := dp.DefaultConfig()

	v.SetDefault("algorithm", constants.AlgorithmFLASH)
	v.SetDefault("time_limit", constants.DefaultTimeLimit)
	v.SetDefault("check_limit", constants.DefaultCheckLimit)
	v.SetDefault("queue_size", constants.DefaultHeuristicQueueSize)
	v.SetDefault("disable_pruning", false)

	v.SetDefault("input.dataset", "")
	v.SetDefault("input.delimiter", ";")
	v.SetDefault("input.quasi_identifiers", []string{})
	v.SetDefault("input.sensitive", "")
	v.SetDefault("input.hierarchies", map[string]string{})

	v.SetDefault("privacy.k", 0)
	v.SetDefault("privacy.l", 0)
	v.SetDefault("privacy.diversity", "distinct")
	v.SetDefault("privacy.recursive_c", 0.0)
	v.SetDefault("privacy.t", 0.0)
	v.SetDefault("privacy.distance", "equal")
	v.SetDefault("privacy.suppression_limit", constants.DefaultSuppressionLimit)
	v.SetDefault("privacy.metric", constants.MetricPrecision)
	v.SetDefault("privacy.history_size", constants.DefaultHistorySize)
	v.SetDefault("privacy.practical_monotonicity", false)

	v.SetDefault("genetic.subpopulation_size", gc.SubpopulationSize)
	v.SetDefault("genetic.generations", gc.Generations)
	v.SetDefault("genetic.elite_fraction", gc.EliteFraction)
	v.SetDefault("genetic.crossover_fraction", gc.CrossoverFraction)
	v.SetDefault("genetic.mutation_probability", gc.MutationProbability)
	v.SetDefault("genetic.immigration_interval", gc.ImmigrationInterval)
	v.SetDefault("genetic.immigration_fraction", gc.ImmigrationFraction)
	v.SetDefault("genetic.seed", gc.Seed)
	v.SetDefault("genetic.deterministic", gc.Deterministic)

	v.SetDefault("dp.epsilon", dc.Epsilon)
	v.SetDefault("dp.expansion_limit", dc.ExpansionLimit)
	v.SetDefault("dp.precision", dc.Precision)
	v.SetDefault("dp.deterministic", dc.Deterministic)
	v.SetDefault("dp.seed", dc.Seed)

	v.SetDefault("metrics.enabled", false)
	v.SetDefault("metrics.port", 9090)
	v.SetDefault("metrics.path", "/metrics")
	v.SetDefault("metrics.namespace", constants.MetricsNamespace)

	v.SetDefault("log.level", constants.DefaultLogLevel)
	v.SetDefault("log.format", constants.DefaultLogFormat)

	v.SetDefault("output.format", constants.FormatText)
	v.SetDefault("output.file", "-")
}

// LoadConfig reads cfgFile, or $HOME/.anonsearch.yaml when cfgFile is empty,
// and merges it with the environment and the flags bound to v.
func LoadConfig(v *viper.Viper, cfgFile string) (*CLIConfig, error) {
	SetDefaults(v)

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		if err == nil {
			v.AddConfigPath(home)
		}
		v.SetConfigName(constants.DefaultConfigName)
		v.SetConfigType("yaml")
	}

	v.SetEnvPrefix(constants.EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, errors.NewConfigurationError(fmt.Errorf("%w: %w", errors.ErrConfigurationLoad, err),
				"error reading config file")
		}
	}

	config := &CLIConfig{}
	if err := v.Unmarshal(config); err != nil {
		return nil, errors.NewConfigurationError(fmt.Errorf("%w: %w", errors.ErrConfigurationLoad, err),
			"error unmarshaling config")
	}
	return config, nil
}

// Validate checks the settings that are not validated by the components
// they configure.
func (c *CLIConfig) Validate() error {
	ve := errors.NewValidationErrors("invalid configuration")
	ve.Check(c.Input.Dataset != "", "input.dataset", "is required", c.Input.Dataset)
	ve.Check(len([]rune(c.Input.Delimiter)) == 1, "input.delimiter", "must be a single character", c.Input.Delimiter)
	ve.Check(len(c.Input.Hierarchies) > 0, "input.hierarchies", "at least one hierarchy is required", len(c.Input.Hierarchies))
	for _, qi := range c.Input.QuasiIdentifiers {
		_, ok := c.Input.Hierarchies[qi]
		ve.Check(ok, "input.hierarchies", fmt.Sprintf("no hierarchy for quasi-identifier %q", qi), qi)
	}
	ve.Check(c.Privacy.K > 0 || c.Privacy.L > 0 || c.Privacy.T > 0, "privacy", "at least one of k, l and t must be set", nil)
	ve.Check(c.Privacy.K >= 0, "privacy.k", "must not be negative", c.Privacy.K)
	switch c.Output.Format {
	case constants.FormatText, constants.FormatJSON, constants.FormatYAML:
	default:
		ve.Add("output.format", errors.CodeInvalidFormat, "must be text, json or yaml", c.Output.Format)
	}
	return ve.ErrorOrNil()
}

// Delimiter returns the field separator of the input files.
func (c *CLIConfig) Delimiter() rune {
	return []rune(c.Input.Delimiter)[0]
}

func GetDefaultConfigPath() string {
	home, _ := os.UserHomeDir()
	return filepath.Join(home, constants.DefaultConfigName+".yaml")
}
