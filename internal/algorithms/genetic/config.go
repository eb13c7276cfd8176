package genetic

import (
	"github.com/inferloop/anonsearch/pkg/constants"
	"github.com/inferloop/anonsearch/pkg/errors"
)

// Config contains the parameters of the genetic search
type Config struct {
	SubpopulationSize   int     `json:"subpopulation_size" mapstructure:"subpopulation_size" yaml:"subpopulation_size"`
	Generations         int     `json:"generations" mapstructure:"generations" yaml:"generations"`
	EliteFraction       float64 `json:"elite_fraction" mapstructure:"elite_fraction" yaml:"elite_fraction"`
	CrossoverFraction   float64 `json:"crossover_fraction" mapstructure:"crossover_fraction" yaml:"crossover_fraction"`
	MutationProbability float64 `json:"mutation_probability" mapstructure:"mutation_probability" yaml:"mutation_probability"`
	ImmigrationInterval int     `json:"immigration_interval" mapstructure:"immigration_interval" yaml:"immigration_interval"`
	ImmigrationFraction float64 `json:"immigration_fraction" mapstructure:"immigration_fraction" yaml:"immigration_fraction"`
	Seed                int64   `json:"seed" mapstructure:"seed" yaml:"seed"`
	// Deterministic seeds the generator with Seed. Otherwise the wall clock
	// is used.
	Deterministic bool `json:"deterministic" mapstructure:"deterministic" yaml:"deterministic"`
}

// DefaultConfig returns the default parameters
func DefaultConfig() *Config {
	return &Config{
		SubpopulationSize:   constants.DefaultSubpopulationSize,
		Generations:         constants.DefaultGenerations,
		EliteFraction:       constants.DefaultEliteFraction,
		CrossoverFraction:   constants.DefaultCrossoverFraction,
		MutationProbability: constants.DefaultMutationProbability,
		ImmigrationInterval: constants.DefaultImmigrationInterval,
		ImmigrationFraction: constants.DefaultImmigrationFraction,
		Seed:                constants.DefaultGeneticSeed,
	}
}

// Validate checks every parameter and reports all problems at once
func (c *Config) Validate() error {
	ve := errors.NewValidationErrors("invalid genetic algorithm configuration")
	ve.Check(c.SubpopulationSize > 0, "subpopulation_size", "must be positive", c.SubpopulationSize)
	ve.Check(c.Generations > 0, "generations", "must be positive", c.Generations)
	ve.Check(c.ImmigrationInterval > 0, "immigration_interval", "must be positive", c.ImmigrationInterval)
	ve.Check(fraction(c.EliteFraction), "elite_fraction", "must be within [0, 1]", c.EliteFraction)
	ve.Check(fraction(c.CrossoverFraction), "crossover_fraction", "must be within [0, 1]", c.CrossoverFraction)
	ve.Check(fraction(c.MutationProbability), "mutation_probability", "must be within [0, 1]", c.MutationProbability)
	ve.Check(fraction(c.ImmigrationFraction), "immigration_fraction", "must be within [0, 1]", c.ImmigrationFraction)
	ve.Check(c.EliteFraction+c.CrossoverFraction <= 1, "crossover_fraction",
		"elite and crossover fractions must not exceed 1 together", c.EliteFraction+c.CrossoverFraction)
	return ve.ErrorOrNil()
}

func fraction(f float64) bool {
	return f >= 0 && f <= 1
}
