package constants

import (
	"math"
	"time"
)

// Application constants
const (
	// Application metadata
	AppName        = "anonsearch"
	AppDescription = "Lattice search for privacy-preserving data transformations"
	AppVersion     = "0.1.0"

	// Environment
	EnvPrefix         = "ANONSEARCH"
	DefaultConfigName = ".anonsearch"

	// Logging defaults
	DefaultLogLevel  = "info"
	DefaultLogFormat = "text"

	// Search budget defaults
	DefaultTimeLimit  = 10 * time.Minute
	DefaultCheckLimit = math.MaxInt32
	UnboundedTime     = time.Duration(math.MaxInt64)
	UnboundedChecks   = math.MaxInt

	// Heuristic defaults
	DefaultHeuristicQueueSize = 100000

	// Genetic algorithm defaults
	DefaultSubpopulationSize   = 100
	DefaultGenerations         = 50
	DefaultEliteFraction       = 0.2
	DefaultCrossoverFraction   = 0.4
	DefaultMutationProbability = 0.2
	DefaultImmigrationInterval = 10
	DefaultImmigrationFraction = 0.2
	DefaultGeneticSeed         = 42

	// Differential privacy defaults
	DefaultEpsilon                 = 2.0
	DefaultExpansionLimit          = 100
	DefaultMechanismPrecision      = 34
	DefaultDeterministicSeed int64 = 42

	// Privacy model defaults
	DefaultSuppressionLimit = 0.0

	// History defaults
	DefaultHistorySize = 200

	// Metrics defaults
	MetricsNamespace = "anonsearch"
)

// Algorithm names
const (
	AlgorithmFLASH     = "flash"
	AlgorithmBestFirst = "bestfirst"
	AlgorithmTopDown   = "topdown"
	AlgorithmGenetic   = "genetic"
	AlgorithmEDDP      = "eddp"
)

// Metric names
const (
	MetricHeight         = "height"
	MetricPrecision      = "precision"
	MetricEntropy        = "entropy"
	MetricDiscernibility = "discernibility"
)

// Output formats
const (
	FormatText = "text"
	FormatJSON = "json"
	FormatYAML = "yaml"
)
