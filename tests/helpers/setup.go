package helpers

import (
	"io"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"

	"github.com/inferloop/anonsearch/internal/checker"
	"github.com/inferloop/anonsearch/internal/lattice"
)

// TestConfig contains configuration for test setup
type TestConfig struct {
	LogLevel   string
	TimeLimit  time.Duration
	CheckLimit int
	TempDir    string
}

// TestEnvironment provides a test environment with common utilities
type TestEnvironment struct {
	Config *TestConfig
	Logger *logrus.Logger
	T      *testing.T
}

// NewTestEnvironment creates a new test environment
func NewTestEnvironment(t *testing.T) *TestEnvironment {
	config := &TestConfig{
		LogLevel:   "debug",
		TimeLimit:  time.Minute,
		CheckLimit: 1 << 20,
		TempDir:    t.TempDir(),
	}

	return &TestEnvironment{
		Config: config,
		Logger: GetTestLogger(t),
		T:      t,
	}
}

// NewSpace creates a solution space between the given levels
func (env *TestEnvironment) NewSpace(minLevels, maxLevels []int) *lattice.SolutionSpace {
	env.T.Helper()
	space, err := lattice.NewSolutionSpace(minLevels, maxLevels, lattice.WithLogger(env.Logger))
	require.NoError(env.T, err)
	return space
}

// NewUniformSpace creates a space of dims attributes with levels 0..maxLevel
func (env *TestEnvironment) NewUniformSpace(dims, maxLevel int) *lattice.SolutionSpace {
	env.T.Helper()
	minLevels := make([]int, dims)
	maxLevels := make([]int, dims)
	for i := range maxLevels {
		maxLevels[i] = maxLevel
	}
	return env.NewSpace(minLevels, maxLevels)
}

// NewMonotonicChecker creates a synthetic checker where both privacy and
// utility are fully monotonic
func (env *TestEnvironment) NewMonotonicChecker(anonymous func([]int) bool, loss func([]int) float64) *checker.SyntheticChecker {
	return checker.NewSyntheticChecker(checker.SyntheticConfig{
		Anonymous:           anonymous,
		Loss:                loss,
		Bound:               loss,
		Independent:         true,
		PrivacyMonotonicity: checker.MonotonicityFull,
		UtilityMonotonicity: checker.MonotonicityFull,
	})
}

// GetTestLogger creates a logger for tests. Output is discarded unless the
// tests run verbosely.
func GetTestLogger(t *testing.T) *logrus.Logger {
	logger := logrus.New()
	logger.SetLevel(logrus.DebugLevel)
	logger.SetFormatter(&logrus.TextFormatter{
		DisableColors: true,
		FullTimestamp: true,
	})
	if !testing.Verbose() {
		logger.SetOutput(io.Discard)
	}
	return logger
}

// SkipIfShort skips long-running tests
func SkipIfShort(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping test in short mode")
	}
}
