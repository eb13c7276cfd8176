package config

import (
	stderrors "errors"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/inferloop/anonsearch/internal/algorithms/dp"
	"github.com/inferloop/anonsearch/internal/algorithms/genetic"
	"github.com/inferloop/anonsearch/pkg/errors"
	"github.com/inferloop/anonsearch/tests/helpers"
)

func validConfig() *CLIConfig {
	return &CLIConfig{
		Input: InputConfig{
			Dataset:     "data.csv",
			Delimiter:   ";",
			Hierarchies: map[string]string{"age": "age.csv"},
		},
		Privacy: PrivacyConfig{K: 2},
		Output:  OutputConfig{Format: "text"},
	}
}

func TestLoadConfig_Defaults(t *testing.T) {
	t.Setenv("HOME", t.TempDir())

	cfg, err := LoadConfig(viper.New(), "")
	require.NoError(t, err)

	assert.Equal(t, "flash", cfg.Algorithm)
	assert.Equal(t, 10*time.Minute, cfg.TimeLimit)
	assert.Equal(t, ";", cfg.Input.Delimiter)
	assert.Equal(t, 0, cfg.Privacy.K)
	assert.Equal(t, "precision", cfg.Privacy.Metric)
	assert.Equal(t, *genetic.DefaultConfig(), cfg.Genetic)
	assert.Equal(t, *dp.DefaultConfig(), cfg.DP)
	assert.False(t, cfg.Metrics.Enabled)
	assert.Equal(t, "/metrics", cfg.Metrics.Path)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "text", cfg.Output.Format)
	assert.Equal(t, "-", cfg.Output.File)
}

func TestLoadConfig_File(t *testing.T) {
	files := helpers.NewTestFiles(t)
	path := files.Write("anonsearch.yaml",
		"algorithm: genetic",
		"time_limit: 30s",
		"input:",
		"  dataset: adult.csv",
		"  delimiter: ','",
		"  hierarchies:",
		"    age: age.csv",
		"privacy:",
		"  k: 5",
		"  l: 2",
		"  suppression_limit: 0.1",
		"genetic:",
		"  generations: 7",
		"dp:",
		"  epsilon: 0.5",
	)

	cfg, err := LoadConfig(viper.New(), path)
	require.NoError(t, err)

	assert.Equal(t, "genetic", cfg.Algorithm)
	assert.Equal(t, 30*time.Second, cfg.TimeLimit)
	assert.Equal(t, ',', cfg.Delimiter())
	assert.Equal(t, map[string]string{"age": "age.csv"}, cfg.Input.Hierarchies)
	assert.Equal(t, 5, cfg.Privacy.K)
	assert.Equal(t, 2, cfg.Privacy.L)
	assert.Equal(t, 0.1, cfg.Privacy.SuppressionLimit)
	assert.Equal(t, 7, cfg.Genetic.Generations)
	assert.Equal(t, genetic.DefaultConfig().SubpopulationSize, cfg.Genetic.SubpopulationSize)
	assert.Equal(t, 0.5, cfg.DP.Epsilon)
	assert.NoError(t, cfg.Validate())
}

func TestLoadConfig_Environment(t *testing.T) {
	files := helpers.NewTestFiles(t)
	path := files.Write("anonsearch.yaml", "privacy:", "  k: 5")

	t.Setenv("ANONSEARCH_PRIVACY_K", "3")
	t.Setenv("ANONSEARCH_DP_EPSILON", "0.25")

	cfg, err := LoadConfig(viper.New(), path)
	require.NoError(t, err)
	assert.Equal(t, 3, cfg.Privacy.K)
	assert.Equal(t, 0.25, cfg.DP.Epsilon)
}

func TestLoadConfig_Errors(t *testing.T) {
	files := helpers.NewTestFiles(t)

	_, err := LoadConfig(viper.New(), files.Dir()+"/missing.yaml")
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeConfiguration))
	assert.True(t, stderrors.Is(err, errors.ErrConfigurationLoad))

	broken := files.Write("broken.yaml", "privacy: [k")
	_, err = LoadConfig(viper.New(), broken)
	assert.Error(t, err)
}

func TestCLIConfig_Validate(t *testing.T) {
	assert.NoError(t, validConfig().Validate())

	tests := []struct {
		name   string
		modify func(c *CLIConfig)
		field  string
	}{
		{"no dataset", func(c *CLIConfig) { c.Input.Dataset = "" }, "input.dataset"},
		{"long delimiter", func(c *CLIConfig) { c.Input.Delimiter = ";;" }, "input.delimiter"},
		{"no hierarchies", func(c *CLIConfig) { c.Input.Hierarchies = nil }, "input.hierarchies"},
		{"quasi-identifier without hierarchy", func(c *CLIConfig) { c.Input.QuasiIdentifiers = []string{"zip"} }, "input.hierarchies"},
		{"no criterion", func(c *CLIConfig) { c.Privacy.K = 0 }, "privacy"},
		{"negative k", func(c *CLIConfig) { c.Privacy.K = -1; c.Privacy.L = 2 }, "privacy.k"},
		{"unknown format", func(c *CLIConfig) { c.Output.Format = "xml" }, "output.format"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := validConfig()
			tt.modify(c)

			err := c.Validate()
			require.Error(t, err)
			assert.True(t, stderrors.Is(err, errors.ErrInvalidParameters))

			var ve *errors.ValidationErrors
			require.True(t, stderrors.As(err, &ve))
			fields := make([]string, 0, len(ve.Errors))
			for _, detail := range ve.Errors {
				fields = append(fields, detail.Field)
			}
			assert.Contains(t, fields, tt.field)
		})
	}
}
