package helpers

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/inferloop/anonsearch/internal/data"
)

// SampleRecords is a small dataset with two quasi-identifiers and a
// sensitive attribute
const SampleRecords = `age;zip;disease
34;47677;flu
45;47602;cancer
34;47678;flu
47;47905;gastritis
`

// SampleAgeHierarchy generalizes ages to decades and then suppresses them
const SampleAgeHierarchy = `34;30-39;*
45;40-49;*
47;40-49;*
`

// SampleZipHierarchy generalizes zip codes digit by digit
const SampleZipHierarchy = `47677;4767*;476**;*
47678;4767*;476**;*
47602;4760*;476**;*
47905;4790*;479**;*
`

// SampleDataset encodes SampleRecords with age and zip as quasi-identifiers
func SampleDataset(t *testing.T, sensitive string) *data.EncodedDataset {
	t.Helper()

	ds, err := data.ReadCSV(strings.NewReader(SampleRecords), ';')
	require.NoError(t, err)
	age, err := data.ReadHierarchy(strings.NewReader(SampleAgeHierarchy), "age", ';')
	require.NoError(t, err)
	zip, err := data.ReadHierarchy(strings.NewReader(SampleZipHierarchy), "zip", ';')
	require.NoError(t, err)

	enc, err := data.Encode(ds, []string{"age", "zip"},
		map[string]*data.Hierarchy{"age": age, "zip": zip}, sensitive)
	require.NoError(t, err)
	return enc
}
