package data

import (
	stderrors "errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/inferloop/anonsearch/pkg/errors"
)

const testDataset = `age;zip;disease
34;47677;flu
45;47602;cancer
34;47678;flu
47;47905;gastritis
`

const ageHierarchy = `34;30-39;*
45;40-49;*
47;40-49;*
`

const zipHierarchy = `47677;4767*;476**;*
47678;4767*;476**;*
47602;4760*;476**;*
47905;4790*;479**;*
`

func loadTestData(t *testing.T) (*Dataset, map[string]*Hierarchy) {
	t.Helper()
	ds, err := ReadCSV(strings.NewReader(testDataset), ';')
	require.NoError(t, err)

	age, err := ReadHierarchy(strings.NewReader(ageHierarchy), "age", ';')
	require.NoError(t, err)
	zip, err := ReadHierarchy(strings.NewReader(zipHierarchy), "zip", ';')
	require.NoError(t, err)

	return ds, map[string]*Hierarchy{"age": age, "zip": zip}
}

func TestReadCSV(t *testing.T) {
	ds, _ := loadTestData(t)

	assert.Equal(t, []string{"age", "zip", "disease"}, ds.Header)
	assert.Equal(t, 4, ds.Len())

	col, err := ds.Column("zip")
	require.NoError(t, err)
	assert.Equal(t, 1, col)

	_, err = ds.Column("missing")
	assert.True(t, stderrors.Is(err, errors.ErrInvalidDataset))

	_, err = ReadCSV(strings.NewReader(""), ';')
	assert.True(t, stderrors.Is(err, errors.ErrInvalidDataset))
}

func TestHierarchy(t *testing.T) {
	_, hierarchies := loadTestData(t)
	zip := hierarchies["zip"]

	assert.Equal(t, 4, zip.Height())
	assert.Equal(t, 3, zip.MaxLevel())
	assert.Equal(t, 4, zip.Leaves())
	assert.Equal(t, []int{4, 3, 2, 1}, []int{
		zip.DistinctValues(0), zip.DistinctValues(1), zip.DistinctValues(2), zip.DistinctValues(3),
	})

	a, ok := zip.Encode("47677")
	require.True(t, ok)
	b, _ := zip.Encode("47678")
	assert.NotEqual(t, zip.Generalize(a, 0), zip.Generalize(b, 0))
	assert.Equal(t, zip.Generalize(a, 1), zip.Generalize(b, 1))
	assert.Equal(t, "476**", zip.Label(a, 2))

	_, ok = zip.Encode("00000")
	assert.False(t, ok)
}

func TestHierarchyValidation(t *testing.T) {
	tests := []struct {
		name string
		rows [][]string
	}{
		{"empty", nil},
		{"ragged", [][]string{{"a", "*"}, {"b"}}},
		{"duplicate leaf", [][]string{{"a", "*"}, {"a", "*"}}},
		{"not functional", [][]string{{"a", "x", "*"}, {"b", "x", "*"}, {"c", "y", "*"}, {"d", "y", "z"}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewHierarchy("attr", tt.rows)
			require.Error(t, err)
			assert.True(t, stderrors.Is(err, errors.ErrInvalidHierarchy))
		})
	}
}

func TestEncode(t *testing.T) {
	ds, hierarchies := loadTestData(t)

	enc, err := Encode(ds, []string{"age", "zip"}, hierarchies, "disease")
	require.NoError(t, err)

	assert.Equal(t, 4, enc.Records())
	assert.Equal(t, 2, enc.Dimensions())
	assert.Equal(t, []int{0, 0}, enc.MinLevels())
	assert.Equal(t, []int{2, 3}, enc.MaxLevels())
	assert.Equal(t, []string{"flu", "cancer", "gastritis"}, enc.SensitiveValues)
	assert.Equal(t, []int{0, 1, 0, 2}, enc.Sensitive)

	assert.Equal(t, []float64{2, 2}, enc.Frequencies(0, 1))
	assert.Equal(t, [][]int{{3, 2, 1}, {4, 3, 2, 1}}, enc.DistinctValues())

	_, err = Encode(ds, []string{"disease"}, hierarchies, "")
	assert.True(t, stderrors.Is(err, errors.ErrInvalidHierarchy))

	_, err = Encode(ds, nil, hierarchies, "")
	assert.True(t, stderrors.Is(err, errors.ErrInvalidDataset))
}

func TestLoadFromFiles(t *testing.T) {
	dir := t.TempDir()
	dataPath := filepath.Join(dir, "data.csv")
	hierPath := filepath.Join(dir, "age.csv")
	require.NoError(t, os.WriteFile(dataPath, []byte(testDataset), 0o644))
	require.NoError(t, os.WriteFile(hierPath, []byte(ageHierarchy), 0o644))

	ds, err := LoadCSV(dataPath, ';')
	require.NoError(t, err)
	assert.Equal(t, 4, ds.Len())

	h, err := LoadHierarchy(hierPath, "age", ';')
	require.NoError(t, err)
	assert.Equal(t, 3, h.Height())

	_, err = LoadCSV(filepath.Join(dir, "missing.csv"), ';')
	assert.True(t, stderrors.Is(err, errors.ErrInvalidDataset))
}
