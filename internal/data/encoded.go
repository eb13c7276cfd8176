package data

import (
	"fmt"

	"github.com/inferloop/anonsearch/pkg/errors"
)

// EncodedDataset holds the quasi-identifiers of a dataset as hierarchy leaf
// codes and the sensitive attribute, if any, as value codes.
type EncodedDataset struct {
	QuasiIdentifiers []string
	Hierarchies      []*Hierarchy

	// Columns[dim][row] is the leaf code of a record.
	Columns [][]int

	Sensitive       []int
	SensitiveValues []string

	records int
}

// Encode maps every quasi-identifier value onto its hierarchy. sensitive may
// be empty.
func Encode(d *Dataset, quasiIdentifiers []string, hierarchies map[string]*Hierarchy, sensitive string) (*EncodedDataset, error) {
	if len(quasiIdentifiers) == 0 {
		return nil, errors.NewValidationError(errors.ErrInvalidDataset, errors.CodeMissingField,
			"at least one quasi-identifier is required")
	}

	enc := &EncodedDataset{
		QuasiIdentifiers: append([]string(nil), quasiIdentifiers...),
		Hierarchies:      make([]*Hierarchy, len(quasiIdentifiers)),
		Columns:          make([][]int, len(quasiIdentifiers)),
		records:          d.Len(),
	}

	for dim, name := range quasiIdentifiers {
		col, err := d.Column(name)
		if err != nil {
			return nil, err
		}
		h, ok := hierarchies[name]
		if !ok {
			return nil, errors.NewValidationError(errors.ErrInvalidHierarchy, errors.CodeMissingField,
				fmt.Sprintf("no hierarchy for quasi-identifier %q", name))
		}
		enc.Hierarchies[dim] = h

		codes := make([]int, d.Len())
		for row, record := range d.Rows {
			if col >= len(record) {
				return nil, errors.NewValidationError(errors.ErrInvalidDataset, errors.CodeInvalidFormat,
					fmt.Sprintf("record %d is missing attribute %q", row, name))
			}
			code, ok := h.Encode(record[col])
			if !ok {
				return nil, errors.NewValidationError(errors.ErrInvalidHierarchy, errors.CodeInvalidHierarchy,
					fmt.Sprintf("value %q of attribute %q is not covered by its hierarchy", record[col], name))
			}
			codes[row] = code
		}
		enc.Columns[dim] = codes
	}

	if sensitive != "" {
		col, err := d.Column(sensitive)
		if err != nil {
			return nil, err
		}
		index := make(map[string]int)
		enc.Sensitive = make([]int, d.Len())
		for row, record := range d.Rows {
			value := record[col]
			code, ok := index[value]
			if !ok {
				code = len(enc.SensitiveValues)
				index[value] = code
				enc.SensitiveValues = append(enc.SensitiveValues, value)
			}
			enc.Sensitive[row] = code
		}
	}

	return enc, nil
}

// Records returns the number of records.
func (e *EncodedDataset) Records() int {
	return e.records
}

// Dimensions returns the number of quasi-identifiers.
func (e *EncodedDataset) Dimensions() int {
	return len(e.Columns)
}

// MinLevels returns the lowest generalization level of each attribute.
func (e *EncodedDataset) MinLevels() []int {
	return make([]int, len(e.Hierarchies))
}

// MaxLevels returns the highest generalization level of each attribute.
func (e *EncodedDataset) MaxLevels() []int {
	out := make([]int, len(e.Hierarchies))
	for i, h := range e.Hierarchies {
		out[i] = h.MaxLevel()
	}
	return out
}

// Frequencies counts records per generalized value of one attribute.
func (e *EncodedDataset) Frequencies(dim, level int) []float64 {
	h := e.Hierarchies[dim]
	counts := make([]float64, h.DistinctValues(level))
	for _, leaf := range e.Columns[dim] {
		counts[h.Generalize(leaf, level)]++
	}
	return counts
}

// DistinctValues returns, per attribute and level, how many distinct
// generalized values occur in the data.
func (e *EncodedDataset) DistinctValues() [][]int {
	out := make([][]int, len(e.Hierarchies))
	for dim, h := range e.Hierarchies {
		out[dim] = make([]int, h.Height())
		for level := range out[dim] {
			for _, c := range e.Frequencies(dim, level) {
				if c > 0 {
					out[dim][level]++
				}
			}
		}
	}
	return out
}
