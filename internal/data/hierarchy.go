package data

import (
	"fmt"
	"io"
	"os"

	"github.com/inferloop/anonsearch/pkg/errors"
)

// Hierarchy is a value generalization hierarchy for one attribute. Each row
// lists a leaf value followed by its generalizations, most specific first.
type Hierarchy struct {
	Attribute string

	leaves  map[string]int
	labels  [][]string // labels[level][code]
	mapping [][]int    // mapping[level][leaf] = code at level
}

// LoadHierarchy reads a hierarchy from a delimited file without header.
func LoadHierarchy(path, attribute string, delimiter rune) (*Hierarchy, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, errors.NewValidationError(errors.ErrInvalidHierarchy, errors.CodeInvalidHierarchy,
			"failed to open hierarchy").WithDetails(err.Error()).WithContext("path", path)
	}
	defer file.Close()

	return ReadHierarchy(file, attribute, delimiter)
}

// ReadHierarchy parses a hierarchy from r.
func ReadHierarchy(r io.Reader, attribute string, delimiter rune) (*Hierarchy, error) {
	rows, err := readRecords(r, delimiter)
	if err != nil {
		return nil, errors.NewValidationError(errors.ErrInvalidHierarchy, errors.CodeInvalidFormat,
			"failed to parse hierarchy").WithDetails(err.Error()).WithContext("attribute", attribute)
	}
	return NewHierarchy(attribute, rows)
}

// NewHierarchy builds a hierarchy from rows of equal length. Every value at a
// level must always generalize to the same value at the next level.
func NewHierarchy(attribute string, rows [][]string) (*Hierarchy, error) {
	invalid := func(msg string) error {
		return errors.NewValidationError(errors.ErrInvalidHierarchy, errors.CodeInvalidHierarchy, msg).
			WithContext("attribute", attribute)
	}
	if len(rows) == 0 || len(rows[0]) == 0 {
		return nil, invalid("hierarchy is empty")
	}

	height := len(rows[0])
	h := &Hierarchy{
		Attribute: attribute,
		leaves:    make(map[string]int, len(rows)),
		labels:    make([][]string, height),
		mapping:   make([][]int, height),
	}
	codes := make([]map[string]int, height)
	for level := range codes {
		codes[level] = make(map[string]int)
	}
	parent := make([]map[int]int, height)
	for level := range parent {
		parent[level] = make(map[int]int)
	}

	for i, row := range rows {
		if len(row) != height {
			return nil, invalid(fmt.Sprintf("row %d has %d levels, expected %d", i, len(row), height))
		}
		if _, dup := h.leaves[row[0]]; dup {
			return nil, invalid(fmt.Sprintf("duplicate leaf value %q", row[0]))
		}
		leaf := len(h.leaves)
		h.leaves[row[0]] = leaf

		prev := -1
		for level, value := range row {
			code, ok := codes[level][value]
			if !ok {
				code = len(h.labels[level])
				codes[level][value] = code
				h.labels[level] = append(h.labels[level], value)
			}
			h.mapping[level] = append(h.mapping[level], code)

			if level > 0 {
				if p, seen := parent[level-1][prev]; seen && p != code {
					return nil, invalid(fmt.Sprintf("value %q at level %d generalizes to more than one value",
						h.labels[level-1][prev], level-1))
				}
				parent[level-1][prev] = code
			}
			prev = code
		}
	}
	return h, nil
}

// Height returns the number of levels, including the leaf level.
func (h *Hierarchy) Height() int {
	return len(h.mapping)
}

// MaxLevel returns the highest generalization level.
func (h *Hierarchy) MaxLevel() int {
	return len(h.mapping) - 1
}

// Leaves returns the number of distinct leaf values.
func (h *Hierarchy) Leaves() int {
	return len(h.leaves)
}

// Encode returns the leaf code of value.
func (h *Hierarchy) Encode(value string) (int, bool) {
	code, ok := h.leaves[value]
	return code, ok
}

// Generalize maps a leaf code to its code at level.
func (h *Hierarchy) Generalize(leaf, level int) int {
	return h.mapping[level][leaf]
}

// Label returns the value of a leaf at the given level.
func (h *Hierarchy) Label(leaf, level int) string {
	return h.labels[level][h.mapping[level][leaf]]
}

// DistinctValues returns the number of distinct values at level.
func (h *Hierarchy) DistinctValues(level int) int {
	return len(h.labels[level])
}
