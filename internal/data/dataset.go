package data

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/inferloop/anonsearch/pkg/errors"
)

// Dataset is a tabular microdata set with a header row.
type Dataset struct {
	Header []string
	Rows   [][]string
}

// LoadCSV reads a dataset from a delimited file.
func LoadCSV(path string, delimiter rune) (*Dataset, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, errors.NewValidationError(errors.ErrInvalidDataset, errors.CodeInvalidDataset,
			"failed to open dataset").WithDetails(err.Error()).WithContext("path", path)
	}
	defer file.Close()

	return ReadCSV(file, delimiter)
}

// ReadCSV parses a dataset from r. The first record is the header.
func ReadCSV(r io.Reader, delimiter rune) (*Dataset, error) {
	records, err := readRecords(r, delimiter)
	if err != nil {
		return nil, errors.NewValidationError(errors.ErrInvalidDataset, errors.CodeInvalidFormat,
			"failed to parse dataset").WithDetails(err.Error())
	}
	if len(records) == 0 {
		return nil, errors.NewValidationError(errors.ErrInvalidDataset, errors.CodeMissingField,
			"dataset has no header")
	}

	header := make([]string, len(records[0]))
	for i, name := range records[0] {
		header[i] = strings.TrimSpace(name)
	}
	return &Dataset{Header: header, Rows: records[1:]}, nil
}

// Column returns the index of the named attribute.
func (d *Dataset) Column(name string) (int, error) {
	for i, h := range d.Header {
		if h == name {
			return i, nil
		}
	}
	return -1, errors.NewValidationError(errors.ErrInvalidDataset, errors.CodeMissingField,
		fmt.Sprintf("attribute %q not found", name))
}

// Len returns the number of records.
func (d *Dataset) Len() int {
	return len(d.Rows)
}

func readRecords(r io.Reader, delimiter rune) ([][]string, error) {
	reader := csv.NewReader(r)
	reader.Comma = delimiter
	reader.TrimLeadingSpace = true
	records, err := reader.ReadAll()
	if err != nil {
		return nil, err
	}
	for i, record := range records {
		for j := range record {
			records[i][j] = strings.TrimSpace(record[j])
		}
	}
	return records, nil
}
