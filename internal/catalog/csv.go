package catalog

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
)

const (
	numFields = 3
	colCode   = 0
	colName   = 1
	colActive = 2
)

// ReadCategories reads a categories CSV with a code,name,active header.
func ReadCategories(r io.Reader) ([]Category, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = numFields

	records, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("reading categories CSV: %w", err)
	}

	if len(records) == 0 {
		return nil, nil
	}

	var cats []Category
	for i, rec := range records[1:] {
		c, err := UnmarshalCategory(rec)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i+2, err)
		}
		cats = append(cats, c)
	}
	return cats, nil
}

// WriteCategories writes a categories CSV.
func WriteCategories(w io.Writer, cats []Category) error {
	cw := csv.NewWriter(w)

	if err := cw.Write([]string{"code", "name", "active"}); err != nil {
		return fmt.Errorf("writing header: %w", err)
	}

	for i, c := range cats {
		if err := cw.Write(MarshalCategory(c)); err != nil {
			return fmt.Errorf("writing row %d: %w", i+2, err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// MarshalCategory converts a Category to a CSV row.
func MarshalCategory(c Category) []string {
	row := make([]string, numFields)
	row[colCode] = c.Code
	row[colName] = c.Name
	row[colActive] = strconv.FormatBool(c.Active)
	return row
}

// UnmarshalCategory converts a CSV row to a Category.
func UnmarshalCategory(record []string) (Category, error) {
	if len(record) != numFields {
		return Category{}, fmt.Errorf("expected %d fields, got %d", numFields, len(record))
	}
	if record[colCode] == "" {
		return Category{}, fmt.Errorf("empty category code")
	}
	active, err := strconv.ParseBool(record[colActive])
	if err != nil {
		return Category{}, fmt.Errorf("parsing active %q: %w", record[colActive], err)
	}
	return Category{
		Code:   record[colCode],
		Name:   record[colName],
		Active: active,
	}, nil
}
