// Package table implements the column-oriented intermediate representation
// used to hand transformed parking data between pipeline steps. A Table is
// serialized to JSON in the job ExecutionContext ("split" orientation:
// columns, index, data) and rendered to CSV and line-delimited JSON files
// by the store tasklets.
package table

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"
)

// ErrNoData indicates that the extraction produced zero records, so there
// is nothing to transform or store.
var ErrNoData = errors.New("no parking records to transform")

// MissingColumnError reports a record that lacks a required column.
type MissingColumnError struct {
	Column string
}

func (e *MissingColumnError) Error() string {
	return fmt.Sprintf("required column %q is missing from record", e.Column)
}

// Row is a single transformed record: the index key plus the remaining
// flattened column values, all stringified.
type Row struct {
	Key    string
	Values map[string]string
}

// Table is a rectangular, string-typed snapshot of transformed records.
// Field names follow the "split" tabular JSON orientation so the encoded
// form reads as {"columns": [...], "index": [...], "data": [[...]]}.
type Table struct {
	Columns []string   `json:"columns"`
	Index   []string   `json:"index"`
	Data    [][]string `json:"data"`
}

// ToJSON encodes the table in split orientation.
func (t *Table) ToJSON() ([]byte, error) {
	return json.Marshal(t)
}

// FromJSON decodes a split-orientation table.
func FromJSON(data []byte) (*Table, error) {
	var t Table
	if err := json.Unmarshal(data, &t); err != nil {
		return nil, fmt.Errorf("failed to decode table JSON: %w", err)
	}
	return &t, nil
}

// HeaderMatches reports whether a CSV record is the header row for the
// given column list.
func HeaderMatches(record []string, columns []string) bool {
	if len(record) != len(columns) {
		return false
	}
	for i := range record {
		if record[i] != columns[i] {
			return false
		}
	}
	return true
}

// Builder accumulates rows and materializes them into a Table. Column
// order is the destination schema first, followed by any extra observed
// columns in lexicographic order, so downstream files stay aligned with
// the landing table.
type Builder struct {
	schema   []string
	rows     []Row
	observed map[string]struct{}
}

// NewBuilder creates a Builder with the given preferred leading columns.
func NewBuilder(schema []string) *Builder {
	return &Builder{
		schema:   schema,
		observed: make(map[string]struct{}),
	}
}

// Append adds a transformed row to the pending table.
func (b *Builder) Append(row Row) {
	for col := range row.Values {
		b.observed[col] = struct{}{}
	}
	b.rows = append(b.rows, row)
}

// Len returns the number of rows appended so far.
func (b *Builder) Len() int {
	return len(b.rows)
}

// Build materializes the accumulated rows. It returns ErrNoData when no
// rows were appended. Cells for columns a row never carried are empty
// strings.
func (b *Builder) Build() (*Table, error) {
	if len(b.rows) == 0 {
		return nil, ErrNoData
	}

	columns := make([]string, 0, len(b.observed))
	seen := make(map[string]struct{}, len(b.observed))
	for _, col := range b.schema {
		if _, ok := b.observed[col]; ok {
			columns = append(columns, col)
			seen[col] = struct{}{}
		}
	}
	extras := make([]string, 0)
	for col := range b.observed {
		if _, ok := seen[col]; !ok {
			extras = append(extras, col)
		}
	}
	sort.Strings(extras)
	columns = append(columns, extras...)

	t := &Table{
		Columns: columns,
		Index:   make([]string, 0, len(b.rows)),
		Data:    make([][]string, 0, len(b.rows)),
	}
	for _, row := range b.rows {
		values := make([]string, len(columns))
		for i, col := range columns {
			values[i] = row.Values[col]
		}
		t.Index = append(t.Index, row.Key)
		t.Data = append(t.Data, values)
	}
	return t, nil
}
