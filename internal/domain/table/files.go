package table

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
)

// AppendCSV appends the table's rows to the file at path, creating it if
// absent. The header row is written only when the file is new, so repeated
// runs accumulate rows under a single header. It reports whether the
// header was written.
func (t *Table) AppendCSV(path string) (bool, error) {
	_, statErr := os.Stat(path)
	writeHeader := os.IsNotExist(statErr)
	if statErr != nil && !os.IsNotExist(statErr) {
		return false, fmt.Errorf("failed to stat CSV file %s: %w", path, statErr)
	}

	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return false, fmt.Errorf("failed to open CSV file %s: %w", path, err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if writeHeader {
		if err := w.Write(t.Columns); err != nil {
			return false, fmt.Errorf("failed to write CSV header to %s: %w", path, err)
		}
	}
	for _, row := range t.Data {
		if err := w.Write(row); err != nil {
			return writeHeader, fmt.Errorf("failed to write CSV row to %s: %w", path, err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return writeHeader, fmt.Errorf("failed to flush CSV file %s: %w", path, err)
	}
	return writeHeader, nil
}

// WriteJSONLines overwrites the file at path with one JSON object per row
// (records orientation). The index key is not part of the records, matching
// the CSV output. Each run replaces the previous snapshot.
func (t *Table) WriteJSONLines(path string) error {
	f, err := os.OpenFile(path, os.O_TRUNC|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("failed to open JSON file %s: %w", path, err)
	}
	defer f.Close()

	enc := json.NewEncoder(f)
	for _, row := range t.Data {
		record := make(map[string]string, len(t.Columns))
		for i, col := range t.Columns {
			record[col] = row[i]
		}
		if err := enc.Encode(record); err != nil {
			return fmt.Errorf("failed to encode JSON record to %s: %w", path, err)
		}
	}
	return nil
}
