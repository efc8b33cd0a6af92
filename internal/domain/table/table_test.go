package table_test

import (
	"encoding/csv"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tigerroll/parking-pipeline/internal/domain/table"
)

func TestBuilder_Build_OrdersSchemaColumnsFirst(t *testing.T) {
	b := table.NewBuilder([]string{"startDtm", "endDtm", "transactionAmt"})
	b.Append(table.Row{Key: "k1", Values: map[string]string{
		"endDtm":         "2024-01-01",
		"startDtm":       "2023-12-31",
		"zuluExtra":      "z",
		"alphaExtra":     "a",
		"transactionAmt": "1.25",
	}})

	built, err := b.Build()
	require.NoError(t, err)

	assert.Equal(t, []string{"startDtm", "endDtm", "transactionAmt", "alphaExtra", "zuluExtra"}, built.Columns)
	assert.Equal(t, []string{"k1"}, built.Index)
	assert.Equal(t, [][]string{{"2023-12-31", "2024-01-01", "1.25", "a", "z"}}, built.Data)
}

func TestBuilder_Build_EmptyReturnsErrNoData(t *testing.T) {
	b := table.NewBuilder([]string{"startDtm"})

	_, err := b.Build()
	require.Error(t, err)
	assert.True(t, errors.Is(err, table.ErrNoData))
}

func TestBuilder_Build_FillsMissingCellsWithEmptyString(t *testing.T) {
	b := table.NewBuilder([]string{"startDtm", "endDtm"})
	b.Append(table.Row{Key: "k1", Values: map[string]string{"startDtm": "a", "endDtm": "b"}})
	b.Append(table.Row{Key: "k2", Values: map[string]string{"startDtm": "c"}})

	built, err := b.Build()
	require.NoError(t, err)
	assert.Equal(t, [][]string{{"a", "b"}, {"c", ""}}, built.Data)
}

func TestTable_JSONRoundTrip(t *testing.T) {
	original := &table.Table{
		Columns: []string{"startDtm", "endDtm"},
		Index:   []string{"k1"},
		Data:    [][]string{{"a", "b"}},
	}

	encoded, err := original.ToJSON()
	require.NoError(t, err)
	assert.Contains(t, string(encoded), `"columns"`)
	assert.Contains(t, string(encoded), `"index"`)
	assert.Contains(t, string(encoded), `"data"`)

	decoded, err := table.FromJSON(encoded)
	require.NoError(t, err)
	assert.Equal(t, original, decoded)
}

func TestFromJSON_InvalidPayload(t *testing.T) {
	_, err := table.FromJSON([]byte("not json"))
	assert.Error(t, err)
}

func TestHeaderMatches(t *testing.T) {
	columns := []string{"startDtm", "endDtm"}

	assert.True(t, table.HeaderMatches([]string{"startDtm", "endDtm"}, columns))
	assert.False(t, table.HeaderMatches([]string{"startDtm"}, columns))
	assert.False(t, table.HeaderMatches([]string{"startDtm", "other"}, columns))
}

func TestAppendCSV_WritesHeaderOnlyOnce(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "processed_parking_data_00.csv")

	snapshot := &table.Table{
		Columns: []string{"startDtm", "endDtm"},
		Index:   []string{"k1"},
		Data:    [][]string{{"a", "b"}},
	}

	headerWritten, err := snapshot.AppendCSV(path)
	require.NoError(t, err)
	assert.True(t, headerWritten)

	headerWritten, err = snapshot.AppendCSV(path)
	require.NoError(t, err)
	assert.False(t, headerWritten)

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	records, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)
	// One header plus one data row per append.
	require.Len(t, records, 3)
	assert.Equal(t, []string{"startDtm", "endDtm"}, records[0])
	assert.Equal(t, []string{"a", "b"}, records[1])
	assert.Equal(t, []string{"a", "b"}, records[2])
}

func TestWriteJSONLines_OverwritesPreviousSnapshot(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "processed_parking_data.json")

	first := &table.Table{
		Columns: []string{"startDtm"},
		Index:   []string{"k1", "k2"},
		Data:    [][]string{{"a"}, {"b"}},
	}
	require.NoError(t, first.WriteJSONLines(path))

	second := &table.Table{
		Columns: []string{"startDtm"},
		Index:   []string{"k3"},
		Data:    [][]string{{"c"}},
	}
	require.NoError(t, second.WriteJSONLines(path))

	content, err := os.ReadFile(path)
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(string(content)), "\n")
	require.Len(t, lines, 1)
	assert.JSONEq(t, `{"startDtm":"c"}`, lines[0])
}

func TestFlatten_NestedObjectsAndScalars(t *testing.T) {
	flat := table.Flatten(map[string]interface{}{
		"parkingTransactionKey": "k1",
		"transactionAmt":        1.5,
		"maxHoursCnt":           float64(2),
		"handicapInd":           true,
		"meterTypeDsc":          nil,
		"meter": map[string]interface{}{
			"location": map[string]interface{}{
				"zone": "A",
			},
		},
	})

	assert.Equal(t, "k1", flat["parkingTransactionKey"])
	assert.Equal(t, "1.5", flat["transactionAmt"])
	assert.Equal(t, "2", flat["maxHoursCnt"])
	assert.Equal(t, "true", flat["handicapInd"])
	assert.Equal(t, "", flat["meterTypeDsc"])
	assert.Equal(t, "A", flat["meter.location.zone"])
}

func TestMissingColumnError_Message(t *testing.T) {
	err := &table.MissingColumnError{Column: "parkingTransactionKey"}
	assert.Contains(t, err.Error(), "parkingTransactionKey")
}
