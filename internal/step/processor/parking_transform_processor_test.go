package processor_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	config "github.com/tigerroll/surfin/pkg/batch/core/config"
	"github.com/tigerroll/surfin/pkg/batch/support/util/exception"

	"github.com/tigerroll/parking-pipeline/internal/domain/entity"
	"github.com/tigerroll/parking-pipeline/internal/domain/table"
	"github.com/tigerroll/parking-pipeline/internal/step/processor"
)

func newTestProcessor(t *testing.T, properties map[string]interface{}) *processor.ParkingTransformProcessor {
	t.Helper()
	p, err := processor.NewParkingTransformProcessor(config.NewConfig(), nil, properties)
	require.NoError(t, err)
	return p
}

func TestProcess_IndexesByTransactionKeyAndDropsMetadata(t *testing.T) {
	p := newTestProcessor(t, nil)

	record := map[string]interface{}{
		"parkingTransactionKey": "TXN-0001",
		"startDtm":              "2024-01-01T08:00:00",
		"transactionAmt":        2.5,
		"meter": map[string]interface{}{
			"zone": "A12",
		},
	}
	for _, col := range entity.DroppedColumns {
		record[col] = "discard-me"
	}

	out, err := p.Process(context.Background(), record)
	require.NoError(t, err)

	row, ok := out.(*table.Row)
	require.True(t, ok, "Process should return *table.Row, got %T", out)

	assert.Equal(t, "TXN-0001", row.Key)
	assert.Equal(t, "2024-01-01T08:00:00", row.Values["startDtm"])
	assert.Equal(t, "2.5", row.Values["transactionAmt"])
	assert.Equal(t, "A12", row.Values["meter.zone"])

	_, keyKept := row.Values[entity.KeyColumn]
	assert.False(t, keyKept, "index key should not remain as a column value")
	for _, col := range entity.DroppedColumns {
		_, kept := row.Values[col]
		assert.False(t, kept, "dropped column %q should not survive transformation", col)
	}
}

func TestProcess_MissingKeyColumnFailsRun(t *testing.T) {
	p := newTestProcessor(t, nil)

	record := map[string]interface{}{
		"startDtm": "2024-01-01T08:00:00",
	}
	for _, col := range entity.DroppedColumns {
		record[col] = "discard-me"
	}

	_, err := p.Process(context.Background(), record)
	require.Error(t, err)

	var batchErr *exception.BatchError
	require.True(t, errors.As(err, &batchErr))
	assert.False(t, batchErr.IsSkippable())
	assert.False(t, batchErr.IsRetryable())

	var missing *table.MissingColumnError
	require.True(t, errors.As(err, &missing))
	assert.Equal(t, entity.KeyColumn, missing.Column)
}

func TestProcess_EmptyKeyColumnFailsRun(t *testing.T) {
	p := newTestProcessor(t, nil)

	_, err := p.Process(context.Background(), map[string]interface{}{
		entity.KeyColumn: "",
		"startDtm":       "2024-01-01T08:00:00",
	})
	require.Error(t, err)

	var missing *table.MissingColumnError
	assert.True(t, errors.As(err, &missing))
}

func TestProcess_AbsentDroppedColumnFailsRun(t *testing.T) {
	p := newTestProcessor(t, nil)

	record := map[string]interface{}{
		entity.KeyColumn: "TXN-0003",
		"startDtm":       "2024-01-01T08:00:00",
	}
	for _, col := range entity.DroppedColumns[1:] {
		record[col] = "discard-me"
	}

	_, err := p.Process(context.Background(), record)
	require.Error(t, err)

	var batchErr *exception.BatchError
	require.True(t, errors.As(err, &batchErr))
	assert.False(t, batchErr.IsSkippable())

	var missing *table.MissingColumnError
	require.True(t, errors.As(err, &missing))
	assert.Equal(t, entity.DroppedColumns[0], missing.Column)
}

func TestProcess_KeyColumnOverrideFromProperties(t *testing.T) {
	p := newTestProcessor(t, map[string]interface{}{"keyColumn": "customKey"})

	record := map[string]interface{}{
		"customKey": "TXN-0002",
		"startDtm":  "2024-01-01T08:00:00",
	}
	for _, col := range entity.DroppedColumns {
		record[col] = "discard-me"
	}

	out, err := p.Process(context.Background(), record)
	require.NoError(t, err)

	row := out.(*table.Row)
	assert.Equal(t, "TXN-0002", row.Key)
}

func TestProcess_RejectsUnexpectedItemType(t *testing.T) {
	p := newTestProcessor(t, nil)

	_, err := p.Process(context.Background(), "not a record")
	assert.Error(t, err)
}
