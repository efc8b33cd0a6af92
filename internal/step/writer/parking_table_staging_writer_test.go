package writer_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	config "github.com/tigerroll/surfin/pkg/batch/core/config"
	model "github.com/tigerroll/surfin/pkg/batch/core/domain/model"

	"github.com/tigerroll/parking-pipeline/internal/domain/table"
	"github.com/tigerroll/parking-pipeline/internal/step/writer"
)

func newTestWriter(t *testing.T, properties map[string]interface{}) *writer.ParkingTableStagingWriter {
	t.Helper()
	w, err := writer.NewParkingTableStagingWriter(config.NewConfig(), properties)
	require.NoError(t, err)
	return w
}

func stagedTable(t *testing.T, ec model.ExecutionContext, key string) *table.Table {
	t.Helper()
	encoded, ok := ec.GetString(key)
	require.True(t, ok, "ExecutionContext should hold a staged table under %q", key)
	staged, err := table.FromJSON([]byte(encoded))
	require.NoError(t, err)
	return staged
}

func TestWrite_StagesSnapshotInExecutionContext(t *testing.T) {
	w := newTestWriter(t, nil)
	ctx := context.Background()
	stepEC := model.NewExecutionContext()
	require.NoError(t, w.Open(ctx, stepEC))

	items := []any{
		&table.Row{Key: "TXN-0001", Values: map[string]string{"startDtm": "a", "endDtm": "b"}},
		&table.Row{Key: "TXN-0002", Values: map[string]string{"startDtm": "c", "endDtm": "d"}},
	}
	require.NoError(t, w.Write(ctx, items))

	staged := stagedTable(t, stepEC, writer.ParkingTableKey)
	assert.Equal(t, []string{"startDtm", "endDtm"}, staged.Columns)
	assert.Equal(t, []string{"TXN-0001", "TXN-0002"}, staged.Index)
	assert.Equal(t, [][]string{{"a", "b"}, {"c", "d"}}, staged.Data)

	require.NoError(t, w.Close(ctx))
}

func TestWrite_SnapshotAccumulatesAcrossChunks(t *testing.T) {
	w := newTestWriter(t, nil)
	ctx := context.Background()
	stepEC := model.NewExecutionContext()
	require.NoError(t, w.Open(ctx, stepEC))

	require.NoError(t, w.Write(ctx, []any{
		&table.Row{Key: "TXN-0001", Values: map[string]string{"startDtm": "a"}},
	}))
	require.NoError(t, w.Write(ctx, []any{
		&table.Row{Key: "TXN-0002", Values: map[string]string{"startDtm": "b"}},
	}))

	staged := stagedTable(t, stepEC, writer.ParkingTableKey)
	assert.Equal(t, []string{"TXN-0001", "TXN-0002"}, staged.Index)
}

func TestWrite_ContextKeyOverrideFromProperties(t *testing.T) {
	w := newTestWriter(t, map[string]interface{}{"contextKey": "customTable"})
	ctx := context.Background()
	stepEC := model.NewExecutionContext()
	require.NoError(t, w.Open(ctx, stepEC))

	require.NoError(t, w.Write(ctx, []any{
		&table.Row{Key: "TXN-0001", Values: map[string]string{"startDtm": "a"}},
	}))

	_, ok := stepEC.GetString(writer.ParkingTableKey)
	assert.False(t, ok)
	staged := stagedTable(t, stepEC, "customTable")
	assert.Equal(t, []string{"TXN-0001"}, staged.Index)
}

func TestClose_FailsWhenNothingWasStaged(t *testing.T) {
	w := newTestWriter(t, nil)
	ctx := context.Background()
	require.NoError(t, w.Open(ctx, model.NewExecutionContext()))

	err := w.Close(ctx)
	require.Error(t, err)
	assert.True(t, errors.Is(err, table.ErrNoData))
}

func TestWrite_RejectsUnexpectedItemType(t *testing.T) {
	w := newTestWriter(t, nil)
	ctx := context.Background()
	require.NoError(t, w.Open(ctx, model.NewExecutionContext()))

	err := w.Write(ctx, []any{"not a row"})
	assert.Error(t, err)
}

func TestGetResourcePath(t *testing.T) {
	w := newTestWriter(t, nil)
	assert.Equal(t, "parking_data", w.GetResourcePath())
	assert.Equal(t, "", w.GetTargetResourceName())
}
