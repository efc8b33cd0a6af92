package writer

import (
	"context"

	core "github.com/tigerroll/surfin/pkg/batch/core/application/port"
	config "github.com/tigerroll/surfin/pkg/batch/core/config"
	model "github.com/tigerroll/surfin/pkg/batch/core/domain/model"
	configbinder "github.com/tigerroll/surfin/pkg/batch/support/util/configbinder"
	"github.com/tigerroll/surfin/pkg/batch/support/util/exception"
	logger "github.com/tigerroll/surfin/pkg/batch/support/util/logger"

	"github.com/tigerroll/parking-pipeline/internal/domain/entity"
	"github.com/tigerroll/parking-pipeline/internal/domain/table"
)

// ParkingTableKey is the ExecutionContext key under which the staged table
// is stored. The JSL promotes this key to the job ExecutionContext so the
// store tasklets downstream of the chunk step can read the snapshot.
const ParkingTableKey = "parkingTable"

const moduleParkingTableStagingWriter = "parking_table_staging_writer"

// ParkingTableStagingWriterConfig holds configuration specific to the writer (for JSL property binding).
type ParkingTableStagingWriterConfig struct {
	ContextKey string `yaml:"contextKey,omitempty"`
}

// ParkingTableStagingWriter is an ItemWriter that stages transformed rows
// into a column-oriented table in the step ExecutionContext instead of a
// database. The table is serialized as split-orientation JSON after every
// chunk so the latest snapshot survives a checkpoint.
type ParkingTableStagingWriter struct {
	contextKey string
	builder    *table.Builder

	// stepExecutionContext holds the reference to the Step's ExecutionContext.
	stepExecutionContext model.ExecutionContext
	// writerState holds the writer's internal state.
	writerState model.ExecutionContext
}

func NewParkingTableStagingWriter(
	cfg *config.Config,
	properties map[string]interface{},
) (*ParkingTableStagingWriter, error) {
	writerCfg := &ParkingTableStagingWriterConfig{
		ContextKey: ParkingTableKey,
	}
	if err := configbinder.BindProperties(properties, writerCfg); err != nil {
		return nil, exception.NewBatchError(moduleParkingTableStagingWriter, "Failed to bind properties", err, false, false)
	}

	return &ParkingTableStagingWriter{
		contextKey:           writerCfg.ContextKey,
		builder:              table.NewBuilder(entity.Columns),
		stepExecutionContext: model.NewExecutionContext(),
		writerState:          model.NewExecutionContext(),
	}, nil
}

// Open initializes the writer with the step ExecutionContext.
func (w *ParkingTableStagingWriter) Open(ctx context.Context, ec model.ExecutionContext) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}
	logger.Debugf("ParkingTableStagingWriter.Open is called.")
	w.stepExecutionContext = ec
	return nil
}

// Write stages a chunk of rows and refreshes the serialized snapshot in
// the step ExecutionContext.
func (w *ParkingTableStagingWriter) Write(ctx context.Context, items []any) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	for _, item := range items {
		row, ok := item.(*table.Row)
		if !ok {
			return exception.NewBatchError(moduleParkingTableStagingWriter, "unexpected item type in writer", nil, false, false)
		}
		w.builder.Append(*row)
	}

	if w.builder.Len() == 0 {
		return nil
	}
	return w.stageSnapshot()
}

// Close fails the step when the extraction produced no rows; a run with
// nothing to transform must not pretend success.
func (w *ParkingTableStagingWriter) Close(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}
	logger.Debugf("ParkingTableStagingWriter.Close is called with %d staged rows.", w.builder.Len())
	if w.builder.Len() == 0 {
		return exception.NewBatchError(moduleParkingTableStagingWriter, table.ErrNoData.Error(), table.ErrNoData, false, false)
	}
	return nil
}

func (w *ParkingTableStagingWriter) SetExecutionContext(ctx context.Context, ec model.ExecutionContext) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}
	w.stepExecutionContext = ec
	return nil
}

func (w *ParkingTableStagingWriter) GetExecutionContext(ctx context.Context) (model.ExecutionContext, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}
	return w.writerState, nil
}

// GetTargetResourceName returns an empty string: this writer does not write to an external resource.
func (w *ParkingTableStagingWriter) GetTargetResourceName() string {
	return ""
}

// GetResourcePath returns the logical table the staged rows are destined for.
func (w *ParkingTableStagingWriter) GetResourcePath() string {
	return entity.ParkingTransaction{}.TableName()
}

func (w *ParkingTableStagingWriter) stageSnapshot() error {
	t, err := w.builder.Build()
	if err != nil {
		return exception.NewBatchError(moduleParkingTableStagingWriter, "failed to build staged table", err, false, false)
	}
	encoded, err := t.ToJSON()
	if err != nil {
		return exception.NewBatchError(moduleParkingTableStagingWriter, "failed to serialize staged table", err, false, false)
	}
	w.stepExecutionContext.Put(w.contextKey, string(encoded))
	w.writerState.Put(w.contextKey, string(encoded))
	logger.Debugf("ParkingTableStagingWriter: Staged %d rows (%d columns) under key '%s'.", len(t.Data), len(t.Columns), w.contextKey)
	return nil
}

var _ core.ItemWriter[any] = (*ParkingTableStagingWriter)(nil)
