package tasklet

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	port "github.com/tigerroll/surfin/pkg/batch/core/application/port"
	model "github.com/tigerroll/surfin/pkg/batch/core/domain/model"
	configbinder "github.com/tigerroll/surfin/pkg/batch/support/util/configbinder"
	"github.com/tigerroll/surfin/pkg/batch/support/util/exception"
	"github.com/tigerroll/surfin/pkg/batch/support/util/logger"

	"github.com/tigerroll/parking-pipeline/internal/domain/table"
	"github.com/tigerroll/parking-pipeline/internal/step/writer"
)

const (
	moduleJSONStoreTasklet = "json_store_tasklet"

	// DefaultJSONFileName is the per-run JSON snapshot, overwritten each run.
	DefaultJSONFileName = "processed_parking_data.json"
)

// JSONStoreTaskletConfig is a struct used to bind properties passed from JSL.
type JSONStoreTaskletConfig struct {
	OutputDir  string `yaml:"outputDir"`
	FileName   string `yaml:"fileName,omitempty"`
	ContextKey string `yaml:"contextKey,omitempty"`
}

// JSONStoreTasklet overwrites the line-delimited JSON snapshot with the
// current run's table. The JSON branch is advisory: every failure is
// swallowed and logged, and the step always completes, matching the
// original pipeline where a broken JSON snapshot must never block the load.
type JSONStoreTasklet struct {
	config           *JSONStoreTaskletConfig
	executionContext model.ExecutionContext
}

// NewJSONStoreTasklet creates a new instance of JSONStoreTasklet.
func NewJSONStoreTasklet(properties map[string]interface{}) (*JSONStoreTasklet, error) {
	taskletCfg := &JSONStoreTaskletConfig{
		FileName:   DefaultJSONFileName,
		ContextKey: writer.ParkingTableKey,
	}

	if err := configbinder.BindProperties(properties, taskletCfg); err != nil {
		return nil, exception.NewBatchError(moduleJSONStoreTasklet, "Failed to bind properties", err, false, false)
	}

	// JSL properties may carry environment variable references.
	taskletCfg.OutputDir = os.ExpandEnv(taskletCfg.OutputDir)
	if taskletCfg.OutputDir == "" {
		return nil, fmt.Errorf("outputDir property is required for JSONStoreTasklet")
	}

	return &JSONStoreTasklet{
		config:           taskletCfg,
		executionContext: model.NewExecutionContext(),
	}, nil
}

// Open prepares the tasklet for execution.
func (t *JSONStoreTasklet) Open(ctx context.Context, stepExecution *model.StepExecution) error {
	return nil
}

// Execute writes the snapshot, logging instead of failing on any error.
func (t *JSONStoreTasklet) Execute(ctx context.Context, stepExecution *model.StepExecution) (model.ExitStatus, error) {
	select {
	case <-ctx.Done():
		return model.ExitStatusFailed, ctx.Err()
	default:
	}

	encoded, ok := stagedTableJSON(stepExecution, t.config.ContextKey)
	if !ok || encoded == "" {
		logger.Errorf("JSONStoreTasklet: staged table not found in job ExecutionContext under key '%s'. Skipping JSON snapshot.", t.config.ContextKey)
		return model.ExitStatusCompleted, nil
	}

	parkingTable, err := table.FromJSON([]byte(encoded))
	if err != nil {
		logger.Errorf("JSONStoreTasklet: failed to decode staged table: %v. Skipping JSON snapshot.", err)
		return model.ExitStatusCompleted, nil
	}

	if err := os.MkdirAll(t.config.OutputDir, 0o755); err != nil {
		logger.Errorf("JSONStoreTasklet: failed to create output directory %s: %v. Skipping JSON snapshot.", t.config.OutputDir, err)
		return model.ExitStatusCompleted, nil
	}

	path := filepath.Join(t.config.OutputDir, t.config.FileName)
	if err := parkingTable.WriteJSONLines(path); err != nil {
		logger.Errorf("JSONStoreTasklet: failed to write JSON snapshot to %s: %v", path, err)
		return model.ExitStatusCompleted, nil
	}

	logger.Infof("JSONStoreTasklet: Wrote %d records to %s.", len(parkingTable.Data), path)
	return model.ExitStatusCompleted, nil
}

// Close releases any resources held by the Tasklet.
func (t *JSONStoreTasklet) Close(ctx context.Context, stepExecution *model.StepExecution) error {
	return nil
}

// SetExecutionContext sets the ExecutionContext for the Tasklet.
func (t *JSONStoreTasklet) SetExecutionContext(ec model.ExecutionContext) {
	t.executionContext = ec
}

// GetExecutionContext retrieves the current ExecutionContext of the Tasklet.
func (t *JSONStoreTasklet) GetExecutionContext() model.ExecutionContext {
	return t.executionContext
}

var _ port.Tasklet = (*JSONStoreTasklet)(nil)
