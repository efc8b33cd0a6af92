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
	moduleCSVStoreTasklet = "csv_store_tasklet"

	// DefaultCSVFileName is the cumulative CSV snapshot the loader replays.
	DefaultCSVFileName = "processed_parking_data_00.csv"
)

// CSVStoreTaskletConfig is a struct used to bind properties passed from JSL.
type CSVStoreTaskletConfig struct {
	OutputDir  string `yaml:"outputDir"`
	FileName   string `yaml:"fileName,omitempty"`
	ContextKey string `yaml:"contextKey,omitempty"`
}

// CSVStoreTasklet appends the staged table to the cumulative CSV file.
// The header is written only when the file is created, so consecutive runs
// grow a single loadable file.
type CSVStoreTasklet struct {
	config           *CSVStoreTaskletConfig
	executionContext model.ExecutionContext
}

// NewCSVStoreTasklet creates a new instance of CSVStoreTasklet.
func NewCSVStoreTasklet(properties map[string]interface{}) (*CSVStoreTasklet, error) {
	taskletCfg := &CSVStoreTaskletConfig{
		FileName:   DefaultCSVFileName,
		ContextKey: writer.ParkingTableKey,
	}

	if err := configbinder.BindProperties(properties, taskletCfg); err != nil {
		return nil, exception.NewBatchError(moduleCSVStoreTasklet, "Failed to bind properties", err, false, false)
	}

	// JSL properties may carry environment variable references.
	taskletCfg.OutputDir = os.ExpandEnv(taskletCfg.OutputDir)
	if taskletCfg.OutputDir == "" {
		return nil, fmt.Errorf("outputDir property is required for CSVStoreTasklet")
	}

	return &CSVStoreTasklet{
		config:           taskletCfg,
		executionContext: model.NewExecutionContext(),
	}, nil
}

// Open prepares the tasklet for execution.
func (t *CSVStoreTasklet) Open(ctx context.Context, stepExecution *model.StepExecution) error {
	return nil
}

// Execute decodes the promoted table snapshot and appends it to the CSV file.
func (t *CSVStoreTasklet) Execute(ctx context.Context, stepExecution *model.StepExecution) (model.ExitStatus, error) {
	select {
	case <-ctx.Done():
		return model.ExitStatusFailed, ctx.Err()
	default:
	}

	encoded, ok := stagedTableJSON(stepExecution, t.config.ContextKey)
	if !ok || encoded == "" {
		return model.ExitStatusFailed, exception.NewBatchError(moduleCSVStoreTasklet,
			fmt.Sprintf("staged table not found in job ExecutionContext under key '%s'", t.config.ContextKey), nil, false, false)
	}

	parkingTable, err := table.FromJSON([]byte(encoded))
	if err != nil {
		return model.ExitStatusFailed, exception.NewBatchError(moduleCSVStoreTasklet, "failed to decode staged table", err, false, false)
	}

	if err := os.MkdirAll(t.config.OutputDir, 0o755); err != nil {
		return model.ExitStatusFailed, exception.NewBatchError(moduleCSVStoreTasklet, "failed to create output directory", err, false, true)
	}

	path := filepath.Join(t.config.OutputDir, t.config.FileName)
	headerWritten, err := parkingTable.AppendCSV(path)
	if err != nil {
		return model.ExitStatusFailed, exception.NewBatchError(moduleCSVStoreTasklet, "failed to append CSV snapshot", err, false, true)
	}

	logger.Infof("CSVStoreTasklet: Appended %d rows to %s (header written: %t).", len(parkingTable.Data), path, headerWritten)
	return model.ExitStatusCompleted, nil
}

// Close releases any resources held by the Tasklet.
func (t *CSVStoreTasklet) Close(ctx context.Context, stepExecution *model.StepExecution) error {
	return nil
}

// SetExecutionContext sets the ExecutionContext for the Tasklet.
func (t *CSVStoreTasklet) SetExecutionContext(ec model.ExecutionContext) {
	t.executionContext = ec
}

// GetExecutionContext retrieves the current ExecutionContext of the Tasklet.
func (t *CSVStoreTasklet) GetExecutionContext() model.ExecutionContext {
	return t.executionContext
}

var _ port.Tasklet = (*CSVStoreTasklet)(nil)
