package tasklet

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/tigerroll/surfin/pkg/batch/adapter/database"
	port "github.com/tigerroll/surfin/pkg/batch/core/application/port"
	model "github.com/tigerroll/surfin/pkg/batch/core/domain/model"
	configbinder "github.com/tigerroll/surfin/pkg/batch/support/util/configbinder"
	"github.com/tigerroll/surfin/pkg/batch/support/util/exception"
	"github.com/tigerroll/surfin/pkg/batch/support/util/logger"

	"github.com/tigerroll/parking-pipeline/internal/domain/entity"
)

const moduleSchemaInitTasklet = "schema_init_tasklet"

// SchemaInitTaskletConfig is a struct used to bind properties passed from JSL.
type SchemaInitTaskletConfig struct {
	TargetResourceName string `yaml:"targetResourceName,omitempty"`
}

// SchemaInitTasklet drops and recreates the parking_data landing table at
// the start of every run. Each run lands a fresh table; accumulation
// happens in the CSV, which the loader replays in full.
type SchemaInitTasklet struct {
	config           *SchemaInitTaskletConfig
	dbResolver       database.DBConnectionResolver
	executionContext model.ExecutionContext
}

// NewSchemaInitTasklet creates a new instance of SchemaInitTasklet.
func NewSchemaInitTasklet(dbResolver database.DBConnectionResolver, properties map[string]interface{}) (*SchemaInitTasklet, error) {
	taskletCfg := &SchemaInitTaskletConfig{
		TargetResourceName: "parking",
	}

	if err := configbinder.BindProperties(properties, taskletCfg); err != nil {
		return nil, exception.NewBatchError(moduleSchemaInitTasklet, "Failed to bind properties", err, false, false)
	}

	return &SchemaInitTasklet{
		config:           taskletCfg,
		dbResolver:       dbResolver,
		executionContext: model.NewExecutionContext(),
	}, nil
}

// Open prepares the tasklet for execution.
func (t *SchemaInitTasklet) Open(ctx context.Context, stepExecution *model.StepExecution) error {
	return nil
}

// Execute resolves the target connection and rebuilds the landing table.
func (t *SchemaInitTasklet) Execute(ctx context.Context, stepExecution *model.StepExecution) (model.ExitStatus, error) {
	select {
	case <-ctx.Done():
		return model.ExitStatusFailed, ctx.Err()
	default:
	}

	db, closeFn, err := resolveSQLDB(ctx, t.dbResolver, t.config.TargetResourceName)
	if err != nil {
		return model.ExitStatusFailed, exception.NewBatchError(moduleSchemaInitTasklet,
			fmt.Sprintf("failed to resolve database connection '%s'", t.config.TargetResourceName), err, false, true)
	}
	defer closeFn()

	if err := initParkingSchema(ctx, db); err != nil {
		return model.ExitStatusFailed, exception.NewBatchError(moduleSchemaInitTasklet, "failed to initialize parking schema", err, false, true)
	}

	logger.Infof("SchemaInitTasklet: Recreated table %s on connection '%s'.", entity.ParkingTransaction{}.TableName(), t.config.TargetResourceName)
	return model.ExitStatusCompleted, nil
}

// initParkingSchema rebuilds the landing table on the given database handle.
func initParkingSchema(ctx context.Context, db *sql.DB) error {
	if _, err := db.ExecContext(ctx, entity.DropTableSQL()); err != nil {
		return fmt.Errorf("failed to drop %s: %w", entity.ParkingTransaction{}.TableName(), err)
	}
	if _, err := db.ExecContext(ctx, entity.CreateTableSQL()); err != nil {
		return fmt.Errorf("failed to create %s: %w", entity.ParkingTransaction{}.TableName(), err)
	}
	return nil
}

// Close releases any resources held by the Tasklet.
func (t *SchemaInitTasklet) Close(ctx context.Context, stepExecution *model.StepExecution) error {
	return nil
}

// SetExecutionContext sets the ExecutionContext for the Tasklet.
func (t *SchemaInitTasklet) SetExecutionContext(ec model.ExecutionContext) {
	t.executionContext = ec
}

// GetExecutionContext retrieves the current ExecutionContext of the Tasklet.
func (t *SchemaInitTasklet) GetExecutionContext() model.ExecutionContext {
	return t.executionContext
}

var _ port.Tasklet = (*SchemaInitTasklet)(nil)
