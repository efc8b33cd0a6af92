package processor

import (
	"context"
	"fmt"

	core "github.com/tigerroll/surfin/pkg/batch/core/application/port"
	config "github.com/tigerroll/surfin/pkg/batch/core/config"
	model "github.com/tigerroll/surfin/pkg/batch/core/domain/model"
	configbinder "github.com/tigerroll/surfin/pkg/batch/support/util/configbinder"
	"github.com/tigerroll/surfin/pkg/batch/support/util/exception"
	"github.com/tigerroll/surfin/pkg/batch/support/util/logger"

	"github.com/tigerroll/parking-pipeline/internal/domain/entity"
	"github.com/tigerroll/parking-pipeline/internal/domain/table"
)

// ParkingTransformProcessorConfig is a configuration struct specific to the Processor (for JSL property binding).
type ParkingTransformProcessorConfig struct {
	KeyColumn string `yaml:"keyColumn,omitempty"`
}

const moduleParkingTransformProcessor = "parking_transform_processor"

// ParkingTransformProcessor turns a raw API record into a keyed row:
// nested objects are flattened to dot-joined column names, every value is
// stringified, the record is indexed by its transaction key, and the
// location/meter metadata columns are removed.
type ParkingTransformProcessor struct {
	config           *config.Config
	resolver         core.ExpressionResolver
	executionContext model.ExecutionContext
	processorConfig  *ParkingTransformProcessorConfig
}

func NewParkingTransformProcessor(
	cfg *config.Config,
	resolver core.ExpressionResolver,
	properties map[string]interface{},
) (*ParkingTransformProcessor, error) {
	processorCfg := &ParkingTransformProcessorConfig{
		KeyColumn: entity.KeyColumn,
	}

	if err := configbinder.BindProperties(properties, processorCfg); err != nil {
		return nil, exception.NewBatchError(moduleParkingTransformProcessor, "Failed to bind properties", err, false, false)
	}

	return &ParkingTransformProcessor{
		config:           cfg,
		resolver:         resolver,
		executionContext: model.NewExecutionContext(),
		processorConfig:  processorCfg,
	}, nil
}

func (p *ParkingTransformProcessor) Process(ctx context.Context, item any) (any, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	record, ok := item.(map[string]interface{})
	if !ok {
		return nil, exception.NewBatchError(moduleParkingTransformProcessor, fmt.Sprintf("unexpected input item type: %T", item), nil, false, false)
	}

	flat := table.Flatten(record)

	key, ok := flat[p.processorConfig.KeyColumn]
	if !ok || key == "" {
		missing := &table.MissingColumnError{Column: p.processorConfig.KeyColumn}
		logger.Errorf("ParkingTransformProcessor: %v", missing)
		return nil, exception.NewBatchError(moduleParkingTransformProcessor, missing.Error(), missing, false, false)
	}
	delete(flat, p.processorConfig.KeyColumn)

	// Every drop-listed column must actually be present; a record missing
	// one signals an upstream schema change and fails the run.
	for _, col := range entity.DroppedColumns {
		if _, ok := flat[col]; !ok {
			missing := &table.MissingColumnError{Column: col}
			logger.Errorf("ParkingTransformProcessor: %v", missing)
			return nil, exception.NewBatchError(moduleParkingTransformProcessor, missing.Error(), missing, false, false)
		}
		delete(flat, col)
	}

	return &table.Row{Key: key, Values: flat}, nil
}

func (p *ParkingTransformProcessor) SetExecutionContext(ctx context.Context, ec model.ExecutionContext) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}
	p.executionContext = ec
	return nil
}

func (p *ParkingTransformProcessor) GetExecutionContext(ctx context.Context) (model.ExecutionContext, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}
	return p.executionContext, nil
}

var _ core.ItemProcessor[any, any] = (*ParkingTransformProcessor)(nil)
