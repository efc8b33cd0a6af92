package tasklet

import (
	"context"

	port "github.com/tigerroll/surfin/pkg/batch/core/application/port"
	model "github.com/tigerroll/surfin/pkg/batch/core/domain/model"
	"github.com/tigerroll/surfin/pkg/batch/support/util/logger"
)

// BypassTasklet is the synchronization point between the JSON store branch
// and the load step. It keeps the flow shape of the original pipeline and
// does nothing else.
type BypassTasklet struct {
	executionContext model.ExecutionContext
}

// NewBypassTasklet creates a new instance of BypassTasklet.
func NewBypassTasklet() *BypassTasklet {
	return &BypassTasklet{
		executionContext: model.NewExecutionContext(),
	}
}

// Open prepares the tasklet for execution.
func (t *BypassTasklet) Open(ctx context.Context, stepExecution *model.StepExecution) error {
	return nil
}

// Execute does nothing and completes.
func (t *BypassTasklet) Execute(ctx context.Context, stepExecution *model.StepExecution) (model.ExitStatus, error) {
	select {
	case <-ctx.Done():
		return model.ExitStatusFailed, ctx.Err()
	default:
	}
	logger.Debugf("BypassTasklet: passing through.")
	return model.ExitStatusCompleted, nil
}

// Close releases any resources held by the Tasklet.
func (t *BypassTasklet) Close(ctx context.Context, stepExecution *model.StepExecution) error {
	return nil
}

// SetExecutionContext sets the ExecutionContext for the Tasklet.
func (t *BypassTasklet) SetExecutionContext(ec model.ExecutionContext) {
	t.executionContext = ec
}

// GetExecutionContext retrieves the current ExecutionContext of the Tasklet.
func (t *BypassTasklet) GetExecutionContext() model.ExecutionContext {
	return t.executionContext
}

var _ port.Tasklet = (*BypassTasklet)(nil)
