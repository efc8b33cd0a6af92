// Package tasklet provides the single-operation steps of the parking
// pipeline: API availability probing, landing-table schema initialization,
// CSV/JSON snapshot stores, the sync-point no-op, and the PostgreSQL COPY
// load.
package tasklet

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	port "github.com/tigerroll/surfin/pkg/batch/core/application/port"
	model "github.com/tigerroll/surfin/pkg/batch/core/domain/model"
	configbinder "github.com/tigerroll/surfin/pkg/batch/support/util/configbinder"
	"github.com/tigerroll/surfin/pkg/batch/support/util/exception"
	"github.com/tigerroll/surfin/pkg/batch/support/util/logger"
)

const moduleAPIAvailabilityTasklet = "api_availability_tasklet"

// APIAvailabilityTaskletConfig is a struct used to bind properties passed from JSL.
type APIAvailabilityTaskletConfig struct {
	Endpoint       string `yaml:"endpoint"`
	TimeoutSeconds int    `yaml:"timeoutSeconds,omitempty"`
}

// APIAvailabilityTasklet gates the pipeline on the upstream API being
// reachable. Anything other than a 2xx response fails the step so no
// downstream step destroys the landing table for nothing.
type APIAvailabilityTasklet struct {
	config           *APIAvailabilityTaskletConfig
	client           *http.Client
	executionContext model.ExecutionContext
}

// NewAPIAvailabilityTasklet creates a new instance of APIAvailabilityTasklet.
// The endpoint is a required JSL property; environment variable
// references in it are expanded.
func NewAPIAvailabilityTasklet(properties map[string]interface{}) (*APIAvailabilityTasklet, error) {
	taskletCfg := &APIAvailabilityTaskletConfig{}

	if err := configbinder.BindProperties(properties, taskletCfg); err != nil {
		return nil, exception.NewBatchError(moduleAPIAvailabilityTasklet, "Failed to bind properties", err, false, false)
	}

	taskletCfg.Endpoint = os.ExpandEnv(taskletCfg.Endpoint)
	if taskletCfg.Endpoint == "" {
		return nil, fmt.Errorf("endpoint property is required for APIAvailabilityTasklet")
	}
	timeout := time.Duration(taskletCfg.TimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	return &APIAvailabilityTasklet{
		config:           taskletCfg,
		client:           &http.Client{Timeout: timeout},
		executionContext: model.NewExecutionContext(),
	}, nil
}

// Open prepares the tasklet for execution.
func (t *APIAvailabilityTasklet) Open(ctx context.Context, stepExecution *model.StepExecution) error {
	logger.Debugf("APIAvailabilityTasklet.Open is called.")
	return nil
}

// Execute checks the configured endpoint with a GET request.
func (t *APIAvailabilityTasklet) Execute(ctx context.Context, stepExecution *model.StepExecution) (model.ExitStatus, error) {
	select {
	case <-ctx.Done():
		return model.ExitStatusFailed, ctx.Err()
	default:
	}

	logger.Infof("APIAvailabilityTasklet: Checking availability of %s", t.config.Endpoint)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, t.config.Endpoint, nil)
	if err != nil {
		return model.ExitStatusFailed, exception.NewBatchError(moduleAPIAvailabilityTasklet, "Failed to create availability request", err, false, false)
	}

	resp, err := t.client.Do(req)
	if err != nil {
		return model.ExitStatusFailed, exception.NewBatchError(moduleAPIAvailabilityTasklet, "Availability check request failed", err, false, true)
	}
	defer resp.Body.Close()
	// Drain the body so the connection is reusable.
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		errMsg := fmt.Sprintf("API is not available: status code %d", resp.StatusCode)
		isRetryable := resp.StatusCode >= 500
		return model.ExitStatusFailed, exception.NewBatchError(moduleAPIAvailabilityTasklet, errMsg, nil, false, isRetryable)
	}

	logger.Infof("APIAvailabilityTasklet: API responded with status %d.", resp.StatusCode)
	return model.ExitStatusCompleted, nil
}

// Close releases any resources held by the Tasklet.
func (t *APIAvailabilityTasklet) Close(ctx context.Context, stepExecution *model.StepExecution) error {
	t.client.CloseIdleConnections()
	return nil
}

// SetExecutionContext sets the ExecutionContext for the Tasklet.
func (t *APIAvailabilityTasklet) SetExecutionContext(ec model.ExecutionContext) {
	t.executionContext = ec
}

// GetExecutionContext retrieves the current ExecutionContext of the Tasklet.
func (t *APIAvailabilityTasklet) GetExecutionContext() model.ExecutionContext {
	return t.executionContext
}

var _ port.Tasklet = (*APIAvailabilityTasklet)(nil)
