package reader

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	coreAdapter "github.com/tigerroll/surfin/pkg/batch/core/adapter"
	core "github.com/tigerroll/surfin/pkg/batch/core/application/port"
	config "github.com/tigerroll/surfin/pkg/batch/core/config"
	model "github.com/tigerroll/surfin/pkg/batch/core/domain/model"
	configbinder "github.com/tigerroll/surfin/pkg/batch/support/util/configbinder"
	"github.com/tigerroll/surfin/pkg/batch/support/util/exception"
	logger "github.com/tigerroll/surfin/pkg/batch/support/util/logger"
)

// ParkingAPIReaderConfig is a configuration struct specific to the Reader (for JSL property binding).
type ParkingAPIReaderConfig struct {
	Endpoint       string `yaml:"endpoint"`
	TopCount       int    `yaml:"topCount,omitempty"`
	TimeoutSeconds int    `yaml:"timeoutSeconds,omitempty"`
}

const (
	ModuleParkingAPIReader = "ParkingAPIReader"
	ReaderContextKey       = "reader_context"
	RecordsKey             = "parkingRecords"
	CurrentIndexKey        = "currentIndex"

	defaultTopCount = 50
)

// ParkingAPIReader fetches one page of parking transactions from the open
// data API and emits the raw records one at a time. The fetched page and
// the read cursor are checkpointed in the step ExecutionContext so a
// restarted step resumes where it stopped instead of re-fetching.
type ParkingAPIReader struct {
	config       *ParkingAPIReaderConfig
	client       *http.Client
	records      []map[string]interface{}
	currentIndex int

	// stepExecutionContext holds the reference to the Step's ExecutionContext.
	stepExecutionContext model.ExecutionContext
	// readerState holds the reader's internal state.
	readerState model.ExecutionContext
	resolver    core.ExpressionResolver
}

// NewParkingAPIReader creates a new ParkingAPIReader. The API endpoint is a
// required JSL property; environment variable references in it are expanded.
func NewParkingAPIReader(
	cfg *config.Config,
	resolver core.ExpressionResolver,
	resourceProviders map[string]coreAdapter.ResourceProvider,
	properties map[string]interface{},
) (*ParkingAPIReader, error) {
	readerCfg := &ParkingAPIReaderConfig{
		TopCount: cfg.Surfin.Batch.ChunkSize,
	}

	if err := configbinder.BindProperties(properties, readerCfg); err != nil {
		return nil, exception.NewBatchError(ModuleParkingAPIReader, "Failed to bind properties", err, false, false)
	}

	readerCfg.Endpoint = os.ExpandEnv(readerCfg.Endpoint)
	if readerCfg.Endpoint == "" {
		return nil, fmt.Errorf("endpoint property is required for ParkingAPIReader")
	}
	if readerCfg.TopCount <= 0 {
		readerCfg.TopCount = defaultTopCount
	}
	timeout := time.Duration(readerCfg.TimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	return &ParkingAPIReader{
		config:               readerCfg,
		client:               &http.Client{Timeout: timeout},
		resolver:             resolver,
		stepExecutionContext: model.NewExecutionContext(),
		readerState:          model.NewExecutionContext(),
	}, nil
}

// Open opens resources and restores state from ExecutionContext.
func (r *ParkingAPIReader) Open(ctx context.Context, ec model.ExecutionContext) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}
	logger.Debugf("ParkingAPIReader.Open is called.")
	r.stepExecutionContext = ec
	if err := r.restoreReaderStateFromExecutionContext(ctx); err != nil {
		return err
	}

	// Fetch a page from the API unless a restart restored one.
	if r.records == nil {
		return r.fetchParkingData(ctx)
	}
	return nil
}

// Read reads the next raw parking record.
func (r *ParkingAPIReader) Read(ctx context.Context) (any, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	if r.records == nil || r.currentIndex >= len(r.records) {
		logger.Debugf("ParkingAPIReader: Finished reading all parking records.")
		return nil, core.ErrNoMoreItems
	}

	item := r.records[r.currentIndex]
	r.currentIndex++
	return item, nil
}

// Close releases resources.
func (r *ParkingAPIReader) Close(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}
	logger.Debugf("ParkingAPIReader.Close is called.")
	if err := r.saveReaderStateToExecutionContext(ctx); err != nil {
		logger.Errorf("ParkingAPIReader.Close: Failed to save internal state: %v", err)
	}
	return nil
}

// SetExecutionContext sets the ExecutionContext and restores the reader's state.
func (r *ParkingAPIReader) SetExecutionContext(ctx context.Context, ec model.ExecutionContext) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}
	r.stepExecutionContext = ec
	return r.restoreReaderStateFromExecutionContext(ctx)
}

// GetExecutionContext retrieves the reader's ExecutionContext state.
func (r *ParkingAPIReader) GetExecutionContext(ctx context.Context) (model.ExecutionContext, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}
	if err := r.saveReaderStateToExecutionContext(ctx); err != nil {
		return nil, err
	}
	return r.readerState, nil
}

func (r *ParkingAPIReader) fetchParkingData(ctx context.Context) error {
	requestURL, err := r.buildRequestURL()
	if err != nil {
		return exception.NewBatchError(ModuleParkingAPIReader, "Failed to build API request URL", err, false, false)
	}
	logger.Infof("Fetching parking transactions from %s", requestURL)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, requestURL, nil)
	if err != nil {
		return exception.NewBatchError(ModuleParkingAPIReader, "Failed to create API request", err, false, false)
	}

	resp, err := r.client.Do(req)
	if err != nil {
		return exception.NewBatchError(ModuleParkingAPIReader, "API call failed", err, false, true)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		bodyBytes, _ := io.ReadAll(resp.Body)
		bodyString := strings.TrimSpace(string(bodyBytes))
		errMsg := fmt.Sprintf("Error response from API: Status code %d, Body: %s", resp.StatusCode, bodyString)
		isRetryable := resp.StatusCode >= 500
		return exception.NewBatchError(ModuleParkingAPIReader, errMsg, errors.New(bodyString), false, isRetryable)
	}

	records, err := decodeRecords(resp.Body)
	if err != nil {
		return exception.NewBatchError(ModuleParkingAPIReader, "Failed to decode API response", err, false, false)
	}

	r.records = records
	r.currentIndex = 0
	logger.Debugf("Successfully fetched %d parking records from API.", len(r.records))
	return nil
}

// decodeRecords parses the response payload. The API returns either a JSON
// array of records or, for a single transaction, a lone JSON object; the
// object is treated as a one-record page.
func decodeRecords(body io.Reader) ([]map[string]interface{}, error) {
	var payload interface{}
	if err := json.NewDecoder(body).Decode(&payload); err != nil {
		return nil, err
	}

	switch v := payload.(type) {
	case []interface{}:
		records := make([]map[string]interface{}, 0, len(v))
		for i, elem := range v {
			record, ok := elem.(map[string]interface{})
			if !ok {
				return nil, fmt.Errorf("array element %d is not a JSON object (got %T)", i, elem)
			}
			records = append(records, record)
		}
		return records, nil
	case map[string]interface{}:
		return []map[string]interface{}{v}, nil
	default:
		return nil, fmt.Errorf("unexpected top-level JSON value of type %T", payload)
	}
}

func (r *ParkingAPIReader) buildRequestURL() (string, error) {
	u, err := url.Parse(r.config.Endpoint)
	if err != nil {
		return "", err
	}
	q := u.Query()
	q.Set("$top", strconv.Itoa(r.config.TopCount))
	u.RawQuery = q.Encode()
	return u.String(), nil
}

func (r *ParkingAPIReader) restoreReaderStateFromExecutionContext(ctx context.Context) error {
	readerCtxVal, ok := r.stepExecutionContext.Get(ReaderContextKey)
	var readerCtx model.ExecutionContext
	if !ok || readerCtxVal == nil {
		readerCtx = model.NewExecutionContext()
		r.stepExecutionContext.Put(ReaderContextKey, readerCtx)
		logger.Debugf("ParkingAPIReader: Initialized new ReaderExecutionContext.")
	} else if rcv, isEC := readerCtxVal.(model.ExecutionContext); isEC {
		readerCtx = rcv
	} else {
		logger.Warnf("ParkingAPIReader: ExecutionContext ReaderContextKey has unexpected type (%T). Initializing new ExecutionContext.", readerCtxVal)
		readerCtx = model.NewExecutionContext()
		r.stepExecutionContext.Put(ReaderContextKey, readerCtx)
	}
	r.readerState = readerCtx.Copy()

	if idx, ok := r.readerState.GetInt(CurrentIndexKey); ok {
		r.currentIndex = idx
		logger.Debugf("ParkingAPIReader: Restored currentIndex %d from ExecutionContext.", r.currentIndex)
	} else {
		r.currentIndex = 0
	}

	if val, found := r.readerState.GetString(RecordsKey); found && val != "" {
		var records []map[string]interface{}
		if err := json.Unmarshal([]byte(val), &records); err != nil {
			return exception.NewBatchError(ModuleParkingAPIReader, "Failed to deserialize parking records JSON", err, false, false)
		}
		r.records = records
		logger.Debugf("ParkingAPIReader: Restored %d parking records from ExecutionContext.", len(r.records))
	} else {
		r.records = nil
	}
	return nil
}

func (r *ParkingAPIReader) saveReaderStateToExecutionContext(ctx context.Context) error {
	readerCtxVal, ok := r.stepExecutionContext.Get(ReaderContextKey)
	var readerCtx model.ExecutionContext
	if !ok || readerCtxVal == nil {
		readerCtx = model.NewExecutionContext()
		r.stepExecutionContext.Put(ReaderContextKey, readerCtx)
	} else if rcv, isEC := readerCtxVal.(model.ExecutionContext); isEC {
		readerCtx = rcv
	} else {
		logger.Warnf("ParkingAPIReader: ExecutionContext ReaderContextKey has unexpected type (%T). Initializing new ExecutionContext.", readerCtxVal)
		readerCtx = model.NewExecutionContext()
		r.stepExecutionContext.Put(ReaderContextKey, readerCtx)
	}

	readerCtx.Put(CurrentIndexKey, r.currentIndex)
	r.readerState.Put(CurrentIndexKey, r.currentIndex)

	if r.records != nil {
		recordsJSON, err := json.Marshal(r.records)
		if err != nil {
			logger.Errorf("%s: Failed to encode parking records: %v", ModuleParkingAPIReader, err)
			return exception.NewBatchError(ModuleParkingAPIReader, "Failed to encode parking records", err, false, false)
		}
		readerCtx.Put(RecordsKey, string(recordsJSON))
		r.readerState.Put(RecordsKey, string(recordsJSON))
	} else {
		readerCtx.Remove(RecordsKey)
		r.readerState.Remove(RecordsKey)
	}
	logger.Debugf("ParkingAPIReader: Saved currentIndex (%d) and records state to ExecutionContext.", r.currentIndex)
	return nil
}

var _ core.ItemReader[any] = (*ParkingAPIReader)(nil)
