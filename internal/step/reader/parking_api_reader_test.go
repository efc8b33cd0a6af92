package reader_test

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	core "github.com/tigerroll/surfin/pkg/batch/core/application/port"
	config "github.com/tigerroll/surfin/pkg/batch/core/config"
	model "github.com/tigerroll/surfin/pkg/batch/core/domain/model"
	"github.com/tigerroll/surfin/pkg/batch/support/util/exception"

	"github.com/tigerroll/parking-pipeline/internal/step/reader"
)

func newTestReader(t *testing.T, endpoint string, properties map[string]interface{}) *reader.ParkingAPIReader {
	t.Helper()
	cfg := config.NewConfig()
	cfg.Surfin.Batch.ChunkSize = 50
	if properties == nil {
		properties = map[string]interface{}{}
	}
	if _, ok := properties["endpoint"]; !ok {
		properties["endpoint"] = endpoint
	}
	r, err := reader.NewParkingAPIReader(cfg, nil, nil, properties)
	require.NoError(t, err)
	return r
}

func TestOpen_FetchesOnePageWithTopParameter(t *testing.T) {
	var requestedTop string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestedTop = r.URL.Query().Get("$top")
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `[
			{"parkingTransactionKey": "TXN-0001", "transactionAmt": 2.5},
			{"parkingTransactionKey": "TXN-0002", "transactionAmt": 1.0}
		]`)
	}))
	defer server.Close()

	r := newTestReader(t, server.URL, nil)
	ctx := context.Background()
	require.NoError(t, r.Open(ctx, model.NewExecutionContext()))
	defer r.Close(ctx)

	assert.Equal(t, "50", requestedTop)

	first, err := r.Read(ctx)
	require.NoError(t, err)
	record, ok := first.(map[string]interface{})
	require.True(t, ok, "Read should return a raw record, got %T", first)
	assert.Equal(t, "TXN-0001", record["parkingTransactionKey"])

	second, err := r.Read(ctx)
	require.NoError(t, err)
	assert.Equal(t, "TXN-0002", second.(map[string]interface{})["parkingTransactionKey"])

	_, err = r.Read(ctx)
	assert.True(t, errors.Is(err, core.ErrNoMoreItems))
}

func TestOpen_LoneObjectIsOneRecordPage(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"parkingTransactionKey": "TXN-0001", "transactionAmt": 2.5}`)
	}))
	defer server.Close()

	r := newTestReader(t, server.URL, nil)
	ctx := context.Background()
	require.NoError(t, r.Open(ctx, model.NewExecutionContext()))
	defer r.Close(ctx)

	first, err := r.Read(ctx)
	require.NoError(t, err)
	record, ok := first.(map[string]interface{})
	require.True(t, ok, "Read should return a raw record, got %T", first)
	assert.Equal(t, "TXN-0001", record["parkingTransactionKey"])

	_, err = r.Read(ctx)
	assert.True(t, errors.Is(err, core.ErrNoMoreItems))
}

func TestOpen_TopCountOverrideFromProperties(t *testing.T) {
	var requestedTop string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestedTop = r.URL.Query().Get("$top")
		fmt.Fprint(w, `[]`)
	}))
	defer server.Close()

	r := newTestReader(t, server.URL, map[string]interface{}{"topCount": "10"})
	ctx := context.Background()
	require.NoError(t, r.Open(ctx, model.NewExecutionContext()))
	defer r.Close(ctx)

	assert.Equal(t, "10", requestedTop)

	_, err := r.Read(ctx)
	assert.True(t, errors.Is(err, core.ErrNoMoreItems))
}

func TestOpen_ServerErrorIsRetryable(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "temporarily unavailable", http.StatusServiceUnavailable)
	}))
	defer server.Close()

	r := newTestReader(t, server.URL, nil)
	err := r.Open(context.Background(), model.NewExecutionContext())
	require.Error(t, err)

	var batchErr *exception.BatchError
	require.True(t, errors.As(err, &batchErr))
	assert.True(t, batchErr.IsRetryable())
}

func TestOpen_ClientErrorIsNotRetryable(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "bad request", http.StatusBadRequest)
	}))
	defer server.Close()

	r := newTestReader(t, server.URL, nil)
	err := r.Open(context.Background(), model.NewExecutionContext())
	require.Error(t, err)

	var batchErr *exception.BatchError
	require.True(t, errors.As(err, &batchErr))
	assert.False(t, batchErr.IsRetryable())
}

func TestOpen_RestartResumesFromCheckpoint(t *testing.T) {
	var requests int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests++
		fmt.Fprint(w, `[
			{"parkingTransactionKey": "TXN-0001"},
			{"parkingTransactionKey": "TXN-0002"}
		]`)
	}))
	defer server.Close()

	ctx := context.Background()
	stepEC := model.NewExecutionContext()

	first := newTestReader(t, server.URL, nil)
	require.NoError(t, first.Open(ctx, stepEC))
	item, err := first.Read(ctx)
	require.NoError(t, err)
	assert.Equal(t, "TXN-0001", item.(map[string]interface{})["parkingTransactionKey"])
	require.NoError(t, first.Close(ctx))

	// A restarted step reuses the checkpointed page instead of re-fetching.
	second := newTestReader(t, server.URL, nil)
	require.NoError(t, second.Open(ctx, stepEC))
	item, err = second.Read(ctx)
	require.NoError(t, err)
	assert.Equal(t, "TXN-0002", item.(map[string]interface{})["parkingTransactionKey"])
	_, err = second.Read(ctx)
	assert.True(t, errors.Is(err, core.ErrNoMoreItems))

	assert.Equal(t, 1, requests)
}

func TestNewParkingAPIReader_RequiresEndpoint(t *testing.T) {
	_, err := reader.NewParkingAPIReader(config.NewConfig(), nil, nil, nil)
	assert.Error(t, err)
}
