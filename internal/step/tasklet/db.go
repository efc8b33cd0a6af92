package tasklet

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/tigerroll/surfin/pkg/batch/adapter/database"
	model "github.com/tigerroll/surfin/pkg/batch/core/domain/model"
	"github.com/tigerroll/surfin/pkg/batch/support/util/logger"
)

// resolveSQLDB resolves a named database connection down to its *sql.DB
// handle. The returned func releases the connection and logs any close
// failure.
func resolveSQLDB(ctx context.Context, resolver database.DBConnectionResolver, name string) (*sql.DB, func(), error) {
	dbConn, err := resolver.ResolveDBConnection(ctx, name)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to resolve connection '%s': %w", name, err)
	}
	db, err := dbConn.GetSQLDB()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to obtain *sql.DB for connection '%s': %w", name, err)
	}
	closeFn := func() {
		if err := dbConn.Close(); err != nil {
			logger.Warnf("Failed to close database connection '%s': %v", name, err)
		}
	}
	return db, closeFn, nil
}

// stagedTableJSON reads the promoted table snapshot from the job
// ExecutionContext of the given step.
func stagedTableJSON(stepExecution *model.StepExecution, key string) (string, bool) {
	if stepExecution == nil || stepExecution.JobExecution == nil {
		return "", false
	}
	return stepExecution.JobExecution.ExecutionContext.GetString(key)
}
